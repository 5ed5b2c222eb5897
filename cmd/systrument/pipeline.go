package main

import (
	"bufio"
	"io"

	"go.uber.org/zap"

	"github.com/kylewlacy/systrument/internal/strace"
)

// eventSink is the interface both downstream converters (flame-chart,
// OTel spans) implement, so runPipeline doesn't need to know which one
// it's driving.
type eventSink interface {
	OutputEvent(strace.Event) error
}

// multiSink broadcasts each Event to every wrapped sink in order, stopping
// at the first error.
type multiSink []eventSink

func (m multiSink) OutputEvent(e strace.Event) error {
	for _, s := range m {
		if err := s.OutputEvent(e); err != nil {
			return err
		}
	}
	return nil
}

// runPipeline scans r line by line, buffers lines through a reorder window
// to absorb out-of-order timestamps, and feeds each released line through
// the analyzer before handing the resulting Event to sink. Scan and analyze
// failures produce a diagnostic, get logged, and drop only the offending
// line; the run continues.
func runPipeline(r io.Reader, logger *zap.Logger, windowSize int, sink eventSink, inputName string) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	window := strace.NewWindow(windowSize)
	analyzer := strace.NewAnalyzer()
	lineNo := 0

	emit := func(line strace.Line) error {
		event, diagErr := analyzer.Analyze(line)
		if diagErr != nil {
			logger.Warn(diagErr.Render(inputName, line.LineNo))
			return nil
		}
		return sink.OutputEvent(event)
	}

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		if raw == "" {
			continue
		}

		line, diagErr := strace.ScanLine(raw)
		if diagErr != nil {
			logger.Warn(diagErr.Render(inputName, lineNo))
			continue
		}
		line.LineNo = lineNo

		released, ok := window.Push(line)
		if ok {
			if err := emit(released); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	for _, line := range window.Drain() {
		if err := emit(line); err != nil {
			return err
		}
	}

	return nil
}
