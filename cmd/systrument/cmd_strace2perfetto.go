package main

import (
	"fmt"
	"os"

	"github.com/kylewlacy/systrument/internal/flamechart"
)

type straceToPerfettoCmd struct {
	Output string `short:"o" long:"output" description:"Output trace file (default: stdout)"`
	Logs   bool   `short:"l" long:"logs" description:"Emit a root log track with one instant event per input line"`
	Args   struct {
		Input string `positional-arg-name:"input" description:"strace log file (default: stdin)"`
	} `positional-args:"yes"`
}

func (c *straceToPerfettoCmd) Execute(_ []string) error {
	logger := newLogger(rootFlags.Verbose)
	defer logger.Sync()

	in, closeIn, err := openInput(c.Args.Input)
	if err != nil {
		return err
	}
	defer closeIn()

	out, closeOut, err := openOutput(c.Output)
	if err != nil {
		return err
	}
	defer closeOut()

	writer := flamechart.NewProtoWriter(out)
	sink := flamechart.New(writer, flamechart.Options{Logs: c.Logs})

	return runPipeline(in, logger, WindowSize, sink, inputName(c.Args.Input))
}

func inputName(path string) string {
	if path == "" || path == "-" {
		return "<stdin>"
	}
	return path
}

func openInput(path string) (*os.File, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open input %q: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

func openOutput(path string) (*os.File, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create output %q: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}
