// Package strace implements the line scanner, the value parser, the
// reorder window, and the process-tree analyzer. They share one package
// (and the Line/Value/ProcessState types), keeping parse-layer code
// (scanner.go, parser.go) and state-layer code (analyzer.go) as sibling
// files within one package.
package strace

import "time"

// Pid is a process id as reported by the tracer.
type Pid int32

// Timestamp is nanoseconds since the Unix epoch, matching the Perfetto/OTLP
// "nanosecond instant" representation both sinks ultimately emit.
type Timestamp int64

func (t Timestamp) Time() time.Time {
	return time.Unix(0, int64(t))
}

// BodyKind discriminates the four record shapes the scanner recognizes.
type BodyKind int

const (
	BodySyscall BodyKind = iota
	BodySignal
	BodyExited
	BodyKilledBy
)

// Body is one of the four record shapes the scanner recognizes. Only the
// fields relevant to Kind are populated.
type Body struct {
	Kind BodyKind

	// BodySyscall
	Name         string
	ArgsText     string
	ResultText   string
	DurationText string

	// BodySignal, BodyKilledBy
	SignalText string

	// BodyExited
	CodeText string
}

// Line is the scanner's output: a header plus one lazily-interpreted body.
// LineNo is set by the caller that drives ScanLine, not by ScanLine itself,
// so it survives reordering through Window and still names the line's true
// source position when a diagnostic is rendered after release.
type Line struct {
	Pid       Pid
	Timestamp Timestamp
	Raw       string
	Body      Body
	LineNo    int
}
