// Package diag renders the warning-severity, line-skipping diagnostics the
// scanner and value parser raise into a human-readable form with a labeled
// source span, the way the original tracer surfaced its own parse warnings.
package diag

import (
	"fmt"
	"strings"
)

// Span is a byte-offset range into the line that produced a Diagnostic.
type Span struct {
	Start int
	End   int
}

// Diagnostic is a recoverable, warning-severity parse failure. The line that
// produced it is skipped by the pipeline; the run continues.
type Diagnostic struct {
	Message string
	Span    Span
	Source  string
}

func (d *Diagnostic) Error() string {
	return d.Message
}

// New builds a Diagnostic covering [start, end) of source.
func New(source, message string, start, end int) *Diagnostic {
	if start < 0 {
		start = 0
	}
	if end > len(source) {
		end = len(source)
	}
	if end < start {
		end = start
	}
	return &Diagnostic{Message: message, Span: Span{Start: start, End: end}, Source: source}
}

// At builds a Diagnostic pointing at a single byte offset.
func At(source, message string, offset int) *Diagnostic {
	return New(source, message, offset, offset+1)
}

// Render produces the filename:line-number, the offending source line, and
// a caret underline beneath the labeled span, for printing to stderr.
func (d *Diagnostic) Render(filename string, lineNumber int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d: warning: %s\n", filename, lineNumber, d.Message)
	b.WriteString("  ")
	b.WriteString(d.Source)
	b.WriteByte('\n')
	b.WriteString("  ")
	for i := 0; i < d.Span.Start; i++ {
		b.WriteByte(' ')
	}
	width := d.Span.End - d.Span.Start
	if width < 1 {
		width = 1
	}
	for i := 0; i < width; i++ {
		b.WriteByte('^')
	}
	return b.String()
}
