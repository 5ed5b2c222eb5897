// Command systrument converts a traced program's system-call log into
// process-tree traces for a flame-chart UI or a distributed-tracing
// backend.
package main

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"
	"go.uber.org/zap"
)

// WindowSize bounds the reorder window: the number of strace lines to look
// at before emitting them, absorbing lines that arrive slightly out of
// timestamp order.
const WindowSize = 100

type rootCommand struct {
	StraceToPerfetto straceToPerfettoCmd `command:"strace2perfetto" description:"Convert an offline strace log to a columnar flame-chart trace."`
	StraceToOtel     straceToOtelCmd     `command:"strace2otel" description:"Convert an offline strace log to OTLP spans and logs."`
	Record           recordCmd           `command:"record" description:"Run a command under the tracer and stream its trace to one or more sinks."`
	Verbose          bool                `short:"v" long:"verbose" description:"Enable debug-level logging."`
	ShowVersion      bool                `long:"version" description:"Print the version and exit."`
}

// rootFlags points at the struct go-flags populates as it parses. Global
// flags like Verbose are filled in before go-flags invokes the matched
// subcommand's Execute, so Execute methods can read rootFlags.Verbose
// directly rather than needing it passed in.
var rootFlags *rootCommand

func main() {
	os.Exit(run())
}

func run() int {
	var root rootCommand
	rootFlags = &root

	parser := flags.NewParser(&root, flags.Default)
	parser.SubcommandsOptional = true

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if root.ShowVersion {
		fmt.Println(Version)
		return 0
	}

	if parser.Active == nil {
		parser.WriteHelp(os.Stderr)
		return 1
	}
	return 0
}

func newLogger(verbose bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}
