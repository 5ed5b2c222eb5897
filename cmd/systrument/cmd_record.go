package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"

	"github.com/kylewlacy/systrument/internal/flamechart"
	"github.com/kylewlacy/systrument/internal/otelspan"
	"github.com/kylewlacy/systrument/internal/tracer"
)

type recordCmd struct {
	Full           bool   `long:"full" description:"Trace every syscall instead of the default file/process-focused filter"`
	Otel           bool   `long:"otel" description:"Also stream spans to an OTLP/HTTP collector"`
	OutputPerfetto string `long:"output-perfetto" description:"Write the flame-chart trace to this path"`
	OutputStrace   string `short:"o" long:"output-strace" description:"Also save the raw tracer output to this path"`
	TracerConfig   string `long:"tracer-config" description:"YAML file overriding the tracer binary, string limit, and extra args"`
	Args           struct {
		Command []string `positional-arg-name:"command" description:"command to run under the tracer"`
	} `positional-args:"yes"`
}

func (c *recordCmd) Execute(_ []string) error {
	logger := newLogger(rootFlags.Verbose)
	defer logger.Sync()

	if len(c.Args.Command) == 0 {
		return fmt.Errorf("record: no command given, use `record -- <cmd> [args...]`")
	}
	if c.OutputPerfetto == "" && !c.Otel {
		return fmt.Errorf("record: no sink requested, use --output-perfetto and/or --otel")
	}

	cfg, err := tracer.LoadConfig(c.TracerConfig)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	session, err := tracer.Start(ctx, logger, cfg, !c.Full, c.Args.Command)
	if err != nil {
		return err
	}
	defer session.Close()

	reader := session.Reader()

	var straceOut *os.File
	if c.OutputStrace != "" {
		straceOut, err = os.Create(c.OutputStrace)
		if err != nil {
			return fmt.Errorf("could not create %q: %w", c.OutputStrace, err)
		}
		defer straceOut.Close()
		reader = io.TeeReader(reader, straceOut)
	}

	sinks, cleanup, err := c.buildSinks(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	pipelineErr := runPipeline(reader, logger, WindowSize, sinks, "<tracer>")

	exitCode, waitErr := session.Wait()
	if waitErr != nil {
		return waitErr
	}
	if pipelineErr != nil {
		return pipelineErr
	}
	if exitCode != 0 {
		// os.Exit skips deferred calls, so flush the sinks and remove the
		// pipe first.
		cleanup()
		session.Close()
		os.Exit(exitCode)
	}
	return nil
}

func (c *recordCmd) buildSinks(ctx context.Context, logger *zap.Logger) (eventSink, func(), error) {
	var sinks []eventSink
	var closers []func()

	if c.OutputPerfetto != "" {
		f, err := os.Create(c.OutputPerfetto)
		if err != nil {
			return nil, nil, fmt.Errorf("could not create %q: %w", c.OutputPerfetto, err)
		}
		closers = append(closers, func() { f.Close() })
		writer := flamechart.NewProtoWriter(f)
		sinks = append(sinks, flamechart.New(writer, flamechart.Options{}))
	}

	if c.Otel {
		res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName("systrument")))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build resource: %w", err)
		}
		traceExporter, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tracerProvider := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
		)
		closers = append(closers, func() {
			if err := tracerProvider.Shutdown(ctx); err != nil {
				logger.Warn("failed to shut down tracer provider", zap.Error(err))
			}
		})
		otelSink := otelspan.New(tracerProvider.Tracer("systrument"), nil, otelspan.Options{})
		closers = append(closers, otelSink.Close)
		sinks = append(sinks, otelSink)
	}

	combined := multiSink(sinks)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return combined, cleanup, nil
}
