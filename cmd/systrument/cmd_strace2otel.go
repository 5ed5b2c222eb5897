package main

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"

	"github.com/kylewlacy/systrument/internal/otelspan"
)

type straceToOtelCmd struct {
	Logs         bool   `short:"l" long:"logs" description:"Export a correlated log record per input line"`
	RelativeNow  bool   `long:"relative-to-now" description:"Rebase the first event's timestamp to the current time"`
	TraceIDSeed  string `long:"trace-id-seed" description:"Derive the root trace/parent-span ID from this string, to stitch this run into a larger trace"`
	OtlpEndpoint string `long:"otlp-endpoint" description:"OTLP/HTTP collector endpoint (default: OTEL_EXPORTER_OTLP_ENDPOINT)"`
	Args         struct {
		Input string `positional-arg-name:"input" description:"strace log file (default: stdin)"`
	} `positional-args:"yes"`
}

func (c *straceToOtelCmd) Execute(_ []string) error {
	logger := newLogger(rootFlags.Verbose)
	defer logger.Sync()

	in, closeIn, err := openInput(c.Args.Input)
	if err != nil {
		return err
	}
	defer closeIn()

	ctx := context.Background()

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName("systrument"),
	))
	if err != nil {
		return fmt.Errorf("failed to build resource: %w", err)
	}

	var traceExporterOpts []otlptracehttp.Option
	var logExporterOpts []otlploghttp.Option
	if c.OtlpEndpoint != "" {
		traceExporterOpts = append(traceExporterOpts, otlptracehttp.WithEndpoint(c.OtlpEndpoint))
		logExporterOpts = append(logExporterOpts, otlploghttp.WithEndpoint(c.OtlpEndpoint))
	}

	traceExporter, err := otlptracehttp.New(ctx, traceExporterOpts...)
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	defer func() {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			logger.Warn("failed to shut down tracer provider", zap.Error(err))
		}
	}()

	var loggerProvider *sdklog.LoggerProvider
	var otelLogger otellog.Logger
	if c.Logs {
		logExporter, err := otlploghttp.New(ctx, logExporterOpts...)
		if err != nil {
			return fmt.Errorf("failed to create log exporter: %w", err)
		}
		loggerProvider = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)
		otelLogger = loggerProvider.Logger("systrument")
	}

	opts := otelspan.Options{}
	if c.RelativeNow {
		now := time.Now()
		opts.RelativeTo = &now
	}
	if c.TraceIDSeed != "" {
		tid, spid := otelspan.DeriveIDs(c.TraceIDSeed)
		opts.FixedTraceID = &tid
		opts.FixedParentSpanID = &spid
	}

	tracer := tracerProvider.Tracer("systrument")
	sink := otelspan.New(tracer, otelLogger, opts)

	if err := runPipeline(in, logger, WindowSize, sink, inputName(c.Args.Input)); err != nil {
		return err
	}
	sink.Close()

	if loggerProvider != nil {
		if err := loggerProvider.Shutdown(ctx); err != nil {
			logger.Warn("failed to shut down logger provider", zap.Error(err))
		}
	}

	return nil
}
