// Package otelspan translates Analyzer Events into nested spans keyed by
// pid, with parent linkage via owner pid, plus optional log records
// correlated to the current span. It builds on the OpenTelemetry Go SDK on
// the exporting side, shipping spans out over OTLP/HTTP rather than
// ingesting them.
package otelspan

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/kylewlacy/systrument/internal/strace"
)

// Options configures the sink.
type Options struct {
	// RelativeTo, if non-nil, rebases every emitted timestamp so that the
	// first event lands at *RelativeTo and subsequent events are offset by
	// the same delta from the first event's original timestamp.
	RelativeTo *time.Time

	// FixedTraceID and FixedParentSpanID seed the root span's identity,
	// letting a caller stitch this run's spans into a larger trace.
	FixedTraceID     *trace.TraceID
	FixedParentSpanID *trace.SpanID
}

// Sink turns a stream of Analyzer Events into OTel spans and log records.
type Sink struct {
	tracer trace.Tracer
	logger otellog.Logger
	opts   Options

	rootCtx    context.Context
	rootSpan   trace.Span
	rootStart  bool
	liveSpans  map[strace.Pid]trace.Span
	liveCtx    map[strace.Pid]context.Context

	firstEventTs time.Time
	haveFirst    bool
	lastAdjusted time.Time
}

// New constructs a Sink. logger may be nil when log export is disabled.
func New(tracer trace.Tracer, logger otellog.Logger, opts Options) *Sink {
	return &Sink{
		tracer:    tracer,
		logger:    logger,
		opts:      opts,
		liveSpans: make(map[strace.Pid]trace.Span),
		liveCtx:   make(map[strace.Pid]context.Context),
	}
}

// adjustTimestamp applies timestamp rebasing: the first event's timestamp
// initializes firstEventTs; if a RelativeTo base B is set, every emitted
// timestamp becomes B + (event_ts - firstEventTs).
func (s *Sink) adjustTimestamp(ts time.Time) time.Time {
	if !s.haveFirst {
		s.firstEventTs = ts
		s.haveFirst = true
	}
	var adjusted time.Time
	if s.opts.RelativeTo != nil {
		adjusted = s.opts.RelativeTo.Add(ts.Sub(s.firstEventTs))
	} else {
		adjusted = ts
	}
	s.lastAdjusted = adjusted
	return adjusted
}

func (s *Sink) ensureRoot(ctx context.Context, ts time.Time) (context.Context, trace.Span) {
	if s.rootStart {
		return s.rootCtx, s.rootSpan
	}
	s.rootStart = true

	parentCtx := ctx
	if s.opts.FixedTraceID != nil {
		var parentSpanID trace.SpanID
		if s.opts.FixedParentSpanID != nil {
			parentSpanID = *s.opts.FixedParentSpanID
		}
		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    *s.opts.FixedTraceID,
			SpanID:     parentSpanID,
			TraceFlags: trace.FlagsSampled,
			Remote:     true,
		})
		parentCtx = trace.ContextWithSpanContext(ctx, sc)
	}

	rootCtx, rootSpan := s.tracer.Start(parentCtx, "systrument", trace.WithTimestamp(ts))
	s.rootCtx, s.rootSpan = rootCtx, rootSpan
	return rootCtx, rootSpan
}

// OutputEvent translates one Event into span lifecycle operations and, if a
// logger is configured, a correlated log record.
func (s *Sink) OutputEvent(event strace.Event) error {
	ts := s.adjustTimestamp(event.Timestamp.Time())
	ctx := context.Background()

	switch event.Kind {
	case strace.EventExec:
		s.handleExec(ctx, event, ts)
	case strace.EventStop:
		s.handleStop(event, ts)
	}

	if s.logger != nil {
		s.emitLog(event, ts)
	}

	return nil
}

func (s *Sink) handleExec(ctx context.Context, event strace.Event, ts time.Time) {
	parentCtx, _ := s.ensureRoot(ctx, ts)
	if event.OwnerPid != nil {
		if ownerCtx, ok := s.liveCtx[*event.OwnerPid]; ok {
			parentCtx = ownerCtx
		}
	}

	if prevSpan, ok := s.liveSpans[event.Pid]; ok {
		prevSpan.SetAttributes(attribute.Bool("re_exec", true))
		prevSpan.End(trace.WithTimestamp(ts))
	}

	name := "process <pid>"
	if cn := event.Exec.Exec.CommandName(); cn != nil {
		name = *cn
	} else {
		name = fmt.Sprintf("process %d", event.Pid)
	}

	attrs := []attribute.KeyValue{
		attribute.Int64("pid", int64(event.Pid)),
	}
	if event.ParentPid != nil {
		attrs = append(attrs, attribute.Int64("parent_pid", int64(*event.ParentPid)))
	}
	if event.OwnerPid != nil {
		attrs = append(attrs, attribute.Int64("owner_pid", int64(*event.OwnerPid)))
	}
	if cn := event.Exec.Exec.CommandName(); cn != nil {
		attrs = append(attrs, attribute.String("command_name", *cn))
	}
	if event.Exec.Exec.Command != nil {
		attrs = append(attrs, attribute.String("command", *event.Exec.Exec.Command))
	}
	if event.Exec.Exec.Args != nil {
		attrs = append(attrs, attribute.StringSlice("args", event.Exec.Exec.Args))
	}
	for _, e := range event.Exec.Exec.Env {
		attrs = append(attrs, attribute.String("env."+e.Name, e.Value))
	}

	childCtx, span := s.tracer.Start(parentCtx, name, trace.WithTimestamp(ts), trace.WithAttributes(attrs...))
	s.liveSpans[event.Pid] = span
	s.liveCtx[event.Pid] = childCtx
}

func (s *Sink) handleStop(event strace.Event, ts time.Time) {
	span, ok := s.liveSpans[event.Pid]
	if !ok {
		return
	}
	delete(s.liveSpans, event.Pid)
	delete(s.liveCtx, event.Pid)

	switch event.Stop.Reason.Kind {
	case strace.StopExited:
		code := int64(0)
		if event.Stop.Reason.Code != nil {
			code = int64(*event.Stop.Reason.Code)
		}
		span.SetAttributes(
			attribute.Int64("exit_code", code),
			attribute.Bool("exit_ok", code == 0),
		)
	case strace.StopKilled:
		attrs := []attribute.KeyValue{attribute.Bool("exit_ok", false)}
		if event.Stop.Reason.Signal != nil {
			attrs = append(attrs, attribute.String("exit_signal", *event.Stop.Reason.Signal))
		}
		span.SetAttributes(attrs...)
	}
	span.End(trace.WithTimestamp(ts))
}

func (s *Sink) emitLog(event strace.Event, ts time.Time) {
	var record otellog.Record
	record.SetTimestamp(ts)
	record.SetBody(otellog.StringValue(renderRecord(event.Line)))
	record.AddAttributes(
		otellog.Int64("pid", int64(event.Pid)),
	)
	if event.ParentPid != nil {
		record.AddAttributes(otellog.Int64("parent_pid", int64(*event.ParentPid)))
	}
	if event.OwnerPid != nil {
		record.AddAttributes(otellog.Int64("owner_pid", int64(*event.OwnerPid)))
	}

	ctx := context.Background()
	if span, ok := s.liveSpans[event.Pid]; ok {
		ctx = trace.ContextWithSpanContext(ctx, span.SpanContext())
	} else if event.OwnerPid != nil {
		if span, ok := s.liveSpans[*event.OwnerPid]; ok {
			ctx = trace.ContextWithSpanContext(ctx, span.SpanContext())
		} else if s.rootStart {
			ctx = trace.ContextWithSpanContext(ctx, s.rootSpan.SpanContext())
		}
	} else if s.rootStart {
		ctx = trace.ContextWithSpanContext(ctx, s.rootSpan.SpanContext())
	}

	s.logger.Emit(ctx, record)
}

// renderRecord produces the human-readable body used for the correlated log
// record: "name(args) = result" for a syscall, "--- signal ---" for a bare
// signal, and the +++ lines verbatim for lifecycle records.
func renderRecord(line strace.Line) string {
	switch line.Body.Kind {
	case strace.BodySyscall:
		return line.Body.ArgsText + " = " + line.Body.ResultText
	case strace.BodySignal:
		return fmt.Sprintf("--- %s ---", line.Body.SignalText)
	case strace.BodyExited:
		return fmt.Sprintf("+++ exited with %s +++", line.Body.CodeText)
	case strace.BodyKilledBy:
		return fmt.Sprintf("+++ killed by %s +++", line.Body.SignalText)
	default:
		return line.Raw
	}
}

// Close ends the root span at the last adjusted timestamp seen. The root
// span is started by the first Exec event; if no Exec event was seen there
// is no root span and Close does nothing. It must be called before the
// tracer provider is shut down so the root span is flushed with the rest.
func (s *Sink) Close() {
	if !s.rootStart {
		return
	}
	end := time.Now()
	if s.haveFirst {
		end = s.lastAdjusted
	}
	s.rootSpan.End(trace.WithTimestamp(end))
}
