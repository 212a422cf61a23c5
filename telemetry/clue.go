package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

type (
	// clueLogger delegates to goa.design/clue/log, reading formatting and
	// debug settings from the context (set via log.Context at process start).
	clueLogger struct{}

	// otelMetrics delegates counters/timers/gauges to an OTEL meter.
	otelMetrics struct {
		meter metric.Meter
	}

	// otelTracer delegates span creation to an OTEL tracer.
	otelTracer struct {
		tracer trace.Tracer
	}

	otelSpan struct {
		span trace.Span
	}
)

// NewClueLogger returns a Logger backed by goa.design/clue/log.
func NewClueLogger() Logger { return clueLogger{} }

// NewOTELMetrics returns a Metrics recorder backed by the global OTEL
// MeterProvider, under the "github.com/planexec/planexec" meter name.
func NewOTELMetrics() Metrics {
	return otelMetrics{meter: otel.Meter("github.com/planexec/planexec")}
}

// NewOTELTracer returns a Tracer backed by the global OTEL TracerProvider.
func NewOTELTracer() Tracer {
	return otelTracer{tracer: otel.Tracer("github.com/planexec/planexec")}
}

func (clueLogger) Debug(ctx context.Context, msg string, kv ...any) {
	log.Debug(ctx, fielders(msg, kv)...)
}

func (clueLogger) Info(ctx context.Context, msg string, kv ...any) {
	log.Info(ctx, fielders(msg, kv)...)
}

func (clueLogger) Warn(ctx context.Context, msg string, kv ...any) {
	f := append(fielders(msg, kv), log.KV{K: "severity", V: "warning"})
	log.Print(ctx, f...)
}

func (clueLogger) Error(ctx context.Context, msg string, kv ...any) {
	log.Error(ctx, nil, fielders(msg, kv)...)
}

func fielders(msg string, kv []any) []log.Fielder {
	out := make([]log.Fielder, 0, len(kv)/2+1)
	out = append(out, log.KV{K: "msg", V: msg})
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, log.KV{K: key, V: kv[i+1]})
	}
	return out
}

func (m otelMetrics) IncCounter(name string, value float64, tags ...string) {
	counter, err := m.meter.Float64Counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), value, metric.WithAttributes(attrsFromTags(tags)...))
}

func (m otelMetrics) RecordTimer(name string, d time.Duration, tags ...string) {
	hist, err := m.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	hist.Record(context.Background(), d.Seconds(), metric.WithAttributes(attrsFromTags(tags)...))
}

func (m otelMetrics) RecordGauge(name string, value float64, tags ...string) {
	gauge, err := m.meter.Float64Gauge(name)
	if err != nil {
		return
	}
	gauge.Record(context.Background(), value, metric.WithAttributes(attrsFromTags(tags)...))
}

func (t otelTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, otelSpan{span: span}
}

func (s otelSpan) End(opts ...trace.SpanEndOption) { s.span.End(opts...) }

func (s otelSpan) AddEvent(name string, keyvals ...any) {
	s.span.AddEvent(name)
}

func (s otelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

func (s otelSpan) RecordError(err error, opts ...trace.EventOption) {
	s.span.RecordError(err, opts...)
}
