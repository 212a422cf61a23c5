package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/planexec/planexec/telemetry"
)

// These exist mainly so the no-op implementations stay call-compatible with
// the Logger/Metrics/Tracer interfaces as those evolve; there is no
// observable behavior to assert beyond "does not panic".
func TestNoopImplementationsDoNotPanic(t *testing.T) {
	logger := telemetry.NewNoopLogger()
	logger.Debug(context.Background(), "msg", "k", "v")
	logger.Info(context.Background(), "msg")
	logger.Warn(context.Background(), "msg")
	logger.Error(context.Background(), "msg")

	metrics := telemetry.NewNoopMetrics()
	metrics.IncCounter("c", 1, "tag", "v")
	metrics.RecordTimer("t", time.Millisecond)
	metrics.RecordGauge("g", 1.0)

	tracer := telemetry.NewNoopTracer()
	ctx, span := tracer.Start(context.Background(), "span")
	span.AddEvent("event")
	span.SetStatus(0, "ok")
	span.RecordError(nil)
	span.End()
	_ = ctx
}
