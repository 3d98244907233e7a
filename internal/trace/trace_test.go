package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	prevTracer, prevEnabled := tracer, enabled
	tracer, enabled = tp.Tracer("test"), true
	t.Cleanup(func() {
		tracer, enabled = prevTracer, prevEnabled
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestSessionSpansCarryAttributes(t *testing.T) {
	rec := recordSpans(t)

	ctx := WithSession(context.Background(), "sess-1", "SHELLUSDT")
	_, span := StartSpan(ctx, "broker.LatestPrice")
	span.End()
	_, plain := StartSpan(context.Background(), "news.fetch")
	plain.End()

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Contains(t, ended[0].Attributes(), attribute.String("session.id", "sess-1"))
	assert.Contains(t, ended[0].Attributes(), attribute.String("trading.symbol", "SHELLUSDT"))
	assert.Empty(t, ended[1].Attributes())
}

func TestSessionID(t *testing.T) {
	assert.Equal(t, "", SessionID(context.Background()))
	assert.Equal(t, "abc", SessionID(WithSession(context.Background(), "abc", "SHELLUSDT")))
}

func TestDisabledStartSpanKeepsContext(t *testing.T) {
	prev := enabled
	enabled = false
	t.Cleanup(func() { enabled = prev })

	ctx := WithSession(context.Background(), "abc", "SHELLUSDT")
	got, span := StartSpan(ctx, "noop")
	span.End()
	assert.Equal(t, ctx, got)
	_, _, ok := GetTraceFields(got)
	assert.False(t, ok)
}
