package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

func TestContextHandlerAddsSpanIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info")

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.With(slog.String("component", "orders")).InfoContext(ctx, "order placed")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", rec["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", rec["span_id"])
	assert.Equal(t, "orders", rec["component"])
}

func TestContextHandlerWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "info").InfoContext(context.Background(), "no span")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.NotContains(t, rec, "trace_id")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "warn").Info("dropped")
	assert.Zero(t, buf.Len())
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "collector:4317", stripScheme("http://collector:4317"))
	assert.Equal(t, "collector:4317", stripScheme("https://collector:4317"))
	assert.Equal(t, "localhost:4317", stripScheme("localhost:4317"))
}

func TestStdoutTracerWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := SetupStdoutTracer(&buf, "fulfillment-service", "test")
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "orders.PlaceOrder")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name":"orders.PlaceOrder"`)
	assert.Contains(t, buf.String(), "fulfillment-service")
}

func TestStdoutMeterFlushesOnShutdown(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := SetupStdoutMeter(&buf, "fulfillment-service", "test")
	require.NoError(t, err)

	counter, err := otel.Meter("test").Int64Counter("orders.placed")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name":"orders.placed"`)
	assert.Contains(t, buf.String(), `"Value":3`)
}
