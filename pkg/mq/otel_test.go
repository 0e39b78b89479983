package mq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestInjectAndExtractTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	original := amqp.Table{"x-source": "onboarding"}
	headers := InjectHeaders(ctx, original)

	assert.Equal(t, "onboarding", headers["x-source"])
	assert.NotContains(t, original, "traceparent", "input table must not be mutated")
	assert.Contains(t, HeaderCarrier(headers).Keys(), "traceparent")

	got := trace.SpanContextFromContext(ExtractContext(context.Background(), headers))
	assert.Equal(t, traceID, got.TraceID())
	assert.True(t, got.IsRemote())
}

func TestHeaderCarrierIgnoresNonStrings(t *testing.T) {
	c := HeaderCarrier(amqp.Table{"n": int32(1)})
	assert.Equal(t, "", c.Get("n"))
	assert.Equal(t, "", c.Get("missing"))
}
