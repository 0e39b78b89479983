package logger

import (
	"context"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSessionFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := Logger
	Logger = zap.New(core)
	t.Cleanup(func() { Logger = prev })

	ForSession("onboarding", "s-1").Info("answer accepted", QuestionKey("email"), MessageID("m-1"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "onboarding", fields["component"])
	assert.Equal(t, "s-1", fields[FieldSessionID])
	assert.Equal(t, "email", fields[FieldQuestionKey])
	assert.Equal(t, "m-1", fields[FieldMessageID])
}

func TestTraceFields(t *testing.T) {
	assert.Nil(t, Trace(context.Background()))

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	fields := Trace(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, "trace_id", fields[0].Key)
	assert.Equal(t, traceID.String(), fields[0].String)
	assert.Equal(t, spanID.String(), fields[1].String)
}

func TestParseZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseZapLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseZapLevel("WARN"))
	assert.Equal(t, zapcore.InfoLevel, parseZapLevel("verbose"))
	assert.Equal(t, hlog.LevelError, toHlogLevel(zapcore.ErrorLevel))
	assert.Equal(t, hlog.LevelInfo, toHlogLevel(zapcore.PanicLevel))
}
