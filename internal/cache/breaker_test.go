package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker("test", 2, time.Minute)
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")
	ctx := context.Background()

	assert.ErrorIs(t, cb.Call(ctx, func() error { return boom }), boom)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Call(ctx, func() error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Call(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)

	now = now.Add(time.Minute)
	require.NoError(t, cb.Call(ctx, func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker("test", 1, time.Second)
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	_ = cb.Call(ctx, func() error { return errors.New("x") })
	require.Equal(t, StateOpen, cb.GetState())

	now = now.Add(time.Second)
	_ = cb.Call(ctx, func() error { return errors.New("still down") })
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Call(ctx, func() error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.GetState())
}
