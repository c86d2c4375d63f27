package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	var transitions []State
	cfg := DefaultConfig("text-service")
	cfg.Timeout = time.Hour
	cfg.OnStateChange = func(_ string, to State) { transitions = append(transitions, to) }

	cb, err := New(cfg, nil)
	require.NoError(t, err)

	boom := errors.New("upstream 529")
	for i := 0; i < int(cfg.FailureThreshold); i++ {
		_, err := cb.Execute(context.Background(), func() (interface{}, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	}

	assert.True(t, cb.IsOpen())
	assert.Equal(t, []State{StateOpen}, transitions)

	called := false
	_, err = cb.Execute(context.Background(), func() (interface{}, error) {
		called = true
		return "x", nil
	})
	assert.True(t, IsOpenError(err))
	assert.False(t, called)
}

func TestCircuitBreaker_CancellationIsNotFailure(t *testing.T) {
	cfg := DefaultConfig("text-service")
	cb, err := New(cfg, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(context.Background(), func() (interface{}, error) { return nil, context.Canceled })
	}
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestState_Value(t *testing.T) {
	assert.Equal(t, 0.0, StateClosed.Value())
	assert.Equal(t, 1.0, StateOpen.Value())
	assert.Equal(t, 2.0, StateHalfOpen.Value())
}
