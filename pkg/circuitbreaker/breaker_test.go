package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestTripsOpenAfterConsecutiveFailures(t *testing.T) {
	b := New("test", Config{FailureThreshold: 3, Timeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := b.Execute(ctx, func() error { return errBoom })
		assert.ErrorIs(t, err, errBoom)
	}

	assert.Equal(t, StateOpen, b.State())

	err := b.Execute(ctx, func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	b := New("test", Config{FailureThreshold: 3, Timeout: time.Minute})
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, func() error { return errBoom }))
	require.Error(t, b.Execute(ctx, func() error { return errBoom }))
	require.NoError(t, b.Execute(ctx, func() error { return nil }))
	require.Error(t, b.Execute(ctx, func() error { return errBoom }))

	assert.Equal(t, StateClosed, b.State())
}

func TestHalfOpenProbesThenCloses(t *testing.T) {
	b := New("test", Config{
		MaxRequests:      2,
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          20 * time.Millisecond,
	})
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, func() error { return errBoom }))
	require.Equal(t, StateOpen, b.State())

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Execute(ctx, func() error { return nil }))
	require.NoError(t, b.Execute(ctx, func() error { return nil }))

	assert.Equal(t, StateClosed, b.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New("test", Config{
		FailureThreshold: 1,
		Timeout:          20 * time.Millisecond,
	})
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, func() error { return errBoom }))
	time.Sleep(30 * time.Millisecond)

	require.Error(t, b.Execute(ctx, func() error { return errBoom }))
	assert.Equal(t, StateOpen, b.State())
}

func TestStateChangeCallback(t *testing.T) {
	var transitions []string
	b := New("test", Config{
		FailureThreshold: 1,
		Timeout:          time.Minute,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	require.Error(t, b.Execute(context.Background(), func() error { return errBoom }))
	assert.Equal(t, []string{"closed->open"}, transitions)
}
