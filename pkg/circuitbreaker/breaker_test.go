package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreaker(openTimeout time.Duration) *Breaker {
	return New("test", Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      openTimeout,
		MaxProbes:        1,
	})
}

func fail() error    { return errors.New("downstream unavailable") }
func succeed() error { return nil }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := testBreaker(time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Error(t, b.Execute(ctx, fail))
	}

	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Execute(ctx, succeed), ErrOpen)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := testBreaker(time.Minute)
	ctx := context.Background()

	assert.Error(t, b.Execute(ctx, fail))
	assert.Error(t, b.Execute(ctx, fail))
	require.NoError(t, b.Execute(ctx, succeed))
	assert.Error(t, b.Execute(ctx, fail))
	assert.Error(t, b.Execute(ctx, fail))

	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpensAfterTimeoutAndCloses(t *testing.T) {
	b := testBreaker(5 * time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		b.Execute(ctx, fail)
	}
	require.Equal(t, StateOpen, b.State())

	time.Sleep(10 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Execute(ctx, succeed))
	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b := testBreaker(5 * time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		b.Execute(ctx, fail)
	}

	time.Sleep(10 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	assert.Error(t, b.Execute(ctx, fail))
	assert.Equal(t, StateOpen, b.State())
}
