package middleware

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cliquey/internal/ratelimit/models"
	"cliquey/internal/ratelimit/store/bucket"
	"cliquey/pkg/platform/circuit"
)

var authLimit = models.Limit{Requests: 3, Window: time.Minute}

// flakyStore fails while down is set and counts calls.
type flakyStore struct {
	down  atomic.Bool
	calls atomic.Int32
	inner *bucket.InMemoryBucketStore
}

func newFlakyStore() *flakyStore {
	return &flakyStore{inner: bucket.NewInMemoryBucketStore()}
}

func (s *flakyStore) Allow(ctx context.Context, key string, limit models.Limit) (*models.RateLimitResult, error) {
	s.calls.Add(1)
	if s.down.Load() {
		return nil, errors.New("connection refused")
	}
	return s.inner.Allow(ctx, key, limit)
}

func TestLimiter_UsesPrimaryWhenHealthy(t *testing.T) {
	primary := newFlakyStore()
	l := NewLimiter(primary, WithFallback(bucket.NewInMemoryBucketStore()))

	result, degraded, err := l.Check(context.Background(), "k", authLimit)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.False(t, degraded)
	assert.Equal(t, int32(1), primary.calls.Load())
}

func TestLimiter_FallsBackWhilePrimaryFails(t *testing.T) {
	primary := newFlakyStore()
	primary.down.Store(true)
	l := NewLimiter(primary,
		WithFallback(bucket.NewInMemoryBucketStore()),
		WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))),
	)
	ctx := context.Background()

	for range 5 {
		result, degraded, err := l.Check(ctx, "k", models.Limit{Requests: 100, Window: time.Minute})
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.True(t, degraded)
	}
	assert.Equal(t, int32(2), primary.calls.Load(), "open circuit skips the primary")
}

func TestLimiter_FallbackStillEnforcesLimit(t *testing.T) {
	primary := newFlakyStore()
	primary.down.Store(true)
	l := NewLimiter(primary, WithFallback(bucket.NewInMemoryBucketStore()))
	ctx := context.Background()

	for range authLimit.Requests {
		result, _, err := l.Check(ctx, "k", authLimit)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}
	result, _, err := l.Check(ctx, "k", authLimit)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestLimiter_NoFallbackReturnsError(t *testing.T) {
	primary := newFlakyStore()
	primary.down.Store(true)
	l := NewLimiter(primary)

	_, _, err := l.Check(context.Background(), "k", authLimit)
	assert.Error(t, err)
}

func TestLimiter_RecoversAfterCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	primary := newFlakyStore()
	primary.down.Store(true)
	l := NewLimiter(primary,
		WithFallback(bucket.NewInMemoryBucketStore()),
		WithBreaker(circuit.New("test",
			circuit.WithFailureThreshold(1),
			circuit.WithCooldown(time.Minute),
			circuit.WithClock(func() time.Time { return now }),
		)),
	)
	ctx := context.Background()

	_, degraded, err := l.Check(ctx, "k", authLimit)
	require.NoError(t, err)
	assert.True(t, degraded)

	primary.down.Store(false)
	now = now.Add(time.Minute)

	_, degraded, err = l.Check(ctx, "k", authLimit)
	require.NoError(t, err)
	assert.False(t, degraded, "probe reaches the recovered primary")
}
