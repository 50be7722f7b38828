package middleware

import (
	"context"
	"log/slog"

	"cliquey/internal/ratelimit/models"
	"cliquey/pkg/platform/circuit"
)

// BucketStore is a sliding-window counter keyed by string.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit models.Limit) (*models.RateLimitResult, error)
}

// Limiter checks a primary store and switches to an in-process fallback while
// the primary keeps failing. Degraded reports whether the answer came from the
// fallback.
type Limiter struct {
	primary  BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

type LimiterOption func(*Limiter)

func WithFallback(store BucketStore) LimiterOption {
	return func(l *Limiter) {
		l.fallback = store
	}
}

func WithBreaker(b *circuit.Breaker) LimiterOption {
	return func(l *Limiter) {
		if b != nil {
			l.breaker = b
		}
	}
}

func WithLimiterLogger(logger *slog.Logger) LimiterOption {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewLimiter(primary BucketStore, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		primary: primary,
		breaker: circuit.New("ratelimit"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check consults the primary store unless its circuit is open. Errors from the
// primary are returned only when there is no fallback.
func (l *Limiter) Check(ctx context.Context, key string, limit models.Limit) (result *models.RateLimitResult, degraded bool, err error) {
	if !l.breaker.Allow() && l.fallback != nil {
		result, err = l.fallback.Allow(ctx, key, limit)
		return result, true, err
	}

	result, err = l.primary.Allow(ctx, key, limit)
	if err == nil {
		if _, change := l.breaker.RecordSuccess(); change.Closed {
			l.logger.InfoContext(ctx, "rate limit store recovered", "breaker", l.breaker.Name())
		}
		return result, false, nil
	}

	if _, change := l.breaker.RecordFailure(); change.Opened {
		l.logger.WarnContext(ctx, "rate limit store failing, using in-memory fallback",
			"breaker", l.breaker.Name(),
			"error", err,
		)
	}
	if l.fallback == nil {
		return nil, false, err
	}
	result, err = l.fallback.Allow(ctx, key, limit)
	return result, true, err
}
