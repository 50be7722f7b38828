package bucket

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cliquey/internal/ratelimit/models"
)

var testLimit = models.Limit{Requests: 10, Window: time.Minute}

type InMemoryBucketStoreSuite struct {
	suite.Suite
	store *InMemoryBucketStore
	now   time.Time
	ctx   context.Context
}

func TestInMemoryBucketStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryBucketStoreSuite))
}

func (s *InMemoryBucketStoreSuite) SetupTest() {
	s.now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewInMemoryBucketStore(WithClock(func() time.Time { return s.now }))
	s.ctx = context.Background()
}

func (s *InMemoryBucketStoreSuite) TestAllow() {
	s.Run("first request allowed", func() {
		result, err := s.store.Allow(s.ctx, "allow:first", testLimit)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(testLimit.Requests, result.Limit)
		s.Equal(testLimit.Requests-1, result.Remaining)
		s.Equal(s.now.Add(testLimit.Window), result.ResetAt)
	})

	s.Run("requests up to limit allowed", func() {
		var result *models.RateLimitResult
		var err error
		for range testLimit.Requests {
			result, err = s.store.Allow(s.ctx, "allow:limit", testLimit)
		}
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(0, result.Remaining)
	})

	s.Run("request over limit denied with retry hint", func() {
		for range testLimit.Requests {
			_, err := s.store.Allow(s.ctx, "allow:over", testLimit)
			s.Require().NoError(err)
		}
		result, err := s.store.Allow(s.ctx, "allow:over", testLimit)
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Equal(0, result.Remaining)
		s.Equal(60, result.RetryAfter)
	})

	s.Run("keys are independent", func() {
		for range testLimit.Requests {
			_, err := s.store.Allow(s.ctx, "allow:a", testLimit)
			s.Require().NoError(err)
		}
		result, err := s.store.Allow(s.ctx, "allow:b", testLimit)
		s.Require().NoError(err)
		s.True(result.Allowed)
	})
}

func (s *InMemoryBucketStoreSuite) TestWindowSlides() {
	limit := models.Limit{Requests: 2, Window: time.Minute}

	_, err := s.store.Allow(s.ctx, "slide", limit)
	s.Require().NoError(err)
	s.now = s.now.Add(30 * time.Second)
	_, err = s.store.Allow(s.ctx, "slide", limit)
	s.Require().NoError(err)

	result, err := s.store.Allow(s.ctx, "slide", limit)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Equal(30, result.RetryAfter, "oldest request leaves the window in 30s")

	s.now = s.now.Add(31 * time.Second)
	result, err = s.store.Allow(s.ctx, "slide", limit)
	s.Require().NoError(err)
	s.True(result.Allowed, "only the first request aged out")
	s.Equal(0, result.Remaining)
}

func (s *InMemoryBucketStoreSuite) TestReset() {
	for range testLimit.Requests {
		_, err := s.store.Allow(s.ctx, "reset", testLimit)
		s.Require().NoError(err)
	}
	s.Require().NoError(s.store.Reset(s.ctx, "reset"))

	result, err := s.store.Allow(s.ctx, "reset", testLimit)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *InMemoryBucketStoreSuite) TestSweep() {
	_, err := s.store.Allow(s.ctx, "old", testLimit)
	s.Require().NoError(err)
	s.now = s.now.Add(2 * time.Minute)
	_, err = s.store.Allow(s.ctx, "fresh", testLimit)
	s.Require().NoError(err)

	s.Equal(1, s.store.Sweep())
	s.Len(s.store.buckets, 1)
}

func (s *InMemoryBucketStoreSuite) TestConcurrentAllowNeverOvershoots() {
	const goroutines = 50
	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.store.Allow(s.ctx, "concurrent", testLimit)
			if err == nil && result.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(testLimit.Requests), allowed.Load())
}
