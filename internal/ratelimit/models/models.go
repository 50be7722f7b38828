package models

import (
	"strings"
	"time"
)

// EndpointClass groups routes that share a request budget.
type EndpointClass string

const (
	// ClassAuth covers credential endpoints: /login and /register.
	ClassAuth EndpointClass = "auth"
)

// Limit is a sliding-window budget: at most Requests within any Window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// RateLimitResult describes the outcome of one check against a bucket.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is in whole seconds and only set when the request was denied.
	RetryAfter int
}

// NewIPKey builds the bucket key for a client address within a class.
func NewIPKey(class EndpointClass, ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + string(class) + ":" + ip
}

// RetryAfterSeconds rounds the wait until resetAt up to whole seconds, never below one.
func RetryAfterSeconds(now, resetAt time.Time) int {
	wait := resetAt.Sub(now)
	secs := int((wait + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
