// Package health aggregates dependency probes into the /health endpoint.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"cliquey/pkg/platform/httputil"
	"cliquey/pkg/requestcontext"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"

	defaultProbeTimeout = 2 * time.Second
)

// ProbeFunc reports whether a dependency is reachable.
type ProbeFunc func(ctx context.Context) error

type probe struct {
	name  string
	check ProbeFunc
}

// Checker runs every registered probe concurrently.
type Checker struct {
	probes  []probe
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Checker)

func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

func New(opts ...Option) *Checker {
	c := &Checker{timeout: defaultProbeTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add registers a probe. A nil check is ignored so optional backends can be
// passed unconditionally.
func (c *Checker) Add(name string, check ProbeFunc) {
	if check == nil {
		return
	}
	c.probes = append(c.probes, probe{name: name, check: check})
}

// Report is the JSON body of /health.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Check runs all probes and waits for every one of them; one failing probe
// does not cancel the others.
func (c *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results := make([]string, len(c.probes))
	var g errgroup.Group
	for i, p := range c.probes {
		g.Go(func() error {
			if err := p.check(ctx); err != nil {
				c.logger.WarnContext(ctx, "health probe failed",
					"request_id", requestcontext.RequestID(ctx),
					"probe", p.name,
					"error", err,
				)
				results[i] = err.Error()
				return nil
			}
			results[i] = StatusOK
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Status: StatusOK, Checks: make(map[string]string, len(c.probes))}
	for i, p := range c.probes {
		report.Checks[p.name] = results[i]
		if results[i] != StatusOK {
			report.Status = StatusDegraded
		}
	}
	return report
}

// Handler serves GET /health: 200 when every probe passes, 503 otherwise.
func (c *Checker) Handler(w http.ResponseWriter, r *http.Request) {
	report := c.Check(r.Context())
	status := http.StatusOK
	if report.Status != StatusOK {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, report)
}
