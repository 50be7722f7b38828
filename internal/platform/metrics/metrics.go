package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	UsersRegistered   prometheus.Counter
	Logins            *prometheus.CounterVec
	InvitationsIssued prometheus.Counter
	ProfileViews      prometheus.Counter
	Ratings           prometheus.Counter
	TxRetries         *prometheus.CounterVec
	RateLimited       *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry registers on reg. Tests pass a fresh prometheus.NewRegistry()
// so repeated construction does not panic on duplicate registration.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UsersRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "cliquey_users_registered_total",
			Help: "Total number of users registered through an invitation code",
		}),
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cliquey_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		InvitationsIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "cliquey_invitations_issued_total",
			Help: "Total number of invitation codes issued",
		}),
		ProfileViews: f.NewCounter(prometheus.CounterOpts{
			Name: "cliquey_profile_views_total",
			Help: "Total number of public profile views",
		}),
		Ratings: f.NewCounter(prometheus.CounterOpts{
			Name: "cliquey_ratings_total",
			Help: "Total number of accepted profile ratings",
		}),
		TxRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cliquey_tx_retries_total",
			Help: "Aggregate updates retried after a serialization conflict",
		}, []string{"operation"}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cliquey_rate_limited_total",
			Help: "Requests rejected by the rate limiter by endpoint class",
		}, []string{"class"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cliquey_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		gatherer: gatherer,
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) IncrementUsersRegistered() {
	m.UsersRegistered.Inc()
}

// IncrementLogins records a login attempt with result "success" or "failure".
func (m *Metrics) IncrementLogins(result string) {
	m.Logins.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementInvitationsIssued() {
	m.InvitationsIssued.Inc()
}

func (m *Metrics) IncrementProfileViews() {
	m.ProfileViews.Inc()
}

func (m *Metrics) IncrementRatings() {
	m.Ratings.Inc()
}

func (m *Metrics) IncrementTxRetries(operation string) {
	m.TxRetries.WithLabelValues(operation).Inc()
}

func (m *Metrics) IncrementRateLimited(class string) {
	m.RateLimited.WithLabelValues(class).Inc()
}

func (m *Metrics) ObserveRequestDuration(route, method, status string, seconds float64) {
	m.RequestDuration.WithLabelValues(route, method, status).Observe(seconds)
}
