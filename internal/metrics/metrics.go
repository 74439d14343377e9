// Package metrics collects Prometheus metrics for the portal backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector is what services and workers record through.
type MetricsCollector interface {
	RecordLogin(outcome string)
	RecordAuthEvent(event string, suppressed bool)
	RecordProfileFetchRetry(table string)
	RecordNotification(channel, status string)
	RecordHTTPRequest(method, path string, status int, d time.Duration)
}

// Collector is the Prometheus-backed MetricsCollector.
type Collector struct {
	logins        *prometheus.CounterVec
	authEvents    *prometheus.CounterVec
	fetchRetries  *prometheus.CounterVec
	notifications *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "auth_events_total",
			Help:      "Auth-state events seen by session listeners",
		}, []string{"event", "suppressed"}),
		fetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "profile_fetch_retries_total",
			Help:      "Profile fetch retries after transient store errors",
		}, []string{"table"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "notifications_total",
			Help:      "Email and SMS jobs by status",
		}, []string{"channel", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "path"}),
	}
	reg.MustRegister(c.logins, c.authEvents, c.fetchRetries, c.notifications, c.httpRequests, c.httpDuration)
	return c
}

func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordAuthEvent(event string, suppressed bool) {
	c.authEvents.WithLabelValues(event, strconv.FormatBool(suppressed)).Inc()
}

func (c *Collector) RecordProfileFetchRetry(table string) {
	c.fetchRetries.WithLabelValues(table).Inc()
}

func (c *Collector) RecordNotification(channel, status string) {
	c.notifications.WithLabelValues(channel, status).Inc()
}

func (c *Collector) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// Nop discards everything; used when metrics are disabled and in tests.
type Nop struct{}

func (Nop) RecordLogin(string)                                   {}
func (Nop) RecordAuthEvent(string, bool)                         {}
func (Nop) RecordProfileFetchRetry(string)                       {}
func (Nop) RecordNotification(string, string)                    {}
func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}

// Handler serves the gatherer for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
