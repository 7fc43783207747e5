// Package metrics exposes Prometheus collectors for the identity service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dtroode/prakriti-server/internal/model"
)

const namespace = "prakriti"

var _ model.MetricsRecorder = (*Metrics)(nil)

// Metrics owns a private registry so tests can create as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	stageSubmissions *prometheus.CounterVec
	logins           *prometheus.CounterVec
	lockouts         prometheus.Counter
	codesIssued      *prometheus.CounterVec
	deliveryFailures *prometheus.CounterVec
	archiveFailures  prometheus.Counter
	requestDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_submissions_total",
			Help:      "Registration stage submissions by stage and outcome.",
		}, []string{"stage", "outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_lockouts_total",
			Help:      "Accounts locked after repeated login failures.",
		}),
		codesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_codes_issued_total",
			Help:      "Verification codes issued by reason.",
		}, []string{"reason"}),
		deliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Outbound deliveries that failed, by channel.",
		}, []string{"channel"}),
		archiveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_archive_failures_total",
			Help:      "Registration archives that could not be written.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.stageSubmissions,
		m.logins,
		m.lockouts,
		m.codesIssued,
		m.deliveryFailures,
		m.archiveFailures,
		m.requestDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) StageSubmitted(stage model.Stage, outcome string) {
	m.stageSubmissions.WithLabelValues(string(stage), outcome).Inc()
}

func (m *Metrics) LoginAttempt(outcome string) {
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AccountLocked() {
	m.lockouts.Inc()
}

func (m *Metrics) CodeIssued(reason string) {
	m.codesIssued.WithLabelValues(reason).Inc()
}

func (m *Metrics) DeliveryFailed(channel string) {
	m.deliveryFailures.WithLabelValues(channel).Inc()
}

func (m *Metrics) ArchiveFailed() {
	m.archiveFailures.Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	m.requestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(d.Seconds())
}
