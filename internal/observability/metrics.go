package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors used across the service.
type Metrics struct {
	Registry *prometheus.Registry

	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	errors         *prometheus.CounterVec
	aiLatency      *prometheus.HistogramVec
	analyses       *prometheus.CounterVec
	detections     *prometheus.CounterVec
	tickets        *prometheus.CounterVec
	jobs           *prometheus.CounterVec
	operations     *prometheus.CounterVec
}

// NewMetrics builds collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "servicedesk",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"path", "method", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "servicedesk",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "servicedesk",
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "HTTP errors by route, method and error code",
		}, []string{"path", "method", "code"}),
		aiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "servicedesk",
			Subsystem: "ai",
			Name:      "generate_latency_seconds",
			Help:      "Latency of AI text generation calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 8, 10, 15, 20, 30},
		}, []string{"model", "status"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "servicedesk",
			Subsystem: "analyzer",
			Name:      "analyses_total",
			Help:      "Message analyses by result source (ai or heuristic)",
		}, []string{"source"}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "servicedesk",
			Subsystem: "detector",
			Name:      "failed_call_detections_total",
			Help:      "Failed-call detector verdicts by trigger category",
		}, []string{"category"}),
		tickets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "servicedesk",
			Subsystem: "tickets",
			Name:      "created_total",
			Help:      "Service tickets created by priority",
		}, []string{"priority"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "servicedesk",
			Subsystem: "jobs",
			Name:      "processed_total",
			Help:      "Delayed jobs processed by type and outcome",
		}, []string{"type", "outcome"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "servicedesk",
			Subsystem: "agent",
			Name:      "operations_total",
			Help:      "Task agent operations by action and outcome kind",
		}, []string{"action", "kind"}),
	}
	m.Registry.MustRegister(
		m.requests, m.requestLatency, m.errors, m.aiLatency,
		m.analyses, m.detections, m.tickets, m.jobs, m.operations,
	)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// ObserveAI records one AI call.
func (m *Metrics) ObserveAI(model, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.aiLatency.WithLabelValues(model, status).Observe(duration.Seconds())
}

// RecordAnalysis counts analyzer results by source.
func (m *Metrics) RecordAnalysis(source string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(source).Inc()
}

// RecordDetection counts failed-call verdicts; category "none" for misses.
func (m *Metrics) RecordDetection(category string) {
	if m == nil {
		return
	}
	if category == "" {
		category = "none"
	}
	m.detections.WithLabelValues(category).Inc()
}

// RecordTicketCreated counts created tickets.
func (m *Metrics) RecordTicketCreated(priority string) {
	if m == nil {
		return
	}
	m.tickets.WithLabelValues(priority).Inc()
}

// RecordJob counts processed jobs.
func (m *Metrics) RecordJob(jobType, outcome string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(jobType, outcome).Inc()
}

// RecordOperation counts task agent outcomes.
func (m *Metrics) RecordOperation(action, kind string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(action, kind).Inc()
}
