package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Batch metrics
	BatchesTotal  *prometheus.CounterVec
	BatchDuration *prometheus.HistogramVec
	BatchesActive prometheus.Gauge

	// Node/task execution metrics
	NodesExecutedTotal    *prometheus.CounterVec
	NodeDuration          *prometheus.HistogramVec
	NodeErrors            *prometheus.CounterVec
	TaskStatusTransitions *prometheus.CounterVec

	// LLM metrics
	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
	LLMTokensTotal     *prometheus.CounterVec
	LLMErrors          *prometheus.CounterVec

	// Session store metrics
	SessionOperationsTotal   *prometheus.CounterVec
	SessionOperationDuration *prometheus.HistogramVec
	SessionErrors            *prometheus.CounterVec

	// Event bus metrics
	EventsPublishedTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "duragraph"
	}

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_size_bytes",
				Help:      "HTTP request size in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Batch metrics
		BatchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Total number of batches created",
			},
			[]string{"canvas_id"},
		),
		BatchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Batch duration in seconds, from creation to finish",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"canvas_id"},
		),
		BatchesActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "batches_active",
				Help:      "Number of currently executing batches",
			},
		),

		// Node/task execution metrics
		NodesExecutedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_executed_total",
				Help:      "Total number of nodes executed",
			},
			[]string{"node_type", "status"},
		),
		NodeDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "node_duration_seconds",
				Help:      "Node execution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"node_type"},
		),
		NodeErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_errors_total",
				Help:      "Total number of node execution errors, keyed by the failing domain error code",
			},
			[]string{"node_type", "error_type"},
		),
		TaskStatusTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_status_transitions_total",
				Help:      "Total number of task status transitions",
			},
			[]string{"from_status", "to_status"},
		),

		// LLM metrics
		LLMRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_requests_total",
				Help:      "Total number of LLM requests",
			},
			[]string{"provider", "model", "status"},
		),
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "LLM request duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"provider", "model"},
		),
		LLMTokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_total",
				Help:      "Total number of LLM tokens used",
			},
			[]string{"provider", "model", "type"},
		),
		LLMErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_errors_total",
				Help:      "Total number of LLM errors",
			},
			[]string{"provider", "model", "error_type"},
		),

		// Session store metrics
		SessionOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_operations_total",
				Help:      "Total number of session store operations",
			},
			[]string{"operation", "status"},
		),
		SessionOperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_operation_duration_seconds",
				Help:      "Session store operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		SessionErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_errors_total",
				Help:      "Total number of session store errors",
			},
			[]string{"operation", "error_type"},
		),

		// Event bus metrics
		EventsPublishedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Total number of domain events published",
			},
			[]string{"event_type"},
		),
	}
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration, reqSize, respSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, string(rune(status))).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

// RecordBatchCreated records a batch creation
func (m *Metrics) RecordBatchCreated(canvasID string) {
	m.BatchesTotal.WithLabelValues(canvasID).Inc()
	m.BatchesActive.Inc()
}

// RecordBatchCompleted records a batch finishing, successfully or not
func (m *Metrics) RecordBatchCompleted(canvasID string, duration time.Duration) {
	m.BatchDuration.WithLabelValues(canvasID).Observe(duration.Seconds())
	m.BatchesActive.Dec()
}

// RecordNodeExecution records node execution
func (m *Metrics) RecordNodeExecution(nodeType, status string, duration time.Duration) {
	m.NodesExecutedTotal.WithLabelValues(nodeType, status).Inc()
	m.NodeDuration.WithLabelValues(nodeType).Observe(duration.Seconds())
}

// RecordNodeError records a node execution failure, keyed by the error code
// a *errors.DomainError (or a resolver.ResolverError wrapping one) carries.
func (m *Metrics) RecordNodeError(nodeType, errorType string) {
	m.NodeErrors.WithLabelValues(nodeType, errorType).Inc()
}

// RecordTaskStatusTransition records one task moving between lifecycle states.
func (m *Metrics) RecordTaskStatusTransition(from, to string) {
	m.TaskStatusTransitions.WithLabelValues(from, to).Inc()
}

// RecordLLMRequest records an LLM request
func (m *Metrics) RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	m.LLMRequestsTotal.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	m.LLMTokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	m.LLMTokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// RecordLLMError records an LLM request failure.
func (m *Metrics) RecordLLMError(provider, model, errorType string) {
	m.LLMErrors.WithLabelValues(provider, model, errorType).Inc()
}

// RecordSessionOperation records a session store operation's outcome and latency.
func (m *Metrics) RecordSessionOperation(operation, status string, duration time.Duration) {
	m.SessionOperationsTotal.WithLabelValues(operation, status).Inc()
	m.SessionOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSessionError records a session store operation failure, keyed by the
// DomainError code the operation returned (e.g. SESSION_NOT_FOUND or
// INTERNAL_ERROR).
func (m *Metrics) RecordSessionError(operation, errorType string) {
	m.SessionErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordEventPublished records one domain event handed to the event bus.
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublishedTotal.WithLabelValues(eventType).Inc()
}
