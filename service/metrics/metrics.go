package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Serial Stream Metrics
	serialBytesReceived  prometheus.Counter
	serialLinesFramed    prometheus.Counter
	serialBufferDrops    prometheus.Counter
	serialLinesDiscarded *prometheus.CounterVec

	// Transaction Processing Metrics
	transactionsTotal   *prometheus.CounterVec
	transactionDuration prometheus.Histogram
	deviceWriteFailures prometheus.Counter
	storeFailuresTotal  *prometheus.CounterVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Serial Stream Metrics
		serialBytesReceived: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "serial_bytes_received_total",
				Help: "Total number of bytes received from the serial device",
			},
		),
		serialLinesFramed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "serial_lines_framed_total",
				Help: "Total number of complete lines framed from the serial stream",
			},
		),
		serialBufferDrops: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "serial_buffer_drops_total",
				Help: "Total number of framer buffer overflows that discarded buffered bytes",
			},
		),
		serialLinesDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "serial_lines_discarded_total",
				Help: "Total number of lines that matched no pattern for the current protocol state",
			},
			[]string{"state"},
		),

		// Transaction Processing Metrics
		transactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_total",
				Help: "Total number of processed transaction requests by outcome",
			},
			[]string{"outcome"},
		),
		transactionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "transaction_duration_seconds",
				Help:    "Duration of transaction processing including store round-trips",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5},
			},
		),
		deviceWriteFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "device_write_failures_total",
				Help: "Total number of failed status-line writes back to the device",
			},
		),
		storeFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_failures_total",
				Help: "Total number of abandoned transactions due to store errors",
			},
			[]string{"operation"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Serial stream metric helpers

// RecordSerialBytes records bytes received from the device.
func (m *Metrics) RecordSerialBytes(n int) {
	m.serialBytesReceived.Add(float64(n))
}

// RecordLinesFramed records complete lines extracted from the stream.
func (m *Metrics) RecordLinesFramed(n int) {
	m.serialLinesFramed.Add(float64(n))
}

// RecordBufferDrop records a framer buffer overflow.
func (m *Metrics) RecordBufferDrop() {
	m.serialBufferDrops.Inc()
}

// RecordLineDiscarded records a line that matched no pattern for the state.
func (m *Metrics) RecordLineDiscarded(state string) {
	m.serialLinesDiscarded.WithLabelValues(state).Inc()
}

// Transaction metric helpers

// RecordTransaction records a processed transaction request with its outcome
// ("debit_applied", "insufficient_funds", "unknown_tag") and duration.
func (m *Metrics) RecordTransaction(outcome string, duration float64) {
	m.transactionsTotal.WithLabelValues(outcome).Inc()
	m.transactionDuration.Observe(duration)
}

// RecordDeviceWriteFailure records a failed reply write to the device.
func (m *Metrics) RecordDeviceWriteFailure() {
	m.deviceWriteFailures.Inc()
}

// RecordStoreFailure records a transaction abandoned because a store call failed.
func (m *Metrics) RecordStoreFailure(operation string) {
	m.storeFailuresTotal.WithLabelValues(operation).Inc()
}

// Database metric helpers

// RecordDBQuery records a database query with duration and outcome.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)

	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusClass(statusCode)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// statusClass converts a status code to its class label ("2xx", "4xx", ...).
func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
