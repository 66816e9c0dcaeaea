// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rtc_orchestrator"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsStarted     *prometheus.CounterVec
	SessionsFailed      *prometheus.CounterVec
	SessionsStopped     *prometheus.CounterVec
	SessionsActive      *prometheus.GaugeVec
	SessionStartLatency *prometheus.HistogramVec

	// Health monitor metrics
	HealthChecks *prometheus.CounterVec

	// Provider REST metrics
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec

	// Frame pipeline metrics
	FramesReceived     prometheus.Counter
	FrameBytesReceived prometheus.Counter
	FramesDropped      *prometheus.CounterVec
	WordsDecoded       prometheus.Counter
	LinesFinalized     prometheus.Counter
	PartialUpdates     prometheus.Counter
	PipelinesActive    prometheus.Gauge

	// Token metrics
	TokensIssued  *prometheus.CounterVec
	TokenRenewals *prometheus.CounterVec

	// Transcript event metrics
	TranscriptEventsPublished *prometheus.CounterVec
	TranscriptPublishErrors   *prometheus.CounterVec
	TranscriptPublishLatency  *prometheus.HistogramVec

	// Transport metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
	RPCRequests  *prometheus.CounterVec

	// Journal metrics
	JournalWrites *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of sessions that reached the active state",
		}, []string{"kind"}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of sessions that ended in the failed state",
		}, []string{"kind", "step"}),
		SessionsStopped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_stopped_total",
			Help:      "Total number of sessions stopped",
		}, []string{"kind", "reason"}),
		SessionsActive: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active sessions",
		}, []string{"kind"}),
		SessionStartLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_start_latency_seconds",
			Help:      "Time from start request to active session",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"kind"}),

		// Health monitor metrics
		HealthChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_checks_total",
			Help:      "Total number of provider health polls",
		}, []string{"kind", "result"}),

		// Provider REST metrics
		ProviderRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of provider REST calls",
		}, []string{"op", "status"}),
		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "Provider REST call latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"op"}),

		// Frame pipeline metrics
		FramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total side-channel frames received",
		}),
		FrameBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_bytes_received_total",
			Help:      "Total side-channel frame bytes received",
		}),
		FramesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of frames dropped",
		}, []string{"reason"}),
		WordsDecoded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "words_decoded_total",
			Help:      "Total number of words decoded from frames",
		}),
		LinesFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_finalized_total",
			Help:      "Total number of transcript lines finalized",
		}),
		PartialUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_updates_total",
			Help:      "Total number of in-progress line updates published",
		}),
		PipelinesActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipelines_active",
			Help:      "Number of channels with an open frame pipeline",
		}),

		// Token metrics
		TokensIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Total number of RTC tokens issued",
		}, []string{"role"}),
		TokenRenewals: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_renewals_total",
			Help:      "Total number of token renewals attempted",
		}, []string{"result"}),

		// Transcript event metrics
		TranscriptEventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_events_published_total",
			Help:      "Transcript lines and partials handed to the event stream",
		}, []string{"event", "delivery"}),
		TranscriptPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_publish_errors_total",
			Help:      "Transcript events Kafka refused or timed out on",
		}, []string{"event"}),
		TranscriptPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcript_publish_latency_seconds",
			Help:      "Time to deliver one transcript event to Kafka",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"event"}),

		// Transport metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP API requests",
		}, []string{"route", "status"}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP API request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"route"}),
		RPCRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC calls",
		}, []string{"method", "code"}),

		// Journal metrics
		JournalWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_writes_total",
			Help:      "Total number of session journal writes",
		}, []string{"result"}),
	}
}

// RecordSessionStarted records a session reaching the active state.
func (m *Metrics) RecordSessionStarted(kind string, latencySeconds float64) {
	m.SessionsStarted.WithLabelValues(kind).Inc()
	m.SessionsActive.WithLabelValues(kind).Inc()
	m.SessionStartLatency.WithLabelValues(kind).Observe(latencySeconds)
}

// RecordSessionFailed records a session failing at the given step.
func (m *Metrics) RecordSessionFailed(kind, step string) {
	m.SessionsFailed.WithLabelValues(kind, step).Inc()
}

// RecordSessionEnded records an active session leaving the active state.
func (m *Metrics) RecordSessionEnded(kind, reason string) {
	m.SessionsActive.WithLabelValues(kind).Dec()
	m.SessionsStopped.WithLabelValues(kind, reason).Inc()
}

// RecordHealthCheck records the outcome of one health poll.
func (m *Metrics) RecordHealthCheck(kind string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.HealthChecks.WithLabelValues(kind, result).Inc()
}

// RecordProviderRequest records a provider REST call.
func (m *Metrics) RecordProviderRequest(op, status string, latencySeconds float64) {
	m.ProviderRequests.WithLabelValues(op, status).Inc()
	m.ProviderLatency.WithLabelValues(op).Observe(latencySeconds)
}

// RecordFrameReceived records one inbound frame.
func (m *Metrics) RecordFrameReceived(bytes int) {
	m.FramesReceived.Inc()
	m.FrameBytesReceived.Add(float64(bytes))
}

// RecordFrameDropped records a frame being dropped.
func (m *Metrics) RecordFrameDropped(reason string) {
	m.FramesDropped.WithLabelValues(reason).Inc()
}

// RecordWordsDecoded records words decoded from one frame.
func (m *Metrics) RecordWordsDecoded(n int) {
	m.WordsDecoded.Add(float64(n))
}

// RecordLineFinalized records a finalized transcript line.
func (m *Metrics) RecordLineFinalized() {
	m.LinesFinalized.Inc()
}

// RecordPartialUpdate records a published in-progress line.
func (m *Metrics) RecordPartialUpdate() {
	m.PartialUpdates.Inc()
}

// RecordPipelineOpened records a frame pipeline opening.
func (m *Metrics) RecordPipelineOpened() {
	m.PipelinesActive.Inc()
}

// RecordPipelineClosed records a frame pipeline closing.
func (m *Metrics) RecordPipelineClosed() {
	m.PipelinesActive.Dec()
}

// RecordTokenIssued records a token being minted.
func (m *Metrics) RecordTokenIssued(role string) {
	m.TokensIssued.WithLabelValues(role).Inc()
}

// RecordTokenRenewal records a renewal attempt.
func (m *Metrics) RecordTokenRenewal(err error) {
	if err != nil {
		m.TokenRenewals.WithLabelValues("failed").Inc()
		return
	}
	m.TokenRenewals.WithLabelValues("ok").Inc()
}

// RecordTranscriptPublish records one transcript event. delivery is "kafka"
// or "log"; latency is only observed for Kafka writes.
func (m *Metrics) RecordTranscriptPublish(event, delivery string, err error, latencySeconds float64) {
	if err != nil {
		m.TranscriptPublishErrors.WithLabelValues(event).Inc()
		return
	}
	m.TranscriptEventsPublished.WithLabelValues(event, delivery).Inc()
	if delivery == "kafka" {
		m.TranscriptPublishLatency.WithLabelValues(event).Observe(latencySeconds)
	}
}

// RecordHTTPRequest records one HTTP API request.
func (m *Metrics) RecordHTTPRequest(route, status string, latencySeconds float64) {
	m.HTTPRequests.WithLabelValues(route, status).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(latencySeconds)
}

// RecordRPC records one gRPC call.
func (m *Metrics) RecordRPC(method, code string) {
	m.RPCRequests.WithLabelValues(method, code).Inc()
}

// RecordJournalWrite records a session journal write.
func (m *Metrics) RecordJournalWrite(err error) {
	if err != nil {
		m.JournalWrites.WithLabelValues("failed").Inc()
		return
	}
	m.JournalWrites.WithLabelValues("ok").Inc()
}
