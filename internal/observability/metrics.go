package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingest pipeline and the realtime hub.
type Metrics struct {
	PostsConsumed   prometheus.Counter
	PostsStored     prometheus.Counter
	PostsRelevant   prometheus.Counter
	TransformErrors prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Classification metrics.
	Classifications *prometheus.CounterVec // labels: hazard_type ("" reported as "none")
	AlertsRaised    prometheus.Counter

	// Realtime hub metrics.
	ConnectedClients  prometheus.Gauge
	MessagesDelivered *prometheus.CounterVec // labels: channel
	SendFailures      prometheus.Counter
	PushCycles        *prometheus.CounterVec // labels: outcome={success,skipped,error}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PostsConsumed,
		m.PostsStored,
		m.PostsRelevant,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.Classifications,
		m.AlertsRaised,
		m.ConnectedClients,
		m.MessagesDelivered,
		m.SendFailures,
		m.PushCycles,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PostsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_monitor",
			Name:      "posts_consumed_total",
			Help:      "Total raw posts read from the source topic.",
		}),
		PostsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_monitor",
			Name:      "posts_stored_total",
			Help:      "Total classified posts persisted to storage.",
		}),
		PostsRelevant: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_monitor",
			Name:      "posts_relevant_total",
			Help:      "Total posts classified as hazard-relevant.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_monitor",
			Name:      "transform_errors_total",
			Help:      "Total raw posts that failed parsing or enrichment.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_monitor",
			Name:      "pipeline_running",
			Help:      "1 when the ingest pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_monitor",
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_monitor",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-classify-store cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_monitor",
			Name:      "classifications_total",
			Help:      "Classified posts by detected hazard type.",
		}, []string{"hazard_type"}),
		AlertsRaised: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_monitor",
			Name:      "alerts_raised_total",
			Help:      "Posts that required immediate attention.",
		}),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_monitor",
			Name:      "websocket_connections",
			Help:      "Currently connected websocket clients.",
		}),
		MessagesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_monitor",
			Name:      "messages_delivered_total",
			Help:      "Realtime messages delivered to clients by channel.",
		}, []string{"channel"}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_monitor",
			Name:      "send_failures_total",
			Help:      "Deliveries dropped because a client send buffer was full or closed.",
		}),
		PushCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_monitor",
			Name:      "push_cycles_total",
			Help:      "Scheduled dashboard push cycles by outcome.",
		}, []string{"outcome"}),
	}
}
