package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "suraksha"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// navigation core and its adapters.
type Metrics struct {
	// Position stream metrics.
	SamplesReceived   prometheus.Counter
	SamplesDropped    prometheus.Counter
	SamplesStale      prometheus.Counter
	SamplesOutOfOrder prometheus.Counter
	PositionErrors    *prometheus.CounterVec // labels: code={permission_denied,position_unavailable,timeout}
	TrackingActive    prometheus.Gauge

	// Proximity metrics.
	AlertComputeDuration prometheus.Histogram
	AlertsRaised         *prometheus.CounterVec // labels: tier={immediate,urgent,warning}
	ActiveAlerts         prometheus.Gauge

	// Route selection metrics.
	RouteAnalyses   prometheus.Counter
	RouteSelections prometheus.Counter
	RouteWarnings   prometheus.Counter

	// Alert publishing metrics.
	AlertBatchesPublished prometheus.Counter
	AlertPublishErrors    prometheus.Counter
	PublisherRunning      prometheus.Gauge

	// Route analysis client metrics.
	AnalysisRequests    *prometheus.CounterVec   // labels: outcome={success,error,empty}
	AnalysisCache       *prometheus.CounterVec   // labels: result={hit,miss}
	AnalysisAPIDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SamplesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "position_samples_total",
			Help:      "Position samples pushed by the location provider.",
		}),
		SamplesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "position_samples_dropped_total",
			Help:      "Position samples dropped because the stream queue was full.",
		}),
		SamplesStale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "position_samples_stale_total",
			Help:      "Position samples discarded for exceeding the maximum age.",
		}),
		SamplesOutOfOrder: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "position_samples_out_of_order_total",
			Help:      "Position samples discarded because a fresher sample was already applied.",
		}),
		PositionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "position_errors_total",
			Help:      "Position stream failures by error code.",
		}, []string{"code"}),
		TrackingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracking_active",
			Help:      "1 while live tracking is enabled, 0 otherwise.",
		}),
		AlertComputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alert_compute_duration_seconds",
			Help:      "Duration of one proximity alert computation.",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Visible proximity alerts per tick by tier.",
		}, []string{"tier"}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_alerts",
			Help:      "Number of visible proximity alerts after the latest tick.",
		}),
		RouteAnalyses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_analyses_applied_total",
			Help:      "Route analysis results applied to the session.",
		}),
		RouteSelections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_selections_total",
			Help:      "Successful route selections.",
		}),
		RouteWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_warnings_total",
			Help:      "High-risk route warnings raised by selections.",
		}),
		AlertBatchesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_batches_published_total",
			Help:      "Alert batches written to the alert sink.",
		}),
		AlertPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_publish_errors_total",
			Help:      "Failed alert sink writes.",
		}),
		PublisherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_publisher_running",
			Help:      "1 when the alert publisher is active, 0 when shut down.",
		}),
		AnalysisRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_analysis_requests_total",
			Help:      "Route analysis API requests by outcome.",
		}, []string{"outcome"}),
		AnalysisCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_analysis_cache_total",
			Help:      "Route analysis cache lookups by result.",
		}, []string{"result"}),
		AnalysisAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_analysis_api_duration_seconds",
			Help:      "Route analysis API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SamplesReceived,
		m.SamplesDropped,
		m.SamplesStale,
		m.SamplesOutOfOrder,
		m.PositionErrors,
		m.TrackingActive,
		m.AlertComputeDuration,
		m.AlertsRaised,
		m.ActiveAlerts,
		m.RouteAnalyses,
		m.RouteSelections,
		m.RouteWarnings,
		m.AlertBatchesPublished,
		m.AlertPublishErrors,
		m.PublisherRunning,
		m.AnalysisRequests,
		m.AnalysisCache,
		m.AnalysisAPIDuration,
	}
}
