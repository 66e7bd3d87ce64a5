package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the animation engine.
type Metrics struct {
	// Discovery metrics
	ScriptsDiscovered prometheus.Gauge
	ScriptsRejected   prometheus.Counter

	// Instance metrics
	InstancesActive prometheus.Gauge
	InstancesTotal  prometheus.Counter

	// Frame loop metrics
	FrameTicks   prometheus.Counter
	TickDuration prometheus.Histogram

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with the default registry.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewTestMetrics creates metrics on a private registry, for tests.
func NewTestMetrics() *Metrics {
	return newMetrics(prometheus.NewRegistry())
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ScriptsDiscovered: factory.NewGauge(prometheus.GaugeOpts{
			Name: "anim_scripts_discovered",
			Help: "Number of animation scripts accepted in the last scan",
		}),
		ScriptsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "anim_scripts_rejected_total",
			Help: "Total animation script candidates rejected during discovery",
		}),
		InstancesActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "anim_instances_active",
			Help: "Number of live animation instances",
		}),
		InstancesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "anim_instances_total",
			Help: "Total animation instances created",
		}),
		FrameTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "anim_frame_ticks_total",
			Help: "Total frame scheduler ticks",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "anim_tick_duration_seconds",
			Help:    "Frame scheduler tick duration",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}
