package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts index operations. Register it on a private registry and
// write that registry out with prometheus.WriteToTextfile at exit.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Points     *prometheus.CounterVec
}

// NewMetrics creates and registers the index collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// Labels: backend (qdrant, chromem), operation, result (success, error)
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vecli",
			Subsystem: "index",
			Name:      "operations_total",
			Help:      "Vector index operations by backend, operation and result",
		}, []string{"backend", "operation", "result"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vecli",
			Subsystem: "index",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector index operations in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		// Labels: backend, direction (written, read)
		Points: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vecli",
			Subsystem: "index",
			Name:      "points_total",
			Help:      "Points written to or read from the index",
		}, []string{"backend", "direction"}),
	}
}

func (m *Metrics) observe(backend, op string, seconds float64, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.Operations.WithLabelValues(backend, op, result).Inc()
	m.Duration.WithLabelValues(backend, op).Observe(seconds)
}

func (m *Metrics) points(backend, direction string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Points.WithLabelValues(backend, direction).Add(float64(n))
}
