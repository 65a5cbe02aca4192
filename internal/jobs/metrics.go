package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes worker counters and queue gauges.
type Metrics struct {
	processed *prometheus.CounterVec
	queue     *prometheus.GaugeVec
}

// NewMetrics registers the worker metrics on the registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_jobs_processed_total",
			Help: "Outbox jobs processed, by job name and result.",
		}, []string{"name", "result"}),
		queue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "outbox_jobs_queued",
			Help: "Outbox jobs currently in the queue, by status.",
		}, []string{"status"}),
	}
	if reg != nil {
		reg.MustRegister(m.processed, m.queue)
	}
	return m
}

// JobProcessed records one handler outcome.
func (m *Metrics) JobProcessed(name, result string) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(name, result).Inc()
}

// SetQueueDepth records the per-status queue depth.
func (m *Metrics) SetQueueDepth(counts map[string]int) {
	if m == nil {
		return
	}
	m.queue.Reset()
	for status, count := range counts {
		m.queue.WithLabelValues(status).Set(float64(count))
	}
}
