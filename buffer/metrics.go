package buffer

import "github.com/prometheus/client_golang/prometheus"

// poolMetrics is nil-safe: every method is a no-op when the pool was
// constructed without a prometheus.Registerer.
type poolMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	pinned    prometheus.Gauge
}

func newPoolMetrics(reg prometheus.Registerer) *poolMetrics {
	if reg == nil {
		return nil
	}
	m := &poolMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jindb_buffer_hits_total",
			Help: "Pages fetched that were already resident in the buffer pool.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jindb_buffer_misses_total",
			Help: "Pages fetched that required a disk read.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jindb_buffer_evictions_total",
			Help: "Frames reclaimed from another page to satisfy a fetch or create.",
		}),
		pinned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jindb_buffer_pinned_frames",
			Help: "Frames currently pinned by at least one caller.",
		}),
	}
	reg.MustRegister(m.hits, m.misses, m.evictions, m.pinned)
	return m
}

func (m *poolMetrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *poolMetrics) miss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *poolMetrics) eviction() {
	if m != nil {
		m.evictions.Inc()
	}
}

func (m *poolMetrics) pinDelta(delta float64) {
	if m != nil {
		m.pinned.Add(delta)
	}
}
