package flownet

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the optional runtime counters. All fields are nil-safe
// through the metrics pointer itself: a nil *metrics records nothing.
type metrics struct {
	steps      *prometheus.CounterVec
	sends      *prometheus.CounterVec
	reductions *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flownet",
			Name:      "steps_total",
			Help:      "Timesteps executed, per process.",
		}, []string{"process"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flownet",
			Name:      "sends_total",
			Help:      "Tensors sent on output ports, per process.",
		}, []string{"process"}),
		reductions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flownet",
			Name:      "reductions_total",
			Help:      "Fan-in reductions applied on input ports, per process.",
		}, []string{"process"}),
	}
	reg.MustRegister(m.steps, m.sends, m.reductions)
	return m
}

func (m *metrics) step(proc string) {
	if m != nil {
		m.steps.WithLabelValues(proc).Inc()
	}
}

func (m *metrics) send(proc string) {
	if m != nil {
		m.sends.WithLabelValues(proc).Inc()
	}
}

func (m *metrics) reduce(proc string) {
	if m != nil {
		m.reductions.WithLabelValues(proc).Inc()
	}
}
