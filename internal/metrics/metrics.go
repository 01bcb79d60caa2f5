// Package metrics defines the prometheus collectors exported by kwgraph.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "kwgraph"

// Metrics groups every kwgraph collector. A nil *Metrics is valid and
// records nothing, so components can take it as an optional dependency.
type Metrics struct {
	StoreWrites     *prometheus.CounterVec
	StoreReadErrors *prometheus.CounterVec
	SyncChanges     *prometheus.CounterVec
	Gestures        *prometheus.CounterVec
	LayoutTicks     prometheus.Counter
	LayoutAlpha     prometheus.Gauge
	VisibleNodes    prometheus.Gauge
	Fits            prometheus.Counter
	ViewerClients   prometheus.Gauge
	KeywordsByRole  *prometheus.GaugeVec
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		StoreWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "writes_total",
				Help:      "Keyword store writes by key and status",
			},
			[]string{"key", "status"},
		),
		StoreReadErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "read_errors_total",
				Help:      "Unreadable or corrupt values treated as empty",
			},
			[]string{"key"},
		),
		SyncChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "changes_total",
				Help:      "Changes observed in the shared medium by topic",
			},
			[]string{"topic"},
		),
		Gestures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "gestures_total",
				Help:      "User gestures handled by the interaction surface",
			},
			[]string{"gesture"},
		),
		LayoutTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "layout",
			Name:      "ticks_total",
			Help:      "Force simulation ticks",
		}),
		LayoutAlpha: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "layout",
			Name:      "alpha",
			Help:      "Current simulation temperature",
		}),
		VisibleNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "view",
			Name:      "visible_nodes",
			Help:      "Nodes in the current visible set",
		}),
		Fits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "viewport",
			Name:      "fits_total",
			Help:      "Viewport fit transforms computed",
		}),
		ViewerClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "viewer",
			Name:      "clients",
			Help:      "Connected WebSocket viewers",
		}),
		KeywordsByRole: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "graph",
				Name:      "keywords",
				Help:      "Keywords per classified role",
			},
			[]string{"role"},
		),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding m's collectors plus the Go runtime
// and process collectors.
func NewRegistry(m *Metrics) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := m.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.StoreWrites, m.StoreReadErrors, m.SyncChanges, m.Gestures,
		m.LayoutTicks, m.LayoutAlpha, m.VisibleNodes, m.Fits,
		m.ViewerClients, m.KeywordsByRole,
	}
}

// StoreWrite records a keyword store write.
func (m *Metrics) StoreWrite(key string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StoreWrites.WithLabelValues(key, status).Inc()
}

// StoreReadError records a value that could not be decoded.
func (m *Metrics) StoreReadError(key string) {
	if m == nil {
		return
	}
	m.StoreReadErrors.WithLabelValues(key).Inc()
}

// SyncChange records a change received from the shared medium.
func (m *Metrics) SyncChange(topic string) {
	if m == nil {
		return
	}
	m.SyncChanges.WithLabelValues(topic).Inc()
}

// Gesture records a handled gesture.
func (m *Metrics) Gesture(name string) {
	if m == nil {
		return
	}
	m.Gestures.WithLabelValues(name).Inc()
}

// Tick records one simulation step at the given alpha.
func (m *Metrics) Tick(alpha float64) {
	if m == nil {
		return
	}
	m.LayoutTicks.Inc()
	m.LayoutAlpha.Set(alpha)
}

// Visible records the size of the visible node set.
func (m *Metrics) Visible(n int) {
	if m == nil {
		return
	}
	m.VisibleNodes.Set(float64(n))
}

// Fit records a computed fit transform.
func (m *Metrics) Fit() {
	if m == nil {
		return
	}
	m.Fits.Inc()
}

// Clients sets the number of connected viewers.
func (m *Metrics) Clients(n int) {
	if m == nil {
		return
	}
	m.ViewerClients.Set(float64(n))
}

// Roles records keyword counts per role.
func (m *Metrics) Roles(counts map[string]int) {
	if m == nil {
		return
	}
	for role, n := range counts {
		m.KeywordsByRole.WithLabelValues(role).Set(float64(n))
	}
}
