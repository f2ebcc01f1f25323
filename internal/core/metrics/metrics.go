// Package metrics holds the Prometheus collectors the server exports. Every
// method is safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "warpserver"

type Metrics struct {
	Registry *prometheus.Registry

	connectionsAccepted prometheus.Counter
	connectionsLimited  prometheus.Counter
	framesReceived      *prometheus.CounterVec
	framesSent          prometheus.Counter
	handshakes          *prometheus.CounterVec
}

// New creates the collectors on a registry of their own, which also carries the
// Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		connectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Connections accepted from game clients.",
		}),
		connectionsLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_rate_limited_total",
			Help:      "Connections refused because their address connected too often.",
		}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Frames read from clients by message type.",
		}, []string{"type"}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames written to clients.",
		}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Handshake results by reply code.",
		}, []string{"code"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connectionsAccepted,
		m.connectionsLimited,
		m.framesReceived,
		m.framesSent,
		m.handshakes,
	)
	return m
}

// Gauges are sampled whenever the metrics are scraped.
type Gauges struct {
	Players     func() float64
	Connections func() float64
	Locks       func() float64
	Subspaces   func() float64
}

func (m *Metrics) RegisterGauges(g Gauges) {
	if m == nil {
		return
	}
	gauge := func(name, help string, fn func() float64) {
		if fn == nil {
			return
		}
		m.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, fn))
	}
	gauge("players", "Authenticated players.", g.Players)
	gauge("connections", "Open connections, authenticated or not.", g.Connections)
	gauge("locks", "Held locks.", g.Locks)
	gauge("subspaces", "Known subspaces.", g.Subspaces)
}

func (m *Metrics) ConnectionAccepted() {
	if m != nil {
		m.connectionsAccepted.Inc()
	}
}

func (m *Metrics) ConnectionLimited() {
	if m != nil {
		m.connectionsLimited.Inc()
	}
}

func (m *Metrics) FrameReceived(msgType string) {
	if m != nil {
		m.framesReceived.WithLabelValues(msgType).Inc()
	}
}

func (m *Metrics) FrameSent() {
	if m != nil {
		m.framesSent.Inc()
	}
}

func (m *Metrics) Handshake(code int32) {
	if m != nil {
		m.handshakes.WithLabelValues(strconv.Itoa(int(code))).Inc()
	}
}
