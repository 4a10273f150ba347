// Package metrics provides the Prometheus collectors internal/session
// reports through, wired behind the session.Metrics interface so the core
// state machine never imports Prometheus directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/dittomds/internal/session"
)

// Collector is the Prometheus-backed implementation of session.Metrics.
type Collector struct {
	connectionsOpened   prometheus.Counter
	connectionsClosed   prometheus.Counter
	requestsSubmitted   prometheus.Counter
	requestsCompleted   prometheus.Counter
	requestsFailed      prometheus.Counter
	backPressureEvents  *prometheus.CounterVec
	protocolDowngrades  prometheus.Counter
	inFlightGauge       prometheus.Gauge
	pendingOutputGauge  prometheus.Gauge
	rosterSizeGauge     prometheus.Gauge
}

// New builds a Collector and registers its collectors against reg. Pass
// prometheus.DefaultRegisterer in production; tests typically pass a
// fresh prometheus.NewRegistry() to avoid collisions across test cases.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connectionsOpened: registerOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dittomds",
			Subsystem: "session",
			Name:      "connections_opened_total",
			Help:      "Total connections accepted.",
		})),
		connectionsClosed: registerOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dittomds",
			Subsystem: "session",
			Name:      "connections_closed_total",
			Help:      "Total connections torn down.",
		})),
		requestsSubmitted: registerOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dittomds",
			Subsystem: "session",
			Name:      "requests_submitted_total",
			Help:      "Total requests handed to the executor.",
		})),
		requestsCompleted: registerOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dittomds",
			Subsystem: "session",
			Name:      "requests_completed_total",
			Help:      "Total requests that finished executing, successfully or not.",
		})),
		requestsFailed: registerOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dittomds",
			Subsystem: "session",
			Name:      "requests_failed_total",
			Help:      "Total requests that finished executing with a failure status.",
		})),
		backPressureEvents: registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dittomds",
			Subsystem: "session",
			Name:      "back_pressure_events_total",
			Help:      "Back-pressure engage/release transitions.",
		}, []string{"direction"})),
		protocolDowngrades: registerOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dittomds",
			Subsystem: "session",
			Name:      "protocol_downgrades_total",
			Help:      "Total times a connection's observed minimum protocol version decreased.",
		})),
		inFlightGauge: registerOrReuse(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dittomds",
			Subsystem: "session",
			Name:      "requests_in_flight",
			Help:      "In-flight requests on the last-reporting connection.",
		})),
		pendingOutputGauge: registerOrReuse(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dittomds",
			Subsystem: "session",
			Name:      "pending_output_bytes",
			Help:      "Bytes queued for write on the last-reporting connection.",
		})),
		rosterSizeGauge: registerOrReuse(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dittomds",
			Subsystem: "session",
			Name:      "roster_size",
			Help:      "Number of connections currently registered in the roster.",
		})),
	}
	return c
}

// registerOrReuse registers c against reg, and if a collector with the
// same fully-qualified name was already registered (e.g. a prior test in
// the same process using the default registry), returns the existing one
// instead of panicking. Grounded on the teacher's identical helper for
// NFSv4 state metrics, which exists for the same reason: tests construct
// many Collectors against shared registries.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (c *Collector) ConnectionOpened() { c.connectionsOpened.Inc() }
func (c *Collector) ConnectionClosed() { c.connectionsClosed.Inc() }
func (c *Collector) RequestSubmitted() { c.requestsSubmitted.Inc() }

func (c *Collector) RequestCompleted(failed bool) {
	c.requestsCompleted.Inc()
	if failed {
		c.requestsFailed.Inc()
	}
}

func (c *Collector) BackPressureEngaged()  { c.backPressureEvents.WithLabelValues("engaged").Inc() }
func (c *Collector) BackPressureReleased() { c.backPressureEvents.WithLabelValues("released").Inc() }

func (c *Collector) ProtocolDowngrade(from, to uint32) { c.protocolDowngrades.Inc() }

func (c *Collector) InFlightGauge(n int32)       { c.inFlightGauge.Set(float64(n)) }
func (c *Collector) PendingOutputBytes(n int)    { c.pendingOutputGauge.Set(float64(n)) }

// SetRosterSize reports the current roster population. Called by
// pkg/server on a timer, not by internal/session (the roster is owned by
// the server wiring layer, not the per-connection core).
func (c *Collector) SetRosterSize(n int) { c.rosterSizeGauge.Set(float64(n)) }

var _ session.Metrics = (*Collector)(nil)
