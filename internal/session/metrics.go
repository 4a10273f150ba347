package session

// Metrics is the narrow observability surface the session core needs.
// pkg/metrics provides the Prometheus-backed implementation; tests use a
// no-op or counting fake. Defined here (rather than imported from
// pkg/metrics) so internal/session has no outward dependency on the
// metrics package.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	RequestSubmitted()
	RequestCompleted(failed bool)
	BackPressureEngaged()
	BackPressureReleased()
	ProtocolDowngrade(from, to uint32)
	InFlightGauge(n int32)
	PendingOutputBytes(n int)
}

// NoopMetrics discards everything. Used when no metrics sink is wired, and
// as the base fakes embed in tests.
type NoopMetrics struct{}

func (NoopMetrics) ConnectionOpened()                  {}
func (NoopMetrics) ConnectionClosed()                  {}
func (NoopMetrics) RequestSubmitted()                  {}
func (NoopMetrics) RequestCompleted(bool)              {}
func (NoopMetrics) BackPressureEngaged()                {}
func (NoopMetrics) BackPressureReleased()               {}
func (NoopMetrics) ProtocolDowngrade(from, to uint32)   {}
func (NoopMetrics) InFlightGauge(n int32)               {}
func (NoopMetrics) PendingOutputBytes(n int)            {}

var _ Metrics = NoopMetrics{}
