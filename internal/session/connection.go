package session

import (
	"context"

	"github.com/marmos91/dittomds/internal/logger"
)

// maxReentranceDepth bounds how deeply dispatchTop may recurse into itself
// within a single external event. A well-behaved event sequence recurses
// at most two or three levels deep (e.g. CmdDone -> queue response ->
// start flush -> immediate NetWrote for a small write); anything deeper
// almost certainly means a bug is feeding the connection events in a tight
// cycle, so dispatch aborts the connection rather than growing the stack
// without bound.
const maxReentranceDepth = 16

// Connection is the per-socket client protocol state machine: it frames
// and parses requests off the wire, submits them to an Executor, and
// serializes completed responses back, all while enforcing flow control
// and back-pressure and tearing itself down in an orderly way.
//
// A Connection is only ever touched by the single reactor loop goroutine
// it is pinned to (its home Affinity); there is no internal locking. The
// NetConn it wraps is the only component allowed to touch it from other
// goroutines, and it only does so by posting events through the Pool.
type Connection struct {
	id       string
	affinity Affinity
	pool     *Pool
	executor Executor
	roster   *Roster

	net    NetConn
	framer Framer
	parser Parser

	tunables *Tunables
	metrics  Metrics
	audit    AuditSink

	minProtoVersion uint32

	inFlight           int32
	pendingDisconnect  bool
	readAheadDisabled  bool
	depth              int
	closed             bool
	shutdownRequested  bool

	logCtx *logger.LogContext

	doneCh chan struct{}
}

// Config bundles everything a newly accepted connection needs.
type Config struct {
	Net      NetConn
	Framer   Framer
	Parser   Parser
	Pool     *Pool
	Roster   *Roster
	Tunables *Tunables
	Metrics  Metrics
	Audit    AuditSink
}

// NewConnection registers a new connection in roster, pins it to a loop in
// pool, and arms its inactivity timer and initial read-ahead. It does not
// itself kick off reading; NetRead events come from the NetConn's own
// background reader.
func NewConnection(cfg Config) *Connection {
	if cfg.Metrics == nil {
		cfg.Metrics = NoopMetrics{}
	}
	if cfg.Audit == nil {
		cfg.Audit = NoopAuditSink{}
	}

	c := &Connection{
		pool:     cfg.Pool,
		executor: cfg.Pool,
		roster:   cfg.Roster,
		net:      cfg.Net,
		framer:   cfg.Framer,
		parser:   cfg.Parser,
		tunables: cfg.Tunables,
		metrics:  cfg.Metrics,
		audit:    cfg.Audit,
		doneCh:   make(chan struct{}),
	}
	c.affinity = cfg.Pool.Assign()
	c.id = cfg.Roster.Add(c)
	c.logCtx = logger.NewLogContext(cfg.Net.PeerAddr()).WithConnectionID(c.id)

	c.net.SetInactivityTimeout(int(c.tunables.InactivityTimeout()))
	c.net.SetReadAhead(int(c.tunables.MaxReadAhead()))
	c.net.EnsureReadCapacity(int(c.tunables.MaxReadAhead()))

	c.metrics.ConnectionOpened()
	logger.InfoCtx(logger.WithContext(context.Background(), c.logCtx), "connection accepted",
		logger.Affinity(int(c.affinity)))

	return c
}

// ID returns the roster identifier assigned to this connection.
func (c *Connection) ID() string { return c.id }

// Done returns a channel closed once the connection has torn down, for
// callers (e.g. the accept loop's per-connection goroutine) that need to
// block until the connection's whole lifetime has elapsed.
func (c *Connection) Done() <-chan struct{} { return c.doneCh }

// Affinity returns the reactor loop this connection is pinned to.
func (c *Connection) Affinity() Affinity { return c.affinity }

// Post delivers an external event (from NetConn's background goroutines)
// to this connection's home loop. Safe to call from any goroutine.
//
// A nil pool (only possible in tests that drive a Connection directly,
// without a Pool) dispatches inline instead of panicking, so unit tests
// can exercise the state machine single-threaded and deterministically.
func (c *Connection) Post(ev Event) {
	if c.pool == nil {
		c.dispatchTop(ev, nil)
		return
	}
	c.pool.Post(c.affinity, c, ev)
}

// RequestShutdown asks the connection to wind down at its next
// opportunity. Safe to call from any goroutine (e.g. a server-wide
// graceful-drain routine iterating the Roster).
func (c *Connection) RequestShutdown() {
	c.shutdownRequested = true
	c.Post(NetError)
}

// executionContext returns the context requests submitted by this
// connection execute under.
func (c *Connection) executionContext() context.Context {
	return logger.WithContext(backgroundContext, c.logCtx)
}

func (c *Connection) logContext() context.Context {
	return logger.WithContext(backgroundContext, c.logCtx)
}

// dispatchTop is the single entry point the reactor loop calls for every
// event targeting this connection, whether freshly arrived off the wire
// or a recursive self-invocation. Re-entrance is tracked with depth so a
// chain of self-generated events (queue a response, start a flush, the
// flush completes synchronously, queue the next response...) is bounded.
//
// The connection is destroyed (removed from the roster, doneCh closed)
// only once depth is about to return to 0 and postDispatch finds the
// transport gone with nothing left in flight: a request submitted before
// a NET_ERROR or timeout tore the socket down still gets to run its
// CMD_DONE through this same entry point, decrementing inFlight, before
// the object is allowed to go away.
func (c *Connection) dispatchTop(ev Event, req Request) {
	if c.closed {
		return
	}
	c.depth++

	if c.depth > maxReentranceDepth {
		logger.ErrorCtx(c.logContext(), "event dispatch exceeded max re-entrance depth, aborting connection",
			logger.ReentranceDepth(c.depth))
		c.depth--
		c.forceDestroy()
		return
	}

	switch ev {
	case NetRead:
		c.handleNetRead()
	case NetWrote:
		c.handleNetWrote()
	case NetError:
		c.handleNetError()
	case InactivityTimeout:
		c.handleInactivityTimeout()
	case CmdDone:
		c.handleCmdDone(req)
	}

	c.depth--
	if c.depth == 0 {
		c.postDispatch()
	}
}

// postDispatch runs the bookkeeping the spec requires once every
// recursive dispatch stemming from one external event has unwound:
// flushing, applying or releasing back-pressure, following through on a
// pending disconnect, and finally deciding whether the connection can be
// destroyed. It is a no-op (beyond the destroy check) for events that
// already did their own flushing, since calling StartFlush or
// SetReadAhead twice with the same arguments is harmless.
//
// Buffer compaction (spec.md's post-dispatch step reclaiming slack space
// below a configured threshold) has no home here: NetConn exposes no
// Compact method, so there is nothing for this step to call. See
// DESIGN.md.
func (c *Connection) postDispatch() {
	if !c.net.Good() {
		if c.inFlight > 0 {
			// Transport already torn down by closeTransport; the object
			// stays alive so the still-running requests' CMD_DONE events
			// have somewhere to land.
			return
		}
		c.destroy()
		return
	}

	if c.inFlight == 0 && c.net.PendingOutputBytes() > 0 && c.net.CanStartFlush() {
		c.net.StartFlush()
	}

	if c.pendingDisconnect {
		if c.inFlight == 0 && c.net.PendingOutputBytes() == 0 {
			c.closeTransport()
			c.destroy()
			return
		}
		if !c.readAheadDisabled {
			c.readAheadDisabled = true
			c.net.SetReadAhead(0)
		}
		return
	}

	c.applyBackPressure()
}

// handleNetError implements §4.3's NET_ERROR handling. The socket is
// closed in every case. A peer that still has a good-looking socket but
// pending work or unflushed output is treated as a half-close: the
// connection is marked pendingDisconnect before the close, and the object
// stays alive until its in-flight requests complete (their responses are
// dropped, since the transport is gone). Anything else is a hard close.
func (c *Connection) handleNetError() {
	if c.net.Good() && (c.inFlight > 0 || c.net.PendingOutputBytes() > 0) {
		logger.InfoCtx(c.logContext(), "peer half-close observed, draining in-flight work",
			logger.InFlight(c.inFlight), logger.PendingBytes(c.net.PendingOutputBytes()))
		c.pendingDisconnect = true
		c.handleInactivityTimeout()
		return
	}

	logger.InfoCtx(c.logContext(), "connection error, closing transport", logger.InFlight(c.inFlight))
	c.closeTransport()
}

// handleInactivityTimeout always closes the socket and clears whatever
// is left in the input buffer, per §4.3's INACTIVITY_TIMEOUT handling.
// It does not itself decide whether the Connection object can go away:
// postDispatch does that, once depth returns to 0, by checking inFlight.
func (c *Connection) handleInactivityTimeout() {
	logger.InfoCtx(c.logContext(), "closing transport on inactivity timeout", logger.InFlight(c.inFlight))
	c.closeTransport()
}

// closeTransport tears down the socket and discards the input buffer, but
// never touches the roster or doneCh. It leaves the Connection object
// alive whenever inFlight > 0, so outstanding requests can still drive a
// CMD_DONE through dispatchTop and decrement the counter; postDispatch is
// what finally destroys the object once that count reaches 0. Idempotent.
func (c *Connection) closeTransport() {
	if !c.net.Good() {
		return
	}
	c.net.Clear()
	_ = c.net.Close()
}

// forceDestroy tears the transport down and destroys the connection
// object immediately, without waiting for in-flight work to drain. It
// exists for the handful of paths where the state machine itself can no
// longer be trusted (a panic recovered mid-dispatch, runaway re-entrance)
// and there is nothing sensible left to drain towards.
func (c *Connection) forceDestroy() {
	c.closeTransport()
	c.destroy()
}

// destroy removes the connection from the roster and releases callers
// blocked on Done. Only called once the transport is gone and nothing is
// left in flight. Idempotent.
func (c *Connection) destroy() {
	if c.closed {
		return
	}
	c.closed = true
	c.roster.Remove(c.id)
	c.metrics.ConnectionClosed()
	logger.InfoCtx(c.logContext(), "connection closed")
	close(c.doneCh)
}
