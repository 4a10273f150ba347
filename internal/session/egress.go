package session

import (
	"time"

	"github.com/marmos91/dittomds/internal/logger"
)

// handleCmdDone serializes a completed request's response into the output
// buffer, logs and audits it, and starts (or defers) a flush.
//
// By the time dispatchTop routes here, this event is guaranteed to be
// running on the connection's home loop: a completion finishing on a
// different loop is rerouted by Pool.deliverTo before dispatchTop is ever
// called, so there is no separate "pre-dispatch offer" step to perform
// here — the offer already happened, and acceptance is why we're here.
//
// If the transport is already gone (a NET_ERROR or timeout tore it down
// while this request was still running), the response has nowhere to
// go: it's dropped, and only the in-flight bookkeeping happens, letting
// postDispatch destroy the connection once the count reaches 0.
func (c *Connection) handleCmdDone(req Request) {
	start := time.Now()

	if c.mustLogUnconditionally(req) || req.Failed() || logger.DebugEnabled() {
		status := "OK"
		if req.Failed() {
			status = "FAILED"
		}
		logger.InfoCtx(c.logContext(), "request completed",
			logger.RequestID(req.RequestID()), logger.Status(boolToStatusCode(req.Failed())),
			logger.StatusMsg(status), logger.Operation(req.Describe()))
	}

	if !c.net.Good() {
		c.inFlight--
		c.metrics.RequestCompleted(req.Failed())
		c.metrics.InFlightGauge(c.inFlight)
		return
	}

	size := req.ResponseSize()
	if size > 0 {
		buf := make([]byte, size)
		n, err := req.WriteResponse(buf)
		if err != nil {
			logger.ErrorCtx(c.logContext(), "failed to serialize response, closing transport",
				logger.RequestID(req.RequestID()), logger.Err(err))
			c.inFlight--
			c.metrics.RequestCompleted(req.Failed())
			c.metrics.InFlightGauge(c.inFlight)
			c.closeTransport()
			return
		}
		c.net.QueueOutput(buf[:n])
	}

	c.inFlight--
	c.metrics.RequestCompleted(req.Failed())
	c.metrics.InFlightGauge(c.inFlight)
	c.metrics.PendingOutputBytes(c.net.PendingOutputBytes())

	if c.tunables.AuditLogging() {
		c.audit.Audit(AuditRecord{
			ConnectionID: c.id,
			PeerAddr:     c.net.PeerAddr(),
			RequestID:    req.RequestID(),
			Description:  req.Describe(),
			Failed:       req.Failed(),
			DurationMs:   logger.Duration(start),
		})
	}

	if req.Disconnect() {
		c.pendingDisconnect = true
	}

	if !c.executor.FlushAfter(c.affinity, c, req) {
		c.startFlushIfPossible()
	}
}

// mustLogUnconditionally reports whether req belongs to a class of
// requests that always gets an INFO line regardless of debug level or
// outcome. The session core has no notion of per-procedure logging
// policy, so it defers entirely to the request's own Disconnect marker:
// session-ending requests are always worth a line.
func (c *Connection) mustLogUnconditionally(req Request) bool {
	return req.Disconnect()
}

func boolToStatusCode(failed bool) int {
	if failed {
		return 1
	}
	return 0
}

// handleNetWrote is invoked once a flush completes, partially or fully. If
// more output is queued it starts another flush; re-entering dispatchTop
// recursively is what naturally happens here since startFlushIfPossible
// can itself be satisfied synchronously by a NetConn double in tests.
func (c *Connection) handleNetWrote() {
	c.metrics.PendingOutputBytes(c.net.PendingOutputBytes())

	if c.net.Good() && c.net.PendingOutputBytes() > 0 {
		c.startFlushIfPossible()
	}
}

func (c *Connection) startFlushIfPossible() {
	if c.net.PendingOutputBytes() == 0 {
		return
	}
	if !c.net.CanStartFlush() {
		return
	}
	c.net.StartFlush()
}
