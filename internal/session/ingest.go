package session

import (
	"bytes"

	"github.com/marmos91/dittomds/internal/logger"
)

// maxInvalidLinesLogged bounds how many lines of a malformed frame get
// logged individually before the connection gives up on the request:
// a client that sends garbage shouldn't be able to flood the log.
const maxInvalidLinesLogged = 16

// handleNetRead drains complete frames out of the input buffer one at a
// time, parsing and submitting each as a Request, stopping as soon as
// back-pressure is asserted or no complete frame remains. A malformed
// frame clears the input buffer, closes the socket, and synthesizes a
// NET_ERROR rather than reading anything further from it.
func (c *Connection) handleNetRead() {
	c.net.SetInactivityTimeout(int(c.tunables.InactivityTimeout()))

	if c.pendingDisconnect {
		// Past a logical session end: discard whatever the client sent.
		c.net.Consume(c.net.BytesConsumable())
		return
	}

	for {
		if c.overWriteBehind() && c.net.CanStartFlush() {
			c.net.StartFlush()
		}

		if c.overWriteBehind() || c.overPending() {
			break
		}

		buf := c.net.PeekInput()
		if len(buf) == 0 {
			break
		}

		length, ok, err := c.framer.FrameLength(buf)
		if err != nil {
			c.rejectMalformedInput(buf, err)
			return
		}
		if !ok {
			break
		}

		req, err := c.parser.Parse(buf[:length])
		if err != nil {
			c.rejectMalformedInput(buf[:length], err)
			return
		}
		c.net.Consume(length)

		if v := req.ProtocolVersion(); v != 0 {
			if c.minProtoVersion == 0 || v < c.minProtoVersion {
				if c.minProtoVersion != 0 {
					c.metrics.ProtocolDowngrade(c.minProtoVersion, v)
					logger.WarnCtx(c.logContext(), "client protocol downgrade observed",
						logger.MinProtoVersion(c.minProtoVersion), logger.ProtoVersion(v))
				}
				c.minProtoVersion = v
			}
		}

		if req.Disconnect() {
			c.pendingDisconnect = true
		}

		c.inFlight++
		c.metrics.RequestSubmitted()
		c.metrics.InFlightGauge(c.inFlight)
		c.executor.Submit(c.affinity, c, req)

		// A request that carries its own disconnect intent is, by
		// convention, the last one a well-behaved client sends; stop
		// framing further input so we don't process anything past a
		// logical session end.
		if c.pendingDisconnect {
			break
		}
	}
}

// rejectMalformedInput logs up to maxInvalidLinesLogged lines of bad
// input, discards the whole buffer, and tears the transport down as if
// the peer had reset the connection: dispatchTop's own postDispatch step
// decides from here whether the object can be destroyed immediately or
// has to wait on in-flight work to drain.
func (c *Connection) rejectMalformedInput(bad []byte, cause error) {
	lines := bytes.Split(bad, []byte("\n"))
	if len(lines) > maxInvalidLinesLogged {
		lines = lines[:maxInvalidLinesLogged]
	}
	for _, line := range lines {
		logger.ErrorCtx(c.logContext(), "invalid request line", logger.Err(cause), "line", string(line))
	}

	c.net.Clear()
	c.handleNetError()
}

// overPending reports whether the number of requests currently awaiting
// completion has reached the configured ceiling.
func (c *Connection) overPending() bool {
	return c.inFlight >= c.tunables.MaxPendingOps()
}

// overWriteBehind reports whether queued-but-unflushed output has reached
// the configured ceiling.
func (c *Connection) overWriteBehind() bool {
	return int64(c.net.PendingOutputBytes()) >= c.tunables.MaxWriteBehind()
}

// applyBackPressure disables or re-enables further reads based on how many
// requests are currently in flight and how much output is queued,
// guarding against an unbounded backlog of parsed-but-not-yet-answered
// requests piling up in memory. Called from postDispatch once per
// external event, after whatever that event changed has settled.
func (c *Connection) applyBackPressure() {
	shouldDisable := c.overPending() || c.overWriteBehind()

	if shouldDisable && !c.readAheadDisabled {
		c.readAheadDisabled = true
		c.net.SetReadAhead(0)
		c.metrics.BackPressureEngaged()
		logger.WarnCtx(c.logContext(), "back-pressure engaged, pausing reads",
			logger.InFlight(c.inFlight), logger.PendingBytes(c.net.PendingOutputBytes()))
		return
	}

	if !shouldDisable && c.readAheadDisabled {
		c.readAheadDisabled = false
		c.net.SetReadAhead(int(c.tunables.MaxReadAhead()))
		c.metrics.BackPressureReleased()
		logger.InfoCtx(c.logContext(), "back-pressure released, resuming reads")
	}
}
