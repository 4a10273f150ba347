package session

import "context"

// Event identifies the reason the reactor loop invoked a connection's
// dispatch routine. A connection never receives more than one event per
// call; compound conditions (e.g. both read-ready and the peer having sent
// a FIN) are reported as separate events.
type Event int

const (
	// NetRead fires when new bytes have been appended to the connection's
	// input buffer and are ready for framing/parsing.
	NetRead Event = iota
	// NetWrote fires when queued output bytes have been flushed to the
	// socket, partially or fully.
	NetWrote
	// NetError fires when the underlying transport failed (read error,
	// write error, or peer reset) and the connection must wind down.
	NetError
	// InactivityTimeout fires when no NetRead event has been observed
	// within the connection's configured inactivity window.
	InactivityTimeout
	// CmdDone fires when the executor has finished running a request and
	// its response is ready to be queued for write.
	CmdDone
)

func (e Event) String() string {
	switch e {
	case NetRead:
		return "NET_READ"
	case NetWrote:
		return "NET_WROTE"
	case NetError:
		return "NET_ERROR"
	case InactivityTimeout:
		return "INACTIVITY_TIMEOUT"
	case CmdDone:
		return "CMD_DONE"
	default:
		return "UNKNOWN_EVENT"
	}
}

// Affinity identifies one reactor loop in a Pool. A connection is pinned to
// exactly one Affinity for its entire lifetime; every event the connection
// handles, and every response it emits, is processed on that loop.
type Affinity int

// Request is one parsed, in-flight unit of work. The session core never
// looks inside a Request's payload; it only needs enough surface to frame
// requests, hand them to the executor, and serialize whatever the executor
// produces back onto the wire.
type Request interface {
	// Describe returns a short human-readable summary for logging
	// ("NULL", "GETATTR fh=...", etc.). Must be cheap to call.
	Describe() string

	// RequestID returns the protocol-level identifier (XID, message ID)
	// used to correlate this request with its response, for logging.
	RequestID() uint32

	// ProtocolVersion returns the protocol version the client advertised
	// for this request, if the wire format carries one, else 0.
	ProtocolVersion() uint32

	// Execute runs the request to completion. Called by an executor
	// worker, never by the reactor loop that owns the connection.
	// Execute must not block indefinitely. ctx carries the connection's
	// log context; it is not cancelled when the connection is torn down.
	Execute(ctx context.Context)

	// Failed reports whether Execute ended in failure, for metrics and
	// audit logging.
	Failed() bool

	// WriteResponse serializes the (now-completed) response into dst and
	// returns the number of bytes written.
	WriteResponse(dst []byte) (int, error)

	// ResponseSize returns the number of bytes WriteResponse will produce,
	// so the egress path can size its buffer before serializing.
	ResponseSize() int

	// Disconnect reports whether, after this request's response has been
	// flushed, the connection should be closed (the protocol's session
	// teardown request, e.g. a logout/unmount RPC).
	Disconnect() bool
}

// Framer determines whether a complete, self-contained message is present
// at the front of an input buffer, without fully parsing it. It lets the
// connection core avoid calling Parser until a full message has arrived.
type Framer interface {
	// FrameLength inspects buf (the unconsumed bytes of the input buffer,
	// in arrival order) and reports whether a complete frame is present at
	// the front of it, and if so its total length in bytes including any
	// framing header. ok is false when buf does not yet hold a complete
	// frame (the caller should read more). err is non-nil when buf's
	// prefix can never form a valid frame (e.g. an oversized length
	// header), which the connection treats as a protocol-fatal error.
	FrameLength(buf []byte) (length int, ok bool, err error)
}

// Parser turns one complete frame (as identified by Framer) into a Request.
type Parser interface {
	// Parse consumes exactly frame (a complete frame as sized by
	// Framer.FrameLength) and returns the Request it describes.
	Parse(frame []byte) (Request, error)
}

// Executor runs Requests to completion, off the reactor loop that accepted
// them, and reports completion back via CmdDone events.
//
// Submit takes ownership of req and arranges for it to run. The executor
// is free to run it on any worker. Pool, the executor in this package,
// spreads requests across all of its loops, including requests from the
// same connection, so their completions may arrive in a different order
// than they were submitted.
type Executor interface {
	// Submit hands req to the executor for eventual execution. home
	// identifies the Affinity that owns conn, so the executor knows
	// where to deliver the CmdDone event once req finishes.
	Submit(home Affinity, conn *Connection, req Request)

	// FlushAfter reports whether the executor itself will arrange for
	// conn's output buffer to be flushed once req's response has been
	// queued (true), or whether the connection core must request the
	// flush itself after CmdDone is dispatched (false).
	FlushAfter(home Affinity, conn *Connection, req Request) bool
}

// NetConn abstracts the transport a Connection is layered over: a TCP
// socket in production, a synthetic double in tests. All methods are
// called only from the reactor loop goroutine that owns the connection;
// NetConn implementations do not need to be safe for concurrent use by
// multiple callers, only safe to have their background I/O post events
// asynchronously via the callbacks supplied at construction.
type NetConn interface {
	// BytesConsumable returns the number of unconsumed bytes currently
	// sitting in the input buffer.
	BytesConsumable() int

	// PeekInput returns a view of the unconsumed input bytes. The slice
	// is only valid until the next Consume or Clear call.
	PeekInput() []byte

	// Consume discards the first n bytes of the input buffer, after they
	// have been framed and parsed into a Request.
	Consume(n int)

	// Clear discards the entire input buffer and any output still queued
	// for write, used when tearing down a connection or after a protocol
	// error.
	Clear()

	// EnsureReadCapacity grows the input buffer, if necessary, so that a
	// subsequent read of up to n bytes can be appended without further
	// allocation. The session core calls it once, when a connection is
	// created.
	EnsureReadCapacity(n int)

	// QueueOutput appends b to the pending output buffer, to be written
	// out on the next flush.
	QueueOutput(b []byte)

	// PendingOutputBytes returns the number of bytes queued for write but
	// not yet handed to the kernel.
	PendingOutputBytes() int

	// CanStartFlush reports whether a flush can be initiated right now
	// (i.e., no flush is already in flight).
	CanStartFlush() bool

	// StartFlush begins asynchronously writing the pending output buffer.
	// Completion (full or partial) is reported via a NetWrote event.
	StartFlush()

	// SetReadAhead adjusts how many bytes of read-ahead the background
	// reader is allowed to have outstanding. Zero disables further reads
	// until raised again (back-pressure).
	SetReadAhead(n int)

	// SetInactivityTimeout arms (or disarms, for n<=0) the inactivity
	// timer that reports an InactivityTimeout event after n seconds
	// without a NetRead event.
	SetInactivityTimeout(seconds int)

	// Good reports whether the transport is still usable.
	Good() bool

	// Close tears down the transport immediately.
	Close() error

	// PeerAddr returns the remote address, for logging.
	PeerAddr() string
}
