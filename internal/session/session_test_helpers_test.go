package session

import (
	"context"
	"errors"

	"github.com/marmos91/dittomds/internal/logger"
)

// fakeNetConn is a synchronous, single-goroutine NetConn double: no
// background goroutines, no sockets. StartFlush "writes" immediately and
// calls the post callback inline, which lets tests exercise dispatchTop's
// re-entrance path deterministically.
type fakeNetConn struct {
	in  []byte
	out []byte

	written   []byte // everything ever handed to StartFlush
	readAhead int
	timeout   int
	closed    bool
	good      bool

	post func(Event)
}

func newFakeNetConn() *fakeNetConn {
	return &fakeNetConn{good: true}
}

func (f *fakeNetConn) feed(b []byte) { f.in = append(f.in, b...) }

func (f *fakeNetConn) BytesConsumable() int { return len(f.in) }
func (f *fakeNetConn) PeekInput() []byte    { return f.in }

func (f *fakeNetConn) Consume(n int) {
	if n >= len(f.in) {
		f.in = f.in[:0]
		return
	}
	f.in = append(f.in[:0], f.in[n:]...)
}

func (f *fakeNetConn) Clear() {
	f.in = f.in[:0]
	f.out = f.out[:0]
}

func (f *fakeNetConn) EnsureReadCapacity(n int) {}

func (f *fakeNetConn) QueueOutput(b []byte) { f.out = append(f.out, b...) }

func (f *fakeNetConn) PendingOutputBytes() int { return len(f.out) }

func (f *fakeNetConn) CanStartFlush() bool { return true }

func (f *fakeNetConn) StartFlush() {
	f.written = append(f.written, f.out...)
	f.out = f.out[:0]
	if f.post != nil {
		f.post(NetWrote)
	}
}

func (f *fakeNetConn) SetReadAhead(n int)          { f.readAhead = n }
func (f *fakeNetConn) SetInactivityTimeout(s int)  { f.timeout = s }
func (f *fakeNetConn) Good() bool                  { return f.good }
func (f *fakeNetConn) Close() error                { f.closed = true; f.good = false; return nil }
func (f *fakeNetConn) PeerAddr() string            { return "10.0.0.1:1234" }

var _ NetConn = (*fakeNetConn)(nil)

// fakeRequest is a minimal Request double.
type fakeRequest struct {
	id           uint32
	protoVersion uint32
	response     []byte
	failed       bool
	disconnect   bool
	executed     bool
}

func (r *fakeRequest) Describe() string          { return "fake" }
func (r *fakeRequest) RequestID() uint32         { return r.id }
func (r *fakeRequest) ProtocolVersion() uint32    { return r.protoVersion }
func (r *fakeRequest) Execute(ctx context.Context) { r.executed = true }
func (r *fakeRequest) Failed() bool              { return r.failed }
func (r *fakeRequest) Disconnect() bool          { return r.disconnect }
func (r *fakeRequest) ResponseSize() int         { return len(r.response) }
func (r *fakeRequest) WriteResponse(dst []byte) (int, error) {
	if len(dst) < len(r.response) {
		return 0, errors.New("buffer too small")
	}
	copy(dst, r.response)
	return len(r.response), nil
}

var _ Request = (*fakeRequest)(nil)

// lineFramer frames on '\n', a stand-in protocol for tests.
type lineFramer struct{}

func (lineFramer) FrameLength(buf []byte) (int, bool, error) {
	for i, b := range buf {
		if b == '\n' {
			return i + 1, true, nil
		}
	}
	return 0, false, nil
}

// lineParser turns each line into a fakeRequest whose response echoes the
// line back, unless the line is "quit", which also sets Disconnect.
type lineParser struct{ nextID uint32 }

func (p *lineParser) Parse(frame []byte) (Request, error) {
	p.nextID++
	line := frame[:len(frame)-1]
	req := &fakeRequest{id: p.nextID, protoVersion: 4, response: append([]byte{}, line...)}
	if string(line) == "quit" {
		req.disconnect = true
	}
	return req, nil
}

// fakeExecutor captures submissions instead of running them, so connection
// tests can drive CmdDone manually and assert on what was submitted.
type fakeExecutor struct {
	submitted  []Request
	flushAfter bool
}

func (e *fakeExecutor) Submit(home Affinity, conn *Connection, req Request) {
	e.submitted = append(e.submitted, req)
}

func (e *fakeExecutor) FlushAfter(Affinity, *Connection, Request) bool { return e.flushAfter }

var _ Executor = (*fakeExecutor)(nil)

// countingMetrics counts each callback invocation, for assertions.
type countingMetrics struct {
	opened, closed                   int
	submitted, completed, failed     int
	pressureOn, pressureOff          int
	downgrades                       int
	lastInFlight                     int32
	lastPendingOutput                int
}

func (m *countingMetrics) ConnectionOpened() { m.opened++ }
func (m *countingMetrics) ConnectionClosed() { m.closed++ }
func (m *countingMetrics) RequestSubmitted() { m.submitted++ }
func (m *countingMetrics) RequestCompleted(failed bool) {
	m.completed++
	if failed {
		m.failed++
	}
}
func (m *countingMetrics) BackPressureEngaged()  { m.pressureOn++ }
func (m *countingMetrics) BackPressureReleased() { m.pressureOff++ }
func (m *countingMetrics) ProtocolDowngrade(from, to uint32) { m.downgrades++ }
func (m *countingMetrics) InFlightGauge(n int32) { m.lastInFlight = n }
func (m *countingMetrics) PendingOutputBytes(n int) { m.lastPendingOutput = n }

var _ Metrics = (*countingMetrics)(nil)

// newTestConnection wires a Connection directly to a fakeExecutor so tests
// can drive CmdDone by hand without a real Pool.
func newTestConnection(net *fakeNetConn, exec Executor, tun *Tunables) *Connection {
	roster := NewRoster()
	c := &Connection{
		roster:   roster,
		net:      net,
		framer:   lineFramer{},
		parser:   &lineParser{},
		tunables: tun,
		metrics:  NoopMetrics{},
		audit:    NoopAuditSink{},
		doneCh:   make(chan struct{}),
	}
	c.id = roster.Add(c)
	c.executor = exec
	c.logCtx = logger.NewLogContext("10.0.0.1:1234").WithConnectionID(c.id)
	net.post = c.Post
	return c
}
