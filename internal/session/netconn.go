package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// maxReadChunk bounds a single socket Read, independent of how large the
// configured read-ahead window is, so one SetReadAhead call with a huge
// value doesn't force one giant allocation per read.
const maxReadChunk = 64 << 10

// TCPNetConn is the production NetConn: a net.Conn plus a background
// reader goroutine, a per-flush writer goroutine, and an inactivity
// timer. All three report back to the owning Connection exclusively
// through the post callback, which enqueues an event onto the
// connection's home reactor loop - the only way these goroutines are
// allowed to touch connection state.
type TCPNetConn struct {
	conn net.Conn
	post func(Event)

	mu sync.Mutex
	in []byte
	out []byte
	writing bool

	readAhead atomic.Int32
	resumeCh  chan struct{}
	done      chan struct{}
	closed    atomic.Bool

	timerMu sync.Mutex
	timer   *time.Timer
}

// NewTCPNetConn wraps conn and starts its background reader goroutine.
// post is called (from goroutines other than the caller's) whenever an
// event should be delivered to the owning connection.
func NewTCPNetConn(conn net.Conn, post func(Event)) *TCPNetConn {
	t := &TCPNetConn{
		conn:     conn,
		post:     post,
		resumeCh: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *TCPNetConn) readLoop() {
	for {
		if t.closed.Load() {
			return
		}
		ra := int(t.readAhead.Load())
		if ra <= 0 {
			select {
			case <-t.resumeCh:
				continue
			case <-t.done:
				return
			}
		}

		chunk := ra
		if chunk > maxReadChunk {
			chunk = maxReadChunk
		}
		buf := make([]byte, chunk)
		n, err := t.conn.Read(buf)
		if n > 0 {
			t.mu.Lock()
			t.in = append(t.in, buf[:n]...)
			t.mu.Unlock()
			t.post(NetRead)
		}
		if err != nil {
			t.post(NetError)
			return
		}
	}
}

func (t *TCPNetConn) BytesConsumable() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.in)
}

func (t *TCPNetConn) PeekInput() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.in
}

func (t *TCPNetConn) Consume(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n >= len(t.in) {
		t.in = t.in[:0]
		return
	}
	remaining := len(t.in) - n
	copy(t.in, t.in[n:])
	t.in = t.in[:remaining]
}

func (t *TCPNetConn) Clear() {
	t.mu.Lock()
	t.in = t.in[:0]
	t.out = t.out[:0]
	t.mu.Unlock()
}

func (t *TCPNetConn) EnsureReadCapacity(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cap(t.in)-len(t.in) >= n {
		return
	}
	grown := make([]byte, len(t.in), len(t.in)+n)
	copy(grown, t.in)
	t.in = grown
}

func (t *TCPNetConn) QueueOutput(b []byte) {
	t.mu.Lock()
	t.out = append(t.out, b...)
	t.mu.Unlock()
}

func (t *TCPNetConn) PendingOutputBytes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.out)
}

func (t *TCPNetConn) CanStartFlush() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.writing
}

func (t *TCPNetConn) StartFlush() {
	t.mu.Lock()
	if t.writing || len(t.out) == 0 {
		t.mu.Unlock()
		return
	}
	t.writing = true
	batch := t.out
	t.out = make([]byte, 0, len(batch))
	t.mu.Unlock()

	go t.writeBatch(batch)
}

func (t *TCPNetConn) writeBatch(batch []byte) {
	_, err := t.conn.Write(batch)

	t.mu.Lock()
	t.writing = false
	t.mu.Unlock()

	if err != nil {
		t.post(NetError)
		return
	}
	t.post(NetWrote)
}

func (t *TCPNetConn) SetReadAhead(n int) {
	t.readAhead.Store(int32(n))
	if n > 0 {
		select {
		case t.resumeCh <- struct{}{}:
		default:
		}
	}
}

func (t *TCPNetConn) SetInactivityTimeout(seconds int) {
	t.timerMu.Lock()
	defer t.timerMu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if seconds <= 0 {
		return
	}
	t.timer = time.AfterFunc(time.Duration(seconds)*time.Second, func() {
		t.post(InactivityTimeout)
	})
}

func (t *TCPNetConn) Good() bool {
	return !t.closed.Load()
}

func (t *TCPNetConn) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(t.done)
	t.timerMu.Lock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timerMu.Unlock()
	return t.conn.Close()
}

func (t *TCPNetConn) PeerAddr() string {
	if t.conn == nil || t.conn.RemoteAddr() == nil {
		return ""
	}
	return t.conn.RemoteAddr().String()
}

var _ NetConn = (*TCPNetConn)(nil)
