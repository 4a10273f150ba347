package server

import (
	"sync"

	"github.com/marmos91/dittomds/internal/session"
)

// connBox hands a *session.Connection to the TCPNetConn's background
// goroutines once it exists. internal/session.NewConnection needs a
// fully-built NetConn to construct a Connection, but the NetConn's post
// callback needs a reference to the Connection it will end up posting to
// -- a short chicken-and-egg that a plain closure over a bare pointer
// would resolve unsafely (the reader goroutine could in principle wake
// before the assignment was visible). connBox closes that window with a
// condition variable instead of leaving it to happen to work out.
type connBox struct {
	mu   sync.Mutex
	cond *sync.Cond
	conn *session.Connection
}

func newConnBox() *connBox {
	b := &connBox{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *connBox) set(c *session.Connection) {
	b.mu.Lock()
	b.conn = c
	b.mu.Unlock()
	b.cond.Broadcast()
}

func (b *connBox) post(ev session.Event) {
	b.mu.Lock()
	for b.conn == nil {
		b.cond.Wait()
	}
	c := b.conn
	b.mu.Unlock()
	c.Post(ev)
}
