package server

import (
	"context"
	"net"

	"github.com/marmos91/dittomds/internal/session"
	"github.com/marmos91/dittomds/pkg/adapter"
)

// connectionFactory implements adapter.ConnectionFactory: every TCP socket
// BaseAdapter accepts becomes one internal/session.Connection pinned to a
// loop in the shared Pool.
type connectionFactory struct {
	pool     *session.Pool
	roster   *session.Roster
	tunables *session.Tunables
	framer   session.Framer
	parser   session.Parser
	metrics  session.Metrics
	audit    session.AuditSink
}

func (f *connectionFactory) NewConnection(conn net.Conn) adapter.ConnectionHandler {
	box := newConnBox()

	netConn := session.NewTCPNetConn(conn, box.post)
	sessConn := session.NewConnection(session.Config{
		Net:      netConn,
		Framer:   f.framer,
		Parser:   f.parser,
		Pool:     f.pool,
		Roster:   f.roster,
		Tunables: f.tunables,
		Metrics:  f.metrics,
		Audit:    f.audit,
	})
	box.set(sessConn)

	return &sessionHandler{conn: sessConn}
}

// sessionHandler adapts a session.Connection to adapter.ConnectionHandler.
// The reactor loop does the actual work; Serve only needs to keep
// BaseAdapter's bookkeeping (activeConns, ConnCount, metrics) accurate by
// blocking for the connection's whole lifetime, whichever end triggers it
// first: the connection tearing itself down, or the server shutting down.
type sessionHandler struct {
	conn *session.Connection
}

func (h *sessionHandler) Serve(ctx context.Context) {
	select {
	case <-h.conn.Done():
	case <-ctx.Done():
		h.conn.RequestShutdown()
		<-h.conn.Done()
	}
}

var _ adapter.ConnectionFactory = (*connectionFactory)(nil)
var _ adapter.ConnectionHandler = (*sessionHandler)(nil)
