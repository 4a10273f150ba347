// Package server wires internal/session's reactor core to a real TCP
// listener, reusing pkg/adapter.BaseAdapter's accept loop, graceful
// shutdown, and connection tracking instead of re-implementing them.
package server

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/dittomds/internal/logger"
	"github.com/marmos91/dittomds/internal/session"
	"github.com/marmos91/dittomds/internal/telemetry"
	"github.com/marmos91/dittomds/pkg/adapter"
	"github.com/marmos91/dittomds/pkg/metrics"
	"github.com/marmos91/dittomds/pkg/rpc"
)

// Config collects everything Server needs: the listener address and
// limits, the reactor pool sizing, and the RPC procedure table the
// parser dispatches into.
type Config struct {
	ListenAddr      string
	Port            int
	MaxConnections  int
	ShutdownTimeout time.Duration

	LoopCount      int
	LoopQueueDepth int

	Tunables *session.Tunables

	Handlers        map[uint32]rpc.Handler
	DefaultHandler  rpc.Handler
	DisconnectProcs []uint32

	Metrics *metrics.Collector

	RosterMetricsInterval time.Duration
}

// Server is dittomds' metadata server: one accept loop feeding a fixed
// pool of reactor loops, each owning a disjoint set of Connections.
type Server struct {
	base    *adapter.BaseAdapter
	pool    *session.Pool
	roster  *session.Roster
	factory *connectionFactory

	metrics *metrics.Collector

	rosterInterval time.Duration
	stopRoster     chan struct{}
}

// New builds a Server. It does not start listening; call Serve for that.
func New(cfg Config) *Server {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(prometheus.DefaultRegisterer)
	}
	if cfg.Tunables == nil {
		cfg.Tunables = session.DefaultTunables()
	}

	pool := session.NewPool(cfg.LoopCount, cfg.LoopQueueDepth)
	roster := session.NewRoster()
	parser := rpc.NewParser(cfg.Handlers, cfg.DefaultHandler, cfg.DisconnectProcs...)

	base := adapter.NewBaseAdapter(adapter.BaseConfig{
		BindAddress:        cfg.ListenAddr,
		Port:               cfg.Port,
		MaxConnections:     cfg.MaxConnections,
		ShutdownTimeout:    cfg.ShutdownTimeout,
		MetricsLogInterval: cfg.RosterMetricsInterval,
	}, "dittomds")

	s := &Server{
		base:           base,
		pool:           pool,
		roster:         roster,
		metrics:        cfg.Metrics,
		rosterInterval: cfg.RosterMetricsInterval,
		stopRoster:     make(chan struct{}),
	}

	s.factory = &connectionFactory{
		pool:     pool,
		roster:   roster,
		tunables: cfg.Tunables,
		framer:   rpc.LineFramer{},
		parser:   parser,
		metrics:  cfg.Metrics,
		audit:    session.LoggingAuditSink{},
	}

	return s
}

// Serve accepts connections until ctx is cancelled, then drains in-flight
// connections per Config.ShutdownTimeout. It blocks until the accept loop
// exits.
func (s *Server) Serve(ctx context.Context) error {
	if s.rosterInterval > 0 {
		go s.reportRosterSize()
	}
	defer close(s.stopRoster)

	logger.Info("dittomds server starting", "addr", s.base.Config.BindAddress, "port", s.base.Config.Port, "loops", s.pool.Size())
	return s.base.ServeWithFactory(ctx, s.factory, nil, nil)
}

// Stop initiates graceful shutdown (see BaseAdapter.Stop for semantics),
// then retires the reactor pool once no connection can submit further
// work to it.
func (s *Server) Stop(ctx context.Context) error {
	err := s.base.Stop(ctx)
	if err != nil {
		// Connections may still be alive and posting to the pool.
		return err
	}
	s.pool.Close()
	return nil
}

// Addr returns the address the listener is bound to; blocks until the
// listener is ready, which makes it safe to call immediately after
// starting Serve in a goroutine.
func (s *Server) Addr() string { return s.base.GetListenerAddr() }

func (s *Server) reportRosterSize() {
	ticker := time.NewTicker(s.rosterInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopRoster:
			return
		case <-ticker.C:
			s.metrics.SetRosterSize(s.roster.Len())
		}
	}
}

// StartSpanForCall is the hook rpc.Handler implementations call to trace a
// single RPC procedure invocation under the connection's logical request
// lifetime.
func StartSpanForCall(ctx context.Context, name string) (context.Context, func()) {
	ctx, span := telemetry.StartSpan(ctx, name)
	return ctx, func() { span.End() }
}
