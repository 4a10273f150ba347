package session

import (
	"context"
	"runtime/debug"
	"sync/atomic"

	"github.com/marmos91/dittomds/internal/logger"
)

// job is the unit of work a Loop's channel carries: either an event for a
// connection the loop already owns, or a freshly submitted request to run.
type job struct {
	kind runRequest
	ev   Event
	conn *Connection
	req  Request
	home Affinity // only meaningful when kind == runRequestJob
}

type runRequest bool

const (
	dispatchJob   runRequest = false
	runRequestJob runRequest = true
)

// Loop is one reactor worker: a single goroutine draining a channel of
// jobs. A Pool runs several loops; each connection is pinned to exactly
// one for its lifetime, but any loop may be handed a Submit job for any
// connection's request, which is how the session core realizes spec's
// executor hand-off without a separate worker pool.
type Loop struct {
	id    Affinity
	jobs  chan job
	pool  *Pool
}

func newLoop(id Affinity, pool *Pool, queueDepth int) *Loop {
	return &Loop{
		id:   id,
		jobs: make(chan job, queueDepth),
		pool: pool,
	}
}

func (l *Loop) run() {
	for j := range l.jobs {
		l.process(j)
	}
}

func (l *Loop) process(j job) {
	switch j.kind {
	case dispatchJob:
		l.dispatch(j)
	case runRequestJob:
		l.execute(j)
	}
}

func (l *Loop) dispatch(j job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in connection dispatch, tearing down",
				logger.ConnectionID(j.conn.id),
				logger.Err(asError(r)),
			)
			debug.PrintStack()
			j.conn.forceDestroy()
		}
	}()
	j.conn.dispatchTop(j.ev, j.req)
}

// execute runs a submitted request on whichever loop goroutine picked it
// up, then delivers CmdDone to the connection's home loop. If this loop IS
// the home loop, delivery is a direct call (not rerouted); otherwise it is
// a channel send (rerouted). This is the concrete realization of
// Executor.Submit / the "pre-dispatch offer" spec.md describes: a
// completion either lands on its home loop for free, or is handed off
// exactly once.
func (l *Loop) execute(j job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic executing request, tearing down connection",
				logger.ConnectionID(j.conn.id),
				logger.Err(asError(r)),
			)
			debug.PrintStack()
			j.conn.forceDestroy()
			return
		}
	}()

	ctx := j.conn.executionContext()
	j.req.Execute(ctx)

	if l.id == j.home {
		j.conn.dispatchTop(CmdDone, j.req)
		return
	}
	l.pool.deliverTo(j.home, j.conn, j.req)
}

func asError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return errRecovered{r}
}

type errRecovered struct{ v any }

func (e errRecovered) Error() string { return "recovered panic: " + toString(e.v) }

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if se, ok := v.(interface{ String() string }); ok {
		return se.String()
	}
	return "non-string panic value"
}

// Pool is a fixed-size set of Loops that together serve as both the
// reactor (dispatching NetRead/NetWrote/NetError/InactivityTimeout/CmdDone
// events to pinned connections) and the executor (running submitted
// requests on whichever loop is handed them). There is deliberately no
// separate worker pool for request execution: spec.md's executor is a
// role, not a thread pool, and any reactor loop can fill it.
type Pool struct {
	loops []*Loop
	next  atomic.Uint64 // round-robin cursor for Assign/Submit
}

// NewPool creates a Pool of n loops, each with the given per-loop job
// queue depth, and starts their goroutines. n must be >= 1.
func NewPool(n int, queueDepth int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{loops: make([]*Loop, n)}
	for i := range p.loops {
		p.loops[i] = newLoop(Affinity(i), p, queueDepth)
	}
	for _, l := range p.loops {
		go l.run()
	}
	return p
}

// Assign picks a home loop for a newly accepted connection, round-robin.
func (p *Pool) Assign() Affinity {
	n := uint64(len(p.loops))
	idx := p.next.Add(1) - 1
	return Affinity(idx % n)
}

// Size returns the number of loops in the pool.
func (p *Pool) Size() int { return len(p.loops) }

// Post delivers an event for conn to its home loop. Called through
// Connection.Post by the connection's NetConn background goroutines
// (reader, writer, timer) and by Connection.RequestShutdown.
func (p *Pool) Post(home Affinity, conn *Connection, ev Event) {
	p.loops[home].jobs <- job{kind: dispatchJob, ev: ev, conn: conn}
}

// Submit implements Executor.Submit: it hands req to some loop in the pool
// (not necessarily conn's home loop) to run.
func (p *Pool) Submit(home Affinity, conn *Connection, req Request) {
	idx := p.next.Add(1) - 1
	target := idx % uint64(len(p.loops))
	p.loops[target].jobs <- job{kind: runRequestJob, conn: conn, req: req, home: home}
}

// FlushAfter implements Executor.FlushAfter. The pool's executor role
// never proactively flushes; it always leaves that to the connection core
// once CmdDone is dispatched.
func (p *Pool) FlushAfter(Affinity, *Connection, Request) bool { return false }

// deliverTo is called by a loop that just finished executing a request on
// behalf of a connection whose home is a different loop.
func (p *Pool) deliverTo(home Affinity, conn *Connection, req Request) {
	p.loops[home].jobs <- job{kind: dispatchJob, ev: CmdDone, conn: conn, req: req}
}

// Close stops accepting new work and drains each loop's goroutine once its
// queue empties. It does not forcibly abort in-flight work.
func (p *Pool) Close() {
	for _, l := range p.loops {
		close(l.jobs)
	}
}

var _ Executor = (*Pool)(nil)

// backgroundContext is the root context requests execute under when the
// connection itself doesn't carry a request-scoped one. Kept as a package
// var rather than context.Background() directly so tests can swap it.
var backgroundContext = context.Background()
