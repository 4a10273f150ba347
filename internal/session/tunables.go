package session

import "sync/atomic"

// Tunables holds the per-connection flow-control and back-pressure knobs.
// Every field is a separate atomic word so that concurrent readers (the
// reactor loop dispatching events) never block on a writer (a config
// reload pushing new values), and vice versa. Readers may observe a value
// from before or after a concurrent update but never a torn one; the
// fields are intentionally independent rather than swapped as one struct,
// matching the relaxed consistency spec.md allows for live tunable
// updates ("these may race harmlessly with in-flight reads").
type Tunables struct {
	maxPendingOps     atomic.Int32
	maxPendingBytes   atomic.Int64
	maxReadAhead      atomic.Int32
	maxWriteBehind    atomic.Int64
	inactivityTimeout atomic.Int32 // seconds; <=0 disables
	inputCompactAt    atomic.Int32
	outputCompactAt   atomic.Int32
	auditLogging      atomic.Bool
}

// DefaultTunables returns a Tunables populated with conservative defaults,
// intended to be overridden by configuration at startup.
func DefaultTunables() *Tunables {
	t := &Tunables{}
	t.maxPendingOps.Store(64)
	t.maxPendingBytes.Store(4 << 20)
	t.maxReadAhead.Store(256 << 10)
	t.maxWriteBehind.Store(4 << 20)
	t.inactivityTimeout.Store(300)
	t.inputCompactAt.Store(64 << 10)
	t.outputCompactAt.Store(64 << 10)
	t.auditLogging.Store(false)
	return t
}

func (t *Tunables) MaxPendingOps() int32     { return t.maxPendingOps.Load() }
func (t *Tunables) MaxPendingBytes() int64   { return t.maxPendingBytes.Load() }
func (t *Tunables) MaxReadAhead() int32      { return t.maxReadAhead.Load() }
func (t *Tunables) MaxWriteBehind() int64    { return t.maxWriteBehind.Load() }
func (t *Tunables) InactivityTimeout() int32 { return t.inactivityTimeout.Load() }
func (t *Tunables) InputCompactAt() int32    { return t.inputCompactAt.Load() }
func (t *Tunables) OutputCompactAt() int32   { return t.outputCompactAt.Load() }
func (t *Tunables) AuditLogging() bool       { return t.auditLogging.Load() }

// Update applies new values. maxPendingOps follows the spec's own oddly
// specific rule rather than a blanket clamp: a non-positive value in config
// defaults to 16 when the reactor is running multi-threaded (the only mode
// where an un-bounded per-connection backlog can starve other connections'
// workers), and otherwise keeps whatever value was already in effect rather
// than being forced to some fixed floor. Every other field is clamped to
// the sane minimum spec.md assigns it; compaction thresholds have none —
// arbitrary non-negative integers, including 0 (compaction disabled), are
// legal.
func (t *Tunables) Update(cfg TunablesConfig) {
	switch {
	case cfg.MaxPendingOps > 0:
		t.maxPendingOps.Store(cfg.MaxPendingOps)
	case cfg.MultiThreaded:
		t.maxPendingOps.Store(16)
	} // else: non-positive, single-threaded - keep the previous value.

	t.maxPendingBytes.Store(clampInt64(cfg.MaxPendingBytes, 1))
	t.maxReadAhead.Store(clampInt32(cfg.MaxReadAhead, 256))
	t.maxWriteBehind.Store(clampInt64(cfg.MaxWriteBehind, 1))
	t.inactivityTimeout.Store(cfg.InactivityTimeoutSeconds) // <=0 is meaningful (disabled)
	t.inputCompactAt.Store(clampInt32(cfg.InputCompactAt, 0))
	t.outputCompactAt.Store(clampInt32(cfg.OutputCompactAt, 0))
	t.auditLogging.Store(cfg.AuditLogging)
}

// TunablesConfig is the plain-data form of Tunables, as decoded from
// configuration. It exists so pkg/config does not need to depend on
// atomics, and so a config reload can be validated before being applied.
type TunablesConfig struct {
	MaxPendingOps            int32
	MaxPendingBytes          int64
	MaxReadAhead             int32
	MaxWriteBehind           int64
	InactivityTimeoutSeconds int32
	InputCompactAt           int32
	OutputCompactAt          int32
	AuditLogging             bool

	// MultiThreaded reports whether the reactor is configured to run more
	// than one loop before it starts, per spec.md §4.1's maxPendingOps
	// default-to-16 rule.
	MultiThreaded bool
}

func clampInt32(v, min int32) int32 {
	if v < min {
		return min
	}
	return v
}

func clampInt64(v, min int64) int64 {
	if v < min {
		return min
	}
	return v
}
