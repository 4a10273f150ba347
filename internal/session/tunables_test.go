package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultTunablesAreSane(t *testing.T) {
	tun := DefaultTunables()
	require.Positive(t, tun.MaxPendingOps())
	require.Positive(t, tun.MaxReadAhead())
	require.Positive(t, tun.InactivityTimeout())
}

func TestUpdateAppliesValues(t *testing.T) {
	tun := DefaultTunables()
	tun.Update(TunablesConfig{
		MaxPendingOps:            10,
		MaxPendingBytes:          1 << 20,
		MaxReadAhead:             8192,
		MaxWriteBehind:           1 << 20,
		InactivityTimeoutSeconds: 60,
		InputCompactAt:           2048,
		OutputCompactAt:          2048,
		AuditLogging:             true,
	})

	require.EqualValues(t, 10, tun.MaxPendingOps())
	require.EqualValues(t, 8192, tun.MaxReadAhead())
	require.EqualValues(t, 60, tun.InactivityTimeout())
	require.True(t, tun.AuditLogging())
}

func TestUpdateClampsPathologicalValues(t *testing.T) {
	tun := DefaultTunables()
	tun.Update(TunablesConfig{
		MaxPendingOps:   0,
		MaxPendingBytes: 0,
		MaxReadAhead:    0,
		MaxWriteBehind:  0,
	})

	// Non-positive MaxPendingOps in single-threaded mode keeps whatever was
	// already configured (DefaultTunables' 64), rather than being forced to
	// a fixed floor.
	require.EqualValues(t, 64, tun.MaxPendingOps())
	require.GreaterOrEqual(t, tun.MaxReadAhead(), int32(256))
}

func TestUpdateDefaultsMaxPendingOpsTo16WhenMultiThreaded(t *testing.T) {
	tun := DefaultTunables()
	tun.Update(TunablesConfig{
		MaxPendingOps: 0,
		MultiThreaded: true,
	})

	require.EqualValues(t, 16, tun.MaxPendingOps())
}

func TestUpdateAllowsZeroCompactionThresholds(t *testing.T) {
	tun := DefaultTunables()
	tun.Update(TunablesConfig{
		MaxPendingOps:   1,
		MaxPendingBytes: 4096,
		MaxReadAhead:    4096,
		MaxWriteBehind:  4096,
		InputCompactAt:  0,
		OutputCompactAt: 0,
	})

	require.Zero(t, tun.InputCompactAt())
	require.Zero(t, tun.OutputCompactAt())
}

func TestUpdateAllowsDisablingInactivityTimeout(t *testing.T) {
	tun := DefaultTunables()
	tun.Update(TunablesConfig{
		MaxPendingOps:            1,
		MaxPendingBytes:          4096,
		MaxReadAhead:             4096,
		MaxWriteBehind:           4096,
		InactivityTimeoutSeconds: 0,
		InputCompactAt:           4096,
		OutputCompactAt:          4096,
	})
	require.Zero(t, tun.InactivityTimeout())
}
