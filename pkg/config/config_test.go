package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(&cfg))
}

func TestLoadAppliesDefaultsWithoutAFile(t *testing.T) {
	v, err := Load("")
	require.NoError(t, err)

	cfg, err := Unmarshal(v)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Server.ListenAddr, cfg.Server.ListenAddr)
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dittomds.yaml")
	contents := "server:\n  listen_addr: \"127.0.0.1:9999\"\n  loop_count: 8\n  loop_queue_depth: 128\n  max_connections: 10\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	v, err := Load(path)
	require.NoError(t, err)

	cfg, err := Unmarshal(v)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9999", cfg.Server.ListenAddr)
	require.Equal(t, 8, cfg.Server.LoopCount)
}

func TestValidateRejectsBadListenAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.ListenAddr = "not-an-address"
	require.Error(t, Validate(&cfg))
}

func TestValidateRejectsUnparseableByteSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.MaxReadAhead = "not-a-size"
	require.Error(t, Validate(&cfg))
}

func TestValidateRequiresOTLPEndpointWhenTelemetryEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.OTLPEndpoint = ""
	require.Error(t, Validate(&cfg))
}

func TestSessionConfigToTunablesConfig(t *testing.T) {
	cfg := DefaultConfig()
	tc, err := cfg.Session.ToTunablesConfig(cfg.Server.LoopCount)
	require.NoError(t, err)
	require.EqualValues(t, 64, tc.MaxPendingOps)
	require.EqualValues(t, 4*1024*1024, tc.MaxPendingBytes)
	require.EqualValues(t, 256*1024, tc.MaxReadAhead)
}
