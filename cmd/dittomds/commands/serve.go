package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittomds/internal/logger"
	"github.com/marmos91/dittomds/internal/session"
	"github.com/marmos91/dittomds/internal/telemetry"
	"github.com/marmos91/dittomds/pkg/config"
	"github.com/marmos91/dittomds/pkg/rpc"
	"github.com/marmos91/dittomds/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dittomds metadata server",
	Long: `Run the dittomds metadata server in the foreground.

Examples:
  # Serve with built-in defaults
  dittomds serve

  # Serve with a config file
  dittomds serve --config /etc/dittomds/config.yaml

  # Override one value via environment
  DITTOMDS_LOGGING_LEVEL=DEBUG dittomds serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	v, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	cfg, err := config.Unmarshal(v)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: Version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleFraction: cfg.Telemetry.SampleFraction,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	tunablesCfg, err := cfg.Session.ToTunablesConfig(cfg.Server.LoopCount)
	if err != nil {
		return fmt.Errorf("applying session tunables: %w", err)
	}
	tunables := session.DefaultTunables()
	tunables.Update(tunablesCfg)

	if GetConfigFile() != "" {
		watcher, err := config.NewWatcher(v, GetConfigFile(), tunables)
		if err != nil {
			return fmt.Errorf("watching config file: %w", err)
		}
		defer watcher.Close()
	}

	srv := server.New(server.Config{
		ListenAddr:            hostOf(cfg.Server.ListenAddr),
		Port:                  portOf(cfg.Server.ListenAddr),
		MaxConnections:        cfg.Server.MaxConnections,
		ShutdownTimeout:       30 * time.Second,
		LoopCount:             cfg.Server.LoopCount,
		LoopQueueDepth:        cfg.Server.LoopQueueDepth,
		Tunables:              tunables,
		Handlers:              map[uint32]rpc.Handler{},
		DefaultHandler:        unavailableHandler,
		RosterMetricsInterval: 30 * time.Second,
	})

	logger.Info("dittomds starting", "listen_addr", cfg.Server.ListenAddr, "loops", cfg.Server.LoopCount)

	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.Serve(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		signal.Stop(sigCh)
		logger.Info("shutdown signal received")
		cancel()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := srv.Stop(stopCtx); err != nil {
			logger.Error("server shutdown error", logger.Err(err))
			return err
		}
		logger.Info("server stopped gracefully")
	case err := <-serverDone:
		signal.Stop(sigCh)
		if err != nil {
			logger.Error("server error", logger.Err(err))
			return err
		}
		logger.Info("server stopped")
	}

	return nil
}

// unavailableHandler answers any procedure this build has no registered
// handler for. The session/RPC-framing core this command wires together
// is protocol-complete on its own; binding specific filesystem procedures
// to it is left to callers of pkg/server, which is why the default table
// ships empty.
func unavailableHandler(_ context.Context, call *rpc.Call) ([]byte, bool) {
	logger.Warn("no handler registered for procedure", logger.Operation(call.Describe()))
	return nil, true
}
