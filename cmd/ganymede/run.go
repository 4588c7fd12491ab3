package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/audit"
	"mercator-hq/ganymede/pkg/backend"
	"mercator-hq/ganymede/pkg/backend/openai"
	"mercator-hq/ganymede/pkg/cli"
	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/gateway"
	"mercator-hq/ganymede/pkg/telemetry/logging"
	"mercator-hq/ganymede/pkg/telemetry/metrics"
	"mercator-hq/ganymede/pkg/transport"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Ganymede gateway",
	Long: `Start the Ganymede gateway with the specified configuration.

The gateway listens on the configured address, upgrades client connections
to WebSocket, and serves JSON-RPC completion requests against the configured
backend.

Examples:
  # Start with default config
  ganymede run

  # Start with custom config
  ganymede run --config /etc/ganymede/config.yaml

  # Override listen address
  ganymede run --listen 0.0.0.0:8080

  # Validate config without starting
  ganymede run --dry-run`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the gateway")
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}

	// Flag overrides beat both file and environment.
	if runFlags.listenAddress != "" {
		cfg.Gateway.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.Setup(cfg.Telemetry.Logging)
	if err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Ganymede v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)

	// Audit trail (optional).
	var recorder *audit.Recorder
	var managerOpts []gateway.ManagerOption
	managerOpts = append(managerOpts, gateway.WithMetrics(collector))
	if cfg.Audit.Enabled {
		store, err := audit.NewSQLiteStore(cfg.Audit.SQLitePath)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("opening audit store: %w", err))
		}
		recorder = audit.NewRecorder(store, cfg.Audit.QueueSize,
			audit.WithDropHook(collector.AuditRecordDropped))
		defer recorder.Close()
		managerOpts = append(managerOpts, gateway.WithAuditRecorder(recorder))

		if cfg.Audit.PruneSchedule != "" {
			pruner := audit.NewPruner(store, cfg.Audit.RetentionDays, cfg.Audit.PruneSchedule)
			if err := pruner.Start(context.Background()); err != nil {
				slog.Warn("audit retention scheduler failed to start", "error", err)
			} else {
				defer pruner.Stop()
			}
		}
		fmt.Println("✓ Audit store initialized")
	}

	// Backend adapter.
	bk, err := openai.New(backend.Config{
		Name:       cfg.Backend.Type,
		Type:       cfg.Backend.Type,
		BaseURL:    cfg.Backend.BaseURL,
		APIKey:     cfg.Backend.APIKey,
		APIKeyFile: cfg.Backend.APIKeyFile,
		Model:      cfg.Backend.Model,
		Timeout:    cfg.Backend.Timeout,
		MaxRetries: cfg.Backend.MaxRetries,
	})
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("initializing backend: %w", err))
	}
	defer bk.Close()
	fmt.Printf("✓ Backend initialized (%s, model %s)\n", cfg.Backend.Type, cfg.Backend.Model)

	// Gateway core.
	registry := gateway.NewRegistry(gateway.RegistryConfig{
		SweepInterval: cfg.Gateway.SweepInterval,
		IdleTimeout:   cfg.Gateway.IdleTimeout,
	}, logger, collector)
	coord := gateway.NewCoordinator(gateway.CoordinatorConfig{
		DrainGrace:      cfg.Gateway.DrainGrace,
		ShutdownTimeout: cfg.Gateway.ShutdownTimeout,
	}, registry, logger)
	manager := gateway.NewManager(gateway.ManagerConfig{
		ServerName:    cfg.Gateway.ServerName,
		ServerVersion: Version,
	}, bk, registry, coord, logger, managerOpts...)

	srv := transport.NewServer(cfg.Gateway, cfg.Telemetry.Metrics,
		manager, registry, coord, bk, collector, logger)

	fmt.Printf("✓ Gateway listening on %s\n", cfg.Gateway.ListenAddress)
	fmt.Printf("✓ Connect endpoint: ws://%s/v1/connect\n", cfg.Gateway.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Gateway.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Gateway.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	ctx := cli.SetupSignalHandler()
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Gateway stopped")
	return nil
}
