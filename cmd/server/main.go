package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kerlexov/logcollector/pkg/broadcast"
	"github.com/kerlexov/logcollector/pkg/config"
	"github.com/kerlexov/logcollector/pkg/health"
	"github.com/kerlexov/logcollector/pkg/ingestion"
	"github.com/kerlexov/logcollector/pkg/logging"
	"github.com/kerlexov/logcollector/pkg/logservice"
	"github.com/kerlexov/logcollector/pkg/metrics"
	"github.com/kerlexov/logcollector/pkg/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "logcollector",
		Short:         "Log collection backend",
		Long:          "Accepts structured log entries over HTTP, stores them and streams new entries to connected listeners.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			port, _ := cmd.Flags().GetInt("port")

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid configuration: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}
	rootCmd.Flags().String("config", "", "path to a YAML configuration file")
	rootCmd.Flags().Int("port", 0, "HTTP listen port (overrides configuration)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := storage.New(ctx, cfg.Storage.Type, cfg.Storage.ConnectionString, cfg.Storage.MaxConnections)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("storage ready", zap.String("type", cfg.Storage.Type))

	m := metrics.NewMetrics()
	serviceOpts := logservice.Options{Logger: logger, Metrics: m}
	healthOpts := health.Options{Logger: logger}

	if cfg.Search.Enabled {
		index, err := storage.NewSearchIndex(cfg.Search.IndexPath, logger)
		if err != nil {
			return fmt.Errorf("failed to open search index: %w", err)
		}
		defer index.Close()

		reindexed, err := index.Sync(ctx, store)
		if err != nil {
			return fmt.Errorf("failed to sync search index: %w", err)
		}
		if reindexed > 0 {
			logger.Info("search index rebuilt from storage", zap.Int("records", reindexed))
		}

		serviceOpts.Searcher = index
		serviceOpts.Observers = append(serviceOpts.Observers, index)
		healthOpts.Search = index
		logger.Info("search index ready", zap.String("path", cfg.Search.IndexPath))
	}

	var transport *broadcast.Server
	if cfg.Broadcast.Enabled {
		registry := broadcast.NewRegistry(broadcast.Options{Logger: logger, Metrics: m})
		transport, err = broadcast.NewServer(registry, broadcast.ServerOptions{
			MaxListeners: cfg.Broadcast.MaxListeners,
			SendBuffer:   cfg.Broadcast.SendBuffer,
			WriteTimeout: cfg.Broadcast.WriteTimeout,
			PingInterval: cfg.Broadcast.PingInterval,
			Logger:       logger,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize broadcast: %w", err)
		}
		defer transport.Close()

		serviceOpts.Observers = append(serviceOpts.Observers, registry)
		healthOpts.Listeners = registry
	}

	service := logservice.New(store, serviceOpts)

	server, err := ingestion.NewServer(cfg, ingestion.Dependencies{
		Service:   service,
		Broadcast: transport,
		Health:    health.NewChecker(store, healthOpts),
		Metrics:   m,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	logger.Info("logcollector starting", zap.String("version", version), zap.String("addr", cfg.Server.Addr()))

	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("logcollector stopped")
	return nil
}
