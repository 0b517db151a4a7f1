package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hotelops/requisition-approval/internal/config"
	"github.com/hotelops/requisition-approval/internal/container"
	httpapi "github.com/hotelops/requisition-approval/internal/interfaces/http"
	"github.com/hotelops/requisition-approval/internal/metrics"
	"github.com/hotelops/requisition-approval/pkg/utils"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.DefaultPath()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var logger *zap.Logger
	if cfg.Server.Mode == "debug" {
		logger, err = utils.NewDevelopmentLogger()
	} else {
		logger, err = utils.NewLogger(utils.LoggerConfig{
			Level:      cfg.Logger.Level,
			OutputPath: cfg.Logger.OutputPath,
			Format:     cfg.Logger.Format,
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting requisition approval service",
		zap.String("version", "1.0.0"),
		zap.String("config", configPath),
		zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Service stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("Server exited successfully")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	m := metrics.New()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger, container.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start container: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	services := c.Services()
	server := httpapi.NewServer(
		httpapi.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			Mode:         cfg.Server.Mode,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		httpapi.Services{
			Requisitions: services.Requisition,
			Approvals:    services.Approval,
			Exports:      services.Export,
		},
		utils.NewKVLogger(logger.Named("http")),
		httpapi.WithMetrics(m),
		httpapi.WithHealth(func() (bool, interface{}) {
			h := c.Health()
			return h.Overall, h.Components
		}),
	)

	// blocks until a signal cancels ctx
	return server.Start(ctx)
}
