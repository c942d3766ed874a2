package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/apony/quoteintake/internal/config"
	"github.com/apony/quoteintake/internal/core/engine"
	errwrap "github.com/apony/quoteintake/internal/errors"
	"github.com/apony/quoteintake/internal/observability"
	"github.com/apony/quoteintake/internal/server"
)

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the quote request API with its notification workers.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown (drains queued notifications)
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload the config file and apply the new recipient list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return errwrap.WrapValidationError(cmd.Context(), err, "invalid configuration")
		}

		observability.InitServerLogger(observability.ServerLoggerOptions{
			Service:   config.AppName,
			Level:     logLevel(cfg),
			Profile:   cfg.Logging.Profile,
			Namespace: config.AppName,
		})
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
		}

		// Background work outlives the command context until shutdown.
		runCtx, cancelRun := context.WithCancel(context.WithoutCancel(cmd.Context()))

		shutdownTracing, err := observability.InitTracing(runCtx, observability.TracingConfig{
			Exporter: cfg.Tracing.Exporter,
			Endpoint: cfg.Tracing.Endpoint,
			Insecure: cfg.Tracing.Insecure,
		}, versionInfo.Version)
		if err != nil {
			cancelRun()
			return errwrap.WrapInternal(cmd.Context(), err, "tracing initialization failed")
		}

		a, err := buildApp(runCtx, cfg, logger)
		if err != nil {
			cancelRun()
			logger.Error("Failed to initialize service", zap.Error(err))
			return errwrap.WrapInternal(cmd.Context(), err, "service initialization failed")
		}

		logger.Info("Initializing server",
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.String("store_driver", a.store.Driver()),
			zap.String("rate_limit_backend", cfg.RateLimit.Backend),
			zap.Int("recipients", len(a.dispatcher.Recipients())),
			zap.Bool("metrics", cfg.Metrics.Enabled),
			zap.Int("metrics_port", observability.GetMetricsPort()))

		if mem, ok := a.rateStore.(*engine.MemoryRateStore); ok {
			go mem.RunSweeper(runCtx, cfg.RateLimit.SweepInterval, nil)
		}
		a.dispatcher.Start(runCtx)
		go a.verifyMail(runCtx, logger)

		srv := server.New(cfg.Server, server.Deps{
			Intake:     a.intake,
			Health:     a.health,
			AdminToken: adminToken(),
		})

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run LIFO: HTTP server, dispatcher, resources, logger.
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			observability.Sync()
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			defer cancelRun()
			tracingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := shutdownTracing(tracingCtx); err != nil {
				logger.Warn("Tracing shutdown returned error", zap.Error(err))
			}
			if err := a.close(); err != nil {
				return errwrap.WrapInternal(ctx, err, "resource cleanup failed")
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Draining notification queue...",
				zap.Int("queued", a.dispatcher.QueueDepth()))
			drainCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			if err := a.dispatcher.Stop(drainCtx); err != nil {
				logger.Warn("Notification queue not fully drained", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: reloading configuration")
			return reloadConfig(ctx, a)
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			logger.Info("Starting HTTP server...", zap.String("addr", srv.Addr()))
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		a.health.MarkStarted()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

// reloadConfig rereads the config file and applies settings that can change
// without a restart. Today that is the notification recipient list.
func reloadConfig(ctx context.Context, a *app) error {
	logger := observability.ServerLogger

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logger.Error("Failed to reload config file",
				zap.String("file", viper.ConfigFileUsed()),
				zap.Error(err))
			return errwrap.WrapValidationError(ctx, err, "config reload failed")
		}
		logger.Info("No config file found - using defaults and environment variables")
	}

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("Reloaded configuration is invalid; keeping current settings", zap.Error(err))
		return errwrap.WrapValidationError(ctx, err, "config reload failed")
	}

	a.dispatcher.SetRecipients(cfg.Notify.RecipientList())
	a.cfg = cfg

	logger.Info("Configuration reloaded",
		zap.String("file", viper.ConfigFileUsed()),
		zap.Int("recipients", len(a.dispatcher.Recipients())))
	return nil
}

func logLevel(cfg *config.Config) string {
	if verbose {
		return "debug"
	}
	return cfg.Logging.Level
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
