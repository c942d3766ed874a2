package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/apony/quoteintake/internal/config"
	"github.com/apony/quoteintake/internal/core/engine"
	"github.com/apony/quoteintake/internal/core/notify"
	"github.com/apony/quoteintake/internal/core/store"
	"github.com/apony/quoteintake/internal/server/handlers"
)

// queueDegradedRatio marks the dispatcher degraded once its queue is this full.
const queueDegradedRatio = 0.9

// app holds the assembled service components.
type app struct {
	cfg        *config.Config
	store      *store.Store
	rateStore  engine.RateLimitStore
	dispatcher *notify.Dispatcher
	smtp       *notify.SMTPTransport
	intake     *engine.Intake
	health     *handlers.HealthManager

	closers []func() error
}

// buildApp opens the store and wires the intake pipeline. Background work
// (dispatcher workers, sweeper) is started by the caller.
func buildApp(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*app, error) {
	db, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{cfg: cfg, store: db}
	a.closers = append(a.closers, db.Close)

	rateStore, closeRate, err := newRateLimitStore(ctx, cfg)
	if err != nil {
		_ = a.close()
		return nil, err
	}
	a.rateStore = rateStore
	if closeRate != nil {
		a.closers = append(a.closers, closeRate)
	}

	dispatcher, smtp, err := newDispatcher(ctx, cfg, db, logger)
	if err != nil {
		_ = a.close()
		return nil, err
	}
	a.dispatcher = dispatcher
	a.smtp = smtp

	limiter := engine.NewRateLimiter(rateStore)
	a.intake = &engine.Intake{
		Limiter: limiter,
		Rule: engine.RateLimitRule{
			Name:   engine.QuoteRequestRule.Name,
			Window: cfg.RateLimit.QuoteRequest.Window,
			Max:    cfg.RateLimit.QuoteRequest.Max,
		},
		Codes:    engine.NewSequenceGenerator(db),
		Repo:     db,
		Audit:    db,
		Notifier: dispatcher,
		Logger:   logger,
	}

	a.health = handlers.NewHealthManager(versionInfo.Version)
	a.health.RegisterChecker("store", handlers.CheckerFunc(db.Ping))
	a.health.RegisterChecker("notify_queue", handlers.QueueChecker(dispatcher, queueDegradedRatio))
	if pinger, ok := rateStore.(interface{ Ping(context.Context) error }); ok {
		a.health.RegisterChecker("rate_limit_store", handlers.CheckerFunc(pinger.Ping))
	}

	return a, nil
}

// newRateLimitStore returns the configured limiter backend and its closer.
func newRateLimitStore(ctx context.Context, cfg *config.Config) (engine.RateLimitStore, func() error, error) {
	switch cfg.RateLimit.Backend {
	case "redis":
		rs, err := engine.NewRedisRateStore(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect rate limit redis: %w", err)
		}
		return rs, rs.Close, nil
	default:
		return engine.NewMemoryRateStore(), nil, nil
	}
}

// newSecretProvider returns nil when no provider is configured.
func newSecretProvider(ctx context.Context, cfg config.SecretsConfig) (notify.SecretProvider, error) {
	switch cfg.Provider {
	case "aws":
		provider, err := notify.NewAWSSecretProvider(ctx, cfg.Region)
		if err != nil {
			return nil, fmt.Errorf("init aws secret provider: %w", err)
		}
		return provider, nil
	default:
		return nil, nil
	}
}

// buildTransports returns the transport chain in dispatch order: the cloud
// function first, SMTP second.
func buildTransports(cfg *config.Config, secrets notify.SecretProvider, logger *logging.Logger) ([]notify.Transport, *notify.SMTPTransport) {
	function := notify.NewCloudFunctionTransport(notify.CloudFunctionConfig{
		URL:      cfg.Notify.FunctionURL,
		Timeout:  cfg.Notify.FunctionTimeout,
		Lang:     cfg.Notify.Lang,
		Currency: cfg.Notify.Currency,
		Brand: notify.Brand{
			Name:         cfg.Notify.Brand.Name,
			PrimaryColor: cfg.Notify.Brand.PrimaryColor,
			HeaderBg:     cfg.Notify.Brand.HeaderBg,
			HeaderFg:     cfg.Notify.Brand.HeaderFg,
		},
	}, nil)

	creds := &notify.CredentialCache{
		Provider: secrets,
		Fallback: notify.Credentials{
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		},
		Prefix: cfg.Secrets.Prefix,
		TTL:    cfg.Secrets.TTL,
		Logger: logger,
	}
	smtp := notify.NewSMTPTransport(notify.SMTPConfig{
		Host:    cfg.SMTP.Host,
		Port:    cfg.SMTP.Port,
		Timeout: cfg.SMTP.Timeout,
	}, creds)

	return []notify.Transport{function, smtp}, smtp
}

func newDispatcher(ctx context.Context, cfg *config.Config, audit notify.AuditSink, logger *logging.Logger) (*notify.Dispatcher, *notify.SMTPTransport, error) {
	secrets, err := newSecretProvider(ctx, cfg.Secrets)
	if err != nil {
		return nil, nil, err
	}
	transports, smtp := buildTransports(cfg, secrets, logger)

	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		Recipients:  cfg.Notify.RecipientList(),
		FrontendURL: cfg.Notify.FrontendURL,
		QueueSize:   cfg.Notify.QueueSize,
		Workers:     cfg.Notify.Workers,
	}, audit, logger, transports...)

	if len(dispatcher.Recipients()) == 0 && logger != nil {
		logger.Warn("No notification recipients configured; quote requests will not be notified")
	}
	return dispatcher, smtp, nil
}

// close releases resources in reverse acquisition order.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// verifyMail checks SMTP credentials at startup; failures are logged only.
func (a *app) verifyMail(ctx context.Context, logger *logging.Logger) {
	if a.smtp == nil || !a.smtp.Configured() || logger == nil {
		return
	}
	if err := a.smtp.Verify(ctx); err != nil {
		logger.Warn("SMTP fallback transport not ready", zap.Error(err))
		return
	}
	logger.Info("SMTP fallback transport verified", zap.String("host", a.cfg.SMTP.Host))
}
