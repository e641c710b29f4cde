package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/yungbote/crm-gateway/internal/crm"
	"github.com/yungbote/crm-gateway/internal/gateway/config"
	"github.com/yungbote/crm-gateway/internal/gateway/httpapi"
	"github.com/yungbote/crm-gateway/internal/gateway/platform/shutdown"
	"github.com/yungbote/crm-gateway/internal/gateway/upstream"
	"github.com/yungbote/crm-gateway/internal/observability"
	"github.com/yungbote/crm-gateway/internal/platform/logger"
)

type App struct {
	Log     *logger.Logger
	Config  *config.Config
	Metrics *observability.Metrics
	Client  *crm.Client

	upstreams    *upstream.Upstreams
	server       *http.Server
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Env,
		Version:     cfg.Telemetry.Version,
	})

	a, err := NewWithConfig(cfg, log, observability.Init())
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, err
	}
	a.otelShutdown = otelShutdown
	return a, nil
}

// NewWithConfig wires upstreams, aggregator and HTTP server from an already loaded config.
func NewWithConfig(cfg *config.Config, log *logger.Logger, metrics *observability.Metrics) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}

	ups, err := upstream.New(cfg)
	if err != nil {
		return nil, err
	}

	client, err := crm.New(crm.Deps{
		Log:       log,
		Metrics:   metrics,
		Customers: ups.Customers,
		Orders:    ups.Orders,
	}, crm.Options{
		Retry:          retryPolicy(cfg.Customers.Retry),
		MaxConcurrency: cfg.Aggregator.MaxConcurrency,
		DegradeOrders:  cfg.Aggregator.DegradeOrders,
	})
	if err != nil {
		_ = ups.Close()
		return nil, err
	}

	return &App{
		Log:       log,
		Config:    cfg,
		Metrics:   metrics,
		Client:    client,
		upstreams: ups,
		server:    httpapi.NewServer(cfg, log, metrics, client),
	}, nil
}

func retryPolicy(r config.RetryConfig) crm.RetryPolicy {
	p := crm.DefaultRetryPolicy()
	p.MaxAttempts = r.MaxAttempts
	p.InitialInterval = r.InitialBackoff.Duration
	p.MaxInterval = r.MaxBackoff.Duration
	p.Multiplier = r.Multiplier
	if r.Jitter != nil {
		p.Jitter = *r.Jitter
	}
	return p
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) Run(ctx context.Context) error {
	a.Log.Info("crm gateway listening",
		"addr", a.Config.HTTP.Addr,
		"customers", a.Config.Customers.Type,
		"orders", a.Config.Orders.Type,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := shutdown.Context(a.Config.HTTP.ShutdownTimeout.Duration, 15*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.Log.Warn("http shutdown incomplete", "error", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases upstream connections and flushes telemetry. Call it after Run returns.
func (a *App) Close() error {
	var errs []error
	if a.upstreams != nil {
		if err := a.upstreams.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.otelShutdown != nil {
		ctx, cancel := shutdown.Context(a.Config.HTTP.ShutdownTimeout.Duration, 15*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("otel shutdown: %w", err))
		}
	}
	a.Log.Sync()
	return errors.Join(errs...)
}
