package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/crm-gateway/internal/crm"
	"github.com/yungbote/crm-gateway/internal/gateway/config"
	"github.com/yungbote/crm-gateway/internal/observability"
	"github.com/yungbote/crm-gateway/internal/platform/logger"
)

// Aggregator is the slice of *crm.Client the endpoints need.
type Aggregator interface {
	CustomerOrders(ctx context.Context, emit func(crm.CustomerOrders) error) error
	Collect(ctx context.Context) ([]crm.CustomerOrders, error)
}

func NewServer(cfg *config.Config, log *logger.Logger, metrics *observability.Metrics, agg Aggregator) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           NewHandler(cfg, log, metrics, agg),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout.Duration,
		IdleTimeout:       cfg.HTTP.IdleTimeout.Duration,
		WriteTimeout:      0,
	}
}

// NewHandler serves /metrics only when metrics is non-nil.
func NewHandler(cfg *config.Config, log *logger.Logger, metrics *observability.Metrics, agg Aggregator) *gin.Engine {
	if log == nil {
		log = logger.NewNop()
	}
	r := gin.New()
	r.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	r.Use(requestIDMiddleware())
	r.Use(accessLogMiddleware(log))
	r.Use(metricsMiddleware(metrics))
	r.Use(recoverMiddleware(log))
	if len(cfg.HTTP.AllowedOrigins) > 0 {
		r.Use(corsMiddleware(cfg.HTTP.AllowedOrigins))
	}

	r.GET("/healthz", handleHealthz)
	r.GET("/readyz", handleReadyz)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
	}

	h := &cosHandler{log: log.With("component", "httpapi"), agg: agg}
	r.GET("/cos", h.serve)

	return r
}
