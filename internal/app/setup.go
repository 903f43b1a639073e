// Package app contains the application setup for the order service.
package app

import (
	"log/slog"
	"net/http"

	"github.com/abgdnv/ordersync/internal/cache"
	"github.com/abgdnv/ordersync/internal/config"
	"github.com/abgdnv/ordersync/internal/service"
	"github.com/abgdnv/ordersync/internal/store"
	"github.com/abgdnv/ordersync/internal/transport/rest"
	"github.com/abgdnv/ordersync/pkg/messaging"
	"github.com/abgdnv/ordersync/pkg/server"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const serviceName = "order"

type Dependencies struct {
	OrderService service.OrderService
	Reader       rest.OrderReader
	Logger       *slog.Logger
}

// SetupDependencies wires the write path and the cache reader. Projection calls go through
// a circuit breaker so an unavailable Redis does not slow down committed writes.
func SetupDependencies(dbPool *pgxpool.Pool, rdb redis.Cmdable, publisher messaging.Publisher, cfg *config.Config, logger *slog.Logger) *Dependencies {
	projector := cache.NewBreakerProjector(cache.NewRedisProjector(rdb), cfg.Cache.CircuitBreaker)
	orderService := service.NewService(store.NewPgStore(dbPool), projector, publisher)

	return &Dependencies{
		OrderService: orderService,
		Reader:       cache.NewReader(rdb),
		Logger:       logger,
	}
}

// SetupHttpHandler builds the router with the order routes and the metrics endpoint.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger, serviceName)
	wireRoutes(mux, deps)
	return mux
}

func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	orderHandler := rest.NewHandler(deps.OrderService, deps.Reader, deps.Logger)
	orderHandler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())
}

// SetupHttpServer creates and configures an HTTP server for the order service.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	mux := SetupHttpHandler(deps)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, mux)
}
