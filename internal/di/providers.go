package di

import (
	"fmt"

	"BarPulse/internal/domain/repository"
	"BarPulse/internal/handler/api"
	"BarPulse/internal/handler/stream"
	internalrepo "BarPulse/internal/repository"
	"BarPulse/internal/service/metasearch"
	"BarPulse/internal/service/ratelimit"
	"BarPulse/internal/usecase"
	pkgch "BarPulse/pkg/clickhouse"
	"BarPulse/pkg/config"
	xhttp "BarPulse/pkg/http"
	applogger "BarPulse/pkg/logger"
	"BarPulse/pkg/metrics"
	"BarPulse/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideClickHouseBarStore creates the ClickHouse bar store.
func ProvideClickHouseBarStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) *internalrepo.ClickHouseBarStore {
	store := internalrepo.NewClickHouseBarStore(chClient, cfg.ClickHouse.Database)
	store.SetLogger(l)
	return store
}

// ProvideBarStore exposes the store behind the query interface.
func ProvideBarStore(s *internalrepo.ClickHouseBarStore) repository.BarStore {
	return s
}

// ProvideHealthChecker exposes the store's readiness probe.
func ProvideHealthChecker(s *internalrepo.ClickHouseBarStore) repository.HealthChecker {
	return s
}

// ProvideLevelResolver builds the level-to-table mapping from config.
func ProvideLevelResolver(cfg *config.Config) *repository.LevelResolver {
	levels := cfg.Levels
	if len(levels) == 0 {
		levels = config.DefaultLevels()
	}
	return repository.NewLevelResolver(levels)
}

// ProvideBarQueryService creates the bar query use case.
func ProvideBarQueryService(
	levels *repository.LevelResolver,
	store repository.BarStore,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.BarQueryService {
	svc := usecase.NewBarQueryService(levels, store, m, cfg.Query.MaxLimit)
	svc.SetLogger(l)
	return svc
}

// ProvideMetaSearcher creates the stock metadata search client.
func ProvideMetaSearcher(cfg *config.Config, l *applogger.Logger) repository.MetaSearcher {
	c := metasearch.NewClient(cfg.MetaSearch.URL, cfg.MetaSearch.Timeout)
	c.SetLogger(l)
	return c
}

// ProvideRateLimiter creates the per-connection token bucket for the gateway.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Stream.RateCapacity, cfg.Stream.RefillPerSec)
}

// ProvideBarsHandler creates the HTTP handler.
func ProvideBarsHandler(
	l *applogger.Logger,
	svc *usecase.BarQueryService,
	searcher repository.MetaSearcher,
	health repository.HealthChecker,
	cfg *config.Config,
) *api.BarsEchoHandler {
	return api.NewBarsEchoHandler(l, svc, searcher, health, cfg.Query.DefaultLimit)
}

// ProvideStreamGateway creates the websocket gateway.
func ProvideStreamGateway(
	l *applogger.Logger,
	svc *usecase.BarQueryService,
	m repository.Metrics,
	limiter *ratelimit.Limiter,
	cfg *config.Config,
) *stream.Gateway {
	return stream.NewGateway(l, svc, m, limiter, cfg.Query.DefaultLimit)
}

// ProvideHTTPServer creates the Echo server with all route handlers attached.
func ProvideHTTPServer(
	cfg *config.Config,
	bars *api.BarsEchoHandler,
	gw *stream.Gateway,
) *xhttp.Server {
	return xhttp.NewServer(
		[]xhttp.Handler{bars, gw},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true),
		xhttp.WithMetricsPath(cfg.Metrics.Path),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, l, httpServer, chClient)
}
