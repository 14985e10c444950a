package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"

	"github.com/jonwraymond/graphcache/cache"
	"github.com/jonwraymond/graphcache/config"
	"github.com/jonwraymond/graphcache/endpoint"
	"github.com/jonwraymond/graphcache/gateway"
	"github.com/jonwraymond/graphcache/health"
	"github.com/jonwraymond/graphcache/normalize"
	"github.com/jonwraymond/graphcache/observe"
	"github.com/jonwraymond/graphcache/resilience"
	"github.com/jonwraymond/graphcache/usage"
)

// app owns every long-lived component of the gateway.
type app struct {
	cfg     config.Config
	obs     observe.Observer
	logger  observe.Logger
	nc      *nats.Conn
	store   cache.Store
	emitter *usage.Emitter
	health  *health.Aggregator
	handler http.Handler
}

func newApp(ctx context.Context, cfg config.Config) (_ *app, err error) {
	oc := cfg.ObserveConfig()
	oc.Version = version
	obs, err := observe.NewObserver(ctx, oc)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, obs: obs, logger: obs.Logger()}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Backend == config.BackendNATS || cfg.Usage.Sink == config.SinkNATS {
		a.nc, err = nats.Connect(cfg.NATS.URL, nats.Name(cfg.NATS.Name))
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
	}

	if a.store, err = openStore(ctx, cfg, a.nc); err != nil {
		return nil, err
	}

	sink, err := openSink(cfg, a.nc, a.logger)
	if err != nil {
		return nil, err
	}
	a.emitter = usage.NewEmitter(sink, usage.Config{
		QueueSize:    cfg.Usage.QueueSize,
		WriteTimeout: cfg.Usage.WriteTimeout,
		Logger:       a.logger,
		Metrics:      mw.Metrics(),
	})

	breakerCfg := cfg.BreakerConfig()
	breakerCfg.IsFailure = gateway.IsUpstreamFailure
	breakerCfg.OnStateChange = func(name string, from, to resilience.State) {
		a.logger.Warn(context.Background(), "upstream circuit changed",
			observe.F("service", name), observe.F("from", from.String()), observe.F("to", to.String()))
	}
	breakers := resilience.NewBreakerGroup(breakerCfg)
	opts := []resilience.ExecutorOption{
		resilience.WithBreakers(breakers),
		resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: cfg.Resilience.MaxConcurrent,
		})),
		resilience.WithTimeout(cfg.Upstream.Timeout),
	}
	if cfg.Resilience.RateLimit > 0 {
		opts = append(opts, resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:  cfg.Resilience.RateLimit,
			Burst: cfg.Resilience.Burst,
		})))
	}

	d, err := gateway.NewDispatcher(gateway.Config{
		Resolver:   endpoint.NewResolver(cfg.ResolverConfig()),
		Normalizer: normalize.NewNormalizer(cfg.NormalizeOptions()),
		Store:      a.store,
		Policy:     cfg.CachePolicy(),
		Upstream: gateway.NewUpstream(gateway.UpstreamConfig{
			MaxResponseBytes: cfg.Upstream.MaxResponseBytes,
			UserAgent:        cfg.Upstream.UserAgent,
		}),
		StoreTimeout:   cfg.Cache.StoreTimeout,
		Executor:       resilience.NewExecutor(opts...),
		Usage:          a.emitter,
		Middleware:     mw,
		Logger:         a.logger,
		CoalesceMisses: cfg.Cache.CoalesceMisses,
	})
	if err != nil {
		return nil, err
	}

	a.health = health.NewAggregator(health.AggregatorConfig{},
		health.NewPingChecker("cache", a.store, false),
		health.NewBreakerChecker(breakers),
	)
	if a.nc != nil {
		a.health.Register(natsChecker(a.nc))
	}

	a.handler = gateway.NewRouter(d, gateway.RouterConfig{
		Logger: a.logger,
		Mount: func(r chi.Router) {
			health.Mount(r, a.health)
			r.Method(http.MethodGet, "/metrics", obs.MetricsHandler())
		},
	})
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config, nc *nats.Conn) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		s, err := cache.NewSQLiteStore(ctx, cfg.Cache.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendRedis:
		r := cfg.Cache.Redis
		return cache.NewRedisStore(cache.RedisConfig{
			Addr:      r.Addr,
			Username:  r.Username,
			Password:  r.Password,
			DB:        r.DB,
			KeyPrefix: r.KeyPrefix,
		}), nil
	case config.BackendNATS:
		maxAge := cfg.Cache.TTL
		if maxAge <= 0 {
			maxAge = cache.DefaultTTL
		}
		s, err := cache.NewNATSStore(ctx, nc, cache.NATSConfig{
			Bucket:  cfg.Cache.NATSBucket,
			MaxAge:  maxAge,
			Timeout: cfg.Cache.StoreTimeout,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return cache.NewMemoryStore(), nil
	}
}

func openSink(cfg config.Config, nc *nats.Conn, logger observe.Logger) (usage.Sink, error) {
	switch cfg.Usage.Sink {
	case config.SinkNATS:
		return usage.NewNATSSink(nc, cfg.Usage.Subject)
	case config.SinkNone:
		return usage.SinkFunc(func(context.Context, usage.DataPoint) error { return nil }), nil
	default:
		return usage.LogSink{Logger: logger}, nil
	}
}

func natsChecker(nc *nats.Conn) health.Checker {
	return health.NewCheckerFunc("nats", func(ctx context.Context) health.Result {
		if nc.IsConnected() {
			return health.Healthy("connected")
		}
		return health.Unhealthy("disconnected", fmt.Errorf("nats status %s", nc.Status()))
	})
}

// Handler returns the HTTP handler serving the gateway, health and metrics routes.
func (a *app) Handler() http.Handler {
	return a.handler
}

// Close flushes pending usage events, then releases the store, the NATS
// connection and telemetry providers.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.emitter != nil {
		if err := a.emitter.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("usage: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, fmt.Errorf("nats: %w", err))
		}
	}
	if a.obs != nil {
		if err := a.obs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}
