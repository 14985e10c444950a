package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/graphcache/cache"
	"github.com/jonwraymond/graphcache/endpoint"
	"github.com/jonwraymond/graphcache/normalize"
	"github.com/jonwraymond/graphcache/observe"
	"github.com/jonwraymond/graphcache/resilience"
	"github.com/jonwraymond/graphcache/usage"
)

// DefaultStoreTimeout bounds each cache store call.
const DefaultStoreTimeout = 2 * time.Second

// Resolver maps a route to its upstream endpoint. *endpoint.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, route endpoint.Route) (endpoint.Resolved, error)
}

// Normalizer canonicalizes an operation. *normalize.Normalizer satisfies it.
type Normalizer interface {
	Normalize(ctx context.Context, query, operationName string) (normalize.Result, error)
}

// Config configures a Dispatcher.
type Config struct {
	// Resolver is required.
	Resolver Resolver

	// Store is required.
	Store cache.Store

	// Normalizer defaults to a normalizer that keeps aliases and literals.
	Normalizer Normalizer

	// Keyer defaults to cache.DefaultKeyer.
	Keyer cache.Keyer

	// Policy controls TTL and which operation kinds are cached.
	// A zero Policy means cache.DefaultPolicy(); a negative TTL disables caching.
	Policy cache.Policy

	// StoreTimeout bounds each store call. Writes after an upstream success
	// run detached from client cancellation but never longer than this.
	// Default: 2 seconds
	StoreTimeout time.Duration

	// Upstream defaults to NewUpstream(UpstreamConfig{}).
	Upstream *Upstream

	// Executor guards upstream calls, keyed by service type. Nil runs them directly.
	Executor *resilience.Executor

	// Usage receives cache-hit and cache-write events. Nil discards them.
	Usage usage.Recorder

	// Middleware traces, counts and logs each dispatch. Nil uses no-ops.
	Middleware *observe.Middleware

	// Logger defaults to observe.NopLogger().
	Logger observe.Logger

	// CoalesceMisses shares one upstream call among concurrent misses on the same key.
	CoalesceMisses bool
}

// Request is one GraphQL request addressed to a route.
type Request struct {
	Route         endpoint.Route
	Query         string
	OperationName string
	Variables     json.RawMessage
	Geo           usage.Geo
}

// Response is the body to return and how it was produced.
type Response struct {
	Body    json.RawMessage
	Key     string
	Outcome observe.Outcome

	// Stored is set when a miss was written to the cache store.
	Stored bool

	// Collapsed is set when the upstream answer was shared with another
	// in-flight miss on the same key.
	Collapsed bool
}

// Dispatcher runs the cache dispatch protocol.
//
// Contract:
// - Concurrency: safe for concurrent use. No lock is held across store or
// upstream calls; concurrent misses on one key may both write, last writer wins.
// - Context: cancellation flows to the resolver, normalizer, store reads and
// the upstream call.
// - Errors: store failures never fail a request.
type Dispatcher struct {
	resolver     Resolver
	normalizer   Normalizer
	keyer        cache.Keyer
	store        cache.Store
	policy       cache.Policy
	storeTimeout time.Duration
	upstream     *Upstream
	executor     *resilience.Executor
	usage        usage.Recorder
	mw           *observe.Middleware
	metrics      observe.Metrics
	logger       observe.Logger
	group        *singleflight.Group
}

// NewDispatcher validates cfg and applies defaults.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Resolver == nil {
		return nil, ErrNilResolver
	}
	if cfg.Store == nil {
		return nil, ErrNilStore
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = normalize.NewNormalizer(normalize.Options{})
	}
	if cfg.Keyer == nil {
		cfg.Keyer = cache.NewDefaultKeyer()
	}
	if cfg.Policy == (cache.Policy{}) {
		cfg.Policy = cache.DefaultPolicy()
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.Upstream == nil {
		cfg.Upstream = NewUpstream(UpstreamConfig{})
	}
	if cfg.Executor == nil {
		cfg.Executor = resilience.NewExecutor()
	}
	if cfg.Usage == nil {
		cfg.Usage = discard{}
	}
	if cfg.Middleware == nil {
		cfg.Middleware = observe.NewMiddleware(nil, nil, nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}

	d := &Dispatcher{
		resolver:     cfg.Resolver,
		normalizer:   cfg.Normalizer,
		keyer:        cfg.Keyer,
		store:        cfg.Store,
		policy:       cfg.Policy,
		storeTimeout: cfg.StoreTimeout,
		upstream:     cfg.Upstream,
		executor:     cfg.Executor,
		usage:        cfg.Usage,
		mw:           cfg.Middleware,
		metrics:      cfg.Middleware.Metrics(),
		logger:       cfg.Logger,
	}
	if cfg.CoalesceMisses {
		d.group = &singleflight.Group{}
	}
	return d, nil
}

// Dispatch answers req from the cache or the upstream.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Response, error) {
	service := req.Route.Type
	if _, err := endpoint.ParseServiceType(service); err != nil {
		service = "unknown"
	}
	meta := observe.RequestMeta{
		Service:       service,
		Name:          req.Route.Name,
		OperationName: req.OperationName,
	}
	var resp Response
	err := d.mw.Observe(ctx, meta, func(ctx context.Context) (observe.Outcome, error) {
		var err error
		resp, err = d.dispatch(ctx, req)
		return resp.Outcome, err
	})
	return resp, err
}

// call is one upstream request ready to send.
type call struct {
	resolved  endpoint.Resolved
	operation string
	variables json.RawMessage
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) (Response, error) {
	resolved, err := d.resolver.Resolve(ctx, req.Route)
	if err != nil {
		return Response{}, err
	}
	logger := d.logger.With(
		observe.F("type", string(resolved.Type)),
		observe.F("identifier", resolved.Identifier),
		observe.F("name", resolved.Name),
	)

	norm, err := d.normalizer.Normalize(ctx, req.Query, req.OperationName)
	if err != nil {
		return Response{}, err
	}
	if norm.Introspection {
		logger.Info(ctx, "Overriding introspection query")
	}
	c := call{resolved: resolved, operation: norm.Operation, variables: req.Variables}

	if !d.policy.Cacheable(norm.Kind) {
		body, err := d.forward(ctx, c)
		return Response{Body: body, Outcome: observe.OutcomeUncached}, err
	}

	key, err := d.keyer.Key(cache.KeyInput{
		Type:       resolved.Type,
		Identifier: resolved.Identifier,
		Name:       resolved.Name,
		Operation:  norm.Operation,
		Variables:  req.Variables,
	})
	if err != nil {
		logger.Warn(ctx, "cache key unavailable, forwarding uncached", observe.F("error", err))
		body, err := d.forward(ctx, c)
		return Response{Body: body, Outcome: observe.OutcomeUncached}, err
	}
	logger = logger.With(observe.F("cacheKey", key))

	operationName := req.OperationName
	if operationName == "" {
		operationName = norm.OperationName
	}
	ev := usage.Event{
		Key:           key,
		OperationName: operationName,
		Service:       string(resolved.Type),
		Name:          resolved.Name,
		Identifier:    resolved.Identifier,
		Geo:           req.Geo,
	}

	if entry, ok := d.lookup(ctx, logger, key); ok {
		logger.Info(ctx, "Cache hit")
		ev.Kind = usage.KindHit
		d.usage.Emit(ctx, ev)
		return Response{Body: entry.Data, Key: key, Outcome: observe.OutcomeHit}, nil
	}
	logger.Info(ctx, "Cache miss")

	if d.group == nil {
		return d.fill(ctx, logger, key, c, ev)
	}

	// The shared call is detached from any one waiter's cancellation;
	// upstream timeouts bound it. Only the leader's event is emitted.
	var leader bool
	ch := d.group.DoChan(key, func() (any, error) {
		leader = true
		return d.fill(context.WithoutCancel(ctx), logger, key, c, ev)
	})
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Response{}, res.Err
		}
		resp := res.Val.(Response)
		resp.Collapsed = !leader
		return resp, nil
	}
}

// lookup reads key from the store. Store errors count as a miss.
func (d *Dispatcher) lookup(ctx context.Context, logger observe.Logger, key string) (*cache.Entry, bool) {
	var (
		entry *cache.Entry
		found bool
	)
	err := resilience.Timeout(ctx, d.storeTimeout, func(ctx context.Context) error {
		var err error
		entry, found, err = d.store.Get(ctx, key)
		return err
	})
	if err != nil {
		d.metrics.RecordStoreError(ctx, "get")
		logger.Warn(ctx, "cache read failed, treating as miss",
			observe.F("error", fmt.Errorf("%w: %w", ErrCacheStore, err)))
		return nil, false
	}
	if !found || entry == nil {
		return nil, false
	}
	return entry, true
}

// fill forwards a miss, persists a successful answer and reports the write.
func (d *Dispatcher) fill(ctx context.Context, logger observe.Logger, key string, c call, ev usage.Event) (Response, error) {
	body, err := d.forward(ctx, c)
	if err != nil {
		return Response{}, err
	}
	resp := Response{Body: body, Key: key, Outcome: observe.OutcomeMiss}

	entry := cache.Entry{
		Endpoint:  c.resolved.DisplayURL,
		Operation: c.operation,
		Data:      body,
		Variables: c.variables,
	}
	if d.persist(ctx, logger, key, entry) {
		resp.Stored = true
		ev.Kind = usage.KindWrite
		d.usage.Emit(ctx, ev)
	}
	return resp, nil
}

// persist writes entry detached from client cancellation and reports success.
func (d *Dispatcher) persist(ctx context.Context, logger observe.Logger, key string, entry cache.Entry) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.storeTimeout)
	defer cancel()

	if err := d.store.Set(ctx, key, entry, d.policy.EffectiveTTL(0)); err != nil {
		d.metrics.RecordStoreError(ctx, "set")
		logger.Warn(ctx, "cache write failed",
			observe.F("error", fmt.Errorf("%w: %w", ErrCacheStore, err)))
		return false
	}
	return true
}

// forward makes the single upstream call for c.
func (d *Dispatcher) forward(ctx context.Context, c call) (json.RawMessage, error) {
	service := string(c.resolved.Type)
	var body json.RawMessage
	err := d.executor.Execute(ctx, service, func(ctx context.Context) error {
		start := time.Now()
		b, status, err := d.upstream.Post(ctx, c.resolved.URL, c.operation, c.variables)
		d.metrics.RecordUpstream(ctx, service, status, time.Since(start))
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	switch {
	case err == nil:
		return body, nil
	case ctx.Err() != nil, errors.Is(err, ErrUpstream), errors.Is(err, ErrInvalidRequest):
		return nil, err
	default:
		if resilience.IsRejection(err) {
			d.logger.Warn(ctx, "upstream call rejected", observe.F("service", service), observe.F("error", err))
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrUpstream, service, err)
	}
}

type discard struct{}

func (discard) Emit(context.Context, usage.Event) {}

var (
	_ Resolver       = (*endpoint.Resolver)(nil)
	_ Normalizer     = (*normalize.Normalizer)(nil)
	_ usage.Recorder = discard{}
)
