package usage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonwraymond/graphcache/observe"
)

// Default emitter settings.
const (
	DefaultQueueSize    = 1024
	DefaultWriteTimeout = 5 * time.Second
)

// ErrClosed is returned by Close when called more than once.
var ErrClosed = errors.New("usage: emitter is closed")

// Recorder accepts usage events.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Emit must not block and must not fail the caller.
type Recorder interface {
	Emit(ctx context.Context, ev Event)
}

// Config configures an Emitter.
type Config struct {
	// QueueSize bounds the number of pending points. Default: 1024.
	QueueSize int

	// WriteTimeout bounds each Sink.Write. Default: 5s.
	WriteTimeout time.Duration

	Logger  observe.Logger
	Metrics observe.Metrics
}

// Emitter delivers events to a Sink on a background goroutine.
type Emitter struct {
	sink    Sink
	timeout time.Duration
	logger  observe.Logger
	metrics observe.Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan DataPoint
	done   chan struct{}
}

// NewEmitter starts an emitter writing to sink.
func NewEmitter(sink Sink, cfg Config) *Emitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.NopMetrics()
	}

	e := &Emitter{
		sink:    sink,
		timeout: cfg.WriteTimeout,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		queue:   make(chan DataPoint, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	go e.run()
	return e
}

// Emit queues ev. When the queue is full or the emitter is closed the event
// is dropped.
func (e *Emitter) Emit(ctx context.Context, ev Event) {
	point := ev.DataPoint()

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.drop(ctx, point, "closed")
		return
	}
	select {
	case e.queue <- point:
	default:
		e.drop(ctx, point, "queue full")
	}
}

func (e *Emitter) drop(ctx context.Context, point DataPoint, reason string) {
	e.metrics.RecordUsageDropped(ctx)
	e.logger.Debug(ctx, "usage event dropped",
		observe.F("reason", reason),
		observe.F("cacheKey", point.Indexes[0]),
	)
}

func (e *Emitter) run() {
	defer close(e.done)
	for point := range e.queue {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		if err := e.sink.Write(ctx, point); err != nil {
			e.logger.Warn(ctx, "usage sink write failed", observe.F("error", err))
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to be written or
// for ctx to end.
func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure Emitter implements Recorder
var _ Recorder = (*Emitter)(nil)
