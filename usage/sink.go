package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/jonwraymond/graphcache/observe"
)

// DefaultSubject is the NATS subject usage data points are published on.
const DefaultSubject = "graphcache.usage"

// ErrNilConn indicates a NATSSink was built without a connection.
var ErrNilConn = errors.New("usage: nats connection is nil")

// Sink persists data points.
//
// Contract:
// - Concurrency: Write is called from a single emitter goroutine, but
// implementations shared between emitters must be safe for concurrent use.
// - Context: Write should honor cancellation/deadlines.
// - Errors: a Write error is logged by the emitter and the point is dropped.
type Sink interface {
	Write(ctx context.Context, point DataPoint) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, point DataPoint) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, point DataPoint) error {
	return f(ctx, point)
}

// MemorySink keeps every point in memory. Useful for tests and local runs.
type MemorySink struct {
	mu     sync.Mutex
	points []DataPoint
}

// Write appends point.
func (s *MemorySink) Write(ctx context.Context, point DataPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, point)
	return nil
}

// Points returns a copy of the recorded points.
func (s *MemorySink) Points() []DataPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DataPoint, len(s.points))
	copy(out, s.points)
	return out
}

// LogSink writes each point as a structured log entry.
type LogSink struct {
	Logger observe.Logger
}

// Write logs point at info level.
func (s LogSink) Write(ctx context.Context, point DataPoint) error {
	if s.Logger == nil {
		return nil
	}
	s.Logger.Info(ctx, "usage", observe.F("blobs", point.Blobs), observe.F("indexes", point.Indexes))
	return nil
}

// NATSSink publishes each point as JSON on a NATS subject.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// NewNATSSink creates a sink publishing on subject (DefaultSubject if empty).
func NewNATSSink(conn *nats.Conn, subject string) (*NATSSink, error) {
	if conn == nil {
		return nil, ErrNilConn
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSink{conn: conn, subject: subject}, nil
}

// Write publishes point. Delivery is at-most-once.
func (s *NATSSink) Write(ctx context.Context, point DataPoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(point)
	if err != nil {
		return err
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		return fmt.Errorf("usage: publish %s: %w", s.subject, err)
	}
	return nil
}

// MultiSink writes every point to each sink in order and joins the errors.
type MultiSink []Sink

// Write fans point out to all sinks.
func (m MultiSink) Write(ctx context.Context, point DataPoint) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, point); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Sink = (*MemorySink)(nil)
	_ Sink = LogSink{}
	_ Sink = (*NATSSink)(nil)
	_ Sink = MultiSink(nil)
	_ Sink = SinkFunc(nil)
)
