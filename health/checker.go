package health

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jonwraymond/graphcache/resilience"
)

// Status represents the health status of a component.
type Status int

const (
	// StatusHealthy indicates the component is functioning normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates the gateway still serves traffic with reduced function.
	StatusDegraded
	// StatusUnhealthy indicates the gateway cannot serve traffic.
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result contains the outcome of a health check.
type Result struct {
	Status    Status
	Message   string
	Details   map[string]any
	Duration  time.Duration
	Timestamp time.Time
	Error     error
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message, Timestamp: time.Now()}
}

// Degraded creates a degraded result.
func Degraded(message string, err error) Result {
	return Result{Status: StatusDegraded, Message: message, Error: err, Timestamp: time.Now()}
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err, Timestamp: time.Now()}
}

// WithDetails returns a copy of r carrying details.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker reports the health of one dependency.
//
// Contract:
// - Concurrency: Check may be called concurrently.
// - Context: Check must return promptly once ctx is done.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc creates a Checker named name that calls fn.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (f *CheckerFunc) Name() string { return f.name }

func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }

// Pinger is anything with a reachability probe. cache.Store satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports a Pinger's reachability.
type PingChecker struct {
	name     string
	pinger   Pinger
	critical bool
}

// NewPingChecker creates a checker around p. A failed ping is reported as
// unhealthy when critical is set and as degraded otherwise.
func NewPingChecker(name string, p Pinger, critical bool) *PingChecker {
	return &PingChecker{name: name, pinger: p, critical: critical}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) Result {
	if err := c.pinger.Ping(ctx); err != nil {
		err = fmt.Errorf("%w: %w", ErrCheckFailed, err)
		if c.critical {
			return Unhealthy(c.name+" unreachable", err)
		}
		return Degraded(c.name+" unreachable", err)
	}
	return Healthy(c.name + " reachable")
}

// BreakerStates reports circuit states keyed by breaker name.
// *resilience.BreakerGroup satisfies it.
type BreakerStates interface {
	States() map[string]resilience.State
}

// BreakerChecker reports degraded while any upstream circuit is not closed.
type BreakerChecker struct {
	states BreakerStates
}

// NewBreakerChecker creates a checker over the breakers in states.
func NewBreakerChecker(states BreakerStates) *BreakerChecker {
	return &BreakerChecker{states: states}
}

func (c *BreakerChecker) Name() string { return "upstreams" }

func (c *BreakerChecker) Check(ctx context.Context) Result {
	states := c.states.States()
	details := make(map[string]any, len(states))
	var tripped []string
	for name, st := range states {
		details[name] = st.String()
		if st != resilience.StateClosed {
			tripped = append(tripped, name)
		}
	}
	if len(tripped) == 0 {
		return Healthy("all circuits closed").WithDetails(details)
	}
	sort.Strings(tripped)
	return Degraded(fmt.Sprintf("circuits not closed: %v", tripped), nil).WithDetails(details)
}

var (
	_ Checker = (*CheckerFunc)(nil)
	_ Checker = (*PingChecker)(nil)
	_ Checker = (*BreakerChecker)(nil)

	_ BreakerStates = (*resilience.BreakerGroup)(nil)
)
