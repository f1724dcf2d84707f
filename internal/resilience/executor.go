// Package resilience wraps outbound calls with a fallback wrap and a linear-backoff retry.
//
// The fallback wrap ("circuit") is a literal pass-through by default: it keeps no
// failure window and never short-circuits. A stateful closed/open/half-open breaker
// is available as an explicit opt-in through WithBreaker.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"marketplace-checkout/internal/logger"
	"marketplace-checkout/internal/metrics"
)

const (
	DefaultAttempts  = 3
	DefaultBaseDelay = time.Second
)

// Op is a single remote call.
type Op[T any] func(ctx context.Context) (T, error)

// Fallback produces the result used when an Op fails; it receives the failure.
type Fallback[T any] func(ctx context.Context, err error) (T, error)

// Policy configures the retry wrap. Zero values fall back to the defaults.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Attempts: DefaultAttempts, BaseDelay: DefaultBaseDelay}
}

// BreakerSettings enables real breaker state per operation name.
type BreakerSettings struct {
	FailureThreshold uint32
	OpenWindow       time.Duration
	HalfOpenRequests uint32
}

type Executor struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	sleep   func(ctx context.Context, d time.Duration) error

	breaker  *BreakerSettings
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

type Option func(*Executor)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithSleep replaces the delay function used between retry attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = fn }
}

func WithBreaker(s BreakerSettings) Option {
	return func(e *Executor) {
		if s.FailureThreshold == 0 {
			s.FailureThreshold = 5
		}
		if s.HalfOpenRequests == 0 {
			s.HalfOpenRequests = 1
		}
		e.breaker = &s
	}
}

func New(l *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		logger:   logger.OrDiscard(l),
		sleep:    sleepContext,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Circuit runs op and, on failure, returns fallback's result when one is supplied.
// Without a fallback the original error is returned unchanged.
func Circuit[T any](ctx context.Context, e *Executor, name string, op Op[T], fallback Fallback[T]) (T, error) {
	var (
		v   T
		err error
	)
	if cb := e.breakerFor(name); cb != nil {
		var out any
		out, err = cb.Execute(func() (any, error) { return op(ctx) })
		if err == nil {
			v, _ = out.(T)
		}
	} else {
		v, err = op(ctx)
	}
	if err == nil {
		e.metrics.DownstreamCall(name, "ok")
		return v, nil
	}

	e.logger.ErrorContext(ctx, "circuit breaker opened", "op", name, "err", err, "fallback", fallback != nil)
	if fallback == nil {
		e.metrics.DownstreamCall(name, "error")
		return v, err
	}
	e.metrics.DownstreamCall(name, "fallback")
	return fallback(ctx, err)
}

// Retry runs op up to p.Attempts times, waiting BaseDelay×attempt between tries.
// Errors wrapped with Permanent end the loop immediately and are returned still wrapped;
// match the cause with errors.Is.
func Retry[T any](ctx context.Context, e *Executor, name string, p Policy, op Op[T]) (T, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}

	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		// The marker stays on the error so an enclosing breaker does not count it.
		if IsPermanent(err) {
			return zero, err
		}
		lastErr = err
		e.logger.WarnContext(ctx, "attempt failed", "op", name, "attempt", attempt, "max_attempts", attempts, "err", err)

		if attempt < attempts {
			e.metrics.RetryAttempt(name)
			if serr := e.sleep(ctx, base*time.Duration(attempt)); serr != nil {
				return zero, errors.Join(lastErr, serr)
			}
		}
	}
	e.logger.ErrorContext(ctx, "all attempts failed", "op", name, "attempts", attempts, "err", lastErr)
	return zero, lastErr
}

// Do composes the two wraps: retry inside, fallback outside.
func Do[T any](ctx context.Context, e *Executor, name string, p Policy, op Op[T], fallback Fallback[T]) (T, error) {
	return Circuit(ctx, e, name, func(ctx context.Context) (T, error) {
		return Retry(ctx, e, name, p, op)
	}, fallback)
}

// BreakerState reports the breaker state for name, or "disabled" when breakers are off.
func (e *Executor) BreakerState(name string) string {
	cb := e.breakerFor(name)
	if cb == nil {
		return "disabled"
	}
	return cb.State().String()
}

func (e *Executor) breakerFor(name string) *gobreaker.CircuitBreaker[any] {
	if e.breaker == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if cb, ok := e.breakers[name]; ok {
		return cb
	}
	threshold := e.breaker.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: e.breaker.HalfOpenRequests,
		Timeout:     e.breaker.OpenWindow,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("breaker state changed", "op", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[name] = cb
	return cb
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
