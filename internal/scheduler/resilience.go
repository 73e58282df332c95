package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/ferrovia/tasktree/internal/registry"
)

// RetryConfig configures exponential backoff retry behavior around
// executor invocation.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 100ms)
	MaxInterval         time.Duration // Maximum retry interval (default 10s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 2min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// breakerRegistry manages per-method circuit breakers. A method whose
// executor keeps failing trips its breaker and fails fast instead of
// hammering a broken collaborator.
type breakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	logger   *slog.Logger
}

func newBreakerRegistry(logger *slog.Logger) *breakerRegistry {
	return &breakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		logger:   logger,
	}
}

// get returns the circuit breaker for the given method, creating it on
// first use.
func (r *breakerRegistry) get(method string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[method]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        method,
		MaxRequests: 3,                // Allow 3 test requests in half-open state
		Interval:    0,                // Don't clear counts automatically
		Timeout:     30 * time.Second, // Stay open for 30s before testing recovery
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn("circuit breaker state change", "method", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Don't count cancellation as executor failure
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})

	r.breakers[method] = cb
	return cb
}

// invokeResilient invokes the executor with exponential backoff retry
// behind the method's circuit breaker.
func invokeResilient(ctx context.Context, ex registry.Executor, inputs map[string]any, cb *gobreaker.CircuitBreaker, retryCfg RetryConfig) (*registry.Outcome, error) {
	var outcome *registry.Outcome

	operation := func() error {
		// Check context first - fail fast if cancelled
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		result, err := cb.Execute(func() (interface{}, error) {
			return ex.Invoke(ctx, inputs)
		})

		if err != nil {
			// Circuit is open - don't retry
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}

			// Context cancelled - stop retrying
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}

			return err
		}

		outcome, _ = result.(*registry.Outcome)
		return nil
	}

	backoffPolicy := backoff.NewExponentialBackOff()
	backoffPolicy.InitialInterval = retryCfg.InitialInterval
	backoffPolicy.MaxInterval = retryCfg.MaxInterval
	backoffPolicy.MaxElapsedTime = retryCfg.MaxElapsedTime
	backoffPolicy.Multiplier = retryCfg.Multiplier
	backoffPolicy.RandomizationFactor = retryCfg.RandomizationFactor

	err := backoff.Retry(operation, backoff.WithContext(backoffPolicy, ctx))
	return outcome, err
}
