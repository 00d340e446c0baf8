// Package resilience wraps outbound calls with a circuit breaker and a
// bounded exponential-backoff retry.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/sony/gobreaker"
)

var (
	// ErrCircuitOpen is returned while a breaker rejects calls.
	ErrCircuitOpen = gobreaker.ErrOpenState
	// ErrExhaustedRetries is returned when every attempt failed.
	ErrExhaustedRetries = errors.New("retry attempts exhausted")
)

// CircuitBreaker stops calling an upstream after consecutive failures and
// probes it again once OpenTimeout has passed.
type CircuitBreaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// CircuitBreakerConfig configures NewCircuitBreaker. Zero values get
// defaults: 5 failures, 1 half-open probe, 60s open.
type CircuitBreakerConfig struct {
	Name          string
	MaxFailures   int
	HalfOpenLimit int
	OpenTimeout   time.Duration
	Logger        *slog.Logger

	// IsFailure decides whether an error counts against the breaker.
	// Nil counts every error.
	IsFailure func(error) bool
}

// NewCircuitBreaker returns a breaker for one upstream.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.HalfOpenLimit <= 0 {
		cfg.HalfOpenLimit = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: uint32(cfg.HalfOpenLimit),
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.MaxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	if cfg.IsFailure != nil {
		isFailure := cfg.IsFailure
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !isFailure(err)
		}
	}

	return &CircuitBreaker{
		name: cfg.Name,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

// State returns the current breaker state name.
func (cb *CircuitBreaker) State() string {
	return cb.cb.State().String()
}

// Execute runs operation unless the breaker is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, operation func(context.Context) error) error {
	_, err := cb.cb.Execute(func() (any, error) {
		return nil, operation(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", cb.name, ErrCircuitOpen)
	}
	return err
}

// RetryConfig controls WithRetry.
type RetryConfig struct {
	// Name labels retry log lines, e.g. "guesty" or "openai".
	Name            string
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	RandomFactor    float64
	Logger          *slog.Logger

	// Retryable reports whether an error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool
}

// DefaultRetryConfig returns three attempts starting at 200ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		RandomFactor:    0.1,
	}
}

// next returns the wait after interval, with jitter and the MaxInterval cap.
func (cfg RetryConfig) next(interval time.Duration) time.Duration {
	mult := cfg.Multiplier
	if mult <= 0 {
		mult = 1
	}
	jitter := 1.0 + cfg.RandomFactor*(2*rand.Float64()-1)
	interval = time.Duration(float64(interval) * mult * jitter)
	if cfg.MaxInterval > 0 && interval > cfg.MaxInterval {
		return cfg.MaxInterval
	}
	return interval
}

func (cfg RetryConfig) retryable(err error) bool {
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	return cfg.Retryable == nil || cfg.Retryable(err)
}

// WithRetry runs operation until it succeeds, returns a non-retryable
// error, ctx ends or MaxAttempts is reached. An exhausted run returns
// ErrExhaustedRetries wrapping the last error.
func WithRetry(ctx context.Context, operation func(context.Context) error, cfg RetryConfig) error {
	attempts := max(cfg.MaxAttempts, 1)
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	wait := cfg.InitialInterval
	var err error
	for attempt := 1; ; attempt++ {
		if err = operation(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry abandoned: %w", err)
		}
		if !cfg.retryable(err) {
			return err
		}
		if attempt >= attempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrExhaustedRetries, attempts, err)
		}

		log.DebugContext(ctx, "Call failed, retrying",
			"name", cfg.Name,
			"attempt", attempt,
			"max_attempts", attempts,
			"wait", wait,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry abandoned: %w", ctx.Err())
		case <-time.After(wait):
		}
		wait = cfg.next(wait)
	}
}
