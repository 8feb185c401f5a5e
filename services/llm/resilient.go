package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// ErrUnavailable means the backend is rate-limited out or the circuit is
// open. Callers should surface it as a 503, not retry.
var ErrUnavailable = errors.New("llm backend unavailable")

const (
	retryMaxAttempts    = 3
	retryMaxInterval    = 8 * time.Second
	breakerOpenDuration = 30 * time.Second
	breakerFailureTrip  = 5
)

// ResilientClient wraps any backend with a rate limiter, retry with
// exponential backoff, and a circuit breaker. Transient upstream failures
// are retried; a persistently failing backend trips the breaker so callers
// fail fast instead of piling up.
type ResilientClient struct {
	inner   LLMClient
	breaker *gobreaker.CircuitBreaker[string]
	limiter *rate.Limiter

	// retryInitial seeds the backoff schedule. Tests shrink it.
	retryInitial time.Duration
}

func NewResilientClient(inner LLMClient) *ResilientClient {
	settings := gobreaker.Settings{
		Name:    "llm",
		Timeout: breakerOpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("llm circuit state change", "breaker", name,
				"from", from.String(), "to", to.String())
		},
	}
	return &ResilientClient{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[string](settings),
		// Demo-scale limit: sustained 2 req/s with small bursts.
		limiter:      rate.NewLimiter(rate.Limit(2), 4),
		retryInitial: backoff.DefaultInitialInterval,
	}
}

// Generate implements the LLMClient interface.
func (r *ResilientClient) Generate(ctx context.Context, systemPrompt, userPrompt string, params GenerationParams) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out, err := r.breaker.Execute(func() (string, error) {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = r.retryInitial
		bo.MaxInterval = retryMaxInterval

		var result string
		attempt := 0
		op := func() error {
			attempt++
			var genErr error
			result, genErr = r.inner.Generate(ctx, systemPrompt, userPrompt, params)
			if genErr != nil {
				slog.Warn("llm generate attempt failed", "attempt", attempt, "error", genErr)
			}
			return genErr
		}
		err := backoff.Retry(op, backoff.WithMaxRetries(backoff.WithContext(bo, ctx), retryMaxAttempts-1))
		return result, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		return "", err
	}
	return out, nil
}
