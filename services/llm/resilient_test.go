package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// flakyClient fails a fixed number of times before succeeding.
type flakyClient struct {
	failures int
	calls    int
}

func (f *flakyClient) Generate(context.Context, string, string, GenerationParams) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("upstream hiccup")
	}
	return "ok", nil
}

func fastResilient(inner LLMClient) *ResilientClient {
	r := NewResilientClient(inner)
	r.retryInitial = time.Millisecond
	r.limiter = rate.NewLimiter(rate.Inf, 0)
	return r
}

func TestResilientClient_RetriesTransientFailures(t *testing.T) {
	inner := &flakyClient{failures: 2}
	r := fastResilient(inner)

	out, err := r.Generate(context.Background(), "sys", "user", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, inner.calls)
}

func TestResilientClient_GivesUpAfterMaxAttempts(t *testing.T) {
	inner := &flakyClient{failures: 100}
	r := fastResilient(inner)

	_, err := r.Generate(context.Background(), "sys", "user", GenerationParams{})
	require.Error(t, err)
	assert.Equal(t, retryMaxAttempts, inner.calls)
}

func TestResilientClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyClient{failures: 1 << 30}
	r := fastResilient(inner)
	ctx := context.Background()

	for i := 0; i < breakerFailureTrip; i++ {
		_, err := r.Generate(ctx, "sys", "user", GenerationParams{})
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrUnavailable, "failures before the trip are plain errors")
	}

	callsBefore := inner.calls
	_, err := r.Generate(ctx, "sys", "user", GenerationParams{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, callsBefore, inner.calls, "open circuit never reaches the backend")
}

func TestResilientClient_CancelledContext(t *testing.T) {
	r := fastResilient(&flakyClient{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Generate(ctx, "sys", "user", GenerationParams{})
	assert.Error(t, err)
}
