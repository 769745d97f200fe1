// Package retry wraps outbound model calls with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultMaxJitter    = time.Second
)

// StatusCoder is implemented by errors that carry an HTTP-equivalent status.
type StatusCoder interface {
	HTTPStatus() int
}

// Policy configures Do. The zero value of each func field selects the default.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxJitter    time.Duration

	Retryable func(error) bool
	Sleep     func(ctx context.Context, d time.Duration) error
	Jitter    func(max time.Duration) time.Duration
	Logger    *slog.Logger
}

// DefaultPolicy retries 3 times starting at 1s, capped at 30s, with up to 1s jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		MaxJitter:    DefaultMaxJitter,
	}
}

// Retryable reports whether err signals rate limiting (429) or a server fault (5xx).
// Context cancellation is never retryable.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var sc StatusCoder
	if !errors.As(err, &sc) {
		return false
	}
	status := sc.HTTPStatus()
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

// Do invokes action, retrying retryable failures up to p.MaxRetries times.
// Non-retryable errors are returned immediately without sleeping.
func Do[T any](ctx context.Context, p Policy, action func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	delay := p.InitialDelay
	for attempt := 0; ; attempt++ {
		result, err := action(ctx)
		if err == nil {
			return result, nil
		}
		if !p.Retryable(err) {
			return result, err
		}
		if attempt >= p.MaxRetries {
			p.Logger.Error("Action failed after retries", "retries", attempt, "error", err)
			return result, err
		}

		wait := min(delay+p.Jitter(p.MaxJitter), p.MaxDelay)
		p.Logger.Warn("Retryable error encountered",
			"attempt", attempt+1,
			"max_retries", p.MaxRetries,
			"delay", wait,
			"error", err)

		if serr := p.Sleep(ctx, wait); serr != nil {
			return result, serr
		}
		delay = min(delay*2, p.MaxDelay)
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxJitter < 0 {
		p.MaxJitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = Retryable
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	if p.Jitter == nil {
		p.Jitter = randomJitter
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return p
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

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}
