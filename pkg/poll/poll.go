// Package poll retries short exchange queries until they succeed. The
// defaults suit fill polling on spot market orders: a quick first attempt,
// jittered exponential backoff and a bounded number of attempts.
package poll

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultFirstDelay  = 500 * time.Millisecond
	defaultMaxDelay    = 8 * time.Second
	defaultGrowth      = 1.8
	defaultMaxAttempts = 7
	defaultJitter      = 0.2
)

// Poller runs a query repeatedly until it succeeds or attempts run out.
// The first attempt fires immediately; each retry waits a jittered,
// exponentially growing delay capped at the maximum.
type Poller struct {
	firstDelay  time.Duration
	maxDelay    time.Duration
	growth      float64
	maxAttempts int
	jitter      float64
}

// Option overrides a single Poller parameter.
type Option func(*Poller)

// FirstDelay sets the wait before the second attempt.
func FirstDelay(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.firstDelay = d
		}
	}
}

// MaxDelay caps the wait between attempts.
func MaxDelay(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.maxDelay = d
		}
	}
}

// Growth sets the backoff factor applied after each wait.
func Growth(g float64) Option {
	return func(p *Poller) {
		if g >= 1 {
			p.growth = g
		}
	}
}

// MaxAttempts bounds the total number of attempts, the first included.
func MaxAttempts(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// Jitter sets the relative spread applied to each wait, 0 to 1.
func Jitter(j float64) Option {
	return func(p *Poller) {
		if j >= 0 && j <= 1 {
			p.jitter = j
		}
	}
}

// New builds a Poller with fill-polling defaults and optional overrides.
func New(opts ...Option) *Poller {
	p := &Poller{
		firstDelay:  defaultFirstDelay,
		maxDelay:    defaultMaxDelay,
		growth:      defaultGrowth,
		maxAttempts: defaultMaxAttempts,
		jitter:      defaultJitter,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Until runs fn until it returns nil. When attempts run out the last error
// is returned; cancelling ctx aborts a pending wait with ctx.Err().
func (p *Poller) Until(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := p.firstDelay
	var lastErr error

	for attempt := 1; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt >= p.maxAttempts {
			return lastErr
		}

		wait := delay
		if p.jitter > 0 {
			spread := (rand.Float64()*2 - 1) * p.jitter
			wait = time.Duration(float64(delay) * (1 + spread))
		}
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * p.growth)
		if delay > p.maxDelay {
			delay = p.maxDelay
		}
	}
}

// Value polls fn until it yields a value.
func Value[T any](ctx context.Context, p *Poller, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Until(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}
