package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryConfig bounds WithRetry. The wait doubles after every attempt,
// starting at InitialWait and capped at MaxWait.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
}

type retrying struct {
	next   Provider
	cfg    RetryConfig
	jitter func() float64
}

// WithRetry retries unavailable and rate-limited calls. An invalid response
// gets one more try; truncation and context errors are returned at once.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	cfg.MaxAttempts = max(cfg.MaxAttempts, 1)
	return &retrying{next: p, cfg: cfg, jitter: rand.Float64}
}

func (r *retrying) Generate(ctx context.Context, req Request) (*Response, error) {
	invalidSeen := false
	for attempt := 1; ; attempt++ {
		resp, err := r.next.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if attempt >= r.cfg.MaxAttempts || !shouldRetry(err, &invalidSeen) {
			return nil, err
		}

		timer := time.NewTimer(r.wait(attempt, err))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *retrying) ModelID() string { return r.next.ModelID() }

func shouldRetry(err error, invalidSeen *bool) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return true
	}
	switch e.Kind {
	case KindTruncated:
		return false
	case KindInvalid:
		if *invalidSeen {
			return false
		}
		*invalidSeen = true
	}
	return true
}

// wait is the pause after the given attempt, with ±20% jitter. A provider
// supplied Retry-After wins.
func (r *retrying) wait(attempt int, err error) time.Duration {
	var e *Error
	if errors.As(err, &e) && e.RetryAfter > 0 {
		return e.RetryAfter
	}
	d := r.cfg.InitialWait
	for i := 1; i < attempt && d < r.cfg.MaxWait; i++ {
		d *= 2
	}
	d = min(d, r.cfg.MaxWait)
	return time.Duration(float64(d) * (0.8 + 0.4*r.jitter()))
}
