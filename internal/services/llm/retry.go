package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, e.Body)
}

type emptyContentError struct {
	Op           string
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Op, e.FinishReason, e.Refusal, e.Snippet)
}

// retryPolicy doubles the wait after each transient failure, capped at
// ceiling. A server Retry-After wins over the computed step.
type retryPolicy struct {
	attempts int
	base     time.Duration
	ceiling  time.Duration
	sleeper  func(time.Duration)
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{attempts: 5, base: time.Second, ceiling: 10 * time.Second}
}

func (p retryPolicy) run(ctx context.Context, op string, attempt func() error) error {
	limit := max(p.attempts, 1)
	var err error
	for n := 1; n <= limit; n++ {
		if err = attempt(); err == nil {
			return nil
		}
		if n == limit || ctx.Err() != nil {
			break
		}
		wait, ok := p.waitFor(err, n)
		if !ok {
			return err
		}
		if serr := p.sleep(ctx, wait); serr != nil {
			return serr
		}
	}
	if limit == 1 || ctx.Err() != nil {
		return err
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", op, limit, err)
}

// waitFor reports whether err is transient and how long to pause before
// attempt n+1.
func (p retryPolicy) waitFor(err error, n int) (time.Duration, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var empty *emptyContentError
	if errors.As(err, &empty) {
		return p.step(n), true
	}
	var status *httpStatusError
	if errors.As(err, &status) {
		if status.StatusCode != http.StatusRequestTimeout &&
			status.StatusCode != http.StatusTooManyRequests &&
			status.StatusCode < http.StatusInternalServerError {
			return 0, false
		}
		if status.RetryAfter > 0 {
			return p.clamp(status.RetryAfter), true
		}
		return p.step(n), true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return p.step(n), true
	}
	return 0, false
}

func (p retryPolicy) step(n int) time.Duration {
	if p.base <= 0 {
		return 0
	}
	wait := p.base
	for i := 1; i < n && (p.ceiling <= 0 || wait < p.ceiling); i++ {
		wait *= 2
	}
	return p.clamp(wait)
}

func (p retryPolicy) clamp(wait time.Duration) time.Duration {
	if wait < 0 {
		return 0
	}
	if p.ceiling > 0 && wait > p.ceiling {
		return p.ceiling
	}
	return wait
}

func (p retryPolicy) sleep(ctx context.Context, wait time.Duration) error {
	if wait <= 0 && p.sleeper == nil {
		return nil
	}
	if p.sleeper != nil {
		p.sleeper(wait)
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, secs >= 0
	}
	if when, err := http.ParseTime(value); err == nil {
		wait := time.Until(when)
		return wait, wait >= 0
	}
	return 0, false
}
