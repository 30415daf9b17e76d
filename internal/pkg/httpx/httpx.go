// Package httpx holds the retry policy shared by outbound HTTP clients.
package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPStatusCoder is implemented by errors that carry a response status.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

func IsRetryableHTTPStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// IsRetryableError reports whether a failed outbound call is worth another attempt.
// A cancelled caller context never is.
func IsRetryableError(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	return false
}

// Backoff is a doubling retry schedule. Jitter is the proportional spread
// applied to every wait, e.g. 0.2 gives ±20%.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64
}

var DefaultBackoff = Backoff{Initial: time.Second, Max: 10 * time.Second, Jitter: 0.2}

// Delay is the wait before retry number attempt (0-based). A Retry-After
// header on resp replaces the schedule; Max caps both.
func (b Backoff) Delay(attempt int, resp *http.Response) time.Duration {
	d := b.Initial
	for i := 0; i < attempt && (b.Max <= 0 || d < b.Max); i++ {
		d *= 2
	}
	if ra, ok := retryAfter(resp, time.Now()); ok {
		d = ra
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return jitter(d, b.Jitter)
}

// retryAfter understands both the delta-seconds and the HTTP-date forms.
func retryAfter(resp *http.Response, now time.Time) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	raw := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if raw == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

func jitter(d time.Duration, spread float64) time.Duration {
	if d <= 0 || spread <= 0 {
		return d
	}
	delta := float64(d) * spread
	low := float64(d) - delta
	if low < 0 {
		low = 0
	}
	return time.Duration(low + rand.Float64()*2*delta)
}

// Do calls fn until it succeeds, fails with a non-retryable error, ctx ends
// or maxRetries retries are spent. onRetry, when set, sees every failure that
// is about to be retried together with the wait in front of it.
func Do(
	ctx context.Context,
	maxRetries int,
	b Backoff,
	fn func(ctx context.Context) (*http.Response, error),
	onRetry func(attempt int, wait time.Duration, err error),
) (*http.Response, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := fn(ctx)
		if err == nil {
			return resp, nil
		}
		if attempt >= maxRetries || !IsRetryableError(err) || ctx.Err() != nil {
			return resp, err
		}
		wait := b.Delay(attempt, resp)
		if onRetry != nil {
			onRetry(attempt+1, wait, err)
		}
		if err := SleepCtx(ctx, wait); err != nil {
			return resp, err
		}
	}
}

// SleepCtx waits for d or until ctx is done.
func SleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
