package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type statusErr int

func (s statusErr) Error() string       { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatusCode() int { return int(s) }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "429", err: statusErr(429), want: true},
		{name: "503_wrapped", err: fmt.Errorf("call: %w", statusErr(503)), want: true},
		{name: "400", err: statusErr(400), want: false},
		{name: "plain", err: errors.New("nope"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryableError(tc.err); got != tc.want {
				t.Fatalf("IsRetryableError(%v)=%v want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 10 * time.Second}

	cases := []struct {
		name    string
		attempt int
		header  string
		want    time.Duration
	}{
		{name: "first", attempt: 0, want: time.Second},
		{name: "doubling", attempt: 2, want: 4 * time.Second},
		{name: "capped", attempt: 10, want: 10 * time.Second},
		{name: "retry_after_seconds", attempt: 0, header: "3", want: 3 * time.Second},
		{name: "retry_after_zero", attempt: 3, header: "0", want: 0},
		{name: "retry_after_capped", attempt: 0, header: "60", want: 10 * time.Second},
		{name: "retry_after_garbage", attempt: 1, header: "soon", want: 2 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tc.header != "" {
				resp.Header.Set("Retry-After", tc.header)
			}
			if got := b.Delay(tc.attempt, resp); got != tc.want {
				t.Fatalf("Delay(%d)=%s want %s", tc.attempt, got, tc.want)
			}
		})
	}
}

func TestRetryAfterHTTPDate(t *testing.T) {
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", now.Add(5*time.Second).Format(http.TimeFormat))
	got, ok := retryAfter(resp, now)
	if !ok || got != 5*time.Second {
		t.Fatalf("got (%s,%v) want 5s", got, ok)
	}
}

func TestJitterStaysInSpread(t *testing.T) {
	for i := 0; i < 100; i++ {
		got := jitter(time.Second, 0.2)
		if got < 800*time.Millisecond || got > 1200*time.Millisecond {
			t.Fatalf("jitter out of range: %s", got)
		}
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	var calls, retries int
	_, err := Do(context.Background(), 3, Backoff{}, func(context.Context) (*http.Response, error) {
		calls++
		if calls < 3 {
			return nil, statusErr(503)
		}
		return &http.Response{StatusCode: 200}, nil
	}, func(attempt int, wait time.Duration, err error) {
		retries++
		if attempt != retries {
			t.Fatalf("attempt=%d retries=%d", attempt, retries)
		}
	})
	if err != nil || calls != 3 || retries != 2 {
		t.Fatalf("err=%v calls=%d retries=%d", err, calls, retries)
	}
}

func TestDoStops(t *testing.T) {
	cases := []struct {
		name      string
		retries   int
		err       error
		wantCalls int
	}{
		{name: "non_retryable", retries: 3, err: statusErr(400), wantCalls: 1},
		{name: "budget_spent", retries: 2, err: statusErr(502), wantCalls: 3},
		{name: "negative_budget", retries: -1, err: statusErr(502), wantCalls: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			_, err := Do(context.Background(), tc.retries, Backoff{}, func(context.Context) (*http.Response, error) {
				calls++
				return nil, tc.err
			}, nil)
			if !errors.Is(err, tc.err) || calls != tc.wantCalls {
				t.Fatalf("err=%v calls=%d want %d", err, calls, tc.wantCalls)
			}
		})
	}
}

func TestSleepCtxCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepCtx(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
