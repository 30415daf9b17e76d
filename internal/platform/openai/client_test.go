package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/portakall/retromeet/internal/platform/logger"
)

func assistantBody(text string) string {
	b, _ := json.Marshal(map[string]any{
		"output": []map[string]any{{
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "output_text", "text": text},
			},
		}},
	})
	return string(b)
}

func newTestClient(t *testing.T, url string, timeout time.Duration, retries int) Client {
	t.Helper()
	c, err := NewClient(logger.NewNop(), Config{
		APIKey:     "test",
		BaseURL:    url,
		Model:      "test-model",
		Timeout:    timeout,
		MaxRetries: retries,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestGenerateText(t *testing.T) {
	var gotReq responsesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test" {
			t.Errorf("auth header=%q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(assistantBody("hello there")))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 5*time.Second, 0)
	out, err := c.GenerateText(context.Background(), "sys", "usr")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if out != "hello there" {
		t.Fatalf("out=%q", out)
	}
	if len(gotReq.Input) != 2 || gotReq.Input[0].Role != "system" || gotReq.Input[1].Content != "usr" {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
}

func TestGenerateTextRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(assistantBody("ok")))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 10*time.Second, 2)
	out, err := c.GenerateText(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if out != "ok" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("out=%q calls=%d", out, calls)
	}
}

func TestGenerateTextSingleAttemptByDefault(t *testing.T) {
	t.Setenv("OPENAI_MAX_RETRIES", "")
	cfg := ConfigFromEnv()
	if cfg.MaxRetries != 0 {
		t.Fatalf("MaxRetries=%d want 0", cfg.MaxRetries)
	}

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 5*time.Second, cfg.MaxRetries)
	_, err := c.GenerateText(context.Background(), "s", "u")
	var he *ServiceError
	if !errors.As(err, &he) || he.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls=%d want 1", calls)
	}

	t.Setenv("OPENAI_MAX_RETRIES", "2")
	if got := ConfigFromEnv().MaxRetries; got != 2 {
		t.Fatalf("MaxRetries=%d want 2", got)
	}
}

func TestGenerateTextClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 5*time.Second, 3)
	_, err := c.GenerateText(context.Background(), "s", "u")
	var he *ServiceError
	if !errors.As(err, &he) || he.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls=%d want 1", calls)
	}
}

func TestGenerateTextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 50*time.Millisecond, 0)
	_, err := c.GenerateText(context.Background(), "s", "u")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestGenerateTextTemperatureFallback(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req responsesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		atomic.AddInt32(&calls, 1)
		if req.Temperature != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Unsupported parameter: 'temperature'"}}`))
			return
		}
		_, _ = w.Write([]byte(assistantBody("no temp")))
	}))
	defer srv.Close()

	temp := 0.2
	c, err := NewClient(logger.NewNop(), Config{APIKey: "k", BaseURL: srv.URL, Model: "m", Timeout: 5 * time.Second, Temperature: &temp})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	out, err := c.GenerateText(context.Background(), "s", "u")
	if err != nil || !strings.Contains(out, "no temp") {
		t.Fatalf("out=%q err=%v", out, err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls=%d want 2", calls)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(logger.NewNop(), Config{}); err == nil {
		t.Fatalf("expected error for missing key")
	}
}
