package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/portakall/retromeet/internal/platform/envutil"
	"github.com/portakall/retromeet/internal/platform/logger"
)

type Metrics struct {
	apiRequests   *CounterVec
	apiLatency    *HistogramVec
	apiInflight   *Gauge
	llmRequests   *CounterVec
	llmLatency    *HistogramVec
	llmTokens     *CounterVec
	stageRuns     *CounterVec
	stageLatency  *HistogramVec
	malformed     *CounterVec
	chatSessions  *CounterVec
	chatLive      *Gauge
	redisUp       *Gauge
	redisPingSecs *Gauge
	storeBoot     *CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the process-wide registry or nil when metrics are disabled.
// Every Metrics method is nil-safe.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

// NewMetrics builds an unregistered registry. Init installs one as Current.
func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("rm_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"rm_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGauge("rm_api_inflight_requests", "In-flight API requests."),
		llmRequests: NewCounterVec("rm_llm_requests_total", "LLM requests by model/endpoint/status.", []string{"model", "endpoint", "status"}),
		llmLatency: NewHistogramVec(
			"rm_llm_request_duration_seconds",
			"LLM request latency in seconds by model/endpoint/status.",
			[]string{"model", "endpoint", "status"},
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		),
		llmTokens: NewCounterVec("rm_llm_tokens_total", "LLM tokens by model/direction.", []string{"model", "direction"}),
		stageRuns: NewCounterVec("rm_pipeline_stage_total", "Synthesis stage runs by stage/status.", []string{"stage", "status"}),
		stageLatency: NewHistogramVec(
			"rm_pipeline_stage_duration_seconds",
			"Synthesis stage duration in seconds by stage/status.",
			[]string{"stage", "status"},
			[]float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		),
		malformed:     NewCounterVec("rm_pipeline_malformed_output_total", "Generated outputs that could not be recovered, by stage.", []string{"stage"}),
		chatSessions:  NewCounterVec("rm_chat_session_transitions_total", "Chat session lifecycle transitions by event.", []string{"event"}),
		chatLive:      NewGauge("rm_chat_session_live", "1 while a chat session is live."),
		redisUp:       NewGauge("rm_redis_up", "Redis connectivity (1=up, 0=down)."),
		redisPingSecs: NewGauge("rm_redis_ping_seconds", "Redis ping latency in seconds."),
		storeBoot:     NewCounterVec("rm_artifact_store_bootstrap_total", "Artifact store bootstrap attempts by backend/status/code.", []string{"backend", "status", "code"}),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	all := []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.stageRuns, m.stageLatency, m.malformed,
		m.chatSessions, m.chatLive,
		m.redisUp, m.redisPingSecs,
		m.storeBoot,
	}
	for _, pw := range all {
		if err := pw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(1)
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(-1)
}

func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	model = strings.TrimSpace(model)
	m.llmRequests.Inc(model, endpoint, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), model, endpoint, status)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), model, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), model, "output")
	}
}

// ObserveStage records one synthesis stage run. status is "succeeded" or the
// error code the stage failed with.
func (m *Metrics) ObserveStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageRuns.Inc(stage, status)
	m.stageLatency.Observe(dur.Seconds(), stage, status)
}

func (m *Metrics) IncMalformed(stage string) {
	if m == nil {
		return
	}
	m.malformed.Inc(stage)
}

func (m *Metrics) ObserveChatSession(event string, live bool) {
	if m == nil {
		return
	}
	m.chatSessions.Inc(event)
	if live {
		m.chatLive.Set(1)
	} else {
		m.chatLive.Set(0)
	}
}

func (m *Metrics) ObserveArtifactStoreBootstrap(backend, status, code string) {
	if m == nil {
		return
	}
	m.storeBoot.Inc(backend, status, code)
}

// StartRedisCollector pings redis on an interval and records reachability.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
				err := rdb.Ping(pingCtx).Err()
				cancel()
				if err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Debug("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPingSecs.Set(time.Since(start).Seconds())
			}
		}
	}()
}
