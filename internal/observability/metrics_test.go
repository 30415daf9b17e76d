package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.ObserveStage("topics", "succeeded", time.Second)
	m.IncMalformed("summary")
	m.ObserveChatSession("start", true)
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil WritePrometheus: %v", err)
	}
}

func TestWritePrometheus(t *testing.T) {
	m := NewMetrics()
	m.ObserveStage("topics", "succeeded", 2*time.Second)
	m.ObserveStage("topics", "succeeded", 3*time.Second)
	m.IncMalformed("summary")
	m.ObserveChatSession("start", true)

	if got := m.stageRuns.Value("topics", "succeeded"); got != 2 {
		t.Fatalf("stage runs=%v want 2", got)
	}

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`rm_pipeline_stage_total{stage="topics",status="succeeded"} 2.000000`,
		`rm_pipeline_stage_duration_seconds_bucket{stage="topics",status="succeeded",le="+Inf"} 2`,
		`rm_pipeline_stage_duration_seconds_bucket{stage="topics",status="succeeded",le="2"} 1`,
		`rm_pipeline_malformed_output_total{stage="summary"} 1.000000`,
		`rm_chat_session_live 1.000000`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestLabelString(t *testing.T) {
	cases := []struct {
		names  []string
		values []string
		want   string
	}{
		{names: nil, values: nil, want: ""},
		{names: []string{"a"}, values: []string{"x"}, want: `{a="x"}`},
		{names: []string{"a", "b"}, values: []string{"x"}, want: `{a="x",b="unknown"}`},
		{names: []string{"a"}, values: []string{`q"n`}, want: `{a="q\"n"}`},
	}
	for _, tc := range cases {
		if got := labelString(tc.names, tc.values); got != tc.want {
			t.Fatalf("labelString(%v,%v)=%s want %s", tc.names, tc.values, got, tc.want)
		}
	}
}
