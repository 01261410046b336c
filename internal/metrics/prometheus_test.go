// 本文件用于运行指标采集与导出的单元测试
package metrics

import (
	"strings"
	"testing"
)

func TestCollector_CountersRender(t *testing.T) {
	collector := NewCollector()
	collector.IncSweep()
	collector.IncSweep()
	collector.IncSuppressed()
	collector.IncViolation("critical")
	collector.IncViolation("critical")
	collector.IncViolation("warning")
	collector.IncDispatchFailure("chat")

	output := collector.RenderPrometheus()
	wants := []string{
		"slw_sweeps_total 2",
		"slw_suppressed_total 1",
		`slw_violations_total{severity="critical"} 2`,
		`slw_violations_total{severity="warning"} 1`,
		`slw_violations_total{severity="info"} 0`,
		`slw_dispatch_failure_total{channel="chat"} 1`,
	}
	for _, want := range wants {
		if !strings.Contains(output, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, output)
		}
	}
}

// 跳过的巡检同时计入总巡检数
func TestCollector_SkippedSweepCountsAsSweep(t *testing.T) {
	collector := NewCollector()
	collector.IncSweepSkipped()

	output := collector.RenderPrometheus()
	if !strings.Contains(output, "slw_sweeps_total 1") {
		t.Fatalf("expected sweeps_total 1, got:\n%s", output)
	}
	if !strings.Contains(output, "slw_sweeps_skipped_total 1") {
		t.Fatalf("expected sweeps_skipped_total 1, got:\n%s", output)
	}
}

func TestCollector_HistogramRender(t *testing.T) {
	collector := NewCollector()
	collector.ObserveSweepDuration(0.02)
	collector.ObserveSweepDuration(0.5)
	collector.ObserveSnapshotFetch(0.1)

	output := collector.RenderPrometheus()
	if !strings.Contains(output, "slw_sweep_duration_seconds_count 2") {
		t.Fatalf("expected sweep duration count 2, got:\n%s", output)
	}
	if !strings.Contains(output, "slw_snapshot_fetch_seconds_count 1") {
		t.Fatalf("expected snapshot fetch count 1, got:\n%s", output)
	}
	if !strings.Contains(output, `le="+Inf"`) {
		t.Fatalf("expected +Inf bucket, got:\n%s", output)
	}
}

func TestCollector_HeadersPresent(t *testing.T) {
	output := NewCollector().RenderPrometheus()
	headers := []string{
		"# TYPE slw_sweeps_total counter",
		"# TYPE slw_violations_total counter",
		"# TYPE slw_sweep_duration_seconds histogram",
	}
	for _, header := range headers {
		if !strings.Contains(output, header) {
			t.Fatalf("expected header %q, got:\n%s", header, output)
		}
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var collector *Collector
	collector.IncSweep()
	collector.IncViolation("critical")
	if got := collector.RenderPrometheus(); got != "" {
		t.Fatalf("expected empty output for nil collector, got %q", got)
	}
}

func TestNormalizeMetricLabel(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{" Critical ", "critical"},
		{"", "unknown"},
		{"a\tb\nc", "a b c"},
		{strings.Repeat("x", 200), strings.Repeat("x", 120)},
	}
	for _, tc := range cases {
		if got := normalizeMetricLabel(tc.raw); got != tc.want {
			t.Fatalf("normalizeMetricLabel(%q): expected %q, got %q", tc.raw, tc.want, got)
		}
	}
}

func TestEscapeLabelValue(t *testing.T) {
	if got := escapeLabelValue(`a"b`); got != `a\"b` {
		t.Fatalf("unexpected escape: %q", got)
	}
	if got := escapeLabelValue("a\nb"); got != `a\nb` {
		t.Fatalf("unexpected escape: %q", got)
	}
}

func TestGlobalCollectorSingleton(t *testing.T) {
	if Global() != Global() {
		t.Fatal("expected stable global collector")
	}
	if MustGlobalPrometheus() == "" {
		t.Fatal("expected non-empty global exposition")
	}
}
