// 本文件用于巡检调度的单元测试
package slo

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// fakeSource 用函数桩模拟指标来源
type fakeSource struct {
	snapshot func(ctx context.Context) (Snapshot, error)
}

func (s *fakeSource) Snapshot(ctx context.Context) (Snapshot, error) {
	return s.snapshot(ctx)
}

// recordingArchive 记录归档写入
type recordingArchive struct {
	appended []Violation
	fail     bool
}

func (a *recordingArchive) Append(violation Violation) error {
	if a.fail {
		return fmt.Errorf("归档不可用")
	}
	a.appended = append(a.appended, violation)
	return nil
}

func newTestSweeper(t *testing.T, source Source, archive Archiver) *Sweeper {
	t.Helper()
	store := NewMemoryStore(time.Minute)
	t.Cleanup(store.Close)
	dispatcher, err := NewDispatcher([]Channel{&LogChannel{}}, Routing{
		SeverityCritical: {ChannelLog},
		SeverityWarning:  {ChannelLog},
		SeverityInfo:     {ChannelLog},
	}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sweeper, err := NewSweeper(SweeperOptions{
		Evaluator:  testEvaluator(t),
		Source:     source,
		Cooldown:   NewCooldown(store, CooldownPolicy{SeverityInfo: time.Hour, SeverityWarning: 15 * time.Minute, SeverityCritical: time.Minute}),
		History:    NewHistory(100),
		Dispatcher: dispatcher,
		Archive:    archive,
		State:      NewState(),
		Interval:   time.Minute,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sweeper
}

func TestSweeper_RunOnceDispatchesViolations(t *testing.T) {
	source := &fakeSource{snapshot: func(context.Context) (Snapshot, error) {
		return Snapshot{
			CategoryAPI: {
				"checkout": MetricValue{P95: float64Ptr(450)},
				"search":   MetricValue{P95: float64Ptr(100)},
			},
		}, nil
	}}
	archive := &recordingArchive{}
	sweeper := newTestSweeper(t, source, archive)

	result := sweeper.RunOnce(context.Background(), time.Now())
	if result.Skipped || result.Err != nil {
		t.Fatalf("unexpected skip: %+v", result)
	}
	if len(result.Violations) != 1 || len(result.Dispatched) != 1 {
		t.Fatalf("expected 1 violation dispatched, got %d/%d", len(result.Violations), len(result.Dispatched))
	}
	if sweeper.History().Len() != 1 {
		t.Fatalf("expected 1 history record, got %d", sweeper.History().Len())
	}
	if len(archive.appended) != 1 || archive.appended[0].Metric != "checkout" {
		t.Fatalf("expected checkout archived, got %+v", archive.appended)
	}

	stats := sweeper.State().Stats()
	if stats.Sweeps != 1 || stats.Violations != 1 || stats.Dispatched != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

// 同一违规在冷却窗口内的第二轮应被抑制
func TestSweeper_SuppressedWithinCooldown(t *testing.T) {
	source := &fakeSource{snapshot: func(context.Context) (Snapshot, error) {
		return Snapshot{
			CategoryCache: {"hit_rate": MetricValue{Value: float64Ptr(70)}},
		}, nil
	}}
	sweeper := newTestSweeper(t, source, nil)

	first := sweeper.RunOnce(context.Background(), time.Now())
	if len(first.Dispatched) != 1 || first.Suppressed != 0 {
		t.Fatalf("unexpected first result: %+v", first)
	}
	second := sweeper.RunOnce(context.Background(), time.Now())
	if len(second.Dispatched) != 0 || second.Suppressed != 1 {
		t.Fatalf("expected second sweep suppressed, got %+v", second)
	}
	if sweeper.History().Len() != 1 {
		t.Fatalf("suppressed violation should not enter history, got %d", sweeper.History().Len())
	}
}

func TestSweeper_SnapshotFailureSkipsSweep(t *testing.T) {
	source := &fakeSource{snapshot: func(context.Context) (Snapshot, error) {
		return nil, fmt.Errorf("来源不可达")
	}}
	sweeper := newTestSweeper(t, source, nil)

	result := sweeper.RunOnce(context.Background(), time.Now())
	if !result.Skipped || result.Err == nil {
		t.Fatalf("expected skipped result, got %+v", result)
	}
	stats := sweeper.State().Stats()
	if stats.Sweeps != 1 || stats.Skipped != 1 || stats.Violations != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

// 归档失败不得阻断发送
func TestSweeper_ArchiveFailureNonFatal(t *testing.T) {
	source := &fakeSource{snapshot: func(context.Context) (Snapshot, error) {
		return Snapshot{
			CategoryAPI: {"checkout": MetricValue{P95: float64Ptr(450)}},
		}, nil
	}}
	sweeper := newTestSweeper(t, source, &recordingArchive{fail: true})

	result := sweeper.RunOnce(context.Background(), time.Now())
	if len(result.Dispatched) != 1 {
		t.Fatalf("expected dispatch despite archive failure, got %+v", result)
	}
}

func TestSweeper_ReloadTargets(t *testing.T) {
	source := &fakeSource{snapshot: func(context.Context) (Snapshot, error) {
		return Snapshot{}, nil
	}}
	sweeper := newTestSweeper(t, source, nil)

	set := &TargetSet{
		Version: 1,
		Categories: []CategoryTargets{
			{Category: "pages", Metrics: []TargetRule{{Name: "home", Comparator: "max", Value: 1500}}},
		},
	}
	if err := sweeper.ReloadTargets(set, "targets.yaml"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	categories := sweeper.Evaluator().Registry().Categories()
	if len(categories) != 1 || categories[0] != CategoryPages {
		t.Fatalf("expected pages registry after reload, got %v", categories)
	}

	bad := &TargetSet{Version: 1}
	if err := sweeper.ReloadTargets(bad, "targets.yaml"); err == nil {
		t.Fatal("expected error for empty target set")
	}
	// 加载失败时旧目标表保持生效
	categories = sweeper.Evaluator().Registry().Categories()
	if len(categories) != 1 || categories[0] != CategoryPages {
		t.Fatalf("expected old registry kept, got %v", categories)
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		raw      string
		fallback time.Duration
		want     time.Duration
		wantErr  bool
	}{
		{"", 30 * time.Second, 30 * time.Second, false},
		{"60s", 0, time.Minute, false},
		{"5分钟", 0, 5 * time.Minute, false},
		{"10秒", 0, 10 * time.Second, false},
		{"1小时", 0, time.Hour, false},
		{"0s", time.Minute, 0, false},
		{"30", 0, 30 * time.Second, false},
		{"abc", 0, 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.raw, tc.fallback)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseDuration(%q): expected %v, got %v", tc.raw, got, tc.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(0); got != "0秒" {
		t.Fatalf("expected 0秒, got %s", got)
	}
	if got := formatDuration(90 * time.Second); got != "1分钟" {
		t.Fatalf("expected 1分钟, got %s", got)
	}
	if got := formatDuration(500 * time.Millisecond); got != "500毫秒" {
		t.Fatalf("expected 500毫秒, got %s", got)
	}
}
