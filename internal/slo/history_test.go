// 本文件用于历史环形存储的单元测试
package slo

import (
	"fmt"
	"testing"
)

func historyViolation(seq int) Violation {
	return Violation{
		Category: CategoryAPI,
		Metric:   fmt.Sprintf("m-%03d", seq),
		Severity: SeverityWarning,
	}
}

func TestHistory_EvictsOldestBeyondCapacity(t *testing.T) {
	history := NewHistory(100)
	for i := 0; i < 150; i++ {
		history.Append(historyViolation(i))
	}

	if history.Len() != 100 {
		t.Fatalf("expected 100 records, got %d", history.Len())
	}
	all := history.Recent(0)
	if len(all) != 100 {
		t.Fatalf("expected 100 recent records, got %d", len(all))
	}
	// 最新在前 最早的 50 条应被淘汰
	if all[0].Metric != "m-149" {
		t.Fatalf("expected newest m-149 first, got %s", all[0].Metric)
	}
	if all[len(all)-1].Metric != "m-050" {
		t.Fatalf("expected oldest surviving m-050 last, got %s", all[len(all)-1].Metric)
	}
}

func TestHistory_RecentNewestFirst(t *testing.T) {
	history := NewHistory(10)
	for i := 0; i < 5; i++ {
		history.Append(historyViolation(i))
	}

	recent := history.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recent))
	}
	for i, want := range []string{"m-004", "m-003", "m-002"} {
		if recent[i].Metric != want {
			t.Fatalf("expected %s at index %d, got %s", want, i, recent[i].Metric)
		}
	}
}

func TestHistory_LimitBeyondTotal(t *testing.T) {
	history := NewHistory(10)
	history.Append(historyViolation(1))
	history.Append(historyViolation(2))

	if got := history.Recent(50); len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
}

func TestHistory_DefaultCapacity(t *testing.T) {
	history := NewHistory(0)
	for i := 0; i < defaultHistoryCapacity+20; i++ {
		history.Append(historyViolation(i))
	}
	if history.Len() != defaultHistoryCapacity {
		t.Fatalf("expected %d records, got %d", defaultHistoryCapacity, history.Len())
	}
}
