// 本文件用于违规级别判定的单元测试
package slo

import "testing"

func TestClassify_MaxComparatorTiers(t *testing.T) {
	target := SLOTarget{Comparator: ComparatorMax, Value: 300}

	cases := []struct {
		name  string
		value float64
		want  Severity
	}{
		{"远低于目标不告警", 100, SeverityNone},
		{"达到六成提示", 180, SeverityInfo},
		{"达到八成警告", 240, SeverityWarning},
		{"刚好达到目标即严重", 300, SeverityCritical},
		{"超出目标严重", 450, SeverityCritical},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.value, target); got != tc.want {
				t.Fatalf("Classify(%v) expected %s, got %s", tc.value, tc.want, got)
			}
		})
	}
}

func TestClassify_MinComparatorTwoTiers(t *testing.T) {
	target := SLOTarget{Comparator: ComparatorMin, Value: 80}

	cases := []struct {
		name  string
		value float64
		want  Severity
	}{
		{"达标不告警", 85, SeverityNone},
		{"刚好达标不告警", 80, SeverityNone},
		{"跌破目标警告", 65, SeverityWarning},
		{"跌破七五折直接严重", 50, SeverityCritical},
		{"刚好七五折仍是警告", 60, SeverityWarning},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.value, target); got != tc.want {
				t.Fatalf("Classify(%v) expected %s, got %s", tc.value, tc.want, got)
			}
		})
	}
}

// 上限型目标下 观测值越大级别只会不降 单调性是分级逻辑的硬约束
func TestClassify_MaxComparatorMonotonic(t *testing.T) {
	target := SLOTarget{Comparator: ComparatorMax, Value: 200}
	prevRank := 0
	for value := 0.0; value <= 500; value += 5 {
		rank := Classify(value, target).Rank()
		if rank < prevRank {
			t.Fatalf("severity rank decreased at value=%v: %d -> %d", value, prevRank, rank)
		}
		prevRank = rank
	}
}

func TestClassify_InvalidTarget(t *testing.T) {
	if got := Classify(100, SLOTarget{Comparator: ComparatorMax, Value: 0}); got != SeverityNone {
		t.Fatalf("zero target should not classify, got %s", got)
	}
}

func TestPercentage(t *testing.T) {
	if got := Percentage(450, 300); got != 150 {
		t.Fatalf("expected 150, got %v", got)
	}
	if got := Percentage(100, 0); got != 0 {
		t.Fatalf("zero target should yield 0, got %v", got)
	}
}
