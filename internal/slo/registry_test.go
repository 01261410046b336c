// 本文件用于 SLO 目标表加载与校验的单元测试
package slo

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTargetsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write targets file failed: %v", err)
	}
	return path
}

func TestLoadTargets_ValidFile(t *testing.T) {
	path := writeTargetsFile(t, `
version: 1
categories:
  - category: api
    metrics:
      - name: checkout
        comparator: max
        value: 300
      - name: search
        comparator: max
        value: 200
  - category: cache
    metrics:
      - name: hit_rate
        comparator: min
        value: 80
`)
	set, err := LoadTargets(path)
	if err != nil {
		t.Fatalf("load targets failed: %v", err)
	}
	registry, err := NewRegistry(set)
	if err != nil {
		t.Fatalf("new registry failed: %v", err)
	}

	categories := registry.Categories()
	if len(categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(categories))
	}
	if categories[0] != CategoryAPI || categories[1] != CategoryCache {
		t.Fatalf("categories should keep declaration order, got %v", categories)
	}
	if registry.TotalTargets() != 3 {
		t.Fatalf("expected 3 targets, got %d", registry.TotalTargets())
	}

	targets := registry.TargetsFor(CategoryAPI)
	checkout, ok := targets["checkout"]
	if !ok {
		t.Fatal("checkout target missing")
	}
	if checkout.Comparator != ComparatorMax || checkout.Value != 300 {
		t.Fatalf("unexpected checkout target: %+v", checkout)
	}
}

func TestLoadTargets_FileMissing(t *testing.T) {
	if _, err := LoadTargets(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	cases := []struct {
		name string
		set  *TargetSet
	}{
		{"目标表为空", nil},
		{"无分类", &TargetSet{Version: 1}},
		{"未知分类", &TargetSet{Categories: []CategoryTargets{
			{Category: "graphql", Metrics: []TargetRule{{Name: "q", Comparator: "max", Value: 1}}},
		}}},
		{"分类重复", &TargetSet{Categories: []CategoryTargets{
			{Category: "api", Metrics: []TargetRule{{Name: "a", Comparator: "max", Value: 1}}},
			{Category: "api", Metrics: []TargetRule{{Name: "b", Comparator: "max", Value: 1}}},
		}}},
		{"指标名为空", &TargetSet{Categories: []CategoryTargets{
			{Category: "api", Metrics: []TargetRule{{Name: "  ", Comparator: "max", Value: 1}}},
		}}},
		{"指标重复", &TargetSet{Categories: []CategoryTargets{
			{Category: "api", Metrics: []TargetRule{
				{Name: "a", Comparator: "max", Value: 1},
				{Name: "a", Comparator: "max", Value: 2},
			}},
		}}},
		{"比较器无效", &TargetSet{Categories: []CategoryTargets{
			{Category: "api", Metrics: []TargetRule{{Name: "a", Comparator: "equal", Value: 1}}},
		}}},
		{"目标值非正", &TargetSet{Categories: []CategoryTargets{
			{Category: "api", Metrics: []TargetRule{{Name: "a", Comparator: "max", Value: 0}}},
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRegistry(tc.set); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestRegistry_TargetsForAbsentCategory(t *testing.T) {
	registry, err := NewRegistry(&TargetSet{Categories: []CategoryTargets{
		{Category: "api", Metrics: []TargetRule{{Name: "a", Comparator: "max", Value: 100}}},
	}})
	if err != nil {
		t.Fatalf("new registry failed: %v", err)
	}
	targets := registry.TargetsFor(CategoryDatabase)
	if targets == nil {
		t.Fatal("absent category should return empty map, not nil")
	}
	if len(targets) != 0 {
		t.Fatalf("expected empty map, got %d entries", len(targets))
	}
}
