// 本文件用于 SLO 目标表的加载与只读注册
package slo

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// TargetRule 表示目标表中的单条指标目标
type TargetRule struct {
	Name       string  `yaml:"name" json:"name"`
	Comparator string  `yaml:"comparator" json:"comparator"`
	Value      float64 `yaml:"value" json:"value"`
}

// CategoryTargets 表示单个分类下的目标声明
type CategoryTargets struct {
	Category string       `yaml:"category" json:"category"`
	Metrics  []TargetRule `yaml:"metrics" json:"metrics"`
}

// TargetSet 表示完整目标表文件结构
type TargetSet struct {
	Version    int               `yaml:"version" json:"version"`
	Categories []CategoryTargets `yaml:"categories" json:"categories"`
}

type compiledTarget struct {
	name   string
	target SLOTarget
}

// Registry 保存编译后的只读目标表
// 分类与指标保持声明顺序 评估输出因此可复现
type Registry struct {
	order   []Category
	targets map[Category][]compiledTarget
}

// LoadTargets 读取并解析目标表文件
func LoadTargets(path string) (*TargetSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取SLO目标表失败: %w", err)
	}

	var set TargetSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("解析SLO目标表失败: %w", err)
	}
	return &set, nil
}

// NewRegistry 编译目标表为只读注册表
// 目标表格式错误属于启动期致命错误 直接返回失败
func NewRegistry(set *TargetSet) (*Registry, error) {
	if set == nil {
		return nil, fmt.Errorf("SLO目标表为空")
	}
	if len(set.Categories) == 0 {
		return nil, fmt.Errorf("SLO目标表不能为空")
	}

	registry := &Registry{
		order:   make([]Category, 0, len(set.Categories)),
		targets: make(map[Category][]compiledTarget, len(set.Categories)),
	}
	for _, entry := range set.Categories {
		raw := strings.ToLower(strings.TrimSpace(entry.Category))
		category, ok := ParseCategory(raw)
		if !ok {
			return nil, fmt.Errorf("无效的指标分类: %s", entry.Category)
		}
		if _, exists := registry.targets[category]; exists {
			return nil, fmt.Errorf("指标分类 %s 重复声明", category)
		}
		if len(entry.Metrics) == 0 {
			return nil, fmt.Errorf("指标分类 %s 缺少目标声明", category)
		}
		compiled := make([]compiledTarget, 0, len(entry.Metrics))
		seen := make(map[string]struct{}, len(entry.Metrics))
		for _, rule := range entry.Metrics {
			name := strings.TrimSpace(rule.Name)
			if name == "" {
				return nil, fmt.Errorf("指标分类 %s 存在空指标名", category)
			}
			if _, dup := seen[name]; dup {
				return nil, fmt.Errorf("指标 %s/%s 重复声明", category, name)
			}
			seen[name] = struct{}{}
			comparator, ok := parseComparator(strings.ToLower(strings.TrimSpace(rule.Comparator)))
			if !ok {
				return nil, fmt.Errorf("指标 %s/%s 比较器无效: %s", category, name, rule.Comparator)
			}
			if rule.Value <= 0 {
				return nil, fmt.Errorf("指标 %s/%s 目标值必须大于零", category, name)
			}
			compiled = append(compiled, compiledTarget{
				name: name,
				target: SLOTarget{
					Comparator: comparator,
					Value:      rule.Value,
				},
			})
		}
		registry.order = append(registry.order, category)
		registry.targets[category] = compiled
	}
	return registry, nil
}

// Categories 返回声明顺序的分类列表
func (r *Registry) Categories() []Category {
	if r == nil {
		return nil
	}
	return append([]Category(nil), r.order...)
}

// TargetsFor 返回指定分类的目标映射
// 分类不存在时返回空映射 没有目标即没有需要评估的内容
func (r *Registry) TargetsFor(category Category) map[string]SLOTarget {
	out := make(map[string]SLOTarget)
	if r == nil {
		return out
	}
	for _, item := range r.targets[category] {
		out[item.name] = item.target
	}
	return out
}

// TotalTargets 返回目标总数 用于摘要展示
func (r *Registry) TotalTargets() int {
	if r == nil {
		return 0
	}
	total := 0
	for _, items := range r.targets {
		total += len(items)
	}
	return total
}

// orderedTargetsFor 返回声明顺序的目标列表 供评估器内部遍历
func (r *Registry) orderedTargetsFor(category Category) []compiledTarget {
	if r == nil {
		return nil
	}
	return r.targets[category]
}
