// 本文件用于快照与目标表的违规评估
package slo

import (
	"sync"
	"time"
)

// Evaluator 负责把指标快照对照目标表产出违规列表
// 注册表通过构造注入 评估本身不做任何 IO
type Evaluator struct {
	mu       sync.RWMutex
	registry *Registry
}

// NewEvaluator 创建评估器
func NewEvaluator(registry *Registry) *Evaluator {
	return &Evaluator{registry: registry}
}

// Reload 替换目标表 用于目标文件热加载
func (e *Evaluator) Reload(registry *Registry) {
	if e == nil || registry == nil {
		return
	}
	e.mu.Lock()
	e.registry = registry
	e.mu.Unlock()
}

// Registry 返回当前生效的目标表
func (e *Evaluator) Registry() *Registry {
	if e == nil {
		return nil
	}
	e.mu.RLock()
	registry := e.registry
	e.mu.RUnlock()
	return registry
}

// Evaluate 评估一次快照并返回违规列表
// 输出顺序固定为分类声明序再指标声明序
// 快照缺失某指标时直接跳过 不视为错误
func (e *Evaluator) Evaluate(snapshot Snapshot, now time.Time) []Violation {
	registry := e.Registry()
	if registry == nil {
		return nil
	}

	violations := make([]Violation, 0)
	for _, category := range registry.order {
		values := snapshot[category]
		if len(values) == 0 {
			continue
		}
		for _, item := range registry.orderedTargetsFor(category) {
			metricValue, ok := values[item.name]
			if !ok {
				continue
			}
			observed, ok := metricValue.Scalar()
			if !ok {
				continue
			}
			severity := Classify(observed, item.target)
			if severity == SeverityNone {
				continue
			}
			violations = append(violations, newViolation(category, item.name, observed, item.target, severity, now))
		}
	}
	return violations
}

// newViolation 构造不可变违规记录
func newViolation(category Category, metric string, value float64, target SLOTarget, severity Severity, now time.Time) Violation {
	breach := breachAboveTarget
	if target.Comparator == ComparatorMin {
		breach = breachBelowTarget
	}
	return Violation{
		Category:   category,
		Metric:     metric,
		Type:       breach,
		Value:      value,
		Target:     target.Value,
		Severity:   severity,
		Percentage: Percentage(value, target.Value),
		Timestamp:  now,
	}
}
