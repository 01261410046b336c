// 本文件用于根据指标水位生成优化建议
// 建议阈值独立于 SLO 目标 面向面板展示 不进入告警流水线
package slo

import (
	"fmt"
	"sort"
)

// 建议优先级
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// 建议触发阈值 比 SLO 目标更保守 便于提前优化
const (
	adviceAPILatencyMs  = 200.0
	advicePageLatencyMs = 1000.0
	adviceCacheHitRate  = 90.0
	adviceDBQueryMs     = 100.0
	adviceServerErrRate = 1.0
	adviceClientErrRate = 5.0
	adviceCPUPercent    = 80.0
	adviceMemoryPercent = 85.0
	adviceDiskPercent   = 90.0
)

// Recommend 根据当前快照与本机资源水位产出建议列表
// 纯规则表 输入相同输出相同 顺序固定便于测试
func Recommend(snapshot Snapshot, system *SystemUsage) []Recommendation {
	out := make([]Recommendation, 0)

	out = append(out, recommendLatency(snapshot, CategoryAPI, adviceAPILatencyMs, "api_latency", "接口响应偏慢", []string{
		"为热点接口增加缓存层",
		"检查慢查询并补充索引",
		"评估接口返回字段裁剪",
	})...)
	out = append(out, recommendLatency(snapshot, CategoryPages, advicePageLatencyMs, "page_latency", "页面加载偏慢", []string{
		"开启静态资源压缩与 CDN",
		"减少首屏阻塞请求",
	})...)
	out = append(out, recommendCacheHitRate(snapshot)...)
	out = append(out, recommendLatency(snapshot, CategoryDatabase, adviceDBQueryMs, "db_query", "数据库查询偏慢", []string{
		"分析执行计划并补充索引",
		"排查 N+1 查询",
		"评估读写分离",
	})...)
	out = append(out, recommendErrorRate(snapshot)...)
	out = append(out, recommendSystem(system)...)
	return out
}

// recommendLatency 用于检查延迟类指标是否超过建议水位
func recommendLatency(snapshot Snapshot, category Category, thresholdMs float64, adviceType, title string, actions []string) []Recommendation {
	out := make([]Recommendation, 0)
	for metric, value := range snapshot[category] {
		observed, ok := value.Scalar()
		if !ok || observed <= thresholdMs {
			continue
		}
		priority := PriorityMedium
		if observed > thresholdMs*2 {
			priority = PriorityHigh
		}
		out = append(out, Recommendation{
			Type:        adviceType,
			Priority:    priority,
			Title:       title,
			Description: fmt.Sprintf("%s/%s 当前 %.0fms 超过建议水位 %.0fms", category, metric, observed, thresholdMs),
			Actions:     actions,
		})
	}
	return sortByDescription(out)
}

// recommendCacheHitRate 用于检查缓存命中率
func recommendCacheHitRate(snapshot Snapshot) []Recommendation {
	out := make([]Recommendation, 0)
	for metric, value := range snapshot[CategoryCache] {
		observed, ok := value.Scalar()
		if !ok {
			continue
		}
		// 命中率类指标以百分比表示 其他缓存指标不在此处处理
		if metric != "hit_rate" || observed >= adviceCacheHitRate {
			continue
		}
		out = append(out, Recommendation{
			Type:        "cache_hit_rate",
			Priority:    PriorityMedium,
			Title:       "缓存命中率偏低",
			Description: fmt.Sprintf("cache/%s 当前 %.1f%% 低于建议水位 %.0f%%", metric, observed, adviceCacheHitRate),
			Actions: []string{
				"延长热点键的 TTL",
				"增加缓存预热任务",
				"检查失效风暴",
			},
		})
	}
	return out
}

// recommendErrorRate 用于检查错误率水位
func recommendErrorRate(snapshot Snapshot) []Recommendation {
	out := make([]Recommendation, 0)
	for metric, value := range snapshot[CategoryErrorRate] {
		observed, ok := value.Scalar()
		if !ok {
			continue
		}
		threshold := adviceClientErrRate
		priority := PriorityMedium
		if metric == "5xx" {
			threshold = adviceServerErrRate
			priority = PriorityHigh
		}
		if observed <= threshold {
			continue
		}
		out = append(out, Recommendation{
			Type:        "error_rate",
			Priority:    priority,
			Title:       fmt.Sprintf("%s 错误率偏高", metric),
			Description: fmt.Sprintf("error_rate/%s 当前 %.2f%% 超过建议水位 %.1f%%", metric, observed, threshold),
			Actions: []string{
				"检查近期发布与依赖服务状态",
				"对不稳定依赖增加熔断与降级",
			},
		})
	}
	return sortByDescription(out)
}

// recommendSystem 用于检查本机资源水位
func recommendSystem(system *SystemUsage) []Recommendation {
	if system == nil {
		return nil
	}
	out := make([]Recommendation, 0)
	if system.CPUPercent > adviceCPUPercent {
		out = append(out, Recommendation{
			Type:        "system_cpu",
			Priority:    PriorityHigh,
			Title:       "CPU 使用率偏高",
			Description: fmt.Sprintf("当前 CPU 使用率 %.1f%% 超过建议水位 %.0f%%", system.CPUPercent, adviceCPUPercent),
			Actions: []string{
				"排查热点协程与锁竞争",
				"评估横向扩容",
			},
		})
	}
	if system.MemoryPercent > adviceMemoryPercent {
		out = append(out, Recommendation{
			Type:        "system_memory",
			Priority:    PriorityHigh,
			Title:       "内存使用率偏高",
			Description: fmt.Sprintf("当前内存使用率 %.1f%% 超过建议水位 %.0f%%", system.MemoryPercent, adviceMemoryPercent),
			Actions: []string{
				"检查缓存与队列是否无界增长",
				"评估垂直扩容",
			},
		})
	}
	if system.DiskPercent > adviceDiskPercent {
		out = append(out, Recommendation{
			Type:        "system_disk",
			Priority:    PriorityMedium,
			Title:       "磁盘使用率偏高",
			Description: fmt.Sprintf("当前磁盘使用率 %.1f%% 超过建议水位 %.0f%%", system.DiskPercent, adviceDiskPercent),
			Actions: []string{
				"清理过期日志与归档",
				"扩展数据盘容量",
			},
		})
	}
	return out
}

// sortByDescription 用于固定建议输出顺序
// map 遍历无序 按描述排序保证结果可复现
func sortByDescription(items []Recommendation) []Recommendation {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Description < items[j].Description
	})
	return items
}
