// 本文件用于定义 SLO 告警相关的数据结构
// 文件职责：实现当前模块的核心业务逻辑与数据流转
// 关键路径：入口参数先校验再执行业务处理 最后返回统一结果
// 边界与容错：异常场景显式返回错误 由上层决定重试或降级

package slo

import "time"

// Category 表示受监控指标的分类
type Category string

const (
	// CategoryAPI 表示接口延迟
	CategoryAPI Category = "api"
	// CategoryPages 表示页面加载
	CategoryPages Category = "pages"
	// CategoryWebsocket 表示长连接操作
	CategoryWebsocket Category = "websocket"
	// CategoryCache 表示缓存指标
	CategoryCache Category = "cache"
	// CategoryDatabase 表示数据库指标
	CategoryDatabase Category = "database"
	// CategoryErrorRate 表示错误率
	CategoryErrorRate Category = "error_rate"
	// CategoryAvailability 表示可用性
	CategoryAvailability Category = "availability"
)

// ParseCategory 用于解析配置或采集端上报的分类名
func ParseCategory(raw string) (Category, bool) {
	switch Category(raw) {
	case CategoryAPI, CategoryPages, CategoryWebsocket, CategoryCache,
		CategoryDatabase, CategoryErrorRate, CategoryAvailability:
		return Category(raw), true
	default:
		return "", false
	}
}

// Severity 表示违规严重级别
type Severity string

const (
	// SeverityNone 表示未越界
	SeverityNone Severity = ""
	// SeverityInfo 表示接近阈值
	SeverityInfo Severity = "info"
	// SeverityWarning 表示已显著越界风险
	SeverityWarning Severity = "warning"
	// SeverityCritical 表示阈值已击穿
	SeverityCritical Severity = "critical"
)

// Rank 返回级别序号 便于单调性比较
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// Comparator 表示阈值比较方向
type Comparator string

const (
	// ComparatorMax 表示观测值应低于目标
	ComparatorMax Comparator = "max"
	// ComparatorMin 表示观测值应高于目标
	ComparatorMin Comparator = "min"
)

// parseComparator 用于解析输入参数或配置
func parseComparator(raw string) (Comparator, bool) {
	switch Comparator(raw) {
	case ComparatorMax, ComparatorMin:
		return Comparator(raw), true
	default:
		return "", false
	}
}

// SLOTarget 表示单个指标的声明式目标
// 注册表加载完成后只读 不提供运行时修改入口
type SLOTarget struct {
	Comparator Comparator `json:"comparator"`
	Value      float64    `json:"value"`
}

// MetricValue 表示采集端给出的单个指标当前值
// 延迟类指标带 p95 比率类指标带标量 计数类指标带整数
type MetricValue struct {
	P95   *float64 `json:"p95,omitempty"`
	Value *float64 `json:"value,omitempty"`
	Count *int64   `json:"count,omitempty"`
}

// Scalar 返回参与阈值比较的数值
// 取值优先级 p95 > value > count 缺失时返回 false
func (v MetricValue) Scalar() (float64, bool) {
	if v.P95 != nil {
		return *v.P95, true
	}
	if v.Value != nil {
		return *v.Value, true
	}
	if v.Count != nil {
		return float64(*v.Count), true
	}
	return 0, false
}

// Snapshot 表示采集端的一次指标快照
type Snapshot map[Category]map[string]MetricValue

// 违规方向 按比较器区分越上限与跌下限
const (
	breachAboveTarget = "above_target"
	breachBelowTarget = "below_target"
)

// Violation 表示一次 SLO 越界
// 创建后不可变 百分比只在创建时计算一次
type Violation struct {
	Category   Category  `json:"category"`
	Metric     string    `json:"metric"`
	Type       string    `json:"type"`
	Value      float64   `json:"value"`
	Target     float64   `json:"target"`
	Severity   Severity  `json:"severity"`
	Percentage float64   `json:"percentage"`
	Timestamp  time.Time `json:"timestamp"`
}

// CooldownKey 返回冷却去重键
// 键包含级别 保证 critical 不会被低级别的冷却窗口误抑制
func (v Violation) CooldownKey() string {
	return string(v.Category) + "|" + v.Metric + "|" + string(v.Severity)
}

// ChannelResult 表示单通道发送结果
type ChannelResult struct {
	Channel string `json:"channel"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// DispatchResult 表示一次违规在各通道的发送结果
type DispatchResult struct {
	Violation Violation       `json:"violation"`
	Channels  []ChannelResult `json:"channels"`
}

// Failed 返回是否存在通道发送失败
func (r DispatchResult) Failed() bool {
	for _, item := range r.Channels {
		if !item.OK {
			return true
		}
	}
	return false
}

// Recommendation 表示面向运维的优化建议
type Recommendation struct {
	Type        string   `json:"type"`
	Priority    string   `json:"priority"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}

// SystemUsage 表示本机资源探测结果 供建议引擎与面板使用
type SystemUsage struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
	Load1         float64 `json:"load1"`
	DiskPercent   float64 `json:"diskPercent"`
}
