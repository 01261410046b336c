// 本文件用于违规级别判定 纯函数无副作用
package slo

// 上限型目标按观测值与目标的比值分级
const (
	maxCriticalRatio = 1.0
	maxWarningRatio  = 0.8
	maxInfoRatio     = 0.6
)

// 下限型目标只分两级 跌破目标即告警 跌破七五折直接升级
const minCriticalFactor = 0.75

// Classify 根据观测值与目标判定违规级别
// 返回 SeverityNone 表示未越界 由调用方直接丢弃
func Classify(value float64, target SLOTarget) Severity {
	if target.Value <= 0 {
		return SeverityNone
	}
	if target.Comparator == ComparatorMin {
		if value >= target.Value {
			return SeverityNone
		}
		if value < target.Value*minCriticalFactor {
			return SeverityCritical
		}
		return SeverityWarning
	}

	ratio := value / target.Value
	switch {
	case ratio >= maxCriticalRatio:
		return SeverityCritical
	case ratio >= maxWarningRatio:
		return SeverityWarning
	case ratio >= maxInfoRatio:
		return SeverityInfo
	default:
		return SeverityNone
	}
}

// Percentage 返回观测值相对目标的百分比
// 只在构造违规时计算一次 之后不再重算
func Percentage(value, target float64) float64 {
	if target == 0 {
		return 0
	}
	return value / target * 100
}
