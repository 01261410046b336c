package slo

import (
	"fmt"
	"sync"
	"time"
)

const overviewWindow = 24 * time.Hour // 告警态势概览统计窗口

// Dashboard 表示告警控制台数据
type Dashboard struct {
	Overview   Overview       `json:"overview"`
	Violations []Violation    `json:"violations"`
	Stats      Stats          `json:"stats"`
	Targets    TargetsSummary `json:"targets"`
	Sweep      SweepSummary   `json:"sweep"`
	System     *SystemUsage   `json:"system,omitempty"`
}

// Overview 表示告警态势概览
type Overview struct {
	Window   string `json:"window"`
	Risk     string `json:"risk"`
	Critical int    `json:"critical"`
	Warning  int    `json:"warning"`
	Info     int    `json:"info"`
	Latest   string `json:"latest"`
}

// Stats 表示巡检累计统计
type Stats struct {
	Sweeps     uint64 `json:"sweeps"`
	Skipped    uint64 `json:"skipped"`
	Violations uint64 `json:"violations"`
	Dispatched uint64 `json:"dispatched"`
	Suppressed uint64 `json:"suppressed"`
	Failures   uint64 `json:"failures"`
}

// TargetsSummary 表示目标表摘要
type TargetsSummary struct {
	Source     string `json:"source"`
	LastLoaded string `json:"lastLoaded"`
	Categories int    `json:"categories"`
	Total      int    `json:"total"`
	Error      string `json:"error,omitempty"`
}

// SweepSummary 表示巡检摘要
type SweepSummary struct {
	Interval   string `json:"interval"`
	LastSweep  string `json:"lastSweep"`
	NextSweep  string `json:"nextSweep"`
	Duration   string `json:"duration"`
	Violations int    `json:"violations"`
	Error      string `json:"error,omitempty"`
}

// State 维护告警引擎运行态
type State struct {
	mu      sync.RWMutex
	stats   Stats
	targets TargetsSummary
	sweep   SweepSummary
}

// NewState 创建运行态
func NewState() *State {
	return &State{}
}

// RecordSweep 记录一轮巡检结果
func (s *State) RecordSweep(violations, dispatched, suppressed, failures int, skipped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Sweeps++
	if skipped {
		s.stats.Skipped++
		return
	}
	s.stats.Violations += uint64(violations)
	s.stats.Dispatched += uint64(dispatched)
	s.stats.Suppressed += uint64(suppressed)
	s.stats.Failures += uint64(failures)
}

// UpdateTargetsSummary 更新目标表摘要
func (s *State) UpdateTargetsSummary(summary TargetsSummary) {
	s.mu.Lock()
	s.targets = summary
	s.mu.Unlock()
}

// UpdateSweepSummary 更新巡检摘要
func (s *State) UpdateSweepSummary(summary SweepSummary) {
	s.mu.Lock()
	s.sweep = summary
	s.mu.Unlock()
}

// Stats 返回累计统计快照
func (s *State) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Dashboard 输出告警面板数据
func (s *State) Dashboard(history *History, system *SystemUsage) Dashboard {
	s.mu.RLock()
	stats := s.stats
	targets := s.targets
	sweep := s.sweep
	s.mu.RUnlock()

	var violations []Violation
	if history != nil {
		violations = history.Recent(0)
	}

	return Dashboard{
		Overview:   buildOverview(violations),
		Violations: violations,
		Stats:      stats,
		Targets:    targets,
		Sweep:      sweep,
		System:     system,
	}
}

// buildOverview 用于构建后续流程所需的数据
func buildOverview(violations []Violation) Overview {
	now := time.Now()
	// 仅统计窗口内的记录用于概览
	windowStart := now.Add(-overviewWindow)

	var criticalCount, warningCount, infoCount int
	var latest string
	for _, violation := range violations {
		if violation.Timestamp.Before(windowStart) {
			continue
		}
		switch violation.Severity {
		case SeverityCritical:
			criticalCount++
		case SeverityWarning:
			warningCount++
		case SeverityInfo:
			infoCount++
		}
		if latest == "" {
			// Recent 输出最新在前 第一条即最近时间
			latest = formatTime(violation.Timestamp)
		}
	}

	risk := "低"
	if criticalCount > 0 {
		risk = "严重"
	} else if warningCount > 0 {
		risk = "高"
	} else if infoCount > 0 {
		risk = "中"
	}

	return Overview{
		Window:   formatWindow(overviewWindow),
		Risk:     risk,
		Critical: criticalCount,
		Warning:  warningCount,
		Info:     infoCount,
		Latest:   defaultTime(latest),
	}
}

// formatWindow 统一概览窗口的展示文案
func formatWindow(window time.Duration) string {
	if window%time.Hour == 0 {
		return fmt.Sprintf("最近%d小时", int(window.Hours()))
	}
	return fmt.Sprintf("最近%d分钟", int(window.Minutes()))
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Format("2006-01-02 15:04:05")
}

func defaultTime(raw string) string {
	if raw == "" {
		return "--"
	}
	return raw
}
