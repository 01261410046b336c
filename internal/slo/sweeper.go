// 本文件用于巡检调度 串联快照拉取 评估 冷却 历史与分发
package slo

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"slo-watch/internal/logger"
	"slo-watch/internal/metrics"
)

const defaultSweepInterval = time.Minute

// Source 表示指标快照来源
// 核心不关心指标如何计算 测试用假实现可直接替换
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Archiver 表示已发送违规的持久化归档
type Archiver interface {
	Append(violation Violation) error
}

// SweepResult 表示单轮巡检的执行结果
type SweepResult struct {
	Violations []Violation
	Dispatched []DispatchResult
	Suppressed int
	Skipped    bool
	Err        error
}

// Sweeper 周期执行评估与分发
// 单轮内任何运行期错误只记录不上抛 下一轮照常执行
type Sweeper struct {
	mu         sync.Mutex
	evaluator  *Evaluator
	source     Source
	cooldown   *Cooldown
	history    *History
	dispatcher *Dispatcher
	archive    Archiver
	state      *State
	interval   time.Duration
	running    bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// SweeperOptions 表示巡检器依赖集合
type SweeperOptions struct {
	Evaluator  *Evaluator
	Source     Source
	Cooldown   *Cooldown
	History    *History
	Dispatcher *Dispatcher
	Archive    Archiver
	State      *State
	Interval   time.Duration
}

// NewSweeper 创建巡检器
func NewSweeper(opts SweeperOptions) (*Sweeper, error) {
	if opts.Evaluator == nil {
		return nil, fmt.Errorf("评估器不能为空")
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("指标来源不能为空")
	}
	if opts.Cooldown == nil {
		return nil, fmt.Errorf("冷却器不能为空")
	}
	if opts.History == nil {
		return nil, fmt.Errorf("历史存储不能为空")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("分发器不能为空")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	state := opts.State
	if state == nil {
		state = NewState()
	}
	sweeper := &Sweeper{
		evaluator:  opts.Evaluator,
		source:     opts.Source,
		cooldown:   opts.Cooldown,
		history:    opts.History,
		dispatcher: opts.Dispatcher,
		archive:    opts.Archive,
		state:      state,
		interval:   interval,
	}
	sweeper.updateSweepSummary(time.Time{}, 0, 0, nil)
	return sweeper, nil
}

// State 返回运行态
func (s *Sweeper) State() *State {
	if s == nil {
		return nil
	}
	return s.state
}

// History 返回历史存储
func (s *Sweeper) History() *History {
	if s == nil {
		return nil
	}
	return s.history
}

// Evaluator 返回评估器 供目标表热加载使用
func (s *Sweeper) Evaluator() *Evaluator {
	if s == nil {
		return nil
	}
	return s.evaluator
}

// Start 启动巡检循环
func (s *Sweeper) Start() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.ctx = ctx
	s.cancel = cancel
	s.running = true
	go s.run(ctx)
	logger.Info("SLO 巡检已启动: interval=%s", formatDuration(s.interval))
}

// Stop 停止巡检循环
func (s *Sweeper) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

// run 用于执行巡检循环
func (s *Sweeper) run(ctx context.Context) {
	s.RunOnce(ctx, time.Now())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx, time.Now())
		}
	}
}

// RunOnce 执行单轮巡检
// 快照整体不可用时跳过本轮 不基于陈旧数据产出违规
func (s *Sweeper) RunOnce(ctx context.Context, now time.Time) SweepResult {
	started := time.Now()
	collector := metrics.Global()

	snapshot, err := s.source.Snapshot(ctx)
	if err != nil {
		logger.Warn("拉取指标快照失败 本轮巡检跳过: %v", err)
		collector.IncSweepSkipped()
		s.state.RecordSweep(0, 0, 0, 0, true)
		s.updateSweepSummary(now, time.Since(started), 0, err)
		return SweepResult{Skipped: true, Err: err}
	}

	violations := s.evaluator.Evaluate(snapshot, now)
	result := SweepResult{Violations: violations}
	failures := 0
	for _, violation := range violations {
		// 原子占用冷却窗口 并发巡检下同一键只放行一次
		if !s.cooldown.TryAcquire(violation.Category, violation.Metric, violation.Severity) {
			result.Suppressed++
			collector.IncSuppressed()
			logger.Debug("告警处于冷却窗口 已抑制: %s/%s severity=%s", violation.Category, violation.Metric, violation.Severity)
			continue
		}
		// 先落历史再发送 与面板读到的数据保持一致
		s.history.Append(violation)
		s.archiveViolation(violation)
		dispatch := s.dispatcher.Dispatch(ctx, violation)
		if dispatch.Failed() {
			failures++
		}
		collector.IncViolation(string(violation.Severity))
		for _, channel := range dispatch.Channels {
			if !channel.OK {
				collector.IncDispatchFailure(channel.Channel)
			}
		}
		result.Dispatched = append(result.Dispatched, dispatch)
	}

	duration := time.Since(started)
	collector.IncSweep()
	collector.ObserveSweepDuration(duration.Seconds())
	s.state.RecordSweep(len(violations), len(result.Dispatched), result.Suppressed, failures, false)
	s.updateSweepSummary(now, duration, len(violations), nil)
	return result
}

// archiveViolation 用于写入持久化归档 失败只记录日志
func (s *Sweeper) archiveViolation(violation Violation) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Append(violation); err != nil {
		logger.Error("违规归档写入失败: %s/%s: %v", violation.Category, violation.Metric, err)
	}
}

// ReloadTargets 热加载目标表并刷新摘要
func (s *Sweeper) ReloadTargets(set *TargetSet, source string) error {
	registry, err := NewRegistry(set)
	if err != nil {
		s.state.UpdateTargetsSummary(TargetsSummary{
			Source:     source,
			LastLoaded: formatTime(time.Now()),
			Error:      err.Error(),
		})
		return err
	}
	s.evaluator.Reload(registry)
	s.state.UpdateTargetsSummary(TargetsSummary{
		Source:     source,
		LastLoaded: formatTime(time.Now()),
		Categories: len(registry.Categories()),
		Total:      registry.TotalTargets(),
	})
	logger.Info("SLO 目标表已加载: categories=%d targets=%d", len(registry.Categories()), registry.TotalTargets())
	return nil
}

// updateSweepSummary 用于更新运行状态或配置
func (s *Sweeper) updateSweepSummary(at time.Time, duration time.Duration, violations int, sweepErr error) {
	summary := SweepSummary{
		Interval:   formatDuration(s.interval),
		LastSweep:  formatTime(at),
		NextSweep:  formatTime(at.Add(s.interval)),
		Duration:   formatDuration(duration),
		Violations: violations,
	}
	if at.IsZero() {
		summary.LastSweep = "--"
		summary.NextSweep = "--"
	}
	if sweepErr != nil {
		summary.Error = sweepErr.Error()
	}
	s.state.UpdateSweepSummary(summary)
}

// formatDuration 用于格式化输出内容
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0秒"
	}
	if d >= time.Hour {
		hours := int(d.Round(time.Minute).Hours())
		if hours <= 0 {
			hours = 1
		}
		return fmt.Sprintf("%d小时", hours)
	}
	if d >= time.Minute {
		minutes := int(d.Round(time.Second).Minutes())
		if minutes <= 0 {
			minutes = 1
		}
		return fmt.Sprintf("%d分钟", minutes)
	}
	if d >= time.Second {
		return fmt.Sprintf("%d秒", int(d.Round(time.Second).Seconds()))
	}
	return fmt.Sprintf("%d毫秒", d.Milliseconds())
}

// ParseDuration 解析配置中的时长 支持中文单位
func ParseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback, nil
	}
	clean := strings.ToLower(trimmed)
	clean = strings.ReplaceAll(clean, "秒钟", "秒")
	clean = strings.ReplaceAll(clean, "秒", "s")
	clean = strings.ReplaceAll(clean, "分钟", "m")
	clean = strings.ReplaceAll(clean, "分", "m")
	clean = strings.ReplaceAll(clean, "小时", "h")
	clean = strings.TrimSpace(clean)
	if d, err := time.ParseDuration(clean); err == nil && d >= 0 {
		return d, nil
	}
	numRe := regexp.MustCompile(`\d+`)
	if m := numRe.FindString(clean); m != "" {
		if v, err := strconv.Atoi(m); err == nil && v >= 0 {
			return time.Duration(v) * time.Second, nil
		}
	}
	return 0, fmt.Errorf("无效时间: %s", raw)
}
