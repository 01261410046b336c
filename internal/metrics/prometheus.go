// 本文件用于 Prometheus 指标聚合与导出 将巡检运行指标统一收口便于监控接入

package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Collector 聚合巡检运行期指标，并以 Prometheus 文本格式输出。
type Collector struct {
	sweepsTotal        atomic.Uint64
	sweepsSkippedTotal atomic.Uint64
	suppressedTotal    atomic.Uint64

	mu                    sync.RWMutex
	violationsBySeverity  map[string]uint64
	dispatchFailByChannel map[string]uint64
	sweepDurationSec      *histogram
	snapshotFetchSec      *histogram
}

type histogram struct {
	buckets []float64
	counts  []uint64 // 累计桶计数
	count   uint64
	sum     float64
}

var (
	globalCollector = NewCollector()
)

// Global 返回进程级全局指标收集器。
func Global() *Collector {
	return globalCollector
}

// NewCollector 创建指标收集器。
func NewCollector() *Collector {
	return &Collector{
		violationsBySeverity:  make(map[string]uint64),
		dispatchFailByChannel: make(map[string]uint64),
		sweepDurationSec:      newHistogram([]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}),
		snapshotFetchSec:      newHistogram([]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}),
	}
}

func newHistogram(buckets []float64) *histogram {
	clean := make([]float64, 0, len(buckets))
	for _, bucket := range buckets {
		if bucket <= 0 {
			continue
		}
		clean = append(clean, bucket)
	}
	sort.Float64s(clean)
	return &histogram{
		buckets: clean,
		counts:  make([]uint64, len(clean)),
	}
}

func (h *histogram) observe(v float64) {
	if h == nil {
		return
	}
	for idx, bound := range h.buckets {
		if v <= bound {
			h.counts[idx]++
		}
	}
	h.count++
	h.sum += v
}

func (h *histogram) writePrometheus(builder *strings.Builder, metric string, labels map[string]string) {
	if h == nil {
		return
	}
	for idx, bound := range h.buckets {
		bucketLabels := mergeLabels(labels, map[string]string{
			"le": trimFloat(bound),
		})
		builder.WriteString(metric)
		builder.WriteString("_bucket")
		writeLabels(builder, bucketLabels)
		builder.WriteByte(' ')
		builder.WriteString(strconv.FormatUint(h.counts[idx], 10))
		builder.WriteByte('\n')
	}
	infLabels := mergeLabels(labels, map[string]string{
		"le": "+Inf",
	})
	builder.WriteString(metric)
	builder.WriteString("_bucket")
	writeLabels(builder, infLabels)
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatUint(h.count, 10))
	builder.WriteByte('\n')

	builder.WriteString(metric)
	builder.WriteString("_sum")
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(trimFloat(h.sum))
	builder.WriteByte('\n')

	builder.WriteString(metric)
	builder.WriteString("_count")
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatUint(h.count, 10))
	builder.WriteByte('\n')
}

// IncSweep 记录一轮巡检完成。
func (c *Collector) IncSweep() {
	if c == nil {
		return
	}
	c.sweepsTotal.Add(1)
}

// IncSweepSkipped 记录一轮因快照不可用而跳过的巡检。
func (c *Collector) IncSweepSkipped() {
	if c == nil {
		return
	}
	c.sweepsTotal.Add(1)
	c.sweepsSkippedTotal.Add(1)
}

// IncSuppressed 记录一次被冷却窗口抑制的告警。
func (c *Collector) IncSuppressed() {
	if c == nil {
		return
	}
	c.suppressedTotal.Add(1)
}

// IncViolation 记录一次已发送违规 按级别分组。
func (c *Collector) IncViolation(severity string) {
	if c == nil {
		return
	}
	key := normalizeMetricLabel(severity)
	c.mu.Lock()
	c.violationsBySeverity[key]++
	c.mu.Unlock()
}

// IncDispatchFailure 记录一次通道发送失败 按通道分组。
func (c *Collector) IncDispatchFailure(channel string) {
	if c == nil {
		return
	}
	key := normalizeMetricLabel(channel)
	c.mu.Lock()
	c.dispatchFailByChannel[key]++
	c.mu.Unlock()
}

// ObserveSweepDuration 记录巡检耗时（秒）。
func (c *Collector) ObserveSweepDuration(seconds float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sweepDurationSec.observe(seconds)
	c.mu.Unlock()
}

// ObserveSnapshotFetch 记录快照拉取耗时（秒）。
func (c *Collector) ObserveSnapshotFetch(seconds float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.snapshotFetchSec.observe(seconds)
	c.mu.Unlock()
}

// RenderPrometheus 以 text exposition 格式导出指标。
func (c *Collector) RenderPrometheus() string {
	if c == nil {
		return ""
	}
	builder := strings.Builder{}
	builder.Grow(4096)

	writeMetricHeader(&builder, "slw_sweeps_total", "counter", "Total SLO evaluation sweeps.")
	writeCounter(&builder, "slw_sweeps_total", c.sweepsTotal.Load(), nil)

	writeMetricHeader(&builder, "slw_sweeps_skipped_total", "counter", "Total sweeps skipped due to unavailable metrics snapshot.")
	writeCounter(&builder, "slw_sweeps_skipped_total", c.sweepsSkippedTotal.Load(), nil)

	writeMetricHeader(&builder, "slw_suppressed_total", "counter", "Total violations suppressed by cooldown windows.")
	writeCounter(&builder, "slw_suppressed_total", c.suppressedTotal.Load(), nil)

	violationsBySeverity := make(map[string]uint64)
	dispatchFailByChannel := make(map[string]uint64)
	var sweepDurationCopy histogram
	var snapshotFetchCopy histogram
	c.mu.RLock()
	for severity, count := range c.violationsBySeverity {
		violationsBySeverity[severity] = count
	}
	for channel, count := range c.dispatchFailByChannel {
		dispatchFailByChannel[channel] = count
	}
	sweepDurationCopy = cloneHistogram(c.sweepDurationSec)
	snapshotFetchCopy = cloneHistogram(c.snapshotFetchSec)
	c.mu.RUnlock()

	writeMetricHeader(&builder, "slw_violations_total", "counter", "Total dispatched violations grouped by severity.")
	// 始终输出三个级别，避免零流量时缺失时序导致巡检误报
	for _, severity := range []string{"info", "warning", "critical"} {
		if _, ok := violationsBySeverity[severity]; !ok {
			violationsBySeverity[severity] = 0
		}
	}
	for _, severity := range sortedStringKeysFromUintMap(violationsBySeverity) {
		writeCounter(&builder, "slw_violations_total", violationsBySeverity[severity], map[string]string{
			"severity": severity,
		})
	}

	writeMetricHeader(&builder, "slw_dispatch_failure_total", "counter", "Channel dispatch failures grouped by channel.")
	for _, channel := range sortedStringKeysFromUintMap(dispatchFailByChannel) {
		writeCounter(&builder, "slw_dispatch_failure_total", dispatchFailByChannel[channel], map[string]string{
			"channel": channel,
		})
	}

	writeMetricHeader(&builder, "slw_sweep_duration_seconds", "histogram", "SLO sweep latency distribution in seconds.")
	sweepDurationCopy.writePrometheus(&builder, "slw_sweep_duration_seconds", nil)

	writeMetricHeader(&builder, "slw_snapshot_fetch_seconds", "histogram", "Metrics snapshot fetch latency distribution in seconds.")
	snapshotFetchCopy.writePrometheus(&builder, "slw_snapshot_fetch_seconds", nil)

	return builder.String()
}

func cloneHistogram(h *histogram) histogram {
	if h == nil {
		return histogram{}
	}
	copyHist := histogram{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		count:   h.count,
		sum:     h.sum,
	}
	return copyHist
}

func writeMetricHeader(builder *strings.Builder, metric, metricType, help string) {
	builder.WriteString("# HELP ")
	builder.WriteString(metric)
	builder.WriteByte(' ')
	builder.WriteString(help)
	builder.WriteByte('\n')
	builder.WriteString("# TYPE ")
	builder.WriteString(metric)
	builder.WriteByte(' ')
	builder.WriteString(metricType)
	builder.WriteByte('\n')
}

func writeCounter(builder *strings.Builder, metric string, value uint64, labels map[string]string) {
	builder.WriteString(metric)
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatUint(value, 10))
	builder.WriteByte('\n')
}

func writeLabels(builder *strings.Builder, labels map[string]string) {
	if len(labels) == 0 {
		return
	}
	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	builder.WriteByte('{')
	for idx, key := range keys {
		if idx > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(key)
		builder.WriteString("=\"")
		builder.WriteString(escapeLabelValue(labels[key]))
		builder.WriteByte('"')
	}
	builder.WriteByte('}')
}

func mergeLabels(base, ext map[string]string) map[string]string {
	if len(base) == 0 && len(ext) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(ext))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range ext {
		merged[key] = value
	}
	return merged
}

func normalizeMetricLabel(value string) string {
	clean := strings.TrimSpace(strings.ToLower(value))
	if clean == "" {
		return "unknown"
	}
	clean = strings.ReplaceAll(clean, "\n", " ")
	clean = strings.ReplaceAll(clean, "\r", " ")
	clean = strings.ReplaceAll(clean, "\t", " ")
	clean = strings.Join(strings.Fields(clean), " ")
	if len(clean) > 120 {
		clean = clean[:120]
	}
	return clean
}

func escapeLabelValue(value string) string {
	replacer := strings.NewReplacer(
		`\\`, `\\\\`,
		`"`, `\"`,
		"\n", `\n`,
	)
	return replacer.Replace(value)
}

func sortedStringKeysFromUintMap(items map[string]uint64) []string {
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func trimFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// ResetForTest 仅用于测试，避免跨用例污染。
func (c *Collector) ResetForTest() {
	if c == nil {
		return
	}
	c.sweepsTotal.Store(0)
	c.sweepsSkippedTotal.Store(0)
	c.suppressedTotal.Store(0)

	c.mu.Lock()
	c.violationsBySeverity = make(map[string]uint64)
	c.dispatchFailByChannel = make(map[string]uint64)
	c.sweepDurationSec = newHistogram([]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30})
	c.snapshotFetchSec = newHistogram([]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10})
	c.mu.Unlock()
}

// MustGlobalPrometheus 返回全局指标文本，便于在 handler 中直接输出。
func MustGlobalPrometheus() string {
	return Global().RenderPrometheus()
}

// SnapshotString 仅用于本地调试。
func (c *Collector) SnapshotString() string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf(
		"sweeps=%d skipped=%d suppressed=%d",
		c.sweepsTotal.Load(),
		c.sweepsSkippedTotal.Load(),
		c.suppressedTotal.Load(),
	)
}
