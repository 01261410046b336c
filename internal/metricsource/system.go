// 本文件用于采集本机资源使用情况 供建议引擎与面板展示

package metricsource

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"slo-watch/internal/slo"
)

const defaultProbeTTL = 5 * time.Second

type cpuSample struct {
	total float64
	idle  float64
}

// SystemProbe 负责采集 CPU 内存 负载 磁盘使用率
// 采集结果带 TTL 缓存 避免高频接口请求触发重复采样
type SystemProbe struct {
	mu       sync.Mutex
	cacheTTL time.Duration

	lastUsage slo.SystemUsage
	lastAt    time.Time
	lastCPU   cpuSample
}

// NewSystemProbe 创建系统资源探测器
func NewSystemProbe(cacheTTL time.Duration) *SystemProbe {
	if cacheTTL <= 0 {
		cacheTTL = defaultProbeTTL
	}
	return &SystemProbe{cacheTTL: cacheTTL}
}

// Usage 返回当前系统资源使用情况
// 单项采集失败不阻断整体 对应字段保持零值
func (p *SystemProbe) Usage() slo.SystemUsage {
	if p == nil {
		return slo.SystemUsage{}
	}

	now := time.Now()
	p.mu.Lock()
	if now.Sub(p.lastAt) < p.cacheTTL && !p.lastAt.IsZero() {
		usage := p.lastUsage
		p.mu.Unlock()
		return usage
	}
	prevCPU := p.lastCPU
	p.mu.Unlock()

	usage := slo.SystemUsage{}

	cpuPct, currCPU := collectCPUUsage(prevCPU)
	usage.CPUPercent = cpuPct

	if vm, err := mem.VirtualMemory(); err == nil {
		usage.MemoryPercent = clampPct(vm.UsedPercent)
	}
	if avg, err := load.Avg(); err == nil {
		usage.Load1 = avg.Load1
	}
	if du, err := disk.Usage("/"); err == nil {
		usage.DiskPercent = clampPct(du.UsedPercent)
	}

	p.mu.Lock()
	p.lastUsage = usage
	p.lastAt = now
	p.lastCPU = currCPU
	p.mu.Unlock()

	return usage
}

// collectCPUUsage 基于两次采样的差值计算 CPU 使用率
func collectCPUUsage(prev cpuSample) (float64, cpuSample) {
	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		return 0, cpuSample{}
	}
	curr := cpuSample{
		total: sumCPUTimes(times[0]),
		idle:  times[0].Idle + times[0].Iowait,
	}
	if prev.total <= 0 {
		// 第一次采样用短间隔获取更接近实时的 CPU 使用率
		percents, err := cpu.Percent(120*time.Millisecond, false)
		if err == nil && len(percents) > 0 {
			return clampPct(percents[0]), curr
		}
	}
	deltaTotal := curr.total - prev.total
	deltaIdle := curr.idle - prev.idle
	if deltaTotal > 0 {
		// 通过总量差值计算整体 CPU 使用率，避免每次阻塞采样
		used := (deltaTotal - deltaIdle) / deltaTotal * 100
		return clampPct(used), curr
	}
	return 0, curr
}

func sumCPUTimes(t cpu.TimesStat) float64 {
	return t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal + t.Guest + t.GuestNice
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
