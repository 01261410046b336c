// 本文件用于已发送违规的有界历史存储
package slo

import "sync"

const defaultHistoryCapacity = 100

// History 维护最近发送的违规记录
// 固定容量先进先出 超出后淘汰最旧记录
// 仅为面板查询服务 不承担审计职责 进程重启丢失可接受
type History struct {
	mu       sync.RWMutex
	capacity int
	records  []Violation
}

// NewHistory 创建历史存储
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	return &History{
		capacity: capacity,
		records:  make([]Violation, 0, capacity),
	}
}

// Append 追加一条违规 超出容量时淘汰最旧的
func (h *History) Append(violation Violation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, violation)
	if len(h.records) > h.capacity {
		h.records = append([]Violation(nil), h.records[len(h.records)-h.capacity:]...)
	}
}

// Recent 返回最近的违规 最新在前
// limit 小于等于零或超出存量时返回全部
func (h *History) Recent(limit int) []Violation {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := len(h.records)
	if limit <= 0 || limit > total {
		limit = total
	}
	out := make([]Violation, 0, limit)
	for i := total - 1; i >= total-limit; i-- {
		out = append(out, h.records[i])
	}
	return out
}

// Len 返回当前记录数
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}
