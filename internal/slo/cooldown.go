// 本文件用于告警冷却与去重
package slo

import (
	"sync"
	"time"
)

const defaultStoreSweepInterval = time.Minute

// KeyValueStore 表示带 TTL 的键值存储
// 冷却逻辑只依赖该抽象 进程内实现与外部缓存可互换
type KeyValueStore interface {
	// Get 返回键对应的值 过期视为不存在
	Get(key string) (string, bool)
	// Put 写入键值并设置生存期
	Put(key string, value string, ttl time.Duration)
	// PutIfAbsent 在键不存在时原子写入 返回是否写入成功
	PutIfAbsent(key string, value string, ttl time.Duration) bool
	// Forget 删除键
	Forget(key string)
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore 是互斥锁保护的进程内 TTL 存储
// 后台周期清理过期键 避免长时间运行后条目堆积
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	done    chan struct{}
	once    sync.Once
}

// NewMemoryStore 创建进程内存储并启动过期清理
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = defaultStoreSweepInterval
	}
	store := &MemoryStore{
		entries: make(map[string]memoryEntry),
		done:    make(chan struct{}),
	}
	go store.sweepLoop(sweepInterval)
	return store
}

// Get 返回未过期的键值
func (s *MemoryStore) Get(key string) (string, bool) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
		delete(s.entries, key)
		return "", false
	}
	return entry.value, true
}

// Put 写入键值 ttl 小于等于零表示立即过期不保存
func (s *MemoryStore) Put(key string, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
}

// PutIfAbsent 原子检查并写入 已存在未过期键时返回 false
func (s *MemoryStore) PutIfAbsent(key string, value string, ttl time.Duration) bool {
	if ttl <= 0 {
		return true
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if ok && (entry.expiresAt.IsZero() || now.Before(entry.expiresAt)) {
		return false
	}
	s.entries[key] = memoryEntry{value: value, expiresAt: now.Add(ttl)}
	return true
}

// Forget 删除键
func (s *MemoryStore) Forget(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Close 停止后台清理
func (s *MemoryStore) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// sweepLoop 用于周期清理过期条目
func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.removeExpired(time.Now())
		}
	}
}

// removeExpired 用于清理过期键
func (s *MemoryStore) removeExpired(now time.Time) {
	s.mu.Lock()
	for key, entry := range s.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()
}

// CooldownPolicy 表示各级别的冷却窗口
type CooldownPolicy map[Severity]time.Duration

// DefaultCooldownPolicy 返回默认冷却窗口
// critical 为零表示永不抑制
func DefaultCooldownPolicy() CooldownPolicy {
	return CooldownPolicy{
		SeverityInfo:     time.Hour,
		SeverityWarning:  15 * time.Minute,
		SeverityCritical: 0,
	}
}

// Cooldown 负责按 (分类, 指标, 级别) 维度抑制重复告警
type Cooldown struct {
	store  KeyValueStore
	policy CooldownPolicy
}

// NewCooldown 创建冷却器
func NewCooldown(store KeyValueStore, policy CooldownPolicy) *Cooldown {
	if policy == nil {
		policy = DefaultCooldownPolicy()
	}
	return &Cooldown{store: store, policy: policy}
}

// Window 返回指定级别的冷却窗口
func (c *Cooldown) Window(severity Severity) time.Duration {
	if c == nil {
		return 0
	}
	return c.policy[severity]
}

// ShouldSuppress 判断该键当前是否处于冷却窗口内
func (c *Cooldown) ShouldSuppress(category Category, metric string, severity Severity) bool {
	if c == nil || c.store == nil {
		return false
	}
	window := c.policy[severity]
	if window <= 0 {
		return false
	}
	_, ok := c.store.Get(cooldownKey(category, metric, severity))
	return ok
}

// RecordDispatch 记录一次发送并开启冷却窗口
func (c *Cooldown) RecordDispatch(category Category, metric string, severity Severity) {
	if c == nil || c.store == nil {
		return
	}
	window := c.policy[severity]
	if window <= 0 {
		return
	}
	c.store.Put(cooldownKey(category, metric, severity), "1", window)
}

// TryAcquire 原子地检查并占用冷却窗口
// 返回 true 表示允许发送 并发巡检下同一键只会有一方胜出
func (c *Cooldown) TryAcquire(category Category, metric string, severity Severity) bool {
	if c == nil || c.store == nil {
		return true
	}
	window := c.policy[severity]
	if window <= 0 {
		// critical 不设冷却 每轮都放行
		return true
	}
	return c.store.PutIfAbsent(cooldownKey(category, metric, severity), "1", window)
}

// cooldownKey 用于生成冷却键 级别参与键名避免跨级误抑制
func cooldownKey(category Category, metric string, severity Severity) string {
	return "cooldown|" + string(category) + "|" + metric + "|" + string(severity)
}
