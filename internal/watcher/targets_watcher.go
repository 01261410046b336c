// 本文件用于监听 SLO 目标表文件变更并触发热更新

package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"slo-watch/internal/logger"
	"slo-watch/internal/slo"
)

// 编辑器保存通常触发多个连续事件 合并后只重载一次
const reloadDebounce = 2 * time.Second

// Reloader 接收新的目标表
type Reloader interface {
	ReloadTargets(set *slo.TargetSet, source string) error
}

// TargetsWatcher 监听目标表文件变更
// 变更后重新加载并下发给评估器 解析失败保留旧目标表
type TargetsWatcher struct {
	watcher    *fsnotify.Watcher
	targetPath string
	reloader   Reloader

	stateMutex  sync.Mutex
	reloadTimer *time.Timer
	closed      bool
}

// NewTargetsWatcher 创建目标表监听器
func NewTargetsWatcher(targetPath string, reloader Reloader) (*TargetsWatcher, error) {
	if targetPath == "" {
		return nil, fmt.Errorf("目标表路径不能为空")
	}
	if reloader == nil {
		return nil, fmt.Errorf("重载接收器不能为空")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &TargetsWatcher{
		watcher:    watcher,
		targetPath: filepath.Clean(targetPath),
		reloader:   reloader,
	}, nil
}

// Start 启动文件监听
// 监听目标文件所在目录 兼容编辑器原子替换写入的场景
func (tw *TargetsWatcher) Start() error {
	dir := filepath.Dir(tw.targetPath)
	if err := tw.watcher.Add(dir); err != nil {
		logger.Error("添加目标表目录监控失败: %v", err)
		return err
	}

	go tw.handleEvents()

	logger.Info("目标表热更新监听已启动: %s", tw.targetPath)
	return nil
}

// Close 关闭监听器
func (tw *TargetsWatcher) Close() error {
	tw.stateMutex.Lock()
	tw.closed = true
	if tw.reloadTimer != nil {
		tw.reloadTimer.Stop()
		tw.reloadTimer = nil
	}
	tw.stateMutex.Unlock()

	return tw.watcher.Close()
}

// handleEvents 处理文件事件
func (tw *TargetsWatcher) handleEvents() {
	for {
		select {
		case event, ok := <-tw.watcher.Events:
			if !ok {
				return
			}
			tw.handleEvent(event)
		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("目标表监听错误: %v", err)
		}
	}
}

func (tw *TargetsWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != tw.targetPath {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	logger.Debug("收到目标表文件事件: %s, 操作: %s", event.Name, event.Op.String())
	tw.scheduleReload()
}

// scheduleReload 合并短时间内的多次变更事件
func (tw *TargetsWatcher) scheduleReload() {
	tw.stateMutex.Lock()
	defer tw.stateMutex.Unlock()

	if tw.closed {
		return
	}
	if tw.reloadTimer != nil {
		tw.reloadTimer.Stop()
	}
	tw.reloadTimer = time.AfterFunc(reloadDebounce, tw.reload)
}

func (tw *TargetsWatcher) reload() {
	set, err := slo.LoadTargets(tw.targetPath)
	if err != nil {
		// 热更新失败不影响运行中的旧目标表
		logger.Error("目标表重新加载失败 继续使用旧目标表: %v", err)
		return
	}
	if err := tw.reloader.ReloadTargets(set, tw.targetPath); err != nil {
		logger.Error("目标表校验失败 继续使用旧目标表: %v", err)
		return
	}
	logger.Info("目标表热更新成功: %s", tw.targetPath)
}
