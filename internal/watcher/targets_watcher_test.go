// 本文件用于目标表文件监听的单元测试
package watcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"

	"slo-watch/internal/slo"
)

type stubReloader struct {
	calls int
	err   error
}

func (r *stubReloader) ReloadTargets(set *slo.TargetSet, source string) error {
	r.calls++
	return r.err
}

func newTestWatcher(t *testing.T) (*TargetsWatcher, string) {
	t.Helper()
	targetPath := filepath.Join(t.TempDir(), "targets.yaml")
	if err := os.WriteFile(targetPath, []byte("version: 1\ncategories: []\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tw, err := NewTargetsWatcher(targetPath, &stubReloader{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = tw.Close() })
	return tw, targetPath
}

func TestNewTargetsWatcher_Validation(t *testing.T) {
	if _, err := NewTargetsWatcher("", &stubReloader{}); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := NewTargetsWatcher("targets.yaml", nil); err == nil {
		t.Fatal("expected error for nil reloader")
	}
}

func TestHandleEvent_IgnoresOtherFiles(t *testing.T) {
	tw, targetPath := newTestWatcher(t)

	tw.handleEvent(fsnotify.Event{
		Name: filepath.Join(filepath.Dir(targetPath), "other.yaml"),
		Op:   fsnotify.Write,
	})
	tw.stateMutex.Lock()
	defer tw.stateMutex.Unlock()
	if tw.reloadTimer != nil {
		t.Fatal("unrelated file should not schedule reload")
	}
}

func TestHandleEvent_IgnoresChmod(t *testing.T) {
	tw, targetPath := newTestWatcher(t)

	tw.handleEvent(fsnotify.Event{Name: targetPath, Op: fsnotify.Chmod})
	tw.stateMutex.Lock()
	defer tw.stateMutex.Unlock()
	if tw.reloadTimer != nil {
		t.Fatal("chmod event should not schedule reload")
	}
}

func TestHandleEvent_SchedulesReloadOnWrite(t *testing.T) {
	tw, targetPath := newTestWatcher(t)

	tw.handleEvent(fsnotify.Event{Name: targetPath, Op: fsnotify.Write})
	tw.stateMutex.Lock()
	defer tw.stateMutex.Unlock()
	if tw.reloadTimer == nil {
		t.Fatal("write event should schedule reload")
	}
}

// 编辑器原子替换以 Rename/Create 形式出现 同样触发重载
func TestHandleEvent_SchedulesReloadOnRename(t *testing.T) {
	tw, targetPath := newTestWatcher(t)

	tw.handleEvent(fsnotify.Event{Name: targetPath, Op: fsnotify.Rename})
	tw.stateMutex.Lock()
	defer tw.stateMutex.Unlock()
	if tw.reloadTimer == nil {
		t.Fatal("rename event should schedule reload")
	}
}

func TestScheduleReload_NoopAfterClose(t *testing.T) {
	tw, targetPath := newTestWatcher(t)
	if err := tw.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tw.handleEvent(fsnotify.Event{Name: targetPath, Op: fsnotify.Write})
	tw.stateMutex.Lock()
	defer tw.stateMutex.Unlock()
	if tw.reloadTimer != nil {
		t.Fatal("closed watcher should not schedule reload")
	}
}

func TestReload_InvalidTargetsKeepsOld(t *testing.T) {
	reloader := &stubReloader{}
	targetPath := filepath.Join(t.TempDir(), "targets.yaml")
	if err := os.WriteFile(targetPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tw, err := NewTargetsWatcher(targetPath, reloader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tw.Close()

	tw.reload()
	if reloader.calls != 0 {
		t.Fatalf("parse failure should not reach reloader, got %d calls", reloader.calls)
	}
}

func TestReload_DeliversParsedTargets(t *testing.T) {
	reloader := &stubReloader{}
	targetPath := filepath.Join(t.TempDir(), "targets.yaml")
	content := `
version: 1
categories:
  - category: api
    metrics:
      - name: checkout
        comparator: max
        value: 300
`
	if err := os.WriteFile(targetPath, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tw, err := NewTargetsWatcher(targetPath, reloader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tw.Close()

	tw.reload()
	if reloader.calls != 1 {
		t.Fatalf("expected 1 reload call, got %d", reloader.calls)
	}
}
