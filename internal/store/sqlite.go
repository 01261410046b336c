// 本文件用于违规记录的 SQLite 归档存储
// 文件职责：实现当前模块的核心业务逻辑与数据流转
// 关键路径：入口参数先校验再执行业务处理 最后返回统一结果
// 边界与容错：异常场景显式返回错误 由上层决定重试或降级

package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"slo-watch/internal/slo"
)

const (
	defaultArchiveDataDir = "data/archive"
	archiveTimeLayout     = time.RFC3339Nano
	defaultArchiveMaxRows = 10000
)

// Archive 负责违规记录的持久化归档
// 内存环形历史只保留近期记录 归档保证完整追溯
type Archive struct {
	mu      sync.Mutex
	db      *sql.DB
	dbPath  string
	maxRows int
}

// NewArchive 初始化违规归档存储
// 初始化失败会交由上层决定是否降级为仅内存模式
func NewArchive(dataDir string, maxRows int) (*Archive, error) {
	root := resolveArchiveDataDir(dataDir)
	// 启动时确保目录存在，避免数据库文件无法创建导致归档整体不可用
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create archive data dir failed: %w", err)
	}
	dbPath := filepath.Join(root, "violations.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open archive sqlite failed: %w", err)
	}
	// WAL 兼顾写入吞吐与崩溃恢复，适合巡检周期内的批量追加场景
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set archive sqlite wal failed: %w", err)
	}
	if err := migrateArchive(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if maxRows <= 0 {
		maxRows = defaultArchiveMaxRows
	}
	return &Archive{db: db, dbPath: dbPath, maxRows: maxRows}, nil
}

// Close 关闭归档数据库
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// DBPath 返回归档数据库文件路径
func (a *Archive) DBPath() string {
	if a == nil {
		return ""
	}
	return a.dbPath
}

// Append 追加一条违规记录
// 写入后按行数上限裁剪最旧记录 保证磁盘占用可控
func (a *Archive) Append(v slo.Violation) error {
	if a == nil || a.db == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.db.Exec(`
		INSERT INTO violations (
			category, metric, breach_type, value, target, severity, percentage, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(v.Category),
		v.Metric,
		v.Type,
		v.Value,
		v.Target,
		string(v.Severity),
		v.Percentage,
		formatArchiveTime(v.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert violation failed: %w", err)
	}
	return a.pruneLocked()
}

// Recent 返回最近的违规记录 按时间倒序
func (a *Archive) Recent(limit int) ([]slo.Violation, error) {
	if a == nil || a.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 2000 {
		limit = 2000
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.Query(`
		SELECT category, metric, breach_type, value, target, severity, percentage, created_at
		FROM violations
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]slo.Violation, 0, limit)
	for rows.Next() {
		var (
			item      slo.Violation
			category  string
			severity  string
			createdAt string
		)
		if err := rows.Scan(
			&category,
			&item.Metric,
			&item.Type,
			&item.Value,
			&item.Target,
			&severity,
			&item.Percentage,
			&createdAt,
		); err != nil {
			return nil, err
		}
		item.Category = slo.Category(category)
		item.Severity = slo.Severity(severity)
		item.Timestamp = parseArchiveTime(createdAt)
		out = append(out, item)
	}
	return out, rows.Err()
}

// CountSince 统计给定时间之后的归档违规条数
func (a *Archive) CountSince(since time.Time) (int64, error) {
	if a == nil || a.db == nil {
		return 0, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	row := a.db.QueryRow(`
		SELECT COUNT(1) FROM violations WHERE created_at >= ?
	`, formatArchiveTime(since))
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// pruneLocked 按 maxRows 上限删除最旧的归档记录
// 调用方必须持有互斥锁
func (a *Archive) pruneLocked() error {
	if a.maxRows <= 0 {
		return nil
	}
	_, err := a.db.Exec(`
		DELETE FROM violations
		WHERE id <= (
			SELECT id FROM violations ORDER BY id DESC LIMIT 1 OFFSET ?
		)
	`, a.maxRows)
	if err != nil {
		return fmt.Errorf("prune violations failed: %w", err)
	}
	return nil
}

// migrateArchive 负责归档表结构与索引的幂等迁移
func migrateArchive(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("archive sqlite is nil")
	}
	// 迁移语句保持幂等，服务重启时重复执行不会破坏现有数据
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS violations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			category TEXT NOT NULL,
			metric TEXT NOT NULL,
			breach_type TEXT NOT NULL,
			value REAL NOT NULL,
			target REAL NOT NULL,
			severity TEXT NOT NULL,
			percentage REAL NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_violations_created_at
			ON violations(created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_violations_category_metric
			ON violations(category, metric, created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate archive sqlite failed: %w", err)
		}
	}
	return nil
}

func resolveArchiveDataDir(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv("SLO_ARCHIVE_DATA_DIR")); env != "" {
		return env
	}
	return defaultArchiveDataDir
}

func formatArchiveTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(archiveTimeLayout)
}

func parseArchiveTime(raw string) time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}
	}
	// 先按纳秒精度解析，再兼容 RFC3339 老格式，保证历史数据可读
	if t, err := time.Parse(archiveTimeLayout, trimmed); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
