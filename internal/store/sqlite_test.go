// 本文件用于 SQLite 违规归档的单元测试
package store

import (
	"fmt"
	"os"
	"testing"
	"time"

	"slo-watch/internal/slo"
)

func newTestArchive(t *testing.T, maxRows int) *Archive {
	t.Helper()
	archive, err := NewArchive(t.TempDir(), maxRows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = archive.Close() })
	return archive
}

func archiveViolation(seq int, at time.Time) slo.Violation {
	return slo.Violation{
		Category:   slo.CategoryAPI,
		Metric:     fmt.Sprintf("m-%03d", seq),
		Type:       "above_target",
		Value:      450,
		Target:     300,
		Severity:   slo.SeverityCritical,
		Percentage: 150,
		Timestamp:  at,
	}
}

func TestArchive_AppendAndRecent(t *testing.T) {
	archive := newTestArchive(t, 100)
	now := time.Now()
	for i := 0; i < 5; i++ {
		if err := archive.Append(archiveViolation(i, now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	records, err := archive.Recent(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Metric != "m-004" {
		t.Fatalf("expected newest first, got %s", records[0].Metric)
	}
	if records[0].Category != slo.CategoryAPI || records[0].Severity != slo.SeverityCritical {
		t.Fatalf("unexpected record: %+v", records[0])
	}
	if records[0].Percentage != 150 {
		t.Fatalf("expected percentage 150, got %.1f", records[0].Percentage)
	}
	if records[0].Timestamp.IsZero() {
		t.Fatal("expected parsed timestamp")
	}
}

func TestArchive_PruneBeyondMaxRows(t *testing.T) {
	archive := newTestArchive(t, 10)
	now := time.Now()
	for i := 0; i < 25; i++ {
		if err := archive.Append(archiveViolation(i, now)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	records, err := archive.Recent(100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 10 {
		t.Fatalf("expected 10 records after prune, got %d", len(records))
	}
	// 最旧的 15 条应被裁剪
	if records[len(records)-1].Metric != "m-015" {
		t.Fatalf("expected oldest surviving m-015, got %s", records[len(records)-1].Metric)
	}
}

func TestArchive_CountSince(t *testing.T) {
	archive := newTestArchive(t, 100)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		if err := archive.Append(archiveViolation(i, base.Add(time.Duration(i)*10*time.Minute))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	count, err := archive.CountSince(base.Add(15 * time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 records since cutoff, got %d", count)
	}
}

func TestArchive_RecentDefaultLimit(t *testing.T) {
	archive := newTestArchive(t, 200)
	now := time.Now()
	for i := 0; i < 60; i++ {
		if err := archive.Append(archiveViolation(i, now)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	records, err := archive.Recent(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 50 {
		t.Fatalf("expected default limit 50, got %d", len(records))
	}
}

func TestArchive_DBFileCreated(t *testing.T) {
	archive := newTestArchive(t, 100)
	if _, err := os.Stat(archive.DBPath()); err != nil {
		t.Fatalf("expected db file, got %v", err)
	}
}

func TestResolveArchiveDataDir(t *testing.T) {
	if got := resolveArchiveDataDir("/var/lib/slo"); got != "/var/lib/slo" {
		t.Fatalf("expected explicit dir, got %s", got)
	}
	t.Setenv("SLO_ARCHIVE_DATA_DIR", "/tmp/archive-env")
	if got := resolveArchiveDataDir(""); got != "/tmp/archive-env" {
		t.Fatalf("expected env dir, got %s", got)
	}
	t.Setenv("SLO_ARCHIVE_DATA_DIR", "")
	if got := resolveArchiveDataDir(" "); got != defaultArchiveDataDir {
		t.Fatalf("expected default dir, got %s", got)
	}
}
