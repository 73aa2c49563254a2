package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/vizguard/pkg/models"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "test.db")
}

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file does not exist at %s", path)
	}
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")

	db, err := Open(filepath.Join(nested, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(nested); os.IsNotExist(err) {
		t.Errorf("parent directories not created: %s", nested)
	}
}

func TestOpenProject(t *testing.T) {
	root := t.TempDir()
	db, err := OpenProject(root)
	if err != nil {
		t.Fatalf("OpenProject failed: %v", err)
	}
	defer db.Close()

	if db.Path() != filepath.Join(root, ".vizguard", "state.db") {
		t.Errorf("unexpected project db path %s", db.Path())
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := db.Migrate(); err != nil {
			t.Fatalf("Migrate (iteration %d) failed: %v", i, err)
		}
	}

	ctx := context.Background()
	var version int
	if err := db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != 2 {
		t.Errorf("schema version = %d, want 2", version)
	}

	for _, table := range []string{"schema_version", "screenshots", "runs"} {
		var count int
		row := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table)
		if err := row.Scan(&count); err != nil {
			t.Errorf("failed to check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestScreenshots_OrderAndDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	shots := []models.Screenshot{
		{ID: "b", FilePath: "/tmp/b.png", CreatedAt: base.Add(time.Second)},
		{ID: "a", FilePath: "/tmp/a.png", CreatedAt: base},
		// Same timestamp as "b": insertion order breaks the tie.
		{ID: "c", FilePath: "/tmp/c.png", CreatedAt: base.Add(time.Second)},
	}
	for i := range shots {
		shots[i].Viewport = models.ViewportSpec{Name: "desktop", Width: 1920, Height: 1080}
		shots[i].SizeBytes = 100
		shots[i].SourceURL = "http://localhost/"
		if err := db.InsertScreenshot(ctx, &shots[i]); err != nil {
			t.Fatalf("InsertScreenshot failed: %v", err)
		}
	}

	oldest, err := db.OldestScreenshots(ctx, 3)
	if err != nil {
		t.Fatalf("OldestScreenshots failed: %v", err)
	}
	if got := ids(oldest); got != "a,b,c" {
		t.Errorf("eviction order = %s, want a,b,c", got)
	}

	newest, err := db.ListScreenshots(ctx)
	if err != nil {
		t.Fatalf("ListScreenshots failed: %v", err)
	}
	if got := ids(newest); got != "c,b,a" {
		t.Errorf("list order = %s, want c,b,a", got)
	}

	total, err := db.TotalScreenshotBytes(ctx)
	if err != nil || total != 300 {
		t.Errorf("TotalScreenshotBytes = %d, %v; want 300", total, err)
	}

	// A failing finalize keeps the record.
	boom := errors.New("boom")
	if err := db.DeleteScreenshot(ctx, "a", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected finalize error, got %v", err)
	}
	if n, _ := db.CountScreenshots(ctx); n != 3 {
		t.Errorf("count after failed delete = %d, want 3", n)
	}

	if err := db.DeleteScreenshot(ctx, "a", nil); err != nil {
		t.Fatalf("DeleteScreenshot failed: %v", err)
	}
	if n, _ := db.CountScreenshots(ctx); n != 2 {
		t.Errorf("count after delete = %d, want 2", n)
	}

	if err := db.DeleteScreenshot(ctx, "missing", nil); err == nil {
		t.Error("expected error deleting unknown screenshot")
	}
}

func TestRuns_RecordAndList(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC()
	runs := []Run{
		{ID: "r1", PageName: "home", TargetURL: "http://x/", Status: "PASSED", OverallScore: 0.9, StartedAt: now.Add(-2 * time.Hour)},
		{ID: "r2", PageName: "about", TargetURL: "http://x/about", Status: "NEEDS_IMPROVEMENT", OverallScore: 0.5, StartedAt: now.Add(-time.Hour)},
		{ID: "r3", PageName: "home", TargetURL: "http://x/", Status: "PASSED", OverallScore: 0.95, StartedAt: now},
	}
	for i := range runs {
		if err := db.RecordRun(ctx, &runs[i]); err != nil {
			t.Fatalf("RecordRun failed: %v", err)
		}
	}

	all, err := db.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "r3" {
		t.Errorf("expected newest first, got %+v", all)
	}

	home, err := db.ListRuns(ctx, "home", 1)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(home) != 1 || home[0].ID != "r3" {
		t.Errorf("expected only r3, got %+v", home)
	}

	purged, err := db.PurgeOldRuns(ctx, 90*time.Minute)
	if err != nil {
		t.Fatalf("PurgeOldRuns failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
}

func ids(shots []models.Screenshot) string {
	out := ""
	for i, s := range shots {
		if i > 0 {
			out += ","
		}
		out += s.ID
	}
	return out
}
