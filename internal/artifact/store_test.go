package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/vizguard/internal/state"
	"github.com/ShayCichocki/vizguard/pkg/models"
)

var desktop = models.ViewportSpec{Name: "desktop", Width: 1920, Height: 1080}

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore(t *testing.T, maxFiles int, now func() time.Time) (*Store, *state.DB) {
	t.Helper()
	root := t.TempDir()
	db, err := state.Open(filepath.Join(root, "state.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := New(Config{
		Dir:      filepath.Join(root, "temp-screenshots"),
		MaxFiles: maxFiles,
		Index:    db,
		Now:      now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, db
}

func pngFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func TestNew_Defaults(t *testing.T) {
	s, _ := newTestStore(t, 0, nil)
	if s.MaxFiles() != DefaultMaxFiles {
		t.Errorf("MaxFiles() = %d, want %d", s.MaxFiles(), DefaultMaxFiles)
	}
	if _, err := os.Stat(s.Dir()); err != nil {
		t.Errorf("store dir not created: %v", err)
	}
}

func TestNew_RequiresIndex(t *testing.T) {
	if _, err := New(Config{Dir: t.TempDir()}); err == nil {
		t.Error("expected error without index")
	}
}

func TestSave_WritesFileAndRecord(t *testing.T) {
	s, _ := newTestStore(t, 5, stepClock())
	ctx := context.Background()

	shot, err := s.Save(ctx, desktop, []byte("png-bytes"), "http://localhost:3000/")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(shot.FilePath)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("file content = %q", data)
	}
	if shot.SizeBytes != int64(len("png-bytes")) {
		t.Errorf("SizeBytes = %d", shot.SizeBytes)
	}
	if shot.Viewport != desktop {
		t.Errorf("Viewport = %+v", shot.Viewport)
	}
	if !strings.Contains(filepath.Base(shot.FilePath), "desktop") {
		t.Errorf("file name %s should contain viewport name", shot.FilePath)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != shot.ID {
		t.Errorf("List = %+v", list)
	}
}

func TestSave_EmptyDataRejected(t *testing.T) {
	s, _ := newTestStore(t, 5, stepClock())

	_, err := s.Save(context.Background(), desktop, nil, "http://x/")
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
	if files := pngFiles(t, s.Dir()); len(files) != 0 {
		t.Errorf("unexpected files after failed save: %v", files)
	}
}

func TestSave_NeverExceedsCapacity(t *testing.T) {
	const max = 3
	s, _ := newTestStore(t, max, stepClock())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := s.Save(ctx, desktop, []byte{byte(i)}, "http://x/"); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
		info, err := s.StorageInfo(ctx)
		if err != nil {
			t.Fatalf("StorageInfo: %v", err)
		}
		if info.TotalFiles > max {
			t.Fatalf("after save %d: %d files, capacity %d", i, info.TotalFiles, max)
		}
		if files := pngFiles(t, s.Dir()); len(files) != info.TotalFiles {
			t.Fatalf("after save %d: %d files on disk, %d records", i, len(files), info.TotalFiles)
		}
	}
}

func TestSave_EvictsOldestFirst(t *testing.T) {
	s, _ := newTestStore(t, 2, stepClock())
	ctx := context.Background()

	first, _ := s.Save(ctx, desktop, []byte("1"), "http://x/")
	second, _ := s.Save(ctx, desktop, []byte("2"), "http://x/")
	third, err := s.Save(ctx, desktop, []byte("3"), "http://x/")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := os.Stat(first.FilePath); !os.IsNotExist(err) {
		t.Errorf("oldest file should be evicted, stat err = %v", err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List len = %d, want 2", len(list))
	}
	if list[0].ID != third.ID || list[1].ID != second.ID {
		t.Errorf("List order = [%s %s], want [%s %s]", list[0].ID, list[1].ID, third.ID, second.ID)
	}
}

func TestSave_ConcurrentRespectsCapacity(t *testing.T) {
	const max = 4
	s, _ := newTestStore(t, max, stepClock())
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Save(ctx, desktop, []byte{byte(i)}, "http://x/"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Save: %v", err)
	}

	info, err := s.StorageInfo(ctx)
	if err != nil {
		t.Fatalf("StorageInfo: %v", err)
	}
	if info.TotalFiles != max {
		t.Errorf("TotalFiles = %d, want %d", info.TotalFiles, max)
	}
}

func TestSave_CancelledContext(t *testing.T) {
	s, _ := newTestStore(t, 5, stepClock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Save(ctx, desktop, []byte("x"), "http://x/"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestStorageInfo(t *testing.T) {
	s, _ := newTestStore(t, 4, stepClock())
	ctx := context.Background()

	info, err := s.StorageInfo(ctx)
	if err != nil {
		t.Fatalf("StorageInfo: %v", err)
	}
	if info.TotalFiles != 0 || info.AverageFileSize != 0 || info.UsagePercentage != 0 {
		t.Errorf("empty store info = %+v", info)
	}

	s.Save(ctx, desktop, make([]byte, 100), "http://x/")
	s.Save(ctx, desktop, make([]byte, 300), "http://x/")

	info, err = s.StorageInfo(ctx)
	if err != nil {
		t.Fatalf("StorageInfo: %v", err)
	}
	if info.TotalFiles != 2 {
		t.Errorf("TotalFiles = %d, want 2", info.TotalFiles)
	}
	if info.TotalSizeBytes != 400 {
		t.Errorf("TotalSizeBytes = %d, want 400", info.TotalSizeBytes)
	}
	if info.AverageFileSize != 200 {
		t.Errorf("AverageFileSize = %d, want 200", info.AverageFileSize)
	}
	if info.UsagePercentage != 50 {
		t.Errorf("UsagePercentage = %v, want 50", info.UsagePercentage)
	}
}

func TestCleanupIfOverLimit(t *testing.T) {
	clock := stepClock()
	ctx := context.Background()

	// Fill a larger store, then reopen the same index with a smaller capacity.
	big, db := newTestStore(t, 6, clock)
	for i := 0; i < 6; i++ {
		if _, err := big.Save(ctx, desktop, []byte{byte(i)}, "http://x/"); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	small, err := New(Config{Dir: big.Dir(), MaxFiles: 2, Index: db, Now: clock})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	n, err := small.CleanupIfOverLimit(ctx)
	if err != nil {
		t.Fatalf("CleanupIfOverLimit: %v", err)
	}
	if n != 4 {
		t.Errorf("removed = %d, want 4", n)
	}

	n, err = small.CleanupIfOverLimit(ctx)
	if err != nil {
		t.Fatalf("second CleanupIfOverLimit: %v", err)
	}
	if n != 0 {
		t.Errorf("second cleanup removed %d, want 0", n)
	}
	if files := pngFiles(t, small.Dir()); len(files) != 2 {
		t.Errorf("files on disk = %v", files)
	}
}

func TestClearAll(t *testing.T) {
	s, _ := newTestStore(t, 5, stepClock())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.Save(ctx, desktop, []byte{byte(i)}, "http://x/")
	}

	n, err := s.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if n != 3 {
		t.Errorf("cleared = %d, want 3", n)
	}

	list, _ := s.List(ctx)
	if len(list) != 0 {
		t.Errorf("List after clear = %d entries", len(list))
	}
	if files := pngFiles(t, s.Dir()); len(files) != 0 {
		t.Errorf("files after clear = %v", files)
	}

	n, err = s.ClearAll(ctx)
	if err != nil || n != 0 {
		t.Errorf("ClearAll on empty store = %d, %v", n, err)
	}
}

func TestReconcile(t *testing.T) {
	s, _ := newTestStore(t, 5, stepClock())
	ctx := context.Background()

	kept, _ := s.Save(ctx, desktop, []byte("keep"), "http://x/")
	lost, _ := s.Save(ctx, desktop, []byte("lost"), "http://x/")

	// Simulate a crash: one record lost its file, and two files lost their records.
	if err := os.Remove(lost.FilePath); err != nil {
		t.Fatalf("remove: %v", err)
	}
	orphan := filepath.Join(s.Dir(), "20260101T000000.000000000-desktop-deadbeef.png")
	if err := os.WriteFile(orphan, []byte("orphan"), 0644); err != nil {
		t.Fatalf("write orphan: %v", err)
	}
	tmp := filepath.Join(s.Dir(), tempPrefix+"123.png")
	if err := os.WriteFile(tmp, []byte("partial"), 0644); err != nil {
		t.Fatalf("write tmp: %v", err)
	}
	unrelated := filepath.Join(s.Dir(), "README.txt")
	if err := os.WriteFile(unrelated, []byte("hi"), 0644); err != nil {
		t.Fatalf("write unrelated: %v", err)
	}
	stale := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, p := range []string{orphan, tmp} {
		if err := os.Chtimes(p, stale, stale); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	n, err := s.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if n != 3 {
		t.Errorf("repairs = %d, want 3", n)
	}

	list, _ := s.List(ctx)
	if len(list) != 1 || list[0].ID != kept.ID {
		t.Errorf("List after reconcile = %+v", list)
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Errorf("unrelated file should survive: %v", err)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Errorf("orphan should be removed")
	}
}

func TestReconcile_KeepsYoungUntrackedFiles(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTestStore(t, 5, func() time.Time { return now })
	ctx := context.Background()

	// Another process is mid-save: its temp file exists and its final file
	// is renamed but not yet indexed.
	inflight := filepath.Join(s.Dir(), tempPrefix+"otherproc.png")
	pending := filepath.Join(s.Dir(), "20260301T115959.000000000-mobile-cafef00d.png")
	old := filepath.Join(s.Dir(), tempPrefix+"crashed.png")
	for _, p := range []string{inflight, pending, old} {
		if err := os.WriteFile(p, []byte("data"), 0644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	young := now.Add(-time.Minute)
	for _, p := range []string{inflight, pending} {
		if err := os.Chtimes(p, young, young); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	stale := now.Add(-DefaultOrphanGrace - time.Minute)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	n, err := s.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if n != 1 {
		t.Errorf("repairs = %d, want 1", n)
	}
	for _, p := range []string{inflight, pending} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should survive: %v", filepath.Base(p), err)
		}
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Errorf("stale temp file should be removed")
	}
}

func TestStoreError_Classification(t *testing.T) {
	err := storeErr("save", errors.New("permission denied"))
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("expected ErrWriteFailed, got %v", err)
	}
	if errors.Is(err, ErrDiskFull) {
		t.Error("permission error must not classify as disk full")
	}

	var se *StoreError
	if !errors.As(err, &se) || se.Op != "save" {
		t.Errorf("errors.As failed: %v", err)
	}
}
