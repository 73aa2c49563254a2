// Package artifact implements the bounded on-disk screenshot store.
//
// Every screenshot is a PNG file in the store directory plus one record in
// the state index. Mutations are serialized by a single mutex so the
// capacity bound holds while several captures save concurrently.
package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/vizguard/internal/state"
	"github.com/ShayCichocki/vizguard/pkg/models"
)

// DefaultMaxFiles is the capacity used when Config.MaxFiles is unset.
const DefaultMaxFiles = 50

// DefaultOrphanGrace is the minimum age of an untracked file before
// Reconcile deletes it.
const DefaultOrphanGrace = 10 * time.Minute

// Config configures a Store.
type Config struct {
	// Dir is where screenshot files are written. Created if missing.
	Dir string
	// MaxFiles bounds the number of stored screenshots.
	MaxFiles int
	// Index persists screenshot records.
	Index state.ScreenshotIndex
	// Now returns the creation timestamp for new screenshots. Default: time.Now.
	Now func() time.Time
	// OrphanGrace protects untracked files younger than this from
	// Reconcile; another process may still be writing or indexing them.
	OrphanGrace time.Duration
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxFiles <= 0 {
		c.MaxFiles = DefaultMaxFiles
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.OrphanGrace <= 0 {
		c.OrphanGrace = DefaultOrphanGrace
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Info summarizes store usage.
type Info struct {
	TotalFiles      int     `json:"total_files"`
	MaxFiles        int     `json:"max_files"`
	UsagePercentage float64 `json:"usage_percentage"`
	TotalSizeBytes  int64   `json:"total_size_bytes"`
	AverageFileSize int64   `json:"average_file_size"`
}

// Store is the bounded screenshot store.
type Store struct {
	cfg Config
	mu  sync.Mutex
}

// New creates a Store, creating its directory if needed.
func New(cfg Config) (*Store, error) {
	cfg.defaults()
	if cfg.Dir == "" {
		return nil, fmt.Errorf("artifact store: directory is required")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("artifact store: index is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, storeErr("init", err)
	}
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("artifact store: resolve dir: %w", err)
	}
	cfg.Dir = dir
	return &Store{cfg: cfg}, nil
}

// Dir returns the absolute store directory.
func (s *Store) Dir() string {
	return s.cfg.Dir
}

// MaxFiles returns the store capacity.
func (s *Store) MaxFiles() int {
	return s.cfg.MaxFiles
}

// Save persists image bytes for a viewport capture. When the store is full
// the oldest entries are evicted before the new entry is finalized. The
// write is all-or-nothing: on failure no file or record is left behind.
func (s *Store) Save(ctx context.Context, viewport models.ViewportSpec, data []byte, sourceURL string) (*models.Screenshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &StoreError{Kind: KindWriteFailed, Op: "save", Err: fmt.Errorf("empty image for viewport %s", viewport.Name)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	createdAt := s.cfg.Now().UTC()

	tmpPath, err := s.writeTemp(data)
	if err != nil {
		return nil, err
	}

	count, err := s.cfg.Index.CountScreenshots(ctx)
	if err != nil {
		os.Remove(tmpPath)
		return nil, storeErr("save", err)
	}
	if excess := count + 1 - s.cfg.MaxFiles; excess > 0 {
		if _, err := s.evictOldest(ctx, excess); err != nil {
			os.Remove(tmpPath)
			return nil, storeErr("evict", err)
		}
	}

	finalPath := filepath.Join(s.cfg.Dir, fileName(createdAt, viewport.Name, id))
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return nil, storeErr("save", err)
	}

	shot := &models.Screenshot{
		ID:        id,
		Viewport:  viewport,
		FilePath:  finalPath,
		SizeBytes: int64(len(data)),
		CreatedAt: createdAt,
		SourceURL: sourceURL,
	}
	if err := s.cfg.Index.InsertScreenshot(ctx, shot); err != nil {
		os.Remove(finalPath)
		return nil, storeErr("save", err)
	}

	s.cfg.Logger.Debug("artifact: saved screenshot",
		"id", id, "viewport", viewport.Name, "bytes", len(data), "path", finalPath)
	return shot, nil
}

// List returns every stored screenshot, newest first. Each call reads the
// index afresh.
func (s *Store) List(ctx context.Context) ([]models.Screenshot, error) {
	return s.cfg.Index.ListScreenshots(ctx)
}

// ClearAll deletes every screenshot and returns how many were removed.
func (s *Store) ClearAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.cfg.Index.CountScreenshots(ctx)
	if err != nil {
		return 0, storeErr("clear", err)
	}
	if count == 0 {
		return 0, nil
	}
	n, err := s.evictOldest(ctx, count)
	if err != nil {
		return n, storeErr("clear", err)
	}
	return n, nil
}

// CleanupIfOverLimit evicts the oldest screenshots until the store is
// within capacity. It returns 0 when nothing needed removing.
func (s *Store) CleanupIfOverLimit(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.cfg.Index.CountScreenshots(ctx)
	if err != nil {
		return 0, storeErr("cleanup", err)
	}
	if count <= s.cfg.MaxFiles {
		return 0, nil
	}
	n, err := s.evictOldest(ctx, count-s.cfg.MaxFiles)
	if err != nil {
		return n, storeErr("cleanup", err)
	}
	return n, nil
}

// StorageInfo reports current usage.
func (s *Store) StorageInfo(ctx context.Context) (Info, error) {
	count, err := s.cfg.Index.CountScreenshots(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("storage info: %w", err)
	}
	total, err := s.cfg.Index.TotalScreenshotBytes(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("storage info: %w", err)
	}

	info := Info{
		TotalFiles:     count,
		MaxFiles:       s.cfg.MaxFiles,
		TotalSizeBytes: total,
	}
	info.UsagePercentage = float64(count) / float64(s.cfg.MaxFiles) * 100
	if count > 0 {
		info.AverageFileSize = total / int64(count)
	}
	return info, nil
}

// Reconcile repairs drift between the index and the directory after a
// crash: records whose file vanished are dropped, and screenshot or temp
// files without a record are deleted once they are older than
// OrphanGrace. It returns the number of repairs.
func (s *Store) Reconcile(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shots, err := s.cfg.Index.ListScreenshots(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconcile: %w", err)
	}

	repaired := 0
	tracked := make(map[string]bool, len(shots))
	for _, shot := range shots {
		if _, err := os.Stat(shot.FilePath); os.IsNotExist(err) {
			if err := s.cfg.Index.DeleteScreenshot(ctx, shot.ID, nil); err != nil {
				return repaired, fmt.Errorf("reconcile: %w", err)
			}
			s.cfg.Logger.Warn("artifact: dropped record without file", "id", shot.ID, "path", shot.FilePath)
			repaired++
			continue
		}
		tracked[shot.FilePath] = true
	}

	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return repaired, fmt.Errorf("reconcile: %w", err)
	}
	cutoff := s.cfg.Now().Add(-s.cfg.OrphanGrace)
	for _, e := range entries {
		if e.IsDir() || !ownedFile(e.Name()) {
			continue
		}
		path := filepath.Join(s.cfg.Dir, e.Name())
		if tracked[path] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return repaired, fmt.Errorf("reconcile: %w", err)
		}
		if info.ModTime().After(cutoff) {
			s.cfg.Logger.Debug("artifact: kept young untracked file", "path", path, "mod_time", info.ModTime())
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return repaired, fmt.Errorf("reconcile: %w", err)
		}
		s.cfg.Logger.Warn("artifact: removed untracked file", "path", path)
		repaired++
	}
	return repaired, nil
}

// evictOldest removes up to n screenshots in ascending created_at order.
// Each record is deleted in the same transaction that removes its file.
// Callers must hold s.mu.
func (s *Store) evictOldest(ctx context.Context, n int) (int, error) {
	victims, err := s.cfg.Index.OldestScreenshots(ctx, n)
	if err != nil {
		return 0, err
	}

	evicted := 0
	for _, v := range victims {
		path := v.FilePath
		err := s.cfg.Index.DeleteScreenshot(ctx, v.ID, func() error {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return err
			}
			return nil
		})
		if err != nil {
			return evicted, fmt.Errorf("evict %s: %w", v.ID, err)
		}
		s.cfg.Logger.Debug("artifact: evicted screenshot", "id", v.ID, "created_at", v.CreatedAt)
		evicted++
	}
	return evicted, nil
}

// writeTemp writes data to a synced temp file inside the store directory.
func (s *Store) writeTemp(data []byte) (string, error) {
	f, err := os.CreateTemp(s.cfg.Dir, tempPrefix+"*.png")
	if err != nil {
		return "", storeErr("save", err)
	}
	path := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", storeErr("save", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return "", storeErr("save", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", storeErr("save", err)
	}
	return path, nil
}

const tempPrefix = ".tmp-"

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// fileName builds a sortable, collision-free screenshot file name.
func fileName(createdAt time.Time, viewport, id string) string {
	name := unsafeChars.ReplaceAllString(viewport, "_")
	return fmt.Sprintf("%s-%s-%s.png", createdAt.Format("20060102T150405.000000000"), name, id[:8])
}

// ownedFile reports whether name looks like something the store wrote.
func ownedFile(name string) bool {
	return strings.HasPrefix(name, tempPrefix) || strings.HasSuffix(name, ".png")
}
