// Package state provides SQLite-based state management for vizguard.
package state

import (
	"context"
	"io"
	"time"

	"github.com/ShayCichocki/vizguard/pkg/models"
)

// ScreenshotIndex handles the artifact store's record persistence.
type ScreenshotIndex interface {
	InsertScreenshot(ctx context.Context, s *models.Screenshot) error
	CountScreenshots(ctx context.Context) (int, error)
	TotalScreenshotBytes(ctx context.Context) (int64, error)
	ListScreenshots(ctx context.Context) ([]models.Screenshot, error)
	OldestScreenshots(ctx context.Context, limit int) ([]models.Screenshot, error)
	DeleteScreenshot(ctx context.Context, id string, finalize func() error) error
}

// RunHistory handles validation run history.
type RunHistory interface {
	RecordRun(ctx context.Context, r *Run) error
	ListRuns(ctx context.Context, pageName string, limit int) ([]Run, error)
	PurgeOldRuns(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore composes every persistence concern backed by the database.
type StateStore interface {
	io.Closer
	Migrator
	ScreenshotIndex
	RunHistory
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore      = (*DB)(nil)
	_ Migrator        = (*DB)(nil)
	_ ScreenshotIndex = (*DB)(nil)
	_ RunHistory      = (*DB)(nil)
)
