package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ShayCichocki/vizguard/pkg/models"
)

const screenshotColumns = `id, viewport_name, viewport_width, viewport_height, file_path, size_bytes, created_at, source_url`

// InsertScreenshot records a stored screenshot.
func (db *DB) InsertScreenshot(ctx context.Context, s *models.Screenshot) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO screenshots (`+screenshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Viewport.Name, s.Viewport.Width, s.Viewport.Height, s.FilePath, s.SizeBytes, s.CreatedAt.UnixNano(), s.SourceURL)
	if err != nil {
		return fmt.Errorf("insert screenshot: %w", err)
	}
	return nil
}

// CountScreenshots returns the number of indexed screenshots.
func (db *DB) CountScreenshots(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM screenshots").Scan(&n); err != nil {
		return 0, fmt.Errorf("count screenshots: %w", err)
	}
	return n, nil
}

// TotalScreenshotBytes returns the summed size of all indexed screenshots.
func (db *DB) TotalScreenshotBytes(ctx context.Context) (int64, error) {
	var n int64
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(SUM(size_bytes), 0) FROM screenshots").Scan(&n); err != nil {
		return 0, fmt.Errorf("sum screenshot sizes: %w", err)
	}
	return n, nil
}

// ListScreenshots returns all screenshots, newest first.
func (db *DB) ListScreenshots(ctx context.Context) ([]models.Screenshot, error) {
	return db.queryScreenshots(ctx, `
		SELECT `+screenshotColumns+` FROM screenshots
		ORDER BY created_at DESC, seq DESC
	`)
}

// OldestScreenshots returns up to limit screenshots in eviction order:
// ascending created_at, ties broken by insertion order.
func (db *DB) OldestScreenshots(ctx context.Context, limit int) ([]models.Screenshot, error) {
	return db.queryScreenshots(ctx, `
		SELECT `+screenshotColumns+` FROM screenshots
		ORDER BY created_at ASC, seq ASC
		LIMIT ?
	`, limit)
}

// DeleteScreenshot removes the record for id inside a transaction and calls
// finalize before committing. If finalize fails the record is kept, so the
// caller can tie the record's lifetime to its backing file.
func (db *DB) DeleteScreenshot(ctx context.Context, id string, finalize func() error) error {
	return db.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM screenshots WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete screenshot: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("delete screenshot %s: not found", id)
		}
		if finalize != nil {
			if err := finalize(); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) queryScreenshots(ctx context.Context, query string, args ...any) ([]models.Screenshot, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query screenshots: %w", err)
	}
	defer rows.Close()

	var out []models.Screenshot
	for rows.Next() {
		var s models.Screenshot
		var createdAt int64
		if err := rows.Scan(&s.ID, &s.Viewport.Name, &s.Viewport.Width, &s.Viewport.Height,
			&s.FilePath, &s.SizeBytes, &createdAt, &s.SourceURL); err != nil {
			return nil, fmt.Errorf("scan screenshot: %w", err)
		}
		s.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate screenshots: %w", err)
	}
	return out, nil
}
