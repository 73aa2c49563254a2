package state

import (
	"context"
	"fmt"
	"time"
)

// Run is the history row recorded for every written validation report.
type Run struct {
	ID              string    `json:"id"`
	PageName        string    `json:"page_name"`
	TargetURL       string    `json:"target_url"`
	Status          string    `json:"status"`
	OverallScore    float64   `json:"overall_score"`
	ScoredViewports int       `json:"scored_viewports"`
	FailedViewports int       `json:"failed_viewports"`
	JSONPath        string    `json:"json_path"`
	MarkdownPath    string    `json:"markdown_path"`
	StartedAt       time.Time `json:"started_at"`
}

// RecordRun inserts a run into the history.
func (db *DB) RecordRun(ctx context.Context, r *Run) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO runs (id, page_name, target_url, status, overall_score, scored_viewports, failed_viewports, json_path, markdown_path, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.PageName, r.TargetURL, r.Status, r.OverallScore, r.ScoredViewports, r.FailedViewports,
		r.JSONPath, r.MarkdownPath, formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first, optionally filtered by page.
// A limit of zero or less returns every run.
func (db *DB) ListRuns(ctx context.Context, pageName string, limit int) ([]Run, error) {
	query := `
		SELECT id, page_name, target_url, status, overall_score, scored_viewports, failed_viewports,
		       COALESCE(json_path, ''), COALESCE(markdown_path, ''), started_at
		FROM runs`
	var args []any
	if pageName != "" {
		query += " WHERE page_name = ?"
		args = append(args, pageName)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt string
		if err := rows.Scan(&r.ID, &r.PageName, &r.TargetURL, &r.Status, &r.OverallScore,
			&r.ScoredViewports, &r.FailedViewports, &r.JSONPath, &r.MarkdownPath, &startedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = parseTime(startedAt)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// PurgeOldRuns deletes history rows older than the specified duration.
// Returns the number of runs deleted.
func (db *DB) PurgeOldRuns(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old runs: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}
