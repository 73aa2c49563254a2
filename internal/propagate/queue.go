package propagate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Queue drops one JSON file per payload into a spool directory for another
// process to pick up. Files appear atomically via rename.
type Queue struct {
	dir string
}

// NewQueue creates a Queue rooted at dir.
func NewQueue(dir string) (*Queue, error) {
	if dir == "" {
		return nil, fmt.Errorf("queue propagator: directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("queue propagator: %w", err)
	}
	return &Queue{dir: dir}, nil
}

// Propagate implements Propagator.
func (q *Queue) Propagate(ctx context.Context, p Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	tmp, err := os.CreateTemp(q.dir, ".pending-*")
	if err != nil {
		return fmt.Errorf("create queue entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write queue entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write queue entry: %w", err)
	}

	name := fmt.Sprintf("%s-%s.json", p.EmittedAt.Format("20060102T150405.000000000Z"), p.ValidationID)
	if err := os.Rename(tmp.Name(), filepath.Join(q.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("enqueue payload: %w", err)
	}
	return nil
}

// Close implements Propagator.
func (q *Queue) Close() error { return nil }
