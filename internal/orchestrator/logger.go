package orchestrator

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RunLogger is a structured logger backed by an append-only log file.
type RunLogger struct {
	*slog.Logger

	mu   sync.Mutex
	file *os.File
}

// NewRunLogger creates a logger writing slog text records to path at the
// given level. An empty path returns a no-op logger. Parent directories are
// created as needed.
func NewRunLogger(path, level string) (*RunLogger, error) {
	if path == "" {
		return NopLogger(), nil
	}

	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &RunLogger{file: f}
	l.Logger = slog.New(slog.NewTextHandler(&syncWriter{l: l}, &slog.HandlerOptions{Level: lvl}))
	l.Info("=== vizguard log started ===", "at", time.Now().Format(time.RFC3339))
	return l, nil
}

// NopLogger returns a logger that discards everything.
func NopLogger() *RunLogger {
	return &RunLogger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// Close closes the log file. Safe on a no-op logger.
func (l *RunLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// syncWriter flushes every record so a killed run still leaves its log.
type syncWriter struct {
	l *RunLogger
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.l.mu.Lock()
	defer w.l.mu.Unlock()
	n, err := w.l.file.Write(p)
	if err == nil {
		w.l.file.Sync()
	}
	return n, err
}

// ParseLevel converts a config level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
