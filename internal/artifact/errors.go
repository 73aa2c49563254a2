package artifact

import (
	"errors"
	"fmt"
	"syscall"
)

// ErrorKind classifies store failures.
type ErrorKind string

const (
	// KindDiskFull means the filesystem ran out of space.
	KindDiskFull ErrorKind = "DISK_FULL"
	// KindWriteFailed covers every other I/O or index failure.
	KindWriteFailed ErrorKind = "WRITE_FAILED"
)

// Sentinel errors matched by StoreError.Is.
var (
	ErrDiskFull    = errors.New("artifact store: disk full")
	ErrWriteFailed = errors.New("artifact store: write failed")
)

// StoreError reports a failed store mutation. The store's invariants still
// hold when one is returned.
type StoreError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("artifact store %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels so callers can use errors.Is.
func (e *StoreError) Is(target error) bool {
	switch target {
	case ErrDiskFull:
		return e.Kind == KindDiskFull
	case ErrWriteFailed:
		return e.Kind == KindWriteFailed
	}
	return false
}

// storeErr wraps err, classifying ENOSPC as DISK_FULL.
func storeErr(op string, err error) error {
	kind := KindWriteFailed
	if errors.Is(err, syscall.ENOSPC) {
		kind = KindDiskFull
	}
	return &StoreError{Kind: kind, Op: op, Err: err}
}
