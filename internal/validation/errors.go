package validation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoViewportCaptured matches *NoViewportCapturedError with errors.Is.
var ErrNoViewportCaptured = errors.New("no viewport captured")

// ViewportFailure is the cause recorded for one failed viewport.
type ViewportFailure struct {
	Viewport string
	Err      error
}

// NoViewportCapturedError is returned when every viewport failed to
// capture. No report is produced.
type NoViewportCapturedError struct {
	TargetURL string
	Failures  []ViewportFailure
}

func (e *NoViewportCapturedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Viewport, f.Err))
	}
	return fmt.Sprintf("no viewport captured for %s (%s)", e.TargetURL, strings.Join(parts, "; "))
}

// Is matches ErrNoViewportCaptured.
func (e *NoViewportCapturedError) Is(target error) bool {
	return target == ErrNoViewportCaptured
}

// Unwrap exposes the per-viewport causes.
func (e *NoViewportCapturedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}
