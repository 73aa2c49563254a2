package capture

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies capture failures.
type ErrorKind string

const (
	KindTimeout          ErrorKind = "TIMEOUT"
	KindNavigationFailed ErrorKind = "NAVIGATION_FAILED"
	KindRenderFailed     ErrorKind = "RENDER_FAILED"
)

// Sentinels matched by CaptureError.Is.
var (
	ErrTimeout    = errors.New("capture: timeout")
	ErrNavigation = errors.New("capture: navigation failed")
	ErrRender     = errors.New("capture: render failed")
)

// CaptureError reports why a viewport could not be captured. Nothing is
// written to the artifact store when one is returned.
type CaptureError struct {
	Kind     ErrorKind
	Viewport string
	Err      error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %s: %v", e.Viewport, e.Kind, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *CaptureError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrNavigation:
		return e.Kind == KindNavigationFailed
	case ErrRender:
		return e.Kind == KindRenderFailed
	}
	return false
}

// newCaptureError builds a CaptureError of the given kind, reclassifying it
// as a timeout when ctx has expired.
func newCaptureError(ctx context.Context, kind ErrorKind, viewport string, err error) *CaptureError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		kind = KindTimeout
		if !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
	}
	return &CaptureError{Kind: kind, Viewport: viewport, Err: err}
}
