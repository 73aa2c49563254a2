package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ShayCichocki/vizguard/pkg/models"
)

// Saver persists captured image bytes. *artifact.Store implements it.
type Saver interface {
	Save(ctx context.Context, viewport models.ViewportSpec, data []byte, sourceURL string) (*models.Screenshot, error)
}

// Service captures single viewports.
type Service struct {
	browser Browser
	store   Saver
	log     *slog.Logger
}

// NewService creates a capture service. A nil logger uses slog.Default.
func NewService(browser Browser, store Saver, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{browser: browser, store: store, log: log}
}

// Capture renders url at the given viewport and stores the screenshot.
// A positive timeout bounds this capture in addition to ctx.
//
// Browser failures are returned as *CaptureError and leave the store
// untouched. Store failures are returned unchanged.
func (s *Service) Capture(ctx context.Context, url string, viewport models.ViewportSpec, timeout time.Duration) (*models.Screenshot, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	data, err := s.render(ctx, url, viewport)
	if err != nil {
		return nil, err
	}

	shot, err := s.store.Save(ctx, viewport, data, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newCaptureError(ctx, KindTimeout, viewport.Name, err)
		}
		return nil, err
	}

	s.log.Debug("capture: stored screenshot", "viewport", viewport.String(), "id", shot.ID)
	return shot, nil
}

func (s *Service) render(ctx context.Context, url string, viewport models.ViewportSpec) ([]byte, error) {
	sess, err := s.browser.NewSession(ctx)
	if err != nil {
		return nil, newCaptureError(ctx, KindRenderFailed, viewport.Name, fmt.Errorf("open session: %w", err))
	}
	defer func() {
		if err := sess.Close(); err != nil {
			s.log.Debug("capture: close session", "viewport", viewport.Name, "error", err)
		}
	}()

	if err := sess.SetViewport(ctx, viewport.Width, viewport.Height); err != nil {
		return nil, newCaptureError(ctx, KindRenderFailed, viewport.Name, fmt.Errorf("set viewport: %w", err))
	}
	if err := sess.Navigate(ctx, url); err != nil {
		return nil, newCaptureError(ctx, KindNavigationFailed, viewport.Name, err)
	}
	data, err := sess.Screenshot(ctx)
	if err != nil {
		return nil, newCaptureError(ctx, KindRenderFailed, viewport.Name, fmt.Errorf("screenshot: %w", err))
	}
	if len(data) == 0 {
		return nil, newCaptureError(ctx, KindRenderFailed, viewport.Name, fmt.Errorf("screenshot: empty image"))
	}
	return data, nil
}
