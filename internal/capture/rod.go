package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// RodConfig configures the go-rod browser backend.
type RodConfig struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty = launch a local headless Chrome via launcher.
	RemoteURL string

	// BinPath overrides the Chrome binary used by the launcher.
	BinPath string

	// Stealth applies go-rod/stealth evasions to every page.
	Stealth bool

	// SettleDelay is waited after the load event so late layout settles.
	SettleDelay time.Duration

	Logger *slog.Logger
}

func (c *RodConfig) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RodBrowser is a Browser backed by go-rod. Chrome is started lazily on the
// first NewSession call.
type RodBrowser struct {
	cfg RodConfig

	// ctx bounds the Chrome process and its connection; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	dialing *dialAttempt
	closed  bool
}

// dialAttempt is one in-flight launch and connect shared by every caller
// waiting on it.
type dialAttempt struct {
	done    chan struct{}
	browser *rod.Browser
	err     error
}

// NewRodBrowser creates a RodBrowser.
func NewRodBrowser(cfg RodConfig) *RodBrowser {
	cfg.defaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &RodBrowser{cfg: cfg, ctx: ctx, cancel: cancel}
}

// NewSession opens a new tab. It returns early with ctx's error when ctx
// ends while Chrome is still starting.
func (r *RodBrowser) NewSession(ctx context.Context) (Session, error) {
	b, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	if r.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	return &rodSession{page: page, settle: r.cfg.SettleDelay, log: r.cfg.Logger}, nil
}

// Close shuts Chrome down and aborts a launch in progress.
func (r *RodBrowser) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true

	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
	r.cancel()
	return err
}

func (r *RodBrowser) connect(ctx context.Context) (*rod.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("browser: closed")
	}
	if r.browser != nil {
		b := r.browser
		r.mu.Unlock()
		return b, nil
	}
	attempt := r.dialing
	if attempt == nil {
		attempt = &dialAttempt{done: make(chan struct{})}
		r.dialing = attempt
		go r.dial(attempt)
	}
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("browser: connect: %w", ctx.Err())
	case <-attempt.done:
		return attempt.browser, attempt.err
	}
}

// dial launches or attaches to Chrome outside the lock and publishes the
// result. A failed attempt is forgotten so the next session retries.
func (r *RodBrowser) dial(attempt *dialAttempt) {
	defer close(attempt.done)

	b, lnch, err := r.launch()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialing = nil
	if err == nil && r.closed {
		_ = b.Close()
		if lnch != nil {
			lnch.Cleanup()
		}
		err = fmt.Errorf("browser: closed")
	}
	if err != nil {
		attempt.err = err
		return
	}
	r.browser, r.lnch = b, lnch
	attempt.browser = b
}

func (r *RodBrowser) launch() (*rod.Browser, *launcher.Launcher, error) {
	log := r.cfg.Logger
	wsURL := r.cfg.RemoteURL

	var l *launcher.Launcher
	if wsURL != "" {
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l = launcher.New().Context(r.ctx).Headless(true).
			Set("disable-blink-features", "AutomationControlled").
			Set("hide-scrollbars")
		if r.cfg.BinPath != "" {
			l = l.Bin(r.cfg.BinPath)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		log.Info("browser: launched local chrome", "url", wsURL, "stealth", r.cfg.Stealth)
	}

	b := rod.New().Context(r.ctx).ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
			l.Cleanup()
		}
		return nil, nil, fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}
	return b, l, nil
}

type rodSession struct {
	page   *rod.Page
	settle time.Duration
	log    *slog.Logger
}

func (s *rodSession) SetViewport(ctx context.Context, width, height int) error {
	return s.page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
		Mobile:            width < 600,
	})
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn("browser: wait load failed", "url", url, "error", err)
	}
	if s.settle > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.settle):
		}
	}
	return nil
}

func (s *rodSession) Screenshot(ctx context.Context) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (s *rodSession) Close() error {
	return s.page.Close()
}
