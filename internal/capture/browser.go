// Package capture renders a URL at a set of viewports and hands the
// resulting screenshots to the artifact store.
//
// The headless browser is consumed through the narrow Browser and Session
// interfaces; RodBrowser is the default go-rod implementation.
package capture

import "context"

// Browser creates isolated rendering sessions.
type Browser interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}

// Session is one browser tab.
type Session interface {
	SetViewport(ctx context.Context, width, height int) error
	Navigate(ctx context.Context, url string) error
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}
