package models

import "time"

// Screenshot is one successful capture persisted in the artifact store.
// The store owns the record and its backing file.
type Screenshot struct {
	// ID is the unique identifier for this screenshot.
	ID string `json:"id"`
	// Viewport is the configuration the page was rendered at.
	Viewport ViewportSpec `json:"viewport"`
	// FilePath is the absolute path of the backing PNG file.
	FilePath string `json:"file_path"`
	// SizeBytes is the size of the backing file.
	SizeBytes int64 `json:"size_bytes"`
	// CreatedAt is when the capture was stored.
	CreatedAt time.Time `json:"created_at"`
	// SourceURL is the page that was captured.
	SourceURL string `json:"source_url"`
}
