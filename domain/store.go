package domain

import "context"

// ExportSummary is a lightweight listing entry for saved sessions.
type ExportSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MessageCount int    `json:"messageCount"`
	LastModified string `json:"lastModified"`
}

// SessionStore persists saved sessions. The core calls its save points on
// session export and reset; the storage schema is the adapter's concern.
type SessionStore interface {
	SaveExport(ctx context.Context, export *ChatExport) error
	GetExport(ctx context.Context, id string) (*ChatExport, error)
	ListExports(ctx context.Context) ([]ExportSummary, error)
	DeleteExport(ctx context.Context, id string) error
	Close() error
}
