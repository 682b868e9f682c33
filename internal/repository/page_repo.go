package repository

import (
	"context"
	"time"

	"github.com/user/crawl-tracker/internal/entity"
)

// PageRepository defines the interface for page state.
type PageRepository interface {
	// GetOrCreate returns the page for url, inserting it as queued if absent.
	// An existing page keeps its status.
	GetOrCreate(ctx context.Context, url string, domainID int64) (*entity.Page, error)
	// FindByURL returns nil when the page does not exist.
	FindByURL(ctx context.Context, url string) (*entity.Page, error)
	// SetStatus is a no-op for unknown URLs.
	SetStatus(ctx context.Context, url string, status entity.Status) error
	// Transition moves the page to `to` only if its current status is one of
	// `from`, and reports whether it did.
	Transition(ctx context.Context, url string, from []entity.Status, to entity.Status) (bool, error)
	// SaveContent stores content and title and marks the page completed.
	SaveContent(ctx context.Context, url, content, title string) error
	ListByStatus(ctx context.Context, status entity.Status) ([]*entity.Page, error)
	ListByDomain(ctx context.Context, domain string) ([]*entity.Page, error)
	// FailStuck marks pages crawling since before cutoff as failed, records a
	// failure for each and returns them.
	FailStuck(ctx context.Context, cutoff time.Time, reason string) ([]*entity.Page, error)
}
