package repository

import (
	"context"

	"github.com/user/crawl-tracker/internal/entity"
)

// PageCacheRepository caches finished page views in front of the store.
type PageCacheRepository interface {
	// Get returns nil on a cache miss.
	Get(ctx context.Context, url string) (*entity.PageView, error)
	Set(ctx context.Context, view *entity.PageView) error
	// Invalidate drops the cached view, used before a recrawl.
	Invalidate(ctx context.Context, url string) error
}
