package repository

import (
	"context"

	"github.com/user/crawl-tracker/internal/entity"
)

// HistoryRepository defines the interface for the append-only crawl log.
type HistoryRepository interface {
	// Append inserts rec and fills in its ID and CrawledAt.
	Append(ctx context.Context, rec *entity.CrawlHistory) error
	// ListByURL returns the attempts for a page, newest first.
	ListByURL(ctx context.Context, url string) ([]*entity.CrawlHistory, error)
}

// StatsRepository reads aggregate counts.
type StatsRepository interface {
	Stats(ctx context.Context) (*entity.Statistics, error)
}
