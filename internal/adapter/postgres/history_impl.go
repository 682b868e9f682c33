package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/user/crawl-tracker/internal/entity"
)

const (
	appendHistoryQuery = `
		INSERT INTO crawl_history (page_id, status, crawled_at, response_code, error_message, content_size, crawl_duration_ms)
		VALUES ($1, $2, NOW(), $3, $4, $5, $6)
		RETURNING id, crawled_at`

	historyByURLQuery = `
		SELECT h.id, h.page_id, h.status, h.crawled_at, h.response_code, h.error_message, h.content_size, h.crawl_duration_ms
		FROM crawl_history h
		JOIN pages p ON p.id = h.page_id
		WHERE p.url = $1
		ORDER BY h.crawled_at DESC, h.id DESC`
)

// HistoryRepoImpl provides a concrete implementation for the HistoryRepository interface using PostgreSQL.
type HistoryRepoImpl struct {
	db *sqlx.DB
}

// NewHistoryRepo creates a new instance of HistoryRepoImpl.
func NewHistoryRepo(db *sqlx.DB) *HistoryRepoImpl {
	return &HistoryRepoImpl{db: db}
}

// Append inserts one immutable crawl record and fills in its ID and timestamp.
func (r *HistoryRepoImpl) Append(ctx context.Context, rec *entity.CrawlHistory) error {
	row := r.db.QueryRowxContext(ctx, appendHistoryQuery,
		rec.PageID,
		string(rec.Status),
		rec.ResponseCode,
		rec.ErrorMessage,
		rec.ContentSize,
		rec.CrawlDurationMS,
	)
	if err := row.Scan(&rec.ID, &rec.CrawledAt); err != nil {
		return storeErr("append history", err)
	}
	return nil
}

// ListByURL returns the attempts for a page, newest first. Unknown URLs yield
// an empty list.
func (r *HistoryRepoImpl) ListByURL(ctx context.Context, url string) ([]*entity.CrawlHistory, error) {
	history := []*entity.CrawlHistory{}
	if err := r.db.SelectContext(ctx, &history, historyByURLQuery, url); err != nil {
		return nil, storeErr("list history", err)
	}
	return history, nil
}
