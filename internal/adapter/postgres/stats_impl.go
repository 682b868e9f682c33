package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/user/crawl-tracker/internal/entity"
)

// One statement, so every count comes from the same snapshot.
const statsQuery = `
	SELECT
		COUNT(*)                                       AS total_pages,
		COUNT(*) FILTER (WHERE status = 'queued')      AS queued,
		COUNT(*) FILTER (WHERE status = 'crawling')    AS crawling,
		COUNT(*) FILTER (WHERE status = 'completed')   AS completed,
		COUNT(*) FILTER (WHERE status = 'failed')      AS failed,
		(SELECT COUNT(*) FROM domains)                 AS total_domains
	FROM pages`

type StatsRepoImpl struct {
	db *sqlx.DB
}

func NewStatsRepo(db *sqlx.DB) *StatsRepoImpl {
	return &StatsRepoImpl{db: db}
}

func (r *StatsRepoImpl) Stats(ctx context.Context) (*entity.Statistics, error) {
	var stats entity.Statistics
	if err := r.db.GetContext(ctx, &stats, statsQuery); err != nil {
		return nil, storeErr("read stats", err)
	}
	return &stats, nil
}
