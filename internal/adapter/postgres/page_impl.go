package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/user/crawl-tracker/internal/entity"
)

const pageColumns = `id, url, domain_id, status, content, title, created_at, updated_at`

const (
	upsertPageQuery = `
		WITH ins AS (
			INSERT INTO pages (url, domain_id) VALUES ($1, $2)
			ON CONFLICT (url) DO NOTHING
			RETURNING ` + pageColumns + `
		)
		SELECT ` + pageColumns + ` FROM ins
		UNION ALL
		SELECT ` + pageColumns + ` FROM pages WHERE url = $1
		LIMIT 1`

	selectPageQuery = `SELECT ` + pageColumns + ` FROM pages WHERE url = $1`

	setStatusQuery = `UPDATE pages SET status = $2, updated_at = NOW() WHERE url = $1`

	transitionQuery = `UPDATE pages SET status = ?, updated_at = NOW() WHERE url = ? AND status IN (?)`

	saveContentQuery = `
		UPDATE pages
		SET content = $2, title = $3, status = 'completed', updated_at = NOW()
		WHERE url = $1`

	pagesByStatusQuery = `SELECT ` + pageColumns + ` FROM pages WHERE status = $1 ORDER BY id`

	pagesByDomainQuery = `
		SELECT p.id, p.url, p.domain_id, p.status, p.content, p.title, p.created_at, p.updated_at
		FROM pages p
		JOIN domains d ON d.id = p.domain_id
		WHERE d.domain = $1
		ORDER BY p.id`

	failStuckQuery = `
		WITH stuck AS (
			UPDATE pages
			SET status = 'failed', updated_at = NOW()
			WHERE status IN ('crawling', 'queued') AND updated_at < $1
			RETURNING ` + pageColumns + `
		), logged AS (
			INSERT INTO crawl_history (page_id, status, crawled_at, error_message)
			SELECT id, 'failure', NOW(), $2 FROM stuck
		)
		SELECT ` + pageColumns + ` FROM stuck ORDER BY id`
)

// PageRepoImpl provides a concrete implementation for the PageRepository interface using PostgreSQL.
type PageRepoImpl struct {
	db *sqlx.DB
}

// NewPageRepo creates a new instance of PageRepoImpl.
func NewPageRepo(db *sqlx.DB) *PageRepoImpl {
	return &PageRepoImpl{db: db}
}

// GetOrCreate returns the page for url, inserting it as queued if absent.
func (r *PageRepoImpl) GetOrCreate(ctx context.Context, url string, domainID int64) (*entity.Page, error) {
	return getOrCreate[entity.Page](ctx, r.db, "get or create page",
		upsertPageQuery, []any{url, domainID}, selectPageQuery, url)
}

// FindByURL retrieves a page, returning nil when it does not exist.
func (r *PageRepoImpl) FindByURL(ctx context.Context, url string) (*entity.Page, error) {
	var page entity.Page
	err := r.db.GetContext(ctx, &page, selectPageQuery, url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find page", err)
	}
	return &page, nil
}

// SetStatus updates the status of a page. Unknown URLs are ignored.
func (r *PageRepoImpl) SetStatus(ctx context.Context, url string, status entity.Status) error {
	if _, err := r.db.ExecContext(ctx, setStatusQuery, url, status); err != nil {
		return storeErr("set status", err)
	}
	return nil
}

// Transition is a compare-and-set on the page status.
func (r *PageRepoImpl) Transition(ctx context.Context, url string, from []entity.Status, to entity.Status) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	names := make([]string, len(from))
	for i, s := range from {
		names[i] = s.String()
	}

	query, args, err := sqlx.In(transitionQuery, to.String(), url, names)
	if err != nil {
		return false, storeErr("transition status", err)
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return false, storeErr("transition status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("transition status", err)
	}
	return n > 0, nil
}

// SaveContent stores the fetched content and marks the page completed.
func (r *PageRepoImpl) SaveContent(ctx context.Context, url, content, title string) error {
	if _, err := r.db.ExecContext(ctx, saveContentQuery, url, content, nullString(title)); err != nil {
		return storeErr("save content", err)
	}
	return nil
}

func (r *PageRepoImpl) ListByStatus(ctx context.Context, status entity.Status) ([]*entity.Page, error) {
	pages := []*entity.Page{}
	if err := r.db.SelectContext(ctx, &pages, pagesByStatusQuery, status); err != nil {
		return nil, storeErr("list pages by status", err)
	}
	return pages, nil
}

func (r *PageRepoImpl) ListByDomain(ctx context.Context, domain string) ([]*entity.Page, error) {
	pages := []*entity.Page{}
	if err := r.db.SelectContext(ctx, &pages, pagesByDomainQuery, domain); err != nil {
		return nil, storeErr("list pages by domain", err)
	}
	return pages, nil
}

// FailStuck fails every page left crawling, or registered and never claimed,
// since before cutoff and records a failure for each in the same statement.
func (r *PageRepoImpl) FailStuck(ctx context.Context, cutoff time.Time, reason string) ([]*entity.Page, error) {
	pages := []*entity.Page{}
	if err := r.db.SelectContext(ctx, &pages, failStuckQuery, cutoff, reason); err != nil {
		return nil, storeErr("fail stuck pages", err)
	}
	return pages, nil
}
