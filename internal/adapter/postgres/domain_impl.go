package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/user/crawl-tracker/internal/entity"
)

const (
	upsertDomainQuery = `
		WITH ins AS (
			INSERT INTO domains (domain) VALUES ($1)
			ON CONFLICT (domain) DO NOTHING
			RETURNING id, domain, created_at
		)
		SELECT id, domain, created_at FROM ins
		UNION ALL
		SELECT id, domain, created_at FROM domains WHERE domain = $1
		LIMIT 1`

	selectDomainQuery = `SELECT id, domain, created_at FROM domains WHERE domain = $1`

	countDomainsQuery = `SELECT COUNT(*) FROM domains`

	listDomainsQuery = `
		SELECT id, domain, created_at
		FROM domains
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`
)

// DomainRepoImpl provides a concrete implementation for the DomainRepository interface using PostgreSQL.
type DomainRepoImpl struct {
	db *sqlx.DB
}

// NewDomainRepo creates a new instance of DomainRepoImpl.
func NewDomainRepo(db *sqlx.DB) *DomainRepoImpl {
	return &DomainRepoImpl{db: db}
}

// GetOrCreate returns the domain row for name, inserting it if absent.
func (r *DomainRepoImpl) GetOrCreate(ctx context.Context, name string) (*entity.Domain, error) {
	return getOrCreate[entity.Domain](ctx, r.db, "get or create domain",
		upsertDomainQuery, []any{name}, selectDomainQuery, name)
}

// List reads the total and the requested page inside one read-only
// repeatable-read transaction so both come from the same snapshot.
func (r *DomainRepoImpl) List(ctx context.Context, page, perPage int) (*entity.DomainList, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, storeErr("list domains", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.GetContext(ctx, &total, countDomainsQuery); err != nil {
		return nil, storeErr("count domains", err)
	}

	domains := []entity.Domain{}
	if err := tx.SelectContext(ctx, &domains, listDomainsQuery, perPage, (page-1)*perPage); err != nil {
		return nil, storeErr("list domains", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("list domains", err)
	}

	return &entity.DomainList{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: (total + perPage - 1) / perPage,
		Domains:    domains,
	}, nil
}
