package repository

import (
	"context"

	"github.com/user/crawl-tracker/internal/entity"
)

// DomainRepository defines the interface for registering and listing domains.
type DomainRepository interface {
	// GetOrCreate returns the domain row for name, inserting it if absent.
	GetOrCreate(ctx context.Context, name string) (*entity.Domain, error)
	// List returns one page of domains ordered by creation time, newest first.
	List(ctx context.Context, page, perPage int) (*entity.DomainList, error)
}
