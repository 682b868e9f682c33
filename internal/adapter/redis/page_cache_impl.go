package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/crawl-tracker/internal/entity"
	"github.com/user/crawl-tracker/pkg/utils"
)

const pageCachePrefix = "page:"

// PageCacheRepoImpl caches page views in Redis, keyed by URL hash.
type PageCacheRepoImpl struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewPageCacheRepo creates a new instance of PageCacheRepoImpl.
func NewPageCacheRepo(client redis.UniversalClient, ttl time.Duration) *PageCacheRepoImpl {
	return &PageCacheRepoImpl{client: client, ttl: ttl}
}

// generateKey creates a consistent Redis key for a given URL by hashing it.
func (r *PageCacheRepoImpl) generateKey(url string) string {
	return fmt.Sprintf("%s%s", pageCachePrefix, utils.HashURL(url))
}

// Get returns the cached view, or nil on a miss.
func (r *PageCacheRepoImpl) Get(ctx context.Context, url string) (*entity.PageView, error) {
	raw, err := r.client.Get(ctx, r.generateKey(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var view entity.PageView
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, fmt.Errorf("decode cached page %s: %w", url, err)
	}
	return &view, nil
}

// Set stores a view. SETEX is atomic and sets the key with an expiry; a
// non-positive ttl stores it without one.
func (r *PageCacheRepoImpl) Set(ctx context.Context, view *entity.PageView) error {
	raw, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("encode page %s: %w", view.URL, err)
	}
	key := r.generateKey(view.URL)
	if r.ttl <= 0 {
		return r.client.Set(ctx, key, raw, 0).Err()
	}
	return r.client.SetEX(ctx, key, raw, r.ttl).Err()
}

// Invalidate removes a cached view.
func (r *PageCacheRepoImpl) Invalidate(ctx context.Context, url string) error {
	return r.client.Del(ctx, r.generateKey(url)).Err()
}
