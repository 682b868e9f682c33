package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/user/crawl-tracker/internal/entity"
	"github.com/user/crawl-tracker/internal/repository"
)

type MockDomainRepository struct {
	mock.Mock
}

func (m *MockDomainRepository) GetOrCreate(ctx context.Context, name string) (*entity.Domain, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Domain), args.Error(1)
}

func (m *MockDomainRepository) List(ctx context.Context, page, perPage int) (*entity.DomainList, error) {
	args := m.Called(ctx, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.DomainList), args.Error(1)
}

type MockPageRepository struct {
	mock.Mock
}

func (m *MockPageRepository) GetOrCreate(ctx context.Context, url string, domainID int64) (*entity.Page, error) {
	args := m.Called(ctx, url, domainID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Page), args.Error(1)
}

func (m *MockPageRepository) FindByURL(ctx context.Context, url string) (*entity.Page, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Page), args.Error(1)
}

func (m *MockPageRepository) SetStatus(ctx context.Context, url string, status entity.Status) error {
	args := m.Called(ctx, url, status)
	return args.Error(0)
}

func (m *MockPageRepository) Transition(ctx context.Context, url string, from []entity.Status, to entity.Status) (bool, error) {
	args := m.Called(ctx, url, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockPageRepository) SaveContent(ctx context.Context, url, content, title string) error {
	args := m.Called(ctx, url, content, title)
	return args.Error(0)
}

func (m *MockPageRepository) ListByStatus(ctx context.Context, status entity.Status) ([]*entity.Page, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Page), args.Error(1)
}

func (m *MockPageRepository) ListByDomain(ctx context.Context, domain string) ([]*entity.Page, error) {
	args := m.Called(ctx, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Page), args.Error(1)
}

func (m *MockPageRepository) FailStuck(ctx context.Context, cutoff time.Time, reason string) ([]*entity.Page, error) {
	args := m.Called(ctx, cutoff, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Page), args.Error(1)
}

type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) Append(ctx context.Context, rec *entity.CrawlHistory) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockHistoryRepository) ListByURL(ctx context.Context, url string) ([]*entity.CrawlHistory, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.CrawlHistory), args.Error(1)
}

type MockStatsRepository struct {
	mock.Mock
}

func (m *MockStatsRepository) Stats(ctx context.Context) (*entity.Statistics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Statistics), args.Error(1)
}

type MockQueueRepository struct {
	mock.Mock
}

func (m *MockQueueRepository) Push(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockQueueRepository) Pop(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockQueueRepository) Size(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return int64(args.Int(0)), args.Error(1)
}

type MockPageCacheRepository struct {
	mock.Mock
}

func (m *MockPageCacheRepository) Get(ctx context.Context, url string) (*entity.PageView, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.PageView), args.Error(1)
}

func (m *MockPageCacheRepository) Set(ctx context.Context, view *entity.PageView) error {
	args := m.Called(ctx, view)
	return args.Error(0)
}

func (m *MockPageCacheRepository) Invalidate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

// fetcherFunc adapts a function to repository.PageFetcher.
type fetcherFunc func(ctx context.Context, req repository.FetchRequest) (*repository.FetchResult, error)

func (f fetcherFunc) Fetch(ctx context.Context, req repository.FetchRequest) (*repository.FetchResult, error) {
	return f(ctx, req)
}

func strPtr(s string) *string { return &s }

func pageWith(url string, status entity.Status, content string) *entity.Page {
	p := &entity.Page{ID: 7, URL: url, DomainID: 1, Status: status}
	if content != "" {
		p.Content = strPtr(content)
	}
	return p
}
