package usecase

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/user/crawl-tracker/internal/entity"
	"github.com/user/crawl-tracker/internal/repository"
	"github.com/user/crawl-tracker/pkg/utils"
)

// MaxPerPage bounds a single domain listing page.
const MaxPerPage = 100

// Reporter defines read-only queries over the crawl state.
type Reporter interface {
	ListDomains(ctx context.Context, page, perPage int) (*entity.DomainList, error)
	GetStats(ctx context.Context) (*entity.Statistics, error)
	// GetPageDetails returns nil when the URL has never been registered.
	GetPageDetails(ctx context.Context, rawURL string) (*entity.Page, error)
	// GetHistory lists attempts newest first; unknown URLs have none.
	GetHistory(ctx context.Context, rawURL string) ([]*entity.CrawlHistory, error)
	PagesByStatus(ctx context.Context, status string) ([]*entity.Page, error)
	PagesByDomain(ctx context.Context, domain string) ([]*entity.Page, error)
}

type reportingUseCase struct {
	domainRepo  repository.DomainRepository
	pageRepo    repository.PageRepository
	historyRepo repository.HistoryRepository
	statsRepo   repository.StatsRepository
}

// NewReporter creates a new Reporter use case.
func NewReporter(
	domainRepo repository.DomainRepository,
	pageRepo repository.PageRepository,
	historyRepo repository.HistoryRepository,
	statsRepo repository.StatsRepository,
) Reporter {
	return &reportingUseCase{
		domainRepo:  domainRepo,
		pageRepo:    pageRepo,
		historyRepo: historyRepo,
		statsRepo:   statsRepo,
	}
}

func (uc *reportingUseCase) ListDomains(ctx context.Context, page, perPage int) (*entity.DomainList, error) {
	if page < 1 {
		return nil, &entity.ValidationError{Field: "page", Value: strconv.Itoa(page), Reason: "must be at least 1"}
	}
	if perPage < 1 || perPage > MaxPerPage {
		return nil, &entity.ValidationError{Field: "per_page", Value: strconv.Itoa(perPage), Reason: "must be between 1 and 100"}
	}
	return uc.domainRepo.List(ctx, page, perPage)
}

func (uc *reportingUseCase) GetStats(ctx context.Context) (*entity.Statistics, error) {
	return uc.statsRepo.Stats(ctx)
}

func (uc *reportingUseCase) GetPageDetails(ctx context.Context, rawURL string) (*entity.Page, error) {
	if _, err := utils.ValidateURL(rawURL); err != nil {
		return nil, err
	}
	return uc.pageRepo.FindByURL(ctx, rawURL)
}

func (uc *reportingUseCase) GetHistory(ctx context.Context, rawURL string) ([]*entity.CrawlHistory, error) {
	if _, err := utils.ValidateURL(rawURL); err != nil {
		return nil, err
	}
	return uc.historyRepo.ListByURL(ctx, rawURL)
}

func (uc *reportingUseCase) PagesByStatus(ctx context.Context, status string) ([]*entity.Page, error) {
	s, err := entity.ParseStatus(status)
	if err != nil {
		return nil, &entity.ValidationError{Field: "status", Value: status, Reason: err.Error()}
	}
	pages, err := uc.pageRepo.ListByStatus(ctx, s)
	if err != nil {
		return nil, err
	}
	slog.Debug("Listed pages by status", "status", s, "count", len(pages))
	return pages, nil
}

func (uc *reportingUseCase) PagesByDomain(ctx context.Context, domain string) ([]*entity.Page, error) {
	if domain == "" {
		return nil, &entity.ValidationError{Field: "domain", Value: domain, Reason: "must not be empty"}
	}
	return uc.pageRepo.ListByDomain(ctx, domain)
}
