package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/user/crawl-tracker/internal/entity"
	"github.com/user/crawl-tracker/internal/repository"
	"github.com/user/crawl-tracker/pkg/metrics"
	"github.com/user/crawl-tracker/pkg/utils"
)

// Fixed fetch options for every crawl.
const (
	fetchFormat          = "markdown"
	fetchOnlyMainContent = true
	fetchFastMode        = false
)

// recordTimeout bounds the store writes that follow a fetch.
const recordTimeout = 10 * time.Second

// Crawler defines the interface for the crawl orchestration process.
type Crawler interface {
	// CrawlURL registers and fetches a URL once. Known URLs return their
	// stored state without a fetch.
	CrawlURL(ctx context.Context, rawURL string) (*entity.PageView, error)
	// Recrawl fetches a finished page again.
	Recrawl(ctx context.Context, rawURL string) (*entity.PageView, error)
	// EnqueueRecrawl schedules a recrawl for a known page and returns a request id.
	EnqueueRecrawl(ctx context.Context, rawURL string) (string, error)
	// ProcessURLFromQueue recrawls one queued URL, if any.
	ProcessURLFromQueue(ctx context.Context) error
	// AddDomain registers a domain without crawling any of its pages.
	AddDomain(ctx context.Context, name string) (*entity.Domain, error)
}

// CrawlerOptions tunes fetch behaviour.
type CrawlerOptions struct {
	FetchTimeout time.Duration
	MaxInFlight  int
	UserAgent    string
	ContentType  string
}

type crawlerUseCase struct {
	domainRepo  repository.DomainRepository
	pageRepo    repository.PageRepository
	historyRepo repository.HistoryRepository
	cacheRepo   repository.PageCacheRepository
	queueRepo   repository.QueueRepository
	fetcher     repository.PageFetcher
	admission   *semaphore.Weighted
	opts        CrawlerOptions
}

// NewCrawlerUseCase creates a new instance of the crawler use case. cacheRepo may be nil.
func NewCrawlerUseCase(
	domainRepo repository.DomainRepository,
	pageRepo repository.PageRepository,
	historyRepo repository.HistoryRepository,
	cacheRepo repository.PageCacheRepository,
	queueRepo repository.QueueRepository,
	fetcher repository.PageFetcher,
	opts CrawlerOptions,
) Crawler {
	if opts.MaxInFlight < 1 {
		opts.MaxInFlight = 1
	}
	return &crawlerUseCase{
		domainRepo:  domainRepo,
		pageRepo:    pageRepo,
		historyRepo: historyRepo,
		cacheRepo:   cacheRepo,
		queueRepo:   queueRepo,
		fetcher:     fetcher,
		admission:   semaphore.NewWeighted(int64(opts.MaxInFlight)),
		opts:        opts,
	}
}

func (uc *crawlerUseCase) CrawlURL(ctx context.Context, rawURL string) (*entity.PageView, error) {
	u, err := utils.ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	if view := uc.cachedView(ctx, rawURL); view != nil {
		return view, nil
	}

	existing, err := uc.pageRepo.FindByURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		view := existing.View()
		uc.cacheView(ctx, view)
		return view, nil
	}

	domain, err := uc.domainRepo.GetOrCreate(ctx, utils.DomainOf(u))
	if err != nil {
		return nil, err
	}
	page, err := uc.pageRepo.GetOrCreate(ctx, rawURL, domain.ID)
	if err != nil {
		return nil, err
	}
	slog.Info("Registered page", "url", rawURL, "domain", domain.Domain, "status", page.Status)

	claimed, err := uc.claim(ctx, page.URL, entity.StatusQueued)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return uc.currentView(ctx, page.URL)
	}
	return uc.fetchClaimed(ctx, page, u)
}

func (uc *crawlerUseCase) Recrawl(ctx context.Context, rawURL string) (*entity.PageView, error) {
	u, err := utils.ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	page, err := uc.pageRepo.FindByURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return uc.CrawlURL(ctx, rawURL)
	}
	if page.Status == entity.StatusCrawling {
		slog.Info("Skipping recrawl of page already being crawled", "url", rawURL)
		return page.View(), nil
	}

	// A queued page here was registered but never claimed, so it is picked up
	// together with finished ones.
	claimed, err := uc.claim(ctx, rawURL, entity.StatusQueued, entity.StatusCompleted, entity.StatusFailed)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return uc.currentView(ctx, rawURL)
	}

	// The page is crawling from here on and is never cached in that state.
	if uc.cacheRepo != nil {
		if err := uc.cacheRepo.Invalidate(ctx, rawURL); err != nil {
			slog.Warn("Failed to invalidate cached page before recrawl", "url", rawURL, "error", err)
		}
	}
	return uc.fetchClaimed(ctx, page, u)
}

func (uc *crawlerUseCase) EnqueueRecrawl(ctx context.Context, rawURL string) (string, error) {
	if _, err := utils.ValidateURL(rawURL); err != nil {
		return "", err
	}

	page, err := uc.pageRepo.FindByURL(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if page == nil {
		return "", &entity.NotFoundError{Resource: "page", Key: rawURL}
	}

	if err := uc.queueRepo.Push(ctx, rawURL); err != nil {
		return "", fmt.Errorf("failed to queue recrawl for %s: %w", rawURL, err)
	}
	uc.reportQueueSize(ctx)

	return utils.HashURL(rawURL), nil
}

func (uc *crawlerUseCase) AddDomain(ctx context.Context, name string) (*entity.Domain, error) {
	domainName, err := utils.NormalizeDomain(name)
	if err != nil {
		return nil, err
	}
	domain, err := uc.domainRepo.GetOrCreate(ctx, domainName)
	if err != nil {
		return nil, err
	}
	slog.Info("Registered domain", "domain", domain.Domain, "id", domain.ID)
	return domain, nil
}

// ProcessURLFromQueue pops a single URL from the queue and recrawls it.
// A failed fetch is recorded in the page history and is not an error here.
func (uc *crawlerUseCase) ProcessURLFromQueue(ctx context.Context) error {
	urlToCrawl, err := uc.queueRepo.Pop(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrQueueEmpty) {
			// Queue is empty, which is a normal state.
			return nil
		}
		return fmt.Errorf("failed to pop URL from queue: %w", err)
	}
	uc.reportQueueSize(ctx)

	slog.Info("Processing URL from queue", "url", urlToCrawl)

	_, err = uc.Recrawl(ctx, urlToCrawl)
	var crawlErr *entity.CrawlError
	var validationErr *entity.ValidationError
	switch {
	case errors.As(err, &crawlErr):
		slog.Warn("Queued recrawl failed", "url", urlToCrawl, "error", err)
		return nil
	case errors.As(err, &validationErr):
		slog.Warn("Dropping invalid URL from queue", "url", urlToCrawl, "error", err)
		return nil
	}
	return err
}

// claim moves the page to crawling out of one of the given states. A lost
// claim means another caller is handling the page.
func (uc *crawlerUseCase) claim(ctx context.Context, rawURL string, from ...entity.Status) (bool, error) {
	claimed, err := uc.pageRepo.Transition(ctx, rawURL, from, entity.StatusCrawling)
	if err != nil {
		return false, err
	}
	if !claimed {
		slog.Info("Page already claimed by another crawl", "url", rawURL)
	}
	return claimed, nil
}

// fetchClaimed fetches a page the caller has claimed and records the outcome.
// The fetch deadline starts before the wait for an admission slot, so a slow
// queue is recorded as a timeout like a slow fetch. Only cancellation by the
// caller leaves the page crawling for the reconciliation sweep.
func (uc *crawlerUseCase) fetchClaimed(ctx context.Context, page *entity.Page, u *url.URL) (*entity.PageView, error) {
	domain := utils.DomainOf(u)
	log := slog.With("url", page.URL, "domain", domain, "attempt_id", uuid.NewString())

	fetchCtx, cancel := context.WithTimeout(ctx, uc.opts.FetchTimeout)
	defer cancel()

	waitStart := time.Now()
	if err := uc.admission.Acquire(fetchCtx, 1); err != nil {
		if callerCanceled(ctx) {
			log.Warn("Crawl abandoned while waiting for a fetch slot, page left crawling", "error", ctx.Err())
			return nil, fmt.Errorf("crawl %s abandoned while waiting for a fetch slot: %w", page.URL, ctx.Err())
		}
		waitErr := fmt.Errorf("%w: no fetch slot became free: %v", repository.ErrFetchTimeout, err)
		log.Error("Crawling failed for URL", "error", waitErr)
		return uc.record(ctx, page, nil, waitErr, time.Since(waitStart))
	}
	defer uc.admission.Release(1)
	metrics.FetchesInFlight.Inc()
	defer metrics.FetchesInFlight.Dec()

	startTime := time.Now()
	result, fetchErr := uc.fetcher.Fetch(fetchCtx, uc.fetchRequest(page.URL))
	duration := time.Since(startTime)
	metrics.CrawlDuration.WithLabelValues(domain).Observe(duration.Seconds())

	if callerCanceled(ctx) {
		log.Warn("Crawl abandoned by caller, page left crawling", "error", ctx.Err())
		return nil, fmt.Errorf("crawl %s abandoned: %w", page.URL, ctx.Err())
	}

	if fetchErr == nil && (result == nil || strings.TrimSpace(result.Content) == "") {
		fetchErr = repository.ErrEmptyContent
	}
	if fetchErr != nil {
		if errors.Is(fetchErr, context.DeadlineExceeded) && !errors.Is(fetchErr, repository.ErrFetchTimeout) {
			fetchErr = fmt.Errorf("%w: %v", repository.ErrFetchTimeout, fetchErr)
		}
		log.Error("Crawling failed for URL", "error", fetchErr, "duration_ms", duration.Milliseconds())
	} else {
		log.Info("Crawling successful for URL, saving content", "duration_ms", duration.Milliseconds(), "content_size", len(result.Content))
	}
	return uc.record(ctx, page, result, fetchErr, duration)
}

// record writes the outcome of a finished attempt. The writes run on a context
// detached from the caller so an expired request deadline cannot drop them.
func (uc *crawlerUseCase) record(ctx context.Context, page *entity.Page, result *repository.FetchResult, fetchErr error, duration time.Duration) (*entity.PageView, error) {
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if fetchErr != nil {
		return uc.handleCrawlFailure(recordCtx, page, result, fetchErr, duration)
	}
	return uc.handleCrawlSuccess(recordCtx, page, result, duration)
}

func callerCanceled(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}

func (uc *crawlerUseCase) handleCrawlSuccess(ctx context.Context, page *entity.Page, result *repository.FetchResult, duration time.Duration) (*entity.PageView, error) {
	title := strings.TrimSpace(result.Title)
	if title == "" {
		title = markdownTitle(result.Content)
	}

	if err := uc.pageRepo.SaveContent(ctx, page.URL, result.Content, title); err != nil {
		return nil, fmt.Errorf("failed to save content for %s: %w", page.URL, err)
	}

	rec := &entity.CrawlHistory{
		PageID:          page.ID,
		Status:          entity.OutcomeSuccess,
		ResponseCode:    optionalInt(result.ResponseCode),
		ContentSize:     optionalInt(utf8.RuneCountInString(result.Content)),
		CrawlDurationMS: durationMS(duration),
	}
	if err := uc.historyRepo.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to record crawl of %s: %w", page.URL, err)
	}
	metrics.CrawlsTotal.WithLabelValues("success", "").Inc()

	view, err := uc.currentView(ctx, page.URL)
	if err != nil {
		return nil, err
	}
	uc.cacheView(ctx, view)
	return view, nil
}

func (uc *crawlerUseCase) handleCrawlFailure(ctx context.Context, page *entity.Page, result *repository.FetchResult, crawlErr error, duration time.Duration) (*entity.PageView, error) {
	metrics.CrawlsTotal.WithLabelValues("failure", errorType(crawlErr)).Inc()

	if err := uc.pageRepo.SetStatus(ctx, page.URL, entity.StatusFailed); err != nil {
		return nil, fmt.Errorf("failed to mark %s failed: %w", page.URL, err)
	}

	var responseCode int
	if result != nil {
		responseCode = result.ResponseCode
	}
	message := crawlErr.Error()
	rec := &entity.CrawlHistory{
		PageID:          page.ID,
		Status:          entity.OutcomeFailure,
		ResponseCode:    optionalInt(responseCode),
		ErrorMessage:    &message,
		CrawlDurationMS: durationMS(duration),
	}
	if err := uc.historyRepo.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to record crawl of %s: %w", page.URL, err)
	}

	view, err := uc.currentView(ctx, page.URL)
	if err != nil {
		return nil, err
	}
	uc.cacheView(ctx, view)
	return view, &entity.CrawlError{URL: page.URL, ResponseCode: responseCode, Err: crawlErr}
}

func (uc *crawlerUseCase) fetchRequest(rawURL string) repository.FetchRequest {
	return repository.FetchRequest{
		URL:             rawURL,
		Format:          fetchFormat,
		OnlyMainContent: fetchOnlyMainContent,
		FastMode:        fetchFastMode,
		Headers: map[string]string{
			"User-Agent":   uc.opts.UserAgent,
			"Content-Type": uc.opts.ContentType,
		},
	}
}

func (uc *crawlerUseCase) currentView(ctx context.Context, rawURL string) (*entity.PageView, error) {
	page, err := uc.pageRepo.FindByURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, &entity.StoreError{Op: "read page", Err: fmt.Errorf("page %s vanished", rawURL)}
	}
	return page.View(), nil
}

func (uc *crawlerUseCase) cachedView(ctx context.Context, rawURL string) *entity.PageView {
	if uc.cacheRepo == nil {
		return nil
	}
	view, err := uc.cacheRepo.Get(ctx, rawURL)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		slog.Warn("Page cache lookup failed, falling back to store", "url", rawURL, "error", err)
		return nil
	case view == nil:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return view
}

// cacheView stores finished views only; in-progress states change too quickly.
func (uc *crawlerUseCase) cacheView(ctx context.Context, view *entity.PageView) {
	if uc.cacheRepo == nil || !view.Status.Terminal() {
		return
	}
	if err := uc.cacheRepo.Set(ctx, view); err != nil {
		slog.Warn("Failed to cache page", "url", view.URL, "error", err)
	}
}

func (uc *crawlerUseCase) reportQueueSize(ctx context.Context) {
	if size, err := uc.queueRepo.Size(ctx); err == nil {
		metrics.URLsInQueue.Set(float64(size))
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, repository.ErrFetchTimeout):
		return "timeout"
	case errors.Is(err, repository.ErrEmptyContent):
		return "empty_content"
	case errors.Is(err, repository.ErrFetchRejected):
		return "rejected"
	case errors.Is(err, repository.ErrFetchTransport):
		return "transport"
	default:
		return "unknown"
	}
}

// markdownTitle returns the text of the first level-one heading.
func markdownTitle(md string) string {
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}

func optionalInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func durationMS(d time.Duration) *int64 {
	ms := d.Milliseconds()
	return &ms
}
