package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/crawl-tracker/internal/repository"
	"github.com/user/crawl-tracker/pkg/metrics"
)

// Reconciler recovers pages left behind by abandoned attempts: crawling pages
// whose fetch never reported back and queued pages that were never claimed.
type Reconciler interface {
	// Sweep fails every page that has been crawling or queued for longer
	// than the crawl TTL and returns how many it reclaimed.
	Sweep(ctx context.Context) (int, error)
}

type reconcilerUseCase struct {
	pageRepo  repository.PageRepository
	queueRepo repository.QueueRepository
	ttl       time.Duration
	requeue   bool
	now       func() time.Time
}

// NewReconciler creates a reconciler. With requeue set, reclaimed pages are
// pushed onto the recrawl queue.
func NewReconciler(pageRepo repository.PageRepository, queueRepo repository.QueueRepository, ttl time.Duration, requeue bool) Reconciler {
	return &reconcilerUseCase{
		pageRepo:  pageRepo,
		queueRepo: queueRepo,
		ttl:       ttl,
		requeue:   requeue,
		now:       time.Now,
	}
}

func (uc *reconcilerUseCase) Sweep(ctx context.Context) (int, error) {
	cutoff := uc.now().Add(-uc.ttl)
	reason := fmt.Sprintf("crawl abandoned: no result within %s", uc.ttl)

	pages, err := uc.pageRepo.FailStuck(ctx, cutoff, reason)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stuck pages: %w", err)
	}
	if len(pages) == 0 {
		slog.Debug("No stuck pages found", "cutoff", cutoff)
		return 0, nil
	}
	metrics.StuckPagesReclaimed.Add(float64(len(pages)))

	for _, page := range pages {
		slog.Warn("Reclaimed stuck page", "url", page.URL, "last_update", page.UpdatedAt)
		if !uc.requeue || uc.queueRepo == nil {
			continue
		}
		if err := uc.queueRepo.Push(ctx, page.URL); err != nil {
			slog.Error("Failed to requeue reclaimed page", "url", page.URL, "error", err)
		}
	}
	slog.Info("Reconciliation sweep finished", "reclaimed", len(pages), "requeued", uc.requeue)
	return len(pages), nil
}
