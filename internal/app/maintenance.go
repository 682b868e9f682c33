package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// workerIdle is how long a recrawl worker pauses after an error, or between
// polls when the queue does not block.
const workerIdle = time.Second

// StartBackground runs the reconciliation sweep once immediately and then on
// the configured interval, and starts the recrawl workers. The returned
// function stops both and waits for them.
func (a *App) StartBackground(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	logger := cronLogger{}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger)))
	c.Schedule(cron.Every(a.Config.Reconciler.SweepInterval), cron.FuncJob(func() { a.sweep(ctx) }))
	c.Start()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.sweep(ctx)
	}()

	for i := 0; i < a.Config.Crawler.RecrawlWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			a.recrawlWorker(ctx, id)
		}(i)
	}
	slog.Info("Background jobs started",
		"sweep_interval", a.Config.Reconciler.SweepInterval,
		"recrawl_workers", a.Config.Crawler.RecrawlWorkers)

	return func() {
		cancel()
		<-c.Stop().Done()
		wg.Wait()
		slog.Info("Background jobs stopped")
	}
}

func (a *App) sweep(ctx context.Context) {
	if _, err := a.Reconciler.Sweep(ctx); err != nil && ctx.Err() == nil {
		slog.Error("Reconciliation sweep failed", "error", err)
	}
}

func (a *App) recrawlWorker(ctx context.Context, id int) {
	slog.Debug("Recrawl worker started", "worker", id)
	nonBlocking := a.Config.Redis.PopTimeout <= 0
	for ctx.Err() == nil {
		err := a.Crawler.ProcessURLFromQueue(ctx)
		if err != nil && ctx.Err() == nil {
			slog.Error("Recrawl worker failed to process queue", "worker", id, "error", err)
		}
		if err != nil || nonBlocking {
			select {
			case <-ctx.Done():
			case <-time.After(workerIdle):
			}
		}
	}
	slog.Debug("Recrawl worker stopped", "worker", id)
}

// cronLogger routes scheduler messages through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
