package chromedp_crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/user/crawl-tracker/internal/repository"
)

// ChromedpCrawler renders pages in a shared headless Chrome instance, one tab
// per fetch.
type ChromedpCrawler struct {
	allocCancel context.CancelFunc
	browserCtx  context.Context
	closeTab    context.CancelFunc
}

// NewChromedpCrawler starts headless Chrome. An empty execPath lets chromedp
// locate the browser.
func NewChromedpCrawler(execPath, userAgent string) (*ChromedpCrawler, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, closeTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		slog.Debug(fmt.Sprintf(format, args...))
	}))

	// Running an empty task list launches the browser so startup errors surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		closeTab()
		allocCancel()
		return nil, fmt.Errorf("start headless chrome: %w", err)
	}

	return &ChromedpCrawler{
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		closeTab:    closeTab,
	}, nil
}

// Fetch navigates to req.URL in a new tab and converts the rendered document
// to markdown.
func (c *ChromedpCrawler) Fetch(ctx context.Context, req repository.FetchRequest) (*repository.FetchResult, error) {
	tabCtx, cancelTab := chromedp.NewContext(c.browserCtx)
	defer cancelTab()

	// The tab lives under the browser context, so the caller's deadline and
	// cancellation are bridged onto it.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	headers := network.Headers{}
	for k, v := range req.Headers {
		headers[k] = v
	}

	var html string
	resp, err := chromedp.RunResponse(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		chromedp.Navigate(req.URL),
	)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, classify(ctx, err)
	}

	result := &repository.FetchResult{}
	if resp != nil {
		result.ResponseCode = int(resp.Status)
	}
	if result.ResponseCode >= 400 {
		return result, fmt.Errorf("%w: page returned %d", repository.ErrFetchRejected, result.ResponseCode)
	}

	title, markdown, err := ExtractMarkdown(req.URL, html, req.OnlyMainContent)
	if err != nil {
		return result, fmt.Errorf("extract content: %w", err)
	}
	result.Title = title
	result.Content = markdown

	slog.Debug("Rendered page", "url", req.URL, "status", result.ResponseCode, "content_size", len(markdown))
	return result, nil
}

// Close shuts the browser down.
func (c *ChromedpCrawler) Close() {
	c.closeTab()
	c.allocCancel()
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", repository.ErrFetchTimeout, err)
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	default:
		return fmt.Errorf("%w: %v", repository.ErrFetchTransport, err)
	}
}
