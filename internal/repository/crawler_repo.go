package repository

import "context"

// FetchRequest carries the fixed options a crawl hands to a fetch backend.
type FetchRequest struct {
	URL             string
	Format          string
	OnlyMainContent bool
	FastMode        bool
	Headers         map[string]string
}

// FetchResult is what a backend returns for a page. Content is markdown.
type FetchResult struct {
	Content      string
	Title        string
	ResponseCode int
}

// PageFetcher defines the contract for the external page fetching backend.
type PageFetcher interface {
	// Fetch retrieves a URL and converts its main content to markdown.
	Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error)
}
