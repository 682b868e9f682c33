package request

// CrawlRequest is the body of POST /api/crawl and POST /api/recrawl.
type CrawlRequest struct {
	URL string `json:"url"`
}

// DomainRequest is the body of POST /api/domains.
type DomainRequest struct {
	Domain string `json:"domain"`
}
