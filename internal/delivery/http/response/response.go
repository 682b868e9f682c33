package response

import "github.com/user/crawl-tracker/internal/entity"

type RecrawlResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	CrawlRequestID string `json:"crawl_request_id"`
}

// ErrorResponse is returned for every non-2xx answer. Page is set when a
// crawl attempt failed after it was recorded.
type ErrorResponse struct {
	Error string           `json:"error"`
	Page  *entity.PageView `json:"page,omitempty"`
}

type PageListResponse struct {
	Count int            `json:"count"`
	Pages []*entity.Page `json:"pages"`
}

type HistoryResponse struct {
	URL     string                 `json:"url"`
	History []*entity.CrawlHistory `json:"history"`
}

type HealthResponse struct {
	Status     string            `json:"status"` // "ok" or "degraded"
	Components map[string]string `json:"components"`
}
