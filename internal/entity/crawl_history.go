package entity

import "time"

// Outcome is the result recorded for a single crawl attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// CrawlHistory mirrors the `crawl_history` table. Rows are append-only.
type CrawlHistory struct {
	ID              int64     `db:"id" json:"id"`
	PageID          int64     `db:"page_id" json:"page_id"`
	Status          Outcome   `db:"status" json:"status"`
	CrawledAt       time.Time `db:"crawled_at" json:"crawled_at"`
	ResponseCode    *int      `db:"response_code" json:"response_code,omitempty"`
	ErrorMessage    *string   `db:"error_message" json:"error_message,omitempty"`
	ContentSize     *int      `db:"content_size" json:"content_size,omitempty"`
	CrawlDurationMS *int64    `db:"crawl_duration_ms" json:"crawl_duration_ms,omitempty"`
}
