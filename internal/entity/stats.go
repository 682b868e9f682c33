package entity

// Statistics holds page counts per status and the domain total, read from a
// single snapshot.
type Statistics struct {
	TotalPages   int64 `db:"total_pages" json:"total_pages"`
	Queued       int64 `db:"queued" json:"queued"`
	Crawling     int64 `db:"crawling" json:"crawling"`
	Completed    int64 `db:"completed" json:"completed"`
	Failed       int64 `db:"failed" json:"failed"`
	TotalDomains int64 `db:"total_domains" json:"total_domains"`
}

// DomainList is one page of domains, newest first.
type DomainList struct {
	Page       int      `json:"page"`
	PerPage    int      `json:"per_page"`
	Total      int      `json:"total"`
	TotalPages int      `json:"total_pages"`
	Domains    []Domain `json:"domains"`
}
