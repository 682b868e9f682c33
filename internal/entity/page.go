package entity

import "time"

// Domain mirrors the `domains` table. One row per distinct host.
type Domain struct {
	ID        int64     `db:"id" json:"id"`
	Domain    string    `db:"domain" json:"domain"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Page mirrors the `pages` table. One row per distinct URL; Status reflects
// the most recent crawl attempt.
type Page struct {
	ID        int64     `db:"id" json:"id"`
	URL       string    `db:"url" json:"url"`
	DomainID  int64     `db:"domain_id" json:"domain_id"`
	Status    Status    `db:"status" json:"status"`
	Content   *string   `db:"content" json:"content,omitempty"`
	Title     *string   `db:"title" json:"title,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PageView is the persisted state of a page as returned to callers.
type PageView struct {
	URL       string    `json:"url"`
	Status    Status    `json:"status"`
	Content   *string   `json:"content,omitempty"`
	Title     *string   `json:"title,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Page) View() *PageView {
	return &PageView{
		URL:       p.URL,
		Status:    p.Status,
		Content:   p.Content,
		Title:     p.Title,
		UpdatedAt: p.UpdatedAt,
	}
}
