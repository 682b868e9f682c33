package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/user/crawl-tracker/internal/entity"
)

const timeLayout = "2006-01-02 15:04:05"

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderViews(w io.Writer, views []*entity.PageView) {
	t := newTable(w)
	t.AppendHeader(table.Row{"URL", "Status", "Title", "Content Size", "Updated"})
	for _, v := range views {
		size := 0
		if v.Content != nil {
			size = len(*v.Content)
		}
		t.AppendRow(table.Row{v.URL, v.Status, deref(v.Title), size, formatTime(v.UpdatedAt)})
	}
	t.Render()
}

func renderPage(w io.Writer, p *entity.Page, showContent bool) {
	t := newTable(w)
	t.AppendRows([]table.Row{
		{"URL", p.URL},
		{"Status", p.Status},
		{"Title", deref(p.Title)},
		{"Domain ID", p.DomainID},
		{"Created", formatTime(p.CreatedAt)},
		{"Updated", formatTime(p.UpdatedAt)},
	})
	t.Render()

	if showContent && p.Content != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, *p.Content)
	}
}

func renderHistory(w io.Writer, history []*entity.CrawlHistory) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Crawled", "Outcome", "Code", "Size", "Duration (ms)", "Error"})
	for _, h := range history {
		t.AppendRow(table.Row{
			formatTime(h.CrawledAt),
			h.Status,
			optional(h.ResponseCode),
			optional(h.ContentSize),
			optional(h.CrawlDurationMS),
			deref(h.ErrorMessage),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Attempts", len(history)})
	t.Render()
}

func renderDomains(w io.Writer, list *entity.DomainList) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Domain", "Registered"})
	for _, d := range list.Domains {
		t.AppendRow(table.Row{d.ID, d.Domain, formatTime(d.CreatedAt)})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("Page %d of %d", list.Page, list.TotalPages), fmt.Sprintf("%d total", list.Total)})
	t.Render()
}

func renderDomain(w io.Writer, d *entity.Domain) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Domain", "Registered"})
	t.AppendRow(table.Row{d.ID, d.Domain, formatTime(d.CreatedAt)})
	t.Render()
}

func renderStats(w io.Writer, s *entity.Statistics) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Metric", "Count"})
	t.AppendRows([]table.Row{
		{"Total pages", s.TotalPages},
		{"Queued", s.Queued},
		{"Crawling", s.Crawling},
		{"Completed", s.Completed},
		{"Failed", s.Failed},
		{"Total domains", s.TotalDomains},
	})
	t.Render()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional[T int | int64](v *T) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}
