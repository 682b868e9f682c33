package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/user/crawl-tracker/internal/delivery/http/request"
	"github.com/user/crawl-tracker/internal/delivery/http/response"
	"github.com/user/crawl-tracker/internal/entity"
	"github.com/user/crawl-tracker/internal/usecase"
)

const (
	defaultPerPage = 20
	healthTimeout  = 2 * time.Second
)

// Pinger is a dependency the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	crawler  usecase.Crawler
	reporter usecase.Reporter
	checks   map[string]Pinger
}

// NewHandler creates the API handler. checks maps component names to the
// dependencies reported by the health endpoint.
func NewHandler(crawler usecase.Crawler, reporter usecase.Reporter, checks map[string]Pinger) *Handler {
	return &Handler{
		crawler:  crawler,
		reporter: reporter,
		checks:   checks,
	}
}

func (h *Handler) HandleCrawl(w http.ResponseWriter, r *http.Request) {
	var req request.CrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	view, err := h.crawler.CrawlURL(r.Context(), req.URL)
	if err != nil {
		h.writeError(w, r, err, view)
		return
	}
	if r.Context().Err() != nil {
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleRecrawl(w http.ResponseWriter, r *http.Request) {
	var req request.CrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	crawlID, err := h.crawler.EnqueueRecrawl(r.Context(), req.URL)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	h.writeJSON(w, http.StatusAccepted, response.RecrawlResponse{
		Status:         "success",
		Message:        "URL queued for recrawl",
		CrawlRequestID: crawlID,
	})
}

func (h *Handler) HandleGetPage(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		h.writeJSONError(w, "URL query parameter is required", http.StatusBadRequest)
		return
	}

	page, err := h.reporter.GetPageDetails(r.Context(), rawURL)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	if page == nil {
		h.writeJSONError(w, "Page not found for the given URL", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		h.writeJSONError(w, "URL query parameter is required", http.StatusBadRequest)
		return
	}

	history, err := h.reporter.GetHistory(r.Context(), rawURL)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, response.HistoryResponse{URL: rawURL, History: history})
}

func (h *Handler) HandlePagesByStatus(w http.ResponseWriter, r *http.Request) {
	pages, err := h.reporter.PagesByStatus(r.Context(), chi.URLParam(r, "status"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, response.PageListResponse{Count: len(pages), Pages: pages})
}

func (h *Handler) HandlePagesByDomain(w http.ResponseWriter, r *http.Request) {
	pages, err := h.reporter.PagesByDomain(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, response.PageListResponse{Count: len(pages), Pages: pages})
}

func (h *Handler) HandleListDomains(w http.ResponseWriter, r *http.Request) {
	page, err := intQuery(r, "page", 1)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	perPage, err := intQuery(r, "per_page", defaultPerPage)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	list, err := h.reporter.ListDomains(r.Context(), page, perPage)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleAddDomain(w http.ResponseWriter, r *http.Request) {
	var req request.DomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	domain, err := h.crawler.AddDomain(r.Context(), req.Domain)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, domain)
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reporter.GetStats(r.Context())
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := response.HealthResponse{Status: "ok", Components: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			slog.Error("Health check failed", "component", name, "error", err)
			resp.Components[name] = "unhealthy"
			resp.Status = "degraded"
			continue
		}
		resp.Components[name] = "healthy"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, resp)
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &entity.ValidationError{Field: name, Value: raw, Reason: "must be an integer"}
	}
	return n, nil
}

// writeError maps use case errors onto HTTP statuses. Once the request
// context is done nothing is written: the timeout middleware answers an
// expired request and a cancelled client is gone.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, view *entity.PageView) {
	if ctxErr := r.Context().Err(); ctxErr != nil {
		slog.Warn("Request ended before a response was written", "path", r.URL.Path, "reason", ctxErr, "error", err)
		return
	}

	var (
		validationErr *entity.ValidationError
		notFoundErr   *entity.NotFoundError
		crawlErr      *entity.CrawlError
	)
	switch {
	case errors.As(err, &validationErr):
		h.writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &notFoundErr):
		h.writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &crawlErr):
		h.writeJSON(w, http.StatusBadGateway, response.ErrorResponse{Error: err.Error(), Page: view})
	case errors.Is(err, context.DeadlineExceeded):
		slog.Warn("Request timed out", "path", r.URL.Path, "error", err)
		h.writeJSONError(w, "Request timed out", http.StatusGatewayTimeout)
	case errors.Is(err, context.Canceled):
		slog.Warn("Request cancelled", "path", r.URL.Path, "error", err)
		h.writeJSONError(w, "Request cancelled", http.StatusServiceUnavailable)
	default:
		slog.Error("Request failed", "path", r.URL.Path, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, response.ErrorResponse{Error: message})
}
