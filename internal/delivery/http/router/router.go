package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/crawl-tracker/internal/delivery/http/handler"
	"github.com/user/crawl-tracker/internal/delivery/http/middleware"
)

// New builds the API router. requestTimeout bounds every request, including
// a synchronous crawl.
func New(h *handler.Handler, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	if requestTimeout > 0 {
		r.Use(chimw.Timeout(requestTimeout))
	}

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)
		r.Post("/crawl", h.HandleCrawl)
		r.Post("/recrawl", h.HandleRecrawl)
		r.Get("/stats", h.HandleStats)

		r.Route("/pages", func(r chi.Router) {
			r.Get("/", h.HandleGetPage)
			r.Get("/history", h.HandleGetHistory)
			r.Get("/status/{status}", h.HandlePagesByStatus)
		})

		r.Route("/domains", func(r chi.Router) {
			r.Get("/", h.HandleListDomains)
			r.Post("/", h.HandleAddDomain)
			r.Get("/{domain}/pages", h.HandlePagesByDomain)
		})
	})

	return r
}
