/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in the access log
  2. AccessLog:  One zap entry per request (status, bytes, duration)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for a browser client

ROUTE GROUPS:
  /api/offices/*        Office directory
  /api/agents/*         Agent directory and office assignments
  /api/sellers          Seller directory
  /api/buyers           Buyer directory
  /api/listings/*       Listings and recording a sale
  /api/commissions/*    Monthly rollup
  /api/reports/*        Monthly report (JSON and XLSX)
  /api/stats            Row counts per table

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(AccessLog(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/offices", func(r chi.Router) {
			r.Get("/", h.ListOffices)
			r.Post("/", h.CreateOffice)
			r.Get("/{id}", h.GetOffice)
		})

		r.Route("/agents", func(r chi.Router) {
			r.Get("/", h.ListAgents)
			r.Post("/", h.CreateAgent)
			r.Get("/{id}", h.GetAgent)
			r.Post("/{id}/offices", h.AssignAgentToOffice)
		})

		r.Post("/sellers", h.CreateSeller)
		r.Post("/buyers", h.CreateBuyer)

		r.Route("/listings", func(r chi.Router) {
			r.Post("/", h.CreateListing)
			r.Get("/{id}", h.GetListing)
			r.Post("/{id}/sale", h.RecordSale)
		})

		r.Post("/commissions/rollup", h.RollupMonth)

		r.Route("/reports/{year}/{month}", func(r chi.Router) {
			r.Get("/", h.GetMonthlyReport)
			r.Get("/xlsx", h.ExportMonthlyReport)
		})

		r.Get("/stats", h.GetStats)
	})

	return r
}

// AccessLog writes one structured entry per request. 5xx responses log at
// error level, 4xx at warn.
func AccessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			}
			switch {
			case status >= 500:
				logger.Error("http request", fields...)
			case status >= 400:
				logger.Warn("http request", fields...)
			default:
				logger.Info("http request", fields...)
			}
		})
	}
}
