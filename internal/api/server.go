package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"
)

// NewRouter wires every endpoint. Job and admin routes require the bearer
// token when one is configured; health and metrics never do.
func NewRouter(h *APIHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.timingMiddleware)

	c := corslib.New(corslib.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	r.Use(c.Handler)

	r.Get("/health", h.HandleHealth)
	if h.metrics != nil {
		r.Handle("/prometheus", promhttp.HandlerFor(h.metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware)

		r.Post("/scrape", h.HandleScrape)
		r.Get("/scrape/status", h.HandleJobStatus)
		r.Get("/scrape/jobs", h.HandleListJobs)
		r.Get("/associations", h.HandleAssociations)

		r.Route("/api", func(r chi.Router) {
			r.Get("/history", h.HandleHistory)
			r.Get("/history/diff", h.HandleHistoryDiff)
			r.Get("/history/{id}", h.HandleHistoryVersion)
			r.Post("/verify", h.HandleVerify)

			r.Route("/analytics", func(r chi.Router) {
				r.Get("/summary", h.HandleGetAnalyticsSummary)
				r.Get("/timeseries", h.HandleGetTimeSeriesData)
				r.Get("/associations", h.HandleGetAssociationStats)
				r.Get("/recent", h.HandleGetRecentScrapes)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/cache/reset", h.HandleResetCache)
			r.Get("/stats", h.HandleStats)
			r.Delete("/history/{id}", h.HandleDeleteSnapshot)
		})
	})

	return r
}

func (h *APIHandler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := h.config.API.Token; token != "" {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix ||
				subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// timingMiddleware records request counts and latency by route pattern.
func (h *APIHandler) timingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.RecordHTTPRequest(r.Method, route, status, time.Since(start))
	})
}

// Serve runs the API on the configured port until ctx ends, then shuts the
// server down and waits for background jobs.
func Serve(ctx context.Context, h *APIHandler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", h.config.API.Port),
		Handler:           NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("Starting API server on port %d", h.config.API.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		h.Shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	h.Shutdown()
	if err != nil {
		return fmt.Errorf("shutdown api server: %w", err)
	}
	h.logger.Info("API server stopped")
	return nil
}
