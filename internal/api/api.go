// Package api exposes batch scrape jobs, team-list history and metrics over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kareemsasa3/rinkcal/internal/config"
	"github.com/kareemsasa3/rinkcal/internal/database"
	"github.com/kareemsasa3/rinkcal/internal/logger"
	"github.com/kareemsasa3/rinkcal/internal/metrics"
	"github.com/kareemsasa3/rinkcal/internal/scraper"
	"github.com/kareemsasa3/rinkcal/internal/storage"
	"github.com/kareemsasa3/rinkcal/internal/types"
	"github.com/kareemsasa3/rinkcal/internal/verify"
)

// Version is reported by /health.
const Version = "1.0.0"

// BatchRunner is the part of the scraper the API drives.
type BatchRunner interface {
	RunBatch(ctx context.Context, assocs []config.AssociationConfig, opts scraper.BatchOptions) ([]types.AssociationResult, error)
	ResetCache()
}

// APIHandler handles HTTP API requests
type APIHandler struct {
	scraper  BatchRunner
	config   *config.Config
	storage  storage.Storage
	database *database.DB // nil disables history endpoints
	metrics  *metrics.PrometheusMetrics
	logger   *logger.Logger
	newVerifier func() *verify.Verifier // nil disables /api/verify

	baseCtx context.Context
	cancel  context.CancelFunc
	jobs    sync.WaitGroup
	now     func() time.Time
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(s BatchRunner, cfg *config.Config, store storage.Storage, db *database.DB, m *metrics.PrometheusMetrics, log *logger.Logger) *APIHandler {
	if log == nil {
		log = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &APIHandler{
		scraper:  s,
		config:   cfg,
		storage:  store,
		database: db,
		metrics:  m,
		logger:   log,
		baseCtx:  ctx,
		cancel:   cancel,
		now:      time.Now,
	}
}

// Shutdown cancels running jobs and waits for them to record their final state.
func (h *APIHandler) Shutdown() {
	h.cancel()
	h.jobs.Wait()
}

// Wait blocks until every background job has finished.
func (h *APIHandler) Wait() { h.jobs.Wait() }

// ScrapeRequest selects associations by name (substring match allowed) and
// optionally scopes age groups. No associations means the whole registry.
type ScrapeRequest struct {
	Associations []string `json:"associations,omitempty"`
	Ages         []string `json:"ages,omitempty"`
}

// ScrapeResponse represents a scraping response
type ScrapeResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// JobStatusResponse represents a job status response
type JobStatusResponse struct {
	Job     *storage.Job           `json:"job"`
	Summary *scraper.HealthSummary `json:"summary,omitempty"`
}

// HandleScrape starts a background batch job and returns its ID.
func (h *APIHandler) HandleScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	assocs, err := h.selectAssociations(req.Associations)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ages, err := parseAges(req.Ages)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	names := make([]string, len(assocs))
	for i, a := range assocs {
		names[i] = a.Name
	}
	job := &storage.Job{
		ID:        uuid.New().String(),
		Status:    storage.JobPending,
		Request:   storage.JobRequest{Associations: names, Ages: ages},
		Progress:  types.ProgressUpdate{Total: len(assocs)},
		CreatedAt: h.now().UTC(),
	}
	if err := h.storage.SaveJob(r.Context(), job); err != nil {
		http.Error(w, fmt.Sprintf("Failed to save job: %v", err), http.StatusInternalServerError)
		return
	}

	h.jobs.Add(1)
	go func() {
		defer h.jobs.Done()
		h.executeJob(job, assocs)
	}()

	writeJSON(w, http.StatusAccepted, ScrapeResponse{JobID: job.ID, Status: "accepted", Total: len(assocs)})
}

func (h *APIHandler) selectAssociations(queries []string) ([]config.AssociationConfig, error) {
	if len(queries) == 0 {
		if len(h.config.Associations) == 0 {
			return nil, errors.New("no associations configured")
		}
		return h.config.Associations, nil
	}
	out := make([]config.AssociationConfig, 0, len(queries))
	seen := make(map[string]bool, len(queries))
	for _, q := range queries {
		a, ok := h.config.Find(q)
		if !ok {
			return nil, fmt.Errorf("unknown association %q", q)
		}
		if seen[a.Name] {
			continue
		}
		seen[a.Name] = true
		out = append(out, a)
	}
	return out, nil
}

func parseAges(raw []string) ([]types.AgeGroup, error) {
	ages := make([]types.AgeGroup, 0, len(raw))
	for _, s := range raw {
		g, err := types.ParseAgeGroup(s)
		if err != nil {
			return nil, err
		}
		ages = append(ages, g)
	}
	return ages, nil
}

// executeJob runs a batch in the background, persisting progress after each
// association and recording history rows when a database is configured.
func (h *APIHandler) executeJob(job *storage.Job, assocs []config.AssociationConfig) {
	ctx := h.baseCtx
	// storage writes outlive a canceled batch so the final state lands
	storeCtx := context.Background()

	var mu sync.Mutex
	started := h.now().UTC()
	job.Status = storage.JobRunning
	job.StartedAt = &started
	if err := h.storage.UpdateJob(storeCtx, job); err != nil {
		h.logger.Warn("Failed to mark job %s running: %v", job.ID, err)
	}

	onProgress := func(u types.ProgressUpdate) {
		mu.Lock()
		defer mu.Unlock()
		job.Progress = u
		if err := h.storage.UpdateJob(storeCtx, job); err != nil {
			h.logger.Warn("Failed to update job %s progress: %v", job.ID, err)
			return
		}
		h.logger.Debug("Job %s: %s done (%d/%d, %d teams)", job.ID, u.AssociationName, u.Current, u.Total, u.TeamsFound)
	}

	results, err := h.scraper.RunBatch(ctx, assocs, scraper.BatchOptions{Ages: job.Request.Ages, OnProgress: onProgress})

	if h.database != nil {
		for _, row := range results {
			if row.Name == "" {
				continue // never started
			}
			if dbErr := h.database.RecordResult(row); dbErr != nil {
				h.logger.Warn("Failed to record history for %s: %v", row.Name, dbErr)
			}
		}
	}

	mu.Lock()
	defer mu.Unlock()
	completed := h.now().UTC()
	job.CompletedAt = &completed
	job.Results = results
	job.Status = storage.JobCompleted
	if err != nil {
		job.Status = storage.JobFailed
		job.Error = err.Error()
	}
	if err := h.storage.UpdateJob(storeCtx, job); err != nil {
		h.logger.Error("Failed to store final state of job %s: %v", job.ID, err)
		return
	}
	h.logger.Info("Job %s %s with %d association results", job.ID, job.Status, len(results))
}

// HandleJobStatus handles job status requests
func (h *APIHandler) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("id")
	if jobID == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	job, err := h.storage.GetJob(r.Context(), jobID)
	if errors.Is(err, storage.ErrJobNotFound) {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to load job: %v", err), http.StatusInternalServerError)
		return
	}

	resp := JobStatusResponse{Job: job}
	if job.Status == storage.JobCompleted || job.Status == storage.JobFailed {
		s := scraper.Summarize(job.Results)
		resp.Summary = &s
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleListJobs returns job IDs, optionally filtered by ?status=.
func (h *APIHandler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	if status := r.URL.Query().Get("status"); status != "" {
		jobs, err := h.storage.GetJobsByStatus(r.Context(), storage.JobStatus(strings.ToLower(status)))
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to list jobs: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, jobs)
		return
	}
	ids, err := h.storage.ListJobs(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list jobs: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// HandleHealth handles health check requests
func (h *APIHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"timestamp":    h.now().UTC(),
		"version":      Version,
		"associations": len(h.config.Associations),
		"history":      h.database != nil,
	})
}

// HandleAssociations lists the configured registry.
func (h *APIHandler) HandleAssociations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.config.AssociationList())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
