package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HandleResetCache clears the fetch cache so the next scrape refetches every page.
func (h *APIHandler) HandleResetCache(w http.ResponseWriter, r *http.Request) {
	h.scraper.ResetCache()
	h.logger.Info("Fetch cache reset via API")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "fetch cache cleared",
	})
}

// HandleDeleteSnapshot removes one history row.
func (h *APIHandler) HandleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if !h.requireDatabase(w) {
		return
	}
	id := chi.URLParam(r, "id")
	snap, err := h.database.GetSnapshotByID(id)
	if err != nil {
		http.Error(w, fmt.Sprintf("Database error: %v", err), http.StatusInternalServerError)
		return
	}
	if snap == nil {
		http.Error(w, "Version not found", http.StatusNotFound)
		return
	}
	if err := h.database.DeleteSnapshot(id); err != nil {
		http.Error(w, fmt.Sprintf("Failed to delete version: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStats returns history database statistics.
func (h *APIHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !h.requireDatabase(w) {
		return
	}
	stats, err := h.database.GetStats()
	if err != nil {
		http.Error(w, fmt.Sprintf("Database error: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
