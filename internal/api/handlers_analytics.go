package api

import (
	"net/http"
)

// HandleGetAnalyticsSummary returns high-level analytics.
func (h *APIHandler) HandleGetAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	if !h.requireDatabase(w) {
		return
	}

	summary, err := h.database.GetAnalyticsSummary()
	if err != nil {
		h.logger.Error("analytics summary query failed: %v", err)
		http.Error(w, "Failed to fetch analytics summary", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleGetTimeSeriesData returns time-series analytics.
func (h *APIHandler) HandleGetTimeSeriesData(w http.ResponseWriter, r *http.Request) {
	if !h.requireDatabase(w) {
		return
	}

	days := intParam(r, "days", 30)
	if days < 1 || days > 365 {
		days = 30
	}

	data, err := h.database.GetTimeSeriesData(days)
	if err != nil {
		h.logger.Error("time series query failed: %v", err)
		http.Error(w, "Failed to fetch time series data", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// HandleGetAssociationStats returns per-association scrape statistics.
func (h *APIHandler) HandleGetAssociationStats(w http.ResponseWriter, r *http.Request) {
	if !h.requireDatabase(w) {
		return
	}

	limit := intParam(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	stats, err := h.database.GetAssociationStats(limit)
	if err != nil {
		h.logger.Error("association stats query failed: %v", err)
		http.Error(w, "Failed to fetch association stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleGetRecentScrapes returns recent scrape attempts.
func (h *APIHandler) HandleGetRecentScrapes(w http.ResponseWriter, r *http.Request) {
	if !h.requireDatabase(w) {
		return
	}

	limit := intParam(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	scrapes, err := h.database.GetRecentScrapes(limit)
	if err != nil {
		h.logger.Error("recent scrapes query failed: %v", err)
		http.Error(w, "Failed to fetch recent scrapes", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, scrapes)
}
