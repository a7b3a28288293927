package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/kareemsasa3/rinkcal/internal/database"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

// HistoryEntryResponse is one history row without its team list.
type HistoryEntryResponse struct {
	ID            string    `json:"id"`
	Association   string    `json:"association"`
	Domain        string    `json:"domain"`
	ScrapedAt     time.Time `json:"scraped_at"`
	LastCheckedAt time.Time `json:"last_checked_at"`
	Status        string    `json:"status"`
	TeamCount     int       `json:"team_count"`
	ContentHash   string    `json:"content_hash,omitempty"`
	PreviousHash  string    `json:"previous_hash,omitempty"`
	HasChanges    bool      `json:"has_changes"`
	ChangeSummary string    `json:"change_summary,omitempty"`
	Error         string    `json:"error,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
}

// VersionResponse is one history row with its teams.
type VersionResponse struct {
	HistoryEntryResponse
	BaseURL string              `json:"base_url"`
	Teams   []types.ScrapedTeam `json:"teams"`
}

// HistoryListResponse pages through every association's history.
type HistoryListResponse struct {
	Entries []HistoryEntryResponse `json:"entries"`
	Total   int                    `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

// DiffResponse compares two versions of an association's team list.
type DiffResponse struct {
	Association   string    `json:"association"`
	FromID        string    `json:"from_id"`
	ToID          string    `json:"to_id"`
	FromTimestamp time.Time `json:"from_timestamp"`
	ToTimestamp   time.Time `json:"to_timestamp"`
	FromHash      string    `json:"from_hash"`
	ToHash        string    `json:"to_hash"`
	Added         []string  `json:"added"`
	Removed       []string  `json:"removed"`
	Patch         string    `json:"patch"`
}

func (h *APIHandler) requireDatabase(w http.ResponseWriter) bool {
	if h.database == nil {
		http.Error(w, "History database not available", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func intParam(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// HandleHistory returns ?association= history newest first, or a page of
// every association's history when no association is given.
func (h *APIHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if !h.requireDatabase(w) {
		return
	}
	limit := intParam(r, "limit", 50)

	if name := r.URL.Query().Get("association"); name != "" {
		if a, ok := h.config.Find(name); ok {
			name = a.Name
		}
		history, err := h.database.GetHistory(name, limit)
		if err != nil {
			http.Error(w, fmt.Sprintf("Database error: %v", err), http.StatusInternalServerError)
			return
		}
		entries := make([]HistoryEntryResponse, 0, len(history))
		for _, s := range history {
			entries = append(entries, mapSnapshotToHistoryResponse(s))
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}

	offset := intParam(r, "offset", 0)
	snapshots, total, err := h.database.GetRecentSnapshots(limit, offset)
	if err != nil {
		http.Error(w, fmt.Sprintf("Database error: %v", err), http.StatusInternalServerError)
		return
	}
	resp := HistoryListResponse{Entries: make([]HistoryEntryResponse, 0, len(snapshots)), Total: total, Limit: limit, Offset: offset}
	for _, s := range snapshots {
		resp.Entries = append(resp.Entries, mapSnapshotToHistoryResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleHistoryVersion returns one version with its team list.
func (h *APIHandler) HandleHistoryVersion(w http.ResponseWriter, r *http.Request) {
	if !h.requireDatabase(w) {
		return
	}
	snap, err := h.database.GetSnapshotByID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("Database error: %v", err), http.StatusInternalServerError)
		return
	}
	if snap == nil {
		http.Error(w, "Version not found", http.StatusNotFound)
		return
	}
	teams := snap.Teams
	if teams == nil {
		teams = []types.ScrapedTeam{}
	}
	writeJSON(w, http.StatusOK, VersionResponse{
		HistoryEntryResponse: mapSnapshotToHistoryResponse(snap),
		BaseURL:              snap.BaseURL,
		Teams:                teams,
	})
}

// HandleHistoryDiff diffs ?from=<id>&to=<id>, or the two most recent
// successful versions of ?association=.
func (h *APIHandler) HandleHistoryDiff(w http.ResponseWriter, r *http.Request) {
	if !h.requireDatabase(w) {
		return
	}
	q := r.URL.Query()

	var fromSnap, toSnap *database.Snapshot
	switch {
	case q.Get("from") != "" && q.Get("to") != "":
		var err error
		if fromSnap, err = h.database.GetSnapshotByID(q.Get("from")); err != nil {
			http.Error(w, fmt.Sprintf("Database error: %v", err), http.StatusInternalServerError)
			return
		}
		if toSnap, err = h.database.GetSnapshotByID(q.Get("to")); err != nil {
			http.Error(w, fmt.Sprintf("Database error: %v", err), http.StatusInternalServerError)
			return
		}
		if fromSnap == nil || toSnap == nil {
			http.Error(w, "Version not found", http.StatusNotFound)
			return
		}
		if fromSnap.Association != toSnap.Association {
			http.Error(w, "Versions belong to different associations", http.StatusBadRequest)
			return
		}
	case q.Get("association") != "":
		name := q.Get("association")
		if a, ok := h.config.Find(name); ok {
			name = a.Name
		}
		history, err := h.database.GetHistory(name, 200)
		if err != nil {
			http.Error(w, fmt.Sprintf("Database error: %v", err), http.StatusInternalServerError)
			return
		}
		var ok []*database.Snapshot
		for _, s := range history {
			if s.Status != types.StatusError {
				ok = append(ok, s)
			}
			if len(ok) == 2 {
				break
			}
		}
		if len(ok) < 2 {
			http.Error(w, "Need at least two versions to diff", http.StatusNotFound)
			return
		}
		toSnap, fromSnap = ok[0], ok[1]
	default:
		http.Error(w, "from and to, or association, query parameters are required", http.StatusBadRequest)
		return
	}

	changes := database.DiffContent(fromSnap.Content, toSnap.Content)
	resp := DiffResponse{
		Association:   toSnap.Association,
		FromID:        fromSnap.ID,
		ToID:          toSnap.ID,
		FromTimestamp: fromSnap.ScrapedAt,
		ToTimestamp:   toSnap.ScrapedAt,
		FromHash:      fromSnap.ContentHash,
		ToHash:        toSnap.ContentHash,
		Added:         nonNil(changes.Added),
		Removed:       nonNil(changes.Removed),
		Patch:         buildPatch(fromSnap.Content, toSnap.Content),
	}
	writeJSON(w, http.StatusOK, resp)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// buildPatch returns a line-mode patch in diff-match-patch text format.
func buildPatch(oldText, newText string) string {
	dmp := diffmatchpatch.New()
	text1, text2, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(text1, text2, false), lines)
	return dmp.PatchToText(dmp.PatchMake(oldText, diffs))
}

func mapSnapshotToHistoryResponse(s *database.Snapshot) HistoryEntryResponse {
	return HistoryEntryResponse{
		ID:            s.ID,
		Association:   s.Association,
		Domain:        s.Domain,
		ScrapedAt:     s.ScrapedAt,
		LastCheckedAt: s.LastCheckedAt,
		Status:        strings.ToUpper(string(s.Status)),
		TeamCount:     s.TeamCount,
		ContentHash:   s.ContentHash,
		PreviousHash:  s.PreviousHash,
		HasChanges:    s.HasChanges,
		ChangeSummary: s.ChangeSummary,
		Error:         s.ErrorMessage,
		DurationMs:    s.DurationMs,
	}
}
