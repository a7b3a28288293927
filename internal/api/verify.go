package api

import (
	"encoding/json"
	"math/rand"
	"net/http"

	"github.com/kareemsasa3/rinkcal/internal/export"
	"github.com/kareemsasa3/rinkcal/internal/verify"
)

const maxVerifyUpload = 5 << 20

// VerifyEvent is one line of the verification stream.
type VerifyEvent struct {
	Type             string          `json:"type"` // start, result, complete or error
	TotalEntries     int             `json:"total_entries,omitempty"`
	TotalSamples     int             `json:"total_samples,omitempty"`
	AssociationCount int             `json:"association_count,omitempty"`
	Current          int             `json:"current,omitempty"`
	Total            int             `json:"total,omitempty"`
	Result           *verify.Result  `json:"result,omitempty"`
	Summary          *verify.Summary `json:"summary,omitempty"`
	Message          string          `json:"message,omitempty"`
}

// SetVerifier enables POST /api/verify. newVerifier is called once per
// request, so each upload is checked against fresh pages.
func (h *APIHandler) SetVerifier(newVerifier func() *verify.Verifier) { h.newVerifier = newVerifier }

// HandleVerify reads a team CSV from the body, samples it (?all=true checks
// every row) and streams newline-delimited VerifyEvents as checks complete.
func (h *APIHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if h.newVerifier == nil {
		http.Error(w, "Verification not available", http.StatusServiceUnavailable)
		return
	}
	teams, err := export.ReadTeamsCSV(http.MaxBytesReader(w, r.Body, maxVerifyUpload))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	teams = verify.Eligible(teams)
	if len(teams) == 0 {
		http.Error(w, "No teams with calendar URLs in upload", http.StatusBadRequest)
		return
	}

	sample := teams
	if r.URL.Query().Get("all") != "true" {
		sample = verify.Sample(teams, 0.05, 50, rand.New(rand.NewSource(h.now().UnixNano())))
	}
	assocs := make(map[string]bool)
	for _, t := range teams {
		assocs[t.AssociationName] = true
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	send := func(e VerifyEvent) {
		if err := enc.Encode(e); err != nil {
			h.logger.Debug("verify stream write failed: %v", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	send(VerifyEvent{Type: "start", TotalEntries: len(teams), TotalSamples: len(sample), AssociationCount: len(assocs)})
	_, summary, err := h.newVerifier().Run(r.Context(), sample, func(i, total int, res verify.Result) {
		send(VerifyEvent{Type: "result", Current: i, Total: total, Result: &res})
	})
	if err != nil {
		send(VerifyEvent{Type: "error", Message: err.Error()})
		return
	}
	h.logger.Info("Verified %d calendars: %d valid, %d empty, %d errors", summary.Total, summary.Valid, summary.Empty, summary.Errors)
	send(VerifyEvent{Type: "complete", Summary: &summary})
}
