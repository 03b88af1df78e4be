// handlers/trail_handler.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/jszwec/csvutil"
)

// ListTrails returns summaries of every valid trail.
func (a *API) ListTrails(w http.ResponseWriter, r *http.Request) {
	summaries, err := a.Trails.Summaries(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list trails: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, summaries)
}

// GetTrail returns the full stored record for one trail ID.
func (a *API) GetTrail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "trail id must be a positive integer")
		return
	}

	trail, err := a.Trails.GetTrail(r.Context(), id)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load trail %d: %v", id, err))
		return
	}
	if trail == nil {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("no data for trail id %d; run the scraper first", id))
		return
	}
	respondWithJSON(w, http.StatusOK, trail)
}

// ExportTrails streams the valid-trail summaries as a CSV attachment.
func (a *API) ExportTrails(w http.ResponseWriter, r *http.Request) {
	summaries, err := a.Trails.Summaries(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list trails: %v", err))
		return
	}

	data, err := csvutil.Marshal(summaries)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("failed to encode CSV: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="trails.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
