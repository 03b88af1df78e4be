// handlers/recommendation_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hikingtw/trailguard/models"
	"github.com/hikingtw/trailguard/services"
)

// Recommend produces an AI safety recommendation for a stored trail.
//
// The only error surfaced to the caller is "this trail has no stored data":
// weather or AI failures always degrade into a well-formed 200 response.
func (a *API) Recommend(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TrailID <= 0 {
		respondWithError(w, http.StatusBadRequest, "trail_id must be a positive integer")
		return
	}

	trail, err := a.Trails.GetTrail(r.Context(), req.TrailID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load trail %d: %v", req.TrailID, err))
		return
	}
	if trail == nil {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("no data for trail id %d; run the scraper first", req.TrailID))
		return
	}

	weatherSummary := a.Weather.SummaryForTrail(r.Context(), req.TrailID)
	reviewSummary := services.ReviewDigest(trail.Reviews)

	recommendation := a.AI.Recommend(r.Context(), req, weatherSummary, reviewSummary)
	respondWithJSON(w, http.StatusOK, recommendation)
}
