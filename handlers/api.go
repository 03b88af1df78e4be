// handlers/api.go
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hikingtw/trailguard/models"
)

// TrailReader is the read-side store surface the API needs.
type TrailReader interface {
	GetTrail(ctx context.Context, id int) (*models.TrailRecord, error)
	Summaries(ctx context.Context) ([]models.TrailSummary, error)
	Ping(ctx context.Context) error
}

// WeatherSummarizer produces the weather block for the recommendation prompt.
type WeatherSummarizer interface {
	SummaryForTrail(ctx context.Context, trailID int) string
}

// Recommender produces the AI safety assessment. Implementations never return
// an error; failures arrive as a degraded Recommendation.
type Recommender interface {
	Recommend(ctx context.Context, req models.RecommendationRequest, weatherSummary, reviewSummary string) models.Recommendation
}

// API bundles the HTTP handlers and their collaborators.
type API struct {
	Trails  TrailReader
	Weather WeatherSummarizer
	AI      Recommender
}

// Register attaches all routes to the mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", a.Health)
	mux.HandleFunc("POST /api/recommendation", a.Recommend)
	mux.HandleFunc("GET /api/trails", a.ListTrails)
	mux.HandleFunc("GET /api/trails/export", a.ExportTrails)
	mux.HandleFunc("GET /api/trails/{id}", a.GetTrail)
}

// Health reports service and database status.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	if err := a.Trails.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "database connection error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondWithJSON writes payload as a JSON response.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"failed to marshal JSON response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithError writes a JSON error body.
func respondWithError(w http.ResponseWriter, code int, message string) {
	slog.Warn("API error response", "code", code, "message", message)
	respondWithJSON(w, code, map[string]string{"error": message})
}
