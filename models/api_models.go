// models/api_models.go
package models

// RecommendationRequest is the expected JSON body for the /api/recommendation endpoint.
type RecommendationRequest struct {
	TrailID      int    `json:"trail_id"`
	UserPathDesc string `json:"user_path_desc"` // free-text context, e.g. "solo, light pack, starting 2pm"
}

// Recommendation is the structured result of an AI safety assessment.
// SafetyScore runs from 1 (extremely dangerous) to 5 (very safe).
type Recommendation struct {
	SafetyScore    int    `json:"safety_score"`
	Recommendation string `json:"recommendation"`
	Reasoning      string `json:"reasoning"`
	DataSource     string `json:"data_source"`
}
