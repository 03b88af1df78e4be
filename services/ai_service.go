// services/ai_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hikingtw/trailguard/config"
	"github.com/hikingtw/trailguard/models"
)

const systemInstruction = "You are a mountain-safety expert. Based on the " +
	"provided data, produce a structured JSON safety assessment for a " +
	"beginner hiker. Respond with a single JSON object and nothing else."

const liveDataSource = "Claude Real-time"

// messageCreator is the slice of the Anthropic client the service needs;
// tests substitute a fake.
type messageCreator interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AIService produces trail safety recommendations. It never surfaces an
// upstream failure: every error path degrades to a well-formed response with
// data_source "Service Error".
type AIService struct {
	messages messageCreator
	model    anthropic.Model
}

// NewAIService builds the service from config.
func NewAIService(cfg config.AIConfig) *AIService {
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return &AIService{
		messages: &client.Messages,
		model:    anthropic.Model(cfg.Model),
	}
}

// Recommend asks the model for a safety assessment of one trail given the
// weather and review context.
func (s *AIService) Recommend(ctx context.Context, req models.RecommendationRequest, weatherSummary, reviewSummary string) models.Recommendation {
	prompt := buildPrompt(req, weatherSummary, reviewSummary)

	msg, err := s.messages.New(ctx, anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: 1024,
		System:    []anthropic.TextBlockParam{{Text: systemInstruction}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		slog.Error("AI request failed", "trail_id", req.TrailID, "error", err)
		return degradedRecommendation()
	}

	var raw string
	for _, block := range msg.Content {
		if block.Type == "text" {
			raw = block.Text
			break
		}
	}

	rec, err := parseRecommendation(raw)
	if err != nil {
		slog.Error("AI response could not be parsed", "trail_id", req.TrailID, "error", err)
		return degradedRecommendation()
	}

	rec.DataSource = liveDataSource
	slog.Info("AI recommendation produced", "trail_id", req.TrailID, "safety_score", rec.SafetyScore)
	return rec
}

func buildPrompt(req models.RecommendationRequest, weatherSummary, reviewSummary string) string {
	return fmt.Sprintf(`You are advising a beginner hiker on trail safety.

User request:
- Trail ID: %d
- Context: %s

Current weather data (CWA):
---
%s
---

Recent trail reviews:
---
%s
---

Rate the trail's safety from 1 (extremely dangerous) to 5 (very safe) and give
a concise recommendation with reasoning. Respond with exactly one JSON object:
{"safety_score": <1-5>, "recommendation": "<one sentence>", "reasoning": "<short paragraph>"}`,
		req.TrailID, req.UserPathDesc, weatherSummary, reviewSummary)
}

// parseRecommendation extracts and validates the JSON object in the model's
// reply, tolerating surrounding prose or code fences.
func parseRecommendation(raw string) (models.Recommendation, error) {
	var rec models.Recommendation

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return rec, fmt.Errorf("no JSON object in model output")
	}

	if err := json.Unmarshal([]byte(raw[start:end+1]), &rec); err != nil {
		return rec, fmt.Errorf("failed to unmarshal model output: %w", err)
	}
	if rec.SafetyScore < 1 || rec.SafetyScore > 5 {
		return rec, fmt.Errorf("safety_score %d out of range", rec.SafetyScore)
	}
	if rec.Recommendation == "" {
		return rec, fmt.Errorf("model output missing recommendation")
	}
	return rec, nil
}

// degradedRecommendation is the fixed response returned for any AI failure.
func degradedRecommendation() models.Recommendation {
	return models.Recommendation{
		SafetyScore:    1,
		Recommendation: "AI service unavailable.",
		Reasoning:      "The AI service could not be reached or returned malformed output.",
		DataSource:     "Service Error",
	}
}

// ReviewDigest renders stored reviews as the one-line-per-review block fed to
// the prompt.
func ReviewDigest(reviews []models.Review) string {
	if len(reviews) == 0 {
		return "No reviews available."
	}
	lines := make([]string, 0, len(reviews))
	for _, r := range reviews {
		date := "date unknown"
		if r.ReviewDate != nil {
			date = r.ReviewDate.Format("2006-01-02")
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", date, r.Content))
	}
	return strings.Join(lines, "\n")
}
