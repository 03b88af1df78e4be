// services/ai_service_test.go
package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hikingtw/trailguard/config"
	"github.com/hikingtw/trailguard/models"
)

// fakeMessages scripts one Messages.New outcome and captures the params.
type fakeMessages struct {
	reply  string
	err    error
	params anthropic.MessageNewParams
}

func (f *fakeMessages) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{{Type: "text", Text: f.reply}},
	}, nil
}

func newTestAI(fake *fakeMessages) *AIService {
	return &AIService{messages: fake, model: anthropic.Model("claude-3-5-haiku-latest")}
}

func TestNewAIServiceWiresClient(t *testing.T) {
	svc := NewAIService(config.AIConfig{APIKey: "test-key", Model: "claude-3-5-haiku-latest"})
	require.NotNil(t, svc.messages)
	assert.Equal(t, anthropic.Model("claude-3-5-haiku-latest"), svc.model)
}

func testRecommendationRequest() models.RecommendationRequest {
	return models.RecommendationRequest{TrailID: 77, UserPathDesc: "First-time hiker, going up Saturday morning."}
}

func TestRecommendParsesModelReply(t *testing.T) {
	fake := &fakeMessages{reply: `{"safety_score": 4, "recommendation": "Go, but start early.", "reasoning": "Weather is stable and reviews report a clear path."}`}
	svc := newTestAI(fake)

	rec := svc.Recommend(context.Background(), testRecommendationRequest(), "clear skies", "no complaints")

	assert.Equal(t, 4, rec.SafetyScore)
	assert.Equal(t, "Go, but start early.", rec.Recommendation)
	assert.Equal(t, "Claude Real-time", rec.DataSource)
}

func TestRecommendToleratesSurroundingProse(t *testing.T) {
	fake := &fakeMessages{reply: "Here is my assessment:\n```json\n{\"safety_score\": 2, \"recommendation\": \"Postpone the hike.\", \"reasoning\": \"Heavy rain in the past 24 hours.\"}\n```\nStay safe!"}
	svc := newTestAI(fake)

	rec := svc.Recommend(context.Background(), testRecommendationRequest(), "heavy rain", "muddy")

	assert.Equal(t, 2, rec.SafetyScore)
	assert.Equal(t, "Claude Real-time", rec.DataSource)
}

func TestRecommendDegradesOnAPIError(t *testing.T) {
	fake := &fakeMessages{err: errors.New("overloaded")}
	svc := newTestAI(fake)

	rec := svc.Recommend(context.Background(), testRecommendationRequest(), "", "")

	assert.Equal(t, 1, rec.SafetyScore)
	assert.Equal(t, "Service Error", rec.DataSource)
}

func TestRecommendDegradesOnGarbageReply(t *testing.T) {
	fake := &fakeMessages{reply: "I cannot assess this trail."}
	svc := newTestAI(fake)

	rec := svc.Recommend(context.Background(), testRecommendationRequest(), "", "")

	assert.Equal(t, 1, rec.SafetyScore)
	assert.Equal(t, "Service Error", rec.DataSource)
}

func TestRecommendPromptCarriesContext(t *testing.T) {
	fake := &fakeMessages{reply: `{"safety_score": 3, "recommendation": "ok", "reasoning": "fine"}`}
	svc := newTestAI(fake)

	svc.Recommend(context.Background(), testRecommendationRequest(), "WEATHER-BLOCK", "REVIEW-BLOCK")

	require.Len(t, fake.params.Messages, 1)
	prompt := fake.params.Messages[0].Content[0].OfText.Text
	assert.Contains(t, prompt, "Trail ID: 77")
	assert.Contains(t, prompt, "WEATHER-BLOCK")
	assert.Contains(t, prompt, "REVIEW-BLOCK")
	assert.Contains(t, prompt, "First-time hiker")
}

func TestParseRecommendationValidation(t *testing.T) {
	_, err := parseRecommendation(`{"safety_score": 9, "recommendation": "x", "reasoning": "y"}`)
	assert.Error(t, err, "score out of the 1-5 range must be rejected")

	_, err = parseRecommendation(`{"safety_score": 3, "recommendation": "", "reasoning": "y"}`)
	assert.Error(t, err, "an empty recommendation must be rejected")

	_, err = parseRecommendation("no braces here")
	assert.Error(t, err)

	rec, err := parseRecommendation(`{"safety_score": 5, "recommendation": "go", "reasoning": "clear"}`)
	require.NoError(t, err)
	assert.Equal(t, 5, rec.SafetyScore)
}

func TestReviewDigest(t *testing.T) {
	assert.Equal(t, "No reviews available.", ReviewDigest(nil))

	when := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	digest := ReviewDigest([]models.Review{
		{UserID: "101", ReviewDate: &when, Content: "Great views."},
		{UserID: "202", Content: "Muddy."},
	})
	assert.Equal(t, "[2025-05-01] Great views.\n[date unknown] Muddy.", digest)
}
