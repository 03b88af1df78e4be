// handlers/api_test.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hikingtw/trailguard/models"
)

type fakeTrails struct {
	trails    map[int]*models.TrailRecord
	summaries []models.TrailSummary
	err       error
	pingErr   error
}

func (f *fakeTrails) GetTrail(_ context.Context, id int) (*models.TrailRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.trails[id], nil
}

func (f *fakeTrails) Summaries(_ context.Context) ([]models.TrailSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.summaries, nil
}

func (f *fakeTrails) Ping(_ context.Context) error { return f.pingErr }

type fakeWeather struct{ summary string }

func (f *fakeWeather) SummaryForTrail(_ context.Context, _ int) string { return f.summary }

type fakeAI struct {
	rec        models.Recommendation
	gotWeather string
	gotReviews string
	gotTrailID int
}

func (f *fakeAI) Recommend(_ context.Context, req models.RecommendationRequest, weatherSummary, reviewSummary string) models.Recommendation {
	f.gotTrailID = req.TrailID
	f.gotWeather = weatherSummary
	f.gotReviews = reviewSummary
	return f.rec
}

func strPtr(s string) *string { return &s }

func newTestServer(trails *fakeTrails, weather *fakeWeather, ai *fakeAI) *httptest.Server {
	api := &API{Trails: trails, Weather: weather, AI: ai}
	mux := http.NewServeMux()
	api.Register(mux)
	return httptest.NewServer(mux)
}

func TestHealth(t *testing.T) {
	trails := &fakeTrails{}
	srv := newTestServer(trails, &fakeWeather{}, &fakeAI{})
	defer srv.Close()

	res, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	trails.pingErr = errors.New("down")
	res2, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, res2.StatusCode)
}

func TestGetTrail(t *testing.T) {
	trails := &fakeTrails{trails: map[int]*models.TrailRecord{
		7: {ID: 7, Name: strPtr("加里山登山步道"), IsValid: true, ReviewCount: 2},
	}}
	srv := newTestServer(trails, &fakeWeather{}, &fakeAI{})
	defer srv.Close()

	res, err := http.Get(srv.URL + "/api/trails/7")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var rec models.TrailRecord
	require.NoError(t, json.NewDecoder(res.Body).Decode(&rec))
	assert.Equal(t, 7, rec.ID)
	require.NotNil(t, rec.Name)
	assert.Equal(t, "加里山登山步道", *rec.Name)
}

func TestGetTrailNotFound(t *testing.T) {
	srv := newTestServer(&fakeTrails{}, &fakeWeather{}, &fakeAI{})
	defer srv.Close()

	res, err := http.Get(srv.URL + "/api/trails/999")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestGetTrailBadID(t *testing.T) {
	srv := newTestServer(&fakeTrails{}, &fakeWeather{}, &fakeAI{})
	defer srv.Close()

	res, err := http.Get(srv.URL + "/api/trails/abc")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestListTrails(t *testing.T) {
	trails := &fakeTrails{summaries: []models.TrailSummary{
		{ID: 1, Name: "trail one", ReviewCount: 3},
		{ID: 2, Name: "trail two", ReviewCount: 0},
	}}
	srv := newTestServer(trails, &fakeWeather{}, &fakeAI{})
	defer srv.Close()

	res, err := http.Get(srv.URL + "/api/trails")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got []models.TrailSummary
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Len(t, got, 2)
}

func TestExportTrailsCSV(t *testing.T) {
	trails := &fakeTrails{summaries: []models.TrailSummary{
		{ID: 1, Name: "trail one", Difficulty: "中級", ReviewCount: 3},
	}}
	srv := newTestServer(trails, &fakeWeather{}, &fakeAI{})
	defer srv.Close()

	res, err := http.Get(srv.URL + "/api/trails/export")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", res.Header.Get("Content-Type"))
	assert.Contains(t, res.Header.Get("Content-Disposition"), "trails.csv")
}

func TestRecommendation(t *testing.T) {
	trails := &fakeTrails{trails: map[int]*models.TrailRecord{
		7: {ID: 7, IsValid: true, Reviews: []models.Review{{UserID: "101", Content: "nice"}}},
	}}
	ai := &fakeAI{rec: models.Recommendation{
		SafetyScore: 4, Recommendation: "Go early.", Reasoning: "Stable weather.", DataSource: "Claude Real-time",
	}}
	srv := newTestServer(trails, &fakeWeather{summary: "clear skies"}, ai)
	defer srv.Close()

	body := `{"trail_id": 7, "user_path_desc": "beginner, solo"}`
	res, err := http.Post(srv.URL+"/api/recommendation", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var rec models.Recommendation
	require.NoError(t, json.NewDecoder(res.Body).Decode(&rec))
	assert.Equal(t, 4, rec.SafetyScore)

	assert.Equal(t, 7, ai.gotTrailID)
	assert.Equal(t, "clear skies", ai.gotWeather)
	assert.Contains(t, ai.gotReviews, "nice")
}

func TestRecommendationUnknownTrail(t *testing.T) {
	srv := newTestServer(&fakeTrails{}, &fakeWeather{}, &fakeAI{})
	defer srv.Close()

	res, err := http.Post(srv.URL+"/api/recommendation", "application/json",
		strings.NewReader(`{"trail_id": 999}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestRecommendationBadRequest(t *testing.T) {
	srv := newTestServer(&fakeTrails{}, &fakeWeather{}, &fakeAI{})
	defer srv.Close()

	for _, body := range []string{`not json`, `{"trail_id": 0}`, `{"trail_id": -3}`} {
		res, err := http.Post(srv.URL+"/api/recommendation", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusBadRequest, res.StatusCode, "body: %s", body)
	}
}

func TestRecommendationDegradedStillOK(t *testing.T) {
	trails := &fakeTrails{trails: map[int]*models.TrailRecord{7: {ID: 7, IsValid: true}}}
	ai := &fakeAI{rec: models.Recommendation{
		SafetyScore: 1, Recommendation: "AI service unavailable.", DataSource: "Service Error",
	}}
	srv := newTestServer(trails, &fakeWeather{summary: "CWA data unavailable for station C0AK30."}, ai)
	defer srv.Close()

	res, err := http.Post(srv.URL+"/api/recommendation", "application/json",
		strings.NewReader(`{"trail_id": 7}`))
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode, "upstream failures must not surface as 5xx")
	var rec models.Recommendation
	require.NoError(t, json.NewDecoder(res.Body).Decode(&rec))
	assert.Equal(t, "Service Error", rec.DataSource)
}
