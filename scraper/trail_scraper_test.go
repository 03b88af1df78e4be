// scraper/trail_scraper_test.go
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hikingtw/trailguard/config"
)

const detailPageHTML = `<!DOCTYPE html>
<html>
<body>
  <input id="route_data" data-title="加里山登山步道">
  <meta name="description" content="A classic mid-level hike with cedar forest.">
  <h1 class="text-3xl font-bold">加里山登山步道 (heading)</h1>
  <a class="btn-gpx-download" href="/download/gpx/77">GPX</a>
  <dl>
    <dt>所在縣市</dt><dd>苗栗縣南庄鄉</dd>
    <dt>步道類型</dt><dd>郊山步道</dd>
    <dt>路面狀況</dt><dd>土徑、樹根</dd>
    <dt>里程</dt><dd>6.3 公里</dd>
    <dt>所需時間</dt><dd>6 小時</dd>
    <dt>海拔高度</dt><dd>1220~2220公尺</dd>
    <dt>高度落差</dt><dd>1000 公尺</dd>
    <dt>難易度</dt><dd>中級</dd>
  </dl>
  <span id="total_page">0</span>
</body>
</html>`

func testSourceConfig() config.SourceConfig {
	return config.SourceConfig{
		BaseURL:        "https://hiking.example.test",
		TrailDetailURL: "https://hiking.example.test/index.php?q=trail&act=detail&id=%d",
		ReviewPageURL:  "https://hiking.example.test/trail/ajax/load_reviews?id=%d&page=%d",
		UserAgent:      "trailguard-test",
		TimeoutStr:     "5s",
		Timeout:        5 * time.Second,
	}
}

func newTestFetcher(t *testing.T) *TrailFetcher {
	t.Helper()
	f := NewTrailFetcher(testSourceConfig(), nil)
	httpmock.ActivateNonDefault(f.client)
	t.Cleanup(httpmock.DeactivateAndReset)
	return f
}

func detailURL(trailID int) string {
	return fmt.Sprintf(testSourceConfig().TrailDetailURL, trailID)
}

func TestFetchTrailRedirectMeansNotFound(t *testing.T) {
	f := newTestFetcher(t)
	httpmock.RegisterResponder("GET", detailURL(42),
		httpmock.NewStringResponder(http.StatusFound, ""))

	_, _, err := f.FetchTrail(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestFetchTrail404MeansNotFound(t *testing.T) {
	f := newTestFetcher(t)
	httpmock.RegisterResponder("GET", detailURL(42),
		httpmock.NewStringResponder(http.StatusNotFound, "gone"))

	_, _, err := f.FetchTrail(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestFetchTrailServerErrorIsTransient(t *testing.T) {
	f := newTestFetcher(t)
	httpmock.RegisterResponder("GET", detailURL(42),
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	_, _, err := f.FetchTrail(context.Background(), 42)
	require.Error(t, err)
	assert.False(t, IsNotFound(err), "a 500 must never be treated as a permanent not-found")
}

func TestFetchTrailParsesDetailPage(t *testing.T) {
	f := newTestFetcher(t)
	httpmock.RegisterResponder("GET", detailURL(77),
		httpmock.NewStringResponder(http.StatusOK, detailPageHTML))

	details, reviews, err := f.FetchTrail(context.Background(), 77)
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Empty(t, reviews)

	require.NotNil(t, details.Name)
	assert.Equal(t, "加里山登山步道", *details.Name)
	require.NotNil(t, details.Location)
	assert.Equal(t, "苗栗縣南庄鄉", *details.Location)
	require.NotNil(t, details.Difficulty)
	assert.Equal(t, "中級", *details.Difficulty)
	require.NotNil(t, details.Distance)
	assert.InDelta(t, 6.3, *details.Distance, 0.001)
	require.NotNil(t, details.AltitudeDifference)
	assert.Equal(t, 1000, *details.AltitudeDifference)
	require.NotNil(t, details.GpxURL)
	assert.Equal(t, "https://hiking.example.test/download/gpx/77", *details.GpxURL)
}

func TestParseTrailDetailsFallsBackToHeading(t *testing.T) {
	html := `<html><body>
	  <h1 class="text-3xl font-bold"> 玉山主峰線 </h1>
	  <dl><dt>難易度</dt><dd>高級</dd></dl>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	details := parseTrailDetails(doc, "https://hiking.example.test")
	require.NotNil(t, details.Name)
	assert.Equal(t, "玉山主峰線", *details.Name)
	assert.Nil(t, details.GpxURL)
	assert.Nil(t, details.Distance)
}

func TestParseTrailDetailsMissingFieldsStayNil(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body></body></html>"))
	require.NoError(t, err)

	details := parseTrailDetails(doc, "https://hiking.example.test")
	assert.Nil(t, details.Name)
	assert.Nil(t, details.Location)
	assert.Nil(t, details.Distance)
	assert.Nil(t, details.AltitudeDifference)
}

func TestTotalReviewPagesFailureIsZero(t *testing.T) {
	f := newTestFetcher(t)
	httpmock.RegisterResponder("GET", detailURL(9),
		httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	assert.Equal(t, 0, f.totalReviewPages(context.Background(), 9))
}

func TestTotalReviewPagesUnparsableIsZero(t *testing.T) {
	f := newTestFetcher(t)
	httpmock.RegisterResponder("GET", detailURL(9),
		httpmock.NewStringResponder(http.StatusOK,
			`<html><body><span id="total_page">many</span></body></html>`))

	assert.Equal(t, 0, f.totalReviewPages(context.Background(), 9))
}
