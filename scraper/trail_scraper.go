// scraper/trail_scraper.go
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hikingtw/trailguard/config"
	"github.com/hikingtw/trailguard/models"
)

var (
	leadingFloatRe = regexp.MustCompile(`[\d.]+`)
	leadingIntRe   = regexp.MustCompile(`\d+`)
)

// TrailFetcher retrieves trail metadata and reviews from the upstream
// hiking catalog.
type TrailFetcher struct {
	cfg     config.SourceConfig
	client  *http.Client
	metrics *Metrics
}

// NewTrailFetcher builds a fetcher from the source config. The HTTP client
// never follows redirects: a redirect on a detail page is the authoritative
// invalid-ID signal and must reach the caller as a status code.
func NewTrailFetcher(cfg config.SourceConfig, metrics *Metrics) *TrailFetcher {
	return &TrailFetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		metrics: metrics,
	}
}

// FetchTrail retrieves the detail-page metadata and the full review set for
// one trail, the two running concurrently. A redirect or 404 on the detail
// page yields ErrTrailNotFound; any other failure is transient and returned
// as an ordinary error. Review fetching degrades to an empty set rather than
// failing the trail.
func (f *TrailFetcher) FetchTrail(ctx context.Context, trailID int) (*models.TrailDetails, []models.Review, error) {
	var (
		details   *models.TrailDetails
		detailErr error
		reviews   []models.Review
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		details, detailErr = f.fetchDetails(ctx, trailID)
	}()
	go func() {
		defer wg.Done()
		reviews = f.FetchReviews(ctx, trailID)
	}()
	wg.Wait()

	if detailErr != nil {
		return nil, nil, detailErr
	}
	return details, reviews, nil
}

func (f *TrailFetcher) fetchDetails(ctx context.Context, trailID int) (*models.TrailDetails, error) {
	doc, err := f.detailDocument(ctx, trailID)
	if err != nil {
		return nil, err
	}
	return parseTrailDetails(doc, f.cfg.BaseURL), nil
}

// detailDocument fetches and parses the trail detail page.
func (f *TrailFetcher) detailDocument(ctx context.Context, trailID int) (*goquery.Document, error) {
	url := fmt.Sprintf(f.cfg.TrailDetailURL, trailID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build detail request for trail %d: %w", trailID, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	start := time.Now()
	f.metrics.IncRequest("detail")
	res, err := f.client.Do(req)
	if err != nil {
		f.metrics.IncError(err)
		return nil, fmt.Errorf("failed to get detail page for trail %d: %w", trailID, err)
	}
	defer res.Body.Close()
	f.metrics.ObserveDuration(time.Since(start))

	switch res.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusNotFound:
		// The strongest available signal that the ID is permanently invalid.
		f.metrics.IncError(ErrTrailNotFound)
		return nil, fmt.Errorf("trail %d: %w", trailID, ErrTrailNotFound)
	case http.StatusOK:
	default:
		err := fmt.Errorf("detail page for trail %d returned status %d", trailID, res.StatusCode)
		f.metrics.IncError(err)
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		f.metrics.IncError(err)
		return nil, fmt.Errorf("failed to parse detail page for trail %d: %w", trailID, err)
	}
	return doc, nil
}

func parseTrailDetails(doc *goquery.Document, baseURL string) *models.TrailDetails {
	details := &models.TrailDetails{}

	// The hidden route_data input carries the title more reliably than the
	// heading; fall back to the h1 when it is absent.
	details.Name = attrValue(doc, "input#route_data", "data-title")
	if details.Name == nil {
		details.Name = textValue(doc, "h1.text-3xl.font-bold")
	}
	details.Description = attrValue(doc, "meta[name=description]", "content")

	if gpx := attrValue(doc, "a.btn-gpx-download", "href"); gpx != nil {
		abs := *gpx
		if !strings.HasPrefix(abs, "http") {
			abs = baseURL + abs
		}
		details.GpxURL = &abs
	}

	details.Location = definitionValue(doc, "所在縣市")
	details.TrailType = definitionValue(doc, "步道類型")
	details.Pavement = definitionValue(doc, "路面狀況")
	details.Duration = definitionValue(doc, "所需時間")
	details.Altitude = definitionValue(doc, "海拔高度")
	details.Difficulty = definitionValue(doc, "難易度")

	if distanceStr := definitionValue(doc, "里程"); distanceStr != nil {
		if m := leadingFloatRe.FindString(*distanceStr); m != "" {
			if v, err := strconv.ParseFloat(m, 64); err == nil {
				details.Distance = &v
			}
		}
	}
	if diffStr := definitionValue(doc, "高度落差"); diffStr != nil {
		if m := leadingIntRe.FindString(*diffStr); m != "" {
			if v, err := strconv.Atoi(m); err == nil {
				details.AltitudeDifference = &v
			}
		}
	}

	return details
}

// attrValue returns an attribute of the first matching element, nil when the
// element or attribute is absent.
func attrValue(doc *goquery.Document, selector, attr string) *string {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil
	}
	v, ok := sel.Attr(attr)
	if !ok {
		return nil
	}
	return &v
}

// textValue returns the trimmed text of the first matching element, nil when absent.
func textValue(doc *goquery.Document, selector string) *string {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil
	}
	v := strings.TrimSpace(sel.Text())
	return &v
}

// definitionValue looks up a dd value by its dt label in the detail page's
// dl structure.
func definitionValue(doc *goquery.Document, label string) *string {
	var out *string
	doc.Find("dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		if !strings.Contains(dt.Text(), label) {
			return true
		}
		dd := dt.NextAllFiltered("dd").First()
		if dd.Length() > 0 {
			v := strings.TrimSpace(dd.Text())
			out = &v
		}
		return false
	})
	return out
}

// totalReviewPages discovers the review page count from the detail page.
// Any failure is reported as zero pages; the caller then skips review
// fetching entirely for this pass.
func (f *TrailFetcher) totalReviewPages(ctx context.Context, trailID int) int {
	doc, err := f.detailDocument(ctx, trailID)
	if err != nil {
		slog.Warn("failed to discover review page count", "trail_id", trailID, "error", err)
		return 0
	}
	text := strings.TrimSpace(doc.Find("span#total_page").First().Text())
	pages, err := strconv.Atoi(text)
	if err != nil || pages < 0 {
		return 0
	}
	return pages
}
