// scraper/review_fetcher.go
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hikingtw/trailguard/models"
)

var memberIDRe = regexp.MustCompile(`member=(\d+)`)

// reviewDateLayouts covers the datetime attribute formats the upstream site
// has been seen emitting.
var reviewDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FetchReviews retrieves and parses every review page for a trail. The page
// count is discovered from the detail page first; zero pages short-circuits
// without any page fetch. All pages are fetched concurrently, a failed page
// contributes nothing, and the fragments are concatenated in page order and
// parsed once. Failures degrade to an empty result rather than an error:
// reviews are best-effort by contract.
func (f *TrailFetcher) FetchReviews(ctx context.Context, trailID int) []models.Review {
	totalPages := f.totalReviewPages(ctx, trailID)
	if totalPages == 0 {
		return nil
	}

	fragments := make([]string, totalPages)
	var wg sync.WaitGroup
	for page := 1; page <= totalPages; page++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			fragments[page-1] = f.fetchReviewPage(ctx, trailID, page)
		}(page)
	}
	wg.Wait()

	fullHTML := strings.Join(fragments, "")
	if strings.TrimSpace(fullHTML) == "" {
		return nil
	}

	reviews := parseReviews(fullHTML)
	f.metrics.AddReviewsParsed(len(reviews))
	return reviews
}

// fetchReviewPage retrieves one page of review markup from the JSON endpoint.
// Any failure yields an empty contribution for that page only.
func (f *TrailFetcher) fetchReviewPage(ctx context.Context, trailID, page int) string {
	url := fmt.Sprintf(f.cfg.ReviewPageURL, trailID, page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Warn("failed to build review page request", "trail_id", trailID, "page", page, "error", err)
		return ""
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	start := time.Now()
	f.metrics.IncRequest("reviews")
	res, err := f.client.Do(req)
	if err != nil {
		f.metrics.IncError(err)
		slog.Warn("review page request failed", "trail_id", trailID, "page", page, "error", err)
		return ""
	}
	defer res.Body.Close()
	f.metrics.ObserveDuration(time.Since(start))

	if res.StatusCode != http.StatusOK {
		err := fmt.Errorf("review page returned status %d", res.StatusCode)
		f.metrics.IncError(err)
		slog.Warn("review page request failed", "trail_id", trailID, "page", page, "status", res.StatusCode)
		return ""
	}

	var payload struct {
		Status string `json:"status"`
		Data   struct {
			View string `json:"view"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		f.metrics.IncError(err)
		slog.Warn("failed to decode review page payload", "trail_id", trailID, "page", page, "error", err)
		return ""
	}
	if payload.Status != "success" {
		return ""
	}
	return payload.Data.View
}

// parseReviews extracts review items from concatenated review-page markup.
// Items without a member link or without content are skipped.
func parseReviews(html string) []models.Review {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		slog.Warn("failed to parse review markup", "error", err)
		return nil
	}

	var reviews []models.Review
	doc.Find("li.flex").Each(func(_ int, item *goquery.Selection) {
		userLink := item.Find(`a[href*="q=member"]`).First()
		if userLink.Length() == 0 {
			return
		}

		href, _ := userLink.Attr("href")
		userID := "unknown"
		if m := memberIDRe.FindStringSubmatch(href); m != nil {
			userID = m[1]
		}
		username := strings.TrimSpace(userLink.Text())

		var reviewDate *time.Time
		if dt, ok := item.Find("time.text-sm").First().Attr("datetime"); ok {
			reviewDate = parseReviewDate(dt)
		}

		content := strings.TrimSpace(item.Find("p.leading-relaxed").First().Text())

		if userID == "unknown" || content == "" {
			return
		}
		reviews = append(reviews, models.Review{
			UserID:     userID,
			Username:   username,
			ReviewDate: reviewDate,
			Content:    content,
		})
	})
	return reviews
}

// parseReviewDate tries the known datetime layouts; nil when none match.
// A missing date is a valid state, not an error.
func parseReviewDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range reviewDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
