// services/sync_service.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hikingtw/trailguard/config"
	"github.com/hikingtw/trailguard/models"
	"github.com/hikingtw/trailguard/scraper"
)

// TrailStore is the persistence surface the orchestrator drives.
type TrailStore interface {
	GetTrail(ctx context.Context, id int) (*models.TrailRecord, error)
	UpsertTrail(ctx context.Context, rec *models.TrailRecord) error
	MarkInvalid(ctx context.Context, id int) error
	IsValid(ctx context.Context, id int) (bool, error)
	MaxValidID(ctx context.Context) (int, error)
	AllValidIDs(ctx context.Context) ([]int, error)
	LastScrapedAt(ctx context.Context, id int) (*time.Time, error)
	AppendNewReviews(ctx context.Context, id int, candidates []models.Review, scrapedAt time.Time) error
}

// TrailSource fetches trail data from the upstream site.
type TrailSource interface {
	FetchTrail(ctx context.Context, id int) (*models.TrailDetails, []models.Review, error)
	FetchReviews(ctx context.Context, id int) []models.Review
}

// SyncService drives full and incremental catalog scans. Scans are strictly
// sequential across trail IDs with a pacing delay between them; the delay
// throttles load on the upstream site and is policy, not tuning.
type SyncService struct {
	store        TrailStore
	source       TrailSource
	metrics      *scraper.Metrics
	paceDelay    time.Duration
	staleness    time.Duration
	failureLimit int
	now          func() time.Time
}

// NewSyncService wires the orchestrator. metrics may be nil.
func NewSyncService(store TrailStore, source TrailSource, cfg config.SyncConfig, metrics *scraper.Metrics) *SyncService {
	return &SyncService{
		store:        store,
		source:       source,
		metrics:      metrics,
		paceDelay:    cfg.PaceDelay,
		staleness:    cfg.StalenessWindow,
		failureLimit: cfg.ProbeFailureLimit,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ScrapeAndSave fetches one trail and persists the outcome: a valid record on
// success, an invalid marker on a definitive upstream not-found. Transient
// failures are returned to the caller and leave no trace in the store, so the
// ID stays eligible for a future run.
func (s *SyncService) ScrapeAndSave(ctx context.Context, trailID int) error {
	slog.Info("scraping trail", "trail_id", trailID)

	details, reviews, err := s.source.FetchTrail(ctx, trailID)
	if scraper.IsNotFound(err) {
		slog.Warn("trail does not exist upstream, marking invalid", "trail_id", trailID)
		return s.store.MarkInvalid(ctx, trailID)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch trail %d: %w", trailID, err)
	}

	rec := buildRecord(trailID, details, reviews, s.now())
	if err := s.store.UpsertTrail(ctx, rec); err != nil {
		return err
	}
	s.metrics.IncTrailsSaved()
	slog.Info("trail saved", "trail_id", trailID, "reviews", rec.ReviewCount)
	return nil
}

func buildRecord(trailID int, details *models.TrailDetails, reviews []models.Review, scrapedAt time.Time) *models.TrailRecord {
	return &models.TrailRecord{
		ID:                 trailID,
		Name:               details.Name,
		Description:        details.Description,
		Location:           details.Location,
		Difficulty:         details.Difficulty,
		TrailType:          details.TrailType,
		Distance:           details.Distance,
		Altitude:           details.Altitude,
		AltitudeDifference: details.AltitudeDifference,
		Duration:           details.Duration,
		Pavement:           details.Pavement,
		GpxURL:             details.GpxURL,
		LastScrapedAt:      scrapedAt,
		Reviews:            reviews,
		ReviewCount:        len(reviews),
		IsValid:            true,
	}
}

// RunFullScan re-fetches every ID in [startID, endID], skipping IDs already
// known invalid. A transient failure is logged and the scan moves on.
func (s *SyncService) RunFullScan(ctx context.Context, startID, endID int) error {
	slog.Info("full scan started", "start_id", startID, "end_id", endID)

	for trailID := startID; trailID <= endID; trailID++ {
		valid, err := s.store.IsValid(ctx, trailID)
		if err != nil {
			return err
		}
		if !valid {
			slog.Info("skipping known invalid trail", "trail_id", trailID)
			continue
		}

		if err := s.ScrapeAndSave(ctx, trailID); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("failed to process trail", "trail_id", trailID, "error", err)
		}
		if err := s.pause(ctx); err != nil {
			return err
		}
	}

	slog.Info("full scan finished", "start_id", startID, "end_id", endID)
	return nil
}

// RunIncrementalScan probes for new IDs above the current frontier, then
// refreshes reviews for stale existing records.
func (s *SyncService) RunIncrementalScan(ctx context.Context, probeLimit int) error {
	if err := s.probeNewTrails(ctx, probeLimit); err != nil {
		return err
	}
	return s.refreshStaleTrails(ctx)
}

// probeNewTrails scans the probeLimit IDs above the highest known valid ID.
// A run of consecutive IDs that fail to produce a stored valid record stops
// the phase early: the working hypothesis is that the catalog has run out.
func (s *SyncService) probeNewTrails(ctx context.Context, probeLimit int) error {
	base, err := s.store.MaxValidID(ctx)
	if err != nil {
		return err
	}
	slog.Info("probing for new trails", "frontier", base, "probe_limit", probeLimit)

	consecutiveFailures := 0
	for trailID := base + 1; trailID <= base+probeLimit; trailID++ {
		valid, err := s.store.IsValid(ctx, trailID)
		if err != nil {
			return err
		}
		if !valid {
			slog.Info("skipping known invalid trail", "trail_id", trailID)
			continue
		}

		if err := s.ScrapeAndSave(ctx, trailID); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("failed to process trail", "trail_id", trailID, "error", err)
		}

		rec, err := s.store.GetTrail(ctx, trailID)
		if err != nil {
			return err
		}
		if rec != nil && rec.IsValid {
			consecutiveFailures = 0
		} else {
			consecutiveFailures++
		}
		if consecutiveFailures >= s.failureLimit {
			slog.Info("consecutive probe failures reached limit, ending probe phase",
				"limit", s.failureLimit, "last_trail_id", trailID)
			break
		}

		if err := s.pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

// refreshStaleTrails re-fetches reviews for every valid trail whose last
// scrape is older than the staleness window. Even zero new reviews advances
// last_scraped_at, so the window keeps moving. A failure on one trail never
// aborts the rest.
func (s *SyncService) refreshStaleTrails(ctx context.Context) error {
	ids, err := s.store.AllValidIDs(ctx)
	if err != nil {
		return err
	}
	slog.Info("refreshing reviews for existing trails", "candidates", len(ids))

	for _, trailID := range ids {
		last, err := s.store.LastScrapedAt(ctx, trailID)
		if err != nil {
			slog.Error("failed to read last scrape time", "trail_id", trailID, "error", err)
			continue
		}
		if last != nil && s.now().Sub(*last) < s.staleness {
			slog.Debug("skipping recently scraped trail", "trail_id", trailID)
			continue
		}

		if err := s.refreshReviews(ctx, trailID); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("failed to refresh reviews", "trail_id", trailID, "error", err)
		}
		if err := s.pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *SyncService) refreshReviews(ctx context.Context, trailID int) error {
	slog.Info("refreshing reviews", "trail_id", trailID)
	reviews := s.source.FetchReviews(ctx, trailID)
	// An empty fetch still records "we checked, nothing new".
	return s.store.AppendNewReviews(ctx, trailID, reviews, s.now())
}

// pause inserts the per-ID pacing delay, honoring cancellation.
func (s *SyncService) pause(ctx context.Context) error {
	if s.paceDelay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.paceDelay):
		return nil
	}
}
