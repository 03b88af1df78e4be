// database/trail_store.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hikingtw/trailguard/models"
	"github.com/hikingtw/trailguard/reconcile"
)

// GetTrail returns the stored record for a trail ID, reviews included,
// or (nil, nil) when no record exists.
func (s *Store) GetTrail(ctx context.Context, id int) (*models.TrailRecord, error) {
	rec := models.TrailRecord{ID: id}
	var (
		name, description, location, difficulty sql.NullString
		trailType, altitude, duration, pavement sql.NullString
		gpxURL                                  sql.NullString
		distance                                sql.NullFloat64
		altitudeDiff                            sql.NullInt64
	)

	row := s.db.QueryRowContext(ctx, `
		SELECT name, description, location, difficulty, trail_type, distance,
		       altitude, altitude_difference, duration, pavement, gpx_url,
		       last_scraped_at, review_count, is_valid
		FROM trails
		WHERE id = ?
	`, id)
	err := row.Scan(
		&name, &description, &location, &difficulty, &trailType, &distance,
		&altitude, &altitudeDiff, &duration, &pavement, &gpxURL,
		&rec.LastScrapedAt, &rec.ReviewCount, &rec.IsValid,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trail %d: %w", id, err)
	}

	rec.Name = strPtr(name)
	rec.Description = strPtr(description)
	rec.Location = strPtr(location)
	rec.Difficulty = strPtr(difficulty)
	rec.TrailType = strPtr(trailType)
	rec.Altitude = strPtr(altitude)
	rec.Duration = strPtr(duration)
	rec.Pavement = strPtr(pavement)
	rec.GpxURL = strPtr(gpxURL)
	if distance.Valid {
		rec.Distance = &distance.Float64
	}
	if altitudeDiff.Valid {
		v := int(altitudeDiff.Int64)
		rec.AltitudeDifference = &v
	}

	rec.Reviews, err = s.reviewsForTrail(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) reviewsForTrail(ctx context.Context, q queryer, id int) ([]models.Review, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT user_id, username, review_date, content
		FROM trail_reviews
		WHERE trail_id = ?
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews for trail %d: %w", id, err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var r models.Review
		var reviewDate sql.NullTime
		if err := rows.Scan(&r.UserID, &r.Username, &reviewDate, &r.Content); err != nil {
			return nil, fmt.Errorf("failed to scan review row for trail %d: %w", id, err)
		}
		if reviewDate.Valid {
			t := reviewDate.Time
			r.ReviewDate = &t
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating review rows for trail %d: %w", id, err)
	}
	return reviews, nil
}

// UpsertTrail fully replaces (or inserts) the record for rec.ID: all metadata
// fields, the complete review list, and review_count recomputed from it.
func (s *Store) UpsertTrail(ctx context.Context, rec *models.TrailRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for trail %d: %w", rec.ID, err)
	}
	defer tx.Rollback()

	reviewCount := len(rec.Reviews)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO trails (
			id, name, description, location, difficulty, trail_type, distance,
			altitude, altitude_difference, duration, pavement, gpx_url,
			last_scraped_at, review_count, is_valid
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			description = VALUES(description),
			location = VALUES(location),
			difficulty = VALUES(difficulty),
			trail_type = VALUES(trail_type),
			distance = VALUES(distance),
			altitude = VALUES(altitude),
			altitude_difference = VALUES(altitude_difference),
			duration = VALUES(duration),
			pavement = VALUES(pavement),
			gpx_url = VALUES(gpx_url),
			last_scraped_at = VALUES(last_scraped_at),
			review_count = VALUES(review_count),
			is_valid = VALUES(is_valid)
	`,
		rec.ID, nullStr(rec.Name), nullStr(rec.Description), nullStr(rec.Location),
		nullStr(rec.Difficulty), nullStr(rec.TrailType), nullFloat(rec.Distance),
		nullStr(rec.Altitude), nullInt(rec.AltitudeDifference), nullStr(rec.Duration),
		nullStr(rec.Pavement), nullStr(rec.GpxURL),
		rec.LastScrapedAt, reviewCount, rec.IsValid,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert trail %d: %w", rec.ID, err)
	}

	// Full replace: the incoming review list is authoritative.
	if _, err := tx.ExecContext(ctx, `DELETE FROM trail_reviews WHERE trail_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("failed to clear reviews for trail %d: %w", rec.ID, err)
	}
	if err := insertReviews(ctx, tx, rec.ID, rec.Reviews); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert for trail %d: %w", rec.ID, err)
	}
	rec.ReviewCount = reviewCount
	return nil
}

func insertReviews(ctx context.Context, tx *sql.Tx, trailID int, reviews []models.Review) error {
	if len(reviews) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trail_reviews (trail_id, user_id, username, review_date, content)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare review insert for trail %d: %w", trailID, err)
	}
	defer stmt.Close()

	for _, r := range reviews {
		var reviewDate sql.NullTime
		if r.ReviewDate != nil {
			reviewDate = sql.NullTime{Time: *r.ReviewDate, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, trailID, r.UserID, r.Username, reviewDate, r.Content); err != nil {
			return fmt.Errorf("failed to insert review for trail %d (user %s): %w", trailID, r.UserID, err)
		}
	}
	return nil
}

// MarkInvalid records that a trail ID was probed and yielded no retrievable
// trail, so future scans skip it. Works whether or not a row already exists;
// invalid records carry no reviews.
func (s *Store) MarkInvalid(ctx context.Context, id int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction to invalidate trail %d: %w", id, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trails (id, last_scraped_at, review_count, is_valid)
		VALUES (?, ?, 0, FALSE)
		ON DUPLICATE KEY UPDATE
			last_scraped_at = VALUES(last_scraped_at),
			review_count = 0,
			is_valid = FALSE
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark trail %d invalid: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM trail_reviews WHERE trail_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear reviews for invalid trail %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit invalidation of trail %d: %w", id, err)
	}
	return nil
}

// IsValid reports whether a trail ID is eligible for fetching. An ID with no
// stored record is untested and therefore eligible; only an existing record
// with is_valid=false blocks it.
func (s *Store) IsValid(ctx context.Context, id int) (bool, error) {
	var valid bool
	err := s.db.QueryRowContext(ctx, `SELECT is_valid FROM trails WHERE id = ?`, id).Scan(&valid)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check validity of trail %d: %w", id, err)
	}
	return valid, nil
}

// MaxValidID returns the highest id among valid records, or 0 when none exist.
// Incremental probing starts just above this frontier.
func (s *Store) MaxValidID(ctx context.Context) (int, error) {
	var max int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(id), 0) FROM trails WHERE is_valid = TRUE
	`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to query max valid trail id: %w", err)
	}
	return max, nil
}

// AllValidIDs returns every valid trail id in ascending order.
func (s *Store) AllValidIDs(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM trails WHERE is_valid = TRUE ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query valid trail ids: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan trail id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trail id rows: %w", err)
	}
	return ids, nil
}

// Summaries returns the list projection for valid trails only.
func (s *Store) Summaries(ctx context.Context) ([]models.TrailSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, difficulty, location, review_count
		FROM trails
		WHERE is_valid = TRUE
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trail summaries: %w", err)
	}
	defer rows.Close()

	var summaries []models.TrailSummary
	for rows.Next() {
		var sum models.TrailSummary
		var name, difficulty, location sql.NullString
		if err := rows.Scan(&sum.ID, &name, &difficulty, &location, &sum.ReviewCount); err != nil {
			return nil, fmt.Errorf("failed to scan trail summary row: %w", err)
		}
		sum.Name = name.String
		sum.Difficulty = difficulty.String
		sum.Location = location.String
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trail summary rows: %w", err)
	}
	return summaries, nil
}

// LastScrapedAt returns when a trail was last scraped, or nil when the trail
// has no stored record.
func (s *Store) LastScrapedAt(ctx context.Context, id int) (*time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx, `SELECT last_scraped_at FROM trails WHERE id = ?`, id).Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last_scraped_at for trail %d: %w", id, err)
	}
	return &t, nil
}

// AppendNewReviews merges candidates into the stored review list for a trail.
// Only reviews absent by identity are appended; review_count is incremented by
// the appended delta in the same transaction so the count invariant holds.
// last_scraped_at is always advanced, even with zero new reviews, so the
// staleness skip in the orchestrator keeps moving.
//
// Calling this for a trail with no stored record is a caller bug: it logs a
// warning and does nothing.
func (s *Store) AppendNewReviews(ctx context.Context, id int, candidates []models.Review, scrapedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction to append reviews for trail %d: %w", id, err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM trails WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		slog.Warn("append reviews requested for nonexistent trail", "trail_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load trail %d for review append: %w", id, err)
	}

	existing, err := s.reviewsForTrail(ctx, tx, id)
	if err != nil {
		return err
	}

	fresh := reconcile.NewReviews(existing, candidates)
	if len(fresh) > 0 {
		slog.Info("appending new reviews", "trail_id", id, "count", len(fresh))
		if err := insertReviews(ctx, tx, id, fresh); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE trails
			SET review_count = review_count + ?, last_scraped_at = ?
			WHERE id = ?
		`, len(fresh), scrapedAt, id)
	} else {
		slog.Debug("no new reviews, refreshing timestamp only", "trail_id", id)
		_, err = tx.ExecContext(ctx, `
			UPDATE trails SET last_scraped_at = ? WHERE id = ?
		`, scrapedAt, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update trail %d after review append: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review append for trail %d: %w", id, err)
	}
	return nil
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullStr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
