// models/trail.go
package models

import "time"

// Review is a single hiker comment nested under a trail record.
// Two reviews are the same entity when (UserID, ReviewDate, Content) match
// exactly; ReviewDate may be nil when the upstream markup carried no parseable
// date, and nil is a valid identity value of its own.
type Review struct {
	UserID     string     `json:"user_id"`
	Username   string     `json:"username"`
	ReviewDate *time.Time `json:"review_date,omitempty"`
	Content    string     `json:"content"`
}

// TrailRecord is one trail document, keyed by the upstream trail ID.
// Every metadata field is optional because upstream detail pages vary;
// ReviewCount is denormalized and must always equal len(Reviews) in storage.
type TrailRecord struct {
	ID                 int        `json:"id"`
	Name               *string    `json:"name,omitempty"`
	Description        *string    `json:"description,omitempty"`
	Location           *string    `json:"location,omitempty"`
	Difficulty         *string    `json:"difficulty,omitempty"`
	TrailType          *string    `json:"trail_type,omitempty"`
	Distance           *float64   `json:"distance,omitempty"` // kilometers
	Altitude           *string    `json:"altitude,omitempty"`
	AltitudeDifference *int       `json:"altitude_difference,omitempty"` // meters
	Duration           *string    `json:"duration,omitempty"`
	Pavement           *string    `json:"pavement,omitempty"`
	GpxURL             *string    `json:"gpx_url,omitempty"`
	LastScrapedAt      time.Time  `json:"last_scraped_at"`
	Reviews            []Review   `json:"reviews"`
	ReviewCount        int        `json:"review_count"`
	IsValid            bool       `json:"is_valid"`
}

// TrailDetails holds the metadata scraped from one trail detail page,
// before it is merged with reviews into a TrailRecord.
type TrailDetails struct {
	Name               *string
	Description        *string
	Location           *string
	Difficulty         *string
	TrailType          *string
	Distance           *float64
	Altitude           *string
	AltitudeDifference *int
	Duration           *string
	Pavement           *string
	GpxURL             *string
}

// TrailSummary is the projection returned by list queries and the CSV export.
type TrailSummary struct {
	ID          int    `json:"id" csv:"id"`
	Name        string `json:"name" csv:"name"`
	Difficulty  string `json:"difficulty" csv:"difficulty"`
	Location    string `json:"location" csv:"location"`
	ReviewCount int    `json:"review_count" csv:"review_count"`
}
