package review

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a release or track has no stored match.
var ErrNotFound = errors.New("match not found")

// TrackMatch is the durable decision for one track of a release. There is at
// most one per (ReleaseID, TrackIndex); saving again overwrites it.
type TrackMatch struct {
	ID            string     `json:"id"`
	ReleaseID     int        `json:"release_id"`
	TrackIndex    int        `json:"track_index"`
	TrackPosition string     `json:"track_position,omitempty"`
	TrackTitle    string     `json:"track_title,omitempty"`
	Platform      string     `json:"platform"`
	MatchURL      string     `json:"match_url"`
	Confidence    float64    `json:"confidence"`
	Approved      bool       `json:"approved"`
	Status        Status     `json:"status"`
	VerifiedBy    string     `json:"verified_by,omitempty"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Bucket returns the review bucket of the stored confidence.
func (m TrackMatch) Bucket() Bucket {
	return BucketFor(m.Confidence)
}

// Store persists track match decisions.
type Store interface {
	// SaveMatch inserts or overwrites the match for m's release and track.
	SaveMatch(ctx context.Context, m *TrackMatch) error
	// GetMatchesForRelease returns all stored matches ordered by track index.
	GetMatchesForRelease(ctx context.Context, releaseID int) ([]TrackMatch, error)
}

// Run is the summary of the last matching run for a release.
type Run struct {
	ReleaseID       int       `json:"release_id"`
	ReleaseArtist   string    `json:"release_artist"`
	TotalTracks     int       `json:"total_tracks"`
	ProcessedTracks int       `json:"processed_tracks"`
	DiscogsMatches  int       `json:"discogs_matches"`
	SearchMatches   int       `json:"search_matches"`
	NoMatches       int       `json:"no_matches"`
	TotalMatched    int       `json:"total_matched"`
	CreatedAt       time.Time `json:"created_at"`
}
