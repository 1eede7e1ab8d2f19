package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service is the SQLite-backed Store, plus the review operations built on it.
type Service struct {
	db *sql.DB
}

// NewService creates a review service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

var _ Store = (*Service)(nil)

// timeLayout is fixed-width so stored timestamps sort correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const matchColumns = `id, release_id, track_index, track_position, track_title, platform,
	match_url, confidence, approved, status, verified_by, verified_at, created_at, updated_at`

// SaveMatch upserts the match for (ReleaseID, TrackIndex). The row keeps its
// original ID and creation time; m is refreshed from the stored row.
func (s *Service) SaveMatch(ctx context.Context, m *TrackMatch) error {
	if m.Status == "" {
		m.Status = StatusPending
	}
	if !m.Status.Valid() {
		return fmt.Errorf("invalid status %q", m.Status)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("confidence %v outside 0-1", m.Confidence)
	}
	m.Approved = m.Status == StatusApproved

	now := time.Now().UTC()
	if m.VerifiedBy != "" && m.VerifiedAt == nil {
		m.VerifiedAt = &now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO track_matches (id, release_id, track_index, track_position, track_title, platform,
			match_url, confidence, approved, status, verified_by, verified_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (release_id, track_index) DO UPDATE SET
			track_position = excluded.track_position,
			track_title = excluded.track_title,
			platform = excluded.platform,
			match_url = excluded.match_url,
			confidence = excluded.confidence,
			approved = excluded.approved,
			status = excluded.status,
			verified_by = excluded.verified_by,
			verified_at = excluded.verified_at,
			updated_at = excluded.updated_at
	`,
		uuid.New().String(), m.ReleaseID, m.TrackIndex, m.TrackPosition, m.TrackTitle, m.Platform,
		m.MatchURL, m.Confidence, boolToInt(m.Approved), string(m.Status), m.VerifiedBy,
		formatTimePtr(m.VerifiedAt), now.Format(timeLayout), now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("saving track match: %w", err)
	}

	saved, err := s.GetMatch(ctx, m.ReleaseID, m.TrackIndex)
	if err != nil {
		return err
	}
	*m = *saved
	return nil
}

// GetMatchesForRelease returns the stored matches of a release ordered by
// track index. A release without matches yields an empty slice.
func (s *Service) GetMatchesForRelease(ctx context.Context, releaseID int) ([]TrackMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+matchColumns+`
		FROM track_matches WHERE release_id = ? ORDER BY track_index
	`, releaseID)
	if err != nil {
		return nil, fmt.Errorf("listing track matches: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	matches := []TrackMatch{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

// GetMatch returns the stored match of one track, or ErrNotFound.
func (s *Service) GetMatch(ctx context.Context, releaseID, trackIndex int) (*TrackMatch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+matchColumns+`
		FROM track_matches WHERE release_id = ? AND track_index = ?
	`, releaseID, trackIndex)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// SetStatus records a human decision on a track. Re-applying the current
// status by the same reviewer changes nothing.
func (s *Service) SetStatus(ctx context.Context, releaseID, trackIndex int, status Status, verifiedBy string) (*TrackMatch, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", status)
	}

	current, err := s.GetMatch(ctx, releaseID, trackIndex)
	if err != nil {
		return nil, err
	}
	if current.Status == status && current.VerifiedBy == verifiedBy {
		return current, nil
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE track_matches
		SET status = ?, approved = ?, verified_by = ?, verified_at = ?, updated_at = ?
		WHERE release_id = ? AND track_index = ?
	`,
		string(status), boolToInt(status == StatusApproved), verifiedBy,
		now.Format(timeLayout), now.Format(timeLayout),
		releaseID, trackIndex,
	)
	if err != nil {
		return nil, fmt.Errorf("updating track status: %w", err)
	}
	return s.GetMatch(ctx, releaseID, trackIndex)
}

// ApproveFast approves every pending match of a release that falls in the
// fast bucket and returns how many were approved.
func (s *Service) ApproveFast(ctx context.Context, releaseID int, verifiedBy string) (int, error) {
	now := time.Now().UTC().Format(timeLayout)
	result, err := s.db.ExecContext(ctx, `
		UPDATE track_matches
		SET status = ?, approved = 1, verified_by = ?, verified_at = ?, updated_at = ?
		WHERE release_id = ? AND status = ? AND confidence >= ? AND confidence < ?
	`,
		string(StatusApproved), verifiedBy, now, now,
		releaseID, string(StatusPending), FastThreshold, TopThreshold,
	)
	if err != nil {
		return 0, fmt.Errorf("approving fast-track matches: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// SaveRun records the summary of the latest matching run for a release.
func (s *Service) SaveRun(ctx context.Context, r *Run) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO match_runs (release_id, release_artist, total_tracks, processed_tracks,
			discogs_matches, search_matches, no_matches, total_matched, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (release_id) DO UPDATE SET
			release_artist = excluded.release_artist,
			total_tracks = excluded.total_tracks,
			processed_tracks = excluded.processed_tracks,
			discogs_matches = excluded.discogs_matches,
			search_matches = excluded.search_matches,
			no_matches = excluded.no_matches,
			total_matched = excluded.total_matched,
			created_at = excluded.created_at
	`,
		r.ReleaseID, r.ReleaseArtist, r.TotalTracks, r.ProcessedTracks,
		r.DiscogsMatches, r.SearchMatches, r.NoMatches, r.TotalMatched,
		r.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("saving match run: %w", err)
	}
	return nil
}

const runColumns = `release_id, release_artist, total_tracks, processed_tracks,
	discogs_matches, search_matches, no_matches, total_matched, created_at`

// GetRun returns the latest run summary of a release, or ErrNotFound.
func (s *Service) GetRun(ctx context.Context, releaseID int) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM match_runs WHERE release_id = ?`, releaseID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns the latest run of every matched release, newest first.
func (s *Service) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM match_runs ORDER BY created_at DESC, release_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing match runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// DeleteMatch removes the stored match of one track. It reports whether a
// row existed.
func (s *Service) DeleteMatch(ctx context.Context, releaseID, trackIndex int) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM track_matches WHERE release_id = ? AND track_index = ?`, releaseID, trackIndex)
	if err != nil {
		return false, fmt.Errorf("deleting track match: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ClearRelease deletes all stored matches and the run summary of a release.
// It returns the number of track matches removed.
func (s *Service) ClearRelease(ctx context.Context, releaseID int) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx, `DELETE FROM track_matches WHERE release_id = ?`, releaseID)
	if err != nil {
		return 0, fmt.Errorf("deleting track matches: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM match_runs WHERE release_id = ?`, releaseID); err != nil {
		return 0, fmt.Errorf("deleting match run: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, tx.Commit()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(sc scanner) (*TrackMatch, error) {
	var m TrackMatch
	var status, createdAt, updatedAt string
	var verifiedAt sql.NullString
	var approved int

	err := sc.Scan(&m.ID, &m.ReleaseID, &m.TrackIndex, &m.TrackPosition, &m.TrackTitle, &m.Platform,
		&m.MatchURL, &m.Confidence, &approved, &status, &m.VerifiedBy, &verifiedAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning track match: %w", err)
	}

	m.Approved = approved != 0
	m.Status = Status(status)
	if verifiedAt.Valid && verifiedAt.String != "" {
		t := parseTime(verifiedAt.String)
		m.VerifiedAt = &t
	}
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}

func scanRun(sc scanner) (*Run, error) {
	var r Run
	var createdAt string
	err := sc.Scan(&r.ReleaseID, &r.ReleaseArtist, &r.TotalTracks, &r.ProcessedTracks,
		&r.DiscogsMatches, &r.SearchMatches, &r.NoMatches, &r.TotalMatched, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning match run: %w", err)
	}
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
