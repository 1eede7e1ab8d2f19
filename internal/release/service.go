package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sydlexius/needledrop/internal/event"
	"github.com/sydlexius/needledrop/internal/match"
	"github.com/sydlexius/needledrop/internal/provider/discogs"
	"github.com/sydlexius/needledrop/internal/review"
)

// VerifiedByAuto marks decisions made by the auto-approval policy rather
// than a person.
const VerifiedByAuto = "auto"

// ErrReservedReviewer is returned when a person's decision names the
// auto-approval policy as its reviewer.
var ErrReservedReviewer = fmt.Errorf("reviewer name %q is reserved", VerifiedByAuto)

// ErrNoFetcher is returned by MatchRelease when no Discogs client is wired.
var ErrNoFetcher = errors.New("release fetching is not configured")

// Fetcher loads a release with its tracklist and linked videos.
type Fetcher interface {
	GetRelease(ctx context.Context, id int) (*discogs.Release, error)
}

// Matcher scores candidates for a release.
type Matcher interface {
	FindMatches(ctx context.Context, releaseID int, releaseArtist string, tracks []match.Track, videos []match.Video) match.Result
}

// Store is the persistence the service needs.
type Store interface {
	review.Store
	GetMatch(ctx context.Context, releaseID, trackIndex int) (*review.TrackMatch, error)
	SetStatus(ctx context.Context, releaseID, trackIndex int, status review.Status, verifiedBy string) (*review.TrackMatch, error)
	ApproveFast(ctx context.Context, releaseID int, verifiedBy string) (int, error)
	SaveRun(ctx context.Context, r *review.Run) error
	GetRun(ctx context.Context, releaseID int) (*review.Run, error)
	ListRuns(ctx context.Context) ([]review.Run, error)
	DeleteMatch(ctx context.Context, releaseID, trackIndex int) (bool, error)
	ClearRelease(ctx context.Context, releaseID int) (int64, error)
}

// Input is a release supplied directly instead of fetched from Discogs.
type Input struct {
	ReleaseID int           `json:"-"`
	Artist    string        `json:"artist"`
	Tracks    []match.Track `json:"tracks"`
	Videos    []match.Video `json:"videos"`
}

// Outcome is what a matching run produced and stored.
type Outcome struct {
	Result       match.Result `json:"result"`
	Saved        int          `json:"saved"`
	AutoApproved int          `json:"auto_approved"`
	NeedsReview  int          `json:"needs_review"`
	CanApprove   bool         `json:"can_approve"`
}

// Options tunes the service.
type Options struct {
	// AutoApproveTop stores top-bucket best matches as approved.
	AutoApproveTop bool
}

// Service runs matching for releases and records the results for review.
type Service struct {
	fetcher Fetcher
	matcher Matcher
	store   Store
	events  event.Publisher
	logger  *slog.Logger
	opts    Options
}

// NewService creates a release service. fetcher and events may be nil.
func NewService(fetcher Fetcher, matcher Matcher, store Store, events event.Publisher, logger *slog.Logger, opts Options) *Service {
	return &Service{
		fetcher: fetcher,
		matcher: matcher,
		store:   store,
		events:  events,
		logger:  logger.With(slog.String("component", "release-service")),
		opts:    opts,
	}
}

// MatchRelease fetches a release from Discogs and matches it.
func (s *Service) MatchRelease(ctx context.Context, releaseID int) (*Outcome, error) {
	if s.fetcher == nil {
		return nil, ErrNoFetcher
	}
	rel, err := s.fetcher.GetRelease(ctx, releaseID)
	if err != nil {
		return nil, fmt.Errorf("fetching release %d: %w", releaseID, err)
	}
	return s.MatchInput(ctx, Input{
		ReleaseID: releaseID,
		Artist:    rel.Artist,
		Tracks:    rel.Tracks,
		Videos:    rel.Videos,
	})
}

// MatchInput matches the given release and stores the best match per track.
// A track without a best match loses its stored row unless a person decided
// it.
func (s *Service) MatchInput(ctx context.Context, in Input) (*Outcome, error) {
	if in.ReleaseID <= 0 {
		return nil, fmt.Errorf("invalid release id %d", in.ReleaseID)
	}

	result := s.matcher.FindMatches(ctx, in.ReleaseID, in.Artist, in.Tracks, in.Videos)
	out := &Outcome{Result: result}

	for _, tm := range result.Matches {
		if tm.BestMatch == nil {
			if err := s.dropMachineMatch(ctx, in.ReleaseID, tm.TrackIndex); err != nil {
				return nil, err
			}
			continue
		}
		m, err := s.buildMatch(ctx, in.ReleaseID, tm)
		if err != nil {
			return nil, err
		}
		if err := s.store.SaveMatch(ctx, m); err != nil {
			return nil, fmt.Errorf("saving track %d: %w", tm.TrackIndex, err)
		}
		out.Saved++
		if m.VerifiedBy == VerifiedByAuto && m.Status == review.StatusApproved {
			out.AutoApproved++
		}
		if m.Bucket() == review.BucketReview {
			out.NeedsReview++
		}
	}

	run := &review.Run{
		ReleaseID:       in.ReleaseID,
		ReleaseArtist:   in.Artist,
		TotalTracks:     result.TotalTracks,
		ProcessedTracks: result.ProcessedTracks,
		DiscogsMatches:  result.Summary.DiscogsMatches,
		SearchMatches:   result.Summary.SearchMatches,
		NoMatches:       result.Summary.NoMatches,
		TotalMatched:    result.Summary.TotalMatched,
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		return nil, err
	}

	stored, err := s.store.GetMatchesForRelease(ctx, in.ReleaseID)
	if err != nil {
		return nil, err
	}
	out.CanApprove = review.CanApproveRelease(stored, result.ProcessedTracks)

	s.logger.Info("release match stored",
		slog.Int("release_id", in.ReleaseID),
		slog.Int("saved", out.Saved),
		slog.Int("auto_approved", out.AutoApproved),
		slog.Int("needs_review", out.NeedsReview),
		slog.Bool("can_approve", out.CanApprove),
	)

	s.publish(event.Event{
		Type:      event.MatchCompleted,
		ReleaseID: in.ReleaseID,
		Data: map[string]any{
			"release_artist":   in.Artist,
			"total_tracks":     result.TotalTracks,
			"processed_tracks": result.ProcessedTracks,
			"total_matched":    result.Summary.TotalMatched,
			"discogs_matches":  result.Summary.DiscogsMatches,
			"search_matches":   result.Summary.SearchMatches,
			"no_matches":       result.Summary.NoMatches,
		},
	})
	if out.NeedsReview > 0 {
		s.publish(event.Event{
			Type:      event.ReviewNeeded,
			ReleaseID: in.ReleaseID,
			Data:      map[string]any{"review_count": out.NeedsReview},
		})
	}
	if out.CanApprove {
		s.publishApprovable(in.ReleaseID, result.ProcessedTracks)
	}

	return out, nil
}

// dropMachineMatch deletes a track's stored match when no person made it.
func (s *Service) dropMachineMatch(ctx context.Context, releaseID, trackIndex int) error {
	prev, err := s.store.GetMatch(ctx, releaseID, trackIndex)
	if errors.Is(err, review.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading previous decision for track %d: %w", trackIndex, err)
	}
	if humanDecision(prev) {
		return nil
	}
	if _, err := s.store.DeleteMatch(ctx, releaseID, trackIndex); err != nil {
		return fmt.Errorf("dropping stale match for track %d: %w", trackIndex, err)
	}
	s.logger.Debug("stale match dropped",
		slog.Int("release_id", releaseID),
		slog.Int("track_index", trackIndex),
		slog.String("match_url", prev.MatchURL),
	)
	return nil
}

func humanDecision(m *review.TrackMatch) bool {
	return m.VerifiedBy != "" && m.VerifiedBy != VerifiedByAuto
}

// buildMatch turns an engine best match into a stored decision. A human
// decision on the same URL survives a re-run.
func (s *Service) buildMatch(ctx context.Context, releaseID int, tm match.TrackMatch) (*review.TrackMatch, error) {
	best := tm.BestMatch
	m := &review.TrackMatch{
		ReleaseID:     releaseID,
		TrackIndex:    tm.TrackIndex,
		TrackPosition: tm.TrackPosition,
		TrackTitle:    tm.TrackTitle,
		Platform:      best.Platform,
		MatchURL:      best.URL,
		Confidence:    review.ToUnitScale(best.Confidence),
		Status:        review.StatusPending,
	}

	prev, err := s.store.GetMatch(ctx, releaseID, tm.TrackIndex)
	switch {
	case err == nil:
		if prev.MatchURL == m.MatchURL && humanDecision(prev) {
			m.Status = prev.Status
			m.VerifiedBy = prev.VerifiedBy
			m.VerifiedAt = prev.VerifiedAt
			return m, nil
		}
	case !errors.Is(err, review.ErrNotFound):
		return nil, fmt.Errorf("loading previous decision for track %d: %w", tm.TrackIndex, err)
	}

	if s.opts.AutoApproveTop && m.Bucket() == review.BucketTop {
		m.Status = review.StatusApproved
		m.VerifiedBy = VerifiedByAuto
	}
	return m, nil
}

// Review returns the review queue of a release. Approvability is judged
// against the number of tracks the last run processed.
func (s *Service) Review(ctx context.Context, releaseID int, showHidden bool) (*review.Queue, error) {
	matches, err := s.store.GetMatchesForRelease(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	trackCount, err := s.trackCount(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	q := review.BuildQueue(releaseID, matches, trackCount, showHidden)
	return &q, nil
}

// Matches returns the stored matches of a release.
func (s *Service) Matches(ctx context.Context, releaseID int) ([]review.TrackMatch, error) {
	return s.store.GetMatchesForRelease(ctx, releaseID)
}

// Runs returns the latest run summary of every matched release.
func (s *Service) Runs(ctx context.Context) ([]review.Run, error) {
	return s.store.ListRuns(ctx)
}

// Decide records a human decision on one track.
func (s *Service) Decide(ctx context.Context, releaseID, trackIndex int, status review.Status, verifiedBy string) (*review.TrackMatch, error) {
	if verifiedBy == VerifiedByAuto {
		return nil, ErrReservedReviewer
	}
	before, err := s.approvable(ctx, releaseID)
	if err != nil {
		return nil, err
	}

	prev, err := s.store.GetMatch(ctx, releaseID, trackIndex)
	if err != nil {
		return nil, err
	}
	m, err := s.store.SetStatus(ctx, releaseID, trackIndex, status, verifiedBy)
	if err != nil {
		return nil, err
	}
	if prev.Status == m.Status && prev.VerifiedBy == m.VerifiedBy {
		return m, nil
	}

	s.publish(event.Event{
		Type:      event.TrackDecided,
		ReleaseID: releaseID,
		Data: map[string]any{
			"track_index": trackIndex,
			"status":      string(m.Status),
			"verified_by": m.VerifiedBy,
		},
	})

	after, err := s.approvable(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	if after && !before {
		n, _ := s.trackCount(ctx, releaseID)
		s.publishApprovable(releaseID, n)
	}
	return m, nil
}

// ApproveFast approves every pending fast-bucket match of a release.
func (s *Service) ApproveFast(ctx context.Context, releaseID int, verifiedBy string) (int, error) {
	if verifiedBy == VerifiedByAuto {
		return 0, ErrReservedReviewer
	}
	before, err := s.approvable(ctx, releaseID)
	if err != nil {
		return 0, err
	}
	n, err := s.store.ApproveFast(ctx, releaseID, verifiedBy)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	s.logger.Info("fast-track matches approved",
		slog.Int("release_id", releaseID),
		slog.Int("approved", n),
		slog.String("verified_by", verifiedBy),
	)

	after, err := s.approvable(ctx, releaseID)
	if err != nil {
		return n, err
	}
	if after && !before {
		count, _ := s.trackCount(ctx, releaseID)
		s.publishApprovable(releaseID, count)
	}
	return n, nil
}

// Clear removes every stored match and the run summary of a release.
func (s *Service) Clear(ctx context.Context, releaseID int) (int64, error) {
	n, err := s.store.ClearRelease(ctx, releaseID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("release matches cleared",
		slog.Int("release_id", releaseID),
		slog.Int64("removed", n))
	return n, nil
}

func (s *Service) trackCount(ctx context.Context, releaseID int) (int, error) {
	run, err := s.store.GetRun(ctx, releaseID)
	if errors.Is(err, review.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return run.ProcessedTracks, nil
}

func (s *Service) approvable(ctx context.Context, releaseID int) (bool, error) {
	n, err := s.trackCount(ctx, releaseID)
	if err != nil {
		return false, err
	}
	matches, err := s.store.GetMatchesForRelease(ctx, releaseID)
	if err != nil {
		return false, err
	}
	return review.CanApproveRelease(matches, n), nil
}

func (s *Service) publishApprovable(releaseID, trackCount int) {
	s.publish(event.Event{
		Type:      event.ReleaseApprovable,
		ReleaseID: releaseID,
		Data:      map[string]any{"track_count": trackCount},
	})
}

func (s *Service) publish(e event.Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(e)
}
