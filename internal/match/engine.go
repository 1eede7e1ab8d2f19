package match

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// MaxTracks is the number of leading tracks processed per release.
const MaxTracks = 10

// Options tunes an Engine.
type Options struct {
	// FallbackTimeout bounds each fallback search call. Zero means no
	// timeout beyond the caller's context.
	FallbackTimeout time.Duration
	// Concurrency is the number of tracks resolved in parallel. Values
	// below 2 resolve tracks sequentially.
	Concurrency int
}

// Engine resolves the best audio candidate for each track of a release.
// It holds no per-release state and is safe for concurrent use.
type Engine struct {
	searcher Searcher
	logger   *slog.Logger
	opts     Options
}

// NewEngine creates an Engine. searcher may be nil, in which case only the
// trusted pool is consulted.
func NewEngine(searcher Searcher, logger *slog.Logger, opts Options) *Engine {
	return &Engine{
		searcher: searcher,
		logger:   logger.With(slog.String("component", "match-engine")),
		opts:     opts,
	}
}

type pooledVideo struct {
	video Video
	id    string
}

// FindMatches scores candidates for the first MaxTracks tracks of a release.
// Provider failures never surface as errors: a track without acceptable
// candidates simply has a nil BestMatch.
func (e *Engine) FindMatches(ctx context.Context, releaseID int, releaseArtist string, tracks []Track, videos []Video) Result {
	pool := make([]pooledVideo, 0, len(videos))
	for _, v := range videos {
		id, ok := ExtractVideoID(v.URI)
		if !ok {
			e.logger.Debug("skipping video without id", slog.String("uri", v.URI))
			continue
		}
		pool = append(pool, pooledVideo{video: v, id: id})
	}

	n := min(len(tracks), MaxTracks)
	matches := make([]TrackMatch, n)

	if e.opts.Concurrency > 1 {
		var g errgroup.Group
		g.SetLimit(e.opts.Concurrency)
		for i := range n {
			g.Go(func() error {
				matches[i] = e.resolveTrack(ctx, i, tracks[i], releaseArtist, pool)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range n {
			matches[i] = e.resolveTrack(ctx, i, tracks[i], releaseArtist, pool)
		}
	}

	result := Result{
		ReleaseID:       releaseID,
		TotalTracks:     len(tracks),
		ProcessedTracks: n,
		Matches:         matches,
	}
	for _, m := range matches {
		switch {
		case m.BestMatch == nil:
			result.Summary.NoMatches++
		case m.BestMatch.Source == SourceEmbedded:
			result.Summary.DiscogsMatches++
		default:
			result.Summary.SearchMatches++
		}
	}
	result.Summary.TotalMatched = result.Summary.DiscogsMatches + result.Summary.SearchMatches

	e.logger.Info("release matched",
		slog.Int("release_id", releaseID),
		slog.Int("processed", n),
		slog.Int("matched", result.Summary.TotalMatched),
		slog.Int("unmatched", result.Summary.NoMatches),
	)
	return result
}

// TrackArtist returns the credited artists of a track, or the release
// artist when the track carries none.
func TrackArtist(t Track, releaseArtist string) string {
	var names []string
	for _, a := range t.Artists {
		if a = strings.TrimSpace(a); a != "" {
			names = append(names, a)
		}
	}
	if len(names) == 0 {
		return releaseArtist
	}
	return strings.Join(names, ", ")
}

func (e *Engine) resolveTrack(ctx context.Context, index int, t Track, releaseArtist string, pool []pooledVideo) TrackMatch {
	duration := ParseDuration(t.Duration)
	artist := TrackArtist(t, releaseArtist)

	tm := TrackMatch{
		TrackIndex:    index,
		TrackPosition: t.Position,
		TrackTitle:    t.Title,
		TrackArtist:   artist,
		TrackDuration: duration,
		Candidates:    []Candidate{},
	}

	var bestTrusted *Candidate
	for _, pv := range pool {
		score := MatchConfidence(t.Title, artist, duration, pv.video.Title, artist, pv.video.Duration, true)
		if score < TrustedAcceptFloor {
			continue
		}
		tm.Candidates = append(tm.Candidates, Candidate{
			Platform:       PlatformYouTube,
			ID:             pv.id,
			Title:          pv.video.Title,
			Artist:         artist,
			Duration:       pv.video.Duration,
			URL:            pv.video.URI,
			Source:         SourceEmbedded,
			Confidence:     score,
			Classification: Classify(score),
		})
		if bestTrusted == nil || score > bestTrusted.Confidence {
			c := tm.Candidates[len(tm.Candidates)-1]
			bestTrusted = &c
		}
	}

	if bestTrusted == nil || bestTrusted.Classification == ClassLow {
		query := fmt.Sprintf("%s - %s", artist, t.Title)
		for _, r := range e.search(ctx, index, query) {
			score := MatchConfidence(t.Title, artist, duration, r.Title, r.Artist, r.Duration, false)
			if score < SearchAcceptFloor {
				continue
			}
			tm.Candidates = append(tm.Candidates, Candidate{
				Platform:       r.Platform,
				ID:             r.ID,
				Title:          r.Title,
				Artist:         r.Artist,
				Duration:       r.Duration,
				URL:            r.URL,
				Source:         SourceSearch,
				Confidence:     score,
				Classification: Classify(score),
			})
		}
	}

	slices.SortStableFunc(tm.Candidates, func(a, b Candidate) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	if len(tm.Candidates) > 0 {
		best := tm.Candidates[0]
		tm.BestMatch = &best
	}
	return tm
}

// search runs the fallback searcher, turning errors, panics and timeouts
// into an empty result.
func (e *Engine) search(ctx context.Context, index int, query string) (results []SearchResult) {
	if e.searcher == nil {
		return nil
	}
	if e.opts.FallbackTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.FallbackTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("fallback search panicked",
				slog.Int("track_index", index),
				slog.Any("panic", r),
			)
			results = nil
		}
	}()

	results, err := e.searcher.Search(ctx, query)
	if err != nil {
		e.logger.Warn("fallback search failed",
			slog.Int("track_index", index),
			slog.String("query", query),
			slog.Any("error", err),
		)
		return nil
	}
	return results
}
