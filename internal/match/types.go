package match

import "context"

// Source records where a candidate came from.
type Source string

// Candidate sources.
const (
	SourceEmbedded Source = "embedded"
	SourceSearch   Source = "search"
)

// Classification is the engine's internal triage class for a candidate.
type Classification string

// Internal classes.
const (
	ClassHigh   Classification = "high"
	ClassMedium Classification = "medium"
	ClassLow    Classification = "low"
)

// Track describes one track of a release as supplied by the caller.
type Track struct {
	Position string   `json:"position"`
	Title    string   `json:"title"`
	Duration string   `json:"duration"`
	Artists  []string `json:"artists,omitempty"`
}

// Video is an entry of the release's own (trusted) video pool.
type Video struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Duration    int    `json:"duration"`
	Embed       bool   `json:"embed"`
}

// SearchResult is a single hit returned by a fallback searcher.
type SearchResult struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Duration int    `json:"duration"`
	URL      string `json:"url"`
	Platform string `json:"platform"`
}

// Searcher is the fallback search capability. Implementations return at
// most a handful of results and an empty slice when they are not configured.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// SearcherFunc adapts a plain function to the Searcher interface.
type SearcherFunc func(ctx context.Context, query string) ([]SearchResult, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, query string) ([]SearchResult, error) {
	return f(ctx, query)
}

// Candidate is a scored audio source for one track.
type Candidate struct {
	Platform       string         `json:"platform"`
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Artist         string         `json:"artist"`
	Duration       int            `json:"duration"`
	URL            string         `json:"url"`
	Source         Source         `json:"source"`
	Confidence     int            `json:"confidence"`
	Classification Classification `json:"classification"`
}

// TrackMatch is the per-track outcome of a matching run.
type TrackMatch struct {
	TrackIndex    int         `json:"trackIndex"`
	TrackPosition string      `json:"trackPosition"`
	TrackTitle    string      `json:"trackTitle"`
	TrackArtist   string      `json:"trackArtist"`
	TrackDuration int         `json:"trackDuration"`
	Candidates    []Candidate `json:"candidates"`
	BestMatch     *Candidate  `json:"bestMatch"`
}

// Summary tallies how each processed track was resolved.
type Summary struct {
	DiscogsMatches int `json:"discogsMatches"`
	SearchMatches  int `json:"searchMatches"`
	NoMatches      int `json:"noMatches"`
	TotalMatched   int `json:"totalMatched"`
}

// Result is the outcome of FindMatches for one release.
type Result struct {
	ReleaseID       int          `json:"releaseId"`
	TotalTracks     int          `json:"totalTracks"`
	ProcessedTracks int          `json:"processedTracks"`
	Matches         []TrackMatch `json:"matches"`
	Summary         Summary      `json:"summary"`
}
