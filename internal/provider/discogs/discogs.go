package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/needledrop/internal/match"
	"github.com/sydlexius/needledrop/internal/provider"
)

const (
	defaultBaseURL   = "https://api.discogs.com"
	defaultUserAgent = "needledrop/1.0 +https://github.com/sydlexius/needledrop"
	maxResponseBytes = 4 << 20
)

// Release is a Discogs release reduced to what matching needs. Titles and
// artist names are already cleaned.
type Release struct {
	ID     int           `json:"id"`
	Title  string        `json:"title"`
	Artist string        `json:"artist"`
	Year   int           `json:"year,omitempty"`
	Tracks []match.Track `json:"tracks"`
	Videos []match.Video `json:"videos"`
}

// Adapter fetches releases and their linked videos from Discogs.
type Adapter struct {
	client    *http.Client
	limiter   *provider.RateLimiterMap
	token     string
	userAgent string
	logger    *slog.Logger
	baseURL   string
}

// New creates a Discogs adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, token string, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, token, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Discogs adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, token string, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   limiter,
		token:     token,
		userAgent: defaultUserAgent,
		logger:    logger.With(slog.String("provider", "discogs")),
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// SetUserAgent overrides the User-Agent sent with every request.
func (a *Adapter) SetUserAgent(ua string) {
	if ua != "" {
		a.userAgent = ua
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameDiscogs }

// RequiresAuth returns whether this provider needs an API key.
func (a *Adapter) RequiresAuth() bool { return true }

// Configured reports whether a token is available.
func (a *Adapter) Configured() bool { return a.token != "" }

// GetRelease fetches a release with its tracklist and videos.
func (a *Adapter) GetRelease(ctx context.Context, id int) (*Release, error) {
	if !a.Configured() {
		return nil, &provider.ErrAuthRequired{Provider: provider.NameDiscogs}
	}
	if err := a.limiter.Wait(ctx, provider.NameDiscogs); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/releases/%d", a.baseURL, id)
	body, err := a.doRequest(ctx, reqURL, strconv.Itoa(id))
	if err != nil {
		return nil, err
	}

	var detail ReleaseDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("parsing release response: %w", err)
	}

	rel := mapRelease(&detail)
	a.logger.Debug("release fetched",
		slog.Int("release_id", id),
		slog.Int("tracks", len(rel.Tracks)),
		slog.Int("videos", len(rel.Videos)),
	)
	return rel, nil
}

// TestConnection verifies the personal access token is valid.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if !a.Configured() {
		return &provider.ErrAuthRequired{Provider: provider.NameDiscogs}
	}
	_, err := a.doRequest(ctx, a.baseURL+"/oauth/identity", "identity")
	return err
}

func (a *Adapter) doRequest(ctx context.Context, reqURL, id string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Discogs token="+a.token)
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := a.client.Do(req) //nolint:gosec // URL constructed from trusted base + release ID
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameDiscogs,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &provider.ErrNotFound{Provider: provider.NameDiscogs, ID: id}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &provider.ErrAuthRequired{Provider: provider.NameDiscogs}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &provider.ErrProviderUnavailable{
			Provider:   provider.NameDiscogs,
			Cause:      fmt.Errorf("rate limited (HTTP 429)"),
			RetryAfter: 60 * time.Second,
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameDiscogs,
			Cause:    fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}

// joinArtists renders an artist credit list the way Discogs displays it,
// preferring the name variation printed on the release.
func joinArtists(refs []ArtistRef) string {
	var b strings.Builder
	for i, ref := range refs {
		name := ref.ANV
		if name == "" {
			name = ref.Name
		}
		b.WriteString(provider.CleanArtistName(name))
		if i == len(refs)-1 {
			break
		}
		switch join := strings.TrimSpace(ref.Join); join {
		case "", ",":
			b.WriteString(", ")
		default:
			b.WriteString(" " + join + " ")
		}
	}
	return b.String()
}

func mapTracks(items []TrackItem, out []match.Track) []match.Track {
	for _, it := range items {
		switch it.Type {
		case "heading":
			continue
		case "index":
			out = mapTracks(it.SubTracks, out)
			continue
		}
		t := match.Track{
			Position: it.Position,
			Title:    strings.TrimSpace(it.Title),
			Duration: it.Duration,
		}
		if len(it.Artists) > 0 {
			t.Artists = []string{joinArtists(it.Artists)}
		}
		out = append(out, t)
	}
	return out
}

func mapRelease(d *ReleaseDetail) *Release {
	rel := &Release{
		ID:     d.ID,
		Title:  d.Title,
		Artist: joinArtists(d.Artists),
		Year:   d.Year,
		Tracks: mapTracks(d.Tracklist, []match.Track{}),
		Videos: make([]match.Video, 0, len(d.Videos)),
	}
	for _, v := range d.Videos {
		rel.Videos = append(rel.Videos, match.Video{
			URI:         v.URI,
			Title:       provider.CleanTitle(v.Title, rel.Artist),
			Description: v.Description,
			Duration:    v.Duration,
			Embed:       v.Embed,
		})
	}
	return rel
}
