package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/needledrop/internal/match"
	"github.com/sydlexius/needledrop/internal/provider"
)

const (
	defaultBaseURL = "https://www.googleapis.com/youtube/v3"
	maxResults     = 5
)

// isoDurationRe matches the ISO-8601 durations the Data API reports, such as
// PT4M34S or P1DT2H.
var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// Adapter searches YouTube videos through the Data API v3.
type Adapter struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	apiKey  string
	logger  *slog.Logger
	baseURL string
}

// New creates a YouTube adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, apiKey string, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, apiKey, logger, defaultBaseURL)
}

// NewWithBaseURL creates a YouTube adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, apiKey string, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		apiKey:  apiKey,
		logger:  logger.With(slog.String("provider", "youtube")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider identifier.
func (a *Adapter) Name() provider.ProviderName { return provider.NameYouTube }

// RequiresAuth returns true; the Data API needs an API key.
func (a *Adapter) RequiresAuth() bool { return true }

// Configured reports whether an API key is set.
func (a *Adapter) Configured() bool { return a.apiKey != "" }

// Search implements match.Searcher. Without an API key it returns no results
// and no error, so the chain moves on to the next searcher.
func (a *Adapter) Search(ctx context.Context, query string) ([]match.SearchResult, error) {
	query = strings.TrimSpace(query)
	if !a.Configured() || query == "" {
		return nil, nil
	}

	items, err := a.search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []match.SearchResult{}, nil
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID.VideoID)
	}
	durations, err := a.durations(ctx, ids)
	if err != nil {
		// Durations are optional for scoring; keep the hits.
		a.logger.Warn("fetching video durations", slog.Any("error", err))
		durations = map[string]int{}
	}

	results := make([]match.SearchResult, 0, len(items))
	for _, it := range items {
		artist := provider.CleanArtistName(html.UnescapeString(it.Snippet.ChannelTitle))
		results = append(results, match.SearchResult{
			ID:       it.ID.VideoID,
			Title:    provider.CleanTitle(html.UnescapeString(it.Snippet.Title), artist),
			Artist:   artist,
			Duration: durations[it.ID.VideoID],
			URL:      "https://www.youtube.com/watch?v=" + it.ID.VideoID,
			Platform: match.PlatformYouTube,
		})
	}

	a.logger.Debug("video search completed",
		slog.String("query", query),
		slog.Int("results", len(results)))

	return results, nil
}

func (a *Adapter) search(ctx context.Context, query string) ([]searchItem, error) {
	if err := a.limiter.Wait(ctx, provider.NameYouTube); err != nil {
		return nil, err
	}

	params := url.Values{
		"part":       {"snippet"},
		"type":       {"video"},
		"maxResults": {strconv.Itoa(maxResults)},
		"q":          {query},
		"key":        {a.apiKey},
	}
	body, err := a.doRequest(ctx, a.baseURL+"/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	items := make([]searchItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.ID.VideoID == "" {
			continue
		}
		items = append(items, it)
		if len(items) == maxResults {
			break
		}
	}
	return items, nil
}

func (a *Adapter) durations(ctx context.Context, ids []string) (map[string]int, error) {
	if err := a.limiter.Wait(ctx, provider.NameYouTube); err != nil {
		return nil, err
	}

	params := url.Values{
		"part": {"contentDetails"},
		"id":   {strings.Join(ids, ",")},
		"key":  {a.apiKey},
	}
	body, err := a.doRequest(ctx, a.baseURL+"/videos?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp videosResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing videos response: %w", err)
	}

	out := make(map[string]int, len(resp.Items))
	for _, it := range resp.Items {
		out[it.ID] = ParseISODuration(it.ContentDetails.Duration)
	}
	return out, nil
}

// doRequest executes a GET request and returns the response body.
func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req) //nolint:gosec // URL constructed from adapter config and encoded query
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameYouTube,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		return nil, &provider.ErrAuthRequired{Provider: provider.NameYouTube}
	case resp.StatusCode == http.StatusForbidden:
		reason := errorReason(body)
		if reason == "quotaExceeded" || reason == "rateLimitExceeded" {
			return nil, &provider.ErrProviderUnavailable{
				Provider:   provider.NameYouTube,
				Cause:      fmt.Errorf("%s", reason),
				RetryAfter: time.Hour,
			}
		}
		return nil, &provider.ErrAuthRequired{Provider: provider.NameYouTube}
	default:
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameYouTube,
			Cause:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
}

func errorReason(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil || len(e.Error.Errors) == 0 {
		return ""
	}
	return e.Error.Errors[0].Reason
}

// ParseISODuration converts an ISO-8601 duration like "PT4M34S" to whole
// seconds. Unparseable input yields 0.
func ParseISODuration(s string) int {
	m := isoDurationRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	total := 0
	for i, unit := range []int{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0
		}
		total += n * unit
	}
	return total
}
