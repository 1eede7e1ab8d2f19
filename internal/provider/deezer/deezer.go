package deezer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/needledrop/internal/match"
	"github.com/sydlexius/needledrop/internal/provider"
)

const (
	defaultBaseURL = "https://api.deezer.com"
	searchLimit    = 5

	// quotaExceededCode is the error code Deezer returns in-body when the
	// per-IP query quota is used up.
	quotaExceededCode = 4
)

// Adapter searches Deezer's public track catalog. No authentication is
// required.
type Adapter struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	logger  *slog.Logger
	baseURL string
}

// New creates a Deezer adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Deezer adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("provider", "deezer")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider identifier.
func (a *Adapter) Name() provider.ProviderName { return provider.NameDeezer }

// RequiresAuth returns false since Deezer's public API needs no API key.
func (a *Adapter) RequiresAuth() bool { return false }

// Search implements match.Searcher. It returns at most five tracks.
func (a *Adapter) Search(ctx context.Context, query string) ([]match.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	if err := a.limiter.Wait(ctx, provider.NameDeezer); err != nil {
		return nil, err
	}

	params := url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(searchLimit)},
	}
	body, err := a.doRequest(ctx, a.baseURL+"/search/track?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	if resp.Error != nil {
		cause := fmt.Errorf("%s: %s", resp.Error.Type, resp.Error.Message)
		if resp.Error.Code == quotaExceededCode {
			return nil, &provider.ErrProviderUnavailable{
				Provider:   provider.NameDeezer,
				Cause:      cause,
				RetryAfter: 5 * time.Second,
			}
		}
		return nil, &provider.ErrProviderUnavailable{Provider: provider.NameDeezer, Cause: cause}
	}

	n := min(len(resp.Data), searchLimit)
	results := make([]match.SearchResult, 0, n)
	for _, t := range resp.Data[:n] {
		artist := provider.CleanArtistName(t.Artist.Name)
		results = append(results, match.SearchResult{
			ID:       strconv.FormatInt(t.ID, 10),
			Title:    provider.CleanTitle(t.Title, artist),
			Artist:   artist,
			Duration: t.Duration,
			URL:      t.Link,
			Platform: string(provider.NameDeezer),
		})
	}

	a.logger.Debug("track search completed",
		slog.String("query", query),
		slog.Int("results", len(results)))

	return results, nil
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
			Provider: provider.NameDeezer,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusTooManyRequests:
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameDeezer,
			Cause:    fmt.Errorf("rate limited by server"),
		}
	default:
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameDeezer,
			Cause:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
}
