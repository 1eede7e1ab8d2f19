package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sydlexius/needledrop/internal/match"
)

// NamedSearcher is a fallback search source that can identify itself.
type NamedSearcher interface {
	match.Searcher
	Name() ProviderName
}

// SearchChain queries searchers in order and returns the first non-empty
// result set. A failing searcher is logged and skipped.
type SearchChain struct {
	searchers []NamedSearcher
	logger    *slog.Logger
}

// NewSearchChain creates a chain over the given searchers.
func NewSearchChain(logger *slog.Logger, searchers ...NamedSearcher) *SearchChain {
	return &SearchChain{
		searchers: searchers,
		logger:    logger.With(slog.String("component", "search-chain")),
	}
}

// Len returns the number of searchers in the chain.
func (c *SearchChain) Len() int { return len(c.searchers) }

// Search implements match.Searcher. It only returns an error when every
// searcher failed.
func (c *SearchChain) Search(ctx context.Context, query string) ([]match.SearchResult, error) {
	var errs []error
	for _, s := range c.searchers {
		results, err := s.Search(ctx, query)
		if err != nil {
			c.logger.Warn("searcher failed",
				slog.String("provider", string(s.Name())),
				slog.String("query", query),
				slog.Any("error", err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if len(results) > 0 {
			c.logger.Debug("search answered",
				slog.String("provider", string(s.Name())),
				slog.Int("results", len(results)),
			)
			return results, nil
		}
	}
	if len(errs) > 0 && len(errs) == len(c.searchers) {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}
