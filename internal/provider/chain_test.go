package provider

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sydlexius/needledrop/internal/match"
)

type stubSearcher struct {
	name    ProviderName
	results []match.SearchResult
	err     error
	calls   int
}

func (s *stubSearcher) Name() ProviderName { return s.name }

func (s *stubSearcher) Search(_ context.Context, _ string) ([]match.SearchResult, error) {
	s.calls++
	return s.results, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSearchChain_FirstNonEmptyWins(t *testing.T) {
	yt := &stubSearcher{name: NameYouTube}
	dz := &stubSearcher{name: NameDeezer, results: []match.SearchResult{{ID: "1", Platform: "deezer"}}}
	last := &stubSearcher{name: "other", results: []match.SearchResult{{ID: "2"}}}
	chain := NewSearchChain(testLogger(), yt, dz, last)

	results, err := chain.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "1" {
		t.Errorf("results = %+v, want deezer hit", results)
	}
	if yt.calls != 1 || dz.calls != 1 || last.calls != 0 {
		t.Errorf("calls = %d/%d/%d, want 1/1/0", yt.calls, dz.calls, last.calls)
	}
}

func TestSearchChain_SkipsFailures(t *testing.T) {
	yt := &stubSearcher{name: NameYouTube, err: errors.New("boom")}
	dz := &stubSearcher{name: NameDeezer, results: []match.SearchResult{{ID: "1"}}}
	chain := NewSearchChain(testLogger(), yt, dz)

	results, err := chain.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestSearchChain_AllFailed(t *testing.T) {
	errYT := errors.New("yt down")
	chain := NewSearchChain(testLogger(),
		&stubSearcher{name: NameYouTube, err: errYT},
		&stubSearcher{name: NameDeezer, err: errors.New("dz down")},
	)

	_, err := chain.Search(context.Background(), "q")
	if !errors.Is(err, errYT) {
		t.Errorf("err = %v, want joined error containing yt failure", err)
	}
}

func TestSearchChain_EmptyAndPartialFailure(t *testing.T) {
	chain := NewSearchChain(testLogger(),
		&stubSearcher{name: NameYouTube, err: errors.New("down")},
		&stubSearcher{name: NameDeezer},
	)
	results, err := chain.Search(context.Background(), "q")
	if err != nil || results != nil {
		t.Errorf("results=%v err=%v, want nil/nil", results, err)
	}

	empty := NewSearchChain(testLogger())
	if empty.Len() != 0 {
		t.Errorf("Len = %d", empty.Len())
	}
	if results, err := empty.Search(context.Background(), "q"); err != nil || results != nil {
		t.Errorf("empty chain: results=%v err=%v", results, err)
	}
}

func TestRateLimiterMap_WaitCanceled(t *testing.T) {
	m := NewRateLimiterMap()
	m.SetLimit(NameDeezer, 0.001)

	if err := m.Wait(context.Background(), NameDeezer); err != nil {
		t.Fatalf("first wait should use the burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	var unavailable *ErrProviderUnavailable
	if err := m.Wait(ctx, NameDeezer); !errors.As(err, &unavailable) {
		t.Errorf("err = %v, want ErrProviderUnavailable", err)
	}

	if err := m.Wait(context.Background(), "unknown"); err != nil {
		t.Errorf("unknown provider should not block: %v", err)
	}
}

func TestProviderErrors(t *testing.T) {
	cause := errors.New("timeout")
	err := error(&ErrProviderUnavailable{Provider: NameYouTube, Cause: cause})
	if !errors.Is(err, cause) {
		t.Error("ErrProviderUnavailable should unwrap to its cause")
	}
	if NameDeezer.DisplayName() != "Deezer" || ProviderName("x").DisplayName() != "x" {
		t.Error("unexpected display names")
	}
}
