package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sydlexius/needledrop/internal/database"
	"github.com/sydlexius/needledrop/internal/match"
	"github.com/sydlexius/needledrop/internal/provider"
	"github.com/sydlexius/needledrop/internal/provider/discogs"
	"github.com/sydlexius/needledrop/internal/release"
	"github.com/sydlexius/needledrop/internal/review"
	"github.com/sydlexius/needledrop/internal/webhook"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type stubFetcher struct {
	rel *discogs.Release
	err error
}

func (f *stubFetcher) GetRelease(_ context.Context, _ int) (*discogs.Release, error) {
	return f.rel, f.err
}

// testRouter wires a router over an in-memory database and the real matching
// engine without a fallback searcher.
func testRouter(t *testing.T, fetcher release.Fetcher) (*Router, *review.Service) {
	t.Helper()
	db := setupTestDB(t)
	logger := testLogger()
	store := review.NewService(db)
	engine := match.NewEngine(nil, logger, match.Options{})
	svc := release.NewService(fetcher, engine, store, nil, logger, release.Options{AutoApproveTop: true})
	whSvc := webhook.NewService(db)
	r := NewRouter(RouterDeps{
		ReleaseService:    svc,
		WebhookService:    whSvc,
		WebhookDispatcher: webhook.NewDispatcher(whSvc, logger),
		DB:                db,
		Logger:            logger,
		Version:           "test",
	})
	return r, store
}

const ramBody = `{
	"artist": "Daft Punk",
	"tracks": [
		{"position": "A1", "title": "Give Life Back to Music", "duration": "4:34"},
		{"position": "A2", "title": "The Game of Love", "duration": "5:21"}
	],
	"videos": [
		{"uri": "https://www.youtube.com/watch?v=IluRBvnYMoY", "title": "Give Life Back to Music", "duration": 274, "embed": true}
	]
}`

func matchRequest(t *testing.T, r *Router, id, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/releases/"+id+"/match", strings.NewReader(body))
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	r.handleMatchRelease(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	r, _ := testRouter(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	r.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("resp = %v", resp)
	}
	if v, ok := resp["schema_version"].(float64); !ok || v < 1 {
		t.Errorf("schema_version = %v", resp["schema_version"])
	}
}

func TestHandleMatchRelease_Body(t *testing.T) {
	r, store := testRouter(t, nil)

	w := matchRequest(t, r, "4570366", ramBody)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var out release.Outcome
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Result.ReleaseID != 4570366 || out.Result.TotalTracks != 2 {
		t.Errorf("result = %+v", out.Result)
	}
	// The second track still reaches the trusted floor against the only
	// pooled video, but stays out of the top bucket.
	if out.Saved != 2 || out.AutoApproved != 1 {
		t.Errorf("saved = %d, auto approved = %d, want 2 and 1", out.Saved, out.AutoApproved)
	}

	m, err := store.GetMatch(context.Background(), 4570366, 0)
	if err != nil {
		t.Fatalf("GetMatch: %v", err)
	}
	if m.MatchURL != "https://www.youtube.com/watch?v=IluRBvnYMoY" || m.Status != review.StatusApproved {
		t.Errorf("stored = %+v", m)
	}
}

func TestHandleMatchRelease_BadInput(t *testing.T) {
	r, _ := testRouter(t, nil)

	tests := []struct {
		name, id, body string
		want           int
	}{
		{"non-numeric id", "abc", ramBody, http.StatusBadRequest},
		{"zero id", "0", ramBody, http.StatusBadRequest},
		{"malformed json", "1", `{"artist":`, http.StatusBadRequest},
		{"unknown field", "1", `{"artist":"x","tracks":[{"title":"a"}],"extra":1}`, http.StatusBadRequest},
		{"no tracks", "1", `{"artist":"x","tracks":[]}`, http.StatusBadRequest},
		{"no fetcher", "1", ``, http.StatusBadRequest},
		{"too large", "1", `{"artist":"` + strings.Repeat("x", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := matchRequest(t, r, tt.id, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestHandleMatchRelease_Fetch(t *testing.T) {
	rel := &discogs.Release{
		ID:     4570366,
		Artist: "Daft Punk",
		Tracks: []match.Track{{Position: "A1", Title: "Give Life Back to Music", Duration: "4:34"}},
		Videos: []match.Video{{URI: "https://youtu.be/IluRBvnYMoY", Title: "Give Life Back to Music", Duration: 274}},
	}
	r, _ := testRouter(t, &stubFetcher{rel: rel})

	w := matchRequest(t, r, "4570366", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var out release.Outcome
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.CanApprove {
		t.Error("single top-bucket track should make the release approvable")
	}
}

func TestHandleMatchRelease_ProviderErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		want       int
		retryAfter string
	}{
		{"not found", &provider.ErrNotFound{Provider: provider.NameDiscogs, ID: "9"}, http.StatusNotFound, ""},
		{"auth", &provider.ErrAuthRequired{Provider: provider.NameDiscogs}, http.StatusBadGateway, ""},
		{"rate limited", &provider.ErrProviderUnavailable{Provider: provider.NameDiscogs, RetryAfter: time.Minute}, http.StatusBadGateway, "60"},
		{"down", &provider.ErrProviderUnavailable{Provider: provider.NameDiscogs}, http.StatusBadGateway, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := testRouter(t, &stubFetcher{err: tt.err})
			w := matchRequest(t, r, "9", "")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if got := w.Header().Get("Retry-After"); got != tt.retryAfter {
				t.Errorf("Retry-After = %q, want %q", got, tt.retryAfter)
			}
		})
	}
}

// seedMatches stores one top, one fast and one hidden match under release 7.
func seedMatches(t *testing.T, store *review.Service) {
	t.Helper()
	ctx := context.Background()
	for i, conf := range []float64{0.95, 0.88, 0.4} {
		m := &review.TrackMatch{
			ReleaseID:  7,
			TrackIndex: i,
			Platform:   "youtube",
			MatchURL:   "https://www.youtube.com/watch?v=vid" + string(rune('a'+i)),
			Confidence: conf,
		}
		if err := store.SaveMatch(ctx, m); err != nil {
			t.Fatalf("SaveMatch: %v", err)
		}
	}
	if err := store.SaveRun(ctx, &review.Run{ReleaseID: 7, TotalTracks: 3, ProcessedTracks: 3}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
}

func TestHandleReview(t *testing.T) {
	r, store := testRouter(t, nil)
	seedMatches(t, store)

	for _, tt := range []struct {
		query string
		items int
	}{
		{"", 2},
		{"?show_hidden=true", 3},
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/releases/7/review"+tt.query, nil)
		req.SetPathValue("id", "7")
		w := httptest.NewRecorder()
		r.handleReview(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var q review.Queue
		if err := json.NewDecoder(w.Body).Decode(&q); err != nil {
			t.Fatal(err)
		}
		if len(q.Items) != tt.items || q.HiddenCount != 1 || q.TrackCount != 3 {
			t.Errorf("query %q: items = %d, hidden = %d, tracks = %d", tt.query, len(q.Items), q.HiddenCount, q.TrackCount)
		}
		if q.CanApprove {
			t.Error("release with fast and hidden tracks should not be approvable")
		}
	}
}

func TestHandleGetMatches(t *testing.T) {
	r, store := testRouter(t, nil)
	seedMatches(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/releases/7/matches", nil)
	req.SetPathValue("id", "7")
	w := httptest.NewRecorder()
	r.handleGetMatches(w, req)

	var matches []review.TrackMatch
	if err := json.NewDecoder(w.Body).Decode(&matches); err != nil {
		t.Fatal(err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/releases/8/matches", nil)
	req.SetPathValue("id", "8")
	w = httptest.NewRecorder()
	r.handleGetMatches(w, req)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("unmatched release body = %s, want []", w.Body.String())
	}
}

func decide(t *testing.T, r *Router, id, index, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/releases/"+id+"/tracks/"+index, strings.NewReader(body))
	req.SetPathValue("id", id)
	req.SetPathValue("index", index)
	w := httptest.NewRecorder()
	r.handleDecideTrack(w, req)
	return w
}

func TestHandleDecideTrack(t *testing.T) {
	r, store := testRouter(t, nil)
	seedMatches(t, store)

	w := decide(t, r, "7", "2", `{"status":"approved","verified_by":"alice"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var m review.TrackMatch
	if err := json.NewDecoder(w.Body).Decode(&m); err != nil {
		t.Fatal(err)
	}
	if m.Status != review.StatusApproved || !m.Approved || m.VerifiedBy != "alice" || m.VerifiedAt == nil {
		t.Errorf("match = %+v", m)
	}

	tests := []struct {
		name, id, index, body string
		want                  int
	}{
		{"unknown status", "7", "0", `{"status":"maybe","verified_by":"alice"}`, http.StatusBadRequest},
		{"missing reviewer", "7", "0", `{"status":"rejected"}`, http.StatusBadRequest},
		{"reserved reviewer", "7", "0", `{"status":"approved","verified_by":"auto"}`, http.StatusBadRequest},
		{"reserved reviewer padded", "7", "0", `{"status":"approved","verified_by":" Auto "}`, http.StatusBadRequest},
		{"negative index", "7", "-1", `{"status":"rejected","verified_by":"alice"}`, http.StatusBadRequest},
		{"no such track", "7", "9", `{"status":"rejected","verified_by":"alice"}`, http.StatusNotFound},
		{"no such release", "8", "0", `{"status":"rejected","verified_by":"alice"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := decide(t, r, tt.id, tt.index, tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHandleApproveFast(t *testing.T) {
	r, store := testRouter(t, nil)
	seedMatches(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/releases/7/approve-fast", strings.NewReader(`{"verified_by":"bob"}`))
	req.SetPathValue("id", "7")
	w := httptest.NewRecorder()
	r.handleApproveFast(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp map[string]int
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["approved"] != 1 {
		t.Errorf("approved = %d, want 1", resp["approved"])
	}

	m, err := store.GetMatch(context.Background(), 7, 1)
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != review.StatusApproved || m.VerifiedBy != "bob" {
		t.Errorf("fast match = %+v", m)
	}
	hidden, _ := store.GetMatch(context.Background(), 7, 2)
	if hidden.Status != review.StatusPending {
		t.Errorf("hidden match status = %s, want pending", hidden.Status)
	}
}

func TestHandleApproveFast_ReservedReviewer(t *testing.T) {
	r, store := testRouter(t, nil)
	seedMatches(t, store)

	for _, body := range []string{`{"verified_by":"auto"}`, `{"verified_by":""}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/releases/7/approve-fast", strings.NewReader(body))
		req.SetPathValue("id", "7")
		w := httptest.NewRecorder()
		r.handleApproveFast(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, w.Code)
		}
	}

	m, err := store.GetMatch(context.Background(), 7, 1)
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != review.StatusPending {
		t.Errorf("fast match status = %s, want pending", m.Status)
	}
}

func TestHandleClearMatches(t *testing.T) {
	r, store := testRouter(t, nil)
	seedMatches(t, store)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/releases/7/matches", nil)
	req.SetPathValue("id", "7")
	w := httptest.NewRecorder()
	r.handleClearMatches(w, req)

	var resp map[string]int64
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["removed"] != 3 {
		t.Errorf("removed = %d, want 3", resp["removed"])
	}
	if _, err := store.GetRun(context.Background(), 7); err != review.ErrNotFound {
		t.Errorf("run should be gone, got err = %v", err)
	}
}

func TestHandleListRuns(t *testing.T) {
	r, store := testRouter(t, nil)
	seedMatches(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/releases", nil)
	w := httptest.NewRecorder()
	r.handleListRuns(w, req)

	var runs []review.Run
	if err := json.NewDecoder(w.Body).Decode(&runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ReleaseID != 7 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestHandler_RoutesAndHeaders(t *testing.T) {
	r, store := testRouter(t, nil)
	seedMatches(t, store)
	r.basePath = "/nd"
	h := r.Handler()

	req := httptest.NewRequest(http.MethodGet, "/nd/api/v1/releases/7/review", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/releases/7/review", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("route outside base path: status = %d, want 404", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/nd/api/v1/releases/7/review", bytes.NewReader(nil))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method: status = %d, want 405", w.Code)
	}
}
