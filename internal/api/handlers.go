package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sydlexius/needledrop/internal/database"
	"github.com/sydlexius/needledrop/internal/provider"
	"github.com/sydlexius/needledrop/internal/release"
	"github.com/sydlexius/needledrop/internal/review"
	"github.com/sydlexius/needledrop/internal/webhook"
)

// maxBodyBytes caps request bodies; a release with videos is well below it.
const maxBodyBytes = 1 << 20

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": r.version,
	}
	if r.db != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := r.db.PingContext(ctx); err != nil {
			r.logger.Error("health check database ping", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "error": "database unavailable"})
			return
		}
		if v, err := database.Version(r.db); err == nil {
			resp["schema_version"] = v
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps domain and provider errors to HTTP statuses.
func (r *Router) writeServiceError(w http.ResponseWriter, op string, err error) {
	var (
		notFound    *provider.ErrNotFound
		authErr     *provider.ErrAuthRequired
		unavailable *provider.ErrProviderUnavailable
	)
	switch {
	case errors.Is(err, review.ErrNotFound):
		writeError(w, http.StatusNotFound, "match not found")
	case errors.Is(err, webhook.ErrNotFound):
		writeError(w, http.StatusNotFound, "webhook not found")
	case errors.Is(err, release.ErrReservedReviewer):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, release.ErrNoFetcher):
		writeError(w, http.StatusBadRequest, "no Discogs token configured; supply artist, tracks and videos in the request body")
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, "release not found on "+notFound.Provider.DisplayName())
	case errors.As(err, &authErr):
		writeError(w, http.StatusBadGateway, authErr.Provider.DisplayName()+" credential missing or rejected")
	case errors.As(err, &unavailable):
		if unavailable.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(unavailable.RetryAfter.Seconds())))
		}
		writeError(w, http.StatusBadGateway, unavailable.Provider.DisplayName()+" is unavailable")
	default:
		r.logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// releaseID parses the {id} path value.
func releaseID(req *http.Request) (int, bool) {
	id, err := strconv.Atoi(req.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
