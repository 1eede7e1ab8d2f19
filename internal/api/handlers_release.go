package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sydlexius/needledrop/internal/release"
	"github.com/sydlexius/needledrop/internal/review"
)

// handleListRuns returns the latest run summary of every matched release.
// GET /api/v1/releases
func (r *Router) handleListRuns(w http.ResponseWriter, req *http.Request) {
	runs, err := r.releaseService.Runs(req.Context())
	if err != nil {
		r.writeServiceError(w, "listing runs", err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleMatchRelease runs matching for a release. With an empty body the
// release is fetched from Discogs; otherwise the body supplies it.
// POST /api/v1/releases/{id}/match
func (r *Router) handleMatchRelease(w http.ResponseWriter, req *http.Request) {
	id, ok := releaseID(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid release id")
		return
	}

	var in release.Input
	err := decodeBody(w, req, &in)
	switch {
	case errors.Is(err, io.EOF):
		out, err := r.releaseService.MatchRelease(req.Context(), id)
		if err != nil {
			r.writeServiceError(w, "matching release", err)
			return
		}
		writeJSON(w, http.StatusOK, out)
		return
	case err != nil:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(in.Tracks) == 0 {
		writeError(w, http.StatusBadRequest, "tracks are required")
		return
	}
	in.ReleaseID = id
	out, err := r.releaseService.MatchInput(req.Context(), in)
	if err != nil {
		r.writeServiceError(w, "matching release", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/v1/releases/{id}/matches
func (r *Router) handleGetMatches(w http.ResponseWriter, req *http.Request) {
	id, ok := releaseID(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid release id")
		return
	}
	matches, err := r.releaseService.Matches(req.Context(), id)
	if err != nil {
		r.writeServiceError(w, "listing matches", err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// GET /api/v1/releases/{id}/review?show_hidden=true
func (r *Router) handleReview(w http.ResponseWriter, req *http.Request) {
	id, ok := releaseID(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid release id")
		return
	}
	showHidden, _ := strconv.ParseBool(req.URL.Query().Get("show_hidden"))
	q, err := r.releaseService.Review(req.Context(), id, showHidden)
	if err != nil {
		r.writeServiceError(w, "building review queue", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type decisionRequest struct {
	Status     string `json:"status"`
	VerifiedBy string `json:"verified_by"`
}

// handleDecideTrack records a human decision on one track.
// PUT /api/v1/releases/{id}/tracks/{index}
func (r *Router) handleDecideTrack(w http.ResponseWriter, req *http.Request) {
	id, ok := releaseID(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid release id")
		return
	}
	index, err := strconv.Atoi(req.PathValue("index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "invalid track index")
		return
	}

	var body decisionRequest
	if err := decodeBody(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status, err := review.ParseStatus(body.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	verifiedBy, msg := reviewerName(body.VerifiedBy)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	m, err := r.releaseService.Decide(req.Context(), id, index, status, verifiedBy)
	if err != nil {
		r.writeServiceError(w, "recording decision", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// POST /api/v1/releases/{id}/approve-fast
func (r *Router) handleApproveFast(w http.ResponseWriter, req *http.Request) {
	id, ok := releaseID(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid release id")
		return
	}
	var body struct {
		VerifiedBy string `json:"verified_by"`
	}
	if err := decodeBody(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	verifiedBy, msg := reviewerName(body.VerifiedBy)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	n, err := r.releaseService.ApproveFast(req.Context(), id, verifiedBy)
	if err != nil {
		r.writeServiceError(w, "approving fast-track matches", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"approved": n})
}

// DELETE /api/v1/releases/{id}/matches
func (r *Router) handleClearMatches(w http.ResponseWriter, req *http.Request) {
	id, ok := releaseID(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid release id")
		return
	}
	n, err := r.releaseService.Clear(req.Context(), id)
	if err != nil {
		r.writeServiceError(w, "clearing matches", err)
		return
	}
	r.logger.Debug("matches cleared via api", slog.Int("release_id", id), slog.Int64("removed", n))
	writeJSON(w, http.StatusOK, map[string]int64{"removed": n})
}

// reviewerName trims a reviewer name and returns a client error message when
// it is blank or names the auto-approval policy.
func reviewerName(raw string) (string, string) {
	name := strings.TrimSpace(raw)
	switch {
	case name == "":
		return "", "verified_by is required"
	case strings.EqualFold(name, release.VerifiedByAuto):
		return "", "verified_by " + strconv.Quote(name) + " is reserved"
	}
	return name, ""
}
