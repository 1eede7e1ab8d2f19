package api

import (
	"net/http"

	"github.com/sydlexius/needledrop/internal/webhook"
)

// GET /api/v1/webhooks
func (r *Router) handleListWebhooks(w http.ResponseWriter, req *http.Request) {
	hooks, err := r.webhookService.List(req.Context())
	if err != nil {
		r.writeServiceError(w, "listing webhooks", err)
		return
	}
	writeJSON(w, http.StatusOK, hooks)
}

// POST /api/v1/webhooks
func (r *Router) handleCreateWebhook(w http.ResponseWriter, req *http.Request) {
	var wh webhook.Webhook
	if err := decodeBody(w, req, &wh); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	wh.ID = ""
	if err := wh.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := r.webhookService.Create(req.Context(), &wh); err != nil {
		r.writeServiceError(w, "creating webhook", err)
		return
	}
	writeJSON(w, http.StatusCreated, wh)
}

// GET /api/v1/webhooks/{id}
func (r *Router) handleGetWebhook(w http.ResponseWriter, req *http.Request) {
	wh, err := r.webhookService.GetByID(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, "getting webhook", err)
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

// PUT /api/v1/webhooks/{id}
func (r *Router) handleUpdateWebhook(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	existing, err := r.webhookService.GetByID(req.Context(), id)
	if err != nil {
		r.writeServiceError(w, "getting webhook", err)
		return
	}

	var body webhook.Webhook
	if err := decodeBody(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	body.ID = existing.ID
	body.CreatedAt = existing.CreatedAt
	if err := body.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := r.webhookService.Update(req.Context(), &body); err != nil {
		r.writeServiceError(w, "updating webhook", err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// DELETE /api/v1/webhooks/{id}
func (r *Router) handleDeleteWebhook(w http.ResponseWriter, req *http.Request) {
	if err := r.webhookService.Delete(req.Context(), req.PathValue("id")); err != nil {
		r.writeServiceError(w, "deleting webhook", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTestWebhook sends a single test delivery, without retries.
// POST /api/v1/webhooks/{id}/test
func (r *Router) handleTestWebhook(w http.ResponseWriter, req *http.Request) {
	wh, err := r.webhookService.GetByID(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, "getting webhook", err)
		return
	}
	if err := r.webhookDispatcher.Test(req.Context(), wh); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"status": "failed", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}
