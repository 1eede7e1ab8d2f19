package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/sydlexius/needledrop/internal/api/middleware"
	"github.com/sydlexius/needledrop/internal/maintenance"
	"github.com/sydlexius/needledrop/internal/release"
	"github.com/sydlexius/needledrop/internal/webhook"
)

// RouterDeps bundles all dependencies needed by the HTTP router.
type RouterDeps struct {
	ReleaseService    *release.Service
	WebhookService    *webhook.Service
	WebhookDispatcher *webhook.Dispatcher
	MaintenanceSvc    *maintenance.Service
	MatchLimiter      *middleware.IPRateLimiter
	DB                *sql.DB
	Logger            *slog.Logger
	BasePath          string
	Version           string
}

// Router sets up all HTTP routes for the application.
type Router struct {
	releaseService    *release.Service
	webhookService    *webhook.Service
	webhookDispatcher *webhook.Dispatcher
	maintenanceSvc    *maintenance.Service
	matchLimiter      *middleware.IPRateLimiter
	db                *sql.DB
	logger            *slog.Logger
	basePath          string
	version           string
}

// NewRouter creates a new Router with all routes configured.
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		releaseService:    deps.ReleaseService,
		webhookService:    deps.WebhookService,
		webhookDispatcher: deps.WebhookDispatcher,
		maintenanceSvc:    deps.MaintenanceSvc,
		matchLimiter:      deps.MatchLimiter,
		db:                deps.DB,
		logger:            deps.Logger,
		basePath:          deps.BasePath,
		version:           deps.Version,
	}
}

// Handler returns the fully configured HTTP handler with middleware applied.
func (r *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	bp := r.basePath

	match := http.Handler(http.HandlerFunc(r.handleMatchRelease))
	if r.matchLimiter != nil {
		match = r.matchLimiter.Middleware(match)
	}

	mux.HandleFunc("GET "+bp+"/api/v1/health", r.handleHealth)

	mux.HandleFunc("GET "+bp+"/api/v1/releases", r.handleListRuns)
	mux.Handle("POST "+bp+"/api/v1/releases/{id}/match", match)
	mux.HandleFunc("GET "+bp+"/api/v1/releases/{id}/matches", r.handleGetMatches)
	mux.HandleFunc("DELETE "+bp+"/api/v1/releases/{id}/matches", r.handleClearMatches)
	mux.HandleFunc("GET "+bp+"/api/v1/releases/{id}/review", r.handleReview)
	mux.HandleFunc("PUT "+bp+"/api/v1/releases/{id}/tracks/{index}", r.handleDecideTrack)
	mux.HandleFunc("POST "+bp+"/api/v1/releases/{id}/approve-fast", r.handleApproveFast)

	mux.HandleFunc("GET "+bp+"/api/v1/webhooks", r.handleListWebhooks)
	mux.HandleFunc("POST "+bp+"/api/v1/webhooks", r.handleCreateWebhook)
	mux.HandleFunc("GET "+bp+"/api/v1/webhooks/{id}", r.handleGetWebhook)
	mux.HandleFunc("PUT "+bp+"/api/v1/webhooks/{id}", r.handleUpdateWebhook)
	mux.HandleFunc("DELETE "+bp+"/api/v1/webhooks/{id}", r.handleDeleteWebhook)
	mux.HandleFunc("POST "+bp+"/api/v1/webhooks/{id}/test", r.handleTestWebhook)

	if r.maintenanceSvc != nil {
		mux.HandleFunc("GET "+bp+"/api/v1/maintenance/status", r.handleMaintenanceStatus)
		mux.HandleFunc("POST "+bp+"/api/v1/maintenance/optimize", r.handleOptimize)
		mux.HandleFunc("POST "+bp+"/api/v1/maintenance/vacuum", r.handleVacuum)
	}

	var handler http.Handler = mux
	handler = middleware.SecurityHeaders(handler)
	handler = middleware.Recover(r.logger)(handler)
	handler = middleware.Logging(r.logger)(handler)
	return handler
}
