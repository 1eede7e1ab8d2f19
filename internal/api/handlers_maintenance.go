package api

import "net/http"

// GET /api/v1/maintenance/status
func (r *Router) handleMaintenanceStatus(w http.ResponseWriter, req *http.Request) {
	st, err := r.maintenanceSvc.Status(req.Context())
	if err != nil {
		r.writeServiceError(w, "reading maintenance status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// POST /api/v1/maintenance/optimize
func (r *Router) handleOptimize(w http.ResponseWriter, req *http.Request) {
	if err := r.maintenanceSvc.Optimize(req.Context()); err != nil {
		r.writeServiceError(w, "optimizing database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// POST /api/v1/maintenance/vacuum
func (r *Router) handleVacuum(w http.ResponseWriter, req *http.Request) {
	if err := r.maintenanceSvc.Vacuum(req.Context()); err != nil {
		r.writeServiceError(w, "vacuuming database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}
