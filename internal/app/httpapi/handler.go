// Package httpapi exposes the read-only ops surface: health, metrics and
// entity lookups for external indexers. All ledger mutations go through the
// services; nothing here writes.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	core "github.com/lancechain/ledger/internal/app/core/service"
	crosschainsvc "github.com/lancechain/ledger/internal/app/services/crosschain"
	escrowsvc "github.com/lancechain/ledger/internal/app/services/escrow"
	projectsvc "github.com/lancechain/ledger/internal/app/services/projects"
)

type handler struct {
	projects *projectsvc.Service
	escrow   *escrowsvc.Service
	relay    *crosschainsvc.Service
}

// NewHandler builds the ops router. metricsHandler serves /metrics; pass nil
// to omit the endpoint.
func NewHandler(projects *projectsvc.Service, escrow *escrowsvc.Service, relay *crosschainsvc.Service, metricsHandler http.Handler) http.Handler {
	h := &handler{projects: projects, escrow: escrow, relay: relay}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.health)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	r.Get("/projects/{id}", h.project)
	r.Get("/projects/{id}/milestones", h.milestones)
	r.Get("/payments/{id}", h.payment)
	r.Get("/operations/{id}", h.operation)
	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) project(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	proj, err := h.projects.GetProject(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

func (h *handler) milestones(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ms, err := h.projects.ListMilestones(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (h *handler) payment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pay, err := h.escrow.GetPayment(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pay)
}

func (h *handler) operation(w http.ResponseWriter, r *http.Request) {
	op, err := h.relay.GetOperation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case core.IsNotFound(err):
		writeError(w, http.StatusNotFound, err)
	case core.IsValidationError(err):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
