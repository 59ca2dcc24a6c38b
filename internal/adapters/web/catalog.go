package web

import (
	"net/http"

	"orderdesk/internal/core"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListProducts(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) syncProducts(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.SyncProducts(r.Context(), actor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	type response struct {
		Synced int `json:"synced"`
	}
	writeJSON(w, response{Synced: count})
}

func (h *Handler) generateLanding(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GenerateLanding(r.Context(), id, actor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) saveLanding(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req core.LandingCopy
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Headline == "" {
		writeError(w, r, "a headline is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.SaveLandingConfig(r.Context(), id, req, actor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) courierSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.CourierSettings(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, settings)
}

func (h *Handler) saveCourierSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string               `json:"name"`
		Columns []core.CourierColumn `json:"columns"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Columns) == 0 {
		writeError(w, r, "at least one column is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	settings, err := h.svc.SaveCourierSettings(r.Context(), req.Name, req.Columns)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, settings)
}
