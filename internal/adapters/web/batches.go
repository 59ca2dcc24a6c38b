package web

import (
	"net/http"

	"orderdesk/internal/core"
)

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListBatches(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.CreateBatch(r.Context(), actor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, result)
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetBatch(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) batchEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	events, err := h.svc.BatchEvents(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, events)
}

// printPackingList handles POST /api/batches/{id}/print/packing-list. The
// response body is the rendered document; the print is recorded and may
// advance the batch status.
func (h *Handler) printPackingList(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	doc, err := h.svc.PrintPackingList(r.Context(), id, actor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeDocument(w, doc)
}

func (h *Handler) printPackingSlips(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	doc, err := h.svc.PrintPackingSlips(r.Context(), id, actor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeDocument(w, doc)
}

// shippingLabels handles GET /api/batches/{id}/labels. Label rendering is not
// a print action: it does not touch counters or batch status.
func (h *Handler) shippingLabels(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	doc, err := h.svc.ShippingLabels(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeDocument(w, doc)
}

func (h *Handler) releaseBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.ReleaseBatch(r.Context(), id, actor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) undoRelease(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.UndoRelease(r.Context(), id, actor(r), req.Reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) exportCourierCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	doc, err := h.svc.ExportCourierCSV(r.Context(), id, actor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeDocument(w, doc)
}

// importTracking handles POST /api/tracking/import. Conflicting rows come back
// as HTTP 409 with the full conflict list; clean rows are still applied.
func (h *Handler) importTracking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rows []core.TrackingRow `json:"rows"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Rows) == 0 {
		writeError(w, r, "no rows to import", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ImportTracking(r.Context(), req.Rows, actor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}
