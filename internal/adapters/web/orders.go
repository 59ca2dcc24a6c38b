package web

import (
	"context"
	"net/http"

	"orderdesk/internal/app"
)

// listOrders handles GET /api/orders?status=&review=1.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var status *string
	if s := r.URL.Query().Get("status"); s != "" {
		status = &s
	}
	reviewOnly := r.URL.Query().Get("review") == "1"

	result, err := h.svc.ListOrders(r.Context(), status, reviewOnly)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) orderEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	events, err := h.svc.OrderEvents(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, events)
}

// confirmOrder handles POST /api/orders/{id}/confirm. The idempotency key
// comes from the Idempotency-Key header or the body; one of them is required.
func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	req := app.ConfirmOrderRequest{OrderID: id, Actor: actor(r)}
	if !decodeJSON(w, r, &req) {
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}
	if req.IdempotencyKey == "" {
		writeError(w, r, "an idempotency key is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ConfirmOrder(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	req := app.UpdateOrderRequest{OrderID: id, Actor: actor(r)}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.UpdateOrderFields(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := idParam(w, r, "itemID")
	if !ok {
		return
	}
	req := app.UpdateItemRequest{OrderID: id, ItemID: itemID, Actor: actor(r)}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Qty < 1 {
		writeError(w, r, "quantity must be at least 1", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.UpdateItemQuantity(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := idParam(w, r, "itemID")
	if !ok {
		return
	}
	req := app.DeleteItemRequest{OrderID: id, ItemID: itemID, Actor: actor(r)}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.DeleteItem(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.CancelOrder)
}

func (h *Handler) holdOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.HoldOrder)
}

// transition is the shared body of cancel and hold: both take a version and an
// optional reason and return the updated order.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, req app.TransitionRequest) (*app.OrderResult, error)) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	req := app.TransitionRequest{OrderID: id, Actor: actor(r)}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := fn(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) markReviewed(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Version int `json:"version"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.MarkOrderReviewed(r.Context(), id, req.Version, actor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) setTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		TrackingNumber string `json:"tracking_number"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TrackingNumber == "" {
		writeError(w, r, "a tracking number is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.SetTracking(r.Context(), id, req.TrackingNumber, actor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) scoreOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.ScoreOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}
