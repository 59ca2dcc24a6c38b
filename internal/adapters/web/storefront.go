package web

import (
	"net"
	"net/http"
	"strings"

	"orderdesk/internal/app"

	"github.com/go-chi/chi/v5"
)

// shopProducts handles GET /api/shop/products.
func (h *Handler) shopProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListCatalog(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// shopLanding handles GET /api/shop/products/{slug}.
func (h *Handler) shopLanding(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetLanding(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// shopCheckout handles POST /api/shop/checkout.
func (h *Handler) shopCheckout(w http.ResponseWriter, r *http.Request) {
	var req app.CheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CustomerName == "" || req.Phone == "" || req.Address == "" || len(req.Items) == 0 {
		writeError(w, r, "customer name, phone, address, and at least one item are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	req.IP = clientIP(r)

	result, err := h.svc.Checkout(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, result)
}

// shopOrderLookup handles GET /api/shop/orders/{number}.
func (h *Handler) shopOrderLookup(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.LookupOrder(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// clientIP extracts the client address, preferring the first X-Forwarded-For
// hop when the service runs behind a proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
