package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"orderdesk/internal/app"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string) http.Handler {
	h := &Handler{svc: svc, jwtSecret: jwtSecret}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	// ── Health (public) ──────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	// ── Auth (public) ────────────────────────────────────────────────────────
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Storefront (public, body-limited) ────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/shop/products", h.shopProducts)
		r.Get("/api/shop/products/{slug}", h.shopLanding)
		r.Post("/api/shop/checkout", h.shopCheckout)
		r.Get("/api/shop/orders/{number}", h.shopOrderLookup)
	})

	// ── Dashboard API (JWT cookie required) ──────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)

		// Orders
		r.Get("/api/orders", h.listOrders)
		r.Get("/api/orders/{id}", h.getOrder)
		r.Get("/api/orders/{id}/events", h.orderEvents)
		r.Post("/api/orders/{id}/confirm", h.confirmOrder)
		r.Patch("/api/orders/{id}", h.updateOrder)
		r.Patch("/api/orders/{id}/items/{itemID}", h.updateItem)
		r.Delete("/api/orders/{id}/items/{itemID}", h.deleteItem)
		r.Post("/api/orders/{id}/cancel", h.cancelOrder)
		r.Post("/api/orders/{id}/hold", h.holdOrder)
		r.Post("/api/orders/{id}/review", h.markReviewed)
		r.Post("/api/orders/{id}/tracking", h.setTracking)
		r.Post("/api/orders/{id}/score", h.scoreOrder)

		// Batches
		r.Get("/api/batches", h.listBatches)
		r.Post("/api/batches", h.createBatch)
		r.Get("/api/batches/{id}", h.getBatch)
		r.Get("/api/batches/{id}/events", h.batchEvents)
		r.Post("/api/batches/{id}/print/packing-list", h.printPackingList)
		r.Post("/api/batches/{id}/print/packing-slips", h.printPackingSlips)
		r.Get("/api/batches/{id}/labels", h.shippingLabels)
		r.Post("/api/batches/{id}/release", h.releaseBatch)
		r.Post("/api/batches/{id}/undo-release", h.undoRelease)
		r.Post("/api/batches/{id}/export", h.exportCourierCSV)

		// Tracking import
		r.Post("/api/tracking/import", h.importTracking)

		// Catalog and settings
		r.Get("/api/products", h.listProducts)
		r.Post("/api/products/sync", h.syncProducts)
		r.Post("/api/products/{id}/landing/generate", h.generateLanding)
		r.Put("/api/products/{id}/landing", h.saveLanding)
		r.Get("/api/settings/courier", h.courierSettings)
		r.Put("/api/settings/courier", h.saveCourierSettings)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// idParam extracts a numeric URL parameter; writes 400 and returns false when
// it does not parse.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, r, "invalid "+name+" parameter", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and writes an error response on
// failure. Returns HTTP 413 when the body exceeds the RequestBodyLimit cap;
// HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// writeDocument streams a rendered document as a download.
func writeDocument(w http.ResponseWriter, doc *app.DocumentResult) {
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	_, _ = w.Write(doc.Data)
}
