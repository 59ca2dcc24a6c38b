package app

import (
	"context"

	"orderdesk/internal/core"
)

// ApplicationService is the single interface all adapters (Web, CLI) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no HTML, and no display logic of any kind.
type ApplicationService interface {
	// ── Storefront ──

	// ListCatalog returns the active products for the storefront.
	ListCatalog(ctx context.Context) (*ProductListResult, error)

	// GetLanding returns a product and its landing copy by slug.
	GetLanding(ctx context.Context, slug string) (*LandingResult, error)

	// Checkout creates a new order from a storefront cart. Prices are resolved
	// server-side from the catalog; client-sent prices are ignored.
	Checkout(ctx context.Context, req CheckoutRequest) (*OrderResult, error)

	// LookupOrder returns a customer-facing view of one order by its number.
	LookupOrder(ctx context.Context, orderNumber string) (*OrderResult, error)

	// ── Orders (dashboard) ──

	ListOrders(ctx context.Context, status *string, reviewOnly bool) (*OrderListResult, error)
	GetOrder(ctx context.Context, orderID int64) (*OrderResult, error)

	// ConfirmOrder is idempotent per key: a repeat with the same key returns
	// the original outcome without re-executing.
	ConfirmOrder(ctx context.Context, req ConfirmOrderRequest) (*OrderResult, error)

	// UpdateOrderFields applies field edits conditioned on the caller's
	// last-seen version.
	UpdateOrderFields(ctx context.Context, req UpdateOrderRequest) (*OrderResult, error)
	UpdateItemQuantity(ctx context.Context, req UpdateItemRequest) (*OrderResult, error)
	DeleteItem(ctx context.Context, req DeleteItemRequest) (*OrderResult, error)
	CancelOrder(ctx context.Context, req TransitionRequest) (*OrderResult, error)
	HoldOrder(ctx context.Context, req TransitionRequest) (*OrderResult, error)
	MarkOrderReviewed(ctx context.Context, orderID int64, version int, actor string) (*OrderResult, error)
	SetTracking(ctx context.Context, orderID int64, trackingNumber, actor string) (*OrderResult, error)
	OrderEvents(ctx context.Context, orderID int64) ([]core.OrderEvent, error)
	ScoreOrder(ctx context.Context, orderID int64) (*OrderResult, error)

	// ── Batches ──

	CreateBatch(ctx context.Context, actor string) (*BatchResult, error)
	ListBatches(ctx context.Context) (*BatchListResult, error)
	GetBatch(ctx context.Context, batchID int64) (*BatchDetailResult, error)
	ReleaseBatch(ctx context.Context, batchID int64, actor string) (*BatchResult, error)
	UndoRelease(ctx context.Context, batchID int64, actor, reason string) (*BatchResult, error)
	BatchEvents(ctx context.Context, batchID int64) ([]core.BatchEvent, error)

	// Print endpoints return the rendered document and record the print,
	// advancing batch status per the lifecycle rules.
	PrintPackingList(ctx context.Context, batchID int64, actor string) (*DocumentResult, error)
	PrintPackingSlips(ctx context.Context, batchID int64, actor string) (*DocumentResult, error)
	ShippingLabels(ctx context.Context, batchID int64) (*DocumentResult, error)

	// ExportCourierCSV renders the courier sheet from the saved column mapping
	// and records the export on the batch.
	ExportCourierCSV(ctx context.Context, batchID int64, actor string) (*DocumentResult, error)

	// ImportTracking applies a parsed tracking sheet. Conflicting rows are
	// reported via *core.TrackingConflictError; clean rows are still applied.
	ImportTracking(ctx context.Context, rows []core.TrackingRow, actor string) (*core.TrackingImportResult, error)

	// ── Catalog and settings ──

	ListProducts(ctx context.Context) (*ProductListResult, error)
	SyncProducts(ctx context.Context, actor string) (int, error)
	GenerateLanding(ctx context.Context, productID int64, actor string) (*LandingResult, error)
	SaveLandingConfig(ctx context.Context, productID int64, copy core.LandingCopy, actor string) (*LandingResult, error)
	CourierSettings(ctx context.Context) (*core.CourierExportSettings, error)
	SaveCourierSettings(ctx context.Context, name string, columns []core.CourierColumn) (*core.CourierExportSettings, error)

	// ── Auth ──

	Authenticate(ctx context.Context, username, password string) (*core.AdminUser, error)
	GetUser(ctx context.Context, id int) (*core.AdminUser, error)
}
