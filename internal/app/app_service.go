package app

import (
	"context"
	"fmt"
	"time"

	"orderdesk/internal/core"
	"orderdesk/internal/docs"

	"github.com/jackc/pgx/v5/pgxpool"
)

type appService struct {
	pool     *pgxpool.Pool
	orders   core.OrderService
	batches  core.BatchService
	tracking core.TrackingService
	risk     core.RiskService
	catalog  core.CatalogService
	users    core.UserService
	events   *core.EventRecorder
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	pool *pgxpool.Pool,
	orders core.OrderService,
	batches core.BatchService,
	tracking core.TrackingService,
	risk core.RiskService,
	catalog core.CatalogService,
	users core.UserService,
	events *core.EventRecorder,
) ApplicationService {
	return &appService{
		pool:     pool,
		orders:   orders,
		batches:  batches,
		tracking: tracking,
		risk:     risk,
		catalog:  catalog,
		users:    users,
		events:   events,
	}
}

// ── Storefront ───────────────────────────────────────────────────────────────

func (s *appService) ListCatalog(ctx context.Context) (*ProductListResult, error) {
	products, err := s.catalog.ListProducts(ctx, true)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) GetLanding(ctx context.Context, slug string) (*LandingResult, error) {
	product, landing, err := s.catalog.GetProductBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &LandingResult{Product: product, Landing: landing}, nil
}

func (s *appService) Checkout(ctx context.Context, req CheckoutRequest) (*OrderResult, error) {
	order, err := s.orders.CreateOrder(ctx, core.CheckoutInput{
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		Address:      req.Address,
		City:         req.City,
		IP:           req.IP,
		Items:        req.Items,
	})
	if err != nil {
		return nil, err
	}

	// Scoring is best-effort: a checkout never fails because the scorer did.
	if scored, err := s.risk.ScoreOrder(ctx, order.ID); err == nil {
		scored.Items = order.Items
		order = scored
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) LookupOrder(ctx context.Context, orderNumber string) (*OrderResult, error) {
	order, err := s.orders.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

// ── Orders ───────────────────────────────────────────────────────────────────

func (s *appService) ListOrders(ctx context.Context, status *string, reviewOnly bool) (*OrderListResult, error) {
	var st *core.OrderStatus
	if status != nil {
		v := core.OrderStatus(*status)
		st = &v
	}
	orders, err := s.orders.ListOrders(ctx, st, reviewOnly)
	if err != nil {
		return nil, err
	}
	return &OrderListResult{Orders: orders}, nil
}

func (s *appService) GetOrder(ctx context.Context, orderID int64) (*OrderResult, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) ConfirmOrder(ctx context.Context, req ConfirmOrderRequest) (*OrderResult, error) {
	order, err := s.orders.ConfirmOrder(ctx, req.OrderID, req.Version, req.Actor, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) UpdateOrderFields(ctx context.Context, req UpdateOrderRequest) (*OrderResult, error) {
	order, err := s.orders.UpdateFields(ctx, req.OrderID, req.Version, req.Edits, req.Actor)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) UpdateItemQuantity(ctx context.Context, req UpdateItemRequest) (*OrderResult, error) {
	order, err := s.orders.UpdateItemQuantity(ctx, req.OrderID, req.ItemID, req.Qty, req.Version, req.Actor)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) DeleteItem(ctx context.Context, req DeleteItemRequest) (*OrderResult, error) {
	order, err := s.orders.DeleteItem(ctx, req.OrderID, req.ItemID, req.Version, req.Actor)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) CancelOrder(ctx context.Context, req TransitionRequest) (*OrderResult, error) {
	order, err := s.orders.CancelOrder(ctx, req.OrderID, req.Version, req.Reason, req.Actor)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) HoldOrder(ctx context.Context, req TransitionRequest) (*OrderResult, error) {
	order, err := s.orders.HoldOrder(ctx, req.OrderID, req.Version, req.Reason, req.Actor)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) MarkOrderReviewed(ctx context.Context, orderID int64, version int, actor string) (*OrderResult, error) {
	order, err := s.orders.MarkReviewed(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) SetTracking(ctx context.Context, orderID int64, trackingNumber, actor string) (*OrderResult, error) {
	order, err := s.orders.SetTrackingNumber(ctx, orderID, trackingNumber, actor)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) OrderEvents(ctx context.Context, orderID int64) ([]core.OrderEvent, error) {
	return s.events.OrderEvents(ctx, orderID)
}

func (s *appService) ScoreOrder(ctx context.Context, orderID int64) (*OrderResult, error) {
	order, err := s.risk.ScoreOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

// ── Batches ──────────────────────────────────────────────────────────────────

func (s *appService) batchResult(batch *core.Batch) *BatchResult {
	return &BatchResult{
		Batch:    batch,
		Warnings: core.EvaluateWarnings(batch, time.Now()),
	}
}

func (s *appService) CreateBatch(ctx context.Context, actor string) (*BatchResult, error) {
	batch, err := s.batches.CreateBatch(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.batchResult(batch), nil
}

func (s *appService) ListBatches(ctx context.Context) (*BatchListResult, error) {
	batches, err := s.batches.ListBatches(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	warnings := make(map[int64][]core.BatchWarning)
	for i := range batches {
		if w := core.EvaluateWarnings(&batches[i], now); len(w) > 0 {
			warnings[batches[i].ID] = w
		}
	}
	return &BatchListResult{Batches: batches, Warnings: warnings}, nil
}

func (s *appService) GetBatch(ctx context.Context, batchID int64) (*BatchDetailResult, error) {
	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	orders, err := s.batches.BatchOrders(ctx, batchID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.batches.SnapshotItems(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return &BatchDetailResult{
		Batch:    batch,
		Warnings: core.EvaluateWarnings(batch, time.Now()),
		Orders:   orders,
		Snapshot: snapshot,
	}, nil
}

func (s *appService) ReleaseBatch(ctx context.Context, batchID int64, actor string) (*BatchResult, error) {
	batch, err := s.batches.ReleaseBatch(ctx, batchID, actor)
	if err != nil {
		return nil, err
	}
	return s.batchResult(batch), nil
}

func (s *appService) UndoRelease(ctx context.Context, batchID int64, actor, reason string) (*BatchResult, error) {
	batch, err := s.batches.UndoRelease(ctx, batchID, actor, reason)
	if err != nil {
		return nil, err
	}
	return s.batchResult(batch), nil
}

func (s *appService) BatchEvents(ctx context.Context, batchID int64) ([]core.BatchEvent, error) {
	return s.events.BatchEvents(ctx, batchID)
}

func (s *appService) PrintPackingList(ctx context.Context, batchID int64, actor string) (*DocumentResult, error) {
	batch, err := s.batches.PrintPackingList(ctx, batchID, actor)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.batches.SnapshotItems(ctx, batchID)
	if err != nil {
		return nil, err
	}
	data, err := docs.RenderPackingList(batch, snapshot, time.Now())
	if err != nil {
		return nil, err
	}
	return &DocumentResult{
		Filename:    fmt.Sprintf("batch-%d-packing-list.html", batchID),
		ContentType: "text/html; charset=utf-8",
		Data:        data,
		Batch:       batch,
	}, nil
}

func (s *appService) PrintPackingSlips(ctx context.Context, batchID int64, actor string) (*DocumentResult, error) {
	batch, err := s.batches.PrintPackingSlips(ctx, batchID, actor)
	if err != nil {
		return nil, err
	}
	orders, err := s.batches.BatchOrders(ctx, batchID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.batches.SnapshotItems(ctx, batchID)
	if err != nil {
		return nil, err
	}
	data, err := docs.RenderPackingSlips(batch, orders, snapshot)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{
		Filename:    fmt.Sprintf("batch-%d-packing-slips.html", batchID),
		ContentType: "text/html; charset=utf-8",
		Data:        data,
		Batch:       batch,
	}, nil
}

func (s *appService) ShippingLabels(ctx context.Context, batchID int64) (*DocumentResult, error) {
	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	orders, err := s.batches.BatchOrders(ctx, batchID)
	if err != nil {
		return nil, err
	}
	data, err := docs.RenderShippingLabels(batchID, orders)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{
		Filename:    fmt.Sprintf("batch-%d-labels.pdf", batchID),
		ContentType: "application/pdf",
		Data:        data,
		Batch:       batch,
	}, nil
}

func (s *appService) ExportCourierCSV(ctx context.Context, batchID int64, actor string) (*DocumentResult, error) {
	settings, err := s.catalog.CourierSettings(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.batches.BatchOrders(ctx, batchID)
	if err != nil {
		return nil, err
	}
	data, rowCount, err := docs.RenderCourierCSV(settings, orders)
	if err != nil {
		return nil, err
	}
	batch, err := s.batches.RecordCourierExport(ctx, batchID, actor, rowCount)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{
		Filename:    fmt.Sprintf("batch-%d-courier.csv", batchID),
		ContentType: "text/csv; charset=utf-8",
		Data:        data,
		Batch:       batch,
	}, nil
}

func (s *appService) ImportTracking(ctx context.Context, rows []core.TrackingRow, actor string) (*core.TrackingImportResult, error) {
	return s.tracking.ImportTracking(ctx, rows, actor)
}

// ── Catalog and settings ─────────────────────────────────────────────────────

func (s *appService) ListProducts(ctx context.Context) (*ProductListResult, error) {
	products, err := s.catalog.ListProducts(ctx, false)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) SyncProducts(ctx context.Context, actor string) (int, error) {
	return s.catalog.SyncProducts(ctx, actor)
}

func (s *appService) GenerateLanding(ctx context.Context, productID int64, actor string) (*LandingResult, error) {
	landing, err := s.catalog.GenerateLanding(ctx, productID, actor)
	if err != nil {
		return nil, err
	}
	return &LandingResult{Landing: landing}, nil
}

func (s *appService) SaveLandingConfig(ctx context.Context, productID int64, copy core.LandingCopy, actor string) (*LandingResult, error) {
	landing, err := s.catalog.SaveLandingConfig(ctx, productID, copy, actor)
	if err != nil {
		return nil, err
	}
	return &LandingResult{Landing: landing}, nil
}

func (s *appService) CourierSettings(ctx context.Context) (*core.CourierExportSettings, error) {
	return s.catalog.CourierSettings(ctx)
}

func (s *appService) SaveCourierSettings(ctx context.Context, name string, columns []core.CourierColumn) (*core.CourierExportSettings, error) {
	return s.catalog.SaveCourierSettings(ctx, name, columns)
}

// ── Auth ─────────────────────────────────────────────────────────────────────

func (s *appService) Authenticate(ctx context.Context, username, password string) (*core.AdminUser, error) {
	return s.users.Authenticate(ctx, username, password)
}

func (s *appService) GetUser(ctx context.Context, id int) (*core.AdminUser, error) {
	return s.users.GetByID(ctx, id)
}
