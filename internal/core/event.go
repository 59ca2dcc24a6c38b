package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventType string

const (
	EventOrderCreated   EventType = "ORDER_CREATED"
	EventOrderConfirmed EventType = "ORDER_CONFIRMED"
	EventOrderEdited    EventType = "ORDER_EDITED"
	EventOrderItem      EventType = "ORDER_ITEM_CHANGED"
	EventOrderCanceled  EventType = "ORDER_CANCELED"
	EventOrderHeld      EventType = "ORDER_HELD"
	EventOrderReviewed  EventType = "ORDER_REVIEWED"
	EventTrackingSet    EventType = "TRACKING_SET"
	EventRiskScored     EventType = "RISK_SCORED"
	EventRiskFailed     EventType = "RISK_SCORE_FAILED"

	EventBatchCreated       EventType = "BATCH_CREATED"
	EventBatchPrinted       EventType = "BATCH_PRINTED"
	EventBatchReleased      EventType = "BATCH_RELEASED"
	EventBatchUndoneRelease EventType = "BATCH_RELEASE_UNDONE"
	EventCourierExported    EventType = "COURIER_EXPORTED"
	EventTrackingImported   EventType = "TRACKING_IMPORTED"

	EventProductsSynced     EventType = "PRODUCTS_SYNCED"
	EventProductsSyncFailed EventType = "PRODUCTS_SYNC_FAILED"
	EventLandingGenerated   EventType = "LANDING_GENERATED"
)

// EventPayload is the closed set of audit event payloads. Each event type has
// exactly one payload struct, so audit consumers get compile-time shapes
// instead of loose JSON blobs.
type EventPayload interface {
	EventType() EventType
}

type OrderCreatedPayload struct {
	OrderNumber string `json:"order_number"`
	ItemCount   int    `json:"item_count"`
	Total       string `json:"total"`
	Source      string `json:"source"` // "checkout" or "admin"
}

func (OrderCreatedPayload) EventType() EventType { return EventOrderCreated }

type OrderConfirmedPayload struct {
	IdempotencyKey string `json:"idempotency_key"`
	Version        int    `json:"version"`
}

func (OrderConfirmedPayload) EventType() EventType { return EventOrderConfirmed }

type OrderEditedPayload struct {
	Field   string `json:"field"`
	From    string `json:"from"`
	To      string `json:"to"`
	Version int    `json:"version"`
}

func (OrderEditedPayload) EventType() EventType { return EventOrderEdited }

type OrderItemChangedPayload struct {
	SKU     string `json:"sku"`
	OldQty  int    `json:"old_qty"`
	NewQty  int    `json:"new_qty"`
	Deleted bool   `json:"deleted"`
	// Totals after the recompute that every item mutation performs.
	Subtotal string `json:"subtotal"`
	Total    string `json:"total"`
}

func (OrderItemChangedPayload) EventType() EventType { return EventOrderItem }

type OrderCanceledPayload struct {
	Reason string `json:"reason,omitempty"`
}

func (OrderCanceledPayload) EventType() EventType { return EventOrderCanceled }

type OrderHeldPayload struct {
	Reason string `json:"reason,omitempty"`
}

func (OrderHeldPayload) EventType() EventType { return EventOrderHeld }

type OrderReviewedPayload struct{}

func (OrderReviewedPayload) EventType() EventType { return EventOrderReviewed }

type TrackingSetPayload struct {
	TrackingNumber string `json:"tracking_number"`
	Source         string `json:"source"` // "import" or "manual"
}

func (TrackingSetPayload) EventType() EventType { return EventTrackingSet }

type RiskScoredPayload struct {
	Score   int       `json:"score"`
	Level   RiskLevel `json:"level"`
	Reasons []string  `json:"reasons"`
}

func (RiskScoredPayload) EventType() EventType { return EventRiskScored }

type RiskFailedPayload struct {
	Reason string `json:"reason"`
}

func (RiskFailedPayload) EventType() EventType { return EventRiskFailed }

type BatchCreatedPayload struct {
	OrderCount int `json:"order_count"`
	ItemCount  int `json:"item_count"`
}

func (BatchCreatedPayload) EventType() EventType { return EventBatchCreated }

type BatchPrintedPayload struct {
	Document   PrintDocument `json:"document"`
	PrintCount int           `json:"print_count"`
	FromStatus BatchStatus   `json:"from_status"`
	ToStatus   BatchStatus   `json:"to_status"`
}

func (BatchPrintedPayload) EventType() EventType { return EventBatchPrinted }

type BatchReleasedPayload struct {
	OrderCount int  `json:"order_count"`
	Auto       bool `json:"auto"` // true when triggered by the second print
}

func (BatchReleasedPayload) EventType() EventType { return EventBatchReleased }

type BatchUndoneReleasePayload struct {
	Reason     string `json:"reason"`
	OrderCount int    `json:"order_count"`
}

func (BatchUndoneReleasePayload) EventType() EventType { return EventBatchUndoneRelease }

type CourierExportedPayload struct {
	RowCount    int `json:"row_count"`
	ExportCount int `json:"export_count"`
}

func (CourierExportedPayload) EventType() EventType { return EventCourierExported }

type TrackingImportedPayload struct {
	Applied   int `json:"applied"`
	Conflicts int `json:"conflicts"`
	Unmatched int `json:"unmatched"`
}

func (TrackingImportedPayload) EventType() EventType { return EventTrackingImported }

type ProductsSyncedPayload struct {
	Upserted int    `json:"upserted"`
	Source   string `json:"source"`
}

func (ProductsSyncedPayload) EventType() EventType { return EventProductsSynced }

type ProductsSyncFailedPayload struct {
	Reason string `json:"reason"`
}

func (ProductsSyncFailedPayload) EventType() EventType { return EventProductsSyncFailed }

type LandingGeneratedPayload struct {
	ProductSKU string `json:"product_sku"`
	Model      string `json:"model,omitempty"`
}

func (LandingGeneratedPayload) EventType() EventType { return EventLandingGenerated }

// OrderEvent is a stored audit row read back from order_events.
type OrderEvent struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	Actor     string          `json:"actor"`
	EventType EventType       `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// BatchEvent is a stored audit row read back from batch_events.
type BatchEvent struct {
	ID        int64           `json:"id"`
	BatchID   int64           `json:"batch_id"`
	Actor     string          `json:"actor"`
	EventType EventType       `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventRecorder appends audit rows. The three tables are append-only: rows are
// never updated or deleted.
type EventRecorder struct {
	pool *pgxpool.Pool
}

func NewEventRecorder(pool *pgxpool.Pool) *EventRecorder {
	return &EventRecorder{pool: pool}
}

func marshalPayload(p EventPayload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", p.EventType(), err)
	}
	return b, nil
}

// OrderEventTx appends an order audit row inside the caller's transaction.
func (r *EventRecorder) OrderEventTx(ctx context.Context, tx pgx.Tx, orderID int64, actor string, p EventPayload) error {
	b, err := marshalPayload(p)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO order_events (order_id, actor, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, orderID, actor, string(p.EventType()), b)
	if err != nil {
		return fmt.Errorf("failed to append order event %s: %w", p.EventType(), err)
	}
	return nil
}

// BatchEventTx appends a batch audit row inside the caller's transaction.
func (r *EventRecorder) BatchEventTx(ctx context.Context, tx pgx.Tx, batchID int64, actor string, p EventPayload) error {
	b, err := marshalPayload(p)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO batch_events (batch_id, actor, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, batchID, actor, string(p.EventType()), b)
	if err != nil {
		return fmt.Errorf("failed to append batch event %s: %w", p.EventType(), err)
	}
	return nil
}

// SystemEvent appends a system-level audit row outside any transaction.
// Used for failures of downstream calls (sync, scoring) where there is no
// domain row to hang the event on, or where the main write already rolled back.
func (r *EventRecorder) SystemEvent(ctx context.Context, actor string, p EventPayload) error {
	b, err := marshalPayload(p)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO system_events (actor, event_type, payload, created_at)
		VALUES ($1, $2, $3, NOW())
	`, actor, string(p.EventType()), b)
	if err != nil {
		return fmt.Errorf("failed to append system event %s: %w", p.EventType(), err)
	}
	return nil
}

// OrderEvents returns the audit trail of one order, oldest first.
func (r *EventRecorder) OrderEvents(ctx context.Context, orderID int64) ([]OrderEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, actor, event_type, payload, created_at
		FROM order_events
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order events: %w", err)
	}
	defer rows.Close()

	var events []OrderEvent
	for rows.Next() {
		var e OrderEvent
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Actor, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// BatchEvents returns the audit trail of one batch, oldest first.
func (r *EventRecorder) BatchEvents(ctx context.Context, batchID int64) ([]BatchEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, batch_id, actor, event_type, payload, created_at
		FROM batch_events
		WHERE batch_id = $1
		ORDER BY id
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch events: %w", err)
	}
	defer rows.Close()

	var events []BatchEvent
	for rows.Next() {
		var e BatchEvent
		if err := rows.Scan(&e.ID, &e.BatchID, &e.Actor, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan batch event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
