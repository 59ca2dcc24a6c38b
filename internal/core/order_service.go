package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CheckoutItem is one cart line submitted at checkout. Prices are resolved
// server-side from the product catalog, never trusted from the client.
type CheckoutItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type CheckoutInput struct {
	CustomerName  string          `json:"customer_name"`
	Phone         string          `json:"phone"`
	Address       string          `json:"address"`
	City          string          `json:"city"`
	IP            string          `json:"ip"`
	ShippingFee   decimal.Decimal `json:"shipping_fee"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	Items         []CheckoutItem  `json:"items"`
}

// OrderFieldEdits carries the admin-editable core fields. Nil means unchanged.
type OrderFieldEdits struct {
	CustomerName  *string          `json:"customer_name,omitempty"`
	Phone         *string          `json:"phone,omitempty"`
	Address       *string          `json:"address,omitempty"`
	City          *string          `json:"city,omitempty"`
	ShippingFee   *decimal.Decimal `json:"shipping_fee,omitempty"`
	DiscountTotal *decimal.Decimal `json:"discount_total,omitempty"`
	Tags          []string         `json:"tags,omitempty"`
}

// OrderService manages the customer order lifecycle: checkout creation, the
// admin mutation guard with totals recomputation, optimistic-concurrency
// updates, and the idempotent confirm action.
type OrderService interface {
	CreateOrder(ctx context.Context, input CheckoutInput) (*Order, error)
	GetOrder(ctx context.Context, orderID int64) (*Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*Order, error)
	ListOrders(ctx context.Context, status *OrderStatus, reviewOnly bool) ([]Order, error)

	// Versioned mutations. Each applies the change, recomputes subtotal/total
	// from live item rows, bumps version (conditioned on the caller's last-seen
	// value), and appends audit events. A stale version yields ErrVersionConflict.
	UpdateItemQuantity(ctx context.Context, orderID, itemID int64, qty, version int, actor string) (*Order, error)
	DeleteItem(ctx context.Context, orderID, itemID int64, version int, actor string) (*Order, error)
	UpdateFields(ctx context.Context, orderID int64, version int, edits OrderFieldEdits, actor string) (*Order, error)

	// ConfirmOrder transitions new/on_hold → confirmed. idempotencyKey
	// deduplicates double-submits: a repeated key returns the stored result
	// without mutating the order or appending a second audit event.
	ConfirmOrder(ctx context.Context, orderID int64, version int, actor, idempotencyKey string) (*Order, error)
	CancelOrder(ctx context.Context, orderID int64, version int, reason, actor string) (*Order, error)
	HoldOrder(ctx context.Context, orderID int64, version int, reason, actor string) (*Order, error)
	MarkReviewed(ctx context.Context, orderID int64, actor string) (*Order, error)
	SetTrackingNumber(ctx context.Context, orderID int64, tracking, actor string) (*Order, error)
}

type orderService struct {
	pool   *pgxpool.Pool
	events *EventRecorder
}

func NewOrderService(pool *pgxpool.Pool, events *EventRecorder) OrderService {
	return &orderService{pool: pool, events: events}
}

const orderColumns = `
	o.id, o.order_number, o.customer_name, o.phone, COALESCE(o.phone_normalized, ''),
	o.address, COALESCE(o.address_normalized, ''), o.city, COALESCE(o.ip, ''),
	o.status, o.is_confirmed, o.is_fulfilled, o.review_required,
	o.risk_score, o.risk_level, o.risk_reasons,
	o.tracking_number, o.batch_id, o.released_at, o.version,
	o.subtotal, o.shipping_fee, o.discount_total, o.total,
	o.tags, o.created_at, o.updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerName, &o.Phone, &o.PhoneNormalized,
		&o.Address, &o.AddressNormalized, &o.City, &o.IP,
		&o.Status, &o.IsConfirmed, &o.IsFulfilled, &o.ReviewRequired,
		&o.RiskScore, &o.RiskLevel, &o.RiskReasons,
		&o.TrackingNumber, &o.BatchID, &o.ReleasedAt, &o.Version,
		&o.Subtotal, &o.ShippingFee, &o.DiscountTotal, &o.Total,
		&o.Tags, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ── Checkout ─────────────────────────────────────────────────────────────────

func (s *orderService) CreateOrder(ctx context.Context, input CheckoutInput) (*Order, error) {
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("order must have at least one item")
	}
	if input.CustomerName == "" || input.Phone == "" || input.Address == "" {
		return nil, fmt.Errorf("customer name, phone, and address are required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Resolve catalog prices and build item rows.
	var items []OrderItem
	for i, in := range input.Items {
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("item %d: quantity must be positive", i+1)
		}
		var name string
		var price decimal.Decimal
		err := tx.QueryRow(ctx,
			"SELECT name, price FROM products WHERE sku = $1 AND is_active = true",
			in.SKU,
		).Scan(&name, &price)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item %d: product %s not found", i+1, in.SKU)
			}
			return nil, fmt.Errorf("item %d: failed to resolve product: %w", i+1, err)
		}
		items = append(items, OrderItem{
			SKU:       in.SKU,
			Title:     name,
			Quantity:  in.Quantity,
			UnitPrice: price,
			LineTotal: price.Mul(decimal.NewFromInt(int64(in.Quantity))),
		})
	}

	subtotal, total := ComputeTotals(items, input.ShippingFee, input.DiscountTotal)

	var orderID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (order_number, customer_name, phone, address, city, ip,
		                    status, subtotal, shipping_fee, discount_total, total, version)
		VALUES ('', $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1)
		RETURNING id
	`, input.CustomerName, input.Phone, input.Address, input.City, input.IP,
		string(OrderStatusNew), subtotal, input.ShippingFee, input.DiscountTotal, total,
	).Scan(&orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	orderNumber := fmt.Sprintf("OD-%06d", orderID)
	if _, err := tx.Exec(ctx,
		"UPDATE orders SET order_number = $1 WHERE id = $2", orderNumber, orderID,
	); err != nil {
		return nil, fmt.Errorf("failed to assign order number: %w", err)
	}

	for _, it := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, sku, title, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, orderID, it.SKU, it.Title, it.Quantity, it.UnitPrice, it.LineTotal)
		if err != nil {
			return nil, fmt.Errorf("failed to insert order item %s: %w", it.SKU, err)
		}
	}

	err = s.events.OrderEventTx(ctx, tx, orderID, "storefront", OrderCreatedPayload{
		OrderNumber: orderNumber,
		ItemCount:   len(items),
		Total:       total.StringFixed(2),
		Source:      "checkout",
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order creation: %w", err)
	}

	return s.GetOrder(ctx, orderID)
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *orderService) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx,
		"SELECT"+orderColumns+" FROM orders o WHERE o.id = $1", orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d not found", orderID)
		}
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}

	items, err := fetchOrderItems(ctx, s.pool, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (s *orderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	var orderID int64
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM orders WHERE order_number = $1", orderNumber,
	).Scan(&orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %s not found", orderNumber)
		}
		return nil, fmt.Errorf("failed to look up order by number: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) ListOrders(ctx context.Context, status *OrderStatus, reviewOnly bool) ([]Order, error) {
	query := "SELECT" + orderColumns + " FROM orders o WHERE 1=1"
	var args []any
	if status != nil {
		args = append(args, string(*status))
		query += fmt.Sprintf(" AND o.status = $%d", len(args))
	}
	if reviewOnly {
		query += " AND o.review_required = true"
	}
	query += " ORDER BY o.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

type pgxRowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func fetchOrderItems(ctx context.Context, q pgxRowQuerier, orderID int64) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, sku, title, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.SKU, &it.Title, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// lockOrderTx fetches the order row FOR UPDATE inside a mutation transaction.
func lockOrderTx(ctx context.Context, tx pgx.Tx, orderID int64) (*Order, error) {
	o, err := scanOrder(tx.QueryRow(ctx,
		"SELECT"+orderColumns+" FROM orders o WHERE o.id = $1 FOR UPDATE", orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d not found", orderID)
		}
		return nil, fmt.Errorf("failed to lock order %d: %w", orderID, err)
	}
	return o, nil
}

// bumpVersionTx applies recomputed totals and advances the version counter.
// The UPDATE is conditioned on the caller's last-seen version; zero affected
// rows means a concurrent edit won and the caller must refresh.
func bumpVersionTx(ctx context.Context, tx pgx.Tx, orderID int64, version int, subtotal, total decimal.Decimal) error {
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET subtotal = $1, total = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4
	`, subtotal, total, orderID, version)
	if err != nil {
		return fmt.Errorf("failed to update order %d: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

// ── Versioned item mutations ─────────────────────────────────────────────────

func (s *orderService) UpdateItemQuantity(ctx context.Context, orderID, itemID int64, qty, version int, actor string) (*Order, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("quantity must be positive; delete the item instead")
	}
	return s.mutateItems(ctx, orderID, version, actor, func(tx pgx.Tx) (OrderItemChangedPayload, error) {
		var sku string
		var oldQty int
		var unitPrice decimal.Decimal
		err := tx.QueryRow(ctx,
			"SELECT sku, quantity, unit_price FROM order_items WHERE id = $1 AND order_id = $2",
			itemID, orderID,
		).Scan(&sku, &oldQty, &unitPrice)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return OrderItemChangedPayload{}, fmt.Errorf("item %d not found on order %d", itemID, orderID)
			}
			return OrderItemChangedPayload{}, fmt.Errorf("failed to fetch item: %w", err)
		}

		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(qty)))
		if _, err := tx.Exec(ctx,
			"UPDATE order_items SET quantity = $1, line_total = $2 WHERE id = $3",
			qty, lineTotal, itemID,
		); err != nil {
			return OrderItemChangedPayload{}, fmt.Errorf("failed to update item: %w", err)
		}
		return OrderItemChangedPayload{SKU: sku, OldQty: oldQty, NewQty: qty}, nil
	})
}

func (s *orderService) DeleteItem(ctx context.Context, orderID, itemID int64, version int, actor string) (*Order, error) {
	return s.mutateItems(ctx, orderID, version, actor, func(tx pgx.Tx) (OrderItemChangedPayload, error) {
		var sku string
		var oldQty int
		err := tx.QueryRow(ctx,
			"SELECT sku, quantity FROM order_items WHERE id = $1 AND order_id = $2",
			itemID, orderID,
		).Scan(&sku, &oldQty)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return OrderItemChangedPayload{}, fmt.Errorf("item %d not found on order %d", itemID, orderID)
			}
			return OrderItemChangedPayload{}, fmt.Errorf("failed to fetch item: %w", err)
		}

		var remaining int
		if err := tx.QueryRow(ctx,
			"SELECT COUNT(*) FROM order_items WHERE order_id = $1", orderID,
		).Scan(&remaining); err != nil {
			return OrderItemChangedPayload{}, fmt.Errorf("failed to count items: %w", err)
		}
		if remaining <= 1 {
			return OrderItemChangedPayload{}, fmt.Errorf("cannot delete the last item; cancel the order instead")
		}

		if _, err := tx.Exec(ctx, "DELETE FROM order_items WHERE id = $1", itemID); err != nil {
			return OrderItemChangedPayload{}, fmt.Errorf("failed to delete item: %w", err)
		}
		return OrderItemChangedPayload{SKU: sku, OldQty: oldQty, Deleted: true}, nil
	})
}

// mutateItems wraps the shared guard → apply → recompute → bump-version →
// audit sequence for item-level mutations.
func (s *orderService) mutateItems(ctx context.Context, orderID int64, version int, actor string,
	apply func(tx pgx.Tx) (OrderItemChangedPayload, error)) (*Order, error) {

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Editable() {
		return nil, ErrOrderNotEditable
	}

	payload, err := apply(tx)
	if err != nil {
		return nil, err
	}

	items, err := fetchOrderItems(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	subtotal, total := ComputeTotals(items, order.ShippingFee, order.DiscountTotal)

	if err := bumpVersionTx(ctx, tx, orderID, version, subtotal, total); err != nil {
		return nil, err
	}

	payload.Subtotal = subtotal.StringFixed(2)
	payload.Total = total.StringFixed(2)
	if err := s.events.OrderEventTx(ctx, tx, orderID, actor, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit item mutation: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

// ── Field edits ──────────────────────────────────────────────────────────────

func (s *orderService) UpdateFields(ctx context.Context, orderID int64, version int, edits OrderFieldEdits, actor string) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Editable() {
		return nil, ErrOrderNotEditable
	}

	type change struct{ field, from, to string }
	var changes []change

	setText := func(field string, cur string, next *string) {
		if next != nil && *next != cur {
			changes = append(changes, change{field, cur, *next})
		}
	}
	setText("customer_name", order.CustomerName, edits.CustomerName)
	setText("phone", order.Phone, edits.Phone)
	setText("address", order.Address, edits.Address)
	setText("city", order.City, edits.City)

	shippingFee := order.ShippingFee
	if edits.ShippingFee != nil && !edits.ShippingFee.Equal(order.ShippingFee) {
		changes = append(changes, change{"shipping_fee", order.ShippingFee.StringFixed(2), edits.ShippingFee.StringFixed(2)})
		shippingFee = *edits.ShippingFee
	}
	discountTotal := order.DiscountTotal
	if edits.DiscountTotal != nil && !edits.DiscountTotal.Equal(order.DiscountTotal) {
		changes = append(changes, change{"discount_total", order.DiscountTotal.StringFixed(2), edits.DiscountTotal.StringFixed(2)})
		discountTotal = *edits.DiscountTotal
	}

	if len(changes) == 0 && edits.Tags == nil {
		return order, nil
	}

	items, err := fetchOrderItems(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	subtotal, total := ComputeTotals(items, shippingFee, discountTotal)

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET customer_name = COALESCE($1, customer_name),
		    phone         = COALESCE($2, phone),
		    address       = COALESCE($3, address),
		    city          = COALESCE($4, city),
		    shipping_fee  = $5,
		    discount_total = $6,
		    subtotal = $7, total = $8,
		    tags = COALESCE($9, tags),
		    version = version + 1, updated_at = NOW()
		WHERE id = $10 AND version = $11
	`, edits.CustomerName, edits.Phone, edits.Address, edits.City,
		shippingFee, discountTotal, subtotal, total, edits.Tags, orderID, version)
	if err != nil {
		return nil, fmt.Errorf("failed to update order fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrVersionConflict
	}

	for _, c := range changes {
		err := s.events.OrderEventTx(ctx, tx, orderID, actor, OrderEditedPayload{
			Field: c.field, From: c.from, To: c.to, Version: version + 1,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit field edit: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

// ── Review actions ───────────────────────────────────────────────────────────

func (s *orderService) ConfirmOrder(ctx context.Context, orderID int64, version int, actor, idempotencyKey string) (*Order, error) {
	if idempotencyKey == "" {
		return nil, fmt.Errorf("idempotency key is required")
	}

	// A replayed key short-circuits to the stored result without touching the order.
	if _, seen, err := checkIdempotencyKey(ctx, s.pool, idempotencyKey); err != nil {
		return nil, err
	} else if seen {
		return s.GetOrder(ctx, orderID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	// Re-check under the row lock: a concurrent confirm may have committed
	// between the pool-level key check and taking the lock.
	if _, seen, err := checkIdempotencyKey(ctx, tx, idempotencyKey); err != nil {
		return nil, err
	} else if seen {
		return order, nil
	}

	if order.Status != OrderStatusNew && order.Status != OrderStatusOnHold {
		return nil, fmt.Errorf("order %s cannot be confirmed: status is %s", order.OrderNumber, order.Status)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1, is_confirmed = true, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
	`, string(OrderStatusConfirmed), orderID, version)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm order %d: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrVersionConflict
	}

	err = s.events.OrderEventTx(ctx, tx, orderID, actor, OrderConfirmedPayload{
		IdempotencyKey: idempotencyKey,
		Version:        version + 1,
	})
	if err != nil {
		return nil, err
	}

	result := map[string]any{"order_id": orderID, "status": string(OrderStatusConfirmed)}
	if err := recordIdempotencyKey(ctx, tx, idempotencyKey, "ORDER_CONFIRM", orderID, result); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order confirmation: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) CancelOrder(ctx context.Context, orderID int64, version int, reason, actor string) (*Order, error) {
	return s.transition(ctx, orderID, version, actor, OrderStatusCanceled,
		OrderCanceledPayload{Reason: reason},
		func(o *Order) error {
			if o.Status.Terminal() {
				return fmt.Errorf("order %s cannot be canceled: status is %s", o.OrderNumber, o.Status)
			}
			if o.IsFulfilled {
				return fmt.Errorf("order %s cannot be canceled after fulfillment", o.OrderNumber)
			}
			return nil
		})
}

func (s *orderService) HoldOrder(ctx context.Context, orderID int64, version int, reason, actor string) (*Order, error) {
	return s.transition(ctx, orderID, version, actor, OrderStatusOnHold,
		OrderHeldPayload{Reason: reason},
		func(o *Order) error {
			if o.Status != OrderStatusNew && o.Status != OrderStatusConfirmed {
				return fmt.Errorf("order %s cannot be held: status is %s", o.OrderNumber, o.Status)
			}
			if o.BatchID != nil {
				return fmt.Errorf("order %s is in batch %d; undo the batch release first", o.OrderNumber, *o.BatchID)
			}
			return nil
		})
}

// transition is the shared versioned status-change path for review actions.
func (s *orderService) transition(ctx context.Context, orderID int64, version int, actor string,
	target OrderStatus, payload EventPayload, guard func(*Order) error) (*Order, error) {

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if err := guard(order); err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE orders SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
	`, string(target), orderID, version)
	if err != nil {
		return nil, fmt.Errorf("failed to transition order %d to %s: %w", orderID, target, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrVersionConflict
	}

	if err := s.events.OrderEventTx(ctx, tx, orderID, actor, payload); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) MarkReviewed(ctx context.Context, orderID int64, actor string) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		"UPDATE orders SET review_required = false, updated_at = NOW() WHERE id = $1", orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark order %d reviewed: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("order %d not found", orderID)
	}

	if err := s.events.OrderEventTx(ctx, tx, orderID, actor, OrderReviewedPayload{}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit review: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) SetTrackingNumber(ctx context.Context, orderID int64, tracking, actor string) (*Order, error) {
	if tracking == "" {
		return nil, fmt.Errorf("tracking number is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.TrackingNumber != nil && *order.TrackingNumber != tracking {
		return nil, &TrackingConflictError{Conflicts: []TrackingConflict{{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Existing:    *order.TrackingNumber,
			Incoming:    tracking,
		}}}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE orders SET tracking_number = $1, updated_at = NOW() WHERE id = $2",
		tracking, orderID,
	); err != nil {
		return nil, fmt.Errorf("failed to set tracking number: %w", err)
	}

	err = s.events.OrderEventTx(ctx, tx, orderID, actor, TrackingSetPayload{
		TrackingNumber: tracking, Source: "manual",
	})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit tracking update: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}
