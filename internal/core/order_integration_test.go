package core_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"orderdesk/internal/core"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE order_items, order_events, batch_order_items_snapshot, batch_orders,
			batch_print_jobs, batch_events, orders, batches, idempotency_keys,
			system_events, product_landing_config, products, courier_export_settings, admin_users CASCADE;

		INSERT INTO products (sku, slug, name, description, price, image_url, is_active) VALUES
		('MUG-BLK', 'black-mug', 'Black Mug',  'A mug',    29.90, '', true),
		('TEE-M',   'tee-m',     'T-Shirt M',  'A shirt',  45.00, '', true),
		('CAP-RED', 'red-cap',   'Red Cap',    'A cap',    15.00, '', true),
		('OLD-SKU', 'old',       'Retired',    '',         10.00, '', false);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

func newOrderService(pool *pgxpool.Pool) core.OrderService {
	return core.NewOrderService(pool, core.NewEventRecorder(pool))
}

func checkoutFixture() core.CheckoutInput {
	return core.CheckoutInput{
		CustomerName: "Dana Silva",
		Phone:        "0912-345-678",
		Address:      "12 Main St",
		City:         "Springfield",
		IP:           "203.0.113.7",
		ShippingFee:  decimal.RequireFromString("5.00"),
		Items: []core.CheckoutItem{
			{SKU: "MUG-BLK", Quantity: 2},
			{SKU: "TEE-M", Quantity: 1},
		},
	}
}

func TestOrderService_CheckoutAndItemMutations(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	svc := newOrderService(pool)

	// Checkout: 2 x 29.90 + 1 x 45.00 = 104.80 subtotal, 109.80 with shipping.
	order, err := svc.CreateOrder(ctx, checkoutFixture())
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.Status != core.OrderStatusNew {
		t.Errorf("status = %s, want new", order.Status)
	}
	if order.Version != 1 {
		t.Errorf("version = %d, want 1", order.Version)
	}
	if order.OrderNumber == "" {
		t.Error("order number must be assigned at creation")
	}
	if !order.Subtotal.Equal(decimal.RequireFromString("104.80")) {
		t.Errorf("subtotal = %s, want 104.80", order.Subtotal)
	}
	if !order.Total.Equal(decimal.RequireFromString("109.80")) {
		t.Errorf("total = %s, want 109.80", order.Total)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}

	// Quantity change recomputes the money invariant and bumps the version.
	order, err = svc.UpdateItemQuantity(ctx, order.ID, order.Items[0].ID, 3, order.Version, "admin")
	if err != nil {
		t.Fatalf("UpdateItemQuantity failed: %v", err)
	}
	if order.Version != 2 {
		t.Errorf("version = %d, want 2", order.Version)
	}
	if !order.Subtotal.Equal(decimal.RequireFromString("134.70")) {
		t.Errorf("subtotal after qty change = %s, want 134.70", order.Subtotal)
	}
	if !order.Total.Equal(decimal.RequireFromString("139.70")) {
		t.Errorf("total after qty change = %s, want 139.70", order.Total)
	}

	// A stale version must be rejected, not silently merged.
	_, err = svc.UpdateItemQuantity(ctx, order.ID, order.Items[0].ID, 1, 1, "admin")
	if !errors.Is(err, core.ErrVersionConflict) {
		t.Errorf("stale version: got %v, want ErrVersionConflict", err)
	}

	// Delete one item; deleting the last one is forbidden.
	order, err = svc.DeleteItem(ctx, order.ID, order.Items[1].ID, order.Version, "admin")
	if err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected 1 item after delete, got %d", len(order.Items))
	}
	if !order.Subtotal.Equal(decimal.RequireFromString("89.70")) {
		t.Errorf("subtotal after delete = %s, want 89.70", order.Subtotal)
	}
	_, err = svc.DeleteItem(ctx, order.ID, order.Items[0].ID, order.Version, "admin")
	if err == nil {
		t.Error("deleting the last item should fail")
	}
}

func TestOrderService_CheckoutRejectsUnknownAndInactiveProducts(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	svc := newOrderService(pool)

	input := checkoutFixture()
	input.Items = []core.CheckoutItem{{SKU: "NO-SUCH", Quantity: 1}}
	if _, err := svc.CreateOrder(ctx, input); err == nil {
		t.Error("unknown SKU should fail checkout")
	}

	input.Items = []core.CheckoutItem{{SKU: "OLD-SKU", Quantity: 1}}
	if _, err := svc.CreateOrder(ctx, input); err == nil {
		t.Error("inactive SKU should fail checkout")
	}
}

func TestOrderService_ConfirmIsIdempotent(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	svc := newOrderService(pool)

	order, err := svc.CreateOrder(ctx, checkoutFixture())
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	key := uuid.NewString()
	order, err = svc.ConfirmOrder(ctx, order.ID, order.Version, "admin", key)
	if err != nil {
		t.Fatalf("ConfirmOrder failed: %v", err)
	}
	if order.Status != core.OrderStatusConfirmed || !order.IsConfirmed {
		t.Errorf("order not confirmed: status=%s is_confirmed=%v", order.Status, order.IsConfirmed)
	}
	versionAfterConfirm := order.Version

	// A double-submit with the same key returns the same outcome without
	// re-executing the mutation.
	replay, err := svc.ConfirmOrder(ctx, order.ID, 1, "admin", key)
	if err != nil {
		t.Fatalf("replayed ConfirmOrder failed: %v", err)
	}
	if replay.Version != versionAfterConfirm {
		t.Errorf("replay bumped version to %d, want %d", replay.Version, versionAfterConfirm)
	}

	var confirmEvents int
	err = pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM order_events WHERE order_id = $1 AND event_type = 'ORDER_CONFIRMED'",
		order.ID).Scan(&confirmEvents)
	if err != nil {
		t.Fatalf("failed to count events: %v", err)
	}
	if confirmEvents != 1 {
		t.Errorf("ORDER_CONFIRMED events = %d, want 1", confirmEvents)
	}

	// A fresh key on an already-confirmed order hits the status guard.
	if _, err := svc.ConfirmOrder(ctx, order.ID, replay.Version, "admin", uuid.NewString()); err == nil {
		t.Error("confirming a confirmed order with a new key should fail")
	}
}

func TestOrderService_TransitionsAndTracking(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	svc := newOrderService(pool)

	order, err := svc.CreateOrder(ctx, checkoutFixture())
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	order, err = svc.HoldOrder(ctx, order.ID, order.Version, "suspicious phone", "admin")
	if err != nil {
		t.Fatalf("HoldOrder failed: %v", err)
	}
	if order.Status != core.OrderStatusOnHold {
		t.Errorf("status = %s, want on_hold", order.Status)
	}

	// on_hold orders can still be confirmed.
	order, err = svc.ConfirmOrder(ctx, order.ID, order.Version, "admin", uuid.NewString())
	if err != nil {
		t.Fatalf("ConfirmOrder from hold failed: %v", err)
	}

	order, err = svc.CancelOrder(ctx, order.ID, order.Version, "customer request", "admin")
	if err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if order.Status != core.OrderStatusCanceled {
		t.Errorf("status = %s, want canceled", order.Status)
	}

	// Terminal statuses reject further transitions and item edits.
	if _, err := svc.CancelOrder(ctx, order.ID, order.Version, "again", "admin"); err == nil {
		t.Error("canceling a canceled order should fail")
	}
	_, err = svc.UpdateItemQuantity(ctx, order.ID, order.Items[0].ID, 5, order.Version, "admin")
	if !errors.Is(err, core.ErrOrderNotEditable) {
		t.Errorf("editing a canceled order: got %v, want ErrOrderNotEditable", err)
	}

	// Manual tracking entry conflicts with a different existing number.
	second, err := svc.CreateOrder(ctx, checkoutFixture())
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := svc.SetTrackingNumber(ctx, second.ID, "SF100", "admin"); err != nil {
		t.Fatalf("SetTrackingNumber failed: %v", err)
	}
	// Same number again is a no-op, not a conflict.
	if _, err := svc.SetTrackingNumber(ctx, second.ID, "SF100", "admin"); err != nil {
		t.Errorf("re-setting the same tracking number should succeed: %v", err)
	}
	_, err = svc.SetTrackingNumber(ctx, second.ID, "SF999", "admin")
	var conflict *core.TrackingConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("overwriting tracking: got %v, want TrackingConflictError", err)
	}
	if conflict.Conflicts[0].Existing != "SF100" || conflict.Conflicts[0].Incoming != "SF999" {
		t.Errorf("unexpected conflict detail: %+v", conflict.Conflicts[0])
	}
}
