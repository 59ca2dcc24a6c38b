package core_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"orderdesk/internal/core"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// seedConfirmedOrders checks out and confirms n orders, returning their ids.
func seedConfirmedOrders(t *testing.T, pool *pgxpool.Pool, n int) []int64 {
	t.Helper()
	ctx := context.Background()
	svc := newOrderService(pool)

	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		input := checkoutFixture()
		input.CustomerName = fmt.Sprintf("Customer %d", i+1)
		input.Phone = fmt.Sprintf("0912-000-%03d", i+1)

		order, err := svc.CreateOrder(ctx, input)
		if err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}
		order, err = svc.ConfirmOrder(ctx, order.ID, order.Version, "admin", uuid.NewString())
		if err != nil {
			t.Fatalf("ConfirmOrder failed: %v", err)
		}
		ids = append(ids, order.ID)
	}
	return ids
}

func TestBatchService_LifecycleViaPrints(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	events := core.NewEventRecorder(pool)
	orders := core.NewOrderService(pool, events)
	batches := core.NewBatchService(pool, events)

	confirmed := seedConfirmedOrders(t, pool, 3)
	// One unconfirmed order that must not be swept into the batch.
	if _, err := orders.CreateOrder(ctx, checkoutFixture()); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	batch, err := batches.CreateBatch(ctx, "ops")
	if err != nil {
		t.Fatalf("CreateBatch failed: %v", err)
	}
	if batch.Status != core.BatchStatusOpen {
		t.Errorf("status = %s, want OPEN", batch.Status)
	}
	if batch.OrderCount != 3 {
		t.Errorf("order count = %d, want 3", batch.OrderCount)
	}

	snapshot, err := batches.SnapshotItems(ctx, batch.ID)
	if err != nil {
		t.Fatalf("SnapshotItems failed: %v", err)
	}
	if len(snapshot) != 6 { // 3 orders x 2 items
		t.Errorf("snapshot items = %d, want 6", len(snapshot))
	}

	// All eligible orders were claimed; a second batch has nothing to take.
	if _, err := batches.CreateBatch(ctx, "ops"); !errors.Is(err, core.ErrNoEligibleOrders) {
		t.Errorf("second CreateBatch: got %v, want ErrNoEligibleOrders", err)
	}

	// An order edit after batching must not change the frozen snapshot.
	member, err := orders.GetOrder(ctx, confirmed[0])
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if _, err := orders.UpdateItemQuantity(ctx, member.ID, member.Items[0].ID, 9, member.Version, "admin"); err != nil {
		t.Fatalf("UpdateItemQuantity on batched order failed: %v", err)
	}
	snapshotAfter, err := batches.SnapshotItems(ctx, batch.ID)
	if err != nil {
		t.Fatalf("SnapshotItems failed: %v", err)
	}
	for i := range snapshot {
		if snapshot[i].Qty != snapshotAfter[i].Qty {
			t.Errorf("snapshot qty changed after order edit: %d -> %d", snapshot[i].Qty, snapshotAfter[i].Qty)
		}
	}

	// First packing-list print: OPEN -> LOCKED.
	batch, err = batches.PrintPackingList(ctx, batch.ID, "ops")
	if err != nil {
		t.Fatalf("PrintPackingList failed: %v", err)
	}
	if batch.Status != core.BatchStatusLocked {
		t.Errorf("status after list print = %s, want LOCKED", batch.Status)
	}
	if batch.PackingListPrintCount != 1 {
		t.Errorf("list print count = %d, want 1", batch.PackingListPrintCount)
	}

	// Slips print with both counters non-zero: LOCKED -> RELEASED.
	batch, err = batches.PrintPackingSlips(ctx, batch.ID, "ops")
	if err != nil {
		t.Fatalf("PrintPackingSlips failed: %v", err)
	}
	if batch.Status != core.BatchStatusReleased {
		t.Errorf("status after slips print = %s, want RELEASED", batch.Status)
	}
	if batch.ReleasedAt == nil {
		t.Error("released batch must have released_at")
	}

	// Release stamps and freezes every member order.
	member, err = orders.GetOrder(ctx, confirmed[0])
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if member.ReleasedAt == nil || !member.IsFulfilled {
		t.Errorf("member not released: released_at=%v is_fulfilled=%v", member.ReleasedAt, member.IsFulfilled)
	}
	_, err = orders.UpdateItemQuantity(ctx, member.ID, member.Items[0].ID, 1, member.Version, "admin")
	if !errors.Is(err, core.ErrOrderNotEditable) {
		t.Errorf("editing a released order: got %v, want ErrOrderNotEditable", err)
	}

	// Reprints are allowed and do not move the status further.
	batch, err = batches.PrintPackingList(ctx, batch.ID, "ops")
	if err != nil {
		t.Fatalf("reprint failed: %v", err)
	}
	if batch.Status != core.BatchStatusReleased || batch.PackingListPrintCount != 2 {
		t.Errorf("after reprint: status=%s count=%d", batch.Status, batch.PackingListPrintCount)
	}
}

func TestBatchService_UndoRelease(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	events := core.NewEventRecorder(pool)
	orders := core.NewOrderService(pool, events)
	batches := core.NewBatchService(pool, events)

	ids := seedConfirmedOrders(t, pool, 2)

	batch, err := batches.CreateBatch(ctx, "ops")
	if err != nil {
		t.Fatalf("CreateBatch failed: %v", err)
	}
	if batch, err = batches.PrintPackingList(ctx, batch.ID, "ops"); err != nil {
		t.Fatalf("PrintPackingList failed: %v", err)
	}
	if batch, err = batches.PrintPackingSlips(ctx, batch.ID, "ops"); err != nil {
		t.Fatalf("PrintPackingSlips failed: %v", err)
	}
	if batch.Status != core.BatchStatusReleased {
		t.Fatalf("status = %s, want RELEASED", batch.Status)
	}

	// A reason is mandatory.
	if _, err := batches.UndoRelease(ctx, batch.ID, "ops", ""); !errors.Is(err, core.ErrReasonRequired) {
		t.Errorf("empty reason: got %v, want ErrReasonRequired", err)
	}

	// Once a member has a tracking number the parcels are with the courier;
	// undo must be rejected outright.
	if _, err := orders.SetTrackingNumber(ctx, ids[0], "SF100", "admin"); err != nil {
		t.Fatalf("SetTrackingNumber failed: %v", err)
	}
	if _, err := batches.UndoRelease(ctx, batch.ID, "ops", "wrong items picked"); !errors.Is(err, core.ErrTrackedOrdersInBatch) {
		t.Errorf("tracked member: got %v, want ErrTrackedOrdersInBatch", err)
	}

	// Clear the tracking number and undo for real.
	if _, err := pool.Exec(ctx, "UPDATE orders SET tracking_number = NULL WHERE id = $1", ids[0]); err != nil {
		t.Fatalf("failed to clear tracking: %v", err)
	}
	batch, err = batches.UndoRelease(ctx, batch.ID, "ops", "wrong items picked")
	if err != nil {
		t.Fatalf("UndoRelease failed: %v", err)
	}
	if batch.Status != core.BatchStatusLocked {
		t.Errorf("status after undo = %s, want LOCKED", batch.Status)
	}
	if batch.ReleasedAt != nil {
		t.Error("released_at must be cleared by undo")
	}
	if !batch.PreviouslyUndone {
		t.Error("PreviouslyUndone must be set after an undo")
	}

	// Members return to the review queue.
	member, err := orders.GetOrder(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if member.ReleasedAt != nil || member.IsFulfilled || member.IsConfirmed {
		t.Errorf("member not reverted: %+v", member)
	}
	if !member.ReviewRequired {
		t.Error("undone members must be flagged review_required")
	}

	// The explicit release path works from LOCKED.
	batch, err = batches.ReleaseBatch(ctx, batch.ID, "ops")
	if err != nil {
		t.Fatalf("ReleaseBatch failed: %v", err)
	}
	if batch.Status != core.BatchStatusReleased {
		t.Errorf("status after explicit release = %s, want RELEASED", batch.Status)
	}
}

func TestTrackingService_ImportWithConflicts(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	events := core.NewEventRecorder(pool)
	orderSvc := core.NewOrderService(pool, events)
	tracking := core.NewTrackingService(pool, events)

	ids := seedConfirmedOrders(t, pool, 2)
	first, err := orderSvc.GetOrder(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if _, err := orderSvc.SetTrackingNumber(ctx, ids[1], "SF100", "admin"); err != nil {
		t.Fatalf("SetTrackingNumber failed: %v", err)
	}

	rows := []core.TrackingRow{
		{Reference: first.OrderNumber, TrackingNumber: "SF200"}, // clean
		{Reference: fmt.Sprint(ids[1]), TrackingNumber: "SF999"}, // conflicts with SF100
		{Reference: "OD-999999", TrackingNumber: "SF300"},        // unknown
	}

	_, err = tracking.ImportTracking(ctx, rows, "ops")
	var conflict *core.TrackingConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("got %v, want TrackingConflictError", err)
	}
	if conflict.Applied != 1 {
		t.Errorf("applied = %d, want 1", conflict.Applied)
	}
	if len(conflict.Conflicts) != 1 || conflict.Conflicts[0].Existing != "SF100" {
		t.Errorf("unexpected conflicts: %+v", conflict.Conflicts)
	}
	if len(conflict.Unmatched) != 1 || conflict.Unmatched[0] != "OD-999999" {
		t.Errorf("unexpected unmatched: %v", conflict.Unmatched)
	}

	// The clean row was still committed, and the conflicting order kept its
	// original number.
	first, err = orderSvc.GetOrder(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if first.TrackingNumber == nil || *first.TrackingNumber != "SF200" {
		t.Errorf("clean row not applied: %v", first.TrackingNumber)
	}
	if first.Status != core.OrderStatusShipped {
		t.Errorf("status = %s, want shipped", first.Status)
	}

	second, err := orderSvc.GetOrder(ctx, ids[1])
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if second.TrackingNumber == nil || *second.TrackingNumber != "SF100" {
		t.Errorf("conflicting order was overwritten: %v", second.TrackingNumber)
	}

	// A clean re-import of the same sheet applies nothing and conflicts nothing.
	result, err := tracking.ImportTracking(ctx, rows[:1], "ops")
	if err != nil {
		t.Fatalf("re-import failed: %v", err)
	}
	if result.Applied != 0 {
		t.Errorf("re-import applied = %d, want 0", result.Applied)
	}
}

func TestRiskService_DuplicateSignals(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	events := core.NewEventRecorder(pool)
	orderSvc := core.NewOrderService(pool, events)
	risk := core.NewRiskService(pool, events, nil)

	// Two orders sharing phone, address, and IP.
	first, err := orderSvc.CreateOrder(ctx, checkoutFixture())
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := risk.ScoreOrder(ctx, first.ID); err != nil {
		t.Fatalf("ScoreOrder failed: %v", err)
	}

	second, err := orderSvc.CreateOrder(ctx, checkoutFixture())
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	scored, err := risk.ScoreOrder(ctx, second.ID)
	if err != nil {
		t.Fatalf("ScoreOrder failed: %v", err)
	}

	if scored.RiskScore == nil || *scored.RiskScore < 70 {
		t.Fatalf("duplicate phone+address+ip should score high, got %v", scored.RiskScore)
	}
	if scored.RiskLevel == nil || *scored.RiskLevel != core.RiskHigh {
		t.Errorf("level = %v, want high", scored.RiskLevel)
	}
	if !scored.ReviewRequired {
		t.Error("high risk orders must be flagged review_required")
	}
	if len(scored.RiskReasons) == 0 {
		t.Error("risk reasons must be recorded")
	}
}
