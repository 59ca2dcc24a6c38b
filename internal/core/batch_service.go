package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BatchWarning is an operational flag surfaced on the batch list and detail
// screens. Warnings are advisory; they never block an action.
type BatchWarning string

const (
	WarnOpenTooLong      BatchWarning = "open_too_long"      // OPEN for more than two hours
	WarnLockedUnprinted  BatchWarning = "locked_unprinted"   // LOCKED with zero packing-list prints
	WarnReleasedNoSlips  BatchWarning = "released_no_slips"  // RELEASED with zero slip prints
	WarnPreviouslyUndone BatchWarning = "previously_undone"  // release was undone at least once
)

const openTooLongAfter = 2 * time.Hour

// EvaluateWarnings applies the operational warning rules to a batch.
func EvaluateWarnings(b *Batch, now time.Time) []BatchWarning {
	var warnings []BatchWarning
	if b.Status == BatchStatusOpen && now.Sub(b.CreatedAt) > openTooLongAfter {
		warnings = append(warnings, WarnOpenTooLong)
	}
	if b.Status == BatchStatusLocked && b.PackingListPrintCount == 0 {
		warnings = append(warnings, WarnLockedUnprinted)
	}
	if b.Status == BatchStatusReleased && b.PackingSlipsPrintCount == 0 {
		warnings = append(warnings, WarnReleasedNoSlips)
	}
	// Sticky even after the batch is re-released.
	if b.PreviouslyUndone {
		warnings = append(warnings, WarnPreviouslyUndone)
	}
	return warnings
}

// nextPrintTransition returns the single forward transition a print action
// triggers, given the counters after the increment. One step per print:
// the first packing-list print takes OPEN→LOCKED; a print that leaves both
// counters non-zero takes LOCKED→RELEASED.
func nextPrintTransition(status BatchStatus, listCount, slipsCount int) (BatchStatus, bool) {
	switch status {
	case BatchStatusOpen:
		if listCount > 0 {
			return BatchStatusLocked, true
		}
	case BatchStatusLocked:
		if listCount > 0 && slipsCount > 0 {
			return BatchStatusReleased, true
		}
	}
	return status, false
}

// BatchService drives the warehouse batch lifecycle: OPEN → LOCKED → RELEASED,
// with the audited undo-release reverse edge. All multi-row writes run inside
// a single transaction, so a failure never leaves orders stamped without a
// snapshot or a batch without members.
type BatchService interface {
	// CreateBatch snapshots every eligible order (confirmed, unfulfilled,
	// unbatched, unreleased) into a new OPEN batch. Eligible rows are locked
	// during selection, so two concurrent calls cannot claim the same orders.
	CreateBatch(ctx context.Context, actor string) (*Batch, error)

	GetBatch(ctx context.Context, batchID int64) (*Batch, error)
	ListBatches(ctx context.Context) ([]Batch, error)
	BatchOrders(ctx context.Context, batchID int64) ([]Order, error)
	SnapshotItems(ctx context.Context, batchID int64) ([]BatchSnapshotItem, error)

	// Print actions increment the counter, record a print job, and trigger at
	// most one forward status transition. Reprints are allowed.
	PrintPackingList(ctx context.Context, batchID int64, actor string) (*Batch, error)
	PrintPackingSlips(ctx context.Context, batchID int64, actor string) (*Batch, error)

	// ReleaseBatch performs an explicit bulk release of a LOCKED batch:
	// released_at is stamped on the batch and every member order.
	ReleaseBatch(ctx context.Context, batchID int64, actor string) (*Batch, error)

	// UndoRelease reverts RELEASED → LOCKED. It requires a non-empty reason
	// and is rejected outright if any member order carries a tracking number.
	UndoRelease(ctx context.Context, batchID int64, actor, reason string) (*Batch, error)

	RecordCourierExport(ctx context.Context, batchID int64, actor string, rowCount int) (*Batch, error)
}

type batchService struct {
	pool   *pgxpool.Pool
	events *EventRecorder
}

func NewBatchService(pool *pgxpool.Pool, events *EventRecorder) BatchService {
	return &batchService{pool: pool, events: events}
}

const batchColumns = `
	b.id, b.status, b.created_by, b.created_at,
	b.packing_list_print_count, b.packing_list_printed_at, b.packing_list_printed_by,
	b.packing_slips_print_count, b.packing_slips_printed_at, b.packing_slips_printed_by,
	b.released_at, b.released_by,
	b.export_count, b.exported_at, b.exported_by,
	(SELECT COUNT(*) FROM batch_orders bo WHERE bo.batch_id = b.id),
	EXISTS (SELECT 1 FROM batch_events be WHERE be.batch_id = b.id AND be.event_type = 'BATCH_RELEASE_UNDONE')`

func scanBatch(row pgx.Row) (*Batch, error) {
	var b Batch
	err := row.Scan(
		&b.ID, &b.Status, &b.CreatedBy, &b.CreatedAt,
		&b.PackingListPrintCount, &b.PackingListPrintedAt, &b.PackingListPrintedBy,
		&b.PackingSlipsPrintCount, &b.PackingSlipsPrintedAt, &b.PackingSlipsPrintedBy,
		&b.ReleasedAt, &b.ReleasedBy,
		&b.ExportCount, &b.ExportedAt, &b.ExportedBy,
		&b.OrderCount, &b.PreviouslyUndone,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ── Creation ─────────────────────────────────────────────────────────────────

func (s *batchService) CreateBatch(ctx context.Context, actor string) (*Batch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the eligible rows while selecting them. A concurrent CreateBatch
	// blocks here and, once this transaction stamps batch_id, sees an empty
	// eligible set instead of double-batching the same orders.
	rows, err := tx.Query(ctx, `
		SELECT id FROM orders
		WHERE status = $1
		  AND is_confirmed = true
		  AND is_fulfilled = false
		  AND batch_id IS NULL
		  AND released_at IS NULL
		ORDER BY id
		FOR UPDATE
	`, string(OrderStatusConfirmed))
	if err != nil {
		return nil, fmt.Errorf("failed to select eligible orders: %w", err)
	}

	var orderIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan eligible order: %w", err)
		}
		orderIDs = append(orderIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate eligible orders: %w", err)
	}
	if len(orderIDs) == 0 {
		return nil, ErrNoEligibleOrders
	}

	var batchID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO batches (status, created_by, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id
	`, string(BatchStatusOpen), actor).Scan(&batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert batch: %w", err)
	}

	for _, orderID := range orderIDs {
		if _, err := tx.Exec(ctx,
			"INSERT INTO batch_orders (batch_id, order_id) VALUES ($1, $2)",
			batchID, orderID,
		); err != nil {
			return nil, fmt.Errorf("failed to insert batch order %d: %w", orderID, err)
		}
	}

	// Freeze the line items as they are right now. Documents render from this
	// snapshot even if the live order changes later.
	tag, err := tx.Exec(ctx, `
		INSERT INTO batch_order_items_snapshot (batch_id, order_id, sku, product_name, qty)
		SELECT $1, oi.order_id, oi.sku, oi.title, oi.quantity
		FROM order_items oi
		WHERE oi.order_id = ANY($2)
	`, batchID, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot order items: %w", err)
	}
	itemCount := int(tag.RowsAffected())

	if _, err := tx.Exec(ctx,
		"UPDATE orders SET batch_id = $1, updated_at = NOW() WHERE id = ANY($2)",
		batchID, orderIDs,
	); err != nil {
		return nil, fmt.Errorf("failed to stamp orders with batch id: %w", err)
	}

	err = s.events.BatchEventTx(ctx, tx, batchID, actor, BatchCreatedPayload{
		OrderCount: len(orderIDs),
		ItemCount:  itemCount,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit batch creation: %w", err)
	}
	return s.GetBatch(ctx, batchID)
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *batchService) GetBatch(ctx context.Context, batchID int64) (*Batch, error) {
	b, err := scanBatch(s.pool.QueryRow(ctx,
		"SELECT"+batchColumns+" FROM batches b WHERE b.id = $1", batchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("batch %d not found", batchID)
		}
		return nil, fmt.Errorf("failed to fetch batch %d: %w", batchID, err)
	}
	return b, nil
}

func (s *batchService) ListBatches(ctx context.Context) ([]Batch, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT"+batchColumns+" FROM batches b ORDER BY b.id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, *b)
	}
	return batches, rows.Err()
}

func (s *batchService) BatchOrders(ctx context.Context, batchID int64) ([]Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+orderColumns+`
		FROM orders o
		JOIN batch_orders bo ON bo.order_id = o.id
		WHERE bo.batch_id = $1
		ORDER BY o.id
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (s *batchService) SnapshotItems(ctx context.Context, batchID int64) ([]BatchSnapshotItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, batch_id, order_id, sku, product_name, qty
		FROM batch_order_items_snapshot
		WHERE batch_id = $1
		ORDER BY order_id, id
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot items: %w", err)
	}
	defer rows.Close()

	var items []BatchSnapshotItem
	for rows.Next() {
		var it BatchSnapshotItem
		if err := rows.Scan(&it.ID, &it.BatchID, &it.OrderID, &it.SKU, &it.ProductName, &it.Qty); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// lockBatchTx fetches the batch row FOR UPDATE inside a mutation transaction.
func lockBatchTx(ctx context.Context, tx pgx.Tx, batchID int64) (*Batch, error) {
	var b Batch
	err := tx.QueryRow(ctx, `
		SELECT id, status, created_by, created_at,
		       packing_list_print_count, packing_slips_print_count,
		       released_at, export_count
		FROM batches
		WHERE id = $1
		FOR UPDATE
	`, batchID).Scan(
		&b.ID, &b.Status, &b.CreatedBy, &b.CreatedAt,
		&b.PackingListPrintCount, &b.PackingSlipsPrintCount,
		&b.ReleasedAt, &b.ExportCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("batch %d not found", batchID)
		}
		return nil, fmt.Errorf("failed to lock batch %d: %w", batchID, err)
	}
	return &b, nil
}

// ── Print actions ────────────────────────────────────────────────────────────

func (s *batchService) PrintPackingList(ctx context.Context, batchID int64, actor string) (*Batch, error) {
	return s.recordPrint(ctx, batchID, actor, PrintPackingList)
}

func (s *batchService) PrintPackingSlips(ctx context.Context, batchID int64, actor string) (*Batch, error) {
	return s.recordPrint(ctx, batchID, actor, PrintPackingSlips)
}

func (s *batchService) recordPrint(ctx context.Context, batchID int64, actor string, doc PrintDocument) (*Batch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch, err := lockBatchTx(ctx, tx, batchID)
	if err != nil {
		return nil, err
	}

	listCount, slipsCount := batch.PackingListPrintCount, batch.PackingSlipsPrintCount
	var printCount int
	switch doc {
	case PrintPackingList:
		listCount++
		printCount = listCount
		_, err = tx.Exec(ctx, `
			UPDATE batches
			SET packing_list_print_count = packing_list_print_count + 1,
			    packing_list_printed_at = NOW(), packing_list_printed_by = $1
			WHERE id = $2
		`, actor, batchID)
	case PrintPackingSlips:
		slipsCount++
		printCount = slipsCount
		_, err = tx.Exec(ctx, `
			UPDATE batches
			SET packing_slips_print_count = packing_slips_print_count + 1,
			    packing_slips_printed_at = NOW(), packing_slips_printed_by = $1
			WHERE id = $2
		`, actor, batchID)
	default:
		return nil, fmt.Errorf("unknown print document %q", doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record %s print: %w", doc, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO batch_print_jobs (batch_id, document, actor, created_at)
		VALUES ($1, $2, $3, NOW())
	`, batchID, string(doc), actor); err != nil {
		return nil, fmt.Errorf("failed to insert print job: %w", err)
	}

	next, changed := nextPrintTransition(batch.Status, listCount, slipsCount)
	if changed {
		if next == BatchStatusReleased {
			orderCount, err := s.releaseTx(ctx, tx, batchID, actor)
			if err != nil {
				return nil, err
			}
			err = s.events.BatchEventTx(ctx, tx, batchID, actor, BatchReleasedPayload{
				OrderCount: orderCount, Auto: true,
			})
			if err != nil {
				return nil, err
			}
		} else {
			if _, err := tx.Exec(ctx,
				"UPDATE batches SET status = $1 WHERE id = $2", string(next), batchID,
			); err != nil {
				return nil, fmt.Errorf("failed to advance batch status: %w", err)
			}
		}
	}

	err = s.events.BatchEventTx(ctx, tx, batchID, actor, BatchPrintedPayload{
		Document:   doc,
		PrintCount: printCount,
		FromStatus: batch.Status,
		ToStatus:   next,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit print: %w", err)
	}
	return s.GetBatch(ctx, batchID)
}

// releaseTx stamps the batch RELEASED and marks every member order released
// and fulfilled. Runs inside the caller's transaction.
func (s *batchService) releaseTx(ctx context.Context, tx pgx.Tx, batchID int64, actor string) (int, error) {
	if _, err := tx.Exec(ctx, `
		UPDATE batches SET status = $1, released_at = NOW(), released_by = $2
		WHERE id = $3
	`, string(BatchStatusReleased), actor, batchID); err != nil {
		return 0, fmt.Errorf("failed to release batch %d: %w", batchID, err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE orders SET released_at = NOW(), is_fulfilled = true, updated_at = NOW()
		WHERE batch_id = $1
	`, batchID)
	if err != nil {
		return 0, fmt.Errorf("failed to release batch orders: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ── Release and undo ─────────────────────────────────────────────────────────

func (s *batchService) ReleaseBatch(ctx context.Context, batchID int64, actor string) (*Batch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch, err := lockBatchTx(ctx, tx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != BatchStatusLocked {
		return nil, fmt.Errorf("batch %d cannot be released: status is %s (must be LOCKED)", batchID, batch.Status)
	}

	orderCount, err := s.releaseTx(ctx, tx, batchID, actor)
	if err != nil {
		return nil, err
	}

	err = s.events.BatchEventTx(ctx, tx, batchID, actor, BatchReleasedPayload{
		OrderCount: orderCount, Auto: false,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit release: %w", err)
	}
	return s.GetBatch(ctx, batchID)
}

func (s *batchService) UndoRelease(ctx context.Context, batchID int64, actor, reason string) (*Batch, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch, err := lockBatchTx(ctx, tx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != BatchStatusReleased {
		return nil, fmt.Errorf("batch %d cannot be un-released: status is %s", batchID, batch.Status)
	}

	// Parcels already handed to the courier cannot be recalled.
	var tracked bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders o
			JOIN batch_orders bo ON bo.order_id = o.id
			WHERE bo.batch_id = $1 AND o.tracking_number IS NOT NULL
		)
	`, batchID).Scan(&tracked)
	if err != nil {
		return nil, fmt.Errorf("failed to check tracking numbers: %w", err)
	}
	if tracked {
		return nil, ErrTrackedOrdersInBatch
	}

	if _, err := tx.Exec(ctx, `
		UPDATE batches SET status = $1, released_at = NULL, released_by = NULL
		WHERE id = $2
	`, string(BatchStatusLocked), batchID); err != nil {
		return nil, fmt.Errorf("failed to revert batch %d: %w", batchID, err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET released_at = NULL, is_confirmed = false, is_fulfilled = false,
		    review_required = true, updated_at = NOW()
		WHERE batch_id = $1
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to revert batch orders: %w", err)
	}

	err = s.events.BatchEventTx(ctx, tx, batchID, actor, BatchUndoneReleasePayload{
		Reason:     reason,
		OrderCount: int(tag.RowsAffected()),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit undo-release: %w", err)
	}
	return s.GetBatch(ctx, batchID)
}

// ── Courier export ───────────────────────────────────────────────────────────

func (s *batchService) RecordCourierExport(ctx context.Context, batchID int64, actor string, rowCount int) (*Batch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch, err := lockBatchTx(ctx, tx, batchID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE batches SET export_count = export_count + 1, exported_at = NOW(), exported_by = $1
		WHERE id = $2
	`, actor, batchID); err != nil {
		return nil, fmt.Errorf("failed to record courier export: %w", err)
	}

	err = s.events.BatchEventTx(ctx, tx, batchID, actor, CourierExportedPayload{
		RowCount:    rowCount,
		ExportCount: batch.ExportCount + 1,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit export record: %w", err)
	}
	return s.GetBatch(ctx, batchID)
}
