package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TrackingRow is one row of an uploaded tracking sheet. Reference identifies
// the order by order number (preferred) or numeric order id.
type TrackingRow struct {
	Reference      string `json:"reference"`
	TrackingNumber string `json:"tracking_number"`
}

// TrackingImportResult summarizes a completed import. Conflicting rows are
// reported through *TrackingConflictError instead.
type TrackingImportResult struct {
	Applied   int      `json:"applied"`
	Unmatched []string `json:"unmatched,omitempty"`
}

// trackingMatch pairs an uploaded row with the order it resolved to.
type trackingMatch struct {
	orderID  int64
	orderNum string
	existing string
	incoming string
}

// matchTrackingRows resolves uploaded rows against the given orders. Orders
// are keyed by order number and by numeric id, so sheets exported from either
// the dashboard or the courier portal both resolve.
func matchTrackingRows(rows []TrackingRow, orders []Order) (matches []trackingMatch, unmatched []string) {
	byNumber := make(map[string]*Order, len(orders))
	byID := make(map[int64]*Order, len(orders))
	for i := range orders {
		byNumber[orders[i].OrderNumber] = &orders[i]
		byID[orders[i].ID] = &orders[i]
	}

	for _, row := range rows {
		ref := strings.TrimSpace(row.Reference)
		tracking := strings.TrimSpace(row.TrackingNumber)
		if ref == "" || tracking == "" {
			unmatched = append(unmatched, row.Reference)
			continue
		}

		o, ok := byNumber[ref]
		if !ok {
			if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
				o, ok = byID[id]
			}
		}
		if !ok {
			unmatched = append(unmatched, ref)
			continue
		}

		var existing string
		if o.TrackingNumber != nil {
			existing = *o.TrackingNumber
		}
		matches = append(matches, trackingMatch{
			orderID:  o.ID,
			orderNum: o.OrderNumber,
			existing: existing,
			incoming: tracking,
		})
	}
	return matches, unmatched
}

// TrackingService applies courier tracking sheets to orders.
type TrackingService interface {
	// ImportTracking matches uploaded rows to orders, applies the clean ones,
	// and reports conflicts. A row whose order already carries a different
	// tracking number is never overwritten: clean rows are still committed and
	// the conflicts come back as a *TrackingConflictError.
	ImportTracking(ctx context.Context, rows []TrackingRow, actor string) (*TrackingImportResult, error)
}

type trackingService struct {
	pool   *pgxpool.Pool
	events *EventRecorder
}

func NewTrackingService(pool *pgxpool.Pool, events *EventRecorder) TrackingService {
	return &trackingService{pool: pool, events: events}
}

func (s *trackingService) ImportTracking(ctx context.Context, rows []TrackingRow, actor string) (*TrackingImportResult, error) {
	if len(rows) == 0 {
		return &TrackingImportResult{}, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	refs := make([]string, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, strings.TrimSpace(row.Reference))
	}

	// Lock every referenced order up front so conflict detection and the
	// applies see a consistent view.
	orders, err := s.lockReferencedOrders(ctx, tx, refs)
	if err != nil {
		return nil, err
	}

	matches, unmatched := matchTrackingRows(rows, orders)

	var conflicts []TrackingConflict
	applied := 0
	for _, m := range matches {
		if m.existing != "" && m.existing != m.incoming {
			conflicts = append(conflicts, TrackingConflict{
				OrderID:     m.orderID,
				OrderNumber: m.orderNum,
				Existing:    m.existing,
				Incoming:    m.incoming,
			})
			continue
		}
		if m.existing == m.incoming {
			// Re-upload of the same sheet; nothing to write.
			continue
		}
		if _, err := tx.Exec(ctx, `
			UPDATE orders SET tracking_number = $1, status = $2, updated_at = NOW()
			WHERE id = $3
		`, m.incoming, string(OrderStatusShipped), m.orderID); err != nil {
			return nil, fmt.Errorf("failed to set tracking on order %d: %w", m.orderID, err)
		}
		err = s.events.OrderEventTx(ctx, tx, m.orderID, actor, TrackingSetPayload{
			TrackingNumber: m.incoming,
			Source:         "import",
		})
		if err != nil {
			return nil, err
		}
		applied++
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit tracking import: %w", err)
	}

	err = s.events.SystemEvent(ctx, actor, TrackingImportedPayload{
		Applied:   applied,
		Conflicts: len(conflicts),
		Unmatched: len(unmatched),
	})
	if err != nil {
		return nil, err
	}

	if len(conflicts) > 0 {
		return nil, &TrackingConflictError{
			Conflicts: conflicts,
			Applied:   applied,
			Unmatched: unmatched,
		}
	}
	return &TrackingImportResult{Applied: applied, Unmatched: unmatched}, nil
}

// lockReferencedOrders fetches FOR UPDATE every order named by the sheet,
// whether by order number or numeric id.
func (s *trackingService) lockReferencedOrders(ctx context.Context, tx pgx.Tx, refs []string) ([]Order, error) {
	var ids []int64
	for _, ref := range refs {
		if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	if ids == nil {
		ids = []int64{}
	}

	rows, err := tx.Query(ctx, `
		SELECT`+orderColumns+`
		FROM orders o
		WHERE o.order_number = ANY($1) OR o.id = ANY($2)
		ORDER BY o.id
		FOR UPDATE
	`, refs, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock referenced orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan referenced order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}
