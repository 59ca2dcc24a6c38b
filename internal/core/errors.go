package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrVersionConflict signals that a versioned order update lost the race with a
// concurrent edit. Callers surface it as "updated by someone else, refresh"
// rather than retrying silently.
var ErrVersionConflict = errors.New("order was updated by someone else")

// ErrNoEligibleOrders is returned by CreateBatch when no order matches the
// batch eligibility filter.
var ErrNoEligibleOrders = errors.New("no eligible orders")

// ErrOrderNotEditable is returned when a mutation targets a fulfilled order or
// an order in a locked status.
var ErrOrderNotEditable = errors.New("order is no longer editable")

// ErrReasonRequired is returned by undo-release when no human-supplied reason
// accompanies the request.
var ErrReasonRequired = errors.New("a non-empty reason is required")

// ErrTrackedOrdersInBatch blocks undo-release once any member order carries a
// tracking number: the physical parcels are already with the courier.
var ErrTrackedOrdersInBatch = errors.New("batch has orders with tracking numbers assigned")

// TrackingConflict describes one uploaded row whose order already carries a
// different tracking number than the row's value.
type TrackingConflict struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Existing    string `json:"existing"`
	Incoming    string `json:"incoming"`
}

// TrackingConflictError collects every conflicting row of a tracking import.
// Clean rows are still applied (Applied counts them); conflicting rows are
// skipped, never overwritten, and listed here for manual resolution.
type TrackingConflictError struct {
	Conflicts []TrackingConflict `json:"conflicts"`
	Applied   int                `json:"applied"`
	Unmatched []string           `json:"unmatched,omitempty"`
}

func (e *TrackingConflictError) Error() string {
	refs := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		refs[i] = fmt.Sprintf("%s (%s → %s)", c.OrderNumber, c.Existing, c.Incoming)
	}
	return fmt.Sprintf("tracking import: %d of %d rows conflict with existing tracking numbers: %s",
		len(e.Conflicts), len(e.Conflicts)+e.Applied, strings.Join(refs, ", "))
}
