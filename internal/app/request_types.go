package app

import "orderdesk/internal/core"

// CheckoutRequest is a storefront cart submission. Item prices are never taken
// from the client; the order service resolves them from the catalog.
type CheckoutRequest struct {
	CustomerName string              `json:"customer_name"`
	Phone        string              `json:"phone"`
	Address      string              `json:"address"`
	City         string              `json:"city"`
	IP           string              `json:"-"`
	Items        []core.CheckoutItem `json:"items"`
}

// ConfirmOrderRequest confirms one order. IdempotencyKey deduplicates
// double-submits; Version guards against concurrent edits.
type ConfirmOrderRequest struct {
	OrderID        int64  `json:"-"`
	Version        int    `json:"version"`
	IdempotencyKey string `json:"idempotency_key"`
	Actor          string `json:"-"`
}

// UpdateOrderRequest carries versioned field edits. Nil pointers mean
// "unchanged".
type UpdateOrderRequest struct {
	OrderID int64                `json:"-"`
	Version int                  `json:"version"`
	Edits   core.OrderFieldEdits `json:"edits"`
	Actor   string               `json:"-"`
}

type UpdateItemRequest struct {
	OrderID int64  `json:"-"`
	ItemID  int64  `json:"-"`
	Qty     int    `json:"qty"`
	Version int    `json:"version"`
	Actor   string `json:"-"`
}

type DeleteItemRequest struct {
	OrderID int64  `json:"-"`
	ItemID  int64  `json:"-"`
	Version int    `json:"version"`
	Actor   string `json:"-"`
}

// TransitionRequest drives cancel and hold. Reason is recorded in the audit
// event.
type TransitionRequest struct {
	OrderID int64  `json:"-"`
	Version int    `json:"version"`
	Reason  string `json:"reason"`
	Actor   string `json:"-"`
}
