package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPacked    OrderStatus = "packed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCanceled  OrderStatus = "canceled"
	OrderStatusReturned  OrderStatus = "returned"
	OrderStatusOnHold    OrderStatus = "on_hold"
	OrderStatusMerged    OrderStatus = "merged"
)

// Terminal reports whether an order can never leave this status again.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCanceled, OrderStatusReturned, OrderStatusMerged, OrderStatusDelivered:
		return true
	}
	return false
}

// lockedStatuses are statuses under which order items and core fields are frozen.
var lockedStatuses = map[OrderStatus]bool{
	OrderStatusShipped:   true,
	OrderStatusDelivered: true,
	OrderStatusCanceled:  true,
	OrderStatusReturned:  true,
	OrderStatusMerged:    true,
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Order is a customer order created at checkout and mutated by risk scoring,
// admin review, and batch operations. Version is an optimistic-concurrency
// counter: every admin mutation is conditioned on the caller's last-seen value.
type Order struct {
	ID                int64           `json:"id"`
	OrderNumber       string          `json:"order_number"`
	CustomerName      string          `json:"customer_name"`
	Phone             string          `json:"phone"`
	PhoneNormalized   string          `json:"phone_normalized,omitempty"`
	Address           string          `json:"address"`
	AddressNormalized string          `json:"address_normalized,omitempty"`
	City              string          `json:"city"`
	IP                string          `json:"ip,omitempty"`
	Status            OrderStatus     `json:"status"`
	IsConfirmed       bool            `json:"is_confirmed"`
	IsFulfilled       bool            `json:"is_fulfilled"`
	ReviewRequired    bool            `json:"review_required"`
	RiskScore         *int            `json:"risk_score,omitempty"`
	RiskLevel         *RiskLevel      `json:"risk_level,omitempty"`
	RiskReasons       []string        `json:"risk_reasons,omitempty"`
	TrackingNumber    *string         `json:"tracking_number,omitempty"`
	BatchID           *int64          `json:"batch_id,omitempty"`
	ReleasedAt        *time.Time      `json:"released_at,omitempty"`
	Version           int             `json:"version"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	ShippingFee       decimal.Decimal `json:"shipping_fee"`
	DiscountTotal     decimal.Decimal `json:"discount_total"`
	Total             decimal.Decimal `json:"total"`
	Tags              []string        `json:"tags,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Items             []OrderItem     `json:"items,omitempty"`
}

// Editable reports whether items and core fields may still be mutated.
// Fulfilled orders and orders in a locked status are read-only.
func (o *Order) Editable() bool {
	return !o.IsFulfilled && !lockedStatuses[o.Status]
}

type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	SKU       string          `json:"sku"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// ComputeTotals recomputes the order money invariant from live item rows:
// subtotal = Σ line_total, total = subtotal + shipping_fee − discount_total.
func ComputeTotals(items []OrderItem, shippingFee, discountTotal decimal.Decimal) (subtotal, total decimal.Decimal) {
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal)
	}
	total = subtotal.Add(shippingFee).Sub(discountTotal)
	return subtotal, total
}

type BatchStatus string

const (
	BatchStatusOpen     BatchStatus = "OPEN"
	BatchStatusLocked   BatchStatus = "LOCKED"
	BatchStatusReleased BatchStatus = "RELEASED"
)

// Batch groups confirmed orders for a single warehouse picking run.
// Status only advances OPEN → LOCKED → RELEASED; the one reverse edge
// (RELEASED → LOCKED) exists only through the audited undo-release path.
type Batch struct {
	ID        int64       `json:"id"`
	Status    BatchStatus `json:"status"`
	CreatedBy string      `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`

	PackingListPrintCount int        `json:"packing_list_print_count"`
	PackingListPrintedAt  *time.Time `json:"packing_list_printed_at,omitempty"`
	PackingListPrintedBy  *string    `json:"packing_list_printed_by,omitempty"`

	PackingSlipsPrintCount int        `json:"packing_slips_print_count"`
	PackingSlipsPrintedAt  *time.Time `json:"packing_slips_printed_at,omitempty"`
	PackingSlipsPrintedBy  *string    `json:"packing_slips_printed_by,omitempty"`

	ReleasedAt *time.Time `json:"released_at,omitempty"`
	ReleasedBy *string    `json:"released_by,omitempty"`

	ExportCount int        `json:"export_count"`
	ExportedAt  *time.Time `json:"exported_at,omitempty"`
	ExportedBy  *string    `json:"exported_by,omitempty"`

	// Derived in list/detail queries, not stored columns.
	OrderCount       int  `json:"order_count"`
	PreviouslyUndone bool `json:"previously_undone"`
}

// BatchSnapshotItem is a frozen copy of an order line taken at batch-creation
// time. Printed documents always render from the snapshot, never from live
// items, so later order edits cannot change what the warehouse picks.
type BatchSnapshotItem struct {
	ID          int64  `json:"id"`
	BatchID     int64  `json:"batch_id"`
	OrderID     int64  `json:"order_id"`
	SKU         string `json:"sku"`
	ProductName string `json:"product_name"`
	Qty         int    `json:"qty"`
}

type PrintDocument string

const (
	PrintPackingList  PrintDocument = "packing_list"
	PrintPackingSlips PrintDocument = "packing_slips"
)

type Product struct {
	ID          int64           `json:"id"`
	SKU         string          `json:"sku"`
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type FAQEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// LandingConfig is the generated marketing copy for a product landing page.
type LandingConfig struct {
	ProductID     int64      `json:"product_id"`
	Headline      string     `json:"headline"`
	Subheadline   string     `json:"subheadline"`
	SellingPoints []string   `json:"selling_points"`
	FAQ           []FAQEntry `json:"faq"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CourierColumn maps one CSV column to a template over order fields,
// e.g. {Header: "Receiver", Template: "{customer_name}"}.
type CourierColumn struct {
	Header   string `json:"header"`
	Template string `json:"template"`
}

type CourierExportSettings struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Columns []CourierColumn `json:"columns"`
}

type AdminUser struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}
