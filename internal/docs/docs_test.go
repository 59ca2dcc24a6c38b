package docs_test

import (
	"strings"
	"testing"
	"time"

	"orderdesk/internal/core"
	"orderdesk/internal/docs"

	"github.com/shopspring/decimal"
)

func snapshotFixture() []core.BatchSnapshotItem {
	return []core.BatchSnapshotItem{
		{OrderID: 1, SKU: "MUG-BLK", ProductName: "Black Mug", Qty: 2},
		{OrderID: 1, SKU: "TEE-M", ProductName: "T-Shirt M", Qty: 1},
		{OrderID: 2, SKU: "MUG-BLK", ProductName: "Black Mug", Qty: 3},
		{OrderID: 3, SKU: "CAP-RED", ProductName: "Red Cap", Qty: 1},
	}
}

func TestGroupSnapshotBySKU(t *testing.T) {
	lines := docs.GroupSnapshotBySKU(snapshotFixture())

	if len(lines) != 3 {
		t.Fatalf("expected 3 pick lines, got %d", len(lines))
	}
	// Sorted by SKU: CAP-RED, MUG-BLK, TEE-M.
	if lines[0].SKU != "CAP-RED" || lines[1].SKU != "MUG-BLK" || lines[2].SKU != "TEE-M" {
		t.Fatalf("unexpected SKU order: %v", lines)
	}
	if lines[1].TotalQty != 5 {
		t.Errorf("MUG-BLK total qty = %d, want 5", lines[1].TotalQty)
	}
	if lines[1].OrderCount != 2 {
		t.Errorf("MUG-BLK order count = %d, want 2", lines[1].OrderCount)
	}
}

func TestRenderPackingList(t *testing.T) {
	batch := &core.Batch{ID: 7, CreatedBy: "ops", CreatedAt: time.Now(), OrderCount: 3}

	out, err := docs.RenderPackingList(batch, snapshotFixture(), time.Now())
	if err != nil {
		t.Fatalf("RenderPackingList failed: %v", err)
	}

	html := string(out)
	for _, want := range []string{"Batch #7", "MUG-BLK", "Black Mug", "<td>5</td>"} {
		if !strings.Contains(html, want) {
			t.Errorf("packing list missing %q", want)
		}
	}
}

func TestBuildSlipOrders(t *testing.T) {
	orders := []core.Order{
		{ID: 1, OrderNumber: "OD-000001"},
		{ID: 2, OrderNumber: "OD-000002"},
		{ID: 9, OrderNumber: "OD-000009"}, // no snapshot lines
	}

	slips := docs.BuildSlipOrders(orders, snapshotFixture())
	if len(slips) != 2 {
		t.Fatalf("expected 2 slips, got %d", len(slips))
	}
	if slips[0].Order.ID != 1 || len(slips[0].Items) != 2 {
		t.Errorf("unexpected first slip: order %d with %d items", slips[0].Order.ID, len(slips[0].Items))
	}
}

func TestRenderPackingSlips(t *testing.T) {
	batch := &core.Batch{ID: 7}
	orders := []core.Order{
		{ID: 1, OrderNumber: "OD-000001", CustomerName: "Dana Silva", Phone: "0912345678", Address: "12 Main St", City: "Springfield"},
		{ID: 2, OrderNumber: "OD-000002", CustomerName: "Kim Ho", Phone: "0923456789", Address: "34 Oak Ave", City: "Rivertown"},
	}

	out, err := docs.RenderPackingSlips(batch, orders, snapshotFixture())
	if err != nil {
		t.Fatalf("RenderPackingSlips failed: %v", err)
	}

	html := string(out)
	for _, want := range []string{"OD-000001", "Dana Silva", "OD-000002", "34 Oak Ave"} {
		if !strings.Contains(html, want) {
			t.Errorf("packing slips missing %q", want)
		}
	}
}

func TestExpandTemplate(t *testing.T) {
	tracking := "SF123"
	order := &core.Order{
		OrderNumber:    "OD-000042",
		CustomerName:   "Dana Silva",
		Phone:          "0912345678",
		Address:        "12 Main St",
		City:           "Springfield",
		Total:          decimal.RequireFromString("109.80"),
		TrackingNumber: &tracking,
	}

	tests := []struct {
		tmpl string
		want string
	}{
		{"{order_number}", "OD-000042"},
		{"{customer_name} / {phone}", "Dana Silva / 0912345678"},
		{"{address}, {city}", "12 Main St, Springfield"},
		{"{total}", "109.80"},
		{"{tracking_number}", "SF123"},
		{"{unknown_field}", ""},
		{"plain text", "plain text"},
		{"unclosed {brace", "unclosed {brace"},
	}

	for _, tt := range tests {
		if got := docs.ExpandTemplate(tt.tmpl, order); got != tt.want {
			t.Errorf("ExpandTemplate(%q) = %q, want %q", tt.tmpl, got, tt.want)
		}
	}
}

func TestRenderCourierCSV(t *testing.T) {
	settings := &core.CourierExportSettings{
		Name: "test",
		Columns: []core.CourierColumn{
			{Header: "Order No", Template: "{order_number}"},
			{Header: "Receiver", Template: "{customer_name}"},
			{Header: "COD", Template: "{total}"},
		},
	}
	orders := []core.Order{
		{OrderNumber: "OD-000001", CustomerName: "Dana Silva", Total: decimal.RequireFromString("59.80")},
		{OrderNumber: "OD-000002", CustomerName: "Kim, Ho", Total: decimal.RequireFromString("45.00")},
	}

	out, rowCount, err := docs.RenderCourierCSV(settings, orders)
	if err != nil {
		t.Fatalf("RenderCourierCSV failed: %v", err)
	}
	if rowCount != 2 {
		t.Errorf("rowCount = %d, want 2", rowCount)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "Order No,Receiver,COD" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "OD-000001,Dana Silva,59.80" {
		t.Errorf("row 1 = %q", lines[1])
	}
	// A comma inside a field must be quoted.
	if lines[2] != `OD-000002,"Kim, Ho",45.00` {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestRenderCourierCSVNoColumns(t *testing.T) {
	_, _, err := docs.RenderCourierCSV(&core.CourierExportSettings{Name: "empty"}, nil)
	if err == nil {
		t.Fatal("expected an error for settings with no columns")
	}
}

func TestRenderShippingLabels(t *testing.T) {
	orders := []core.Order{
		{OrderNumber: "OD-000001", CustomerName: "Dana Silva", Phone: "0912345678", Address: "12 Main St", City: "Springfield"},
	}

	out, err := docs.RenderShippingLabels(7, orders)
	if err != nil {
		t.Fatalf("RenderShippingLabels failed: %v", err)
	}
	if len(out) == 0 || !strings.HasPrefix(string(out[:5]), "%PDF-") {
		t.Error("output is not a PDF document")
	}
}
