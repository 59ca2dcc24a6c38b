package core_test

import (
	"testing"
	"time"

	"orderdesk/internal/core"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name         string
		lineTotals   []string
		shippingFee  string
		discount     string
		wantSubtotal string
		wantTotal    string
	}{
		{
			name:         "two items with shipping",
			lineTotals:   []string{"59.80", "45.00"},
			shippingFee:  "5.00",
			discount:     "0",
			wantSubtotal: "104.80",
			wantTotal:    "109.80",
		},
		{
			name:         "discount applied",
			lineTotals:   []string{"100.00"},
			shippingFee:  "10.00",
			discount:     "25.00",
			wantSubtotal: "100.00",
			wantTotal:    "85.00",
		},
		{
			name:         "no items",
			lineTotals:   nil,
			shippingFee:  "0",
			discount:     "0",
			wantSubtotal: "0",
			wantTotal:    "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var items []core.OrderItem
			for _, lt := range tt.lineTotals {
				items = append(items, core.OrderItem{LineTotal: d(lt)})
			}
			subtotal, total := core.ComputeTotals(items, d(tt.shippingFee), d(tt.discount))
			if !subtotal.Equal(d(tt.wantSubtotal)) {
				t.Errorf("subtotal = %s, want %s", subtotal, tt.wantSubtotal)
			}
			if !total.Equal(d(tt.wantTotal)) {
				t.Errorf("total = %s, want %s", total, tt.wantTotal)
			}
		})
	}
}

func TestOrderEditable(t *testing.T) {
	tests := []struct {
		name      string
		status    core.OrderStatus
		fulfilled bool
		want      bool
	}{
		{"new order", core.OrderStatusNew, false, true},
		{"confirmed order", core.OrderStatusConfirmed, false, true},
		{"on hold", core.OrderStatusOnHold, false, true},
		{"fulfilled confirmed order", core.OrderStatusConfirmed, true, false},
		{"shipped", core.OrderStatusShipped, false, false},
		{"delivered", core.OrderStatusDelivered, false, false},
		{"canceled", core.OrderStatusCanceled, false, false},
		{"returned", core.OrderStatusReturned, false, false},
		{"merged", core.OrderStatusMerged, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &core.Order{Status: tt.status, IsFulfilled: tt.fulfilled}
			if got := o.Editable(); got != tt.want {
				t.Errorf("Editable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []core.OrderStatus{
		core.OrderStatusCanceled, core.OrderStatusReturned,
		core.OrderStatusMerged, core.OrderStatusDelivered,
	}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	open := []core.OrderStatus{
		core.OrderStatusNew, core.OrderStatusConfirmed, core.OrderStatusPacked,
		core.OrderStatusShipped, core.OrderStatusOnHold,
	}
	for _, s := range open {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestEvaluateWarnings(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		batch core.Batch
		want  []core.BatchWarning
	}{
		{
			name: "fresh open batch has no warnings",
			batch: core.Batch{
				Status:    core.BatchStatusOpen,
				CreatedAt: now.Add(-30 * time.Minute),
			},
			want: nil,
		},
		{
			name: "open too long",
			batch: core.Batch{
				Status:    core.BatchStatusOpen,
				CreatedAt: now.Add(-3 * time.Hour),
			},
			want: []core.BatchWarning{core.WarnOpenTooLong},
		},
		{
			name: "locked with zero list prints",
			batch: core.Batch{
				Status:    core.BatchStatusLocked,
				CreatedAt: now.Add(-time.Hour),
			},
			want: []core.BatchWarning{core.WarnLockedUnprinted},
		},
		{
			name: "released without slips",
			batch: core.Batch{
				Status:                core.BatchStatusReleased,
				CreatedAt:             now.Add(-time.Hour),
				PackingListPrintCount: 1,
			},
			want: []core.BatchWarning{core.WarnReleasedNoSlips},
		},
		{
			name: "previously undone is sticky on a re-released batch",
			batch: core.Batch{
				Status:                 core.BatchStatusReleased,
				CreatedAt:              now.Add(-time.Hour),
				PackingListPrintCount:  2,
				PackingSlipsPrintCount: 1,
				PreviouslyUndone:       true,
			},
			want: []core.BatchWarning{core.WarnPreviouslyUndone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := core.EvaluateWarnings(&tt.batch, now)
			if len(got) != len(tt.want) {
				t.Fatalf("EvaluateWarnings() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("warning[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}
