package core

import "testing"

func strptr(s string) *string { return &s }

func TestMatchTrackingRows(t *testing.T) {
	orders := []Order{
		{ID: 1, OrderNumber: "OD-000001"},
		{ID: 2, OrderNumber: "OD-000002", TrackingNumber: strptr("SF100")},
		{ID: 3, OrderNumber: "OD-000003"},
	}

	rows := []TrackingRow{
		{Reference: "OD-000001", TrackingNumber: "SF200"}, // by order number
		{Reference: "2", TrackingNumber: "SF999"},         // by id, conflicts with SF100
		{Reference: " 3 ", TrackingNumber: " SF300 "},     // whitespace tolerated
		{Reference: "OD-999999", TrackingNumber: "SF400"}, // unknown order
		{Reference: "", TrackingNumber: "SF500"},          // blank reference
	}

	matches, unmatched := matchTrackingRows(rows, orders)

	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].orderID != 1 || matches[0].incoming != "SF200" || matches[0].existing != "" {
		t.Errorf("unexpected first match: %+v", matches[0])
	}
	if matches[1].orderID != 2 || matches[1].existing != "SF100" || matches[1].incoming != "SF999" {
		t.Errorf("unexpected second match: %+v", matches[1])
	}
	if matches[2].orderID != 3 || matches[2].incoming != "SF300" {
		t.Errorf("whitespace should be trimmed: %+v", matches[2])
	}
	if len(unmatched) != 2 {
		t.Fatalf("expected 2 unmatched rows, got %d: %v", len(unmatched), unmatched)
	}
	if unmatched[0] != "OD-999999" {
		t.Errorf("unmatched[0] = %q, want OD-999999", unmatched[0])
	}
}
