package core

import "testing"

func TestNextPrintTransition(t *testing.T) {
	tests := []struct {
		name        string
		status      BatchStatus
		listCount   int
		slipsCount  int
		wantStatus  BatchStatus
		wantChanged bool
	}{
		{"first list print locks an open batch", BatchStatusOpen, 1, 0, BatchStatusLocked, true},
		{"slips print alone does not lock", BatchStatusOpen, 0, 1, BatchStatusOpen, false},
		{"slips print on locked batch releases", BatchStatusLocked, 1, 1, BatchStatusReleased, true},
		{"list reprint on locked batch without slips stays locked", BatchStatusLocked, 2, 0, BatchStatusLocked, false},
		{"one step per print: list print on open batch only locks", BatchStatusOpen, 1, 1, BatchStatusLocked, true},
		{"released batch never moves", BatchStatusReleased, 3, 2, BatchStatusReleased, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := nextPrintTransition(tt.status, tt.listCount, tt.slipsCount)
			if got != tt.wantStatus || changed != tt.wantChanged {
				t.Errorf("nextPrintTransition(%s, %d, %d) = (%s, %v), want (%s, %v)",
					tt.status, tt.listCount, tt.slipsCount, got, changed, tt.wantStatus, tt.wantChanged)
			}
		})
	}
}
