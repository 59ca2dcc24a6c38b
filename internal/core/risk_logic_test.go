package core

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0912-345-678", "0912345678"},
		{" (091) 234 5678 ", "0912345678"},
		{"+886 912 345 678", "+886912345678"},
		{"00886912345678", "+886912345678"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12 Main St., Apt 4", "12 main st apt 4"},
		{"  12   MAIN st  ", "12 main st"},
		{"No.5, Lane 120", "no 5 lane 120"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeAddress(tt.in); got != tt.want {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScoreSignals(t *testing.T) {
	tests := []struct {
		name        string
		dupPhone    int
		dupAddress  int
		dupIP       int
		bulkSKU     string
		bulkQty     int
		wantScore   int
		wantLevel   RiskLevel
		wantReasons int
	}{
		{"clean order", 0, 0, 0, "", 0, 0, RiskLow, 0},
		{"duplicate phone only", 2, 0, 0, "", 0, 35, RiskLow, 1},
		{"phone and address", 1, 1, 0, "", 0, 60, RiskMedium, 2},
		{"phone, address, and ip", 1, 1, 1, "", 0, 75, RiskHigh, 3},
		{"everything maxes at 100", 3, 2, 1, "SKU-1", 20, 100, RiskHigh, 4},
		{"bulk quantity alone", 0, 0, 0, "SKU-1", 15, 25, RiskLow, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, reasons := scoreSignals(tt.dupPhone, tt.dupAddress, tt.dupIP, tt.bulkSKU, tt.bulkQty)
			if score != tt.wantScore {
				t.Errorf("score = %d, want %d", score, tt.wantScore)
			}
			if len(reasons) != tt.wantReasons {
				t.Errorf("got %d reasons, want %d: %v", len(reasons), tt.wantReasons, reasons)
			}
			if level := levelForScore(score); level != tt.wantLevel {
				t.Errorf("level = %s, want %s", level, tt.wantLevel)
			}
		})
	}
}
