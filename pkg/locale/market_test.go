package locale

import (
	"testing"
	"time"
)

func TestInferMarketFromMSISDN(t *testing.T) {
	tests := []struct {
		name   string
		msisdn string
		want   string
		found  bool
	}{
		{"gateway form", "254712345678", "KE", true},
		{"e164 form", "+254712345678", "KE", true},
		{"padded", "  254712345678 ", "KE", true},
		{"other country", "14155550123", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := InferMarketFromMSISDN(tt.msisdn)
			if ok != tt.found || m.Code != tt.want {
				t.Errorf("InferMarketFromMSISDN(%q) = %q, %v; want %q, %v", tt.msisdn, m.Code, ok, tt.want, tt.found)
			}
		})
	}
}

func TestMarketLocation_Offset(t *testing.T) {
	ref := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	_, offset := ref.In(Kenya.Location()).Zone()
	if time.Duration(offset)*time.Second != Kenya.UTCOffset {
		t.Errorf("expected offset %s, got %ds", Kenya.UTCOffset, offset)
	}

	fallback := Market{Code: "XX", Timezone: "Nowhere/Invalid", UTCOffset: 2 * time.Hour}
	_, offset = ref.In(fallback.Location()).Zone()
	if offset != 7200 {
		t.Errorf("expected fixed fallback offset 7200, got %d", offset)
	}
}
