package locale

import (
	"strings"
	"time"
)

// Market describes a country the payment gateway collects in.
type Market struct {
	Code        string // ISO 3166-1 alpha-2
	Name        string
	CallingCode string // without the leading +
	Currency    string // ISO 4217
	Timezone    string // IANA identifier
	UTCOffset   time.Duration
}

var Kenya = Market{
	Code:        "KE",
	Name:        "Kenya",
	CallingCode: "254",
	Currency:    "KES",
	Timezone:    "Africa/Nairobi",
	UTCOffset:   3 * time.Hour,
}

// Payer is the market every charge is collected in.
var Payer = Kenya

var Markets = map[string]Market{
	Kenya.Code: Kenya,
}

// Location falls back to a fixed offset when the zone database is missing
// from the host.
func (m Market) Location() *time.Location {
	if loc, err := time.LoadLocation(m.Timezone); err == nil {
		return loc
	}
	return time.FixedZone(m.Code, int(m.UTCOffset/time.Second))
}

// InferMarketFromMSISDN matches an international number, with or without
// the leading +, against the known calling codes.
func InferMarketFromMSISDN(msisdn string) (Market, bool) {
	normalized := strings.TrimPrefix(strings.TrimSpace(msisdn), "+")
	for _, m := range Markets {
		if strings.HasPrefix(normalized, m.CallingCode) {
			return m, true
		}
	}
	return Market{}, false
}
