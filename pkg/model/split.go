package model

const (
	CounterpartySharePercent = 80
	PlatformSharePercent     = 100 - CounterpartySharePercent
)

type Split struct {
	CounterpartyPayout int64 `json:"counterparty_payout"`
	PlatformRetained   int64 `json:"platform_retained"`
}

// ComputeSplit divides total between the counterparty and the platform.
// Rounding remainders stay with the platform so the parts always sum to total.
func ComputeSplit(total int64) Split {
	payout := total * CounterpartySharePercent / 100
	return Split{
		CounterpartyPayout: payout,
		PlatformRetained:   total - payout,
	}
}
