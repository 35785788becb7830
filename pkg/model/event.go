package model

import "time"

type EventKind string

const (
	EventBookingCreated   EventKind = "booking_created"
	EventPaymentConfirmed EventKind = "payment_confirmed"
	EventPaymentFailed    EventKind = "payment_failed"
	EventBookingCompleted EventKind = "booking_completed"
	EventBookingCancelled EventKind = "booking_cancelled"
)

type BookingEvent struct {
	EventID            string        `json:"event_id"`
	Kind               EventKind     `json:"event_kind"`
	BookingID          string        `json:"booking_id"`
	InitiatorPartyID   string        `json:"initiator_party_id"`
	CounterpartyID     string        `json:"counterparty_id"`
	Status             BookingStatus `json:"status"`
	TotalAmount        int64         `json:"total_amount"`
	CounterpartyPayout *int64        `json:"counterparty_payout,omitempty"`
	PlatformRetained   *int64        `json:"platform_retained,omitempty"`
	RefundDue          bool          `json:"refund_due,omitempty"`
	RefundAmount       int64         `json:"refund_amount,omitempty"`
	ResultCode         *int          `json:"result_code,omitempty"`
	ResultDescription  string        `json:"result_description,omitempty"`
	ReceiptNumber      string        `json:"receipt_number,omitempty"`
	OccurredAt         time.Time     `json:"occurred_at"`
}

func NewBookingEvent(kind EventKind, b *Booking) BookingEvent {
	return BookingEvent{
		Kind:             kind,
		BookingID:        b.ID,
		InitiatorPartyID: b.InitiatorPartyID,
		CounterpartyID:   b.CounterpartyID,
		Status:           b.Status,
		TotalAmount:      b.TotalAmount,
		OccurredAt:       time.Now().UTC(),
	}
}

func (e BookingEvent) WithSplit(s Split) BookingEvent {
	e.CounterpartyPayout = &s.CounterpartyPayout
	e.PlatformRetained = &s.PlatformRetained
	return e
}
