package model

import (
	"time"
)

type BookingStatus string

const (
	StatusPending      BookingStatus = "pending"
	StatusFundedEscrow BookingStatus = "funded_escrow"
	StatusCompleted    BookingStatus = "completed"
	StatusCancelled    BookingStatus = "cancelled"
)

func (s BookingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusFundedEscrow, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// transitions lists every legal edge of the booking state machine.
// pending -> pending is the token-set edge used by the payment initiator.
var transitions = map[BookingStatus][]BookingStatus{
	StatusPending:      {StatusPending, StatusFundedEscrow, StatusCancelled},
	StatusFundedEscrow: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to BookingStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type EngagementKind string

const (
	KindShortUnit EngagementKind = "short-unit"
	KindDayUnit   EngagementKind = "day-unit"
	KindWeekUnit  EngagementKind = "week-unit"
)

var maxDurations = map[EngagementKind]int{
	KindShortUnit: 24,
	KindDayUnit:   7,
	KindWeekUnit:  4,
}

func (k EngagementKind) Valid() bool {
	_, ok := maxDurations[k]
	return ok
}

// MaxDuration is the booking policy cap for the kind, 0 for unknown kinds.
func (k EngagementKind) MaxDuration() int {
	return maxDurations[k]
}

type Booking struct {
	ID                   string         `json:"id" bson:"_id"`
	InitiatorPartyID     string         `json:"initiator_party_id" bson:"initiator_party_id"`
	CounterpartyID       string         `json:"counterparty_id" bson:"counterparty_id"`
	EngagementKind       EngagementKind `json:"engagement_kind" bson:"engagement_kind"`
	Duration             int            `json:"duration" bson:"duration"`
	UnitRate             int64          `json:"unit_rate" bson:"unit_rate"`
	TotalAmount          int64          `json:"total_amount" bson:"total_amount"`
	Status               BookingStatus  `json:"status" bson:"status"`
	GatewayTrackingToken *string        `json:"gateway_tracking_token" bson:"gateway_tracking_token,omitempty"`
	InitiationKey        string         `json:"-" bson:"initiation_key,omitempty"`
	Notes                string         `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt            time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at" bson:"updated_at"`
}

func (b *Booking) HasToken() bool {
	return b.GatewayTrackingToken != nil && *b.GatewayTrackingToken != ""
}

func (b *Booking) Token() string {
	if b.GatewayTrackingToken == nil {
		return ""
	}
	return *b.GatewayTrackingToken
}

func (b *Booking) IsParty(partyID string) bool {
	return partyID != "" && (partyID == b.InitiatorPartyID || partyID == b.CounterpartyID)
}

// BookingDraft is what the ledger needs to create a booking. Rate and total
// are resolved by the ledger, never supplied by the caller.
type BookingDraft struct {
	InitiatorPartyID string
	CounterpartyID   string
	EngagementKind   EngagementKind
	Duration         int
	Notes            string
	InitiationKey    string
}

// SameTerms reports whether b books the same counterparty, kind and duration
// as the draft.
func (d BookingDraft) SameTerms(b *Booking) bool {
	return d.CounterpartyID == b.CounterpartyID &&
		d.EngagementKind == b.EngagementKind &&
		d.Duration == b.Duration
}

// Transition describes a guarded status change. TokenGuard nil means no token
// condition; a pointer to "" requires the booking to have no token yet.
// SetToken stores a tracking token, ClearToken drops the current one.
type Transition struct {
	From       BookingStatus
	To         BookingStatus
	TokenGuard *string
	SetToken   string
	ClearToken bool
}

func NoToken() *string {
	empty := ""
	return &empty
}

func TokenIs(token string) *string {
	return &token
}

// BookingFilter narrows a listing. PartyID matches either side of the
// booking; the role-specific ids match one side only.
type BookingFilter struct {
	PartyID          string
	InitiatorPartyID string
	CounterpartyID   string
	Status           BookingStatus
}

func (f BookingFilter) Matches(b *Booking) bool {
	if f.PartyID != "" && !b.IsParty(f.PartyID) {
		return false
	}
	if f.InitiatorPartyID != "" && b.InitiatorPartyID != f.InitiatorPartyID {
		return false
	}
	if f.CounterpartyID != "" && b.CounterpartyID != f.CounterpartyID {
		return false
	}
	return f.Status == "" || b.Status == f.Status
}

// BookingRequest is what a paying party submits to book a counterparty.
// The initiator comes from the authenticated actor, never from the body.
type BookingRequest struct {
	CounterpartyID string         `json:"counterparty_id" validate:"required,max=64"`
	EngagementKind EngagementKind `json:"engagement_kind" validate:"required,engagement_kind"`
	Duration       int            `json:"duration" validate:"required,min=1"`
	Notes          string         `json:"notes,omitempty" validate:"max=1000"`
	PhoneNumber    string         `json:"phone_number" validate:"required,msisdn"`
}

// PaymentRequest retries the charge for an existing pending booking.
type PaymentRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,msisdn"`
}
