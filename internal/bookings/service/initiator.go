package service

import (
	"context"
	"errors"

	bookingserrors "peerpair/internal/bookings/errors"
	"peerpair/internal/bookings/events"
	"peerpair/internal/bookings/validator"
	"peerpair/internal/payments/gateway"
	"peerpair/pkg/config"
	apperrors "peerpair/pkg/errors"
	"peerpair/pkg/model"
	"peerpair/pkg/sanitizer"
)

const CallbackPath = "/api/v1/payments/callback/"

// Sealer binds a booking id into the callback address so callbacks can be
// cross-checked against the booking found by token.
type Sealer interface {
	Seal(value string) (string, error)
	Open(seal string) (string, error)
}

type InitiateRequest struct {
	model.BookingRequest
	InitiatorPartyID string
	IdempotencyKey   string
}

type PaymentInitiator interface {
	Initiate(ctx context.Context, req InitiateRequest) (*model.Booking, error)
	// RetryCharge submits a new charge for a pending booking with no
	// outstanding charge request.
	RetryCharge(ctx context.Context, bookingID, actorID string, req *model.PaymentRequest) (*model.Booking, error)
}

type paymentInitiator struct {
	ledger    Ledger
	gateway   gateway.ChargeGateway
	sealer    Sealer
	emitter   events.Emitter
	validator *validator.BookingValidator
	cfg       *config.Config
}

func NewPaymentInitiator(
	ledger Ledger,
	gw gateway.ChargeGateway,
	sealer Sealer,
	emitter events.Emitter,
	validator *validator.BookingValidator,
	cfg *config.Config,
) PaymentInitiator {
	return &paymentInitiator{
		ledger:    ledger,
		gateway:   gw,
		sealer:    sealer,
		emitter:   emitter,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *paymentInitiator) Initiate(ctx context.Context, req InitiateRequest) (*model.Booking, error) {
	if req.InitiatorPartyID == "" {
		return nil, apperrors.Unauthorized("Missing actor identity")
	}

	s.sanitize(&req)
	if err := s.validate(&req.BookingRequest); err != nil {
		return nil, err
	}

	draft := model.BookingDraft{
		InitiatorPartyID: req.InitiatorPartyID,
		CounterpartyID:   req.CounterpartyID,
		EngagementKind:   req.EngagementKind,
		Duration:         req.Duration,
		Notes:            req.Notes,
		InitiationKey:    req.IdempotencyKey,
	}
	booking, created, err := s.ledger.Create(ctx, draft)
	if err != nil {
		return nil, err
	}

	if !created && !draft.SameTerms(booking) {
		s.cfg.Log.Warn("Initiation key reused with different terms", "id", booking.ID)
		return nil, apperrors.Conflict("Idempotency key already used for a different booking request").
			WithDetail("booking_id", booking.ID)
	}

	if created {
		s.emitter.Emit(ctx, model.NewBookingEvent(model.EventBookingCreated, booking))
	} else {
		s.cfg.Log.Info("Initiation replayed with existing key",
			"id", booking.ID,
			"status", booking.Status,
			"has_token", booking.HasToken(),
		)
		if booking.HasToken() {
			return booking, nil
		}
		if booking.Status != model.StatusPending {
			return nil, apperrors.Conflict("Idempotency key already used for a booking that is no longer pending").
				WithDetail("booking_id", booking.ID).
				WithDetail("status", booking.Status)
		}
	}

	return s.charge(ctx, booking, sanitizer.NormalizeMSISDN(req.PhoneNumber))
}

func (s *paymentInitiator) RetryCharge(ctx context.Context, bookingID, actorID string, req *model.PaymentRequest) (*model.Booking, error) {
	req.PhoneNumber = sanitizer.TrimAndNormalize(req.PhoneNumber)
	if err := s.validator.ValidatePayment(req); err != nil {
		s.cfg.Log.Warn("Payment request validation failed", "error", err)
		return nil, validationError("Payment request validation failed", err)
	}

	booking, err := s.ledger.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.InitiatorPartyID != actorID {
		return nil, apperrors.Forbidden("Only the paying party may pay for a booking")
	}
	if booking.Status != model.StatusPending {
		return nil, apperrors.InvalidState("Only pending bookings can be charged", string(booking.Status))
	}
	if booking.HasToken() {
		return nil, apperrors.Conflict("Booking already has an outstanding charge request").WithDetail("booking_id", booking.ID)
	}

	return s.charge(ctx, booking, sanitizer.NormalizeMSISDN(req.PhoneNumber))
}

// charge submits the charge and records its tracking token. A failed
// submission leaves the booking pending and tokenless so it can be retried.
func (s *paymentInitiator) charge(ctx context.Context, booking *model.Booking, msisdn string) (*model.Booking, error) {
	seal, err := s.sealer.Seal(booking.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to build callback address", err)
	}

	resp, err := s.gateway.SubmitCharge(ctx, gateway.ChargeRequest{
		MSISDN:            msisdn,
		Amount:            booking.TotalAmount,
		MerchantReference: booking.ID,
		CallbackURL:       s.cfg.CallbackBaseURL + CallbackPath + seal,
	})
	if err != nil {
		var authErr *gateway.AuthError
		if errors.As(err, &authErr) {
			s.cfg.Log.Warn("Gateway authentication failed", "id", booking.ID, "error", err)
			return nil, apperrors.GatewayAuth(err).WithDetail("booking_id", booking.ID)
		}
		s.cfg.Log.Warn("Charge submission failed", "id", booking.ID, "error", err)
		return nil, apperrors.GatewaySubmit(err).WithDetail("booking_id", booking.ID)
	}

	// The charge is already outstanding, so the token must be stored even if
	// the caller has gone away.
	updated, err := s.ledger.Transition(context.WithoutCancel(ctx), booking.ID, model.Transition{
		From:       model.StatusPending,
		To:         model.StatusPending,
		TokenGuard: model.NoToken(),
		SetToken:   resp.TrackingToken,
	})
	if err != nil {
		s.cfg.Log.Error("Orphaned charge request",
			"id", booking.ID,
			"token", resp.TrackingToken,
			"merchant_request_id", resp.MerchantRequestID,
			"error", err,
		)
		if conflict, ok := bookingserrors.AsConflict(err); ok {
			return nil, apperrors.Conflict("Booking already has an outstanding charge request").
				WithDetail("booking_id", booking.ID).
				WithDetail("status", conflict.Current.Status)
		}
		return nil, err
	}

	s.cfg.Log.Info("Charge submitted",
		"id", updated.ID,
		"token", resp.TrackingToken,
		"amount", updated.TotalAmount,
	)
	return updated, nil
}

func (s *paymentInitiator) sanitize(req *InitiateRequest) {
	req.CounterpartyID = sanitizer.TrimAndNormalize(req.CounterpartyID)
	req.PhoneNumber = sanitizer.TrimAndNormalize(req.PhoneNumber)
	req.Notes = sanitizer.NormalizeNotes(req.Notes)
}

func (s *paymentInitiator) validate(req *model.BookingRequest) error {
	if err := s.validator.Validate(req); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return validationError("Booking validation failed", err)
	}
	return nil
}

func validationError(message string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Fields())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
