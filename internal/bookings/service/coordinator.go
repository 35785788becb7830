package service

import (
	"context"

	bookingserrors "peerpair/internal/bookings/errors"
	"peerpair/internal/bookings/events"
	"peerpair/pkg/config"
	apperrors "peerpair/pkg/errors"
	"peerpair/pkg/model"
)

// Coordinator releases or cancels escrow on behalf of the booking's parties.
type Coordinator interface {
	ConfirmCompletion(ctx context.Context, bookingID, actorID string) (*model.Booking, model.Split, error)
	Cancel(ctx context.Context, bookingID, actorID string) (*model.Booking, error)
}

type coordinator struct {
	ledger  Ledger
	emitter events.Emitter
	cfg     *config.Config
}

func NewCoordinator(ledger Ledger, emitter events.Emitter, cfg *config.Config) Coordinator {
	return &coordinator{
		ledger:  ledger,
		emitter: emitter,
		cfg:     cfg,
	}
}

func (c *coordinator) ConfirmCompletion(ctx context.Context, bookingID, actorID string) (*model.Booking, model.Split, error) {
	booking, err := c.ledger.Get(ctx, bookingID)
	if err != nil {
		return nil, model.Split{}, err
	}

	if actorID == "" || actorID != booking.InitiatorPartyID {
		return nil, model.Split{}, apperrors.Forbidden("Only the paying party may confirm completion")
	}
	if booking.Status != model.StatusFundedEscrow {
		return nil, model.Split{}, apperrors.InvalidState("Only funded bookings can be completed", string(booking.Status))
	}

	completed, err := c.ledger.Transition(ctx, booking.ID, model.Transition{
		From: model.StatusFundedEscrow,
		To:   model.StatusCompleted,
	})
	if err != nil {
		return nil, model.Split{}, c.conflictAsInvalidState(err, "Booking changed before it could be completed")
	}

	split := model.ComputeSplit(completed.TotalAmount)
	c.cfg.Log.Info("Booking completed",
		"id", completed.ID,
		"total_amount", completed.TotalAmount,
		"counterparty_payout", split.CounterpartyPayout,
		"platform_retained", split.PlatformRetained,
	)

	c.emitter.Emit(ctx, model.NewBookingEvent(model.EventBookingCompleted, completed).WithSplit(split))
	return completed, split, nil
}

func (c *coordinator) Cancel(ctx context.Context, bookingID, actorID string) (*model.Booking, error) {
	booking, err := c.ledger.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !booking.IsParty(actorID) {
		return nil, apperrors.Forbidden("Only a party of the booking may cancel it")
	}

	from := booking.Status
	if !cancellable(from) {
		return nil, apperrors.InvalidState("Only pending or funded bookings can be cancelled", string(from))
	}

	cancelled, err := c.ledger.Transition(ctx, booking.ID, model.Transition{
		From: from,
		To:   model.StatusCancelled,
	})
	// A callback may fund the booking between the read and the update. The
	// booking is still cancellable then, so try once more from where it is now.
	if conflict, ok := bookingserrors.AsConflict(err); ok && conflict.Current.Status != from && cancellable(conflict.Current.Status) {
		from = conflict.Current.Status
		cancelled, err = c.ledger.Transition(ctx, booking.ID, model.Transition{
			From: from,
			To:   model.StatusCancelled,
		})
	}
	if err != nil {
		return nil, c.conflictAsInvalidState(err, "Booking changed before it could be cancelled")
	}

	event := model.NewBookingEvent(model.EventBookingCancelled, cancelled)
	if from == model.StatusFundedEscrow {
		event.RefundDue = true
		event.RefundAmount = cancelled.TotalAmount
	}

	c.cfg.Log.Info("Booking cancelled",
		"id", cancelled.ID,
		"by", actorID,
		"from", from,
		"refund_due", event.RefundDue,
	)

	c.emitter.Emit(ctx, event)
	return cancelled, nil
}

func cancellable(status model.BookingStatus) bool {
	return status == model.StatusPending || status == model.StatusFundedEscrow
}

func (c *coordinator) conflictAsInvalidState(err error, message string) error {
	if conflict, ok := bookingserrors.AsConflict(err); ok {
		return apperrors.InvalidState(message, string(conflict.Current.Status))
	}
	return err
}
