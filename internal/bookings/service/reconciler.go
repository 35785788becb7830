package service

import (
	"context"

	bookingserrors "peerpair/internal/bookings/errors"
	"peerpair/internal/bookings/events"
	"peerpair/internal/payments/gateway"
	"peerpair/pkg/config"
	apperrors "peerpair/pkg/errors"
	"peerpair/pkg/model"
)

type ReconcileOutcome string

const (
	OutcomeFunded        ReconcileOutcome = "funded"
	OutcomeDuplicate     ReconcileOutcome = "duplicate"
	OutcomePaymentFailed ReconcileOutcome = "payment_failed"
	OutcomeAnomaly       ReconcileOutcome = "anomaly"
	OutcomeUnknown       ReconcileOutcome = "unknown"
)

const (
	anomalyInvalidPayload   = "invalid_payload"
	anomalyUnknownCallback  = "unknown_callback"
	anomalySealMismatch     = "seal_mismatch"
	anomalyLateSuccess      = "late_success_on_terminal"
	anomalyLateFailure      = "late_failure_on_non_pending"
	anomalyAmountMismatch   = "amount_mismatch"
	anomalyLedgerUnreadable = "ledger_unavailable"
)

// CallbackReconciler applies gateway result notifications to the ledger.
// It never fails: every outcome, including anomalies, is acknowledged to the
// gateway by the caller.
type CallbackReconciler interface {
	Reconcile(ctx context.Context, seal string, raw []byte) ReconcileOutcome
}

type callbackReconciler struct {
	ledger  Ledger
	sealer  Sealer
	emitter events.Emitter
	cfg     *config.Config
}

func NewCallbackReconciler(ledger Ledger, sealer Sealer, emitter events.Emitter, cfg *config.Config) CallbackReconciler {
	return &callbackReconciler{
		ledger:  ledger,
		sealer:  sealer,
		emitter: emitter,
		cfg:     cfg,
	}
}

func (r *callbackReconciler) Reconcile(ctx context.Context, seal string, raw []byte) ReconcileOutcome {
	cb, err := gateway.ParseCallback(raw)
	if err != nil {
		r.cfg.Log.Warn("Rejected gateway callback", "anomaly", anomalyInvalidPayload, "error", err)
		return OutcomeAnomaly
	}

	token := cb.CheckoutRequestID
	booking, err := r.ledger.GetByToken(ctx, token)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeUnknownCallback) {
			r.cfg.Log.Warn("Callback for unknown tracking token", "anomaly", anomalyUnknownCallback, "token", token, "result_code", cb.ResultCode)
			return OutcomeUnknown
		}
		r.cfg.Log.Error("Failed to look up callback booking", "anomaly", anomalyLedgerUnreadable, "token", token, "error", err)
		return OutcomeAnomaly
	}

	if id, err := r.sealer.Open(seal); err != nil || id != booking.ID {
		r.cfg.Log.Warn("Callback address does not match booking",
			"anomaly", anomalySealMismatch,
			"token", token,
			"id", booking.ID,
		)
		return OutcomeAnomaly
	}

	if cb.Succeeded() {
		return r.applySuccess(ctx, booking, cb)
	}
	return r.applyFailure(ctx, booking, cb)
}

func (r *callbackReconciler) applySuccess(ctx context.Context, booking *model.Booking, cb *gateway.Callback) ReconcileOutcome {
	token := cb.CheckoutRequestID

	if amount, ok := cb.Amount(); ok && amount != booking.TotalAmount {
		r.cfg.Log.Warn("Callback amount differs from booking total",
			"anomaly", anomalyAmountMismatch,
			"id", booking.ID,
			"callback_amount", amount,
			"total_amount", booking.TotalAmount,
		)
	}

	funded, err := r.ledger.Transition(ctx, booking.ID, model.Transition{
		From:       model.StatusPending,
		To:         model.StatusFundedEscrow,
		TokenGuard: model.TokenIs(token),
	})
	if err != nil {
		conflict, ok := bookingserrors.AsConflict(err)
		if !ok {
			r.cfg.Log.Error("Failed to fund booking", "id", booking.ID, "token", token, "error", err)
			return OutcomeAnomaly
		}

		switch conflict.Current.Status {
		case model.StatusFundedEscrow:
			r.cfg.Log.Info("Duplicate success callback", "id", booking.ID, "token", token)
			return OutcomeDuplicate
		case model.StatusCancelled, model.StatusCompleted:
			r.cfg.Log.Warn("Success callback for booking that has moved on",
				"anomaly", anomalyLateSuccess,
				"id", booking.ID,
				"token", token,
				"status", conflict.Current.Status,
				"receipt", cb.ReceiptNumber(),
			)
		default:
			r.cfg.Log.Warn("Success callback lost the token guard",
				"anomaly", anomalyLateSuccess,
				"id", booking.ID,
				"token", token,
				"current_token", conflict.Current.Token(),
			)
		}
		return OutcomeAnomaly
	}

	r.cfg.Log.Info("Booking funded", "id", funded.ID, "token", token, "receipt", cb.ReceiptNumber())

	event := model.NewBookingEvent(model.EventPaymentConfirmed, funded)
	event.ReceiptNumber = cb.ReceiptNumber()
	r.emitter.Emit(ctx, event)
	return OutcomeFunded
}

// applyFailure drops the failed charge's token so the booking can be charged
// again. The status stays pending.
func (r *callbackReconciler) applyFailure(ctx context.Context, booking *model.Booking, cb *gateway.Callback) ReconcileOutcome {
	token := cb.CheckoutRequestID

	released, err := r.ledger.Transition(ctx, booking.ID, model.Transition{
		From:       model.StatusPending,
		To:         model.StatusPending,
		TokenGuard: model.TokenIs(token),
		ClearToken: true,
	})
	if err != nil {
		if conflict, ok := bookingserrors.AsConflict(err); ok {
			r.cfg.Log.Warn("Failure callback for booking that is not awaiting payment",
				"anomaly", anomalyLateFailure,
				"id", booking.ID,
				"token", token,
				"status", conflict.Current.Status,
				"result_code", cb.ResultCode,
			)
			return OutcomeAnomaly
		}
		r.cfg.Log.Error("Failed to release failed charge", "id", booking.ID, "token", token, "error", err)
		return OutcomeAnomaly
	}

	r.cfg.Log.Info("Payment failed",
		"id", released.ID,
		"token", token,
		"result_code", cb.ResultCode,
		"result_description", cb.ResultDesc,
	)

	code := cb.ResultCode
	event := model.NewBookingEvent(model.EventPaymentFailed, released)
	event.ResultCode = &code
	event.ResultDescription = cb.ResultDesc
	r.emitter.Emit(ctx, event)
	return OutcomePaymentFailed
}
