package notifier

import (
	"context"
	"errors"
	"fmt"

	"peerpair/internal/directory"
	"peerpair/pkg/kafka"
	"peerpair/pkg/logger"
	"peerpair/pkg/model"
)

const (
	RoleInitiator    = "initiator"
	RoleCounterparty = "counterparty"
)

// Notification is one message for one party about one booking event.
type Notification struct {
	Recipient model.Party
	Role      string
	Subject   string
	Event     model.BookingEvent
}

// Dispatcher delivers a notification. Content rendering and the delivery
// channel belong to the implementation.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

type audience struct {
	subject string
	roles   []string
}

var audiences = map[model.EventKind]audience{
	model.EventBookingCreated:   {"New booking request", []string{RoleInitiator, RoleCounterparty}},
	model.EventPaymentConfirmed: {"Payment confirmed, funds in escrow", []string{RoleInitiator, RoleCounterparty}},
	model.EventPaymentFailed:    {"Payment not completed", []string{RoleInitiator}},
	model.EventBookingCompleted: {"Booking completed", []string{RoleInitiator, RoleCounterparty}},
	model.EventBookingCancelled: {"Booking cancelled", []string{RoleInitiator, RoleCounterparty}},
}

// Recipients returns the roles notified for kind, or nil for kinds the
// notifier does not handle.
func Recipients(kind model.EventKind) []string {
	return audiences[kind].roles
}

type Notifier struct {
	dir        directory.Directory
	dispatcher Dispatcher
	log        *logger.Logger
}

func New(dir directory.Directory, dispatcher Dispatcher, log *logger.Logger) *Notifier {
	return &Notifier{dir: dir, dispatcher: dispatcher, log: log}
}

// Handle is a kafka.MessageHandler. Undecodable payloads are permanent
// failures; directory and dispatch failures are retried.
func (n *Notifier) Handle(ctx context.Context, msg kafka.Message) error {
	var event model.BookingEvent
	if err := msg.DecodeValue(&event); err != nil {
		return kafka.NewPermanentError("undecodable booking event", err)
	}
	if event.BookingID == "" {
		return kafka.NewPermanentError("booking event without booking id", kafka.ErrInvalidMessage)
	}
	if event.Kind == "" {
		event.Kind = model.EventKind(msg.GetEventType())
	}

	target, ok := audiences[event.Kind]
	if !ok {
		n.log.Debug("ignoring booking event kind", "event_kind", event.Kind, "booking_id", event.BookingID)
		return nil
	}

	for _, role := range target.roles {
		partyID := event.InitiatorPartyID
		if role == RoleCounterparty {
			partyID = event.CounterpartyID
		}

		party, err := n.dir.ResolveParty(ctx, partyID)
		if err != nil {
			if errors.Is(err, directory.ErrPartyNotFound) {
				n.log.Warn("notification recipient not found, skipping",
					"booking_id", event.BookingID,
					"event_kind", event.Kind,
					"role", role,
					"party_id", partyID,
				)
				continue
			}
			return kafka.NewTransientError("failed to resolve notification recipient", err)
		}

		notification := Notification{
			Recipient: *party,
			Role:      role,
			Subject:   target.subject,
			Event:     event,
		}
		if err := n.dispatcher.Dispatch(ctx, notification); err != nil {
			return kafka.NewTransientError(fmt.Sprintf("failed to notify %s", role), err)
		}
	}
	return nil
}

// LogDispatcher records each notification in the service log.
type LogDispatcher struct {
	log *logger.Logger
}

func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Dispatch(_ context.Context, n Notification) error {
	d.log.Info("Notification dispatched",
		"booking_id", n.Event.BookingID,
		"event_kind", n.Event.Kind,
		"event_id", n.Event.EventID,
		"recipient_id", n.Recipient.ID,
		"recipient_role", n.Role,
		"has_email", n.Recipient.Email != "",
		"subject", n.Subject,
	)
	return nil
}
