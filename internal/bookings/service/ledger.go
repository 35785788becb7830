package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	bookingserrors "peerpair/internal/bookings/errors"
	"peerpair/internal/bookings/repository"
	"peerpair/internal/directory"
	"peerpair/pkg/config"
	apperrors "peerpair/pkg/errors"
	"peerpair/pkg/model"
)

const (
	RoleInitiator    = "initiator"
	RoleCounterparty = "counterparty"
)

// Ledger is the single source of truth for booking status. Transition is
// its only mutation and is atomic with respect to the guard it carries.
type Ledger interface {
	// Create prices the draft from the directory and stores it as pending.
	// created is false when the draft's initiation key matched an existing
	// booking, which is returned unchanged.
	Create(ctx context.Context, draft model.BookingDraft) (booking *model.Booking, created bool, err error)
	Get(ctx context.Context, id string) (*model.Booking, error)
	GetByToken(ctx context.Context, token string) (*model.Booking, error)
	// Transition returns *bookingserrors.ConflictError, unwrapped, when the
	// guard does not hold.
	Transition(ctx context.Context, id string, t model.Transition) (*model.Booking, error)
	GetForActor(ctx context.Context, id, actorID string) (*model.Booking, error)
	ListForActor(ctx context.Context, actorID, role string, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error)
}

type ledger struct {
	repo      repository.BookingRepository
	directory directory.Directory
	cfg       *config.Config
}

func NewLedger(repo repository.BookingRepository, dir directory.Directory, cfg *config.Config) Ledger {
	return &ledger{
		repo:      repo,
		directory: dir,
		cfg:       cfg,
	}
}

func (l *ledger) Create(ctx context.Context, draft model.BookingDraft) (*model.Booking, bool, error) {
	if draft.InitiatorPartyID == draft.CounterpartyID {
		return nil, false, apperrors.InvalidParty("A party cannot book themselves")
	}

	if err := l.resolveParty(ctx, draft.InitiatorPartyID, model.RoleClient, "initiating party"); err != nil {
		return nil, false, err
	}
	if err := l.resolveParty(ctx, draft.CounterpartyID, model.RoleCompanion, "counterparty"); err != nil {
		return nil, false, err
	}

	rate, err := l.directory.ResolveRate(ctx, draft.CounterpartyID, draft.EngagementKind)
	if err != nil {
		if errors.Is(err, directory.ErrRateNotFound) {
			return nil, false, apperrors.InvalidRate(fmt.Sprintf("Counterparty has no %s rate", draft.EngagementKind))
		}
		if errors.Is(err, directory.ErrPartyNotFound) {
			return nil, false, apperrors.InvalidParty("Counterparty not found or inactive")
		}
		l.cfg.Log.Error("Failed to resolve rate", "counterparty_id", draft.CounterpartyID, "error", err)
		return nil, false, apperrors.Unavailable("Party directory")
	}

	// The amount is fixed here; later rate changes never reach this booking.
	booking := &model.Booking{
		InitiatorPartyID: draft.InitiatorPartyID,
		CounterpartyID:   draft.CounterpartyID,
		EngagementKind:   draft.EngagementKind,
		Duration:         draft.Duration,
		UnitRate:         rate,
		TotalAmount:      rate * int64(draft.Duration),
		Status:           model.StatusPending,
		InitiationKey:    draft.InitiationKey,
		Notes:            draft.Notes,
	}

	stored, created, err := l.repo.Create(ctx, booking)
	if err != nil {
		l.cfg.Log.Error("Failed to create booking", "initiator_party_id", draft.InitiatorPartyID, "error", err)
		return nil, false, apperrors.Internal("Failed to create booking", err)
	}

	if created {
		l.cfg.Log.Info("Booking created",
			"id", stored.ID,
			"initiator_party_id", stored.InitiatorPartyID,
			"counterparty_id", stored.CounterpartyID,
			"engagement_kind", stored.EngagementKind,
			"duration", stored.Duration,
			"total_amount", stored.TotalAmount,
		)
	}
	return stored, created, nil
}

func (l *ledger) resolveParty(ctx context.Context, id string, role model.PartyRole, label string) error {
	party, err := l.directory.ResolveParty(ctx, id)
	if err != nil {
		if errors.Is(err, directory.ErrPartyNotFound) {
			return apperrors.InvalidParty(fmt.Sprintf("The %s was not found or is inactive", label)).WithDetail("party_id", id)
		}
		l.cfg.Log.Error("Failed to resolve party", "party_id", id, "error", err)
		return apperrors.Unavailable("Party directory")
	}
	if party.Role != role {
		return apperrors.InvalidParty(fmt.Sprintf("The %s must have role %s", label, role)).WithDetail("party_id", id)
	}
	return nil
}

func (l *ledger) Get(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := l.repo.FindByID(ctx, id)
	if err != nil {
		return nil, l.mapError(err, id, "Failed to retrieve booking")
	}
	return booking, nil
}

func (l *ledger) GetByToken(ctx context.Context, token string) (*model.Booking, error) {
	booking, err := l.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.UnknownCallback(token)
		}
		return nil, apperrors.Internal("Failed to look up booking by tracking token", err)
	}
	return booking, nil
}

func (l *ledger) Transition(ctx context.Context, id string, t model.Transition) (*model.Booking, error) {
	booking, err := l.repo.Transition(ctx, id, t)
	if err != nil {
		if conflict, ok := bookingserrors.AsConflict(err); ok {
			return nil, conflict
		}
		if errors.Is(err, bookingserrors.ErrTokenAlreadySet) {
			return nil, apperrors.Conflict("Tracking token is already attached to another booking").WithDetail("booking_id", id)
		}
		return nil, l.mapError(err, id, "Failed to update booking")
	}

	l.cfg.Log.Info("Booking transitioned",
		"id", id,
		"from", t.From,
		"to", t.To,
		"token", booking.Token(),
	)
	return booking, nil
}

func (l *ledger) GetForActor(ctx context.Context, id, actorID string) (*model.Booking, error) {
	booking, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.IsParty(actorID) {
		return nil, apperrors.Forbidden("Only a party of the booking may view it")
	}
	return booking, nil
}

func (l *ledger) ListForActor(ctx context.Context, actorID, role string, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error) {
	filter := model.BookingFilter{Status: status}
	switch role {
	case "":
		filter.PartyID = actorID
	case RoleInitiator:
		filter.InitiatorPartyID = actorID
	case RoleCounterparty:
		filter.CounterpartyID = actorID
	default:
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("role must be %s or %s", RoleInitiator, RoleCounterparty))
	}
	if status != "" && !status.Valid() {
		return nil, 0, apperrors.InvalidInput("invalid status filter: " + string(status))
	}

	var (
		count             int64
		bookings          []*model.Booking
		errCount, errFind error
		wg                sync.WaitGroup
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = l.repo.Count(ctx, filter)
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = l.repo.List(ctx, filter, limit, offset)
	}()

	wg.Wait()

	if errCount != nil {
		return nil, 0, apperrors.Internal("Failed to count bookings", errCount)
	}
	if errFind != nil {
		return nil, 0, apperrors.Internal("Failed to retrieve bookings", errFind)
	}
	return bookings, count, nil
}

func (l *ledger) mapError(err error, id, message string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	default:
		return apperrors.Internal(message, err)
	}
}
