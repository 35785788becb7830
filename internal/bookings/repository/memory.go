package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	bookingserrors "peerpair/internal/bookings/errors"
	"peerpair/pkg/model"

	"github.com/google/uuid"
)

// MemoryBookingRepository keeps bookings in process. It honours the same
// guarded-transition contract as the Mongo repository and backs tests and
// local runs without a database.
type MemoryBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking
	order    []string
}

func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{bookings: make(map[string]*model.Booking)}
}

func clone(b *model.Booking) *model.Booking {
	c := *b
	if b.GatewayTrackingToken != nil {
		token := *b.GatewayTrackingToken
		c.GatewayTrackingToken = &token
	}
	return &c
}

func (r *MemoryBookingRepository) Create(_ context.Context, booking *model.Booking) (*model.Booking, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if booking.InitiationKey != "" {
		for _, b := range r.bookings {
			if b.InitiatorPartyID == booking.InitiatorPartyID && b.InitiationKey == booking.InitiationKey {
				return clone(b), false, nil
			}
		}
	}

	booking.ID = uuid.NewString()
	booking.CreatedAt = now()
	booking.UpdatedAt = booking.CreatedAt
	r.bookings[booking.ID] = clone(booking)
	r.order = append(r.order, booking.ID)
	return clone(booking), true, nil
}

func (r *MemoryBookingRepository) FindByID(_ context.Context, id string) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return clone(b), nil
}

func (r *MemoryBookingRepository) FindByToken(_ context.Context, token string) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token == "" {
		return nil, bookingserrors.ErrNotFound
	}
	for _, b := range r.bookings {
		if b.Token() == token {
			return clone(b), nil
		}
	}
	return nil, bookingserrors.ErrNotFound
}

func (r *MemoryBookingRepository) Transition(_ context.Context, id string, t model.Transition) (*model.Booking, error) {
	if !model.CanTransition(t.From, t.To) {
		return nil, fmt.Errorf("%w: %s -> %s", bookingserrors.ErrIllegalTransition, t.From, t.To)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}

	if b.Status != t.From || (t.TokenGuard != nil && b.Token() != *t.TokenGuard) {
		return nil, &bookingserrors.ConflictError{Current: clone(b)}
	}

	if t.SetToken != "" {
		for otherID, other := range r.bookings {
			if otherID != id && other.Token() == t.SetToken {
				return nil, bookingserrors.ErrTokenAlreadySet
			}
		}
		token := t.SetToken
		b.GatewayTrackingToken = &token
	} else if t.ClearToken {
		b.GatewayTrackingToken = nil
	}
	b.Status = t.To
	b.UpdatedAt = now()
	return clone(b), nil
}

func (r *MemoryBookingRepository) matching(filter model.BookingFilter) []*model.Booking {
	var out []*model.Booking
	for _, id := range r.order {
		if b := r.bookings[id]; filter.Matches(b) {
			out = append(out, b)
		}
	}
	// newest first, creation order breaks ties
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *MemoryBookingRepository) List(_ context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.matching(filter)
	result := []*model.Booking{}
	for i := offset; i < int64(len(all)) && len(result) < limit; i++ {
		result = append(result, clone(all[i]))
	}
	return result, nil
}

func (r *MemoryBookingRepository) Count(_ context.Context, filter model.BookingFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.matching(filter))), nil
}
