package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "peerpair/internal/bookings/errors"
	"peerpair/pkg/config"
	mongotx "peerpair/pkg/db/mongo"
	"peerpair/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type BookingRepository interface {
	// Create inserts a new booking. When the booking carries an initiation
	// key already used by the same initiator, the existing booking is
	// returned with created=false.
	Create(ctx context.Context, booking *model.Booking) (existing *model.Booking, created bool, err error)
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByToken(ctx context.Context, token string) (*model.Booking, error)
	// Transition applies t atomically. It returns *ConflictError when the
	// booking is not in t.From or fails the token guard.
	Transition(ctx context.Context, id string, t model.Transition) (*model.Booking, error)
	List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error)
	Count(ctx context.Context, filter model.BookingFilter) (int64, error)
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout leaves session contexts untouched; wrapping one would detach
// the operation from its transaction.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) (*model.Booking, bool, error) {
	booking.ID = uuid.NewString()
	booking.CreatedAt = now()
	booking.UpdatedAt = booking.CreatedAt

	if booking.InitiationKey == "" {
		if err := r.insert(ctx, booking); err != nil {
			return nil, false, err
		}
		return booking, true, nil
	}

	var existing *model.Booking
	err := r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		found, err := r.findByInitiationKey(sessCtx, booking.InitiatorPartyID, booking.InitiationKey)
		if err == nil {
			existing = found
			return nil
		}
		if !errors.Is(err, bookingserrors.ErrNotFound) {
			return err
		}
		return r.insert(sessCtx, booking)
	})

	// A concurrent request with the same key won the unique index.
	if errors.Is(err, bookingserrors.ErrDuplicateInitiationKey) {
		found, findErr := r.findByInitiationKey(ctx, booking.InitiatorPartyID, booking.InitiationKey)
		if findErr != nil {
			return nil, false, findErr
		}
		return found, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	return booking, true, nil
}

func (r *mongoBookingRepository) insert(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bookingserrors.ErrDuplicateInitiationKey
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoBookingRepository) FindByToken(ctx context.Context, token string) (*model.Booking, error) {
	if token == "" {
		return nil, bookingserrors.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"gateway_tracking_token": token})
}

func (r *mongoBookingRepository) findByInitiationKey(ctx context.Context, initiatorID, key string) (*model.Booking, error) {
	return r.findOne(ctx, bson.M{"initiator_party_id": initiatorID, "initiation_key": key})
}

func (r *mongoBookingRepository) findOne(ctx context.Context, filter bson.M) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	if err := r.collection.FindOne(ctx, filter).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

// Transition is a single conditional FindOneAndUpdate: the status and token
// guards are part of the filter, so concurrent callers cannot both match.
func (r *mongoBookingRepository) Transition(ctx context.Context, id string, t model.Transition) (*model.Booking, error) {
	if !model.CanTransition(t.From, t.To) {
		return nil, fmt.Errorf("%w: %s -> %s", bookingserrors.ErrIllegalTransition, t.From, t.To)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": id, "status": t.From}
	if t.TokenGuard != nil {
		if *t.TokenGuard == "" {
			filter["gateway_tracking_token"] = bson.M{"$exists": false}
		} else {
			filter["gateway_tracking_token"] = *t.TokenGuard
		}
	}

	set := bson.M{"status": t.To, "updated_at": now()}
	update := bson.M{"$set": set}
	if t.SetToken != "" {
		set["gateway_tracking_token"] = t.SetToken
	} else if t.ClearToken {
		update["$unset"] = bson.M{"gateway_tracking_token": ""}
	}

	wctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated model.Booking
	err := r.collection.FindOneAndUpdate(wctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil, bookingserrors.ErrTokenAlreadySet
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to transition booking: %w", err)
	}

	current, findErr := r.FindByID(ctx, id)
	if findErr != nil {
		return nil, findErr
	}
	return nil, &bookingserrors.ConflictError{Current: current}
}

func (r *mongoBookingRepository) List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) Count(ctx context.Context, filter model.BookingFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func buildFilter(f model.BookingFilter) bson.M {
	filter := bson.M{}
	if f.PartyID != "" {
		filter["$or"] = []bson.M{
			{"initiator_party_id": f.PartyID},
			{"counterparty_id": f.PartyID},
		}
	}
	if f.InitiatorPartyID != "" {
		filter["initiator_party_id"] = f.InitiatorPartyID
	}
	if f.CounterpartyID != "" {
		filter["counterparty_id"] = f.CounterpartyID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}
