package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"peerpair/pkg/config"
	"peerpair/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const CollectionName = "Profiles"

var (
	ErrPartyNotFound = errors.New("party not found or inactive")
	ErrRateNotFound  = errors.New("no rate for engagement kind")
)

// Directory resolves party identities and agreed rates. It is read-only;
// profiles are owned by another service.
type Directory interface {
	ResolveParty(ctx context.Context, id string) (*model.Party, error)
	ResolveRate(ctx context.Context, counterpartyID string, kind model.EngagementKind) (int64, error)
}

type mongoDirectory struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewMongoDirectory(cfg *config.Config) Directory {
	return &mongoDirectory{
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName),
		timeout:    cfg.ReadTimeout,
	}
}

func (d *mongoDirectory) ResolveParty(ctx context.Context, id string) (*model.Party, error) {
	if id == "" {
		return nil, ErrPartyNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var party model.Party
	err := d.collection.FindOne(ctx, bson.M{"_id": id, "active": true}).Decode(&party)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrPartyNotFound, id)
		}
		return nil, fmt.Errorf("failed to resolve party: %w", err)
	}
	return &party, nil
}

func (d *mongoDirectory) ResolveRate(ctx context.Context, counterpartyID string, kind model.EngagementKind) (int64, error) {
	party, err := d.ResolveParty(ctx, counterpartyID)
	if err != nil {
		return 0, err
	}
	return rateOf(party, kind)
}

func rateOf(party *model.Party, kind model.EngagementKind) (int64, error) {
	rate, ok := party.Rates[kind]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("%w: %s has no %s rate", ErrRateNotFound, party.ID, kind)
	}
	return rate, nil
}

// Static is an in-process Directory. Rates can be changed after parties are
// added, which the ledger must not observe for existing bookings.
type Static struct {
	mu      sync.RWMutex
	parties map[string]model.Party
}

func NewStatic(parties ...model.Party) *Static {
	s := &Static{parties: make(map[string]model.Party)}
	for _, p := range parties {
		s.Put(p)
	}
	return s
}

func (s *Static) Put(p model.Party) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rates := make(map[model.EngagementKind]int64, len(p.Rates))
	for k, v := range p.Rates {
		rates[k] = v
	}
	p.Rates = rates
	s.parties[p.ID] = p
}

func (s *Static) SetRate(partyID string, kind model.EngagementKind, rate int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.parties[partyID]; ok {
		p.Rates[kind] = rate
	}
}

func (s *Static) ResolveParty(_ context.Context, id string) (*model.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.parties[id]
	if !ok || !p.Active {
		return nil, fmt.Errorf("%w: %s", ErrPartyNotFound, id)
	}
	return &p, nil
}

func (s *Static) ResolveRate(ctx context.Context, counterpartyID string, kind model.EngagementKind) (int64, error) {
	party, err := s.ResolveParty(ctx, counterpartyID)
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rateOf(party, kind)
}
