package common

import (
	"context"
	"os"
	"testing"
	"time"

	"peerpair/internal/directory"
	"peerpair/pkg/client"
	"peerpair/pkg/config"
	"peerpair/pkg/sealer"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/mongo"
)

const CallbackPurpose = "booking-callback"

// IntegrationTestSuite talks to a running bookings service over HTTP and to
// its Mongo database directly for seeding and inspection.
type IntegrationTestSuite struct {
	Config      *config.Config
	ServerURL   string
	ServiceName string
	DB          *mongo.Database
	Sealer      *sealer.Sealer
}

// NewIntegrationTestSuite skips the calling test unless TEST_SERVER_URL
// points at a running service.
func NewIntegrationTestSuite(t *testing.T, serviceName string) *IntegrationTestSuite {
	t.Helper()

	serverURL := os.Getenv("TEST_SERVER_URL")
	if serverURL == "" {
		t.Skip("TEST_SERVER_URL not set")
	}

	cfg := config.Load(serviceName)
	cfg.SetMongo()

	s, err := sealer.New(cfg.CallbackSealKey, CallbackPurpose)
	if err != nil {
		t.Fatalf("callback seal key unusable: %v", err)
	}

	suite := &IntegrationTestSuite{
		Config:      cfg,
		ServerURL:   serverURL,
		ServiceName: serviceName,
		DB:          cfg.Client.Mongo.Database(cfg.MongoDatabaseName),
		Sealer:      s,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.NewHttpClient(serverURL).WaitForHealthy(ctx, 30*time.Second); err != nil {
		t.Fatalf("service not healthy: %v", err)
	}
	return suite
}

// ClientFor returns an API client authenticated as partyID.
func (s *IntegrationTestSuite) ClientFor(t *testing.T, partyID string) *client.BookingClient {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   partyID,
		Issuer:    s.Config.JWTIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Config.JWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token for %s: %v", partyID, err)
	}
	return client.NewBookingClient(s.ServerURL, token)
}

// Anonymous returns a client with no credentials, as the gateway calls in.
func (s *IntegrationTestSuite) Anonymous() *client.BookingClient {
	return client.NewBookingClient(s.ServerURL, "")
}

func (s *IntegrationTestSuite) Profiles() *mongo.Collection {
	return s.DB.Collection(directory.CollectionName)
}

func (s *IntegrationTestSuite) Teardown() {
	s.Config.GracefulShutdown()
}
