package gateway

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const sharedCredentialKey = "peerpair:gateway:credential:174379"

func newSharedCredentials(t *testing.T, fake *fakeGateway) (*OAuthCredentials, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	creds := NewOAuthCredentials(gatewayConfig(srv.URL), rdb, testLogger())
	now := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	creds.now = func() time.Time { return now }
	return creds, mr, rdb
}

func TestOAuthCredentials_SharesFetchedToken(t *testing.T) {
	fake := &fakeGateway{}
	creds, mr, rdb := newSharedCredentials(t, fake)

	token, err := creds.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got, _ := mr.Get(sharedCredentialKey); got != token {
		t.Errorf("shared credential = %q, want %q", got, token)
	}
	// 3599s lifetime minus one minute of skew
	if ttl := mr.TTL(sharedCredentialKey); ttl != 3539*time.Second {
		t.Errorf("shared credential TTL = %s, want 3539s", ttl)
	}

	replica := NewOAuthCredentials(gatewayConfig("http://unused.invalid"), rdb, testLogger())
	got, err := replica.Token(context.Background())
	if err != nil {
		t.Fatalf("replica Token() error = %v", err)
	}
	if got != token {
		t.Errorf("replica token = %q, want the shared %q", got, token)
	}
	if calls := fake.tokenCalls.Load(); calls != 1 {
		t.Errorf("expected one gateway fetch across replicas, got %d", calls)
	}
}

func TestOAuthCredentials_UsesSharedToken(t *testing.T) {
	fake := &fakeGateway{}
	creds, mr, _ := newSharedCredentials(t, fake)

	if err := mr.Set(sharedCredentialKey, "shared-tok"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	mr.SetTTL(sharedCredentialKey, 10*time.Minute)

	got, err := creds.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got != "shared-tok" {
		t.Errorf("Token() = %q, want shared-tok", got)
	}
	if calls := fake.tokenCalls.Load(); calls != 0 {
		t.Errorf("shared token should avoid a fetch, got %d", calls)
	}
}

func TestOAuthCredentials_IgnoresSharedTokenWithoutExpiry(t *testing.T) {
	fake := &fakeGateway{}
	creds, mr, _ := newSharedCredentials(t, fake)

	if err := mr.Set(sharedCredentialKey, "stale-tok"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	got, err := creds.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got != "tok-1" {
		t.Errorf("Token() = %q, want a fresh tok-1", got)
	}
	if stored, _ := mr.Get(sharedCredentialKey); stored != "tok-1" {
		t.Errorf("shared credential = %q, want it replaced", stored)
	}
}

func TestOAuthCredentials_InvalidateDropsSharedToken(t *testing.T) {
	fake := &fakeGateway{}
	creds, mr, _ := newSharedCredentials(t, fake)

	token, err := creds.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	creds.Invalidate(context.Background(), "some-other-token")
	if !mr.Exists(sharedCredentialKey) {
		t.Fatal("invalidating a different token must keep the shared one")
	}

	creds.Invalidate(context.Background(), token)
	if mr.Exists(sharedCredentialKey) {
		t.Error("invalidated token should be removed from Redis")
	}
}

func TestOAuthCredentials_FetchesWhenRedisDown(t *testing.T) {
	fake := &fakeGateway{}
	creds, mr, _ := newSharedCredentials(t, fake)
	mr.Close()

	got, err := creds.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got != "tok-1" {
		t.Errorf("Token() = %q, want tok-1", got)
	}
}
