package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"peerpair/pkg/client"
	"peerpair/pkg/config"
	"peerpair/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	tokenPath        = "/oauth/v1/generate?grant_type=client_credentials"
	credentialKeyFmt = "peerpair:gateway:credential:%s"
)

// CredentialProvider hands out a bearer token for gateway calls.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
	// Invalidate drops a token the gateway has rejected.
	Invalidate(ctx context.Context, token string)
}

type credential struct {
	token     string
	expiresAt time.Time
}

// OAuthCredentials fetches client-credentials tokens lazily and caches them
// until shortly before expiry. Concurrent callers wait on a single refresh.
// When rdb is non-nil the token is also shared with other replicas.
type OAuthCredentials struct {
	http *client.HttpClient
	auth string
	skew time.Duration
	rdb  *redis.Client
	key  string
	log  *logger.Logger
	now  func() time.Time

	mu     sync.Mutex
	cached credential
}

func NewOAuthCredentials(cfg config.GatewayConfig, rdb *redis.Client, log *logger.Logger) *OAuthCredentials {
	httpClient := client.NewHttpClient(cfg.BaseURL)
	httpClient.HTTPClient.Timeout = cfg.Timeout

	return &OAuthCredentials{
		http: httpClient,
		auth: "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.ConsumerKey+":"+cfg.ConsumerSecret)),
		skew: cfg.CredentialSkew,
		rdb:  rdb,
		key:  fmt.Sprintf(credentialKeyFmt, cfg.ShortCode),
		log:  log,
		now:  time.Now,
	}
}

func (c *OAuthCredentials) valid(cred credential) bool {
	return cred.token != "" && c.now().Before(cred.expiresAt)
}

func (c *OAuthCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid(c.cached) {
		return c.cached.token, nil
	}

	if cred, ok := c.fromRedis(ctx); ok {
		c.cached = cred
		return cred.token, nil
	}

	cred, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	c.cached = cred
	c.toRedis(ctx, cred)
	return cred.token, nil
}

func (c *OAuthCredentials) Invalidate(ctx context.Context, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached.token != token {
		return
	}
	c.cached = credential{}
	if c.rdb != nil {
		if err := c.rdb.Del(ctx, c.key).Err(); err != nil {
			c.log.Warn("Failed to drop shared gateway credential", "error", err)
		}
	}
}

type tokenResponse struct {
	AccessToken string          `json:"access_token"`
	ExpiresIn   json.RawMessage `json:"expires_in"`
}

func (c *OAuthCredentials) fetch(ctx context.Context) (credential, error) {
	resp, err := c.http.GETWithHeaders(ctx, tokenPath, map[string]string{"Authorization": c.auth})
	if err != nil {
		return credential{}, &AuthError{Message: "token request failed", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return credential{}, &AuthError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(resp.Body))}
	}

	var body tokenResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return credential{}, &AuthError{StatusCode: resp.StatusCode, Message: "malformed token response", Err: err}
	}
	if body.AccessToken == "" {
		return credential{}, &AuthError{StatusCode: resp.StatusCode, Message: "token response has no access_token"}
	}

	// expires_in arrives as a quoted string from the live API and as a
	// number from some sandboxes.
	seconds, err := strconv.Atoi(string(bytes.Trim(body.ExpiresIn, `"`)))
	if err != nil || seconds <= 0 {
		return credential{}, &AuthError{StatusCode: resp.StatusCode, Message: "invalid expires_in", Err: err}
	}

	lifetime := time.Duration(seconds)*time.Second - c.skew
	if lifetime <= 0 {
		lifetime = time.Duration(seconds) * time.Second / 2
	}

	c.log.Debug("Gateway credential refreshed", "expires_in", seconds)
	return credential{token: body.AccessToken, expiresAt: c.now().Add(lifetime)}, nil
}

func (c *OAuthCredentials) fromRedis(ctx context.Context) (credential, bool) {
	if c.rdb == nil {
		return credential{}, false
	}

	pipe := c.rdb.Pipeline()
	get := pipe.Get(ctx, c.key)
	ttl := pipe.PTTL(ctx, c.key)
	if _, err := pipe.Exec(ctx); err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("Shared gateway credential lookup failed", "error", err)
		}
		return credential{}, false
	}
	if ttl.Val() <= 0 {
		return credential{}, false
	}
	return credential{token: get.Val(), expiresAt: c.now().Add(ttl.Val())}, true
}

func (c *OAuthCredentials) toRedis(ctx context.Context, cred credential) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key, cred.token, cred.expiresAt.Sub(c.now())).Err(); err != nil {
		c.log.Warn("Failed to share gateway credential", "error", err)
	}
}
