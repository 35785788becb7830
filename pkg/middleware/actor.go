package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperrors "peerpair/pkg/errors"
	httputil "peerpair/pkg/http"
	"peerpair/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

const actorKey contextKey = "actor_party_id"

var errMissingSubject = errors.New("token has no subject")

// ActorAuthentication verifies an HS256 bearer token and stores its subject
// as the acting party id. When issuer is non-empty the iss claim must match.
func ActorAuthentication(secret, issuer string, log *logger.Logger) func(http.Handler) http.Handler {
	parser := newActorParser(issuer)
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				rejectUnauthenticated(w, log, r, "missing bearer token")
				return
			}

			partyID, err := parseActor(parser, key, strings.TrimSpace(raw))
			if err != nil {
				log.Debug("bearer token rejected", "error", err)
				rejectUnauthenticated(w, log, r, "invalid bearer token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), partyID)))
		})
	}
}

func newActorParser(issuer string) *jwt.Parser {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return jwt.NewParser(opts...)
}

func parseActor(parser *jwt.Parser, key []byte, raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errMissingSubject
	}
	return claims.Subject, nil
}

func rejectUnauthenticated(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Authentication failed",
		"request_id", RequestIDFromContext(r.Context()),
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)
	w.Header().Set("WWW-Authenticate", "Bearer")
	_ = httputil.WriteError(w, apperrors.Unauthorized(reason))
}

func WithActor(ctx context.Context, partyID string) context.Context {
	return context.WithValue(ctx, actorKey, partyID)
}

// ActorFromContext returns the authenticated party id, if any.
func ActorFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(actorKey).(string)
	return id, ok && id != ""
}
