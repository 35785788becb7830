package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"peerpair/pkg/client"
	"peerpair/pkg/config"
	"peerpair/pkg/logger"
	"peerpair/pkg/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
)

const testSecret = "test-secret"

type routeFunc func(*httprouter.Router)

func (f routeFunc) RegisterRoutes(r *httprouter.Router) { f(r) }

func testConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		JWTSecret:         testSecret,
		JWTIssuer:         "peerpair",
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    time.Second,
		IdempotencyTTL:    time.Minute,
		MaxRequestSize:    1 << 16,
		ReadTimeout:       time.Second,
		WriteTimeout:      time.Second,
		IdleTimeout:       time.Second,
		ShutdownTimeout:   time.Second,
		Log:               logger.New(logger.Config{Level: logger.ERROR, Format: logger.JSON, Output: io.Discard, Service: "test"}),
		Client:            client.NewClient(),
	}
}

func signedToken(t *testing.T, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    "peerpair",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return raw
}

func newTestApplication(t *testing.T) *Application {
	t.Helper()
	a := NewApplication(testConfig())

	health := routeFunc(func(r *httprouter.Router) {
		r.GET("/health", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
			w.WriteHeader(http.StatusOK)
		})
	})
	callback := routeFunc(func(r *httprouter.Router) {
		r.POST(CallbackPrefix+":seal", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
			w.WriteHeader(http.StatusOK)
		})
	})
	bookings := routeFunc(func(r *httprouter.Router) {
		r.GET("/api/v1/bookings", func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
			actor, _ := middleware.ActorFromContext(req.Context())
			w.Header().Set("X-Actor", actor)
			w.WriteHeader(http.StatusOK)
		})
	})

	a.SetApp(health, callback, bookings)
	t.Cleanup(a.gracefulShutdown)
	return a
}

func TestApplication_Routing(t *testing.T) {
	a := newTestApplication(t)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{"health needs no token", http.MethodGet, "/health", "", http.StatusOK},
		{"callback needs no token", http.MethodPost, CallbackPrefix + "abc", "", http.StatusOK},
		{"bookings reject anonymous", http.MethodGet, "/api/v1/bookings", "", http.StatusUnauthorized},
		{"bookings reject bad token", http.MethodGet, "/api/v1/bookings", "not-a-jwt", http.StatusUnauthorized},
		{"bookings accept signed token", http.MethodGet, "/api/v1/bookings", signedToken(t, "client-1"), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestApplication_ActorReachesHandler(t *testing.T) {
	a := newTestApplication(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "client-7"))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Actor"); got != "client-7" {
		t.Errorf("expected actor client-7, got %q", got)
	}
}

func TestApplication_ShutdownHooksRunInReverse(t *testing.T) {
	a := NewApplication(testConfig())
	noop := routeFunc(func(*httprouter.Router) {})
	a.SetApp(noop, noop, noop)

	var order []int
	a.OnShutdown(func() { order = append(order, 1) })
	a.OnShutdown(func() { order = append(order, 2) })
	a.gracefulShutdown()

	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("expected hooks in reverse order [2 1], got %v", order)
	}
}
