package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"peerpair/pkg/config"
	"peerpair/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ERROR, Format: logger.JSON, Output: io.Discard, Service: "test"})
}

type fakeGateway struct {
	tokenCalls  atomic.Int32
	submitCalls atomic.Int32

	tokenStatus  int
	submitStatus int
	submitBody   string

	mu      sync.Mutex
	lastReq stkPushRequest
	lastJWT string
}

func (f *fakeGateway) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("key:secret"))
		if r.Header.Get("Authorization") != want {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
			_, _ = w.Write([]byte(`{"errorMessage":"Invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":"3599"}`))
	})
	mux.HandleFunc(stkPushPath, func(w http.ResponseWriter, r *http.Request) {
		f.submitCalls.Add(1)
		f.mu.Lock()
		f.lastJWT = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&f.lastReq); err != nil {
			t.Errorf("fake gateway could not decode request: %v", err)
		}
		f.mu.Unlock()

		if f.submitStatus != 0 {
			w.WriteHeader(f.submitStatus)
		}
		body := f.submitBody
		if body == "" {
			body = `{"MerchantRequestID":"29115-1","CheckoutRequestID":"ws_CO_1","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success"}`
		}
		_, _ = w.Write([]byte(body))
	})
	return mux
}

func gatewayConfig(baseURL string) config.GatewayConfig {
	return config.GatewayConfig{
		BaseURL:          baseURL,
		ConsumerKey:      "key",
		ConsumerSecret:   "secret",
		ShortCode:        "174379",
		PassKey:          "passkey",
		TransactionType:  "CustomerPayBillOnline",
		AccountReference: "PeerPair",
		Timeout:          2 * time.Second,
		CredentialSkew:   time.Minute,
	}
}

func newTestClient(t *testing.T, fake *fakeGateway) (*Client, *OAuthCredentials) {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	cfg := gatewayConfig(srv.URL)
	creds := NewOAuthCredentials(cfg, nil, testLogger())
	c := NewClient(cfg, creds, testLogger())
	c.now = func() time.Time { return time.Date(2024, 3, 1, 7, 4, 5, 0, time.UTC) }
	return c, creds
}

func TestSubmitCharge_Success(t *testing.T) {
	fake := &fakeGateway{}
	c, _ := newTestClient(t, fake)

	resp, err := c.SubmitCharge(context.Background(), ChargeRequest{
		MSISDN:            "254712345678",
		Amount:            1000,
		MerchantReference: "9b2f7d3e-6c1a-4d8e",
		CallbackURL:       "https://api.example.com/api/v1/payments/callback/abc",
	})
	if err != nil {
		t.Fatalf("SubmitCharge() error = %v", err)
	}
	if resp.TrackingToken != "ws_CO_1" || resp.MerchantRequestID != "29115-1" {
		t.Errorf("unexpected response %+v", resp)
	}

	req := fake.lastReq
	if req.Timestamp != "20240301100405" {
		t.Errorf("timestamp should be Nairobi local time, got %s", req.Timestamp)
	}
	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379passkey20240301100405"))
	if req.Password != wantPassword {
		t.Errorf("Password = %s, want %s", req.Password, wantPassword)
	}
	if req.PartyA != "254712345678" || req.PhoneNumber != "254712345678" || req.PartyB != "174379" {
		t.Errorf("unexpected parties: %+v", req)
	}
	if req.Amount != 1000 || req.TransactionType != "CustomerPayBillOnline" {
		t.Errorf("unexpected amount/type: %+v", req)
	}
	if req.AccountReference != "9b2f7d3e-6c1" {
		t.Errorf("AccountReference = %q, want truncated booking id", req.AccountReference)
	}
	if req.TransactionDesc != "PeerPair" {
		t.Errorf("TransactionDesc = %q", req.TransactionDesc)
	}
	if fake.lastJWT != "Bearer tok-1" {
		t.Errorf("Authorization = %q", fake.lastJWT)
	}
}

func TestSubmitCharge_AuthFailure(t *testing.T) {
	fake := &fakeGateway{tokenStatus: http.StatusBadRequest}
	c, _ := newTestClient(t, fake)

	_, err := c.SubmitCharge(context.Background(), ChargeRequest{MSISDN: "254712345678", Amount: 10})

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError, got %v", err)
	}
	if fake.submitCalls.Load() != 0 {
		t.Error("no charge should be submitted without a credential")
	}
}

func TestSubmitCharge_OutsideMarket(t *testing.T) {
	fake := &fakeGateway{}
	c, _ := newTestClient(t, fake)

	_, err := c.SubmitCharge(context.Background(), ChargeRequest{MSISDN: "14155550123", Amount: 10})

	var submitErr *SubmitError
	if !errors.As(err, &submitErr) || submitErr.Code != "invalid_msisdn" {
		t.Fatalf("expected invalid_msisdn SubmitError, got %v", err)
	}
	if fake.tokenCalls.Load() != 0 || fake.submitCalls.Load() != 0 {
		t.Error("gateway must not be contacted for a foreign number")
	}
}

func TestSubmitCharge_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{"non-zero response code", http.StatusOK, `{"ResponseCode":"1","ResponseDescription":"Rejected"}`, "1"},
		{"gateway error body", http.StatusBadRequest, `{"requestId":"r-1","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`, "400.002.02"},
		{"unparseable body", http.StatusInternalServerError, `<html>oops</html>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeGateway{submitStatus: tt.status, submitBody: tt.body}
			c, _ := newTestClient(t, fake)

			_, err := c.SubmitCharge(context.Background(), ChargeRequest{MSISDN: "254712345678", Amount: 10})

			var submitErr *SubmitError
			if !errors.As(err, &submitErr) {
				t.Fatalf("expected *SubmitError, got %v", err)
			}
			if submitErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", submitErr.Code, tt.wantCode)
			}
		})
	}
}

func TestSubmitCharge_UnauthorizedInvalidatesCredential(t *testing.T) {
	fake := &fakeGateway{submitStatus: http.StatusUnauthorized, submitBody: `{"errorMessage":"Invalid Access Token"}`}
	c, _ := newTestClient(t, fake)

	for i := 0; i < 2; i++ {
		_, err := c.SubmitCharge(context.Background(), ChargeRequest{MSISDN: "254712345678", Amount: 10})
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			t.Fatalf("expected *AuthError, got %v", err)
		}
	}
	if got := fake.tokenCalls.Load(); got != 2 {
		t.Errorf("expected a fresh token after a 401, token calls = %d", got)
	}
}

func TestOAuthCredentials_CachesAndRefreshes(t *testing.T) {
	fake := &fakeGateway{}
	_, creds := newTestClient(t, fake)

	current := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	creds.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		if _, err := creds.Token(context.Background()); err != nil {
			t.Fatalf("Token() error = %v", err)
		}
	}
	if got := fake.tokenCalls.Load(); got != 1 {
		t.Errorf("expected one token fetch, got %d", got)
	}

	// 3599s lifetime minus one minute of skew
	current = current.Add(3539 * time.Second)
	if _, err := creds.Token(context.Background()); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got := fake.tokenCalls.Load(); got != 2 {
		t.Errorf("expected a refresh once the skewed expiry passed, got %d fetches", got)
	}
}

func TestOAuthCredentials_ConcurrentCallersShareRefresh(t *testing.T) {
	fake := &fakeGateway{}
	_, creds := newTestClient(t, fake)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := creds.Token(context.Background()); err != nil {
				t.Errorf("Token() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := fake.tokenCalls.Load(); got != 1 {
		t.Errorf("expected a single shared refresh, got %d", got)
	}
}
