package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   &AppError{Code: CodeNotFound, Message: "booking not found"},
			expected: "NOT_FOUND: booking not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeGatewayAuth,
				Message: "auth failed",
				Err:     errors.New("401 from oauth endpoint"),
			},
			expected: "GATEWAY_AUTH_ERROR: auth failed (caused by: 401 from oauth endpoint)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	appErr := GatewaySubmit(cause)

	if !errors.Is(appErr, cause) {
		t.Errorf("errors.Is should find the wrapped cause")
	}
}

func TestTaxonomyConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		code      string
		status    int
		retryable bool
	}{
		{"invalid party", InvalidParty("counterparty is not active"), CodeInvalidParty, http.StatusUnprocessableEntity, false},
		{"invalid rate", InvalidRate("no day-unit rate"), CodeInvalidRate, http.StatusUnprocessableEntity, false},
		{"invalid state", InvalidState("not funded", "pending"), CodeInvalidState, http.StatusConflict, false},
		{"forbidden", Forbidden("not a party"), CodeForbidden, http.StatusForbidden, false},
		{"conflict", Conflict("token already stored"), CodeConflict, http.StatusConflict, false},
		{"gateway auth", GatewayAuth(nil), CodeGatewayAuth, http.StatusBadGateway, true},
		{"gateway submit", GatewaySubmit(nil), CodeGatewaySubmit, http.StatusBadGateway, true},
		{"unavailable", Unavailable("Ledger"), CodeUnavailable, http.StatusServiceUnavailable, true},
		{"not found", NotFoundWithID("Booking", "b-1"), CodeNotFound, http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.StatusCode() != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.err.StatusCode())
			}
			if tt.err.Retryable != tt.retryable {
				t.Errorf("expected retryable=%v, got %v", tt.retryable, tt.err.Retryable)
			}
		})
	}
}

func TestInvalidState_CarriesCurrentStatus(t *testing.T) {
	err := InvalidState("booking cannot be completed", "cancelled")
	if err.Details["status"] != "cancelled" {
		t.Errorf("expected status detail 'cancelled', got %v", err.Details["status"])
	}
}

func TestWithDetail_InitializesMap(t *testing.T) {
	err := New(CodeConflict, "conflict", http.StatusConflict).WithDetail("booking_id", "b-1")
	if err.Details["booking_id"] != "b-1" {
		t.Errorf("expected booking_id detail, got %v", err.Details)
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("Booking")
	if AsAppError(appErr) != appErr {
		t.Errorf("AsAppError() should return same AppError")
	}

	wrapped := fmt.Errorf("handler: %w", appErr)
	if AsAppError(wrapped) != appErr {
		t.Errorf("AsAppError() should unwrap to the AppError")
	}

	regular := errors.New("regular error")
	result := AsAppError(regular)
	if result.Code != CodeInternal || result.Err != regular {
		t.Errorf("AsAppError() should wrap regular error as internal error, got %+v", result)
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("initiate: %w", GatewayAuth(errors.New("boom")))
	if !HasCode(err, CodeGatewayAuth) {
		t.Errorf("HasCode should match wrapped gateway auth error")
	}
	if HasCode(err, CodeGatewaySubmit) {
		t.Errorf("HasCode should not match a different code")
	}
	if HasCode(errors.New("plain"), CodeInternal) {
		t.Errorf("HasCode should be false for non-AppError")
	}
}

func TestAppError_ToJSON(t *testing.T) {
	data := GatewaySubmit(errors.New("secret upstream detail")).WithDetail("booking_id", "b-1").ToJSON()

	var resp ErrorResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if resp.Code != CodeGatewaySubmit {
		t.Errorf("expected code %s, got %s", CodeGatewaySubmit, resp.Code)
	}
	if !resp.Retryable {
		t.Errorf("expected retryable flag in JSON")
	}
	if resp.Details["booking_id"] != "b-1" {
		t.Errorf("expected booking_id in details, got %v", resp.Details)
	}
}
