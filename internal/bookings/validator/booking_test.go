package validator

import (
	"errors"
	"io"
	"strings"
	"testing"

	"peerpair/pkg/logger"
	"peerpair/pkg/model"
)

func newValidator() *BookingValidator {
	return NewBookingValidator(logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard, Service: "test"}))
}

func validRequest() model.BookingRequest {
	return model.BookingRequest{
		CounterpartyID: "companion-1",
		EngagementKind: model.KindShortUnit,
		Duration:       2,
		PhoneNumber:    "0712345678",
	}
}

func TestBookingValidator_Validate(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name      string
		modify    func(r *model.BookingRequest)
		wantField string
	}{
		{"valid", func(r *model.BookingRequest) {}, ""},
		{"gateway msisdn format", func(r *model.BookingRequest) { r.PhoneNumber = "254712345678" }, ""},
		{"max short-unit duration", func(r *model.BookingRequest) { r.Duration = 24 }, ""},
		{"missing counterparty", func(r *model.BookingRequest) { r.CounterpartyID = "" }, "CounterpartyID"},
		{"unknown kind", func(r *model.BookingRequest) { r.EngagementKind = "hourly" }, "EngagementKind"},
		{"zero duration", func(r *model.BookingRequest) { r.Duration = 0 }, "Duration"},
		{"duration over cap", func(r *model.BookingRequest) { r.EngagementKind = model.KindWeekUnit; r.Duration = 5 }, "Duration"},
		{"too short", func(r *model.BookingRequest) { r.PhoneNumber = "07123" }, "PhoneNumber"},
		{"foreign number", func(r *model.BookingRequest) { r.PhoneNumber = "+972501234567" }, "PhoneNumber"},
		{"notes too long", func(r *model.BookingRequest) { r.Notes = strings.Repeat("a", 1001) }, "Notes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.modify(&req)

			err := v.Validate(&req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if _, ok := verrs.Fields()[tt.wantField]; !ok {
				t.Errorf("expected an error on %s, got %v", tt.wantField, verrs)
			}
		})
	}
}

func TestBookingValidator_ValidatePayment(t *testing.T) {
	v := newValidator()

	if err := v.ValidatePayment(&model.PaymentRequest{PhoneNumber: "+254 712 345 678"}); err != nil {
		t.Errorf("ValidatePayment() error = %v", err)
	}
	if err := v.ValidatePayment(&model.PaymentRequest{}); err == nil {
		t.Error("expected an error for a missing phone number")
	}
}
