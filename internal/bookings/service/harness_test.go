package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"peerpair/internal/bookings/events"
	"peerpair/internal/bookings/repository"
	"peerpair/internal/bookings/validator"
	"peerpair/internal/directory"
	"peerpair/internal/payments/gateway"
	"peerpair/pkg/config"
	apperrors "peerpair/pkg/errors"
	"peerpair/pkg/logger"
	"peerpair/pkg/model"
	"peerpair/pkg/sealer"
)

const (
	testSealKey     = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="
	testCallbackURL = "https://api.example.com"

	clientID       = "client-1"
	companionID    = "companion-1"
	otherCompanion = "companion-2"
	strangerID     = "client-2"
)

type mockGateway struct {
	SubmitChargeFunc func(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResponse, error)

	mu       sync.Mutex
	requests []gateway.ChargeRequest
	issued   int
}

func (m *mockGateway) SubmitCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.issued++
	n := m.issued
	m.mu.Unlock()

	if m.SubmitChargeFunc != nil {
		return m.SubmitChargeFunc(ctx, req)
	}
	return &gateway.ChargeResponse{
		TrackingToken:     fmt.Sprintf("ws_CO_%d", n),
		MerchantRequestID: fmt.Sprintf("mr-%d", n),
	}, nil
}

func (m *mockGateway) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockGateway) last() gateway.ChargeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

type harness struct {
	cfg         *config.Config
	repo        *repository.MemoryBookingRepository
	dir         *directory.Static
	gw          *mockGateway
	sealer      *sealer.Sealer
	events      *events.Recorder
	ledger      Ledger
	initiator   PaymentInitiator
	reconciler  CallbackReconciler
	coordinator Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	log := logger.New(logger.Config{Level: logger.ERROR, Format: logger.JSON, Output: io.Discard, Service: "test"})
	cfg := &config.Config{Log: log, CallbackBaseURL: testCallbackURL}

	s, err := sealer.New(testSealKey, "booking-callback")
	if err != nil {
		t.Fatalf("sealer.New() error = %v", err)
	}

	h := &harness{
		cfg:  cfg,
		repo: repository.NewMemoryBookingRepository(),
		dir: directory.NewStatic(
			model.Party{ID: clientID, Role: model.RoleClient, Active: true},
			model.Party{ID: strangerID, Role: model.RoleClient, Active: true},
			model.Party{ID: companionID, Role: model.RoleCompanion, Active: true, Rates: map[model.EngagementKind]int64{
				model.KindShortUnit: 500,
				model.KindDayUnit:   3000,
			}},
			model.Party{ID: otherCompanion, Role: model.RoleCompanion, Active: true, Rates: map[model.EngagementKind]int64{
				model.KindShortUnit: 700,
			}},
		),
		gw:     &mockGateway{},
		sealer: s,
		events: events.NewRecorder(),
	}
	h.ledger = NewLedger(h.repo, h.dir, cfg)
	h.initiator = NewPaymentInitiator(h.ledger, h.gw, h.sealer, h.events, validator.NewBookingValidator(log), cfg)
	h.reconciler = NewCallbackReconciler(h.ledger, h.sealer, h.events, cfg)
	h.coordinator = NewCoordinator(h.ledger, h.events, cfg)
	return h
}

func bookingRequest() InitiateRequest {
	return InitiateRequest{
		BookingRequest: model.BookingRequest{
			CounterpartyID: companionID,
			EngagementKind: model.KindShortUnit,
			Duration:       2,
			PhoneNumber:    "0712345678",
		},
		InitiatorPartyID: clientID,
	}
}

// initiate creates a booking and stores a tracking token for it.
func (h *harness) initiate(t *testing.T) *model.Booking {
	t.Helper()
	b, err := h.initiator.Initiate(context.Background(), bookingRequest())
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	if !b.HasToken() {
		t.Fatalf("Initiate() stored no tracking token")
	}
	return b
}

func (h *harness) seal(t *testing.T, id string) string {
	t.Helper()
	s, err := h.sealer.Seal(id)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	return s
}

func (h *harness) callback(t *testing.T, b *model.Booking, token string, resultCode int) ReconcileOutcome {
	t.Helper()
	return h.reconciler.Reconcile(context.Background(), h.seal(t, b.ID), callbackPayload(token, resultCode, b.TotalAmount))
}

// fund drives a fresh booking to funded_escrow.
func (h *harness) fund(t *testing.T) *model.Booking {
	t.Helper()
	b := h.initiate(t)
	if got := h.callback(t, b, b.Token(), 0); got != OutcomeFunded {
		t.Fatalf("funding callback outcome = %s", got)
	}
	return h.current(t, b.ID)
}

func (h *harness) current(t *testing.T, id string) *model.Booking {
	t.Helper()
	b, err := h.repo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	return b
}

func callbackPayload(token string, resultCode int, amount int64) []byte {
	if resultCode != 0 {
		return []byte(fmt.Sprintf(`{"Body":{"stkCallback":{"MerchantRequestID":"mr-1","CheckoutRequestID":%q,"ResultCode":%d,"ResultDesc":"Request cancelled by user"}}}`, token, resultCode))
	}
	return []byte(fmt.Sprintf(`{"Body":{"stkCallback":{"MerchantRequestID":"mr-1","CheckoutRequestID":%q,"ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[{"Name":"Amount","Value":%d},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},{"Name":"PhoneNumber","Value":254712345678}]}}}}`, token, amount))
}

func assertCode(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
	return apperrors.AsAppError(err)
}
