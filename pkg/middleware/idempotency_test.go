package middleware

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func countingHandler(calls *int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"call":%d}`, n)
	})
}

func post(h http.Handler, actor, key string) *httptest.ResponseRecorder {
	return postBody(h, actor, key, `{}`)
}

func postBody(h http.Handler, actor, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	if actor != "" {
		req = req.WithContext(WithActor(req.Context(), actor))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_ReplaysSuccess(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	h := Idempotency(store)(countingHandler(&calls, http.StatusCreated))

	first := post(h, "client-1", "key-1")
	second := post(h, "client-1", "key-1")

	if calls != 1 {
		t.Fatalf("handler called %d times, want 1", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("replay = %d %q, want %d %q", second.Code, second.Body.String(), first.Code, first.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Errorf("expected replay marker header")
	}
}

func TestIdempotency_ScopedPerActor(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	h := Idempotency(store)(countingHandler(&calls, http.StatusCreated))

	post(h, "client-1", "shared")
	post(h, "client-2", "shared")

	if calls != 2 {
		t.Errorf("handler called %d times, want 2", calls)
	}
}

func TestIdempotency_RejectsDifferentBody(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	var seen []string
	h := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = append(seen, string(body))
		countingHandler(&calls, http.StatusCreated).ServeHTTP(w, r)
	}))

	first := postBody(h, "client-1", "key-1", `{"duration":2}`)
	if first.Code != http.StatusCreated {
		t.Fatalf("first = %d", first.Code)
	}
	if len(seen) != 1 || seen[0] != `{"duration":2}` {
		t.Errorf("handler should see the original body, got %q", seen)
	}

	mismatch := postBody(h, "client-1", "key-1", `{"duration":3}`)
	if mismatch.Code != http.StatusConflict {
		t.Errorf("reused key with another body = %d, want 409", mismatch.Code)
	}

	replay := postBody(h, "client-1", "key-1", `{"duration":2}`)
	if replay.Code != http.StatusCreated || replay.Header().Get("Idempotent-Replayed") != "true" {
		t.Errorf("same body should replay, got %d", replay.Code)
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}

func TestIdempotency_FailuresNotCached(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	h := Idempotency(store)(countingHandler(&calls, http.StatusBadGateway))

	post(h, "client-1", "key-1")
	post(h, "client-1", "key-1")

	if calls != 2 {
		t.Errorf("handler called %d times, want 2", calls)
	}
}

func TestIdempotency_NoKeyPassesThrough(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	h := Idempotency(store)(countingHandler(&calls, http.StatusCreated))

	post(h, "client-1", "")
	post(h, "client-1", "")

	if calls != 2 {
		t.Errorf("handler called %d times, want 2", calls)
	}
}

func TestInMemoryIdempotencyStore_Expires(t *testing.T) {
	store := NewInMemoryIdempotencyStore(10 * time.Millisecond)
	defer store.Stop()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	store.Set(req.Context(), "k", &CachedResponse{StatusCode: http.StatusOK})
	time.Sleep(20 * time.Millisecond)

	if _, ok := store.Get(req.Context(), "k"); ok {
		t.Errorf("expected entry to expire")
	}
}
