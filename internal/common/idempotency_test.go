package common_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/parcener/backend/internal/common"
)

func newIdem(t *testing.T) (common.Idem, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return common.Idem{R: client, TTL: time.Minute}, mr
}

func idemRequest(memberID uuid.UUID, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPut, "/claims/abc", nil)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	ctx := common.WithMember(req.Context(), memberID, uuid.New())
	return req.WithContext(ctx)
}

func TestIdemDuplicateSuppressed(t *testing.T) {
	idem, _ := newIdem(t)
	calls := 0
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))
	member := uuid.New()

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, idemRequest(member, "put-1"))
	if first.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d, want 204", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, idemRequest(member, "put-1"))
	if second.Code != http.StatusConflict {
		t.Fatalf("replay status = %d, want 409", second.Code)
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

func TestIdemScopedPerMember(t *testing.T) {
	idem, _ := newIdem(t)
	calls := 0
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, idemRequest(uuid.New(), "shared-key"))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d status = %d, want 204", i, rec.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("handler ran %d times, want 2 (one per member)", calls)
	}
}

func TestIdemMissingHeaderPassesThrough(t *testing.T) {
	idem, _ := newIdem(t)
	calls := 0
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))
	member := uuid.New()

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, idemRequest(member, ""))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d status = %d, want 204", i, rec.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("handler ran %d times, want 2", calls)
	}
}

func TestIdemKeyExpires(t *testing.T) {
	idem, mr := newIdem(t)
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	member := uuid.New()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, idemRequest(member, "expiring"))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d, want 204", rec.Code)
	}

	mr.FastForward(2 * time.Minute)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, idemRequest(member, "expiring"))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("post-expiry status = %d, want 204", rec.Code)
	}
}
