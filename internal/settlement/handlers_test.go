package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/parcener/backend/internal/store"
	"github.com/parcener/backend/internal/store/storetest"
)

type apiFixture struct {
	handler *Handler
	mem     *storetest.Memory
	room    store.Room
	receipt store.Receipt
	ana     store.Member
	bo      store.Member
}

func newAPIFixture(t *testing.T, withCache bool) *apiFixture {
	t.Helper()
	mem := storetest.NewMemory()
	ctx := context.Background()

	receipt, err := mem.Create(ctx, store.Receipt{
		ID:       uuid.New(),
		Subtotal: dec("23.00"),
		Tax:      dec("0"),
		Tip:      dec("10.00"),
		GrandTotal: dec("33.00"),
		Items: []store.Item{
			{ID: uuid.New(), Label: "Guacamole", Price: dec("8.00"), Quantity: dec("1")},
			{ID: uuid.New(), Label: "Carnitas Tacos", Price: dec("12.00"), Quantity: dec("1")},
			{ID: uuid.New(), Label: "Horchata", Price: dec("3.00"), Quantity: dec("1")},
		},
	})
	if err != nil {
		t.Fatalf("seed receipt: %v", err)
	}
	room, err := mem.CreateRoom(ctx, store.Room{ID: uuid.New(), ReceiptID: receipt.ID, Name: "dinner"})
	if err != nil {
		t.Fatalf("seed room: %v", err)
	}
	ana, err := mem.AddMember(ctx, store.Member{ID: uuid.New(), RoomID: room.ID, Name: "ana"})
	if err != nil {
		t.Fatalf("seed ana: %v", err)
	}
	bo, err := mem.AddMember(ctx, store.Member{ID: uuid.New(), RoomID: room.ID, Name: "bo"})
	if err != nil {
		t.Fatalf("seed bo: %v", err)
	}

	cache := &Cache{}
	if withCache {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("run miniredis: %v", err)
		}
		t.Cleanup(mr.Close)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		cache = &Cache{R: client, TTL: 5 * time.Second}
	}

	handler := &Handler{
		Rooms:    mem.Rooms(),
		Receipts: mem,
		Claims:   mem,
		Cache:    cache,
	}
	return &apiFixture{handler: handler, mem: mem, room: room, receipt: receipt, ana: ana, bo: bo}
}

func (f *apiFixture) serve(t *testing.T, roomID string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/rooms/{roomID}/settlement", f.handler.Get)
	req := httptest.NewRequest(http.MethodGet, "/rooms/"+roomID+"/settlement", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) claim(t *testing.T, member store.Member, item store.Item, qty string) {
	t.Helper()
	_, err := f.mem.Upsert(context.Background(), store.Claim{
		RoomID:   f.room.ID,
		MemberID: member.ID,
		ItemID:   item.ID,
		Quantity: dec(qty),
	})
	if err != nil {
		t.Fatalf("seed claim: %v", err)
	}
}

func TestSettlementEndpoint(t *testing.T) {
	f := newAPIFixture(t, false)
	f.claim(t, f.ana, f.receipt.Items[0], "1")
	f.claim(t, f.ana, f.receipt.Items[1], "1")

	rec := f.serve(t, f.room.ID.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var view ResultView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Settlements) != 2 {
		t.Fatalf("expected 2 settlements, got %d", len(view.Settlements))
	}
	// ana claimed 20 of the 23 subtotal; tip 10 scales by the same ratio
	if view.Settlements[0].Member.Name != "ana" || view.Settlements[0].TotalOwed != "28.70" {
		t.Fatalf("unexpected first settlement %+v", view.Settlements[0])
	}
	if view.Settlements[1].TotalOwed != "0.00" {
		t.Fatalf("expected bo to owe nothing, got %s", view.Settlements[1].TotalOwed)
	}
	if view.UnclaimedAmount != "3.00" || view.OverclaimedAmount != "0.00" {
		t.Fatalf("unexpected reconciliation %+v", view)
	}
}

func TestSettlementEndpointUnknownRoom(t *testing.T) {
	f := newAPIFixture(t, false)
	rec := f.serve(t, uuid.NewString())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = f.serve(t, "not-a-uuid")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for bad id, got %d", rec.Code)
	}
}

func TestSettlementEndpointCaches(t *testing.T) {
	f := newAPIFixture(t, true)
	f.claim(t, f.ana, f.receipt.Items[0], "1")

	first := f.serve(t, f.room.ID.String())
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.Code)
	}

	// a direct store write bypasses invalidation, so the cached render
	// is served until the notifier or TTL clears it
	f.claim(t, f.bo, f.receipt.Items[1], "1")
	second := f.serve(t, f.room.ID.String())
	if second.Body.String() != first.Body.String() {
		t.Fatal("expected cached response")
	}

	f.handler.Cache.Invalidate(context.Background(), f.room.ID)
	third := f.serve(t, f.room.ID.String())
	if third.Body.String() == first.Body.String() {
		t.Fatal("expected fresh computation after invalidation")
	}
}
