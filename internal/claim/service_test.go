package claim

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/parcener/backend/internal/common"
	"github.com/parcener/backend/internal/events"
	"github.com/parcener/backend/internal/store"
	"github.com/parcener/backend/internal/store/storetest"
)

type fixture struct {
	svc    *Service
	mem    *storetest.Memory
	room   store.Room
	member store.Member
	items  []store.Item
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := storetest.NewMemory()
	ctx := context.Background()

	receipt, err := mem.Create(ctx, store.Receipt{
		ID:       uuid.New(),
		Subtotal: dec(t, "20.00"),
		GrandTotal: dec(t, "20.00"),
		Items: []store.Item{
			{ID: uuid.New(), Label: "Margarita Pitcher", Price: dec(t, "56.00"), Quantity: dec(t, "4")},
			{ID: uuid.New(), Label: "Churros", Price: dec(t, "6.00"), Quantity: dec(t, "1")},
		},
	})
	if err != nil {
		t.Fatalf("seed receipt: %v", err)
	}
	room, err := mem.CreateRoom(ctx, store.Room{ID: uuid.New(), ReceiptID: receipt.ID, Name: "dinner"})
	if err != nil {
		t.Fatalf("seed room: %v", err)
	}
	member, err := mem.AddMember(ctx, store.Member{ID: uuid.New(), RoomID: room.ID, Name: "ana"})
	if err != nil {
		t.Fatalf("seed member: %v", err)
	}

	bus := &events.Bus{Store: mem}
	return &fixture{
		svc:    NewService(mem, mem.Rooms(), mem, bus),
		mem:    mem,
		room:   room,
		member: member,
		items:  receipt.Items,
	}
}

func TestPutUpsertsClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	claim, err := f.svc.Put(ctx, f.room.ID, f.member.ID, f.items[0].ID, dec(t, "2"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !claim.Quantity.Equal(dec(t, "2")) {
		t.Fatalf("unexpected quantity %s", claim.Quantity)
	}

	// second write replaces, not adds
	if _, err := f.svc.Put(ctx, f.room.ID, f.member.ID, f.items[0].ID, dec(t, "1")); err != nil {
		t.Fatalf("Put again: %v", err)
	}
	claims, err := f.mem.ListByRoom(ctx, f.room.ID)
	if err != nil {
		t.Fatalf("ListByRoom: %v", err)
	}
	if len(claims) != 1 || !claims[0].Quantity.Equal(dec(t, "1")) {
		t.Fatalf("expected single replaced claim, got %+v", claims)
	}
}

func TestPutZeroQuantityRemoves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Put(ctx, f.room.ID, f.member.ID, f.items[0].ID, dec(t, "2")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := f.svc.Put(ctx, f.room.ID, f.member.ID, f.items[0].ID, decimal.Zero); err != nil {
		t.Fatalf("Put zero: %v", err)
	}
	claims, err := f.mem.ListByRoom(ctx, f.room.ID)
	if err != nil {
		t.Fatalf("ListByRoom: %v", err)
	}
	if len(claims) != 0 {
		t.Fatalf("expected no claims, got %+v", claims)
	}
}

func TestPutOverclaimAllowed(t *testing.T) {
	f := newFixture(t)
	// claiming 10 of a 4-quantity pitcher is permitted; reconciliation
	// surfaces it, the write never fails
	if _, err := f.svc.Put(context.Background(), f.room.ID, f.member.ID, f.items[0].ID, dec(t, "10")); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func TestPutRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("negative quantity", func(t *testing.T) {
		_, err := f.svc.Put(ctx, f.room.ID, f.member.ID, f.items[0].ID, dec(t, "-1"))
		var appErr *common.AppError
		if !errors.As(err, &appErr) || appErr.Code != "VALIDATION_ERROR" {
			t.Fatalf("expected VALIDATION_ERROR, got %v", err)
		}
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := f.svc.Put(ctx, f.room.ID, f.member.ID, uuid.New(), dec(t, "1"))
		var appErr *common.AppError
		if !errors.As(err, &appErr) || appErr.Code != "NOT_FOUND" {
			t.Fatalf("expected NOT_FOUND, got %v", err)
		}
	})

	t.Run("unknown room", func(t *testing.T) {
		_, err := f.svc.Put(ctx, uuid.New(), f.member.ID, f.items[0].ID, dec(t, "1"))
		var appErr *common.AppError
		if !errors.As(err, &appErr) || appErr.Code != "NOT_FOUND" {
			t.Fatalf("expected NOT_FOUND, got %v", err)
		}
	})

	t.Run("locked room", func(t *testing.T) {
		if _, err := f.mem.Lock(ctx, f.room.ID); err != nil {
			t.Fatalf("Lock: %v", err)
		}
		_, err := f.svc.Put(ctx, f.room.ID, f.member.ID, f.items[0].ID, dec(t, "1"))
		var appErr *common.AppError
		if !errors.As(err, &appErr) || appErr.Code != "ROOM_LOCKED" {
			t.Fatalf("expected ROOM_LOCKED, got %v", err)
		}
	})
}

func TestDeleteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Put(ctx, f.room.ID, f.member.ID, f.items[1].ID, dec(t, "1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := f.svc.Delete(ctx, f.room.ID, f.member.ID, f.items[1].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// deleting again is a no-op, not an error
	if err := f.svc.Delete(ctx, f.room.ID, f.member.ID, f.items[1].ID); err != nil {
		t.Fatalf("Delete twice: %v", err)
	}
}

func TestWritesEmitEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Put(ctx, f.room.ID, f.member.ID, f.items[0].ID, dec(t, "1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := f.svc.Delete(ctx, f.room.ID, f.member.ID, f.items[0].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	evs := f.mem.Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].Topic != events.TopicClaimUpdated || evs[1].Topic != events.TopicClaimDeleted {
		t.Fatalf("unexpected topics: %s, %s", evs[0].Topic, evs[1].Topic)
	}
}
