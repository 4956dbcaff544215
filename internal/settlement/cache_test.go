package settlement

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/parcener/backend/internal/events"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Cache{R: client, TTL: time.Minute}, mr
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	roomID := uuid.New()

	if _, ok := cache.Get(ctx, roomID); ok {
		t.Fatal("expected miss on empty cache")
	}

	view := ResultView{RoomID: roomID.String(), ClaimedSubtotal: "20.00", UnclaimedAmount: "3.00", OverclaimedAmount: "0.00"}
	cache.Store(ctx, roomID, view)

	got, ok := cache.Get(ctx, roomID)
	if !ok {
		t.Fatal("expected hit")
	}
	if got.ClaimedSubtotal != "20.00" {
		t.Fatalf("unexpected cached view %+v", got)
	}
}

func TestCacheExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	roomID := uuid.New()

	cache.Store(ctx, roomID, ResultView{RoomID: roomID.String()})
	mr.FastForward(2 * time.Minute)

	if _, ok := cache.Get(ctx, roomID); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestCacheNotifyInvalidates(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	roomID := uuid.New()

	invalidating := []string{
		events.TopicClaimUpdated,
		events.TopicClaimDeleted,
		events.TopicReceiptUpdated,
		events.TopicRoomMemberJoined,
	}
	for _, topic := range invalidating {
		cache.Store(ctx, roomID, ResultView{RoomID: roomID.String()})
		if err := cache.Notify(ctx, events.Event{Topic: topic, RoomID: roomID}); err != nil {
			t.Fatalf("Notify(%s): %v", topic, err)
		}
		if _, ok := cache.Get(ctx, roomID); ok {
			t.Fatalf("expected %s to invalidate", topic)
		}
	}

	// locking changes no settlement input
	cache.Store(ctx, roomID, ResultView{RoomID: roomID.String()})
	if err := cache.Notify(ctx, events.Event{Topic: events.TopicRoomLocked, RoomID: roomID}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if _, ok := cache.Get(ctx, roomID); !ok {
		t.Fatal("expected lock event to leave cache intact")
	}
}

func TestCacheDisabled(t *testing.T) {
	var cache *Cache
	ctx := context.Background()
	roomID := uuid.New()

	// nil cache and zero-TTL cache are inert, not panics
	cache.Store(ctx, roomID, ResultView{})
	if _, ok := cache.Get(ctx, roomID); ok {
		t.Fatal("nil cache should always miss")
	}

	disabled := &Cache{}
	disabled.Store(ctx, roomID, ResultView{})
	if _, ok := disabled.Get(ctx, roomID); ok {
		t.Fatal("disabled cache should always miss")
	}
}
