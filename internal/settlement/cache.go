package settlement

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/parcener/backend/internal/events"
)

// Cache holds rendered settlement results in Redis for a short window.
// Claim writes arrive in bursts while a table settles up; the TTL keeps the
// cache from ever serving stale math for long even if invalidation is missed.
type Cache struct {
	R   *redis.Client
	TTL time.Duration
}

func cacheKey(roomID uuid.UUID) string {
	return "settlement:" + roomID.String()
}

// Get returns the cached rendered result for the room, if present.
func (c *Cache) Get(ctx context.Context, roomID uuid.UUID) (ResultView, bool) {
	if c == nil || c.R == nil || c.TTL <= 0 {
		return ResultView{}, false
	}
	data, err := c.R.Get(ctx, cacheKey(roomID)).Bytes()
	if err != nil {
		return ResultView{}, false
	}
	var view ResultView
	if err := json.Unmarshal(data, &view); err != nil {
		return ResultView{}, false
	}
	return view, true
}

// Store caches the rendered result. Failures are ignored; the cache is an
// optimisation, never a source of truth.
func (c *Cache) Store(ctx context.Context, roomID uuid.UUID, view ResultView) {
	if c == nil || c.R == nil || c.TTL <= 0 {
		return
	}
	data, err := json.Marshal(view)
	if err != nil {
		return
	}
	_ = c.R.Set(ctx, cacheKey(roomID), data, c.TTL).Err()
}

// Invalidate drops the cached result for the room.
func (c *Cache) Invalidate(ctx context.Context, roomID uuid.UUID) {
	if c == nil || c.R == nil {
		return
	}
	_ = c.R.Del(ctx, cacheKey(roomID)).Err()
}

// Notify implements events.Notifier: any event that changes settlement
// inputs drops the cached result.
func (c *Cache) Notify(ctx context.Context, event events.Event) error {
	switch event.Topic {
	case events.TopicClaimUpdated, events.TopicClaimDeleted, events.TopicReceiptUpdated, events.TopicRoomMemberJoined:
		c.Invalidate(ctx, event.RoomID)
	}
	return nil
}
