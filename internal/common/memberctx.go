package common

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const (
	memberIDKey ctxKey = "auth/member-id"
	roomIDKey   ctxKey = "auth/room-id"
)

// WithMember stores the authenticated member and room identifiers on the context.
func WithMember(ctx context.Context, memberID, roomID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, memberIDKey, memberID)
	return context.WithValue(ctx, roomIDKey, roomID)
}

// MemberID extracts the authenticated member identifier from the context if present.
func MemberID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(memberIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// RoomID extracts the room scope of the member token from the context if present.
func RoomID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(roomIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
