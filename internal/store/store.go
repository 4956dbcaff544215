package store

import (
	"context"

	"github.com/google/uuid"
)

// Receipts persists receipts and their line items.
type Receipts interface {
	Create(ctx context.Context, receipt Receipt) (Receipt, error)
	Get(ctx context.Context, id uuid.UUID) (Receipt, error)
	Update(ctx context.Context, receipt Receipt) (Receipt, error)
	ReplaceItems(ctx context.Context, receiptID uuid.UUID, items []Item) ([]Item, error)
}

// Rooms persists rooms and members.
type Rooms interface {
	Create(ctx context.Context, room Room) (Room, error)
	Get(ctx context.Context, id uuid.UUID) (Room, error)
	ListByReceipt(ctx context.Context, receiptID uuid.UUID) ([]Room, error)
	Lock(ctx context.Context, id uuid.UUID) (Room, error)
	AddMember(ctx context.Context, member Member) (Member, error)
	Members(ctx context.Context, roomID uuid.UUID) ([]Member, error)
}

// Claims persists item claims.
type Claims interface {
	Upsert(ctx context.Context, claim Claim) (Claim, error)
	Delete(ctx context.Context, roomID, memberID, itemID uuid.UUID) error
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]Claim, error)
}
