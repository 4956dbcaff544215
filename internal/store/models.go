// Package store defines the persistence models and interfaces the HTTP
// services depend on. Implementations live in subpackages.
package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict indicates a uniqueness or state conflict.
	ErrConflict = errors.New("store: conflict")
)

// Room lifecycle states.
const (
	RoomStateOpen   = "open"
	RoomStateLocked = "locked"
)

// Receipt is a stored receipt with its line items.
type Receipt struct {
	ID         uuid.UUID
	Merchant   string
	Currency   string
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	Tip        decimal.Decimal
	GrandTotal decimal.Decimal
	Items      []Item
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Item is a stored receipt line. Price is the aggregate price for the full
// quantity, matching how receipts print line totals.
type Item struct {
	ID        uuid.UUID
	ReceiptID uuid.UUID
	Label     string
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Position  int
}

// Room binds a receipt to a splitting session.
type Room struct {
	ID           uuid.UUID
	ReceiptID    uuid.UUID
	Name         string
	PasscodeHash string
	State        string
	CreatedAt    time.Time
	LockedAt     *time.Time
}

// Member is one participant in a room. Position preserves join order.
type Member struct {
	ID        uuid.UUID
	RoomID    uuid.UUID
	Name      string
	AvatarURL string
	Position  int
	JoinedAt  time.Time
}

// Claim records that a member intends to pay for Quantity of an item.
type Claim struct {
	RoomID    uuid.UUID
	MemberID  uuid.UUID
	ItemID    uuid.UUID
	Quantity  decimal.Decimal
	UpdatedAt time.Time
}

