package settlement

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is a receipt line item. Price is the aggregate price for the item's
// full quantity, never a unit price; the unit price is always derived as
// Price / Quantity. Quantity may be fractional (a shared plate).
type Item struct {
	ID       uuid.UUID
	Label    string
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Receipt carries the amounts settlement math runs against. Subtotal is
// authoritative; it is not recomputed from Items here.
type Receipt struct {
	ID         uuid.UUID
	Items      []Item
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	Tip        decimal.Decimal
	GrandTotal decimal.Decimal
}

// Member is a room participant.
type Member struct {
	ID        uuid.UUID
	Name      string
	AvatarURL string
}

// Claim records that a member intends to pay for Quantity of an item.
// A claim with zero quantity is equivalent to no claim at all.
type Claim struct {
	MemberID uuid.UUID
	ItemID   uuid.UUID
	Quantity decimal.Decimal
}

// ItemClaims partitions the claims on a single item from one member's
// perspective.
type ItemClaims struct {
	Item                 Item
	MyClaim              *Claim
	OtherClaims          []Claim
	OtherClaimedQuantity decimal.Decimal
}

// ClaimedItem is one claim's contribution to a member's settlement,
// kept for breakdown display.
type ClaimedItem struct {
	Item     Item
	Quantity decimal.Decimal
	Cost     decimal.Decimal
}

// MemberSettlement is the computed amount one member owes.
type MemberSettlement struct {
	Member       Member
	Subtotal     decimal.Decimal
	TaxShare     decimal.Decimal
	TipShare     decimal.Decimal
	TotalOwed    decimal.Decimal
	ClaimedItems []ClaimedItem
}

// Result bundles the per-member settlements with reconciliation figures.
// At most one of UnclaimedAmount and OverclaimedAmount is positive; both are
// zero when the receipt is fully and exactly claimed. Neither is an error
// state: partial and over-claiming are normal while a room is open.
type Result struct {
	Settlements       []MemberSettlement
	ClaimedSubtotal   decimal.Decimal
	UnclaimedAmount   decimal.Decimal
	OverclaimedAmount decimal.Decimal
}
