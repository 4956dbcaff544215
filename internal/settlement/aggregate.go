package settlement

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GroupClaims partitions the room's claims by item into the viewing member's
// own claim (at most one per item) and everyone else's. Claims referencing an
// item that is not in the item list are dropped: they are stale leftovers of
// an item edit or a cross-receipt mixup, tolerated here so a transiently
// inconsistent snapshot never crashes a render. Output order follows the item
// list; OtherClaims preserve the claims-list order.
func GroupClaims(items []Item, claims []Claim, viewerID uuid.UUID) []ItemClaims {
	byItem := make(map[uuid.UUID][]Claim, len(items))
	for _, c := range claims {
		if c.Quantity.IsZero() {
			continue
		}
		byItem[c.ItemID] = append(byItem[c.ItemID], c)
	}

	groups := make([]ItemClaims, 0, len(items))
	for _, item := range items {
		group := ItemClaims{Item: item, OtherClaimedQuantity: decimal.Zero}
		for _, c := range byItem[item.ID] {
			if c.MemberID == viewerID {
				mine := c
				group.MyClaim = &mine
				continue
			}
			group.OtherClaims = append(group.OtherClaims, c)
			group.OtherClaimedQuantity = group.OtherClaimedQuantity.Add(c.Quantity)
		}
		groups = append(groups, group)
	}
	return groups
}
