package settlement

import "github.com/parcener/backend/internal/store"

// FromStoreReceipt maps a stored receipt into the engine's shape.
func FromStoreReceipt(r store.Receipt) Receipt {
	items := make([]Item, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, FromStoreItem(it))
	}
	return Receipt{
		ID:         r.ID,
		Items:      items,
		Subtotal:   r.Subtotal,
		Tax:        r.Tax,
		Tip:        r.Tip,
		GrandTotal: r.GrandTotal,
	}
}

// FromStoreItem maps a stored line item into the engine's shape.
func FromStoreItem(it store.Item) Item {
	return Item{
		ID:       it.ID,
		Label:    it.Label,
		Price:    it.Price,
		Quantity: it.Quantity,
	}
}

// FromStoreMembers maps stored members preserving join order.
func FromStoreMembers(members []store.Member) []Member {
	out := make([]Member, 0, len(members))
	for _, m := range members {
		out = append(out, Member{ID: m.ID, Name: m.Name, AvatarURL: m.AvatarURL})
	}
	return out
}

// FromStoreClaims maps stored claims preserving order.
func FromStoreClaims(claims []store.Claim) []Claim {
	out := make([]Claim, 0, len(claims))
	for _, c := range claims {
		out = append(out, Claim{MemberID: c.MemberID, ItemID: c.ItemID, Quantity: c.Quantity})
	}
	return out
}
