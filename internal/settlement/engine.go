// Package settlement computes what each room member owes for a shared
// receipt. Tax and tip are distributed proportionally to each member's share
// of the receipt subtotal. The engine is a pure function of its inputs: no
// I/O, no shared state, and identical inputs always produce identical output.
//
// All arithmetic is decimal; amounts are rounded to two places only at the
// presentation boundary, never inside the engine.
package settlement

import (
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNegativeClaimQuantity is returned for a claim with quantity below zero.
	ErrNegativeClaimQuantity = errors.New("settlement: claim quantity is negative")
	// ErrNegativeItemPrice is returned for an item priced below zero.
	ErrNegativeItemPrice = errors.New("settlement: item price is negative")
	// ErrItemQuantityNotPositive is returned when an item's claimable quantity is zero or negative.
	ErrItemQuantityNotPositive = errors.New("settlement: item quantity must be positive")
	// ErrNegativeReceiptAmount is returned when the receipt subtotal, tax or tip is negative.
	ErrNegativeReceiptAmount = errors.New("settlement: receipt amount is negative")
)

// MemberTotals sums each member's claimed costs. Every member appears in the
// output, in input order, even with no claims: "owes $0.00" must be
// distinguishable from "not in the room". Claims on unknown items are dropped
// (same policy as GroupClaims); zero-quantity claims count as absent.
func MemberTotals(items []Item, claims []Claim, members []Member) ([]MemberSettlement, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}

	itemByID := make(map[uuid.UUID]Item, len(items))
	for _, it := range items {
		itemByID[it.ID] = it
	}

	settlements := make([]MemberSettlement, len(members))
	index := make(map[uuid.UUID]int, len(members))
	for i, m := range members {
		settlements[i] = MemberSettlement{
			Member:    m,
			Subtotal:  decimal.Zero,
			TaxShare:  decimal.Zero,
			TipShare:  decimal.Zero,
			TotalOwed: decimal.Zero,
		}
		index[m.ID] = i
	}

	for _, c := range claims {
		if c.Quantity.IsNegative() {
			return nil, ErrNegativeClaimQuantity
		}
		if c.Quantity.IsZero() {
			continue
		}
		item, ok := itemByID[c.ItemID]
		if !ok {
			continue
		}
		i, ok := index[c.MemberID]
		if !ok {
			continue
		}
		unitPrice := item.Price.Div(item.Quantity)
		cost := unitPrice.Mul(c.Quantity)
		settlements[i].Subtotal = settlements[i].Subtotal.Add(cost)
		settlements[i].ClaimedItems = append(settlements[i].ClaimedItems, ClaimedItem{
			Item:     item,
			Quantity: c.Quantity,
			Cost:     cost,
		})
	}
	return settlements, nil
}

// Settle distributes the receipt's tax and tip across members proportionally
// to each member's share of the receipt subtotal (not of the claimed sum; the
// difference matters when the receipt is not fully claimed) and reports how
// much of the subtotal is unclaimed or overclaimed. Under- and over-claiming
// are ordinary transient states and never fail; only structurally invalid
// input (negative quantities, prices or receipt amounts) returns an error.
//
// A zero-subtotal receipt settles to zero for everyone, with zero
// reconciliation amounts, regardless of any claims present.
func Settle(receipt Receipt, claims []Claim, members []Member) (Result, error) {
	if receipt.Subtotal.IsNegative() || receipt.Tax.IsNegative() || receipt.Tip.IsNegative() {
		return Result{}, ErrNegativeReceiptAmount
	}

	settlements, err := MemberTotals(receipt.Items, claims, members)
	if err != nil {
		return Result{}, err
	}

	if receipt.Subtotal.IsZero() {
		for i := range settlements {
			settlements[i].Subtotal = decimal.Zero
			settlements[i].ClaimedItems = nil
		}
		return Result{
			Settlements:       settlements,
			ClaimedSubtotal:   decimal.Zero,
			UnclaimedAmount:   decimal.Zero,
			OverclaimedAmount: decimal.Zero,
		}, nil
	}

	claimedSubtotal := decimal.Zero
	for i := range settlements {
		ratio := settlements[i].Subtotal.Div(receipt.Subtotal)
		settlements[i].TaxShare = receipt.Tax.Mul(ratio)
		settlements[i].TipShare = receipt.Tip.Mul(ratio)
		settlements[i].TotalOwed = settlements[i].Subtotal.
			Add(settlements[i].TaxShare).
			Add(settlements[i].TipShare)
		claimedSubtotal = claimedSubtotal.Add(settlements[i].Subtotal)
	}

	// Highest payer first; ties keep member order.
	sort.SliceStable(settlements, func(i, j int) bool {
		return settlements[i].TotalOwed.GreaterThan(settlements[j].TotalOwed)
	})

	unclaimed := receipt.Subtotal.Sub(claimedSubtotal)
	overclaimed := claimedSubtotal.Sub(receipt.Subtotal)
	if unclaimed.IsNegative() {
		unclaimed = decimal.Zero
	}
	if overclaimed.IsNegative() {
		overclaimed = decimal.Zero
	}

	return Result{
		Settlements:       settlements,
		ClaimedSubtotal:   claimedSubtotal,
		UnclaimedAmount:   unclaimed,
		OverclaimedAmount: overclaimed,
	}, nil
}

func validateItems(items []Item) error {
	for _, it := range items {
		if it.Price.IsNegative() {
			return ErrNegativeItemPrice
		}
		if !it.Quantity.IsPositive() {
			return ErrItemQuantityNotPositive
		}
	}
	return nil
}
