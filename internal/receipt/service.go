// Package receipt implements receipt intake and editing. Amounts travel as
// decimals end to end; the engine in internal/settlement consumes them as-is.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/parcener/backend/internal/common"
	"github.com/parcener/backend/internal/events"
	"github.com/parcener/backend/internal/store"
)

// amountTolerance bounds how far grand_total may drift from
// subtotal + tax + tip before the receipt is rejected as inconsistent.
var amountTolerance = decimal.RequireFromString("0.01")

// Bus is the subset of the event bus the service uses.
type Bus interface {
	Emit(ctx context.Context, topic string, roomID uuid.UUID, payload any) (events.Event, error)
}

// Service owns receipt business rules.
type Service struct {
	receipts store.Receipts
	rooms    store.Rooms
	bus      Bus
}

// NewService constructs a Service.
func NewService(receipts store.Receipts, rooms store.Rooms, bus Bus) *Service {
	return &Service{receipts: receipts, rooms: rooms, bus: bus}
}

// ItemInput is one line item as supplied by the client.
type ItemInput struct {
	Label    string
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// CreateInput carries a new receipt.
type CreateInput struct {
	Merchant   string
	Currency   string
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	Tip        decimal.Decimal
	GrandTotal decimal.Decimal
	Items      []ItemInput
}

// PatchInput carries partial receipt updates. Nil fields stay unchanged.
type PatchInput struct {
	Merchant   *string
	Tax        *decimal.Decimal
	Tip        *decimal.Decimal
	GrandTotal *decimal.Decimal
}

// Create validates and stores a new receipt with its items.
func (s *Service) Create(ctx context.Context, in CreateInput) (store.Receipt, error) {
	if err := validateAmounts(in.Subtotal, in.Tax, in.Tip, in.GrandTotal); err != nil {
		return store.Receipt{}, err
	}
	if len(in.Items) == 0 {
		return store.Receipt{}, common.NewAppError("VALIDATION_ERROR", "receipt needs at least one item", http.StatusUnprocessableEntity, nil)
	}
	items := make([]store.Item, 0, len(in.Items))
	for i, item := range in.Items {
		if item.Price.IsNegative() {
			return store.Receipt{}, common.NewAppError("VALIDATION_ERROR",
				fmt.Sprintf("item %d: price must not be negative", i), http.StatusUnprocessableEntity, nil)
		}
		if !item.Quantity.IsPositive() {
			return store.Receipt{}, common.NewAppError("VALIDATION_ERROR",
				fmt.Sprintf("item %d: quantity must be positive", i), http.StatusUnprocessableEntity, nil)
		}
		items = append(items, store.Item{
			ID:       uuid.New(),
			Label:    item.Label,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}
	currency := in.Currency
	if currency == "" {
		currency = "USD"
	}
	created, err := s.receipts.Create(ctx, store.Receipt{
		ID:         uuid.New(),
		Merchant:   in.Merchant,
		Currency:   currency,
		Subtotal:   in.Subtotal,
		Tax:        in.Tax,
		Tip:        in.Tip,
		GrandTotal: in.GrandTotal,
		Items:      items,
	})
	if err != nil {
		return store.Receipt{}, fmt.Errorf("create receipt: %w", err)
	}
	return created, nil
}

// Get loads a receipt by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (store.Receipt, error) {
	receipt, err := s.receipts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Receipt{}, common.NewAppError("NOT_FOUND", "receipt not found", http.StatusNotFound, err)
		}
		return store.Receipt{}, err
	}
	return receipt, nil
}

// Patch updates the mutable receipt fields. Receipts referenced by a locked
// room are frozen.
func (s *Service) Patch(ctx context.Context, id uuid.UUID, in PatchInput) (store.Receipt, error) {
	receipt, err := s.Get(ctx, id)
	if err != nil {
		return store.Receipt{}, err
	}
	rooms, err := s.rooms.ListByReceipt(ctx, id)
	if err != nil {
		return store.Receipt{}, fmt.Errorf("list rooms: %w", err)
	}
	for _, room := range rooms {
		if room.State == store.RoomStateLocked {
			return store.Receipt{}, common.NewAppError("ROOM_LOCKED", "receipt is frozen by a locked room", http.StatusConflict, nil)
		}
	}

	if in.Merchant != nil {
		receipt.Merchant = *in.Merchant
	}
	if in.Tax != nil {
		receipt.Tax = *in.Tax
	}
	if in.Tip != nil {
		receipt.Tip = *in.Tip
	}
	if in.GrandTotal != nil {
		receipt.GrandTotal = *in.GrandTotal
	}
	if err := validateAmounts(receipt.Subtotal, receipt.Tax, receipt.Tip, receipt.GrandTotal); err != nil {
		return store.Receipt{}, err
	}

	updated, err := s.receipts.Update(ctx, receipt)
	if err != nil {
		return store.Receipt{}, fmt.Errorf("update receipt: %w", err)
	}
	updated.Items = receipt.Items

	if s.bus != nil {
		for _, room := range rooms {
			_, _ = s.bus.Emit(ctx, events.TopicReceiptUpdated, room.ID, map[string]any{
				"receiptId": id.String(),
			})
		}
	}
	return updated, nil
}

func validateAmounts(subtotal, tax, tip, grandTotal decimal.Decimal) error {
	for _, amount := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"subtotal", subtotal},
		{"tax", tax},
		{"tip", tip},
		{"grandTotal", grandTotal},
	} {
		if amount.value.IsNegative() {
			return common.NewAppError("VALIDATION_ERROR",
				fmt.Sprintf("%s must not be negative", amount.name), http.StatusUnprocessableEntity, nil)
		}
	}
	expected := subtotal.Add(tax).Add(tip)
	if grandTotal.Sub(expected).Abs().GreaterThan(amountTolerance) {
		return common.NewAppError("AMOUNT_MISMATCH",
			"grand total does not match subtotal + tax + tip", http.StatusUnprocessableEntity, nil)
	}
	return nil
}
