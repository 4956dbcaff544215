// Package claim implements claim writes: who intends to pay for what.
// Over- and under-claiming are allowed; only structurally invalid writes
// (negative quantity, unknown item, locked room) are rejected.
package claim

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/parcener/backend/internal/common"
	"github.com/parcener/backend/internal/events"
	"github.com/parcener/backend/internal/obs"
	"github.com/parcener/backend/internal/store"
)

// Bus is the subset of the event bus the service uses.
type Bus interface {
	Emit(ctx context.Context, topic string, roomID uuid.UUID, payload any) (events.Event, error)
}

// Service owns claim business rules.
type Service struct {
	claims   store.Claims
	rooms    store.Rooms
	receipts store.Receipts
	bus      Bus
}

// NewService constructs a Service.
func NewService(claims store.Claims, rooms store.Rooms, receipts store.Receipts, bus Bus) *Service {
	return &Service{claims: claims, rooms: rooms, receipts: receipts, bus: bus}
}

// Put upserts the member's claim on an item. A zero quantity removes the
// claim, mirroring the engine's treatment of zero-quantity claims as absent.
func (s *Service) Put(ctx context.Context, roomID, memberID, itemID uuid.UUID, quantity decimal.Decimal) (store.Claim, error) {
	if quantity.IsNegative() {
		obs.IncClaimWrite("put", "rejected")
		return store.Claim{}, common.NewAppError("VALIDATION_ERROR", "quantity must not be negative", http.StatusUnprocessableEntity, nil)
	}
	if err := s.checkWritable(ctx, roomID, itemID); err != nil {
		obs.IncClaimWrite("put", "rejected")
		return store.Claim{}, err
	}

	if quantity.IsZero() {
		if err := s.delete(ctx, roomID, memberID, itemID); err != nil {
			obs.IncClaimWrite("put", "error")
			return store.Claim{}, err
		}
		obs.IncClaimWrite("put", "ok")
		return store.Claim{RoomID: roomID, MemberID: memberID, ItemID: itemID, Quantity: decimal.Zero}, nil
	}

	claim, err := s.claims.Upsert(ctx, store.Claim{
		RoomID:   roomID,
		MemberID: memberID,
		ItemID:   itemID,
		Quantity: quantity,
	})
	if err != nil {
		obs.IncClaimWrite("put", "error")
		return store.Claim{}, fmt.Errorf("upsert claim: %w", err)
	}
	obs.IncClaimWrite("put", "ok")
	if s.bus != nil {
		_, _ = s.bus.Emit(ctx, events.TopicClaimUpdated, roomID, map[string]any{
			"memberId": memberID.String(),
			"itemId":   itemID.String(),
			"quantity": quantity.String(),
		})
	}
	return claim, nil
}

// Delete removes the member's claim on an item. Removing an absent claim
// succeeds.
func (s *Service) Delete(ctx context.Context, roomID, memberID, itemID uuid.UUID) error {
	if err := s.checkWritable(ctx, roomID, itemID); err != nil {
		obs.IncClaimWrite("delete", "rejected")
		return err
	}
	if err := s.delete(ctx, roomID, memberID, itemID); err != nil {
		obs.IncClaimWrite("delete", "error")
		return err
	}
	obs.IncClaimWrite("delete", "ok")
	return nil
}

func (s *Service) delete(ctx context.Context, roomID, memberID, itemID uuid.UUID) error {
	if err := s.claims.Delete(ctx, roomID, memberID, itemID); err != nil {
		return fmt.Errorf("delete claim: %w", err)
	}
	if s.bus != nil {
		_, _ = s.bus.Emit(ctx, events.TopicClaimDeleted, roomID, map[string]any{
			"memberId": memberID.String(),
			"itemId":   itemID.String(),
		})
	}
	return nil
}

// checkWritable verifies the room is open and the item belongs to the
// room's receipt.
func (s *Service) checkWritable(ctx context.Context, roomID, itemID uuid.UUID) error {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return common.NewAppError("NOT_FOUND", "room not found", http.StatusNotFound, err)
		}
		return err
	}
	if room.State != store.RoomStateOpen {
		return common.NewAppError("ROOM_LOCKED", "room is locked", http.StatusConflict, nil)
	}
	receipt, err := s.receipts.Get(ctx, room.ReceiptID)
	if err != nil {
		return fmt.Errorf("load receipt: %w", err)
	}
	for _, item := range receipt.Items {
		if item.ID == itemID {
			return nil
		}
	}
	return common.NewAppError("NOT_FOUND", "item not found on receipt", http.StatusNotFound, nil)
}
