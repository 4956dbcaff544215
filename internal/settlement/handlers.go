package settlement

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parcener/backend/internal/common"
	"github.com/parcener/backend/internal/obs"
	"github.com/parcener/backend/internal/store"
)

// MemberView identifies a member inside a settlement response.
type MemberView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// ClaimedItemView is one claim's contribution to a member's total.
type ClaimedItemView struct {
	ItemID   string `json:"itemId"`
	Label    string `json:"label"`
	Quantity string `json:"quantity"`
	Cost     string `json:"cost"`
}

// MemberSettlementView is the rendered amount one member owes. All monetary
// fields are rounded to two places here, at the presentation boundary.
type MemberSettlementView struct {
	Member    MemberView        `json:"member"`
	Subtotal  string            `json:"subtotal"`
	TaxShare  string            `json:"taxShare"`
	TipShare  string            `json:"tipShare"`
	TotalOwed string            `json:"totalOwed"`
	Items     []ClaimedItemView `json:"items"`
}

// ResultView is the full settlement response for a room.
type ResultView struct {
	RoomID            string                 `json:"roomId"`
	Settlements       []MemberSettlementView `json:"settlements"`
	ClaimedSubtotal   string                 `json:"claimedSubtotal"`
	UnclaimedAmount   string                 `json:"unclaimedAmount"`
	OverclaimedAmount string                 `json:"overclaimedAmount"`
	ComputedAt        time.Time              `json:"computedAt"`
}

// NewResultView renders an engine result for the wire.
func NewResultView(roomID uuid.UUID, result Result, now time.Time) ResultView {
	settlements := make([]MemberSettlementView, 0, len(result.Settlements))
	for _, ms := range result.Settlements {
		items := make([]ClaimedItemView, 0, len(ms.ClaimedItems))
		for _, ci := range ms.ClaimedItems {
			items = append(items, ClaimedItemView{
				ItemID:   ci.Item.ID.String(),
				Label:    ci.Item.Label,
				Quantity: ci.Quantity.String(),
				Cost:     ci.Cost.StringFixed(2),
			})
		}
		settlements = append(settlements, MemberSettlementView{
			Member: MemberView{
				ID:        ms.Member.ID.String(),
				Name:      ms.Member.Name,
				AvatarURL: ms.Member.AvatarURL,
			},
			Subtotal:  ms.Subtotal.StringFixed(2),
			TaxShare:  ms.TaxShare.StringFixed(2),
			TipShare:  ms.TipShare.StringFixed(2),
			TotalOwed: ms.TotalOwed.StringFixed(2),
			Items:     items,
		})
	}
	return ResultView{
		RoomID:            roomID.String(),
		Settlements:       settlements,
		ClaimedSubtotal:   result.ClaimedSubtotal.StringFixed(2),
		UnclaimedAmount:   result.UnclaimedAmount.StringFixed(2),
		OverclaimedAmount: result.OverclaimedAmount.StringFixed(2),
		ComputedAt:        now,
	}
}

// Handler serves computed settlements.
type Handler struct {
	Rooms    store.Rooms
	Receipts store.Receipts
	Claims   store.Claims
	Cache    *Cache
	Now      func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Get handles GET /rooms/{roomID}/settlement. It loads a fresh snapshot,
// runs the engine, and caches the rendered result briefly.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomID, err := uuid.Parse(chi.URLParam(r, "roomID"))
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "room not found", nil)
		return
	}

	if view, ok := h.Cache.Get(ctx, roomID); ok {
		obs.ObserveSettlementCompute("ok", "cache", 0)
		common.JSON(w, http.StatusOK, view)
		return
	}

	started := h.now()
	room, err := h.Rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "room not found", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	receipt, err := h.Receipts.Get(ctx, room.ReceiptID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	members, err := h.Rooms.Members(ctx, roomID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	claims, err := h.Claims.ListByRoom(ctx, roomID)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	result, err := Settle(FromStoreReceipt(receipt), FromStoreClaims(claims), FromStoreMembers(members))
	if err != nil {
		obs.ObserveSettlementCompute("error", "engine", float64(time.Since(started).Milliseconds()))
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_RECEIPT_DATA", err.Error(), nil)
		return
	}
	obs.ObserveSettlementCompute("ok", "engine", float64(time.Since(started).Milliseconds()))

	view := NewResultView(roomID, result, h.now())
	h.Cache.Store(ctx, roomID, view)
	common.JSON(w, http.StatusOK, view)
}
