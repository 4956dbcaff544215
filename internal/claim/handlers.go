package claim

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/parcener/backend/internal/common"
)

// Handler exposes claim endpoints. Member identity comes from the token;
// members can only write their own claims.
type Handler struct {
	Svc *Service
}

type putPayload struct {
	Quantity string `json:"quantity" validate:"required"`
}

// ClaimView is the wire shape of a claim.
type ClaimView struct {
	MemberID string `json:"memberId"`
	ItemID   string `json:"itemId"`
	Quantity string `json:"quantity"`
}

// Put handles PUT /rooms/{roomID}/claims/{itemID}.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	roomID, itemID, memberID, err := claimScope(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var payload putPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	quantity, err := decimal.NewFromString(payload.Quantity)
	if err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "quantity is not a valid number", nil)
		return
	}

	claim, err := h.Svc.Put(r.Context(), roomID, memberID, itemID, quantity)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if claim.Quantity.IsZero() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	common.JSON(w, http.StatusOK, ClaimView{
		MemberID: claim.MemberID.String(),
		ItemID:   claim.ItemID.String(),
		Quantity: claim.Quantity.String(),
	})
}

// Delete handles DELETE /rooms/{roomID}/claims/{itemID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	roomID, itemID, memberID, err := claimScope(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Svc.Delete(r.Context(), roomID, memberID, itemID); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func claimScope(r *http.Request) (roomID, itemID, memberID uuid.UUID, err error) {
	roomID, err = uuid.Parse(chi.URLParam(r, "roomID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, uuid.Nil, common.NewAppError("NOT_FOUND", "room not found", http.StatusNotFound, err)
	}
	itemID, err = uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, uuid.Nil, common.NewAppError("NOT_FOUND", "item not found", http.StatusNotFound, err)
	}
	memberID, ok := common.MemberID(r.Context())
	if !ok {
		return uuid.Nil, uuid.Nil, uuid.Nil, common.NewAppError("UNAUTHORIZED", "missing member identity", http.StatusUnauthorized, nil)
	}
	return roomID, itemID, memberID, nil
}
