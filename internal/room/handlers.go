package room

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parcener/backend/internal/common"
	"github.com/parcener/backend/internal/receipt"
	"github.com/parcener/backend/internal/settlement"
	"github.com/parcener/backend/internal/store"
)

// Handler exposes room endpoints.
type Handler struct {
	Svc *Service
}

type createPayload struct {
	ReceiptID string `json:"receiptId" validate:"required,uuid4"`
	Name      string `json:"name" validate:"required,max=120"`
	HostName  string `json:"hostName" validate:"required,max=80"`
	Passcode  string `json:"passcode" validate:"omitempty,min=4,max=72"`
}

type joinPayload struct {
	Name      string `json:"name" validate:"required,max=80"`
	Passcode  string `json:"passcode"`
	AvatarURL string `json:"avatarUrl" validate:"omitempty,url"`
}

// MemberView is the wire shape of a member.
type MemberView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	IsHost    bool   `json:"isHost"`
}

// MembershipView is returned from create and join, carrying the token the
// client must present on subsequent requests.
type MembershipView struct {
	Member       MemberView `json:"member"`
	Token        string     `json:"token"`
	TokenExpires time.Time  `json:"tokenExpiresAt"`
}

// RoomView is the wire shape of a room.
type RoomView struct {
	ID          string     `json:"id"`
	ReceiptID   string     `json:"receiptId"`
	Name        string     `json:"name"`
	State       string     `json:"state"`
	HasPasscode bool       `json:"hasPasscode"`
	LockedAt    *time.Time `json:"lockedAt,omitempty"`
}

// ClaimView is one claim inside an item group.
type ClaimView struct {
	MemberID string `json:"memberId"`
	Quantity string `json:"quantity"`
}

// ItemGroupView is the per-item claim breakdown from the viewer's side.
type ItemGroupView struct {
	Item                 receipt.ItemView `json:"item"`
	MyClaim              *ClaimView       `json:"myClaim,omitempty"`
	OtherClaims          []ClaimView      `json:"otherClaims"`
	OtherClaimedQuantity string           `json:"otherClaimedQuantity"`
}

// SnapshotView is the full room snapshot.
type SnapshotView struct {
	Room    RoomView        `json:"room"`
	Receipt receipt.View    `json:"receipt"`
	Members []MemberView    `json:"members"`
	Items   []ItemGroupView `json:"items"`
}

func newRoomView(room store.Room) RoomView {
	return RoomView{
		ID:          room.ID.String(),
		ReceiptID:   room.ReceiptID.String(),
		Name:        room.Name,
		State:       room.State,
		HasPasscode: room.PasscodeHash != "",
		LockedAt:    room.LockedAt,
	}
}

func newMemberView(member store.Member) MemberView {
	return MemberView{
		ID:        member.ID.String(),
		Name:      member.Name,
		AvatarURL: member.AvatarURL,
		IsHost:    member.Position == 0,
	}
}

func newMembershipView(m Membership) MembershipView {
	return MembershipView{
		Member:       newMemberView(m.Member),
		Token:        m.Token,
		TokenExpires: m.TokenExpires,
	}
}

func newClaimView(c settlement.Claim) ClaimView {
	return ClaimView{MemberID: c.MemberID.String(), Quantity: c.Quantity.String()}
}

func newSnapshotView(s Snapshot) SnapshotView {
	members := make([]MemberView, 0, len(s.Members))
	for _, m := range s.Members {
		members = append(members, newMemberView(m))
	}
	items := make([]ItemGroupView, 0, len(s.Groups))
	for _, group := range s.Groups {
		view := ItemGroupView{
			Item: receipt.ItemView{
				ID:       group.Item.ID.String(),
				Label:    group.Item.Label,
				Price:    group.Item.Price.StringFixed(2),
				Quantity: group.Item.Quantity.String(),
			},
			OtherClaims:          make([]ClaimView, 0, len(group.OtherClaims)),
			OtherClaimedQuantity: group.OtherClaimedQuantity.String(),
		}
		if group.MyClaim != nil {
			claim := newClaimView(*group.MyClaim)
			view.MyClaim = &claim
		}
		for _, other := range group.OtherClaims {
			view.OtherClaims = append(view.OtherClaims, newClaimView(other))
		}
		items = append(items, view)
	}
	return SnapshotView{
		Room:    newRoomView(s.Room),
		Receipt: receipt.NewView(s.Receipt),
		Members: members,
		Items:   items,
	}
}

// Create handles POST /rooms.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	receiptID, err := uuid.Parse(payload.ReceiptID)
	if err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "receiptId is not a valid uuid", nil)
		return
	}
	room, membership, err := h.Svc.Create(r.Context(), receiptID, payload.Name, payload.HostName, payload.Passcode)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"room":       newRoomView(room),
		"membership": newMembershipView(membership),
	})
}

// Join handles POST /rooms/{roomID}/join.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var payload joinPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	membership, err := h.Svc.Join(r.Context(), roomID, payload.Name, payload.Passcode, payload.AvatarURL)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, newMembershipView(membership))
}

// Lock handles POST /rooms/{roomID}/lock.
func (h *Handler) Lock(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	callerID, ok := common.MemberID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing member identity", nil)
		return
	}
	locked, err := h.Svc.Lock(r.Context(), roomID, callerID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, newRoomView(locked))
}

// Snapshot handles GET /rooms/{roomID}.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	viewerID, ok := common.MemberID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing member identity", nil)
		return
	}
	snapshot, err := h.Svc.Snapshot(r.Context(), roomID, viewerID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, newSnapshotView(snapshot))
}

func roomID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "roomID"))
	if err != nil {
		return uuid.Nil, common.NewAppError("NOT_FOUND", "room not found", http.StatusNotFound, err)
	}
	return id, nil
}
