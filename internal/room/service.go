// Package room implements splitting sessions: creating a room for a receipt,
// joining it, locking it, and rendering the shared claim view.
package room

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/parcener/backend/internal/auth"
	"github.com/parcener/backend/internal/common"
	"github.com/parcener/backend/internal/events"
	"github.com/parcener/backend/internal/lock"
	"github.com/parcener/backend/internal/obs"
	"github.com/parcener/backend/internal/settlement"
	"github.com/parcener/backend/internal/store"
)

// Bus is the subset of the event bus the service uses.
type Bus interface {
	Emit(ctx context.Context, topic string, roomID uuid.UUID, payload any) (events.Event, error)
}

// Service owns room business rules. The host is the member who created the
// room; join order makes that the member at position zero.
type Service struct {
	rooms    store.Rooms
	receipts store.Receipts
	claims   store.Claims
	tokens   *auth.Tokens
	bus      Bus
	locker   lock.Locker
	lockTTL  time.Duration
}

// NewService constructs a Service.
func NewService(rooms store.Rooms, receipts store.Receipts, claims store.Claims, tokens *auth.Tokens, bus Bus, locker lock.Locker, lockTTL time.Duration) *Service {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &Service{
		rooms:    rooms,
		receipts: receipts,
		claims:   claims,
		tokens:   tokens,
		bus:      bus,
		locker:   locker,
		lockTTL:  lockTTL,
	}
}

// Membership bundles a member record with its token.
type Membership struct {
	Member       store.Member
	Token        string
	TokenExpires time.Time
}

// Create opens a room for the receipt and enrols the creator as its host.
func (s *Service) Create(ctx context.Context, receiptID uuid.UUID, name, hostName, passcode string) (store.Room, Membership, error) {
	if _, err := s.receipts.Get(ctx, receiptID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Room{}, Membership{}, common.NewAppError("NOT_FOUND", "receipt not found", http.StatusNotFound, err)
		}
		return store.Room{}, Membership{}, err
	}

	passcodeHash := ""
	if passcode != "" {
		var err error
		passcodeHash, err = auth.HashPasscode(passcode)
		if err != nil {
			return store.Room{}, Membership{}, err
		}
	}

	room, err := s.rooms.Create(ctx, store.Room{
		ID:           uuid.New(),
		ReceiptID:    receiptID,
		Name:         name,
		PasscodeHash: passcodeHash,
	})
	if err != nil {
		return store.Room{}, Membership{}, fmt.Errorf("create room: %w", err)
	}

	membership, err := s.enrol(ctx, room, hostName, "")
	if err != nil {
		return store.Room{}, Membership{}, err
	}

	if s.bus != nil {
		_, _ = s.bus.Emit(ctx, events.TopicRoomCreated, room.ID, map[string]any{
			"receiptId": receiptID.String(),
		})
	}
	return room, membership, nil
}

// Join adds a member to an open room, verifying the passcode when one is set.
func (s *Service) Join(ctx context.Context, roomID uuid.UUID, name, passcode, avatarURL string) (Membership, error) {
	room, err := s.get(ctx, roomID)
	if err != nil {
		return Membership{}, err
	}
	if room.State != store.RoomStateOpen {
		obs.IncRoomJoin("rejected")
		return Membership{}, common.NewAppError("ROOM_LOCKED", "room is locked", http.StatusConflict, nil)
	}
	if room.PasscodeHash != "" && !auth.ComparePasscode(passcode, room.PasscodeHash) {
		obs.IncRoomJoin("rejected")
		return Membership{}, common.NewAppError("INVALID_PASSCODE", "invalid passcode", http.StatusUnauthorized, nil)
	}

	membership, err := s.enrol(ctx, room, name, avatarURL)
	if err != nil {
		return Membership{}, err
	}
	obs.IncRoomJoin("ok")
	if s.bus != nil {
		_, _ = s.bus.Emit(ctx, events.TopicRoomMemberJoined, room.ID, map[string]any{
			"memberId": membership.Member.ID.String(),
		})
	}
	return membership, nil
}

// Lock transitions the room to locked. Only the host may lock, and the state
// change runs under a Redis lock so it serialises with in-flight claim
// writes.
func (s *Service) Lock(ctx context.Context, roomID, callerID uuid.UUID) (store.Room, error) {
	members, err := s.rooms.Members(ctx, roomID)
	if err != nil {
		return store.Room{}, fmt.Errorf("list members: %w", err)
	}
	if len(members) == 0 || members[0].ID != callerID {
		return store.Room{}, common.NewAppError("FORBIDDEN", "only the host can lock the room", http.StatusForbidden, nil)
	}

	var locked store.Room
	err = s.locker.WithLock(ctx, "room:finalize:"+roomID.String(), s.lockTTL, func(ctx context.Context) error {
		var lockErr error
		locked, lockErr = s.rooms.Lock(ctx, roomID)
		return lockErr
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return store.Room{}, common.NewAppError("ROOM_LOCKED", "room is already locked", http.StatusConflict, err)
		}
		if errors.Is(err, store.ErrNotFound) {
			return store.Room{}, common.NewAppError("NOT_FOUND", "room not found", http.StatusNotFound, err)
		}
		return store.Room{}, err
	}
	if s.bus != nil {
		_, _ = s.bus.Emit(ctx, events.TopicRoomLocked, roomID, nil)
	}
	return locked, nil
}

// Snapshot is the full view of a room from one member's perspective.
type Snapshot struct {
	Room    store.Room
	Receipt store.Receipt
	Members []store.Member
	Groups  []settlement.ItemClaims
}

// Snapshot loads the room with its receipt, members, and per-item claim
// groups partitioned around the viewer.
func (s *Service) Snapshot(ctx context.Context, roomID, viewerID uuid.UUID) (Snapshot, error) {
	room, err := s.get(ctx, roomID)
	if err != nil {
		return Snapshot{}, err
	}
	receipt, err := s.receipts.Get(ctx, room.ReceiptID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load receipt: %w", err)
	}
	members, err := s.rooms.Members(ctx, roomID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list members: %w", err)
	}
	claims, err := s.claims.ListByRoom(ctx, roomID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list claims: %w", err)
	}

	groups := settlement.GroupClaims(settlement.FromStoreReceipt(receipt).Items, settlement.FromStoreClaims(claims), viewerID)
	return Snapshot{
		Room:    room,
		Receipt: receipt,
		Members: members,
		Groups:  groups,
	}, nil
}

func (s *Service) get(ctx context.Context, roomID uuid.UUID) (store.Room, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Room{}, common.NewAppError("NOT_FOUND", "room not found", http.StatusNotFound, err)
		}
		return store.Room{}, err
	}
	return room, nil
}

func (s *Service) enrol(ctx context.Context, room store.Room, name, avatarURL string) (Membership, error) {
	member, err := s.rooms.AddMember(ctx, store.Member{
		ID:        uuid.New(),
		RoomID:    room.ID,
		Name:      name,
		AvatarURL: avatarURL,
	})
	if err != nil {
		return Membership{}, fmt.Errorf("add member: %w", err)
	}
	token, expiresAt, err := s.tokens.Issue(member.ID, room.ID)
	if err != nil {
		return Membership{}, fmt.Errorf("issue token: %w", err)
	}
	return Membership{Member: member, Token: token, TokenExpires: expiresAt}, nil
}
