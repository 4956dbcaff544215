// Package storetest provides in-memory store implementations for tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parcener/backend/internal/events"
	"github.com/parcener/backend/internal/store"
)

// Memory implements the store interfaces with maps. Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	receipts map[uuid.UUID]store.Receipt
	rooms    map[uuid.UUID]store.Room
	members  map[uuid.UUID][]store.Member
	claims   map[uuid.UUID][]store.Claim
	events   []events.Event
	nextID   int64
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		receipts: map[uuid.UUID]store.Receipt{},
		rooms:    map[uuid.UUID]store.Room{},
		members:  map[uuid.UUID][]store.Member{},
		claims:   map[uuid.UUID][]store.Claim{},
	}
}

// Create implements store.Receipts.
func (m *Memory) Create(_ context.Context, receipt store.Receipt) (store.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.receipts[receipt.ID]; ok {
		return store.Receipt{}, store.ErrConflict
	}
	now := time.Now()
	receipt.CreatedAt = now
	receipt.UpdatedAt = now
	for i := range receipt.Items {
		receipt.Items[i].ReceiptID = receipt.ID
		receipt.Items[i].Position = i
	}
	m.receipts[receipt.ID] = receipt
	return receipt, nil
}

// Get implements store.Receipts.
func (m *Memory) Get(_ context.Context, id uuid.UUID) (store.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	receipt, ok := m.receipts[id]
	if !ok {
		return store.Receipt{}, store.ErrNotFound
	}
	return receipt, nil
}

// Update implements store.Receipts.
func (m *Memory) Update(_ context.Context, receipt store.Receipt) (store.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.receipts[receipt.ID]
	if !ok {
		return store.Receipt{}, store.ErrNotFound
	}
	receipt.CreatedAt = existing.CreatedAt
	receipt.UpdatedAt = time.Now()
	receipt.Items = existing.Items
	m.receipts[receipt.ID] = receipt
	return receipt, nil
}

// ReplaceItems implements store.Receipts.
func (m *Memory) ReplaceItems(_ context.Context, receiptID uuid.UUID, items []store.Item) ([]store.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	receipt, ok := m.receipts[receiptID]
	if !ok {
		return nil, store.ErrNotFound
	}
	for i := range items {
		items[i].ReceiptID = receiptID
		items[i].Position = i
	}
	receipt.Items = items
	receipt.UpdatedAt = time.Now()
	m.receipts[receiptID] = receipt
	return items, nil
}

// CreateRoom implements store.Rooms.Create via the Rooms view.
func (m *Memory) CreateRoom(_ context.Context, room store.Room) (store.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; ok {
		return store.Room{}, store.ErrConflict
	}
	room.State = store.RoomStateOpen
	room.CreatedAt = time.Now()
	m.rooms[room.ID] = room
	return room, nil
}

// GetRoom implements store.Rooms.Get via the Rooms view.
func (m *Memory) GetRoom(_ context.Context, id uuid.UUID) (store.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return store.Room{}, store.ErrNotFound
	}
	return room, nil
}

// ListByReceipt implements store.Rooms.
func (m *Memory) ListByReceipt(_ context.Context, receiptID uuid.UUID) ([]store.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rooms []store.Room
	for _, room := range m.rooms {
		if room.ReceiptID == receiptID {
			rooms = append(rooms, room)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.Before(rooms[j].CreatedAt) })
	return rooms, nil
}

// Lock implements store.Rooms.
func (m *Memory) Lock(_ context.Context, id uuid.UUID) (store.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return store.Room{}, store.ErrNotFound
	}
	if room.State != store.RoomStateOpen {
		return store.Room{}, store.ErrConflict
	}
	now := time.Now()
	room.State = store.RoomStateLocked
	room.LockedAt = &now
	m.rooms[id] = room
	return room, nil
}

// AddMember implements store.Rooms.
func (m *Memory) AddMember(_ context.Context, member store.Member) (store.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member.Position = len(m.members[member.RoomID])
	member.JoinedAt = time.Now()
	m.members[member.RoomID] = append(m.members[member.RoomID], member)
	return member, nil
}

// Members implements store.Rooms.
func (m *Memory) Members(_ context.Context, roomID uuid.UUID) ([]store.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Member(nil), m.members[roomID]...), nil
}

// Upsert implements store.Claims.
func (m *Memory) Upsert(_ context.Context, claim store.Claim) (store.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	claim.UpdatedAt = time.Now()
	claims := m.claims[claim.RoomID]
	for i, existing := range claims {
		if existing.MemberID == claim.MemberID && existing.ItemID == claim.ItemID {
			claims[i] = claim
			return claim, nil
		}
	}
	m.claims[claim.RoomID] = append(claims, claim)
	return claim, nil
}

// Delete implements store.Claims.
func (m *Memory) Delete(_ context.Context, roomID, memberID, itemID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	claims := m.claims[roomID]
	for i, existing := range claims {
		if existing.MemberID == memberID && existing.ItemID == itemID {
			m.claims[roomID] = append(claims[:i], claims[i+1:]...)
			return nil
		}
	}
	return nil
}

// ListByRoom implements store.Claims.
func (m *Memory) ListByRoom(_ context.Context, roomID uuid.UUID) ([]store.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Claim(nil), m.claims[roomID]...), nil
}

// InsertRoomEvent implements events.EventStore.
func (m *Memory) InsertRoomEvent(_ context.Context, roomID uuid.UUID, topic string, payload []byte) (events.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	ev := events.Event{
		ID:         m.nextID,
		RoomID:     roomID,
		Topic:      topic,
		Payload:    payload,
		OccurredAt: time.Now(),
	}
	m.events = append(m.events, ev)
	return ev, nil
}

// Events returns a copy of the recorded events.
func (m *Memory) Events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Event(nil), m.events...)
}

// Rooms adapts Memory to the store.Rooms interface, whose Create/Get names
// collide with the receipt methods on Memory itself.
func (m *Memory) Rooms() store.Rooms { return roomsView{m} }

type roomsView struct{ m *Memory }

func (v roomsView) Create(ctx context.Context, room store.Room) (store.Room, error) {
	return v.m.CreateRoom(ctx, room)
}

func (v roomsView) Get(ctx context.Context, id uuid.UUID) (store.Room, error) {
	return v.m.GetRoom(ctx, id)
}

func (v roomsView) ListByReceipt(ctx context.Context, receiptID uuid.UUID) ([]store.Room, error) {
	return v.m.ListByReceipt(ctx, receiptID)
}

func (v roomsView) Lock(ctx context.Context, id uuid.UUID) (store.Room, error) {
	return v.m.Lock(ctx, id)
}

func (v roomsView) AddMember(ctx context.Context, member store.Member) (store.Member, error) {
	return v.m.AddMember(ctx, member)
}

func (v roomsView) Members(ctx context.Context, roomID uuid.UUID) ([]store.Member, error) {
	return v.m.Members(ctx, roomID)
}
