package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parcener/backend/internal/store"
)

// RoomRepo persists rooms and their members.
type RoomRepo struct {
	db *pgxpool.Pool
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *pgxpool.Pool) *RoomRepo {
	return &RoomRepo{db: db}
}

// Create inserts a room in the open state.
func (r *RoomRepo) Create(ctx context.Context, room store.Room) (store.Room, error) {
	room.State = store.RoomStateOpen
	err := r.db.QueryRow(ctx, `
		INSERT INTO rooms (id, receipt_id, name, passcode_hash, state)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, room.ID, room.ReceiptID, room.Name, room.PasscodeHash, room.State).
		Scan(&room.CreatedAt)
	if err != nil {
		return store.Room{}, translateError(err)
	}
	return room, nil
}

// Get loads one room.
func (r *RoomRepo) Get(ctx context.Context, id uuid.UUID) (store.Room, error) {
	var room store.Room
	err := r.db.QueryRow(ctx, `
		SELECT id, receipt_id, name, passcode_hash, state, created_at, locked_at
		FROM rooms
		WHERE id = $1
	`, id).Scan(
		&room.ID, &room.ReceiptID, &room.Name, &room.PasscodeHash,
		&room.State, &room.CreatedAt, &room.LockedAt,
	)
	if err != nil {
		return store.Room{}, translateError(err)
	}
	return room, nil
}

// ListByReceipt returns every room created for the receipt.
func (r *RoomRepo) ListByReceipt(ctx context.Context, receiptID uuid.UUID) ([]store.Room, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, receipt_id, name, passcode_hash, state, created_at, locked_at
		FROM rooms
		WHERE receipt_id = $1
		ORDER BY created_at
	`, receiptID)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []store.Room
	for rows.Next() {
		var room store.Room
		if err := rows.Scan(
			&room.ID, &room.ReceiptID, &room.Name, &room.PasscodeHash,
			&room.State, &room.CreatedAt, &room.LockedAt,
		); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// Lock transitions the room from open to locked. Locking an already locked
// room returns ErrConflict.
func (r *RoomRepo) Lock(ctx context.Context, id uuid.UUID) (store.Room, error) {
	var room store.Room
	err := r.db.QueryRow(ctx, `
		UPDATE rooms
		SET state = $2, locked_at = now()
		WHERE id = $1 AND state = $3
		RETURNING id, receipt_id, name, passcode_hash, state, created_at, locked_at
	`, id, store.RoomStateLocked, store.RoomStateOpen).Scan(
		&room.ID, &room.ReceiptID, &room.Name, &room.PasscodeHash,
		&room.State, &room.CreatedAt, &room.LockedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the room does not exist or it is already locked.
			if _, getErr := r.Get(ctx, id); getErr == nil {
				return store.Room{}, store.ErrConflict
			}
			return store.Room{}, store.ErrNotFound
		}
		return store.Room{}, err
	}
	return room, nil
}

// AddMember appends a member to the room, assigning the next join position.
func (r *RoomRepo) AddMember(ctx context.Context, member store.Member) (store.Member, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO room_members (id, room_id, name, avatar_url, position)
		VALUES (
			$1, $2, $3, $4,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM room_members WHERE room_id = $2)
		)
		RETURNING position, joined_at
	`, member.ID, member.RoomID, member.Name, member.AvatarURL).
		Scan(&member.Position, &member.JoinedAt)
	if err != nil {
		return store.Member{}, fmt.Errorf("insert member: %w", translateError(err))
	}
	return member, nil
}

// Members lists the room's members in join order.
func (r *RoomRepo) Members(ctx context.Context, roomID uuid.UUID) ([]store.Member, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, room_id, name, avatar_url, position, joined_at
		FROM room_members
		WHERE room_id = $1
		ORDER BY position
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []store.Member
	for rows.Next() {
		var m store.Member
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Name, &m.AvatarURL, &m.Position, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
