package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parcener/backend/internal/store"
)

// ClaimRepo persists item claims.
type ClaimRepo struct {
	db *pgxpool.Pool
}

// NewClaimRepo constructs a ClaimRepo.
func NewClaimRepo(db *pgxpool.Pool) *ClaimRepo {
	return &ClaimRepo{db: db}
}

// Upsert inserts or replaces the member's claim on an item.
func (r *ClaimRepo) Upsert(ctx context.Context, claim store.Claim) (store.Claim, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO claims (room_id, member_id, item_id, quantity, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (member_id, item_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()
		RETURNING updated_at
	`, claim.RoomID, claim.MemberID, claim.ItemID, claim.Quantity).
		Scan(&claim.UpdatedAt)
	if err != nil {
		return store.Claim{}, fmt.Errorf("upsert claim: %w", translateError(err))
	}
	return claim, nil
}

// Delete removes the member's claim on an item. Deleting an absent claim is
// not an error.
func (r *ClaimRepo) Delete(ctx context.Context, roomID, memberID, itemID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM claims
		WHERE room_id = $1 AND member_id = $2 AND item_id = $3
	`, roomID, memberID, itemID)
	if err != nil {
		return fmt.Errorf("delete claim: %w", err)
	}
	return nil
}

// ListByRoom returns every claim in the room ordered by item then recency,
// so aggregation sees a stable order.
func (r *ClaimRepo) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]store.Claim, error) {
	rows, err := r.db.Query(ctx, `
		SELECT room_id, member_id, item_id, quantity, updated_at
		FROM claims
		WHERE room_id = $1
		ORDER BY item_id, updated_at
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	var claims []store.Claim
	for rows.Next() {
		var c store.Claim
		if err := rows.Scan(&c.RoomID, &c.MemberID, &c.ItemID, &c.Quantity, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}
