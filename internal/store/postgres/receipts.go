// Package postgres implements the store interfaces on top of pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parcener/backend/internal/store"
)

// ReceiptRepo persists receipts and their line items.
type ReceiptRepo struct {
	db *pgxpool.Pool
}

// NewReceiptRepo constructs a ReceiptRepo.
func NewReceiptRepo(db *pgxpool.Pool) *ReceiptRepo {
	return &ReceiptRepo{db: db}
}

// Create inserts a receipt with its items in one transaction.
func (r *ReceiptRepo) Create(ctx context.Context, receipt store.Receipt) (store.Receipt, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return store.Receipt{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO receipts (id, merchant, currency, subtotal, tax, tip, grand_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, receipt.ID, receipt.Merchant, receipt.Currency, receipt.Subtotal, receipt.Tax, receipt.Tip, receipt.GrandTotal).
		Scan(&receipt.CreatedAt, &receipt.UpdatedAt)
	if err != nil {
		return store.Receipt{}, fmt.Errorf("insert receipt: %w", translateError(err))
	}

	for i := range receipt.Items {
		item := &receipt.Items[i]
		item.ReceiptID = receipt.ID
		item.Position = i
		if _, err := tx.Exec(ctx, `
			INSERT INTO receipt_items (id, receipt_id, label, price, quantity, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, item.ID, item.ReceiptID, item.Label, item.Price, item.Quantity, item.Position); err != nil {
			return store.Receipt{}, fmt.Errorf("insert item: %w", translateError(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return store.Receipt{}, fmt.Errorf("commit: %w", err)
	}
	return receipt, nil
}

// Get loads a receipt with its items ordered by position.
func (r *ReceiptRepo) Get(ctx context.Context, id uuid.UUID) (store.Receipt, error) {
	var receipt store.Receipt
	err := r.db.QueryRow(ctx, `
		SELECT id, merchant, currency, subtotal, tax, tip, grand_total, created_at, updated_at
		FROM receipts
		WHERE id = $1
	`, id).Scan(
		&receipt.ID, &receipt.Merchant, &receipt.Currency,
		&receipt.Subtotal, &receipt.Tax, &receipt.Tip, &receipt.GrandTotal,
		&receipt.CreatedAt, &receipt.UpdatedAt,
	)
	if err != nil {
		return store.Receipt{}, translateError(err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, receipt_id, label, price, quantity, position
		FROM receipt_items
		WHERE receipt_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return store.Receipt{}, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item store.Item
		if err := rows.Scan(&item.ID, &item.ReceiptID, &item.Label, &item.Price, &item.Quantity, &item.Position); err != nil {
			return store.Receipt{}, fmt.Errorf("scan item: %w", err)
		}
		receipt.Items = append(receipt.Items, item)
	}
	if err := rows.Err(); err != nil {
		return store.Receipt{}, err
	}
	return receipt, nil
}

// Update rewrites the receipt header fields. Items are immutable after
// creation; only the monetary fields and merchant can change.
func (r *ReceiptRepo) Update(ctx context.Context, receipt store.Receipt) (store.Receipt, error) {
	err := r.db.QueryRow(ctx, `
		UPDATE receipts
		SET merchant = $2, tax = $3, tip = $4, grand_total = $5, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, receipt.ID, receipt.Merchant, receipt.Tax, receipt.Tip, receipt.GrandTotal).
		Scan(&receipt.CreatedAt, &receipt.UpdatedAt)
	if err != nil {
		return store.Receipt{}, translateError(err)
	}
	return receipt, nil
}

// ReplaceItems swaps the receipt's line items wholesale, as extraction does
// when a fresh parse supersedes manual entry. Existing claims on replaced
// items are removed by the foreign key cascade.
func (r *ReceiptRepo) ReplaceItems(ctx context.Context, receiptID uuid.UUID, items []store.Item) ([]store.Item, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM receipts WHERE id = $1)`, receiptID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM receipt_items WHERE receipt_id = $1`, receiptID); err != nil {
		return nil, fmt.Errorf("clear items: %w", err)
	}
	for i := range items {
		items[i].ReceiptID = receiptID
		items[i].Position = i
		if _, err := tx.Exec(ctx, `
			INSERT INTO receipt_items (id, receipt_id, label, price, quantity, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, items[i].ID, receiptID, items[i].Label, items[i].Price, items[i].Quantity, items[i].Position); err != nil {
			return nil, fmt.Errorf("insert item: %w", translateError(err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return items, nil
}

func translateError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}
