// Package extract turns uploaded receipts into structured line items by
// calling an external extraction pipeline from a background worker.
package extract

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExtractedItem is one parsed line item.
type ExtractedItem struct {
	Label    string
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Extraction is a parsed receipt proposal.
type Extraction struct {
	Merchant   string
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	Tip        decimal.Decimal
	GrandTotal decimal.Decimal
	Items      []ExtractedItem
}

// Provider parses a receipt. The AI/OCR pipeline itself is external; the
// worker only speaks this interface.
type Provider interface {
	Name() string
	Extract(ctx context.Context, receiptID uuid.UUID) (Extraction, error)
}

// MockProvider returns a canned extraction, for development and tests.
type MockProvider struct {
	Result Extraction
	Err    error
}

// Name implements Provider.
func (MockProvider) Name() string { return "mock" }

// Extract implements Provider.
func (m MockProvider) Extract(_ context.Context, _ uuid.UUID) (Extraction, error) {
	if m.Err != nil {
		return Extraction{}, m.Err
	}
	return m.Result, nil
}
