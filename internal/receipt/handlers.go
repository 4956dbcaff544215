package receipt

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/parcener/backend/internal/common"
	"github.com/parcener/backend/internal/store"
)

// Extractor enqueues background extraction work for a receipt.
type Extractor interface {
	Enqueue(ctx context.Context, receiptID uuid.UUID) error
}

// Handler exposes receipt endpoints.
type Handler struct {
	Svc       *Service
	Extractor Extractor
}

type itemPayload struct {
	Label    string `json:"label" validate:"required"`
	Price    string `json:"price" validate:"required"`
	Quantity string `json:"quantity" validate:"required"`
}

type createPayload struct {
	Merchant   string        `json:"merchant"`
	Currency   string        `json:"currency" validate:"omitempty,len=3"`
	Subtotal   string        `json:"subtotal" validate:"required"`
	Tax        string        `json:"tax"`
	Tip        string        `json:"tip"`
	GrandTotal string        `json:"grandTotal" validate:"required"`
	Items      []itemPayload `json:"items" validate:"required,min=1,dive"`
}

type patchPayload struct {
	Merchant   *string `json:"merchant"`
	Tax        *string `json:"tax"`
	Tip        *string `json:"tip"`
	GrandTotal *string `json:"grandTotal"`
}

// ItemView is the wire shape of a line item.
type ItemView struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// View is the wire shape of a receipt. Monetary fields are rendered with two
// decimal places; quantities keep their full precision.
type View struct {
	ID         string     `json:"id"`
	Merchant   string     `json:"merchant,omitempty"`
	Currency   string     `json:"currency"`
	Subtotal   string     `json:"subtotal"`
	Tax        string     `json:"tax"`
	Tip        string     `json:"tip"`
	GrandTotal string     `json:"grandTotal"`
	Items      []ItemView `json:"items"`
}

// NewView maps a stored receipt to its wire shape.
func NewView(r store.Receipt) View {
	items := make([]ItemView, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, ItemView{
			ID:       item.ID.String(),
			Label:    item.Label,
			Price:    item.Price.StringFixed(2),
			Quantity: item.Quantity.String(),
		})
	}
	return View{
		ID:         r.ID.String(),
		Merchant:   r.Merchant,
		Currency:   r.Currency,
		Subtotal:   r.Subtotal.StringFixed(2),
		Tax:        r.Tax.StringFixed(2),
		Tip:        r.Tip.StringFixed(2),
		GrandTotal: r.GrandTotal.StringFixed(2),
		Items:      items,
	}
}

// Create handles POST /receipts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	input, err := payload.toInput()
	if err != nil {
		common.WriteError(w, err)
		return
	}
	created, err := h.Svc.Create(r.Context(), input)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, NewView(created))
}

// Get handles GET /receipts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := receiptID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	receipt, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, NewView(receipt))
}

// Patch handles PATCH /receipts/{id}.
func (h *Handler) Patch(w http.ResponseWriter, r *http.Request) {
	id, err := receiptID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var payload patchPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	input, err := payload.toInput()
	if err != nil {
		common.WriteError(w, err)
		return
	}
	updated, err := h.Svc.Patch(r.Context(), id, input)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, NewView(updated))
}

// Extract handles POST /receipts/{id}/extract.
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	if h.Extractor == nil {
		common.JSONError(w, http.StatusNotImplemented, "EXTRACTION_DISABLED", "extraction is not configured", nil)
		return
	}
	id, err := receiptID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if _, err := h.Svc.Get(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Extractor.Enqueue(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func receiptID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "receiptID"))
	if err != nil {
		return uuid.Nil, common.NewAppError("NOT_FOUND", "receipt not found", http.StatusNotFound, err)
	}
	return id, nil
}

func (p createPayload) toInput() (CreateInput, error) {
	subtotal, err := parseAmount("subtotal", p.Subtotal)
	if err != nil {
		return CreateInput{}, err
	}
	tax, err := parseOptionalAmount("tax", p.Tax)
	if err != nil {
		return CreateInput{}, err
	}
	tip, err := parseOptionalAmount("tip", p.Tip)
	if err != nil {
		return CreateInput{}, err
	}
	grandTotal, err := parseAmount("grandTotal", p.GrandTotal)
	if err != nil {
		return CreateInput{}, err
	}
	items := make([]ItemInput, 0, len(p.Items))
	for _, item := range p.Items {
		price, err := parseAmount("price", item.Price)
		if err != nil {
			return CreateInput{}, err
		}
		quantity, err := parseAmount("quantity", item.Quantity)
		if err != nil {
			return CreateInput{}, err
		}
		items = append(items, ItemInput{Label: item.Label, Price: price, Quantity: quantity})
	}
	return CreateInput{
		Merchant:   p.Merchant,
		Currency:   p.Currency,
		Subtotal:   subtotal,
		Tax:        tax,
		Tip:        tip,
		GrandTotal: grandTotal,
		Items:      items,
	}, nil
}

func (p patchPayload) toInput() (PatchInput, error) {
	input := PatchInput{Merchant: p.Merchant}
	for _, field := range []struct {
		name  string
		raw   *string
		value **decimal.Decimal
	}{
		{"tax", p.Tax, &input.Tax},
		{"tip", p.Tip, &input.Tip},
		{"grandTotal", p.GrandTotal, &input.GrandTotal},
	} {
		if field.raw == nil {
			continue
		}
		parsed, err := parseAmount(field.name, *field.raw)
		if err != nil {
			return PatchInput{}, err
		}
		*field.value = &parsed
	}
	return input, nil
}

func parseAmount(name, raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, common.NewAppError("VALIDATION_ERROR", name+" is not a valid amount", http.StatusUnprocessableEntity, err)
	}
	return value, nil
}

func parseOptionalAmount(name, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return parseAmount(name, raw)
}
