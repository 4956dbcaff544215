package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/parcener/backend/internal/resilience"
)

// HTTPProvider calls an extraction service over HTTP. Requests run through
// the shared resilient client so a failing pipeline trips the breaker
// instead of piling up worker retries.
type HTTPProvider struct {
	Endpoint string
	APIKey   string
	Client   resilience.HTTPClient
}

// NewHTTPProvider builds a provider with a traced transport and a breaker
// sized for an occasionally slow external pipeline.
func NewHTTPProvider(endpoint, apiKey string, timeout time.Duration, maxAttempts int) *HTTPProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Client: resilience.HTTPClient{
			Client: &http.Client{
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Breaker:     resilience.NewBreaker(5, 0.6, 30*time.Second),
			MaxAttempts: maxAttempts,
			BaseBackoff: 500 * time.Millisecond,
			Timeout:     timeout,
		},
	}
}

// Name implements Provider.
func (p *HTTPProvider) Name() string { return "http" }

type wireItem struct {
	Label    string `json:"label"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

type wireExtraction struct {
	Merchant   string     `json:"merchant"`
	Subtotal   string     `json:"subtotal"`
	Tax        string     `json:"tax"`
	Tip        string     `json:"tip"`
	GrandTotal string     `json:"grandTotal"`
	Items      []wireItem `json:"items"`
}

// Extract implements Provider.
func (p *HTTPProvider) Extract(ctx context.Context, receiptID uuid.UUID) (Extraction, error) {
	if p.Endpoint == "" {
		return Extraction{}, errors.New("extract: endpoint not configured")
	}
	body, err := json.Marshal(map[string]string{"receiptId": receiptID.String()})
	if err != nil {
		return Extraction{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Extraction{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.Client.Do(ctx, req)
	if err != nil {
		return Extraction{}, fmt.Errorf("extract: call pipeline: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Extraction{}, fmt.Errorf("extract: pipeline returned %d", resp.StatusCode)
	}

	var wire wireExtraction
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return Extraction{}, fmt.Errorf("extract: decode response: %w", err)
	}
	return wire.parse()
}

func (w wireExtraction) parse() (Extraction, error) {
	out := Extraction{Merchant: w.Merchant}
	for _, pair := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"subtotal", w.Subtotal, &out.Subtotal},
		{"tax", w.Tax, &out.Tax},
		{"tip", w.Tip, &out.Tip},
		{"grandTotal", w.GrandTotal, &out.GrandTotal},
	} {
		value, err := parseWireAmount(pair.name, pair.raw)
		if err != nil {
			return Extraction{}, err
		}
		*pair.dst = value
	}
	for i, item := range w.Items {
		price, err := parseWireAmount(fmt.Sprintf("items[%d].price", i), item.Price)
		if err != nil {
			return Extraction{}, err
		}
		quantity, err := parseWireAmount(fmt.Sprintf("items[%d].quantity", i), item.Quantity)
		if err != nil {
			return Extraction{}, err
		}
		out.Items = append(out.Items, ExtractedItem{Label: item.Label, Price: price, Quantity: quantity})
	}
	return out, nil
}

func parseWireAmount(name, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("extract: %s: %w", name, err)
	}
	return value, nil
}
