package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/parcener/backend/internal/events"
	"github.com/parcener/backend/internal/store"
	"github.com/parcener/backend/internal/store/storetest"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

type workerFixture struct {
	mem    *storetest.Memory
	bus    *events.Bus
	worker *Worker
	rec    store.Receipt
	room   store.Room
}

func newWorkerFixture(t *testing.T, provider Provider) *workerFixture {
	t.Helper()
	mem := storetest.NewMemory()
	ctx := context.Background()

	rec, err := mem.Create(ctx, store.Receipt{
		ID:         uuid.New(),
		Merchant:   "pending upload",
		Currency:   "USD",
		Subtotal:   dec(t, "0"),
		Tax:        dec(t, "0"),
		Tip:        dec(t, "0"),
		GrandTotal: dec(t, "0"),
		Items: []store.Item{
			{ID: uuid.New(), Label: "placeholder", Price: dec(t, "0"), Quantity: dec(t, "1")},
		},
	})
	require.NoError(t, err)

	room, err := mem.Rooms().Create(ctx, store.Room{ID: uuid.New(), ReceiptID: rec.ID, Name: "dinner"})
	require.NoError(t, err)

	bus := &events.Bus{Store: mem}
	return &workerFixture{
		mem: mem,
		bus: bus,
		worker: &Worker{
			Receipts: mem,
			Rooms:    mem.Rooms(),
			Provider: provider,
			Bus:      bus,
			Log:      zerolog.Nop(),
		},
		rec:  rec,
		room: room,
	}
}

func TestWorkerAppliesExtraction(t *testing.T) {
	provider := MockProvider{Result: Extraction{
		Merchant:   "Casa Lupe",
		Subtotal:   dec(t, "23.00"),
		Tax:        dec(t, "2.07"),
		Tip:        dec(t, "4.60"),
		GrandTotal: dec(t, "29.67"),
		Items: []ExtractedItem{
			{Label: "Tacos al pastor", Price: dec(t, "12.00"), Quantity: dec(t, "3")},
			{Label: "Horchata", Price: dec(t, "11.00"), Quantity: dec(t, "2")},
		},
	}}
	fx := newWorkerFixture(t, provider)

	task, err := NewTask(fx.rec.ID)
	require.NoError(t, err)
	require.NoError(t, fx.worker.HandleExtract(context.Background(), task))

	got, err := fx.mem.Get(context.Background(), fx.rec.ID)
	require.NoError(t, err)
	require.Equal(t, "Casa Lupe", got.Merchant)
	require.True(t, got.Subtotal.Equal(dec(t, "23.00")))
	require.True(t, got.GrandTotal.Equal(dec(t, "29.67")))
	require.Len(t, got.Items, 2)
	require.Equal(t, "Tacos al pastor", got.Items[0].Label)
	require.Equal(t, 0, got.Items[0].Position)
	require.Equal(t, 1, got.Items[1].Position)

	evts := fx.mem.Events()
	require.Len(t, evts, 1)
	require.Equal(t, events.TopicReceiptExtracted, evts[0].Topic)
	require.Equal(t, fx.room.ID, evts[0].RoomID)
}

func TestWorkerSkipsFrozenReceipt(t *testing.T) {
	provider := MockProvider{Result: Extraction{Merchant: "should not apply"}}
	fx := newWorkerFixture(t, provider)

	_, err := fx.mem.Rooms().Lock(context.Background(), fx.room.ID)
	require.NoError(t, err)

	task, err := NewTask(fx.rec.ID)
	require.NoError(t, err)
	require.NoError(t, fx.worker.HandleExtract(context.Background(), task))

	got, err := fx.mem.Get(context.Background(), fx.rec.ID)
	require.NoError(t, err)
	require.Equal(t, "pending upload", got.Merchant)
	require.Empty(t, fx.mem.Events())
}

func TestWorkerProviderFailureRetries(t *testing.T) {
	provider := MockProvider{Err: errors.New("pipeline down")}
	fx := newWorkerFixture(t, provider)

	task, err := NewTask(fx.rec.ID)
	require.NoError(t, err)
	err = fx.worker.HandleExtract(context.Background(), task)
	require.ErrorContains(t, err, "pipeline down")
}

func TestWorkerMissingReceiptIsTerminal(t *testing.T) {
	fx := newWorkerFixture(t, MockProvider{})

	task, err := NewTask(uuid.New())
	require.NoError(t, err)
	require.NoError(t, fx.worker.HandleExtract(context.Background(), task))
	require.Empty(t, fx.mem.Events())
}

func TestHTTPProviderExtract(t *testing.T) {
	receiptID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, receiptID.String(), body["receiptId"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(wireExtraction{
			Merchant:   "Casa Lupe",
			Subtotal:   "23.00",
			Tax:        "2.07",
			Tip:        "4.60",
			GrandTotal: "29.67",
			Items: []wireItem{
				{Label: "Tacos al pastor", Price: "12.00", Quantity: "3"},
			},
		})
	}))
	defer srv.Close()

	provider := NewHTTPProvider(srv.URL, "sekrit", 5*time.Second, 1)
	got, err := provider.Extract(context.Background(), receiptID)
	require.NoError(t, err)
	require.Equal(t, "Casa Lupe", got.Merchant)
	require.True(t, got.Subtotal.Equal(dec(t, "23.00")))
	require.Len(t, got.Items, 1)
	require.True(t, got.Items[0].Quantity.Equal(dec(t, "3")))
}

func TestHTTPProviderBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	provider := NewHTTPProvider(srv.URL, "", 5*time.Second, 1)
	_, err := provider.Extract(context.Background(), uuid.New())
	require.ErrorContains(t, err, "502")
}

func TestHTTPProviderMalformedAmounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"merchant":"x","subtotal":"not-a-number"}`))
	}))
	defer srv.Close()

	provider := NewHTTPProvider(srv.URL, "", 5*time.Second, 1)
	_, err := provider.Extract(context.Background(), uuid.New())
	require.ErrorContains(t, err, "subtotal")
}
