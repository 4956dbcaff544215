package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/parcener/backend/internal/events"
	"github.com/parcener/backend/internal/obs"
	"github.com/parcener/backend/internal/store"
)

// TaskTypeExtract is the asynq task type for receipt extraction.
const TaskTypeExtract = "receipt:extract"

type taskPayload struct {
	ReceiptID string `json:"receiptId"`
}

// NewTask builds the asynq task for a receipt.
func NewTask(receiptID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(taskPayload{ReceiptID: receiptID.String()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeExtract, payload), nil
}

// Enqueuer schedules extraction jobs. One pending job per receipt; repeat
// requests while a job is queued collapse into it.
type Enqueuer struct {
	Client      *asynq.Client
	MaxAttempts int
}

// Enqueue implements the receipt handler's Extractor interface.
func (e *Enqueuer) Enqueue(ctx context.Context, receiptID uuid.UUID) error {
	if e == nil || e.Client == nil {
		return errors.New("extract: task client not configured")
	}
	task, err := NewTask(receiptID)
	if err != nil {
		return err
	}
	maxAttempts := e.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	_, err = e.Client.EnqueueContext(ctx, task,
		asynq.MaxRetry(maxAttempts-1),
		asynq.TaskID("extract:"+receiptID.String()),
		asynq.Retention(time.Hour),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// Bus is the subset of the event bus the worker uses.
type Bus interface {
	Emit(ctx context.Context, topic string, roomID uuid.UUID, payload any) (events.Event, error)
}

// Worker processes extraction tasks: it calls the provider and applies the
// parsed result to the stored receipt.
type Worker struct {
	Receipts store.Receipts
	Rooms    store.Rooms
	Provider Provider
	Bus      Bus
	Log      zerolog.Logger
}

// Register attaches the worker's handlers to the mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeExtract, w.HandleExtract)
}

// HandleExtract runs one extraction job.
func (w *Worker) HandleExtract(ctx context.Context, task *asynq.Task) error {
	var payload taskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", asynq.SkipRetry)
	}
	receiptID, err := uuid.Parse(payload.ReceiptID)
	if err != nil {
		return fmt.Errorf("parse receipt id: %w", asynq.SkipRetry)
	}

	receipt, err := w.Receipts.Get(ctx, receiptID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			w.Log.Warn().Str("receipt_id", payload.ReceiptID).Msg("extraction target vanished")
			return nil
		}
		return fmt.Errorf("load receipt: %w", err)
	}
	rooms, err := w.Rooms.ListByReceipt(ctx, receiptID)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	for _, room := range rooms {
		if room.State == store.RoomStateLocked {
			w.Log.Info().Str("receipt_id", payload.ReceiptID).Msg("skipping extraction for frozen receipt")
			return nil
		}
	}

	started := time.Now()
	extraction, err := w.Provider.Extract(ctx, receiptID)
	elapsed := float64(time.Since(started).Milliseconds())
	if err != nil {
		obs.ObserveExtractJob(w.Provider.Name(), "error", elapsed)
		return fmt.Errorf("provider extract: %w", err)
	}
	obs.ObserveExtractJob(w.Provider.Name(), "ok", elapsed)

	if err := w.apply(ctx, receipt, extraction); err != nil {
		return err
	}
	for _, room := range rooms {
		if w.Bus != nil {
			_, _ = w.Bus.Emit(ctx, events.TopicReceiptExtracted, room.ID, map[string]any{
				"receiptId": payload.ReceiptID,
				"provider":  w.Provider.Name(),
			})
		}
	}
	w.Log.Info().
		Str("receipt_id", payload.ReceiptID).
		Str("provider", w.Provider.Name()).
		Int("items", len(extraction.Items)).
		Msg("extraction applied")
	return nil
}

func (w *Worker) apply(ctx context.Context, receipt store.Receipt, extraction Extraction) error {
	if len(extraction.Items) > 0 {
		items := make([]store.Item, 0, len(extraction.Items))
		for _, item := range extraction.Items {
			items = append(items, store.Item{
				ID:       uuid.New(),
				Label:    item.Label,
				Price:    item.Price,
				Quantity: item.Quantity,
			})
		}
		updated, err := w.Receipts.ReplaceItems(ctx, receipt.ID, items)
		if err != nil {
			return fmt.Errorf("replace items: %w", err)
		}
		receipt.Items = updated
	}

	if extraction.Merchant != "" {
		receipt.Merchant = extraction.Merchant
	}
	if !extraction.Subtotal.IsZero() {
		receipt.Subtotal = extraction.Subtotal
	}
	receipt.Tax = extraction.Tax
	receipt.Tip = extraction.Tip
	if !extraction.GrandTotal.IsZero() {
		receipt.GrandTotal = extraction.GrandTotal
	}
	if _, err := w.Receipts.Update(ctx, receipt); err != nil {
		return fmt.Errorf("update receipt: %w", err)
	}
	return nil
}
