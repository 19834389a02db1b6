package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cbhub/internal/events"
	"github.com/noah-isme/cbhub/internal/obs"
	"github.com/noah-isme/cbhub/internal/payment"
)

// Ledger records confirmed charges and receipt delivery.
type Ledger interface {
	Record(ctx context.Context, rec payment.ChargeRecord) (bool, error)
	MarkNotified(ctx context.Context, reference string) (bool, error)
	Notified(ctx context.Context, reference string) (bool, error)
}

// Locker serialises work per key.
type Locker interface {
	Key(name string) string
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// PaymentHandler records payment events in the ledger and sends one receipt per reference.
type PaymentHandler struct {
	Ledger   Ledger
	Locker   Locker
	Receipts events.Notifier
	LockTTL  time.Duration
	Logger   zerolog.Logger
}

// Register mounts the handler for every payment task type.
func (h PaymentHandler) Register(mux *asynq.ServeMux) {
	mux.Handle(TypeChargeSuccess, h)
	mux.Handle(TypePaymentVerified, h)
}

// ProcessTask implements asynq.Handler.
func (h PaymentHandler) ProcessTask(ctx context.Context, t *asynq.Task) (err error) {
	result := "ok"
	defer func() {
		if err != nil {
			result = "error"
			if errors.Is(err, asynq.SkipRetry) {
				result = "skipped"
			}
		}
		if obs.PaymentTaskTotal != nil {
			obs.PaymentTaskTotal.WithLabelValues(t.Type(), result).Inc()
		}
	}()

	if h.Ledger == nil {
		return errors.New("queue: ledger not configured")
	}
	event, err := DecodeEvent(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	source := payment.SourceWebhook
	if t.Type() == TypePaymentVerified {
		source = payment.SourceVerify
	}
	rec, err := payment.RecordFromTransaction(event.Payload, source, event.OccurredAt)
	if err != nil {
		h.Logger.Warn().Err(err).Str("type", t.Type()).Str("reference", event.Reference).Msg("task_payload_invalid")
		return fmt.Errorf("queue: %v: %w", err, asynq.SkipRetry)
	}
	logger := h.Logger.With().Str("reference", rec.Reference).Str("source", source).Logger()

	work := func(ctx context.Context) error {
		created, err := h.Ledger.Record(ctx, rec)
		if err != nil {
			return err
		}
		logger.Info().Bool("first_confirmation", created).Int64("amount", rec.Amount).Msg("ledger_recorded")
		return h.sendReceipt(ctx, event, rec.Reference, logger)
	}
	if h.Locker == nil {
		return work(ctx)
	}
	ttl := h.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return h.Locker.WithLock(ctx, h.Locker.Key("charge:"+rec.Reference), ttl, work)
}

func (h PaymentHandler) sendReceipt(ctx context.Context, event events.Event, reference string, logger zerolog.Logger) error {
	if h.Receipts == nil {
		return nil
	}
	sent, err := h.Ledger.Notified(ctx, reference)
	if err != nil {
		return err
	}
	if sent {
		return nil
	}
	if err := h.Receipts.Notify(ctx, event); err != nil {
		return fmt.Errorf("queue: send receipt: %w", err)
	}
	if _, err := h.Ledger.MarkNotified(ctx, reference); err != nil {
		return err
	}
	logger.Info().Msg("receipt_sent")
	return nil
}
