package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cbhub/internal/common"
	"github.com/noah-isme/cbhub/internal/events"
	"github.com/noah-isme/cbhub/internal/obs"
)

// EventChargeSuccess is the provider event for a completed charge.
const EventChargeSuccess = "charge.success"

// SignatureVerifier authenticates webhook bodies.
type SignatureVerifier interface {
	VerifySignature(header string, body []byte) bool
}

type replayStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// WebhookEvent is the provider envelope.
type WebhookEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Webhook receives provider callbacks. Authenticated requests are always
// acknowledged with 200; the provider owns redelivery. A body that cannot be
// read in full, including one over MaxBody, cannot be authenticated and is
// answered like a bad signature.
type Webhook struct {
	Verifier  SignatureVerifier
	MaxBody   int64
	Replay    replayStore
	ReplayTTL time.Duration
	Events    *events.Bus
	Logger    zerolog.Logger
}

// Handle serves POST /webhook.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := h.read(r)
	if err != nil {
		h.count("unknown", "read_error")
		h.Logger.Warn().Err(err).Str("client_ip", common.ClientIP(r)).Msg("webhook_read_failed")
		unauthorized(w)
		return
	}
	if h.Verifier == nil || !h.Verifier.VerifySignature(r.Header.Get(SignatureHeader), body) {
		h.count("unknown", "invalid_signature")
		h.Logger.Warn().Str("client_ip", common.ClientIP(r)).Msg("webhook_invalid_signature")
		unauthorized(w)
		return
	}

	h.process(r.Context(), body)
	w.WriteHeader(http.StatusOK)
}

var errBodyTooLarge = errors.New("webhook body exceeds limit")

func (h Webhook) read(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	if h.MaxBody <= 0 {
		return io.ReadAll(r.Body)
	}
	if r.ContentLength > h.MaxBody {
		return nil, errBodyTooLarge
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, h.MaxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > h.MaxBody {
		return nil, errBodyTooLarge
	}
	return body, nil
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte("Invalid signature"))
}

func (h Webhook) process(ctx context.Context, body []byte) {
	var evt WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		h.count("unknown", "malformed")
		h.Logger.Warn().Err(err).Msg("webhook_malformed_body")
		return
	}
	name := strings.TrimSpace(evt.Event)
	if name == "" {
		name = "unknown"
	}
	logger := h.Logger.With().Str("event", name).Logger()

	if h.Replay != nil && h.ReplayTTL > 0 {
		key := "wh:paystack:" + common.Sha256Hex(body)
		fresh, err := h.Replay.SetNX(ctx, key, "1", h.ReplayTTL).Result()
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("webhook_replay_store_error")
		case !fresh:
			h.count(name, "duplicate")
			logger.Info().Msg("webhook_duplicate")
			return
		}
	}

	if name != EventChargeSuccess {
		h.count(name, "ignored")
		logger.Info().Msg("webhook_event_ignored")
		return
	}

	var tx Transaction
	if err := json.Unmarshal(evt.Data, &tx); err != nil || strings.TrimSpace(tx.Reference) == "" {
		h.count(name, "malformed")
		logger.Warn().Err(err).Msg("webhook_charge_without_reference")
		return
	}
	logger.Info().
		Str("reference", tx.Reference).
		Str("email", tx.Customer.Email).
		Int64("amount", tx.Amount).
		Str("currency", tx.Currency).
		Msg("payment_success_via_webhook")

	if h.Events != nil {
		if _, err := h.Events.Emit(ctx, events.TopicChargeSuccess, tx.Reference, evt.Data); err != nil {
			h.count(name, "error")
			logger.Error().Err(err).Str("reference", tx.Reference).Msg("webhook_emit_failed")
			return
		}
	}
	h.count(name, "processed")
}

func (h Webhook) count(event, result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(event, result).Inc()
	}
}
