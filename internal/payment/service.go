package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/cbhub/internal/common"
	"github.com/noah-isme/cbhub/internal/events"
	"github.com/noah-isme/cbhub/internal/obs"
)

// ErrMissingReference is returned for an empty or blank reference.
var ErrMissingReference = errors.New("payment: reference is required")

// Verification outcome labels.
const (
	ResultVerified  = "verified"
	ResultRejected  = "rejected"
	ResultMalformed = "malformed"
	ResultTransport = "transport"
	ResultInvalid   = "invalid"
)

// Verifier is the provider capability the service needs.
type Verifier interface {
	VerifyTransaction(ctx context.Context, reference string) (VerifyResponse, error)
}

// VerificationResult is what the service reports back to the client.
type VerificationResult struct {
	Success bool
	Outcome string
	Message string
	Data    json.RawMessage
}

// Service verifies provider references server-side.
type Service struct {
	Provider Verifier
	Events   *events.Bus
	Logger   zerolog.Logger
}

// Verify asks the provider about reference exactly once. Rejections and
// malformed provider bodies are results; only transport failures are errors.
func (s *Service) Verify(ctx context.Context, reference string) (VerificationResult, error) {
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Verify")
	defer span.End()

	start := time.Now()
	outcome := ResultInvalid
	defer func() {
		span.SetAttributes(
			attribute.String("payment.reference", reference),
			attribute.String("payment.verify.result", outcome),
			attribute.Float64("payment.verify.duration_ms", obs.DurationMillis(time.Since(start))),
		)
		if obs.PaymentVerifyTotal != nil {
			obs.PaymentVerifyTotal.WithLabelValues(outcome).Inc()
		}
		if obs.PaymentVerifyLatency != nil && outcome != ResultInvalid {
			obs.PaymentVerifyLatency.Observe(obs.DurationMillis(time.Since(start)))
		}
	}()

	reference = strings.TrimSpace(reference)
	if reference == "" {
		return VerificationResult{}, common.NewAppError("MISSING_REFERENCE", "No reference provided", http.StatusBadRequest, ErrMissingReference)
	}
	if s == nil || s.Provider == nil {
		outcome = ResultTransport
		return VerificationResult{}, errors.New("payment service not configured")
	}

	logger := s.Logger.With().Str("reference", reference).Logger()
	resp, err := s.Provider.VerifyTransaction(ctx, reference)
	switch {
	case errors.Is(err, ErrMalformedResponse):
		outcome = ResultMalformed
		logger.Warn().Err(err).Msg("payment_verify_malformed")
		return VerificationResult{Outcome: outcome, Message: "Payment verification failed"}, nil
	case err != nil:
		outcome = ResultTransport
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Msg("payment_verify_transport_error")
		return VerificationResult{Outcome: outcome}, common.NewAppError("VERIFY_UNAVAILABLE", "Server error during verification", http.StatusInternalServerError, err)
	case !resp.Succeeded():
		outcome = ResultRejected
		logger.Info().Bool("status", resp.Status).Str("provider_message", resp.Message).Msg("payment_verify_rejected")
		return VerificationResult{Outcome: outcome, Message: "Payment verification failed"}, nil
	}

	outcome = ResultVerified
	tx, _ := resp.Transaction()
	logger.Info().Int64("amount", tx.Amount).Str("currency", tx.Currency).Str("email", tx.Customer.Email).Msg("payment_verified")
	if s.Events != nil {
		if _, emitErr := s.Events.Emit(ctx, events.TopicPaymentVerified, reference, resp.Data); emitErr != nil {
			logger.Warn().Err(emitErr).Msg("payment_verified_emit_failed")
		}
	}
	return VerificationResult{Success: true, Outcome: outcome, Message: "Payment verified successfully", Data: resp.Data}, nil
}
