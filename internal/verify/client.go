// Package verify asks the storefront backend whether a provider reference
// corresponds to a successful payment.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/cbhub/internal/resilience"
)

var (
	// ErrMissingReference is returned without any network call for a blank reference.
	ErrMissingReference = errors.New("verify: reference is required")
	// ErrTransport covers network failures, timeouts, 5xx and undecodable responses.
	ErrTransport = errors.New("verify: backend unreachable")
)

const (
	defaultTimeout  = 10 * time.Second
	defaultAttempts = 2
	maxResponseBody = 1 << 20
)

// Result is the backend's verdict for a reference.
type Result struct {
	Success bool
	Message string
	Data    json.RawMessage
}

type verifyRequest struct {
	Reference string `json:"reference"`
}

type verifyResponse struct {
	Success *bool           `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Client calls POST {BaseURL}/verify-payment.
type Client struct {
	BaseURL string
	HTTP    resilience.HTTPClient
	Logger  zerolog.Logger
}

// NewClient returns a client with one bounded retry, a per-attempt timeout and
// a breaker targeted at the backend.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	breaker := resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("verify_backend").WithLogger(logger)
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     breaker,
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: defaultAttempts,
			Jitter:      0.2,
			Timeout:     timeout,
		},
		Logger: logger,
	}
}

// Verify posts the reference and classifies the answer. A well-formed
// {success:false} reply is a Result, not an error.
func (c *Client) Verify(ctx context.Context, reference string) (Result, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Result{}, ErrMissingReference
	}
	body, err := json.Marshal(verifyRequest{Reference: reference})
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/verify-payment", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("verify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		c.Logger.Warn().Err(err).Str("reference", reference).Msg("verify_transport_error")
		return Result{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Result{}, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	var payload verifyResponse
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Success == nil {
		c.Logger.Warn().Int("status", resp.StatusCode).Str("reference", reference).Msg("verify_undecodable_response")
		return Result{}, fmt.Errorf("%w: undecodable response (status %d)", ErrTransport, resp.StatusCode)
	}
	return Result{Success: *payload.Success, Message: payload.Message, Data: payload.Data}, nil
}
