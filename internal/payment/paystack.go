package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/cbhub/internal/common"
	"github.com/noah-isme/cbhub/internal/resilience"
)

// DefaultBaseURL is the Paystack REST API root.
const DefaultBaseURL = "https://api.paystack.co"

// SignatureHeader carries the hex HMAC-SHA512 of a webhook body.
const SignatureHeader = "x-paystack-signature"

const maxProviderBody = 1 << 20

var (
	// ErrTransport covers network errors, timeouts and provider 5xx after retries.
	ErrTransport = errors.New("payment: provider unreachable")
	// ErrMalformedResponse means the provider answered with a body we could not decode.
	ErrMalformedResponse = errors.New("payment: malformed provider response")
)

// Transaction is the subset of the verify response the storefront uses.
type Transaction struct {
	ID        int64          `json:"id"`
	Status    string         `json:"status"`
	Reference string         `json:"reference"`
	Amount    int64          `json:"amount"`
	Currency  string         `json:"currency"`
	PaidAt    string         `json:"paid_at,omitempty"`
	Channel   string         `json:"channel,omitempty"`
	Customer  Customer       `json:"customer"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Customer is the payer attached to a transaction or event.
type Customer struct {
	Email string `json:"email"`
}

// VerifyResponse is the provider envelope for GET /transaction/verify/{reference}.
type VerifyResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Succeeded reports status==true and data.status=="success".
func (v VerifyResponse) Succeeded() bool {
	if !v.Status {
		return false
	}
	tx, err := v.Transaction()
	return err == nil && tx.Status == "success"
}

// Transaction decodes the data field.
func (v VerifyResponse) Transaction() (Transaction, error) {
	var tx Transaction
	if len(v.Data) == 0 || string(v.Data) == "null" {
		return tx, nil
	}
	err := json.Unmarshal(v.Data, &tx)
	return tx, err
}

// Paystack talks to the provider API with the secret key.
type Paystack struct {
	SecretKey string
	BaseURL   string
	HTTP      *resilience.HTTPClient
}

// NewPaystack builds a provider client whose transport is traced and whose
// calls time out after timeout with one bounded retry.
func NewPaystack(secret, baseURL string, timeout time.Duration, breaker *resilience.Breaker) *Paystack {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Paystack{
		SecretKey: secret,
		BaseURL:   baseURL,
		HTTP: &resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     breaker,
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: 2,
			Jitter:      0.2,
			Timeout:     timeout,
		},
	}
}

func (p *Paystack) base() string {
	base := strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if base == "" {
		return DefaultBaseURL
	}
	return base
}

// VerifyTransaction fetches the provider's view of reference. Any decodable
// response is returned, regardless of status code below 500.
func (p *Paystack) VerifyTransaction(ctx context.Context, reference string) (VerifyResponse, error) {
	if p == nil || p.HTTP == nil {
		return VerifyResponse{}, errors.New("payment: paystack client not configured")
	}
	endpoint := fmt.Sprintf("%s/transaction/verify/%s", p.base(), url.PathEscape(reference))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return VerifyResponse{}, fmt.Errorf("payment: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.SecretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.HTTP.Do(ctx, req)
	if err != nil {
		return VerifyResponse{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return VerifyResponse{}, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	var out VerifyResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return VerifyResponse{}, fmt.Errorf("%w: status %d: %v", ErrMalformedResponse, resp.StatusCode, err)
	}
	if _, err := out.Transaction(); err != nil {
		return VerifyResponse{}, fmt.Errorf("%w: data: %v", ErrMalformedResponse, err)
	}
	return out, nil
}

// Sign returns the lowercase hex HMAC-SHA512 of body.
func (p *Paystack) Sign(body []byte) string {
	return common.HMACSHA512Hex(p.SecretKey, body)
}

// VerifySignature checks the x-paystack-signature header against body.
func (p *Paystack) VerifySignature(header string, body []byte) bool {
	return p != nil && common.ValidHMACSHA512(p.SecretKey, body, header)
}
