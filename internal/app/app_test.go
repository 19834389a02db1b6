package app_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/noah-isme/cbhub/internal/app"
	"github.com/noah-isme/cbhub/internal/config"
	"github.com/noah-isme/cbhub/internal/events"
	"github.com/noah-isme/cbhub/internal/obs"
	"github.com/noah-isme/cbhub/internal/payment"
	"github.com/noah-isme/cbhub/internal/ratelimit"
)

func init() {
	obs.MustRegisterDomainMetrics("cbhub_app_test", prometheus.NewRegistry())
}

const secret = "sk_test_app"

type harness struct {
	router http.Handler
	stream events.RedisStream
	deps   *app.Dependencies
}

func newHarness(t *testing.T, verifyPerMinute int) harness {
	t.Helper()
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer "+secret, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/ref_ok") {
			_, _ = io.WriteString(w, `{"status":true,"message":"Verification successful","data":{"status":"success","reference":"ref_ok","amount":20000,"currency":"GHS","customer":{"email":"ama@example.com"}}}`)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"status":false,"message":"Transaction reference not found"}`)
	}))
	t.Cleanup(provider.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg, err := config.LoadForTests(map[string]string{
		"PAYSTACK_SECRET_KEY":          secret,
		"RATE_LIMIT_VERIFY_PER_MINUTE": "0",
	})
	require.NoError(t, err)
	cfg.RateLimitVerifyPerMinute = verifyPerMinute

	stream := events.RedisStream{Client: rdb}
	deps := &app.Dependencies{
		Redis:     rdb,
		Validator: validator.New(validator.WithRequiredStructEnabled()),
		Limiter:   ratelimit.Fixed{Store: memory.NewStore()},
		Provider:  payment.NewPaystack(secret, provider.URL, 0, nil),
		Bus:       &events.Bus{Store: stream},
		Logger:    zerolog.Nop(),
	}
	return harness{router: app.NewRouter(cfg, deps, app.RouterOptions{}), stream: stream, deps: deps}
}

func (h harness) post(path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func TestVerifyPaymentRoute(t *testing.T) {
	h := newHarness(t, 30)

	rr := h.post("/verify-payment", `{"reference":"ref_ok"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"success":true`)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = h.post("/verify-payment", `{"reference":"ref_missing"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"success":false`)

	rr = h.post("/verify-payment", `{}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	recent, err := h.stream.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, events.TopicPaymentVerified, recent[0].Topic)
	require.Equal(t, "ref_ok", recent[0].Reference)
}

func TestVerifyPaymentRateLimited(t *testing.T) {
	h := newHarness(t, 1)

	require.Equal(t, http.StatusOK, h.post("/verify-payment", `{"reference":"ref_ok"}`, nil).Code)
	rr := h.post("/verify-payment", `{"reference":"ref_ok"}`, nil)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestWebhookRoute(t *testing.T) {
	h := newHarness(t, 30)
	body := `{"event":"charge.success","data":{"reference":"ref_hook","amount":20000,"currency":"GHS","customer":{"email":"ama@example.com"}}}`
	signed := http.Header{payment.SignatureHeader: []string{h.deps.Provider.Sign([]byte(body))}}

	require.Equal(t, http.StatusOK, h.post("/webhook", body, signed).Code)
	require.Equal(t, http.StatusOK, h.post("/webhook", body, signed).Code)

	rr := h.post("/webhook", body, http.Header{payment.SignatureHeader: []string{"deadbeef"}})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "Invalid signature", rr.Body.String())

	recent, err := h.stream.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, events.TopicChargeSuccess, recent[0].Topic)
}

func TestHealthRoutes(t *testing.T) {
	h := newHarness(t, 30)

	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok","redis":"ok"}`, rr.Body.String())
}

func TestBuildWithoutRedis(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"PAYSTACK_SECRET_KEY": secret,
		"REDIS_URL":           "",
		"VERIFY_MAX_ATTEMPTS": "3",
	})
	require.NoError(t, err)

	deps, err := app.Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	require.Nil(t, deps.Redis)
	require.Nil(t, deps.TaskClient)
	require.NotNil(t, deps.LimiterStore)
	require.Empty(t, deps.Bus.Notifiers)
	require.Nil(t, deps.Bus.Store)
	require.Equal(t, 3, deps.Provider.HTTP.MaxAttempts)
}
