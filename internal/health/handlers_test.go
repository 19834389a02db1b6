package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cbhub/internal/health"
	"github.com/noah-isme/cbhub/internal/resilience"
)

type stubChecker struct {
	redisErr error
}

func (s stubChecker) PingRedis(context.Context, time.Duration) error {
	return s.redisErr
}

func readyStatus(t *testing.T, h health.Handler) (int, map[string]string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var status map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	return rr.Code, status
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadyWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	code, status := readyStatus(t, health.Handler{Checker: health.RedisChecker{Client: client}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", status["redis"])
}

func TestReadyRedisDisabled(t *testing.T) {
	code, status := readyStatus(t, health.Handler{Checker: health.RedisChecker{}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "disabled", status["redis"])
}

func TestReadyRedisDown(t *testing.T) {
	code, status := readyStatus(t, health.Handler{Checker: stubChecker{redisErr: errors.New("redis down")}, RedisTimeout: 10 * time.Millisecond})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "degraded", status["status"])
	require.Equal(t, "redis down", status["redis"])
}

func TestReadyReportsBreakers(t *testing.T) {
	breaker := resilience.NewBreaker(1, 0.5, time.Minute).WithTarget("paystack_health")
	breaker.Report(context.Background(), false)

	code, status := readyStatus(t, health.Handler{Checker: stubChecker{}, Breakers: []*resilience.Breaker{breaker, nil}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "open", status["breaker_paystack_health"])
}
