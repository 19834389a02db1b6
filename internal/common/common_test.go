package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/verify-payment", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	require.Equal(t, "10.0.0.7", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.4")
	require.Equal(t, "198.51.100.4", ClientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	require.Equal(t, "203.0.113.9", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "verify:everyone")
	require.Equal(t, "198.51.100.4", ClientIP(req))
}

func TestHMACSHA512(t *testing.T) {
	body := []byte(`{"event":"charge.success"}`)
	sig := HMACSHA512Hex("sk_test", body)
	require.Len(t, sig, 128)
	require.True(t, ValidHMACSHA512("sk_test", body, sig))
	require.False(t, ValidHMACSHA512("sk_other", body, sig))
	require.False(t, ValidHMACSHA512("sk_test", body, "not-hex"))
	require.False(t, ValidHMACSHA512("", body, sig))
}

func TestJSONErrorShape(t *testing.T) {
	rr := httptest.NewRecorder()
	JSONError(rr, http.StatusTooManyRequests, "RATE_LIMITED", "slow down", nil)

	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "RATE_LIMITED", body["error"]["code"])
	require.NotContains(t, body["error"], "details")
}

func TestStatusOf(t *testing.T) {
	status, msg := StatusOf(NewAppError("TRANSPORT", "Server error during verification", http.StatusInternalServerError, errors.New("dial")), 400, "x")
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "Server error during verification", msg)

	status, msg = StatusOf(errors.New("boom"), http.StatusBadGateway, "fallback")
	require.Equal(t, http.StatusBadGateway, status)
	require.Equal(t, "fallback", msg)
}
