package security

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func echo(captured *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		*captured = string(data)
		w.WriteHeader(http.StatusOK)
	})
}

func TestBodyLimitPassesBodyThrough(t *testing.T) {
	var captured string
	handler := BodyLimit{Max: 64}.Middleware(echo(&captured))

	body := `{"reference":"ref_123"}`
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/verify-payment", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, body, captured)
}

func TestBodyLimitRejectsOversized(t *testing.T) {
	var captured string
	handler := BodyLimit{Max: 5}.Middleware(echo(&captured))

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("excessive"))
	req.ContentLength = -1
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	require.Empty(t, captured)

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Equal(t, "PAYLOAD_TOO_LARGE", payload.Error.Code)
}

func TestBodyLimitRejectsDeclaredLength(t *testing.T) {
	var captured string
	handler := BodyLimit{Max: 5}.Middleware(echo(&captured))

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("abc"))
	req.ContentLength = 100
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestBodyLimitDisabled(t *testing.T) {
	var captured string
	handler := BodyLimit{}.Middleware(echo(&captured))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("anything at all")))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "anything at all", captured)
}
