package verify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cbhub/internal/verify"
)

func newClient(url string, timeout time.Duration) *verify.Client {
	c := verify.NewClient(url, timeout, zerolog.Nop())
	c.HTTP.BaseBackoff = time.Millisecond
	return c
}

func TestVerifySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/verify-payment", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "ref_1", body["reference"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"status":"success"}}`))
	}))
	defer srv.Close()

	res, err := newClient(srv.URL, time.Second).Verify(context.Background(), " ref_1 ")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.JSONEq(t, `{"status":"success"}`, string(res.Data))
}

func TestVerifyRejectedIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"Verification failed"}`))
	}))
	defer srv.Close()

	res, err := newClient(srv.URL, time.Second).Verify(context.Background(), "ref_2")
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, "Verification failed", res.Message)
}

func TestVerifyRetriesOnceOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"Server error during verification"}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, time.Second).Verify(context.Background(), "ref_3")
	require.ErrorIs(t, err, verify.ErrTransport)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestVerifyTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, 30*time.Millisecond).Verify(context.Background(), "ref_4")
	require.ErrorIs(t, err, verify.ErrTransport)
}

func TestVerifyUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, time.Second).Verify(context.Background(), "ref_5")
	require.ErrorIs(t, err, verify.ErrTransport)
}

func TestVerifyMissingReference(t *testing.T) {
	_, err := newClient("http://127.0.0.1:1", time.Second).Verify(context.Background(), "  ")
	require.ErrorIs(t, err, verify.ErrMissingReference)
}
