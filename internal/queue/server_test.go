package queue_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cbhub/internal/events"
	"github.com/noah-isme/cbhub/internal/queue"
)

func TestLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := queue.Logger{zerolog.New(&buf)}
	l.Info("worker ", "started")
	require.Contains(t, buf.String(), `"message":"worker started"`)
	require.Contains(t, buf.String(), `"level":"info"`)
}

func TestNewServerRejectsBadURI(t *testing.T) {
	_, err := queue.NewServer("not-a-redis-uri", 1, zerolog.Nop())
	require.Error(t, err)
}

func TestServeMuxRoutesPaymentTypes(t *testing.T) {
	mux := queue.NewServeMux(queue.PaymentHandler{})
	ev := events.Event{Topic: events.TopicChargeSuccess, Reference: "ref_1", OccurredAt: time.Now()}
	task, err := queue.NewTask(ev)
	require.NoError(t, err)

	h, pattern := mux.Handler(task)
	require.Equal(t, queue.TypeChargeSuccess, pattern)
	// no ledger configured
	require.Error(t, h.ProcessTask(context.Background(), task))

	_, pattern = mux.Handler(asynq.NewTask("other:type", nil))
	require.Empty(t, pattern)
}
