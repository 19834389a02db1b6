package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cbhub/internal/events"
)

type captureStore struct {
	events []events.Event
	err    error
}

func (c *captureStore) Record(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

func TestEmitRecordsAndFansOut(t *testing.T) {
	store := &captureStore{}
	first, second := &captureNotifier{}, &captureNotifier{}
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	bus := events.Bus{Store: store, Notifiers: []events.Notifier{first, nil, second}, Now: func() time.Time { return fixed }}

	event, err := bus.Emit(context.Background(), events.TopicChargeSuccess, "ref_1", map[string]any{"amount": 20000})
	require.NoError(t, err)
	require.Equal(t, events.TopicChargeSuccess, event.Topic)
	require.Equal(t, "ref_1", event.Reference)
	require.Equal(t, fixed, event.OccurredAt)
	require.JSONEq(t, `{"amount":20000}`, string(event.Payload))
	require.Len(t, store.events, 1)
	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	require.Equal(t, event.ID, second.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.EqualValues(t, 20000, decoded["amount"])
}

func TestEmitJoinsHandlerErrors(t *testing.T) {
	boom := errors.New("redis down")
	failing := &captureNotifier{err: boom}
	after := &captureNotifier{}
	bus := events.Bus{Store: &captureStore{err: boom}, Notifiers: []events.Notifier{failing, after}}

	_, err := bus.Emit(context.Background(), events.TopicPaymentVerified, "ref_2", nil)
	require.ErrorIs(t, err, boom)
	require.Len(t, after.events, 1)
}

func TestEmitValidatesInput(t *testing.T) {
	bus := events.Bus{}
	_, err := bus.Emit(context.Background(), " ", "ref", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicChargeSuccess, "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicChargeSuccess, "ref", "not json")
	require.Error(t, err)
}
