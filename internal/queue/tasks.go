// Package queue moves payment events to background workers over asynq.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/cbhub/internal/events"
)

// Task types handled by the worker.
const (
	TypeChargeSuccess   = "payment:charge_success"
	TypePaymentVerified = "payment:verified"
)

// DefaultQueue is the asynq queue payment tasks are enqueued on.
const DefaultQueue = "payments"

// TypeForTopic maps an event topic to its task type.
func TypeForTopic(topic string) (string, bool) {
	switch topic {
	case events.TopicChargeSuccess:
		return TypeChargeSuccess, true
	case events.TopicPaymentVerified:
		return TypePaymentVerified, true
	default:
		return "", false
	}
}

// NewTask encodes event as an asynq task.
func NewTask(event events.Event) (*asynq.Task, error) {
	typ, ok := TypeForTopic(event.Topic)
	if !ok {
		return nil, fmt.Errorf("queue: no task type for topic %q", event.Topic)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("queue: encode event: %w", err)
	}
	return asynq.NewTask(typ, payload), nil
}

// TaskID deduplicates redelivered events for the same reference.
func TaskID(event events.Event) string {
	return event.Topic + ":" + event.Reference
}

// DecodeEvent reverses NewTask.
func DecodeEvent(t *asynq.Task) (events.Event, error) {
	var event events.Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return events.Event{}, fmt.Errorf("queue: decode %s: %w", t.Type(), err)
	}
	return event, nil
}
