package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
)

// DefaultKafkaTopic receives payment events when KAFKA_TOPIC is unset.
const DefaultKafkaTopic = "cbhub.payments"

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher forwards events to a Kafka topic keyed by reference, so all
// events for one payment land on the same partition.
type KafkaPublisher struct {
	Writer MessageWriter
}

// NewKafkaWriter builds a hash-balanced writer for brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if strings.TrimSpace(topic) == "" {
		topic = DefaultKafkaTopic
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// Notify implements Notifier.
func (p KafkaPublisher) Notify(ctx context.Context, event Event) error {
	if p.Writer == nil {
		return nil
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.Reference),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "topic", Value: []byte(event.Topic)},
			{Key: "event_id", Value: []byte(event.ID.String())},
		},
	}
	if err := p.Writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: publish %s: %w", event.Topic, err)
	}
	return nil
}
