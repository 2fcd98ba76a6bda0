package events

import (
	"context"
	"roomio/pkg/kafka"
)

const source = "reservations"

// KafkaPublisher fans lifecycle events out through the shared event topic,
// keyed by room id so one room's events stay ordered.
type KafkaPublisher struct {
	producer *kafka.Producer
}

func NewKafkaPublisher(producer *kafka.Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := kafka.NewMessage().
		WithKey(event.RoomID).
		WithValue(event).
		WithEventID("").
		WithEventType(string(event.Type)).
		WithSource(source).
		Build()
	if err != nil {
		return err
	}

	return p.producer.Publish(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
