package main

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"roomio/internal/events"
	"roomio/pkg/kafka"
	kafkaconfig "roomio/pkg/kafka/config"
	"roomio/pkg/logger"
)

const (
	ServiceName     = "notifier"
	consumerGroupID = "roomio-notifier"
)

// The notifier tails the reservation event topic and surfaces lifecycle
// changes to downstream channels. For now that channel is the log; the
// consumer group keeps its offset so a restart resumes where it left off.
func main() {
	log := logger.New(logger.Config{
		Level:   logger.INFO,
		Format:  logger.JSON,
		Service: ServiceName,
	})

	kafkaCfg, err := kafkaconfig.Load()
	if err != nil {
		log.Fatal("Invalid Kafka configuration", "error", err)
	}

	consumer, err := kafka.NewConsumer(kafkaCfg, kafkaCfg.ReservationEventsTopic, consumerGroupID, handleEvent(log))
	if err != nil {
		log.Fatal("Failed to create Kafka consumer", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Notifier started", "topic", kafkaCfg.ReservationEventsTopic, "group", consumerGroupID)

	err = consumer.Run(ctx, func(err error) {
		log.Error("Failed to process event", "error", err)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Consumer stopped", "error", err)
	}

	if err := consumer.Close(); err != nil {
		log.Error("Failed to close consumer", "error", err)
	}
	log.Info("Notifier stopped")
}

func handleEvent(log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event events.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return err
		}

		log.Info("Reservation event",
			"type", event.Type,
			"reservation_id", event.ReservationID,
			"room_id", event.RoomID,
			"user_id", event.UserID,
			"start_time", event.StartTime,
			"end_time", event.EndTime,
			"event_id", msg.Headers[kafka.HeaderEventID],
		)
		return nil
	}
}
