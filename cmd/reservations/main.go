package main

import (
	"roomio/internal/events"
	"roomio/internal/reservations/handler"
	"roomio/internal/reservations/repository"
	"roomio/internal/reservations/service"
	"roomio/internal/reservations/validator"
	"roomio/internal/rooms"
	"roomio/pkg/app"
	"roomio/pkg/config"
	"roomio/pkg/kafka"
	kafkaconfig "roomio/pkg/kafka/config"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Reservations service")

	roomDirectory := rooms.NewMongoDirectory(cfg.Client.Mongo, cfg.MongoDatabaseName)
	publisher, closePublisher := initPublisher(cfg)
	reservationService := initServices(cfg, roomDirectory, publisher)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		handler.NewReservationHandler(reservationService, roomDirectory, cfg.Log),
		handler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
	)
	serverApp.OnShutdown(closePublisher)
	serverApp.Run()
}

func initServices(cfg *config.Config, roomDirectory rooms.Directory, publisher events.Publisher) service.ReservationService {
	reservationValidator := validator.NewReservationValidator(cfg.Log)
	reservationRepo := repository.NewMongoReservationRepository(cfg)
	lockRepo := repository.NewMongoRoomLockRepository(cfg.Client.Mongo, cfg.MongoDatabaseName)

	reservationService := service.NewReservationService(
		reservationRepo,
		lockRepo,
		roomDirectory,
		service.OwnerAuthorizer{},
		publisher,
		reservationValidator,
		cfg,
	)

	cfg.Log.Info("Reservation service initialized", "database", cfg.MongoDatabaseName)
	return reservationService
}

// initPublisher wires the Kafka publisher. Events are best-effort, so a
// missing broker downgrades to the no-op publisher instead of failing boot.
func initPublisher(cfg *config.Config) (events.Publisher, func()) {
	kafkaCfg, err := kafkaconfig.Load()
	if err != nil {
		cfg.Log.Warn("Invalid Kafka configuration, events disabled", "error", err)
		return events.NopPublisher{}, func() {}
	}

	producer, err := kafka.NewProducer(kafkaCfg, kafkaCfg.ReservationEventsTopic)
	if err != nil {
		cfg.Log.Warn("Kafka producer unavailable, events disabled", "error", err)
		return events.NopPublisher{}, func() {}
	}

	publisher := events.NewKafkaPublisher(producer)
	cfg.Log.Info("Kafka publisher initialized", "topic", kafkaCfg.ReservationEventsTopic)
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Warn("Failed to close Kafka publisher", "error", err)
		}
	}
}
