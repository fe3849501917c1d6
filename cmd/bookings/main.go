package main

import (
	"workspacemgr/internal/bookings/handler"
	"workspacemgr/internal/bookings/repository"
	"workspacemgr/internal/bookings/service"
	"workspacemgr/internal/bookings/validator"
	"workspacemgr/pkg/app"
	"workspacemgr/pkg/config"
	"workspacemgr/pkg/events"
	"workspacemgr/pkg/kafka"
	kafkaconfig "workspacemgr/pkg/kafka/config"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Bookings service")

	publisher, closeProducer := initPublisher(cfg)
	bookingService, availabilityService, sweepService := initServices(cfg, publisher)

	serverApp := app.NewApplication()
	serverApp.OnShutdown(closeProducer)
	serverApp.OnShutdown(cfg.Client.GracefulShutdown)
	serverApp.SetApp(cfg,
		handler.NewBookingHandler(cfg, bookingService, sweepService, cfg.Log),
		handler.NewAvailabilityHandler(availabilityService, cfg.Log),
	)
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher events.Publisher) (service.BookingService, service.AvailabilityService, service.NoShowService) {
	bookingValidator, err := validator.New()
	if err != nil {
		cfg.Log.Fatal("Failed to initialize validator", "error", err)
	}

	bookingRepo := repository.NewMongoBookingRepository(cfg)
	lockRepo := repository.NewMongoLockRepository(cfg)
	directoryRepo := repository.NewMongoDirectoryRepository(cfg)

	availabilityService := service.NewAvailabilityService(bookingRepo, directoryRepo, cfg.Log)
	bookingService := service.NewBookingService(
		cfg,
		bookingRepo,
		lockRepo,
		directoryRepo,
		availabilityService,
		bookingValidator,
		publisher,
		cfg.Log,
	)
	sweepService := service.NewNoShowService(cfg, bookingRepo, lockRepo, publisher, cfg.Log)

	cfg.Log.Info("Bookings service initialized", "database", cfg.MongoDatabaseName)
	return bookingService, availabilityService, sweepService
}

func initPublisher(cfg *config.Config) (events.Publisher, func()) {
	producer, err := kafka.NewProducer(kafkaconfig.Load(), cfg.BookingEventTopic, cfg.BookingEventDLQ)
	if err != nil {
		cfg.Log.Warn("Kafka producer unavailable, lifecycle events disabled", "error", err)
		return events.NopPublisher{}, func() {}
	}

	closeProducer := func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	}
	return events.NewKafkaPublisher(producer, ServiceName, cfg.Log), closeProducer
}
