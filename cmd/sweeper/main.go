package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"workspacemgr/internal/bookings/repository"
	"workspacemgr/internal/bookings/service"
	"workspacemgr/pkg/config"
	"workspacemgr/pkg/events"
	"workspacemgr/pkg/kafka"
	kafkaconfig "workspacemgr/pkg/kafka/config"
)

const ServiceName = "sweeper"

// The sweeper is a standalone worker flagging overdue bookings as no-shows.
// It can run alongside any number of bookings instances; the sweep lock
// keeps concurrent runs from stepping on each other.
func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting no-show sweeper")

	publisher, closeProducer := initPublisher(cfg)

	bookingRepo := repository.NewMongoBookingRepository(cfg)
	lockRepo := repository.NewMongoLockRepository(cfg)
	sweeper := service.NewNoShowService(cfg, bookingRepo, lockRepo, publisher, cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown

	cfg.Log.Info("Shutdown signal received", "signal", sig)
	cancel()
	<-done

	closeProducer()
	cfg.Client.GracefulShutdown()
	cfg.Log.Info("Sweeper stopped gracefully")
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
