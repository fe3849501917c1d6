// Package events publishes booking lifecycle events so downstream consumers
// (notifications, analytics) can react without coupling to the booking core.
package events

import (
	"context"
	"time"

	"workspacemgr/pkg/kafka"
	"workspacemgr/pkg/logger"
	"workspacemgr/pkg/model"
)

const (
	TypeBookingCreated    = "booking.created"
	TypeBookingUpdated    = "booking.updated"
	TypeBookingCancelled  = "booking.cancelled"
	TypeBookingCheckedIn  = "booking.checked_in"
	TypeBookingCheckedOut = "booking.checked_out"
	TypeBookingNoShow     = "booking.no_show"
)

const schemaVersion = "1"

// BookingEvent is the payload published for every lifecycle transition.
type BookingEvent struct {
	Type       string         `json:"type"`
	TenantID   string         `json:"tenant_id"`
	BookingID  string         `json:"booking_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Booking    *model.Booking `json:"booking"`
}

// Publisher emits lifecycle events. Publishing happens after the state
// change has committed; a failed publish is logged and never rolls back the
// booking.
type Publisher interface {
	Publish(ctx context.Context, eventType string, booking *model.Booking)
}

type kafkaPublisher struct {
	producer *kafka.Producer
	source   string
	log      *logger.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, source string, log *logger.Logger) Publisher {
	return &kafkaPublisher{
		producer: producer,
		source:   source,
		log:      log,
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, eventType string, booking *model.Booking) {
	event := BookingEvent{
		Type:       eventType,
		TenantID:   booking.TenantID,
		BookingID:  booking.ID,
		OccurredAt: time.Now().UTC(),
		Booking:    booking,
	}

	msg := kafka.NewMessage().
		WithKey(booking.ID).
		WithValue(event).
		WithEventType(eventType).
		WithSource(p.source).
		WithHeader(kafka.HeaderSchemaVersion, schemaVersion).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish booking event",
			"event_type", eventType,
			"booking_id", booking.ID,
			"tenant_id", booking.TenantID,
			"error", err,
		)
		return
	}

	p.log.Debug("Booking event published",
		"event_type", eventType,
		"booking_id", booking.ID,
	)
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, *model.Booking) {}
