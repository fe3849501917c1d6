package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "workspacemgr"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// A confirmed booking with no check-in is flipped to no-show once its
	// start time is more than this far in the past.
	DefaultNoShowGrace = 2 * time.Hour

	DefaultSweepInterval = 5 * time.Minute
	DefaultSweepLockTTL  = 2 * time.Minute
	DefaultSlotLockTTL   = 10 * time.Second

	// Check-in opens this long before the booked start time.
	DefaultCheckInEarlyWindow = 30 * time.Minute

	DefaultPageSize        = 20
	DefaultMaxPageSize     = 100
	DefaultMaxUpcomingDays = 90

	DefaultBookingEventTopic = "booking.lifecycle"
	DefaultBookingEventDLQ   = "booking.lifecycle.dlq"
)
