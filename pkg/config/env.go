package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvNoShowGrace       = "NOSHOW_GRACE"
	EnvSweepInterval     = "SWEEP_INTERVAL"
	EnvSweepLockTTL      = "SWEEP_LOCK_TTL"
	EnvSlotLockTTL       = "SLOT_LOCK_TTL"
	EnvCheckInEarly      = "CHECKIN_EARLY_WINDOW"
	EnvDefaultPageSize   = "DEFAULT_PAGE_SIZE"
	EnvMaxPageSize       = "MAX_PAGE_SIZE"
	EnvMaxUpcomingDays   = "MAX_UPCOMING_DAYS"
	EnvBookingEventTopic = "BOOKING_EVENT_TOPIC"
	EnvBookingEventDLQ   = "BOOKING_EVENT_DLQ_TOPIC"
)
