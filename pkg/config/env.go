package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvJWTSecret = "JWT_SECRET"
	EnvJWTIssuer = "JWT_ISSUER"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvGatewayBaseURL          = "MPESA_BASE_URL"
	EnvGatewayConsumerKey      = "MPESA_CONSUMER_KEY"
	EnvGatewayConsumerSecret   = "MPESA_CONSUMER_SECRET"
	EnvGatewayShortCode        = "MPESA_SHORTCODE"
	EnvGatewayPassKey          = "MPESA_PASSKEY"
	EnvGatewayTransactionType  = "MPESA_TRANSACTION_TYPE"
	EnvGatewayAccountReference = "MPESA_ACCOUNT_REFERENCE"
	EnvGatewayTimeout          = "MPESA_TIMEOUT"
	EnvGatewayCredentialSkew   = "MPESA_CREDENTIAL_REFRESH_SKEW"

	EnvCallbackBaseURL = "CALLBACK_BASE_URL"
	EnvCallbackSealKey = "CALLBACK_SEAL_KEY"

	EnvEventsTopic         = "BOOKING_EVENTS_TOPIC"
	EnvEventsDLQTopic      = "BOOKING_EVENTS_DLQ_TOPIC"
	EnvEventPublishTimeout = "BOOKING_EVENT_PUBLISH_TIMEOUT"
	EnvEventQueueSize      = "BOOKING_EVENT_QUEUE_SIZE"
	EnvNotifierGroupID     = "NOTIFIER_GROUP_ID"
)
