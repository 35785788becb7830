package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "peerpair"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisDB = 0

	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultJWTIssuer = "peerpair"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultGatewayBaseURL          = "https://sandbox.safaricom.co.ke"
	DefaultGatewayShortCode        = "174379"
	DefaultGatewayTransactionType  = "CustomerPayBillOnline"
	DefaultGatewayAccountReference = "PeerPair"
	DefaultGatewayTimeout          = 10 * time.Second
	DefaultGatewayCredentialSkew   = 60 * time.Second

	DefaultEventsTopic         = "peerpair.booking-events"
	DefaultEventsDLQTopic      = "peerpair.booking-events.dlq"
	DefaultEventPublishTimeout = 5 * time.Second
	DefaultEventQueueSize      = 1024
	DefaultNotifierGroupID     = "peerpair-notifier"
)
