package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"peerpair/pkg/client"
	"peerpair/pkg/logger"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	mongoURIRegex        = regexp.MustCompile(`^mongodb(\+srv)?://`)
	mongoCredentialRegex = regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Port string

	JWTSecret string
	JWTIssuer string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Gateway GatewayConfig

	CallbackBaseURL string
	CallbackSealKey string

	EventsTopic         string
	EventsDLQTopic      string
	EventPublishTimeout time.Duration
	EventQueueSize      int
	NotifierGroupID     string

	Log    *logger.Logger
	Client *client.Client
}

type GatewayConfig struct {
	BaseURL          string
	ConsumerKey      string
	ConsumerSecret   string
	ShortCode        string
	PassKey          string
	TransactionType  string
	AccountReference string
	Timeout          time.Duration
	CredentialSkew   time.Duration
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		RedisAddr:     getEnvStr(EnvRedisAddr, ""),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		Port: getEnvStr(EnvPort, DefaultPort),

		JWTSecret: getEnvStr(EnvJWTSecret, ""),
		JWTIssuer: getEnvStr(EnvJWTIssuer, DefaultJWTIssuer),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Gateway: GatewayConfig{
			BaseURL:          strings.TrimSuffix(getEnvStr(EnvGatewayBaseURL, DefaultGatewayBaseURL), "/"),
			ConsumerKey:      getEnvStr(EnvGatewayConsumerKey, ""),
			ConsumerSecret:   getEnvStr(EnvGatewayConsumerSecret, ""),
			ShortCode:        getEnvStr(EnvGatewayShortCode, DefaultGatewayShortCode),
			PassKey:          getEnvStr(EnvGatewayPassKey, ""),
			TransactionType:  getEnvStr(EnvGatewayTransactionType, DefaultGatewayTransactionType),
			AccountReference: getEnvStr(EnvGatewayAccountReference, DefaultGatewayAccountReference),
			Timeout:          getEnvDuration(EnvGatewayTimeout, DefaultGatewayTimeout),
			CredentialSkew:   getEnvDuration(EnvGatewayCredentialSkew, DefaultGatewayCredentialSkew),
		},

		CallbackBaseURL: strings.TrimSuffix(getEnvStr(EnvCallbackBaseURL, ""), "/"),
		CallbackSealKey: getEnvStr(EnvCallbackSealKey, ""),

		EventsTopic:         getEnvStr(EnvEventsTopic, DefaultEventsTopic),
		EventsDLQTopic:      getEnvStr(EnvEventsDLQTopic, DefaultEventsDLQTopic),
		EventPublishTimeout: getEnvDuration(EnvEventPublishTimeout, DefaultEventPublishTimeout),
		EventQueueSize:      getEnvNum(EnvEventQueueSize, DefaultEventQueueSize),
		NotifierGroupID:     getEnvStr(EnvNotifierGroupID, DefaultNotifierGroupID),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    getEnvStr(EnvLogFormat, DefaultLogFormat),
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetRedis connects Redis when REDIS_ADDR is set. Callers fall back to
// in-process stores when cfg.Client.Redis stays nil.
func (cfg *Config) SetRedis() {
	if cfg.RedisAddr == "" {
		cfg.Log.Info("Redis not configured, using in-process stores")
		return
	}
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if !mongoURIRegex.MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}
	if cfg.RedisDB < 0 {
		errors = append(errors, fmt.Sprintf("RedisDB cannot be negative, got: %d", cfg.RedisDB))
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"GatewayTimeout", cfg.Gateway.Timeout},
		{"EventPublishTimeout", cfg.EventPublishTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", d.name, d.value))
		}
	}
	if cfg.Gateway.CredentialSkew < 0 {
		errors = append(errors, fmt.Sprintf("GatewayCredentialSkew cannot be negative, got: %s", cfg.Gateway.CredentialSkew))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.EventsTopic == "" {
		errors = append(errors, "EventsTopic cannot be empty")
	}
	if cfg.EventQueueSize <= 0 {
		errors = append(errors, fmt.Sprintf("EventQueueSize must be positive, got: %d", cfg.EventQueueSize))
	}

	return joinErrors(errors)
}

// ValidatePayments checks the settings only the booking API needs: gateway
// credentials, the public callback address, the seal key and the JWT secret.
func (cfg *Config) ValidatePayments() error {
	var errors []string

	if cfg.JWTSecret == "" {
		errors = append(errors, "JWTSecret cannot be empty")
	}
	if u, err := url.Parse(cfg.Gateway.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("GatewayBaseURL must be an absolute URL, got: %s", cfg.Gateway.BaseURL))
	}
	if cfg.Gateway.ConsumerKey == "" || cfg.Gateway.ConsumerSecret == "" {
		errors = append(errors, "Gateway consumer key and secret must be set")
	}
	if cfg.Gateway.PassKey == "" {
		errors = append(errors, "Gateway passkey must be set")
	}
	if cfg.Gateway.ShortCode == "" {
		errors = append(errors, "Gateway shortcode must be set")
	}
	if u, err := url.Parse(cfg.CallbackBaseURL); err != nil || u.Scheme != "https" && u.Scheme != "http" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("CallbackBaseURL must be an absolute http(s) URL, got: %q", cfg.CallbackBaseURL))
	}
	if key, err := base64.StdEncoding.DecodeString(cfg.CallbackSealKey); err != nil || len(key) != 32 {
		errors = append(errors, "CallbackSealKey must be a base64-encoded 32-byte key")
	}

	return joinErrors(errors)
}

func joinErrors(errors []string) error {
	if len(errors) == 0 {
		return nil
	}
	errMsg := "Configuration validation failed:\n"
	for i, err := range errors {
		errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
	}
	return fmt.Errorf("%s", errMsg)
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"redis_addr", cfg.RedisAddr,
		"redis_db", cfg.RedisDB,
		"port", cfg.Port,
		"jwt_secret_set", cfg.JWTSecret != "",
		"jwt_issuer", cfg.JWTIssuer,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"gateway_base_url", cfg.Gateway.BaseURL,
		"gateway_shortcode", cfg.Gateway.ShortCode,
		"gateway_consumer_key_set", cfg.Gateway.ConsumerKey != "",
		"gateway_passkey_set", cfg.Gateway.PassKey != "",
		"gateway_timeout", cfg.Gateway.Timeout,
		"callback_base_url", cfg.CallbackBaseURL,
		"callback_seal_key_set", cfg.CallbackSealKey != "",
		"events_topic", cfg.EventsTopic,
		"events_dlq_topic", cfg.EventsDLQTopic,
		"event_publish_timeout", cfg.EventPublishTimeout,
		"event_queue_size", cfg.EventQueueSize,
	)
}

func redactMongoURI(uri string) string {
	return mongoCredentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}
