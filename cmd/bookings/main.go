package main

import (
	"peerpair/internal/bookings/events"
	"peerpair/internal/bookings/handler"
	"peerpair/internal/bookings/repository"
	"peerpair/internal/bookings/service"
	"peerpair/internal/bookings/validator"
	"peerpair/internal/directory"
	"peerpair/internal/payments/gateway"
	"peerpair/pkg/app"
	"peerpair/pkg/config"
	"peerpair/pkg/kafka"
	kafka_config "peerpair/pkg/kafka/config"
	kafkamw "peerpair/pkg/kafka/middleware"
	"peerpair/pkg/sealer"
)

const (
	ServiceName     = "bookings"
	CallbackPurpose = "booking-callback"
)

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.ValidatePayments(); err != nil {
		cfg.Log.Fatal("Invalid payment configuration", "error", err)
	}

	cfg.LogConfiguration()
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Bookings service")

	metrics := kafkamw.NewMetrics()
	producer := initProducer(cfg, metrics)

	serverApp := app.NewApplication(cfg)
	serverApp.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close event producer", "error", err)
		}
	})

	bookingHandler, callbackHandler, emitter := initServices(cfg, producer)
	// Registered last so it runs first: queued events drain before the producer closes.
	serverApp.OnShutdown(emitter.Close)

	serverApp.SetApp(
		handler.NewHealthHandler(cfg.Client.Mongo, metrics, cfg.Log),
		callbackHandler,
		bookingHandler,
	)
	serverApp.Run()
}

func initProducer(cfg *config.Config, metrics *kafkamw.Metrics) *kafka.Producer {
	kcfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kcfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kcfg, cfg.EventsTopic, cfg.EventsDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create event producer", "error", err)
	}
	producer.Use(kafkamw.LoggingProducerMiddleware(cfg.Log))
	producer.Use(metrics.ProducerMiddleware())

	cfg.Log.Info("Event producer initialized", "topic", cfg.EventsTopic, "dlq_topic", cfg.EventsDLQTopic)
	return producer
}

func initServices(cfg *config.Config, producer *kafka.Producer) (*handler.BookingHandler, *handler.CallbackHandler, *events.KafkaEmitter) {
	callbackSealer, err := sealer.New(cfg.CallbackSealKey, CallbackPurpose)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize callback sealer", "error", err)
	}

	credentials := gateway.NewOAuthCredentials(cfg.Gateway, cfg.Client.Redis, cfg.Log)
	gatewayClient := gateway.NewClient(cfg.Gateway, credentials, cfg.Log)

	emitter := events.NewKafkaEmitter(producer, events.EmitterConfig{
		PublishTimeout: cfg.EventPublishTimeout,
		QueueSize:      cfg.EventQueueSize,
	}, cfg.Log)
	bookingValidator := validator.NewBookingValidator(cfg.Log)
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	partyDirectory := directory.NewMongoDirectory(cfg)

	ledger := service.NewLedger(bookingRepo, partyDirectory, cfg)
	initiator := service.NewPaymentInitiator(ledger, gatewayClient, callbackSealer, emitter, bookingValidator, cfg)
	reconciler := service.NewCallbackReconciler(ledger, callbackSealer, emitter, cfg)
	coordinator := service.NewCoordinator(ledger, emitter, cfg)

	cfg.Log.Info("Booking services initialized",
		"database", cfg.MongoDatabaseName,
		"gateway", cfg.Gateway.BaseURL,
		"credential_cache", cfg.Client.Redis != nil,
	)

	return handler.NewBookingHandler(ledger, initiator, coordinator, cfg.Log),
		handler.NewCallbackHandler(reconciler, cfg.Log),
		emitter
}
