package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"peerpair/internal/directory"
	"peerpair/internal/notifier"
	"peerpair/pkg/config"
	"peerpair/pkg/kafka"
	kafka_config "peerpair/pkg/kafka/config"
	kafkamw "peerpair/pkg/kafka/middleware"
)

const ServiceName = "notifier"

func main() {
	cfg := config.Load(ServiceName)
	cfg.LogConfiguration()
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	kcfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kcfg.LogConfiguration(cfg.Log.Info)

	n := notifier.New(directory.NewMongoDirectory(cfg), notifier.NewLogDispatcher(cfg.Log), cfg.Log)

	consumer, err := kafka.NewConsumer(kcfg, cfg.EventsTopic, cfg.NotifierGroupID, cfg.EventsDLQTopic, n.Handle, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create event consumer", "error", err)
	}
	metrics := kafkamw.NewMetrics()
	consumer.Use(kafkamw.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(metrics.ConsumerMiddleware())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Starting notifier", "topic", cfg.EventsTopic, "group_id", cfg.NotifierGroupID)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Event consumer stopped", "error", err)
	}

	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close event consumer", "error", err)
	}
	snapshot := metrics.Snapshot()
	cfg.Log.Info("Notifier stopped", "consumed", snapshot.Consumed, "consume_failed", snapshot.ConsumeFailed)
}
