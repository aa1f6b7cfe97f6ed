package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"commodity-matching/internal/config"
	"commodity-matching/internal/dispatcher"
	"commodity-matching/internal/events"
	"commodity-matching/internal/metrics"
	"commodity-matching/internal/orchestrator"
	"commodity-matching/internal/risk"
	"commodity-matching/internal/storage"
)

// The worker binary runs the fallback dispatcher standalone against the
// Kafka signal topic, so matching retries survive API process restarts.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	if !cfg.Kafka.Enabled() {
		logger.Fatal("KAFKA_BROKERS required for the fallback worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	entityStore := storage.NewMemoryEntityStore()
	matchRepo := storage.NewMemoryMatchRepository()
	gate := risk.NewGate(
		risk.NewHTTPAssessor(cfg.Risk.BaseURL, cfg.Risk.Timeout),
		cfg.Risk.Timeout,
		cfg.Matching.WarnPenalty,
	)

	sink := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.EventTopic, logger)
	defer sink.Close()

	queue := dispatcher.NewKafkaQueue(cfg.Kafka.Brokers, cfg.Kafka.SignalTopic, cfg.Kafka.SignalGroupID, logger)
	defer queue.Close()

	orch, err := orchestrator.New(cfg.Matching, entityStore, matchRepo, gate, sink, queue, logger,
		orchestrator.WithWorkers(cfg.Workers),
		orchestrator.WithMetrics(reg),
	)
	if err != nil {
		logger.WithError(err).Fatal("failed to build orchestrator")
	}

	disp := dispatcher.New(queue, orch, cfg.Dispatcher, logger, reg)
	if err := disp.Run(ctx); err != nil {
		logger.WithError(err).Fatal("fallback dispatcher exited")
	}
}
