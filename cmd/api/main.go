package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"commodity-matching/internal/api"
	"commodity-matching/internal/config"
	"commodity-matching/internal/dispatcher"
	"commodity-matching/internal/events"
	"commodity-matching/internal/metrics"
	"commodity-matching/internal/orchestrator"
	"commodity-matching/internal/risk"
	"commodity-matching/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
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

	var sink events.Sink
	var queue dispatcher.Queue
	if cfg.Kafka.Enabled() {
		kafkaSink := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.EventTopic, logger)
		defer kafkaSink.Close()
		sink = kafkaSink

		kafkaQueue := dispatcher.NewKafkaQueue(cfg.Kafka.Brokers, cfg.Kafka.SignalTopic, cfg.Kafka.SignalGroupID, logger)
		defer kafkaQueue.Close()
		queue = kafkaQueue
	} else {
		sink = events.NewMemorySink()
		memQueue := dispatcher.NewMemoryQueue(1024)
		defer memQueue.Close()
		queue = memQueue
	}

	orch, err := orchestrator.New(cfg.Matching, entityStore, matchRepo, gate, sink, queue, logger,
		orchestrator.WithWorkers(cfg.Workers),
		orchestrator.WithMetrics(reg),
	)
	if err != nil {
		logger.WithError(err).Fatal("failed to build orchestrator")
	}

	// The in-process dispatcher covers single-binary deployments; with
	// Kafka configured, cmd/worker can consume the signal topic instead.
	disp := dispatcher.New(queue, orch, cfg.Dispatcher, logger, reg)
	go func() {
		if err := disp.Run(ctx); err != nil {
			logger.WithError(err).Error("fallback dispatcher exited")
		}
	}()

	handler := api.NewHandler(entityStore, matchRepo, orch, queue, logger)
	router := api.NewRouter(handler, reg)

	logger.WithField("addr", cfg.HTTPAddr).Info("starting matching API")
	if err := router.Run(cfg.HTTPAddr); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}
