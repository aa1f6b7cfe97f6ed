// Package config loads application configuration from environment variables.
// All tunables are externalized; matching weights and thresholds are loaded
// once at startup and injected immutable into the orchestrator.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"commodity-matching/internal/dispatcher"
	"commodity-matching/internal/matching"
)

// AppConfig holds all application configuration. Load it once at startup.
type AppConfig struct {
	// HTTPAddr is the listen address of the API server.
	HTTPAddr string

	// Matching is the immutable matching pipeline configuration.
	Matching matching.Config

	// Workers bounds parallel candidate evaluation per run.
	Workers int

	// Risk contains settings for the risk assessment collaborator.
	Risk RiskConfig

	// Kafka contains optional Kafka transport settings. Empty broker list
	// selects the in-memory transports.
	Kafka KafkaConfig

	// Dispatcher contains fallback dispatcher settings.
	Dispatcher dispatcher.Config
}

// RiskConfig holds risk collaborator settings
type RiskConfig struct {
	// BaseURL is the risk assessment service base URL.
	BaseURL string

	// Timeout bounds each verdict call.
	Timeout time.Duration
}

// KafkaConfig holds Kafka connection settings
type KafkaConfig struct {
	// Brokers is the broker address list (comma-separated in env).
	Brokers []string

	// EventTopic is the topic for match.created events.
	EventTopic string

	// SignalTopic is the topic for fallback signals.
	SignalTopic string

	// SignalGroupID is the consumer group of the fallback worker.
	SignalGroupID string
}

// Enabled reports whether Kafka transports are configured
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// Load reads configuration from the environment. A .env file is honored when
// present but its absence is not an error.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	mcfg := matching.DefaultConfig()
	mcfg.Weights.Quality = getEnvFloat("MATCH_WEIGHT_QUALITY", mcfg.Weights.Quality)
	mcfg.Weights.Price = getEnvFloat("MATCH_WEIGHT_PRICE", mcfg.Weights.Price)
	mcfg.Weights.Quantity = getEnvFloat("MATCH_WEIGHT_QUANTITY", mcfg.Weights.Quantity)
	mcfg.Weights.Delivery = getEnvFloat("MATCH_WEIGHT_DELIVERY", mcfg.Weights.Delivery)
	mcfg.AcceptThreshold = getEnvFloat("MATCH_ACCEPT_THRESHOLD", mcfg.AcceptThreshold)
	mcfg.PriceTolerance = getEnvFloat("MATCH_PRICE_TOLERANCE", mcfg.PriceTolerance)
	mcfg.MaxDistanceKm = getEnvFloat("MATCH_MAX_DISTANCE_KM", mcfg.MaxDistanceKm)
	mcfg.MaxQualityDeviation = getEnvFloat("MATCH_MAX_QUALITY_DEVIATION", mcfg.MaxQualityDeviation)
	mcfg.WarnPenalty = getEnvFloat("MATCH_WARN_PENALTY", mcfg.WarnPenalty)
	if err := mcfg.Validate(); err != nil {
		return nil, fmt.Errorf("matching config: %w", err)
	}

	dcfg := dispatcher.DefaultConfig()
	dcfg.MaxAttempts = getEnvInt("FALLBACK_MAX_ATTEMPTS", dcfg.MaxAttempts)
	dcfg.BackoffBase = getEnvDuration("FALLBACK_BACKOFF_BASE", dcfg.BackoffBase)

	cfg := &AppConfig{
		HTTPAddr: getEnv("APP_ADDR", ":8080"),
		Matching: mcfg,
		Workers:  getEnvInt("MATCH_WORKERS", 16),
		Risk: RiskConfig{
			BaseURL: getEnv("RISK_BASE_URL", "http://localhost:8090"),
			Timeout: getEnvDuration("RISK_TIMEOUT", 300*time.Millisecond),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(os.Getenv("KAFKA_BROKERS")),
			EventTopic:    getEnv("KAFKA_EVENT_TOPIC", "match.created"),
			SignalTopic:   getEnv("KAFKA_SIGNAL_TOPIC", "match.requested"),
			SignalGroupID: getEnv("KAFKA_SIGNAL_GROUP_ID", "matching-fallback"),
		},
		Dispatcher: dcfg,
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
