package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"commodity-matching/internal/domain"
	"commodity-matching/internal/metrics"
)

// Runner executes one matching run; the orchestrator satisfies this
type Runner interface {
	Run(ctx context.Context, entityType domain.EntityType, entityID string) ([]*domain.Match, error)
}

// Config holds dispatcher settings
type Config struct {
	MaxAttempts int           // Total attempts per signal before giving up
	BackoffBase time.Duration // Initial delay of the exponential backoff
}

// DefaultConfig returns default dispatcher settings
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BackoffBase: 500 * time.Millisecond,
	}
}

// Dispatcher consumes fallback signals and replays matching runs.
// State machine per signal: REQUESTED -> PROCESSING -> {COMPLETED, REQUEUED};
// a requeue retries in-process with exponential backoff, and a signal that
// exhausts its attempts is completed with a logged failure so worst-case
// resource use stays bounded. Redundant executions are safe because match
// persistence is idempotent per pair.
type Dispatcher struct {
	queue   Queue
	runner  Runner
	cfg     Config
	logger  *logrus.Entry
	metrics *metrics.Registry
}

// New creates a dispatcher. metrics may be nil.
func New(queue Queue, runner Runner, cfg Config, logger *logrus.Logger, reg *metrics.Registry) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		runner:  runner,
		cfg:     cfg,
		logger:  logger.WithField("component", "fallback_dispatcher"),
		metrics: reg,
	}
}

// Run consumes signals until the context ends. A signal is acknowledged only
// after Process finishes with it; signals interrupted by shutdown stay
// unacknowledged so the transport redelivers them.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.WithFields(logrus.Fields{
		"max_attempts": d.cfg.MaxAttempts,
		"backoff_base": d.cfg.BackoffBase,
	}).Info("fallback dispatcher started")

	for {
		sig, ack, err := d.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrQueueClosed) {
				d.logger.Info("fallback dispatcher stopped")
				return nil
			}
			return err
		}
		if done := d.Process(ctx, sig); done && ack != nil {
			if err := ack(ctx); err != nil {
				d.logger.WithError(err).WithFields(logrus.Fields{
					"entity_type": sig.EntityType,
					"entity_id":   sig.EntityID,
				}).Warn("failed to acknowledge fallback signal")
			}
		}
	}
}

// Process handles one signal. It reports whether the signal is finished:
// completed, or terminally abandoned. A false return means processing was
// interrupted and the signal should be redelivered.
func (d *Dispatcher) Process(ctx context.Context, sig Signal) bool {
	log := d.logger.WithFields(logrus.Fields{
		"entity_type": sig.EntityType,
		"entity_id":   sig.EntityID,
	})
	log.WithField("state", SignalProcessing).Debug("processing fallback signal")

	remaining := d.cfg.MaxAttempts - sig.AttemptCount
	if remaining < 1 {
		// Attempts exhausted before processing; completing bounds
		// worst-case resource use. Operators are alerted out-of-band.
		log.WithFields(logrus.Fields{
			"state":    SignalCompleted,
			"attempts": sig.AttemptCount,
		}).Error("fallback matching abandoned after max attempts")
		return true
	}

	attempt := sig.AttemptCount
	backoff := retry.WithMaxRetries(uint64(remaining-1), retry.NewExponential(d.cfg.BackoffBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		_, runErr := d.runner.Run(WithAttempt(ctx, attempt), sig.EntityType, sig.EntityID)
		if runErr != nil {
			log.WithError(runErr).WithFields(logrus.Fields{
				"state":   SignalRequeued,
				"attempt": attempt,
			}).Warn("matching run failed, requeueing")
			if d.metrics != nil {
				d.metrics.FallbackRetries.Inc()
			}
			return retry.RetryableError(runErr)
		}
		return nil
	})

	switch {
	case err != nil && ctx.Err() != nil:
		log.WithError(err).WithFields(logrus.Fields{
			"state":    SignalRequeued,
			"attempts": attempt,
		}).Warn("fallback matching interrupted, leaving signal for redelivery")
		return false

	case err != nil:
		log.WithError(err).WithFields(logrus.Fields{
			"state":    SignalCompleted,
			"attempts": attempt,
		}).Error("fallback matching abandoned after max attempts")
		return true
	}

	log.WithFields(logrus.Fields{
		"state":    SignalCompleted,
		"attempts": attempt,
	}).Info("fallback matching completed")
	return true
}
