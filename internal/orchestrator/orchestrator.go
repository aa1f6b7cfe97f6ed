// Package orchestrator composes the matching pipeline: load trigger, fetch
// counter-side candidates, hard-filter, score, risk-gate, threshold, dedupe,
// persist, rank, emit events. It is the only place the pure stages and the
// adapters meet.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"commodity-matching/internal/dispatcher"
	"commodity-matching/internal/domain"
	"commodity-matching/internal/events"
	"commodity-matching/internal/matching"
	"commodity-matching/internal/metrics"
	"commodity-matching/internal/risk"
	"commodity-matching/internal/storage"
)

var (
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrCandidateFetch    = errors.New("candidate fetch failed")
)

const defaultWorkers = 16

// ScoreAdjuster is an optional post-risk, pre-threshold score adjustment
// hook. The default is identity; concrete adjustment strategies plug in here.
type ScoreAdjuster interface {
	Adjust(req *domain.Requirement, av *domain.Availability, score float64) float64
}

// Orchestrator runs the matching pipeline for one trigger at a time.
// All configuration is injected at construction and immutable afterwards;
// concurrent Run invocations are safe and rely on the match repository's
// pair uniqueness for convergence.
type Orchestrator struct {
	cfg      matching.Config
	entities storage.EntitySource
	matches  storage.MatchRepository
	gate     *risk.Gate
	sink     events.Sink
	fallback dispatcher.Queue
	adjuster ScoreAdjuster
	workers  int
	logger   *logrus.Entry
	metrics  *metrics.Registry
	now      func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithWorkers bounds parallel candidate evaluation
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithScoreAdjuster installs a post-risk score adjustment hook
func WithScoreAdjuster(a ScoreAdjuster) Option {
	return func(o *Orchestrator) { o.adjuster = a }
}

// WithMetrics wires a metrics registry
func WithMetrics(reg *metrics.Registry) Option {
	return func(o *Orchestrator) { o.metrics = reg }
}

// WithClock overrides the evaluation clock (for testing)
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator. fallback may be nil when no asynchronous
// completion path is deployed; partial runs are then logged only.
func New(cfg matching.Config, entities storage.EntitySource, matches storage.MatchRepository,
	gate *risk.Gate, sink events.Sink, fallback dispatcher.Queue, logger *logrus.Logger, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching config: %w", err)
	}

	o := &Orchestrator{
		cfg:      cfg,
		entities: entities,
		matches:  matches,
		gate:     gate,
		sink:     sink,
		fallback: fallback,
		workers:  defaultWorkers,
		logger:   logger.WithField("component", "orchestrator"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run executes one matching pass for the triggering entity and returns every
// surviving candidate's match, newly persisted and pre-existing alike, ranked
// by adjusted score. It never mutates requirement or availability quantities.
func (o *Orchestrator) Run(ctx context.Context, entityType domain.EntityType, entityID string) ([]*domain.Match, error) {
	start := o.now()
	if o.metrics != nil {
		o.metrics.RunsTotal.Inc()
		defer func() {
			o.metrics.RunDurationSec.Observe(o.now().Sub(start).Seconds())
		}()
	}

	log := o.logger.WithFields(logrus.Fields{
		"entity_type": entityType,
		"entity_id":   entityID,
	})

	pairs, err := o.collectPairs(ctx, entityType, entityID, log)
	if err != nil {
		if o.metrics != nil {
			o.metrics.RunsFailed.Inc()
		}
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	survivors, deferred := o.evaluate(ctx, pairs, log)

	results := o.persist(ctx, entityType, survivors, log)

	if deferred {
		// Candidates were dropped for infrastructure reasons (deadline
		// abort or risk-gate failure), not verdicts. A fallback pass
		// re-evaluates them; persistence idempotency keeps the rest safe.
		log.Warn("run incomplete, deferring dropped candidates to fallback")
		o.publishFallback(ctx, entityType, entityID)
	}

	out := make([]*domain.Match, 0, len(results))
	for _, c := range results {
		out = append(out, candidateMatch(c))
	}
	return out, nil
}

// pair is one requirement/availability combination to evaluate
type pair struct {
	req *domain.Requirement
	av  *domain.Availability
}

// collectPairs loads the trigger entity and fetches counter-side candidates.
// A non-matchable trigger yields an empty run, not an error.
func (o *Orchestrator) collectPairs(ctx context.Context, entityType domain.EntityType, entityID string, log *logrus.Entry) ([]pair, error) {
	now := o.now()

	switch entityType {
	case domain.EntityTypeRequirement:
		req, err := o.entities.GetRequirement(ctx, entityID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCandidateFetch, err)
		}
		if !req.Matchable(now) {
			log.Debug("trigger requirement not matchable, skipping run")
			return nil, nil
		}
		if req.Intent != domain.IntentDirectBuy {
			log.WithField("intent", req.Intent).Debug("intent routed to another engine, skipping run")
			return nil, nil
		}
		avs, err := o.entities.ActiveAvailabilities(ctx, req.CommodityID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCandidateFetch, err)
		}
		pairs := make([]pair, 0, len(avs))
		for _, av := range avs {
			pairs = append(pairs, pair{req: req, av: av})
		}
		return pairs, nil

	case domain.EntityTypeAvailability:
		av, err := o.entities.GetAvailability(ctx, entityID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCandidateFetch, err)
		}
		if !av.Matchable(now) {
			log.Debug("trigger availability not matchable, skipping run")
			return nil, nil
		}
		reqs, err := o.entities.ActiveRequirements(ctx, av.CommodityID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCandidateFetch, err)
		}
		pairs := make([]pair, 0, len(reqs))
		for _, req := range reqs {
			if req.Intent != domain.IntentDirectBuy {
				continue
			}
			pairs = append(pairs, pair{req: req, av: av})
		}
		return pairs, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
}

// evaluate runs filter -> score -> risk gate -> threshold across all pairs
// with a bounded worker pool. Per-candidate failures exclude only that
// candidate. Returns surviving candidates, and whether dropped candidates
// should be deferred to the fallback path (deadline abort or a risk-gate
// infrastructure failure, as opposed to a verdict).
func (o *Orchestrator) evaluate(ctx context.Context, pairs []pair, log *logrus.Entry) ([]*matching.Candidate, bool) {
	now := o.now()
	results := make([]*matching.Candidate, len(pairs))
	var deferred atomic.Bool

	g := new(errgroup.Group)
	g.SetLimit(o.workers)
	for i, p := range pairs {
		if ctx.Err() != nil {
			deferred.Store(true)
			break
		}
		i, p := i, p
		g.Go(func() error {
			c, d := o.evaluateOne(ctx, p, now, log)
			if d {
				deferred.Store(true)
			}
			results[i] = c
			return nil
		})
	}
	g.Wait()

	survivors := make([]*matching.Candidate, 0, len(results))
	for _, c := range results {
		if c != nil {
			survivors = append(survivors, c)
		}
	}
	return survivors, deferred.Load()
}

// evaluateOne runs the pipeline for a single pair. A nil candidate means the
// pair was excluded; deferred reports an exclusion the fallback path should
// re-evaluate.
func (o *Orchestrator) evaluateOne(ctx context.Context, p pair, now time.Time, log *logrus.Entry) (c *matching.Candidate, deferred bool) {
	if o.metrics != nil {
		o.metrics.CandidatesSeen.Inc()
	}

	if err := p.req.Validate(); err != nil {
		log.WithError(err).WithField("requirement_id", p.req.ID).Warn("skipping malformed requirement")
		return nil, false
	}
	if err := p.av.Validate(); err != nil {
		log.WithError(err).WithField("availability_id", p.av.ID).Warn("skipping malformed availability")
		return nil, false
	}

	ok, reason := matching.Passes(p.req, p.av, o.cfg, now)
	if !ok {
		if o.metrics != nil {
			o.metrics.CandidatesFiltered.Inc()
		}
		log.WithFields(logrus.Fields{
			"requirement_id":  p.req.ID,
			"availability_id": p.av.ID,
			"reason":          reason,
		}).Debug("pair hard-filtered")
		return nil, false
	}

	score, breakdown := matching.Score(p.req, p.av, o.cfg)
	if score < o.cfg.AcceptThreshold {
		// No risk penalty can raise a below-threshold score, so the
		// gate call is skipped entirely.
		return nil, false
	}

	if ctx.Err() != nil {
		return nil, true
	}

	adjusted, excluded, verdict, err := o.gate.Apply(ctx, p.req, p.av, score)
	if err != nil {
		if o.metrics != nil {
			o.metrics.RiskFailures.Inc()
		}
		log.WithError(err).WithFields(logrus.Fields{
			"requirement_id":  p.req.ID,
			"availability_id": p.av.ID,
		}).Warn("risk assessment failed, excluding candidate")
		return nil, true
	}
	if excluded {
		if o.metrics != nil {
			o.metrics.CandidatesBlocked.Inc()
		}
		return nil, false
	}

	breakdown.RiskPenaltyApplied = verdict.Status == domain.RiskWarn

	if o.adjuster != nil {
		adjusted = o.adjuster.Adjust(p.req, p.av, adjusted)
	}
	if adjusted < o.cfg.AcceptThreshold {
		return nil, false
	}

	return &matching.Candidate{
		Requirement:  p.req,
		Availability: p.av,
		Breakdown:    breakdown,
		PreRiskScore: score,
		Score:        adjusted,
		Risk:         verdict,
	}, false
}

// persist dedupes survivors against the repository, writes new PENDING
// matches, emits one match.created event per new match, and returns the full
// ranked result set (new and pre-existing).
func (o *Orchestrator) persist(ctx context.Context, trigger domain.EntityType, survivors []*matching.Candidate, log *logrus.Entry) []*matching.Candidate {
	matching.Rank(survivors, trigger)

	results := make([]*matching.Candidate, 0, len(survivors))
	for _, c := range survivors {
		match := &domain.Match{
			ID:             uuid.New().String(),
			RequirementID:  c.Requirement.ID,
			AvailabilityID: c.Availability.ID,
			Score:          c.Score,
			Breakdown:      c.Breakdown,
			Risk:           c.Risk,
			Status:         domain.MatchStatusPending,
			CreatedAt:      o.now(),
		}

		err := o.matches.Create(ctx, match)
		switch {
		case err == nil:
			if o.metrics != nil {
				o.metrics.MatchesCreated.Inc()
			}
			c.PersistedID = match.ID
			c.Status = match.Status
			c.CreatedAt = match.CreatedAt
			results = append(results, c)
			o.emitCreated(ctx, match, log)

		case errors.Is(err, storage.ErrMatchExists):
			// Concurrent trigger or earlier run already holds the
			// pair. Idempotent no-op, surfaced in the result set.
			if o.metrics != nil {
				o.metrics.MatchesDeduped.Inc()
			}
			existing, ferr := o.matches.FindLiveByPair(ctx, c.Requirement.ID, c.Availability.ID)
			if ferr != nil {
				log.WithError(ferr).WithFields(logrus.Fields{
					"requirement_id":  c.Requirement.ID,
					"availability_id": c.Availability.ID,
				}).Warn("live match vanished during dedupe")
				continue
			}
			c.Existing = true
			c.PersistedID = existing.ID
			c.Status = existing.Status
			c.Score = existing.Score
			c.Breakdown = existing.Breakdown
			c.Risk = existing.Risk
			c.CreatedAt = existing.CreatedAt
			results = append(results, c)

		default:
			log.WithError(err).WithFields(logrus.Fields{
				"requirement_id":  c.Requirement.ID,
				"availability_id": c.Availability.ID,
			}).Error("failed to persist match")
		}
	}

	matching.Rank(results, trigger)
	return results
}

func (o *Orchestrator) emitCreated(ctx context.Context, match *domain.Match, log *logrus.Entry) {
	if o.sink == nil {
		return
	}
	err := o.sink.MatchCreated(ctx, events.MatchCreated{
		MatchID:        match.ID,
		RequirementID:  match.RequirementID,
		AvailabilityID: match.AvailabilityID,
		Score:          match.Score,
	})
	if err != nil {
		// At-least-once is acceptable downstream; a failed emit is not
		// fatal to the run.
		log.WithError(err).WithField("match_id", match.ID).Warn("failed to emit match.created")
	}
}

// publishFallback queues an asynchronous completion signal. Publishing must
// survive the run's own expired deadline, so cancellation is detached while
// the attempt count carried by the run's context is preserved.
func (o *Orchestrator) publishFallback(runCtx context.Context, entityType domain.EntityType, entityID string) {
	if o.fallback == nil {
		return
	}
	if o.metrics != nil {
		o.metrics.FallbackSignals.Inc()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), 2*time.Second)
	defer cancel()
	err := o.fallback.Publish(ctx, dispatcher.Signal{
		EntityType:   entityType,
		EntityID:     entityID,
		AttemptCount: dispatcher.Attempt(runCtx),
	})
	if err != nil {
		o.logger.WithError(err).WithFields(logrus.Fields{
			"entity_type": entityType,
			"entity_id":   entityID,
		}).Error("failed to publish fallback signal")
	}
}

// candidateMatch materializes the match view of a ranked candidate
func candidateMatch(c *matching.Candidate) *domain.Match {
	return &domain.Match{
		ID:             c.PersistedID,
		RequirementID:  c.Requirement.ID,
		AvailabilityID: c.Availability.ID,
		Score:          c.Score,
		Breakdown:      c.Breakdown,
		Risk:           c.Risk,
		Status:         c.Status,
		CreatedAt:      c.CreatedAt,
	}
}
