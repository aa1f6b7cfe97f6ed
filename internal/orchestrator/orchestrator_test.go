package orchestrator

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"commodity-matching/internal/dispatcher"
	"commodity-matching/internal/domain"
	"commodity-matching/internal/events"
	"commodity-matching/internal/matching"
	"commodity-matching/internal/risk"
	"commodity-matching/internal/storage"
)

// The entity store filters active listings by the wall clock, so fixtures
// anchor to it; the orchestrator's injected clock pins evaluation to the
// same instant.
var testNow = time.Now().UTC().Truncate(time.Second)

// fakeAssessor returns configurable verdicts per seller and can fail a fixed
// number of calls for one seller to simulate risk-gate timeouts.
type fakeAssessor struct {
	mu        sync.Mutex
	verdicts  map[string]domain.RiskVerdict // seller_party_id -> verdict
	failLeft  map[string]int                // seller_party_id -> failing calls remaining
	callCount int
}

func newFakeAssessor() *fakeAssessor {
	return &fakeAssessor{
		verdicts: make(map[string]domain.RiskVerdict),
		failLeft: make(map[string]int),
	}
}

func (f *fakeAssessor) Assess(ctx context.Context, req risk.Request) (domain.RiskVerdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callCount++
	if n := f.failLeft[req.SellerPartyID]; n > 0 {
		f.failLeft[req.SellerPartyID] = n - 1
		return domain.RiskVerdict{}, context.DeadlineExceeded
	}
	if v, ok := f.verdicts[req.SellerPartyID]; ok {
		return v, nil
	}
	return domain.RiskVerdict{Status: domain.RiskPass, Score: 10}, nil
}

func (f *fakeAssessor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

type fixture struct {
	store    *storage.MemoryEntityStore
	repo     *storage.MemoryMatchRepository
	assessor *fakeAssessor
	sink     *events.MemorySink
	queue    *dispatcher.MemoryQueue
	orch     *Orchestrator
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	f := &fixture{
		store:    storage.NewMemoryEntityStore(),
		repo:     storage.NewMemoryMatchRepository(),
		assessor: newFakeAssessor(),
		sink:     events.NewMemorySink(),
		queue:    dispatcher.NewMemoryQueue(64),
	}
	gate := risk.NewGate(f.assessor, time.Second, 0.9)

	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	orch, err := New(matching.DefaultConfig(), f.store, f.repo, gate, f.sink, f.queue, logger, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	f.orch = orch
	return f
}

func (f *fixture) addRequirement(t *testing.T, req *domain.Requirement) {
	t.Helper()
	if err := f.store.PutRequirement(context.Background(), req); err != nil {
		t.Fatalf("PutRequirement failed: %v", err)
	}
}

func (f *fixture) addAvailability(t *testing.T, av *domain.Availability) {
	t.Helper()
	if err := f.store.PutAvailability(context.Background(), av); err != nil {
		t.Fatalf("PutAvailability failed: %v", err)
	}
}

func buyerRequirement() *domain.Requirement {
	return &domain.Requirement{
		ID:          "req1",
		BuyerID:     "buyer1",
		CommodityID: "cotton-mcu5",
		QuantityMin: decimal.NewFromInt(200),
		QuantityMax: decimal.NewFromInt(400),
		Quality: map[string]domain.QualitySpec{
			"staple_length": {Min: 28, Max: 32, Mandatory: true},
		},
		MaxPricePerUnit: decimal.NewFromInt(50000),
		Currency:        "INR",
		Delivery: []domain.DeliveryOption{
			{
				Location: domain.Location{Region: "KA", Lat: 12.97, Lon: 77.59},
				Window:   domain.TimeWindow{From: testNow.Add(24 * time.Hour), To: testNow.Add(96 * time.Hour)},
			},
		},
		Urgency:   domain.UrgencyMedium,
		Intent:    domain.IntentDirectBuy,
		Status:    domain.StatusActive,
		CutoffAt:  testNow.Add(12 * time.Hour),
		CreatedAt: testNow.Add(-time.Hour),
	}
}

func sellerAvailability(id, sellerID string, price int64) *domain.Availability {
	return &domain.Availability{
		ID:            id,
		SellerID:      sellerID,
		CommodityID:   "cotton-mcu5",
		QuantityTotal: decimal.NewFromInt(500),
		QuantityAvail: decimal.NewFromInt(500),
		Quality:       map[string]float64{"staple_length": 30},
		PricePerUnit:  decimal.NewFromInt(price),
		Currency:      "INR",
		Location:      domain.Location{Region: "KA", Lat: 12.97, Lon: 77.59},
		Window:        domain.TimeWindow{From: testNow.Add(24 * time.Hour), To: testNow.Add(96 * time.Hour)},
		Status:        domain.StatusActive,
		CutoffAt:      testNow.Add(12 * time.Hour),
		CreatedAt:     testNow.Add(-30 * time.Minute),
	}
}

func TestRun_ScenarioA(t *testing.T) {
	f := newFixture(t)
	f.addRequirement(t, buyerRequirement())
	f.addAvailability(t, sellerAvailability("av1", "seller1", 48000))

	matches, err := f.orch.Run(context.Background(), domain.EntityTypeRequirement, "req1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 match, got %d", len(matches))
	}

	m := matches[0]
	if m.Breakdown.Quality != 1.0 {
		t.Errorf("expected quality 1.0, got %v", m.Breakdown.Quality)
	}
	if math.Abs(m.Breakdown.Price-0.52) > 1e-9 {
		t.Errorf("expected price score 0.52, got %v", m.Breakdown.Price)
	}
	if math.Abs(m.Score-0.856) > 1e-9 {
		t.Errorf("expected final score 0.856, got %v", m.Score)
	}
	if m.Score < 0.6 {
		t.Errorf("expected final score >= 0.6, got %v", m.Score)
	}
	if m.Status != domain.MatchStatusPending {
		t.Errorf("expected PENDING, got %s", m.Status)
	}
	if m.Risk.Status != domain.RiskPass {
		t.Errorf("expected PASS verdict snapshot, got %s", m.Risk.Status)
	}

	persisted, err := f.repo.GetByID(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("match not persisted: %v", err)
	}
	if persisted.Score != m.Score {
		t.Errorf("persisted score %v differs from returned %v", persisted.Score, m.Score)
	}

	evts := f.sink.Events()
	if len(evts) != 1 {
		t.Fatalf("expected exactly 1 match.created event, got %d", len(evts))
	}
	if evts[0].MatchID != m.ID || evts[0].Score != m.Score {
		t.Errorf("event does not mirror match: %+v", evts[0])
	}
}

func TestRun_ScenarioB_QualityHardFiltered(t *testing.T) {
	f := newFixture(t)
	f.addRequirement(t, buyerRequirement())

	av := sellerAvailability("av1", "seller1", 48000)
	av.Quality["staple_length"] = 35
	f.addAvailability(t, av)

	matches, err := f.orch.Run(context.Background(), domain.EntityTypeRequirement, "req1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected zero matches, got %d", len(matches))
	}
	if f.assessor.calls() != 0 {
		t.Errorf("hard-filtered candidate must not reach the risk gate, got %d calls", f.assessor.calls())
	}
}

func TestRun_ScenarioC_RankedByPrice(t *testing.T) {
	f := newFixture(t)
	f.addRequirement(t, buyerRequirement())
	f.addAvailability(t, sellerAvailability("av-mid", "seller2", 48000))
	f.addAvailability(t, sellerAvailability("av-cheap", "seller1", 47500))
	f.addAvailability(t, sellerAvailability("av-dear", "seller3", 49000))

	matches, err := f.orch.Run(context.Background(), domain.EntityTypeRequirement, "req1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}

	want := []string{"av-cheap", "av-mid", "av-dear"}
	for i, m := range matches {
		if m.AvailabilityID != want[i] {
			t.Fatalf("rank %d: expected %s, got %s", i, want[i], m.AvailabilityID)
		}
	}
	if matches[0].Score <= matches[1].Score || matches[1].Score <= matches[2].Score {
		t.Errorf("scores not strictly descending: %v %v %v",
			matches[0].Score, matches[1].Score, matches[2].Score)
	}
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.addRequirement(t, buyerRequirement())
	f.addAvailability(t, sellerAvailability("av1", "seller1", 48000))

	first, err := f.orch.Run(context.Background(), domain.EntityTypeRequirement, "req1")
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	second, err := f.orch.Run(context.Background(), domain.EntityTypeRequirement, "req1")
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected 1 match from each run, got %d and %d", len(first), len(second))
	}
	if first[0].ID != second[0].ID {
		t.Errorf("second run created a new match: %s vs %s", first[0].ID, second[0].ID)
	}

	all, _ := f.repo.ListByRequirement(context.Background(), "req1")
	if len(all) != 1 {
		t.Errorf("expected exactly 1 persisted match, got %d", len(all))
	}
	if evts := f.sink.Events(); len(evts) != 1 {
		t.Errorf("expected exactly 1 match.created event, got %d", len(evts))
	}
}

func TestRun_Deterministic(t *testing.T) {
	run := func() []string {
		f := newFixture(t)
		f.addRequirement(t, buyerRequirement())
		f.addAvailability(t, sellerAvailability("av-b", "seller2", 48000))
		f.addAvailability(t, sellerAvailability("av-a", "seller1", 48000))
		f.addAvailability(t, sellerAvailability("av-c", "seller3", 47000))

		matches, err := f.orch.Run(context.Background(), domain.EntityTypeRequirement, "req1")
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		out := make([]string, 0, len(matches))
		for _, m := range matches {
			out = append(out, m.AvailabilityID)
		}
		return out
	}

	first := run()
	second := run()
	if len(first) != len(second) {
		t.Fatalf("different result sizes: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("ranking not deterministic: %v vs %v", first, second)
		}
	}
}

func TestRun_ThresholdLaw(t *testing.T) {
	f := newFixture(t)
	req := buyerRequirement()
	req.AllowPartial = true
	f.addRequirement(t, req)

	// Price at the ceiling (0.5), tiny quantity with partial fulfillment
	// and a far-away seller drag the score below 0.6.
	av := sellerAvailability("av1", "seller1", 50000)
	av.QuantityAvail = decimal.NewFromInt(40)
	av.Location = domain.Location{Region: "KA", Lat: 17.0, Lon: 77.59}
	f.addAvailability(t, av)

	matches, err := f.orch.Run(context.Background(), domain.EntityTypeRequirement, "req1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches below threshold, got %d (score %v)", len(matches), matches[0].Score)
	}
	if f.assessor.calls() != 0 {
		t.Errorf("below-threshold candidate must skip the risk gate, got %d calls", f.assessor.calls())
	}

	all, _ := f.repo.ListByRequirement(context.Background(), "req1")
	for _, m := range all {
		if m.Score < 0.6 {
			t.Errorf("persisted match %s violates threshold law: %v", m.ID, m.Score)
		}
	}
}

func TestRun_RiskBlockExcludes(t *testing.T) {
	f := newFixture(t)
	f.addRequirement(t, buyerRequirement())
	f.addAvailability(t, sellerAvailability("av1", "seller1", 48000))
	f.assessor.verdicts["seller1"] = domain.RiskVerdict{
		Status:     domain.RiskBlock,
		Score:      95,
		Violations: []string{"SANCTIONS_LIST"},
	}

	matches, err := f.orch.Run(context.Background(), domain.EntityTypeRequirement, "req1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("BLOCK verdict must exclude the candidate, got %d matches", len(matches))
	}
	all, _ := f.repo.ListByRequirement(context.Background(), "req1")
	if len(all) != 0 {
		t.Errorf("no match may be persisted for a blocked pair, got %d", len(all))
	}
}

func TestRun_RiskWarnPenalizes(t *testing.T) {
	f := newFixture(t)
	f.addRequirement(t, buyerRequirement())
	f.addAvailability(t, sellerAvailability("av1", "seller1", 48000))
	f.assessor.verdicts["seller1"] = domain.RiskVerdict{Status: domain.RiskWarn, Score: 60}

	matches, err := f.orch.Run(context.Background(), domain.EntityTypeRequirement, "req1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}

	// Pre-risk 0.856, WARN multiplies by 0.9.
	want := 0.856 * 0.9
	if math.Abs(matches[0].Score-want) > 1e-9 {
		t.Errorf("expected penalized score %v, got %v", want, matches[0].Score)
	}
	if !matches[0].Breakdown.RiskPenaltyApplied {
		t.Error("expected RiskPenaltyApplied flag")
	}
}

func TestRun_RiskFailureExcludesOnlyThatCandidate(t *testing.T) {
	f := newFixture(t)
	f.addRequirement(t, buyerRequirement())
	f.addAvailability(t, sellerAvailability("av1", "seller1", 48000))
	f.addAvailability(t, sellerAvailability("av2", "seller2", 47500))
	f.assessor.failLeft["seller1"] = 1

	matches, err := f.orch.Run(context.Background(), domain.EntityTypeRequirement, "req1")
	if err != nil {
		t.Fatalf("a per-candidate risk failure must not fail the run: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].AvailabilityID != "av2" {
		t.Errorf("expected the unaffected candidate av2, got %s", matches[0].AvailabilityID)
	}
	if f.queue.Len() != 1 {
		t.Errorf("expected a fallback signal for the dropped candidate, got %d", f.queue.Len())
	}
}

func TestRun_ScenarioE_FallbackCompletesDroppedCandidate(t *testing.T) {
	f := newFixture(t)
	f.addRequirement(t, buyerRequirement())
	f.addAvailability(t, sellerAvailability("av1", "seller1", 48000))
	f.assessor.failLeft["seller1"] = 1

	matches, err := f.orch.Run(context.Background(), domain.EntityTypeRequirement, "req1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("candidate must be absent from the synchronous result, got %d", len(matches))
	}

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	disp := dispatcher.New(f.queue, f.orch, dispatcher.Config{MaxAttempts: 3, BackoffBase: time.Millisecond}, logger, nil)

	sig, _, err := f.queue.Receive(context.Background())
	if err != nil {
		t.Fatalf("expected a fallback signal: %v", err)
	}
	if !disp.Process(context.Background(), sig) {
		t.Fatal("expected the fallback signal to be finished")
	}

	all, _ := f.repo.ListByRequirement(context.Background(), "req1")
	if len(all) != 1 {
		t.Fatalf("expected the dropped candidate matched after fallback, got %d", len(all))
	}
	if all[0].AvailabilityID != "av1" {
		t.Errorf("expected av1, got %s", all[0].AvailabilityID)
	}
}

func TestRun_ScenarioD_ConcurrentDualTrigger(t *testing.T) {
	f := newFixture(t)
	f.addRequirement(t, buyerRequirement())
	f.addAvailability(t, sellerAvailability("av1", "seller1", 48000))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = f.orch.Run(context.Background(), domain.EntityTypeRequirement, "req1")
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = f.orch.Run(context.Background(), domain.EntityTypeAvailability, "av1")
	}()
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("trigger %d failed: %v", i, err)
		}
	}

	all, _ := f.repo.ListByRequirement(context.Background(), "req1")
	if len(all) != 1 {
		t.Fatalf("expected exactly one persisted match after dual trigger, got %d", len(all))
	}
}

func TestRun_NonActiveTriggerIsNoOp(t *testing.T) {
	f := newFixture(t)
	req := buyerRequirement()
	req.Status = domain.StatusFulfilled
	f.addRequirement(t, req)
	f.addAvailability(t, sellerAvailability("av1", "seller1", 48000))

	matches, err := f.orch.Run(context.Background(), domain.EntityTypeRequirement, "req1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("non-active trigger must be a no-op, got %d matches", len(matches))
	}
}

func TestRun_NonDirectBuyIntentSkipped(t *testing.T) {
	f := newFixture(t)
	req := buyerRequirement()
	req.Intent = domain.IntentAuction
	f.addRequirement(t, req)
	f.addAvailability(t, sellerAvailability("av1", "seller1", 48000))

	matches, err := f.orch.Run(context.Background(), domain.EntityTypeRequirement, "req1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("auction intent must not be matched here, got %d matches", len(matches))
	}

	// The same requirement must also be invisible as a counter-side candidate.
	matches, err = f.orch.Run(context.Background(), domain.EntityTypeAvailability, "av1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("auction-intent requirement surfaced as candidate")
	}
}

func TestRun_UnknownEntityType(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orch.Run(context.Background(), domain.EntityType("ORDER"), "x"); !errors.Is(err, ErrUnknownEntityType) {
		t.Fatalf("expected ErrUnknownEntityType, got %v", err)
	}
}

func TestRun_CandidateFetchFailureFailsRun(t *testing.T) {
	f := newFixture(t)
	// Trigger entity missing entirely: the run itself must error so the
	// caller queues a fallback signal.
	if _, err := f.orch.Run(context.Background(), domain.EntityTypeRequirement, "ghost"); !errors.Is(err, ErrCandidateFetch) {
		t.Fatalf("expected ErrCandidateFetch, got %v", err)
	}
}

type boostAdjuster struct{ delta float64 }

func (b boostAdjuster) Adjust(req *domain.Requirement, av *domain.Availability, score float64) float64 {
	return score + b.delta
}

func TestRun_ScoreAdjusterHook(t *testing.T) {
	f := newFixture(t, WithScoreAdjuster(boostAdjuster{delta: -0.5}))
	f.addRequirement(t, buyerRequirement())
	f.addAvailability(t, sellerAvailability("av1", "seller1", 48000))

	// The adjustment applies pre-threshold: 0.856 - 0.5 < 0.6.
	matches, err := f.orch.Run(context.Background(), domain.EntityTypeRequirement, "req1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("adjusted score below threshold must drop the candidate, got %d", len(matches))
	}
}
