package risk

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"commodity-matching/internal/domain"
)

// Gate applies the external risk verdict to a scored candidate:
// BLOCK excludes the candidate, WARN discounts the score, PASS leaves it
// unchanged. Gate errors (including timeouts) are surfaced to the caller,
// which must exclude only that candidate.
type Gate struct {
	assessor    Assessor
	timeout     time.Duration
	warnPenalty float64
}

// NewGate creates a risk gate. The timeout bounds each assessment call;
// warnPenalty is the multiplier applied on a WARN verdict.
func NewGate(assessor Assessor, timeout time.Duration, warnPenalty float64) *Gate {
	return &Gate{
		assessor:    assessor,
		timeout:     timeout,
		warnPenalty: warnPenalty,
	}
}

// Apply assesses one candidate pair and returns the adjusted score, whether
// the candidate is excluded outright, and the verdict snapshot.
func (g *Gate) Apply(ctx context.Context, req *domain.Requirement, av *domain.Availability, score float64) (adjusted float64, excluded bool, verdict domain.RiskVerdict, err error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	verdict, err = g.assessor.Assess(ctx, Request{
		BuyerPartyID:   req.BuyerID,
		SellerPartyID:  av.SellerID,
		CommodityID:    req.CommodityID,
		EstimatedValue: EstimatedValue(req, av),
	})
	if err != nil {
		return 0, true, domain.RiskVerdict{}, err
	}

	switch verdict.Status {
	case domain.RiskBlock:
		return 0, true, verdict, nil
	case domain.RiskWarn:
		return score * g.warnPenalty, false, verdict, nil
	default:
		return score, false, verdict, nil
	}
}

// EstimatedValue is the trade value at match time: the quantity the pair
// would plausibly trade (bounded by the buyer's maximum) times the seller's
// unit price.
func EstimatedValue(req *domain.Requirement, av *domain.Availability) decimal.Decimal {
	qty := av.QuantityAvail
	if qty.Cmp(req.QuantityMax) > 0 {
		qty = req.QuantityMax
	}
	return qty.Mul(av.PricePerUnit)
}
