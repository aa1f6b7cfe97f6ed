package matching

import (
	"commodity-matching/internal/domain"
)

// Score computes the weighted compatibility score for a pair that already
// passed the hard filter. It returns the pre-risk score in [0,1] and the
// per-factor breakdown. Pure and deterministic.
func Score(req *domain.Requirement, av *domain.Availability, cfg Config) (float64, domain.ScoreBreakdown) {
	breakdown := domain.ScoreBreakdown{
		Quality:  qualityScore(req, av, cfg),
		Price:    priceScore(req, av),
		Quantity: quantityScore(req, av),
		Delivery: bestDeliveryScore(req, av, cfg),
	}

	total := cfg.Weights.Quality*breakdown.Quality +
		cfg.Weights.Price*breakdown.Price +
		cfg.Weights.Quantity*breakdown.Quantity +
		cfg.Weights.Delivery*breakdown.Delivery

	return clamp01(total), breakdown
}

// optionalQualityShare caps how much non-mandatory parameters move the
// quality factor, however many of them a requirement carries.
const optionalQualityShare = 0.2

// qualityScore aggregates parameter closeness. Mandatory parameters form the
// primary mean (a missing mandatory value counts as 0); non-mandatory
// parameters form a secondary mean blended in at a fixed share, so they nudge
// the factor but cannot dominate it. A requirement with no quality parameters
// is indifferent to quality and scores 1.0.
func qualityScore(req *domain.Requirement, av *domain.Availability, cfg Config) float64 {
	var mandSum float64
	var mandCount int
	var optSum float64
	var optCount int
	for name, spec := range req.Quality {
		actual, ok := av.Quality[name]
		if spec.Mandatory {
			mandCount++
			if ok {
				mandSum += closeness(spec, actual, cfg.MaxQualityDeviation)
			}
			continue
		}
		// A missing optional parameter is simply not scored.
		if ok {
			optCount++
			optSum += closeness(spec, actual, cfg.MaxQualityDeviation)
		}
	}

	switch {
	case mandCount == 0 && optCount == 0:
		return 1.0
	case mandCount == 0:
		return optSum / float64(optCount)
	case optCount == 0:
		return mandSum / float64(mandCount)
	}
	mand := mandSum / float64(mandCount)
	opt := optSum / float64(optCount)
	return (1-optionalQualityShare)*mand + optionalQualityShare*opt
}

// closeness is 1.0 inside the acceptable range, decaying linearly to 0.0 at
// the configured maximum deviation outside it.
func closeness(spec domain.QualitySpec, actual, maxDeviation float64) float64 {
	dev := spec.Deviation(actual)
	if dev == 0 {
		return 1.0
	}
	if dev >= maxDeviation {
		return 0
	}
	return 1 - dev/maxDeviation
}

// priceScore maps the seller's asking price against the buyer's ceiling:
// a seller at the ceiling scores 0.5, approaching 1.0 as price approaches zero.
func priceScore(req *domain.Requirement, av *domain.Availability) float64 {
	ceiling := req.MaxPricePerUnit.InexactFloat64()
	if ceiling <= 0 {
		return 0
	}
	price := av.PricePerUnit.InexactFloat64()
	return clamp01(1.0 - 0.5*(price/ceiling))
}

// quantityScore is the fraction of the buyer's maximum desired quantity the
// seller can cover; meeting or exceeding it scores 1.0.
func quantityScore(req *domain.Requirement, av *domain.Availability) float64 {
	max := req.QuantityMax.InexactFloat64()
	if max <= 0 {
		return 0
	}
	avail := av.QuantityAvail.InexactFloat64()
	if avail > max {
		avail = max
	}
	return clamp01(avail / max)
}

// bestDeliveryScore evaluates the delivery factor across the requirement's
// delivery options and keeps the best. Zero when no option is compatible.
func bestDeliveryScore(req *domain.Requirement, av *domain.Availability, cfg Config) float64 {
	opt := bestDeliveryOption(req, av, cfg)
	if opt == nil {
		return 0
	}
	return deliveryScore(opt, av, cfg)
}

// deliveryScore is the product of the temporal overlap fraction (overlap
// relative to the buyer's window) and the distance proximity factor.
func deliveryScore(opt *domain.DeliveryOption, av *domain.Availability, cfg Config) float64 {
	reqDur := opt.Window.Duration()
	if reqDur <= 0 {
		return 0
	}
	overlap := opt.Window.Overlap(av.Window)
	frac := clamp01(float64(overlap) / float64(reqDur))
	return frac * proximityFactor(opt.Location, av.Location, cfg.MaxDistanceKm)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
