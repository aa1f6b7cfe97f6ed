package matching

import (
	"time"

	"github.com/shopspring/decimal"

	"commodity-matching/internal/domain"
)

// FailReason labels why a pair was hard-filtered. Reasons are for logging
// and tests only; callers must branch on the boolean result, not the reason.
type FailReason string

const (
	FailNone      FailReason = ""
	FailCommodity FailReason = "COMMODITY_MISMATCH"
	FailStatus    FailReason = "NOT_ACTIVE"
	FailExpired   FailReason = "CUTOFF_PASSED"
	FailCurrency  FailReason = "CURRENCY_MISMATCH"
	FailWindow    FailReason = "NO_WINDOW_OVERLAP"
	FailLocation  FailReason = "LOCATION_INCOMPATIBLE"
	FailQuantity  FailReason = "QUANTITY_INSUFFICIENT"
	FailPrice     FailReason = "PRICE_EXCEEDS_CEILING"
	FailQuality   FailReason = "MANDATORY_QUALITY_OUT_OF_BOUNDS"
)

// Passes applies every hard compatibility check between a requirement and an
// availability at the given evaluation time. It is pure: no side effects, and
// deterministic for fixed inputs and configuration.
func Passes(req *domain.Requirement, av *domain.Availability, cfg Config, now time.Time) (bool, FailReason) {
	if req.CommodityID != av.CommodityID {
		return false, FailCommodity
	}
	if req.Status != domain.StatusActive || av.Status != domain.StatusActive {
		return false, FailStatus
	}
	if !now.Before(req.CutoffAt) || !now.Before(av.CutoffAt) {
		return false, FailExpired
	}
	// Currency conversion is not configured in this engine; currencies must match.
	if req.Currency != av.Currency {
		return false, FailCurrency
	}
	if bestDeliveryOption(req, av, cfg) == nil {
		return false, deliveryFailReason(req, av, cfg)
	}
	if !req.AllowPartial && av.QuantityAvail.Cmp(req.QuantityMin) < 0 {
		return false, FailQuantity
	}
	ceiling := req.MaxPricePerUnit.Mul(decimal.NewFromFloat(1 + cfg.PriceTolerance))
	if av.PricePerUnit.Cmp(ceiling) > 0 {
		return false, FailPrice
	}
	if !qualityInBounds(req, av, cfg) {
		return false, FailQuality
	}
	return true, FailNone
}

// bestDeliveryOption returns the requirement delivery option that is
// compatible with the availability and scores highest on the delivery factor,
// or nil when no option is compatible.
func bestDeliveryOption(req *domain.Requirement, av *domain.Availability, cfg Config) *domain.DeliveryOption {
	var best *domain.DeliveryOption
	bestScore := -1.0
	for i := range req.Delivery {
		opt := &req.Delivery[i]
		if opt.Window.Overlap(av.Window) <= 0 {
			continue
		}
		if !locationsCompatible(opt.Location, av.Location, cfg.MaxDistanceKm) {
			continue
		}
		s := deliveryScore(opt, av, cfg)
		if s > bestScore {
			best = opt
			bestScore = s
		}
	}
	return best
}

// deliveryFailReason distinguishes window from location failure for logging
func deliveryFailReason(req *domain.Requirement, av *domain.Availability, cfg Config) FailReason {
	for i := range req.Delivery {
		if req.Delivery[i].Window.Overlap(av.Window) > 0 {
			return FailLocation
		}
	}
	return FailWindow
}

// qualityInBounds hard-fails a pair whose availability deviates beyond the
// configured bound on a mandatory parameter. A missing mandatory parameter is
// not a filter failure: it zeroes that parameter's quality score instead.
// Within-bound deviation is likewise a scoring concern, not a filtering one.
func qualityInBounds(req *domain.Requirement, av *domain.Availability, cfg Config) bool {
	for name, spec := range req.Quality {
		if !spec.Mandatory {
			continue
		}
		actual, ok := av.Quality[name]
		if !ok {
			continue
		}
		if spec.Deviation(actual) >= cfg.MaxQualityDeviation {
			return false
		}
	}
	return true
}
