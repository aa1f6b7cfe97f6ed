package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies which side of the market triggered a matching run
type EntityType string

const (
	EntityTypeRequirement  EntityType = "REQUIREMENT"
	EntityTypeAvailability EntityType = "AVAILABILITY"
)

func (t EntityType) IsValid() bool {
	return t == EntityTypeRequirement || t == EntityTypeAvailability
}

// Opposite returns the counter-side entity type
func (t EntityType) Opposite() EntityType {
	if t == EntityTypeRequirement {
		return EntityTypeAvailability
	}
	return EntityTypeRequirement
}

// ListingStatus represents the lifecycle status of a Requirement or Availability
type ListingStatus string

const (
	StatusDraft              ListingStatus = "DRAFT"
	StatusActive             ListingStatus = "ACTIVE"
	StatusPartiallyFulfilled ListingStatus = "PARTIALLY_FULFILLED"
	StatusFulfilled          ListingStatus = "FULFILLED"
	StatusExpired            ListingStatus = "EXPIRED"
	StatusCancelled          ListingStatus = "CANCELLED"
)

func (s ListingStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusPartiallyFulfilled, StatusFulfilled, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// IntentType routes buyer intents to the appropriate engine.
// Only DIRECT_BUY reaches the matching orchestrator; the other intents are
// dispatched to negotiation/auction engines owned elsewhere.
type IntentType string

const (
	IntentDirectBuy   IntentType = "DIRECT_BUY"
	IntentNegotiation IntentType = "NEGOTIATION"
	IntentAuction     IntentType = "AUCTION"
)

func (i IntentType) IsValid() bool {
	return i == IntentDirectBuy || i == IntentNegotiation || i == IntentAuction
}

// UrgencyLevel represents buyer urgency
type UrgencyLevel string

const (
	UrgencyLow    UrgencyLevel = "LOW"
	UrgencyMedium UrgencyLevel = "MEDIUM"
	UrgencyHigh   UrgencyLevel = "HIGH"
)

// Location is a delivery point: a top-level region plus coordinates
type Location struct {
	Region string  // Top-level region code (e.g., state)
	Lat    float64 // Latitude in degrees
	Lon    float64 // Longitude in degrees
}

// TimeWindow is a half-open delivery window [From, To)
type TimeWindow struct {
	From time.Time // Window start
	To   time.Time // Window end
}

// Duration returns the window length; zero if the window is inverted
func (w TimeWindow) Duration() time.Duration {
	if !w.To.After(w.From) {
		return 0
	}
	return w.To.Sub(w.From)
}

// Overlap returns the overlapping duration between two windows
func (w TimeWindow) Overlap(other TimeWindow) time.Duration {
	from := w.From
	if other.From.After(from) {
		from = other.From
	}
	to := w.To
	if other.To.Before(to) {
		to = other.To
	}
	if !to.After(from) {
		return 0
	}
	return to.Sub(from)
}

// QualitySpec is one quality parameter the buyer requires.
// An exact-value requirement is expressed as Min == Max.
type QualitySpec struct {
	Min       float64 // Lower bound (inclusive)
	Max       float64 // Upper bound (inclusive)
	Mandatory bool    // Mandatory parameters hard-weight the quality score
}

// Contains reports whether a value falls inside the acceptable range
func (q QualitySpec) Contains(v float64) bool {
	return v >= q.Min && v <= q.Max
}

// Deviation returns the distance of a value from the acceptable range (0 if inside)
func (q QualitySpec) Deviation(v float64) float64 {
	if v < q.Min {
		return q.Min - v
	}
	if v > q.Max {
		return v - q.Max
	}
	return 0
}

// DeliveryOption couples one acceptable delivery location with its time window
type DeliveryOption struct {
	Location Location   // Delivery point
	Window   TimeWindow // Acceptable delivery window at this point
}

// Requirement is a buyer's standing demand for a commodity.
// Read-only to the matching engine; owned by the buyer-facing service.
type Requirement struct {
	ID              string                 // Requirement ID
	BuyerID         string                 // Buyer party ID
	CommodityID     string                 // Commodity ID
	QuantityMin     decimal.Decimal        // Minimum acceptable quantity
	QuantityMax     decimal.Decimal        // Maximum desired quantity
	QuantityPref    decimal.Decimal        // Preferred quantity (optional, zero if unset)
	Quality         map[string]QualitySpec // Parameter name -> acceptable range
	MaxPricePerUnit decimal.Decimal        // Price ceiling per unit
	Currency        string                 // ISO currency code
	Delivery        []DeliveryOption       // One or more acceptable delivery options
	Urgency         UrgencyLevel           // Buyer urgency
	Intent          IntentType             // Routing intent; only DIRECT_BUY is matched
	Status          ListingStatus          // Lifecycle status
	AllowPartial    bool                   // Partial fulfillment below QuantityMin allowed
	CutoffAt        time.Time              // EOD cutoff; implicitly expired after this
	CreatedAt       time.Time              // Creation time (tie-break ordering)
}

// Validate validates a requirement for matching
func (r *Requirement) Validate() error {
	if r.ID == "" {
		return errors.New("requirement id required")
	}
	if r.BuyerID == "" {
		return errors.New("buyer id required")
	}
	if r.CommodityID == "" {
		return errors.New("commodity id required")
	}
	if !r.QuantityMin.IsPositive() {
		return errors.New("minimum quantity must be positive")
	}
	if r.QuantityMax.Cmp(r.QuantityMin) < 0 {
		return errors.New("maximum quantity below minimum")
	}
	if !r.MaxPricePerUnit.IsPositive() {
		return errors.New("max price must be positive")
	}
	if r.Currency == "" {
		return errors.New("currency required")
	}
	if len(r.Delivery) == 0 {
		return errors.New("at least one delivery option required")
	}
	if !r.Intent.IsValid() {
		return errors.New("invalid intent")
	}
	if !r.Status.IsValid() {
		return errors.New("invalid status")
	}
	return nil
}

// Matchable reports whether the requirement may enter matching at the given time
func (r *Requirement) Matchable(now time.Time) bool {
	return r.Status == StatusActive && now.Before(r.CutoffAt)
}

// Availability is a seller's standing offer of commodity supply.
// Read-only to the matching engine; quantities are decremented by downstream
// reservation logic, never here.
type Availability struct {
	ID            string             // Availability ID
	SellerID      string             // Seller party ID
	CommodityID   string             // Commodity ID
	QuantityTotal decimal.Decimal    // Total offered quantity
	QuantityAvail decimal.Decimal    // Currently unreserved quantity (<= total)
	Quality       map[string]float64 // Parameter name -> actual value
	PricePerUnit  decimal.Decimal    // Asking price per unit
	Currency      string             // ISO currency code
	Location      Location           // Supply location
	Window        TimeWindow         // Delivery window
	Status        ListingStatus      // Lifecycle status
	CutoffAt      time.Time          // EOD cutoff; implicitly expired after this
	CreatedAt     time.Time          // Creation time (tie-break ordering)
}

// Validate validates an availability for matching
func (a *Availability) Validate() error {
	if a.ID == "" {
		return errors.New("availability id required")
	}
	if a.SellerID == "" {
		return errors.New("seller id required")
	}
	if a.CommodityID == "" {
		return errors.New("commodity id required")
	}
	if !a.QuantityTotal.IsPositive() {
		return errors.New("total quantity must be positive")
	}
	if a.QuantityAvail.Cmp(a.QuantityTotal) > 0 {
		return errors.New("available quantity exceeds total")
	}
	if !a.PricePerUnit.IsPositive() {
		return errors.New("price must be positive")
	}
	if a.Currency == "" {
		return errors.New("currency required")
	}
	if !a.Status.IsValid() {
		return errors.New("invalid status")
	}
	return nil
}

// Matchable reports whether the availability may enter matching at the given time
func (a *Availability) Matchable(now time.Time) bool {
	return a.Status == StatusActive && now.Before(a.CutoffAt)
}
