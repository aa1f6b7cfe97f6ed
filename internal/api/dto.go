package api

import "time"

// QualitySpecDTO is one required quality parameter
type QualitySpecDTO struct {
	Min       float64 `json:"min"`       // Lower bound (inclusive)
	Max       float64 `json:"max"`       // Upper bound (inclusive; equal to min for exact values)
	Mandatory bool    `json:"mandatory"` // Whether the parameter is mandatory
}

// LocationDTO is a delivery point
type LocationDTO struct {
	Region string  `json:"region"` // Top-level region code
	Lat    float64 `json:"lat"`    // Latitude in degrees
	Lon    float64 `json:"lon"`    // Longitude in degrees
}

// DeliveryOptionDTO couples a location with its delivery window
type DeliveryOptionDTO struct {
	Location LocationDTO `json:"location"`    // Delivery point
	From     time.Time   `json:"window_from"` // Window start (RFC3339)
	To       time.Time   `json:"window_to"`   // Window end (RFC3339)
}

// CreateRequirementRequest is the request body for creating a requirement
type CreateRequirementRequest struct {
	ID           string                    `json:"id"`            // Optional; generated when empty
	BuyerID      string                    `json:"buyer_id"`      // Buyer party ID
	CommodityID  string                    `json:"commodity_id"`  // Commodity ID
	QuantityMin  string                    `json:"quantity_min"`  // Decimal string
	QuantityMax  string                    `json:"quantity_max"`  // Decimal string
	QuantityPref string                    `json:"quantity_pref"` // Decimal string, optional
	Quality      map[string]QualitySpecDTO `json:"quality"`       // Parameter name -> spec
	MaxPrice     string                    `json:"max_price"`     // Price ceiling per unit, decimal string
	Currency     string                    `json:"currency"`      // ISO currency code
	Delivery     []DeliveryOptionDTO       `json:"delivery"`      // One or more delivery options
	Urgency      string                    `json:"urgency"`       // LOW / MEDIUM / HIGH
	Intent       string                    `json:"intent"`        // DIRECT_BUY / NEGOTIATION / AUCTION
	AllowPartial bool                      `json:"allow_partial"` // Partial fulfillment allowed
	CutoffAt     time.Time                 `json:"cutoff_at"`     // EOD cutoff (RFC3339, tz-aware)
}

// CreateAvailabilityRequest is the request body for creating an availability
type CreateAvailabilityRequest struct {
	ID            string             `json:"id"`             // Optional; generated when empty
	SellerID      string             `json:"seller_id"`      // Seller party ID
	CommodityID   string             `json:"commodity_id"`   // Commodity ID
	QuantityTotal string             `json:"quantity_total"` // Decimal string
	QuantityAvail string             `json:"quantity_avail"` // Decimal string; defaults to total
	Quality       map[string]float64 `json:"quality"`        // Parameter name -> actual value
	Price         string             `json:"price"`          // Price per unit, decimal string
	Currency      string             `json:"currency"`       // ISO currency code
	Location      LocationDTO        `json:"location"`       // Supply location
	WindowFrom    time.Time          `json:"window_from"`    // Delivery window start (RFC3339)
	WindowTo      time.Time          `json:"window_to"`      // Delivery window end (RFC3339)
	CutoffAt      time.Time          `json:"cutoff_at"`      // EOD cutoff (RFC3339, tz-aware)
}

// ScoreBreakdownDTO is the per-factor score decomposition
type ScoreBreakdownDTO struct {
	Quality            float64 `json:"quality"`              // Quality factor
	Price              float64 `json:"price"`                // Price factor
	Quantity           float64 `json:"quantity"`             // Quantity factor
	Delivery           float64 `json:"delivery"`             // Delivery factor
	RiskPenaltyApplied bool    `json:"risk_penalty_applied"` // WARN penalty applied
}

// MatchDTO is one match in API responses
type MatchDTO struct {
	MatchID        string            `json:"match_id"`                  // Match ID
	RequirementID  string            `json:"requirement_id"`            // Buyer-side entity ID
	AvailabilityID string            `json:"availability_id"`           // Seller-side entity ID
	Score          float64           `json:"score"`                     // Adjusted score
	Breakdown      ScoreBreakdownDTO `json:"breakdown"`                 // Per-factor scores
	RiskStatus     string            `json:"risk_status"`               // Verdict snapshot status
	RiskViolations []string          `json:"risk_violations,omitempty"` // Violation codes
	Status         string            `json:"status"`                    // Match status
	CreatedAt      time.Time         `json:"created_at"`                // Creation time
}

// CreateEntityResponse is returned after creating a requirement or availability
type CreateEntityResponse struct {
	ID        string     `json:"id"`         // Entity ID
	Matched   bool       `json:"matched"`    // False when matching was deferred to the fallback path
	Matches   []MatchDTO `json:"matches"`    // Ranked matches from the synchronous run
	CreatedAt time.Time  `json:"created_at"` // Entity creation time
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Code    string `json:"code"`    // Error code
	Message string `json:"message"` // Error message
}
