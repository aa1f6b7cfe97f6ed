package domain

import (
	"time"
)

// MatchStatus represents the lifecycle status of a Match
type MatchStatus string

const (
	MatchStatusPending    MatchStatus = "PENDING"
	MatchStatusAccepted   MatchStatus = "ACCEPTED"
	MatchStatusRejected   MatchStatus = "REJECTED"
	MatchStatusExpired    MatchStatus = "EXPIRED"
	MatchStatusSuperseded MatchStatus = "SUPERSEDED"
)

func (s MatchStatus) IsValid() bool {
	switch s {
	case MatchStatusPending, MatchStatusAccepted, MatchStatusRejected, MatchStatusExpired, MatchStatusSuperseded:
		return true
	}
	return false
}

// Live reports whether the match still occupies its (requirement, availability)
// pair slot. At most one live match may exist per pair.
func (s MatchStatus) Live() bool {
	return s == MatchStatusPending || s == MatchStatusAccepted
}

// RiskStatus is the external risk collaborator's verdict status
type RiskStatus string

const (
	RiskPass  RiskStatus = "PASS"
	RiskWarn  RiskStatus = "WARN"
	RiskBlock RiskStatus = "BLOCK"
)

// RiskVerdict is the risk verdict snapshot captured at evaluation time
type RiskVerdict struct {
	Status     RiskStatus // PASS / WARN / BLOCK
	Score      int        // Collaborator's 0-100 risk score
	Violations []string   // Violation codes, if any
}

// ScoreBreakdown is the per-factor decomposition of a match score
type ScoreBreakdown struct {
	Quality            float64 // Quality factor [0,1]
	Price              float64 // Price factor [0,1]
	Quantity           float64 // Quantity factor [0,1]
	Delivery           float64 // Delivery factor [0,1]
	RiskPenaltyApplied bool    // True if a WARN verdict discounted the score
}

// Match is a persisted, scored compatibility record between one Requirement
// and one Availability. Created exclusively by the matching engine; its
// ACCEPTED/REJECTED transitions belong to downstream negotiation logic.
type Match struct {
	ID             string         // Match ID
	RequirementID  string         // Buyer-side entity ID
	AvailabilityID string         // Seller-side entity ID
	Score          float64        // Final (risk-adjusted) score [0,1]
	Breakdown      ScoreBreakdown // Per-factor decomposition
	Risk           RiskVerdict    // Verdict snapshot at evaluation time
	Status         MatchStatus    // Lifecycle status
	CreatedAt      time.Time      // Creation time
}
