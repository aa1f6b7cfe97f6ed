package matching

import (
	"sort"
	"time"

	"commodity-matching/internal/domain"
)

// Candidate holds one requirement/availability pair plus its intermediate
// pipeline state. It lives only within a single orchestrator run and is
// never persisted.
type Candidate struct {
	Requirement  *domain.Requirement   // Buyer side
	Availability *domain.Availability  // Seller side
	Breakdown    domain.ScoreBreakdown // Per-factor scores
	PreRiskScore float64               // Score before the risk gate
	Score        float64               // Risk-adjusted score
	Risk         domain.RiskVerdict    // Verdict snapshot
	Existing     bool                  // True if the pair already had a live match
	PersistedID  string                // Persisted match ID (new or pre-existing)
	Status       domain.MatchStatus    // Persisted match status
	CreatedAt    time.Time             // Persisted match creation time
}

// counterpart returns the entity opposite the trigger side, whose creation
// time and identifier break score ties.
func (c *Candidate) counterpart(trigger domain.EntityType) (createdAtUnixNano int64, id string) {
	if trigger == domain.EntityTypeRequirement {
		return c.Availability.CreatedAt.UnixNano(), c.Availability.ID
	}
	return c.Requirement.CreatedAt.UnixNano(), c.Requirement.ID
}

// Rank sorts candidates in place: adjusted score descending, then the
// counterpart entity's creation time ascending (first come, first served),
// then its identifier in ascending lexical order for full determinism.
func Rank(candidates []*Candidate, trigger domain.EntityType) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		aAt, aID := a.counterpart(trigger)
		bAt, bID := b.counterpart(trigger)
		if aAt != bAt {
			return aAt < bAt
		}
		return aID < bID
	})
}
