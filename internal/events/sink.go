// Package events carries the engine's outbound domain events. Delivery is
// at-least-once; downstream consumers dedupe on match ID.
package events

import (
	"context"
	"sync"
)

// MatchCreated is the match.created domain event, emitted exactly once per
// newly persisted match within a run.
type MatchCreated struct {
	MatchID        string  `json:"match_id"`
	RequirementID  string  `json:"requirement_id"`
	AvailabilityID string  `json:"availability_id"`
	Score          float64 `json:"score"`
}

// Sink receives domain events
type Sink interface {
	MatchCreated(ctx context.Context, event MatchCreated) error
}

// MemorySink records events in memory. Used for single-binary deployments
// and tests.
type MemorySink struct {
	mu     sync.Mutex
	events []MatchCreated
}

// NewMemorySink creates a new in-memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// MatchCreated records the event
func (s *MemorySink) MatchCreated(ctx context.Context, event MatchCreated) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of recorded events
func (s *MemorySink) Events() []MatchCreated {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MatchCreated(nil), s.events...)
}
