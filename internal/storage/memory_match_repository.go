package storage

import (
	"context"
	"fmt"
	"sync"

	"commodity-matching/internal/domain"
)

type pairKey struct {
	requirementID  string
	availabilityID string
}

// MemoryMatchRepository is an in-memory implementation of MatchRepository.
// The live-pair index under the write lock is the storage-level equivalent of
// a unique index: concurrent Create calls for the same pair serialize and
// exactly one wins.
type MemoryMatchRepository struct {
	mu sync.RWMutex

	// Primary storage: match_id -> Match
	matches map[string]*domain.Match

	// Live-pair index enforcing the uniqueness invariant
	livePairs map[pairKey]*domain.Match

	// Indexes for efficient queries
	byRequirement  map[string][]*domain.Match
	byAvailability map[string][]*domain.Match
}

// NewMemoryMatchRepository creates a new in-memory match repository
func NewMemoryMatchRepository() *MemoryMatchRepository {
	return &MemoryMatchRepository{
		matches:        make(map[string]*domain.Match),
		livePairs:      make(map[pairKey]*domain.Match),
		byRequirement:  make(map[string][]*domain.Match),
		byAvailability: make(map[string][]*domain.Match),
	}
}

// Create persists a new match with an atomic check-and-insert on the pair
func (r *MemoryMatchRepository) Create(ctx context.Context, match *domain.Match) error {
	if match == nil || match.ID == "" || match.RequirementID == "" || match.AvailabilityID == "" {
		return ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{requirementID: match.RequirementID, availabilityID: match.AvailabilityID}
	if existing, exists := r.livePairs[key]; exists {
		return fmt.Errorf("%w: pair (%s, %s) held by match %s",
			ErrMatchExists, match.RequirementID, match.AvailabilityID, existing.ID)
	}
	if _, exists := r.matches[match.ID]; exists {
		return fmt.Errorf("%w: duplicate match id %s", ErrInvalidArgument, match.ID)
	}

	cp := cloneMatch(match)
	r.matches[cp.ID] = cp
	if cp.Status.Live() {
		r.livePairs[key] = cp
	}
	r.byRequirement[cp.RequirementID] = append(r.byRequirement[cp.RequirementID], cp)
	r.byAvailability[cp.AvailabilityID] = append(r.byAvailability[cp.AvailabilityID], cp)

	return nil
}

// GetByID retrieves a match by ID
func (r *MemoryMatchRepository) GetByID(ctx context.Context, id string) (*domain.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	match, exists := r.matches[id]
	if !exists {
		return nil, ErrMatchNotFound
	}
	return cloneMatch(match), nil
}

// FindLiveByPair returns the live match for a pair
func (r *MemoryMatchRepository) FindLiveByPair(ctx context.Context, requirementID, availabilityID string) (*domain.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	match, exists := r.livePairs[pairKey{requirementID: requirementID, availabilityID: availabilityID}]
	if !exists {
		return nil, ErrMatchNotFound
	}
	return cloneMatch(match), nil
}

// ListByRequirement returns all matches for a requirement
func (r *MemoryMatchRepository) ListByRequirement(ctx context.Context, requirementID string) ([]*domain.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return cloneMatches(r.byRequirement[requirementID]), nil
}

// ListByAvailability returns all matches for an availability
func (r *MemoryMatchRepository) ListByAvailability(ctx context.Context, availabilityID string) ([]*domain.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return cloneMatches(r.byAvailability[availabilityID]), nil
}

// UpdateStatus transitions a match to a new status. Downstream lifecycle
// logic owns transitions; the engine needs this only to release a pair slot
// when an external sweep expires a match.
func (r *MemoryMatchRepository) UpdateStatus(ctx context.Context, id string, status domain.MatchStatus) error {
	if !status.IsValid() {
		return ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	match, exists := r.matches[id]
	if !exists {
		return ErrMatchNotFound
	}

	key := pairKey{requirementID: match.RequirementID, availabilityID: match.AvailabilityID}
	wasLive := match.Status.Live()
	if !wasLive && status.Live() {
		if existing, held := r.livePairs[key]; held && existing.ID != id {
			return fmt.Errorf("%w: pair (%s, %s) held by match %s",
				ErrMatchExists, match.RequirementID, match.AvailabilityID, existing.ID)
		}
	}

	match.Status = status
	if status.Live() {
		r.livePairs[key] = match
	} else if wasLive {
		delete(r.livePairs, key)
	}
	return nil
}

func cloneMatch(in *domain.Match) *domain.Match {
	if in == nil {
		return nil
	}
	cp := *in
	if in.Risk.Violations != nil {
		cp.Risk.Violations = append([]string(nil), in.Risk.Violations...)
	}
	return &cp
}

func cloneMatches(in []*domain.Match) []*domain.Match {
	out := make([]*domain.Match, 0, len(in))
	for _, m := range in {
		out = append(out, cloneMatch(m))
	}
	return out
}
