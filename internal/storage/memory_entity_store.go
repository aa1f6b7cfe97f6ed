package storage

import (
	"context"
	"sync"
	"time"

	"commodity-matching/internal/domain"
)

// MemoryEntityStore is an in-memory implementation of EntitySource that also
// accepts writes from the entity-source surface. The matching engine itself
// only ever reads from it.
type MemoryEntityStore struct {
	mu sync.RWMutex

	// Primary storage
	requirements   map[string]*domain.Requirement
	availabilities map[string]*domain.Availability

	// Commodity indexes for candidate fetch
	requirementsByCommodity   map[string][]*domain.Requirement
	availabilitiesByCommodity map[string][]*domain.Availability
}

// NewMemoryEntityStore creates a new in-memory entity store
func NewMemoryEntityStore() *MemoryEntityStore {
	return &MemoryEntityStore{
		requirements:              make(map[string]*domain.Requirement),
		availabilities:            make(map[string]*domain.Availability),
		requirementsByCommodity:   make(map[string][]*domain.Requirement),
		availabilitiesByCommodity: make(map[string][]*domain.Availability),
	}
}

// PutRequirement creates or replaces a requirement
func (s *MemoryEntityStore) PutRequirement(ctx context.Context, req *domain.Requirement) error {
	if req == nil || req.ID == "" {
		return ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.requirements[req.ID]; exists {
		s.requirementsByCommodity[existing.CommodityID] = removeRequirement(s.requirementsByCommodity[existing.CommodityID], existing.ID)
	}

	cp := cloneRequirement(req)
	s.requirements[cp.ID] = cp
	s.requirementsByCommodity[cp.CommodityID] = append(s.requirementsByCommodity[cp.CommodityID], cp)
	return nil
}

// PutAvailability creates or replaces an availability
func (s *MemoryEntityStore) PutAvailability(ctx context.Context, av *domain.Availability) error {
	if av == nil || av.ID == "" {
		return ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.availabilities[av.ID]; exists {
		s.availabilitiesByCommodity[existing.CommodityID] = removeAvailability(s.availabilitiesByCommodity[existing.CommodityID], existing.ID)
	}

	cp := cloneAvailability(av)
	s.availabilities[cp.ID] = cp
	s.availabilitiesByCommodity[cp.CommodityID] = append(s.availabilitiesByCommodity[cp.CommodityID], cp)
	return nil
}

// GetRequirement retrieves a requirement by ID
func (s *MemoryEntityStore) GetRequirement(ctx context.Context, id string) (*domain.Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, exists := s.requirements[id]
	if !exists {
		return nil, ErrRequirementNotFound
	}
	return cloneRequirement(req), nil
}

// GetAvailability retrieves an availability by ID
func (s *MemoryEntityStore) GetAvailability(ctx context.Context, id string) (*domain.Availability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	av, exists := s.availabilities[id]
	if !exists {
		return nil, ErrAvailabilityNotFound
	}
	return cloneAvailability(av), nil
}

// ActiveRequirements returns all ACTIVE, non-expired requirements for a commodity
func (s *MemoryEntityStore) ActiveRequirements(ctx context.Context, commodityID string) ([]*domain.Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var out []*domain.Requirement
	for _, req := range s.requirementsByCommodity[commodityID] {
		if req.Matchable(now) {
			out = append(out, cloneRequirement(req))
		}
	}
	return out, nil
}

// ActiveAvailabilities returns all ACTIVE, non-expired availabilities for a commodity
func (s *MemoryEntityStore) ActiveAvailabilities(ctx context.Context, commodityID string) ([]*domain.Availability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var out []*domain.Availability
	for _, av := range s.availabilitiesByCommodity[commodityID] {
		if av.Matchable(now) {
			out = append(out, cloneAvailability(av))
		}
	}
	return out, nil
}

func removeRequirement(list []*domain.Requirement, id string) []*domain.Requirement {
	for i, r := range list {
		if r.ID == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func removeAvailability(list []*domain.Availability, id string) []*domain.Availability {
	for i, a := range list {
		if a.ID == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func cloneRequirement(in *domain.Requirement) *domain.Requirement {
	if in == nil {
		return nil
	}
	cp := *in
	if in.Quality != nil {
		cp.Quality = make(map[string]domain.QualitySpec, len(in.Quality))
		for k, v := range in.Quality {
			cp.Quality[k] = v
		}
	}
	if in.Delivery != nil {
		cp.Delivery = append([]domain.DeliveryOption(nil), in.Delivery...)
	}
	return &cp
}

func cloneAvailability(in *domain.Availability) *domain.Availability {
	if in == nil {
		return nil
	}
	cp := *in
	if in.Quality != nil {
		cp.Quality = make(map[string]float64, len(in.Quality))
		for k, v := range in.Quality {
			cp.Quality[k] = v
		}
	}
	return &cp
}
