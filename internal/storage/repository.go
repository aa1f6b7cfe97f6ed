package storage

import (
	"context"
	"errors"

	"commodity-matching/internal/domain"
)

var (
	ErrRequirementNotFound  = errors.New("requirement not found")
	ErrAvailabilityNotFound = errors.New("availability not found")
	ErrMatchNotFound        = errors.New("match not found")
	ErrMatchExists          = errors.New("live match already exists for pair")
	ErrInvalidArgument      = errors.New("invalid argument")
)

// EntitySource is the read-only candidate data source: the triggering entity
// by ID, and all ACTIVE counter-side entities for a commodity.
type EntitySource interface {
	// GetRequirement retrieves a requirement by ID
	GetRequirement(ctx context.Context, id string) (*domain.Requirement, error)

	// GetAvailability retrieves an availability by ID
	GetAvailability(ctx context.Context, id string) (*domain.Availability, error)

	// ActiveRequirements returns all ACTIVE requirements for a commodity
	ActiveRequirements(ctx context.Context, commodityID string) ([]*domain.Requirement, error)

	// ActiveAvailabilities returns all ACTIVE availabilities for a commodity
	ActiveAvailabilities(ctx context.Context, commodityID string) ([]*domain.Availability, error)
}

// MatchRepository persists matches and enforces the pair-uniqueness invariant:
// at most one live (PENDING or ACCEPTED) match per (requirement, availability)
// pair. Create must be an atomic check-and-insert so that of two concurrent
// attempts for the same pair exactly one succeeds and the other observes
// ErrMatchExists.
type MatchRepository interface {
	// Create persists a new match; ErrMatchExists if the pair already has a live match
	Create(ctx context.Context, match *domain.Match) error

	// GetByID retrieves a match by ID
	GetByID(ctx context.Context, id string) (*domain.Match, error)

	// FindLiveByPair returns the live match for a pair, or ErrMatchNotFound
	FindLiveByPair(ctx context.Context, requirementID, availabilityID string) (*domain.Match, error)

	// ListByRequirement returns all matches for a requirement
	ListByRequirement(ctx context.Context, requirementID string) ([]*domain.Match, error)

	// ListByAvailability returns all matches for an availability
	ListByAvailability(ctx context.Context, availabilityID string) ([]*domain.Match, error)
}
