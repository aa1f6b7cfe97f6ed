package matching

import (
	"errors"
	"fmt"
	"math"
)

const weightSumEpsilon = 1e-9

// Weights holds the per-factor score weights. They must sum to 1.0.
type Weights struct {
	Quality  float64 // Quality factor weight
	Price    float64 // Price factor weight
	Quantity float64 // Quantity factor weight
	Delivery float64 // Delivery factor weight
}

// Config is the immutable matching configuration injected at construction.
// No component reads weights or thresholds from anywhere else.
type Config struct {
	Weights             Weights // Per-factor weights, sum 1.0
	AcceptThreshold     float64 // Minimum adjusted score for a match (default 0.6)
	PriceTolerance      float64 // Fraction by which seller price may exceed buyer ceiling (default 0)
	MaxDistanceKm       float64 // Maximum same-region great-circle distance
	MaxQualityDeviation float64 // Deviation bound at which out-of-range quality decays to 0
	WarnPenalty         float64 // Multiplier applied on a WARN risk verdict (default 0.9)
}

// DefaultConfig returns the reference configuration
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Quality:  0.40,
			Price:    0.30,
			Quantity: 0.15,
			Delivery: 0.15,
		},
		AcceptThreshold:     0.6,
		PriceTolerance:      0,
		MaxDistanceKm:       500,
		MaxQualityDeviation: 2.0,
		WarnPenalty:         0.9,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	sum := c.Weights.Quality + c.Weights.Price + c.Weights.Quantity + c.Weights.Delivery
	if math.Abs(sum-1.0) > weightSumEpsilon {
		return fmt.Errorf("score weights must sum to 1.0, got %v", sum)
	}
	if c.Weights.Quality < 0 || c.Weights.Price < 0 || c.Weights.Quantity < 0 || c.Weights.Delivery < 0 {
		return errors.New("score weights must be non-negative")
	}
	if c.AcceptThreshold < 0 || c.AcceptThreshold > 1 {
		return errors.New("accept threshold must be in [0,1]")
	}
	if c.PriceTolerance < 0 {
		return errors.New("price tolerance must be non-negative")
	}
	if c.MaxDistanceKm <= 0 {
		return errors.New("max distance must be positive")
	}
	if c.MaxQualityDeviation <= 0 {
		return errors.New("max quality deviation must be positive")
	}
	if c.WarnPenalty <= 0 || c.WarnPenalty > 1 {
		return errors.New("warn penalty must be in (0,1]")
	}
	return nil
}
