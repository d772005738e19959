package domain

import (
	"fmt"
	"math"
)

// WeightSet holds one non-negative weight per category. Weights need not sum to 1.
type WeightSet struct {
	weights [categoryCount]float64
}

// DefaultWeights returns skills 0.40, career 0.30, culture 0.20, salary 0.10.
func DefaultWeights() WeightSet {
	var w WeightSet
	w.weights[CategorySkills] = 0.4
	w.weights[CategoryCareer] = 0.3
	w.weights[CategoryCulture] = 0.2
	w.weights[CategorySalary] = 0.1
	return w
}

// NewWeightSet builds a validated WeightSet. Every category must be present.
func NewWeightSet(m map[Category]float64) (WeightSet, error) {
	var w WeightSet
	for _, c := range AllCategories {
		v, ok := m[c]
		if !ok {
			return WeightSet{}, fmt.Errorf("weight for %s is missing: %w", c, ErrInvalidWeights)
		}
		w.weights[c] = v
	}
	if err := w.Validate(); err != nil {
		return WeightSet{}, err
	}
	return w, nil
}

// Validate checks that weights are finite, non-negative and not all zero.
func (w WeightSet) Validate() error {
	var total float64
	for _, c := range AllCategories {
		v := w.weights[c]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weight for %s must be finite: %w", c, ErrInvalidWeights)
		}
		if v < 0 {
			return fmt.Errorf("weight for %s must be >= 0, got %g: %w", c, v, ErrInvalidWeights)
		}
		total += v
	}
	if total == 0 {
		return fmt.Errorf("at least one weight must be positive: %w", ErrInvalidWeights)
	}
	return nil
}

// Of returns the weight of category c.
func (w WeightSet) Of(c Category) float64 {
	if !c.Valid() {
		return 0
	}
	return w.weights[c]
}

// Map returns the weights keyed by category.
func (w WeightSet) Map() map[Category]float64 {
	m := make(map[Category]float64, categoryCount)
	for _, c := range AllCategories {
		m[c] = w.weights[c]
	}
	return m
}
