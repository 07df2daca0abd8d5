// Package matcher pairs company trips with supplier trips.
//
// Three entry points are provided, each with its own documented policy:
//   - CompareByID pairs trips on identifier only. A price disagreement is
//     recorded as a price difference instead of a match.
//   - MatchAll runs an exact-id pass per supplier and falls back to a
//     weighted fuzzy score for suppliers with unreliable identifiers. A price
//     disagreement is recorded as a match and also as a price difference.
//   - MatchGettTrips runs a greedy first-fit cascade of strict, relaxed and
//     last-resort criteria over the shared date range of both sides.
//
// Matching inside one supplier pass is sequential and order dependent.
// MatchAll may run different suppliers concurrently; every pass owns its
// claimed set.
//
// Example usage:
//
//	config := matcher.DefaultMatchingConfig()
//	config.FuzzyThreshold = 75
//
//	m, err := matcher.NewMatcher(config, log, nil)
//	results := m.MatchAll(companyTrips, map[string][]models.Trip{"supplier2": gettTrips})
package matcher

import (
	"fmt"
	"strings"

	"ride-reconciliation-service/internal/models"
	"ride-reconciliation-service/pkg/errors"
)

// ExtraPolicy decides which unclaimed supplier trips are reported as extra
type ExtraPolicy string

const (
	// ExtraSameDate holds back unclaimed supplier trips that share a date
	// with any company trip; they are reported as ambiguous instead.
	ExtraSameDate ExtraPolicy = "same_date"
	// ExtraAll reports every unclaimed supplier trip as extra
	ExtraAll ExtraPolicy = "none"
)

// MatchingWeights are the additive contributions to a fuzzy score
type MatchingWeights struct {
	SameDate    float64 `json:"same_date" mapstructure:"same_date"`
	CloseDate   float64 `json:"close_date" mapstructure:"close_date"`
	Passengers  float64 `json:"passengers" mapstructure:"passengers"`
	Source      float64 `json:"source" mapstructure:"source"`
	Destination float64 `json:"destination" mapstructure:"destination"`
}

// Validate checks weights are non-negative
func (w *MatchingWeights) Validate() error {
	for name, v := range map[string]float64{
		"same_date":   w.SameDate,
		"close_date":  w.CloseDate,
		"passengers":  w.Passengers,
		"source":      w.Source,
		"destination": w.Destination,
	} {
		if v < 0 {
			return fmt.Errorf("%s weight cannot be negative: %f", name, v)
		}
	}
	return nil
}

// MatchingConfig holds thresholds and weights for every matching strategy
type MatchingConfig struct {
	// FuzzyThreshold is the minimum score a fuzzy candidate must reach
	FuzzyThreshold float64 `json:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`

	// PriceTolerance is the largest price gap not reported as a difference
	PriceTolerance float64 `json:"price_tolerance" mapstructure:"price_tolerance"`

	// DateCloseDays is how far apart two dates may be and still count as close
	DateCloseDays int `json:"date_close_days" mapstructure:"date_close_days"`

	// LocationSimilarity is the minimum ratio for two location labels to match
	LocationSimilarity int `json:"location_similarity" mapstructure:"location_similarity"`

	StrictTimeToleranceMinutes  int `json:"strict_time_tolerance_minutes" mapstructure:"strict_time_tolerance_minutes"`
	RelaxedTimeToleranceMinutes int `json:"relaxed_time_tolerance_minutes" mapstructure:"relaxed_time_tolerance_minutes"`

	// FuzzySuppliers lists supplier keys whose ids are unreliable
	FuzzySuppliers []string `json:"fuzzy_suppliers" mapstructure:"fuzzy_suppliers"`

	ExtraPolicy ExtraPolicy `json:"extra_policy" mapstructure:"extra_policy"`

	// SummaryTokens mark supplier ids that are never reported as missing in the company ledger
	SummaryTokens []string `json:"summary_tokens" mapstructure:"summary_tokens"`

	// ParallelSuppliers runs MatchAll supplier passes concurrently
	ParallelSuppliers bool `json:"parallel_suppliers" mapstructure:"parallel_suppliers"`

	Weights MatchingWeights `json:"weights" mapstructure:"weights"`
}

// DefaultMatchingConfig returns the thresholds used for supplier invoices
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		FuzzyThreshold:              70,
		PriceTolerance:              0.01,
		DateCloseDays:               1,
		LocationSimilarity:          95,
		StrictTimeToleranceMinutes:  5,
		RelaxedTimeToleranceMinutes: 180,
		FuzzySuppliers:              []string{"supplier2"},
		ExtraPolicy:                 ExtraSameDate,
		SummaryTokens:               append([]string(nil), models.DefaultSummaryTokens...),
		ParallelSuppliers:           true,
		Weights: MatchingWeights{
			SameDate:    40,
			CloseDate:   20,
			Passengers:  0.3,
			Source:      0.15,
			Destination: 0.15,
		},
	}
}

// StrictMatchingConfig raises the fuzzy bar and reports every unclaimed trip
func StrictMatchingConfig() *MatchingConfig {
	c := DefaultMatchingConfig()
	c.FuzzyThreshold = 85
	c.DateCloseDays = 0
	c.RelaxedTimeToleranceMinutes = 60
	c.LocationSimilarity = 98
	c.ExtraPolicy = ExtraAll
	return c
}

// RelaxedMatchingConfig accepts weaker evidence
func RelaxedMatchingConfig() *MatchingConfig {
	c := DefaultMatchingConfig()
	c.FuzzyThreshold = 60
	c.DateCloseDays = 2
	c.RelaxedTimeToleranceMinutes = 240
	c.LocationSimilarity = 90
	return c
}

// Preset names a bundled matching configuration
type Preset string

const (
	PresetDefault Preset = "default"
	PresetStrict  Preset = "strict"
	PresetRelaxed Preset = "relaxed"
)

// PresetConfig returns the configuration bundled under name. An empty name
// selects the default preset.
func PresetConfig(name string) (*MatchingConfig, error) {
	switch Preset(strings.ToLower(strings.TrimSpace(name))) {
	case "", PresetDefault:
		return DefaultMatchingConfig(), nil
	case PresetStrict:
		return StrictMatchingConfig(), nil
	case PresetRelaxed:
		return RelaxedMatchingConfig(), nil
	}
	return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching.preset", name, nil).
		WithSuggestion("use one of: default, strict, relaxed")
}

// Validate checks the configuration for consistency. Settings that
// contradict each other are reported with CodeConfigConflict.
func (mc *MatchingConfig) Validate() error {
	if mc.FuzzyThreshold < 0 || mc.FuzzyThreshold > 100 {
		return fmt.Errorf("fuzzy threshold must be between 0 and 100: %f", mc.FuzzyThreshold)
	}
	if mc.PriceTolerance < 0 {
		return fmt.Errorf("price tolerance cannot be negative: %f", mc.PriceTolerance)
	}
	if mc.DateCloseDays < 0 {
		return fmt.Errorf("date close days cannot be negative: %d", mc.DateCloseDays)
	}
	if mc.LocationSimilarity < 0 || mc.LocationSimilarity > 100 {
		return fmt.Errorf("location similarity must be between 0 and 100: %d", mc.LocationSimilarity)
	}
	if mc.StrictTimeToleranceMinutes < 0 {
		return fmt.Errorf("strict time tolerance cannot be negative: %d", mc.StrictTimeToleranceMinutes)
	}
	if mc.RelaxedTimeToleranceMinutes < mc.StrictTimeToleranceMinutes {
		return errors.ConfigurationError(
			errors.CodeConfigConflict,
			"relaxed_time_tolerance_minutes",
			mc.RelaxedTimeToleranceMinutes,
			fmt.Errorf("relaxed time tolerance %d is below strict tolerance %d",
				mc.RelaxedTimeToleranceMinutes, mc.StrictTimeToleranceMinutes),
		).WithContext("strict_time_tolerance_minutes", mc.StrictTimeToleranceMinutes)
	}
	if mc.RelaxedTimeToleranceMinutes > minutesPerDay/2 {
		return fmt.Errorf("relaxed time tolerance cannot exceed half a day: %d", mc.RelaxedTimeToleranceMinutes)
	}
	switch mc.ExtraPolicy {
	case ExtraSameDate, ExtraAll:
	default:
		return fmt.Errorf("invalid extra policy: %q", mc.ExtraPolicy)
	}
	if mc.Weights.CloseDate > mc.Weights.SameDate {
		return errors.ConfigurationError(
			errors.CodeConfigConflict,
			"weights.close_date",
			mc.Weights.CloseDate,
			fmt.Errorf("close date weight %f exceeds same date weight %f", mc.Weights.CloseDate, mc.Weights.SameDate),
		).WithContext("weights.same_date", mc.Weights.SameDate)
	}
	if err := mc.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}
	return nil
}

// IsFuzzySupplier reports whether key needs fuzzy matching
func (mc *MatchingConfig) IsFuzzySupplier(key string) bool {
	for _, k := range mc.FuzzySuppliers {
		if k == key {
			return true
		}
	}
	return false
}

// Clone creates a deep copy of the configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}
	clone := *mc
	clone.FuzzySuppliers = append([]string(nil), mc.FuzzySuppliers...)
	clone.SummaryTokens = append([]string(nil), mc.SummaryTokens...)
	return &clone
}
