package matcher

import (
	"fmt"
	"strings"
	"time"

	"ride-reconciliation-service/internal/models"
	"ride-reconciliation-service/internal/similarity"
	"ride-reconciliation-service/pkg/errors"
)

// fuzzyMatch returns the best unclaimed supplier trip scoring at or above
// the threshold. Only a strictly higher score replaces the current best, so
// ties keep the earliest trip.
func (m *Matcher) fuzzyMatch(c models.Trip, supplier []models.Trip, claimed claimSet, key string, ci int) (models.MatchRecord, int, bool) {
	best := -1
	bestScore := 0.0

	for i, s := range supplier {
		if claimed.has(i) {
			continue
		}
		score, factors, ok := m.safeScore(c, s, key, ci, i)
		if !ok || factors == 0 {
			continue
		}
		if score > bestScore && score >= m.config.FuzzyThreshold {
			best = i
			bestScore = score
		}
	}

	if best < 0 {
		return models.MatchRecord{}, 0, false
	}
	confidence := int(bestScore)
	if confidence > 100 {
		confidence = 100
	}
	return models.MatchRecord{
		CompanyTrip:  c,
		SupplierTrip: supplier[best],
		MatchType:    models.MatchTypeFuzzy,
		Confidence:   confidence,
		Score:        bestScore,
	}, best, true
}

func (m *Matcher) safeScore(c, s models.Trip, key string, ci, si int) (score float64, factors int, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.emitRecovered("fuzzy", key, ci, si, r)
			score, factors, ok = 0, 0, false
		}
	}()
	score, factors = m.FuzzyScore(c, s)
	return score, factors, true
}

// FuzzyScore adds the weighted date, passenger, source and destination
// evidence for a pair. Factors without data on both sides contribute
// nothing and are not counted. The total is not normalized by the number
// of factors.
func (m *Matcher) FuzzyScore(c, s models.Trip) (float64, int) {
	w := m.config.Weights
	score := 0.0
	factors := 0

	if c.Date != "" && s.Date != "" {
		if c.Date == s.Date {
			score += w.SameDate
		} else if datesClose(c.Date, s.Date, m.config.DateCloseDays) {
			score += w.CloseDate
		}
		factors++
	}

	if len(c.Passengers) > 0 && len(s.Passengers) > 0 {
		score += float64(PassengerScore(c.Passengers, s.Passengers)) * w.Passengers
		factors++
	}

	if c.Source != "" && s.Source != "" {
		score += float64(similarity.PartialRatio(strings.ToLower(c.Source), strings.ToLower(s.Source))) * w.Source
		factors++
	}

	if c.Destination != "" && s.Destination != "" {
		score += float64(similarity.PartialRatio(strings.ToLower(c.Destination), strings.ToLower(s.Destination))) * w.Destination
		factors++
	}

	return score, factors
}

// PassengerScore averages, over the company passengers, the best ratio
// against a supplier passenger not yet taken by an earlier company
// passenger of the same ride. The average is floored.
func PassengerScore(company, supplier []string) int {
	if len(company) == 0 || len(supplier) == 0 {
		return 0
	}
	taken := make([]bool, len(supplier))
	total := 0

	for _, cp := range company {
		bestScore, bestIdx := 0, -1
		lowered := strings.ToLower(cp)
		for j, sp := range supplier {
			if taken[j] {
				continue
			}
			if score := similarity.Ratio(lowered, strings.ToLower(sp)); score > bestScore {
				bestScore, bestIdx = score, j
			}
		}
		if bestIdx >= 0 {
			taken[bestIdx] = true
		}
		total += bestScore
	}
	return total / len(company)
}

func (m *Matcher) emitRecovered(pass, key string, ci, si int, r interface{}) {
	err := errors.ReconciliationError(
		errors.CodePairEvaluation,
		pass,
		fmt.Errorf("recovered panic: %v", r),
	).WithContext("supplier", key).
		WithContext("company_index", ci).
		WithContext("supplier_index", si)

	m.events.Emit(Event{
		Kind:     EventPairRecovered,
		Supplier: key,
		Message:  "pair evaluation failed; treated as non-matching",
		Time:     time.Now(),
		Err:      err,
		Fields: map[string]interface{}{
			"pass":           pass,
			"company_index":  ci,
			"supplier_index": si,
		},
	})
}
