package matcher

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"

	"ride-reconciliation-service/internal/models"
	"ride-reconciliation-service/pkg/errors"
	"ride-reconciliation-service/pkg/logger"
)

// Matcher runs the matching strategies with one configuration
type Matcher struct {
	config *MatchingConfig
	logger logger.Logger
	events EventSink

	// cascade evaluates one company/supplier pair for MatchGettTrips
	cascade func(company, supplier models.Trip) (models.MatchTier, bool)
}

// NewMatcher creates a matcher. A nil config selects DefaultMatchingConfig
// and a nil sink forwards events to the logger.
func NewMatcher(config *MatchingConfig, log logger.Logger, sink EventSink) (*Matcher, error) {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	if err := config.Validate(); err != nil {
		if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
			return nil, reconcilerErr
		}
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching", err.Error(), err)
	}

	log = logger.OrGlobal(log).WithComponent("matcher")
	if sink == nil {
		sink = NewLoggerSink(log)
	}

	m := &Matcher{
		config: config.Clone(),
		logger: log,
		events: sink,
	}
	m.cascade = m.cascadeTier
	return m, nil
}

// Config returns a copy of the active configuration
func (m *Matcher) Config() *MatchingConfig {
	return m.config.Clone()
}

// CompareByID pairs trips on identifier only. Prices are compared only when
// both are positive; a gap above the tolerance is recorded as a price
// difference and the pair is not counted as a match. Company trips with no
// id, or an id the supplier does not carry, are missing in the supplier.
// Supplier trips whose id was never requested are missing in the company
// unless the id is a summary token.
func (m *Matcher) CompareByID(company, supplier []models.Trip) *models.SupplierResult {
	result := models.NewSupplierResult("", models.StrategyID)
	idx := NewTripIndex(supplier, false)
	matchedIDs := make(map[string]bool)

	for _, c := range company {
		id := strings.TrimSpace(c.TripID)
		if id == "" {
			result.MissingInSupplier = append(result.MissingInSupplier, c)
			continue
		}
		pos, ok := idx.LookupID(id)
		if !ok {
			result.MissingInSupplier = append(result.MissingInSupplier, c)
			continue
		}
		matchedIDs[id] = true
		s := supplier[pos]

		if c.Price > 0 && s.Price > 0 {
			if diff, exceeds := m.priceDifference(c, s); exceeds {
				result.PriceDifferences = append(result.PriceDifferences, newPriceDifference(c, s, diff))
				continue
			}
		}
		result.Matches = append(result.Matches, exactMatch(c, s))
	}

	for _, s := range supplier {
		id := strings.TrimSpace(s.TripID)
		if id == "" || matchedIDs[id] || containsToken(id, m.config.SummaryTokens) {
			continue
		}
		result.MissingInCompany = append(result.MissingInCompany, s)
	}

	result.ComputeStatistics(len(company))
	m.logger.WithFields(logger.Fields{
		"strategy":            string(models.StrategyID),
		"matched":             result.Statistics.Matched,
		"missing_in_supplier": len(result.MissingInSupplier),
		"missing_in_company":  len(result.MissingInCompany),
		"price_differences":   len(result.PriceDifferences),
	}).Info("id comparison completed")
	return result
}

// MatchAll reconciles the company trips against every supplier collection.
// Exact id hits are always matches; when their prices disagree they are also
// recorded as price differences. Suppliers listed in FuzzySuppliers, and
// company trips without an id, fall back to the weighted fuzzy score.
func (m *Matcher) MatchAll(company []models.Trip, suppliers map[string][]models.Trip) map[string]*models.SupplierResult {
	keys := make([]string, 0, len(suppliers))
	for key := range suppliers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	results := make([]*models.SupplierResult, len(keys))
	if m.config.ParallelSuppliers && len(keys) > 1 {
		p := pool.New().WithMaxGoroutines(len(keys))
		for i, key := range keys {
			p.Go(func() {
				results[i] = m.matchSupplier(company, suppliers[key], key)
			})
		}
		p.Wait()
	} else {
		for i, key := range keys {
			results[i] = m.matchSupplier(company, suppliers[key], key)
		}
	}

	out := make(map[string]*models.SupplierResult, len(keys))
	for i, key := range keys {
		out[key] = results[i]
	}
	return out
}

// matchSupplier runs one sequential pass with its own claimed set
func (m *Matcher) matchSupplier(company, supplier []models.Trip, key string) *models.SupplierResult {
	start := time.Now()
	result := models.NewSupplierResult(key, models.StrategyFull)
	fuzzy := m.config.IsFuzzySupplier(key)
	idx := NewTripIndex(supplier, fuzzy)
	claimed := make(claimSet, len(supplier))

	for ci, c := range company {
		id := strings.TrimSpace(c.TripID)
		if id != "" {
			if pos, ok := idx.LookupID(id); ok {
				claimed.claim(pos)
				s := supplier[pos]
				if diff, exceeds := m.priceDifference(c, s); exceeds {
					result.PriceDifferences = append(result.PriceDifferences, newPriceDifference(c, s, diff))
				}
				result.Matches = append(result.Matches, exactMatch(c, s))
				continue
			}
		}

		if fuzzy || id == "" {
			if match, pos, ok := m.fuzzyMatch(c, supplier, claimed, key, ci); ok {
				claimed.claim(pos)
				result.Matches = append(result.Matches, match)
				continue
			}
		}

		result.MissingInSupplier = append(result.MissingInSupplier, c)
	}

	companyDates := NewTripIndex(company, false)
	sameDateCandidates := 0
	for i, s := range supplier {
		if claimed.has(i) {
			continue
		}
		if m.config.ExtraPolicy == ExtraSameDate && s.Date != "" {
			if candidates := companyDates.GetByDate(s.Date); len(candidates) > 0 {
				sameDateCandidates += len(candidates)
				result.Ambiguous = append(result.Ambiguous, s)
				continue
			}
		}
		result.ExtraInSupplier = append(result.ExtraInSupplier, s)
	}

	result.ComputeStatistics(len(company))
	stats := idx.GetIndexStats()
	m.events.Emit(Event{
		Kind:     EventSupplierMatched,
		Supplier: key,
		Message:  "supplier pass completed",
		Time:     time.Now(),
		Fields: map[string]interface{}{
			"fuzzy":                fuzzy,
			"supplier_trips":       stats.TotalTrips,
			"unique_ids":           stats.UniqueIDs,
			"composite_keys":       stats.CompositeKeys,
			"ambiguous":            len(result.Ambiguous),
			"same_date_candidates": sameDateCandidates,
			"duration":             time.Since(start).String(),
		},
	})
	m.logger.WithFields(logger.Fields{
		"supplier":          key,
		"matched":           result.Statistics.Matched,
		"missing":           result.Statistics.Missing,
		"extra":             len(result.ExtraInSupplier),
		"ambiguous":         result.Statistics.Ambiguous,
		"price_differences": result.Statistics.PriceDifferences,
	}).Info("supplier matching completed")
	return result
}

// priceDifference returns supplier minus company price and whether its
// magnitude exceeds the tolerance
func (m *Matcher) priceDifference(c, s models.Trip) (float64, bool) {
	diff := decimal.NewFromFloat(s.Price).Sub(decimal.NewFromFloat(c.Price))
	exceeds := diff.Abs().GreaterThan(decimal.NewFromFloat(m.config.PriceTolerance))
	f, _ := diff.Round(2).Float64()
	return f, exceeds
}

func newPriceDifference(c, s models.Trip, diff float64) models.PriceDifference {
	return models.PriceDifference{
		CompanyTrip:     c,
		SupplierTrip:    s,
		CompanyPrice:    c.Price,
		SupplierPrice:   s.Price,
		PriceDifference: diff,
	}
}

func exactMatch(c, s models.Trip) models.MatchRecord {
	return models.MatchRecord{
		CompanyTrip:  c,
		SupplierTrip: s,
		MatchType:    models.MatchTypeExactID,
		Confidence:   100,
	}
}
