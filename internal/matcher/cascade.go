package matcher

import (
	"time"

	"ride-reconciliation-service/internal/models"
	"ride-reconciliation-service/pkg/logger"
)

// CascadeResult is the outcome of MatchGettTrips
type CascadeResult struct {
	Matches           []models.MatchRecord `json:"matches"`
	UnmatchedCompany  []models.Trip        `json:"unmatched_company"`
	UnmatchedSupplier []models.Trip        `json:"unmatched_supplier"`

	// RangeStart and RangeEnd bound the shared date range; empty when no
	// trimming was applied.
	RangeStart string `json:"range_start,omitempty"`
	RangeEnd   string `json:"range_end,omitempty"`

	// OutOfRange trips were excluded from the pass by the date range
	OutOfRangeCompany  []models.Trip `json:"out_of_range_company"`
	OutOfRangeSupplier []models.Trip `json:"out_of_range_supplier"`
}

// TierCounts returns how many matches each tier produced
func (r *CascadeResult) TierCounts() map[models.MatchTier]int {
	counts := make(map[models.MatchTier]int, 3)
	for _, m := range r.Matches {
		counts[m.Tier]++
	}
	return counts
}

// MatchGettTrips pairs supplier trips with company trips by greedy first
// fit. Both sides are first restricted to their shared date range. For each
// supplier trip in input order, the first unclaimed company trip meeting
// the strict, relaxed or last-resort criteria is taken.
func (m *Matcher) MatchGettTrips(company, supplier []models.Trip) *CascadeResult {
	const key = "supplier2"
	result := &CascadeResult{
		Matches:            []models.MatchRecord{},
		UnmatchedCompany:   []models.Trip{},
		UnmatchedSupplier:  []models.Trip{},
		OutOfRangeCompany:  []models.Trip{},
		OutOfRangeSupplier: []models.Trip{},
	}

	companyIdx := NewTripIndex(company, false)
	supplierIdx := NewTripIndex(supplier, false)
	cMin, cMax, cOK := companyIdx.DateRange()
	sMin, sMax, sOK := supplierIdx.DateRange()

	if cOK && sOK {
		start, end := cMin, cMax
		if sMin.After(start) {
			start = sMin
		}
		if sMax.Before(end) {
			end = sMax
		}
		result.RangeStart = start.Format(isoDate)
		result.RangeEnd = end.Format(isoDate)

		company, result.OutOfRangeCompany = splitByRange(company, start, end)
		supplier, result.OutOfRangeSupplier = splitByRange(supplier, start, end)

		m.events.Emit(Event{
			Kind:     EventDateRangeTrimmed,
			Supplier: key,
			Message:  "date range trimmed",
			Time:     time.Now(),
			Fields: map[string]interface{}{
				"start_date":           result.RangeStart,
				"end_date":             result.RangeEnd,
				"company_count_after":  len(company),
				"supplier_count_after": len(supplier),
			},
		})
	}

	claimed := make(claimSet, len(company))
	for si, s := range supplier {
		matched := false
		for ci, c := range company {
			if claimed.has(ci) {
				continue
			}
			tier, ok := m.safeCascade(c, s, ci, si)
			if !ok {
				continue
			}
			claimed.claim(ci)
			result.Matches = append(result.Matches, models.MatchRecord{
				CompanyTrip:  c,
				SupplierTrip: s,
				MatchType:    models.MatchTypeFuzzy,
				Confidence:   100,
				Tier:         tier,
			})
			matched = true
			break
		}
		if !matched {
			result.UnmatchedSupplier = append(result.UnmatchedSupplier, s)
		}
	}

	for ci, c := range company {
		if !claimed.has(ci) {
			result.UnmatchedCompany = append(result.UnmatchedCompany, c)
		}
	}

	tiers := result.TierCounts()
	m.logger.WithFields(logger.Fields{
		"supplier":           key,
		"matched":            len(result.Matches),
		"strict":             tiers[models.TierStrict],
		"relaxed":            tiers[models.TierRelaxed],
		"last_resort":        tiers[models.TierLastResort],
		"unmatched_company":  len(result.UnmatchedCompany),
		"unmatched_supplier": len(result.UnmatchedSupplier),
	}).Info("cascade matching completed")
	return result
}

func (m *Matcher) safeCascade(c, s models.Trip, ci, si int) (tier models.MatchTier, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.emitRecovered("cascade", "supplier2", ci, si, r)
			tier, ok = "", false
		}
	}()
	return m.cascade(c, s)
}

// cascadeTier returns the first criteria tier the pair satisfies. Dates
// within DateCloseDays are required by every tier.
func (m *Matcher) cascadeTier(c, s models.Trip) (models.MatchTier, bool) {
	if c.Date == "" || s.Date == "" || !datesClose(c.Date, s.Date, m.config.DateCloseDays) {
		return "", false
	}

	sourceOK := locationsMatch(c.Source, s.Source, m.config.LocationSimilarity)
	destOK := locationsMatch(c.Destination, s.Destination, m.config.LocationSimilarity)
	if !sourceOK || !destOK {
		return "", false
	}

	if sharesPassenger(c.Passengers, s.Passengers) {
		if timesWithin(c.Time, s.Time, m.config.StrictTimeToleranceMinutes) {
			return models.TierStrict, true
		}
		if timesWithin(c.Time, s.Time, m.config.RelaxedTimeToleranceMinutes) {
			return models.TierRelaxed, true
		}
	}
	return models.TierLastResort, true
}

// splitByRange keeps trips whose date lies within [start, end]
func splitByRange(trips []models.Trip, start, end time.Time) ([]models.Trip, []models.Trip) {
	in := make([]models.Trip, 0, len(trips))
	out := []models.Trip{}
	for _, t := range trips {
		d, ok := parseISODate(t.Date)
		if ok && !d.Before(start) && !d.After(end) {
			in = append(in, t)
		} else {
			out = append(out, t)
		}
	}
	return in, out
}
