package matcher

import (
	"strings"
	"time"

	"ride-reconciliation-service/internal/models"
)

// TripIndex provides lookups over one trip collection by position
type TripIndex struct {
	trips       []models.Trip
	byID        map[string]int
	byComposite map[string]int
	byDate      map[string][]int
	minDate     time.Time
	maxDate     time.Time
	hasDates    bool
}

// IndexStats provides statistics about an index
type IndexStats struct {
	TotalTrips    int `json:"total_trips"`
	UniqueIDs     int `json:"unique_ids"`
	UniqueDates   int `json:"unique_dates"`
	CompositeKeys int `json:"composite_keys"`
}

// NewTripIndex indexes trips. When a trip id repeats, the later trip wins
// the id lookup. Composite keys are only built when withComposite is set.
func NewTripIndex(trips []models.Trip, withComposite bool) *TripIndex {
	idx := &TripIndex{
		trips:  trips,
		byID:   make(map[string]int),
		byDate: make(map[string][]int),
	}
	if withComposite {
		idx.byComposite = make(map[string]int)
	}

	for i, trip := range trips {
		if id := strings.TrimSpace(trip.TripID); id != "" {
			idx.byID[id] = i
		}
		if withComposite {
			idx.byComposite[CompositeKey(trip)] = i
		}
		if trip.Date == "" {
			continue
		}
		idx.byDate[trip.Date] = append(idx.byDate[trip.Date], i)
		if t, ok := parseISODate(trip.Date); ok {
			if !idx.hasDates || t.Before(idx.minDate) {
				idx.minDate = t
			}
			if !idx.hasDates || t.After(idx.maxDate) {
				idx.maxDate = t
			}
			idx.hasDates = true
		}
	}
	return idx
}

// CompositeKey joins date, passengers, source and destination
func CompositeKey(trip models.Trip) string {
	return strings.Join([]string{
		trip.Date,
		strings.Join(trip.Passengers, ","),
		trip.Source,
		trip.Destination,
	}, "|")
}

// LookupID returns the position of the trip carrying id
func (idx *TripIndex) LookupID(id string) (int, bool) {
	pos, ok := idx.byID[strings.TrimSpace(id)]
	return pos, ok
}

// LookupComposite returns the position of the trip with the same composite key
func (idx *TripIndex) LookupComposite(trip models.Trip) (int, bool) {
	if idx.byComposite == nil {
		return 0, false
	}
	pos, ok := idx.byComposite[CompositeKey(trip)]
	return pos, ok
}

// GetByDate returns the positions of trips on date in input order
func (idx *TripIndex) GetByDate(date string) []int {
	return idx.byDate[date]
}

// DateRange returns the earliest and latest parseable dates
func (idx *TripIndex) DateRange() (time.Time, time.Time, bool) {
	return idx.minDate, idx.maxDate, idx.hasDates
}

// GetIndexStats returns statistics about the index
func (idx *TripIndex) GetIndexStats() IndexStats {
	return IndexStats{
		TotalTrips:    len(idx.trips),
		UniqueIDs:     len(idx.byID),
		UniqueDates:   len(idx.byDate),
		CompositeKeys: len(idx.byComposite),
	}
}

// claimSet tracks which positions of one collection are already paired
type claimSet map[int]bool

func (c claimSet) claim(pos int)    { c[pos] = true }
func (c claimSet) has(pos int) bool { return c[pos] }
