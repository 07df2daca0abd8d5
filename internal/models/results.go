package models

import (
	"math"
	"time"
)

// MatchType describes what evidence paired two trips
type MatchType string

const (
	MatchTypeExactID MatchType = "exact_id"
	MatchTypeFuzzy   MatchType = "fuzzy"
)

// MatchTier is the criteria level satisfied by a cascade match
type MatchTier string

const (
	TierStrict     MatchTier = "strict"
	TierRelaxed    MatchTier = "relaxed"
	TierLastResort MatchTier = "last_resort"
)

// MatchRecord pairs one company trip with one supplier trip
type MatchRecord struct {
	CompanyTrip  Trip      `json:"company_trip"`
	SupplierTrip Trip      `json:"supplier_trip"`
	MatchType    MatchType `json:"match_type"`
	Confidence   int       `json:"confidence"`
	Tier         MatchTier `json:"tier,omitempty"`
	Score        float64   `json:"score,omitempty"`
}

// PriceDifference records an id-matched pair whose prices disagree
type PriceDifference struct {
	CompanyTrip     Trip    `json:"company_trip"`
	SupplierTrip    Trip    `json:"supplier_trip"`
	CompanyPrice    float64 `json:"company_price"`
	SupplierPrice   float64 `json:"supplier_price"`
	PriceDifference float64 `json:"price_difference"`
}

// Strategy names the matching path used for a supplier
type Strategy string

const (
	StrategyAuto    Strategy = "auto"
	StrategyID      Strategy = "id"
	StrategyFull    Strategy = "full"
	StrategyCascade Strategy = "cascade"
)

// IsValid reports whether s is a known strategy
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyAuto, StrategyID, StrategyFull, StrategyCascade:
		return true
	}
	return false
}

// SupplierStatistics summarizes one supplier's reconciliation
type SupplierStatistics struct {
	TotalCompanyTrips int     `json:"total_company_trips"`
	Matched           int     `json:"matched"`
	Missing           int     `json:"missing"`
	Extra             int     `json:"extra"`
	Ambiguous         int     `json:"ambiguous"`
	PriceDifferences  int     `json:"price_differences"`
	MatchRate         float64 `json:"match_rate"`
}

// SupplierResult holds every bucket for one supplier key. All slices are
// non-nil so that they serialize as empty arrays.
type SupplierResult struct {
	Supplier          string             `json:"supplier"`
	Strategy          Strategy           `json:"strategy"`
	Matches           []MatchRecord      `json:"matches"`
	MissingInSupplier []Trip             `json:"missing_in_supplier"`
	MissingInCompany  []Trip             `json:"missing_in_company"`
	ExtraInSupplier   []Trip             `json:"extra_in_supplier"`
	Ambiguous         []Trip             `json:"ambiguous"`
	PriceDifferences  []PriceDifference  `json:"price_differences"`
	Statistics        SupplierStatistics `json:"statistics"`

	// DateRange is set when matching was restricted to a shared date range
	DateRange *DateRange `json:"date_range,omitempty"`
}

// DateRange is the shared date window of a cascade pass and how many trips
// of each side fell outside it
type DateRange struct {
	Start            string `json:"start"`
	End              string `json:"end"`
	ExcludedCompany  int    `json:"excluded_company"`
	ExcludedSupplier int    `json:"excluded_supplier"`
}

// NewSupplierResult returns a result with every bucket initialized
func NewSupplierResult(supplier string, strategy Strategy) *SupplierResult {
	return &SupplierResult{
		Supplier:          supplier,
		Strategy:          strategy,
		Matches:           []MatchRecord{},
		MissingInSupplier: []Trip{},
		MissingInCompany:  []Trip{},
		ExtraInSupplier:   []Trip{},
		Ambiguous:         []Trip{},
		PriceDifferences:  []PriceDifference{},
	}
}

// ComputeStatistics fills Statistics from the bucket sizes
func (r *SupplierResult) ComputeStatistics(totalCompanyTrips int) {
	r.Statistics = SupplierStatistics{
		TotalCompanyTrips: totalCompanyTrips,
		Matched:           len(r.Matches),
		Missing:           len(r.MissingInSupplier),
		Extra:             len(r.ExtraInSupplier) + len(r.MissingInCompany),
		Ambiguous:         len(r.Ambiguous),
		PriceDifferences:  len(r.PriceDifferences),
	}
	if totalCompanyTrips > 0 {
		rate := float64(len(r.Matches)) / float64(totalCompanyTrips) * 100
		r.Statistics.MatchRate = math.Round(rate*100) / 100
	}
}

// ReconciliationResult is the outcome of one reconcile call
type ReconciliationResult struct {
	RunID        string                     `json:"run_id"`
	GeneratedAt  time.Time                  `json:"generated_at"`
	CompanyTrips int                        `json:"company_trips"`
	Suppliers    map[string]*SupplierResult `json:"suppliers"`
	Allocation   *AllocationResult          `json:"allocation,omitempty"`
}

// SupplierKeys returns the supplier keys in a stable order
func (r *ReconciliationResult) SupplierKeys() []string {
	return SortedKeys(r.Suppliers)
}

// DepartmentShare is one department's portion of a single ride
type DepartmentShare struct {
	Employees  []*Employee `json:"employees"`
	Allocation float64     `json:"allocation"`
	Percentage float64     `json:"percentage"`
}

// AllocationRecord splits one ride across departments
type AllocationRecord struct {
	Ride        Trip                        `json:"ride"`
	Departments map[string]*DepartmentShare `json:"departments"`
}

// DepartmentRide is a ride contributing to a department total
type DepartmentRide struct {
	Ride       Trip        `json:"ride"`
	Allocation float64     `json:"allocation"`
	Percentage float64     `json:"percentage"`
	Employees  []*Employee `json:"employees"`
}

// DepartmentTotal aggregates allocations for one department
type DepartmentTotal struct {
	TotalCost   float64          `json:"total_cost"`
	RideCount   int              `json:"ride_count"`
	AverageCost float64          `json:"average_cost"`
	Rides       []DepartmentRide `json:"rides"`
}

// UnassignedTotal aggregates rides with no resolved employee
type UnassignedTotal struct {
	TotalCost float64 `json:"total_cost"`
	RideCount int     `json:"ride_count"`
	Rides     []Trip  `json:"rides"`
}

// AllocationResult is the outcome of one allocate call
type AllocationResult struct {
	DepartmentAllocations map[string]*DepartmentTotal `json:"department_allocations"`
	RideAllocations       []AllocationRecord          `json:"ride_allocations"`
	Unassigned            UnassignedTotal             `json:"unassigned"`
}

// DepartmentNames returns the department keys in a stable order
func (r *AllocationResult) DepartmentNames() []string {
	return SortedKeys(r.DepartmentAllocations)
}
