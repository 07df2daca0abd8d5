// Package allocator splits ride costs across departments by the headcount of
// employees resolved from each ride's passenger list.
package allocator

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"ride-reconciliation-service/internal/models"
	"ride-reconciliation-service/internal/normalizer"
	"ride-reconciliation-service/pkg/logger"
)

var (
	trailingNumber = regexp.MustCompile(`(\d+)\s*;?\s*$`)
	stripNumber    = regexp.MustCompile(`\s*\d+\s*;?\s*$`)
	stripMarkers   = regexp.MustCompile(`\s*\*\*?\s*`)
)

var hundred = decimal.NewFromInt(100)

// DepartmentAllocator resolves passengers against one employee index
type DepartmentAllocator struct {
	employees *models.EmployeeIndex
	logger    logger.Logger
}

// NewDepartmentAllocator creates an allocator. A nil index resolves nobody,
// so every ride is unassigned.
func NewDepartmentAllocator(employees *models.EmployeeIndex, log logger.Logger) *DepartmentAllocator {
	if employees == nil {
		employees = models.NewEmployeeIndex()
	}
	return &DepartmentAllocator{
		employees: employees,
		logger:    logger.OrGlobal(log).WithComponent("allocator"),
	}
}

// ResolvePassenger maps a passenger string to an employee. A trailing number
// is tried as an id first. Otherwise the cleaned name is looked up whole,
// then as first and last word, then without its last word. No similarity
// scoring is applied.
func (a *DepartmentAllocator) ResolvePassenger(passenger string) (*models.Employee, bool) {
	passenger = strings.TrimSpace(passenger)
	if passenger == "" {
		return nil, false
	}

	if m := trailingNumber.FindStringSubmatch(passenger); m != nil {
		if e, ok := a.employees.LookupID(m[1]); ok {
			return e, true
		}
	}

	name := stripNumber.ReplaceAllString(passenger, "")
	name = stripMarkers.ReplaceAllString(name, " ")
	name = normalizer.NormalizeName(name)
	if name == "" {
		return nil, false
	}

	if e, ok := a.employees.LookupName(name); ok {
		return e, true
	}

	words := strings.Fields(name)
	if len(words) >= 2 {
		if e, ok := a.employees.LookupName(words[0] + " " + words[len(words)-1]); ok {
			return e, true
		}
	}
	if len(words) >= 3 {
		if e, ok := a.employees.LookupName(strings.Join(words[:len(words)-1], " ")); ok {
			return e, true
		}
	}
	return nil, false
}

// AllocateRide splits one ride's price across the departments of its
// resolved employees. An employee listed twice counts once. A ride with no
// resolved employee goes to the unassigned department in full.
func (a *DepartmentAllocator) AllocateRide(ride models.Trip) models.AllocationRecord {
	record := models.AllocationRecord{
		Ride:        ride,
		Departments: make(map[string]*models.DepartmentShare),
	}

	var matched []*models.Employee
	seen := make(map[string]bool)
	for _, p := range ride.Passengers {
		e, ok := a.ResolvePassenger(p)
		if !ok {
			a.logger.WithFields(logger.Fields{"ride": ride.TripID, "passenger": p}).Debug("passenger not resolved")
			continue
		}
		key := e.Key()
		if key != "" {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		matched = append(matched, e)
	}

	price := decimal.NewFromFloat(ride.Price)
	if len(matched) == 0 {
		allocation, _ := price.Round(2).Float64()
		record.Departments[models.UnassignedDepartment] = &models.DepartmentShare{
			Employees:  []*models.Employee{},
			Allocation: allocation,
			Percentage: 100,
		}
		return record
	}

	groups := make(map[string][]*models.Employee)
	for _, e := range matched {
		dept := strings.TrimSpace(e.Department)
		if dept == "" {
			dept = models.UnassignedDepartment
		}
		groups[dept] = append(groups[dept], e)
	}

	total := decimal.NewFromInt(int64(len(matched)))
	for dept, employees := range groups {
		share := decimal.NewFromInt(int64(len(employees))).Div(total)
		allocation, _ := price.Mul(share).Round(2).Float64()
		percentage, _ := share.Mul(hundred).Round(2).Float64()
		record.Departments[dept] = &models.DepartmentShare{
			Employees:  employees,
			Allocation: allocation,
			Percentage: percentage,
		}
	}
	return record
}

// AllocateRides allocates every ride and aggregates per-department totals.
// Rides without any resolved employee are also collected in Unassigned.
func (a *DepartmentAllocator) AllocateRides(rides []models.Trip) *models.AllocationResult {
	stage := logger.StartStage(a.logger, "allocate", logger.Fields{"rides": len(rides)})
	result := &models.AllocationResult{
		DepartmentAllocations: make(map[string]*models.DepartmentTotal),
		RideAllocations:       make([]models.AllocationRecord, 0, len(rides)),
		Unassigned:            models.UnassignedTotal{Rides: []models.Trip{}},
	}

	totals := make(map[string]decimal.Decimal)
	unassigned := decimal.Zero

	for _, ride := range rides {
		record := a.AllocateRide(ride)
		result.RideAllocations = append(result.RideAllocations, record)

		for _, dept := range models.SortedKeys(record.Departments) {
			share := record.Departments[dept]
			total, ok := result.DepartmentAllocations[dept]
			if !ok {
				total = &models.DepartmentTotal{Rides: []models.DepartmentRide{}}
				result.DepartmentAllocations[dept] = total
			}
			totals[dept] = totals[dept].Add(decimal.NewFromFloat(share.Allocation))
			total.RideCount++
			total.Rides = append(total.Rides, models.DepartmentRide{
				Ride:       ride,
				Allocation: share.Allocation,
				Percentage: share.Percentage,
				Employees:  share.Employees,
			})
		}

		// The unassigned total sums the rounded share so it agrees with the
		// per-ride allocation and the Unassigned department total
		if isUnassigned(record) {
			unassigned = unassigned.Add(decimal.NewFromFloat(record.Departments[models.UnassignedDepartment].Allocation))
			result.Unassigned.RideCount++
			result.Unassigned.Rides = append(result.Unassigned.Rides, ride)
		}
	}

	for dept, total := range result.DepartmentAllocations {
		sum := totals[dept]
		total.TotalCost, _ = sum.Round(2).Float64()
		if total.RideCount > 0 {
			total.AverageCost, _ = sum.Div(decimal.NewFromInt(int64(total.RideCount))).Round(2).Float64()
		}
	}
	result.Unassigned.TotalCost, _ = unassigned.Round(2).Float64()

	a.logger.WithFields(logger.Fields{
		"departments":      len(result.DepartmentAllocations),
		"unassigned_rides": result.Unassigned.RideCount,
	}).Info("allocation completed")
	stage.Done(len(rides))
	return result
}

// isUnassigned reports whether no employee was resolved for the ride
func isUnassigned(record models.AllocationRecord) bool {
	share, ok := record.Departments[models.UnassignedDepartment]
	return ok && len(record.Departments) == 1 && len(share.Employees) == 0
}
