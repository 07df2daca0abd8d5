package allocator

import (
	"math"
	"testing"

	"ride-reconciliation-service/internal/models"
	"ride-reconciliation-service/pkg/logger"
)

func createTestEmployees() *models.EmployeeIndex {
	idx := models.NewEmployeeIndex()
	add := func(id, number, first, last, dept string, keys ...string) {
		full := first + " " + last
		idx.Add(&models.Employee{
			ID:                 id,
			EmployeeNumber:     number,
			FirstName:          first,
			LastName:           last,
			FullName:           full,
			FullNameNormalized: full,
			Department:         dept,
		}, append([]string{full}, keys...)...)
	}
	add("41200", "", "Dana", "Cohen", "Sales")
	add("40170", "", "Avi", "Levi", "Ops")
	add("43313", "", "Yehezkel Hezi", "Akiva", "Ops", "Yehezkel Akiva")
	add("", "", "Noa", "Bar", "")
	add("50001", "", "Shira", "Mor", "Sales")
	return idx
}

func newTestAllocator() *DepartmentAllocator {
	return NewDepartmentAllocator(createTestEmployees(), logger.NewNop())
}

func TestResolvePassenger(t *testing.T) {
	a := newTestAllocator()

	tests := []struct {
		passenger string
		expected  string
	}{
		{"Dana Cohen 41200", "41200"},
		{"Someone Else 41200;", "41200"},
		{"Avi Levi ** 99999;", "40170"},
		{"Avi   Levi", "40170"},
		{"Yehezkel Hezi Akiva 77777", "43313"},
		{"Yehezkel Akiva", "43313"},
		{"Shira Mor Extra", "50001"},
		{"Dana Cohn", ""},
		{"", ""},
		{"12345", ""},
	}

	for _, tt := range tests {
		t.Run(tt.passenger, func(t *testing.T) {
			e, ok := a.ResolvePassenger(tt.passenger)
			if tt.expected == "" {
				if ok {
					t.Errorf("expected no employee, got %+v", e)
				}
				return
			}
			if !ok {
				t.Fatalf("expected employee %s, got none", tt.expected)
			}
			if e.ID != tt.expected {
				t.Errorf("ResolvePassenger(%q) = %s, want %s", tt.passenger, e.ID, tt.expected)
			}
		})
	}
}

func TestAllocateRide(t *testing.T) {
	a := newTestAllocator()

	tests := []struct {
		name      string
		ride      models.Trip
		expected  map[string][2]float64
		employees map[string]int
	}{
		{
			name:      "single employee",
			ride:      models.Trip{Price: 100, Passengers: []string{"Dana Cohen 41200"}},
			expected:  map[string][2]float64{"Sales": {100, 100}},
			employees: map[string]int{"Sales": 1},
		},
		{
			name:      "two departments",
			ride:      models.Trip{Price: 90, Passengers: []string{"Dana Cohen", "Avi Levi"}},
			expected:  map[string][2]float64{"Sales": {45, 50}, "Ops": {45, 50}},
			employees: map[string]int{"Sales": 1, "Ops": 1},
		},
		{
			name:      "duplicate employee counts once",
			ride:      models.Trip{Price: 90, Passengers: []string{"Dana Cohen", "Dana Cohen 41200", "Avi Levi"}},
			expected:  map[string][2]float64{"Sales": {45, 50}, "Ops": {45, 50}},
			employees: map[string]int{"Sales": 1, "Ops": 1},
		},
		{
			name:      "thirds are rounded",
			ride:      models.Trip{Price: 100, Passengers: []string{"Dana Cohen", "Shira Mor", "Avi Levi"}},
			expected:  map[string][2]float64{"Sales": {66.67, 66.67}, "Ops": {33.33, 33.33}},
			employees: map[string]int{"Sales": 2, "Ops": 1},
		},
		{
			name:      "blank department",
			ride:      models.Trip{Price: 40, Passengers: []string{"Noa Bar"}},
			expected:  map[string][2]float64{models.UnassignedDepartment: {40, 100}},
			employees: map[string]int{models.UnassignedDepartment: 1},
		},
		{
			name:      "no employees resolved",
			ride:      models.Trip{Price: 75.5, Passengers: []string{"Unknown Person"}},
			expected:  map[string][2]float64{models.UnassignedDepartment: {75.5, 100}},
			employees: map[string]int{models.UnassignedDepartment: 0},
		},
		{
			name:      "zero price",
			ride:      models.Trip{Price: 0, Passengers: []string{"Avi Levi"}},
			expected:  map[string][2]float64{"Ops": {0, 100}},
			employees: map[string]int{"Ops": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := a.AllocateRide(tt.ride)

			if len(record.Departments) != len(tt.expected) {
				t.Fatalf("departments = %v, want %v", models.SortedKeys(record.Departments), tt.expected)
			}
			for dept, want := range tt.expected {
				share, ok := record.Departments[dept]
				if !ok {
					t.Fatalf("missing department %s", dept)
				}
				if share.Allocation != want[0] || share.Percentage != want[1] {
					t.Errorf("%s = (%v, %v), want (%v, %v)", dept, share.Allocation, share.Percentage, want[0], want[1])
				}
				if len(share.Employees) != tt.employees[dept] {
					t.Errorf("%s employees = %d, want %d", dept, len(share.Employees), tt.employees[dept])
				}
			}
		})
	}
}

func TestAllocateRideConservation(t *testing.T) {
	a := newTestAllocator()
	rides := []models.Trip{
		{Price: 100, Passengers: []string{"Dana Cohen", "Shira Mor", "Avi Levi"}},
		{Price: 0.01, Passengers: []string{"Dana Cohen", "Avi Levi", "Noa Bar"}},
		{Price: 333.33, Passengers: []string{"Avi Levi", "Noa Bar", "Yehezkel Akiva"}},
	}

	for _, ride := range rides {
		record := a.AllocateRide(ride)
		allocation, percentage := 0.0, 0.0
		for _, share := range record.Departments {
			allocation += share.Allocation
			percentage += share.Percentage
		}
		if math.Abs(allocation-ride.Price) > 0.01*float64(len(record.Departments)) {
			t.Errorf("price %v allocated as %v", ride.Price, allocation)
		}
		if math.Abs(percentage-100) > 0.1 {
			t.Errorf("percentages sum to %v", percentage)
		}
	}
}

func TestAllocateRides(t *testing.T) {
	a := newTestAllocator()
	rides := []models.Trip{
		{TripID: "1", Price: 100, Passengers: []string{"Dana Cohen 41200"}},
		{TripID: "2", Price: 90, Passengers: []string{"Dana Cohen", "Avi Levi"}},
		{TripID: "3", Price: 30, Passengers: []string{"Nobody"}},
		{TripID: "4", Price: 20},
	}

	result := a.AllocateRides(rides)

	if len(result.RideAllocations) != 4 {
		t.Fatalf("expected 4 ride allocations, got %d", len(result.RideAllocations))
	}

	sales := result.DepartmentAllocations["Sales"]
	if sales == nil || sales.TotalCost != 145 || sales.RideCount != 2 || sales.AverageCost != 72.5 {
		t.Errorf("unexpected sales totals %+v", sales)
	}
	if len(sales.Rides) != 2 || sales.Rides[1].Allocation != 45 {
		t.Errorf("unexpected sales rides %+v", sales.Rides)
	}

	ops := result.DepartmentAllocations["Ops"]
	if ops == nil || ops.TotalCost != 45 || ops.RideCount != 1 {
		t.Errorf("unexpected ops totals %+v", ops)
	}

	if result.Unassigned.RideCount != 2 || result.Unassigned.TotalCost != 50 {
		t.Errorf("unexpected unassigned %+v", result.Unassigned)
	}
	if got := result.DepartmentAllocations[models.UnassignedDepartment]; got == nil || got.TotalCost != 50 {
		t.Errorf("unassigned department totals = %+v", got)
	}

	names := result.DepartmentNames()
	if len(names) != 3 || names[0] != "Ops" {
		t.Errorf("DepartmentNames() = %v", names)
	}
}

func TestAllocateRidesRoundsUnassigned(t *testing.T) {
	a := newTestAllocator()
	rides := []models.Trip{
		{TripID: "1", Price: 33.333, Passengers: []string{"Unknown Rider"}},
		{TripID: "2", Price: 10.006},
	}

	result := a.AllocateRides(rides)

	first := result.RideAllocations[0].Departments[models.UnassignedDepartment]
	if first == nil || first.Allocation != 33.33 {
		t.Fatalf("expected ride allocation 33.33, got %+v", first)
	}
	if result.Unassigned.TotalCost != 43.34 {
		t.Errorf("expected unassigned total 43.34, got %f", result.Unassigned.TotalCost)
	}
	dept := result.DepartmentAllocations[models.UnassignedDepartment]
	if dept == nil || dept.TotalCost != result.Unassigned.TotalCost {
		t.Errorf("unassigned department %+v should agree with unassigned total %f", dept, result.Unassigned.TotalCost)
	}
	if dept.Rides[0].Allocation != 33.33 {
		t.Errorf("department ride allocation = %f, want 33.33", dept.Rides[0].Allocation)
	}
}

func TestAllocateRidesEmpty(t *testing.T) {
	result := NewDepartmentAllocator(nil, logger.NewNop()).AllocateRides(nil)
	if result.RideAllocations == nil || result.Unassigned.Rides == nil || len(result.DepartmentAllocations) != 0 {
		t.Errorf("expected empty initialized result, got %+v", result)
	}
}
