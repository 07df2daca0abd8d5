package reconciler

import (
	"testing"

	"ride-reconciliation-service/internal/matcher"
	"ride-reconciliation-service/internal/models"
	"ride-reconciliation-service/pkg/errors"
	"ride-reconciliation-service/pkg/logger"
)

func newTestService(t *testing.T, config *Config) (*Service, *matcher.MemorySink) {
	t.Helper()
	sink := &matcher.MemorySink{}
	s, err := NewService(config, nil, nil, logger.NewNop(), sink)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return s, sink
}

func createTestTrips() []models.Trip {
	return []models.Trip{
		{TripID: "100", Date: "2024-03-01", Time: "08:00", Price: 50, Supplier: "צוות גיל",
			Passengers: []string{"Dana Cohen"}, Source: "Office", Destination: "Airport"},
		{TripID: "200", Date: "2024-03-01", Time: "09:00", Price: 30, Supplier: "מוניות חורי",
			Passengers: []string{"Avi Levi"}, Source: "Office", Destination: "Port"},
		{TripID: "", Date: "2024-03-02", Time: "18:00", Price: 70, Supplier: "GETT Taxi",
			Passengers: []string{"Dana Cohen"}, Source: "Airport", Destination: "Home"},
		{TripID: "", Date: "2024-03-03", Time: "18:00", Price: 70, Supplier: "גט",
			Passengers: []string{"Noa Bar"}, Source: "Mall", Destination: "Home"},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"invalid strategy", func(c *Config) { c.Strategy = "fastest" }, true},
		{"empty key", func(c *Config) { c.Suppliers[0].Key = "" }, true},
		{"duplicate key", func(c *Config) { c.Suppliers[1].Key = "supplier1" }, true},
		{"company shape", func(c *Config) { c.Suppliers[0].Shape = models.ShapeCompany }, true},
		{"invalid match", func(c *Config) { c.Suppliers[0].Match = "regex" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			if err := config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewService(&Config{Strategy: "fastest"}, nil, nil, logger.NewNop(), nil); err == nil {
		t.Error("expected NewService to reject an invalid config")
	}
}

func TestSupplierProfileOwns(t *testing.T) {
	config := DefaultConfig()
	tests := []struct {
		key      string
		label    string
		expected bool
	}{
		{"supplier1", "צוות גיל", true},
		{"supplier1", "צוות גיל בע\"מ", false},
		{"supplier2", "GETT Taxi", true},
		{"supplier2", "מוניות גט", true},
		{"supplier2", "", false},
		{"supplier3", "מוניות חורי", true},
		{"supplier3", "צוות גיל", false},
	}

	for _, tt := range tests {
		profile, _ := config.Profile(tt.key)
		if got := profile.Owns(tt.label); got != tt.expected {
			t.Errorf("%s.Owns(%q) = %v, want %v", tt.key, tt.label, got, tt.expected)
		}
	}
}

func TestSelectStrategy(t *testing.T) {
	tests := []struct {
		name      string
		configure models.Strategy
		keys      []string
		expected  models.Strategy
	}{
		{"single bon tour", models.StrategyAuto, []string{"supplier1"}, models.StrategyID},
		{"single hori", models.StrategyAuto, []string{"supplier3"}, models.StrategyID},
		{"single gett", models.StrategyAuto, []string{"supplier2"}, models.StrategyCascade},
		{"several", models.StrategyAuto, []string{"supplier1", "supplier3"}, models.StrategyFull},
		{"none", models.StrategyAuto, nil, models.StrategyFull},
		{"forced full", models.StrategyFull, []string{"supplier1"}, models.StrategyFull},
		{"forced cascade", models.StrategyCascade, []string{"supplier1", "supplier2"}, models.StrategyCascade},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.Strategy = tt.configure
			s, _ := newTestService(t, config)

			suppliers := make(map[string][]models.Trip)
			for _, k := range tt.keys {
				suppliers[k] = []models.Trip{}
			}
			if got := s.SelectStrategy(suppliers); got != tt.expected {
				t.Errorf("SelectStrategy() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestReconcileIDPathFiltersCompanyTrips(t *testing.T) {
	s, sink := newTestService(t, nil)
	suppliers := map[string][]models.Trip{
		"supplier1": {
			{TripID: "100", Date: "2024-03-01", Price: 50},
			{TripID: "999", Date: "2024-03-01", Price: 10},
		},
	}

	result, err := s.Reconcile(createTestTrips(), suppliers)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if result.RunID == "" {
		t.Error("expected a run id")
	}
	if result.CompanyTrips != 4 {
		t.Errorf("CompanyTrips = %d, want 4", result.CompanyTrips)
	}

	r := result.Suppliers["supplier1"]
	if r == nil {
		t.Fatal("missing supplier1 result")
	}
	if r.Strategy != models.StrategyID || r.Supplier != "supplier1" {
		t.Errorf("unexpected result header %s/%s", r.Supplier, r.Strategy)
	}
	if r.Statistics.TotalCompanyTrips != 1 || r.Statistics.Matched != 1 {
		t.Errorf("unexpected statistics %+v", r.Statistics)
	}
	if len(r.MissingInSupplier) != 0 {
		t.Errorf("trips of other suppliers must be filtered out, got %+v", r.MissingInSupplier)
	}
	if len(r.MissingInCompany) != 1 || r.MissingInCompany[0].TripID != "999" {
		t.Errorf("missing in company = %+v", r.MissingInCompany)
	}
	if sink.Count(matcher.EventStrategyChosen) != 1 {
		t.Error("expected a strategy event")
	}
}

func TestReconcileCascadePath(t *testing.T) {
	s, _ := newTestService(t, nil)
	suppliers := map[string][]models.Trip{
		"supplier2": {
			{TripID: "G1", Date: "2024-03-02", Time: "18:04", Price: 70,
				Passengers: []string{"dana cohen"}, Source: "airport", Destination: "home"},
			{TripID: "G2", Date: "2024-03-02", Time: "10:00", Price: 55,
				Passengers: []string{"Zvi Rak"}, Source: "Port", Destination: "Station"},
		},
	}

	result, err := s.Reconcile(createTestTrips(), suppliers)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	r := result.Suppliers["supplier2"]
	if r.Strategy != models.StrategyCascade {
		t.Errorf("strategy = %s", r.Strategy)
	}
	if len(r.Matches) != 1 || r.Matches[0].Tier != models.TierStrict {
		t.Fatalf("unexpected matches %+v", r.Matches)
	}
	if len(r.ExtraInSupplier) != 1 || r.ExtraInSupplier[0].TripID != "G2" {
		t.Errorf("extra = %+v", r.ExtraInSupplier)
	}
	if r.DateRange == nil || r.DateRange.Start != "2024-03-02" || r.DateRange.ExcludedCompany != 1 {
		t.Errorf("date range = %+v", r.DateRange)
	}
	if r.Statistics.TotalCompanyTrips != 1 || r.Statistics.MatchRate != 100 {
		t.Errorf("statistics = %+v", r.Statistics)
	}
	if r.Ambiguous == nil || r.PriceDifferences == nil || r.MissingInCompany == nil {
		t.Error("expected every bucket to be initialized")
	}
}

func TestReconcileFullPath(t *testing.T) {
	s, _ := newTestService(t, nil)
	suppliers := map[string][]models.Trip{
		"supplier1": {{TripID: "100", Date: "2024-03-01", Price: 52}},
		"supplier3": {},
	}

	result, err := s.Reconcile(createTestTrips(), suppliers)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(result.Suppliers) != 2 {
		t.Fatalf("expected both supplier keys, got %v", result.SupplierKeys())
	}

	r := result.Suppliers["supplier1"]
	if r.Strategy != models.StrategyFull {
		t.Errorf("strategy = %s", r.Strategy)
	}
	if r.Statistics.TotalCompanyTrips != 4 {
		t.Errorf("full path matches against the whole ledger, got %d", r.Statistics.TotalCompanyTrips)
	}
	if len(r.Matches) != 1 || len(r.PriceDifferences) != 1 {
		t.Errorf("expected match and price difference, got %d/%d", len(r.Matches), len(r.PriceDifferences))
	}
	if got := result.Suppliers["supplier3"]; len(got.Matches) != 0 || len(got.MissingInSupplier) != 4 {
		t.Errorf("unexpected supplier3 result %+v", got.Statistics)
	}
}

func TestReconcileValidation(t *testing.T) {
	s, _ := newTestService(t, nil)

	_, err := s.Reconcile(nil, map[string][]models.Trip{
		"supplier1": nil,
		"uber":      {},
	})
	if err == nil {
		t.Fatal("expected validation error")
	}

	summary := errors.SummarizeCombined(err)
	if summary.Total != 3 {
		t.Errorf("expected 3 aggregated errors, got %d: %v", summary.Total, err)
	}
	if !summary.HasCode(errors.CodeUnknownSupplier) || !summary.HasCode(errors.CodeMissingRecords) {
		t.Errorf("unexpected codes in %v", err)
	}
	if summary.GetExitCode() != 3 {
		t.Errorf("exit code = %d, want 3", summary.GetExitCode())
	}
}

func TestAllocate(t *testing.T) {
	s, _ := newTestService(t, nil)

	if _, err := s.Allocate(createTestTrips(), nil); err == nil {
		t.Error("expected error without employee index")
	}
	if _, err := s.Allocate(nil, models.NewEmployeeIndex()); err == nil {
		t.Error("expected error without company trips")
	}

	idx := models.NewEmployeeIndex()
	idx.Add(&models.Employee{ID: "1", FullNameNormalized: "Dana Cohen", Department: "Sales"}, "Dana Cohen")
	result, err := s.Allocate(createTestTrips(), idx)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if got := result.DepartmentAllocations["Sales"]; got == nil || got.TotalCost != 120 || got.RideCount != 2 {
		t.Errorf("sales = %+v", got)
	}
	if result.Unassigned.RideCount != 2 || result.Unassigned.TotalCost != 100 {
		t.Errorf("unassigned = %+v", result.Unassigned)
	}
}

func TestFilterCompanyTrips(t *testing.T) {
	profile, _ := DefaultConfig().Profile("supplier2")
	got := FilterCompanyTrips(createTestTrips(), profile)
	if len(got) != 2 || got[0].Supplier != "GETT Taxi" || got[1].Supplier != "גט" {
		t.Errorf("FilterCompanyTrips() = %+v", got)
	}
}
