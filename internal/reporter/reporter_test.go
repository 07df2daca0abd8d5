package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ride-reconciliation-service/internal/models"
	rerrors "ride-reconciliation-service/pkg/errors"
	"ride-reconciliation-service/pkg/logger"
)

func createTestResult() *models.ReconciliationResult {
	t1 := models.Trip{TripID: "100", Date: "2024-03-01", Time: "08:00", Passengers: []string{"Dana Cohen"}, Source: "A", Destination: "B", Price: 50}
	t2 := models.Trip{TripID: "101", Date: "2024-03-01", Time: "09:00", Source: "A", Destination: "C", Price: 60}
	t3 := models.Trip{TripID: "102", Date: "2024-03-02", Source: "C", Destination: "D", Price: 30}
	t4 := models.Trip{TripID: "999", Date: "2024-03-02", Price: 20}
	g1 := models.Trip{Date: "2024-03-01", Time: "10:00", Source: "A", Destination: "B", Price: 70}
	g2 := models.Trip{Date: "2024-03-02", Time: "11:00", Source: "X", Destination: "Y", Price: 80}

	s1 := models.NewSupplierResult("supplier1", models.StrategyID)
	s1.Matches = append(s1.Matches, models.MatchRecord{
		CompanyTrip: t1, SupplierTrip: t1, MatchType: models.MatchTypeExactID, Confidence: 100,
	})
	s1.PriceDifferences = append(s1.PriceDifferences, models.PriceDifference{
		CompanyTrip: t2, SupplierTrip: t2, CompanyPrice: 60, SupplierPrice: 65, PriceDifference: 5,
	})
	s1.MissingInSupplier = append(s1.MissingInSupplier, t3)
	s1.MissingInCompany = append(s1.MissingInCompany, t4)
	s1.ComputeStatistics(3)

	s2 := models.NewSupplierResult("supplier2", models.StrategyCascade)
	s2.Matches = append(s2.Matches, models.MatchRecord{
		CompanyTrip: t1, SupplierTrip: g1, MatchType: models.MatchTypeFuzzy, Confidence: 100, Tier: models.TierStrict,
	})
	s2.ExtraInSupplier = append(s2.ExtraInSupplier, g2)
	s2.DateRange = &models.DateRange{Start: "2024-03-01", End: "2024-03-02", ExcludedCompany: 1}
	s2.ComputeStatistics(1)

	return &models.ReconciliationResult{
		RunID:        "run-1",
		GeneratedAt:  time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
		CompanyTrips: 3,
		Suppliers: map[string]*models.SupplierResult{
			"supplier1": s1,
			"supplier2": s2,
		},
		Allocation: createTestAllocation(),
	}
}

func createTestAllocation() *models.AllocationResult {
	return &models.AllocationResult{
		DepartmentAllocations: map[string]*models.DepartmentTotal{
			"Sales": {TotalCost: 95, RideCount: 2, AverageCost: 47.5},
			"Ops":   {TotalCost: 45, RideCount: 1, AverageCost: 45},
		},
		RideAllocations: []models.AllocationRecord{},
		Unassigned:      models.UnassignedTotal{TotalCost: 25, RideCount: 1, Rides: []models.Trip{}},
	}
}

func readCSV(t *testing.T, output string) [][]string {
	t.Helper()
	records, err := csv.NewReader(strings.NewReader(output)).ReadAll()
	if err != nil {
		t.Fatalf("output should be valid CSV: %v", err)
	}
	return records
}

func TestNewReportGenerator(t *testing.T) {
	tests := []struct {
		name        string
		config      *ReportConfig
		expectError bool
	}{
		{
			name:        "default config",
			config:      nil,
			expectError: false,
		},
		{
			name:        "valid config",
			config:      DefaultReportConfig(),
			expectError: false,
		},
		{
			name: "invalid format",
			config: &ReportConfig{
				Format:        "invalid",
				TableMaxWidth: 120,
			},
			expectError: true,
		},
		{
			name: "table width too small",
			config: &ReportConfig{
				Format:        FormatConsole,
				TableMaxWidth: 30,
			},
			expectError: true,
		},
		{
			name: "csv without delimiter",
			config: &ReportConfig{
				Format:        FormatCSV,
				TableMaxWidth: 120,
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := NewReportGenerator(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if generator == nil {
					t.Errorf("expected generator but got nil")
				}
			}
		})
	}
}

func TestOutputFormatValidation(t *testing.T) {
	tests := []struct {
		format OutputFormat
		valid  bool
	}{
		{FormatConsole, true},
		{FormatJSON, true},
		{FormatCSV, true},
		{"xlsx", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			if tt.format.IsValid() != tt.valid {
				t.Errorf("expected IsValid() = %v for format %s", tt.valid, tt.format)
			}
		})
	}
}

func TestGenerateReport(t *testing.T) {
	result := createTestResult()

	tests := []struct {
		name        string
		config      *ReportConfig
		result      *models.ReconciliationResult
		expectError bool
		checkOutput func(t *testing.T, output string)
	}{
		{
			name:   "console format",
			config: DefaultReportConfig(),
			result: result,
			checkOutput: func(t *testing.T, output string) {
				for _, want := range []string{
					"RECONCILIATION REPORT",
					"Run: run-1",
					"=== SUMMARY ===",
					"=== SUPPLIER SUPPLIER1 (id) ===",
					"=== SUPPLIER SUPPLIER2 (cascade) ===",
					"Date Range: 2024-03-01 .. 2024-03-02 (excluded company 1, supplier 0)",
					"Price Differences (1):",
					"Missing In Supplier (1):",
					"Missing In Company (1):",
					"Extra In Supplier (1):",
					"(no id)",
					"=== DEPARTMENT ALLOCATION ===",
					"Unassigned: 1 rides, 25.00",
				} {
					if !strings.Contains(output, want) {
						t.Errorf("console output should contain %q", want)
					}
				}
				if strings.Contains(output, "Matches (") {
					t.Errorf("console output should omit matches by default")
				}
			},
		},
		{
			name: "console with matches",
			config: &ReportConfig{
				Format:         FormatConsole,
				IncludeMatches: true,
				TableMaxWidth:  120,
			},
			result: result,
			checkOutput: func(t *testing.T, output string) {
				if !strings.Contains(output, "fuzzy/strict 100") {
					t.Errorf("console output should label cascade matches with their tier")
				}
				if strings.Contains(output, "Missing In Supplier") {
					t.Errorf("missing trips should be excluded by config")
				}
				if strings.Contains(output, "DEPARTMENT ALLOCATION") {
					t.Errorf("allocation should be excluded by config")
				}
			},
		},
		{
			name: "JSON format",
			config: &ReportConfig{
				Format:            FormatJSON,
				IncludeMissing:    true,
				IncludeAllocation: true,
				TableMaxWidth:     120,
			},
			result: result,
			checkOutput: func(t *testing.T, output string) {
				var decoded models.ReconciliationResult
				if err := json.Unmarshal([]byte(output), &decoded); err != nil {
					t.Fatalf("output should be valid JSON: %v", err)
				}
				s1 := decoded.Suppliers["supplier1"]
				if s1 == nil {
					t.Fatalf("JSON output should contain supplier1")
				}
				if len(s1.Matches) != 0 {
					t.Errorf("matches should be filtered out, got %d", len(s1.Matches))
				}
				if len(s1.MissingInSupplier) != 1 {
					t.Errorf("expected 1 missing trip, got %d", len(s1.MissingInSupplier))
				}
				if s1.Statistics.Matched != 1 {
					t.Errorf("statistics should be kept, got matched=%d", s1.Statistics.Matched)
				}
				if decoded.Allocation == nil || decoded.Allocation.DepartmentAllocations["Sales"].TotalCost != 95 {
					t.Errorf("allocation should be included")
				}
				if !strings.Contains(output, `"matches": []`) {
					t.Errorf("filtered buckets should serialize as empty arrays")
				}
			},
		},
		{
			name:   "CSV format",
			config: &ReportConfig{Format: FormatCSV, IncludeMissing: true, IncludeExtra: true, IncludePriceDifferences: true, TableMaxWidth: 120, CSVDelimiter: ',', CSVHeaders: true},
			result: result,
			checkOutput: func(t *testing.T, output string) {
				records := readCSV(t, output)
				if len(records) != 5 {
					t.Fatalf("expected header and 4 rows, got %d", len(records))
				}
				if records[0][0] != "Type" || records[0][2] != "Trip_ID" {
					t.Errorf("unexpected headers: %v", records[0])
				}
				pd := records[1]
				if pd[0] != "Price Difference" || pd[2] != "101" || pd[8] != "60.00" || pd[9] != "65.00" || pd[10] != "5.00" {
					t.Errorf("unexpected price difference row: %v", pd)
				}
				extra := records[4]
				if extra[0] != "Extra In Supplier" || extra[1] != "supplier2" || extra[8] != "" || extra[9] != "80.00" {
					t.Errorf("unexpected extra row: %v", extra)
				}
			},
		},
		{
			name:   "CSV with matches",
			config: &ReportConfig{Format: FormatCSV, IncludeMatches: true, TableMaxWidth: 120, CSVDelimiter: ';'},
			result: result,
			checkOutput: func(t *testing.T, output string) {
				r := csv.NewReader(strings.NewReader(output))
				r.Comma = ';'
				records, err := r.ReadAll()
				if err != nil {
					t.Fatalf("output should be valid CSV: %v", err)
				}
				if len(records) != 2 {
					t.Fatalf("expected 2 match rows without header, got %d", len(records))
				}
				if records[1][12] != "strict" || records[1][10] != "20.00" {
					t.Errorf("unexpected cascade match row: %v", records[1])
				}
				if records[0][5] != "Dana Cohen" {
					t.Errorf("passengers should be joined, got %q", records[0][5])
				}
			},
		},
		{
			name:   "CSV allocation only",
			config: &ReportConfig{Format: FormatCSV, TableMaxWidth: 120, CSVDelimiter: ',', CSVHeaders: true},
			result: &models.ReconciliationResult{Suppliers: map[string]*models.SupplierResult{}, Allocation: createTestAllocation()},
			checkOutput: func(t *testing.T, output string) {
				records := readCSV(t, output)
				expected := [][]string{
					{"department", "total_cost", "ride_count", "average_cost"},
					{"Ops", "45.00", "1", "45.00"},
					{"Sales", "95.00", "2", "47.50"},
					{"unassigned", "25.00", "1", ""},
				}
				if len(records) != len(expected) {
					t.Fatalf("expected %d rows, got %d", len(expected), len(records))
				}
				for i := range expected {
					if strings.Join(records[i], ",") != strings.Join(expected[i], ",") {
						t.Errorf("row %d = %v, expected %v", i, records[i], expected[i])
					}
				}
			},
		},
		{
			name:        "nil result",
			config:      DefaultReportConfig(),
			result:      nil,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := NewReportGenerator(tt.config)
			if err != nil {
				t.Fatalf("failed to create report generator: %v", err)
			}

			var buffer bytes.Buffer
			err = generator.GenerateReport(tt.result, &buffer)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.checkOutput != nil {
				tt.checkOutput(t, buffer.String())
			}
		})
	}
}

func TestFilterResultForOutput(t *testing.T) {
	generator, _ := NewReportGenerator(&ReportConfig{
		Format:        FormatJSON,
		IncludeExtra:  true,
		TableMaxWidth: 120,
	})

	result := createTestResult()
	filtered := generator.filterResultForOutput(result)

	if filtered.RunID != "run-1" || filtered.CompanyTrips != 3 {
		t.Errorf("header fields should be kept")
	}
	if filtered.Allocation != nil {
		t.Errorf("allocation should be excluded")
	}
	if len(filtered.Suppliers["supplier2"].ExtraInSupplier) != 1 {
		t.Errorf("extra trips should be kept")
	}
	if len(filtered.Suppliers["supplier1"].PriceDifferences) != 0 {
		t.Errorf("price differences should be excluded")
	}
	if len(result.Suppliers["supplier1"].Matches) != 1 || len(result.Suppliers["supplier1"].PriceDifferences) != 1 {
		t.Errorf("filtering must not modify the source result")
	}
}

func TestSortTrips(t *testing.T) {
	trips := []models.Trip{{TripID: "a", Price: 10}, {TripID: "b", Price: 30}, {TripID: "c", Price: 20}}

	generator, _ := NewReportGenerator(&ReportConfig{Format: FormatConsole, TableMaxWidth: 120, SortByPrice: true})
	sorted := generator.sortTrips(trips)
	if sorted[0].TripID != "b" || sorted[1].TripID != "c" || sorted[2].TripID != "a" {
		t.Errorf("unexpected order: %v", sorted)
	}
	if trips[0].TripID != "a" {
		t.Errorf("sorting must not reorder the input")
	}

	generator, _ = NewReportGenerator(DefaultReportConfig())
	if got := generator.sortTrips(trips); got[0].TripID != "a" {
		t.Errorf("input order should be kept when sorting is off")
	}
}

func TestTruncate(t *testing.T) {
	generator, _ := NewReportGenerator(&ReportConfig{Format: FormatConsole, TableMaxWidth: 50})

	short := "short line"
	if got := generator.truncate(short); got != short {
		t.Errorf("truncate(%q) = %q", short, got)
	}

	long := strings.Repeat("נ", 60)
	got := generator.truncate(long)
	if len([]rune(got)) != 50 || !strings.HasSuffix(got, "...") {
		t.Errorf("expected 50 runes ending in ellipsis, got %d runes", len([]rune(got)))
	}
}

func TestMoney(t *testing.T) {
	tests := []struct {
		value    float64
		expected string
	}{
		{0, "0.00"},
		{45, "45.00"},
		{66.666, "66.67"},
		{-5, "-5.00"},
	}

	for _, tt := range tests {
		if got := money(tt.value); got != tt.expected {
			t.Errorf("money(%v) = %q, expected %q", tt.value, got, tt.expected)
		}
	}
}

type failOnceWriter struct {
	buf    bytes.Buffer
	failed bool
}

func (w *failOnceWriter) Write(p []byte) (int, error) {
	if !w.failed {
		w.failed = true
		return 0, errors.New("broken pipe")
	}
	return w.buf.Write(p)
}

func TestSafeReportGenerator(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		_, err := NewSafeReportGenerator(&ReportConfig{Format: "pdf", TableMaxWidth: 120}, logger.NewNop())
		re, ok := rerrors.AsReconcilerError(err)
		if !ok || re.Category != rerrors.CategoryConfiguration {
			t.Errorf("expected configuration error, got %v", err)
		}
	})

	t.Run("nil result", func(t *testing.T) {
		srg, err := NewSafeReportGenerator(nil, logger.NewNop())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		err = srg.GenerateReportSafely(nil, &bytes.Buffer{})
		re, ok := rerrors.AsReconcilerError(err)
		if !ok || re.Code != rerrors.CodeMissingField {
			t.Errorf("expected missing field error, got %v", err)
		}
	})

	t.Run("nil supplier result", func(t *testing.T) {
		srg, err := NewSafeReportGenerator(nil, logger.NewNop())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		result := createTestResult()
		result.Suppliers["supplier3"] = nil

		var buf bytes.Buffer
		err = srg.GenerateReportSafely(result, &buf)
		re, ok := rerrors.AsReconcilerError(err)
		if !ok || re.Code != rerrors.CodeMissingRecords || re.Context["supplier"] != "supplier3" {
			t.Errorf("expected missing records error for supplier3, got %v", err)
		}
		if buf.Len() != 0 {
			t.Errorf("nothing should be written for an invalid result")
		}
	})

	t.Run("format fallback", func(t *testing.T) {
		srg, err := NewSafeReportGenerator(&ReportConfig{Format: FormatJSON, TableMaxWidth: 120}, logger.NewNop())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		w := &failOnceWriter{}
		if err := srg.GenerateReportSafely(createTestResult(), w); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := w.buf.String()
		if !strings.Contains(output, "fallback format") || !strings.Contains(output, "RECONCILIATION REPORT") {
			t.Errorf("expected console fallback output, got %q", output)
		}
	})

	t.Run("output fallback", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "report.json")
		file, err := os.Create(path)
		if err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
		file.Close()

		srg, err := NewSafeReportGenerator(&ReportConfig{Format: FormatJSON, TableMaxWidth: 120}, logger.NewNop())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := srg.GenerateReportSafely(createTestResult(), file); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(dir, "report_backup.json"))
		if err != nil {
			t.Fatalf("backup file should exist: %v", err)
		}
		var decoded models.ReconciliationResult
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Errorf("backup should hold the JSON report: %v", err)
		}
	})
}

func TestBackupPathFor(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/tmp/out/report.csv", "/tmp/out/report_backup.csv"},
		{"report", "report_backup"},
		{"a/b.c.json", "a/b.c_backup.json"},
	}

	for _, tt := range tests {
		if got := backupPathFor(tt.input); got != tt.expected {
			t.Errorf("backupPathFor(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestIsFileError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"permission", os.ErrPermission, true},
		{"not exist", os.ErrNotExist, true},
		{"closed", os.ErrClosed, true},
		{"disk full", errors.New("write: no space left on device"), true},
		{"other", errors.New("broken pipe"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isFileError(tt.err); got != tt.expected {
				t.Errorf("isFileError(%v) = %v, expected %v", tt.err, got, tt.expected)
			}
		})
	}
}
