// Package reporter renders reconciliation and allocation results.
//
// Supported output formats:
//   - Console: human-readable sections for terminal display
//   - JSON: the full result, sanitized for transport
//   - CSV: one row per reported trip, or a department summary for
//     allocation-only results
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{
//		Format:        reporter.FormatCSV,
//		TableMaxWidth: 120,
//		CSVDelimiter:  ',',
//		CSVHeaders:    true,
//	})
//	if err != nil {
//		return err
//	}
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"ride-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	// Output format
	Format OutputFormat `json:"format" mapstructure:"format"`

	// Detail level options
	IncludeMatches          bool `json:"include_matches" mapstructure:"include_matches"`
	IncludeMissing          bool `json:"include_missing" mapstructure:"include_missing"`
	IncludeExtra            bool `json:"include_extra" mapstructure:"include_extra"`
	IncludeAmbiguous        bool `json:"include_ambiguous" mapstructure:"include_ambiguous"`
	IncludePriceDifferences bool `json:"include_price_differences" mapstructure:"include_price_differences"`
	IncludeAllocation       bool `json:"include_allocation" mapstructure:"include_allocation"`

	// Console formatting options
	TableMaxWidth int `json:"table_max_width" mapstructure:"table_max_width"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter" mapstructure:"-"`
	CSVHeaders   bool `json:"csv_headers" mapstructure:"csv_headers"`

	// SortByPrice lists unmatched trips most expensive first
	SortByPrice bool `json:"sort_by_price" mapstructure:"sort_by_price"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:                  FormatConsole,
		IncludeMatches:          false,
		IncludeMissing:          true,
		IncludeExtra:            true,
		IncludeAmbiguous:        true,
		IncludePriceDifferences: true,
		IncludeAllocation:       true,
		TableMaxWidth:           120,
		CSVDelimiter:            ',',
		CSVHeaders:              true,
		SortByPrice:             false,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.TableMaxWidth < 50 {
		return fmt.Errorf("table max width must be at least 50 characters, got %d", c.TableMaxWidth)
	}

	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n') {
		return fmt.Errorf("invalid csv delimiter: %q", c.CSVDelimiter)
	}

	return nil
}

// ReportGenerator generates reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// Config returns the generator configuration
func (rg *ReportGenerator) Config() *ReportConfig {
	return rg.config
}

// GenerateReport writes result to writer in the configured format
func (rg *ReportGenerator) GenerateReport(result *models.ReconciliationResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		if len(result.Suppliers) == 0 && result.Allocation != nil {
			return rg.WriteDepartmentSummary(result.Allocation, writer)
		}
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(result *models.ReconciliationResult, writer io.Writer) error {
	rule := strings.Repeat("-", rg.config.TableMaxWidth)

	fmt.Fprintf(writer, "RECONCILIATION REPORT\n")
	if result.RunID != "" {
		fmt.Fprintf(writer, "Run: %s\n", result.RunID)
	}
	if !result.GeneratedAt.IsZero() {
		fmt.Fprintf(writer, "Generated: %s\n", result.GeneratedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(writer, "Company Trips: %d\n\n", result.CompanyTrips)

	if len(result.Suppliers) > 0 {
		fmt.Fprintf(writer, "=== SUMMARY ===\n")
		rg.printSummaryTable(result, writer)
		fmt.Fprintf(writer, "\n")
	}

	for _, key := range result.SupplierKeys() {
		sr := result.Suppliers[key]
		fmt.Fprintf(writer, "=== SUPPLIER %s (%s) ===\n", strings.ToUpper(key), sr.Strategy)
		rg.printStatistics(sr, writer)
		if sr.DateRange != nil {
			fmt.Fprintf(writer, "Date Range: %s .. %s (excluded company %d, supplier %d)\n",
				sr.DateRange.Start, sr.DateRange.End, sr.DateRange.ExcludedCompany, sr.DateRange.ExcludedSupplier)
		}

		if rg.config.IncludeMatches && len(sr.Matches) > 0 {
			fmt.Fprintf(writer, "\nMatches (%d):\n", len(sr.Matches))
			rg.printMatchList(sr.Matches, writer)
		}
		if rg.config.IncludePriceDifferences && len(sr.PriceDifferences) > 0 {
			fmt.Fprintf(writer, "\nPrice Differences (%d):\n", len(sr.PriceDifferences))
			rg.printPriceDifferences(sr.PriceDifferences, writer)
		}
		if rg.config.IncludeMissing {
			rg.printTripSection("Missing In Supplier", sr.MissingInSupplier, writer)
			rg.printTripSection("Missing In Company", sr.MissingInCompany, writer)
		}
		if rg.config.IncludeExtra {
			rg.printTripSection("Extra In Supplier", sr.ExtraInSupplier, writer)
		}
		if rg.config.IncludeAmbiguous {
			rg.printTripSection("Ambiguous", sr.Ambiguous, writer)
		}
		fmt.Fprintf(writer, "%s\n\n", rule)
	}

	if rg.config.IncludeAllocation && result.Allocation != nil {
		fmt.Fprintf(writer, "=== DEPARTMENT ALLOCATION ===\n")
		rg.printAllocation(result.Allocation, writer)
	}

	return nil
}

// generateJSONReport writes a filtered copy of the result
func (rg *ReportGenerator) generateJSONReport(result *models.ReconciliationResult, writer io.Writer) error {
	filteredResult := rg.filterResultForOutput(result)

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(filteredResult)
}

var csvHeaders = []string{
	"Type",
	"Supplier",
	"Trip_ID",
	"Date",
	"Time",
	"Passengers",
	"Source",
	"Destination",
	"Company_Price",
	"Supplier_Price",
	"Price_Difference",
	"Match_Type",
	"Tier",
	"Confidence",
}

// generateCSVReport writes one row per reported trip or pair
func (rg *ReportGenerator) generateCSVReport(result *models.ReconciliationResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(csvHeaders); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, key := range result.SupplierKeys() {
		sr := result.Suppliers[key]

		if rg.config.IncludeMatches {
			for _, m := range sr.Matches {
				record := tripRow("Match", key, m.CompanyTrip)
				record[9] = money(m.SupplierTrip.Price)
				record[10] = money(m.SupplierTrip.Price - m.CompanyTrip.Price)
				record[11] = string(m.MatchType)
				record[12] = string(m.Tier)
				record[13] = strconv.Itoa(m.Confidence)
				if err := csvWriter.Write(record); err != nil {
					return fmt.Errorf("failed to write match record: %w", err)
				}
			}
		}

		if rg.config.IncludePriceDifferences {
			for _, pd := range sr.PriceDifferences {
				record := tripRow("Price Difference", key, pd.CompanyTrip)
				record[9] = money(pd.SupplierPrice)
				record[10] = money(pd.PriceDifference)
				record[11] = string(models.MatchTypeExactID)
				if err := csvWriter.Write(record); err != nil {
					return fmt.Errorf("failed to write price difference record: %w", err)
				}
			}
		}

		sections := []struct {
			enabled  bool
			label    string
			supplier bool
			trips    []models.Trip
		}{
			{rg.config.IncludeMissing, "Missing In Supplier", false, sr.MissingInSupplier},
			{rg.config.IncludeMissing, "Missing In Company", true, sr.MissingInCompany},
			{rg.config.IncludeExtra, "Extra In Supplier", true, sr.ExtraInSupplier},
			{rg.config.IncludeAmbiguous, "Ambiguous", false, sr.Ambiguous},
		}
		for _, section := range sections {
			if !section.enabled {
				continue
			}
			for _, trip := range rg.sortTrips(section.trips) {
				record := tripRow(section.label, key, trip)
				if section.supplier {
					record[8], record[9] = "", money(trip.Price)
				}
				if err := csvWriter.Write(record); err != nil {
					return fmt.Errorf("failed to write %s record: %w", strings.ToLower(section.label), err)
				}
			}
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// WriteDepartmentSummary writes department totals as CSV, followed by the
// unassigned bucket
func (rg *ReportGenerator) WriteDepartmentSummary(alloc *models.AllocationResult, writer io.Writer) error {
	if alloc == nil {
		return fmt.Errorf("allocation result cannot be nil")
	}

	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write([]string{"department", "total_cost", "ride_count", "average_cost"}); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, name := range alloc.DepartmentNames() {
		dept := alloc.DepartmentAllocations[name]
		record := []string{name, money(dept.TotalCost), strconv.Itoa(dept.RideCount), money(dept.AverageCost)}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write department record: %w", err)
		}
	}

	unassigned := []string{"unassigned", money(alloc.Unassigned.TotalCost), strconv.Itoa(alloc.Unassigned.RideCount), ""}
	if err := csvWriter.Write(unassigned); err != nil {
		return fmt.Errorf("failed to write unassigned record: %w", err)
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// Helper methods for console output formatting

func (rg *ReportGenerator) printSummaryTable(result *models.ReconciliationResult, writer io.Writer) {
	fmt.Fprintf(writer, "%-12s %8s %8s %8s %8s %10s %11s\n",
		"Supplier", "Trips", "Matched", "Missing", "Extra", "Ambiguous", "Match Rate")
	for _, key := range result.SupplierKeys() {
		st := result.Suppliers[key].Statistics
		fmt.Fprintf(writer, "%-12s %8d %8d %8d %8d %10d %10.1f%%\n",
			key, st.TotalCompanyTrips, st.Matched, st.Missing, st.Extra, st.Ambiguous, st.MatchRate)
	}
}

func (rg *ReportGenerator) printStatistics(sr *models.SupplierResult, writer io.Writer) {
	st := sr.Statistics
	fmt.Fprintf(writer, "Company Trips:     %d\n", st.TotalCompanyTrips)
	fmt.Fprintf(writer, "Matched:           %d (%.1f%%)\n", st.Matched, st.MatchRate)
	fmt.Fprintf(writer, "Missing:           %d\n", st.Missing)
	fmt.Fprintf(writer, "Extra:             %d\n", st.Extra)
	fmt.Fprintf(writer, "Ambiguous:         %d\n", st.Ambiguous)
	fmt.Fprintf(writer, "Price Differences: %d\n", st.PriceDifferences)
}

func (rg *ReportGenerator) printMatchList(matches []models.MatchRecord, writer io.Writer) {
	for i, m := range matches {
		label := string(m.MatchType)
		if m.Tier != "" {
			label += "/" + string(m.Tier)
		}
		line := fmt.Sprintf("  %d. %s <-> %s  %s  %s  [%s %d]",
			i+1, displayID(m.CompanyTrip), displayID(m.SupplierTrip), m.CompanyTrip.Date,
			money(m.CompanyTrip.Price), label, m.Confidence)
		fmt.Fprintln(writer, rg.truncate(line))
	}
}

func (rg *ReportGenerator) printPriceDifferences(diffs []models.PriceDifference, writer io.Writer) {
	for i, pd := range diffs {
		line := fmt.Sprintf("  %d. %s  company %s  supplier %s  diff %s",
			i+1, displayID(pd.CompanyTrip), money(pd.CompanyPrice), money(pd.SupplierPrice), money(pd.PriceDifference))
		fmt.Fprintln(writer, rg.truncate(line))
	}
}

func (rg *ReportGenerator) printTripSection(title string, trips []models.Trip, writer io.Writer) {
	if len(trips) == 0 {
		return
	}
	fmt.Fprintf(writer, "\n%s (%d):\n", title, len(trips))
	for i, trip := range rg.sortTrips(trips) {
		line := fmt.Sprintf("  %d. %s  %s %s  %s -> %s  %s",
			i+1, displayID(trip), trip.Date, trip.Time, trip.Source, trip.Destination, money(trip.Price))
		fmt.Fprintln(writer, rg.truncate(line))
	}
}

func (rg *ReportGenerator) printAllocation(alloc *models.AllocationResult, writer io.Writer) {
	fmt.Fprintf(writer, "%-24s %12s %6s %12s\n", "Department", "Total", "Rides", "Average")
	for _, name := range alloc.DepartmentNames() {
		dept := alloc.DepartmentAllocations[name]
		fmt.Fprintf(writer, "%-24s %12s %6d %12s\n", name, money(dept.TotalCost), dept.RideCount, money(dept.AverageCost))
	}
	fmt.Fprintf(writer, "\nUnassigned: %d rides, %s\n", alloc.Unassigned.RideCount, money(alloc.Unassigned.TotalCost))
}

// filterResultForOutput drops the sections the configuration excludes
func (rg *ReportGenerator) filterResultForOutput(result *models.ReconciliationResult) *models.ReconciliationResult {
	filtered := &models.ReconciliationResult{
		RunID:        result.RunID,
		GeneratedAt:  result.GeneratedAt,
		CompanyTrips: result.CompanyTrips,
		Suppliers:    make(map[string]*models.SupplierResult, len(result.Suppliers)),
	}
	if rg.config.IncludeAllocation {
		filtered.Allocation = result.Allocation
	}

	for key, sr := range result.Suppliers {
		copied := *sr
		if !rg.config.IncludeMatches {
			copied.Matches = []models.MatchRecord{}
		}
		if !rg.config.IncludeMissing {
			copied.MissingInSupplier = []models.Trip{}
			copied.MissingInCompany = []models.Trip{}
		}
		if !rg.config.IncludeExtra {
			copied.ExtraInSupplier = []models.Trip{}
		}
		if !rg.config.IncludeAmbiguous {
			copied.Ambiguous = []models.Trip{}
		}
		if !rg.config.IncludePriceDifferences {
			copied.PriceDifferences = []models.PriceDifference{}
		}
		filtered.Suppliers[key] = &copied
	}

	return filtered
}

func (rg *ReportGenerator) sortTrips(trips []models.Trip) []models.Trip {
	if !rg.config.SortByPrice {
		return trips
	}
	sorted := append([]models.Trip(nil), trips...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price > sorted[j].Price
	})
	return sorted
}

func (rg *ReportGenerator) truncate(line string) string {
	runes := []rune(line)
	if len(runes) <= rg.config.TableMaxWidth {
		return line
	}
	return string(runes[:rg.config.TableMaxWidth-3]) + "..."
}

func tripRow(kind, supplier string, trip models.Trip) []string {
	row := make([]string, len(csvHeaders))
	row[0] = kind
	row[1] = supplier
	row[2] = trip.TripID
	row[3] = trip.Date
	row[4] = trip.Time
	row[5] = strings.Join(trip.Passengers, "; ")
	row[6] = trip.Source
	row[7] = trip.Destination
	row[8] = money(trip.Price)
	return row
}

func displayID(trip models.Trip) string {
	if trip.HasID() {
		return trip.TripID
	}
	return "(no id)"
}

func money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}
