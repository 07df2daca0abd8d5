package normalizer

import (
	"sort"
	"strings"

	"ride-reconciliation-service/internal/models"
	"ride-reconciliation-service/pkg/errors"
	"ride-reconciliation-service/pkg/logger"
)

// Normalizer maps raw rows from the known layouts to canonical trips and
// employee indexes. Row-level defects never fail a call: unresolved fields
// fall back to empty or zero values.
type Normalizer struct {
	config *Config
	logger logger.Logger
}

// Output carries the result of Normalize for either kind of shape
type Output struct {
	Trips     []models.Trip
	Employees *models.EmployeeIndex
}

// NewNormalizer creates a normalizer; a nil config selects DefaultConfig
func NewNormalizer(config *Config, log logger.Logger) (*Normalizer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "normalizer", err.Error(), err)
	}
	return &Normalizer{
		config: config.Clone(),
		logger: logger.OrGlobal(log).WithComponent("normalizer"),
	}, nil
}

// Config returns a copy of the active configuration
func (n *Normalizer) Config() *Config {
	return n.config.Clone()
}

// Normalize dispatches on shape. Only a nil record sequence or an unknown
// shape is reported as an error.
func (n *Normalizer) Normalize(records []*models.RawRecord, shape models.Shape) (*Output, error) {
	if shape == models.ShapeEmployee {
		idx, err := n.NormalizeEmployees(records)
		if err != nil {
			return nil, err
		}
		return &Output{Employees: idx}, nil
	}
	trips, err := n.NormalizeTrips(records, shape)
	if err != nil {
		return nil, err
	}
	return &Output{Trips: trips}, nil
}

// NormalizeTrips converts rows of a ledger or invoice layout into trips,
// dropping summary and footer rows.
func (n *Normalizer) NormalizeTrips(records []*models.RawRecord, shape models.Shape) ([]models.Trip, error) {
	if records == nil {
		return nil, errors.ValidationError(errors.CodeMissingRecords, shape.String(), nil, nil).
			WithContext("shape", shape.String())
	}
	profile, ok := n.config.Profiles[shape]
	if !ok || !shape.IsTripShape() {
		return nil, errors.ValidationError(errors.CodeUnknownShape, "shape", shape.String(), nil)
	}

	stage := logger.StartStage(n.logger, "normalize", logger.Fields{"shape": shape.String(), "rows": len(records)})
	trips := make([]models.Trip, 0, len(records))
	dropped := 0

	for i, record := range records {
		if record == nil {
			n.logger.WithFields(logger.Fields{"shape": shape.String(), "row": i}).Debug("skipping nil record")
			dropped++
			continue
		}
		idValue, _ := n.lookup(record, profile.ID)
		if n.IsSummaryRow(idValue, profile.Summary) {
			n.logger.WithFields(logger.Fields{
				"shape": shape.String(),
				"row":   lineOf(record, i),
				"id":    Text(idValue),
			}).Debug("dropping summary row")
			dropped++
			continue
		}
		trips = append(trips, n.NormalizeTrip(record, profile))
	}

	if dropped > 0 {
		n.logger.WithFields(logger.Fields{"shape": shape.String(), "dropped": dropped}).Info("summary rows excluded")
	}
	stage.Done(len(trips))
	return trips, nil
}

// NormalizeTrip converts one row with the given profile
func (n *Normalizer) NormalizeTrip(record *models.RawRecord, profile *ShapeProfile) models.Trip {
	trip := models.Trip{
		Passengers:   []string{},
		Supplier:     profile.SupplierLabel,
		OriginalData: record,
	}

	if v, ok := n.lookup(record, profile.ID); ok {
		trip.TripID = Text(v)
	}

	if profile.DateTime.IsSet() {
		if v, ok := n.lookup(record, profile.DateTime); ok {
			trip.Date, trip.Time = ParseDateTime(v, n.config.DateLayouts, n.config.TimeLayouts)
		}
	}
	if trip.Date == "" {
		if v, ok := n.lookup(record, profile.Date); ok {
			trip.Date = ParseDate(v, n.config.DateLayouts)
		}
	}
	if trip.Time == "" {
		if v, ok := n.lookup(record, profile.Time); ok {
			trip.Time = ParseTime(v, n.config.TimeLayouts)
		}
	}

	if v, ok := n.lookup(record, profile.Passengers); ok {
		trip.Passengers = ParsePassengers(v)
	}

	if v, ok := n.lookup(record, profile.Source); ok {
		trip.Source = CleanText(v)
	}
	if v, ok := n.lookup(record, profile.Destination); ok {
		trip.Destination = CleanText(v)
	}
	if profile.Description.IsSet() && trip.Source == "" && trip.Destination == "" {
		if v, ok := n.lookup(record, profile.Description); ok {
			trip.Source, trip.Destination = ParseDescription(v, n.config.DescriptionMarkers)
		}
	}

	trip.Price = n.resolvePrice(record, profile)

	if v, ok := n.lookup(record, profile.Supplier); ok {
		trip.Supplier = CleanText(v)
	}

	return trip
}

// IsSummaryRow reports whether an id value marks a footer or aggregate row
func (n *Normalizer) IsSummaryRow(idValue interface{}, mode SummaryMode) bool {
	if mode == SummaryNone || models.IsMissing(idValue) {
		return false
	}
	id := Text(idValue)
	if id == "" || id == "nan" {
		return false
	}
	if ContainsSummaryToken(id, n.config.SummaryTokens) {
		return true
	}
	return mode == SummaryStrict && !IsInteger(id)
}

// ContainsSummaryToken reports a case-insensitive substring hit on any token
func ContainsSummaryToken(s string, tokens []string) bool {
	lower := strings.ToLower(s)
	for _, token := range tokens {
		if token != "" && strings.Contains(lower, strings.ToLower(token)) {
			return true
		}
	}
	return false
}

func (n *Normalizer) resolvePrice(record *models.RawRecord, profile *ShapeProfile) float64 {
	if profile.Price.Position >= 0 {
		if v, ok := record.At(profile.Price.Position); ok && !blank(v) {
			if p := ParsePrice(v, n.config.CurrencySymbols); p > 0 {
				return p
			}
		}
	}
	for _, label := range profile.Price.Labels {
		if v, ok := record.Get(label); ok {
			if p := ParsePrice(v, n.config.CurrencySymbols); p > 0 {
				return p
			}
		}
	}
	if !profile.PriceSearch {
		return 0
	}

	// Last resort: first numeric cell inside the plausible price range.
	skip := make(map[string]bool, len(profile.ID.Labels))
	for _, label := range profile.ID.Labels {
		skip[label] = true
	}
	for _, label := range columnsOf(record) {
		if skip[label] {
			continue
		}
		v, ok := record.Get(label)
		if !ok || !isNumeric(v) {
			continue
		}
		p := ParsePrice(v, nil)
		if p >= n.config.PriceSearchMin && p <= n.config.PriceSearchMax {
			n.logger.WithFields(logger.Fields{"row": record.Line, "column": label}).Debug("price taken from numeric column search")
			return p
		}
	}
	return 0
}

// lookup resolves a field: position, then labels in order, then the first
// header containing the configured substring.
func (n *Normalizer) lookup(record *models.RawRecord, spec FieldSpec) (interface{}, bool) {
	if record == nil {
		return nil, false
	}
	if spec.Position >= 0 {
		if v, ok := record.At(spec.Position); ok && !blank(v) {
			return v, true
		}
	}
	for _, label := range spec.Labels {
		if v, ok := record.Get(label); ok && !blank(v) {
			return v, true
		}
	}
	if spec.Contains != "" {
		for _, label := range columnsOf(record) {
			if !strings.Contains(label, spec.Contains) {
				continue
			}
			if v, ok := record.Get(label); ok && !blank(v) {
				return v, true
			}
		}
	}
	return nil, false
}

func blank(v interface{}) bool {
	if models.IsMissing(v) {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// columnsOf returns header order, or sorted field labels when no header was kept
func columnsOf(record *models.RawRecord) []string {
	if len(record.Columns) > 0 {
		return record.Columns
	}
	labels := make([]string, 0, len(record.Fields))
	for label := range record.Fields {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func lineOf(record *models.RawRecord, i int) int {
	if record.Line > 0 {
		return record.Line
	}
	return i
}
