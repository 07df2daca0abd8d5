package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Shape identifies one of the known raw source layouts
type Shape string

const (
	// ShapeCompany is the internal ride-booking ledger
	ShapeCompany Shape = "company"
	// ShapeSupplier1 is the Bon Tour invoice layout
	ShapeSupplier1 Shape = "supplier1"
	// ShapeSupplier2 is the GETT invoice layout
	ShapeSupplier2 Shape = "supplier2"
	// ShapeSupplier3 is the Hori invoice layout
	ShapeSupplier3 Shape = "supplier3"
	// ShapeEmployee is the employee directory
	ShapeEmployee Shape = "employee"
)

// String returns the string representation of Shape
func (s Shape) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known shapes
func (s Shape) IsValid() bool {
	switch s {
	case ShapeCompany, ShapeSupplier1, ShapeSupplier2, ShapeSupplier3, ShapeEmployee:
		return true
	}
	return false
}

// IsTripShape reports whether s normalizes to trips rather than employees
func (s Shape) IsTripShape() bool {
	return s.IsValid() && s != ShapeEmployee
}

// IsSupplier reports whether s is one of the supplier invoice layouts
func (s Shape) IsSupplier() bool {
	return s == ShapeSupplier1 || s == ShapeSupplier2 || s == ShapeSupplier3
}

// UnassignedDepartment collects cost that cannot be attributed to a department
const UnassignedDepartment = "Unassigned"

// DefaultSummaryTokens mark footer and aggregate rows in exported invoices
var DefaultSummaryTokens = []string{`סה"כ`, "סה כ", "total", "sum", "סיכום", "summary"}

// RawRecord is one parsed spreadsheet row. Fields maps column label to a raw
// scalar (string, number, bool, time.Time or nil). Columns is the header in
// positional order and backs lookups by column index.
type RawRecord struct {
	Fields  map[string]interface{} `json:"fields"`
	Columns []string               `json:"-"`
	Line    int                    `json:"line,omitempty"`
}

// NewRawRecord builds a record from a header and a row of values
func NewRawRecord(columns []string, values []interface{}, line int) *RawRecord {
	r := &RawRecord{
		Fields:  make(map[string]interface{}, len(columns)),
		Columns: append([]string(nil), columns...),
		Line:    line,
	}
	for i, col := range columns {
		if i < len(values) {
			r.Fields[col] = values[i]
		} else {
			r.Fields[col] = nil
		}
	}
	return r
}

// Get returns the value for label. Missing keys, nil and NaN report false.
func (r *RawRecord) Get(label string) (interface{}, bool) {
	if r == nil || r.Fields == nil {
		return nil, false
	}
	v, ok := r.Fields[label]
	if !ok || IsMissing(v) {
		return nil, false
	}
	return v, true
}

// ColumnAt returns the header label at position i
func (r *RawRecord) ColumnAt(i int) (string, bool) {
	if r == nil || i < 0 || i >= len(r.Columns) {
		return "", false
	}
	return r.Columns[i], true
}

// At returns the value stored under the column at position i
func (r *RawRecord) At(i int) (interface{}, bool) {
	label, ok := r.ColumnAt(i)
	if !ok {
		return nil, false
	}
	return r.Get(label)
}

// MarshalJSON emits only transport-safe values
func (r *RawRecord) MarshalJSON() ([]byte, error) {
	fields := make(map[string]interface{}, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = SanitizeValue(v)
	}
	return json.Marshal(fields)
}

// IsMissing reports whether a raw scalar is the missing sentinel
func IsMissing(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(val)
	case float32:
		return math.IsNaN(float64(val))
	}
	return false
}

// SanitizeValue collapses non-finite numbers to nil and formats times as strings
func SanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return nil
		}
	case time.Time:
		if val.IsZero() {
			return nil
		}
		return val.Format("2006-01-02 15:04:05")
	}
	return v
}

// Trip is the canonical ride record shared by matching and allocation
type Trip struct {
	TripID       string     `json:"trip_id"`
	Date         string     `json:"date"`
	Time         string     `json:"time"`
	Passengers   []string   `json:"passengers"`
	Source       string     `json:"source"`
	Destination  string     `json:"destination"`
	Price        float64    `json:"price"`
	Supplier     string     `json:"supplier"`
	OriginalData *RawRecord `json:"original_data,omitempty"`
}

// String returns a string representation of the Trip
func (t Trip) String() string {
	return fmt.Sprintf("Trip{ID: %s, Date: %s, Time: %s, Price: %.2f, Route: %s -> %s}",
		t.TripID, t.Date, t.Time, t.Price, t.Source, t.Destination)
}

// HasID reports whether the trip carries a non-blank identifier
func (t Trip) HasID() bool {
	return strings.TrimSpace(t.TripID) != ""
}

// MarshalJSON keeps passengers as an array and price finite
func (t Trip) MarshalJSON() ([]byte, error) {
	type Alias Trip
	a := Alias(t)
	if a.Passengers == nil {
		a.Passengers = []string{}
	}
	if math.IsNaN(a.Price) || math.IsInf(a.Price, 0) {
		a.Price = 0
	}
	return json.Marshal(a)
}

// Employee is one row of the employee directory
type Employee struct {
	ID                 string     `json:"id"`
	EmployeeNumber     string     `json:"employee_number"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	FullName           string     `json:"full_name"`
	FullNameNormalized string     `json:"full_name_normalized"`
	Department         string     `json:"department"`
	OriginalData       *RawRecord `json:"-"`
}

// Key returns the identity used for deduplication: id, else employee number
func (e *Employee) Key() string {
	if e.ID != "" {
		return e.ID
	}
	return e.EmployeeNumber
}

// EmployeeIndex holds the lookup views over an employee directory
type EmployeeIndex struct {
	ByID   map[string]*Employee   `json:"-"`
	ByName map[string][]*Employee `json:"-"`
	All    []*Employee            `json:"all_employees"`

	seen map[string]int
}

// NewEmployeeIndex creates an empty index
func NewEmployeeIndex() *EmployeeIndex {
	return &EmployeeIndex{
		ByID:   make(map[string]*Employee),
		ByName: make(map[string][]*Employee),
		All:    []*Employee{},
		seen:   make(map[string]int),
	}
}

// Add indexes e by id, by employee number and under every given name key.
// Later rows replace earlier ones on the id views; name keys keep every
// candidate in insertion order.
func (idx *EmployeeIndex) Add(e *Employee, nameKeys ...string) {
	if idx.seen == nil {
		idx.seen = make(map[string]int)
	}
	if e.ID != "" {
		idx.ByID[e.ID] = e
	}
	if e.EmployeeNumber != "" && e.EmployeeNumber != e.ID {
		idx.ByID[e.EmployeeNumber] = e
	}

	added := make(map[string]bool, len(nameKeys))
	for _, key := range nameKeys {
		if key == "" || added[key] {
			continue
		}
		added[key] = true
		idx.ByName[key] = append(idx.ByName[key], e)
	}

	if key := e.Key(); key != "" {
		if pos, ok := idx.seen[key]; ok {
			idx.All[pos] = e
		} else {
			idx.seen[key] = len(idx.All)
			idx.All = append(idx.All, e)
		}
	}
}

// LookupID returns the employee indexed under an id or employee number
func (idx *EmployeeIndex) LookupID(id string) (*Employee, bool) {
	if idx == nil || id == "" {
		return nil, false
	}
	e, ok := idx.ByID[id]
	return e, ok
}

// LookupName returns the first employee inserted under a normalized name
func (idx *EmployeeIndex) LookupName(name string) (*Employee, bool) {
	if idx == nil || name == "" {
		return nil, false
	}
	candidates := idx.ByName[name]
	if len(candidates) == 0 {
		return nil, false
	}
	return candidates[0], true
}

// Len returns the number of distinct employees
func (idx *EmployeeIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.All)
}
