package normalizer

import (
	"fmt"
	"strings"

	"ride-reconciliation-service/internal/models"
)

// SummaryMode selects how aggressively footer rows are detected
type SummaryMode string

const (
	// SummaryStrict drops rows whose id holds a summary token or is not an integer
	SummaryStrict SummaryMode = "strict"
	// SummaryTokens drops rows whose id holds a summary token
	SummaryTokens SummaryMode = "tokens"
	// SummaryNone keeps every row
	SummaryNone SummaryMode = "none"
)

// FieldSpec locates one canonical field inside a raw record. Position is
// tried first when set, then Labels in order, then the first column (in
// header order) whose label contains Contains.
type FieldSpec struct {
	Position int      `json:"position" mapstructure:"position"`
	Labels   []string `json:"labels,omitempty" mapstructure:"labels"`
	Contains string   `json:"contains,omitempty" mapstructure:"contains"`
}

// IsSet reports whether the field can be located at all
func (f FieldSpec) IsSet() bool {
	return f.Position >= 0 || len(f.Labels) > 0 || f.Contains != ""
}

// Labeled builds a FieldSpec that looks up labels only
func Labeled(labels ...string) FieldSpec {
	return FieldSpec{Position: -1, Labels: labels}
}

// Positional builds a FieldSpec that tries position first, then labels
func Positional(position int, labels ...string) FieldSpec {
	return FieldSpec{Position: position, Labels: labels}
}

var unset = FieldSpec{Position: -1}

// ShapeProfile describes how one source layout maps to a Trip
type ShapeProfile struct {
	Shape         models.Shape `json:"shape" mapstructure:"shape"`
	SupplierLabel string       `json:"supplier_label" mapstructure:"supplier_label"`
	ID            FieldSpec    `json:"id" mapstructure:"id"`
	Date          FieldSpec    `json:"date" mapstructure:"date"`
	Time          FieldSpec    `json:"time" mapstructure:"time"`
	DateTime      FieldSpec    `json:"datetime" mapstructure:"datetime"`
	Passengers    FieldSpec    `json:"passengers" mapstructure:"passengers"`
	Source        FieldSpec    `json:"source" mapstructure:"source"`
	Destination   FieldSpec    `json:"destination" mapstructure:"destination"`
	Description   FieldSpec    `json:"description" mapstructure:"description"`
	Price         FieldSpec    `json:"price" mapstructure:"price"`
	Supplier      FieldSpec    `json:"supplier" mapstructure:"supplier"`
	// PriceSearch scans numeric columns when no price label yields a positive value
	PriceSearch bool        `json:"price_search" mapstructure:"price_search"`
	Summary     SummaryMode `json:"summary" mapstructure:"summary"`
}

// Validate checks if the profile is usable
func (p *ShapeProfile) Validate() error {
	if !p.Shape.IsTripShape() {
		return fmt.Errorf("profile shape %q is not a trip shape", p.Shape)
	}
	if !p.ID.IsSet() {
		return fmt.Errorf("profile %s: id field is not configured", p.Shape)
	}
	if !p.Date.IsSet() && !p.DateTime.IsSet() {
		return fmt.Errorf("profile %s: date or datetime field is required", p.Shape)
	}
	switch p.Summary {
	case SummaryStrict, SummaryTokens, SummaryNone:
	default:
		return fmt.Errorf("profile %s: invalid summary mode %q", p.Shape, p.Summary)
	}
	return nil
}

// EmployeeColumns names the employee directory columns
type EmployeeColumns struct {
	ID             string `json:"id" mapstructure:"id"`
	FirstName      string `json:"first_name" mapstructure:"first_name"`
	LastName       string `json:"last_name" mapstructure:"last_name"`
	Department     string `json:"department" mapstructure:"department"`
	EmployeeNumber string `json:"employee_number" mapstructure:"employee_number"`
}

// Config holds normalization settings shared by every shape
type Config struct {
	Profiles           map[models.Shape]*ShapeProfile `json:"profiles" mapstructure:"-"`
	Employee           EmployeeColumns                `json:"employee" mapstructure:"-"`
	DateLayouts        []string                       `json:"date_layouts" mapstructure:"date_layouts"`
	TimeLayouts        []string                       `json:"time_layouts" mapstructure:"time_layouts"`
	SummaryTokens      []string                       `json:"summary_tokens" mapstructure:"summary_tokens"`
	DescriptionMarkers []string                       `json:"description_markers" mapstructure:"description_markers"`
	CurrencySymbols    []string                       `json:"currency_symbols" mapstructure:"currency_symbols"`
	PriceSearchMin     float64                        `json:"price_search_min" mapstructure:"price_search_min"`
	PriceSearchMax     float64                        `json:"price_search_max" mapstructure:"price_search_max"`
}

// DefaultConfig returns the profiles for the known ledger and invoice layouts
func DefaultConfig() *Config {
	descriptionPrice := []string{
		`סה"כ ללקוח-לאחר הנחה`,
		`סה"כ ללקוח לאחר הנחה`,
		`סה"כ`,
		"מחיר",
		`סה"כ ללקוח`,
		`סה"כ ללקוח-לפני הנחה`,
	}

	return &Config{
		Profiles: map[models.Shape]*ShapeProfile{
			models.ShapeCompany: {
				Shape: models.ShapeCompany,
				ID:    Labeled("_ID"),
				Date:  Labeled("תאריך"),
				Time: FieldSpec{
					Position: -1,
					Labels:   []string{"שעת הזמנה", "שעת התחלה", "שעת משמרת", "שעת הגעה", "שעת יציאה", "זמן הגעה", "זמן"},
					Contains: "שעת",
				},
				DateTime:    unset,
				Passengers:  Labeled("נוסעים"),
				Source:      Labeled("מוצא"),
				Destination: Labeled("יעד"),
				Description: unset,
				Price:       Labeled("מחיר"),
				Supplier:    Labeled("ספק"),
				Summary:     SummaryStrict,
			},
			models.ShapeSupplier1: {
				Shape:         models.ShapeSupplier1,
				SupplierLabel: "בון תור",
				ID:            Labeled("מספר ויזה"),
				Date:          Labeled("תאריך"),
				Time:          Labeled("שעת התחלה"),
				DateTime:      unset,
				Passengers:    unset,
				Source:        unset,
				Destination:   unset,
				Description:   Labeled("תאור"),
				Price:         Labeled(descriptionPrice...),
				Supplier:      unset,
				PriceSearch:   true,
				Summary:       SummaryStrict,
			},
			models.ShapeSupplier2: {
				Shape:         models.ShapeSupplier2,
				SupplierLabel: "גט",
				ID:            Positional(3, "מס' הזמנה"),
				Date:          unset,
				Time:          unset,
				DateTime:      Positional(1, "מועד הנסיעה"),
				Passengers:    Positional(11, "שם הנוסע"),
				Source:        Labeled("נק' איסוף"),
				Destination:   Labeled("כתובת יעד"),
				Description:   unset,
				Price:         Positional(10, `סה"כ ללא מע"מ`, `סה"כ`),
				Supplier:      unset,
				Summary:       SummaryTokens,
			},
			models.ShapeSupplier3: {
				Shape:         models.ShapeSupplier3,
				SupplierLabel: "חורי",
				ID:            Labeled("מספר ויזה"),
				Date:          Labeled("תאריך"),
				Time:          Labeled("שעת התחלה"),
				DateTime:      unset,
				Passengers:    unset,
				Source:        unset,
				Destination:   unset,
				Description:   Labeled("תאור"),
				Price:         Labeled(`סה"כ ללקוח-לפני מע"מ`),
				Supplier:      unset,
				Summary:       SummaryTokens,
			},
		},
		Employee: EmployeeColumns{
			ID:             "_ID",
			FirstName:      "שם פרטי",
			LastName:       "שם משפחה",
			Department:     "מחלקה",
			EmployeeNumber: "מספר נוסע",
		},
		DateLayouts:        []string{"2/1/2006", "2006-1-2", "2-1-2006", "2006/1/2", "2.1.2006"},
		TimeLayouts:        []string{"15:04:05", "15:04"},
		SummaryTokens:      append([]string(nil), models.DefaultSummaryTokens...),
		DescriptionMarkers: []string{"איסוף:", "פיזור:", "pickup:", "dropoff:"},
		CurrencySymbols:    []string{"₪", "$", "€", "ש\"ח"},
		PriceSearchMin:     10,
		PriceSearchMax:     10000,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Profiles) == 0 {
		return fmt.Errorf("at least one shape profile is required")
	}
	for shape, profile := range c.Profiles {
		if profile == nil {
			return fmt.Errorf("profile for %s is nil", shape)
		}
		if profile.Shape != shape {
			return fmt.Errorf("profile registered as %s declares shape %s", shape, profile.Shape)
		}
		if err := profile.Validate(); err != nil {
			return err
		}
	}
	if len(c.DateLayouts) == 0 {
		return fmt.Errorf("at least one date layout is required")
	}
	if len(c.TimeLayouts) == 0 {
		return fmt.Errorf("at least one time layout is required")
	}
	if strings.TrimSpace(c.Employee.ID) == "" && strings.TrimSpace(c.Employee.EmployeeNumber) == "" {
		return fmt.Errorf("employee id or employee number column is required")
	}
	if c.PriceSearchMin < 0 || c.PriceSearchMax < c.PriceSearchMin {
		return fmt.Errorf("invalid price search range %.2f..%.2f", c.PriceSearchMin, c.PriceSearchMax)
	}
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	clone.Profiles = make(map[models.Shape]*ShapeProfile, len(c.Profiles))
	for shape, p := range c.Profiles {
		cp := *p
		clone.Profiles[shape] = &cp
	}
	clone.DateLayouts = append([]string(nil), c.DateLayouts...)
	clone.TimeLayouts = append([]string(nil), c.TimeLayouts...)
	clone.SummaryTokens = append([]string(nil), c.SummaryTokens...)
	clone.DescriptionMarkers = append([]string(nil), c.DescriptionMarkers...)
	clone.CurrencySymbols = append([]string(nil), c.CurrencySymbols...)
	return &clone
}
