package parsers

import (
	"fmt"

	"ride-reconciliation-service/internal/models"
)

// gettHeaderRow is the header row index of GETT invoice spreadsheets; the
// rows above it hold the invoice letterhead.
const gettHeaderRow = 14

// SheetConfig describes where the table sits inside a file
type SheetConfig struct {
	// HeaderRow is the zero-based row holding the column labels
	HeaderRow int `json:"header_row" mapstructure:"header_row"`

	// RequiredColumn drops data rows whose cell at this position is empty;
	// -1 disables the check.
	RequiredColumn int `json:"required_column" mapstructure:"required_column"`

	SkipEmptyRows bool `json:"skip_empty_rows" mapstructure:"skip_empty_rows"`

	// InferNumbers stores numeric cells as float64. Cells with a leading zero
	// such as "0123" stay text.
	InferNumbers bool `json:"infer_numbers" mapstructure:"infer_numbers"`

	Delimiter rune `json:"delimiter" mapstructure:"delimiter"`

	// Sheet selects a workbook sheet by name; empty means the first sheet
	Sheet string `json:"sheet" mapstructure:"sheet"`
}

// DefaultSheetConfig returns the layout of a plain table with a first-row header
func DefaultSheetConfig() *SheetConfig {
	return &SheetConfig{
		HeaderRow:      0,
		RequiredColumn: -1,
		SkipEmptyRows:  true,
		InferNumbers:   true,
		Delimiter:      ',',
	}
}

// GettSheetConfig returns the layout of a GETT invoice export
func GettSheetConfig() *SheetConfig {
	c := DefaultSheetConfig()
	c.HeaderRow = gettHeaderRow
	c.RequiredColumn = 3
	return c
}

// SheetConfigFor returns the layout used for a source shape
func SheetConfigFor(shape models.Shape) *SheetConfig {
	if shape == models.ShapeSupplier2 {
		return GettSheetConfig()
	}
	return DefaultSheetConfig()
}

// Validate checks if the sheet configuration is valid
func (c *SheetConfig) Validate() error {
	if c.HeaderRow < 0 {
		return fmt.Errorf("header row cannot be negative: %d", c.HeaderRow)
	}
	if c.RequiredColumn < -1 {
		return fmt.Errorf("required column must be -1 or a column index: %d", c.RequiredColumn)
	}
	if c.Delimiter == 0 || c.Delimiter == '\n' || c.Delimiter == '\r' || c.Delimiter == '"' {
		return fmt.Errorf("invalid delimiter: %q", c.Delimiter)
	}
	return nil
}
