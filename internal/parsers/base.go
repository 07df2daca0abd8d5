// Package parsers reads CSV and XLSX files into raw records for the
// normalizer. It is used by the command line front end only; the engine
// packages never read files.
//
// Example usage:
//
//	parser, err := parsers.NewParser(parsers.GettSheetConfig(), log)
//	records, stats, err := parser.ParseFile(ctx, "gett.xlsx")
package parsers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cast"

	"ride-reconciliation-service/internal/models"
	"ride-reconciliation-service/pkg/errors"
	"ride-reconciliation-service/pkg/logger"
)

// Format is a supported input file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks the format from the file extension
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported file extension %q", filepath.Ext(path))
}

var numericCell = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Parser turns a table file into raw records
type Parser struct {
	config *SheetConfig
	logger logger.Logger
}

// NewParser creates a parser; a nil config selects DefaultSheetConfig
func NewParser(config *SheetConfig, log logger.Logger) (*Parser, error) {
	if config == nil {
		config = DefaultSheetConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "sheet", err.Error(), err)
	}
	c := *config
	return &Parser{config: &c, logger: logger.OrGlobal(log).WithComponent("parsers")}, nil
}

// ParseFile reads path as CSV or XLSX depending on its extension
func (p *Parser) ParseFile(ctx context.Context, path string) ([]*models.RawRecord, *ParseStats, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, nil, errors.ParseError(errors.CodeInvalidFormat, path, 0, "", err)
	}

	log := p.logger.WithFields(logger.Fields{"file_path": path, "format": string(format)})
	log.Debug("opening file")

	var rows [][]string
	switch format {
	case FormatCSV:
		var f *os.File
		if f, err = openFile(path); err != nil {
			return nil, nil, err
		}
		defer f.Close()
		rows, err = p.readCSV(ctx, f, path)
	case FormatXLSX:
		rows, err = p.readXLSX(path)
	}
	if err != nil {
		log.WithError(err).Error("failed to read file")
		return nil, nil, err
	}

	records, stats, err := p.BuildRecords(ctx, rows, path)
	if err != nil {
		return nil, stats, err
	}
	log.WithFields(logger.Fields{
		"records": stats.RecordsParsed,
		"skipped": stats.RowsSkipped,
	}).Info("file parsed")
	return records, stats, nil
}

// BuildRecords converts a grid of cells into records keyed by the header row
func (p *Parser) BuildRecords(ctx context.Context, rows [][]string, source string) ([]*models.RawRecord, *ParseStats, error) {
	stats := NewParseStats()
	stats.TotalLines = len(rows)

	if len(rows) <= p.config.HeaderRow {
		return nil, stats, errors.ParseError(errors.CodeMissingColumn, source, p.config.HeaderRow+1, "header",
			fmt.Errorf("file has %d rows, header expected on row %d", len(rows), p.config.HeaderRow+1))
	}
	headers := cleanHeaders(rows[p.config.HeaderRow])

	records := make([]*models.RawRecord, 0, len(rows)-p.config.HeaderRow-1)
	for i := p.config.HeaderRow + 1; i < len(rows); i++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, errors.InternalError(errors.CodeUnexpectedError, "parse", err)
		}
		line := i + 1
		row := rows[i]

		if p.config.SkipEmptyRows && isEmptyRow(row) {
			stats.RowsSkipped++
			continue
		}
		if rc := p.config.RequiredColumn; rc >= 0 && (rc >= len(row) || strings.TrimSpace(row[rc]) == "") {
			stats.RowsSkipped++
			p.logger.WithField("line_number", line).Debug("skipping row without required column")
			continue
		}
		if len(row) > len(headers) {
			stats.AddError(&RowError{Line: line, Message: fmt.Sprintf("row has %d cells, header has %d", len(row), len(headers))})
		}

		values := make([]interface{}, len(headers))
		for j := range headers {
			if j < len(row) {
				values[j] = p.cell(row[j])
			}
		}
		records = append(records, models.NewRawRecord(headers, values, line))
		stats.RecordsParsed++
	}
	return records, stats, nil
}

// cell converts one cell; blank cells become nil
func (p *Parser) cell(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if !p.config.InferNumbers || !numericCell.MatchString(s) {
		return s
	}
	digits := strings.TrimPrefix(s, "-")
	if len(digits) > 1 && digits[0] == '0' && digits[1] != '.' {
		return s
	}
	f, err := cast.ToFloat64E(s)
	if err != nil {
		return s
	}
	return f
}

// cleanHeaders trims labels and names blank ones by position so that every
// column stays addressable
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(strings.TrimPrefix(h, bom))
		if h == "" {
			h = fmt.Sprintf("column_%d", i)
		}
		if n := seen[h]; n > 0 {
			seen[h]++
			h = fmt.Sprintf("%s_%d", h, n)
		} else {
			seen[h] = 1
		}
		cleaned[i] = h
	}
	return cleaned
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	return f, nil
}

// RowError describes a row the parser kept but found irregular
type RowError struct {
	Line    int
	Message string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ParseStats holds statistics about a parsing operation
type ParseStats struct {
	TotalLines    int
	RecordsParsed int
	RowsSkipped   int
	ErrorCount    int
	Errors        []*RowError
}

// NewParseStats creates a new ParseStats instance
func NewParseStats() *ParseStats {
	return &ParseStats{Errors: make([]*RowError, 0)}
}

// AddError records an irregular row
func (ps *ParseStats) AddError(err *RowError) {
	ps.Errors = append(ps.Errors, err)
	ps.ErrorCount++
}

// HasErrors returns true if there were any irregular rows
func (ps *ParseStats) HasErrors() bool {
	return ps.ErrorCount > 0
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d lines, %d records, %d skipped, %d irregular",
		ps.TotalLines, ps.RecordsParsed, ps.RowsSkipped, ps.ErrorCount)
}
