package parsers

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"

	"ride-reconciliation-service/pkg/errors"
)

const bom = "\ufeff"

// ReadCSV reads every row of a CSV stream. A leading UTF-8 byte order mark
// is dropped and invalid UTF-8 is rejected.
func (p *Parser) ReadCSV(ctx context.Context, r io.Reader, source string) ([][]string, error) {
	return p.readCSV(ctx, r, source)
}

func (p *Parser) readCSV(ctx context.Context, r io.Reader, source string) ([][]string, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(bom)); err == nil && string(head) == bom {
		_, _ = br.Discard(len(bom))
	}

	reader := csv.NewReader(br)
	reader.Comma = p.config.Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.InternalError(errors.CodeUnexpectedError, "csv_parsing", err)
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			if pe, ok := err.(*csv.ParseError); ok {
				line = pe.Line
			}
			return nil, errors.ParseError(errors.CodeInvalidFormat, source, line, "", err).
				WithSuggestion("Check the file format and ensure it's a valid CSV")
		}
		for col, cell := range row {
			if !utf8.ValidString(cell) {
				line, _ := reader.FieldPos(col)
				return nil, errors.ParseError(errors.CodeEncodingError, source, line, fmt.Sprintf("column_%d", col),
					fmt.Errorf("invalid UTF-8 encoding detected"))
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
