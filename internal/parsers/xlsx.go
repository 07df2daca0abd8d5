package parsers

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"ride-reconciliation-service/pkg/errors"
)

// readXLSX loads one sheet with raw cell values, so dates arrive as
// spreadsheet serial numbers and times as day fractions
func (p *Parser) readXLSX(path string) ([][]string, error) {
	if err := checkReadable(path); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	defer f.Close()

	sheet := p.config.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, 0, "", fmt.Errorf("workbook has no sheets"))
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, 0, sheet, err)
	}
	return rows, nil
}

// checkReadable reports a missing or unreadable workbook as a file error
func checkReadable(path string) error {
	f, err := openFile(path)
	if err != nil {
		return err
	}
	return f.Close()
}
