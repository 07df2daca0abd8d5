package normalizer

import (
	"strings"

	"ride-reconciliation-service/internal/models"
	"ride-reconciliation-service/pkg/errors"
	"ride-reconciliation-service/pkg/logger"
)

// NormalizeEmployees builds the lookup index over an employee directory
func (n *Normalizer) NormalizeEmployees(records []*models.RawRecord) (*models.EmployeeIndex, error) {
	if records == nil {
		return nil, errors.ValidationError(errors.CodeMissingRecords, models.ShapeEmployee.String(), nil, nil).
			WithContext("shape", models.ShapeEmployee.String())
	}

	stage := logger.StartStage(n.logger, "normalize", logger.Fields{"shape": models.ShapeEmployee.String(), "rows": len(records)})
	idx := models.NewEmployeeIndex()

	for _, record := range records {
		if record == nil {
			continue
		}
		e := n.NormalizeEmployee(record)
		if e.Key() == "" && e.FullNameNormalized == "" {
			n.logger.WithField("row", record.Line).Debug("skipping employee row without id or name")
			continue
		}
		idx.Add(e, EmployeeNameKeys(e)...)
	}

	n.logger.WithFields(logger.Fields{"employees": idx.Len(), "name_keys": len(idx.ByName)}).Debug("employee index built")
	stage.Done(idx.Len())
	return idx, nil
}

// NormalizeEmployee converts one directory row
func (n *Normalizer) NormalizeEmployee(record *models.RawRecord) *models.Employee {
	cols := n.config.Employee
	field := func(label string) string {
		if label == "" {
			return ""
		}
		v, _ := record.Get(label)
		return Text(v)
	}

	first := field(cols.FirstName)
	last := field(cols.LastName)
	full := strings.TrimSpace(first + " " + last)

	department := field(cols.Department)
	if department == "" {
		department = models.UnassignedDepartment
	}

	return &models.Employee{
		ID:                 field(cols.ID),
		EmployeeNumber:     field(cols.EmployeeNumber),
		FirstName:          first,
		LastName:           last,
		FullName:           full,
		FullNameNormalized: NormalizeName(full),
		Department:         department,
		OriginalData:       record,
	}
}

// EmployeeNameKeys lists the name keys an employee is indexed under: the
// full name, and the first given name with the last name when the given
// name holds a middle name.
func EmployeeNameKeys(e *models.Employee) []string {
	keys := []string{e.FullNameNormalized}
	firstWords := strings.Fields(e.FirstName)
	if len(firstWords) > 1 && e.LastName != "" {
		keys = append(keys, NormalizeName(firstWords[0]+" "+e.LastName))
	}
	return keys
}
