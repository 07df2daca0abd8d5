package reconciler

import (
	"go.uber.org/multierr"

	"ride-reconciliation-service/internal/models"
	"ride-reconciliation-service/pkg/errors"
	"ride-reconciliation-service/pkg/logger"
)

// FilterCompanyTrips returns the company trips whose supplier label belongs
// to profile, in input order
func FilterCompanyTrips(company []models.Trip, profile SupplierProfile) []models.Trip {
	out := make([]models.Trip, 0, len(company))
	for _, t := range company {
		if profile.Owns(t.Supplier) {
			out = append(out, t)
		}
	}
	return out
}

// companyTripsFor narrows the company ledger for the id and cascade paths
func (s *Service) companyTripsFor(company []models.Trip, key string) []models.Trip {
	profile, ok := s.config.Profile(key)
	if !ok {
		return company
	}
	filtered := FilterCompanyTrips(company, profile)
	s.logger.WithFields(logger.Fields{
		"supplier": key,
		"company":  len(company),
		"filtered": len(filtered),
	}).Debug("company trips filtered by supplier label")
	return filtered
}

// validateRequest reports every structural defect of a reconcile request
func (s *Service) validateRequest(company []models.Trip, suppliers map[string][]models.Trip) error {
	var err error
	if company == nil {
		err = multierr.Append(err, errors.ValidationError(errors.CodeMissingRecords, string(models.ShapeCompany), nil, nil))
	}
	if suppliers == nil {
		err = multierr.Append(err, errors.ValidationError(errors.CodeMissingRecords, "suppliers", nil, nil))
	}
	for _, key := range models.SortedKeys(suppliers) {
		if _, ok := s.config.Profile(key); !ok {
			err = multierr.Append(err, errors.ValidationError(errors.CodeUnknownSupplier, "supplier", key, nil).
				WithContext("supplier", key))
			continue
		}
		if suppliers[key] == nil {
			err = multierr.Append(err, errors.ValidationError(errors.CodeMissingRecords, key, nil, nil).
				WithContext("supplier", key))
		}
	}
	return err
}
