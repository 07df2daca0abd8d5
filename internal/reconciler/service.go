package reconciler

import (
	"time"

	"github.com/google/uuid"

	"ride-reconciliation-service/internal/allocator"
	"ride-reconciliation-service/internal/matcher"
	"ride-reconciliation-service/internal/models"
	"ride-reconciliation-service/internal/normalizer"
	"ride-reconciliation-service/pkg/errors"
	"ride-reconciliation-service/pkg/logger"
)

// Service runs the engine operations with one set of configurations
type Service struct {
	config     *Config
	normalizer *normalizer.Normalizer
	matcher    *matcher.Matcher
	events     matcher.EventSink
	logger     logger.Logger
}

// NewService creates a service. Nil configs select the defaults and a nil
// sink forwards matcher events to the logger.
func NewService(
	config *Config,
	normConfig *normalizer.Config,
	matchConfig *matcher.MatchingConfig,
	log logger.Logger,
	sink matcher.EventSink,
) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciler", config.Strategy, err)
	}

	log = logger.OrGlobal(log)
	if sink == nil {
		sink = matcher.NewLoggerSink(log)
	}

	norm, err := normalizer.NewNormalizer(normConfig, log)
	if err != nil {
		return nil, err
	}
	m, err := matcher.NewMatcher(matchConfig, log, sink)
	if err != nil {
		return nil, err
	}

	return &Service{
		config:     config.Clone(),
		normalizer: norm,
		matcher:    m,
		events:     sink,
		logger:     log.WithComponent("reconciler"),
	}, nil
}

// Config returns a copy of the service configuration
func (s *Service) Config() *Config {
	return s.config.Clone()
}

// Normalize converts raw records of one source shape
func (s *Service) Normalize(records []*models.RawRecord, shape models.Shape) (*normalizer.Output, error) {
	return s.normalizer.Normalize(records, shape)
}

// Reconcile matches the company trips against every supplier set. Every
// supplied key gets a result with all buckets present.
func (s *Service) Reconcile(company []models.Trip, suppliers map[string][]models.Trip) (*models.ReconciliationResult, error) {
	if err := s.validateRequest(company, suppliers); err != nil {
		return nil, err
	}

	strategy := s.SelectStrategy(suppliers)
	result := &models.ReconciliationResult{
		RunID:        uuid.NewString(),
		GeneratedAt:  time.Now(),
		CompanyTrips: len(company),
		Suppliers:    make(map[string]*models.SupplierResult, len(suppliers)),
	}
	log := s.logger.WithFields(logger.Fields{"run_id": result.RunID, "strategy": string(strategy)})

	s.events.Emit(matcher.Event{
		Kind:    matcher.EventStrategyChosen,
		Message: "strategy chosen",
		Time:    time.Now(),
		Fields: map[string]interface{}{
			"run_id":    result.RunID,
			"strategy":  string(strategy),
			"suppliers": models.SortedKeys(suppliers),
		},
	})
	log.WithField("suppliers", len(suppliers)).Info("reconciliation started")

	switch strategy {
	case models.StrategyID:
		for _, key := range models.SortedKeys(suppliers) {
			r := s.matcher.CompareByID(s.companyTripsFor(company, key), suppliers[key])
			r.Supplier = key
			result.Suppliers[key] = r
		}
	case models.StrategyCascade:
		for _, key := range models.SortedKeys(suppliers) {
			result.Suppliers[key] = s.cascade(s.companyTripsFor(company, key), suppliers[key], key)
		}
	default:
		for key, r := range s.matcher.MatchAll(company, suppliers) {
			result.Suppliers[key] = r
		}
	}

	for _, key := range result.SupplierKeys() {
		stats := result.Suppliers[key].Statistics
		log.WithFields(logger.Fields{
			"supplier":   key,
			"matched":    stats.Matched,
			"missing":    stats.Missing,
			"extra":      stats.Extra,
			"match_rate": stats.MatchRate,
		}).Info("supplier reconciled")
	}
	return result, nil
}

// Allocate splits company trip costs across departments
func (s *Service) Allocate(company []models.Trip, employees *models.EmployeeIndex) (*models.AllocationResult, error) {
	if company == nil {
		return nil, errors.ValidationError(errors.CodeMissingRecords, string(models.ShapeCompany), nil, nil)
	}
	if employees == nil {
		return nil, errors.AllocationError(errors.CodeMissingEmployees, "allocate", nil)
	}
	return allocator.NewDepartmentAllocator(employees, s.logger).AllocateRides(company), nil
}

// SelectStrategy resolves the configured strategy for a request. Auto picks
// id comparison for a single id-reliable supplier, the cascade for a single
// fuzzy supplier and the full pass otherwise.
func (s *Service) SelectStrategy(suppliers map[string][]models.Trip) models.Strategy {
	if s.config.Strategy != models.StrategyAuto {
		return s.config.Strategy
	}
	if len(suppliers) != 1 {
		return models.StrategyFull
	}
	for key := range suppliers {
		profile, _ := s.config.Profile(key)
		switch profile.Shape {
		case models.ShapeSupplier1, models.ShapeSupplier3:
			return models.StrategyID
		case models.ShapeSupplier2:
			return models.StrategyCascade
		}
	}
	return models.StrategyFull
}

// cascade adapts a MatchGettTrips outcome to the supplier result buckets
func (s *Service) cascade(company, supplier []models.Trip, key string) *models.SupplierResult {
	outcome := s.matcher.MatchGettTrips(company, supplier)
	r := models.NewSupplierResult(key, models.StrategyCascade)
	r.Matches = outcome.Matches
	r.MissingInSupplier = outcome.UnmatchedCompany
	r.ExtraInSupplier = outcome.UnmatchedSupplier

	if outcome.RangeStart != "" {
		r.DateRange = &models.DateRange{
			Start:            outcome.RangeStart,
			End:              outcome.RangeEnd,
			ExcludedCompany:  len(outcome.OutOfRangeCompany),
			ExcludedSupplier: len(outcome.OutOfRangeSupplier),
		}
	}
	r.ComputeStatistics(len(company) - len(outcome.OutOfRangeCompany))
	return r
}
