package reconciler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"

	"ride-reconciliation-service/internal/models"
	"ride-reconciliation-service/pkg/errors"
	"ride-reconciliation-service/pkg/logger"
)

// Request carries the raw records of one reconciliation run. Supplier
// record sets are keyed by supplier profile key; Employees is optional and
// enables department allocation.
type Request struct {
	Company   []*models.RawRecord
	Suppliers map[string][]*models.RawRecord
	Employees []*models.RawRecord
}

// Progress tracks the steps of an orchestrated run
type Progress struct {
	TotalSteps      int           `json:"total_steps"`
	CompletedSteps  int           `json:"completed_steps"`
	CurrentStep     string        `json:"current_step"`
	PercentComplete float64       `json:"percent_complete"`
	StartTime       time.Time     `json:"start_time"`
	ElapsedTime     time.Duration `json:"elapsed_time"`
}

// ProgressCallback is called after every step with a snapshot of progress
type ProgressCallback func(Progress)

// Orchestrator runs normalization, reconciliation and allocation from raw
// records in sequence
type Orchestrator struct {
	service *Service
	logger  logger.Logger

	callbacks []ProgressCallback
	progress  Progress
	mu        sync.Mutex
}

const orchestratorSteps = 3

// NewOrchestrator creates an orchestrator around service
func NewOrchestrator(service *Service) (*Orchestrator, error) {
	if service == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "service", nil, nil).
			WithSuggestion("Provide a valid reconciler Service")
	}
	return &Orchestrator{
		service: service,
		logger:  service.logger.WithComponent("orchestrator"),
	}, nil
}

// AddProgressCallback adds a progress callback function
func (o *Orchestrator) AddProgressCallback(cb ProgressCallback) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.callbacks = append(o.callbacks, cb)
}

// Run normalizes every record set, reconciles the suppliers and, when
// employee records are present, allocates the company trips. Normalization
// defects of all record sets are reported together.
func (o *Orchestrator) Run(ctx context.Context, req *Request) (*models.ReconciliationResult, error) {
	if req == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "request", nil, nil)
	}
	o.start()

	o.step("normalizing", 0)
	company, suppliers, employees, err := o.normalize(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, errors.CodeUnexpectedError, "run cancelled")
	}

	o.step("reconciling", 1)
	result, err := o.service.Reconcile(company, suppliers)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, errors.CodeUnexpectedError, "run cancelled")
	}

	o.step("allocating", 2)
	if employees != nil {
		allocation, err := o.service.Allocate(company, employees)
		if err != nil {
			return nil, err
		}
		result.Allocation = allocation
	}

	o.step("completed", orchestratorSteps)
	o.logger.WithFields(logger.Fields{
		"run_id":    result.RunID,
		"suppliers": len(result.Suppliers),
		"allocated": result.Allocation != nil,
	}).Info("run completed")
	return result, nil
}

func (o *Orchestrator) normalize(req *Request) ([]models.Trip, map[string][]models.Trip, *models.EmployeeIndex, error) {
	var errs error

	company, err := o.service.normalizer.NormalizeTrips(req.Company, models.ShapeCompany)
	errs = multierr.Append(errs, err)

	suppliers := make(map[string][]models.Trip, len(req.Suppliers))
	for _, key := range models.SortedKeys(req.Suppliers) {
		profile, ok := o.service.config.Profile(key)
		if !ok {
			errs = multierr.Append(errs, errors.ValidationError(errors.CodeUnknownSupplier, "supplier", key, nil))
			continue
		}
		trips, err := o.service.normalizer.NormalizeTrips(req.Suppliers[key], profile.Shape)
		if err != nil {
			errs = multierr.Append(errs, errors.WrapIfNeeded(err, errors.CategoryValidation, errors.CodeMissingRecords, "normalize supplier").
				WithContext("supplier", key))
			continue
		}
		suppliers[key] = trips
	}

	var employees *models.EmployeeIndex
	if req.Employees != nil {
		employees, err = o.service.normalizer.NormalizeEmployees(req.Employees)
		errs = multierr.Append(errs, err)
	}

	if errs != nil {
		return nil, nil, nil, errs
	}
	return company, suppliers, employees, nil
}

func (o *Orchestrator) start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress = Progress{TotalSteps: orchestratorSteps, StartTime: time.Now()}
}

func (o *Orchestrator) step(name string, completed int) {
	o.mu.Lock()
	o.progress.CurrentStep = name
	o.progress.CompletedSteps = completed
	o.progress.ElapsedTime = time.Since(o.progress.StartTime)
	o.progress.PercentComplete = float64(completed) / float64(o.progress.TotalSteps) * 100
	snapshot := o.progress
	callbacks := append([]ProgressCallback(nil), o.callbacks...)
	o.mu.Unlock()

	o.logger.WithFields(logger.Fields{"step": name, "percent": snapshot.PercentComplete}).Debug("progress")
	for _, cb := range callbacks {
		cb(snapshot)
	}
}
