package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ride-reconciliation-service/internal/models"
	"ride-reconciliation-service/pkg/errors"
	"ride-reconciliation-service/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with validation, logging and
// fallback output
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	log = logger.OrGlobal(log)

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"report_config",
			config,
			err,
		).WithSuggestion("Check the report configuration values")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely validates inputs, renders the report and falls back
// to console output or a backup file when the primary attempt fails
func (srg *SafeReportGenerator) GenerateReportSafely(result *models.ReconciliationResult, writer io.Writer) error {
	if err := srg.validateInputs(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	log := srg.logger.WithFields(logger.Fields{
		"run_id":     result.RunID,
		"format":     srg.config.Format,
		"output":     getWriterDescription(writer),
		"suppliers":  len(result.Suppliers),
		"allocation": result.Allocation != nil,
	})
	log.Info("Starting report generation")

	if err := srg.generateWithFallback(result, writer); err != nil {
		log.WithError(err).Error("Report generation failed")
		return err
	}

	log.Info("Report generation completed successfully")
	return nil
}

// validateInputs rejects results the renderers cannot walk. A supplier key
// with a nil result or nil buckets points at a broken reconcile call.
func (srg *SafeReportGenerator) validateInputs(result *models.ReconciliationResult, writer io.Writer) error {
	if result == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"result",
			nil,
			nil,
		).WithSuggestion("Provide a valid reconciliation result")
	}

	if writer == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"writer",
			nil,
			nil,
		).WithSuggestion("Provide a valid output writer")
	}

	for _, key := range result.SupplierKeys() {
		sr := result.Suppliers[key]
		if sr == nil || sr.Matches == nil || sr.MissingInSupplier == nil || sr.ExtraInSupplier == nil {
			return errors.ValidationError(
				errors.CodeMissingRecords,
				"supplier_result",
				key,
				nil,
			).WithContext("supplier", key).
				WithSuggestion("Build supplier results with models.NewSupplierResult")
		}
	}

	if len(result.Suppliers) == 0 && result.Allocation == nil {
		srg.logger.WithField("run_id", result.RunID).Warn("Result carries neither supplier results nor an allocation")
	}

	return nil
}

func (srg *SafeReportGenerator) generateWithFallback(result *models.ReconciliationResult, writer io.Writer) error {
	err := srg.GenerateReport(result, writer)
	if err == nil {
		return nil
	}

	srg.logger.WithError(err).Warn("Primary report generation failed, attempting fallback")

	if srg.shouldAttemptOutputFallback(err, writer) {
		return srg.generateWithOutputFallback(result, writer, err)
	}

	if srg.config.Format != FormatConsole {
		return srg.generateWithFormatFallback(result, writer, err)
	}

	return srg.wrapGenerationError(err)
}

func (srg *SafeReportGenerator) generateWithFormatFallback(result *models.ReconciliationResult, writer io.Writer, originalErr error) error {
	fallbackConfig := *srg.config
	fallbackConfig.Format = FormatConsole

	srg.logger.WithFields(logger.Fields{
		"requested_format": srg.config.Format,
		"fallback_format":  FormatConsole,
	}).Info("Attempting format fallback")

	fallbackGenerator, err := NewReportGenerator(&fallbackConfig)
	if err != nil {
		return srg.wrapGenerationError(originalErr)
	}

	fmt.Fprintf(writer, "NOTE: Report generated in fallback format due to error with requested %s format\n", srg.config.Format)
	fmt.Fprintf(writer, "Run: %s\n", result.RunID)
	fmt.Fprintf(writer, "Original error: %v\n\n", originalErr)

	if err := fallbackGenerator.GenerateReport(result, writer); err != nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", originalErr, err),
		)
	}

	srg.logger.Info("Report generated successfully using format fallback")
	return nil
}

func (srg *SafeReportGenerator) shouldAttemptOutputFallback(err error, writer io.Writer) bool {
	if file, ok := writer.(*os.File); ok && file.Name() != "" && file != os.Stdout && file != os.Stderr {
		return isFileError(err)
	}
	return false
}

func (srg *SafeReportGenerator) generateWithOutputFallback(result *models.ReconciliationResult, writer io.Writer, originalErr error) error {
	file, ok := writer.(*os.File)
	if !ok {
		return srg.wrapGenerationError(originalErr)
	}

	originalPath := file.Name()
	backupPath := backupPathFor(originalPath)

	srg.logger.WithFields(logger.Fields{
		"original_file": originalPath,
		"backup_file":   backupPath,
	}).Info("Attempting output fallback")

	backupFile, err := os.Create(backupPath)
	if err != nil {
		return srg.wrapGenerationError(originalErr)
	}
	defer backupFile.Close()

	if err := srg.GenerateReport(result, backupFile); err != nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_output_fallback",
			fmt.Errorf("both primary and backup output failed: primary=%v, backup=%v", originalErr, err),
		)
	}

	srg.logger.WithField("backup_file", backupPath).Warn("Report saved to backup location")
	return nil
}

func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return errors.InternalError(
		errors.CodeUnexpectedError,
		"report_generation",
		err,
	).WithSuggestion("Check the output destination and report format settings")
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case nil:
		return "none"
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}

func backupPathFor(originalPath string) string {
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	return filepath.Join(dir, fmt.Sprintf("%s_backup%s", name, ext))
}

func isFileError(err error) bool {
	if err == nil {
		return false
	}
	if os.IsPermission(err) || os.IsNotExist(err) || os.IsExist(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"no space left", "disk full", "device full", "file already closed", "bad file descriptor"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
