package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ride-reconciliation-service/cmd/reconciler/config"
	"ride-reconciliation-service/internal/matcher"
	"ride-reconciliation-service/internal/models"
	"ride-reconciliation-service/internal/parsers"
	"ride-reconciliation-service/internal/reconciler"
	"ride-reconciliation-service/internal/reporter"
	"ride-reconciliation-service/pkg/errors"
	"ride-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Flags for the reconcile command
var (
	companyFile   string
	supplierFiles = map[string]*string{
		"supplier1": new(string),
		"supplier2": new(string),
		"supplier3": new(string),
	}
	employeeFile string
	outputFormat string
	outputFile   string
	showProgress bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile the company ride ledger with supplier invoices",
	Long: `Reconcile compares the company ride-booking ledger with one or more
supplier invoices to find matched rides, price differences, rides missing on
either side and supplier rides that cannot be placed.

This command requires:
- A company ledger file (CSV or XLSX)
- At least one supplier invoice file (CSV or XLSX)

Supplier invoices:
- supplier1: Bon Tour, matched by order number
- supplier2: GETT, matched with the date-range cascade
- supplier3: Hori, matched by order number

Examples:
  # One supplier selects its own strategy
  reconciler reconcile --company-file rides.xlsx --supplier1-file bon_tour.xlsx

  # Several suppliers run the full pass
  reconciler reconcile --company-file rides.xlsx \
    --supplier1-file bon_tour.xlsx --supplier2-file gett.xlsx --supplier3-file hori.xlsx

  # Force a strategy and write JSON
  reconciler reconcile --company-file rides.csv --supplier2-file gett.xlsx \
    --strategy full --output-format json --output-file report.json

  # Add the department allocation
  reconciler reconcile --company-file rides.xlsx --supplier1-file bon_tour.xlsx \
    --employee-file employees.xlsx`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Input flags
	reconcileCmd.Flags().StringVarP(&companyFile, "company-file", "c", "", "path to the company ledger file (required)")
	reconcileCmd.Flags().StringVar(supplierFiles["supplier1"], "supplier1-file", "", "path to a Bon Tour invoice file")
	reconcileCmd.Flags().StringVar(supplierFiles["supplier2"], "supplier2-file", "", "path to a GETT invoice file")
	reconcileCmd.Flags().StringVar(supplierFiles["supplier3"], "supplier3-file", "", "path to a Hori invoice file")
	reconcileCmd.Flags().StringVarP(&employeeFile, "employee-file", "e", "", "path to the employee directory (enables allocation)")

	// Matching flags
	reconcileCmd.Flags().String("strategy", string(models.StrategyAuto), "matching strategy: auto, id, full, cascade")
	reconcileCmd.Flags().String("preset", "", "matching preset: default, strict, relaxed")
	reconcileCmd.Flags().Float64("fuzzy-threshold", 70, "minimum fuzzy score for a match (0-100)")
	reconcileCmd.Flags().Float64("price-tolerance", 0.01, "largest price gap not reported as a difference")
	reconcileCmd.Flags().Bool("sequential", false, "match suppliers one after another")

	addOutputFlags(reconcileCmd)

	reconcileCmd.MarkFlagRequired("company-file")
}

// addOutputFlags registers the flags shared by every command that writes a report
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output-format", "f", string(reporter.FormatConsole), "output format: console, json, csv")
	cmd.Flags().StringP("output-file", "o", "", "output file path (default: stdout)")
	cmd.Flags().Bool("include-matches", false, "list matched rides in the report")
	cmd.Flags().Bool("progress", false, "show progress indicators")
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd); err != nil {
		return err
	}

	companyFile = viper.GetString("company-file")
	for key, path := range supplierFiles {
		*path = viper.GetString(key + "-file")
	}
	employeeFile = viper.GetString("employee-file")

	if companyFile == "" {
		return fmt.Errorf("company-file is required")
	}
	if len(supplierPaths()) == 0 {
		return fmt.Errorf("at least one supplier file is required")
	}

	strategy := models.Strategy(viper.GetString("strategy"))
	if strategy == "" {
		strategy = models.StrategyAuto
	}
	if !strategy.IsValid() {
		return fmt.Errorf("invalid strategy '%s'. Valid strategies: auto, id, full, cascade", strategy)
	}

	inputs := []config.InputFile{companyInput(companyFile)}
	paths := supplierPaths()
	for _, key := range models.SortedKeys(paths) {
		inputs = append(inputs, config.InputFile{Path: paths[key], Shape: models.Shape(key), Key: key})
	}
	if employeeFile != "" {
		inputs = append(inputs, config.InputFile{Path: employeeFile, Shape: models.ShapeEmployee})
	}
	return validateCommonFlags(inputs)
}

// validateCommonFlags checks the input files and the output flags
func validateCommonFlags(inputs []config.InputFile) error {
	if err := config.ValidateInputFiles(inputs); err != nil {
		return err
	}

	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	showProgress = viper.GetBool("progress")

	if !reporter.OutputFormat(outputFormat).IsValid() {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func supplierPaths() map[string]string {
	paths := make(map[string]string)
	for key, path := range supplierFiles {
		if *path != "" {
			paths[key] = *path
		}
	}
	return paths
}

func runReconcile(cmd *cobra.Command, args []string) error {
	appConfig, log, err := loadAppConfig()
	if err != nil {
		return err
	}

	suppliers, err := config.SupplierInputs(appConfig.Reconciler, supplierPaths())
	if err != nil {
		return errors.ConfigurationError(errors.CodeUnknownSupplier, "suppliers", supplierPaths(), err)
	}

	var employees *config.InputFile
	if employeeFile != "" {
		employees = &config.InputFile{Path: employeeFile, Shape: models.ShapeEmployee}
	}

	return runPipeline(cmd.Context(), appConfig, log, companyInput(companyFile), suppliers, employees)
}

func companyInput(path string) config.InputFile {
	return config.InputFile{Path: path, Shape: models.ShapeCompany}
}

// runPipeline reads the inputs, runs the orchestrator and writes the report
func runPipeline(
	ctx context.Context,
	appConfig *config.AppConfig,
	log logger.Logger,
	company config.InputFile,
	suppliers []config.InputFile,
	employees *config.InputFile,
) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log.WithFields(logger.Fields{
		"company_file": company.Path,
		"suppliers":    len(suppliers),
		"allocation":   employees != nil,
		"strategy":     appConfig.Reconciler.Strategy,
	}).Info("starting run")

	request, err := readRequest(ctx, log, company, suppliers, employees)
	if err != nil {
		return err
	}

	service, err := reconciler.NewService(appConfig.Reconciler, appConfig.Normalizer, appConfig.Matching, log, eventSinkFor(appConfig.Log))
	if err != nil {
		return err
	}
	orchestrator, err := reconciler.NewOrchestrator(service)
	if err != nil {
		return err
	}
	if showProgress {
		orchestrator.AddProgressCallback(func(p reconciler.Progress) {
			fmt.Fprintf(os.Stderr, "\r[%d/%d] %s (%.1f%% complete)",
				p.CompletedSteps, p.TotalSteps, p.CurrentStep, p.PercentComplete)
		})
	}

	result, err := orchestrator.Run(ctx, request)
	if showProgress {
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err != nil {
		return err
	}

	if err := writeReport(appConfig, log, result); err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		printRunSummary(os.Stderr, result)
	}
	return nil
}

// eventSinkFor returns the matcher event sink for the log settings. Events
// are only logged at debug level, so other levels discard them.
func eventSinkFor(cfg *logger.Config) matcher.EventSink {
	if cfg != nil && cfg.Level == logger.DebugLevel {
		return nil
	}
	return matcher.NopSink{}
}

// readRequest parses every input file. Failures of all files are reported together.
func readRequest(
	ctx context.Context,
	log logger.Logger,
	company config.InputFile,
	suppliers []config.InputFile,
	employees *config.InputFile,
) (*reconciler.Request, error) {
	var errs error
	request := &reconciler.Request{Suppliers: make(map[string][]*models.RawRecord, len(suppliers))}

	records, err := readInput(ctx, log, company)
	errs = multierr.Append(errs, err)
	request.Company = records

	for _, in := range suppliers {
		records, err := readInput(ctx, log, in)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		request.Suppliers[in.Key] = records
	}

	if employees != nil {
		records, err := readInput(ctx, log, *employees)
		errs = multierr.Append(errs, err)
		request.Employees = records
	}

	if errs != nil {
		return nil, errs
	}
	return request, nil
}

func readInput(ctx context.Context, log logger.Logger, in config.InputFile) ([]*models.RawRecord, error) {
	parser, err := parsers.NewParser(in.SheetConfig(), log)
	if err != nil {
		return nil, err
	}

	records, stats, err := parser.ParseFile(ctx, in.Path)
	if err != nil {
		return nil, err
	}
	if stats.HasErrors() {
		log.WithFields(logger.Fields{
			"file":   in.Path,
			"errors": stats.ErrorCount,
		}).Warn("rows with errors were skipped")
	}
	if records == nil {
		records = []*models.RawRecord{}
	}
	return records, nil
}

func writeReport(appConfig *config.AppConfig, log logger.Logger, result *models.ReconciliationResult) error {
	generator, err := reporter.NewSafeReportGenerator(appConfig.Report, log)
	if err != nil {
		return err
	}

	var output io.Writer = os.Stdout
	if outputFile != "" {
		file, err := os.Create(outputFile)
		if err != nil {
			return errors.FileError(errors.CodeFilePermission, outputFile, err)
		}
		defer file.Close()
		output = file
	}

	return generator.GenerateReportSafely(result, output)
}

func printRunSummary(w io.Writer, result *models.ReconciliationResult) {
	fmt.Fprintf(w, "\nRun %s completed.\n", result.RunID)
	fmt.Fprintf(w, "Processed %d company trips.\n", result.CompanyTrips)
	for _, key := range result.SupplierKeys() {
		st := result.Suppliers[key].Statistics
		fmt.Fprintf(w, "  %s: %d matched, %d missing, %d extra, %d ambiguous, %d price differences\n",
			key, st.Matched, st.Missing, st.Extra, st.Ambiguous, st.PriceDifferences)
	}
	if result.Allocation != nil {
		fmt.Fprintf(w, "Allocated rides across %d departments.\n", len(result.Allocation.DepartmentAllocations))
	}
}
