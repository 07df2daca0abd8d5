package cmd

import (
	"fmt"

	"ride-reconciliation-service/cmd/reconciler/config"
	"ride-reconciliation-service/internal/models"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// allocateCmd splits ride costs across departments without supplier matching
var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Split company ride costs across employee departments",
	Long: `Allocate resolves every ride passenger against the employee directory
and splits the ride price across departments by headcount. Rides with no
resolvable passenger are reported as unassigned.

Examples:
  reconciler allocate --company-file rides.xlsx --employee-file employees.xlsx
  reconciler allocate --company-file rides.csv --employee-file employees.csv \
    --output-format csv --output-file departments.csv`,

	PreRunE: validateAllocateFlags,
	RunE:    runAllocate,
}

func init() {
	rootCmd.AddCommand(allocateCmd)

	allocateCmd.Flags().StringP("company-file", "c", "", "path to the company ledger file (required)")
	allocateCmd.Flags().StringP("employee-file", "e", "", "path to the employee directory (required)")
	addOutputFlags(allocateCmd)

	allocateCmd.MarkFlagRequired("company-file")
	allocateCmd.MarkFlagRequired("employee-file")
}

func validateAllocateFlags(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd); err != nil {
		return err
	}

	companyFile = viper.GetString("company-file")
	employeeFile = viper.GetString("employee-file")

	if companyFile == "" {
		return fmt.Errorf("company-file is required")
	}
	if employeeFile == "" {
		return fmt.Errorf("employee-file is required")
	}

	return validateCommonFlags([]config.InputFile{
		companyInput(companyFile),
		{Path: employeeFile, Shape: models.ShapeEmployee},
	})
}

func runAllocate(cmd *cobra.Command, args []string) error {
	appConfig, log, err := loadAppConfig()
	if err != nil {
		return err
	}

	employees := &config.InputFile{Path: employeeFile, Shape: models.ShapeEmployee}
	return runPipeline(cmd.Context(), appConfig, log, companyInput(companyFile), nil, employees)
}
