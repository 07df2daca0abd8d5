package cmd

import (
	"fmt"

	"ride-reconciliation-service/cmd/reconciler/config"
	"ride-reconciliation-service/internal/models"
	"ride-reconciliation-service/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const gettSupplierKey = "supplier2"

var gettFile string

// matchGettCmd runs the date-range cascade against a GETT invoice
var matchGettCmd = &cobra.Command{
	Use:   "match-gett",
	Short: "Match company rides against a GETT invoice with the cascade",
	Long: `Match-gett restricts both files to their shared date range and pairs
rides greedily by strict, relaxed and last-resort criteria. Only company
rides booked with GETT take part.

Examples:
  reconciler match-gett --company-file rides.xlsx --gett-file gett.xlsx
  reconciler match-gett --company-file rides.xlsx --gett-file gett.xlsx --include-matches --output-format csv`,

	PreRunE: validateMatchGettFlags,
	RunE:    runMatchGett,
}

func init() {
	rootCmd.AddCommand(matchGettCmd)

	matchGettCmd.Flags().StringP("company-file", "c", "", "path to the company ledger file (required)")
	matchGettCmd.Flags().StringP("gett-file", "g", "", "path to the GETT invoice file (required)")
	matchGettCmd.Flags().String("preset", "", "matching preset: default, strict, relaxed")
	addOutputFlags(matchGettCmd)

	matchGettCmd.MarkFlagRequired("company-file")
	matchGettCmd.MarkFlagRequired("gett-file")
}

func validateMatchGettFlags(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd); err != nil {
		return err
	}

	companyFile = viper.GetString("company-file")
	gettFile = viper.GetString("gett-file")

	if companyFile == "" {
		return fmt.Errorf("company-file is required")
	}
	if gettFile == "" {
		return fmt.Errorf("gett-file is required")
	}

	return validateCommonFlags([]config.InputFile{
		companyInput(companyFile),
		{Path: gettFile, Shape: models.ShapeSupplier2, Key: gettSupplierKey},
	})
}

func runMatchGett(cmd *cobra.Command, args []string) error {
	appConfig, log, err := loadAppConfig()
	if err != nil {
		return err
	}
	appConfig.Reconciler.Strategy = models.StrategyCascade

	suppliers, err := config.SupplierInputs(appConfig.Reconciler, map[string]string{gettSupplierKey: gettFile})
	if err != nil {
		return errors.ConfigurationError(errors.CodeUnknownSupplier, "suppliers", gettSupplierKey, err)
	}

	return runPipeline(cmd.Context(), appConfig, log, companyInput(companyFile), suppliers, nil)
}
