package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ride-reconciliation-service/internal/matcher"
	"ride-reconciliation-service/internal/models"
	"ride-reconciliation-service/internal/normalizer"
	"ride-reconciliation-service/internal/parsers"
	"ride-reconciliation-service/internal/reconciler"
	"ride-reconciliation-service/internal/reporter"
	"ride-reconciliation-service/pkg/logger"

	"github.com/spf13/viper"
)

// AppConfig gathers every configurable component of the CLI. A config file
// may carry matching, normalizer, reconciler, report and log sections; flat
// flag keys are applied on top.
type AppConfig struct {
	Matching   *matcher.MatchingConfig `mapstructure:"matching"`
	Normalizer *normalizer.Config      `mapstructure:"normalizer"`
	Reconciler *reconciler.Config      `mapstructure:"reconciler"`
	Report     *reporter.ReportConfig  `mapstructure:"report"`
	Log        *logger.Config          `mapstructure:"log"`
}

// Default returns the configuration used when no file or flag overrides it
func Default() *AppConfig {
	return &AppConfig{
		Matching:   matcher.DefaultMatchingConfig(),
		Normalizer: normalizer.DefaultConfig(),
		Reconciler: reconciler.DefaultConfig(),
		Report:     reporter.DefaultReportConfig(),
		Log:        logger.DefaultConfig(),
	}
}

// Load builds the configuration from v: defaults or the named matching
// preset, then config file sections, then flat keys set by flags or
// RECONCILER_ environment variables
func Load(v *viper.Viper) (*AppConfig, error) {
	cfg := Default()
	if v == nil {
		return cfg, nil
	}

	preset := v.GetString("preset")
	if preset == "" {
		preset = v.GetString("matching.preset")
	}
	matching, err := matcher.PresetConfig(preset)
	if err != nil {
		return nil, err
	}
	cfg.Matching = matching

	// List valued settings replace the defaults instead of merging with them
	if v.IsSet("matching.fuzzy_suppliers") {
		cfg.Matching.FuzzySuppliers = nil
	}
	if v.IsSet("matching.summary_tokens") {
		cfg.Matching.SummaryTokens = nil
	}
	if v.IsSet("reconciler.suppliers") {
		cfg.Reconciler.Suppliers = nil
	}
	for _, key := range []string{"date_layouts", "time_layouts", "summary_tokens", "description_markers", "currency_symbols"} {
		if v.IsSet("normalizer." + key) {
			resetNormalizerList(cfg.Normalizer, key)
		}
	}

	sections := []struct {
		key    string
		target interface{}
	}{
		{"matching", cfg.Matching},
		{"normalizer", cfg.Normalizer},
		{"reconciler", cfg.Reconciler},
		{"report", cfg.Report},
		{"log", cfg.Log},
	}
	for _, s := range sections {
		if !v.IsSet(s.key) {
			continue
		}
		if err := v.UnmarshalKey(s.key, s.target); err != nil {
			return nil, fmt.Errorf("invalid %s section: %w", s.key, err)
		}
	}

	if d := v.GetString("report.csv_delimiter"); d != "" {
		cfg.Report.CSVDelimiter = []rune(d)[0]
	}

	applyOverrides(v, cfg)
	return cfg, nil
}

func resetNormalizerList(c *normalizer.Config, key string) {
	switch key {
	case "date_layouts":
		c.DateLayouts = nil
	case "time_layouts":
		c.TimeLayouts = nil
	case "summary_tokens":
		c.SummaryTokens = nil
	case "description_markers":
		c.DescriptionMarkers = nil
	case "currency_symbols":
		c.CurrencySymbols = nil
	}
}

func applyOverrides(v *viper.Viper, cfg *AppConfig) {
	if v.IsSet("strategy") {
		cfg.Reconciler.Strategy = models.Strategy(v.GetString("strategy"))
	}
	if v.IsSet("output-format") {
		cfg.Report = CreateReportConfig(v.GetString("output-format"), cfg.Report)
	}
	if v.IsSet("include-matches") {
		cfg.Report.IncludeMatches = v.GetBool("include-matches")
	}
	if v.IsSet("fuzzy-threshold") {
		cfg.Matching.FuzzyThreshold = v.GetFloat64("fuzzy-threshold")
	}
	if v.IsSet("price-tolerance") {
		cfg.Matching.PriceTolerance = v.GetFloat64("price-tolerance")
	}
	if v.IsSet("sequential") && v.GetBool("sequential") {
		cfg.Matching.ParallelSuppliers = false
	}
	if v.IsSet("log-level") {
		cfg.Log.Level = logger.Level(v.GetString("log-level"))
	}
	if v.IsSet("log-format") {
		cfg.Log.Format = logger.Format(v.GetString("log-format"))
	}
	if v.GetBool("verbose") {
		cfg.Log.Level = logger.DebugLevel
	}
}

// CreateReportConfig returns base adjusted for the requested output format.
// A nil base starts from the defaults.
func CreateReportConfig(format string, base *reporter.ReportConfig) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	if base != nil {
		copied := *base
		config = &copied
	}

	config.Format = reporter.OutputFormat(format)
	switch config.Format {
	case reporter.FormatJSON:
		// Keep JSON output focused on what needs attention
		config.IncludeMatches = false
	case reporter.FormatCSV:
		config.IncludeMatches = true
		config.CSVHeaders = true
		if config.CSVDelimiter == 0 {
			config.CSVDelimiter = ','
		}
	}

	return config
}

// Validate validates every section of the configuration
func (c *AppConfig) Validate() error {
	if err := c.Matching.Validate(); err != nil {
		return fmt.Errorf("invalid matching config: %w", err)
	}
	if err := c.Normalizer.Validate(); err != nil {
		return fmt.Errorf("invalid normalizer config: %w", err)
	}
	if err := c.Reconciler.Validate(); err != nil {
		return fmt.Errorf("invalid reconciler config: %w", err)
	}
	if err := c.Report.Validate(); err != nil {
		return fmt.Errorf("invalid report config: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("invalid log config: %w", err)
	}
	return nil
}

// InputFile is one file to ingest together with the shape it holds
type InputFile struct {
	Path  string
	Shape models.Shape
	// Key is the supplier key for supplier shapes
	Key string
}

// SheetConfig returns the ingestion layout for the file's shape
func (f InputFile) SheetConfig() *parsers.SheetConfig {
	return parsers.SheetConfigFor(f.Shape)
}

// Label names the input for messages
func (f InputFile) Label() string {
	if f.Key != "" {
		return fmt.Sprintf("%s file %s", f.Key, filepath.Base(f.Path))
	}
	return fmt.Sprintf("%s file %s", f.Shape, filepath.Base(f.Path))
}

// SupplierInputs builds the supplier inputs for the given key to path map,
// skipping empty paths. Keys must name a configured supplier profile.
func SupplierInputs(rc *reconciler.Config, paths map[string]string) ([]InputFile, error) {
	inputs := make([]InputFile, 0, len(paths))
	for _, key := range models.SortedKeys(paths) {
		path := strings.TrimSpace(paths[key])
		if path == "" {
			continue
		}
		profile, ok := rc.Profile(key)
		if !ok {
			return nil, fmt.Errorf("no supplier profile configured for %s", key)
		}
		inputs = append(inputs, InputFile{Path: path, Shape: profile.Shape, Key: key})
	}
	return inputs, nil
}

// ValidateInputFiles checks that every input exists and is a readable file
func ValidateInputFiles(inputs []InputFile) error {
	for _, in := range inputs {
		if strings.TrimSpace(in.Path) == "" {
			name := in.Key
			if name == "" {
				name = string(in.Shape)
			}
			return fmt.Errorf("%s file path cannot be empty", name)
		}
		info, err := os.Stat(in.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("%s does not exist: %s", in.Label(), in.Path)
		}
		if err != nil {
			return fmt.Errorf("error accessing %s: %w", in.Label(), err)
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory, expected a file: %s", in.Label(), in.Path)
		}
		file, err := os.Open(in.Path)
		if err != nil {
			return fmt.Errorf("%s is not readable: %w", in.Label(), err)
		}
		file.Close()
		if _, err := parsers.DetectFormat(in.Path); err != nil {
			return fmt.Errorf("%s: %w", in.Label(), err)
		}
	}
	return nil
}
