// Package config loads the pipeline configuration from YAML, .env files,
// environment variables and dotted command-line overrides, in that order.
package config

import (
	"bytes"
	"net/url"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/nycprice/dataset"
	"github.com/YuminosukeSato/nycprice/etl/cleaning"
	"github.com/YuminosukeSato/nycprice/etl/datacheck"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
	"github.com/YuminosukeSato/nycprice/pkg/log"
	"github.com/YuminosukeSato/nycprice/sklearn/ensemble"
	"github.com/YuminosukeSato/nycprice/telemetry"
	"github.com/YuminosukeSato/nycprice/tracking"
)

// MainConfig names the project and selects the steps to run.
type MainConfig struct {
	ProjectName    string `yaml:"project_name"`
	ExperimentName string `yaml:"experiment_name"`
	// Steps is "all" or a comma separated list of step names.
	Steps                string `yaml:"steps"`
	ComponentsRepository string `yaml:"components_repository"`
}

// ETLConfig drives download and basic_cleaning.
type ETLConfig struct {
	// Sample is a URL or local path of the raw CSV.
	Sample        string         `yaml:"sample"`
	MinPrice      float64        `yaml:"min_price"`
	MaxPrice      float64        `yaml:"max_price"`
	Bounds        dataset.Bounds `yaml:"bounds"`
	SkipGeoFilter bool           `yaml:"skip_geo_filter"`
}

// CleaningOptions converts the section for the cleaning step.
func (c ETLConfig) CleaningOptions() cleaning.Options {
	return cleaning.Options{MinPrice: c.MinPrice, MaxPrice: c.MaxPrice, Bounds: c.Bounds, SkipGeoFilter: c.SkipGeoFilter}
}

// DataCheckConfig parametrises data_check.
type DataCheckConfig struct {
	KLThreshold      float64 `yaml:"kl_threshold"`
	MinRows          int     `yaml:"min_rows"`
	MaxRows          int     `yaml:"max_rows"`
	OutlierTolerance float64 `yaml:"outlier_tolerance"`
}

// ModelingConfig drives data_split, training and evaluation.
type ModelingConfig struct {
	TestSize         float64 `yaml:"test_size"`
	ValSize          float64 `yaml:"val_size"`
	RandomSeed       int64   `yaml:"random_seed"`
	StratifyBy       string  `yaml:"stratify_by"`
	MaxTfidfFeatures int     `yaml:"max_tfidf_features"`
	// CVFolds enables k-fold cross-validation during training when >= 2.
	CVFolds int `yaml:"cv_folds"`
	// ExportArtifact is the name of the logged model export.
	ExportArtifact string `yaml:"export_artifact"`
	// EvalAlias selects the model export evaluated by test_regression_model.
	EvalAlias    string          `yaml:"eval_alias"`
	RandomForest ensemble.Params `yaml:"random_forest"`
}

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	// MetricsFile receives the Prometheus textfile at the end of a run.
	MetricsFile string                  `yaml:"metrics_file"`
	OTel        telemetry.TracingConfig `yaml:"otel"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config is the complete pipeline configuration.
type Config struct {
	Main      MainConfig      `yaml:"main"`
	ETL       ETLConfig       `yaml:"etl"`
	DataCheck DataCheckConfig `yaml:"data_check"`
	Modeling  ModelingConfig  `yaml:"modeling"`
	Tracking  tracking.Config `yaml:"tracking"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// Default returns the configuration used when a key is absent from every source.
func Default() *Config {
	dc := datacheck.DefaultOptions()
	rf := ensemble.DefaultParams()
	rf.NEstimators = 100
	rf.MaxDepth = 15
	rf.MinSamplesSplit = 4
	rf.MinSamplesLeaf = 3
	rf.MaxFeatures = 0.5
	rf.RandomState = 42
	rf.NJobs = -1
	return &Config{
		Main: MainConfig{
			ProjectName:    "nyc_airbnb",
			ExperimentName: "development",
			Steps:          "all",
		},
		ETL: ETLConfig{
			Sample:   "sample1.csv",
			MinPrice: 10,
			MaxPrice: 350,
			Bounds:   dataset.NYCBounds,
		},
		DataCheck: DataCheckConfig{
			KLThreshold:      dc.KLThreshold,
			MinRows:          dc.MinRows,
			MaxRows:          dc.MaxRows,
			OutlierTolerance: dc.OutlierTolerance,
		},
		Modeling: ModelingConfig{
			TestSize:         0.2,
			ValSize:          0.2,
			RandomSeed:       42,
			StratifyBy:       dataset.ColNeighbourhoodGroup,
			MaxTfidfFeatures: 5,
			ExportArtifact:   "random_forest_export",
			EvalAlias:        "prod",
			RandomForest:     rf,
		},
		Tracking: tracking.Config{
			Store:    tracking.StoreLocal,
			Registry: tracking.RegistryFile,
			Dir:      ".nycprice",
		},
		Telemetry: TelemetryConfig{OTel: telemetry.DefaultTracingConfig()},
		Log:       LogConfig{Level: "info"},
	}
}

// DataCheckOptions converts the configuration for the data_check step.
func (c *Config) DataCheckOptions() datacheck.Options {
	return datacheck.Options{
		KLThreshold:      c.DataCheck.KLThreshold,
		MinRows:          c.DataCheck.MinRows,
		MaxRows:          c.DataCheck.MaxRows,
		MinPrice:         c.ETL.MinPrice,
		MaxPrice:         c.ETL.MaxPrice,
		Bounds:           c.ETL.Bounds,
		OutlierTolerance: c.DataCheck.OutlierTolerance,
	}
}

// Options tell Load where to read from.
type Options struct {
	// Path is the YAML file; empty uses defaults only.
	Path string
	// EnvFiles are loaded with godotenv; missing files are skipped.
	EnvFiles []string
	// Overrides are "dotted.key=value" pairs applied last.
	Overrides []string
}

// Load builds the configuration and validates it.
func Load(opts Options) (*Config, error) {
	root := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	if opts.Path != "" {
		b, err := os.ReadFile(opts.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", opts.Path)
		}
		if len(bytes.TrimSpace(b)) > 0 {
			var doc yaml.Node
			if err := yaml.Unmarshal(b, &doc); err != nil {
				return nil, errors.Wrapf(err, "parse config %s", opts.Path)
			}
			root = &doc
		}
	}

	for _, f := range opts.EnvFiles {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, errors.Wrapf(err, "load env file %s", f)
		}
	}
	for _, o := range envOverrides() {
		if err := setPath(root, o.path, &yaml.Node{Kind: yaml.ScalarNode, Value: o.value}); err != nil {
			return nil, err
		}
	}
	for _, o := range opts.Overrides {
		if err := ApplyOverride(root, o); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	if err := root.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateURL(param, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.NewValidationError(param, "must be an absolute URL", raw)
	}
	return nil
}

// Validate rejects inconsistent values.
func (c *Config) Validate() error {
	switch {
	case c.Main.ProjectName == "":
		return errors.NewValidationError("main.project_name", "must not be empty", c.Main.ProjectName)
	case c.Main.Steps == "":
		return errors.NewValidationError("main.steps", "must be all or a comma separated list", c.Main.Steps)
	case c.ETL.Sample == "":
		return errors.NewValidationError("etl.sample", "must not be empty", c.ETL.Sample)
	}
	if err := validateURL("main.components_repository", c.Main.ComponentsRepository); err != nil {
		return err
	}
	if err := validateURL("tracking.dashboard_url", c.Tracking.DashboardURL); err != nil {
		return err
	}
	if err := c.ETL.CleaningOptions().Validate(); err != nil {
		return err
	}

	switch {
	case c.DataCheck.KLThreshold <= 0:
		return errors.NewValidationError("data_check.kl_threshold", "must be > 0", c.DataCheck.KLThreshold)
	case c.DataCheck.MinRows < 0 || c.DataCheck.MinRows >= c.DataCheck.MaxRows:
		return errors.NewValidationError("data_check.min_rows", "must be >= 0 and below max_rows", c.DataCheck.MinRows)
	case c.DataCheck.OutlierTolerance < 0 || c.DataCheck.OutlierTolerance > 1:
		return errors.NewValidationError("data_check.outlier_tolerance", "must be in [0, 1]", c.DataCheck.OutlierTolerance)
	case c.Modeling.TestSize <= 0:
		return errors.NewValidationError("modeling.test_size", "must be > 0", c.Modeling.TestSize)
	case c.Modeling.ValSize <= 0:
		return errors.NewValidationError("modeling.val_size", "must be > 0", c.Modeling.ValSize)
	case c.Modeling.MaxTfidfFeatures < 1:
		return errors.NewValidationError("modeling.max_tfidf_features", "must be >= 1", c.Modeling.MaxTfidfFeatures)
	case c.Modeling.CVFolds == 1 || c.Modeling.CVFolds < 0:
		return errors.NewValidationError("modeling.cv_folds", "must be 0 or >= 2", c.Modeling.CVFolds)
	case c.Modeling.ExportArtifact == "":
		return errors.NewValidationError("modeling.export_artifact", "must not be empty", c.Modeling.ExportArtifact)
	case c.Modeling.EvalAlias == "":
		return errors.NewValidationError("modeling.eval_alias", "must not be empty", c.Modeling.EvalAlias)
	}
	if err := c.Modeling.RandomForest.Validate(); err != nil {
		return errors.Wrap(err, "modeling.random_forest")
	}
	if err := c.Tracking.Validate(); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.NewValidationError("log.level", "must be debug, info, warn or error", c.Log.Level)
	}
	return nil
}
