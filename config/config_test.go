package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
	"github.com/YuminosukeSato/nycprice/tracking"
)

const repoConfig = "../configs/config.yaml"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadRepoConfig(t *testing.T) {
	cfg, err := Load(Options{Path: repoConfig})
	require.NoError(t, err)

	assert.Equal(t, "nyc_airbnb", cfg.Main.ProjectName)
	assert.Equal(t, "all", cfg.Main.Steps)
	assert.Equal(t, 10.0, cfg.ETL.MinPrice)
	assert.Equal(t, -74.25, cfg.ETL.Bounds.MinLongitude)
	assert.Equal(t, 100, cfg.Modeling.RandomForest.NEstimators)
	assert.Equal(t, 0.5, cfg.Modeling.RandomForest.MaxFeatures)
	assert.Equal(t, -1, cfg.Modeling.RandomForest.NJobs)
	assert.Equal(t, "5432", cfg.Tracking.Postgres.Port)
	assert.Equal(t, tracking.RegistryFile, cfg.Tracking.Registry)
}

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(Options{
		Path: repoConfig,
		Overrides: []string{
			"etl.min_price=20",
			"main.steps=download,basic_cleaning",
			"modeling.random_forest.max_features=sqrt",
			"modeling.random_forest.n_estimators=7",
			"tracking.dashboard_url=",
			"log.level=debug",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 20.0, cfg.ETL.MinPrice)
	assert.Equal(t, "download,basic_cleaning", cfg.Main.Steps)
	assert.Equal(t, "sqrt", cfg.Modeling.RandomForest.MaxFeatures)
	assert.Equal(t, 7, cfg.Modeling.RandomForest.NEstimators)
	assert.Empty(t, cfg.Tracking.DashboardURL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnv(t *testing.T) {
	env := writeFile(t, ".env", "NYC_PG_PASSWORD=s3cret\nNYC_MINIO_USE_SSL=true\n")
	t.Setenv("NYC_PG_PASSWORD", "")
	t.Setenv("NYC_MINIO_USE_SSL", "")
	os.Unsetenv("NYC_PG_PASSWORD")
	os.Unsetenv("NYC_MINIO_USE_SSL")
	t.Setenv("NYC_LOG_LEVEL", "warn")

	cfg, err := Load(Options{Path: repoConfig, EnvFiles: []string{env, "missing.env"}})
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Tracking.Postgres.Password)
	assert.True(t, cfg.Tracking.Minio.UseSSL)
	assert.Equal(t, "warn", cfg.Log.Level)

	// Command-line overrides beat the environment.
	cfg, err = Load(Options{Path: repoConfig, Overrides: []string{"log.level=error"}})
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{"relative repository url", func(c *Config) { c.Main.ComponentsRepository = "udacity/repo" }, "main.components_repository"},
		{"relative dashboard url", func(c *Config) { c.Tracking.DashboardURL = "/wandb" }, "tracking.dashboard_url"},
		{"price range", func(c *Config) { c.ETL.MinPrice = 400 }, "etl.min_price"},
		{"kl threshold", func(c *Config) { c.DataCheck.KLThreshold = 0 }, "data_check.kl_threshold"},
		{"row bounds", func(c *Config) { c.DataCheck.MinRows = c.DataCheck.MaxRows }, "data_check.min_rows"},
		{"test size", func(c *Config) { c.Modeling.TestSize = 0 }, "modeling.test_size"},
		{"cv folds", func(c *Config) { c.Modeling.CVFolds = 1 }, "modeling.cv_folds"},
		{"tfidf", func(c *Config) { c.Modeling.MaxTfidfFeatures = 0 }, "modeling.max_tfidf_features"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"tracking store", func(c *Config) { c.Tracking.Store = "ftp" }, "tracking.store"},
		{"forest", func(c *Config) { c.Modeling.RandomForest.NEstimators = 0 }, "n_estimators"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var vErr *errors.ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tt.param, vErr.ParamName)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestApplyOverride(t *testing.T) {
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("a:\n  b: 1\n"), &doc))

	require.NoError(t, ApplyOverride(&doc, "a.b=2"))
	require.NoError(t, ApplyOverride(&doc, "a.c.d=[x, y]"))
	assert.Error(t, ApplyOverride(&doc, "no-equals"))
	assert.Error(t, ApplyOverride(&doc, "a.b.e=1"))
	assert.Error(t, ApplyOverride(&doc, "a..b=1"))

	var out struct {
		A struct {
			B int `yaml:"b"`
			C struct {
				D []string `yaml:"d"`
			} `yaml:"c"`
		} `yaml:"a"`
	}
	require.NoError(t, doc.Decode(&out))
	assert.Equal(t, 2, out.A.B)
	assert.Equal(t, []string{"x", "y"}, out.A.C.D)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(Options{Path: "does-not-exist.yaml"})
	assert.Error(t, err)

	bad := writeFile(t, "bad.yaml", "main: [unclosed\n")
	_, err = Load(Options{Path: bad})
	assert.Error(t, err)

	_, err = Load(Options{Path: repoConfig, Overrides: []string{"etl.min_price=abc"}})
	assert.Error(t, err)
}
