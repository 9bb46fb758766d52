package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/YuminosukeSato/nycprice/config"
	"github.com/YuminosukeSato/nycprice/dataset"
	"github.com/YuminosukeSato/nycprice/dataset/datasettest"
	"github.com/YuminosukeSato/nycprice/etl/cleaning"
	"github.com/YuminosukeSato/nycprice/etl/download"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
	"github.com/YuminosukeSato/nycprice/tracking"
)

func TestParseSteps(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    []string
		wantErr error
	}{
		{"all", "all", DefaultSteps, nil},
		{"single", "download", []string{StepDownload}, nil},
		{"reordered", "data_split, download", []string{StepDownload, StepDataSplit}, nil},
		{"duplicates", "data_check,data_check", []string{StepDataCheck}, nil},
		{"test step is opt-in", "train_random_forest,test_regression_model", []string{StepTrain, StepTest}, nil},
		{"unknown", "download,deploy", nil, errors.ErrUnknownStep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSteps(tt.value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseSteps(" , ")
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.NotContains(t, DefaultSteps, StepTest)
}

type fixture struct {
	cfg    *config.Config
	client *tracking.Client
	runner *Runner
	spans  *tracetest.SpanRecorder
}

func newFixture(t *testing.T, rows int) *fixture {
	t.Helper()
	dir := t.TempDir()

	sample := filepath.Join(dir, "sample1.csv")
	require.NoError(t, datasettest.Synthetic(rows, 21).WriteCSVFile(sample))

	cfg := config.Default()
	cfg.ETL.Sample = sample
	cfg.DataCheck.MinRows, cfg.DataCheck.MaxRows = 10, 100000
	cfg.Modeling.StratifyBy = dataset.ColRoomType
	cfg.Modeling.RandomForest.NEstimators = 10
	cfg.Modeling.RandomForest.MaxDepth = 6
	cfg.Modeling.RandomForest.NJobs = 1
	cfg.Telemetry.MetricsFile = filepath.Join(dir, "nycprice.prom")
	cfg.Tracking.Dir = filepath.Join(dir, "tracking")

	client, err := tracking.Open(context.Background(), cfg.Tracking)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	r, err := New(cfg, client, WithWorkDir(t.TempDir()), WithTracerProvider(tp))
	require.NoError(t, err)
	return &fixture{cfg: cfg, client: client, runner: r, spans: spans}
}

func (f *fixture) versions(t *testing.T, name string) []tracking.ArtifactVersion {
	t.Helper()
	vs, err := f.client.Artifacts(context.Background(), name)
	require.NoError(t, err)
	return vs
}

func TestRunDefaultSteps(t *testing.T) {
	f := newFixture(t, 300)
	ctx := context.Background()

	require.NoError(t, f.runner.Run(ctx))

	for _, name := range []string{
		download.ArtifactName, cleaning.ArtifactName, TrainValArtifact, TestArtifact,
		f.cfg.Modeling.ExportArtifact, ImportanceArtifact,
	} {
		vs := f.versions(t, name)
		require.Len(t, vs, 1, name)
		assert.True(t, vs[0].HasAlias(tracking.LatestAlias), name)
	}

	split := f.versions(t, TrainValArtifact)[0]
	test := f.versions(t, TestArtifact)[0]
	assert.Equal(t, SplitArtifactType, split.Type)
	assert.EqualValues(t, 240, split.Metadata["rows"])
	assert.EqualValues(t, 60, test.Metadata["rows"])

	export := f.versions(t, f.cfg.Modeling.ExportArtifact)[0]
	var paths []string
	for _, file := range export.Files {
		paths = append(paths, file.Path)
	}
	assert.ElementsMatch(t, []string{"MLmodel.json", "input_example.csv", "model.gob"}, paths)

	var names []string
	for _, s := range f.spans.Ended() {
		if strings.HasPrefix(s.Name(), "pipeline.") {
			names = append(names, s.Name())
		}
	}
	assert.Equal(t, []string{
		"pipeline.download", "pipeline.basic_cleaning", "pipeline.data_check",
		"pipeline.data_split", "pipeline.train_random_forest",
	}, names)

	prom, err := os.ReadFile(f.cfg.Telemetry.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `nycprice_step_runs_total{outcome="success",step="train_random_forest"} 1`)
	assert.Contains(t, string(prom), "nycprice_last_success_timestamp_seconds")

	n, err := testutil.GatherAndCount(f.runner.Metrics().Registry(), "nycprice_model_metric")
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}

func TestRerunReusesArtifacts(t *testing.T) {
	f := newFixture(t, 200)
	ctx := context.Background()
	f.cfg.Main.Steps = "download,basic_cleaning"

	require.NoError(t, f.runner.Run(ctx))
	require.NoError(t, f.runner.Run(ctx))

	assert.Len(t, f.versions(t, download.ArtifactName), 1)
	assert.Len(t, f.versions(t, cleaning.ArtifactName), 1)
}

func TestRetrainReusesModelExport(t *testing.T) {
	f := newFixture(t, 200)
	ctx := context.Background()
	require.NoError(t, f.runner.Run(ctx))
	require.NoError(t, f.runner.RunStep(ctx, StepTrain))

	exports := f.versions(t, f.cfg.Modeling.ExportArtifact)
	require.Len(t, exports, 1, "an unchanged model must not add a version")
	assert.Contains(t, exports[0].Aliases, tracking.LatestAlias)
}

func TestTestRegressionModel(t *testing.T) {
	f := newFixture(t, 300)
	ctx := context.Background()
	require.NoError(t, f.runner.Run(ctx))

	err := f.runner.RunStep(ctx, StepTest)
	var notFound *errors.ArtifactNotFoundError
	require.True(t, errors.As(err, &notFound), "no export carries the evaluation alias yet")
	assert.Equal(t, f.cfg.Modeling.EvalAlias, notFound.Version)

	require.NoError(t, f.client.Alias(ctx, f.cfg.Modeling.ExportArtifact+":v0", f.cfg.Modeling.EvalAlias))
	require.NoError(t, f.runner.RunStep(ctx, StepTest))

	path := filepath.Join(t.TempDir(), "eval.prom")
	require.NoError(t, f.runner.Metrics().WriteTextfile(path))
	prom, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, metric := range []string{"mae", "r2", "rmse", "mape", "max_error", "explained_variance"} {
		assert.Contains(t, string(prom), `nycprice_model_metric{metric="`+metric+`",step="test_regression_model"}`)
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t, 150)
	f.cfg.DataCheck.MinRows = 10000
	f.cfg.DataCheck.MaxRows = 20000

	err := f.runner.Run(context.Background())
	var stepErr *errors.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepDataCheck, stepErr.Step)
	var checkErr *errors.CheckFailedError
	assert.True(t, errors.As(err, &checkErr))

	assert.Empty(t, f.versions(t, TrainValArtifact), "data_split must not run")

	prom, err := os.ReadFile(f.cfg.Telemetry.MetricsFile)
	require.NoError(t, err, "textfile is written on failure")
	assert.Contains(t, string(prom), `nycprice_step_runs_total{outcome="failure",step="data_check"} 1`)
	assert.Contains(t, string(prom), "nycprice_last_success_timestamp_seconds 0")
}

func TestRunUnknownStep(t *testing.T) {
	f := newFixture(t, 50)
	f.cfg.Main.Steps = "download,deploy"
	assert.ErrorIs(t, f.runner.Run(context.Background()), errors.ErrUnknownStep)
	assert.ErrorIs(t, f.runner.RunStep(context.Background(), "deploy"), errors.ErrUnknownStep)
}

func TestDownloadRejectsBadSchema(t *testing.T) {
	f := newFixture(t, 50)
	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("a,b\n1,2\n"), 0o644))
	f.cfg.ETL.Sample = bad

	err := f.runner.RunStep(context.Background(), StepDownload)
	var sErr *errors.SchemaError
	assert.True(t, errors.As(err, &sErr))
	assert.Empty(t, f.versions(t, download.ArtifactName))
}
