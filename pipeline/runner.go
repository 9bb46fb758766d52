package pipeline

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/YuminosukeSato/nycprice/config"
	"github.com/YuminosukeSato/nycprice/etl/download"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
	"github.com/YuminosukeSato/nycprice/pkg/log"
	"github.com/YuminosukeSato/nycprice/telemetry"
	"github.com/YuminosukeSato/nycprice/tracking"
)

const tracerName = "github.com/YuminosukeSato/nycprice/pipeline"

// Runner executes pipeline steps against a tracking client.
type Runner struct {
	cfg     *config.Config
	client  *tracking.Client
	metrics *telemetry.Metrics
	fetcher *download.Fetcher
	tracer  trace.Tracer
	workDir string
	now     func() time.Time
	logger  log.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics records step metrics into m instead of a private registry.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithFetcher replaces the fetcher used by the download step.
func WithFetcher(f *download.Fetcher) Option {
	return func(r *Runner) { r.fetcher = f }
}

// WithWorkDir sets the parent of the per-step scratch directories.
func WithWorkDir(dir string) Option {
	return func(r *Runner) { r.workDir = dir }
}

// WithTracerProvider sets the provider of step spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Runner) { r.tracer = tp.Tracer(tracerName) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a Runner.
func New(cfg *config.Config, client *tracking.Client, opts ...Option) (*Runner, error) {
	r := &Runner{
		cfg:     cfg,
		client:  client,
		fetcher: download.NewFetcher(),
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
		logger:  log.GetLoggerWithName("pipeline"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		m, err := telemetry.NewMetrics()
		if err != nil {
			return nil, err
		}
		r.metrics = m
	}
	return r, nil
}

// Metrics returns the registry the runner records into.
func (r *Runner) Metrics() *telemetry.Metrics { return r.metrics }

// Run executes the steps selected by main.steps and writes the metrics
// textfile, whether or not a step failed. The first failing step stops the
// run and is returned as a StepError.
func (r *Runner) Run(ctx context.Context) (err error) {
	steps, err := ParseSteps(r.cfg.Main.Steps)
	if err != nil {
		return err
	}
	defer func() {
		if werr := r.metrics.WriteTextfile(r.cfg.Telemetry.MetricsFile); werr != nil {
			r.logger.Warn("Could not write metrics textfile", "path", r.cfg.Telemetry.MetricsFile, "error", werr)
		}
	}()

	r.logger.Info("Starting pipeline",
		"project", r.cfg.Main.ProjectName,
		"experiment", r.cfg.Main.ExperimentName,
		"steps", steps,
		"components_repository", r.cfg.Main.ComponentsRepository,
		"dashboard_url", r.cfg.Tracking.DashboardURL,
	)
	for _, name := range steps {
		if err := r.RunStep(ctx, name); err != nil {
			return err
		}
	}
	r.metrics.MarkSuccess(r.now())
	r.logger.Info("Pipeline finished", "steps", len(steps))
	return nil
}

// stepContext carries what a step needs and what it reports.
type stepContext struct {
	run *tracking.Run
	// dir is a scratch directory removed when the step ends.
	dir     string
	rowsIn  int
	rowsOut int
}

type stepFunc func(ctx context.Context, sc *stepContext) error

func (r *Runner) lookup(name string) (stepFunc, bool) {
	switch name {
	case StepDownload:
		return r.download, true
	case StepBasicCleaning:
		return r.basicCleaning, true
	case StepDataCheck:
		return r.dataCheck, true
	case StepDataSplit:
		return r.dataSplit, true
	case StepTrain:
		return r.trainRandomForest, true
	case StepTest:
		return r.testRegressionModel, true
	}
	return nil, false
}

// RunStep executes a single step in its own tracking run.
func (r *Runner) RunStep(ctx context.Context, name string) (err error) {
	fn, ok := r.lookup(name)
	if !ok {
		return errors.Wrapf(errors.ErrUnknownStep, "%q", name)
	}
	ctx, span := r.tracer.Start(ctx, "pipeline."+name, trace.WithAttributes(attribute.String(log.StepKey, name)))
	start := r.now()
	defer func() {
		r.metrics.ObserveStep(name, r.now().Sub(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger := r.logger.With(log.StepKey, name)
	run, err := r.client.Init(ctx, tracking.RunOptions{
		Project: r.cfg.Main.ProjectName,
		Group:   r.cfg.Main.ExperimentName,
		JobType: name,
		Config:  r.stepConfig(name),
	})
	if err != nil {
		return errors.NewStepError(name, err)
	}
	span.SetAttributes(attribute.String(log.RunIDKey, run.ID()))
	logger.Info("Step started", log.RunIDKey, run.ID())

	sc := &stepContext{run: run}
	stepErr := errors.SafeExecute(name, func() error {
		dir, err := os.MkdirTemp(r.workDir, name+"-")
		if err != nil {
			return errors.Wrap(err, "create step directory")
		}
		defer os.RemoveAll(dir)
		sc.dir = dir
		return fn(ctx, sc)
	})
	if sc.rowsIn > 0 || sc.rowsOut > 0 {
		r.metrics.SetRows(name, sc.rowsIn, sc.rowsOut)
	}
	for k, v := range run.Summary() {
		r.metrics.SetModelMetric(name, k, v)
	}

	if ferr := run.Finish(ctx, stepErr); ferr != nil && stepErr == nil {
		stepErr = ferr
	}
	if stepErr != nil {
		logger.Error("Step failed", stepErr, log.RunIDKey, run.ID())
		return errors.NewStepError(name, stepErr)
	}
	logger.Info("Step finished",
		log.RunIDKey, run.ID(),
		log.DurationMsKey, r.now().Sub(start).Milliseconds(),
	)
	return nil
}

// stepConfig is the slice of the configuration recorded on a step's run.
func (r *Runner) stepConfig(name string) map[string]any {
	c := r.cfg
	switch name {
	case StepDownload:
		return map[string]any{"sample": c.ETL.Sample}
	case StepBasicCleaning:
		return map[string]any{
			"min_price":       c.ETL.MinPrice,
			"max_price":       c.ETL.MaxPrice,
			"skip_geo_filter": c.ETL.SkipGeoFilter,
		}
	case StepDataCheck:
		return map[string]any{
			"kl_threshold": c.DataCheck.KLThreshold,
			"min_rows":     c.DataCheck.MinRows,
			"max_rows":     c.DataCheck.MaxRows,
			"min_price":    c.ETL.MinPrice,
			"max_price":    c.ETL.MaxPrice,
		}
	case StepDataSplit:
		return map[string]any{
			"test_size":   c.Modeling.TestSize,
			"random_seed": c.Modeling.RandomSeed,
			"stratify_by": c.Modeling.StratifyBy,
		}
	case StepTrain:
		return map[string]any{
			"val_size":           c.Modeling.ValSize,
			"random_seed":        c.Modeling.RandomSeed,
			"stratify_by":        c.Modeling.StratifyBy,
			"max_tfidf_features": c.Modeling.MaxTfidfFeatures,
			"cv_folds":           c.Modeling.CVFolds,
			"random_forest":      c.Modeling.RandomForest.Map(),
		}
	case StepTest:
		return map[string]any{
			"model_export": c.Modeling.ExportArtifact + ":" + c.Modeling.EvalAlias,
		}
	}
	return nil
}
