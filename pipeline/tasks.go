package pipeline

import (
	"bytes"
	"context"
	"path/filepath"

	"github.com/YuminosukeSato/nycprice/dataset"
	"github.com/YuminosukeSato/nycprice/etl/cleaning"
	"github.com/YuminosukeSato/nycprice/etl/datacheck"
	"github.com/YuminosukeSato/nycprice/etl/download"
	"github.com/YuminosukeSato/nycprice/evaluation"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
	"github.com/YuminosukeSato/nycprice/pkg/log"
	"github.com/YuminosukeSato/nycprice/sklearn/model_selection"
	"github.com/YuminosukeSato/nycprice/tracking"
	"github.com/YuminosukeSato/nycprice/training"
)

// Artifacts exchanged between steps.
const (
	TrainValArtifact = "trainval_data.csv"
	TestArtifact     = "test_data.csv"
	// SplitArtifactType is the tracking type of both split halves.
	SplitArtifactType = "dataset"

	ImportanceArtifact     = "feature_importance.png"
	ImportanceArtifactType = "plot"
)

func latest(name string) string { return name + ":" + tracking.LatestAlias }

// useFrame resolves ref for the step's run and reads its single CSV file.
func useFrame(ctx context.Context, sc *stepContext, ref string) (*dataset.Frame, error) {
	a, err := sc.run.UseArtifact(ctx, ref)
	if err != nil {
		return nil, err
	}
	path, err := a.File(ctx)
	if err != nil {
		return nil, err
	}
	return dataset.ReadCSVFile(path)
}

// logFrame writes f to the scratch directory and logs it as a one-file artifact.
func logFrame(ctx context.Context, sc *stepContext, f *dataset.Frame, name, typ, desc string) error {
	path := filepath.Join(sc.dir, name)
	if err := f.WriteCSVFile(path); err != nil {
		return err
	}
	a := tracking.NewArtifact(name, typ, desc, map[string]any{"rows": f.Len()})
	if err := a.AddFile(path, name); err != nil {
		return err
	}
	v, err := sc.run.LogArtifact(ctx, a)
	if err != nil {
		return err
	}
	log.GetLoggerWithName("pipeline").Info("Artifact logged",
		log.ArtifactKey, v.Ref(),
		log.RowsOutKey, f.Len(),
	)
	return nil
}

func (r *Runner) download(ctx context.Context, sc *stepContext) error {
	data, err := r.fetcher.Fetch(ctx, r.cfg.ETL.Sample)
	if err != nil {
		return err
	}
	f, err := dataset.ReadCSV(bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "parse sample")
	}
	if err := dataset.Listings.Validate(download.ArtifactName, f); err != nil {
		return err
	}
	sc.rowsOut = f.Len()

	a := tracking.NewArtifact(download.ArtifactName, download.ArtifactType, download.ArtifactDescription,
		map[string]any{"source": r.cfg.ETL.Sample})
	if err := a.AddBytes(download.ArtifactName, data); err != nil {
		return err
	}
	_, err = sc.run.LogArtifact(ctx, a)
	return err
}

func (r *Runner) basicCleaning(ctx context.Context, sc *stepContext) error {
	raw, err := useFrame(ctx, sc, latest(download.ArtifactName))
	if err != nil {
		return err
	}
	clean, rep, err := cleaning.Clean(raw, r.cfg.ETL.CleaningOptions())
	if err != nil {
		return err
	}
	sc.rowsIn, sc.rowsOut = rep.RowsIn, rep.RowsOut
	sc.run.Log(map[string]float64{
		"rows_in":                   float64(rep.RowsIn),
		"rows_out":                  float64(rep.RowsOut),
		"dropped_unparseable_price": float64(rep.DroppedUnparseablePrice),
		"dropped_price_range":       float64(rep.DroppedPriceRange),
		"dropped_out_of_bounds":     float64(rep.DroppedOutOfBounds),
		"invalid_dates":             float64(rep.InvalidDates),
	})
	return logFrame(ctx, sc, clean, cleaning.ArtifactName, cleaning.ArtifactType, cleaning.ArtifactDescription)
}

func (r *Runner) dataCheck(ctx context.Context, sc *stepContext) error {
	data, err := useFrame(ctx, sc, latest(cleaning.ArtifactName))
	if err != nil {
		return err
	}
	ref, err := useFrame(ctx, sc, latest(download.ArtifactName))
	if err != nil {
		return err
	}
	sc.rowsIn = data.Len()

	rep := datacheck.Run(data, ref, r.cfg.DataCheckOptions())
	passed := 0
	for _, res := range rep.Results {
		if res.Passed {
			passed++
		}
		if res.Name == datacheck.CheckSimilarNeighDistrib {
			sc.run.SetSummary("kl_divergence", res.Value)
		}
	}
	sc.run.SetSummary("checks_passed", float64(passed))
	sc.run.SetSummary("checks_failed", float64(len(rep.Results)-passed))
	return rep.Err()
}

func (r *Runner) dataSplit(ctx context.Context, sc *stepContext) error {
	f, err := useFrame(ctx, sc, latest(cleaning.ArtifactName))
	if err != nil {
		return err
	}
	m := r.cfg.Modeling
	opts := []model_selection.SplitOption{model_selection.WithRandomState(m.RandomSeed)}
	if m.StratifyBy != "" && m.StratifyBy != training.NoStratify {
		labels, err := f.Column(m.StratifyBy)
		if err != nil {
			return errors.NewSchemaError(cleaning.ArtifactName, []string{m.StratifyBy}, nil)
		}
		opts = append(opts, model_selection.WithStratify(labels))
	}
	trainIdx, testIdx, err := model_selection.TrainTestSplit(f.Len(), m.TestSize, opts...)
	if err != nil {
		return err
	}
	trainval, test := f.Select(trainIdx), f.Select(testIdx)
	sc.rowsIn, sc.rowsOut = f.Len(), trainval.Len()+test.Len()

	if err := logFrame(ctx, sc, trainval, TrainValArtifact, SplitArtifactType, "trainval_data split of dataset"); err != nil {
		return err
	}
	return logFrame(ctx, sc, test, TestArtifact, SplitArtifactType, "test_data split of dataset")
}

func (r *Runner) trainRandomForest(ctx context.Context, sc *stepContext) error {
	trainval, err := useFrame(ctx, sc, latest(TrainValArtifact))
	if err != nil {
		return err
	}
	sc.rowsIn = trainval.Len()

	m := r.cfg.Modeling
	res, err := training.Train(trainval, training.Options{
		ValSize:          m.ValSize,
		RandomSeed:       m.RandomSeed,
		StratifyBy:       m.StratifyBy,
		MaxTfidfFeatures: m.MaxTfidfFeatures,
		Params:           m.RandomForest,
		CVFolds:          m.CVFolds,
		ProgressPeriod:   progressPeriod(m.RandomForest.NEstimators),
	}, sc.dir)
	if err != nil {
		return err
	}
	sc.run.Log(res.Summary())

	export := tracking.NewArtifact(m.ExportArtifact, training.ArtifactType, training.ArtifactDescription,
		res.Pipeline.Forest.Params.Map())
	if err := export.AddDir(res.ExportDir, ""); err != nil {
		return err
	}
	v, err := sc.run.LogArtifact(ctx, export)
	if err != nil {
		return err
	}
	r.logger.Info("Model exported", log.ArtifactKey, v.Ref(), log.R2ScoreKey, res.Validation.R2, log.MAEKey, res.Validation.MAE)

	plot := tracking.NewArtifact(ImportanceArtifact, ImportanceArtifactType, "Feature importance", nil)
	if err := plot.AddFile(res.ImportancePlot, ImportanceArtifact); err != nil {
		return err
	}
	_, err = sc.run.LogArtifact(ctx, plot)
	return err
}

// progressPeriod logs forest progress about ten times per fit.
func progressPeriod(trees int) int {
	return max(trees/10, 1)
}

func (r *Runner) testRegressionModel(ctx context.Context, sc *stepContext) error {
	m := r.cfg.Modeling
	ref, err := sc.run.UseArtifact(ctx, m.ExportArtifact+":"+m.EvalAlias)
	if err != nil {
		return err
	}
	modelDir, err := ref.Download(ctx)
	if err != nil {
		return err
	}
	test, err := useFrame(ctx, sc, latest(TestArtifact))
	if err != nil {
		return err
	}
	sc.rowsIn = test.Len()

	res, err := evaluation.Evaluate(modelDir, test)
	if err != nil {
		return err
	}
	sc.run.Log(res.Summary())
	return nil
}
