package training

import (
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/nycprice/dataset"
	"github.com/YuminosukeSato/nycprice/metrics"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
	"github.com/YuminosukeSato/nycprice/pkg/log"
	"github.com/YuminosukeSato/nycprice/sklearn/ensemble"
	"github.com/YuminosukeSato/nycprice/sklearn/model_selection"
)

const (
	// ArtifactType is the tracking type of a model export.
	ArtifactType = "model_export"
	// ArtifactDescription describes the model export artifact.
	ArtifactDescription = "Trained Random Forest model"
	// NoStratify disables stratified splitting.
	NoStratify = "none"
)

// Options configure Train.
type Options struct {
	ValSize    float64
	RandomSeed int64
	// StratifyBy names the column whose proportions the validation split keeps,
	// or "none".
	StratifyBy       string
	MaxTfidfFeatures int
	Params           ensemble.Params
	// CVFolds runs k-fold cross-validation on the training rows when >= 2.
	CVFolds int
	// ProgressPeriod logs forest progress every that many trees; 0 disables it.
	ProgressPeriod int
}

// Result is the outcome of Train.
type Result struct {
	Pipeline   *InferencePipeline
	Validation metrics.Report
	// OOB is the out-of-bag R², valid when HasOOB.
	OOB    float64
	HasOOB bool
	CV     *CVReport
	// ExportDir holds the model export, ImportancePlot the importance chart.
	ExportDir      string
	ImportancePlot string
}

// Summary returns the values logged to the run summary.
func (r *Result) Summary() map[string]float64 {
	s := map[string]float64{
		"r2":  r.Validation.R2,
		"mae": r.Validation.MAE,
	}
	if r.HasOOB {
		s["oob_r2"] = r.OOB
	}
	if r.CV != nil {
		s["cv_mae"] = r.CV.MeanMAE
		s["cv_r2"] = r.CV.MeanR2
	}
	return s
}

func splitOptions(X *dataset.Frame, seed int64, stratifyBy string) ([]model_selection.SplitOption, error) {
	opts := []model_selection.SplitOption{model_selection.WithRandomState(seed)}
	if stratifyBy != "" && stratifyBy != NoStratify {
		labels, err := X.Column(stratifyBy)
		if err != nil {
			return nil, errors.NewSchemaError("stratify_by", []string{stratifyBy}, nil)
		}
		opts = append(opts, model_selection.WithStratify(labels))
	}
	return opts, nil
}

func rowsOf(y *mat.Dense, idx []int) *mat.Dense {
	out := mat.NewDense(len(idx), 1, nil)
	for i, r := range idx {
		out.Set(i, 0, y.At(r, 0))
	}
	return out
}

// Train pops price from trainval, holds out a validation split, fits the
// pipeline and writes the export and importance chart under workDir.
func Train(trainval *dataset.Frame, opts Options, workDir string) (*Result, error) {
	logger := log.GetLoggerWithName("training")

	prices, X, err := trainval.Pop(dataset.ColPrice)
	if err != nil {
		return nil, errors.NewSchemaError("trainval_data", []string{dataset.ColPrice}, nil)
	}
	if err := dataset.Listings.Without(dataset.ColPrice).Validate("trainval_data", X); err != nil {
		return nil, err
	}
	y, err := PriceVector(prices)
	if err != nil {
		return nil, err
	}
	lo, hi := mat.Min(y), mat.Max(y)
	logger.Info("Target range", "price.min", lo, "price.max", hi)

	splitOpts, err := splitOptions(X, opts.RandomSeed, opts.StratifyBy)
	if err != nil {
		return nil, err
	}
	trainIdx, valIdx, err := model_selection.TrainTestSplit(X.Len(), opts.ValSize, splitOpts...)
	if err != nil {
		return nil, err
	}
	xTrain, xVal := X.Select(trainIdx), X.Select(valIdx)
	yTrain, yVal := rowsOf(y, trainIdx), rowsOf(y, valIdx)

	params := opts.Params
	params.RandomState = opts.RandomSeed

	res := &Result{}
	if opts.CVFolds >= 2 {
		cv, err := CrossValidate(xTrain, yTrain, params, opts.MaxTfidfFeatures, opts.CVFolds, opts.RandomSeed)
		if err != nil {
			return nil, errors.Wrap(err, "cross-validation")
		}
		res.CV = cv
	}

	pipe := NewInferencePipeline(params, opts.MaxTfidfFeatures)
	if opts.ProgressPeriod > 0 {
		pipe.Forest.WithCallbacks(ensemble.PrintProgress(opts.ProgressPeriod))
	}
	logger.Info("Fitting", log.PhaseKey, log.PhaseTraining, log.SamplesKey, xTrain.Len())
	if err := pipe.Fit(xTrain, yTrain); err != nil {
		return nil, err
	}
	res.Pipeline = pipe

	logger.Info("Scoring", log.PhaseKey, log.PhaseValidation, log.SamplesKey, xVal.Len())
	if res.Validation, err = pipe.Evaluate(xVal, yVal); err != nil {
		return nil, err
	}
	if oob, err := pipe.Forest.OOBScore(); err == nil {
		res.OOB, res.HasOOB = oob, true
	}
	logger.Info("Validation scores",
		log.R2ScoreKey, res.Validation.R2,
		log.MAEKey, res.Validation.MAE,
	)

	res.ExportDir = filepath.Join(workDir, "random_forest_dir")
	if _, err := Export(pipe, res.ExportDir, xTrain, params.Map()); err != nil {
		return nil, err
	}

	names, values, err := pipe.GroupedImportances()
	if err != nil {
		return nil, err
	}
	res.ImportancePlot = filepath.Join(workDir, ImportanceFile)
	if err := PlotFeatureImportance(names, values, res.ImportancePlot); err != nil {
		return nil, err
	}
	return res, nil
}

// CVReport holds per-fold validation scores.
type CVReport struct {
	Folds   []metrics.Report
	MeanMAE float64
	MeanR2  float64
	StdMAE  float64
}

// CrossValidate fits a fresh pipeline on each of k shuffled folds and scores it on
// the held-out rows.
func CrossValidate(X *dataset.Frame, y *mat.Dense, params ensemble.Params, maxTfidf, k int, seed int64) (*CVReport, error) {
	if k < 2 || k > X.Len() {
		return nil, errors.NewValidationError("cv_folds", "must be between 2 and the number of rows", k)
	}
	folds := model_selection.NewKFold(k, true, seed).Split(X.Len())
	rep := &CVReport{Folds: make([]metrics.Report, len(folds))}
	maes := make([]float64, len(folds))
	r2s := make([]float64, len(folds))
	for i, fold := range folds {
		pipe := NewInferencePipeline(params, maxTfidf)
		if err := pipe.Fit(X.Select(fold.TrainIndices), rowsOf(y, fold.TrainIndices)); err != nil {
			return nil, errors.Wrapf(err, "fold %d", i)
		}
		r, err := pipe.Evaluate(X.Select(fold.TestIndices), rowsOf(y, fold.TestIndices))
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", i)
		}
		rep.Folds[i] = r
		maes[i], r2s[i] = r.MAE, r.R2
	}
	rep.MeanMAE, rep.StdMAE = stat.MeanStdDev(maes, nil)
	rep.MeanR2 = stat.Mean(r2s, nil)
	log.GetLoggerWithName("training").Info("Cross-validation done",
		"cv.folds", k,
		"cv.mae_mean", rep.MeanMAE,
		"cv.mae_std", rep.StdMAE,
		"cv.r2_mean", rep.MeanR2,
	)
	return rep, nil
}
