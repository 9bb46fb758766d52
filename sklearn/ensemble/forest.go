// Package ensemble implements a bagged random forest regressor on top of sklearn/tree.
package ensemble

import (
	"math/rand/v2"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/nycprice/core/model"
	"github.com/YuminosukeSato/nycprice/core/parallel"
	"github.com/YuminosukeSato/nycprice/metrics"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
	"github.com/YuminosukeSato/nycprice/pkg/log"
	"github.com/YuminosukeSato/nycprice/sklearn/tree"
)

// RandomForestRegressor averages DecisionTreeRegressors fitted on bootstrap samples.
//
// Tree i draws its bootstrap sample and its split features from a PCG seeded with
// RandomState+i, so a fit is reproducible regardless of NJobs.
type RandomForestRegressor struct {
	State  *model.StateManager
	Params Params

	Estimators  []*tree.DecisionTreeRegressor
	Importances []float64
	OOB         float64
	HasOOB      bool

	callbacks []Callback
}

// NewRandomForestRegressor creates a forest with p.
func NewRandomForestRegressor(p Params) *RandomForestRegressor {
	return &RandomForestRegressor{State: model.NewStateManager(), Params: p}
}

// WithCallbacks registers callbacks run after each tree.
func (rf *RandomForestRegressor) WithCallbacks(callbacks ...Callback) *RandomForestRegressor {
	rf.callbacks = append(rf.callbacks, callbacks...)
	return rf
}

// Fit grows NEstimators trees on X and y.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	if err := rf.Params.Validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("RandomForestRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows, _ := y.Dims(); yRows != rows {
		return errors.NewDimensionError("RandomForestRegressor.Fit", rows, yRows, 0)
	}
	maxFeatures, err := rf.Params.ResolveMaxFeatures(cols)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("ensemble")
	begin := time.Now()
	base := uint64(rf.Params.RandomState)
	if rf.Params.RandomState < 0 {
		base = rand.Uint64()
	}

	n := rf.Params.NEstimators
	trees := make([]*tree.DecisionTreeRegressor, n)
	inBag := make([][]bool, n)
	errs := make([]error, n)

	var (
		mu       sync.Mutex
		finished int
		stop     bool
		cbErr    error
	)

	parallel.For(n, rf.Params.NJobs, func(start, end int) {
		for i := start; i < end; i++ {
			mu.Lock()
			halt := stop
			mu.Unlock()
			if halt {
				return
			}

			seed := base + uint64(i)
			dt := tree.NewDecisionTreeRegressor(
				tree.WithCriterion(rf.Params.Criterion),
				tree.WithMaxDepth(rf.Params.MaxDepth),
				tree.WithMinSamplesSplit(rf.Params.MinSamplesSplit),
				tree.WithMinSamplesLeaf(rf.Params.MinSamplesLeaf),
				tree.WithMinImpurityDecrease(rf.Params.MinImpurityDecrease),
				tree.WithMaxFeatures(maxFeatures),
				tree.WithRandomState(int64(seed&(1<<63-1))),
			)

			sample := make([]int, rows)
			if rf.Params.Bootstrap {
				r := rand.New(rand.NewPCG(seed, seed))
				used := make([]bool, rows)
				for k := range sample {
					sample[k] = r.IntN(rows)
					used[sample[k]] = true
				}
				inBag[i] = used
			} else {
				for k := range sample {
					sample[k] = k
				}
			}

			if err := errors.SafeExecute("RandomForestRegressor.fitTree", func() error {
				return dt.FitWeighted(X, y, sample)
			}); err != nil {
				errs[i] = err
				mu.Lock()
				stop = true
				mu.Unlock()
				return
			}
			trees[i] = dt

			mu.Lock()
			finished++
			if len(rf.callbacks) > 0 && cbErr == nil {
				env := &CallbackEnv{
					Forest:    rf,
					Iteration: finished,
					Tree:      i,
					BeginTime: begin,
					EndTime:   time.Now(),
					EvalResults: map[string]float64{
						"depth":  float64(dt.GetDepth()),
						"leaves": float64(dt.GetNLeaves()),
					},
				}
				for _, cb := range rf.callbacks {
					if err := cb(env); err != nil {
						cbErr = err
						break
					}
				}
				if env.StopTraining || cbErr != nil {
					stop = true
				}
			}
			mu.Unlock()
		}
	})

	for i, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "fit tree %d", i)
		}
	}
	if cbErr != nil {
		return errors.Wrap(cbErr, "random forest callback")
	}

	rf.Estimators = rf.Estimators[:0]
	var kept [][]bool
	for i, dt := range trees {
		if dt != nil {
			rf.Estimators = append(rf.Estimators, dt)
			kept = append(kept, inBag[i])
		}
	}
	if len(rf.Estimators) == 0 {
		return errors.NewModelError("RandomForestRegressor.Fit", "no tree was fitted", errors.ErrEmptyData)
	}

	rf.computeImportances(cols)
	rf.State.MarkFitted(cols, rows)

	rf.HasOOB = false
	if rf.Params.OOBScore {
		if err := rf.computeOOB(X, y, kept); err != nil {
			return err
		}
	}

	attrs := []any{
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"n_estimators", len(rf.Estimators),
		"workers", parallel.Jobs(rf.Params.NJobs, n),
		log.DurationMsKey, time.Since(begin).Milliseconds(),
	}
	if rf.HasOOB {
		attrs = append(attrs, log.OOBKey, rf.OOB)
	}
	logger.Info("Random forest fitted", attrs...)
	return nil
}

func (rf *RandomForestRegressor) computeImportances(cols int) {
	rf.Importances = make([]float64, cols)
	for _, dt := range rf.Estimators {
		for j, v := range dt.GetFeatureImportances() {
			rf.Importances[j] += v
		}
	}
	var total float64
	for _, v := range rf.Importances {
		total += v
	}
	if total > 0 {
		for j := range rf.Importances {
			rf.Importances[j] /= total
		}
	}
}

// computeOOB scores each row with the trees that did not see it.
func (rf *RandomForestRegressor) computeOOB(X, y mat.Matrix, inBag [][]bool) error {
	rows, _ := X.Dims()
	sum := make([]float64, rows)
	count := make([]int, rows)
	for t, dt := range rf.Estimators {
		for i := 0; i < rows; i++ {
			if !inBag[t][i] {
				sum[i] += dt.PredictRow(X, i)
				count[i]++
			}
		}
	}

	var yTrue, yPred []float64
	for i := 0; i < rows; i++ {
		if count[i] == 0 {
			continue
		}
		yTrue = append(yTrue, y.At(i, 0))
		yPred = append(yPred, sum[i]/float64(count[i]))
	}
	if len(yTrue) < rows {
		errors.Warn(errors.NewUndefinedMetricWarning("oob_score",
			"some inputs do not have OOB scores; this probably means too few trees were used", float64(rows-len(yTrue))))
	}
	if len(yTrue) == 0 {
		return nil
	}
	score, err := metrics.R2Score(mat.NewVecDense(len(yTrue), yTrue), mat.NewVecDense(len(yPred), yPred))
	if err != nil {
		return errors.Wrap(err, "oob score")
	}
	rf.OOB = score
	rf.HasOOB = true
	return nil
}

// Predict returns the mean prediction of the trees as an n×1 matrix.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.State.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := rf.State.RequireFeatures("RandomForestRegressor.Predict", cols); err != nil {
		return nil, err
	}

	out := make([]float64, rows)
	nTrees := float64(len(rf.Estimators))
	parallel.For(rows, rf.Params.NJobs, func(start, end int) {
		for i := start; i < end; i++ {
			var s float64
			for _, dt := range rf.Estimators {
				s += dt.PredictRow(X, i)
			}
			out[i] = s / nTrees
		}
	})
	return mat.NewDense(rows, 1, out), nil
}

// Score returns the R² of the predictions for X.
func (rf *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	r, err := metrics.RegressionReport(y, pred)
	if err != nil {
		return 0, err
	}
	return r.R2, nil
}

// FeatureImportances returns the mean impurity-based importance of each feature,
// normalised to sum to one.
func (rf *RandomForestRegressor) FeatureImportances() []float64 {
	return append([]float64(nil), rf.Importances...)
}

// GetFeatureImportances implements model.ImportanceReporter.
func (rf *RandomForestRegressor) GetFeatureImportances() []float64 {
	return rf.FeatureImportances()
}

// OOBScore returns the out-of-bag R². It fails unless the forest was fitted with
// oob_score enabled.
func (rf *RandomForestRegressor) OOBScore() (float64, error) {
	if err := rf.State.RequireFitted("RandomForestRegressor", "OOBScore"); err != nil {
		return 0, err
	}
	if !rf.HasOOB {
		return 0, errors.NewValueError("RandomForestRegressor.OOBScore", "forest was not fitted with oob_score=true")
	}
	return rf.OOB, nil
}

// GetParams implements model.Tunable.
func (rf *RandomForestRegressor) GetParams() map[string]interface{} {
	return rf.Params.Map()
}

// SetParams implements model.Tunable.
func (rf *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	merged := rf.Params.Map()
	for k, v := range params {
		merged[k] = v
	}
	p, err := ParamsFromMap(merged)
	if err != nil {
		return err
	}
	rf.Params = p
	return nil
}

var (
	_ model.Regressor          = (*RandomForestRegressor)(nil)
	_ model.Tunable            = (*RandomForestRegressor)(nil)
	_ model.ImportanceReporter = (*RandomForestRegressor)(nil)
	_ model.Regressor          = (*tree.DecisionTreeRegressor)(nil)
	_ model.Tunable            = (*tree.DecisionTreeRegressor)(nil)
)
