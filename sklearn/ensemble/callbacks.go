package ensemble

import (
	"time"

	"github.com/YuminosukeSato/nycprice/pkg/log"
)

// CallbackEnv describes the forest after a tree finished fitting.
type CallbackEnv struct {
	Forest *RandomForestRegressor
	// Iteration counts finished trees, starting at 1.
	Iteration int
	Tree      int
	// BeginTime is when Fit started, EndTime when this tree finished.
	BeginTime   time.Time
	EndTime     time.Time
	EvalResults map[string]float64
	// StopTraining skips trees that have not started yet.
	StopTraining bool
}

// Callback runs after every fitted tree. Callbacks are serialised even when trees
// are fitted concurrently.
type Callback func(env *CallbackEnv) error

// PrintProgress logs tree statistics every period trees.
func PrintProgress(period int) Callback {
	logger := log.GetLoggerWithName("ensemble")
	return func(env *CallbackEnv) error {
		if period > 0 && env.Iteration%period == 0 {
			logger.Info("Random forest progress",
				log.IterationKey, env.Iteration,
				"n_estimators", env.Forest.Params.NEstimators,
				"tree.depth", env.EvalResults["depth"],
				"tree.leaves", env.EvalResults["leaves"],
				log.DurationMsKey, env.EndTime.Sub(env.BeginTime).Milliseconds(),
			)
		}
		return nil
	}
}

// RecordProgress appends every tree's statistics to history.
func RecordProgress(history *map[string][]float64) Callback {
	return func(env *CallbackEnv) error {
		if *history == nil {
			*history = make(map[string][]float64)
		}
		for name, value := range env.EvalResults {
			(*history)[name] = append((*history)[name], value)
		}
		return nil
	}
}

// TimeLimit stops fitting new trees once maxDuration has elapsed since Fit started.
func TimeLimit(maxDuration time.Duration) Callback {
	return func(env *CallbackEnv) error {
		if time.Since(env.BeginTime) > maxDuration {
			log.GetLoggerWithName("ensemble").Warn("Random forest time limit reached",
				log.IterationKey, env.Iteration)
			env.StopTraining = true
		}
		return nil
	}
}
