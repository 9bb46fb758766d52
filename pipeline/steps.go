// Package pipeline runs the price model steps in order, each inside its own
// tracking run.
package pipeline

import (
	"slices"
	"strings"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// Step names in execution order.
const (
	StepDownload      = "download"
	StepBasicCleaning = "basic_cleaning"
	StepDataCheck     = "data_check"
	StepDataSplit     = "data_split"
	StepTrain         = "train_random_forest"
	StepTest          = "test_regression_model"
)

// AllSteps is "all" in main.steps.
const AllSteps = "all"

// Steps lists every step in execution order.
var Steps = []string{
	StepDownload,
	StepBasicCleaning,
	StepDataCheck,
	StepDataSplit,
	StepTrain,
	StepTest,
}

// DefaultSteps is what AllSteps expands to. Testing the model is opt-in since
// it evaluates whichever export carries the evaluation alias.
var DefaultSteps = Steps[:len(Steps)-1]

// ParseSteps expands a main.steps value into step names in execution order,
// whatever order they were listed in. Duplicates are ignored.
func ParseSteps(value string) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == AllSteps {
		return slices.Clone(DefaultSteps), nil
	}
	selected := make(map[string]bool)
	for _, name := range strings.Split(value, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !slices.Contains(Steps, name) {
			return nil, errors.Wrapf(errors.ErrUnknownStep, "main.steps: %q", name)
		}
		selected[name] = true
	}
	if len(selected) == 0 {
		return nil, errors.NewValidationError("main.steps", "no step selected", value)
	}
	var out []string
	for _, name := range Steps {
		if selected[name] {
			out = append(out, name)
		}
	}
	return out, nil
}
