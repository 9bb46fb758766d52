package errors

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
)

// TargetColumn is the Column of a NumericalInstabilityError raised on y.
const TargetColumn = -1

// NumericalInstabilityError reports NaN or ±Inf reaching a model. Encoded
// listings should never carry either, so this points at a preprocessing bug.
type NumericalInstabilityError struct {
	Operation string
	Column    int
	Row       int
	Value     float64
	Count     int
}

func (e *NumericalInstabilityError) Error() string {
	where := fmt.Sprintf("feature %d", e.Column)
	if e.Column == TargetColumn {
		where = "target"
	}
	return fmt.Sprintf("nycprice: %s: %d non-finite value(s) in %s, first %v at row %d",
		e.Operation, e.Count, where, e.Value, e.Row)
}

// CheckFinite fails when values, the column-th feature or the target, holds
// NaN or ±Inf.
func CheckFinite(operation string, column int, values []float64) error {
	var e *NumericalInstabilityError
	for i, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			continue
		}
		if e == nil {
			e = &NumericalInstabilityError{Operation: operation, Column: column, Row: i, Value: v}
		}
		e.Count++
	}
	if e == nil {
		return nil
	}
	return errors.WithStack(e)
}
