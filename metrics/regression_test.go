package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func vec(v ...float64) *mat.VecDense {
	if len(v) == 0 {
		return &mat.VecDense{}
	}
	return mat.NewVecDense(len(v), v)
}

// nightly prices of four listings and two sets of predictions
var (
	prices    = []float64{80, 150, 225, 60}
	exact     = []float64{80, 150, 225, 60}
	predicted = []float64{95, 140, 200, 70}
)

func TestPointwiseErrors(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(yTrue, yPred *mat.VecDense) (float64, error)
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{"MSE exact", MSE, prices, exact, 0, false},
		// (15² + 10² + 25² + 10²) / 4
		{"MSE", MSE, prices, predicted, 262.5, false},
		{"RMSE", RMSE, prices, predicted, math.Sqrt(262.5), false},
		// (15 + 10 + 25 + 10) / 4
		{"MAE", MAE, prices, predicted, 15, false},
		{"MaxError", MaxError, prices, predicted, 25, false},
		{"MAE single listing", MAE, []float64{120}, []float64{100}, 20, false},
		{"MSE length mismatch", MSE, prices, predicted[:3], 0, true},
		{"MAE length mismatch", MAE, prices[:2], predicted, 0, true},
		{"RMSE empty", RMSE, nil, nil, 0, true},
		{"MaxError empty", MaxError, nil, nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(vec(tt.yTrue...), vec(tt.yPred...))
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMSEMatrix(t *testing.T) {
	yTrue := mat.NewDense(4, 1, prices)
	yPred := mat.NewDense(4, 1, predicted)

	got, err := MSEMatrix(yTrue, yPred)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-262.5) > 1e-9 {
		t.Errorf("MSEMatrix() = %v, want 262.5", got)
	}

	if _, err := MSEMatrix(yTrue, mat.NewDense(1, 4, predicted)); err == nil {
		t.Error("expected a shape error for a row vector")
	}
	if _, err := MSEMatrix(mat.NewDense(4, 2, nil), mat.NewDense(4, 2, nil)); err == nil {
		t.Error("expected an error for two-column targets")
	}
}

func TestR2Score(t *testing.T) {
	mean := (80.0 + 150 + 225 + 60) / 4
	tss := 0.0
	for _, p := range prices {
		tss += (p - mean) * (p - mean)
	}

	tests := []struct {
		name  string
		yTrue []float64
		yPred []float64
		want  float64
	}{
		{"perfect", prices, exact, 1},
		{"predictions", prices, predicted, 1 - 1050/tss},
		{"mean predictor", prices, []float64{mean, mean, mean, mean}, 0},
		{"worse than the mean", []float64{100, 200}, []float64{200, 100}, -3},
		// no variance in y_true: undefined, reported through a warning
		{"constant target exact", []float64{99, 99}, []float64{99, 99}, 1},
		{"constant target missed", []float64{99, 99}, []float64{90, 110}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := R2Score(vec(tt.yTrue...), vec(tt.yPred...))
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("R2Score() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := R2Score(vec(prices...), vec(predicted[:2]...)); err == nil {
		t.Error("expected a dimension error")
	}
}
