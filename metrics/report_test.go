package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestMAPE(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{"ten percent off", []float64{100, 200}, []float64{110, 180}, 10, false},
		{"zero targets skipped", []float64{0, 50}, []float64{5, 25}, 50, false},
		{"all zero", []float64{0, 0}, []float64{1, 1}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MAPE(mat.NewVecDense(len(tt.yTrue), tt.yTrue), mat.NewVecDense(len(tt.yPred), tt.yPred))
			if (err != nil) != tt.wantErr {
				t.Fatalf("MAPE() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("MAPE() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExplainedVarianceAndMaxError(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{1, 2, 3, 4})
	// constant bias leaves explained variance at 1
	yPred := mat.NewVecDense(4, []float64{2, 3, 4, 5})

	ev, err := ExplainedVarianceScore(yTrue, yPred)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(ev-1) > 1e-12 {
		t.Errorf("ExplainedVarianceScore() = %v, want 1", ev)
	}

	me, err := MaxError(yTrue, mat.NewVecDense(4, []float64{1, 2, 6, 4}))
	if err != nil {
		t.Fatal(err)
	}
	if me != 3 {
		t.Errorf("MaxError() = %v, want 3", me)
	}
}

func TestRegressionReport(t *testing.T) {
	yTrue := mat.NewDense(4, 1, []float64{100, 150, 200, 250})
	yPred := mat.NewDense(4, 1, []float64{110, 140, 210, 240})

	r, err := RegressionReport(yTrue, yPred)
	if err != nil {
		t.Fatal(err)
	}
	if r.MAE != 10 {
		t.Errorf("MAE = %v, want 10", r.MAE)
	}
	if r.RMSE != 10 {
		t.Errorf("RMSE = %v, want 10", r.RMSE)
	}
	// tss = 12500, rss = 400
	if math.Abs(r.R2-(1-400.0/12500.0)) > 1e-12 {
		t.Errorf("R2 = %v", r.R2)
	}
	if r.MaxError != 10 {
		t.Errorf("MaxError = %v, want 10", r.MaxError)
	}
	// residuals -10, 10, -10, 10: variance 100 against 3125
	if math.Abs(r.ExplainedVariance-(1-100.0/3125.0)) > 1e-12 {
		t.Errorf("ExplainedVariance = %v", r.ExplainedVariance)
	}

	summary := r.Summary()
	for _, k := range []string{"mae", "r2", "rmse", "mape", "max_error", "explained_variance"} {
		if _, ok := summary[k]; !ok {
			t.Errorf("summary missing %s", k)
		}
	}

	if _, err := RegressionReport(yTrue, mat.NewDense(3, 1, nil)); err == nil {
		t.Error("expected dimension error")
	}
}

func TestRegressionReportConstantPrices(t *testing.T) {
	yTrue := mat.NewDense(3, 1, []float64{99, 99, 99})
	yPred := mat.NewDense(3, 1, []float64{89, 99, 104})

	r, err := RegressionReport(yTrue, yPred)
	if err != nil {
		t.Fatal(err)
	}
	if r.ExplainedVariance != 0 {
		t.Errorf("ExplainedVariance = %v, want 0 for constant prices", r.ExplainedVariance)
	}
	if r.MaxError != 10 {
		t.Errorf("MaxError = %v, want 10", r.MaxError)
	}
}
