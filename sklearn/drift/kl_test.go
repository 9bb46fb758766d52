package drift

import (
	"math"
	"testing"
)

func TestCategoricalDistribution(t *testing.T) {
	d := CategoricalDistribution([]string{"Brooklyn", "Manhattan", "Brooklyn", "Queens"})
	if d["Brooklyn"] != 0.5 || d["Manhattan"] != 0.25 || d["Queens"] != 0.25 {
		t.Errorf("unexpected distribution %v", d)
	}
	if len(CategoricalDistribution(nil)) != 0 {
		t.Error("empty input should give an empty distribution")
	}
}

func TestKLDivergence(t *testing.T) {
	tests := []struct {
		name string
		p, q Distribution
		want float64
	}{
		{"identical", Distribution{"a": 0.5, "b": 0.5}, Distribution{"a": 0.5, "b": 0.5}, 0},
		{"one bit", Distribution{"a": 1}, Distribution{"a": 0.5, "b": 0.5}, 1},
		{"skewed", Distribution{"a": 0.75, "b": 0.25}, Distribution{"a": 0.5, "b": 0.5},
			0.75*math.Log2(1.5) + 0.25*math.Log2(0.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := KLDivergence(tt.p, tt.q, 0)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKLDivergenceMissingCategory(t *testing.T) {
	p := Distribution{"a": 0.5, "b": 0.5}
	q := Distribution{"a": 1}

	inf, err := KLDivergence(p, q, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsInf(inf, 1) {
		t.Errorf("unsmoothed divergence should be +Inf, got %v", inf)
	}

	smoothed, err := KLDivergence(p, q, 1e-10)
	if err != nil {
		t.Fatal(err)
	}
	if math.IsInf(smoothed, 0) || smoothed <= 1 {
		t.Errorf("smoothed divergence should be large and finite, got %v", smoothed)
	}

	if _, err := KLDivergence(Distribution{}, q, 0); err == nil {
		t.Error("expected error for empty distribution")
	}
}

func TestKLDetector(t *testing.T) {
	ref := []string{"Brooklyn", "Brooklyn", "Manhattan", "Manhattan", "Queens"}
	same := []string{"Brooklyn", "Manhattan", "Brooklyn", "Queens", "Manhattan"}
	shifted := []string{"Bronx", "Bronx", "Bronx", "Bronx", "Queens"}

	det := NewKLDetector(WithKLThreshold(0.2))
	res, err := det.Detect(same, ref)
	if err != nil {
		t.Fatal(err)
	}
	if res.DriftDetected || res.Divergence > 1e-9 {
		t.Errorf("identical distributions flagged: %+v", res)
	}

	res, err = det.Detect(shifted, ref)
	if err != nil {
		t.Fatal(err)
	}
	if !res.DriftDetected {
		t.Errorf("shifted distribution not flagged: %+v", res)
	}
	if len(res.Categories) != 4 {
		t.Errorf("categories = %v", res.Categories)
	}
	if det.Threshold() != 0.2 {
		t.Errorf("Threshold() = %v", det.Threshold())
	}
}
