// Package drift compares categorical distributions between two samples.
package drift

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// Distribution maps a category to its probability.
type Distribution map[string]float64

// CategoricalDistribution returns the relative frequency of each value. Empty strings
// are counted as their own category.
func CategoricalDistribution(values []string) Distribution {
	d := make(Distribution)
	if len(values) == 0 {
		return d
	}
	for _, v := range values {
		d[v]++
	}
	n := float64(len(values))
	for k := range d {
		d[k] /= n
	}
	return d
}

// Categories returns the sorted union of the categories of ds.
func Categories(ds ...Distribution) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range ds {
		for k := range d {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}

// KLDivergence returns D(p || q) in bits over the union of categories. Every
// probability is raised by epsilon and both sides renormalised, so categories absent
// from q give a large but finite value.
func KLDivergence(p, q Distribution, epsilon float64) (float64, error) {
	if len(p) == 0 || len(q) == 0 {
		return 0, errors.NewModelError("KLDivergence", "empty distribution", errors.ErrEmptyData)
	}
	if epsilon < 0 {
		return 0, errors.NewValidationError("epsilon", "must be >= 0", epsilon)
	}
	cats := Categories(p, q)
	ps := smooth(p, cats, epsilon)
	qs := smooth(q, cats, epsilon)

	var kl float64
	for i := range cats {
		if ps[i] == 0 {
			continue
		}
		if qs[i] == 0 {
			return math.Inf(1), nil
		}
		kl += ps[i] * math.Log2(ps[i]/qs[i])
	}
	return kl, nil
}

func smooth(d Distribution, cats []string, epsilon float64) []float64 {
	out := make([]float64, len(cats))
	var total float64
	for i, c := range cats {
		out[i] = d[c] + epsilon
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

// DriftDetectionResult reports a comparison between a sample and its reference.
type DriftDetectionResult struct {
	DriftDetected bool
	Divergence    float64
	Threshold     float64
	// Categories lists the union of categories that were compared.
	Categories []string
}

// KLDetector flags drift when the KL divergence of a sample from its reference
// reaches Threshold.
type KLDetector struct {
	threshold float64
	epsilon   float64
}

// KLOption configures a KLDetector.
type KLOption func(*KLDetector)

// WithKLThreshold sets the divergence at which drift is reported.
func WithKLThreshold(t float64) KLOption {
	return func(d *KLDetector) { d.threshold = t }
}

// WithKLEpsilon sets the smoothing added to every probability.
func WithKLEpsilon(eps float64) KLOption {
	return func(d *KLDetector) { d.epsilon = eps }
}

// NewKLDetector creates a detector with threshold 0.2 and epsilon 1e-10.
func NewKLDetector(options ...KLOption) *KLDetector {
	d := &KLDetector{threshold: 0.2, epsilon: 1e-10}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// Threshold returns the configured threshold.
func (d *KLDetector) Threshold() float64 { return d.threshold }

// Detect compares the distribution of sample against reference.
func (d *KLDetector) Detect(sample, reference []string) (*DriftDetectionResult, error) {
	p := CategoricalDistribution(sample)
	q := CategoricalDistribution(reference)
	kl, err := KLDivergence(p, q, d.epsilon)
	if err != nil {
		return nil, err
	}
	return &DriftDetectionResult{
		DriftDetected: kl >= d.threshold,
		Divergence:    kl,
		Threshold:     d.threshold,
		Categories:    Categories(p, q),
	}, nil
}
