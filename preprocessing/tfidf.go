package preprocessing

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/nycprice/core/model"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// tokens of two or more word characters, as scikit-learn's default token_pattern
var tokenPattern = regexp.MustCompile(`\b\w\w+\b`)

// TfidfVectorizer turns one text column into L2-normalised tf-idf features.
//
// The vocabulary keeps the MaxFeatures terms with the highest corpus frequency (ties
// broken alphabetically) and features are ordered alphabetically by term. Idf is
// smoothed: ln((1+n)/(1+df)) + 1.
type TfidfVectorizer struct {
	State *model.StateManager

	MaxFeatures int
	StopWords   bool

	// Terms lists the vocabulary in feature order. It is the only persisted form
	// of the vocabulary: a gob-encoded map would make model.gob differ between
	// saves of the same model.
	Terms []string
	Idf   []float64
}

// NewTfidfVectorizer creates a vectorizer. maxFeatures <= 0 keeps every term.
func NewTfidfVectorizer(maxFeatures int, stopWords bool) *TfidfVectorizer {
	return &TfidfVectorizer{
		State:       model.NewStateManager(),
		MaxFeatures: maxFeatures,
		StopWords:   stopWords,
	}
}

// Tokenize lowercases doc and splits it into terms, dropping stop words when enabled.
func (v *TfidfVectorizer) Tokenize(doc string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(doc), -1)
	if !v.StopWords {
		return raw
	}
	out := raw[:0]
	for _, t := range raw {
		if !englishStopWords[t] {
			out = append(out, t)
		}
	}
	return out
}

// Fit learns the vocabulary and idf weights from a single column.
func (v *TfidfVectorizer) Fit(cols [][]string) error {
	n, err := checkColumns("TfidfVectorizer.Fit", cols, 1)
	if err != nil {
		return err
	}

	tf := make(map[string]int)
	df := make(map[string]int)
	for _, doc := range cols[0] {
		seen := make(map[string]bool)
		for _, t := range v.Tokenize(doc) {
			tf[t]++
			if !seen[t] {
				df[t]++
				seen[t] = true
			}
		}
	}
	if len(tf) == 0 {
		return errors.NewValueError("TfidfVectorizer.Fit", "empty vocabulary; perhaps the documents only contain stop words")
	}

	terms := make([]string, 0, len(tf))
	for t := range tf {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	if v.MaxFeatures > 0 && len(terms) > v.MaxFeatures {
		sort.SliceStable(terms, func(i, j int) bool { return tf[terms[i]] > tf[terms[j]] })
		terms = terms[:v.MaxFeatures]
		sort.Strings(terms)
	}

	v.Terms = terms
	v.Idf = make([]float64, len(terms))
	for i, t := range terms {
		v.Idf[i] = math.Log(float64(1+n)/float64(1+df[t])) + 1
	}

	v.State.MarkFitted(1, n)
	return nil
}

// Vocabulary maps each term to its feature index.
func (v *TfidfVectorizer) Vocabulary() map[string]int {
	vocabulary := make(map[string]int, len(v.Terms))
	for i, t := range v.Terms {
		vocabulary[t] = i
	}
	return vocabulary
}

// Transform returns an n×len(Terms) matrix of tf-idf weights.
func (v *TfidfVectorizer) Transform(cols [][]string) (*mat.Dense, error) {
	if err := v.State.RequireFitted("TfidfVectorizer", "Transform"); err != nil {
		return nil, err
	}
	n, err := checkColumns("TfidfVectorizer.Transform", cols, 1)
	if err != nil {
		return nil, err
	}

	vocabulary := v.Vocabulary()
	out := mat.NewDense(n, len(v.Terms), nil)
	row := make([]float64, len(v.Terms))
	for i, doc := range cols[0] {
		for k := range row {
			row[k] = 0
		}
		for _, t := range v.Tokenize(doc) {
			if k, ok := vocabulary[t]; ok {
				row[k]++
			}
		}
		var norm float64
		for k := range row {
			row[k] *= v.Idf[k]
			norm += row[k] * row[k]
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for k := range row {
				row[k] /= norm
			}
		}
		out.SetRow(i, row)
	}
	return out, nil
}

// FeatureNames returns "<column>:<term>" for each vocabulary term.
func (v *TfidfVectorizer) FeatureNames(inputs []string) []string {
	prefix := "text"
	if len(inputs) > 0 {
		prefix = inputs[0]
	}
	names := make([]string, len(v.Terms))
	for i, t := range v.Terms {
		names[i] = prefix + ":" + t
	}
	return names
}
