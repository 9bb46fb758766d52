// Package tree implements CART regression trees.
package tree

import (
	"bytes"
	"encoding/gob"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/nycprice/core/model"
	"github.com/YuminosukeSato/nycprice/metrics"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

const (
	// SquaredError minimises the within-node variance and predicts the mean.
	SquaredError = "squared_error"
	// AbsoluteError minimises the mean absolute deviation and predicts the median.
	AbsoluteError = "absolute_error"
)

// leaves whose impurity is below this are not split further
const impurityEpsilon = 1e-12

// Node is one node of a fitted tree. Leaves have Left == Right == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int

	Value    float64
	Impurity float64
	// NSamples counts distinct training rows, WeightedNSamples counts them with
	// their bootstrap multiplicity.
	NSamples         int
	WeightedNSamples float64
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool { return n.Left < 0 }

// DecisionTreeRegressor is a CART regressor.
type DecisionTreeRegressor struct {
	state *model.StateManager

	criterion           string
	maxDepth            int
	minSamplesSplit     int
	minSamplesLeaf      int
	maxFeatures         int
	randomState         int64
	minImpurityDecrease float64

	nodes       []Node
	importances []float64
	depth       int
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithCriterion sets the split criterion: "squared_error" or "absolute_error".
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeRegressor) { dt.criterion = criterion }
}

// WithMaxDepth limits the depth of the tree. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeRegressor) { dt.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of rows needed to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeRegressor) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of rows in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeRegressor) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are drawn at each split. 0 means all.
func WithMaxFeatures(n int) Option {
	return func(dt *DecisionTreeRegressor) { dt.maxFeatures = n }
}

// WithRandomState seeds the feature sampling. A negative seed draws a random one.
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeRegressor) { dt.randomState = seed }
}

// WithMinImpurityDecrease only keeps splits that reduce the weighted impurity by at
// least v.
func WithMinImpurityDecrease(v float64) Option {
	return func(dt *DecisionTreeRegressor) { dt.minImpurityDecrease = v }
}

// NewDecisionTreeRegressor creates a tree with scikit-learn's defaults.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		state:           model.NewStateManager(),
		criterion:       SquaredError,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeRegressor) validate() error {
	switch {
	case dt.criterion != SquaredError && dt.criterion != AbsoluteError:
		return errors.NewValidationError("criterion", "must be squared_error or absolute_error", dt.criterion)
	case dt.maxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", dt.maxDepth)
	case dt.minSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be >= 2", dt.minSamplesSplit)
	case dt.minSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", dt.minSamplesLeaf)
	case dt.maxFeatures < 0:
		return errors.NewValidationError("max_features", "must be >= 0", dt.maxFeatures)
	case dt.minImpurityDecrease < 0:
		return errors.NewValidationError("min_impurity_decrease", "must be >= 0", dt.minImpurityDecrease)
	}
	return nil
}

// Fit grows the tree on every row of X.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	rows, _ := X.Dims()
	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	return dt.FitWeighted(X, y, idx)
}

// FitWeighted grows the tree on the rows listed in sampleIdx. A row listed k times
// weighs k, which is how bootstrap samples are fitted.
func (dt *DecisionTreeRegressor) FitWeighted(X, y mat.Matrix, sampleIdx []int) error {
	if err := dt.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != rows {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", 1, yCols, 1)
	}
	if len(sampleIdx) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty sample", errors.ErrEmptyData)
	}

	b := &builder{
		dt:       dt,
		cols:     cols,
		xs:       make([][]float64, cols),
		y:        make([]float64, rows),
		w:        make([]float64, rows),
		features: make([]int, cols),
	}
	for j := 0; j < cols; j++ {
		b.xs[j] = make([]float64, rows)
		b.features[j] = j
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			b.xs[j][i] = X.At(i, j)
		}
		b.y[i] = y.At(i, 0)
	}
	for j := range b.xs {
		if err := errors.CheckFinite("DecisionTreeRegressor.Fit", j, b.xs[j]); err != nil {
			return err
		}
	}
	if err := errors.CheckFinite("DecisionTreeRegressor.Fit", errors.TargetColumn, b.y); err != nil {
		return err
	}

	var unique []int
	for _, i := range sampleIdx {
		if i < 0 || i >= rows {
			return errors.NewValidationError("sampleIdx", "index out of range", i)
		}
		if b.w[i] == 0 {
			unique = append(unique, i)
		}
		b.w[i]++
	}
	for _, i := range unique {
		b.totalWeight += b.w[i]
	}

	seed := uint64(dt.randomState)
	if dt.randomState < 0 {
		seed = rand.Uint64()
	}
	b.rng = rand.New(rand.NewPCG(seed, seed))

	dt.nodes = dt.nodes[:0]
	dt.importances = make([]float64, cols)
	dt.depth = 0
	b.build(unique, 0)

	var total float64
	for _, v := range dt.importances {
		total += v
	}
	if total > 0 {
		for j := range dt.importances {
			dt.importances[j] /= total
		}
	}

	dt.state.MarkFitted(cols, len(unique))
	return nil
}

type builder struct {
	dt          *DecisionTreeRegressor
	cols        int
	xs          [][]float64
	y           []float64
	w           []float64
	totalWeight float64
	features    []int
	rng         *rand.Rand
}

type split struct {
	feature     int
	threshold   float64
	pos         int
	order       []int
	improvement float64
	found       bool
}

func (b *builder) build(idx []int, depth int) int {
	dt := b.dt
	value, impurity, wN := b.nodeStats(idx)

	nodeID := len(dt.nodes)
	dt.nodes = append(dt.nodes, Node{
		Feature:          -1,
		Left:             -1,
		Right:            -1,
		Value:            value,
		Impurity:         impurity,
		NSamples:         len(idx),
		WeightedNSamples: wN,
	})
	if depth > dt.depth {
		dt.depth = depth
	}

	if (dt.maxDepth > 0 && depth >= dt.maxDepth) ||
		len(idx) < dt.minSamplesSplit ||
		len(idx) < 2*dt.minSamplesLeaf ||
		impurity <= impurityEpsilon {
		return nodeID
	}

	best := b.findBestSplit(idx, impurity, wN)
	if !best.found {
		return nodeID
	}

	left := append([]int(nil), best.order[:best.pos]...)
	right := append([]int(nil), best.order[best.pos:]...)
	_, impL, wL := b.nodeStats(left)
	_, impR, wR := b.nodeStats(right)
	decrease := wN/b.totalWeight*impurity - wL/b.totalWeight*impL - wR/b.totalWeight*impR
	if decrease < dt.minImpurityDecrease {
		return nodeID
	}
	dt.importances[best.feature] += wN*impurity - wL*impL - wR*impR

	dt.nodes[nodeID].Feature = best.feature
	dt.nodes[nodeID].Threshold = best.threshold
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	dt.nodes[nodeID].Left = l
	dt.nodes[nodeID].Right = r
	return nodeID
}

// findBestSplit visits features in random order and stops once maxFeatures have been
// tried, continuing past constant features until a valid split exists.
func (b *builder) findBestSplit(idx []int, impurity, wN float64) split {
	maxFeatures := b.dt.maxFeatures
	if maxFeatures == 0 || maxFeatures > b.cols {
		maxFeatures = b.cols
	}
	b.rng.Shuffle(len(b.features), func(i, j int) {
		b.features[i], b.features[j] = b.features[j], b.features[i]
	})

	var best split
	visited := 0
	for _, f := range b.features {
		if visited >= maxFeatures && best.found {
			break
		}
		s, constant := b.splitFeature(idx, f, impurity, wN)
		if constant {
			continue
		}
		visited++
		if s.found && (!best.found || s.improvement > best.improvement) {
			best = s
		}
	}
	return best
}

// splitFeature sorts idx by feature f and sweeps the split positions.
func (b *builder) splitFeature(idx []int, f int, impurity, wN float64) (split, bool) {
	x := b.xs[f]
	order := append([]int(nil), idx...)
	sort.SliceStable(order, func(i, j int) bool { return x[order[i]] < x[order[j]] })
	if x[order[0]] == x[order[len(order)-1]] {
		return split{}, true
	}

	minLeaf := b.dt.minSamplesLeaf
	best := split{feature: f, order: order}

	if b.dt.criterion == SquaredError {
		var sumAll float64
		for _, i := range order {
			sumAll += b.w[i] * b.y[i]
		}
		var sumL, wL float64
		for p := 0; p < len(order)-1; p++ {
			i := order[p]
			sumL += b.w[i] * b.y[i]
			wL += b.w[i]
			if x[i] == x[order[p+1]] {
				continue
			}
			if p+1 < minLeaf || len(order)-p-1 < minLeaf {
				continue
			}
			sumR := sumAll - sumL
			wR := wN - wL
			// maximising this proxy maximises the variance reduction
			proxy := sumL*sumL/wL + sumR*sumR/wR
			if !best.found || proxy > best.improvement {
				best.found = true
				best.improvement = proxy
				best.pos = p + 1
				best.threshold = midpoint(x[i], x[order[p+1]])
			}
		}
		return best, false
	}

	for p := 0; p < len(order)-1; p++ {
		i := order[p]
		if x[i] == x[order[p+1]] {
			continue
		}
		if p+1 < minLeaf || len(order)-p-1 < minLeaf {
			continue
		}
		_, impL, wL := b.nodeStats(order[:p+1])
		_, impR, wR := b.nodeStats(order[p+1:])
		gain := wN*impurity - wL*impL - wR*impR
		if !best.found || gain > best.improvement {
			best.found = true
			best.improvement = gain
			best.pos = p + 1
			best.threshold = midpoint(x[i], x[order[p+1]])
		}
	}
	return best, false
}

func midpoint(a, b float64) float64 {
	m := a/2 + b/2
	if m == b || math.IsInf(m, 0) {
		return a
	}
	return m
}

// nodeStats returns the prediction, impurity and total weight of idx.
func (b *builder) nodeStats(idx []int) (value, impurity, weight float64) {
	if b.dt.criterion == SquaredError {
		var sum, sumSq float64
		for _, i := range idx {
			w := b.w[i]
			weight += w
			sum += w * b.y[i]
			sumSq += w * b.y[i] * b.y[i]
		}
		value = sum / weight
		impurity = sumSq/weight - value*value
		if impurity < 0 {
			impurity = 0
		}
		return value, impurity, weight
	}

	for _, i := range idx {
		weight += b.w[i]
	}
	value = b.weightedMedian(idx, weight)
	for _, i := range idx {
		impurity += b.w[i] * math.Abs(b.y[i]-value)
	}
	return value, impurity / weight, weight
}

func (b *builder) weightedMedian(idx []int, weight float64) float64 {
	sorted := append([]int(nil), idx...)
	sort.Slice(sorted, func(i, j int) bool { return b.y[sorted[i]] < b.y[sorted[j]] })
	half := weight / 2
	var cum float64
	for k, i := range sorted {
		cum += b.w[i]
		if cum > half {
			return b.y[i]
		}
		if cum == half && k+1 < len(sorted) {
			return (b.y[i] + b.y[sorted[k+1]]) / 2
		}
	}
	return b.y[sorted[len(sorted)-1]]
}

// Predict returns an n×1 matrix of leaf values.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := dt.state.RequireFeatures("DecisionTreeRegressor.Predict", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, dt.predictRow(X, i))
	}
	return out, nil
}

// PredictRow returns the prediction for row i of X without the fitted and shape
// checks of Predict. The forest calls it per row after checking X once.
func (dt *DecisionTreeRegressor) PredictRow(X mat.Matrix, i int) float64 {
	return dt.predictRow(X, i)
}

func (dt *DecisionTreeRegressor) predictRow(X mat.Matrix, i int) float64 {
	n := &dt.nodes[0]
	for !n.IsLeaf() {
		if X.At(i, n.Feature) <= n.Threshold {
			n = &dt.nodes[n.Left]
		} else {
			n = &dt.nodes[n.Right]
		}
	}
	return n.Value
}

// Score returns the R² of the predictions for X.
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	r, err := metrics.RegressionReport(y, pred)
	if err != nil {
		return 0, err
	}
	return r.R2, nil
}

// GetFeatureImportances returns the normalised total impurity decrease per feature.
func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.importances...)
}

// GetDepth returns the depth of the deepest leaf.
func (dt *DecisionTreeRegressor) GetDepth() int { return dt.depth }

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeRegressor) GetNLeaves() int {
	n := 0
	for i := range dt.nodes {
		if dt.nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// Nodes returns the fitted nodes; node 0 is the root.
func (dt *DecisionTreeRegressor) Nodes() []Node {
	return append([]Node(nil), dt.nodes...)
}

// IsFitted reports whether Fit has completed.
func (dt *DecisionTreeRegressor) IsFitted() bool { return dt.state.IsFitted() }

// GetParams returns the hyperparameters keyed as in scikit-learn.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":             dt.criterion,
		"max_depth":             dt.maxDepth,
		"min_samples_split":     dt.minSamplesSplit,
		"min_samples_leaf":      dt.minSamplesLeaf,
		"max_features":          dt.maxFeatures,
		"random_state":          dt.randomState,
		"min_impurity_decrease": dt.minImpurityDecrease,
	}
}

// SetParams updates hyperparameters. Unknown keys and wrong types are rejected.
func (dt *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var ok bool
		switch k {
		case "criterion":
			dt.criterion, ok = v.(string)
		case "max_depth":
			dt.maxDepth, ok = asInt(v)
		case "min_samples_split":
			dt.minSamplesSplit, ok = asInt(v)
		case "min_samples_leaf":
			dt.minSamplesLeaf, ok = asInt(v)
		case "max_features":
			dt.maxFeatures, ok = asInt(v)
		case "random_state":
			var s int
			s, ok = asInt(v)
			dt.randomState = int64(s)
		case "min_impurity_decrease":
			dt.minImpurityDecrease, ok = asFloat(v)
		default:
			return errors.NewValidationError(k, "unknown parameter", v)
		}
		if !ok {
			return errors.NewValidationError(k, "wrong type", v)
		}
	}
	return dt.validate()
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// treeParams is a struct, not the GetParams map: gob writes map entries in
// random order and model.gob must be byte-stable.
type treeParams struct {
	Criterion           string
	MaxDepth            int
	MinSamplesSplit     int
	MinSamplesLeaf      int
	MaxFeatures         int
	RandomState         int64
	MinImpurityDecrease float64
}

// snapshot is the gob form of a fitted tree.
type snapshot struct {
	Params      treeParams
	Nodes       []Node
	Importances []float64
	Depth       int
	NFeatures   int
	NSamples    int
	Fitted      bool
}

// GobEncode implements gob.GobEncoder.
func (dt *DecisionTreeRegressor) GobEncode() ([]byte, error) {
	nf, ns := dt.state.Dims()
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(snapshot{
		Params: treeParams{
			Criterion:           dt.criterion,
			MaxDepth:            dt.maxDepth,
			MinSamplesSplit:     dt.minSamplesSplit,
			MinSamplesLeaf:      dt.minSamplesLeaf,
			MaxFeatures:         dt.maxFeatures,
			RandomState:         dt.randomState,
			MinImpurityDecrease: dt.minImpurityDecrease,
		},
		Nodes:       dt.nodes,
		Importances: dt.importances,
		Depth:       dt.depth,
		NFeatures:   nf,
		NSamples:    ns,
		Fitted:      dt.state.IsFitted(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode tree")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (dt *DecisionTreeRegressor) GobDecode(data []byte) error {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return errors.Wrap(err, "decode tree")
	}
	*dt = *NewDecisionTreeRegressor()
	p := s.Params
	dt.criterion, dt.maxDepth = p.Criterion, p.MaxDepth
	dt.minSamplesSplit, dt.minSamplesLeaf = p.MinSamplesSplit, p.MinSamplesLeaf
	dt.maxFeatures, dt.randomState = p.MaxFeatures, p.RandomState
	dt.minImpurityDecrease = p.MinImpurityDecrease
	if err := dt.validate(); err != nil {
		return err
	}
	dt.nodes = s.Nodes
	dt.importances = s.Importances
	dt.depth = s.Depth
	if s.Fitted {
		dt.state.MarkFitted(s.NFeatures, s.NSamples)
	}
	return nil
}
