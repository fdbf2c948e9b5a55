// Package model implements a gradient-boosted decision tree classifier with
// logistic loss and second-order (Newton) leaf weights.
package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrNoTrainingData  = errors.New("no training rows")
	ErrSingleClass     = errors.New("training target has a single class")
	ErrFeatureMismatch = errors.New("feature matrix shape mismatch")
	ErrInvalidValue    = errors.New("non-finite feature value")
	ErrNotFitted       = errors.New("classifier is not fitted")
)

// Classifier is a binary probabilistic classifier. Targets are 0 or 1 and
// PredictProba returns P(y=1) per row.
type Classifier interface {
	Fit(X [][]float64, y []int) error
	PredictProba(X [][]float64) ([]float64, error)
}

type Config struct {
	Trees          int
	LearningRate   float64
	MaxDepth       int
	MinChildWeight float64
	Lambda         float64 // L2 penalty on leaf weights
	Gamma          float64 // minimum gain to split
	Subsample      float64 // row fraction per tree
	ColSample      float64 // feature fraction per tree
	Seed           uint64
}

func DefaultConfig() Config {
	return Config{
		Trees:          100,
		LearningRate:   0.1,
		MaxDepth:       4,
		MinChildWeight: 1,
		Lambda:         1,
		Subsample:      1,
		ColSample:      1,
		Seed:           42,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Trees < 1:
		return fmt.Errorf("trees must be at least 1, got %d", c.Trees)
	case c.LearningRate <= 0 || c.LearningRate > 1:
		return fmt.Errorf("learning rate must be in (0,1], got %g", c.LearningRate)
	case c.MaxDepth < 1:
		return fmt.Errorf("max depth must be at least 1, got %d", c.MaxDepth)
	case c.MinChildWeight < 0:
		return fmt.Errorf("min child weight must be non-negative, got %g", c.MinChildWeight)
	case c.Lambda < 0:
		return fmt.Errorf("lambda must be non-negative, got %g", c.Lambda)
	case c.Subsample <= 0 || c.Subsample > 1:
		return fmt.Errorf("subsample must be in (0,1], got %g", c.Subsample)
	case c.ColSample <= 0 || c.ColSample > 1:
		return fmt.Errorf("colsample must be in (0,1], got %g", c.ColSample)
	}
	return nil
}

type node struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      int
	right     int
}

type tree struct {
	nodes []node
}

func (t *tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.nodes[i]
		if n.leaf {
			return n.value
		}
		if x[n.feature] < n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

// GradientBoosting is not safe for concurrent Fit calls. With Subsample and
// ColSample at 1 fitting is fully deterministic; otherwise Seed fixes the
// sampling sequence.
type GradientBoosting struct {
	cfg        Config
	trees      []tree
	nFeatures  int
	base       float64
	importance []float64
}

func NewGradientBoosting(cfg Config) *GradientBoosting {
	return &GradientBoosting{cfg: cfg}
}

func (m *GradientBoosting) Config() Config { return m.cfg }

func validateMatrix(X [][]float64) (int, error) {
	if len(X) == 0 {
		return 0, ErrNoTrainingData
	}
	width := len(X[0])
	if width == 0 {
		return 0, fmt.Errorf("%w: zero features", ErrFeatureMismatch)
	}
	for i, row := range X {
		if len(row) != width {
			return 0, fmt.Errorf("%w: row %d has %d features, want %d", ErrFeatureMismatch, i, len(row), width)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("%w: row %d feature %d", ErrInvalidValue, i, j)
			}
		}
	}
	return width, nil
}

func (m *GradientBoosting) Fit(X [][]float64, y []int) error {
	if err := m.cfg.Validate(); err != nil {
		return err
	}
	width, err := validateMatrix(X)
	if err != nil {
		return err
	}
	if len(y) != len(X) {
		return fmt.Errorf("%w: %d rows, %d targets", ErrFeatureMismatch, len(X), len(y))
	}
	var positives int
	for i, v := range y {
		switch v {
		case 0:
		case 1:
			positives++
		default:
			return fmt.Errorf("target %d at row %d is not 0 or 1", v, i)
		}
	}
	if positives == 0 || positives == len(y) {
		return ErrSingleClass
	}

	n := len(X)
	m.nFeatures = width
	m.trees = m.trees[:0]
	m.base = 0
	m.importance = make([]float64, width)

	// presorted row order per feature, reused by every split search
	order := make([][]int, width)
	for f := 0; f < width; f++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return X[idx[a]][f] < X[idx[b]][f] })
		order[f] = idx
	}

	rng := rand.New(rand.NewPCG(m.cfg.Seed, m.cfg.Seed^0x9e3779b97f4a7c15))
	margin := make([]float64, n)
	grad := make([]float64, n)
	hess := make([]float64, n)
	nodeOf := make([]int, n)

	for t := 0; t < m.cfg.Trees; t++ {
		for i := range margin {
			p := sigmoid(margin[i])
			grad[i] = p - float64(y[i])
			hess[i] = math.Max(p*(1-p), 1e-16)
		}

		for i := range nodeOf {
			nodeOf[i] = 0
			if m.cfg.Subsample < 1 && rng.Float64() >= m.cfg.Subsample {
				nodeOf[i] = -1
			}
		}
		features := m.sampleFeatures(rng, width)

		b := &builder{
			cfg: m.cfg, X: X, grad: grad, hess: hess,
			order: order, features: features, nodeOf: nodeOf,
			importance: m.importance,
		}
		tr := b.build()
		for i := range margin {
			margin[i] += tr.predict(X[i])
		}
		m.trees = append(m.trees, tr)
	}
	return nil
}

func (m *GradientBoosting) sampleFeatures(rng *rand.Rand, width int) []int {
	all := make([]int, width)
	for i := range all {
		all[i] = i
	}
	if m.cfg.ColSample >= 1 {
		return all
	}
	k := int(math.Max(1, math.Round(m.cfg.ColSample*float64(width))))
	rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	picked := all[:k]
	sort.Ints(picked)
	return picked
}

func (m *GradientBoosting) PredictProba(X [][]float64) ([]float64, error) {
	if len(m.trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != m.nFeatures {
			return nil, fmt.Errorf("%w: row %d has %d features, model has %d", ErrFeatureMismatch, i, len(row), m.nFeatures)
		}
		z := m.base
		for k := range m.trees {
			z += m.trees[k].predict(row)
		}
		out[i] = sigmoid(z)
	}
	return out, nil
}

// Importance returns the total split gain per feature from the last Fit.
func (m *GradientBoosting) Importance() []float64 {
	return append([]float64(nil), m.importance...)
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

type builder struct {
	cfg        Config
	X          [][]float64
	grad, hess []float64
	order      [][]int
	features   []int
	nodeOf     []int
	importance []float64
	nodes      []node
}

type split struct {
	gain      float64
	feature   int
	threshold float64
}

func (b *builder) build() tree {
	b.nodes = []node{{}}
	b.grow(0, 0)
	return tree{nodes: b.nodes}
}

func (b *builder) members(id int) []int {
	var rows []int
	for i, n := range b.nodeOf {
		if n == id {
			rows = append(rows, i)
		}
	}
	return rows
}

func (b *builder) grow(id, depth int) {
	rows := b.members(id)
	g := make([]float64, len(rows))
	h := make([]float64, len(rows))
	for k, i := range rows {
		g[k] = b.grad[i]
		h[k] = b.hess[i]
	}
	G, H := floats.Sum(g), floats.Sum(h)

	leaf := node{leaf: true, value: -G / (H + b.cfg.Lambda) * b.cfg.LearningRate}
	if depth >= b.cfg.MaxDepth || len(rows) < 2 {
		b.nodes[id] = leaf
		return
	}

	best, ok := b.bestSplit(id, G, H)
	if !ok {
		b.nodes[id] = leaf
		return
	}
	b.importance[best.feature] += best.gain

	left := len(b.nodes)
	right := left + 1
	b.nodes = append(b.nodes, node{}, node{})
	b.nodes[id] = node{feature: best.feature, threshold: best.threshold, left: left, right: right}
	for _, i := range rows {
		if b.X[i][best.feature] < best.threshold {
			b.nodeOf[i] = left
		} else {
			b.nodeOf[i] = right
		}
	}
	b.grow(left, depth+1)
	b.grow(right, depth+1)
}

// bestSplit scans every sampled feature in presorted order and keeps the
// first split with the highest gain, so ties resolve deterministically.
func (b *builder) bestSplit(id int, G, H float64) (split, bool) {
	lambda := b.cfg.Lambda
	parent := G * G / (H + lambda)
	best := split{gain: 0}
	found := false

	for _, f := range b.features {
		var GL, HL float64
		prev := math.NaN()
		for _, i := range b.order[f] {
			if b.nodeOf[i] != id {
				continue
			}
			v := b.X[i][f]
			if !math.IsNaN(prev) && v > prev && HL >= b.cfg.MinChildWeight && H-HL >= b.cfg.MinChildWeight {
				GR, HR := G-GL, H-HL
				gain := 0.5*(GL*GL/(HL+lambda)+GR*GR/(HR+lambda)-parent) - b.cfg.Gamma
				if gain > best.gain+1e-12 {
					best = split{gain: gain, feature: f, threshold: prev + (v-prev)/2}
					found = true
				}
			}
			GL += b.grad[i]
			HL += b.hess[i]
			prev = v
		}
	}
	return best, found
}
