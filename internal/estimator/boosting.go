package estimator

import "math/rand"

// BoostConfig holds gradient boosting hyperparameters.
type BoostConfig struct {
	Rounds       int     `json:"rounds"`
	LearningRate float64 `json:"learning_rate"`
	MaxDepth     int     `json:"max_depth"`
	MinLeaf      int     `json:"min_leaf"`
}

// GradientBoost is a stage-wise ensemble of shallow regression trees fitted
// to residuals, starting from the target mean.
type GradientBoost struct {
	Config BoostConfig       `json:"config"`
	Base   float64           `json:"base"`
	Trees  []*regressionTree `json:"trees"`
}

func fitBoost(X [][]float64, y []float64, cfg BoostConfig, rng *rand.Rand) *GradientBoost {
	n := len(X)
	g := &GradientBoost{Config: cfg, Trees: make([]*regressionTree, 0, cfg.Rounds)}

	idx := make([]int, n)
	pred := make([]float64, n)
	sum := 0.0
	for i := range y {
		idx[i] = i
		sum += y[i]
	}
	g.Base = sum / float64(n)
	for i := range pred {
		pred[i] = g.Base
	}

	tc := treeConfig{maxDepth: cfg.MaxDepth, minLeaf: cfg.MinLeaf}
	residual := make([]float64, n)
	for round := 0; round < cfg.Rounds; round++ {
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}
		tree := growTree(X, residual, idx, tc, rng)
		g.Trees = append(g.Trees, tree)
		for i := range pred {
			pred[i] += cfg.LearningRate * tree.predict(X[i])
		}
	}
	return g
}

// Predict returns the boosted prediction for x.
func (g *GradientBoost) Predict(x []float64) float64 {
	out := g.Base
	for _, t := range g.Trees {
		out += g.Config.LearningRate * t.predict(x)
	}
	return out
}
