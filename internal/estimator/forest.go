package estimator

import "math/rand"

// ForestConfig holds random forest hyperparameters.
type ForestConfig struct {
	NumTrees      int `json:"num_trees"`
	MaxDepth      int `json:"max_depth"`
	MinLeaf       int `json:"min_leaf"`
	FeatureSubset int `json:"feature_subset"`
}

// Forest is a bagged ensemble of regression trees; the prediction is the
// mean over trees.
type Forest struct {
	Config ForestConfig      `json:"config"`
	Trees  []*regressionTree `json:"trees"`
}

func fitForest(X [][]float64, y []float64, cfg ForestConfig, rng *rand.Rand) *Forest {
	n := len(X)
	f := &Forest{Config: cfg, Trees: make([]*regressionTree, 0, cfg.NumTrees)}

	tc := treeConfig{maxDepth: cfg.MaxDepth, minLeaf: cfg.MinLeaf, featureSubset: cfg.FeatureSubset}
	for i := 0; i < cfg.NumTrees; i++ {
		// Bootstrap sample with replacement.
		idx := make([]int, n)
		for j := range idx {
			idx[j] = rng.Intn(n)
		}
		f.Trees = append(f.Trees, growTree(X, y, idx, tc, rng))
	}
	return f
}

// Predict returns the ensemble mean for x.
func (f *Forest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range f.Trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.Trees))
}
