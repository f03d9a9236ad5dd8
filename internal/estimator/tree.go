// Package estimator implements the regression estimators behind the health
// score: a random forest and a gradient-boosted ensemble over CART-style
// regression trees, plus model selection and artifact persistence.
package estimator

import (
	"fmt"
	"math/rand"
	"sort"
)

// treeNode is one node of a regression tree in array form. Internal nodes
// route on Feature <= Threshold; leaves carry the prediction in Value.
type treeNode struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Feature   int     `json:"f,omitempty"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v,omitempty"`
}

type regressionTree struct {
	Nodes []treeNode `json:"nodes"`
}

type treeConfig struct {
	maxDepth int
	minLeaf  int
	// featureSubset caps the number of features considered per split;
	// 0 means all features (boosting uses all, forests subsample).
	featureSubset int
}

// growTree fits a regression tree on the rows selected by idx, splitting on
// variance reduction.
func growTree(X [][]float64, y []float64, idx []int, cfg treeConfig, rng *rand.Rand) *regressionTree {
	t := &regressionTree{}
	t.build(X, y, idx, 0, cfg, rng)
	return t
}

// build appends the subtree for idx and returns its root node index.
func (t *regressionTree) build(X [][]float64, y []float64, idx []int, depth int, cfg treeConfig, rng *rand.Rand) int {
	if depth >= cfg.maxDepth || len(idx) < 2*cfg.minLeaf {
		return t.leaf(mean(y, idx))
	}

	feat, threshold, ok := bestSplit(X, y, idx, cfg, rng)
	if !ok {
		return t.leaf(mean(y, idx))
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feat] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < cfg.minLeaf || len(right) < cfg.minLeaf {
		return t.leaf(mean(y, idx))
	}

	// Reserve the internal node before recursing so children land after it.
	node := len(t.Nodes)
	t.Nodes = append(t.Nodes, treeNode{Feature: feat, Threshold: threshold})
	t.Nodes[node].Left = t.build(X, y, left, depth+1, cfg, rng)
	t.Nodes[node].Right = t.build(X, y, right, depth+1, cfg, rng)
	return node
}

func (t *regressionTree) leaf(value float64) int {
	t.Nodes = append(t.Nodes, treeNode{Leaf: true, Value: value})
	return len(t.Nodes) - 1
}

func (t *regressionTree) predict(x []float64) float64 {
	i := 0
	for {
		node := &t.Nodes[i]
		if node.Leaf {
			return node.Value
		}
		if x[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}

// validate checks a deserialized tree before it can be walked: it must have
// at least one node, feature indices must fit the schema width, and child
// indices must point forward within the array (build always places children
// after their parent, so a forward walk terminates).
func (t *regressionTree) validate(numFeatures int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	for i, node := range t.Nodes {
		if node.Leaf {
			continue
		}
		if node.Feature < 0 || node.Feature >= numFeatures {
			return fmt.Errorf("node %d splits on feature %d, schema has %d", i, node.Feature, numFeatures)
		}
		if node.Left <= i || node.Left >= len(t.Nodes) {
			return fmt.Errorf("node %d has out-of-range left child %d", i, node.Left)
		}
		if node.Right <= i || node.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has out-of-range right child %d", i, node.Right)
		}
	}
	return nil
}

// bestSplit scans candidate features for the split with the largest sum-of-
// squared-error reduction. Returns ok=false when no split improves on the
// parent (e.g. constant targets or constant features).
func bestSplit(X [][]float64, y []float64, idx []int, cfg treeConfig, rng *rand.Rand) (int, float64, bool) {
	numFeatures := len(X[idx[0]])
	candidates := candidateFeatures(numFeatures, cfg.featureSubset, rng)

	type pair struct{ v, y float64 }
	pairs := make([]pair, len(idx))

	bestGain := 1e-12
	bestFeat, bestThreshold := -1, 0.0

	var totalSum, totalSq float64
	for _, i := range idx {
		totalSum += y[i]
		totalSq += y[i] * y[i]
	}
	n := float64(len(idx))
	parentSSE := totalSq - totalSum*totalSum/n

	for _, feat := range candidates {
		for j, i := range idx {
			pairs[j] = pair{v: X[i][feat], y: y[i]}
		}
		sort.Slice(pairs, func(a, b int) bool { return pairs[a].v < pairs[b].v })

		var leftSum, leftSq float64
		for j := 0; j < len(pairs)-1; j++ {
			leftSum += pairs[j].y
			leftSq += pairs[j].y * pairs[j].y
			if pairs[j].v == pairs[j+1].v {
				continue
			}

			nl := float64(j + 1)
			nr := n - nl
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			childSSE := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)

			if gain := parentSSE - childSSE; gain > bestGain {
				bestGain = gain
				bestFeat = feat
				bestThreshold = (pairs[j].v + pairs[j+1].v) / 2
			}
		}
	}

	if bestFeat < 0 {
		return 0, 0, false
	}
	return bestFeat, bestThreshold, true
}

func candidateFeatures(numFeatures, subset int, rng *rand.Rand) []int {
	if subset <= 0 || subset >= numFeatures {
		all := make([]int, numFeatures)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return rng.Perm(numFeatures)[:subset]
}

func mean(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}
