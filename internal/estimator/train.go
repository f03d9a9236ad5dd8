package estimator

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/equilibri/equilibri-server/internal/feature"
)

// Family identifies a candidate estimator family.
type Family string

const (
	FamilyRandomForest  Family = "random_forest"
	FamilyGradientBoost Family = "gradient_boost"
)

// Config controls a training run.
type Config struct {
	Seed         int64
	MinExamples  int
	TestFraction float64
	Forest       ForestConfig
	Boost        BoostConfig
}

// DefaultConfig mirrors the hyperparameters the system was calibrated with.
func DefaultConfig() Config {
	return Config{
		Seed:         42,
		MinExamples:  50,
		TestFraction: 0.2,
		Forest: ForestConfig{
			NumTrees:      100,
			MaxDepth:      12,
			MinLeaf:       2,
			FeatureSubset: 3,
		},
		Boost: BoostConfig{
			Rounds:       100,
			LearningRate: 0.1,
			MaxDepth:     3,
			MinLeaf:      5,
		},
	}
}

// InsufficientDataError reports a training request below the configured
// example minimum.
type InsufficientDataError struct {
	Got, Min int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient training data: %d examples, need at least %d", e.Got, e.Min)
}

// TrainedModel is an immutable fitted estimator plus the schema it was
// trained against and its validation metric. Retraining produces a new
// TrainedModel, never an in-place update.
type TrainedModel struct {
	SchemaVersion int           `json:"schema_version"`
	NumFeatures   int           `json:"num_features"`
	Family        Family        `json:"family"`
	MAE           float64       `json:"mae"`
	NumExamples   int           `json:"num_examples"`
	TrainedAt     time.Time     `json:"trained_at"`
	Forest        *Forest       `json:"forest,omitempty"`
	Boost         *GradientBoost `json:"boost,omitempty"`
}

// Train fits both candidate families on an 80/20 split and keeps the one
// with the lowest validation MAE. On an exact tie the random forest wins
// (the simpler, faster family). The two fits are independent and run
// concurrently.
func Train(X [][]float64, y []float64, schemaVersion int, cfg Config) (*TrainedModel, error) {
	if len(X) != len(y) {
		return nil, fmt.Errorf("training inputs disagree: %d feature rows, %d labels", len(X), len(y))
	}
	if cfg.MinExamples <= 0 {
		cfg.MinExamples = DefaultConfig().MinExamples
	}
	if len(X) < cfg.MinExamples {
		return nil, &InsufficientDataError{Got: len(X), Min: cfg.MinExamples}
	}
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = DefaultConfig().TestFraction
	}

	// Shuffled split; rng state below is per-fit so the two families stay
	// independent and reproducible.
	perm := rand.New(rand.NewSource(cfg.Seed)).Perm(len(X))
	numTest := int(float64(len(X)) * cfg.TestFraction)
	if numTest < 1 {
		numTest = 1
	}

	trainX := make([][]float64, 0, len(X)-numTest)
	trainY := make([]float64, 0, len(X)-numTest)
	testX := make([][]float64, 0, numTest)
	testY := make([]float64, 0, numTest)
	for i, p := range perm {
		if i < numTest {
			testX = append(testX, X[p])
			testY = append(testY, y[p])
		} else {
			trainX = append(trainX, X[p])
			trainY = append(trainY, y[p])
		}
	}

	var forest *Forest
	var boost *GradientBoost
	var forestMAE, boostMAE float64

	var g errgroup.Group
	g.Go(func() error {
		forest = fitForest(trainX, trainY, cfg.Forest, rand.New(rand.NewSource(cfg.Seed+1)))
		forestMAE = meanAbsoluteError(forest.Predict, testX, testY)
		return nil
	})
	g.Go(func() error {
		boost = fitBoost(trainX, trainY, cfg.Boost, rand.New(rand.NewSource(cfg.Seed+2)))
		boostMAE = meanAbsoluteError(boost.Predict, testX, testY)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	model := &TrainedModel{
		SchemaVersion: schemaVersion,
		NumFeatures:   len(X[0]),
		NumExamples:   len(X),
		TrainedAt:     time.Now().UTC(),
	}
	if forestMAE <= boostMAE {
		model.Family = FamilyRandomForest
		model.MAE = forestMAE
		model.Forest = forest
	} else {
		model.Family = FamilyGradientBoost
		model.MAE = boostMAE
		model.Boost = boost
	}
	return model, nil
}

// Predict returns the bounded score for a feature vector. Raw regression
// output is clamped to [0, 100]. Predict never mutates the model, so a
// loaded model is safe to share across concurrent requests.
func (m *TrainedModel) Predict(x []float64) (float64, error) {
	if len(x) != m.NumFeatures {
		return 0, &feature.SchemaMismatchError{What: "feature vector width", Want: m.NumFeatures, Got: len(x)}
	}

	var raw float64
	switch m.Family {
	case FamilyRandomForest:
		raw = m.Forest.Predict(x)
	case FamilyGradientBoost:
		raw = m.Boost.Predict(x)
	default:
		return 0, fmt.Errorf("unknown estimator family %q", m.Family)
	}

	return math.Min(100, math.Max(0, raw)), nil
}

func meanAbsoluteError(predict func([]float64) float64, X [][]float64, y []float64) float64 {
	if len(X) == 0 {
		return 0
	}
	sum := 0.0
	for i := range X {
		sum += math.Abs(predict(X[i]) - y[i])
	}
	return sum / float64(len(X))
}
