// Package trainer runs the full training pipeline: synthetic dataset
// generation, feature encoding, model selection, and artifact persistence.
package trainer

import (
	"fmt"
	"log"
	"time"

	"github.com/equilibri/equilibri-server/internal/estimator"
	"github.com/equilibri/equilibri-server/internal/feature"
	"github.com/equilibri/equilibri-server/internal/synth"
)

// DefaultDays is the calibrated dataset size for a stable model.
const DefaultDays = 1500

// Options configure one training run.
type Options struct {
	Days      int
	Seed      int64
	Weights   map[synth.ProfileName]float64
	ModelPath string
	// DatasetPath, when set, also exports the generated days as a JSON
	// dataset file.
	DatasetPath string
	Estimator   estimator.Config
}

// Summary describes a completed training run.
type Summary struct {
	Family        estimator.Family `json:"family"`
	MAE           float64          `json:"mae"`
	SchemaVersion int              `json:"schema_version"`
	NumExamples   int              `json:"num_examples"`
	Duration      time.Duration    `json:"-"`
	DurationMS    int64            `json:"duration_ms"`
}

// Run executes the pipeline and atomically replaces the model artifact.
// On any failure no artifact is written.
func Run(opts Options) (*Summary, error) {
	start := time.Now()

	if opts.Days <= 0 {
		opts.Days = DefaultDays
	}
	if opts.ModelPath == "" {
		return nil, fmt.Errorf("training: model path is required")
	}
	if opts.Estimator.Forest.NumTrees == 0 {
		opts.Estimator = estimator.DefaultConfig()
		opts.Estimator.Seed = opts.Seed
	}

	log.Printf("Generating %d days of synthetic health data (seed %d)", opts.Days, opts.Seed)
	builder := synth.NewBuilder(synth.BuilderConfig{Seed: opts.Seed, Weights: opts.Weights})
	examples := builder.Build(opts.Days)

	enc := feature.NewEncoder()
	X := make([][]float64, len(examples))
	y := make([]float64, len(examples))
	for i, ex := range examples {
		X[i] = enc.Encode(ex.Record)
		y[i] = ex.Score
	}

	log.Printf("Training candidate estimators on %d examples", len(examples))
	model, err := estimator.Train(X, y, enc.Version(), opts.Estimator)
	if err != nil {
		return nil, fmt.Errorf("training model: %w", err)
	}
	log.Printf("Selected %s (validation MAE %.2f)", model.Family, model.MAE)

	if opts.DatasetPath != "" {
		if err := synth.WriteDatasetFile(opts.DatasetPath, examples); err != nil {
			return nil, err
		}
		log.Printf("Dataset written to %s", opts.DatasetPath)
	}

	if err := model.Save(opts.ModelPath); err != nil {
		return nil, err
	}
	log.Printf("Model artifact written to %s", opts.ModelPath)

	elapsed := time.Since(start)
	return &Summary{
		Family:        model.Family,
		MAE:           model.MAE,
		SchemaVersion: model.SchemaVersion,
		NumExamples:   model.NumExamples,
		Duration:      elapsed,
		DurationMS:    elapsed.Milliseconds(),
	}, nil
}
