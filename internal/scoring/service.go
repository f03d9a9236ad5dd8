// Package scoring is the public entry point of the pipeline: it validates
// raw daily input, encodes it, and turns model output into a bounded score
// with a category label.
package scoring

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/equilibri/equilibri-server/internal/estimator"
	"github.com/equilibri/equilibri-server/internal/feature"
	"github.com/equilibri/equilibri-server/internal/record"
	"github.com/equilibri/equilibri-server/internal/synth"
)

// Category is the coarse wellness band for a score.
type Category string

const (
	CategoryGood Category = "good"
	CategoryFair Category = "fair"
	CategoryPoor Category = "poor"
)

// Categorize maps a score to its band: good >= 70, fair 50-69, poor < 50.
// The thresholds match the ground-truth formula's bands so training labels
// and inference categories stay consistent.
func Categorize(score float64) Category {
	switch {
	case score >= synth.GoodThreshold:
		return CategoryGood
	case score >= synth.FairThreshold:
		return CategoryFair
	default:
		return CategoryPoor
	}
}

// ErrModelNotLoaded is returned when scoring is requested before a model
// artifact has been loaded successfully.
var ErrModelNotLoaded = errors.New("no trained model loaded")

// Result is a successful scoring outcome. A Result is only ever returned
// without an error; the service never reports both.
type Result struct {
	Score         float64        `json:"score"`
	Category      Category       `json:"category"`
	SubScores     map[string]int `json:"sub_scores"`
	ClampedFields []string       `json:"clamped_fields,omitempty"`
	PostureScore  *float64       `json:"posture_score,omitempty"`
}

// Service owns the loaded TrainedModel for its process lifetime. The model
// is read-only between reloads, so concurrent Score calls share it without
// contention; the lock only guards reload swaps.
type Service struct {
	modelPath string
	enc       *feature.Encoder

	mu    sync.RWMutex
	model *estimator.TrainedModel
}

func NewService(modelPath string) *Service {
	return &Service{
		modelPath: modelPath,
		enc:       feature.NewEncoder(),
	}
}

// LoadModel loads (or reloads, after a retrain) the persisted artifact.
// A transient failure is retried once before the error surfaces.
func (s *Service) LoadModel() error {
	model, err := estimator.Load(s.modelPath, s.enc.Version())
	if err != nil {
		var mismatch *feature.SchemaMismatchError
		if errors.As(err, &mismatch) {
			// A stale-schema artifact will not fix itself; do not retry.
			return err
		}
		log.Printf("Model load failed, retrying once: %v", err)
		time.Sleep(200 * time.Millisecond)
		model, err = estimator.Load(s.modelPath, s.enc.Version())
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
	return nil
}

// Ready reports whether a model is loaded and scoring can answer.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model != nil
}

// ModelInfo returns the loaded model's metadata, or ErrModelNotLoaded.
func (s *Service) ModelInfo() (*estimator.TrainedModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.model == nil {
		return nil, ErrModelNotLoaded
	}
	return s.model, nil
}

// Score resolves a raw input against field domains (clamping out-of-domain
// numerics, defaulting missing optional fields) and predicts its wellness
// score.
func (s *Service) Score(p record.Partial) (*Result, error) {
	rec, clamped, err := record.FromPartial(p)
	if err != nil {
		return nil, err
	}
	res, err := s.ScoreRecord(rec)
	if err != nil {
		return nil, err
	}
	res.ClampedFields = clamped
	return res, nil
}

// ScoreRecord scores an already-resolved DayRecord (e.g. one loaded from
// history). The record is clamped defensively before encoding.
func (s *Service) ScoreRecord(rec record.DayRecord) (*Result, error) {
	rec, _ = rec.Clamp()

	s.mu.RLock()
	model := s.model
	s.mu.RUnlock()
	if model == nil {
		return nil, ErrModelNotLoaded
	}

	score, err := model.Predict(s.enc.Encode(rec))
	if err != nil {
		return nil, err
	}

	return &Result{
		Score:        score,
		Category:     Categorize(score),
		SubScores:    SubScores(rec),
		PostureScore: rec.PostureScore,
	}, nil
}

// SubScores breaks the day down into per-area 0-100 scores. The advisor
// uses these to pick the weakest area; callers get them for display.
func SubScores(rec record.DayRecord) map[string]int {
	subs := make(map[string]int, 5)

	switch {
	case rec.SleepHours >= 7 && rec.SleepHours <= 9:
		subs["sleep"] = 90
	case rec.SleepHours >= 6 && rec.SleepHours <= 10:
		subs["sleep"] = 75
	case rec.SleepHours < 5:
		subs["sleep"] = 30
	default:
		subs["sleep"] = 60
	}

	switch {
	case rec.Steps >= 10000:
		subs["activity"] = 95
	case rec.Steps >= 8000:
		subs["activity"] = 80
	case rec.Steps >= 5000:
		subs["activity"] = 60
	default:
		subs["activity"] = 30
	}

	switch {
	case rec.HydrationLiters >= 2.0 && rec.HydrationLiters <= 3.5:
		subs["hydration"] = 95
	case rec.HydrationLiters >= 1.5 && rec.HydrationLiters <= 4.0:
		subs["hydration"] = 85
	case rec.HydrationLiters > 4.0:
		subs["hydration"] = 75
	default:
		subs["hydration"] = 40
	}

	switch rec.StressLevel {
	case record.StressLow:
		subs["stress"] = 90
	case record.StressMedium:
		subs["stress"] = 60
	default:
		subs["stress"] = 25
	}

	switch {
	case rec.ScreenTimeHours <= 4:
		subs["screen_time"] = 90
	case rec.ScreenTimeHours <= 6:
		subs["screen_time"] = 70
	case rec.ScreenTimeHours <= 8:
		subs["screen_time"] = 50
	default:
		subs["screen_time"] = 25
	}

	return subs
}
