package synth

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/equilibri/equilibri-server/internal/artifact"
	"github.com/equilibri/equilibri-server/internal/record"
)

// LabeledExample pairs a generated day with its rule-based training label.
type LabeledExample struct {
	Record record.DayRecord `json:"record"`
	Score  float64          `json:"score"`
}

// BuilderConfig controls dataset generation. A zero Start means "today";
// nil Weights means DefaultWeights.
type BuilderConfig struct {
	Seed    int64
	Start   time.Time
	Weights map[ProfileName]float64
}

// Builder assembles labeled training sets by chaining the generator day
// over day. The dataset is transient; callers discard it after fit.
type Builder struct {
	rng     *rand.Rand
	start   time.Time
	names   []ProfileName
	weights []float64
	total   float64
}

// NewBuilder creates a builder with an explicit seed so training sets are
// reproducible.
func NewBuilder(cfg BuilderConfig) *Builder {
	weights := cfg.Weights
	if weights == nil {
		weights = DefaultWeights()
	}

	b := &Builder{
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		start: cfg.Start,
		names: Names(),
	}
	for _, name := range b.names {
		w := weights[name]
		if w < 0 {
			w = 0
		}
		b.weights = append(b.weights, w)
		b.total += w
	}
	return b
}

// Build generates numDays labeled examples in day-index order, each day
// chained on the previous one. Day index 0 falls on a Monday so weekend
// flags line up with the date labels.
func (b *Builder) Build(numDays int) []LabeledExample {
	start := b.start
	if start.IsZero() {
		start = time.Now()
	}
	start = start.AddDate(0, 0, -(numDays - 1))
	// Back up to the preceding Monday so dayIndex%7 matches the calendar.
	start = start.AddDate(0, 0, -int((start.Weekday()+6)%7))

	examples := make([]LabeledExample, 0, numDays)
	var prev *record.DayRecord
	for i := 0; i < numDays; i++ {
		rec := Generate(b.pickProfile(), i, prev, b.rng)
		date := start.AddDate(0, 0, i)
		rec.Date = date.Format("2006-01-02")
		rec.DayOfWeek = date.Weekday().String()

		examples = append(examples, LabeledExample{
			Record: rec,
			Score:  noisyScore(rec, b.rng),
		})
		prev = &examples[len(examples)-1].Record
	}
	return examples
}

func (b *Builder) pickProfile() Profile {
	if b.total <= 0 {
		p, _ := Lookup(ProfileNormal)
		return p
	}
	target := b.rng.Float64() * b.total
	for i, name := range b.names {
		target -= b.weights[i]
		if target < 0 {
			p, _ := Lookup(name)
			return p
		}
	}
	p, _ := Lookup(b.names[len(b.names)-1])
	return p
}

// WriteDatasetFile persists the generated days (without labels) as an
// order-preserving JSON array, one record per day.
func WriteDatasetFile(path string, examples []LabeledExample) error {
	records := make([]record.DayRecord, len(examples))
	for i, ex := range examples {
		records[i] = ex.Record
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling dataset: %w", err)
	}
	if err := artifact.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("writing dataset file: %w", err)
	}
	return nil
}
