// Package feature maps day records to the fixed-length numeric vectors the
// regression model consumes.
package feature

import (
	"fmt"
	"math"

	"github.com/equilibri/equilibri-server/internal/record"
)

// SchemaVersion is bumped whenever field order, count, or an encoding rule
// changes. A model artifact trained against a different version is unusable.
const SchemaVersion = 1

// NumFeatures is the trained input width for the current schema.
const NumFeatures = 8

// Names lists the feature order for the current schema. Categorical fields
// encode as ordinals (stress low=0 medium=1 high=2, mood bad=0 neutral=1
// good=2), is_weekend as 0/1.
var Names = []string{
	"sleep_hours",
	"steps",
	"hydration_liters",
	"heart_rate_rest",
	"stress_level",
	"mood",
	"screen_time_hours",
	"is_weekend",
}

// SchemaMismatchError reports a disagreement between the encoder's schema
// and a vector width or artifact schema version.
type SchemaMismatchError struct {
	What string
	Want int
	Got  int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: %s %d, want %d", e.What, e.Got, e.Want)
}

// Encoder converts clamped DayRecords to feature vectors for one schema
// version.
type Encoder struct {
	version int
}

func NewEncoder() *Encoder {
	return &Encoder{version: SchemaVersion}
}

// Version returns the schema version this encoder was built for.
func (e *Encoder) Version() int {
	return e.version
}

// CheckVersion fails with SchemaMismatchError when v is not the encoder's
// schema version.
func (e *Encoder) CheckVersion(v int) error {
	if v != e.version {
		return &SchemaMismatchError{What: "schema_version", Want: e.version, Got: v}
	}
	return nil
}

// Encode maps a record to the fixed feature vector. The record is expected
// to be clamped already; numeric fields pass through unchanged.
func (e *Encoder) Encode(rec record.DayRecord) []float64 {
	weekend := 0.0
	if rec.IsWeekend {
		weekend = 1.0
	}
	return []float64{
		rec.SleepHours,
		float64(rec.Steps),
		rec.HydrationLiters,
		float64(rec.HeartRateRest),
		float64(rec.StressLevel),
		float64(rec.Mood),
		rec.ScreenTimeHours,
		weekend,
	}
}

// Decode is the inverse of Encode for the encodable subset of fields.
func (e *Encoder) Decode(vec []float64) (record.DayRecord, error) {
	if len(vec) != NumFeatures {
		return record.DayRecord{}, &SchemaMismatchError{What: "feature vector width", Want: NumFeatures, Got: len(vec)}
	}

	stress := record.Stress(int(math.Round(vec[4])))
	if stress < record.StressLow || stress > record.StressHigh {
		return record.DayRecord{}, &record.ValidationError{Field: "stress_level", Reason: fmt.Sprintf("ordinal %v out of range", vec[4])}
	}
	mood := record.Mood(int(math.Round(vec[5])))
	if mood < record.MoodBad || mood > record.MoodGood {
		return record.DayRecord{}, &record.ValidationError{Field: "mood", Reason: fmt.Sprintf("ordinal %v out of range", vec[5])}
	}

	return record.DayRecord{
		SleepHours:      vec[0],
		Steps:           int(math.Round(vec[1])),
		HydrationLiters: vec[2],
		HeartRateRest:   int(math.Round(vec[3])),
		StressLevel:     stress,
		Mood:            mood,
		ScreenTimeHours: vec[6],
		IsWeekend:       vec[7] != 0,
	}, nil
}
