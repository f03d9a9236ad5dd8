package record

import (
	"encoding/json"
	"fmt"
	"math"
)

// Field domains. Numeric values outside these bounds are clamped to the
// nearest boundary before any downstream use.
const (
	MinSleepHours = 3.0
	MaxSleepHours = 12.0

	MinSteps = 500
	MaxSteps = 25000

	MinHydrationLiters = 0.5
	MaxHydrationLiters = 5.0

	MinHeartRateRest = 40
	MaxHeartRateRest = 110

	MinScreenTimeHours = 1.0
	MaxScreenTimeHours = 16.0
)

// Neutral defaults applied when an optional field is absent from live input.
const (
	DefaultSleepHours      = 7.0
	DefaultSteps           = 5000
	DefaultHydrationLiters = 2.0
	DefaultHeartRateRest   = 65
	DefaultScreenTimeHours = 5.0
)

// Stress is the self-reported stress level for a day.
type Stress int

const (
	StressLow Stress = iota
	StressMedium
	StressHigh
)

func (s Stress) String() string {
	switch s {
	case StressLow:
		return "low"
	case StressMedium:
		return "medium"
	case StressHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseStress converts a string label to a Stress value.
func ParseStress(v string) (Stress, error) {
	switch v {
	case "low":
		return StressLow, nil
	case "medium":
		return StressMedium, nil
	case "high":
		return StressHigh, nil
	default:
		return StressMedium, &ValidationError{Field: "stress_level", Reason: fmt.Sprintf("unknown value %q (want low, medium or high)", v)}
	}
}

func (s Stress) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Stress) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return &ValidationError{Field: "stress_level", Reason: "must be a string"}
	}
	parsed, err := ParseStress(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Mood is the self-reported mood for a day.
type Mood int

const (
	MoodBad Mood = iota
	MoodNeutral
	MoodGood
)

func (m Mood) String() string {
	switch m {
	case MoodBad:
		return "bad"
	case MoodNeutral:
		return "neutral"
	case MoodGood:
		return "good"
	default:
		return "unknown"
	}
}

// ParseMood converts a string label to a Mood value.
func ParseMood(v string) (Mood, error) {
	switch v {
	case "bad":
		return MoodBad, nil
	case "neutral":
		return MoodNeutral, nil
	case "good":
		return MoodGood, nil
	default:
		return MoodNeutral, &ValidationError{Field: "mood", Reason: fmt.Sprintf("unknown value %q (want good, neutral or bad)", v)}
	}
}

func (m Mood) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Mood) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return &ValidationError{Field: "mood", Reason: "must be a string"}
	}
	parsed, err := ParseMood(v)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// DayRecord is one day's behavioral snapshot.
type DayRecord struct {
	Date            string  `json:"date,omitempty"`
	DayOfWeek       string  `json:"day_of_week,omitempty"`
	SleepHours      float64 `json:"sleep_hours"`
	Steps           int     `json:"steps"`
	HydrationLiters float64 `json:"hydration_liters"`
	HeartRateRest   int     `json:"heart_rate_rest"`
	StressLevel     Stress  `json:"stress_level"`
	Mood            Mood    `json:"mood"`
	ScreenTimeHours float64 `json:"screen_time_hours"`
	IsWeekend       bool    `json:"is_weekend"`
	DayIndex        int     `json:"day_index,omitempty"`

	// PostureScore is an optional external input (0-100) from the posture
	// monitor. It never feeds the regression model.
	PostureScore *float64 `json:"posture_score,omitempty"`
}

// ValidationError reports input that is structurally wrong or carries an
// unknown categorical value. Clamp-eligible numeric overflow is not a
// ValidationError; it is recovered locally by clamping.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

// Clamp returns a copy with every numeric field forced into its domain,
// plus the names of the fields that were out of bounds.
func (r DayRecord) Clamp() (DayRecord, []string) {
	var clamped []string

	if r.SleepHours < MinSleepHours || r.SleepHours > MaxSleepHours {
		r.SleepHours = clampFloat(r.SleepHours, MinSleepHours, MaxSleepHours)
		clamped = append(clamped, "sleep_hours")
	}
	if r.Steps < MinSteps || r.Steps > MaxSteps {
		r.Steps = clampInt(r.Steps, MinSteps, MaxSteps)
		clamped = append(clamped, "steps")
	}
	if r.HydrationLiters < MinHydrationLiters || r.HydrationLiters > MaxHydrationLiters {
		r.HydrationLiters = clampFloat(r.HydrationLiters, MinHydrationLiters, MaxHydrationLiters)
		clamped = append(clamped, "hydration_liters")
	}
	if r.HeartRateRest < MinHeartRateRest || r.HeartRateRest > MaxHeartRateRest {
		r.HeartRateRest = clampInt(r.HeartRateRest, MinHeartRateRest, MaxHeartRateRest)
		clamped = append(clamped, "heart_rate_rest")
	}
	if r.ScreenTimeHours < MinScreenTimeHours || r.ScreenTimeHours > MaxScreenTimeHours {
		r.ScreenTimeHours = clampFloat(r.ScreenTimeHours, MinScreenTimeHours, MaxScreenTimeHours)
		clamped = append(clamped, "screen_time_hours")
	}
	if r.PostureScore != nil && (*r.PostureScore < 0 || *r.PostureScore > 100) {
		v := clampFloat(*r.PostureScore, 0, 100)
		r.PostureScore = &v
		clamped = append(clamped, "posture_score")
	}

	return r, clamped
}

// Partial is a raw daily input where every field may be absent. It is the
// wire shape for live scoring requests.
type Partial struct {
	Date            string   `json:"date,omitempty"`
	SleepHours      *float64 `json:"sleep_hours"`
	Steps           *int     `json:"steps"`
	HydrationLiters *float64 `json:"hydration_liters"`
	HeartRateRest   *int     `json:"heart_rate_rest"`
	StressLevel     *string  `json:"stress_level"`
	Mood            *string  `json:"mood"`
	ScreenTimeHours *float64 `json:"screen_time_hours"`
	IsWeekend       *bool    `json:"is_weekend"`
	PostureScore    *float64 `json:"posture_score"`
}

// FromPartial resolves a raw input into a full DayRecord: absent optional
// fields take their neutral default, out-of-domain numerics are clamped,
// and unknown categorical labels fail with ValidationError.
func FromPartial(p Partial) (DayRecord, []string, error) {
	rec := DayRecord{
		Date:            p.Date,
		SleepHours:      DefaultSleepHours,
		Steps:           DefaultSteps,
		HydrationLiters: DefaultHydrationLiters,
		HeartRateRest:   DefaultHeartRateRest,
		StressLevel:     StressMedium,
		Mood:            MoodNeutral,
		ScreenTimeHours: DefaultScreenTimeHours,
	}

	if p.SleepHours != nil {
		if math.IsNaN(*p.SleepHours) || math.IsInf(*p.SleepHours, 0) {
			return DayRecord{}, nil, &ValidationError{Field: "sleep_hours", Reason: "must be a finite number"}
		}
		rec.SleepHours = *p.SleepHours
	}
	if p.Steps != nil {
		rec.Steps = *p.Steps
	}
	if p.HydrationLiters != nil {
		if math.IsNaN(*p.HydrationLiters) || math.IsInf(*p.HydrationLiters, 0) {
			return DayRecord{}, nil, &ValidationError{Field: "hydration_liters", Reason: "must be a finite number"}
		}
		rec.HydrationLiters = *p.HydrationLiters
	}
	if p.HeartRateRest != nil {
		rec.HeartRateRest = *p.HeartRateRest
	}
	if p.StressLevel != nil {
		stress, err := ParseStress(*p.StressLevel)
		if err != nil {
			return DayRecord{}, nil, err
		}
		rec.StressLevel = stress
	}
	if p.Mood != nil {
		mood, err := ParseMood(*p.Mood)
		if err != nil {
			return DayRecord{}, nil, err
		}
		rec.Mood = mood
	}
	if p.ScreenTimeHours != nil {
		if math.IsNaN(*p.ScreenTimeHours) || math.IsInf(*p.ScreenTimeHours, 0) {
			return DayRecord{}, nil, &ValidationError{Field: "screen_time_hours", Reason: "must be a finite number"}
		}
		rec.ScreenTimeHours = *p.ScreenTimeHours
	}
	if p.IsWeekend != nil {
		rec.IsWeekend = *p.IsWeekend
	}
	if p.PostureScore != nil {
		v := *p.PostureScore
		rec.PostureScore = &v
	}

	rec, clamped := rec.Clamp()
	return rec, clamped, nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
