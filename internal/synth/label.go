package synth

import (
	"math/rand"

	"github.com/equilibri/equilibri-server/internal/record"
)

// Category band thresholds shared by the label formula and the scoring
// service: good >= 70, fair 50-69, poor < 50.
const (
	GoodThreshold = 70.0
	FairThreshold = 50.0
)

// GroundTruthScore is the deterministic rule-based wellness score in
// [0, 100] used as the training label. Weights: sleep 25, activity 20,
// hydration 10, resting heart rate 10, stress 15, mood 10, screen time 10.
func GroundTruthScore(rec record.DayRecord) float64 {
	var sleep float64
	switch {
	case rec.SleepHours >= 7 && rec.SleepHours <= 9:
		sleep = 25
	case rec.SleepHours >= 6 && rec.SleepHours <= 10:
		sleep = 18
	case rec.SleepHours < 5:
		sleep = 6
	default:
		sleep = 12
	}

	var activity float64
	switch {
	case rec.Steps >= 10000:
		activity = 20
	case rec.Steps >= 8000:
		activity = 12
	case rec.Steps >= 5000:
		activity = 7
	default:
		activity = 2
	}

	var hydration float64
	switch {
	case rec.HydrationLiters >= 2 && rec.HydrationLiters <= 3:
		hydration = 10
	case rec.HydrationLiters >= 1.5 && rec.HydrationLiters <= 3.5:
		hydration = 7
	default:
		hydration = 3
	}

	var heart float64
	switch {
	case rec.HeartRateRest >= 55 && rec.HeartRateRest <= 75:
		heart = 10
	case rec.HeartRateRest >= 45 && rec.HeartRateRest <= 85:
		heart = 6
	default:
		heart = 2
	}

	var stress float64
	switch rec.StressLevel {
	case record.StressLow:
		stress = 15
	case record.StressMedium:
		stress = 6.5
	default:
		stress = 1
	}

	var mood float64
	switch rec.Mood {
	case record.MoodGood:
		mood = 10
	case record.MoodNeutral:
		mood = 5
	default:
		mood = 1
	}

	var screen float64
	switch {
	case rec.ScreenTimeHours < 4:
		screen = 10
	case rec.ScreenTimeHours < 6:
		screen = 6
	case rec.ScreenTimeHours < 9:
		screen = 3
	default:
		screen = 0
	}

	return sleep + activity + hydration + heart + stress + mood + screen
}

// noisyScore adds Gaussian noise to the rule score for training realism,
// clamped back into [0, 100].
func noisyScore(rec record.DayRecord, rng *rand.Rand) float64 {
	score := GroundTruthScore(rec) + rng.NormFloat64()*3
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
