package synth

import (
	"math"
	"math/rand"

	"github.com/equilibri/equilibri-server/internal/record"
)

// Generate produces one simulated day for a profile. Weekends are day
// indices 5 and 6 of each 7-day cycle. Given identical (profile, dayIndex,
// prev, rng seed) the output is reproducible; all randomness comes from the
// supplied rng, never package state.
//
// Cross-metric adjustments run in a fixed order after base sampling:
// weekend shifts, prior-night short sleep, high activity, then mood
// continuity from the previous day.
func Generate(p Profile, dayIndex int, prev *record.DayRecord, rng *rand.Rand) record.DayRecord {
	weekend := dayIndex%7 >= 5

	sleep := uniform(rng, p.Sleep.Lo, p.Sleep.Hi)
	steps := intUniform(rng, p.Steps.Lo, p.Steps.Hi)
	hydration := uniform(rng, p.Hydration.Lo, p.Hydration.Hi)
	heartRate := intUniform(rng, p.HeartRate.Lo, p.HeartRate.Hi)
	screen := uniform(rng, p.Screen.Lo, p.Screen.Hi) + uniform(rng, -1.5, 2.0)
	stressScore := p.StressBase + uniform(rng, -0.15, 0.15)
	moodScore := p.MoodBase + uniform(rng, -0.15, 0.15)

	// Well-rested days are more active.
	steps += int((sleep - 7) * 300)

	// Today's sleep drives resting heart rate and stress.
	switch {
	case sleep < 4:
		heartRate += intUniform(rng, 20, 35)
	case sleep < 6:
		heartRate += intUniform(rng, 10, 20)
	case sleep > 10:
		heartRate += intUniform(rng, 5, 15)
	default:
		heartRate += intUniform(rng, -8, 8)
	}
	heartRate -= clampI((steps-8000)/800, -15, 15)

	if sleep < 5 {
		stressScore += uniform(rng, 0.4, 0.8)
	}
	if steps < 3000 {
		stressScore += uniform(rng, 0.3, 0.6)
	}
	if screen > 10 {
		stressScore += uniform(rng, 0.4, 0.7)
	}
	if sleep >= 7 {
		moodScore += uniform(rng, 0.1, 0.3)
	}

	// (a) Weekend: more sleep, fewer steps, less stress, better mood.
	if weekend {
		sleep += uniform(rng, 0.4, 1.2)
		steps = int(float64(steps) * uniform(rng, 0.65, 0.9))
		stressScore -= uniform(rng, 0.2, 0.6)
		moodScore += uniform(rng, 0.1, 0.4)
	}

	// (b) Short sleep last night raises heart rate and stress one level.
	levelShift := 0
	if prev != nil && prev.SleepHours < 6 {
		heartRate += intUniform(rng, 10, 20)
		levelShift++
	}

	// (c) High activity needs more water and lowers stress one level.
	if steps > 10000 {
		hydration += uniform(rng, 0.3, 0.8)
		levelShift--
	}

	// (d) Yesterday's mood carries over.
	if prev != nil {
		switch prev.Mood {
		case record.MoodGood:
			moodScore += uniform(rng, 0.05, 0.2)
		case record.MoodBad:
			moodScore -= uniform(rng, 0.05, 0.2)
		}
	}
	moodScore += uniform(rng, -0.2, 0.2)

	stress := shiftStress(bucketStress(stressScore), levelShift)

	switch stress {
	case record.StressLow:
		moodScore += uniform(rng, 0.1, 0.3)
	case record.StressHigh:
		moodScore -= uniform(rng, 0.3, 0.5)
	}

	rec := record.DayRecord{
		SleepHours:      round1(sleep),
		Steps:           steps,
		HydrationLiters: round1(hydration),
		HeartRateRest:   heartRate,
		StressLevel:     stress,
		Mood:            bucketMood(moodScore),
		ScreenTimeHours: round1(screen),
		IsWeekend:       weekend,
		DayIndex:        dayIndex,
	}
	rec, _ = rec.Clamp()
	return rec
}

func bucketStress(score float64) record.Stress {
	switch {
	case score < 0.3:
		return record.StressLow
	case score < 0.75:
		return record.StressMedium
	default:
		return record.StressHigh
	}
}

func shiftStress(s record.Stress, shift int) record.Stress {
	v := int(s) + shift
	if v < int(record.StressLow) {
		v = int(record.StressLow)
	}
	if v > int(record.StressHigh) {
		v = int(record.StressHigh)
	}
	return record.Stress(v)
}

func bucketMood(score float64) record.Mood {
	switch {
	case score < 0.35:
		return record.MoodBad
	case score < 0.7:
		return record.MoodNeutral
	default:
		return record.MoodGood
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// intUniform draws from [lo, hi] inclusive.
func intUniform(rng *rand.Rand, lo, hi int) int {
	return lo + rng.Intn(hi-lo+1)
}

func clampI(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
