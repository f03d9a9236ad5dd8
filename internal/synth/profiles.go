// Package synth generates the synthetic daily records and rule-based labels
// the score model is trained on.
package synth

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ProfileName identifies a behavioral archetype.
type ProfileName string

const (
	ProfileNormal     ProfileName = "normal"
	ProfileAthlete    ProfileName = "athlete"
	ProfileStressed   ProfileName = "stressed"
	ProfileSedentary  ProfileName = "sedentary"
	ProfileInsomniac  ProfileName = "insomniac"
	ProfileOverworker ProfileName = "overworker"
	ProfileHealthy    ProfileName = "healthy"
	ProfileUnhealthy  ProfileName = "unhealthy"
)

type floatRange struct {
	Lo, Hi float64
}

type intRange struct {
	Lo, Hi int
}

// Profile is an immutable sampling configuration for one archetype. Base
// values are drawn from these ranges before the cross-metric adjustments.
type Profile struct {
	Name      ProfileName
	Sleep     floatRange
	Steps     intRange
	Hydration floatRange
	HeartRate intRange
	Screen    floatRange

	// StressBase and MoodBase are the center of the pre-adjustment stress
	// and mood scores (0 is fully relaxed / bad mood, 1 is maximal).
	StressBase float64
	MoodBase   float64
}

var profiles = map[ProfileName]Profile{
	ProfileNormal: {
		Name:      ProfileNormal,
		Sleep:     floatRange{5.5, 9.0},
		Steps:     intRange{4000, 14000},
		Hydration: floatRange{1.5, 3.5},
		HeartRate: intRange{55, 80},
		Screen:    floatRange{3.0, 10.0},
		StressBase: 0.4,
		MoodBase:   0.5,
	},
	ProfileAthlete: {
		Name:      ProfileAthlete,
		Sleep:     floatRange{7.5, 9.5},
		Steps:     intRange{15000, 25000},
		Hydration: floatRange{3.0, 5.0},
		HeartRate: intRange{45, 60},
		Screen:    floatRange{2.0, 5.0},
		StressBase: 0.4,
		MoodBase:   0.75,
	},
	ProfileStressed: {
		Name:      ProfileStressed,
		Sleep:     floatRange{5.5, 9.0},
		Steps:     intRange{2000, 6000},
		Hydration: floatRange{0.8, 1.8},
		HeartRate: intRange{75, 90},
		Screen:    floatRange{3.0, 10.0},
		StressBase: 1.0,
		MoodBase:   0.35,
	},
	ProfileSedentary: {
		Name:      ProfileSedentary,
		Sleep:     floatRange{5.5, 9.0},
		Steps:     intRange{1000, 4000},
		Hydration: floatRange{1.2, 2.2},
		HeartRate: intRange{55, 80},
		Screen:    floatRange{8.0, 14.0},
		StressBase: 0.4,
		MoodBase:   0.5,
	},
	ProfileInsomniac: {
		Name:      ProfileInsomniac,
		Sleep:     floatRange{3.0, 5.5},
		Steps:     intRange{4000, 14000},
		Hydration: floatRange{1.5, 3.5},
		HeartRate: intRange{55, 80},
		Screen:    floatRange{3.0, 10.0},
		StressBase: 0.4,
		MoodBase:   0.5,
	},
	ProfileOverworker: {
		Name:      ProfileOverworker,
		Sleep:     floatRange{4.0, 6.5},
		Steps:     intRange{4000, 14000},
		Hydration: floatRange{1.5, 3.5},
		HeartRate: intRange{55, 80},
		Screen:    floatRange{10.0, 16.0},
		StressBase: 0.9,
		MoodBase:   0.5,
	},
	ProfileHealthy: {
		Name:      ProfileHealthy,
		Sleep:     floatRange{7.0, 8.5},
		Steps:     intRange{8000, 12000},
		Hydration: floatRange{1.5, 3.5},
		HeartRate: intRange{55, 80},
		Screen:    floatRange{3.0, 6.0},
		StressBase: 0.5,
		MoodBase:   0.65,
	},
	ProfileUnhealthy: {
		Name:      ProfileUnhealthy,
		Sleep:     floatRange{5.5, 9.0},
		Steps:     intRange{2000, 7000},
		Hydration: floatRange{1.0, 2.0},
		HeartRate: intRange{70, 85},
		Screen:    floatRange{8.0, 14.0},
		StressBase: 0.7,
		MoodBase:   0.4,
	},
}

// Lookup returns the profile for name.
func Lookup(name ProfileName) (Profile, bool) {
	p, ok := profiles[name]
	return p, ok
}

// Names returns all profile names in a stable order.
func Names() []ProfileName {
	names := make([]ProfileName, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// DefaultWeights is the default profile sampling distribution: 70% normal,
// the remaining 30% spread evenly across the other archetypes.
func DefaultWeights() map[ProfileName]float64 {
	weights := make(map[ProfileName]float64, len(profiles))
	rest := 0.3 / float64(len(profiles)-1)
	for name := range profiles {
		if name == ProfileNormal {
			weights[name] = 0.7
		} else {
			weights[name] = rest
		}
	}
	return weights
}

// WeightsFromMap validates a raw name-to-weight map (e.g. decoded from a
// request body) against the known profiles. At least one weight must be
// positive; negative weights and unknown names are rejected.
func WeightsFromMap(raw map[string]float64) (map[ProfileName]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	weights := make(map[ProfileName]float64, len(raw))
	total := 0.0
	for name, w := range raw {
		if _, ok := Lookup(ProfileName(name)); !ok {
			return nil, fmt.Errorf("unknown profile %q", name)
		}
		if w < 0 {
			return nil, fmt.Errorf("profile %q has negative weight %g", name, w)
		}
		weights[ProfileName(name)] = w
		total += w
	}
	if total <= 0 {
		return nil, fmt.Errorf("profile weights sum to zero")
	}
	return weights, nil
}

// ParseWeights parses a weight override of the form
// "normal=0.5,athlete=0.5". An empty string means no override.
func ParseWeights(s string) (map[ProfileName]float64, error) {
	if s == "" {
		return nil, nil
	}

	raw := make(map[string]float64)
	for _, pair := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("weight %q is not name=value", pair)
		}
		w, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("weight for %q: %w", name, err)
		}
		raw[name] = w
	}
	return WeightsFromMap(raw)
}
