// Package advisor turns scored days into coaching text via a local LLM.
// The runtime is external and uncontrolled: advice either arrives as free
// text or fails, and a failure never blocks scoring.
package advisor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/equilibri/equilibri-server/internal/llm"
	"github.com/equilibri/equilibri-server/internal/record"
	"github.com/equilibri/equilibri-server/internal/scoring"
)

const analysisPrompt = `You are a health coach. Analyze this person's health data logically.

HEALTH DATA:
- Overall Score: %.1f/100 (%s)
- Sleep: %.1fh (score: %d/100)
- Steps: %d (score: %d/100)
- Hydration: %.1fL (score: %d/100)
- Stress: %s (score: %d/100)
- Screen Time: %.1fh (score: %d/100)

PERSONALITY: Be %s in your response.

IMPORTANT GUIDELINES:
- 2-3.5L hydration is EXCELLENT (scores 85-95/100) - DON'T suggest more water
- 7-9h sleep is optimal
- 8000+ steps is good, 10000+ is excellent
- Only suggest improvements for areas scoring below 70/100

Your lowest scoring area is: %s (%d/100)

Please provide:
1. Brief analysis acknowledging what's going well
2. Focus ONLY on the area that needs improvement (score < 70)
3. One specific, actionable tip for tomorrow

Don't suggest improving things that are already excellent.`

const morningPrompt = `Based on yesterday's health data, give 3 specific morning recommendations.

YESTERDAY'S DATA:
- Health Score: %.1f/100
- Sleep: %.1fh
- Steps: %d
- Hydration: %.1fL
- Stress: %s

IMPORTANT:
- If hydration is 2L+ that's GOOD, don't suggest more water
- Focus on actual problem areas

Format as a simple numbered list:
1. [specific action for morning]
2. [specific action for morning]
3. [specific action for morning]

Keep each recommendation to one sentence and actionable.`

var personalityTones = map[string]string{
	"balanced":  "encouraging and balanced",
	"motivated": "energetic and motivating",
	"calm":      "gentle and supportive",
	"direct":    "straightforward and practical",
	"humorous":  "light-hearted with gentle humor",
}

// Advisor generates advice text from scored days.
type Advisor struct {
	client *llm.Client
}

func New(client *llm.Client) *Advisor {
	return &Advisor{client: client}
}

// Analysis is the structured advice for one day.
type Analysis struct {
	Text          string `json:"text"`
	PriorityArea  string `json:"priority_area"`
	PriorityScore int    `json:"priority_score"`
}

// AnalyzeDay asks the LLM for a tone-adapted analysis of a scored day.
func (a *Advisor) AnalyzeDay(ctx context.Context, rec record.DayRecord, res *scoring.Result, personality string) (*Analysis, error) {
	tone, ok := personalityTones[personality]
	if !ok {
		tone = personalityTones["balanced"]
	}

	area, areaScore := WeakestArea(res.SubScores)
	prompt := fmt.Sprintf(analysisPrompt,
		res.Score, res.Category,
		rec.SleepHours, res.SubScores["sleep"],
		rec.Steps, res.SubScores["activity"],
		rec.HydrationLiters, res.SubScores["hydration"],
		rec.StressLevel, res.SubScores["stress"],
		rec.ScreenTimeHours, res.SubScores["screen_time"],
		tone,
		area, areaScore,
	)

	text, err := a.client.Generate(ctx, prompt, llm.Options{Temperature: 0.7, NumPredict: 200})
	if err != nil {
		return nil, fmt.Errorf("generating analysis: %w", err)
	}

	return &Analysis{
		Text:          strings.TrimSpace(text),
		PriorityArea:  area,
		PriorityScore: areaScore,
	}, nil
}

// MorningRecommendations asks for up to 3 actionable items based on
// yesterday's data.
func (a *Advisor) MorningRecommendations(ctx context.Context, rec record.DayRecord, score float64) ([]string, error) {
	prompt := fmt.Sprintf(morningPrompt,
		score, rec.SleepHours, rec.Steps, rec.HydrationLiters, rec.StressLevel)

	text, err := a.client.Generate(ctx, prompt, llm.Options{Temperature: 0.6, NumPredict: 150})
	if err != nil {
		return nil, fmt.Errorf("generating recommendations: %w", err)
	}

	return parseNumberedList(text, 3), nil
}

// WeakestArea returns the lowest-scoring area, preferring areas below 70
// (the ones actually worth coaching on). Ties break alphabetically so the
// choice is stable.
func WeakestArea(subs map[string]int) (string, int) {
	areas := make([]string, 0, len(subs))
	for area := range subs {
		areas = append(areas, area)
	}
	sort.Strings(areas)

	best, bestScore := "", 0
	needsWork := false
	for _, area := range areas {
		score := subs[area]
		if score < 70 {
			if !needsWork || score < bestScore {
				best, bestScore = area, score
				needsWork = true
			}
			continue
		}
		if !needsWork && (best == "" || score < bestScore) {
			best, bestScore = area, score
		}
	}
	return best, bestScore
}

// parseNumberedList extracts "1. ..." style items from free-form LLM
// output, capped at max entries.
func parseNumberedList(text string, max int) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 3 {
			continue
		}
		if line[0] >= '1' && line[0] <= '9' && (line[1] == '.' || line[1] == ')') {
			item := strings.TrimSpace(line[2:])
			if item != "" {
				items = append(items, item)
			}
		}
		if len(items) == max {
			break
		}
	}
	return items
}
