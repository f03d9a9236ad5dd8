package models

import (
	"github.com/equilibri/equilibri-server/internal/db"
	"github.com/equilibri/equilibri-server/internal/record"
)

// ScoreResponse is returned by the score and days endpoints.
type ScoreResponse struct {
	Score         float64        `json:"score"`
	Category      string         `json:"category"`
	SubScores     map[string]int `json:"sub_scores"`
	ClampedFields []string       `json:"clamped_fields,omitempty"`
	PostureScore  *float64       `json:"posture_score,omitempty"`
}

// DayResponse is returned after saving a daily record.
type DayResponse struct {
	Date  string        `json:"date"`
	Saved bool          `json:"saved"`
	Score ScoreResponse `json:"score"`
}

// HistoryResponse is returned by the history endpoint.
type HistoryResponse struct {
	Days []record.DayRecord `json:"days"`
}

// AdviceRequest optionally carries the day to analyze; when absent the
// latest saved record is used.
type AdviceRequest struct {
	Day         *record.Partial `json:"day,omitempty"`
	Personality string          `json:"personality,omitempty"`
}

// AdviceResponse is the advisor's output for one day.
type AdviceResponse struct {
	Score                  float64  `json:"score"`
	Category               string   `json:"category"`
	Analysis               string   `json:"analysis"`
	PriorityArea           string   `json:"priority_area"`
	PriorityScore          int      `json:"priority_score"`
	MorningRecommendations []string `json:"morning_recommendations,omitempty"`
}

// AdviceHistoryResponse lists stored advice entries.
type AdviceHistoryResponse struct {
	Advice []db.AdviceEntry `json:"advice"`
}

// TrainRequest triggers a manual training run. Weights override the
// default profile sampling distribution.
type TrainRequest struct {
	Days    int                `json:"days,omitempty"`
	Seed    int64              `json:"seed,omitempty"`
	Weights map[string]float64 `json:"weights,omitempty"`
}

// TrainResponse summarizes a completed training run.
type TrainResponse struct {
	Family        string  `json:"family"`
	MAE           float64 `json:"mae"`
	SchemaVersion int     `json:"schema_version"`
	NumExamples   int     `json:"num_examples"`
	DurationMS    int64   `json:"duration_ms"`
}

// ModelInfoResponse describes the loaded model artifact.
type ModelInfoResponse struct {
	Family        string  `json:"family"`
	MAE           float64 `json:"mae"`
	SchemaVersion int     `json:"schema_version"`
	NumFeatures   int     `json:"num_features"`
	NumExamples   int     `json:"num_examples"`
	TrainedAt     string  `json:"trained_at"`
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status  string `json:"status"`
	Model   string `json:"model"`
	Ollama  string `json:"ollama"`
	Version string `json:"version"`
}
