package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/equilibri/equilibri-server/internal/config"
	"github.com/equilibri/equilibri-server/internal/db"
	"github.com/equilibri/equilibri-server/internal/estimator"
	"github.com/equilibri/equilibri-server/internal/feature"
	"github.com/equilibri/equilibri-server/internal/llm"
	"github.com/equilibri/equilibri-server/internal/models"
	"github.com/equilibri/equilibri-server/internal/scoring"
	"github.com/equilibri/equilibri-server/internal/synth"
)

const testToken = "test-token-123"

// trainTestModel trains a small but real model so handlers exercise the
// full scoring path.
func trainTestModel(t *testing.T, dir string) string {
	t.Helper()

	builder := synth.NewBuilder(synth.BuilderConfig{
		Seed:  42,
		Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	examples := builder.Build(600)

	enc := feature.NewEncoder()
	X := make([][]float64, len(examples))
	y := make([]float64, len(examples))
	for i, ex := range examples {
		X[i] = enc.Encode(ex.Record)
		y[i] = ex.Score
	}

	cfg := estimator.DefaultConfig()
	cfg.Forest.NumTrees = 25
	cfg.Boost.Rounds = 50

	model, err := estimator.Train(X, y, enc.Version(), cfg)
	if err != nil {
		t.Fatalf("training test model: %v", err)
	}

	path := filepath.Join(dir, "model.json")
	if err := model.Save(path); err != nil {
		t.Fatalf("saving test model: %v", err)
	}
	return path
}

// mockOllama serves canned responses for the advisor endpoints.
func mockOllama(t *testing.T, response string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			json.NewEncoder(w).Encode(map[string]any{"response": response, "done": true})
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupRouter(t *testing.T, ollamaURL string) *chi.Mux {
	t.Helper()

	dir := t.TempDir()
	modelPath := trainTestModel(t, dir)

	cfg := &config.Config{
		Port:      "8080",
		DBPath:    filepath.Join(dir, "test.db"),
		ModelPath: modelPath,
		APIToken:  testToken,
		TrainDays: 200,
		TrainSeed: 7,
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	svc := scoring.NewService(modelPath)
	if err := svc.LoadModel(); err != nil {
		t.Fatalf("loading model: %v", err)
	}

	client := llm.NewClient(ollamaURL, "llama3")
	return NewRouter(cfg, database, svc, client)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuthRejected(t *testing.T) {
	router := setupRouter(t, mockOllama(t, "ok").URL)

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"wrong token", "wrong-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, "GET", "/api/v1/history", nil, tt.token)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestHealthPublic(t *testing.T) {
	router := setupRouter(t, mockOllama(t, "ok").URL)

	rec := doJSON(t, router, "GET", "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp models.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want %q", resp.Status, "ok")
	}
	if resp.Ollama != "connected" {
		t.Errorf("ollama = %q, want %q", resp.Ollama, "connected")
	}
}

func TestScoreEndpoint(t *testing.T) {
	router := setupRouter(t, mockOllama(t, "ok").URL)

	body := map[string]any{
		"sleep_hours":       8.0,
		"steps":             9500,
		"hydration_liters":  2.5,
		"heart_rate_rest":   62,
		"stress_level":      "low",
		"mood":              "good",
		"screen_time_hours": 3.5,
	}
	rec := doJSON(t, router, "POST", "/api/v1/score", body, testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp models.ScoreResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Score < 0 || resp.Score > 100 {
		t.Errorf("score %.2f outside [0, 100]", resp.Score)
	}
	if resp.Category == "" {
		t.Error("category is empty")
	}
	if len(resp.SubScores) == 0 {
		t.Error("sub_scores is empty")
	}
	if len(resp.ClampedFields) != 0 {
		t.Errorf("unexpected clamped fields %v", resp.ClampedFields)
	}
}

func TestScoreClampsOutOfRange(t *testing.T) {
	router := setupRouter(t, mockOllama(t, "ok").URL)

	body := map[string]any{
		"sleep_hours": 30.0,
		"steps":       500000,
	}
	rec := doJSON(t, router, "POST", "/api/v1/score", body, testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp models.ScoreResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	clamped := map[string]bool{}
	for _, f := range resp.ClampedFields {
		clamped[f] = true
	}
	if !clamped["sleep_hours"] || !clamped["steps"] {
		t.Errorf("clamped_fields = %v, want sleep_hours and steps", resp.ClampedFields)
	}
}

func TestScoreRejectsWrongType(t *testing.T) {
	router := setupRouter(t, mockOllama(t, "ok").URL)

	body := map[string]any{"sleep_hours": "eight"}
	rec := doJSON(t, router, "POST", "/api/v1/score", body, testToken)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q, want VALIDATION_ERROR", resp.Code)
	}
	if resp.Field != "sleep_hours" {
		t.Errorf("field = %q, want sleep_hours", resp.Field)
	}
}

func TestSaveDayAndHistory(t *testing.T) {
	router := setupRouter(t, mockOllama(t, "ok").URL)

	body := map[string]any{
		"date":             "2026-03-02",
		"sleep_hours":      7.5,
		"steps":            8200,
		"hydration_liters": 2.2,
	}
	rec := doJSON(t, router, "POST", "/api/v1/days", body, testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var dayResp models.DayResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &dayResp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !dayResp.Saved {
		t.Error("saved = false, want true")
	}
	if dayResp.Date != "2026-03-02" {
		t.Errorf("date = %q, want 2026-03-02", dayResp.Date)
	}

	// Re-posting the same date must update, not error.
	body["steps"] = 9000
	rec = doJSON(t, router, "POST", "/api/v1/days", body, testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	rec = doJSON(t, router, "GET", "/api/v1/history?days=7", nil, testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d, want %d", rec.Code, http.StatusOK)
	}
	var histResp models.HistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &histResp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(histResp.Days) != 1 {
		t.Fatalf("history has %d days, want 1", len(histResp.Days))
	}
	if histResp.Days[0].Steps != 9000 {
		t.Errorf("steps = %d, want 9000 after update", histResp.Days[0].Steps)
	}
	if histResp.Days[0].DayOfWeek != "Monday" {
		t.Errorf("day_of_week = %q, want Monday", histResp.Days[0].DayOfWeek)
	}
}

func TestHistoryRejectsBadDays(t *testing.T) {
	router := setupRouter(t, mockOllama(t, "ok").URL)

	rec := doJSON(t, router, "GET", "/api/v1/history?days=zero", nil, testToken)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAdviceForGivenDay(t *testing.T) {
	router := setupRouter(t, mockOllama(t, "1. Drink water first thing.\n2. Take a short walk.\n3. Go to bed earlier.").URL)

	req := map[string]any{
		"day": map[string]any{
			"sleep_hours": 5.0,
			"steps":       2500,
		},
		"personality": "strict",
	}
	rec := doJSON(t, router, "POST", "/api/v1/advice", req, testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp models.AdviceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Analysis == "" {
		t.Error("analysis is empty")
	}
	if resp.PriorityArea == "" {
		t.Error("priority_area is empty")
	}
	if len(resp.MorningRecommendations) != 3 {
		t.Errorf("got %d recommendations, want 3", len(resp.MorningRecommendations))
	}
}

func TestAdviceWithoutDataIs404(t *testing.T) {
	router := setupRouter(t, mockOllama(t, "ok").URL)

	rec := doJSON(t, router, "POST", "/api/v1/advice", map[string]any{}, testToken)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d: %s", rec.Code, http.StatusNotFound, rec.Body.String())
	}
}

func TestModelInfoEndpoint(t *testing.T) {
	router := setupRouter(t, mockOllama(t, "ok").URL)

	rec := doJSON(t, router, "GET", "/api/v1/model", nil, testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp models.ModelInfoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Family != "random_forest" && resp.Family != "gradient_boost" {
		t.Errorf("family = %q, want an ensemble family", resp.Family)
	}
	if resp.SchemaVersion != feature.SchemaVersion {
		t.Errorf("schema_version = %d, want %d", resp.SchemaVersion, feature.SchemaVersion)
	}
	if resp.NumFeatures != feature.NumFeatures {
		t.Errorf("num_features = %d, want %d", resp.NumFeatures, feature.NumFeatures)
	}
}

func TestTrainRejectsUnknownProfile(t *testing.T) {
	router := setupRouter(t, mockOllama(t, "ok").URL)

	body := map[string]any{
		"days":    100,
		"weights": map[string]float64{"martian": 1},
	}
	rec := doJSON(t, router, "POST", "/api/v1/train", body, testToken)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q, want VALIDATION_ERROR", resp.Code)
	}
	if resp.Field != "weights" {
		t.Errorf("field = %q, want weights", resp.Field)
	}
}

func TestTrainWithWeights(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping training in short mode")
	}

	router := setupRouter(t, mockOllama(t, "ok").URL)

	body := map[string]any{
		"days":    150,
		"seed":    9,
		"weights": map[string]float64{"athlete": 0.5, "sedentary": 0.5},
	}
	rec := doJSON(t, router, "POST", "/api/v1/train", body, testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp models.TrainResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.NumExamples != 150 {
		t.Errorf("num_examples = %d, want 150", resp.NumExamples)
	}
	if resp.Family != "random_forest" && resp.Family != "gradient_boost" {
		t.Errorf("family = %q, want an ensemble family", resp.Family)
	}
}

func TestScoreWithoutModelIs503(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		DBPath:    filepath.Join(dir, "test.db"),
		ModelPath: filepath.Join(dir, "missing.json"),
		APIToken:  testToken,
		TrainDays: 200,
	}
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	svc := scoring.NewService(cfg.ModelPath)
	router := NewRouter(cfg, database, svc, llm.NewClient(mockOllama(t, "ok").URL, "llama3"))

	rec := doJSON(t, router, "POST", "/api/v1/score", map[string]any{"sleep_hours": 8.0}, testToken)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusServiceUnavailable, rec.Body.String())
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Code != "MODEL_UNAVAILABLE" {
		t.Errorf("code = %q, want MODEL_UNAVAILABLE", resp.Code)
	}
}
