package scheduler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/equilibri/equilibri-server/internal/config"
	"github.com/equilibri/equilibri-server/internal/db"
	"github.com/equilibri/equilibri-server/internal/llm"
	"github.com/equilibri/equilibri-server/internal/record"
	"github.com/equilibri/equilibri-server/internal/scoring"
)

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

func setupScheduler(t *testing.T, ollamaURL string) (*Scheduler, *db.DB, *config.Config) {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		DBPath:    filepath.Join(dir, "test.db"),
		ModelPath: filepath.Join(dir, "model.json"),
		Timezone:  "UTC",
		TrainDays: 150,
		TrainSeed: 7,
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	svc := scoring.NewService(cfg.ModelPath)

	s, err := New(cfg, database, svc, llm.NewClient(ollamaURL, "llama3"))
	if err != nil {
		t.Fatalf("creating scheduler: %v", err)
	}
	return s, database, cfg
}

func TestRetrainJob(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping training in short mode")
	}

	s, database, _ := setupScheduler(t, mockOllama(t, "ok").URL)

	s.runRetrain()

	if !s.svc.Ready() {
		t.Fatal("service has no model after retrain")
	}

	runs, err := database.RecentJobRuns("retrain", 5)
	if err != nil {
		t.Fatalf("reading job runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d retrain runs, want 1", len(runs))
	}
	if runs[0].Status != "success" {
		t.Errorf("status = %q, want success (error: %s)", runs[0].Status, runs[0].ErrorMessage)
	}
	if runs[0].Detail == "" {
		t.Error("detail is empty, want family and MAE")
	}
}

func TestMorningAdviceSkipsWithoutData(t *testing.T) {
	s, database, _ := setupScheduler(t, mockOllama(t, "ok").URL)

	s.runMorningAdvice()

	runs, err := database.RecentJobRuns("morning_advice", 5)
	if err != nil {
		t.Fatalf("reading job runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d advice runs, want 1", len(runs))
	}
	if runs[0].Status != "skipped" {
		t.Errorf("status = %q, want skipped", runs[0].Status)
	}
}

func TestMorningAdviceGeneratesEntry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping training in short mode")
	}

	s, database, _ := setupScheduler(t, mockOllama(t, "Solid day. Sleep is the area to protect.").URL)

	// The advice job needs a loaded model and at least one saved day.
	s.runRetrain()

	rec := record.DayRecord{
		Date:            "2026-03-02",
		DayOfWeek:       "Monday",
		SleepHours:      6.5,
		Steps:           7200,
		HydrationLiters: 2.0,
		HeartRateRest:   68,
		StressLevel:     record.StressMedium,
		Mood:            record.MoodNeutral,
		ScreenTimeHours: 5.5,
	}
	if err := database.SaveDayRecord(rec); err != nil {
		t.Fatalf("saving day record: %v", err)
	}

	s.runMorningAdvice()

	runs, err := database.RecentJobRuns("morning_advice", 5)
	if err != nil {
		t.Fatalf("reading job runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d advice runs, want 1", len(runs))
	}
	if runs[0].Status != "success" {
		t.Fatalf("status = %q, want success (error: %s)", runs[0].Status, runs[0].ErrorMessage)
	}

	advice, err := database.RecentAdvice(5)
	if err != nil {
		t.Fatalf("reading advice: %v", err)
	}
	if len(advice) != 1 {
		t.Fatalf("got %d advice entries, want 1", len(advice))
	}
	if advice[0].Text == "" {
		t.Error("advice text is empty")
	}
	if advice[0].PriorityArea == "" {
		t.Error("priority area is empty")
	}
}

func TestStartAndStop(t *testing.T) {
	s, _, _ := setupScheduler(t, mockOllama(t, "ok").URL)

	if err := s.Start(); err != nil {
		t.Fatalf("starting scheduler: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stopping scheduler: %v", err)
	}
}

func TestNewFallsBackToUTC(t *testing.T) {
	s, _, _ := setupScheduler(t, mockOllama(t, "ok").URL)
	if s.timezone == nil {
		t.Fatal("timezone is nil")
	}

	dir := t.TempDir()
	cfg := &config.Config{
		DBPath:    filepath.Join(dir, "test.db"),
		ModelPath: filepath.Join(dir, "model.json"),
		Timezone:  "Not/AZone",
	}
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	s2, err := New(cfg, database, scoring.NewService(cfg.ModelPath), llm.NewClient("http://localhost:1", "llama3"))
	if err != nil {
		t.Fatalf("creating scheduler: %v", err)
	}
	if s2.timezone.String() != "UTC" {
		t.Errorf("timezone = %q, want UTC", s2.timezone)
	}
}
