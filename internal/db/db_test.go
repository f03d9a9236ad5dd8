package db

import (
	"os"
	"testing"

	"github.com/equilibri/equilibri-server/internal/record"
)

func setupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "equilibri-db-test-*.db")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	tmpFile.Close()

	db, err := Open(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("opening database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(tmpFile.Name())
	}

	return db, cleanup
}

func sampleRecord(date, day string) record.DayRecord {
	return record.DayRecord{
		Date: date, DayOfWeek: day,
		SleepHours: 7.5, Steps: 9200, HydrationLiters: 2.3,
		HeartRateRest: 62, StressLevel: record.StressLow,
		Mood: record.MoodGood, ScreenTimeHours: 4.2,
	}
}

func TestSaveAndGetHistory(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	days := []string{"2026-08-27", "2026-08-28", "2026-08-29"}
	labels := []string{"Thursday", "Friday", "Saturday"}
	for i, d := range days {
		rec := sampleRecord(d, labels[i])
		rec.Steps = 1000 * (i + 1)
		rec.IsWeekend = labels[i] == "Saturday"
		if err := db.SaveDayRecord(rec); err != nil {
			t.Fatalf("saving %s: %v", d, err)
		}
	}

	history, err := db.GetHistory(7)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	// Chronological order, oldest first.
	for i, d := range days {
		if history[i].Date != d {
			t.Errorf("history[%d].date = %s, want %s", i, history[i].Date, d)
		}
	}
	if history[2].StressLevel != record.StressLow || history[2].Mood != record.MoodGood {
		t.Errorf("enums did not survive storage: %+v", history[2])
	}
	if !history[2].IsWeekend {
		t.Error("is_weekend lost on Saturday record")
	}
}

func TestSaveDayRecordUpsert(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	rec := sampleRecord("2026-08-30", "Sunday")
	if err := db.SaveDayRecord(rec); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// Mid-session update: same date, new steps.
	rec.Steps = 15000
	if err := db.SaveDayRecord(rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	history, err := db.GetHistory(10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("upsert created %d rows, want 1", len(history))
	}
	if history[0].Steps != 15000 {
		t.Errorf("steps = %d, want 15000", history[0].Steps)
	}
}

func TestSaveDayRecordRequiresDate(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	rec := sampleRecord("", "")
	if err := db.SaveDayRecord(rec); err == nil {
		t.Error("expected error for missing date")
	}
}

func TestPostureScoreRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	posture := 81.5
	rec := sampleRecord("2026-08-30", "Sunday")
	rec.PostureScore = &posture
	if err := db.SaveDayRecord(rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.LatestDayRecord()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got == nil || got.PostureScore == nil || *got.PostureScore != 81.5 {
		t.Errorf("posture score lost: %+v", got)
	}
}

func TestLatestDayRecordEmpty(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	got, err := db.LatestDayRecord()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil on empty history, got %+v", got)
	}
}

func TestJobRuns(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.StartJobRun("run_1", "retrain"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := db.CompleteJobRun("run_1", "success", "", "mae=3.2"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	runs, err := db.RecentJobRuns("retrain", 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].Status != "success" || runs[0].Detail != "mae=3.2" {
		t.Errorf("run = %+v", runs[0])
	}
}

func TestAdviceLog(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.SaveAdvice("2026-08-30", 72.5, "good", "activity", "Take a walk."); err != nil {
		t.Fatalf("save advice: %v", err)
	}

	entries, err := db.RecentAdvice(10)
	if err != nil {
		t.Fatalf("recent advice: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Score != 72.5 || entries[0].PriorityArea != "activity" {
		t.Errorf("entry = %+v", entries[0])
	}
}
