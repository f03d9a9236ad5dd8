package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/equilibri/equilibri-server/internal/record"
)

const schema = `
-- Daily health history, one row per calendar day
CREATE TABLE IF NOT EXISTS day_records (
    date TEXT PRIMARY KEY,
    day_of_week TEXT NOT NULL,
    sleep_hours REAL NOT NULL,
    steps INTEGER NOT NULL,
    hydration_liters REAL NOT NULL,
    heart_rate_rest INTEGER NOT NULL,
    stress_level TEXT NOT NULL,
    mood TEXT NOT NULL,
    screen_time_hours REAL NOT NULL,
    is_weekend INTEGER NOT NULL,
    posture_score REAL,
    created_at TEXT NOT NULL
);

-- Scheduled job tracking (retrain, morning advice)
CREATE TABLE IF NOT EXISTS job_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT UNIQUE NOT NULL,
    job_type TEXT NOT NULL,
    status TEXT NOT NULL,
    started_at TEXT NOT NULL,
    completed_at TEXT,
    error_message TEXT,
    detail TEXT
);

-- Generated advice, for history display
CREATE TABLE IF NOT EXISTS advice_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    for_date TEXT NOT NULL,
    score REAL NOT NULL,
    category TEXT NOT NULL,
    priority_area TEXT,
    text TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_day_records_date ON day_records(date DESC);
CREATE INDEX IF NOT EXISTS idx_job_runs_type ON job_runs(job_type, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_advice_date ON advice_log(for_date DESC);
`

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(schema)
	if err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// SaveDayRecord upserts the record for its date. The date key makes
// mid-session updates overwrite the same day instead of appending.
func (db *DB) SaveDayRecord(rec record.DayRecord) error {
	if rec.Date == "" {
		return fmt.Errorf("saving day record: date is required")
	}

	var posture sql.NullFloat64
	if rec.PostureScore != nil {
		posture = sql.NullFloat64{Float64: *rec.PostureScore, Valid: true}
	}

	_, err := db.conn.Exec(`
		INSERT INTO day_records
			(date, day_of_week, sleep_hours, steps, hydration_liters, heart_rate_rest,
			 stress_level, mood, screen_time_hours, is_weekend, posture_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			day_of_week = excluded.day_of_week,
			sleep_hours = excluded.sleep_hours,
			steps = excluded.steps,
			hydration_liters = excluded.hydration_liters,
			heart_rate_rest = excluded.heart_rate_rest,
			stress_level = excluded.stress_level,
			mood = excluded.mood,
			screen_time_hours = excluded.screen_time_hours,
			is_weekend = excluded.is_weekend,
			posture_score = excluded.posture_score`,
		rec.Date, rec.DayOfWeek, rec.SleepHours, rec.Steps, rec.HydrationLiters,
		rec.HeartRateRest, rec.StressLevel.String(), rec.Mood.String(),
		rec.ScreenTimeHours, boolToInt(rec.IsWeekend), posture,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving day record: %w", err)
	}
	return nil
}

// GetHistory returns the most recent day records, oldest first.
func (db *DB) GetHistory(days int) ([]record.DayRecord, error) {
	rows, err := db.conn.Query(`
		SELECT date, day_of_week, sleep_hours, steps, hydration_liters, heart_rate_rest,
		       stress_level, mood, screen_time_hours, is_weekend, posture_score
		FROM day_records
		ORDER BY date DESC
		LIMIT ?`, days)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var recs []record.DayRecord
	for rows.Next() {
		rec, err := scanDayRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	// Flip to chronological order.
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

// LatestDayRecord returns the most recent record, or nil when none exist.
func (db *DB) LatestDayRecord() (*record.DayRecord, error) {
	recs, err := db.GetHistory(1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func scanDayRecord(rows *sql.Rows) (record.DayRecord, error) {
	var rec record.DayRecord
	var stress, mood string
	var weekend int
	var posture sql.NullFloat64

	if err := rows.Scan(&rec.Date, &rec.DayOfWeek, &rec.SleepHours, &rec.Steps,
		&rec.HydrationLiters, &rec.HeartRateRest, &stress, &mood,
		&rec.ScreenTimeHours, &weekend, &posture); err != nil {
		return rec, fmt.Errorf("scanning day record: %w", err)
	}

	var err error
	if rec.StressLevel, err = record.ParseStress(stress); err != nil {
		return rec, fmt.Errorf("day %s: %w", rec.Date, err)
	}
	if rec.Mood, err = record.ParseMood(mood); err != nil {
		return rec, fmt.Errorf("day %s: %w", rec.Date, err)
	}
	rec.IsWeekend = weekend != 0
	if posture.Valid {
		rec.PostureScore = &posture.Float64
	}
	return rec, nil
}

// StartJobRun records the start of a scheduled or manual job.
func (db *DB) StartJobRun(runID, jobType string) error {
	_, err := db.conn.Exec(`
		INSERT INTO job_runs (run_id, job_type, status, started_at)
		VALUES (?, ?, 'running', ?)`,
		runID, jobType, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording job start: %w", err)
	}
	return nil
}

// CompleteJobRun closes out a job run with its final status.
func (db *DB) CompleteJobRun(runID, status, errorMessage, detail string) error {
	_, err := db.conn.Exec(`
		UPDATE job_runs
		SET status = ?, completed_at = ?, error_message = ?, detail = ?
		WHERE run_id = ?`,
		status, time.Now().UTC().Format(time.RFC3339), errorMessage, detail, runID)
	if err != nil {
		return fmt.Errorf("recording job completion: %w", err)
	}
	return nil
}

// JobRun is one row of scheduled job history.
type JobRun struct {
	RunID        string
	JobType      string
	Status       string
	StartedAt    string
	CompletedAt  string
	ErrorMessage string
	Detail       string
}

// RecentJobRuns returns the latest runs for a job type, newest first.
func (db *DB) RecentJobRuns(jobType string, limit int) ([]JobRun, error) {
	rows, err := db.conn.Query(`
		SELECT run_id, job_type, status, started_at,
		       COALESCE(completed_at, ''), COALESCE(error_message, ''), COALESCE(detail, '')
		FROM job_runs
		WHERE job_type = ?
		ORDER BY started_at DESC
		LIMIT ?`, jobType, limit)
	if err != nil {
		return nil, fmt.Errorf("querying job runs: %w", err)
	}
	defer rows.Close()

	var runs []JobRun
	for rows.Next() {
		var run JobRun
		if err := rows.Scan(&run.RunID, &run.JobType, &run.Status, &run.StartedAt,
			&run.CompletedAt, &run.ErrorMessage, &run.Detail); err != nil {
			return nil, fmt.Errorf("scanning job run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveAdvice stores a generated advice entry.
func (db *DB) SaveAdvice(forDate string, score float64, category, priorityArea, text string) error {
	_, err := db.conn.Exec(`
		INSERT INTO advice_log (for_date, score, category, priority_area, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		forDate, score, category, priorityArea, text,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving advice: %w", err)
	}
	return nil
}

// AdviceEntry is one row of stored advice.
type AdviceEntry struct {
	ForDate      string  `json:"for_date"`
	Score        float64 `json:"score"`
	Category     string  `json:"category"`
	PriorityArea string  `json:"priority_area"`
	Text         string  `json:"text"`
	CreatedAt    string  `json:"created_at"`
}

// RecentAdvice returns the latest advice entries, newest first.
func (db *DB) RecentAdvice(limit int) ([]AdviceEntry, error) {
	rows, err := db.conn.Query(`
		SELECT for_date, score, category, COALESCE(priority_area, ''), text, created_at
		FROM advice_log
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying advice: %w", err)
	}
	defer rows.Close()

	var entries []AdviceEntry
	for rows.Next() {
		var e AdviceEntry
		if err := rows.Scan(&e.ForDate, &e.Score, &e.Category, &e.PriorityArea, &e.Text, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning advice: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
