package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/equilibri/equilibri-server/internal/advisor"
	"github.com/equilibri/equilibri-server/internal/config"
	"github.com/equilibri/equilibri-server/internal/db"
	"github.com/equilibri/equilibri-server/internal/llm"
	"github.com/equilibri/equilibri-server/internal/scoring"
	"github.com/equilibri/equilibri-server/internal/trainer"
)

// Scheduler manages the background jobs: the weekly model retrain and
// the daily morning check-in.
type Scheduler struct {
	scheduler gocron.Scheduler
	cfg       *config.Config
	db        *db.DB
	svc       *scoring.Service
	advisor   *advisor.Advisor
	llm       *llm.Client
	timezone  *time.Location
}

// New creates a scheduler. An unknown timezone falls back to UTC.
func New(cfg *config.Config, database *db.DB, svc *scoring.Service, llmClient *llm.Client) (*Scheduler, error) {
	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		tz = time.UTC
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(tz))
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		scheduler: s,
		cfg:       cfg,
		db:        database,
		svc:       svc,
		advisor:   advisor.New(llmClient),
		llm:       llmClient,
		timezone:  tz,
	}, nil
}

// Start registers all jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	// Retrain the model on Sunday at 03:00, when nobody is scoring days.
	_, err := s.scheduler.NewJob(
		gocron.WeeklyJob(1, gocron.NewWeekdays(time.Sunday), gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
		gocron.NewTask(s.runRetrain),
		gocron.WithName("weekly-retrain"),
	)
	if err != nil {
		return err
	}

	// Morning check-in at 07:00: score yesterday and store advice.
	_, err = s.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(7, 0, 0))),
		gocron.NewTask(s.runMorningAdvice),
		gocron.WithName("morning-advice"),
	)
	if err != nil {
		return err
	}

	// Health check Ollama every 5 minutes
	_, err = s.scheduler.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(s.healthCheck),
		gocron.WithName("health-check"),
	)
	if err != nil {
		return err
	}

	s.scheduler.Start()
	log.Println("Scheduler started")
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) runRetrain() {
	log.Println("Running weekly retrain...")

	runID := "retrain_" + uuid.NewString()
	if err := s.db.StartJobRun(runID, "retrain"); err != nil {
		log.Printf("Error recording retrain run: %v", err)
	}

	summary, err := trainer.Run(trainer.Options{
		Days:      s.cfg.TrainDays,
		Seed:      s.cfg.TrainSeed,
		ModelPath: s.cfg.ModelPath,
	})
	if err != nil {
		log.Printf("Error retraining model: %v", err)
		s.db.CompleteJobRun(runID, "failed", err.Error(), "")
		return
	}

	if err := s.svc.LoadModel(); err != nil {
		log.Printf("Error reloading model after retrain: %v", err)
		s.db.CompleteJobRun(runID, "failed", err.Error(), "")
		return
	}

	detail := fmt.Sprintf("family=%s mae=%.2f examples=%d", summary.Family, summary.MAE, summary.NumExamples)
	s.db.CompleteJobRun(runID, "success", "", detail)
	log.Printf("Weekly retrain done: %s", detail)
}

func (s *Scheduler) runMorningAdvice() {
	log.Println("Running morning check-in...")

	runID := "advice_" + uuid.NewString()
	if err := s.db.StartJobRun(runID, "morning_advice"); err != nil {
		log.Printf("Error recording advice run: %v", err)
	}

	latest, err := s.db.LatestDayRecord()
	if err != nil {
		log.Printf("Error reading latest day: %v", err)
		s.db.CompleteJobRun(runID, "failed", err.Error(), "")
		return
	}
	if latest == nil {
		log.Println("No day records yet, skipping morning check-in")
		s.db.CompleteJobRun(runID, "skipped", "", "no day records")
		return
	}

	res, err := s.svc.ScoreRecord(*latest)
	if err != nil {
		log.Printf("Error scoring latest day: %v", err)
		s.db.CompleteJobRun(runID, "failed", err.Error(), "")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	analysis, err := s.advisor.AnalyzeDay(ctx, *latest, res, "balanced")
	if err != nil {
		log.Printf("Error generating morning advice: %v", err)
		s.db.CompleteJobRun(runID, "failed", err.Error(), "")
		return
	}

	today := time.Now().In(s.timezone).Format("2006-01-02")
	if err := s.db.SaveAdvice(today, res.Score, string(res.Category), analysis.PriorityArea, analysis.Text); err != nil {
		log.Printf("Error saving morning advice: %v", err)
		s.db.CompleteJobRun(runID, "failed", err.Error(), "")
		return
	}

	s.db.CompleteJobRun(runID, "success", "", "priority="+analysis.PriorityArea)
	log.Printf("Morning check-in done for %s (score %.1f)", latest.Date, res.Score)
}

func (s *Scheduler) healthCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.llm.HealthCheck(ctx); err != nil {
		log.Printf("Ollama health check failed: %v", err)
	}
}
