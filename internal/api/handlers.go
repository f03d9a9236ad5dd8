package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/equilibri/equilibri-server/internal/advisor"
	"github.com/equilibri/equilibri-server/internal/config"
	"github.com/equilibri/equilibri-server/internal/db"
	"github.com/equilibri/equilibri-server/internal/estimator"
	"github.com/equilibri/equilibri-server/internal/feature"
	"github.com/equilibri/equilibri-server/internal/llm"
	"github.com/equilibri/equilibri-server/internal/models"
	"github.com/equilibri/equilibri-server/internal/record"
	"github.com/equilibri/equilibri-server/internal/scoring"
	"github.com/equilibri/equilibri-server/internal/synth"
	"github.com/equilibri/equilibri-server/internal/trainer"
)

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message, code, field string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
		Code:  code,
		Field: field,
	})
}

// writeDomainError maps pipeline error kinds onto HTTP statuses. Every
// reported error carries its kind and, where known, the offending field.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *record.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error(), "VALIDATION_ERROR", verr.Field)
		return
	}
	var mismatch *feature.SchemaMismatchError
	if errors.As(err, &mismatch) {
		writeError(w, http.StatusServiceUnavailable, mismatch.Error(), "SCHEMA_MISMATCH", "")
		return
	}
	var insufficient *estimator.InsufficientDataError
	if errors.As(err, &insufficient) {
		writeError(w, http.StatusBadRequest, insufficient.Error(), "INSUFFICIENT_DATA", "")
		return
	}
	var loadErr *estimator.LoadError
	if errors.As(err, &loadErr) || errors.Is(err, scoring.ErrModelNotLoaded) {
		writeError(w, http.StatusServiceUnavailable, err.Error(), "MODEL_UNAVAILABLE", "")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL", "")
}

type Handlers struct {
	cfg     *config.Config
	db      *db.DB
	svc     *scoring.Service
	advisor *advisor.Advisor
	llm     *llm.Client

	trainMu sync.Mutex
}

func NewHandlers(cfg *config.Config, database *db.DB, svc *scoring.Service, adv *advisor.Advisor, llmClient *llm.Client) *Handlers {
	return &Handlers{
		cfg:     cfg,
		db:      database,
		svc:     svc,
		advisor: adv,
		llm:     llmClient,
	}
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status:  "ok",
		Model:   h.checkModel(),
		Ollama:  h.checkOllama(),
		Version: "1.0.0",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func (h *Handlers) checkModel() string {
	info, err := h.svc.ModelInfo()
	if err != nil {
		return "not loaded"
	}
	return fmt.Sprintf("%s (MAE %.2f)", info.Family, info.MAE)
}

func (h *Handlers) checkOllama() string {
	if h.llm == nil {
		return "not configured"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.llm.HealthCheck(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "connected"
}

// Score handles POST /score: one-off scoring of a raw day, nothing saved.
func (h *Handlers) Score(w http.ResponseWriter, r *http.Request) {
	partial, ok := decodePartial(w, r.Body)
	if !ok {
		return
	}

	res, err := h.svc.Score(partial)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	json.NewEncoder(w).Encode(scoreResponse(res))
}

// SaveDay handles POST /days: scores the day and persists it to history.
// Re-posting the same date updates it, matching mid-session usage.
func (h *Handlers) SaveDay(w http.ResponseWriter, r *http.Request) {
	partial, ok := decodePartial(w, r.Body)
	if !ok {
		return
	}

	date := partial.Date
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", "VALIDATION_ERROR", "date")
		return
	}

	res, err := h.svc.Score(partial)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rec, _, err := record.FromPartial(partial)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rec.Date = date
	rec.DayOfWeek = parsed.Weekday().String()
	if partial.IsWeekend == nil {
		rec.IsWeekend = parsed.Weekday() == time.Saturday || parsed.Weekday() == time.Sunday
	}

	if err := h.db.SaveDayRecord(rec); err != nil {
		log.Printf("Saving day %s: %v", date, err)
		writeError(w, http.StatusInternalServerError, "failed to save day record", "STORAGE", "")
		return
	}

	json.NewEncoder(w).Encode(models.DayResponse{
		Date:  date,
		Saved: true,
		Score: scoreResponse(res),
	})
}

// History handles GET /history?days=N
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer", "VALIDATION_ERROR", "days")
			return
		}
		days = n
	}

	recs, err := h.db.GetHistory(days)
	if err != nil {
		log.Printf("Reading history: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to read history", "STORAGE", "")
		return
	}

	json.NewEncoder(w).Encode(models.HistoryResponse{Days: recs})
}

// Advice handles POST /advice: scores a day (given or latest saved) and
// asks the LLM advisor for analysis plus morning recommendations.
func (h *Handlers) Advice(w http.ResponseWriter, r *http.Request) {
	var req models.AdviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeDecodeError(w, err)
		return
	}

	var rec record.DayRecord
	var res *scoring.Result
	var err error

	if req.Day != nil {
		res, err = h.svc.Score(*req.Day)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		rec, _, _ = record.FromPartial(*req.Day)
	} else {
		latest, dbErr := h.db.LatestDayRecord()
		if dbErr != nil {
			log.Printf("Reading latest day: %v", dbErr)
			writeError(w, http.StatusInternalServerError, "failed to read history", "STORAGE", "")
			return
		}
		if latest == nil {
			writeError(w, http.StatusNotFound, "no day records saved yet", "NO_DATA", "")
			return
		}
		rec = *latest
		res, err = h.svc.ScoreRecord(rec)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	analysis, err := h.advisor.AnalyzeDay(ctx, rec, res, req.Personality)
	if err != nil {
		log.Printf("Advisor analysis failed: %v", err)
		writeError(w, http.StatusBadGateway, "advice generation failed", "ADVISOR", "")
		return
	}

	// Recommendations are best-effort; a failure still returns the analysis.
	recommendations, err := h.advisor.MorningRecommendations(ctx, rec, res.Score)
	if err != nil {
		log.Printf("Morning recommendations failed: %v", err)
	}

	forDate := rec.Date
	if forDate == "" {
		forDate = time.Now().Format("2006-01-02")
	}
	if err := h.db.SaveAdvice(forDate, res.Score, string(res.Category), analysis.PriorityArea, analysis.Text); err != nil {
		log.Printf("Saving advice: %v", err)
	}

	json.NewEncoder(w).Encode(models.AdviceResponse{
		Score:                  res.Score,
		Category:               string(res.Category),
		Analysis:               analysis.Text,
		PriorityArea:           analysis.PriorityArea,
		PriorityScore:          analysis.PriorityScore,
		MorningRecommendations: recommendations,
	})
}

// AdviceHistory handles GET /advice
func (h *Handlers) AdviceHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.db.RecentAdvice(20)
	if err != nil {
		log.Printf("Reading advice history: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to read advice history", "STORAGE", "")
		return
	}
	json.NewEncoder(w).Encode(models.AdviceHistoryResponse{Advice: entries})
}

// Train handles POST /train: a synchronous manual retrain. Only one
// training run is allowed at a time.
func (h *Handlers) Train(w http.ResponseWriter, r *http.Request) {
	var req models.TrainRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDecodeError(w, err)
			return
		}
	}

	weights, err := synth.WeightsFromMap(req.Weights)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR", "weights")
		return
	}

	if !h.trainMu.TryLock() {
		writeError(w, http.StatusConflict, "a training run is already in progress", "TRAINING_BUSY", "")
		return
	}
	defer h.trainMu.Unlock()

	days := req.Days
	if days == 0 {
		days = h.cfg.TrainDays
	}
	seed := req.Seed
	if seed == 0 {
		seed = h.cfg.TrainSeed
	}

	runID := "train_" + uuid.NewString()
	if err := h.db.StartJobRun(runID, "retrain"); err != nil {
		log.Printf("Recording training run: %v", err)
	}

	summary, err := trainer.Run(trainer.Options{
		Days:        days,
		Seed:        seed,
		Weights:     weights,
		ModelPath:   h.cfg.ModelPath,
		DatasetPath: h.cfg.DatasetPath,
	})
	if err != nil {
		h.db.CompleteJobRun(runID, "failed", err.Error(), "")
		writeDomainError(w, err)
		return
	}

	if err := h.svc.LoadModel(); err != nil {
		h.db.CompleteJobRun(runID, "failed", err.Error(), "")
		writeDomainError(w, err)
		return
	}
	h.db.CompleteJobRun(runID, "success", "", fmt.Sprintf("family=%s mae=%.2f", summary.Family, summary.MAE))

	json.NewEncoder(w).Encode(models.TrainResponse{
		Family:        string(summary.Family),
		MAE:           summary.MAE,
		SchemaVersion: summary.SchemaVersion,
		NumExamples:   summary.NumExamples,
		DurationMS:    summary.DurationMS,
	})
}

// ModelInfo handles GET /model
func (h *Handlers) ModelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.ModelInfo()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	json.NewEncoder(w).Encode(models.ModelInfoResponse{
		Family:        string(info.Family),
		MAE:           info.MAE,
		SchemaVersion: info.SchemaVersion,
		NumFeatures:   info.NumFeatures,
		NumExamples:   info.NumExamples,
		TrainedAt:     info.TrainedAt.Format(time.RFC3339),
	})
}

func scoreResponse(res *scoring.Result) models.ScoreResponse {
	return models.ScoreResponse{
		Score:         res.Score,
		Category:      string(res.Category),
		SubScores:     res.SubScores,
		ClampedFields: res.ClampedFields,
		PostureScore:  res.PostureScore,
	}
}

// decodePartial decodes a raw day payload, translating JSON type errors
// into field-level validation errors.
func decodePartial(w http.ResponseWriter, body io.Reader) (record.Partial, bool) {
	var partial record.Partial
	if err := json.NewDecoder(body).Decode(&partial); err != nil {
		writeDecodeError(w, err)
		return record.Partial{}, false
	}
	return partial, true
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		reason := fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value)
		writeError(w, http.StatusBadRequest, "invalid field "+typeErr.Field+": "+reason, "VALIDATION_ERROR", typeErr.Field)
		return
	}
	var verr *record.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error(), "VALIDATION_ERROR", verr.Field)
		return
	}
	writeError(w, http.StatusBadRequest, "invalid request body", "INVALID_BODY", "")
}
