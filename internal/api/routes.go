package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/equilibri/equilibri-server/internal/advisor"
	"github.com/equilibri/equilibri-server/internal/config"
	"github.com/equilibri/equilibri-server/internal/db"
	"github.com/equilibri/equilibri-server/internal/llm"
	"github.com/equilibri/equilibri-server/internal/scoring"
)

func NewRouter(cfg *config.Config, database *db.DB, svc *scoring.Service, llmClient *llm.Client) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)

	handlers := NewHandlers(cfg, database, svc, advisor.New(llmClient), llmClient)
	limiter := NewRateLimiter(60, time.Minute)

	// Public endpoints
	r.Get("/health", handlers.Health)

	// API v1 routes (authenticated)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg))
		r.Use(JSONContentType)
		r.Use(RateLimitMiddleware(limiter))

		r.Post("/score", handlers.Score)
		r.Post("/days", handlers.SaveDay)
		r.Get("/history", handlers.History)
		r.Post("/advice", handlers.Advice)
		r.Get("/advice", handlers.AdviceHistory)
		r.Post("/train", handlers.Train)
		r.Get("/model", handlers.ModelInfo)
	})

	return r
}
