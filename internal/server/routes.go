package server

import (
	"storyboard/internal/core/analyze"
	"storyboard/internal/core/job"
	"storyboard/internal/health"
	"storyboard/internal/platform/redis"
	tasks "storyboard/internal/platform/tasks"

	"github.com/gofiber/fiber/v2"
)

type Dependencies struct {
	Job     *job.JobService
	Analyze *analyze.Service
	Tasks   *tasks.Client
	Redis   *redis.Service
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	healthHandler := health.NewHealthHandler(d.Redis)
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	api := app.Group("/v1")

	analyzeHandler := analyze.NewHandler(d.Analyze, d.Tasks, d.Job)
	api.Post("/analyze", analyzeHandler.HandleCreate)
	api.Get("/analyze/:jobId", analyzeHandler.HandleGet)

	return healthHandler
}
