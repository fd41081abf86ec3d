package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"storyboard/internal/config"
	"storyboard/internal/core/analyze"
	"storyboard/internal/core/extract"
	"storyboard/internal/core/job"
	"storyboard/internal/core/storage"
	"storyboard/internal/logger"
	rds "storyboard/internal/platform/redis"
	tasks "storyboard/internal/platform/tasks"
	"storyboard/internal/server"
	"storyboard/internal/worker"
)

func main() {
	cfg := config.Load()
	log.Printf("[storyboard] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	logr := logger.New("main")

	// Redis client
	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer redisSvc.Close()

	// Asynq client and server. Concurrency 1: each run owns the single
	// externally-managed browser window, parallel runs would fight over it.
	taskClient := tasks.New(redisSvc)
	asynqServer := asynq.NewServer(redisSvc.AsynqRedisOpt(), asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{"default": 1},
	})

	// Core services
	jobSvc := job.NewJobService(redisSvc)
	extractSvc := extract.NewService()
	storageSvc := storage.NewService()
	analyzeSvc := analyze.NewService(cfg, jobSvc, extractSvc, storageSvc)

	// Worker mux
	mux := worker.NewMux()
	mux.HandleFunc(analyze.TaskTypeAnalyze, analyzeSvc.HandleTask)

	_, workerCancel := context.WithCancel(context.Background())
	go func() {
		if err := asynqServer.Start(mux.Mux()); err != nil {
			log.Printf("[worker] stopped: %v\n", err)
		}
	}()

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName: "Storyboard Engine",
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})
	// Serve saved artifacts (storyboard workbooks) from DATA_DIR under /files
	app.Static("/files", cfg.DataDir)

	deps := server.Dependencies{
		Job:     jobSvc,
		Analyze: analyzeSvc,
		Tasks:   taskClient,
		Redis:   redisSvc,
	}
	healthHandler := server.RegisterRoutes(app, deps)

	go func() {
		time.Sleep(5 * time.Second) // Allow services to fully initialize
		healthHandler.SetReady()
	}()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		workerCancel()
		asynqServer.Shutdown()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
}
