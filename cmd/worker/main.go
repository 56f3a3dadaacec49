package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mailer-server/internal/bootstrap"
	"mailer-server/internal/config"
	"mailer-server/internal/jobs"
	"mailer-server/internal/jobs/workers"
	"mailer-server/internal/observability"

	"github.com/hibiken/asynq"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := observability.NewLogger()
	logger.Info(ctx, "Starting background worker server...")

	deps, err := bootstrap.Initialize(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize dependencies", err)
	}
	defer deps.Cleanup()

	// Initialize workers
	sendTimeout := time.Duration(cfg.Mail.SendTimeoutSeconds) * time.Second
	emailWorker := workers.NewEmailWorker(deps.EmailProcessor, sendTimeout, logger)
	webhookWorker := workers.NewWebhookWorker(deps.Reconciler, logger)

	// Create Asynq server with queue configuration
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password},
		asynq.Config{
			Concurrency: 20,
			Queues: map[string]int{
				jobs.QueueHigh:   10,
				jobs.QueueMedium: 5,
				jobs.QueueLow:    2,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error(ctx, fmt.Sprintf("task %s failed", task.Type()), err)
			}),
		},
	)

	// Create task handler (mux)
	mux := asynq.NewServeMux()
	mux.HandleFunc(jobs.TypeEmailSend, emailWorker.ProcessEmailSendTask)
	mux.HandleFunc(jobs.TypeWebhookProcess, webhookWorker.ProcessWebhookTask)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start the server in a goroutine
	go func() {
		logger.Info(ctx, fmt.Sprintf("Worker server started on Redis: %s", cfg.Redis.Addr))
		if err := srv.Run(mux); err != nil {
			log.Fatalf("Failed to run server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	logger.Info(ctx, "Shutting down worker server...")

	srv.Shutdown()
	logger.Info(ctx, "Worker server stopped")
}
