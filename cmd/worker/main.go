package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/theEndless11/chyna/internal/web"
)

func main() {
	cfg := web.LoadConfig()
	web.SetupLogging(cfg.LogLevel)

	if cfg.SQSQueueURL == "" {
		slog.Error("SQS_QUEUE_URL not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := web.Build(ctx, cfg)
	if err != nil {
		slog.Error("failed to build services", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	queue, ok := deps.Jobs.(*web.SQSJobQueue)
	if !ok {
		slog.Error("job queue unavailable")
		os.Exit(1)
	}

	slog.Info("worker started", "queue", cfg.SQSQueueURL)
	worker := &web.Worker{Jobs: queue, Publisher: deps.Publisher}
	worker.Run(ctx)
	slog.Info("worker stopped")
}
