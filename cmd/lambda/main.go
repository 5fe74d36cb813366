package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"github.com/theEndless11/chyna/internal/web"
)

func main() {
	cfg := web.LoadConfig()
	web.SetupLogging(cfg.LogLevel)

	deps, cleanup, err := web.Build(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to build services", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	adapter := httpadapter.New(web.NewServer(deps).Handler())
	slog.Info("starting lambda handler", "backend", cfg.StorageBackend, "bucket", cfg.Bucket)
	lambda.Start(adapter.ProxyWithContext)
}
