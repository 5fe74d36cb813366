package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/theEndless11/chyna/internal/web"
)

// printUsage prints the usage information for the application
func printUsage() {
	fmt.Println("Usage: ./web [OPTIONS]")
	fmt.Println()
	fmt.Println("Storage and credentials are read from the environment:")
	fmt.Println("  STORAGE_BACKEND       s3 (default), minio or fs")
	fmt.Println("  B2_KEY_ID, B2_SECRET  application key for the bucket")
	fmt.Println("  B2_BUCKET, B2_BUCKET_ID, B2_REGION, B2_S3_ENDPOINT")
	fmt.Println("  REDIS_ADDR            enables the shorts listing cache")
	fmt.Println("  SQS_QUEUE_URL         publishes saveMetadata jobs to cmd/worker")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Example: STORAGE_BACKEND=fs FS_BASE_DIR=./data ./web -port 8080")
}

func main() {
	port := flag.Int("port", 8080, "Port number for the web server")
	host := flag.String("host", "localhost", "Host address for the web server")
	flag.Usage = printUsage
	flag.Parse()

	if *port <= 0 {
		fmt.Println("Error: Invalid port number:", *port)
		printUsage()
		os.Exit(1)
	}

	cfg := web.LoadConfig()
	web.SetupLogging(cfg.LogLevel)

	deps, cleanup, err := web.Build(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to build services", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	defer cleanup()

	listenAddr := fmt.Sprintf("%s:%d", *host, *port)
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		slog.Error("failed to start listener", "addr", listenAddr, "error", err)
		os.Exit(1)
	}
	defer lis.Close()

	slog.Info("starting web server", "addr", listenAddr, "backend", cfg.StorageBackend, "bucket", cfg.Bucket)
	if err := web.NewServer(deps).Start(lis); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
