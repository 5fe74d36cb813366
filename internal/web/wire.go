package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// SetupLogging installs the JSON slog handler every binary logs through.
func SetupLogging(level slog.Level) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// NewObjectStore constructs the backend named by cfg.StorageBackend.
func NewObjectStore(ctx context.Context, cfg Config) (ObjectStore, error) {
	switch cfg.StorageBackend {
	case "s3":
		return NewS3ObjectStore(ctx, cfg)
	case "minio":
		return NewMinioObjectStore(cfg)
	case "fs":
		return NewFSObjectStore(cfg.FSBaseDir), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}

// NewResolver picks presigned URLs when requested and the store can sign, and the
// public bucket URL otherwise.
func NewResolver(cfg Config, store ObjectStore) URLResolver {
	if cfg.SignedURLs {
		if signer, ok := store.(URLSigner); ok {
			return SignedURLResolver{Signer: signer, TTL: cfg.SignedURLTTL}
		}
		slog.Warn("signed urls requested but storage backend cannot sign", "backend", cfg.StorageBackend)
	}
	return PublicURLResolver{Base: cfg.PublicBaseURL}
}

// Build wires every collaborator the server and worker need. The returned
// cleanup releases connections opened along the way.
func Build(ctx context.Context, cfg Config) (Deps, func(), error) {
	cleanup := func() {}

	store, err := NewObjectStore(ctx, cfg)
	if err != nil {
		return Deps{}, cleanup, err
	}
	resolver := NewResolver(cfg, store)

	var cache ShortsCache
	if cfg.RedisAddr != "" {
		rc, err := NewRedisShortsCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.ShortsCacheTTL)
		if err != nil {
			slog.Warn("redis unavailable, shorts cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			cache = rc
			cleanup = func() { rc.Close() }
		}
	}

	var jobs JobQueue
	if cfg.SQSQueueURL != "" {
		q, err := NewSQSJobQueue(ctx, cfg.SQSQueueURL)
		if err != nil {
			slog.Error("failed to create job queue, publishing in-process", "error", err)
		} else {
			jobs = q
		}
	}

	httpClient := &http.Client{Timeout: 2 * time.Minute}
	auth := NewB2Authorizer(httpClient, cfg.B2APIURL, cfg.KeyID, cfg.Secret, cfg.B2AuthTTL)

	deps := Deps{
		Aggregator: &Aggregator{
			Store:       store,
			Resolver:    resolver,
			Concurrency: cfg.FetchConcurrency,
			Cache:       cache,
		},
		Publisher: &Publisher{
			Store:      store,
			Thumbnails: FFmpegThumbnailer{Binary: cfg.FFmpegPath},
			Resolver:   resolver,
			Cache:      cache,
		},
		Deleter: &Deleter{
			Store:      store,
			PublicBase: cfg.PublicBaseURL,
			Cache:      cache,
		},
		Uploader:         NewB2Client(httpClient, auth, cfg.BucketID),
		Jobs:             jobs,
		ShortsTimeout:    cfg.ShortsTimeout,
		UploadHostSuffix: cfg.UploadHostSuffix,
		MaxUploadBytes:   cfg.MaxUploadBytes,
	}
	return deps, cleanup, nil
}
