package web

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is read once from the environment by each binary.
type Config struct {
	StorageBackend string // "s3", "minio" or "fs"

	KeyID      string
	Secret     string
	Bucket     string
	BucketID   string
	Region     string
	S3Endpoint string
	B2APIURL   string
	B2AuthTTL  time.Duration

	PublicBaseURL string
	SignedURLs    bool
	SignedURLTTL  time.Duration
	FSBaseDir     string

	FetchConcurrency int
	ShortsTimeout    time.Duration
	UploadHostSuffix string
	MaxUploadBytes   int64
	FFmpegPath       string

	RedisAddr      string
	RedisPassword  string
	ShortsCacheTTL time.Duration

	SQSQueueURL string
	LogLevel    slog.Level
}

func LoadConfig() Config {
	cfg := Config{
		StorageBackend: getEnv("STORAGE_BACKEND", "s3"),

		KeyID:      os.Getenv("B2_KEY_ID"),
		Secret:     os.Getenv("B2_SECRET"),
		Bucket:     getEnv("B2_BUCKET", "Lizard"),
		BucketID:   os.Getenv("B2_BUCKET_ID"),
		Region:     getEnv("B2_REGION", "eu-central-003"),
		S3Endpoint: os.Getenv("B2_S3_ENDPOINT"),
		B2APIURL:   getEnv("B2_API_URL", "https://api.backblazeb2.com"),
		B2AuthTTL:  getEnvDuration("B2_AUTH_TTL", 23*time.Hour),

		PublicBaseURL: os.Getenv("PUBLIC_BASE_URL"),
		SignedURLs:    getEnvBool("SIGNED_URLS", false),
		SignedURLTTL:  getEnvDuration("SIGNED_URL_TTL", time.Hour),
		FSBaseDir:     getEnv("FS_BASE_DIR", "./data"),

		FetchConcurrency: getEnvInt("FETCH_CONCURRENCY", defaultFetchConcurrency),
		ShortsTimeout:    getEnvDuration("SHORTS_TIMEOUT", 25*time.Second),
		UploadHostSuffix: getEnv("UPLOAD_HOST_SUFFIX", "backblazeb2.com"),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_BYTES", 50<<20)),
		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		ShortsCacheTTL: getEnvDuration("SHORTS_CACHE_TTL", 10*time.Second),

		SQSQueueURL: os.Getenv("SQS_QUEUE_URL"),
		LogLevel:    parseLevel(os.Getenv("LOG_LEVEL")),
	}

	if cfg.S3Endpoint == "" {
		cfg.S3Endpoint = "https://s3." + cfg.Region + ".backblazeb2.com"
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = strings.TrimRight(cfg.S3Endpoint, "/") + "/" + cfg.Bucket
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("ignoring invalid integer setting", "key", key, "value", v)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("ignoring invalid boolean setting", "key", key, "value", v)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("ignoring invalid duration setting", "key", key, "value", v)
		return fallback
	}
	return d
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
