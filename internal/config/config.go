// Package config loads process configuration from the environment.
package config

import (
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it, using system environment variables")
	}
}

// Config holds every tunable the pipeline and its substrate need.
// All fields have documented defaults; nothing is required except DatabaseURL
// when the video job queue is in use.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string

	// Object store (S3-compatible: R2, S3, MinIO, ...)
	StoreAccountID  string
	StoreAccessKey  string
	StoreSecretKey  string
	StoreBucket     string
	StorePublicURL  string
	StoreEndpoint   string // explicit override; derived from AccountID for R2 when empty

	// Local filesystem roots
	PublicDir string
	CacheDir  string
	TempDir   string

	// Existence cache
	ExistenceCacheCapacity int
	ExistencePositiveTTL   int // seconds
	ExistenceNegativeTTL   int // seconds

	// Smart cache policy
	LocalCacheCeilingBytes int64

	// Uploads
	UploadMaxBytes int64

	// Video
	VideoMaxSourceBytes int64
	VideoTimeoutSeconds int
	FFmpegPath          string
	FFprobePath         string

	// Job queue
	WorkerConcurrency  int
	WorkerPollInterval int // ms
	JobMaxRetries      int
	JobRetentionHours  int

	// Signature verifier
	HMACSecret string

	AllowedOrigins []string
}

// Load reads configuration from the environment, applying defaults for
// everything that is not required to be explicit.
func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "3001"),
		Env:         getEnv("NODE_ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		StoreAccountID: os.Getenv("STORE_ACCOUNT_ID"),
		StoreAccessKey: os.Getenv("STORE_ACCESS_KEY_ID"),
		StoreSecretKey: os.Getenv("STORE_SECRET_ACCESS_KEY"),
		StoreBucket:    os.Getenv("STORE_BUCKET_NAME"),
		StorePublicURL: os.Getenv("STORE_PUBLIC_URL"),
		StoreEndpoint:  os.Getenv("STORE_ENDPOINT"),

		PublicDir: getEnv("PUBLIC_DIR", "./public"),
		CacheDir:  getEnv("CACHE_DIR", "./cache"),
		TempDir:   getEnv("TEMP_DIR", "./temp"),

		ExistenceCacheCapacity: getEnvInt("EXISTENCE_CACHE_CAPACITY", 10_000),
		ExistencePositiveTTL:   getEnvInt("EXISTENCE_CACHE_POSITIVE_TTL_SECONDS", 60),
		ExistenceNegativeTTL:   getEnvInt("EXISTENCE_CACHE_NEGATIVE_TTL_SECONDS", 30),

		LocalCacheCeilingBytes: getEnvInt64("LOCAL_CACHE_CEILING_BYTES", 1<<30), // 1 GiB

		UploadMaxBytes: getEnvInt64("UPLOAD_MAX_BYTES", 50*1024*1024),

		VideoMaxSourceBytes: getEnvInt64("VIDEO_MAX_SOURCE_BYTES", 200*1024*1024),
		VideoTimeoutSeconds: getEnvInt("VIDEO_TIMEOUT_SECONDS", 300),
		FFmpegPath:          getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:         getEnv("FFPROBE_PATH", "ffprobe"),

		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", autoConcurrency()),
		WorkerPollInterval: getEnvInt("WORKER_POLL_INTERVAL_MS", 1000),
		JobMaxRetries:      getEnvInt("JOB_MAX_RETRIES", 3),
		JobRetentionHours:  getEnvInt("JOB_RETENTION_HOURS", 72),

		HMACSecret: getEnv("SIGNATURE_HMAC_SECRET", ""),
	}

	cfg.AllowedOrigins = GetAllowedOrigins()

	if cfg.StoreEndpoint == "" && cfg.StoreAccountID != "" {
		cfg.StoreEndpoint = "https://" + cfg.StoreAccountID + ".r2.cloudflarestorage.com"
	}

	return cfg
}

// autoConcurrency mirrors the spec's max(1, min(16, RAM_GiB/2)) heuristic,
// approximated from CPU count since Go has no portable RAM query in the
// standard library.
func autoConcurrency() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	if n > 16 {
		n = 16
	}
	return n
}

// GetAllowedOrigins returns a slice of allowed CORS origins from the
// environment variable. It defaults to localhost:3000 if not set.
func GetAllowedOrigins() []string {
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr == "" {
		return []string{"http://localhost:3000"}
	}

	parts := strings.Split(originsStr, ",")
	var origins []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
