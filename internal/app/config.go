package app

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/yungbote/draftsync-backend/internal/data/db"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/media"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/session"
	"github.com/yungbote/draftsync-backend/internal/observability"
	"github.com/yungbote/draftsync-backend/internal/platform/envutil"
	"github.com/yungbote/draftsync-backend/internal/platform/gcp"
	"github.com/yungbote/draftsync-backend/internal/platform/locks"
	"github.com/yungbote/draftsync-backend/internal/realtime/bus"
)

type Config struct {
	Port    string
	LogMode string

	Postgres db.PostgresConfig
	Bucket   gcp.BucketConfig
	Drive    gcp.DriveConfig

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string
	LockTTL       time.Duration

	JWTSecret      string
	AllowedOrigins []string

	Session     session.Config
	IdleTTL     time.Duration
	DrainWindow time.Duration

	MediaMaxBytes      int64
	MediaConcurrency   int
	MediaFetchTimeout  time.Duration
	MirrorIngestImages bool

	Otel observability.OtelConfig
}

func LoadConfig() (Config, error) {
	bucket, err := gcp.BucketConfigFromEnv()
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Port:     envutil.String("PORT", "8080"),
		LogMode:  envutil.String("LOG_MODE", "development"),
		Postgres: db.PostgresConfigFromEnv(),
		Bucket:   bucket,
		Drive: gcp.DriveConfig{
			CopyFolderID: envutil.String("DRIVE_COPY_FOLDER_ID", ""),
		},

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envutil.Int("REDIS_DB", 0),
		RedisChannel:  envutil.String("REDIS_CHANNEL", bus.DefaultChannel),
		LockTTL:       envutil.Millis("DRAFT_LOCK_TTL_MS", locks.DefaultTTL),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		Session: session.Config{
			Debounce:      envutil.Millis("DRAFT_DEBOUNCE_MS", session.DefaultDebounce),
			CommitTimeout: envutil.Millis("DRAFT_COMMIT_TIMEOUT_MS", session.DefaultCommitTimeout),
		},
		IdleTTL:     envutil.Seconds("DRAFT_SESSION_IDLE_TTL_SEC", session.DefaultIdleTTL),
		DrainWindow: envutil.Seconds("SHUTDOWN_DRAIN_SEC", 20*time.Second),

		MediaMaxBytes:      envutil.Int64("MEDIA_MAX_BYTES", media.DefaultMaxBytes),
		MediaConcurrency:   envutil.Int("MEDIA_INGEST_CONCURRENCY", media.DefaultConcurrency),
		MediaFetchTimeout:  envutil.Millis("MEDIA_FETCH_TIMEOUT_MS", media.DefaultFetchTimeout),
		MirrorIngestImages: envutil.Bool("MIRROR_INGEST_IMAGES", true),

		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "draftsync"),
			Environment: envutil.String("APP_ENV", "dev"),
			Version:     envutil.String("APP_VERSION", ""),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:     os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: envutil.Float64("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Config{}, errors.New("missing env var JWT_SECRET")
	}
	if cfg.MediaConcurrency < 1 {
		cfg.MediaConcurrency = 1
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
