package app

import (
	"strings"
	"time"

	"github.com/portakall/retromeet/internal/chatsurface"
	"github.com/portakall/retromeet/internal/data/db"
	"github.com/portakall/retromeet/internal/observability"
	"github.com/portakall/retromeet/internal/platform/envutil"
	"github.com/portakall/retromeet/internal/platform/logger"
	"github.com/portakall/retromeet/internal/platform/openai"
	"github.com/portakall/retromeet/internal/realtime/bus"
	"github.com/portakall/retromeet/internal/services"
)

const (
	ArtifactStoreLocal = "local"
	ArtifactStoreGCS   = "gcs"
)

type Config struct {
	Port            string
	ShutdownTimeout time.Duration
	CORSOrigins     string

	DB     db.Config
	OpenAI openai.Config

	ArtifactStore       string
	ArtifactDir         string
	ArtifactBaseURL     string
	ArtifactGCSBucket   string
	ObjectStorageMode   string
	StorageEmulatorHost string

	RedisAddr     string
	RedisChannel  string
	TopicCacheTTL time.Duration

	RelevanceConcurrency int
	AvatarSize           int

	Chat        chatsurface.Config
	ChatSession services.ChatSessionConfig

	MetricsAddr string
	ServiceName string
	Environment string
	Otel        observability.OtelConfig
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:            envutil.String("PORT", "8080"),
		ShutdownTimeout: envutil.Seconds("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		CORSOrigins:     envutil.String("CORS_ALLOWED_ORIGINS", ""),

		DB:     db.ConfigFromEnv(),
		OpenAI: openai.ConfigFromEnv(),

		ArtifactStore:       strings.ToLower(envutil.String("ARTIFACT_STORE", ArtifactStoreLocal)),
		ArtifactDir:         envutil.String("ARTIFACT_DIR", "static"),
		ArtifactBaseURL:     envutil.String("ARTIFACT_BASE_URL", "/static"),
		ArtifactGCSBucket:   envutil.String("ARTIFACT_GCS_BUCKET", ""),
		ObjectStorageMode:   envutil.String("OBJECT_STORAGE_MODE", ""),
		StorageEmulatorHost: envutil.String("STORAGE_EMULATOR_HOST", ""),

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisChannel:  bus.ChannelFromEnv(),
		TopicCacheTTL: envutil.Seconds("TOPIC_CACHE_TTL_SECONDS", 24*time.Hour),

		RelevanceConcurrency: envutil.Int("RELEVANCE_CONCURRENCY", 4),
		AvatarSize:           envutil.Int("AVATAR_SIZE", 256),

		Chat:        chatsurface.ConfigFromEnv(log),
		ChatSession: services.ChatSessionConfigFromEnv(),

		MetricsAddr: envutil.String("METRICS_ADDR", ":9090"),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "retromeet"),
		Environment: envutil.String("APP_ENV", "development"),
	}
	cfg.Otel = observability.OtelConfigFromEnv(cfg.ServiceName, cfg.Environment)
	log.Info("Configuration loaded",
		"port", cfg.Port,
		"db_driver", cfg.DB.Driver,
		"artifact_store", cfg.ArtifactStore,
		"redis", cfg.RedisAddr != "",
		"chat_addr", cfg.Chat.Addr,
		"openai_model", cfg.OpenAI.Model,
	)
	return cfg
}
