package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/coursegen-backend/internal/http/middleware"
	"github.com/yungbote/coursegen-backend/internal/jobs/runner"
	"github.com/yungbote/coursegen-backend/internal/platform/envutil"
	"github.com/yungbote/coursegen-backend/internal/platform/llm"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
	"github.com/yungbote/coursegen-backend/internal/platform/vector"
)

type Config struct {
	DevMode     bool
	Port        string
	DatabaseURI string
	JWTSecret   string
	CORSOrigins []string

	LLM       llm.Config
	Retriever vector.RetrieverConfig
	TopK      int

	VectorAPIKey      string
	VectorIndexPrefix string

	RedisAddr    string
	RedisChannel string

	MongoURI      string
	MongoDatabase string

	RabbitURI      string
	ConvertQueue   string
	ConvertTimeout time.Duration

	Runner runner.Config
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		DevMode:     envutil.Bool("DEV_MODE", false),
		Port:        envutil.String("PORT", "8080"),
		DatabaseURI: strings.TrimSpace(envutil.String("DATABASE_URI", "")),
		JWTSecret:   envutil.String("JWT_SECRET", ""),
		CORSOrigins: envutil.CSV("BACKEND_CORS_ORIGINS", middleware.DefaultCORSOrigins),

		LLM:       llm.ConfigFromEnv(),
		Retriever: vector.RetrieverConfigFromEnv(),
		TopK:      envutil.Int("RETRIEVAL_TOP_K", 6),

		VectorAPIKey:      envutil.String("VECTOR_API_KEY", ""),
		VectorIndexPrefix: envutil.String("VECTOR_INDEX_PREFIX", "coursegen"),

		RedisAddr:    envutil.String("REDIS_ADDR", ""),
		RedisChannel: envutil.String("REDIS_CHANNEL", "coursegen:events"),

		MongoURI:      envutil.String("MONGO_URI", ""),
		MongoDatabase: envutil.String("MONGO_DATABASE", "coursegen"),

		RabbitURI:      envutil.String("RABBITMQ_URI", ""),
		ConvertQueue:   envutil.String("DOCCONVERT_QUEUE", ""),
		ConvertTimeout: envutil.Duration("DOCCONVERT_TIMEOUT", 2*time.Minute),

		Runner: runner.ConfigFromEnv(),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	log.Info("Config loaded",
		"dev_mode", cfg.DevMode,
		"vector", vectorMode(cfg),
		"redis", cfg.RedisAddr != "",
		"mongo", cfg.MongoURI != "",
		"rabbitmq", cfg.RabbitURI != "",
	)
	return cfg, nil
}

func (c Config) validate() error {
	var missing []string
	if c.DatabaseURI == "" {
		missing = append(missing, "DATABASE_URI")
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env: %s", strings.Join(missing, ", "))
	}
	return nil
}
