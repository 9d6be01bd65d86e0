// Package config loads the writer settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the complete process configuration.
type Config struct {
	Model    ModelConfig
	Session  SessionConfig
	Pipeline PipelineConfig
	Log      LogConfig
	Server   ServerConfig
	Notify   NotifyConfig
	Tracing  TracingConfig
}

// ModelConfig selects and authenticates the model provider.
type ModelConfig struct {
	Provider        string `validate:"oneof=gemini openai anthropic mock"`
	Name            string `validate:"required"`
	BaseURL         string `validate:"omitempty,url"`
	GoogleAPIKey    string `validate:"required_if=Provider gemini"`
	OpenAIAPIKey    string `validate:"required_if=Provider openai"`
	AnthropicAPIKey string `validate:"required_if=Provider anthropic"`
}

// SessionConfig holds the session key parts.
type SessionConfig struct {
	AppName   string `validate:"required"`
	UserID    string `validate:"required"`
	SessionID string `validate:"required"`
}

// PipelineConfig tunes pipeline execution.
type PipelineConfig struct {
	StageTimeout     time.Duration `validate:"gte=0"`
	MaxModelCalls    int           `validate:"gte=0"`
	MaxParallelTools int           `validate:"gte=0"`
	EnableStreaming  bool
	StagesFile       string
	SearchURL        string `validate:"omitempty,url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn warning error"`
	Format string `validate:"oneof=json console"`
	File   string
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port string `validate:"required,numeric"`
}

// NotifyConfig configures completion notices. An empty URL disables them.
type NotifyConfig struct {
	NatsURL string `validate:"omitempty,url"`
	Subject string `validate:"required"`
}

// TracingConfig configures the OTLP exporter. An empty endpoint disables it.
type TracingConfig struct {
	Endpoint    string
	ServiceName string `validate:"required"`
}

var validate = validator.New()

// Load reads .env (when present) and the environment, applies defaults and
// validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*Config, error) {
	stageTimeout, err := getEnvAsDuration("STAGE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	maxCalls, err := getEnvAsInt("MAX_MODEL_CALLS", 25)
	if err != nil {
		return nil, err
	}

	maxParallel, err := getEnvAsInt("MAX_PARALLEL_TOOLS", 4)
	if err != nil {
		return nil, err
	}

	streaming, err := getEnvAsBool("ENABLE_STREAMING", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Model: ModelConfig{
			Provider:        strings.ToLower(getEnv("MODEL_PROVIDER", "gemini")),
			Name:            getEnv("MODEL_NAME", getEnv("GEMINI_MODEL_NAME", "gemini-2.5-pro")),
			BaseURL:         getEnv("MODEL_BASE_URL", ""),
			GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		},
		Session: SessionConfig{
			AppName:   getEnv("APP_NAME", "writer-multi-agent"),
			UserID:    getEnv("USER_ID", "user"),
			SessionID: getEnv("SESSION_ID", "session"),
		},
		Pipeline: PipelineConfig{
			StageTimeout:     stageTimeout,
			MaxModelCalls:    maxCalls,
			MaxParallelTools: maxParallel,
			EnableStreaming:  streaming,
			StagesFile:       getEnv("STAGES_FILE", ""),
			SearchURL:        getEnv("SEARCH_URL", ""),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "console")),
			File:   getEnv("LOG_FILE", ""),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Notify: NotifyConfig{
			NatsURL: getEnv("NATS_URL", ""),
			Subject: getEnv("NATS_SUBJECT", "writer.pipeline.completed"),
		},
		Tracing: TracingConfig{
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "writer-multi-agent"),
		},
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// APIKey returns the key of the configured provider.
func (m ModelConfig) APIKey() string {
	switch m.Provider {
	case "openai":
		return m.OpenAIAPIKey
	case "anthropic":
		return m.AnthropicAPIKey
	case "gemini":
		return m.GoogleAPIKey
	default:
		return ""
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}

	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}

	return v, nil
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}

	return v, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}

	return v, nil
}
