package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds process-wide runtime configuration. It is read once at startup
// and passed by value afterwards.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Backend
	LLMProvider       string        `env:"LLM_PROVIDER" envDefault:"gemini"` // "gemini" or "openai"
	GeminiKey         string        `env:"GEMINI_API_KEY"`
	GeminiURL         string        `env:"GEMINI_API_URL" envDefault:"https://generativelanguage.googleapis.com/"`
	LLMModel          string        `env:"LLM_MODEL" envDefault:"gemini-2.5-flash"`
	OpenAIKey         string        `env:"OPENAI_API_KEY"`
	OpenAIModel       string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	Temperature       float64       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	MaxOutputTokens   int64         `env:"LLM_MAX_OUTPUT_TOKENS" envDefault:"1024"`
	BackendTimeout    time.Duration `env:"BACKEND_TIMEOUT" envDefault:"25s"`
	MaxQuestionLength int           `env:"MAX_QUESTION_LENGTH" envDefault:"500"`

	// Activation events
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"none"` // "none" or "nats"
	QueueURL      string `env:"QUEUE_URL"`

	// Browser bridge
	BridgeCallTimeout time.Duration `env:"BRIDGE_CALL_TIMEOUT" envDefault:"5s"`
}

// Load reads configuration from environment variables with defaults. A
// variable that is set but malformed is an error rather than a zero value.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config from env: %w", err)
	}
	return cfg, nil
}
