package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"

	"quickask/internal/activation"
	"quickask/internal/bridge"
	"quickask/internal/config"
	"quickask/internal/coordinator"
	"quickask/internal/llm"
	"quickask/internal/logger"
	"quickask/internal/message"
	"quickask/internal/queue"
)

// Deps bundles common runtime dependencies for services.
type Deps struct {
	Config      config.Config
	Log         *slog.Logger
	LLM         llm.Client // nil when the backend credential is missing
	Queue       queue.Queue
	Bridge      *bridge.Hub
	Coordinator *coordinator.Coordinator
	Activator   *activation.Activator
}

// Build loads env, config, and shared components.
func Build() (Deps, error) {
	if err := loadDotEnv(); err != nil {
		return Deps{}, err
	}
	cfg, err := config.Load()
	if err != nil {
		return Deps{}, err
	}
	return New(cfg, logger.New(cfg.LogLevel))
}

// BuildPublisher loads only what an activation publisher needs.
func BuildPublisher() (Deps, error) {
	if err := loadDotEnv(); err != nil {
		return Deps{}, err
	}
	cfg, err := config.Load()
	if err != nil {
		return Deps{}, err
	}
	log := logger.New(cfg.LogLevel)
	q, err := buildQueue(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	if q == nil {
		return Deps{}, fmt.Errorf("QUEUE_PROVIDER=nats is required to publish activations")
	}
	return Deps{Config: cfg, Log: log, Queue: q}, nil
}

// New wires the coordinator service from an already loaded config.
func New(cfg config.Config, log *slog.Logger) (Deps, error) {
	llmClient, err := buildLLM(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	q, err := buildQueue(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}

	hub := bridge.NewHub(log.With("component", "bridge"), bridge.Options{CallTimeout: cfg.BridgeCallTimeout})
	activator := activation.New(hub, log.With("component", "activation"))
	hub.SetEventHandler(func(ctx context.Context, ev message.ActivationEvent) {
		if _, err := activator.Activate(ctx, ev); err != nil {
			log.Warn("bridge activation failed", "err", err, "source", ev.Source)
		}
	})

	coord := coordinator.New(llmClient, log.With("component", "coordinator"), coordinator.Options{
		MaxQuestionLength: cfg.MaxQuestionLength,
	})

	return Deps{
		Config:      cfg,
		Log:         log,
		LLM:         llmClient,
		Queue:       q,
		Bridge:      hub,
		Coordinator: coord,
		Activator:   activator,
	}, nil
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

// buildLLM returns a nil client, not an error, when the credential is
// missing; the coordinator then answers every question with a configuration
// failure instead of refusing to start.
func buildLLM(cfg config.Config, log *slog.Logger) (llm.Client, error) {
	var (
		client llm.Client
		err    error
	)
	switch cfg.LLMProvider {
	case "gemini":
		client, err = llm.NewGeminiClient(cfg.GeminiKey, llm.GeminiOptions{
			BaseURL:         cfg.GeminiURL,
			Model:           cfg.LLMModel,
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
			Timeout:         cfg.BackendTimeout,
		})
	case "openai":
		client, err = llm.NewOpenAIClient(cfg.OpenAIKey, openai.ChatModel(cfg.OpenAIModel), llm.OpenAIOptions{
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
			Timeout:         cfg.BackendTimeout,
		})
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid options: gemini, openai)", cfg.LLMProvider)
	}
	if errors.Is(err, llm.ErrMissingCredentials) {
		log.Warn("backend credential missing; questions will fail until it is configured", "provider", cfg.LLMProvider)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	log.Info("using LLM backend", "provider", cfg.LLMProvider)
	return client, nil
}

func buildQueue(cfg config.Config, log *slog.Logger) (queue.Queue, error) {
	switch cfg.QueueProvider {
	case "", "none":
		return nil, nil
	case "nats":
		if cfg.QueueURL == "" {
			return nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.QueueURL, nats.Name("quickask"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS queue")
		return queue.NewNATS(log, nc), nil
	default:
		return nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid options: none, nats)", cfg.QueueProvider)
	}
}
