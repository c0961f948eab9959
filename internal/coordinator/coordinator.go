package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"quickask/internal/llm"
	"quickask/internal/logger"
	"quickask/internal/message"
)

const defaultMaxQuestionLength = 500

var validate = validator.New(validator.WithRequiredStructEnabled())

// Options tunes a Coordinator. Zero values fall back to defaults.
type Options struct {
	MaxQuestionLength int
	Prompt            PromptFunc
}

// Coordinator turns a Question Request into exactly one Answer Response. It
// holds no per-request state and is safe for concurrent use.
type Coordinator struct {
	llm       llm.Client
	log       *slog.Logger
	maxLength int
	prompt    PromptFunc
}

// New builds a Coordinator. A nil client means the backend credential is
// missing; every request then fails with a configuration error.
func New(client llm.Client, log *slog.Logger, opts Options) *Coordinator {
	if log == nil {
		log = logger.Discard()
	}
	if opts.MaxQuestionLength <= 0 {
		opts.MaxQuestionLength = defaultMaxQuestionLength
	}
	if opts.Prompt == nil {
		opts.Prompt = DefaultPrompt
	}
	return &Coordinator{
		llm:       client,
		log:       log,
		maxLength: opts.MaxQuestionLength,
		prompt:    opts.Prompt,
	}
}

// Handle never returns an error: every outcome, including a panic inside a
// backend adapter, becomes a Failure response.
func (c *Coordinator) Handle(ctx context.Context, req message.QuestionRequest) (resp message.AnswerResponse) {
	start := time.Now()
	log := c.log.With("has_url", req.URL != "", "question_len", len(req.Question))
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic while handling question", "panic", rec)
			resp = message.Failed(msgTransport)
		}
	}()

	answer, err := c.answer(ctx, req)
	if err != nil {
		kind := Classify(err)
		log.Warn("question failed", "kind", kind, "err", err, "duration_ms", time.Since(start).Milliseconds())
		return message.Failed(UserMessage(err))
	}
	log.Info("question answered", "answer_len", len(answer), "duration_ms", time.Since(start).Milliseconds())
	return message.Succeeded(answer)
}

func (c *Coordinator) answer(ctx context.Context, req message.QuestionRequest) (string, error) {
	question := strings.TrimSpace(req.Question)
	if err := c.validateQuestion(question); err != nil {
		return "", err
	}
	if c.llm == nil {
		return "", llm.ErrMissingCredentials
	}
	page := PageContext{URL: strings.TrimSpace(req.URL), Title: req.Title}
	return c.llm.Generate(ctx, c.prompt(question, page))
}

func (c *Coordinator) validateQuestion(question string) error {
	if question == "" {
		return &ValidationError{Reason: msgMissingQuestion}
	}
	if err := validate.Var(question, fmt.Sprintf("max=%d", c.maxLength)); err != nil {
		return &ValidationError{Reason: fmt.Sprintf("Question is too long (max %d characters)", c.maxLength)}
	}
	return nil
}
