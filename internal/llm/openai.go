package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIOptions tunes an OpenAIClient. Zero values fall back to defaults.
type OpenAIOptions struct {
	BaseURL         string
	Temperature     float64
	MaxOutputTokens int64
	Timeout         time.Duration
}

// OpenAIClient calls the OpenAI Chat Completions API.
type OpenAIClient struct {
	model       openai.ChatModel
	client      *openai.Client
	temperature float64
	maxTokens   int64
	timeout     time.Duration
}

// NewOpenAIClient builds a client with retries disabled; resubmission is the
// caller's decision.
func NewOpenAIClient(apiKey string, model openai.ChatModel, opts OpenAIOptions) (*OpenAIClient, error) {
	if err := CheckCredential(apiKey); err != nil {
		return nil, err
	}
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultGenerateTimeout
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)
	return &OpenAIClient{
		model:       model,
		client:      &cli,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxOutputTokens,
		timeout:     timeout,
	}, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.client == nil {
		return "", ErrMissingCredentials
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(prompt),
					},
				},
			},
		},
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(c.maxTokens)
	}
	resp, err := c.client.Chat.Completions.New(reqCtx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &BackendError{
				Status:     apiErr.StatusCode,
				StatusText: http.StatusText(apiErr.StatusCode),
				Message:    apiErr.Message,
			}
		}
		return "", &TransportError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", ErrProtocol)
	}
	return resp.Choices[0].Message.Content, nil
}
