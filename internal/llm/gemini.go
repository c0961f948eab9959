package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

const (
	defaultGeminiModel      = "gemini-2.5-flash"
	defaultGeminiAPIVersion = "v1beta"
	defaultGenerateTimeout  = 25 * time.Second
)

// GeminiOptions tunes a GeminiClient. Zero values fall back to defaults.
type GeminiOptions struct {
	BaseURL         string // empty uses the SDK's public endpoint
	APIVersion      string
	Model           string
	Temperature     float64
	MaxOutputTokens int64
	Timeout         time.Duration
	HTTPClient      *http.Client
}

// GeminiClient wraps the genai SDK's generateContent call.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	timeout     time.Duration
}

// NewGeminiClient validates the credential and builds a client.
func NewGeminiClient(apiKey string, opts GeminiOptions) (*GeminiClient, error) {
	if err := CheckCredential(apiKey); err != nil {
		return nil, err
	}
	model := opts.Model
	if model == "" {
		model = defaultGeminiModel
	}
	version := opts.APIVersion
	if version == "" {
		version = defaultGeminiAPIVersion
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultGenerateTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	cli, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    opts.BaseURL,
			APIVersion: version,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{
		client:      cli,
		model:       model,
		temperature: float32(opts.Temperature),
		maxTokens:   int32(opts.MaxOutputTokens),
		timeout:     timeout,
	}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.client == nil {
		return "", ErrMissingCredentials
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
	if c.maxTokens > 0 {
		cfg.MaxOutputTokens = c.maxTokens
	}
	resp, err := c.client.Models.GenerateContent(reqCtx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", classifyGeminiError(reqCtx, err)
	}
	return firstCandidateText(resp)
}

func classifyGeminiError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &TransportError{Err: fmt.Errorf("%w: %v", ctxErr, err)}
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return geminiBackendError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return geminiBackendError(*apiErrPtr)
	}
	return &TransportError{Err: err}
}

func geminiBackendError(e genai.APIError) *BackendError {
	return &BackendError{
		Status:     e.Code,
		StatusText: http.StatusText(e.Code),
		Message:    e.Message,
	}
}

// firstCandidateText returns the first candidate's first part untouched.
func firstCandidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", fmt.Errorf("%w: gemini returned no candidates", ErrProtocol)
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0] == nil || content.Parts[0].Text == "" {
		return "", fmt.Errorf("%w: gemini candidate has no text", ErrProtocol)
	}
	return content.Parts[0].Text, nil
}
