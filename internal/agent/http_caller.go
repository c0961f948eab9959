package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"quickask/internal/message"
)

const maxAnswerBytes = 1 << 20

// HTTPCaller posts Question Requests to a coordinator's /api/ask endpoint.
type HTTPCaller struct {
	endpoint string
	client   *http.Client
}

// NewHTTPCaller targets the coordinator at baseURL. The client should not set
// its own timeout; the agent bounds every call.
func NewHTTPCaller(baseURL string, client *http.Client) *HTTPCaller {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPCaller{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/ask",
		client:   client,
	}
}

func (c *HTTPCaller) Ask(ctx context.Context, q message.QuestionRequest) (message.AnswerResponse, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return message.AnswerResponse{}, fmt.Errorf("marshal question: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return message.AnswerResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return message.AnswerResponse{}, fmt.Errorf("ask coordinator: %w", err)
	}
	defer resp.Body.Close()

	var answer message.AnswerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAnswerBytes)).Decode(&answer); err != nil {
		return message.AnswerResponse{}, fmt.Errorf("decode answer (status %d): %w", resp.StatusCode, err)
	}
	return answer, nil
}
