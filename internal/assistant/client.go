package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"repair-dashboard/internal/config"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the body of a chat completion call.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Completer sends a conversation to a completion API and returns the reply.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

var (
	ErrRequestFailed = errors.New("API request failed")
	ErrEmptyReply    = errors.New("completion API returned no choices")
)

// OpenAIClient talks to an OpenAI-compatible /chat/completions endpoint.
// It never retries.
type OpenAIClient struct {
	client *resty.Client
}

func NewOpenAIClient(cfg config.AssistantConfig) *OpenAIClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &OpenAIClient{client: client}
}

func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&completionResponse{}).
		SetError(&apiError{}).
		Post("/chat/completions")
	if err != nil {
		return "", err
	}

	if !resp.IsSuccess() {
		if e, ok := resp.Error().(*apiError); ok && e.Error.Message != "" {
			return "", errors.New(e.Error.Message)
		}
		return "", fmt.Errorf("%w (status %d)", ErrRequestFailed, resp.StatusCode())
	}

	out, ok := resp.Result().(*completionResponse)
	if !ok || len(out.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return out.Choices[0].Message.Content, nil
}
