// Package openai provides a completion.Client over the OpenAI-compatible
// Chat Completions API. Structured completions use the json_schema response
// format so the model's output is validated against the declared schema
// before it reaches the caller.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/twinfold/contextd/pkg/completion"
	"github.com/twinfold/contextd/pkg/llm"
)

// DefaultBaseURL is the OpenAI API root used when none is configured.
const DefaultBaseURL = "https://api.openai.com/v1"

// Config holds configuration for the OpenAI completion client.
type Config struct {
	// BaseURL is the API root (e.g. "https://api.openai.com/v1").
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the bearer token for the API.
	APIKey string

	// Timeout is the per-request HTTP timeout. Defaults to 60s.
	Timeout time.Duration
}

// Client implements completion.Client over the Chat Completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new OpenAI completion client.
func NewClient(c Config, logger *zap.Logger) (*Client, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     c.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []llm.Message   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaConfig `json:"json_schema"`
}

type jsonSchemaConfig struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

type chatResponse struct {
	Choices []struct {
		Message llm.Message `json:"message"`
	} `json:"choices"`
}

// Complete returns the model's free-text response for the request.
func (c *Client) Complete(ctx context.Context, req completion.Request) (string, error) {
	return c.send(ctx, chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
}

// CompleteStructured constrains the model to the given JSON schema and
// decodes the response content into out.
func (c *Client) CompleteStructured(ctx context.Context, req completion.Request, schema completion.Schema, out any) error {
	content, err := c.send(ctx, chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaConfig{
				Name:   schema.Name,
				Strict: true,
				Schema: schema.Raw,
			},
		},
	})
	if err != nil {
		return err
	}

	dec := json.NewDecoder(strings.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %q response: %v", completion.ErrSchema, schema.Name, err)
	}

	return nil
}

func (c *Client) send(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling chat request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", completion.ErrCompletion, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("chat completion failed",
			zap.String("model", payload.Model),
			zap.Int("status", resp.StatusCode),
		)
		return "", fmt.Errorf("%w: status %d: %s", completion.ErrCompletion, resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", completion.ErrCompletion, err)
	}

	if len(parsed.Choices) == 0 {
		return "", completion.ErrEmptyResponse
	}

	return parsed.Choices[0].Message.Content, nil
}
