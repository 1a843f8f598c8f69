package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/tailored-agentic-units/mealplanner/core/protocol"
	"github.com/tailored-agentic-units/mealplanner/core/response"
)

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	id          string
	baseURL     string
	apiKey      string
	model       string
	temperature *float64
	options     map[string]any
	httpClient  *http.Client
}

// NewClient builds a Client. The API key is read from the environment
// variable named by cfg.APIKeyEnv; a missing key is allowed for local
// endpoints that do not check it.
func NewClient(cfg *Config) (*Client, error) {
	merged := DefaultConfig()
	merged.Merge(cfg)
	if merged.Model == "" {
		return nil, ErrMissingModel
	}
	timeout, err := merged.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	return &Client{
		id:          merged.Model,
		baseURL:     normalizeBaseURL(merged.BaseURL),
		apiKey:      os.Getenv(merged.APIKeyEnv),
		model:       merged.Model,
		temperature: merged.Temperature,
		options:     merged.Options,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// ID returns the model name.
func (c *Client) ID() string { return c.id }

// normalizeBaseURL strips trailing slashes and a "/chat/completions" suffix
// so the path is never doubled.
func normalizeBaseURL(raw string) string {
	s := strings.TrimRight(raw, "/")
	return strings.TrimSuffix(s, "/chat/completions")
}

type functionSpec struct {
	Type     string        `json:"type"`
	Function protocol.Tool `json:"function"`
}

// Tools sends messages with tool definitions and parses the reply.
func (c *Client) Tools(ctx context.Context, messages []protocol.Message, tools []protocol.Tool) (*response.ToolsResponse, error) {
	payload := map[string]any{}
	for k, v := range c.options {
		payload[k] = v
	}
	payload["model"] = c.model
	payload["messages"] = messages
	if c.temperature != nil {
		payload["temperature"] = *c.temperature
	}
	if len(tools) > 0 {
		specs := make([]functionSpec, len(tools))
		for i, t := range tools {
			specs[i] = functionSpec{Type: "function", Function: t}
		}
		payload["tools"] = specs
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("agent: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("agent: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("agent: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	parsed, err := response.ParseTools(respBody)
	if err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return parsed, nil
}
