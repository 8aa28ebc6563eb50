// Package ollama uses a local Ollama server as the oracle.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/huavcjj/wavemail/internal/domain/oracle"
	"github.com/huavcjj/wavemail/internal/infrastructure/llm"
	"github.com/ollama/ollama/api"
)

const DefaultModel = "llama3.3"

type Client struct {
	api   *api.Client
	model string
}

var _ oracle.Client = (*Client)(nil)

// NewClient connects to host, or to OLLAMA_HOST when host is empty.
func NewClient(host, model string) (*Client, error) {
	if model == "" {
		model = DefaultModel
	}

	if host == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return &Client{api: c, model: model}, nil
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ollama host: %w", err)
	}
	return &Client{api: api.NewClient(u, http.DefaultClient), model: model}, nil
}

func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream:  &stream,
		Options: map[string]any{"temperature": 0},
	}

	var b strings.Builder
	err := c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		var se api.StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= http.StatusInternalServerError) {
			return "", fmt.Errorf("failed to call ollama: %w: %w", llm.ErrRetryable, err)
		}
		return "", fmt.Errorf("failed to call ollama: %w", err)
	}
	return b.String(), nil
}
