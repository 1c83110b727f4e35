// Package openai implements the summarizer.Provider interface on top of
// the OpenAI Chat Completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mnemos-ai/mnemos-go/pkg/memory"
)

const systemPrompt = `You merge related agent memories into one compact summary.
Write a single paragraph that preserves every distinct fact, decision, and
observation from the inputs. Do not add information. Do not enumerate the
inputs; synthesize them.`

// Client is an OpenAI summarization client.
type Client struct {
	client *openai.Client
	model  string
}

// Config configures the OpenAI summarizer.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// Model is the chat model name. Defaults to gpt-4o-mini.
	Model string

	// BaseURL overrides the API base URL (optional).
	BaseURL string
}

// NewClient creates a new OpenAI summarization client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai summarizer: api key required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Summarize produces a merged summary of the given memories.
//
// Returns an error on API failure or an empty completion; the caller is
// expected to fall back to its template summary.
func (c *Client) Summarize(ctx context.Context, memories []*memory.Memory) (string, error) {
	if len(memories) == 0 {
		return "", errors.New("openai summarizer: no memories to summarize")
	}

	var sb strings.Builder
	for _, m := range memories {
		fmt.Fprintf(&sb, "- [%s] %s\n", m.Type, m.Content)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("openai summarizer: empty completion")
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", errors.New("openai summarizer: empty completion")
	}

	return summary, nil
}

// Close releases resources. The underlying HTTP client needs no cleanup.
func (c *Client) Close() error {
	return nil
}
