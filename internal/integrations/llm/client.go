package llm

import (
	"context"
	"log"
	"strings"
	"sync"

	"reviewpulse/internal/config"
	"reviewpulse/internal/validate"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"
const defaultOpenAIModel = "gpt-4o-mini"

type Usage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
}

// completeFunc sends one system/user prompt pair to a provider and returns the
// raw text of the first reply.
type completeFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, error)

// Client exposes the review capabilities (classification, suggestions,
// summaries, topic analysis, Q&A, replies) over a single provider.
type Client struct {
	provider string
	model    string
	complete completeFunc
	validate *validate.CustomValidator

	mu    sync.Mutex
	usage Usage
}

func New(cfg config.Config) *Client {
	c := &Client{provider: cfg.LLMProvider, model: cfg.LLMModel, validate: validate.New()}
	switch cfg.LLMProvider {
	case "openai":
		if c.model == "" {
			c.model = defaultOpenAIModel
		}
		c.complete = newOpenAICompleter(cfg.OpenAIAPIKey, c.model, openAIChatURL)
	default:
		c.provider = "anthropic"
		if c.model == "" {
			c.model = defaultAnthropicModel
		}
		c.complete = newAnthropicCompleter(cfg.AnthropicAPIKey, c.model)
	}
	return c
}

func newWithCompleter(provider, model string, fn completeFunc) *Client {
	return &Client{provider: provider, model: model, complete: fn, validate: validate.New()}
}

// Usage returns the tokens consumed by every call made through c so far.
func (c *Client) Usage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

func (c *Client) call(ctx context.Context, op string, items int, systemPrompt, userPrompt string) (string, error) {
	log.Printf("llm %s provider=%s model=%s items=%d", op, c.provider, c.model, items)
	text, usage, err := c.complete(ctx, systemPrompt, userPrompt)
	c.mu.Lock()
	c.usage.Add(usage)
	c.mu.Unlock()
	if err != nil {
		return "", err
	}
	return text, nil
}

func stripCodeFence(responseText string) string {
	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	return strings.TrimSpace(responseText)
}

func truncateForLog(s string) string {
	const max = 500
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
