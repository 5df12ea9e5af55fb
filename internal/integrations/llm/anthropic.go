package llm

import (
	"context"
	"fmt"
	"log"
	"strings"

	"reviewpulse/internal/httpx"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 8192

// newAnthropicCompleter builds one SDK client for the lifetime of the Client.
// SDK retries are off: a failed call fails the run.
func newAnthropicCompleter(apiKey, model string, opts ...option.RequestOption) completeFunc {
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpx.ExternalHTTPClient()),
		option.WithMaxRetries(0),
	}, opts...)
	client := anthropic.NewClient(opts...)

	return func(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, error) {
		message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: anthropicMaxTokens,
			System: []anthropic.TextBlockParam{
				{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
			},
		})
		if err != nil {
			log.Printf("llm anthropic error model=%s: %v", model, err)
			return "", Usage{}, fmt.Errorf("anthropic request: %w", err)
		}

		usage := Usage{
			InputTokens:              message.Usage.InputTokens,
			OutputTokens:             message.Usage.OutputTokens,
			CacheCreationInputTokens: message.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     message.Usage.CacheReadInputTokens,
		}
		var text strings.Builder
		for _, block := range message.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		if text.Len() == 0 {
			return "", usage, fmt.Errorf("anthropic reply has no text content (stop_reason=%s)", message.StopReason)
		}
		log.Printf("llm anthropic reply size=%d tokens_in=%d tokens_out=%d cache_read=%d", text.Len(), usage.InputTokens, usage.OutputTokens, usage.CacheReadInputTokens)
		return text.String(), usage, nil
	}
}
