package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"reviewpulse/internal/httpx"
)

const openAIChatURL = "https://api.openai.com/v1/chat/completions"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// newOpenAICompleter talks to a chat completions endpoint in JSON mode so
// every capability gets an object back.
func newOpenAICompleter(apiKey, model, endpoint string) completeFunc {
	return func(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, error) {
		var body chatRequest
		body.Model = model
		body.Messages = []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		}
		body.ResponseFormat.Type = "json_object"
		payload, err := json.Marshal(body)
		if err != nil {
			return "", Usage{}, fmt.Errorf("encoding openai request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return "", Usage{}, fmt.Errorf("building openai request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+apiKey)

		resp, err := httpx.ExternalHTTPClient().Do(req)
		if err != nil {
			log.Printf("llm openai error model=%s: %v", model, err)
			return "", Usage{}, fmt.Errorf("openai request: %w", err)
		}
		defer resp.Body.Close()

		var out chatResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&out)
		switch {
		case out.Error != nil:
			log.Printf("llm openai api error status=%d: %s", resp.StatusCode, out.Error.Message)
			return "", Usage{}, fmt.Errorf("openai status %d: %s", resp.StatusCode, out.Error.Message)
		case resp.StatusCode >= http.StatusBadRequest:
			return "", Usage{}, fmt.Errorf("openai status %d", resp.StatusCode)
		case decodeErr != nil:
			return "", Usage{}, fmt.Errorf("decoding openai reply: %w", decodeErr)
		case len(out.Choices) == 0:
			return "", Usage{}, fmt.Errorf("openai reply has no choices")
		}

		usage := Usage{InputTokens: out.Usage.PromptTokens, OutputTokens: out.Usage.CompletionTokens}
		text := out.Choices[0].Message.Content
		log.Printf("llm openai reply size=%d tokens_in=%d tokens_out=%d", len(text), usage.InputTokens, usage.OutputTokens)
		return text, usage, nil
	}
}
