package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"reviewpulse/internal/domain"
)

const (
	fallbackOverallSummary  = "No overall summary available."
	fallbackPositiveSummary = "No positive feedback summary available."
	fallbackNegativeSummary = "No negative feedback summary available."
	fallbackAnswer          = "Sorry, I couldn't generate an answer for that question at this time."
	fallbackReply           = "Sorry, we couldn't generate a reply at this time."
)

// Classify returns the per-item classification objects undecoded. Items are
// addressed by their batch-local index; validating each one is left to the
// caller so a single malformed object does not sink the batch.
func (c *Client) Classify(ctx context.Context, texts []string) ([]json.RawMessage, error) {
	systemPrompt, userPrompt := buildClassifyPrompts(texts)
	responseText, err := c.call(ctx, "classify", len(texts), systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}
	return parseClassifyResponse(responseText)
}

func parseClassifyResponse(responseText string) ([]json.RawMessage, error) {
	responseText = stripCodeFence(responseText)
	if strings.HasPrefix(responseText, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(responseText), &items); err != nil {
			return nil, fmt.Errorf("parsing LLM classify response: %w (response: %s)", err, truncateForLog(responseText))
		}
		return items, nil
	}

	var parsed struct {
		AnalyzedReviews *[]json.RawMessage `json:"analyzedReviews"`
	}
	if err := json.Unmarshal([]byte(responseText), &parsed); err != nil {
		return nil, fmt.Errorf("parsing LLM classify response: %w (response: %s)", err, truncateForLog(responseText))
	}
	if parsed.AnalyzedReviews == nil {
		return nil, fmt.Errorf("LLM classify response has no analyzedReviews array (response: %s)", truncateForLog(responseText))
	}
	return *parsed.AnalyzedReviews, nil
}

// GenerateSuggestions never calls the model for an empty input; an empty
// prompt invites fabricated suggestions.
func (c *Client) GenerateSuggestions(ctx context.Context, texts []string) ([]domain.GroupedTopicSuggestion, error) {
	if len(texts) == 0 {
		return []domain.GroupedTopicSuggestion{}, nil
	}
	systemPrompt, userPrompt := buildSuggestionPrompts(texts)
	responseText, err := c.call(ctx, "suggest", len(texts), systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}
	return c.parseSuggestionResponse(responseText)
}

type rawSuggestionGroup struct {
	Topic       string            `json:"topic"`
	Suggestions []json.RawMessage `json:"suggestions"`
}

func (c *Client) parseSuggestionResponse(responseText string) ([]domain.GroupedTopicSuggestion, error) {
	responseText = stripCodeFence(responseText)
	var parsed struct {
		Suggestions *[]rawSuggestionGroup `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(responseText), &parsed); err != nil {
		return nil, fmt.Errorf("parsing LLM suggestion response: %w (response: %s)", err, truncateForLog(responseText))
	}
	if parsed.Suggestions == nil {
		return nil, fmt.Errorf("LLM suggestion response has no suggestions array (response: %s)", truncateForLog(responseText))
	}

	groups := make([]domain.GroupedTopicSuggestion, 0, len(*parsed.Suggestions))
	for _, raw := range *parsed.Suggestions {
		topic, ok := domain.ParseTopic(raw.Topic)
		if !ok {
			// Left as-is; the aggregator decides where an unknown topic lands.
			topic = domain.Topic(strings.TrimSpace(raw.Topic))
		}
		group := domain.GroupedTopicSuggestion{Topic: topic, Suggestions: []domain.TopicSuggestion{}}
		for _, item := range raw.Suggestions {
			var s domain.TopicSuggestion
			if err := json.Unmarshal(item, &s); err != nil {
				log.Printf("llm suggest dropped item topic=%s err=%v", raw.Topic, err)
				continue
			}
			s.Suggestion = strings.TrimSpace(s.Suggestion)
			if err := c.validate.Validate(s); err != nil {
				log.Printf("llm suggest dropped item topic=%s err=%v", raw.Topic, err)
				continue
			}
			group.Suggestions = append(group.Suggestions, s)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func (c *Client) GenerateSummary(ctx context.Context, texts []string) (domain.Summary, error) {
	systemPrompt, userPrompt := buildSummaryPrompts(texts)
	responseText, err := c.call(ctx, "summary", len(texts), systemPrompt, userPrompt)
	if err != nil {
		return domain.Summary{}, err
	}
	return parseSummaryResponse(responseText)
}

func parseSummaryResponse(responseText string) (domain.Summary, error) {
	responseText = stripCodeFence(responseText)
	var summary domain.Summary
	if err := json.Unmarshal([]byte(responseText), &summary); err != nil {
		return domain.Summary{}, fmt.Errorf("parsing LLM summary response: %w (response: %s)", err, truncateForLog(responseText))
	}
	summary.OverallSummary = orDefault(summary.OverallSummary, fallbackOverallSummary)
	summary.PositiveSummary = orDefault(summary.PositiveSummary, fallbackPositiveSummary)
	summary.NegativeSummary = orDefault(summary.NegativeSummary, fallbackNegativeSummary)
	summary.KeyPositives = strings.TrimSpace(summary.KeyPositives)
	return summary, nil
}

// GenerateTopicAnalysis asks for one analysis per requested topic. Entries for
// topics outside the closed set are dropped; missing topics are the caller's
// to fill.
func (c *Client) GenerateTopicAnalysis(ctx context.Context, topics []domain.TopicReviews) ([]domain.TopicAnalysis, error) {
	total := 0
	for _, t := range topics {
		total += len(t.Reviews)
	}
	systemPrompt, userPrompt := buildTopicAnalysisPrompts(topics)
	responseText, err := c.call(ctx, "topic-analysis", total, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}
	return parseTopicAnalysisResponse(responseText)
}

func parseTopicAnalysisResponse(responseText string) ([]domain.TopicAnalysis, error) {
	responseText = stripCodeFence(responseText)
	var parsed struct {
		DetailedTopicAnalysis []json.RawMessage `json:"detailedTopicAnalysis"`
	}
	if err := json.Unmarshal([]byte(responseText), &parsed); err != nil {
		return nil, fmt.Errorf("parsing LLM topic analysis response: %w (response: %s)", err, truncateForLog(responseText))
	}

	out := make([]domain.TopicAnalysis, 0, len(parsed.DetailedTopicAnalysis))
	for _, raw := range parsed.DetailedTopicAnalysis {
		var entry struct {
			Topic           string   `json:"topic"`
			PositiveSummary string   `json:"positiveSummary"`
			NegativeSummary string   `json:"negativeSummary"`
			Suggestions     []string `json:"suggestions"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			log.Printf("llm topic-analysis dropped entry err=%v", err)
			continue
		}
		topic, ok := domain.ParseTopic(entry.Topic)
		if !ok {
			log.Printf("llm topic-analysis dropped entry topic=%q", entry.Topic)
			continue
		}
		if entry.Suggestions == nil {
			entry.Suggestions = []string{}
		}
		out = append(out, domain.TopicAnalysis{
			Topic:           topic,
			PositiveSummary: strings.TrimSpace(entry.PositiveSummary),
			NegativeSummary: strings.TrimSpace(entry.NegativeSummary),
			Suggestions:     entry.Suggestions,
		})
	}
	return out, nil
}

func (c *Client) AnswerQuestion(ctx context.Context, texts []string, question string) (string, error) {
	systemPrompt, userPrompt := buildAnswerPrompts(texts, question)
	responseText, err := c.call(ctx, "answer", len(texts), systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(responseText)), &parsed); err != nil {
		return "", fmt.Errorf("parsing LLM answer response: %w (response: %s)", err, truncateForLog(responseText))
	}
	return orDefault(parsed.Answer, fallbackAnswer), nil
}

func (c *Client) GenerateReply(ctx context.Context, review string) (string, error) {
	systemPrompt, userPrompt := buildReplyPrompts(review)
	responseText, err := c.call(ctx, "reply", 1, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(responseText)), &parsed); err != nil {
		return "", fmt.Errorf("parsing LLM reply response: %w (response: %s)", err, truncateForLog(responseText))
	}
	return orDefault(parsed.Reply, fallbackReply), nil
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}
