package suggest

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"reviewpulse/internal/domain"

	"github.com/benbjohnson/clock"
)

// Generator is the external suggestion capability.
type Generator interface {
	GenerateSuggestions(ctx context.Context, texts []string) ([]domain.GroupedTopicSuggestion, error)
}

type Aggregator struct {
	generator Generator
	newPacer  func() Pacer
}

// NewAggregator paces generator calls interval apart on clk. Each Aggregate
// call gets a fresh gate.
func NewAggregator(generator Generator, clk clock.Clock, interval time.Duration) *Aggregator {
	return &Aggregator{
		generator: generator,
		newPacer:  func() Pacer { return NewGate(clk, interval) },
	}
}

func newAggregatorWithPacer(generator Generator, newPacer func() Pacer) *Aggregator {
	return &Aggregator{generator: generator, newPacer: newPacer}
}

// QualifyingTopics returns every topic with at least one review matching
// category, with the matching texts. Busier topics come first; ties keep the
// canonical topic order.
func QualifyingTopics(reviews []domain.ClassifiedReview, category domain.KpiCategory) []domain.TopicReviews {
	byTopic := make(map[domain.Topic][]string)
	for _, r := range reviews {
		if category.Matches(r.Sentiment) {
			byTopic[r.Topic] = append(byTopic[r.Topic], r.Text)
		}
	}
	out := make([]domain.TopicReviews, 0, len(byTopic))
	for _, t := range domain.AllTopics {
		if texts := byTopic[t]; len(texts) > 0 {
			out = append(out, domain.TopicReviews{Topic: t, Reviews: texts})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Reviews) > len(out[j].Reviews)
	})
	return out
}

// Aggregate calls the generator once per qualifying topic, strictly in
// sequence, and merges the returned groups by topic. A group naming a topic
// outside the qualifying set is credited to the topic that was asked about.
// The result has exactly one entry per qualifying topic.
func (a *Aggregator) Aggregate(ctx context.Context, reviews []domain.ClassifiedReview, category domain.KpiCategory) ([]domain.GroupedTopicSuggestion, error) {
	topics := QualifyingTopics(reviews, category)
	if len(topics) == 0 {
		return []domain.GroupedTopicSuggestion{}, nil
	}

	qualifying := make(map[domain.Topic]bool, len(topics))
	for _, t := range topics {
		qualifying[t.Topic] = true
	}

	pacer := a.newPacer()
	merged := make(map[domain.Topic][]domain.TopicSuggestion, len(topics))
	for i, t := range topics {
		if err := pacer.Wait(ctx); err != nil {
			return nil, err
		}
		log.Printf("suggest generate category=%s topic=%s reviews=%d call=%d/%d", category, t.Topic, len(t.Reviews), i+1, len(topics))
		groups, err := a.generator.GenerateSuggestions(ctx, t.Reviews)
		if err != nil {
			return nil, fmt.Errorf("generating %s suggestions for %s: %w", category, t.Topic, err)
		}
		for _, g := range groups {
			target := g.Topic
			if !qualifying[target] {
				target = t.Topic
			}
			merged[target] = append(merged[target], g.Suggestions...)
		}
	}

	out := make([]domain.GroupedTopicSuggestion, 0, len(topics))
	for _, t := range topics {
		suggestions := merged[t.Topic]
		if suggestions == nil {
			suggestions = []domain.TopicSuggestion{}
		}
		out = append(out, domain.GroupedTopicSuggestion{Topic: t.Topic, Suggestions: suggestions})
	}
	return out, nil
}
