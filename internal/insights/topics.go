package insights

import "reviewpulse/internal/domain"

const (
	noFeedbackSummary         = "No feedback provided for this topic."
	noNegativeFeedbackSummary = "No negative feedback provided for this topic."
)

// DetailedAnalysis builds one entry per topic in canonical order. Topics with
// no reviews, or that the model left out, get the fixed fallback analysis.
func DetailedAnalysis(reviews []domain.ClassifiedReview, analyses []domain.TopicAnalysis) []domain.DetailedTopicAnalysis {
	byTopic := make(map[domain.Topic]domain.TopicAnalysis, len(analyses))
	for _, a := range analyses {
		if _, dup := byTopic[a.Topic]; !dup {
			byTopic[a.Topic] = a
		}
	}
	tallies := tallyByTopic(reviews)

	out := make([]domain.DetailedTopicAnalysis, 0, len(domain.AllTopics))
	for _, topic := range domain.AllTopics {
		entry := domain.DetailedTopicAnalysis{Topic: topic}
		if t := tallies[topic]; t != nil {
			entry.Total, entry.Positive, entry.Negative = t.total, t.positive, t.negative
		}
		analysis, ok := byTopic[topic]
		if entry.Total > 0 && ok {
			analysis.Topic = topic
			if analysis.Suggestions == nil {
				analysis.Suggestions = []string{}
			}
			entry.Analysis = analysis
		} else {
			entry.Analysis = FallbackAnalysis(topic)
		}
		out = append(out, entry)
	}
	return out
}

func FallbackAnalysis(topic domain.Topic) domain.TopicAnalysis {
	return domain.TopicAnalysis{
		Topic:           topic,
		PositiveSummary: noFeedbackSummary,
		NegativeSummary: noNegativeFeedbackSummary,
		Suggestions:     []string{},
	}
}

// ReviewsByTopic groups review texts for the topic analysis request, one entry
// per topic including empty ones.
func ReviewsByTopic(reviews []domain.ClassifiedReview) []domain.TopicReviews {
	grouped := make(map[domain.Topic][]string)
	for _, r := range reviews {
		if r.Text != "" {
			grouped[r.Topic] = append(grouped[r.Topic], r.Text)
		}
	}
	out := make([]domain.TopicReviews, 0, len(domain.AllTopics))
	for _, topic := range domain.AllTopics {
		texts := grouped[topic]
		if texts == nil {
			texts = []string{}
		}
		out = append(out, domain.TopicReviews{Topic: topic, Reviews: texts})
	}
	return out
}

// PerformanceTopics returns the topics with the most positive and the most
// negative reviews among topics that have any. Either is nil when its count
// is zero. Ties keep the later topic, matching a left-to-right reduce.
func PerformanceTopics(detailed []domain.DetailedTopicAnalysis) (best, worst *domain.DetailedTopicAnalysis) {
	for i := range detailed {
		d := &detailed[i]
		if d.Total == 0 {
			continue
		}
		if best == nil || d.Positive >= best.Positive {
			best = d
		}
		if worst == nil || d.Negative >= worst.Negative {
			worst = d
		}
	}
	if best != nil && best.Positive == 0 {
		best = nil
	}
	if worst != nil && worst.Negative == 0 {
		worst = nil
	}
	return best, worst
}

// OverallRating is the mean rating, or 0 for no reviews.
func OverallRating(reviews []domain.ClassifiedReview) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range reviews {
		sum += r.Rating
	}
	return sum / float64(len(reviews))
}
