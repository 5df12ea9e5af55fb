package insights

import (
	"fmt"
	"math"
	"sort"
	"time"

	"reviewpulse/internal/domain"
)

type TopicCount struct {
	Topic domain.Topic `json:"topic"`
	Count int          `json:"count"`
}

// KPIs are the headline metrics of a review set. A nil top topic renders as
// "None".
type KPIs struct {
	Total               int          `json:"total"`
	PositiveCount       int          `json:"positiveCount"`
	NegativeCount       int          `json:"negativeCount"`
	SatisfactionRate    int          `json:"satisfactionRate"`
	Satisfaction        WeekOverWeek `json:"satisfaction"`
	SatisfactionInsight string       `json:"satisfactionInsight"`

	TopCriticalIssue      *TopicCount  `json:"topCriticalIssue"`
	TopPraiseArea         *TopicCount  `json:"topPraiseArea"`
	AreasNeedingAttention int          `json:"areasNeedingAttention"`
	PraiseAreas           int          `json:"praiseAreas"`
	CriticalBreakdown     []TopicCount `json:"criticalBreakdown"`
	PraiseBreakdown       []TopicCount `json:"praiseBreakdown"`
	CriticalInsight       string       `json:"criticalInsight"`
	PraiseInsight         string       `json:"praiseInsight"`
}

type topicTally struct {
	total, positive, negative int
}

func tallyByTopic(reviews []domain.ClassifiedReview) map[domain.Topic]*topicTally {
	tallies := make(map[domain.Topic]*topicTally, len(domain.AllTopics))
	for _, r := range reviews {
		t := tallies[r.Topic]
		if t == nil {
			t = &topicTally{}
			tallies[r.Topic] = t
		}
		t.total++
		switch {
		case r.Sentiment.IsPositive():
			t.positive++
		case r.Sentiment.IsNegative():
			t.negative++
		}
	}
	return tallies
}

func (t *topicTally) negativeRatio() float64 {
	if t.total == 0 {
		return 0
	}
	return float64(t.negative) / float64(t.total)
}

// CalculateKPIs is a pure function of reviews, the significance threshold and
// the location weeks are counted in.
func CalculateKPIs(reviews []domain.ClassifiedReview, threshold int, loc *time.Location) KPIs {
	k := KPIs{Total: len(reviews)}
	for _, r := range reviews {
		switch {
		case r.Sentiment.IsPositive():
			k.PositiveCount++
		case r.Sentiment.IsNegative():
			k.NegativeCount++
		}
	}
	if k.Total > 0 {
		k.SatisfactionRate = int(math.Round(100 * float64(k.PositiveCount) / float64(k.Total)))
	}
	k.Satisfaction = CompareLastWeeks(SentimentTrend(reviews, loc))
	k.SatisfactionInsight = satisfactionInsight(k)

	tallies := tallyByTopic(reviews)
	k.TopCriticalIssue = topCritical(tallies)
	k.TopPraiseArea = topPraise(tallies)
	k.CriticalBreakdown = breakdown(tallies, func(t *topicTally) int { return t.negative })
	k.PraiseBreakdown = breakdown(tallies, func(t *topicTally) int { return t.positive })
	k.AreasNeedingAttention = areaCount(k.CriticalBreakdown, k.NegativeCount, threshold)
	k.PraiseAreas = areaCount(k.PraiseBreakdown, k.PositiveCount, threshold)
	k.CriticalInsight = areaInsight("issue", "Top issue", k.CriticalBreakdown, k.NegativeCount, threshold, k.AreasNeedingAttention, k.TopCriticalIssue)
	k.PraiseInsight = areaInsight("excellence", "Top praise", k.PraiseBreakdown, k.PositiveCount, threshold, k.PraiseAreas, k.TopPraiseArea)
	return k
}

// topCritical picks the topic with the most negative reviews; ties go to the
// higher negative share, then to canonical order.
func topCritical(tallies map[domain.Topic]*topicTally) *TopicCount {
	var best domain.Topic
	var bestTally *topicTally
	for _, topic := range domain.AllTopics {
		t := tallies[topic]
		if t == nil || t.negative == 0 {
			continue
		}
		if bestTally == nil || t.negative > bestTally.negative ||
			(t.negative == bestTally.negative && t.negativeRatio() > bestTally.negativeRatio()) {
			best, bestTally = topic, t
		}
	}
	if bestTally == nil {
		return nil
	}
	return &TopicCount{Topic: best, Count: bestTally.negative}
}

// topPraise picks the topic with the most positive reviews; ties go to the
// lower negative share, then to canonical order.
func topPraise(tallies map[domain.Topic]*topicTally) *TopicCount {
	var best domain.Topic
	var bestTally *topicTally
	for _, topic := range domain.AllTopics {
		t := tallies[topic]
		if t == nil || t.positive == 0 {
			continue
		}
		if bestTally == nil || t.positive > bestTally.positive ||
			(t.positive == bestTally.positive && t.negativeRatio() < bestTally.negativeRatio()) {
			best, bestTally = topic, t
		}
	}
	if bestTally == nil {
		return nil
	}
	return &TopicCount{Topic: best, Count: bestTally.positive}
}

func breakdown(tallies map[domain.Topic]*topicTally, count func(*topicTally) int) []TopicCount {
	out := []TopicCount{}
	for _, topic := range domain.AllTopics {
		if t := tallies[topic]; t != nil && count(t) > 0 {
			out = append(out, TopicCount{Topic: topic, Count: count(t)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// areaCount counts topics at or above threshold once the overall volume
// reaches it; below that the headline collapses to the single top topic.
func areaCount(counts []TopicCount, volume, threshold int) int {
	if len(counts) == 0 {
		return 0
	}
	if volume < threshold {
		return 1
	}
	n := 0
	for _, c := range counts {
		if c.Count >= threshold {
			n++
		}
	}
	return n
}

// SignificantTopics returns the topics whose count meets threshold, in
// breakdown order.
func SignificantTopics(counts []TopicCount, threshold int) []domain.Topic {
	var out []domain.Topic
	for _, c := range counts {
		if c.Count >= threshold {
			out = append(out, c.Topic)
		}
	}
	return out
}

func areaInsight(kind, topLabel string, counts []TopicCount, volume, threshold, areas int, top *TopicCount) string {
	total := len(domain.AllTopics)
	if volume >= threshold {
		return fmt.Sprintf("%d %s areas out of %d total areas.", areas, kind, total)
	}
	plural := "s"
	if len(counts) == 1 {
		plural = ""
	}
	return fmt.Sprintf("%d %s area%s out of %d total areas. %s is '%s'.", len(counts), kind, plural, total, topLabel, TopicName(top))
}

// TopicName renders a top topic, or "None" when there is none.
func TopicName(tc *TopicCount) string {
	if tc == nil {
		return "None"
	}
	return string(tc.Topic)
}

func satisfactionInsight(k KPIs) string {
	if k.Total == 0 {
		return "No reviews to analyze."
	}
	w := k.Satisfaction
	if !w.HasComparison {
		return fmt.Sprintf("Based on %d reviews with %d%% positive sentiment.", k.Total, k.SatisfactionRate)
	}
	switch w.Direction {
	case Improving:
		return fmt.Sprintf("Guest satisfaction improved by %.1f%% from previous week.", math.Abs(w.ChangePercent))
	case Declining:
		return fmt.Sprintf("Guest satisfaction decreased by %.1f%% from previous week.", math.Abs(w.ChangePercent))
	default:
		return "Guest satisfaction remained stable compared to previous week."
	}
}
