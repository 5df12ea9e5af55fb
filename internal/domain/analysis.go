package domain

import "strings"

type TopicSuggestion struct {
	Suggestion string `json:"suggestion" validate:"required"`
	Priority   int    `json:"priority" validate:"gte=1,lte=3"`
}

type GroupedTopicSuggestion struct {
	Topic       Topic             `json:"topic"`
	Suggestions []TopicSuggestion `json:"suggestions"`
}

type TopicAnalysis struct {
	Topic           Topic    `json:"topic"`
	PositiveSummary string   `json:"positiveSummary"`
	NegativeSummary string   `json:"negativeSummary"`
	Suggestions     []string `json:"suggestions"`
}

type DetailedTopicAnalysis struct {
	Topic    Topic         `json:"topic"`
	Total    int           `json:"total"`
	Positive int           `json:"positive"`
	Negative int           `json:"negative"`
	Analysis TopicAnalysis `json:"analysis"`
}

type TopicReviews struct {
	Topic   Topic    `json:"topic"`
	Reviews []string `json:"reviews"`
}

type Summary struct {
	OverallSummary  string `json:"overallSummary"`
	PositiveSummary string `json:"positiveSummary"`
	NegativeSummary string `json:"negativeSummary"`
	KeyPositives    string `json:"keyPositives"`
}

type ConsolidatedAnalysis struct {
	OverallSummary  string                   `json:"overallSummary"`
	PositiveSummary string                   `json:"positiveSummary"`
	NegativeSummary string                   `json:"negativeSummary"`
	KeyPositives    string                   `json:"keyPositives"`
	AnalyzedReviews []ClassifiedReview       `json:"analyzedReviews"`
	OverallRating   float64                  `json:"overallRating"`
	Suggestions     []GroupedTopicSuggestion `json:"suggestions"`
}

type SentimentTrendPoint struct {
	WeekLabel string  `json:"weekLabel"`
	AvgRating float64 `json:"avgRating"`
}

type KpiCategory string

const (
	KpiCritical KpiCategory = "critical"
	KpiPraise   KpiCategory = "praise"
)

func ParseKpiCategory(s string) (KpiCategory, bool) {
	switch KpiCategory(strings.ToLower(strings.TrimSpace(s))) {
	case KpiCritical:
		return KpiCritical, true
	case KpiPraise:
		return KpiPraise, true
	}
	return "", false
}

// Matches reports whether a review with sentiment s counts toward the category.
func (c KpiCategory) Matches(s Sentiment) bool {
	switch c {
	case KpiCritical:
		return s.IsNegative()
	case KpiPraise:
		return s.IsPositive()
	}
	return false
}

// Dashboard is the complete derived state of one analysis session. It is
// replaced wholesale on ingestion and never partially updated.
type Dashboard struct {
	Reviews              []ClassifiedReview                       `json:"reviews"`
	ConsolidatedAnalysis *ConsolidatedAnalysis                    `json:"consolidatedAnalysis"`
	SentimentTrend       []SentimentTrendPoint                    `json:"sentimentTrend"`
	DetailedAnalysis     []DetailedTopicAnalysis                  `json:"detailedAnalysis"`
	CachedKpiSuggestions map[KpiCategory][]GroupedTopicSuggestion `json:"cachedKpiSuggestions"`
}
