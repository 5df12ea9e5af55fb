package analyze

import (
	"context"
	"fmt"
	"log"
	"time"

	"reviewpulse/internal/config"
	"reviewpulse/internal/domain"
	"reviewpulse/internal/insights"

	"github.com/google/uuid"
)

const noKeyPositives = "No positives identified."

// Capabilities are the external model calls a run needs besides suggestions.
type Capabilities interface {
	Classifier
	GenerateSummary(ctx context.Context, texts []string) (domain.Summary, error)
	GenerateTopicAnalysis(ctx context.Context, topics []domain.TopicReviews) ([]domain.TopicAnalysis, error)
}

// SuggestionSource produces the topic-grouped suggestions for a category.
type SuggestionSource interface {
	Aggregate(ctx context.Context, reviews []domain.ClassifiedReview, category domain.KpiCategory) ([]domain.GroupedTopicSuggestion, error)
}

type Options struct {
	BatchSize int
	RunID     string
	// Location is where trend weeks begin; nil means UTC.
	Location *time.Location
	// Progress, when set, is called after each classification batch.
	Progress func(done, total int)
}

func (o Options) batchSize() int {
	if o.BatchSize < 1 {
		return config.DefaultBatchSize
	}
	return o.BatchSize
}

type Result struct {
	RunID     string
	Dashboard domain.Dashboard
	Stats     Stats
	Elapsed   time.Duration
}

type Pipeline struct {
	caps        Capabilities
	suggestions SuggestionSource
	opts        Options
}

func NewPipeline(caps Capabilities, suggestions SuggestionSource, opts Options) *Pipeline {
	return &Pipeline{caps: caps, suggestions: suggestions, opts: opts}
}

// Run turns raw feedback into a complete dashboard. Every external call is
// made in sequence; any failure other than a single malformed item aborts the
// run and nothing partial is returned.
func (p *Pipeline) Run(ctx context.Context, items []domain.RawFeedbackItem) (Result, error) {
	started := time.Now()
	opts := p.opts
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	log.Printf("analyze run start run=%s items=%d batch_size=%d", opts.RunID, len(items), opts.batchSize())

	if len(items) == 0 {
		return Result{}, newError(KindIngestion, "no feedback items to analyze")
	}

	reviews, stats, err := ClassifyAll(ctx, p.caps, items, opts)
	if err != nil {
		log.Printf("analyze run failed run=%s stage=classify err=%v", opts.RunID, err)
		return Result{}, err
	}
	if len(reviews) == 0 {
		return Result{}, newError(KindConsolidation, "no valid classified reviews out of %d items", len(items))
	}

	texts := make([]string, 0, len(items))
	for _, item := range items {
		texts = append(texts, item.Text)
	}
	summary, err := p.caps.GenerateSummary(ctx, texts)
	if err != nil {
		log.Printf("analyze run failed run=%s stage=summary err=%v", opts.RunID, err)
		return Result{}, fmt.Errorf("generating summary: %w", err)
	}

	suggestions, err := p.suggestions.Aggregate(ctx, reviews, domain.KpiCritical)
	if err != nil {
		log.Printf("analyze run failed run=%s stage=suggestions err=%v", opts.RunID, err)
		return Result{}, fmt.Errorf("generating suggestions: %w", err)
	}

	analyses, err := p.caps.GenerateTopicAnalysis(ctx, insights.ReviewsByTopic(reviews))
	if err != nil {
		log.Printf("analyze run failed run=%s stage=topic-analysis err=%v", opts.RunID, err)
		return Result{}, fmt.Errorf("generating topic analysis: %w", err)
	}

	keyPositives := summary.KeyPositives
	if keyPositives == "" {
		keyPositives = noKeyPositives
	}
	dashboard := domain.Dashboard{
		Reviews: reviews,
		ConsolidatedAnalysis: &domain.ConsolidatedAnalysis{
			OverallSummary:  summary.OverallSummary,
			PositiveSummary: summary.PositiveSummary,
			NegativeSummary: summary.NegativeSummary,
			KeyPositives:    keyPositives,
			AnalyzedReviews: reviews,
			OverallRating:   insights.OverallRating(reviews),
			Suggestions:     suggestions,
		},
		SentimentTrend:       insights.SentimentTrend(reviews, opts.Location),
		DetailedAnalysis:     insights.DetailedAnalysis(reviews, analyses),
		CachedKpiSuggestions: map[domain.KpiCategory][]domain.GroupedTopicSuggestion{},
	}

	elapsed := time.Since(started)
	log.Printf("analyze run done run=%s reviews=%d trend_points=%d suggestion_topics=%d elapsed=%s", opts.RunID, len(reviews), len(dashboard.SentimentTrend), len(suggestions), elapsed.Round(time.Millisecond))
	return Result{RunID: opts.RunID, Dashboard: dashboard, Stats: stats, Elapsed: elapsed}, nil
}
