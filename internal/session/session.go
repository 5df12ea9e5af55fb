package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"reviewpulse/internal/analyze"
	"reviewpulse/internal/domain"
	"reviewpulse/internal/insights"
	"reviewpulse/internal/snapshot"
	"reviewpulse/internal/suggest"
)

var (
	ErrAnalysisFailed = errors.New("analysis failed")
	ErrSuperseded     = errors.New("analysis superseded by a newer ingestion")
	ErrNoData         = errors.New("no analysis loaded")
	ErrReviewNotFound = errors.New("review not found")
	ErrEmptyQuestion  = errors.New("question is empty")
)

// Runner turns raw items into a dashboard.
type Runner interface {
	Run(ctx context.Context, items []domain.RawFeedbackItem) (analyze.Result, error)
}

// Assistant answers free-form questions and drafts replies.
type Assistant interface {
	AnswerQuestion(ctx context.Context, texts []string, question string) (string, error)
	GenerateReply(ctx context.Context, review string) (string, error)
}

// Session owns the single in-memory dashboard. Ingestion is single-flight: a
// new Ingest or Import cancels whatever run is in progress, and only the
// newest generation may publish its result.
type Session struct {
	runner      Runner
	suggestions suggest.Source
	assistant   Assistant
	threshold   int
	loc         *time.Location

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	dashboard  *domain.Dashboard
	cache      *suggest.Cache
}

// New builds an empty session. loc is the zone review weeks are counted in
// and dates without an offset are read in; nil means UTC.
func New(runner Runner, suggestions suggest.Source, assistant Assistant, threshold int, loc *time.Location) *Session {
	if loc == nil {
		loc = time.UTC
	}
	return &Session{
		runner:      runner,
		suggestions: suggestions,
		assistant:   assistant,
		threshold:   threshold,
		loc:         loc,
		cache:       suggest.NewCache(),
	}
}

// Location is the zone the session counts weeks in.
func (s *Session) Location() *time.Location {
	return s.loc
}

// begin resets the state and starts a new generation. Caller holds s.mu.
func (s *Session) begin(ctx context.Context) (uint64, context.Context, context.CancelFunc) {
	if s.cancel != nil {
		s.cancel()
		log.Printf("session superseding in-flight run generation=%d", s.generation)
	}
	s.generation++
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.dashboard = nil
	// A fresh cache keeps late suggestions from an older generation out.
	s.cache = suggest.NewCache()
	return s.generation, runCtx, cancel
}

func (s *Session) Ingest(ctx context.Context, items []domain.RawFeedbackItem) (analyze.Result, error) {
	s.mu.Lock()
	gen, runCtx, cancel := s.begin(ctx)
	s.mu.Unlock()
	defer cancel()

	res, err := s.runner.Run(runCtx, items)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return analyze.Result{}, ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		s.dashboard = nil
		s.cache.Clear()
		log.Printf("session analysis failed generation=%d err=%v", gen, err)
		return analyze.Result{}, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
	d := res.Dashboard
	s.dashboard = &d
	s.cache.Load(d.CachedKpiSuggestions)
	log.Printf("session analysis published generation=%d run=%s reviews=%d", gen, res.RunID, len(d.Reviews))
	return res, nil
}

// Import replaces the state with a snapshot, superseding any running analysis.
func (s *Session) Import(data []byte) error {
	d, err := snapshot.Import(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _, cancel := s.begin(context.Background())
	cancel()
	s.cancel = nil
	s.dashboard = &d
	s.cache.Load(d.CachedKpiSuggestions)
	log.Printf("session snapshot imported generation=%d reviews=%d cached_categories=%d", s.generation, len(d.Reviews), len(d.CachedKpiSuggestions))
	return nil
}

func (s *Session) Export() ([]byte, error) {
	d, err := s.Dashboard()
	if err != nil {
		return nil, err
	}
	return snapshot.Export(d)
}

// Dashboard returns the current state with the live suggestion cache folded in.
func (s *Session) Dashboard() (domain.Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dashboard == nil {
		return domain.Dashboard{}, ErrNoData
	}
	d := *s.dashboard
	d.CachedKpiSuggestions = s.cache.Entries()
	return d, nil
}

func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dashboard != nil
}

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Session) reviews() ([]domain.ClassifiedReview, *suggest.Cache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dashboard == nil {
		return nil, nil, ErrNoData
	}
	return s.dashboard.Reviews, s.cache, nil
}

func (s *Session) KPIs() (insights.KPIs, error) {
	reviews, _, err := s.reviews()
	if err != nil {
		return insights.KPIs{}, err
	}
	return insights.CalculateKPIs(reviews, s.threshold, s.loc), nil
}

func (s *Session) Trend() ([]domain.SentimentTrendPoint, insights.WeekOverWeek, error) {
	d, err := s.Dashboard()
	if err != nil {
		return nil, insights.WeekOverWeek{}, err
	}
	return d.SentimentTrend, insights.CompareLastWeeks(d.SentimentTrend), nil
}

// KpiSuggestions serves suggestions for category from the cache, computing
// them on first request.
func (s *Session) KpiSuggestions(ctx context.Context, category domain.KpiCategory) ([]domain.GroupedTopicSuggestion, error) {
	reviews, cache, err := s.reviews()
	if err != nil {
		return nil, err
	}
	v, hit, err := cache.Suggestions(ctx, s.suggestions, reviews, category)
	if err != nil {
		return nil, fmt.Errorf("suggestions for %s: %w", category, err)
	}
	log.Printf("session kpi suggestions category=%s cache_hit=%t topics=%d", category, hit, len(v))
	return v, nil
}

func (s *Session) Interleaved(category domain.KpiCategory) ([]domain.ClassifiedReview, error) {
	reviews, _, err := s.reviews()
	if err != nil {
		return nil, err
	}
	return insights.Interleave(reviews, category, s.threshold), nil
}

func (s *Session) Performance() (best, worst *domain.DetailedTopicAnalysis, err error) {
	d, err := s.Dashboard()
	if err != nil {
		return nil, nil, err
	}
	best, worst = insights.PerformanceTopics(d.DetailedAnalysis)
	return best, worst, nil
}

func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	reviews, _, err := s.reviews()
	if err != nil {
		return "", err
	}
	return s.assistant.AnswerQuestion(ctx, domain.ReviewTexts(reviews), question)
}

func (s *Session) Reply(ctx context.Context, id int) (string, error) {
	reviews, _, err := s.reviews()
	if err != nil {
		return "", err
	}
	review, ok := domain.FindReview(reviews, id)
	if !ok {
		return "", fmt.Errorf("%w: id=%d", ErrReviewNotFound, id)
	}
	return s.assistant.GenerateReply(ctx, review.Text)
}
