package suggest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"reviewpulse/internal/domain"

	"github.com/benbjohnson/clock"
)

type fakeGenerator struct {
	calls     [][]string
	responses [][]domain.GroupedTopicSuggestion
	err       error
}

func (f *fakeGenerator) GenerateSuggestions(_ context.Context, texts []string) ([]domain.GroupedTopicSuggestion, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.calls) > len(f.responses) {
		return []domain.GroupedTopicSuggestion{}, nil
	}
	return f.responses[len(f.calls)-1], nil
}

// recordingPacer notes the delay the real gate would impose without sleeping.
type recordingPacer struct {
	gate   *Gate
	delays []time.Duration
}

func (p *recordingPacer) Wait(ctx context.Context) error {
	p.delays = append(p.delays, p.gate.Delay())
	p.gate.calls++
	return ctx.Err()
}

func review(id int, sentiment domain.Sentiment, topic domain.Topic) domain.ClassifiedReview {
	return domain.ClassifiedReview{ID: id, Text: string(topic) + " review", Sentiment: sentiment, Topic: topic, Rating: sentiment.Rating()}
}

func sampleReviews() []domain.ClassifiedReview {
	return []domain.ClassifiedReview{
		review(0, domain.SentimentFare, domain.TopicDining),
		review(1, domain.SentimentBad, domain.TopicRooms),
		review(2, domain.SentimentBad, domain.TopicRooms),
		review(3, domain.SentimentGood, domain.TopicService),
		review(4, domain.SentimentBad, domain.TopicDining),
		review(5, domain.SentimentBad, domain.TopicRooms),
		review(6, domain.SentimentOther, domain.TopicAmenities),
	}
}

func TestGateFirstCallImmediateThenFixedInterval(t *testing.T) {
	mock := clock.NewMock()
	g := NewGate(mock, 10*time.Second)
	ctx := context.Background()

	if d := g.Delay(); d != 0 {
		t.Fatalf("first delay = %s, want 0", d)
	}
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	if d := g.Delay(); d != 10*time.Second {
		t.Fatalf("second delay = %s, want 10s", d)
	}

	start := mock.Now()
	done := make(chan error, 1)
	go func() { done <- g.Wait(ctx) }()
	for i := 0; ; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("second Wait: %v", err)
			}
			if elapsed := mock.Now().Sub(start); elapsed < 10*time.Second {
				t.Fatalf("second Wait released after %s of virtual time, want >= 10s", elapsed)
			}
			return
		default:
		}
		if i > 1000 {
			t.Fatal("gate never released")
		}
		mock.Add(time.Second)
	}
}

func TestGateWaitHonorsCancellation(t *testing.T) {
	g := NewGate(clock.NewMock(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	cancel()
	if err := g.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestQualifyingTopicsOrderedByVolume(t *testing.T) {
	got := QualifyingTopics(sampleReviews(), domain.KpiCritical)
	if len(got) != 2 || got[0].Topic != domain.TopicRooms || got[1].Topic != domain.TopicDining {
		t.Fatalf("unexpected qualifying topics: %+v", got)
	}
	if len(got[0].Reviews) != 3 || len(got[1].Reviews) != 2 {
		t.Fatalf("unexpected review counts: %+v", got)
	}

	praise := QualifyingTopics(sampleReviews(), domain.KpiPraise)
	if len(praise) != 1 || praise[0].Topic != domain.TopicService {
		t.Fatalf("unexpected praise topics: %+v", praise)
	}
}

func TestAggregateSequentialPacedAndMerged(t *testing.T) {
	gen := &fakeGenerator{responses: [][]domain.GroupedTopicSuggestion{
		{
			{Topic: domain.TopicRooms, Suggestions: []domain.TopicSuggestion{{Suggestion: "Fix the AC", Priority: 1}}},
			{Topic: domain.TopicDining, Suggestions: []domain.TopicSuggestion{{Suggestion: "Extend breakfast", Priority: 2}}},
		},
		{
			{Topic: "Parking", Suggestions: []domain.TopicSuggestion{{Suggestion: "Hire a second cook", Priority: 1}}},
		},
	}}
	pacer := &recordingPacer{gate: NewGate(clock.NewMock(), 10*time.Second)}
	agg := newAggregatorWithPacer(gen, func() Pacer { return pacer })

	got, err := agg.Aggregate(context.Background(), sampleReviews(), domain.KpiCritical)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if len(gen.calls) != 2 {
		t.Fatalf("expected one call per qualifying topic, got %d", len(gen.calls))
	}
	if want := []time.Duration{0, 10 * time.Second}; !reflect.DeepEqual(pacer.delays, want) {
		t.Fatalf("pacing delays = %v, want %v", pacer.delays, want)
	}

	want := []domain.GroupedTopicSuggestion{
		{Topic: domain.TopicRooms, Suggestions: []domain.TopicSuggestion{{Suggestion: "Fix the AC", Priority: 1}}},
		{Topic: domain.TopicDining, Suggestions: []domain.TopicSuggestion{
			{Suggestion: "Extend breakfast", Priority: 2},
			{Suggestion: "Hire a second cook", Priority: 1},
		}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Aggregate = %+v, want %+v", got, want)
	}
}

func TestAggregateNoQualifyingTopicsMakesNoCalls(t *testing.T) {
	gen := &fakeGenerator{}
	agg := NewAggregator(gen, clock.NewMock(), 10*time.Second)
	reviews := []domain.ClassifiedReview{review(0, domain.SentimentGood, domain.TopicRooms)}

	got, err := agg.Aggregate(context.Background(), reviews, domain.KpiCritical)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
	if len(gen.calls) != 0 {
		t.Fatalf("expected no generator calls, got %d", len(gen.calls))
	}
}

func TestAggregateEmptyTopicStillListed(t *testing.T) {
	gen := &fakeGenerator{}
	agg := NewAggregator(gen, clock.NewMock(), 0)
	reviews := []domain.ClassifiedReview{review(0, domain.SentimentBest, domain.TopicDining)}

	got, err := agg.Aggregate(context.Background(), reviews, domain.KpiPraise)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(got) != 1 || got[0].Topic != domain.TopicDining || got[0].Suggestions == nil || len(got[0].Suggestions) != 0 {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestAggregateStopsOnGeneratorError(t *testing.T) {
	boom := errors.New("quota exceeded")
	gen := &fakeGenerator{err: boom}
	agg := NewAggregator(gen, clock.NewMock(), 0)

	if _, err := agg.Aggregate(context.Background(), sampleReviews(), domain.KpiCritical); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped generator error, got %v", err)
	}
	if len(gen.calls) != 1 {
		t.Fatalf("expected the run to stop after the first failure, got %d calls", len(gen.calls))
	}
}

type failingSource struct{ t *testing.T }

func (f failingSource) Aggregate(context.Context, []domain.ClassifiedReview, domain.KpiCategory) ([]domain.GroupedTopicSuggestion, error) {
	f.t.Fatal("aggregator must not be invoked for a cached category")
	return nil, nil
}

func TestCacheServesLoadedSnapshotWithoutCalls(t *testing.T) {
	cached := []domain.GroupedTopicSuggestion{
		{Topic: domain.TopicRooms, Suggestions: []domain.TopicSuggestion{{Suggestion: "Replace mattresses", Priority: 1}}},
	}
	c := NewCache()
	c.Load(map[domain.KpiCategory][]domain.GroupedTopicSuggestion{domain.KpiCritical: cached})

	got, hit, err := c.Suggestions(context.Background(), failingSource{t: t}, sampleReviews(), domain.KpiCritical)
	if err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if !hit || !reflect.DeepEqual(got, cached) {
		t.Fatalf("expected cached value, got hit=%v %+v", hit, got)
	}
}

func TestCachePopulatesOnceAndClears(t *testing.T) {
	gen := &fakeGenerator{responses: [][]domain.GroupedTopicSuggestion{
		{{Topic: domain.TopicService, Suggestions: []domain.TopicSuggestion{{Suggestion: "Recognize staff", Priority: 3}}}},
	}}
	agg := NewAggregator(gen, clock.NewMock(), 0)
	c := NewCache()

	for i := 0; i < 2; i++ {
		if _, _, err := c.Suggestions(context.Background(), agg, sampleReviews(), domain.KpiPraise); err != nil {
			t.Fatalf("Suggestions #%d: %v", i, err)
		}
	}
	if len(gen.calls) != 1 {
		t.Fatalf("expected a single external call, got %d", len(gen.calls))
	}
	if entries := c.Entries(); len(entries) != 1 {
		t.Fatalf("expected one cached category, got %d", len(entries))
	}

	c.Clear()
	if _, ok := c.Get(domain.KpiPraise); ok {
		t.Fatal("Clear should drop every category")
	}
}
