package suggest

import (
	"context"
	"sync"

	"reviewpulse/internal/domain"
)

// Source produces suggestions for a KPI category.
type Source interface {
	Aggregate(ctx context.Context, reviews []domain.ClassifiedReview, category domain.KpiCategory) ([]domain.GroupedTopicSuggestion, error)
}

// Cache memoizes suggestions per KPI category for one session. It is cleared
// wholesale whenever new reviews are ingested.
type Cache struct {
	mu      sync.Mutex
	entries map[domain.KpiCategory][]domain.GroupedTopicSuggestion
}

func NewCache() *Cache {
	return &Cache{entries: make(map[domain.KpiCategory][]domain.GroupedTopicSuggestion)}
}

func (c *Cache) Get(category domain.KpiCategory) ([]domain.GroupedTopicSuggestion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[category]
	return v, ok
}

func (c *Cache) Put(category domain.KpiCategory, suggestions []domain.GroupedTopicSuggestion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[category] = suggestions
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[domain.KpiCategory][]domain.GroupedTopicSuggestion)
}

// Entries returns a copy of the cached map, suitable for a snapshot.
func (c *Cache) Entries() map[domain.KpiCategory][]domain.GroupedTopicSuggestion {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[domain.KpiCategory][]domain.GroupedTopicSuggestion, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Load replaces the cache contents with entries from a snapshot.
func (c *Cache) Load(entries map[domain.KpiCategory][]domain.GroupedTopicSuggestion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[domain.KpiCategory][]domain.GroupedTopicSuggestion, len(entries))
	for k, v := range entries {
		c.entries[k] = v
	}
}

// Suggestions returns the cached value for category, computing and storing it
// through src on the first request. Failures are not cached.
func (c *Cache) Suggestions(ctx context.Context, src Source, reviews []domain.ClassifiedReview, category domain.KpiCategory) ([]domain.GroupedTopicSuggestion, bool, error) {
	if v, ok := c.Get(category); ok {
		return v, true, nil
	}
	v, err := src.Aggregate(ctx, reviews, category)
	if err != nil {
		return nil, false, err
	}
	c.Put(category, v)
	return v, false, nil
}
