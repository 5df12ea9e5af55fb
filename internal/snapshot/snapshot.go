package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"reviewpulse/internal/domain"
)

var ErrInvalidFormat = errors.New("invalid analysis file format")

// document is the persisted form. Pointers tell a missing section apart from
// an empty one; consolidatedReviewData is the key older exports used.
type document struct {
	Reviews                *[]domain.ClassifiedReview                 `json:"reviews"`
	ConsolidatedAnalysis   *domain.ConsolidatedAnalysis               `json:"consolidatedAnalysis"`
	ConsolidatedReviewData *domain.ConsolidatedAnalysis               `json:"consolidatedReviewData,omitempty"`
	SentimentTrend         *[]domain.SentimentTrendPoint              `json:"sentimentTrend"`
	DetailedAnalysis       []domain.DetailedTopicAnalysis             `json:"detailedAnalysis"`
	CachedKpiSuggestions   map[string][]domain.GroupedTopicSuggestion `json:"cachedKpiSuggestions"`
}

// Export serializes the whole dashboard. Dates are written as ISO-8601 UTC
// strings or verbatim week labels.
func Export(d domain.Dashboard) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// Import reverses Export. Reviews, the consolidated analysis and the trend
// are required. Each detailed analysis is re-linked to its parent topic.
func Import(data []byte) (domain.Dashboard, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Dashboard{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	consolidated := doc.ConsolidatedAnalysis
	if consolidated == nil {
		consolidated = doc.ConsolidatedReviewData
	}
	if doc.Reviews == nil || consolidated == nil || doc.SentimentTrend == nil {
		return domain.Dashboard{}, fmt.Errorf("%w: reviews, consolidatedAnalysis and sentimentTrend are required", ErrInvalidFormat)
	}

	d := domain.Dashboard{
		Reviews:              *doc.Reviews,
		ConsolidatedAnalysis: consolidated,
		SentimentTrend:       *doc.SentimentTrend,
		DetailedAnalysis:     doc.DetailedAnalysis,
		CachedKpiSuggestions: make(map[domain.KpiCategory][]domain.GroupedTopicSuggestion, len(doc.CachedKpiSuggestions)),
	}
	if d.DetailedAnalysis == nil {
		d.DetailedAnalysis = []domain.DetailedTopicAnalysis{}
	}
	for i := range d.DetailedAnalysis {
		d.DetailedAnalysis[i].Analysis.Topic = d.DetailedAnalysis[i].Topic
	}
	for key, suggestions := range doc.CachedKpiSuggestions {
		category, ok := domain.ParseKpiCategory(key)
		if !ok {
			log.Printf("snapshot import skipped cached suggestions key=%q", key)
			continue
		}
		d.CachedKpiSuggestions[category] = suggestions
	}
	return d, nil
}

func WriteFile(path string, d domain.Dashboard) error {
	data, err := Export(d)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating snapshot dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	log.Printf("snapshot written path=%s reviews=%d bytes=%d", path, len(d.Reviews), len(data))
	return nil
}

func ReadFile(path string) (domain.Dashboard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Dashboard{}, fmt.Errorf("reading snapshot: %w", err)
	}
	return Import(data)
}
