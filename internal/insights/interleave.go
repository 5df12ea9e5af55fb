package insights

import (
	"sort"

	"reviewpulse/internal/domain"
)

// Interleave selects the reviews matching category from topics that have at
// least threshold of them and merges those topics round-robin, so every
// significant topic shows up near the front. Topics take turns in canonical
// order and each topic lists its newest review first.
func Interleave(reviews []domain.ClassifiedReview, category domain.KpiCategory, threshold int) []domain.ClassifiedReview {
	groups := make(map[domain.Topic][]domain.ClassifiedReview)
	for _, r := range reviews {
		if category.Matches(r.Sentiment) {
			groups[r.Topic] = append(groups[r.Topic], r)
		}
	}

	var ordered [][]domain.ClassifiedReview
	longest := 0
	for _, topic := range domain.AllTopics {
		group := groups[topic]
		if len(group) == 0 || len(group) < threshold {
			continue
		}
		sortNewestFirst(group)
		ordered = append(ordered, group)
		if len(group) > longest {
			longest = len(group)
		}
	}

	out := make([]domain.ClassifiedReview, 0)
	for i := 0; i < longest; i++ {
		for _, group := range ordered {
			if i < len(group) {
				out = append(out, group[i])
			}
		}
	}
	return out
}

// sortNewestFirst orders dated reviews most recent first. Reviews without a
// calendar date, including week-labelled ones, keep their relative order at
// the end.
func sortNewestFirst(reviews []domain.ClassifiedReview) {
	dated := func(r domain.ClassifiedReview) bool {
		return r.Date != nil && !r.Date.IsWeekLabel()
	}
	sort.SliceStable(reviews, func(i, j int) bool {
		di, dj := dated(reviews[i]), dated(reviews[j])
		if di && dj {
			return reviews[i].Date.Time.After(reviews[j].Date.Time)
		}
		return di && !dj
	})
}
