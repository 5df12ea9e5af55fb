package analyze

import (
	"context"
	"encoding/json"
	"log"
	"math/rand/v2"

	"reviewpulse/internal/domain"
)

// Classifier labels one batch of review texts. Returned items address their
// input by zero-based position within the batch.
type Classifier interface {
	Classify(ctx context.Context, texts []string) ([]json.RawMessage, error)
}

// Stats describes how one classification pass went.
type Stats struct {
	Items       int
	Batches     int
	Classified  int
	Dropped     int
	Unanswered  int
	FallbackIDs int
}

// SplitBatches partitions items into contiguous batches of at most size,
// preserving order.
func SplitBatches(items []domain.RawFeedbackItem, size int) [][]domain.RawFeedbackItem {
	if size < 1 {
		size = 1
	}
	var batches [][]domain.RawFeedbackItem
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

// checkBatchable rejects inputs whose ids cannot be recovered from a
// batch-local index: ids must be non-negative, unique, and distinct modulo
// size within every batch.
func checkBatchable(items []domain.RawFeedbackItem, size int) error {
	seen := make(map[int]bool, len(items))
	for _, item := range items {
		if item.ID < 0 {
			return newError(KindIngestion, "feedback item id %d is negative", item.ID)
		}
		if seen[item.ID] {
			return newError(KindIngestion, "duplicate feedback item id %d", item.ID)
		}
		seen[item.ID] = true
	}
	for b, batch := range SplitBatches(items, size) {
		slots := make(map[int]int, len(batch))
		for _, item := range batch {
			slot := item.ID % size
			if other, taken := slots[slot]; taken {
				return newError(KindIngestion, "feedback ids %d and %d share batch slot %d in batch %d", other, item.ID, slot, b)
			}
			slots[slot] = item.ID
		}
	}
	return nil
}

// reconcileID maps a batch-local index back to the global id of the batch
// item whose id modulo size equals it.
func reconcileID(batch []domain.RawFeedbackItem, local, size int) (*domain.RawFeedbackItem, bool) {
	for i := range batch {
		if batch[i].ID%size == local {
			return &batch[i], true
		}
	}
	return nil, false
}

// fallbackID mints an id for a result that names no item in its batch. The
// value is negative so it can never collide with a normalized item id.
func fallbackID(batchIdx, local int) int {
	if local < 0 {
		local = -local
	}
	return -(1 + batchIdx*1_000_000 + (local%1000)*1000 + rand.IntN(1000))
}

// ClassifyAll drives the classifier over items one batch at a time and never
// in parallel. Any classifier failure aborts the pass with no partial result.
func ClassifyAll(ctx context.Context, classifier Classifier, items []domain.RawFeedbackItem, opts Options) ([]domain.ClassifiedReview, Stats, error) {
	size := opts.batchSize()
	stats := Stats{Items: len(items)}
	if err := checkBatchable(items, size); err != nil {
		return nil, stats, err
	}

	batches := SplitBatches(items, size)
	stats.Batches = len(batches)
	consolidator := newConsolidator()
	var reviews []domain.ClassifiedReview

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		texts := make([]string, 0, len(batch))
		for _, item := range batch {
			texts = append(texts, item.Text)
		}

		log.Printf("analyze classify run=%s batch=%d/%d items=%d", opts.RunID, i+1, len(batches), len(batch))
		raw, err := classifier.Classify(ctx, texts)
		if err != nil {
			return nil, stats, &Error{Kind: KindClassificationService, Err: err}
		}
		if raw == nil {
			return nil, stats, newError(KindClassificationService, "batch %d returned no result list", i)
		}

		answered := make(map[int]bool, len(batch))
		for _, msg := range raw {
			item, err := consolidator.decode(msg)
			if err != nil {
				stats.Dropped++
				log.Printf("analyze item dropped run=%s batch=%d err=%v", opts.RunID, i, err)
				continue
			}

			local := *item.ID
			src, ok := reconcileID(batch, local, size)
			var id int
			if ok {
				id = src.ID
			} else {
				id = fallbackID(i, local)
				stats.FallbackIDs++
				log.Printf("ABNORMAL analyze id reconciliation failed run=%s batch=%d local=%d fallback_id=%d", opts.RunID, i, local, id)
			}

			review, err := consolidator.merge(item, id, src)
			if err != nil {
				stats.Dropped++
				log.Printf("analyze item dropped run=%s batch=%d err=%v", opts.RunID, i, err)
				continue
			}
			if src != nil {
				answered[src.ID] = true
			}
			reviews = append(reviews, review)
		}
		stats.Unanswered += len(batch) - len(answered)

		if opts.Progress != nil {
			opts.Progress(i+1, len(batches))
		}
	}

	stats.Classified = len(reviews)
	log.Printf("analyze classify done run=%s items=%d classified=%d dropped=%d unanswered=%d fallback_ids=%d", opts.RunID, stats.Items, stats.Classified, stats.Dropped, stats.Unanswered, stats.FallbackIDs)
	return reviews, stats, nil
}
