package analyze

import (
	"encoding/json"
	"strings"

	"reviewpulse/internal/domain"
	"reviewpulse/internal/validate"
)

// classifiedItem is the per-item shape the classifier promises. Pointers
// distinguish a missing field from a zero value. The model's rating is never
// read, so it may be absent but must be in range when given.
type classifiedItem struct {
	ID        *int     `json:"id" validate:"required"`
	Text      string   `json:"text"`
	Rating    *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
	Sentiment string   `json:"sentiment" validate:"required,sentiment"`
	Topic     string   `json:"topic"`
}

type consolidator struct {
	validate *validate.CustomValidator
	seen     map[int]bool
}

func newConsolidator() *consolidator {
	return &consolidator{validate: validate.New(), seen: make(map[int]bool)}
}

func (c *consolidator) decode(msg json.RawMessage) (classifiedItem, error) {
	var item classifiedItem
	if err := json.Unmarshal(msg, &item); err != nil {
		return classifiedItem{}, &Error{Kind: KindItemValidation, Err: err}
	}
	if err := c.validate.Validate(item); err != nil {
		return classifiedItem{}, &Error{Kind: KindItemValidation, Err: err}
	}
	return item, nil
}

// merge builds the canonical review for item under its reconciled id. The
// source item, when known, supplies the text, date, guest and any explicit
// rating; otherwise the rating comes from the sentiment table.
func (c *consolidator) merge(item classifiedItem, id int, src *domain.RawFeedbackItem) (domain.ClassifiedReview, error) {
	topic := domain.TopicOther
	if strings.TrimSpace(item.Topic) != "" {
		parsed, ok := domain.ParseTopic(item.Topic)
		if !ok {
			return domain.ClassifiedReview{}, newError(KindItemValidation, "item %d has unknown topic %q", id, item.Topic)
		}
		topic = parsed
	}
	if c.seen[id] {
		return domain.ClassifiedReview{}, newError(KindItemValidation, "item %d classified more than once", id)
	}

	sentiment := domain.Sentiment(item.Sentiment)
	review := domain.ClassifiedReview{
		ID:        id,
		Text:      strings.TrimSpace(item.Text),
		Rating:    sentiment.Rating(),
		Sentiment: sentiment,
		Topic:     topic,
	}
	if src != nil {
		review.Text = src.Text
		review.Date = src.Date
		review.GuestName = src.GuestName
		if src.Rating != nil {
			review.Rating = *src.Rating
		}
	}
	c.seen[id] = true
	return review, nil
}
