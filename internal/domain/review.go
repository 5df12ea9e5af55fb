package domain

import (
	"strings"
)

type Topic string

const (
	TopicRooms     Topic = "Rooms"
	TopicAmenities Topic = "Amenities"
	TopicDining    Topic = "Dining"
	TopicFrontDesk Topic = "Front Desk"
	TopicService   Topic = "Service"
	TopicOther     Topic = "Other"
)

// AllTopics is the canonical topic order used by every per-topic view.
var AllTopics = []Topic{TopicRooms, TopicAmenities, TopicDining, TopicFrontDesk, TopicService, TopicOther}

func (t Topic) Valid() bool {
	return t.Index() < len(AllTopics)
}

// Index returns the position of t in AllTopics, or len(AllTopics) for unknown topics.
func (t Topic) Index() int {
	for i, known := range AllTopics {
		if known == t {
			return i
		}
	}
	return len(AllTopics)
}

// ParseTopic accepts the canonical names case-insensitively and tolerates
// "FrontDesk" / "front_desk" spellings.
func ParseTopic(s string) (Topic, bool) {
	key := topicKey(s)
	for _, t := range AllTopics {
		if topicKey(string(t)) == key {
			return t, true
		}
	}
	return "", false
}

func ParseTopicOrOther(s string) Topic {
	if t, ok := ParseTopic(s); ok {
		return t
	}
	return TopicOther
}

func topicKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	return strings.ReplaceAll(s, "-", "")
}

type Sentiment string

const (
	SentimentBest  Sentiment = "BEST"
	SentimentGood  Sentiment = "GOOD"
	SentimentFare  Sentiment = "FARE"
	SentimentBad   Sentiment = "BAD"
	SentimentOther Sentiment = "Other"
)

var AllSentiments = []Sentiment{SentimentBest, SentimentGood, SentimentFare, SentimentBad, SentimentOther}

var sentimentRatings = map[Sentiment]float64{
	SentimentBest:  5,
	SentimentGood:  4,
	SentimentFare:  2.5,
	SentimentBad:   1,
	SentimentOther: 3,
}

// ParseSentiment is exact-match: the model is asked for the enum verbatim and
// anything else is a malformed item.
func ParseSentiment(s string) (Sentiment, bool) {
	for _, known := range AllSentiments {
		if string(known) == s {
			return known, true
		}
	}
	return "", false
}

func (s Sentiment) Valid() bool {
	_, ok := ParseSentiment(string(s))
	return ok
}

// Rating maps a sentiment to the numeric rating used when the source item
// carried no explicit rating.
func (s Sentiment) Rating() float64 {
	if r, ok := sentimentRatings[s]; ok {
		return r
	}
	return sentimentRatings[SentimentOther]
}

func (s Sentiment) IsPositive() bool {
	return s == SentimentBest || s == SentimentGood
}

func (s Sentiment) IsNegative() bool {
	return s == SentimentFare || s == SentimentBad
}

type RawFeedbackItem struct {
	ID        int
	Text      string
	Date      *ReviewDate
	Rating    *float64
	GuestName string
}

type ClassifiedReview struct {
	ID        int         `json:"id"`
	Text      string      `json:"text"`
	Rating    float64     `json:"rating"`
	Sentiment Sentiment   `json:"sentiment"`
	Topic     Topic       `json:"topic"`
	Date      *ReviewDate `json:"date,omitempty"`
	GuestName string      `json:"guestName,omitempty"`
}

func ReviewTexts(reviews []ClassifiedReview) []string {
	out := make([]string, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, r.Text)
	}
	return out
}

func FindReview(reviews []ClassifiedReview, id int) (ClassifiedReview, bool) {
	for _, r := range reviews {
		if r.ID == id {
			return r, true
		}
	}
	return ClassifiedReview{}, false
}
