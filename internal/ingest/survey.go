package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"reviewpulse/internal/domain"
)

type surveyRecord struct {
	ID              json.RawMessage `json:"id"`
	SurveyResponses surveyResponses `json:"surveyResponses"`
	CreateTime      string          `json:"createTime"`
}

type surveyAnswer struct {
	Question string
	Answer   string
}

// surveyResponses keeps the answers in document order, since the answer
// text is joined in the order the questions were asked.
type surveyResponses []surveyAnswer

func (s *surveyResponses) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("surveyResponses must be an object")
	}
	var out surveyResponses
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return err
		}
		answer := surveyAnswer{Question: keyTok.(string)}
		switch v := value.(type) {
		case json.Number:
			answer.Answer = v.String()
		case string:
			answer.Answer = strings.TrimSpace(v)
		case bool:
			if v {
				answer.Answer = "true"
			}
		case nil:
		default:
			continue
		}
		out = append(out, answer)
	}
	*s = out
	return nil
}

// ParseSurvey reads a JSON array of survey exports. A numeric answer to a
// question mentioning "rate" becomes the rating; every other non-empty answer
// is joined into the text.
func ParseSurvey(r io.Reader, opts Options) ([]domain.RawFeedbackItem, error) {
	var records []surveyRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("invalid survey file, expected a JSON array: %w", err)
	}

	items := make([]domain.RawFeedbackItem, 0, len(records))
	for _, rec := range records {
		var rating *float64
		var parts []string
		for _, a := range rec.SurveyResponses {
			if a.Answer == "" {
				continue
			}
			if strings.Contains(strings.ToLower(a.Question), "rate") {
				if v, err := strconv.ParseFloat(a.Answer, 64); err == nil {
					rating = &v
					continue
				}
			}
			parts = append(parts, a.Answer)
		}
		if len(parts) == 0 && rating == nil {
			continue
		}
		item := domain.RawFeedbackItem{
			Text:   strings.Join(parts, ". "),
			Rating: rating,
		}
		if d, ok := parseDate(rec.CreateTime, opts.location()); ok {
			item.Date = d
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	return renumber(items), nil
}
