package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"reviewpulse/internal/domain"
)

var (
	reviewHeaders = []string{"review text", "review"}
	dateHeaders   = []string{"date"}
	guestHeaders  = []string{"guest name", "guest", "name"}
)

func headerIndex(headers []string, names []string) int {
	for _, name := range names {
		for i, h := range headers {
			if h == name {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// ParseCSV reads a review sheet exported as CSV. Rows without review text or
// with an unreadable date are skipped; a missing date stamps the row with the
// current time.
func ParseCSV(r io.Reader, opts Options) ([]domain.RawFeedbackItem, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoItems
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	reviewIdx := headerIndex(headers, reviewHeaders)
	if reviewIdx < 0 {
		return nil, ErrMissingReviewColumn
	}
	dateIdx := headerIndex(headers, dateHeaders)
	guestIdx := headerIndex(headers, guestHeaders)

	var items []domain.RawFeedbackItem
	skipped := 0
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv line %d: %w", line, err)
		}
		text := cell(row, reviewIdx)
		if text == "" {
			skipped++
			continue
		}
		date := domain.DateAt(now().In(opts.location()))
		if raw := cell(row, dateIdx); raw != "" {
			parsed, ok := parseDate(raw, opts.location())
			if !ok {
				skipped++
				log.Printf("ingest csv skipped row line=%d reason=unreadable-date value=%q", line, raw)
				continue
			}
			date = parsed
		}
		items = append(items, domain.RawFeedbackItem{
			Text:      text,
			Date:      date,
			GuestName: cell(row, guestIdx),
		})
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	if skipped > 0 {
		log.Printf("ingest csv rows=%d skipped=%d", len(items), skipped)
	}
	return renumber(items), nil
}
