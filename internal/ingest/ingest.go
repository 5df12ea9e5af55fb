package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"reviewpulse/internal/domain"
)

var (
	ErrNoItems             = errors.New("no processable feedback items found")
	ErrMissingReviewColumn = errors.New("could not find a 'review text' or 'review' column")
	ErrUnknownFormat       = errors.New("unknown input format")
)

type Format string

const (
	FormatCSV    Format = "csv"
	FormatSurvey Format = "survey"
	FormatSQLite Format = "sqlite"
)

// Options control how ambiguous source values are interpreted.
type Options struct {
	// Location applies to dates written without a zone. Nil means UTC.
	Location *time.Location
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// now stamps rows whose date cell is empty.
var now = time.Now

// DetectFormat guesses the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return FormatCSV, nil
	case ".json":
		return FormatSurvey, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// LoadFile reads path in the given format. An empty format is detected from
// the extension.
func LoadFile(ctx context.Context, path string, format Format, opts Options) ([]domain.RawFeedbackItem, error) {
	if format == "" {
		detected, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	var items []domain.RawFeedbackItem
	var err error
	switch format {
	case FormatSQLite:
		items, err = ReadSQLite(ctx, path, opts)
	case FormatCSV, FormatSurvey:
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("opening %s: %w", path, openErr)
		}
		defer f.Close()
		if format == FormatCSV {
			items, err = ParseCSV(f, opts)
		} else {
			items, err = ParseSurvey(f, opts)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}
	log.Printf("ingest loaded path=%s format=%s items=%d", path, format, len(items))
	return items, nil
}

// renumber gives items contiguous positional ids so every classification batch
// holds ids that are distinct modulo the batch size.
func renumber(items []domain.RawFeedbackItem) []domain.RawFeedbackItem {
	for i := range items {
		items[i].ID = i
	}
	return items
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02/01/06",
	"01/02/2006",
	"01/02/06",
	"2006-01-02",
}

// excelEpoch is day zero of spreadsheet serial dates.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// parseDate accepts week labels, the common sheet date layouts (day first
// wins when ambiguous) and spreadsheet serial numbers.
func parseDate(s string, loc *time.Location) (*domain.ReviewDate, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if domain.IsWeekLabel(s) {
		return domain.WeekLabelDate(s), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return domain.DateAt(t), true
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		days := time.Duration(serial * float64(24*time.Hour))
		return domain.DateAt(excelEpoch.Add(days)), true
	}
	return nil, false
}
