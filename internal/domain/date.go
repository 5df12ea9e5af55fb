package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReviewDate is either a calendar instant or a pre-aggregated week label
// such as "Week 12". Exactly one of Time and Week is set.
type ReviewDate struct {
	Time time.Time
	Week string
}

// DateAt normalizes t to UTC so that persisted snapshots round-trip exactly.
func DateAt(t time.Time) *ReviewDate {
	return &ReviewDate{Time: t.UTC()}
}

func WeekLabelDate(label string) *ReviewDate {
	return &ReviewDate{Week: strings.TrimSpace(label)}
}

func (d ReviewDate) IsWeekLabel() bool {
	return d.Week != ""
}

func IsWeekLabel(s string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "week")
}

func (d ReviewDate) String() string {
	if d.IsWeekLabel() {
		return d.Week
	}
	return d.Time.UTC().Format(time.RFC3339Nano)
}

func (d ReviewDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *ReviewDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("review date must be a string: %w", err)
	}
	parsed, err := ParseReviewDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func ParseReviewDate(s string) (ReviewDate, error) {
	return ParseReviewDateIn(s, time.UTC)
}

// ParseReviewDateIn reads dates without an explicit offset as wall time in loc.
func ParseReviewDateIn(s string, loc *time.Location) (ReviewDate, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if IsWeekLabel(s) {
		return ReviewDate{Week: s}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ReviewDate{Time: t.UTC()}, nil
		}
	}
	return ReviewDate{}, fmt.Errorf("unrecognized review date %q", s)
}

// WeekStart returns Monday 00:00 of the calendar week containing t, in t's location.
func WeekStart(t time.Time) time.Time {
	weekday := t.Weekday()
	if weekday == time.Sunday {
		weekday = 7
	}
	daysFromMonday := int(weekday) - int(time.Monday)
	return time.Date(t.Year(), t.Month(), t.Day()-daysFromMonday, 0, 0, 0, 0, t.Location())
}

// WeekLabel labels the Monday-aligned week containing t by its ISO week number.
func WeekLabel(t time.Time) string {
	_, week := WeekStart(t).ISOWeek()
	return fmt.Sprintf("Week %d", week)
}

// WeekNumber extracts N from a "Week N" label.
func WeekNumber(label string) (int, bool) {
	fields := strings.Fields(label)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "week") {
		return 0, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
