package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"reviewpulse/internal/domain"
	"reviewpulse/internal/insights"
)

func fixedNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func TestParseCSVMapsHeadersAndSkipsUnusableRows(t *testing.T) {
	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fixedNow(t, stamp)
	sheet := "\ufeffGuest Name, Date ,Review Text,Extra\n" +
		"Ana,15/03/2025,Lovely pool,x\n" +
		"Ben,Week 12,\"Slow check-in, rude staff\",\n" +
		"Cy,16/03/2025,   ,\n" +
		"Dee,someday,Bad date,\n" +
		"Eve,,No date given\n" +
		"\n" +
		"Fay,45000,Serial date,\n"

	items, err := ParseCSV(strings.NewReader(sheet), Options{})
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	want := []domain.RawFeedbackItem{
		{ID: 0, Text: "Lovely pool", GuestName: "Ana", Date: domain.DateAt(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))},
		{ID: 1, Text: "Slow check-in, rude staff", GuestName: "Ben", Date: domain.WeekLabelDate("Week 12")},
		{ID: 2, Text: "No date given", GuestName: "Eve", Date: domain.DateAt(stamp)},
		{ID: 3, Text: "Serial date", GuestName: "Fay", Date: domain.DateAt(excelEpoch.AddDate(0, 0, 45000))},
	}
	if !reflect.DeepEqual(items, want) {
		t.Fatalf("ParseCSV mismatch\ngot  %+v\nwant %+v", items, want)
	}
}

func TestParseCSVHeaderAliasesAndErrors(t *testing.T) {
	items, err := ParseCSV(strings.NewReader("review,guest\nfine,Zed\n"), Options{})
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(items) != 1 || items[0].GuestName != "Zed" || items[0].Date == nil {
		t.Fatalf("unexpected items %+v", items)
	}

	if _, err := ParseCSV(strings.NewReader("comment,date\nhello,2025-01-01\n"), Options{}); !errors.Is(err, ErrMissingReviewColumn) {
		t.Fatalf("missing column err = %v", err)
	}
	if _, err := ParseCSV(strings.NewReader(""), Options{}); !errors.Is(err, ErrNoItems) {
		t.Fatalf("empty input err = %v", err)
	}
	if _, err := ParseCSV(strings.NewReader("review\n \n"), Options{}); !errors.Is(err, ErrNoItems) {
		t.Fatalf("blank rows err = %v", err)
	}
}

func TestParseCSVUsesLocationForZonelessDates(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	items, err := ParseCSV(strings.NewReader("review,date\nok,2025-03-15\n"), Options{Location: loc})
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if want := time.Date(2025, 3, 14, 22, 0, 0, 0, time.UTC); !items[0].Date.Time.Equal(want) {
		t.Fatalf("date = %v, want %v", items[0].Date.Time, want)
	}
}

func TestParsedMondayStaysInItsLocalWeek(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	items, err := ParseCSV(strings.NewReader("review,date\nok,2025-03-10\n"), Options{Location: loc})
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	reviews := []domain.ClassifiedReview{{ID: items[0].ID, Text: items[0].Text, Rating: 4, Sentiment: domain.SentimentGood, Date: items[0].Date}}
	if got := insights.SentimentTrend(reviews, loc); len(got) != 1 || got[0].WeekLabel != "Week 11" {
		t.Fatalf("trend = %+v, want Week 11 for Monday 2025-03-10", got)
	}
}

func TestParseSurveyJoinsAnswersInOrder(t *testing.T) {
	doc := `[
		{"id": "a", "surveyResponses": {"How would you rate your stay?": "4", "What did you like?": "The pool", "Anything else?": "", "Room number": 12}, "createTime": "2025-03-10T09:00:00Z"},
		{"id": "b", "surveyResponses": {"Rate us": 5}, "createTime": "not a date"},
		{"id": "c", "surveyResponses": {"Comments": "   "}, "createTime": "2025-03-11"},
		{"id": "d", "surveyResponses": {"Comments": "Noisy", "Rate the noise": "very"}, "createTime": "2025-03-12"},
		{"id": "e", "createTime": "2025-03-13"}
	]`
	items, err := ParseSurvey(strings.NewReader(doc), Options{})
	if err != nil {
		t.Fatalf("ParseSurvey: %v", err)
	}
	four, five := 4.0, 5.0
	want := []domain.RawFeedbackItem{
		{ID: 0, Text: "The pool. 12", Rating: &four, Date: domain.DateAt(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))},
		{ID: 1, Text: "", Rating: &five},
		{ID: 2, Text: "Noisy. very", Date: domain.DateAt(time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC))},
	}
	if !reflect.DeepEqual(items, want) {
		t.Fatalf("ParseSurvey mismatch\ngot  %+v\nwant %+v", items, want)
	}
}

func TestParseSurveyRejectsNonArrays(t *testing.T) {
	if _, err := ParseSurvey(strings.NewReader(`{"id": 1}`), Options{}); err == nil {
		t.Fatal("expected error for object input")
	}
	if _, err := ParseSurvey(strings.NewReader(`[]`), Options{}); !errors.Is(err, ErrNoItems) {
		t.Fatalf("empty array err = %v", err)
	}
}

func TestSQLiteInsertAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.db")
	db, err := OpenReviewDB(path)
	if err != nil {
		t.Fatalf("OpenReviewDB: %v", err)
	}
	rating := 2.5
	in := []domain.RawFeedbackItem{
		{Text: "Breakfast was cold", Date: domain.DateAt(time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)), Rating: &rating, GuestName: "Ana"},
		{Text: "   "},
		{Text: "Great spa", Date: domain.WeekLabelDate("Week 11")},
	}
	n, err := InsertReviews(db, in)
	if err != nil || n != 3 {
		t.Fatalf("InsertReviews = %d, %v", n, err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	items, err := LoadFile(context.Background(), path, "", Options{})
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	want := []domain.RawFeedbackItem{
		{ID: 0, Text: "Breakfast was cold", Date: in[0].Date, Rating: &rating, GuestName: "Ana"},
		{ID: 1, Text: "Great spa", Date: domain.WeekLabelDate("Week 11")},
	}
	if !reflect.DeepEqual(items, want) {
		t.Fatalf("ReadSQLite mismatch\ngot  %+v\nwant %+v", items, want)
	}
}

func TestLoadFileDetectsFormat(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "reviews.CSV")
	if err := os.WriteFile(csvPath, []byte("review text\nClean rooms\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	items, err := LoadFile(context.Background(), csvPath, "", Options{})
	if err != nil || len(items) != 1 {
		t.Fatalf("LoadFile csv = %+v, %v", items, err)
	}

	surveyPath := filepath.Join(dir, "survey.json")
	if err := os.WriteFile(surveyPath, []byte(`[{"surveyResponses": {"Comments": "Nice"}, "createTime": "2025-01-01"}]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	items, err = LoadFile(context.Background(), surveyPath, "", Options{})
	if err != nil || len(items) != 1 || items[0].Text != "Nice" {
		t.Fatalf("LoadFile survey = %+v, %v", items, err)
	}

	if _, err := LoadFile(context.Background(), filepath.Join(dir, "reviews.xlsx"), "", Options{}); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("xlsx err = %v", err)
	}
	if _, err := LoadFile(context.Background(), csvPath, "xml", Options{}); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("explicit unknown format err = %v", err)
	}
}
