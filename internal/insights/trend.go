package insights

import (
	"math"
	"sort"
	"time"

	"reviewpulse/internal/domain"
)

type Direction string

const (
	Improving Direction = "improving"
	Declining Direction = "declining"
	Flat      Direction = "flat"
)

// WeekOverWeek compares the last two trend points.
type WeekOverWeek struct {
	HasComparison bool      `json:"hasComparison"`
	Previous      float64   `json:"previous"`
	Last          float64   `json:"last"`
	ChangePercent float64   `json:"changePercent"`
	Direction     Direction `json:"direction"`
}

// SentimentTrend averages ratings per Monday-aligned week, with weeks taken
// in loc (UTC when nil). Reviews that already carry a week label keep it.
// Undated and zero-rated reviews are skipped. Points are ordered by week
// number, not input order.
func SentimentTrend(reviews []domain.ClassifiedReview, loc *time.Location) []domain.SentimentTrendPoint {
	if loc == nil {
		loc = time.UTC
	}
	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[string]*bucket)
	for _, r := range reviews {
		if r.Date == nil || r.Rating == 0 {
			continue
		}
		label := r.Date.Week
		if !r.Date.IsWeekLabel() {
			label = domain.WeekLabel(r.Date.Time.In(loc))
		}
		b := buckets[label]
		if b == nil {
			b = &bucket{}
			buckets[label] = b
		}
		b.sum += r.Rating
		b.count++
	}

	points := make([]domain.SentimentTrendPoint, 0, len(buckets))
	for label, b := range buckets {
		points = append(points, domain.SentimentTrendPoint{
			WeekLabel: label,
			AvgRating: round(b.sum/float64(b.count), 2),
		})
	}
	SortTrend(points)
	return points
}

// SortTrend orders points strictly by week number. Labels without a number
// sort after numbered ones, alphabetically.
func SortTrend(points []domain.SentimentTrendPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		ni, okI := domain.WeekNumber(points[i].WeekLabel)
		nj, okJ := domain.WeekNumber(points[j].WeekLabel)
		switch {
		case okI && okJ:
			return ni < nj
		case okI != okJ:
			return okI
		default:
			return points[i].WeekLabel < points[j].WeekLabel
		}
	})
}

// CompareLastWeeks uses strict comparison; a zero previous average yields a
// zero percentage.
func CompareLastWeeks(points []domain.SentimentTrendPoint) WeekOverWeek {
	if len(points) < 2 {
		return WeekOverWeek{Direction: Flat}
	}
	prev := points[len(points)-2].AvgRating
	last := points[len(points)-1].AvgRating
	w := WeekOverWeek{HasComparison: true, Previous: prev, Last: last, Direction: Flat}
	if prev != 0 {
		w.ChangePercent = round((last-prev)/prev*100, 1)
	}
	switch {
	case last > prev:
		w.Direction = Improving
	case last < prev:
		w.Direction = Declining
	}
	return w
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
