package slackbot

import (
	"fmt"
	"strings"

	"reviewpulse/internal/domain"
	"reviewpulse/internal/insights"
)

const maxListedReviews = 5

// FormatKPIHeadline is the short KPI summary shared by /pulse kpi and the
// scheduled digest.
func FormatKPIHeadline(k insights.KPIs) string {
	lines := []string{
		fmt.Sprintf("*Review KPIs* (%d reviews)", k.Total),
		fmt.Sprintf("• Satisfaction: *%d%%* (%d positive, %d negative)", k.SatisfactionRate, k.PositiveCount, k.NegativeCount),
		fmt.Sprintf(">%s", k.SatisfactionInsight),
		fmt.Sprintf("• Top critical issue: *%s* (%d areas need attention)", insights.TopicName(k.TopCriticalIssue), k.AreasNeedingAttention),
		fmt.Sprintf(">%s", k.CriticalInsight),
		fmt.Sprintf("• Top praise area: *%s* (%d praise areas)", insights.TopicName(k.TopPraiseArea), k.PraiseAreas),
		fmt.Sprintf(">%s", k.PraiseInsight),
	}
	return strings.Join(lines, "\n")
}

func formatPerformance(best, worst *domain.DetailedTopicAnalysis) string {
	name := func(d *domain.DetailedTopicAnalysis, count func(*domain.DetailedTopicAnalysis) int) string {
		if d == nil {
			return "None"
		}
		return fmt.Sprintf("%s (%d)", d.Topic, count(d))
	}
	return fmt.Sprintf("• Best performing: *%s*   • Needs work: *%s*",
		name(best, func(d *domain.DetailedTopicAnalysis) int { return d.Positive }),
		name(worst, func(d *domain.DetailedTopicAnalysis) int { return d.Negative }))
}

func formatTrend(points []domain.SentimentTrendPoint, wow insights.WeekOverWeek) string {
	if len(points) == 0 {
		return "No dated reviews to chart yet."
	}
	lines := []string{"*Weekly sentiment*"}
	for _, p := range points {
		lines = append(lines, fmt.Sprintf("`%-8s` %s %.2f", p.WeekLabel, ratingBar(p.AvgRating), p.AvgRating))
	}
	if wow.HasComparison {
		lines = append(lines, fmt.Sprintf("Last week %.2f vs %.2f before: %+.1f%% (%s)", wow.Last, wow.Previous, wow.ChangePercent, wow.Direction))
	}
	return strings.Join(lines, "\n")
}

func ratingBar(avg float64) string {
	n := int(avg + 0.5)
	if n < 0 {
		n = 0
	}
	if n > 5 {
		n = 5
	}
	return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
}

func formatSuggestions(category domain.KpiCategory, groups []domain.GroupedTopicSuggestion, reviews []domain.ClassifiedReview) string {
	title := "Critical issues"
	if category == domain.KpiPraise {
		title = "Praise areas"
	}
	lines := []string{fmt.Sprintf("*%s: suggestions*", title)}
	if len(groups) == 0 {
		lines = append(lines, "No matching reviews, nothing to suggest.")
	}
	for _, g := range groups {
		lines = append(lines, fmt.Sprintf("*%s*", g.Topic))
		if len(g.Suggestions) == 0 {
			lines = append(lines, "• _no suggestions returned_")
		}
		for _, s := range g.Suggestions {
			lines = append(lines, fmt.Sprintf("• [P%d] %s", s.Priority, s.Suggestion))
		}
	}
	if len(reviews) > 0 {
		lines = append(lines, "", "*Recent reviews*")
		for i, r := range reviews {
			if i == maxListedReviews {
				lines = append(lines, fmt.Sprintf("_...and %d more_", len(reviews)-maxListedReviews))
				break
			}
			lines = append(lines, fmt.Sprintf(">#%d %s: %s", r.ID, r.Topic, truncate(r.Text, 200)))
		}
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func helpText() string {
	return strings.Join([]string{
		"*ReviewPulse Commands*",
		"",
		"`/pulse kpi` Show satisfaction, top issue and top praise.",
		"`/pulse trend` Show the weekly sentiment trend.",
		"`/pulse critical` Suggestions and recent reviews for negative feedback.",
		"`/pulse praise` Suggestions and recent reviews for positive feedback.",
		"`/pulse ask <question>` Ask a question about the loaded reviews.",
		"`/pulse load` Reload the saved analysis snapshot.",
		"`/pulse help` Show this help.",
	}, "\n")
}
