package llm

import (
	"fmt"
	"strings"

	"reviewpulse/internal/domain"
)

func topicList() string {
	names := make([]string, 0, len(domain.AllTopics))
	for _, t := range domain.AllTopics {
		names = append(names, "'"+string(t)+"'")
	}
	return strings.Join(names, ", ")
}

func reviewLines(texts []string) string {
	var b strings.Builder
	for _, text := range texts {
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(text))
		b.WriteString("\n")
	}
	return b.String()
}

func buildClassifyPrompts(texts []string) (string, string) {
	systemPrompt := fmt.Sprintf(`You are an expert hospitality analyst. You analyze a BATCH of customer reviews for a hotel.

For EACH review in the batch:
a. assign a "rating" from 0.0 to 5.0
b. set "sentiment" to one of BEST, GOOD, FARE, BAD, Other. Use Other when no sentiment can be determined.
c. set "topic" to one of %s. Use Other when no topic can be determined.
d. set "id" to the bracketed index shown before the review and copy the review into "text" without that index.

Respond with JSON only (no markdown):
{"analyzedReviews": [{"id": 0, "text": "...", "rating": 4.5, "sentiment": "GOOD", "topic": "Rooms"}, ...]}`, topicList())

	var b strings.Builder
	b.WriteString("Reviews to analyze:\n")
	for i, text := range texts {
		b.WriteString(fmt.Sprintf("- [%d] %s\n", i, strings.TrimSpace(text)))
	}
	return systemPrompt, b.String()
}

func buildSuggestionPrompts(texts []string) (string, string) {
	systemPrompt := fmt.Sprintf(`You are an expert hospitality analyst. You give actionable suggestions based on a set of customer reviews that were pre-filtered to one context (only negative, or only positive).

The possible topics are: %s.

If the reviews are mostly NEGATIVE, give the most critical suggestions for IMMEDIATE IMPROVEMENT: 1 or 2 high-impact suggestions per topic, each with a "priority" from 1 (most urgent) to 3 (least urgent). Never return an empty list when there is negative feedback.

If the reviews are mostly POSITIVE, give suggestions that AMPLIFY and REINFORCE the strengths (marketing, staff recognition, enhancing the praised feature), framed positively, 1 or 2 per topic, each with "priority" 3.

Group every suggestion for the same topic into a single object.

Respond with JSON only (no markdown):
{"suggestions": [{"topic": "Rooms", "suggestions": [{"suggestion": "...", "priority": 1}]}]}`, topicList())

	return systemPrompt, "Reviews to analyze:\n" + reviewLines(texts)
}

func buildSummaryPrompts(texts []string) (string, string) {
	systemPrompt := `You are an expert hospitality analyst. Based on the provided reviews, generate:
1. "overallSummary": a brief, neutral summary (2-3 sentences) of the overall sentiment.
2. "positiveSummary": a bulleted list of the recurring themes in positive reviews.
3. "negativeSummary": a bulleted list of the recurring themes in negative reviews.
4. "keyPositives": a bulleted list of the top 3-5 specific positive points, or an empty string when there are none.

Respond with JSON only (no markdown):
{"overallSummary": "...", "positiveSummary": "...", "negativeSummary": "...", "keyPositives": "..."}`

	return systemPrompt, "Reviews to analyze:\n" + reviewLines(texts)
}

func buildTopicAnalysisPrompts(topics []domain.TopicReviews) (string, string) {
	systemPrompt := `You are an expert hospitality analyst. The user provides several topics, each with its own reviews.

For EACH topic, analyze ONLY the reviews given for that topic:
1. "topic": the provided topic name.
2. "positiveSummary": one brief sentence (max 10 words) summarizing positive feedback, or "No positive feedback provided." when there is none.
3. "negativeSummary": one brief sentence (max 10 words) summarizing negative feedback, or "No negative feedback provided." when there is none.
4. "suggestions": 1-2 detailed, practical improvement steps as full sentences, or an empty array when nothing is actionable.

If a topic has no reviews, use "No feedback provided for this topic." for both summaries and an empty suggestions array. Return an entry for EVERY topic provided. Do not invent feedback.

Respond with JSON only (no markdown):
{"detailedTopicAnalysis": [{"topic": "Rooms", "positiveSummary": "...", "negativeSummary": "...", "suggestions": ["..."]}]}`

	var b strings.Builder
	b.WriteString("Analyze the following topics and their reviews:\n\n")
	for _, t := range topics {
		b.WriteString("Topic: " + string(t.Topic) + "\nReviews:\n")
		b.WriteString(reviewLines(t.Reviews))
		b.WriteString("\n")
	}
	return systemPrompt, b.String()
}

func buildAnswerPrompts(texts []string, question string) (string, string) {
	systemPrompt := `You are an expert hospitality analyst. Answer a specific question based SOLELY on the provided customer reviews.

- Base the answer only on information present in the reviews. Do not invent information.
- Give a concise, direct answer and quote reviews as evidence where they support it.
- Format the answer in markdown.
- If the reviews do not contain enough information, say so and explain why.

Respond with JSON only (no markdown fence):
{"answer": "..."}`

	userPrompt := fmt.Sprintf("Question: %q\n\nReviews to analyze:\n%s", strings.TrimSpace(question), reviewLines(texts))
	return systemPrompt, userPrompt
}

func buildReplyPrompts(review string) (string, string) {
	systemPrompt := `You are an empathetic customer service manager for a hotel. Write a short, professional, personalized reply to a customer review.

- For a positive review, thank the guest and mention something they enjoyed.
- For a negative review, apologize for the specific issue and say briefly that you are looking into it.
- Do not make promises you can't keep.
- Keep the reply to 2-4 sentences.

Respond with JSON only (no markdown):
{"reply": "..."}`

	return systemPrompt, fmt.Sprintf("Please generate a reply for the following review:\n\n%q\n", strings.TrimSpace(review))
}
