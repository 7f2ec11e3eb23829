// internal/extractor/questions.go
package extractor

import (
	"regexp"
	"strings"

	"querydesk/internal/models"
)

// affirmations accept a question's suggested value as-is.
var affirmations = map[string]struct{}{
	"yes": {}, "y": {}, "yeah": {}, "yep": {}, "sure": {}, "ok": {},
	"okay": {}, "alright": {}, "please": {}, "yes please": {},
	"go ahead": {}, "proceed": {}, "continue": {},
}

var questionPrompts = map[string]string{
	"environment":   "Which environment is affected?",
	"affected_area": "Which area of the system is affected?",
	"priority":      "How urgent is this for you?",
	"summary":       "Can you give a one-line summary of the problem?",
	"prod_version":  "Which version are you running?",
}

var questionSuggestions = map[string]string{
	"environment":   "Production",
	"affected_area": "Application",
	"priority":      models.PriorityMedium,
}

// structuredAnswer matches replies like "Environment: Production" or
// "Area: Database / Version: 9.2".
var structuredAnswer = regexp.MustCompile(`(?i)\b(area|affected area|environment|env|version|priority|summary)\s*:\s*([^/\n]+)`)

// BuildQuestions turns missing fields into user-facing follow-up questions
// with suggested values where a sensible default exists.
func BuildQuestions(missing []string, analysis models.TicketAnalysis) []models.Question {
	questions := make([]models.Question, 0, len(missing))
	for _, field := range missing {
		prompt, ok := questionPrompts[field]
		if !ok {
			prompt = "Can you provide the " + strings.ReplaceAll(field, "_", " ") + "?"
		}

		suggested := questionSuggestions[field]
		if field == "environment" && analysis.Environment != "" {
			suggested = analysis.Environment
		}

		questions = append(questions, models.Question{
			Field:          field,
			Prompt:         prompt,
			SuggestedValue: suggested,
		})
	}
	return questions
}

// IsAffirmation reports whether the input simply accepts the suggestion.
func IsAffirmation(input string) bool {
	normalized := strings.ToLower(strings.TrimSpace(strings.Trim(strings.TrimSpace(input), ".!")))
	_, ok := affirmations[normalized]
	return ok
}

// ParseAnswer interprets a user's reply to a pending question. Structured
// "Field: value" replies may answer several fields at once; an affirmation
// accepts the suggested value; anything else is the literal answer to the
// current question.
func ParseAnswer(input string, current models.Question) map[string]string {
	answers := make(map[string]string)

	if matches := structuredAnswer.FindAllStringSubmatch(input, -1); len(matches) > 0 {
		for _, m := range matches {
			field := normalizeFieldName(m[1])
			value := strings.TrimSpace(m[2])
			if field != "" && value != "" {
				answers[field] = value
			}
		}
		if len(answers) > 0 {
			return answers
		}
	}

	if IsAffirmation(input) {
		if current.SuggestedValue != "" {
			answers[current.Field] = current.SuggestedValue
		}
		return answers
	}

	if value := strings.TrimSpace(input); value != "" {
		answers[current.Field] = value
	}
	return answers
}

func normalizeFieldName(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "area", "affected area":
		return "affected_area"
	case "environment", "env":
		return "environment"
	case "version":
		return "prod_version"
	case "priority":
		return "priority"
	case "summary":
		return "summary"
	}
	return ""
}

// MergeAnswers folds collected answers into an analysis. The completeness
// score never decreases: every newly answered field adds its increment, and
// the result is clamped to 1.0.
func MergeAnswers(analysis models.TicketAnalysis, collected map[string]string) models.TicketAnalysis {
	merged := analysis
	score := analysis.CompletenessScore

	for field, value := range collected {
		if value == "" {
			continue
		}
		switch field {
		case "environment":
			if merged.Environment == "" {
				score += 0.1
			}
			merged.Environment = value
		case "affected_area":
			if merged.AffectedArea == "" || merged.AffectedArea == defaultArea {
				score += 0.2
			}
			merged.AffectedArea = value
		case "priority":
			merged.Priority = value
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < analysis.CompletenessScore {
		score = analysis.CompletenessScore
	}
	merged.CompletenessScore = score

	var stillMissing []string
	for _, field := range analysis.MissingInfo {
		if _, answered := collected[field]; !answered {
			stillMissing = append(stillMissing, field)
		}
	}
	merged.MissingInfo = stillMissing
	merged.SuggestedQuestions = BuildQuestions(stillMissing, merged)

	return merged
}
