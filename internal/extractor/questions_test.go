// internal/extractor/questions_test.go
package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querydesk/internal/models"
)

func TestIsAffirmation(t *testing.T) {
	for _, input := range []string{"yes", "Yes", " YES ", "y", "yeah", "sure", "ok", "okay", "yes please", "go ahead", "proceed", "Sure!"} {
		assert.True(t, IsAffirmation(input), "input: %q", input)
	}
	for _, input := range []string{"no", "maybe", "production", "yes and also the vpn is broken"} {
		assert.False(t, IsAffirmation(input), "input: %q", input)
	}
}

func TestParseAnswerAffirmationTakesSuggestedValue(t *testing.T) {
	current := models.Question{Field: "environment", Prompt: "Which environment?", SuggestedValue: "Production"}

	answers := ParseAnswer("yes", current)
	assert.Equal(t, map[string]string{"environment": "Production"}, answers)
}

func TestParseAnswerAffirmationWithoutSuggestionCollectsNothing(t *testing.T) {
	current := models.Question{Field: "summary", Prompt: "One-line summary?"}

	answers := ParseAnswer("ok", current)
	assert.Empty(t, answers)
}

func TestParseAnswerLiteralValue(t *testing.T) {
	current := models.Question{Field: "affected_area", Prompt: "Which area?"}

	answers := ParseAnswer("the billing module", current)
	assert.Equal(t, map[string]string{"affected_area": "the billing module"}, answers)
}

func TestParseAnswerStructuredReply(t *testing.T) {
	current := models.Question{Field: "environment", Prompt: "Which environment?"}

	answers := ParseAnswer("Area: Database / Version: 9.2 / Environment: Staging", current)
	assert.Equal(t, map[string]string{
		"affected_area": "Database",
		"prod_version":  "9.2",
		"environment":   "Staging",
	}, answers)
}

func TestParseAnswerStructuredSingleField(t *testing.T) {
	current := models.Question{Field: "environment", Prompt: "Which environment?"}

	answers := ParseAnswer("env: production", current)
	assert.Equal(t, map[string]string{"environment": "production"}, answers)
}

func TestBuildQuestionsPromptsAndSuggestions(t *testing.T) {
	questions := BuildQuestions([]string{"environment", "affected_area", "widget_count"}, models.TicketAnalysis{})
	require.Len(t, questions, 3)

	assert.Equal(t, "environment", questions[0].Field)
	assert.Equal(t, "Production", questions[0].SuggestedValue)
	assert.Equal(t, "affected_area", questions[1].Field)
	assert.Equal(t, "Application", questions[1].SuggestedValue)
	// Unknown fields still get a generic prompt.
	assert.Equal(t, "Can you provide the widget count?", questions[2].Prompt)
}

func TestMergeAnswersScoreMonotonic(t *testing.T) {
	analysis := models.TicketAnalysis{
		Category:          "INFRA",
		Priority:          models.PriorityMedium,
		AffectedArea:      "General",
		CompletenessScore: 0.4,
		MissingInfo:       []string{"environment", "affected_area"},
	}

	merged := MergeAnswers(analysis, map[string]string{"environment": "Production"})
	assert.Equal(t, "Production", merged.Environment)
	assert.Greater(t, merged.CompletenessScore, analysis.CompletenessScore)
	assert.Equal(t, []string{"affected_area"}, merged.MissingInfo)

	final := MergeAnswers(merged, map[string]string{"affected_area": "Database"})
	assert.Equal(t, "Database", final.AffectedArea)
	assert.GreaterOrEqual(t, final.CompletenessScore, merged.CompletenessScore)
	assert.Empty(t, final.MissingInfo)
	assert.Empty(t, final.SuggestedQuestions)
}

func TestMergeAnswersClampsToOne(t *testing.T) {
	analysis := models.TicketAnalysis{CompletenessScore: 0.95, AffectedArea: "General"}

	merged := MergeAnswers(analysis, map[string]string{
		"environment":   "Production",
		"affected_area": "Database",
	})
	assert.LessOrEqual(t, merged.CompletenessScore, 1.0)
	assert.GreaterOrEqual(t, merged.CompletenessScore, analysis.CompletenessScore)
}

func TestMergeAnswersEmptyValuesIgnored(t *testing.T) {
	analysis := models.TicketAnalysis{Environment: "Staging", CompletenessScore: 0.6}

	merged := MergeAnswers(analysis, map[string]string{"environment": ""})
	assert.Equal(t, "Staging", merged.Environment)
	assert.Equal(t, analysis.CompletenessScore, merged.CompletenessScore)
}
