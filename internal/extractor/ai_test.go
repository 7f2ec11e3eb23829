// internal/extractor/ai_test.go
package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querydesk/internal/models"
)

type fakeTextGen struct {
	text string
	err  error
}

func (f *fakeTextGen) Complete(_ context.Context, _ string) (string, error) {
	return f.text, f.err
}

func TestAIExtractorRefinesRuleAnalysis(t *testing.T) {
	rules := NewRuleBasedExtractor(testConfig(t), nil)
	ai := NewAIExtractor(&fakeTextGen{
		text: `Here you go: {"category":"INFRA","priority":"High","affected_area":"Database","environment":"Staging","confidence":0.9}`,
	}, rules, nil)

	analysis, err := ai.Analyze(context.Background(), "the server acts strange", acme(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, analysis.Priority)
	assert.Equal(t, "Database", analysis.AffectedArea)
	assert.Equal(t, "Staging", analysis.Environment)
	// Completeness stays rule-derived.
	assert.InDelta(t, 0.6, analysis.CompletenessScore, 1e-9)
}

func TestAIExtractorFallsBackOnServiceError(t *testing.T) {
	rules := NewRuleBasedExtractor(testConfig(t), nil)
	ai := NewAIExtractor(&fakeTextGen{err: errors.New("service unavailable")}, rules, nil)

	analysis, err := ai.Analyze(context.Background(), "our production database is down", acme(), nil)
	require.NoError(t, err)

	expected, err := rules.Analyze(context.Background(), "our production database is down", acme(), nil)
	require.NoError(t, err)
	assert.Equal(t, expected, analysis)
}

func TestAIExtractorFallsBackOnGarbageOutput(t *testing.T) {
	rules := NewRuleBasedExtractor(testConfig(t), nil)
	ai := NewAIExtractor(&fakeTextGen{text: "sorry, I cannot help with that"}, rules, nil)

	analysis, err := ai.Analyze(context.Background(), "our production database is down", acme(), nil)
	require.NoError(t, err)

	expected, err := rules.Analyze(context.Background(), "our production database is down", acme(), nil)
	require.NoError(t, err)
	assert.Equal(t, expected, analysis)
}

func TestAIExtractorRejectsInvalidPriority(t *testing.T) {
	rules := NewRuleBasedExtractor(testConfig(t), nil)
	ai := NewAIExtractor(&fakeTextGen{
		text: `{"priority":"SUPER_URGENT"}`,
	}, rules, nil)

	analysis, err := ai.Analyze(context.Background(), "found a bug in the export", acme(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityMedium, analysis.Priority)
}
