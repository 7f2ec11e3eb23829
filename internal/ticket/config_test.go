// internal/ticket/config_test.go
package ticket

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCategoryJSON = `{
	"default_category": "OPS",
	"grouping_categories": {"LS": "PRODLS", "HT": "PRODHT"},
	"categories": {
		"INFRA": {
			"keywords": ["server", "database", "network", "outage"],
			"required_fields": ["environment", "affected_area"],
			"populated_fields": {"summary": "derive_from_description", "customer": "derive_from_organization"},
			"auto_create_threshold": 0.7,
			"ask_environment": true
		},
		"OPS": {
			"keywords": ["process", "workflow"],
			"required_fields": [],
			"populated_fields": {"created_date": "current_date"},
			"auto_create_threshold": 0.7
		},
		"PRODLS": {
			"keywords": ["assay", "sample"],
			"required_fields": ["environment"],
			"populated_fields": {},
			"auto_create_threshold": 0.8
		},
		"PRODHT": {
			"keywords": [],
			"required_fields": ["environment"],
			"populated_fields": {},
			"auto_create_threshold": 0.8
		}
	}
}`

func writeCategoryConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ticket_categories.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCategoryConfigValid(t *testing.T) {
	cfg := LoadCategoryConfig(writeCategoryConfig(t, sampleCategoryJSON), "OPS", nil)

	assert.Equal(t, "OPS", cfg.DefaultCategory)
	assert.Len(t, cfg.Categories, 4)
	assert.Equal(t, "PRODLS", cfg.GroupingCategories["LS"])
	assert.InDelta(t, 0.8, cfg.Threshold("PRODLS"), 1e-9)
}

func TestLoadCategoryConfigMissingFileFallsBack(t *testing.T) {
	cfg := LoadCategoryConfig("/nonexistent/path.json", "OPS", nil)

	assert.Equal(t, "OPS", cfg.DefaultCategory)
	require.Contains(t, cfg.Categories, "OPS")
	assert.Empty(t, cfg.Categories["OPS"].RequiredFields)
}

func TestLoadCategoryConfigInvalidSchemaFallsBack(t *testing.T) {
	// categories present but default_category missing
	path := writeCategoryConfig(t, `{"categories": {"A": {"keywords": []}}}`)
	cfg := LoadCategoryConfig(path, "OPS", nil)

	assert.Equal(t, "OPS", cfg.DefaultCategory)
	assert.Len(t, cfg.Categories, 1)
}

func TestMatchCategoryKeywordWins(t *testing.T) {
	cfg := LoadCategoryConfig(writeCategoryConfig(t, sampleCategoryJSON), "OPS", nil)

	// Keyword match beats the requester's grouping.
	assert.Equal(t, "INFRA", cfg.MatchCategory("the database is down", "LS"))
}

func TestMatchCategoryLongestKeywordWins(t *testing.T) {
	cfg := LoadCategoryConfig(writeCategoryConfig(t, sampleCategoryJSON), "OPS", nil)

	// "workflow" (8) is longer than "server" (6).
	assert.Equal(t, "OPS", cfg.MatchCategory("workflow server question", ""))
}

func TestMatchCategoryGroupingFallback(t *testing.T) {
	cfg := LoadCategoryConfig(writeCategoryConfig(t, sampleCategoryJSON), "OPS", nil)

	assert.Equal(t, "PRODLS", cfg.MatchCategory("something unrelated", "LS"))
	assert.Equal(t, "PRODHT", cfg.MatchCategory("something unrelated", "ht"))
}

func TestMatchCategoryDefaultFallback(t *testing.T) {
	cfg := LoadCategoryConfig(writeCategoryConfig(t, sampleCategoryJSON), "OPS", nil)

	assert.Equal(t, "OPS", cfg.MatchCategory("something unrelated", ""))
	assert.Equal(t, "OPS", cfg.MatchCategory("something unrelated", "UNKNOWN_GROUP"))
}

func TestMatchCategoryIsDeterministic(t *testing.T) {
	cfg := LoadCategoryConfig(writeCategoryConfig(t, sampleCategoryJSON), "OPS", nil)

	first := cfg.MatchCategory("database outage on the network", "")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, cfg.MatchCategory("database outage on the network", ""))
	}
}

func TestDefinitionUnknownCategoryUsesDefault(t *testing.T) {
	cfg := LoadCategoryConfig(writeCategoryConfig(t, sampleCategoryJSON), "OPS", nil)

	def := cfg.Definition("NOPE")
	assert.Equal(t, cfg.Categories["OPS"], def)
}
