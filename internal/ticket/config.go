// internal/ticket/config.go
package ticket

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	stderrors "querydesk/internal/common/errors"
	"querydesk/internal/common/logger"
)

// categoryConfigSchema is the shape every category configuration file must
// satisfy before it is trusted.
const categoryConfigSchema = `{
	"type": "object",
	"required": ["default_category", "categories"],
	"properties": {
		"default_category": {"type": "string", "minLength": 1},
		"grouping_categories": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		},
		"categories": {
			"type": "object",
			"minProperties": 1,
			"additionalProperties": {
				"type": "object",
				"required": ["keywords"],
				"properties": {
					"keywords": {"type": "array", "items": {"type": "string"}},
					"required_fields": {"type": "array", "items": {"type": "string"}},
					"populated_fields": {
						"type": "object",
						"additionalProperties": {"type": "string"}
					},
					"auto_create_threshold": {"type": "number", "minimum": 0, "maximum": 1},
					"ask_environment": {"type": "boolean"}
				}
			}
		}
	}
}`

// CategoryDefinition describes one ticket category.
type CategoryDefinition struct {
	Keywords            []string          `json:"keywords"`
	RequiredFields      []string          `json:"required_fields"`
	PopulatedFields     map[string]string `json:"populated_fields"`
	AutoCreateThreshold float64           `json:"auto_create_threshold"`
	AskEnvironment      bool              `json:"ask_environment"`
}

// CategoryConfig is the full category mapping configuration.
type CategoryConfig struct {
	DefaultCategory    string                        `json:"default_category"`
	GroupingCategories map[string]string             `json:"grouping_categories"`
	Categories         map[string]CategoryDefinition `json:"categories"`
}

// LoadCategoryConfig reads and validates the category configuration file.
// A missing or invalid file degrades to a single default category with no
// required fields, so ticket creation keeps working on a bad deploy.
func LoadCategoryConfig(path, defaultCategory string, log logger.Logger) *CategoryConfig {
	if log == nil {
		log = logger.Nop()
	}

	cfg, err := loadCategoryConfig(path)
	if err != nil {
		se := stderrors.Wrap(stderrors.ErrCodeConfigurationMissing, "category config unavailable, using default category", err)
		log.Error(se.Message, map[string]interface{}{
			"path":             path,
			"default_category": defaultCategory,
			"error":            se.Details,
		})
		return fallbackCategoryConfig(defaultCategory)
	}

	log.Info("category config loaded", map[string]interface{}{
		"path":       path,
		"categories": len(cfg.Categories),
	})
	return cfg
}

func loadCategoryConfig(path string) (*CategoryConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category config: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(categoryConfigSchema)
	documentLoader := gojsonschema.NewBytesLoader(raw)
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validate category config: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("invalid category config: %s", strings.Join(msgs, "; "))
	}

	var cfg CategoryConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse category config: %w", err)
	}
	if cfg.GroupingCategories == nil {
		cfg.GroupingCategories = map[string]string{}
	}
	return &cfg, nil
}

func fallbackCategoryConfig(defaultCategory string) *CategoryConfig {
	if defaultCategory == "" {
		defaultCategory = "OPS"
	}
	return &CategoryConfig{
		DefaultCategory:    defaultCategory,
		GroupingCategories: map[string]string{},
		Categories: map[string]CategoryDefinition{
			defaultCategory: {
				Keywords:            []string{},
				RequiredFields:      []string{},
				PopulatedFields:     map[string]string{},
				AutoCreateThreshold: 0.7,
			},
		},
	}
}

// MatchCategory picks the category whose keyword most specifically matches
// the query: the longest matching keyword wins, then the requester's
// grouping mapping, then the default category.
func (c *CategoryConfig) MatchCategory(query, grouping string) string {
	lower := strings.ToLower(query)

	bestCategory := ""
	bestLen := 0
	for _, name := range c.categoryNames() {
		for _, kw := range c.Categories[name].Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" || !strings.Contains(lower, kw) {
				continue
			}
			if len(kw) > bestLen {
				bestLen = len(kw)
				bestCategory = name
			}
		}
	}
	if bestCategory != "" {
		return bestCategory
	}

	if grouping != "" {
		if mapped, ok := c.GroupingCategories[strings.ToUpper(grouping)]; ok {
			if _, known := c.Categories[mapped]; known {
				return mapped
			}
		}
	}

	return c.DefaultCategory
}

// Definition returns the category's definition, falling back to the default
// category for names the config does not know.
func (c *CategoryConfig) Definition(category string) CategoryDefinition {
	if def, ok := c.Categories[category]; ok {
		return def
	}
	return c.Categories[c.DefaultCategory]
}

// Threshold returns the auto-create threshold for a category.
func (c *CategoryConfig) Threshold(category string) float64 {
	def := c.Definition(category)
	if def.AutoCreateThreshold <= 0 {
		return 0.7
	}
	return def.AutoCreateThreshold
}

// categoryNames iterates categories in a stable order so keyword ties
// resolve the same way on every call.
func (c *CategoryConfig) categoryNames() []string {
	names := make([]string, 0, len(c.Categories))
	for name := range c.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
