// internal/extractor/rules.go
package extractor

import (
	"context"
	"strings"

	"querydesk/internal/common/logger"
	"querydesk/internal/models"
	"querydesk/internal/ticket"
)

// Priority buckets scanned in severity order; the first bucket containing a
// matching keyword wins.
var priorityKeywords = []struct {
	priority string
	keywords []string
}{
	{models.PriorityCritical, []string{
		"down", "outage", "crashed", "not working", "system failure",
		"critical", "production down", "emergency",
	}},
	{models.PriorityHigh, []string{
		"blocking", "urgent", "deadline", "asap", "high priority",
		"important", "stuck", "cannot proceed", "password reset", "reset",
	}},
	{models.PriorityMedium, []string{
		"issue", "problem", "error", "trouble", "difficulty", "bug", "help",
	}},
	{models.PriorityLow, []string{
		"question", "enhancement", "request", "suggestion", "improvement",
		"how to", "can you",
	}},
}

var areaKeywords = []struct {
	area     string
	keywords []string
}{
	{"Access", []string{"login", "password", "access", "permission", "account", "locked", "credential", "vpn"}},
	{"Database", []string{"database", "db", "query", "sql", "table", "data corruption"}},
	{"Network", []string{"network", "connection", "connectivity", "dns", "firewall", "latency"}},
	{"API", []string{"api", "endpoint", "integration", "webhook", "rest"}},
	{"Configuration", []string{"config", "configuration", "setting", "setup", "parameter"}},
	{"Performance", []string{"slow", "performance", "timeout", "lag", "memory", "cpu"}},
	{"Deployment", []string{"deploy", "deployment", "release", "rollback", "upgrade", "install"}},
	{"Application", []string{"application", "app", "screen", "page", "button", "report", "ui"}},
}

var environmentKeywords = []struct {
	environment string
	keywords    []string
}{
	{"Production", []string{"production", "prod", "live", "main"}},
	{"Staging", []string{"staging", "stage", "test"}},
	{"Development", []string{"development", "dev"}},
}

const defaultArea = "General"

// RuleBasedExtractor is the deterministic keyword-driven extractor. Same
// query, same organization, same analysis, every time.
type RuleBasedExtractor struct {
	config *ticket.CategoryConfig
	log    logger.Logger
}

func NewRuleBasedExtractor(config *ticket.CategoryConfig, log logger.Logger) *RuleBasedExtractor {
	if log == nil {
		log = logger.Nop()
	}
	return &RuleBasedExtractor{config: config, log: log}
}

func (e *RuleBasedExtractor) Analyze(_ context.Context, query string, org models.OrganizationRecord, _ []models.Message) (models.TicketAnalysis, error) {
	lower := strings.ToLower(query)

	analysis := models.TicketAnalysis{
		Category:    e.config.MatchCategory(query, org.Grouping),
		Description: query,
	}

	priority, priorityDetected := detectPriority(lower)
	analysis.Priority = priority

	area, areaDetected := detectArea(lower)
	analysis.AffectedArea = area

	environment, environmentDetected := detectEnvironment(lower)
	analysis.Environment = environment

	categoryDetected := hasCategoryKeyword(e.config, analysis.Category, lower)

	// Completeness: base 0.4, plus increments for each field the query
	// itself pinned down. Defaulted values contribute nothing.
	score := 0.4
	if categoryDetected {
		score += 0.2
	}
	if priorityDetected {
		score += 0.1
	}
	if areaDetected {
		score += 0.2
	}
	if environmentDetected {
		score += 0.1
	}
	if len(query) > 50 {
		score += 0.1
	}
	if len(query) > 100 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	analysis.CompletenessScore = score

	def := e.config.Definition(analysis.Category)
	analysis.MissingInfo = missingInfo(def, areaDetected, environmentDetected)
	analysis.SuggestedQuestions = BuildQuestions(analysis.MissingInfo, analysis)

	e.log.Debug("rule-based analysis complete", map[string]interface{}{
		"category":     analysis.Category,
		"priority":     analysis.Priority,
		"completeness": analysis.CompletenessScore,
	})
	return analysis, nil
}

func detectPriority(lower string) (string, bool) {
	for _, bucket := range priorityKeywords {
		for _, kw := range bucket.keywords {
			if strings.Contains(lower, kw) {
				return bucket.priority, true
			}
		}
	}
	return models.PriorityMedium, false
}

func detectArea(lower string) (string, bool) {
	for _, bucket := range areaKeywords {
		for _, kw := range bucket.keywords {
			if strings.Contains(lower, kw) {
				return bucket.area, true
			}
		}
	}
	return defaultArea, false
}

func detectEnvironment(lower string) (string, bool) {
	for _, bucket := range environmentKeywords {
		for _, kw := range bucket.keywords {
			if strings.Contains(lower, kw) {
				return bucket.environment, true
			}
		}
	}
	return "", false
}

func hasCategoryKeyword(cfg *ticket.CategoryConfig, category, lower string) bool {
	for _, kw := range cfg.Definition(category).Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func missingInfo(def ticket.CategoryDefinition, areaDetected, environmentDetected bool) []string {
	var missing []string
	for _, field := range def.RequiredFields {
		switch field {
		case "affected_area":
			if !areaDetected {
				missing = append(missing, field)
			}
		case "environment":
			if !environmentDetected {
				missing = append(missing, field)
			}
		default:
			missing = append(missing, field)
		}
	}
	if def.AskEnvironment && !environmentDetected && !contains(missing, "environment") {
		missing = append(missing, "environment")
	}
	return missing
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
