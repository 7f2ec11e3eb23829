// internal/extractor/ai.go
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"querydesk/internal/clients"
	"querydesk/internal/common/logger"
	"querydesk/internal/models"
)

// AIExtractor asks the text-generation service to extract ticket fields as
// JSON and falls back to the rule-based extractor on any failure: timeout,
// malformed JSON, or values outside the allowed sets.
type AIExtractor struct {
	textgen  clients.TextGenerationClient
	fallback *RuleBasedExtractor
	log      logger.Logger
}

type aiAnalysisResponse struct {
	Category     string  `json:"category"`
	Priority     string  `json:"priority"`
	AffectedArea string  `json:"affected_area"`
	Environment  string  `json:"environment"`
	Confidence   float64 `json:"confidence"`
}

func NewAIExtractor(textgen clients.TextGenerationClient, fallback *RuleBasedExtractor, log logger.Logger) *AIExtractor {
	if log == nil {
		log = logger.Nop()
	}
	return &AIExtractor{textgen: textgen, fallback: fallback, log: log}
}

func (e *AIExtractor) Analyze(ctx context.Context, query string, org models.OrganizationRecord, history []models.Message) (models.TicketAnalysis, error) {
	ruleAnalysis, err := e.fallback.Analyze(ctx, query, org, history)
	if err != nil {
		return models.TicketAnalysis{}, err
	}

	text, err := e.textgen.Complete(ctx, e.buildPrompt(query, org, history))
	if err != nil {
		e.log.Warn("AI extraction failed, using rule-based analysis", map[string]interface{}{
			"error": err.Error(),
		})
		return ruleAnalysis, nil
	}

	parsed, err := parseAIResponse(text)
	if err != nil {
		e.log.Warn("AI response unparseable, using rule-based analysis", map[string]interface{}{
			"error": err.Error(),
		})
		return ruleAnalysis, nil
	}

	// AI values refine the rule analysis; completeness and questions stay
	// rule-derived so the routing thresholds remain deterministic.
	merged := ruleAnalysis
	if parsed.Priority != "" && isValidPriority(parsed.Priority) {
		merged.Priority = parsed.Priority
	}
	if parsed.AffectedArea != "" {
		merged.AffectedArea = parsed.AffectedArea
	}
	if parsed.Environment != "" {
		merged.Environment = parsed.Environment
	}
	return merged, nil
}

func (e *AIExtractor) buildPrompt(query string, org models.OrganizationRecord, history []models.Message) string {
	var parts []string

	parts = append(parts, "You are a support ticket triage assistant. Extract ticket fields from the user's message.")
	parts = append(parts, fmt.Sprintf("\nCustomer organization: %s", org.Organization))
	parts = append(parts, fmt.Sprintf("User message: %s", query))

	if len(history) > 0 {
		parts = append(parts, "\nRecent conversation:")
		for _, msg := range history {
			parts = append(parts, fmt.Sprintf("- %s: %s", msg.Role, msg.Content))
		}
	}

	parts = append(parts, "\nInstructions:")
	parts = append(parts, "- Respond with a single JSON object, no prose")
	parts = append(parts, `- Fields: category, priority, affected_area, environment, confidence`)
	parts = append(parts, "- priority must be one of Critical, High, Medium, Low")
	parts = append(parts, "- Leave a field empty if the message does not say")

	return strings.Join(parts, "\n")
}

// parseAIResponse extracts the first JSON object from the model output.
func parseAIResponse(text string) (*aiAnalysisResponse, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var parsed aiAnalysisResponse
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("decode AI analysis: %w", err)
	}
	return &parsed, nil
}

func isValidPriority(p string) bool {
	switch p {
	case models.PriorityCritical, models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
		return true
	}
	return false
}
