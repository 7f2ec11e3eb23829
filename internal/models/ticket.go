// internal/models/ticket.go
package models

// Priority levels in descending order of severity.
const (
	PriorityCritical = "Critical"
	PriorityHigh     = "High"
	PriorityMedium   = "Medium"
	PriorityLow      = "Low"
)

// Question is a single follow-up question in a field-collection flow.
type Question struct {
	Field          string `json:"field"`
	Prompt         string `json:"prompt"`
	SuggestedValue string `json:"suggested_value,omitempty"`
}

// TicketAnalysis is the result of field extraction over a query.
type TicketAnalysis struct {
	Category           string     `json:"category"`
	Priority           string     `json:"priority"`
	AffectedArea       string     `json:"affected_area"`
	Environment        string     `json:"environment"`
	Description        string     `json:"description"`
	CompletenessScore  float64    `json:"completeness_score"`
	MissingInfo        []string   `json:"missing_info,omitempty"`
	SuggestedQuestions []Question `json:"suggested_questions,omitempty"`
}

// TicketRecord is a fully assembled ticket ready for creation and audit.
type TicketRecord struct {
	TicketID        string            `json:"ticket_id"`
	ExternalID      string            `json:"external_id,omitempty"`
	Category        string            `json:"category"`
	Priority        string            `json:"priority"`
	AffectedArea    string            `json:"affected_area"`
	Environment     string            `json:"environment"`
	Summary         string            `json:"summary"`
	Description     string            `json:"description"`
	Customer        string            `json:"customer"`
	CustomerEmail   string            `json:"customer_email"`
	CreatedDate     string            `json:"created_date"`
	PopulatedFields map[string]string `json:"populated_fields,omitempty"`
}
