// internal/extractor/extractor.go
package extractor

import (
	"context"

	"querydesk/internal/models"
)

// FieldExtractor derives ticket fields from a user query. Implementations
// must be safe for concurrent use.
type FieldExtractor interface {
	Analyze(ctx context.Context, query string, org models.OrganizationRecord, history []models.Message) (models.TicketAnalysis, error)
}

// Completeness thresholds shared by the router: at or above the category's
// auto-create threshold a ticket is assembled directly; between askThreshold
// and that, follow-up questions are asked; below, a manual form is offered.
const AskThreshold = 0.5
