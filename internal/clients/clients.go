// internal/clients/clients.go
package clients

import (
	"context"

	"querydesk/internal/models"
)

// PrimarySourceClient searches the issue tracker scoped to one organization.
type PrimarySourceClient interface {
	SearchByOrganization(ctx context.Context, organization, query string) ([]models.Document, error)
}

// SecondaryKnowledgeClient searches the help-center knowledge base filtered
// by the requester's role.
type SecondaryKnowledgeClient interface {
	Search(ctx context.Context, query, role string) ([]models.Document, error)
}

// TextGenerationClient produces free-form text from a prompt.
type TextGenerationClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
