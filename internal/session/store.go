// internal/session/store.go
package session

import (
	"context"
	"errors"
	"time"

	"querydesk/internal/models"
)

// ErrNotFound is returned when a user has no pending flow.
var ErrNotFound = errors.New("SESSION_NOT_FOUND")

// FlowTTL bounds how long an unanswered question flow survives.
const FlowTTL = 30 * time.Minute

// QuestionFlow is the pending field-collection state for one user. It exists
// only between the moment follow-up questions are asked and the moment the
// ticket is assembled or the flow is abandoned.
type QuestionFlow struct {
	Current       models.Question   `json:"current"`
	Remaining     []models.Question `json:"remaining"`
	Collected     map[string]string `json:"collected"`
	OriginalQuery string            `json:"original_query"`
	Category      string            `json:"category"`
	StartedAt     time.Time         `json:"started_at"`
}

// Store persists pending question flows keyed by user id.
type Store interface {
	Get(ctx context.Context, userID string) (*QuestionFlow, error)
	Put(ctx context.Context, userID string, flow *QuestionFlow) error
	Clear(ctx context.Context, userID string) error
}

// ConversationStore keeps an append-only per-user message history.
type ConversationStore interface {
	Append(ctx context.Context, userID string, role, content string) error
	History(ctx context.Context, userID string, limit int) ([]models.Message, error)
}
