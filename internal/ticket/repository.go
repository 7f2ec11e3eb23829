// internal/ticket/repository.go
package ticket

import (
	"context"
	"database/sql"
	"fmt"

	stderrors "querydesk/internal/common/errors"
	"querydesk/internal/common/logger"
	"querydesk/internal/models"
)

// AuditRepository is the append-only postgres record of every assembled
// ticket. Rows are inserted once and never updated.
type AuditRepository struct {
	db  *sql.DB
	log logger.Logger
}

func NewAuditRepository(db *sql.DB, log logger.Logger) *AuditRepository {
	if log == nil {
		log = logger.Nop()
	}
	return &AuditRepository{db: db, log: log}
}

const insertTicketQuery = `
	INSERT INTO ticket_audit (
		ticket_id, external_id, category, priority, affected_area,
		environment, summary, description, customer, customer_email, created_date
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// Record appends one ticket to the audit log.
func (r *AuditRepository) Record(ctx context.Context, ticket models.TicketRecord) error {
	_, err := r.db.ExecContext(ctx, insertTicketQuery,
		ticket.TicketID,
		ticket.ExternalID,
		ticket.Category,
		ticket.Priority,
		ticket.AffectedArea,
		ticket.Environment,
		ticket.Summary,
		ticket.Description,
		ticket.Customer,
		ticket.CustomerEmail,
		ticket.CreatedDate,
	)
	if err != nil {
		se := stderrors.Wrap(stderrors.ErrCodeDatabaseInsertFailed, "failed to record ticket audit row", err)
		r.log.WithError(err).Error(se.Message, map[string]interface{}{
			"ticket_id":      ticket.TicketID,
			"error_category": stderrors.GetErrorCategory(se.Code),
			"retryable":      se.Retryable,
		})
		return fmt.Errorf("record ticket: %w", err)
	}

	r.log.Debug("ticket audit row recorded", map[string]interface{}{
		"ticket_id": ticket.TicketID,
	})
	return nil
}
