// internal/ticket/assembler.go
package ticket

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"querydesk/internal/common/logger"
	"querydesk/internal/models"
)

// Populated-field directives. Any other value in populated_fields is taken
// as a literal.
const (
	directiveFromDescription  = "derive_from_description"
	directiveFromOrganization = "derive_from_organization"
	directiveFromGrouping     = "derive_from_grouping"
	directiveCurrentDate      = "current_date"
)

const summaryMaxLen = 80

// Assembler turns an analysis plus collected answers into a TicketRecord.
// Assembly is deterministic given the same inputs and clock; only the
// identifiers differ between runs.
type Assembler struct {
	config *CategoryConfig
	log    logger.Logger
	now    func() time.Time
}

func NewAssembler(config *CategoryConfig, log logger.Logger) *Assembler {
	if log == nil {
		log = logger.Nop()
	}
	return &Assembler{config: config, log: log, now: time.Now}
}

// Assemble builds the final ticket. Collected answers always win over
// derived values; populated-field directives fill only what the user never
// provided.
func (a *Assembler) Assemble(analysis models.TicketAnalysis, org models.OrganizationRecord, requesterEmail string, collected map[string]string) (models.TicketRecord, error) {
	category := analysis.Category
	if category == "" {
		category = a.config.DefaultCategory
	}
	def := a.config.Definition(category)
	now := a.now().UTC()

	record := models.TicketRecord{
		Category:      category,
		Priority:      analysis.Priority,
		AffectedArea:  analysis.AffectedArea,
		Environment:   analysis.Environment,
		Description:   analysis.Description,
		Customer:      org.Organization,
		CustomerEmail: requesterEmail,
		CreatedDate:   now.Format("2006-01-02"),
	}

	applyCollected(&record, collected)

	populated := make(map[string]string, len(def.PopulatedFields))
	for field, directive := range def.PopulatedFields {
		if _, answered := collected[field]; answered {
			continue
		}
		value := a.resolveDirective(directive, &record, org, now)
		if value == "" {
			continue
		}
		populated[field] = value
		setField(&record, field, value)
	}
	// Answers collected for fields outside the record's own columns
	// (prod_version and other category extras) ride along as populated
	// fields so they reach the audit trail.
	for field, value := range collected {
		if value == "" || isRecordField(field) {
			continue
		}
		populated[field] = value
	}
	if len(populated) > 0 {
		record.PopulatedFields = populated
	}

	if record.Priority == "" {
		record.Priority = models.PriorityMedium
	}
	// Categories that ask for the environment leave it to the question
	// flow; everything else assumes production.
	if record.Environment == "" && !def.AskEnvironment {
		record.Environment = "Production"
	}
	if record.Summary == "" {
		record.Summary = summarize(record.Description)
	}

	record.TicketID = internalTicketID(category, org.Organization, now)
	record.ExternalID = fmt.Sprintf("%s-%05d", category, rand.Intn(100000))

	a.log.Info("ticket assembled", map[string]interface{}{
		"ticket_id": record.TicketID,
		"category":  record.Category,
		"priority":  record.Priority,
		"customer":  record.Customer,
	})
	return record, nil
}

func (a *Assembler) resolveDirective(directive string, record *models.TicketRecord, org models.OrganizationRecord, now time.Time) string {
	switch directive {
	case directiveFromDescription:
		return summarize(record.Description)
	case directiveFromOrganization:
		return org.Organization
	case directiveFromGrouping:
		return org.Grouping
	case directiveCurrentDate:
		return now.Format("2006-01-02")
	default:
		return directive
	}
}

func applyCollected(record *models.TicketRecord, collected map[string]string) {
	for field, value := range collected {
		setField(record, field, value)
	}
}

func isRecordField(field string) bool {
	switch field {
	case "priority", "affected_area", "environment", "summary", "description", "customer":
		return true
	}
	return false
}

func setField(record *models.TicketRecord, field, value string) {
	switch field {
	case "priority":
		record.Priority = value
	case "affected_area":
		record.AffectedArea = value
	case "environment":
		record.Environment = value
	case "summary":
		record.Summary = value
	case "description":
		record.Description = value
	case "customer":
		record.Customer = value
	}
}

func summarize(description string) string {
	text := strings.TrimSpace(description)
	if text == "" {
		return "Support Request"
	}
	if len(text) > summaryMaxLen {
		// Back the cut off to a rune boundary so multi-byte characters
		// are never split.
		cut := summaryMaxLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = strings.TrimSpace(text[:cut])
	}
	return "Support Request: " + text
}

// internalTicketID builds TICKET_<CATEGORY>_<Customer>_<timestamp>. The
// nanosecond component keeps ids distinct for back-to-back assemblies.
func internalTicketID(category, customer string, now time.Time) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return -1
		}
	}, customer)
	if sanitized == "" {
		sanitized = "Unknown"
	}
	return fmt.Sprintf("TICKET_%s_%s_%s", category, sanitized, now.Format("20060102_150405.000000000"))
}
