// internal/router/format.go
package router

import (
	"context"
	"fmt"
	"strings"

	"querydesk/internal/clients"
	"querydesk/internal/common/logger"
	"querydesk/internal/models"
)

// ticketOfferMarker tags every answer that ends with a ticket offer, so a
// later "yes" can be recognized as accepting it.
const ticketOfferMarker = "create a support ticket"

const maxAnswerDocs = 3

// Formatter turns ranked documents into a conversational answer. Text
// generation is optional; without it (or when it fails) a deterministic
// summary of the top results is produced instead.
type Formatter struct {
	textGen clients.TextGenerationClient
	log     logger.Logger
}

func NewFormatter(textGen clients.TextGenerationClient, log logger.Logger) *Formatter {
	if log == nil {
		log = logger.Nop()
	}
	return &Formatter{textGen: textGen, log: log}
}

func (f *Formatter) Format(ctx context.Context, query string, ranked []models.RankedDocument, source models.SourceTag) string {
	answer := ""
	if f.textGen != nil {
		generated, err := f.textGen.Complete(ctx, answerPrompt(query, ranked))
		if err != nil {
			f.log.Warn("answer generation failed, using summary fallback", map[string]interface{}{
				"source": string(source),
				"error":  err.Error(),
			})
		} else {
			answer = strings.TrimSpace(generated)
		}
	}
	if answer == "" {
		answer = summaryAnswer(ranked, source)
	}
	return answer + "\n\n" + ticketOffer(source)
}

func answerPrompt(query string, ranked []models.RankedDocument) string {
	var b strings.Builder
	b.WriteString("You are a support assistant. Answer the question using only the reference material below. ")
	b.WriteString("Be concise. If the material does not answer the question, say so.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\nReference material:\n", query)
	for i, doc := range ranked {
		if i >= maxAnswerDocs {
			break
		}
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, doc.Document.Title(), doc.Document.Body())
	}
	return b.String()
}

func summaryAnswer(ranked []models.RankedDocument, source models.SourceTag) string {
	var b strings.Builder
	switch source {
	case models.SourcePrimaryTracker:
		b.WriteString("I found existing issues that look related to your question:\n")
	default:
		b.WriteString("I found help center articles that look related to your question:\n")
	}
	for i, doc := range ranked {
		if i >= maxAnswerDocs {
			break
		}
		title := doc.Document.Title()
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, title)
	}
	return strings.TrimRight(b.String(), "\n")
}

func ticketOffer(source models.SourceTag) string {
	if source == models.SourcePrimaryTracker {
		return "If none of these issues cover your problem, I can create a support ticket for you. Shall I?"
	}
	return "If this doesn't resolve your problem, I can create a support ticket for you. Shall I?"
}

func questionPrompt(q models.Question) string {
	if q.SuggestedValue != "" {
		return fmt.Sprintf("%s (suggested: %s)", q.Prompt, q.SuggestedValue)
	}
	return q.Prompt
}

func formResponse(analysis models.TicketAnalysis) string {
	var b strings.Builder
	b.WriteString("I couldn't find an answer, and I need more detail to open a ticket for you. ")
	b.WriteString("Please fill in the support form")
	if len(analysis.MissingInfo) > 0 {
		fmt.Fprintf(&b, ", in particular: %s", strings.Join(analysis.MissingInfo, ", "))
	}
	b.WriteString(".")
	return b.String()
}

func ticketConfirmation(record models.TicketRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I've created support ticket %s (%s, %s priority).\n", record.ExternalID, record.Category, record.Priority)
	fmt.Fprintf(&b, "Summary: %s\n", record.Summary)
	b.WriteString("Our support team will follow up shortly.")
	return b.String()
}
