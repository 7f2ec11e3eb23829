// internal/router/router.go
package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"querydesk/internal/clients"
	"querydesk/internal/common/logger"
	"querydesk/internal/common/metrics"
	"querydesk/internal/extractor"
	"querydesk/internal/models"
	"querydesk/internal/ranking"
	"querydesk/internal/session"
	"querydesk/internal/ticket"
)

// Routing states. Every query terminates in exactly one of the last four.
const (
	StateSearchPrimary   = "SEARCH_PRIMARY"
	StateSearchSecondary = "SEARCH_SECONDARY"
	StateFormat          = "FORMAT"
	StateCreateTicket    = "CREATE_TICKET"
	StateAskQuestions    = "ASK_QUESTIONS"
	StateBlocked         = "BLOCKED"
	StateForm            = "FORM"
)

// Explicit ticket-request phrases route straight to ticket creation.
var ticketRequestPhrases = []string{
	"create a ticket", "open a ticket", "raise a ticket",
	"file a ticket", "log a ticket", "create a support ticket",
	"submit a ticket",
}

// Response is the outcome of routing one query.
type Response struct {
	Query           string                 `json:"query"`
	State           string                 `json:"state"`
	Source          models.SourceTag       `json:"source,omitempty"`
	ResponseText    string                 `json:"response_text"`
	Documents       []models.RankedDocument `json:"documents,omitempty"`
	Ticket          *models.TicketRecord   `json:"ticket,omitempty"`
	RequiresForm    bool                   `json:"requires_form,omitempty"`
	PendingQuestion *models.Question       `json:"pending_question,omitempty"`
	Analysis        *models.TicketAnalysis `json:"analysis,omitempty"`
	Blocked         bool                   `json:"blocked,omitempty"`
	BlockedOrgs     []string               `json:"blocked_organizations,omitempty"`
	SearchErrors    map[string]string      `json:"search_errors,omitempty"`
}

// AccessGate is the decision surface the router needs from the gate.
type AccessGate interface {
	Check(query, requesterDomain string) models.AccessDecision
}

// OrganizationResolver resolves requester domains.
type OrganizationResolver interface {
	Lookup(domain string) models.OrganizationRecord
}

// TicketAuditor records assembled tickets.
type TicketAuditor interface {
	Record(ctx context.Context, ticket models.TicketRecord) error
}

// TicketNotifier announces assembled tickets.
type TicketNotifier interface {
	TicketCreated(ctx context.Context, ticket models.TicketRecord) error
}

// Router runs the query workflow: gate, primary search, secondary search,
// then either a formatted answer or the ticket path. Source failures never
// fail the request; they degrade to empty results and are reported in
// Response.SearchErrors.
type Router struct {
	gate          AccessGate
	directory     OrganizationResolver
	primary       clients.PrimarySourceClient
	secondary     clients.SecondaryKnowledgeClient
	ranker        *ranking.Ranker
	extractor     extractor.FieldExtractor
	categories    *ticket.CategoryConfig
	assembler     *ticket.Assembler
	auditor       TicketAuditor
	notifier      TicketNotifier
	sessions      session.Store
	conversations session.ConversationStore
	formatter     *Formatter
	log           logger.Logger

	mu          sync.Mutex
	userMus     map[string]*sync.Mutex
	activeFlows map[string]string
}

// Options collects the router's collaborators.
type Options struct {
	Gate          AccessGate
	Directory     OrganizationResolver
	Primary       clients.PrimarySourceClient
	Secondary     clients.SecondaryKnowledgeClient
	Ranker        *ranking.Ranker
	Extractor     extractor.FieldExtractor
	Categories    *ticket.CategoryConfig
	Assembler     *ticket.Assembler
	Auditor       TicketAuditor
	Notifier      TicketNotifier
	Sessions      session.Store
	Conversations session.ConversationStore
	TextGen       clients.TextGenerationClient
	Logger        logger.Logger
}

func New(opts Options) *Router {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}
	conversations := opts.Conversations
	if conversations == nil {
		conversations = session.NewMemoryConversationStore()
	}
	return &Router{
		gate:          opts.Gate,
		directory:     opts.Directory,
		primary:       opts.Primary,
		secondary:     opts.Secondary,
		ranker:        opts.Ranker,
		extractor:     opts.Extractor,
		categories:    opts.Categories,
		assembler:     opts.Assembler,
		auditor:       opts.Auditor,
		notifier:      opts.Notifier,
		sessions:      sessions,
		conversations: conversations,
		formatter:     NewFormatter(opts.TextGen, log),
		log:           log.WithFields(map[string]interface{}{"component": "router"}),
		userMus:       make(map[string]*sync.Mutex),
		activeFlows:   make(map[string]string),
	}
}

// Process routes one query for one user. Calls for the same user are
// serialized so pending question flows never race.
func (r *Router) Process(ctx context.Context, userID, query string) (*Response, error) {
	mu := r.userMutex(userID)
	mu.Lock()
	defer mu.Unlock()

	started := time.Now()
	resp, err := r.process(ctx, userID, query)
	if err != nil {
		return nil, err
	}

	metrics.QueriesRouted.WithLabelValues(resp.State).Inc()
	metrics.RoutingDuration.WithLabelValues(resp.State).Observe(time.Since(started).Seconds())

	if resp.ResponseText != "" {
		if aerr := r.conversations.Append(ctx, userID, "assistant", resp.ResponseText); aerr != nil {
			r.log.Warn("failed to append assistant message", map[string]interface{}{
				"user":  userID,
				"error": aerr.Error(),
			})
		}
	}
	return resp, nil
}

func (r *Router) process(ctx context.Context, userID, query string) (*Response, error) {
	history, _ := r.conversations.History(ctx, userID, 20)
	if err := r.conversations.Append(ctx, userID, "user", query); err != nil {
		r.log.Warn("failed to append user message", map[string]interface{}{
			"user":  userID,
			"error": err.Error(),
		})
	}

	org := r.directory.Lookup(domainOf(userID))

	// A pending question flow consumes the message before anything else.
	flow, err := r.sessions.Get(ctx, userID)
	switch {
	case err == nil:
		return r.continueFlow(ctx, userID, org, flow, query)
	case errors.Is(err, session.ErrNotFound):
		// The store reports expired flows as missing; settle the gauge
		// for any flow this user abandoned.
		r.flowEnded(userID)
	}

	decision := r.gate.Check(query, domainOf(userID))
	if !decision.Allowed {
		for _, blocked := range decision.BlockedOrganizations {
			metrics.QueriesBlocked.WithLabelValues(blocked).Inc()
		}
		return &Response{
			Query:        query,
			State:        StateBlocked,
			ResponseText: decision.Message,
			Blocked:      true,
			BlockedOrgs:  decision.BlockedOrganizations,
		}, nil
	}

	if r.isTicketRequest(query, history) {
		original := originalQueryFromHistory(history, query)
		return r.ticketPath(ctx, userID, org, original, query)
	}

	searchErrors := make(map[string]string)

	// SEARCH_PRIMARY
	primaryDocs := r.searchPrimary(ctx, org, query, searchErrors)
	ranked := r.ranker.Rank(ctx, primaryDocs, query, models.SourcePrimaryTracker)
	if len(ranked) > 0 {
		return r.formatPath(ctx, query, ranked, models.SourcePrimaryTracker, searchErrors)
	}

	// SEARCH_SECONDARY
	secondaryDocs := r.searchSecondary(ctx, org, query, searchErrors)
	ranked = r.ranker.Rank(ctx, secondaryDocs, query, models.SourceHelpCenter)
	if len(ranked) > 0 {
		return r.formatPath(ctx, query, ranked, models.SourceHelpCenter, searchErrors)
	}

	// Both sources empty: the ticket path decides what happens next.
	resp, err := r.ticketPath(ctx, userID, org, query, query)
	if err != nil {
		return nil, err
	}
	if len(searchErrors) > 0 {
		resp.SearchErrors = searchErrors
	}
	return resp, nil
}

func (r *Router) searchPrimary(ctx context.Context, org models.OrganizationRecord, query string, searchErrors map[string]string) []models.Document {
	docs, err := r.primary.SearchByOrganization(ctx, org.Organization, query)
	if err != nil {
		metrics.SourceSearchFailures.WithLabelValues(string(models.SourcePrimaryTracker)).Inc()
		searchErrors[string(models.SourcePrimaryTracker)] = err.Error()
		r.log.Warn("primary source search failed", map[string]interface{}{
			"organization": org.Organization,
			"error":        err.Error(),
		})
		return nil
	}
	return docs
}

func (r *Router) searchSecondary(ctx context.Context, org models.OrganizationRecord, query string, searchErrors map[string]string) []models.Document {
	docs, err := r.secondary.Search(ctx, query, org.Role)
	if err != nil {
		metrics.SourceSearchFailures.WithLabelValues(string(models.SourceHelpCenter)).Inc()
		searchErrors[string(models.SourceHelpCenter)] = err.Error()
		r.log.Warn("secondary source search failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return docs
}

func (r *Router) formatPath(ctx context.Context, query string, ranked []models.RankedDocument, source models.SourceTag, searchErrors map[string]string) (*Response, error) {
	text := r.formatter.Format(ctx, query, ranked, source)
	resp := &Response{
		Query:        query,
		State:        StateFormat,
		Source:       source,
		ResponseText: text,
		Documents:    ranked,
	}
	if len(searchErrors) > 0 {
		resp.SearchErrors = searchErrors
	}
	return resp, nil
}

// ticketPath analyzes the query and decides between auto-create, follow-up
// questions, and the manual form, by completeness thresholds.
func (r *Router) ticketPath(ctx context.Context, userID string, org models.OrganizationRecord, originalQuery, currentQuery string) (*Response, error) {
	history, _ := r.conversations.History(ctx, userID, 20)
	analysis, err := r.extractor.Analyze(ctx, originalQuery, org, history)
	if err != nil {
		return nil, err
	}

	threshold := r.categories.Threshold(analysis.Category)
	switch {
	case analysis.CompletenessScore >= threshold:
		return r.createTicket(ctx, userID, org, analysis, nil, "auto")

	case analysis.CompletenessScore >= extractor.AskThreshold && len(analysis.SuggestedQuestions) > 0:
		return r.startFlow(ctx, userID, originalQuery, analysis)

	default:
		return &Response{
			Query:        currentQuery,
			State:        StateForm,
			ResponseText: formResponse(analysis),
			RequiresForm: true,
			Analysis:     &analysis,
		}, nil
	}
}

func (r *Router) startFlow(ctx context.Context, userID, originalQuery string, analysis models.TicketAnalysis) (*Response, error) {
	first := analysis.SuggestedQuestions[0]
	flow := &session.QuestionFlow{
		Current:       first,
		Remaining:     analysis.SuggestedQuestions[1:],
		Collected:     map[string]string{},
		OriginalQuery: originalQuery,
		Category:      analysis.Category,
		StartedAt:     time.Now().UTC(),
	}
	if err := r.sessions.Put(ctx, userID, flow); err != nil {
		r.log.Error("failed to persist question flow", map[string]interface{}{
			"user":  userID,
			"error": err.Error(),
		})
		// Without flow state the questions cannot be continued; fall back
		// to the manual form.
		return &Response{
			Query:        originalQuery,
			State:        StateForm,
			ResponseText: formResponse(analysis),
			RequiresForm: true,
			Analysis:     &analysis,
		}, nil
	}

	r.flowStarted(userID, analysis.Category)
	return &Response{
		Query:           originalQuery,
		State:           StateAskQuestions,
		ResponseText:    questionPrompt(first),
		PendingQuestion: &first,
		Analysis:        &analysis,
	}, nil
}

func (r *Router) continueFlow(ctx context.Context, userID string, org models.OrganizationRecord, flow *session.QuestionFlow, reply string) (*Response, error) {
	answers := extractor.ParseAnswer(reply, flow.Current)
	for field, value := range answers {
		flow.Collected[field] = value
	}

	// Drop remaining questions already answered by a structured reply.
	var remaining []models.Question
	for _, q := range flow.Remaining {
		if _, answered := flow.Collected[q.Field]; !answered {
			remaining = append(remaining, q)
		}
	}

	if len(remaining) > 0 {
		flow.Current = remaining[0]
		flow.Remaining = remaining[1:]
		if err := r.sessions.Put(ctx, userID, flow); err != nil {
			return nil, err
		}
		return &Response{
			Query:           reply,
			State:           StateAskQuestions,
			ResponseText:    questionPrompt(flow.Current),
			PendingQuestion: &flow.Current,
		}, nil
	}

	if err := r.sessions.Clear(ctx, userID); err != nil {
		r.log.Warn("failed to clear question flow", map[string]interface{}{
			"user":  userID,
			"error": err.Error(),
		})
	}
	r.flowEnded(userID)

	history, _ := r.conversations.History(ctx, userID, 20)
	analysis, err := r.extractor.Analyze(ctx, flow.OriginalQuery, org, history)
	if err != nil {
		return nil, err
	}
	analysis = extractor.MergeAnswers(analysis, flow.Collected)

	return r.createTicket(ctx, userID, org, analysis, flow.Collected, "guided")
}

func (r *Router) createTicket(ctx context.Context, userID string, org models.OrganizationRecord, analysis models.TicketAnalysis, collected map[string]string, method string) (*Response, error) {
	record, err := r.assembler.Assemble(analysis, org, userID, collected)
	if err != nil {
		return nil, err
	}

	if r.auditor != nil {
		if err := r.auditor.Record(ctx, record); err != nil {
			r.log.Error("ticket audit failed", map[string]interface{}{
				"ticket_id": record.TicketID,
				"error":     err.Error(),
			})
		}
	}
	if r.notifier != nil {
		if err := r.notifier.TicketCreated(ctx, record); err != nil {
			r.log.Warn("ticket notification failed", map[string]interface{}{
				"ticket_id": record.TicketID,
				"error":     err.Error(),
			})
		}
	}

	metrics.TicketsCreated.WithLabelValues(record.Category, method).Inc()

	return &Response{
		Query:        analysis.Description,
		State:        StateCreateTicket,
		ResponseText: ticketConfirmation(record),
		Ticket:       &record,
		Analysis:     &analysis,
	}, nil
}

// isTicketRequest detects an explicit ticket request, either by phrase or
// by an affirmative reply to a previous ticket offer.
func (r *Router) isTicketRequest(query string, history []models.Message) bool {
	lower := strings.ToLower(query)
	for _, phrase := range ticketRequestPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}

	if extractor.IsAffirmation(query) {
		for i := len(history) - 1; i >= 0; i-- {
			if history[i].Role == "assistant" {
				return strings.Contains(history[i].Content, ticketOfferMarker)
			}
		}
	}
	return false
}

// originalQueryFromHistory recovers the problem statement a ticket request
// refers to: the most recent user message that was not itself a request.
func originalQueryFromHistory(history []models.Message, fallback string) string {
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role != "user" {
			continue
		}
		lower := strings.ToLower(msg.Content)
		requestOnly := extractor.IsAffirmation(msg.Content)
		for _, phrase := range ticketRequestPhrases {
			if strings.Contains(lower, phrase) {
				requestOnly = true
				break
			}
		}
		if !requestOnly {
			return msg.Content
		}
	}
	return fallback
}

// flowStarted and flowEnded keep the pending-flow gauge in step with the
// session store. The router remembers each user's flow category so the
// gauge can be settled even when the stored flow has already expired.
func (r *Router) flowStarted(userID, category string) {
	r.mu.Lock()
	r.activeFlows[userID] = category
	r.mu.Unlock()
	metrics.PendingQuestionFlows.WithLabelValues(category).Inc()
}

func (r *Router) flowEnded(userID string) {
	r.mu.Lock()
	category, ok := r.activeFlows[userID]
	if ok {
		delete(r.activeFlows, userID)
	}
	r.mu.Unlock()
	if ok {
		metrics.PendingQuestionFlows.WithLabelValues(category).Dec()
	}
}

func (r *Router) userMutex(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	mu, ok := r.userMus[userID]
	if !ok {
		mu = &sync.Mutex{}
		r.userMus[userID] = mu
	}
	return mu
}

func domainOf(userID string) string {
	if at := strings.LastIndex(userID, "@"); at >= 0 {
		return userID[at+1:]
	}
	return userID
}
