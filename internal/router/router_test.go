// internal/router/router_test.go
package router

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querydesk/internal/common/metrics"
	"querydesk/internal/extractor"
	"querydesk/internal/models"
	"querydesk/internal/ranking"
	"querydesk/internal/session"
	"querydesk/internal/ticket"
)

type fakeGate struct {
	decision models.AccessDecision
}

func (f *fakeGate) Check(string, string) models.AccessDecision { return f.decision }

type fakeDirectory struct{}

func (fakeDirectory) Lookup(domain string) models.OrganizationRecord {
	return models.OrganizationRecord{
		Domain:       domain,
		Organization: "AcmeCorp Pharmaceuticals",
		Role:         "customer",
		ProdVersion:  "9.2",
		Grouping:     "LS",
		Known:        true,
	}
}

type fakePrimary struct {
	docs []models.Document
	err  error
}

func (f *fakePrimary) SearchByOrganization(context.Context, string, string) ([]models.Document, error) {
	return f.docs, f.err
}

type fakeSecondary struct {
	docs []models.Document
	err  error
}

func (f *fakeSecondary) Search(context.Context, string, string) ([]models.Document, error) {
	return f.docs, f.err
}

type recordingAuditor struct {
	tickets []models.TicketRecord
}

func (r *recordingAuditor) Record(_ context.Context, t models.TicketRecord) error {
	r.tickets = append(r.tickets, t)
	return nil
}

type recordingNotifier struct {
	tickets []models.TicketRecord
}

func (r *recordingNotifier) TicketCreated(_ context.Context, t models.TicketRecord) error {
	r.tickets = append(r.tickets, t)
	return nil
}

func routerCategoryConfig() *ticket.CategoryConfig {
	return &ticket.CategoryConfig{
		DefaultCategory:    "OPS",
		GroupingCategories: map[string]string{"LS": "PRODLS", "HT": "PRODHT"},
		Categories: map[string]ticket.CategoryDefinition{
			"INFRA": {
				Keywords:            []string{"server", "database", "network", "outage"},
				RequiredFields:      []string{"environment", "affected_area"},
				AutoCreateThreshold: 0.7,
			},
			"OPS":    {AutoCreateThreshold: 0.7},
			"PRODLS": {AutoCreateThreshold: 0.8},
			"PRODHT": {AutoCreateThreshold: 0.8},
		},
	}
}

type testFixture struct {
	router    *Router
	primary   *fakePrimary
	secondary *fakeSecondary
	auditor   *recordingAuditor
	notifier  *recordingNotifier
	sessions  *session.MemoryStore
	gate      *fakeGate
}

func newTestRouter(t *testing.T) *testFixture {
	t.Helper()
	cfg := routerCategoryConfig()
	fixture := &testFixture{
		primary:   &fakePrimary{},
		secondary: &fakeSecondary{},
		auditor:   &recordingAuditor{},
		notifier:  &recordingNotifier{},
		sessions:  session.NewMemoryStore(),
		gate:      &fakeGate{decision: models.AccessDecision{Allowed: true}},
	}
	fixture.router = New(Options{
		Gate:       fixture.gate,
		Directory:  fakeDirectory{},
		Primary:    fixture.primary,
		Secondary:  fixture.secondary,
		Ranker:     ranking.New(ranking.NewLexicalScorer(), ranking.Config{Threshold: 0.2, MinResults: 1, Limit: 5}, nil),
		Extractor:  extractor.NewRuleBasedExtractor(cfg, nil),
		Categories: cfg,
		Assembler:  ticket.NewAssembler(cfg, nil),
		Auditor:    fixture.auditor,
		Notifier:   fixture.notifier,
		Sessions:   fixture.sessions,
	})
	return fixture
}

const richOutageQuery = "Our production database is down and users across every region cannot open the main dashboards at all right now"

func TestProcessAnswersFromPrimarySource(t *testing.T) {
	f := newTestRouter(t)
	f.primary.docs = []models.Document{
		{"title": "Export fails with timeout", "description": "Exports fail when the report is large"},
	}

	resp, err := f.router.Process(context.Background(), "jane@acmecorp.com", "export fails with timeout")
	require.NoError(t, err)

	assert.Equal(t, StateFormat, resp.State)
	assert.Equal(t, models.SourcePrimaryTracker, resp.Source)
	assert.Contains(t, resp.ResponseText, "Export fails with timeout")
	assert.Contains(t, resp.ResponseText, ticketOfferMarker)
	assert.Empty(t, resp.SearchErrors)
}

func TestProcessFallsBackToSecondarySource(t *testing.T) {
	f := newTestRouter(t)
	f.primary.err = errors.New("tracker unavailable")
	f.secondary.docs = []models.Document{
		{"title": "How to restart the export service", "content": "Restart the export service from the admin page"},
	}

	resp, err := f.router.Process(context.Background(), "jane@acmecorp.com", "restart export service")
	require.NoError(t, err)

	assert.Equal(t, StateFormat, resp.State)
	assert.Equal(t, models.SourceHelpCenter, resp.Source)
	require.Contains(t, resp.SearchErrors, string(models.SourcePrimaryTracker))
	assert.Contains(t, resp.SearchErrors[string(models.SourcePrimaryTracker)], "tracker unavailable")
}

func TestProcessBothSourcesFailingStillCreatesTicket(t *testing.T) {
	f := newTestRouter(t)
	f.primary.err = errors.New("tracker unavailable")
	f.secondary.err = errors.New("index not found")

	resp, err := f.router.Process(context.Background(), "jane@acmecorp.com", richOutageQuery)
	require.NoError(t, err)

	assert.Equal(t, StateCreateTicket, resp.State)
	assert.Len(t, resp.SearchErrors, 2)
	require.NotNil(t, resp.Ticket)
	assert.Equal(t, "INFRA", resp.Ticket.Category)
	assert.Equal(t, models.PriorityCritical, resp.Ticket.Priority)
	assert.Len(t, f.auditor.tickets, 1)
	assert.Len(t, f.notifier.tickets, 1)
}

func TestProcessBlockedQueryIsTerminal(t *testing.T) {
	f := newTestRouter(t)
	f.gate.decision = models.AccessDecision{
		Allowed:              false,
		BlockedOrganizations: []string{"Globex", "OtherCorp Systems"},
		Message:              "Your account with AcmeCorp Pharmaceuticals cannot query other organizations.",
	}
	f.primary.docs = []models.Document{{"title": "should never be searched"}}

	resp, err := f.router.Process(context.Background(), "jane@acmecorp.com", "what is OtherCorp running?")
	require.NoError(t, err)

	assert.Equal(t, StateBlocked, resp.State)
	assert.True(t, resp.Blocked)
	assert.Equal(t, []string{"Globex", "OtherCorp Systems"}, resp.BlockedOrgs)
	assert.Contains(t, resp.ResponseText, "AcmeCorp Pharmaceuticals")
	assert.Nil(t, resp.Ticket)
	assert.Empty(t, resp.Documents)
}

func TestProcessMidCompletenessStartsQuestionFlow(t *testing.T) {
	f := newTestRouter(t)

	resp, err := f.router.Process(context.Background(), "jane@acmecorp.com", "our server misbehaves")
	require.NoError(t, err)

	assert.Equal(t, StateAskQuestions, resp.State)
	require.NotNil(t, resp.PendingQuestion)
	assert.Equal(t, "environment", resp.PendingQuestion.Field)
	assert.Contains(t, resp.ResponseText, "suggested: Production")

	flow, err := f.sessions.Get(context.Background(), "jane@acmecorp.com")
	require.NoError(t, err)
	assert.Equal(t, "our server misbehaves", flow.OriginalQuery)
	assert.Equal(t, "INFRA", flow.Category)
}

func TestProcessQuestionFlowToTicket(t *testing.T) {
	f := newTestRouter(t)
	ctx := context.Background()
	user := "jane@acmecorp.com"

	resp, err := f.router.Process(ctx, user, "our server misbehaves")
	require.NoError(t, err)
	require.Equal(t, StateAskQuestions, resp.State)

	// Affirmation accepts the suggested environment.
	resp, err = f.router.Process(ctx, user, "yes")
	require.NoError(t, err)
	require.Equal(t, StateAskQuestions, resp.State)
	require.NotNil(t, resp.PendingQuestion)
	assert.Equal(t, "affected_area", resp.PendingQuestion.Field)

	resp, err = f.router.Process(ctx, user, "Database")
	require.NoError(t, err)

	assert.Equal(t, StateCreateTicket, resp.State)
	require.NotNil(t, resp.Ticket)
	assert.Equal(t, "Production", resp.Ticket.Environment)
	assert.Equal(t, "Database", resp.Ticket.AffectedArea)
	assert.Equal(t, "our server misbehaves", resp.Ticket.Description)

	_, err = f.sessions.Get(ctx, user)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestProcessStructuredReplyShortCircuitsFlow(t *testing.T) {
	f := newTestRouter(t)
	ctx := context.Background()
	user := "jane@acmecorp.com"

	resp, err := f.router.Process(ctx, user, "our server misbehaves")
	require.NoError(t, err)
	require.Equal(t, StateAskQuestions, resp.State)

	// One structured reply answers both outstanding questions.
	resp, err = f.router.Process(ctx, user, "Environment: Staging / Area: Database")
	require.NoError(t, err)

	assert.Equal(t, StateCreateTicket, resp.State)
	require.NotNil(t, resp.Ticket)
	assert.Equal(t, "Staging", resp.Ticket.Environment)
	assert.Equal(t, "Database", resp.Ticket.AffectedArea)
}

func TestProcessExpiredFlowSettlesPendingGauge(t *testing.T) {
	f := newTestRouter(t)
	ctx := context.Background()
	user := "jane@acmecorp.com"
	gauge := metrics.PendingQuestionFlows.WithLabelValues("INFRA")
	baseline := testutil.ToFloat64(gauge)

	resp, err := f.router.Process(ctx, user, "our server misbehaves")
	require.NoError(t, err)
	require.Equal(t, StateAskQuestions, resp.State)
	assert.InDelta(t, baseline+1, testutil.ToFloat64(gauge), 1e-9)

	// The store dropping the flow (TTL expiry) must not strand the gauge.
	require.NoError(t, f.sessions.Clear(ctx, user))

	resp, err = f.router.Process(ctx, user, "hi there")
	require.NoError(t, err)
	assert.Equal(t, StateForm, resp.State)
	assert.InDelta(t, baseline, testutil.ToFloat64(gauge), 1e-9)
}

func TestProcessVagueQueryRequiresForm(t *testing.T) {
	f := newTestRouter(t)

	resp, err := f.router.Process(context.Background(), "jane@acmecorp.com", "hi there")
	require.NoError(t, err)

	assert.Equal(t, StateForm, resp.State)
	assert.True(t, resp.RequiresForm)
	assert.Nil(t, resp.Ticket)
	assert.Nil(t, resp.PendingQuestion)
	assert.Empty(t, f.auditor.tickets)
}

func TestProcessExplicitTicketRequestSkipsSearch(t *testing.T) {
	f := newTestRouter(t)
	// Results exist, but an explicit request goes straight to the ticket path.
	f.primary.docs = []models.Document{{"title": "Production database is down"}}

	query := "please create a ticket: " + richOutageQuery
	resp, err := f.router.Process(context.Background(), "jane@acmecorp.com", query)
	require.NoError(t, err)

	assert.Equal(t, StateCreateTicket, resp.State)
	require.NotNil(t, resp.Ticket)
	assert.Equal(t, "INFRA", resp.Ticket.Category)
}

func TestProcessAffirmationAfterOfferCreatesTicket(t *testing.T) {
	f := newTestRouter(t)
	f.primary.docs = []models.Document{
		{"title": "Production database is down", "description": "Known outage report"},
	}
	ctx := context.Background()
	user := "jane@acmecorp.com"

	resp, err := f.router.Process(ctx, user, richOutageQuery)
	require.NoError(t, err)
	require.Equal(t, StateFormat, resp.State)
	require.Contains(t, resp.ResponseText, ticketOfferMarker)

	resp, err = f.router.Process(ctx, user, "yes please")
	require.NoError(t, err)

	assert.Equal(t, StateCreateTicket, resp.State)
	require.NotNil(t, resp.Ticket)
	assert.Equal(t, richOutageQuery, resp.Ticket.Description)
}

func TestProcessUnknownRequesterStillServed(t *testing.T) {
	f := newTestRouter(t)
	f.primary.docs = []models.Document{
		{"title": "Getting started", "description": "Getting started with the platform"},
	}

	resp, err := f.router.Process(context.Background(), "someone@nowhere.example", "getting started")
	require.NoError(t, err)
	assert.Equal(t, StateFormat, resp.State)
}
