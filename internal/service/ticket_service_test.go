package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

func strPtr(s string) *string { return &s }

// testClock steps time under test control.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock { return &testClock{now: start} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc        *TicketService
	tickets    *fakeTicketRepo
	comments   *fakeCommentRepo
	users      *fakeUserRepo
	dispatcher *recordingDispatcher
	clock      *testClock

	client  *domain.User
	agent   *domain.User
	agent2  *domain.User
	manager *domain.User
	admin   *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	f := &fixture{
		tickets:    newFakeTicketRepo(),
		comments:   newFakeCommentRepo(),
		dispatcher: &recordingDispatcher{},
		clock:      newTestClock(start),
		client:     &domain.User{ID: "client-1", Role: domain.RoleClient},
		agent:      &domain.User{ID: "agent-1", Role: domain.RoleAgent, CategoryID: strPtr("cat-1")},
		agent2:     &domain.User{ID: "agent-2", Role: domain.RoleAgent, CategoryID: strPtr("cat-1")},
		manager:    &domain.User{ID: "manager-1", Role: domain.RoleManager},
		admin:      &domain.User{ID: "admin-1", Role: domain.RoleAdmin},
	}
	f.users = newFakeUserRepo(f.client, f.agent, f.agent2, f.manager, f.admin)
	f.svc = NewTicketService(TicketDependencies{
		TicketRepo:   f.tickets,
		CommentRepo:  f.comments,
		UserRepo:     f.users,
		CategoryRepo: newFakeCategoryRepo("cat-1", "cat-2"),
		Dispatcher:   f.dispatcher,
		Clock:        clock.Func(f.clock.Now),
		SLA:          config.SLAConfig{PickupMinutes: 10, ResponseMinutes: 10},
	})
	return f
}

func (f *fixture) createTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.Create(context.Background(), f.client, TicketCreateInput{
		Title:       "printer on fire",
		Description: "smoke everywhere",
		CategoryID:  "cat-1",
		Priority:    domain.TicketPriorityHigh,
	})
	require.NoError(t, err)
	return ticket
}

func requireDomainError(t *testing.T, err error, code string, status int) *apperrors.DomainError {
	t.Helper()
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr), "expected DomainError, got %v", err)
	assert.Equal(t, code, domainErr.Code)
	assert.Equal(t, status, domainErr.HTTPStatus)
	return domainErr
}

func TestCreateTicket(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)

	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, "client-1", ticket.CreatedBy)
	assert.Equal(t, 10, ticket.PickupSLAMinutes)
	assert.Equal(t, 10, ticket.ResponseSLAMinutes)
	assert.Nil(t, ticket.PickedBy)
	assert.False(t, ticket.FirstSLABreach)
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, f.dispatcher.typesSeen())
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.client, TicketCreateInput{Title: "  ", Description: "d", CategoryID: "cat-1", Priority: domain.TicketPriorityLow})
	requireDomainError(t, err, "VALIDATION_FAILED", http.StatusBadRequest)

	_, err = f.svc.Create(ctx, f.client, TicketCreateInput{Title: "t", Description: "d", CategoryID: "cat-1", Priority: "URGENT"})
	requireDomainError(t, err, "VALIDATION_FAILED", http.StatusBadRequest)

	_, err = f.svc.Create(ctx, f.client, TicketCreateInput{Title: "t", Description: "d", CategoryID: "cat-404", Priority: domain.TicketPriorityLow})
	requireDomainError(t, err, "NOT_FOUND", http.StatusNotFound)

	_, err = f.svc.Create(ctx, f.agent, TicketCreateInput{Title: "t", Description: "d", CategoryID: "cat-1", Priority: domain.TicketPriorityLow})
	requireDomainError(t, err, "FORBIDDEN", http.StatusForbidden)
}

func TestPickWithinSLA(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)

	f.clock.Advance(5 * time.Minute)
	picked, err := f.svc.Pick(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusInProgress, picked.Status)
	require.NotNil(t, picked.PickedBy)
	assert.Equal(t, "agent-1", *picked.PickedBy)
	assert.False(t, picked.FirstSLABreach)
	assert.Equal(t, []events.EventType{events.EventTicketCreated, events.EventTicketPicked}, f.dispatcher.typesSeen())
}

func TestPickLateFlagsFirstBreach(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)

	f.clock.Advance(15 * time.Minute)
	picked, err := f.svc.Pick(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)

	assert.True(t, picked.FirstSLABreach)
	assert.Contains(t, f.dispatcher.typesSeen(), events.EventSLABreached)
}

func TestPickAtExactThresholdIsNotBreach(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)

	f.clock.Advance(10 * time.Minute)
	picked, err := f.svc.Pick(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)
	assert.False(t, picked.FirstSLABreach)
}

func TestPickCategoryMismatch(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)

	outsider := &domain.User{ID: "agent-9", Role: domain.RoleAgent, CategoryID: strPtr("cat-2")}
	_, err := f.svc.Pick(context.Background(), outsider, ticket.ID)
	domainErr := requireDomainError(t, err, "FORBIDDEN", http.StatusForbidden)
	assert.Equal(t, policy.ReasonCategoryMismatch, domainErr.Details["reason"])
}

func TestPickAlreadyPicked(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)

	_, err := f.svc.Pick(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)

	_, err = f.svc.Pick(context.Background(), f.agent2, ticket.ID)
	domainErr := requireDomainError(t, err, "CONFLICT", http.StatusConflict)
	assert.Equal(t, policy.ReasonAlreadyPicked, domainErr.Details["reason"])
}

func TestConcurrentPickExactlyOneWinner(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)

	var wg sync.WaitGroup
	results := make([]error, 2)
	actors := []*domain.User{f.agent, f.agent2}
	for i := range actors {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.Pick(context.Background(), actors[i], ticket.ID)
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		var domainErr *apperrors.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "CONFLICT", domainErr.Code)
		conflicts++
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PickedBy)
}

func TestAddCommentFirstResponse(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	f.clock.Advance(30 * time.Second)
	_, err := f.svc.Pick(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)

	f.clock.Advance(15 * time.Second)
	comment, err := f.svc.AddComment(context.Background(), f.agent, ticket.ID, "looking into it")
	require.NoError(t, err)
	assert.NotEmpty(t, comment.ID)

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FirstRespondedAt)
	assert.False(t, stored.SecondSLABreach, "response 45s after creation is inside the 1 minute window")
}

func TestAddCommentLateFlagsSecondBreach(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	f.clock.Advance(30 * time.Second)
	_, err := f.svc.Pick(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	_, err = f.svc.AddComment(context.Background(), f.agent, ticket.ID, "sorry for the delay")
	require.NoError(t, err)

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.True(t, stored.SecondSLABreach)
	assert.Contains(t, f.dispatcher.typesSeen(), events.EventSLABreached)
}

func TestAddCommentOnlyFirstEvaluates(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	f.clock.Advance(10 * time.Second)
	_, err := f.svc.Pick(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)

	_, err = f.svc.AddComment(context.Background(), f.agent, ticket.ID, "on it")
	require.NoError(t, err)
	first, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	firstAt := *first.FirstRespondedAt
	assert.False(t, first.SecondSLABreach)

	f.clock.Advance(time.Hour)
	_, err = f.svc.AddComment(context.Background(), f.agent, ticket.ID, "still on it")
	require.NoError(t, err)

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, firstAt, *stored.FirstRespondedAt)
	assert.False(t, stored.SecondSLABreach, "later comments never re-evaluate the response clock")
}

func TestEscalateByAgentRecordsMovement(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	_, err := f.svc.Pick(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)

	escalated, err := f.svc.EscalateByAgent(context.Background(), f.agent, ticket.ID, "needs approval", "manager-1")
	require.NoError(t, err)

	require.Len(t, escalated.Movements, 1)
	assert.Equal(t, domain.MovementEscalated, escalated.Movements[0].Kind)
	require.NotNil(t, escalated.Movements[0].MovedTo)
	assert.Equal(t, "manager-1", *escalated.Movements[0].MovedTo)
	assert.True(t, escalated.IsEscalated())

	holder := escalated.CurrentHolder()
	require.NotNil(t, holder)
	assert.Equal(t, "agent-1", *holder, "escalation does not move ownership")
}

func TestEscalateByAgentInvalidTarget(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	_, err := f.svc.Pick(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)

	_, err = f.svc.EscalateByAgent(context.Background(), f.agent, ticket.ID, "help", "agent-2")
	domainErr := requireDomainError(t, err, "FORBIDDEN", http.StatusForbidden)
	assert.Equal(t, policy.ReasonInvalidTarget, domainErr.Details["reason"])
}

func TestEscalateByManagerTargetsAdmin(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	_, err := f.svc.Pick(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)

	_, err = f.svc.EscalateByManager(context.Background(), f.manager, ticket.ID, "critical client", "manager-1")
	requireDomainError(t, err, "FORBIDDEN", http.StatusForbidden)

	escalated, err := f.svc.EscalateByManager(context.Background(), f.manager, ticket.ID, "critical client", "admin-1")
	require.NoError(t, err)
	assert.True(t, escalated.IsEscalated())
}

func TestTargetlessEscalate(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	_, err := f.svc.Pick(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)

	escalated, err := f.svc.Escalate(context.Background(), f.agent, ticket.ID, "no manager available")
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusInProgress, escalated.Status)
	require.Len(t, escalated.Movements, 1)
	assert.Nil(t, escalated.Movements[0].MovedTo)
	assert.True(t, escalated.IsEscalated())
}

func TestEscalateRequiresInProgress(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)

	_, err := f.svc.Escalate(context.Background(), f.agent, ticket.ID, "too slow")
	domainErr := requireDomainError(t, err, "CONFLICT", http.StatusConflict)
	assert.Equal(t, policy.ReasonWrongStatus, domainErr.Details["reason"])
}

func TestHandoverMovesHolder(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	_, err := f.svc.Pick(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)

	moved, err := f.svc.Handover(context.Background(), f.agent, ticket.ID, "going on leave", "agent-2")
	require.NoError(t, err)

	require.NotNil(t, moved.PickedBy)
	assert.Equal(t, "agent-1", *moved.PickedBy, "picked_by is immutable history")
	holder := moved.CurrentHolder()
	require.NotNil(t, holder)
	assert.Equal(t, "agent-2", *holder)
	assert.Contains(t, f.dispatcher.typesSeen(), events.EventTicketHandedOver)
}

func TestHandoverTargetMustBeAgent(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	_, err := f.svc.Pick(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)

	_, err = f.svc.Handover(context.Background(), f.agent, ticket.ID, "leave", "manager-1")
	domainErr := requireDomainError(t, err, "FORBIDDEN", http.StatusForbidden)
	assert.Equal(t, policy.ReasonInvalidTarget, domainErr.Details["reason"])
}

func TestAssignSupersedesEscalation(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	_, err := f.svc.Pick(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)
	_, err = f.svc.EscalateByAgent(context.Background(), f.agent, ticket.ID, "stuck", "manager-1")
	require.NoError(t, err)

	assigned, err := f.svc.Assign(context.Background(), f.admin, ticket.ID, "rebalancing", "agent-2")
	require.NoError(t, err)

	assert.False(t, assigned.IsEscalated())
	holder := assigned.CurrentHolder()
	require.NotNil(t, holder)
	assert.Equal(t, "agent-2", *holder)
}

func TestResolveDoesNotRecordResolver(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	_, err := f.svc.Pick(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)

	resolved, err := f.svc.Resolve(context.Background(), f.agent2, ticket.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Nil(t, resolved.ResolvedBy)
}

func TestResolveAsHolderRecordsResolver(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	_, err := f.svc.Pick(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)

	resolved, err := f.svc.ResolveAsHolder(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)

	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, "agent-1", *resolved.ResolvedBy)
}

func TestResolveAsHolderDeniedForNonHolder(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	_, err := f.svc.Pick(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)
	_, err = f.svc.Handover(context.Background(), f.agent, ticket.ID, "leave", "agent-2")
	require.NoError(t, err)

	_, err = f.svc.ResolveAsHolder(context.Background(), f.agent, ticket.ID)
	domainErr := requireDomainError(t, err, "FORBIDDEN", http.StatusForbidden)
	assert.Equal(t, policy.ReasonNotCurrentHolder, domainErr.Details["reason"])

	_, err = f.svc.ResolveAsHolder(context.Background(), f.agent2, ticket.ID)
	require.NoError(t, err)
}

func TestResolveAlreadyResolvedConflicts(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	_, err := f.svc.Pick(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)
	_, err = f.svc.Resolve(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)

	_, err = f.svc.Resolve(context.Background(), f.agent, ticket.ID)
	requireDomainError(t, err, "CONFLICT", http.StatusConflict)
}

func TestGetTicketClientOwnership(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)

	_, _, err := f.svc.GetTicket(context.Background(), f.client, ticket.ID)
	require.NoError(t, err)

	stranger := &domain.User{ID: "client-2", Role: domain.RoleClient}
	_, _, err = f.svc.GetTicket(context.Background(), stranger, ticket.ID)
	requireDomainError(t, err, "FORBIDDEN", http.StatusForbidden)

	_, _, err = f.svc.GetTicket(context.Background(), f.manager, ticket.ID)
	require.NoError(t, err)
}

func TestGetTicketNotFound(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.GetTicket(context.Background(), f.admin, "ticket-404")
	requireDomainError(t, err, "NOT_FOUND", http.StatusNotFound)
}

func TestLifecycleJourney(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t)

	f.clock.Advance(15 * time.Minute)
	picked, err := f.svc.Pick(ctx, f.agent, ticket.ID)
	require.NoError(t, err)
	assert.True(t, picked.FirstSLABreach)

	f.clock.Advance(time.Minute)
	_, err = f.svc.AddComment(ctx, f.agent, ticket.ID, "first response")
	require.NoError(t, err)

	_, err = f.svc.Handover(ctx, f.agent, ticket.ID, "handing off", "agent-2")
	require.NoError(t, err)

	resolved, err := f.svc.ResolveAsHolder(ctx, f.agent2, ticket.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusResolved, resolved.Status)
	assert.True(t, resolved.FirstSLABreach)
	assert.True(t, resolved.SecondSLABreach, "16 minutes to first response breaches the response clock")
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, "agent-2", *resolved.ResolvedBy)

	types := f.dispatcher.typesSeen()
	assert.Contains(t, types, events.EventTicketCreated)
	assert.Contains(t, types, events.EventTicketPicked)
	assert.Contains(t, types, events.EventTicketCommented)
	assert.Contains(t, types, events.EventTicketHandedOver)
	assert.Contains(t, types, events.EventTicketResolved)
}
