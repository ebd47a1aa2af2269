package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// TicketService is the guarded state machine over ticket aggregates.
// Every mutation consults the access policy, applies the transition and
// persists through a conditional write so concurrent actors race safely.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	users      repository.UserRepository
	categories repository.CategoryRepository
	dispatcher events.Dispatcher
	clock      clock.Clock
	slaCfg     config.SLAConfig
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	CommentRepo  repository.CommentRepository
	UserRepo     repository.UserRepository
	CategoryRepo repository.CategoryRepository
	Dispatcher   events.Dispatcher
	Clock        clock.Clock
	SLA          config.SLAConfig
}

// NewTicketService constructs the service. A nil Clock falls back to the
// system clock.
func NewTicketService(deps TicketDependencies) *TicketService {
	c := deps.Clock
	if c == nil {
		c = clock.System()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		users:      deps.UserRepo,
		categories: deps.CategoryRepo,
		dispatcher: deps.Dispatcher,
		clock:      c,
		slaCfg:     deps.SLA,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	CategoryID  string
	Priority    domain.TicketPriority
	Images      []string
}

// Create files a new ticket for a client. The ticket starts Open with
// the configured SLA thresholds stamped on.
func (s *TicketService) Create(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if err := policy.Authorize(actor, policy.ActionCreate, nil, nil); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" || input.CategoryID == "" || input.Priority == "" {
		return nil, apperrors.NewValidationError("title, description, category and priority are required", nil)
	}
	if !domain.ValidPriority(input.Priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}

	exists, err := s.categories.Exists(ctx, input.CategoryID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !exists {
		return nil, apperrors.NewNotFound("category", map[string]any{"category_id": input.CategoryID})
	}

	ticket := &domain.Ticket{
		Title:              title,
		Description:        description,
		CategoryID:         input.CategoryID,
		Priority:           input.Priority,
		Status:             domain.TicketStatusOpen,
		CreatedBy:          actor.ID,
		Images:             input.Images,
		PickupSLAMinutes:   s.slaCfg.PickupMinutes,
		ResponseSLAMinutes: s.slaCfg.ResponseMinutes,
		CreatedAt:          s.clock.Now(),
	}
	if ticket.Images == nil {
		ticket.Images = []string{}
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketCreatedPayload{
			CategoryID: ticket.CategoryID,
			Priority:   ticket.Priority,
			Title:      ticket.Title,
		},
	})
	return ticket, nil
}

// Pick atomically claims an unpicked ticket for an agent or admin in the
// matching category and evaluates the pickup SLA against the pick
// moment. Exactly one of two concurrent picks succeeds; the loser gets a
// conflict.
func (s *TicketService) Pick(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionPick, ticket, nil); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ticket.PickedBy = &actor.ID
	ticket.PickedAt = &now
	ticket.Status = domain.TicketStatusInProgress
	if sla.PickupBreached(ticket.CreatedAt, now, ticket.PickupSLAMinutes) {
		ticket.FirstSLABreach = true
	}

	if err := s.tickets.Pick(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrTicketConflict) {
			return nil, apperrors.NewConflict("ticket already picked", map[string]any{
				"reason":    policy.ReasonAlreadyPicked,
				"ticket_id": ticket.ID,
			})
		}
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketPicked,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketPickedPayload{
			PickedBy:       actor.ID,
			FirstSLABreach: ticket.FirstSLABreach,
		},
	})
	if ticket.FirstSLABreach {
		s.publishSLABreach(ctx, ticket.ID, actor.ID, "pickup")
	}
	return ticket, nil
}

// AddComment records a staff comment. The first staff comment stamps
// FirstRespondedAt and evaluates the response SLA; later comments never
// re-evaluate or clear the flag.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.User, ticketID, content string) (*domain.Comment, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionComment, ticket, nil); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content required", nil)
	}

	firstResponse := ticket.FirstRespondedAt == nil
	if firstResponse {
		now := s.clock.Now()
		ticket.FirstRespondedAt = &now
		if sla.ResponseBreached(ticket.CreatedAt, now, sla.ResponseThresholdMinutes) {
			ticket.SecondSLABreach = true
		}
		if err := s.updateGuarded(ctx, ticket); err != nil {
			return nil, err
		}
	}

	comment := &domain.Comment{
		TicketID:  ticket.ID,
		Content:   content,
		CreatedBy: actor.ID,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCommented,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketCommentedPayload{
			CommentID:     comment.ID,
			FirstResponse: firstResponse,
		},
	})
	if firstResponse && ticket.SecondSLABreach {
		s.publishSLABreach(ctx, ticket.ID, actor.ID, "response")
	}
	return comment, nil
}

// EscalateByAgent escalates to a manager or admin.
func (s *TicketService) EscalateByAgent(ctx context.Context, actor *domain.User, ticketID, reason, targetID string) (*domain.Ticket, error) {
	return s.escalateToTarget(ctx, actor, policy.ActionEscalateByAgent, ticketID, reason, targetID)
}

// EscalateByManager escalates to an admin.
func (s *TicketService) EscalateByManager(ctx context.Context, actor *domain.User, ticketID, reason, targetID string) (*domain.Ticket, error) {
	return s.escalateToTarget(ctx, actor, policy.ActionEscalateByManager, ticketID, reason, targetID)
}

func (s *TicketService) escalateToTarget(ctx context.Context, actor *domain.User, action policy.Action, ticketID, reason, targetID string) (*domain.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" || targetID == "" {
		return nil, apperrors.NewValidationError("reason and target are required", nil)
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	target, err := s.loadUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, action, ticket, target); err != nil {
		return nil, err
	}

	ticket.AppendMovement(domain.MovementEscalated, reason, &target.ID, s.clock.Now())
	if err := s.updateGuarded(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishMovement(ctx, ticket.ID, actor.ID, events.EventTicketEscalated, domain.MovementEscalated, reason, &target.ID)
	return ticket, nil
}

// Escalate raises a target-less escalation on an in-progress ticket. The
// status is written back as InProgress even though it cannot have
// changed; the redundant write is part of the operation's contract.
func (s *TicketService) Escalate(ctx context.Context, actor *domain.User, ticketID, reason string) (*domain.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("reason required", nil)
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionEscalate, ticket, nil); err != nil {
		return nil, err
	}

	ticket.AppendMovement(domain.MovementEscalated, reason, nil, s.clock.Now())
	ticket.Status = domain.TicketStatusInProgress
	if err := s.updateGuarded(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishMovement(ctx, ticket.ID, actor.ID, events.EventTicketEscalated, domain.MovementEscalated, reason, nil)
	return ticket, nil
}

// Handover transfers an in-progress ticket to another agent. PickedBy is
// untouched; the new holder is derived from the movement trail.
func (s *TicketService) Handover(ctx context.Context, actor *domain.User, ticketID, reason, newAgentID string) (*domain.Ticket, error) {
	return s.transfer(ctx, actor, policy.ActionHandover, domain.MovementHandover, events.EventTicketHandedOver, ticketID, reason, newAgentID)
}

// Assign is the admin/manager directed transfer. It supersedes any prior
// escalation for ownership derivation.
func (s *TicketService) Assign(ctx context.Context, actor *domain.User, ticketID, reason, newAgentID string) (*domain.Ticket, error) {
	return s.transfer(ctx, actor, policy.ActionAssign, domain.MovementAssign, events.EventTicketAssigned, ticketID, reason, newAgentID)
}

func (s *TicketService) transfer(ctx context.Context, actor *domain.User, action policy.Action, kind domain.MovementKind, eventType events.EventType, ticketID, reason, newAgentID string) (*domain.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" || newAgentID == "" {
		return nil, apperrors.NewValidationError("reason and new agent are required", nil)
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	newAgent, err := s.loadUser(ctx, newAgentID)
	if err != nil {
		return nil, err
	}
	if newAgent.Role != domain.RoleAgent {
		return nil, apperrors.NewForbidden("transfer target must be an agent", map[string]any{
			"reason": policy.ReasonInvalidTarget,
			"role":   newAgent.Role,
		})
	}
	if err := policy.Authorize(actor, action, ticket, nil); err != nil {
		return nil, err
	}

	ticket.AppendMovement(kind, reason, &newAgent.ID, s.clock.Now())
	if err := s.updateGuarded(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishMovement(ctx, ticket.ID, actor.ID, eventType, kind, reason, &newAgent.ID)
	return ticket, nil
}

// Resolve marks a ticket resolved on behalf of any agent. Resolving an
// already-resolved ticket is a conflict.
func (s *TicketService) Resolve(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionResolve, ticket, nil); err != nil {
		return nil, err
	}
	return s.resolve(ctx, actor, ticket, nil)
}

// ResolveAsHolder resolves only when the caller is the current holder
// derived from the movement trail, and records them as resolver.
func (s *TicketService) ResolveAsHolder(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionResolveAsHolder, ticket, nil); err != nil {
		return nil, err
	}
	return s.resolve(ctx, actor, ticket, &actor.ID)
}

func (s *TicketService) resolve(ctx context.Context, actor *domain.User, ticket *domain.Ticket, resolvedBy *string) (*domain.Ticket, error) {
	if ticket.Status == domain.TicketStatusResolved {
		return nil, apperrors.NewConflict("ticket already resolved", map[string]any{
			"reason":    policy.ReasonWrongStatus,
			"ticket_id": ticket.ID,
		})
	}

	now := s.clock.Now()
	ticket.Status = domain.TicketStatusResolved
	ticket.ResolvedAt = &now
	ticket.ResolvedBy = resolvedBy
	if err := s.updateGuarded(ctx, ticket); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketResolved,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload:  events.TicketResolvedPayload{ResolvedBy: resolvedBy},
	})
	return ticket, nil
}

// GetTicket fetches one ticket with its comment thread. Clients may only
// read their own tickets; staff and managers read any.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, []domain.Comment, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if actor.Role == domain.RoleClient && ticket.CreatedBy != actor.ID {
		return nil, nil, apperrors.NewForbidden("not your ticket", map[string]any{
			"reason": policy.ReasonNotCurrentHolder,
		})
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return ticket, comments, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if ticketID == "" {
		return nil, apperrors.NewValidationError("ticket id required", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

func (s *TicketService) updateGuarded(ctx context.Context, ticket *domain.Ticket) error {
	if err := s.tickets.UpdateGuarded(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrTicketConflict) {
			return apperrors.NewConflict("ticket modified concurrently", map[string]any{
				"ticket_id": ticket.ID,
			})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *TicketService) publishMovement(ctx context.Context, ticketID, actorID string, eventType events.EventType, kind domain.MovementKind, reason string, movedTo *string) {
	s.publish(ctx, events.Event{
		Type:     eventType,
		TicketID: ticketID,
		ActorID:  actorID,
		Payload: events.TicketMovedPayload{
			Kind:    kind,
			Reason:  reason,
			MovedTo: movedTo,
		},
	})
}

func (s *TicketService) publishSLABreach(ctx context.Context, ticketID, actorID, clockName string) {
	s.publish(ctx, events.Event{
		Type:     events.EventSLABreached,
		TicketID: ticketID,
		ActorID:  actorID,
		Payload:  events.SLABreachedPayload{Clock: clockName},
	})
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
