package service

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// FilterKind selects one of the predefined ticket listings.
type FilterKind string

const (
	// Client listings.
	FilterMineOpen     FilterKind = "mine-open"
	FilterMineResolved FilterKind = "mine-resolved"
	// Agent listings.
	FilterCategoryOpen FilterKind = "category-open"
	FilterMyPicks      FilterKind = "my-picks"
	FilterHandedToMe   FilterKind = "handed-to-me"
	FilterAssignedToMe FilterKind = "assigned-to-me"
	FilterResolvedByMe FilterKind = "resolved-by-me"
	// Oversight listings.
	FilterEscalatedQueue FilterKind = "escalated-queue"
	FilterAll            FilterKind = "all"
)

var filterRoles = map[FilterKind][]domain.UserRole{
	FilterMineOpen:       {domain.RoleClient},
	FilterMineResolved:   {domain.RoleClient},
	FilterCategoryOpen:   {domain.RoleAgent, domain.RoleAdmin},
	FilterMyPicks:        {domain.RoleAgent, domain.RoleAdmin},
	FilterHandedToMe:     {domain.RoleAgent},
	FilterAssignedToMe:   {domain.RoleAgent},
	FilterResolvedByMe:   {domain.RoleAgent, domain.RoleAdmin},
	FilterEscalatedQueue: {domain.RoleAdmin, domain.RoleManager},
	FilterAll:            {domain.RoleAdmin},
}

// ListTickets evaluates the named derivation for the caller. Movement
// conditions that depend on position in the trail (last movement,
// not-superseded) are refined in memory with the domain projections on
// top of a coarse repository filter.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, kind FilterKind) ([]domain.Ticket, error) {
	roles, known := filterRoles[kind]
	if !known {
		return nil, apperrors.NewValidationError("unknown filter kind", map[string]any{"kind": kind})
	}
	if !roleIn(actor.Role, roles) {
		return nil, apperrors.NewForbidden("filter not available for role", map[string]any{
			"kind": kind,
			"role": actor.Role,
		})
	}

	escalated := domain.MovementEscalated
	handover := domain.MovementHandover
	assign := domain.MovementAssign

	var filter repository.TicketFilter
	var refine func(*domain.Ticket) bool

	switch kind {
	case FilterMineOpen:
		filter = repository.TicketFilter{
			CreatedBy: &actor.ID,
			Statuses:  []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress},
		}
	case FilterMineResolved:
		filter = repository.TicketFilter{
			CreatedBy: &actor.ID,
			Statuses:  []domain.TicketStatus{domain.TicketStatusResolved},
		}
	case FilterCategoryOpen:
		if actor.CategoryID == nil {
			return nil, apperrors.NewForbidden("agent has no category", map[string]any{"role": actor.Role})
		}
		filter = repository.TicketFilter{
			CategoryID: actor.CategoryID,
			Statuses:   []domain.TicketStatus{domain.TicketStatusOpen},
		}
	case FilterMyPicks:
		filter = repository.TicketFilter{
			PickedBy:             &actor.ID,
			Statuses:             []domain.TicketStatus{domain.TicketStatusInProgress},
			ExcludeMovementKinds: []domain.MovementKind{escalated, handover},
		}
	case FilterHandedToMe:
		filter = repository.TicketFilter{
			MovementKind:    &handover,
			MovementMovedTo: &actor.ID,
		}
		refine = func(t *domain.Ticket) bool {
			last := t.LastMovement()
			return last != nil && last.Kind == handover && last.MovedTo != nil && *last.MovedTo == actor.ID
		}
	case FilterAssignedToMe:
		filter = repository.TicketFilter{
			MovementKind:    &assign,
			MovementMovedTo: &actor.ID,
		}
		refine = func(t *domain.Ticket) bool {
			last := t.LastMovement()
			return last != nil && last.Kind == assign && last.MovedTo != nil && *last.MovedTo == actor.ID
		}
	case FilterResolvedByMe:
		filter = repository.TicketFilter{ResolvedBy: &actor.ID}
	case FilterEscalatedQueue:
		filter = repository.TicketFilter{
			MovementKind: &escalated,
			Statuses:     []domain.TicketStatus{domain.TicketStatusInProgress},
		}
		refine = func(t *domain.Ticket) bool { return t.IsEscalated() }
	case FilterAll:
		filter = repository.TicketFilter{}
	}

	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if refine == nil {
		return tickets, nil
	}

	filtered := make([]domain.Ticket, 0, len(tickets))
	for i := range tickets {
		if refine(&tickets[i]) {
			filtered = append(filtered, tickets[i])
		}
	}
	return filtered, nil
}

func roleIn(role domain.UserRole, roles []domain.UserRole) bool {
	for _, candidate := range roles {
		if candidate == role {
			return true
		}
	}
	return false
}
