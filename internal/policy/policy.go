// Package policy maps (role, action, ticket state) to permit or deny.
// It is consulted by the ticket service before every mutation; denials
// always carry a structured reason, never a generic failure.
package policy

import (
	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// Action identifies a guarded ticket operation.
type Action string

const (
	ActionCreate            Action = "create"
	ActionPick              Action = "pick"
	ActionComment           Action = "comment"
	ActionEscalateByAgent   Action = "escalate_by_agent"
	ActionEscalateByManager Action = "escalate_by_manager"
	// ActionEscalate is the target-less escalation of an in-progress ticket.
	ActionEscalate        Action = "escalate"
	ActionHandover        Action = "handover"
	ActionAssign          Action = "assign"
	ActionResolve         Action = "resolve"
	ActionResolveAsHolder Action = "resolve_as_holder"
)

// Denial reason codes surfaced in DomainError details.
const (
	ReasonRoleMismatch     = "role_mismatch"
	ReasonCategoryMismatch = "category_mismatch"
	ReasonAlreadyPicked    = "already_picked"
	ReasonWrongStatus      = "wrong_status"
	ReasonNotCurrentHolder = "not_current_holder"
	ReasonInvalidTarget    = "invalid_target_role"
)

var allowedRoles = map[Action][]domain.UserRole{
	ActionCreate:            {domain.RoleClient},
	ActionPick:              {domain.RoleAgent, domain.RoleAdmin},
	ActionComment:           {domain.RoleAgent, domain.RoleAdmin},
	ActionEscalateByAgent:   {domain.RoleAgent},
	ActionEscalateByManager: {domain.RoleManager},
	ActionEscalate:          {domain.RoleAgent},
	ActionHandover:          {domain.RoleAgent},
	ActionAssign:            {domain.RoleAdmin, domain.RoleManager},
	ActionResolve:           {domain.RoleAgent},
	ActionResolveAsHolder:   {domain.RoleAgent},
}

// escalation targets per initiating action.
var allowedTargets = map[Action][]domain.UserRole{
	ActionEscalateByAgent:   {domain.RoleManager, domain.RoleAdmin},
	ActionEscalateByManager: {domain.RoleAdmin},
}

// Authorize decides whether actor may perform action on ticket. The
// ticket may be nil for create; target is only consulted for escalation
// actions.
func Authorize(actor *domain.User, action Action, ticket *domain.Ticket, target *domain.User) error {
	if actor == nil {
		return apperrors.NewForbidden("actor required", map[string]any{"reason": ReasonRoleMismatch})
	}
	if !roleAllowed(actor.Role, action) {
		return apperrors.NewForbidden("role not permitted for action", map[string]any{
			"reason": ReasonRoleMismatch,
			"role":   actor.Role,
			"action": action,
		})
	}

	if targets, ok := allowedTargets[action]; ok {
		if target == nil || !roleIn(target.Role, targets) {
			return apperrors.NewForbidden("invalid escalation target", map[string]any{
				"reason": ReasonInvalidTarget,
				"action": action,
			})
		}
	}

	switch action {
	case ActionPick:
		if ticket.PickedBy != nil {
			return apperrors.NewConflict("ticket already picked", map[string]any{
				"reason":    ReasonAlreadyPicked,
				"ticket_id": ticket.ID,
			})
		}
		if actor.CategoryID == nil || *actor.CategoryID != ticket.CategoryID {
			return apperrors.NewForbidden("agent category does not match ticket category", map[string]any{
				"reason":          ReasonCategoryMismatch,
				"ticket_category": ticket.CategoryID,
			})
		}
	case ActionHandover, ActionAssign, ActionEscalate:
		if ticket.Status != domain.TicketStatusInProgress {
			return apperrors.NewConflict("ticket is not in progress", map[string]any{
				"reason": ReasonWrongStatus,
				"status": ticket.Status,
			})
		}
	case ActionResolveAsHolder:
		holder := ticket.CurrentHolder()
		if holder == nil || *holder != actor.ID {
			return apperrors.NewForbidden("caller is not the current holder", map[string]any{
				"reason": ReasonNotCurrentHolder,
			})
		}
	}
	return nil
}

func roleAllowed(role domain.UserRole, action Action) bool {
	return roleIn(role, allowedRoles[action])
}

func roleIn(role domain.UserRole, roles []domain.UserRole) bool {
	for _, candidate := range roles {
		if candidate == role {
			return true
		}
	}
	return false
}
