package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	CategoryID  string                `json:"category_id"`
	Priority    domain.TicketPriority `json:"priority"`
	Images      []string              `json:"images"`
}

// MoveTicketRequest covers escalation, handover and assignment payloads.
// TargetID is the escalation recipient or the receiving agent; it may be
// empty only for the target-less escalate endpoint.
type MoveTicketRequest struct {
	Reason   string `json:"reason"`
	TargetID string `json:"target_id"`
}

// MovementResponse is one trail entry.
type MovementResponse struct {
	Kind       domain.MovementKind `json:"kind"`
	Reason     string              `json:"reason"`
	MovedTo    *string             `json:"moved_to,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// TicketSummary response.
type TicketSummary struct {
	ID              string                `json:"id"`
	Title           string                `json:"title"`
	CategoryID      string                `json:"category_id"`
	Priority        domain.TicketPriority `json:"priority"`
	Status          domain.TicketStatus   `json:"status"`
	CreatedBy       string                `json:"created_by"`
	PickedBy        *string               `json:"picked_by,omitempty"`
	CurrentHolder   *string               `json:"current_holder,omitempty"`
	Escalated       bool                  `json:"escalated"`
	FirstSLABreach  bool                  `json:"first_sla_breach"`
	SecondSLABreach bool                  `json:"second_sla_breach"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info including the movement
// trail and comment thread.
type TicketDetailResponse struct {
	TicketSummary
	Description      string             `json:"description"`
	Images           []string           `json:"images"`
	Movements        []MovementResponse `json:"movements"`
	Comments         []CommentResponse  `json:"comments"`
	ReopenCount      int                `json:"reopen_count"`
	PickedAt         *time.Time         `json:"picked_at,omitempty"`
	FirstRespondedAt *time.Time         `json:"first_responded_at,omitempty"`
	ResolvedAt       *time.Time         `json:"resolved_at,omitempty"`
	ResolvedBy       *string            `json:"resolved_by,omitempty"`
}

// NewTicketSummary maps the domain aggregate to its summary view.
func NewTicketSummary(ticket *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:              ticket.ID,
		Title:           ticket.Title,
		CategoryID:      ticket.CategoryID,
		Priority:        ticket.Priority,
		Status:          ticket.Status,
		CreatedBy:       ticket.CreatedBy,
		PickedBy:        ticket.PickedBy,
		CurrentHolder:   ticket.CurrentHolder(),
		Escalated:       ticket.IsEscalated(),
		FirstSLABreach:  ticket.FirstSLABreach,
		SecondSLABreach: ticket.SecondSLABreach,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
	}
}

// NewTicketDetail maps the aggregate plus its comment thread to the full
// view.
func NewTicketDetail(ticket *domain.Ticket, comments []domain.Comment) TicketDetailResponse {
	movements := make([]MovementResponse, 0, len(ticket.Movements))
	for _, m := range ticket.Movements {
		movements = append(movements, MovementResponse{
			Kind:       m.Kind,
			Reason:     m.Reason,
			MovedTo:    m.MovedTo,
			OccurredAt: m.OccurredAt,
		})
	}
	commentResponses := make([]CommentResponse, 0, len(comments))
	for i := range comments {
		commentResponses = append(commentResponses, NewCommentResponse(&comments[i]))
	}
	return TicketDetailResponse{
		TicketSummary:    NewTicketSummary(ticket),
		Description:      ticket.Description,
		Images:           ticket.Images,
		Movements:        movements,
		Comments:         commentResponses,
		ReopenCount:      ticket.ReopenCount,
		PickedAt:         ticket.PickedAt,
		FirstRespondedAt: ticket.FirstRespondedAt,
		ResolvedAt:       ticket.ResolvedAt,
		ResolvedBy:       ticket.ResolvedBy,
	}
}

// NewTicketSummaries maps a slice of aggregates.
func NewTicketSummaries(tickets []domain.Ticket) []TicketSummary {
	result := make([]TicketSummary, 0, len(tickets))
	for i := range tickets {
		result = append(result, NewTicketSummary(&tickets[i]))
	}
	return result
}
