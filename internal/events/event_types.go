package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated    EventType = "ticket_created"
	EventTicketPicked     EventType = "ticket_picked"
	EventTicketCommented  EventType = "ticket_commented"
	EventTicketEscalated  EventType = "ticket_escalated"
	EventTicketHandedOver EventType = "ticket_handed_over"
	EventTicketAssigned   EventType = "ticket_assigned"
	EventTicketResolved   EventType = "ticket_resolved"
	EventSLABreached      EventType = "sla_breached"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CategoryID string                `json:"category_id"`
	Priority   domain.TicketPriority `json:"priority"`
	Title      string                `json:"title"`
}

// TicketPickedPayload payload.
type TicketPickedPayload struct {
	PickedBy       string `json:"picked_by"`
	FirstSLABreach bool   `json:"first_sla_breach"`
}

// TicketCommentedPayload payload.
type TicketCommentedPayload struct {
	CommentID     string `json:"comment_id"`
	FirstResponse bool   `json:"first_response"`
}

// TicketMovedPayload covers escalation, handover and assignment.
type TicketMovedPayload struct {
	Kind    domain.MovementKind `json:"kind"`
	Reason  string              `json:"reason"`
	MovedTo *string             `json:"moved_to,omitempty"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	ResolvedBy *string `json:"resolved_by,omitempty"`
}

// SLABreachedPayload identifies which clock was violated.
type SLABreachedPayload struct {
	Clock string `json:"clock"` // "pickup" or "response"
}
