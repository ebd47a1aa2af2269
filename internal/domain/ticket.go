package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	// TicketStatusReopened is reserved: ReopenCount exists on the aggregate
	// but no operation currently transitions into this state.
	TicketStatusReopened TicketStatus = "REOPENED"
)

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// MovementKind classifies entries in the ownership trail.
type MovementKind string

const (
	MovementEscalated MovementKind = "ESCALATED"
	MovementHandover  MovementKind = "HANDOVER"
	MovementAssign    MovementKind = "ASSIGN"
)

// Movement is one append-only entry in a ticket's ownership trail.
// MovedTo is nil only for a target-less escalation.
type Movement struct {
	Kind       MovementKind `json:"kind"`
	Reason     string       `json:"reason"`
	MovedTo    *string      `json:"moved_to,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Ticket is the aggregate for support requests. Ownership is not a single
// mutable field: it is derived from PickedBy plus the movement trail, see
// CurrentHolder.
type Ticket struct {
	ID          string
	Title       string
	Description string
	CategoryID  string
	Priority    TicketPriority
	Status      TicketStatus
	CreatedBy   string
	PickedBy    *string
	PickedAt    *time.Time
	Movements   []Movement
	Images      []string
	ReopenCount int

	FirstSLABreach     bool
	SecondSLABreach    bool
	PickupSLAMinutes   int
	ResponseSLAMinutes int
	FirstRespondedAt   *time.Time

	ResolvedAt *time.Time
	ResolvedBy *string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Version guards concurrent writes; bumped on every persisted mutation.
	Version int64
}

// CurrentHolder derives who is responsible for the ticket right now: the
// target of the most recent handover or assign movement, or PickedBy when
// no such movement exists. Returns nil for an unpicked ticket.
func (t *Ticket) CurrentHolder() *string {
	for i := len(t.Movements) - 1; i >= 0; i-- {
		switch t.Movements[i].Kind {
		case MovementHandover, MovementAssign:
			return t.Movements[i].MovedTo
		}
	}
	return t.PickedBy
}

// IsEscalated reports whether the most recent escalation is still in
// effect, i.e. not superseded by a later assign movement. Handovers do
// not clear escalation.
func (t *Ticket) IsEscalated() bool {
	for i := len(t.Movements) - 1; i >= 0; i-- {
		switch t.Movements[i].Kind {
		case MovementAssign:
			return false
		case MovementEscalated:
			return true
		}
	}
	return false
}

// HasMovementKind reports whether any movement of the given kind exists.
func (t *Ticket) HasMovementKind(kind MovementKind) bool {
	for _, m := range t.Movements {
		if m.Kind == kind {
			return true
		}
	}
	return false
}

// LastMovement returns the newest movement, or nil for an empty trail.
func (t *Ticket) LastMovement() *Movement {
	if len(t.Movements) == 0 {
		return nil
	}
	return &t.Movements[len(t.Movements)-1]
}

// AppendMovement records a new ownership/escalation event. The trail is
// append-only; existing entries are never changed or removed.
func (t *Ticket) AppendMovement(kind MovementKind, reason string, movedTo *string, at time.Time) {
	t.Movements = append(t.Movements, Movement{
		Kind:       kind,
		Reason:     reason,
		MovedTo:    movedTo,
		OccurredAt: at,
	})
}

// ValidPriority reports whether p is one of the known priorities.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}
