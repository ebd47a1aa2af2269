package domain

import "time"

// Comment is a staff response on a ticket thread. Comments live outside
// the ticket aggregate; the ticket only references them by ticket id.
type Comment struct {
	ID        string
	TicketID  string
	Content   string
	CreatedBy string
	CreatedAt time.Time
}

// Reply is a threaded child of a comment.
type Reply struct {
	ID        string
	CommentID string
	Content   string
	CreatedBy string
	CreatedAt time.Time
}
