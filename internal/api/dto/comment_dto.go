package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// CreateReplyRequest payload.
type CreateReplyRequest struct {
	CommentID string `json:"comment_id"`
	Content   string `json:"content"`
}

// CommentResponse represents one thread comment.
type CommentResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	Content   string    `json:"content"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ReplyResponse represents a reply under a comment.
type ReplyResponse struct {
	ID        string    `json:"id"`
	CommentID string    `json:"comment_id"`
	Content   string    `json:"content"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCommentResponse maps a domain comment.
func NewCommentResponse(comment *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:        comment.ID,
		TicketID:  comment.TicketID,
		Content:   comment.Content,
		CreatedBy: comment.CreatedBy,
		CreatedAt: comment.CreatedAt,
	}
}

// NewReplyResponse maps a domain reply.
func NewReplyResponse(reply *domain.Reply) ReplyResponse {
	return ReplyResponse{
		ID:        reply.ID,
		CommentID: reply.CommentID,
		Content:   reply.Content,
		CreatedBy: reply.CreatedBy,
		CreatedAt: reply.CreatedAt,
	}
}
