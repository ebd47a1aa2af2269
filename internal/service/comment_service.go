package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// CommentService covers the thread operations outside the state machine:
// comment deletion and replies. Comment creation lives on TicketService
// because it drives the first-response SLA check.
type CommentService struct {
	comments repository.CommentRepository
	replies  repository.ReplyRepository
}

// NewCommentService builds the service.
func NewCommentService(comments repository.CommentRepository, replies repository.ReplyRepository) *CommentService {
	return &CommentService{comments: comments, replies: replies}
}

// DeleteComment removes a comment; only its author may do so.
func (s *CommentService) DeleteComment(ctx context.Context, actor *domain.User, commentID string) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("comment", map[string]any{"comment_id": commentID})
		}
		return apperrors.MapError(err)
	}
	if comment.CreatedBy != actor.ID {
		return apperrors.NewForbidden("only the author may delete a comment", nil)
	}
	return apperrors.MapError(s.comments.Delete(ctx, commentID))
}

// AddReply appends a reply under a comment.
func (s *CommentService) AddReply(ctx context.Context, actor *domain.User, commentID, content string) (*domain.Reply, error) {
	content = strings.TrimSpace(content)
	if content == "" || commentID == "" {
		return nil, apperrors.NewValidationError("comment id and content required", nil)
	}
	if _, err := s.comments.GetByID(ctx, commentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("comment", map[string]any{"comment_id": commentID})
		}
		return nil, apperrors.MapError(err)
	}

	reply := &domain.Reply{
		CommentID: commentID,
		Content:   content,
		CreatedBy: actor.ID,
	}
	if err := s.replies.Create(ctx, reply); err != nil {
		return nil, apperrors.MapError(err)
	}
	return reply, nil
}

// ListReplies returns the replies under a comment, oldest first.
func (s *CommentService) ListReplies(ctx context.Context, commentID string) ([]domain.Reply, error) {
	replies, err := s.replies.ListByComment(ctx, commentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return replies, nil
}

// RemoveReply deletes a reply; only its author may do so.
func (s *CommentService) RemoveReply(ctx context.Context, actor *domain.User, replyID string) error {
	reply, err := s.replies.GetByID(ctx, replyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("reply", map[string]any{"reply_id": replyID})
		}
		return apperrors.MapError(err)
	}
	if reply.CreatedBy != actor.ID {
		return apperrors.NewForbidden("only the author may delete a reply", nil)
	}
	return apperrors.MapError(s.replies.Delete(ctx, replyID))
}
