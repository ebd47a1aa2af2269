package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ReplyRepository manages threaded replies under comments.
type ReplyRepository interface {
	Create(ctx context.Context, reply *domain.Reply) error
	GetByID(ctx context.Context, id string) (*domain.Reply, error)
	ListByComment(ctx context.Context, commentID string) ([]domain.Reply, error)
	Delete(ctx context.Context, id string) error
}

type replyRepository struct {
	pool *pgxpool.Pool
}

// NewReplyRepository builds the repository.
func NewReplyRepository(pool *pgxpool.Pool) ReplyRepository {
	return &replyRepository{pool: pool}
}

func (r *replyRepository) Create(ctx context.Context, reply *domain.Reply) error {
	const query = `
        INSERT INTO replies (comment_id, content, created_by)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		reply.CommentID,
		reply.Content,
		reply.CreatedBy,
	).Scan(&reply.ID, &reply.CreatedAt)
}

func (r *replyRepository) GetByID(ctx context.Context, id string) (*domain.Reply, error) {
	const query = `
        SELECT id, comment_id, content, created_by, created_at
        FROM replies WHERE id=$1`
	var reply domain.Reply
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&reply.ID,
		&reply.CommentID,
		&reply.Content,
		&reply.CreatedBy,
		&reply.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (r *replyRepository) ListByComment(ctx context.Context, commentID string) ([]domain.Reply, error) {
	const query = `
        SELECT id, comment_id, content, created_by, created_at
        FROM replies WHERE comment_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, commentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Reply
	for rows.Next() {
		var reply domain.Reply
		if err := rows.Scan(
			&reply.ID,
			&reply.CommentID,
			&reply.Content,
			&reply.CreatedBy,
			&reply.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, reply)
	}
	return result, rows.Err()
}

func (r *replyRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM replies WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
