package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ErrTicketConflict signals a guard-predicate write that matched zero
// rows: the ticket was picked or mutated concurrently.
var ErrTicketConflict = fmt.Errorf("ticket state changed concurrently")

// TicketFilter captures listing parameters. Movement conditions use
// JSONB containment and are coarse: callers needing positional
// semantics (last movement, not-superseded) refine in memory with the
// domain projections.
type TicketFilter struct {
	CreatedBy            *string
	PickedBy             *string
	CategoryID           *string
	ResolvedBy           *string
	Statuses             []domain.TicketStatus
	MovementKind         *domain.MovementKind
	MovementMovedTo      *string
	ExcludeMovementKinds []domain.MovementKind
	SecondSLABreach      *bool
	Limit                int
	Offset               int
}

// TicketRepository encapsulates ticket persistence. Pick and
// UpdateGuarded are conditional writes: zero affected rows surfaces as
// ErrTicketConflict so races lose cleanly instead of overwriting.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// Pick atomically claims an unpicked ticket: the update predicate
	// requires picked_by IS NULL so exactly one concurrent caller wins.
	Pick(ctx context.Context, ticket *domain.Ticket) error
	// UpdateGuarded persists the aggregate keyed on the version the
	// caller loaded, bumping it on success.
	UpdateGuarded(ctx context.Context, ticket *domain.Ticket) error
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, title, description, category_id, priority, status, created_by,
               picked_by, picked_at, movements, images, reopen_count,
               first_sla_breach, second_sla_breach, pickup_sla_minutes, response_sla_minutes,
               first_responded_at, resolved_at, resolved_by, version, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	movements, err := marshalMovements(ticket.Movements)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (title, description, category_id, priority, status, created_by,
                             movements, images, pickup_sla_minutes, response_sla_minutes, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, version, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.CategoryID,
		ticket.Priority,
		ticket.Status,
		ticket.CreatedBy,
		movements,
		ticket.Images,
		ticket.PickupSLAMinutes,
		ticket.ResponseSLAMinutes,
		ticket.CreatedAt,
	).Scan(&ticket.ID, &ticket.Version, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanTicket(row)
}

func (r *ticketRepository) Pick(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET picked_by=$1, picked_at=$2, status=$3, first_sla_breach=$4,
               version=version+1, updated_at=NOW()
        WHERE id=$5 AND picked_by IS NULL
        RETURNING version, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.PickedBy,
		ticket.PickedAt,
		ticket.Status,
		ticket.FirstSLABreach,
		ticket.ID,
	).Scan(&ticket.Version, &ticket.UpdatedAt)
	if err == pgx.ErrNoRows {
		return ErrTicketConflict
	}
	return err
}

func (r *ticketRepository) UpdateGuarded(ctx context.Context, ticket *domain.Ticket) error {
	movements, err := marshalMovements(ticket.Movements)
	if err != nil {
		return err
	}
	const query = `
        UPDATE tickets SET status=$1, movements=$2, reopen_count=$3,
               first_sla_breach=$4, second_sla_breach=$5,
               first_responded_at=$6, resolved_at=$7, resolved_by=$8,
               version=version+1, updated_at=NOW()
        WHERE id=$9 AND version=$10
        RETURNING version, updated_at`
	err = r.pool.QueryRow(ctx, query,
		ticket.Status,
		movements,
		ticket.ReopenCount,
		ticket.FirstSLABreach,
		ticket.SecondSLABreach,
		ticket.FirstRespondedAt,
		ticket.ResolvedAt,
		ticket.ResolvedBy,
		ticket.ID,
		ticket.Version,
	).Scan(&ticket.Version, &ticket.UpdatedAt)
	if err == pgx.ErrNoRows {
		return ErrTicketConflict
	}
	return err
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.PickedBy != nil {
		args = append(args, *filter.PickedBy)
		clauses = append(clauses, fmt.Sprintf("picked_by=$%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("category_id=$%d", len(args)))
	}
	if filter.ResolvedBy != nil {
		args = append(args, *filter.ResolvedBy)
		clauses = append(clauses, fmt.Sprintf("resolved_by=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.MovementKind != nil {
		probe := movementProbe(*filter.MovementKind, filter.MovementMovedTo)
		args = append(args, probe)
		clauses = append(clauses, fmt.Sprintf("movements @> $%d", len(args)))
	}
	for _, kind := range filter.ExcludeMovementKinds {
		probe := movementProbe(kind, nil)
		args = append(args, probe)
		clauses = append(clauses, fmt.Sprintf("NOT movements @> $%d", len(args)))
	}
	if filter.SecondSLABreach != nil {
		args = append(args, *filter.SecondSLABreach)
		clauses = append(clauses, fmt.Sprintf("second_sla_breach=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

// movementProbe builds the JSONB containment operand for movement
// filters.
func movementProbe(kind domain.MovementKind, movedTo *string) []byte {
	entry := map[string]any{"kind": kind}
	if movedTo != nil {
		entry["moved_to"] = *movedTo
	}
	probe, _ := json.Marshal([]map[string]any{entry})
	return probe
}

func marshalMovements(movements []domain.Movement) ([]byte, error) {
	if movements == nil {
		movements = []domain.Movement{}
	}
	return json.Marshal(movements)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var ticket domain.Ticket
	var movements []byte
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.CategoryID,
		&ticket.Priority,
		&ticket.Status,
		&ticket.CreatedBy,
		&ticket.PickedBy,
		&ticket.PickedAt,
		&movements,
		&ticket.Images,
		&ticket.ReopenCount,
		&ticket.FirstSLABreach,
		&ticket.SecondSLABreach,
		&ticket.PickupSLAMinutes,
		&ticket.ResponseSLAMinutes,
		&ticket.FirstRespondedAt,
		&ticket.ResolvedAt,
		&ticket.ResolvedBy,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(movements) > 0 {
		if err := json.Unmarshal(movements, &ticket.Movements); err != nil {
			return nil, fmt.Errorf("decode movements: %w", err)
		}
	}
	return &ticket, nil
}
