package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// AgentCounters aggregates per-agent workload numbers for the dashboard.
type AgentCounters struct {
	Picked        int64 `json:"picked"`
	Resolved      int64 `json:"resolved"`
	EscalatedAway int64 `json:"escalated_away"`
}

// LeaderboardEntry ranks agents by resolved ticket count.
type LeaderboardEntry struct {
	AgentID  string `json:"agent_id"`
	Resolved int64  `json:"resolved"`
}

// CategoryCount groups ticket totals per category.
type CategoryCount struct {
	CategoryID string `json:"category_id"`
	Total      int64  `json:"total"`
}

// TicketStatsRepository serves the read-only dashboard aggregations.
type TicketStatsRepository interface {
	AgentCounters(ctx context.Context, agentID string) (*AgentCounters, error)
	ResolvedLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	CountByCategory(ctx context.Context) ([]CategoryCount, error)
	ListSecondSLABreached(ctx context.Context, limit int) ([]domain.Ticket, error)
}

type ticketStatsRepository struct {
	pool *pgxpool.Pool
}

// NewTicketStatsRepository builds the repository.
func NewTicketStatsRepository(pool *pgxpool.Pool) TicketStatsRepository {
	return &ticketStatsRepository{pool: pool}
}

func (r *ticketStatsRepository) AgentCounters(ctx context.Context, agentID string) (*AgentCounters, error) {
	const query = `
        SELECT
            COUNT(*) FILTER (WHERE picked_by=$1) AS picked,
            COUNT(*) FILTER (WHERE resolved_by=$1) AS resolved,
            COUNT(*) FILTER (WHERE picked_by=$1 AND movements @> '[{"kind":"ESCALATED"}]') AS escalated_away
        FROM tickets`
	var counters AgentCounters
	if err := r.pool.QueryRow(ctx, query, agentID).Scan(
		&counters.Picked,
		&counters.Resolved,
		&counters.EscalatedAway,
	); err != nil {
		return nil, err
	}
	return &counters, nil
}

func (r *ticketStatsRepository) ResolvedLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
        SELECT resolved_by, COUNT(*) AS total
        FROM tickets
        WHERE resolved_by IS NOT NULL
        GROUP BY resolved_by ORDER BY total DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LeaderboardEntry
	for rows.Next() {
		var entry LeaderboardEntry
		if err := rows.Scan(&entry.AgentID, &entry.Resolved); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *ticketStatsRepository) CountByCategory(ctx context.Context) ([]CategoryCount, error) {
	const query = `
        SELECT category_id, COUNT(*) AS total
        FROM tickets GROUP BY category_id ORDER BY total DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CategoryCount
	for rows.Next() {
		var entry CategoryCount
		if err := rows.Scan(&entry.CategoryID, &entry.Total); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *ticketStatsRepository) ListSecondSLABreached(ctx context.Context, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + ticketColumns + `
        FROM tickets WHERE second_sla_breach=TRUE ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
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
