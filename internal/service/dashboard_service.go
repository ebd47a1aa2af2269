package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// DashboardService serves the read-only reporting aggregations, cached
// in Redis with a short TTL. Cache failures degrade to direct queries.
type DashboardService struct {
	stats  repository.TicketStatsRepository
	cache  *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewDashboardService builds the service. cache may be nil.
func NewDashboardService(stats repository.TicketStatsRepository, cache *redis.Client, logger *zap.Logger) *DashboardService {
	return &DashboardService{
		stats:  stats,
		cache:  cache,
		logger: logger,
		ttl:    config.DashboardCacheTTL,
	}
}

// AgentCounters returns workload numbers for one agent.
func (s *DashboardService) AgentCounters(ctx context.Context, agentID string) (*repository.AgentCounters, error) {
	key := "dashboard:agent:" + agentID
	var counters repository.AgentCounters
	if s.cachedGet(ctx, key, &counters) {
		return &counters, nil
	}
	result, err := s.stats.AgentCounters(ctx, agentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.cachedSet(ctx, key, result)
	return result, nil
}

// ResolvedLeaderboard ranks agents by resolved ticket count.
func (s *DashboardService) ResolvedLeaderboard(ctx context.Context, limit int) ([]repository.LeaderboardEntry, error) {
	key := "dashboard:leaderboard"
	var entries []repository.LeaderboardEntry
	if s.cachedGet(ctx, key, &entries) {
		return entries, nil
	}
	result, err := s.stats.ResolvedLeaderboard(ctx, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.cachedSet(ctx, key, result)
	return result, nil
}

// CountByCategory groups ticket totals per category.
func (s *DashboardService) CountByCategory(ctx context.Context) ([]repository.CategoryCount, error) {
	key := "dashboard:categories"
	var counts []repository.CategoryCount
	if s.cachedGet(ctx, key, &counts) {
		return counts, nil
	}
	result, err := s.stats.CountByCategory(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.cachedSet(ctx, key, result)
	return result, nil
}

// SecondSLABreached lists tickets whose first-response SLA was violated.
func (s *DashboardService) SecondSLABreached(ctx context.Context, limit int) ([]domain.Ticket, error) {
	tickets, err := s.stats.ListSecondSLABreached(ctx, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

func (s *DashboardService) cachedGet(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (s *DashboardService) cachedSet(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil && s.logger != nil {
		s.logger.Debug("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}
