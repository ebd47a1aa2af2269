package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// DashboardHandler serves the reporting reads.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// AgentCounters GET /dashboard/agent-numbers.
func (h *DashboardHandler) AgentCounters(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	counters, err := h.dashboard.AgentCounters(c.Context(), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": counters})
}

// Leaderboard GET /dashboard/most-solved.
func (h *DashboardHandler) Leaderboard(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	entries, err := h.dashboard.ResolvedLeaderboard(c.Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entries})
}

// ByCategory GET /dashboard/ticket-category.
func (h *DashboardHandler) ByCategory(c *fiber.Ctx) error {
	counts, err := h.dashboard.CountByCategory(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": counts})
}

// SecondSLABreached GET /dashboard/second-sla-breached.
func (h *DashboardHandler) SecondSLABreached(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	tickets, err := h.dashboard.SecondSLABreached(c.Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummaries(tickets)})
}
