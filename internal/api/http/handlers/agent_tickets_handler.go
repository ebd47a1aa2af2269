package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// AgentTicketsHandler exposes the agent-side ticket workflow: pick,
// comment, escalate, hand over, resolve and the agent listings.
type AgentTicketsHandler struct {
	tickets *service.TicketService
}

// NewAgentTicketsHandler constructs handler.
func NewAgentTicketsHandler(tickets *service.TicketService) *AgentTicketsHandler {
	return &AgentTicketsHandler{tickets: tickets}
}

// Pick PUT /agent/tickets/:id/pick.
func (h *AgentTicketsHandler) Pick(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.tickets.Pick(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// AddComment POST /agent/tickets/:id/comments.
func (h *AgentTicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.tickets.AddComment(c.Context(), actor, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCommentResponse(comment)})
}

// Escalate PUT /agent/tickets/:id/escalate. With a target this is the
// agent-to-manager/admin escalation; without one it is the target-less
// escalation of an in-progress ticket.
func (h *AgentTicketsHandler) Escalate(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.MoveTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if req.TargetID == "" {
		result, err := h.tickets.Escalate(c.Context(), actor, c.Params("id"), req.Reason)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": dto.NewTicketSummary(result)})
	}
	result, err := h.tickets.EscalateByAgent(c.Context(), actor, c.Params("id"), req.Reason, req.TargetID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(result)})
}

// Handover PUT /agent/tickets/:id/handover.
func (h *AgentTicketsHandler) Handover(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.MoveTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.Handover(c.Context(), actor, c.Params("id"), req.Reason, req.TargetID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// Resolve PUT /agent/tickets/:id/resolve. With ?as_holder=true the
// ownership-checked variant runs and records the resolver.
func (h *AgentTicketsHandler) Resolve(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if c.QueryBool("as_holder") {
		ticket, err := h.tickets.ResolveAsHolder(c.Context(), actor, c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
	}
	ticket, err := h.tickets.Resolve(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// List GET /agent/tickets?filter=my-picks.
func (h *AgentTicketsHandler) List(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	kind := service.FilterKind(c.Query("filter", string(service.FilterCategoryOpen)))
	tickets, err := h.tickets.ListTickets(c.Context(), actor, kind)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummaries(tickets)})
}
