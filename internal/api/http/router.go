package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	AgentTickets   *handlers.AgentTicketsHandler
	AdminTickets   *handlers.AdminTicketsHandler
	Comments       *handlers.CommentsHandler
	Dashboard      *handlers.DashboardHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	account := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole())
	account.Get("/me", cfg.Users.CurrentUser)
	account.Post("/password/change", cfg.Users.ChangePassword)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("", auth.RequireRole(domain.RoleClient), cfg.Tickets.Create)
	tickets.Get("", auth.RequireRole(domain.RoleClient), cfg.Tickets.List)
	tickets.Get("/:id", auth.RequireRole(), cfg.Tickets.Get)

	agent := app.Group("/agent/tickets", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAgent, domain.RoleAdmin))
	agent.Get("", cfg.AgentTickets.List)
	agent.Put("/:id/pick", cfg.AgentTickets.Pick)
	agent.Post("/:id/comments", cfg.AgentTickets.AddComment)
	agent.Put("/:id/escalate", cfg.AgentTickets.Escalate)
	agent.Put("/:id/handover", cfg.AgentTickets.Handover)
	agent.Put("/:id/resolve", cfg.AgentTickets.Resolve)

	admin := app.Group("/admin/tickets", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleManager, domain.RoleAdmin))
	admin.Get("", cfg.AdminTickets.List)
	admin.Put("/:id/escalate", cfg.AdminTickets.Escalate)
	admin.Put("/:id/assign", cfg.AdminTickets.Assign)

	adminUsers := app.Group("/admin/users", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	adminUsers.Post("", cfg.Users.RegisterWithRole)
	adminUsers.Get("", cfg.Users.ListByRole)

	comments := app.Group("/comments", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAgent, domain.RoleAdmin))
	comments.Delete("/:id", cfg.Comments.Delete)
	comments.Post("/:id/replies", cfg.Comments.AddReply)
	comments.Get("/:id/replies", cfg.Comments.ListReplies)
	replies := app.Group("/replies", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAgent, domain.RoleAdmin))
	replies.Delete("/:id", cfg.Comments.RemoveReply)

	dashboard := app.Group("/dashboard", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAgent, domain.RoleManager, domain.RoleAdmin))
	dashboard.Get("/agent-numbers", cfg.Dashboard.AgentCounters)
	dashboard.Get("/most-solved", cfg.Dashboard.Leaderboard)
	dashboard.Get("/ticket-category", cfg.Dashboard.ByCategory)
	dashboard.Get("/second-sla-breached", cfg.Dashboard.SecondSLABreached)
}
