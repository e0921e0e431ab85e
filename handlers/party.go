// handlers/party.go - HTTP surface over the DatabaseController
package handlers

import (
	"errors"
	"log/slog"
	"time"

	"superparty/logging"
	"superparty/middleware"
	"superparty/services"
	"superparty/utils"

	"github.com/gofiber/fiber/v2"
)

// PartyHandler serves the hero, team and roster endpoints.
type PartyHandler struct {
	ctrl       *services.DatabaseController
	cleanup    *services.CleanupService
	logger     *slog.Logger
	production bool
}

func NewPartyHandler(ctrl *services.DatabaseController, cleanup *services.CleanupService, logger *slog.Logger, production bool) *PartyHandler {
	return &PartyHandler{
		ctrl:       ctrl,
		cleanup:    cleanup,
		logger:     logging.Default(logger).With("component", "http"),
		production: production,
	}
}

// Routes mounts every endpoint on app. A nil limiter disables rate
// limiting.
func (h *PartyHandler) Routes(app *fiber.App, limiter *middleware.RateLimiter) {
	app.Get("/health", h.Health)

	app.Use("/ws", h.UpgradeChanges)
	app.Get("/ws", h.Changes())

	api := app.Group("/api")
	if limiter != nil {
		api.Use(middleware.FiberRateLimitMiddleware(limiter))
	}

	// Hero routes
	api.Get("/heroes", h.ListHeroes)
	api.Post("/heroes", h.CreateHero)
	api.Get("/heroes/:id", h.GetHero)
	api.Put("/heroes/:id", h.UpdateHero)
	api.Delete("/heroes/:id", h.DeleteHero)

	// Team routes
	api.Get("/teams", h.ListTeams)
	api.Post("/teams", h.CreateTeam)
	api.Get("/teams/default", h.GetDefaultTeam)
	api.Post("/teams/default/heroes/:heroId", h.AddHeroToDefaultTeam)
	api.Get("/teams/:id", h.GetTeam)
	api.Delete("/teams/:id", h.DeleteTeam)

	// Roster routes
	api.Get("/teams/:id/heroes", h.GetTeamHeroes)
	api.Post("/teams/:id/heroes/:heroId", h.AddHeroToTeam)
	api.Delete("/teams/:id/heroes/:heroId", h.RemoveHeroFromTeam)

	// Maintenance routes
	if h.cleanup != nil {
		api.Post("/maintenance/cleanup", h.ManualCleanup)
		api.Get("/maintenance/cleanup/stats", h.GetCleanupStats)
	}
}

// Health reports liveness and a few store counters.
// GET /health
func (h *PartyHandler) Health(c *fiber.Ctx) error {
	heroes, err := h.ctrl.Store().CountHeroes()
	if err != nil {
		return h.fail(c, err)
	}
	teams, err := h.ctrl.Store().CountTeams()
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"heroes":      heroes,
		"teams":       teams,
		"subscribers": h.ctrl.Registry().Len(),
	})
}

// fail maps a controller error onto a status code and envelope.
func (h *PartyHandler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := err.Error()

	switch {
	case services.IsNotFound(err):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidHero), errors.Is(err, services.ErrInvalidTeam):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrTeamLimitReached), errors.Is(err, services.ErrDefaultTeamProtected):
		status = fiber.StatusConflict
	}

	if status == fiber.StatusInternalServerError {
		h.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		if h.production {
			message = "An error occurred. Please try again later."
		}
	}
	return utils.JSONError(c, status, message)
}

// ErrorHandler renders errors returned from handlers and fiber itself in
// the same envelope.
func ErrorHandler(production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		}

		// Don't expose internal errors in production
		if production && code == fiber.StatusInternalServerError {
			message = "An error occurred. Please try again later."
		}
		return utils.JSONError(c, code, message)
	}
}
