// handlers/teams.go - Team and roster HTTP Handlers
package handlers

import (
	"superparty/utils"

	"github.com/gofiber/fiber/v2"
)

// ================== TEAM CRUD ENDPOINTS ==================

// ListTeams returns every team sorted by name
// GET /api/teams
func (h *PartyHandler) ListTeams(c *fiber.Ctx) error {
	teams, err := h.ctrl.Teams()
	if err != nil {
		return h.fail(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"teams": teams,
		"count": len(teams),
	})
}

// CreateTeam creates a new, empty team
// POST /api/teams
func (h *PartyHandler) CreateTeam(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	team, err := h.ctrl.CreateTeam(req.Name)
	if err != nil {
		return h.fail(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusCreated, fiber.Map{
		"message": "Team created successfully",
		"team":    team,
	})
}

// GetTeam returns a team with its roster
// GET /api/teams/:id
func (h *PartyHandler) GetTeam(c *fiber.Ctx) error {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid team ID")
	}
	team, err := h.ctrl.Team(id)
	if err != nil {
		return h.fail(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"team": team})
}

// GetDefaultTeam returns the current party, creating it if needed
// GET /api/teams/default
func (h *PartyHandler) GetDefaultTeam(c *fiber.Ctx) error {
	def, err := h.ctrl.DefaultTeam()
	if err != nil {
		return h.fail(c, err)
	}
	team, err := h.ctrl.Team(def.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"team": team})
}

// DeleteTeam removes a team; its heroes stay
// DELETE /api/teams/:id
func (h *PartyHandler) DeleteTeam(c *fiber.Ctx) error {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid team ID")
	}
	if err := h.ctrl.DeleteTeam(id); err != nil {
		return h.fail(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"message": "Team deleted successfully",
	})
}

// ================== ROSTER ENDPOINTS ==================

// GetTeamHeroes returns a team's roster
// GET /api/teams/:id/heroes
func (h *PartyHandler) GetTeamHeroes(c *fiber.Ctx) error {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid team ID")
	}
	heroes, err := h.ctrl.TeamHeroes(id)
	if err != nil {
		return h.fail(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"heroes": heroes,
		"count":  len(heroes),
	})
}

// AddHeroToTeam puts a hero on a roster
// POST /api/teams/:id/heroes/:heroId
func (h *PartyHandler) AddHeroToTeam(c *fiber.Ctx) error {
	teamID, err := utils.ParamID(c, "id")
	if err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid team ID")
	}
	heroID, err := utils.ParamID(c, "heroId")
	if err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid hero ID")
	}

	added, err := h.ctrl.AddHeroToTeam(heroID, teamID)
	if err != nil {
		return h.fail(c, err)
	}
	return h.admission(c, added)
}

// AddHeroToDefaultTeam puts a hero on the current party
// POST /api/teams/default/heroes/:heroId
func (h *PartyHandler) AddHeroToDefaultTeam(c *fiber.Ctx) error {
	heroID, err := utils.ParamID(c, "heroId")
	if err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid hero ID")
	}
	added, err := h.ctrl.AddHeroToDefaultTeam(heroID)
	if err != nil {
		return h.fail(c, err)
	}
	return h.admission(c, added)
}

// RemoveHeroFromTeam drops a hero from a roster
// DELETE /api/teams/:id/heroes/:heroId
func (h *PartyHandler) RemoveHeroFromTeam(c *fiber.Ctx) error {
	teamID, err := utils.ParamID(c, "id")
	if err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid team ID")
	}
	heroID, err := utils.ParamID(c, "heroId")
	if err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid hero ID")
	}
	if err := h.ctrl.RemoveHeroFromTeam(heroID, teamID); err != nil {
		return h.fail(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"message": "Hero removed from team",
	})
}

// admission answers a roster add. A full party or a hero already on the
// team is reported in the body, not as an HTTP error.
func (h *PartyHandler) admission(c *fiber.Ctx, added bool) error {
	if !added {
		return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
			"added":   false,
			"message": "Party is full or already has this hero",
		})
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"added":   true,
		"message": "Hero added to team",
	})
}
