// handlers/heroes.go - Hero HTTP Handlers
package handlers

import (
	"superparty/models"
	"superparty/utils"

	"github.com/gofiber/fiber/v2"
)

type heroRequest struct {
	Name      string `json:"name"`
	Abilities string `json:"abilities"`
	Universe  string `json:"universe"`
}

func (r heroRequest) universe() (models.Universe, error) {
	return models.ParseUniverse(r.Universe)
}

// ================== HERO ENDPOINTS ==================

// ListHeroes returns every hero sorted by name
// GET /api/heroes
func (h *PartyHandler) ListHeroes(c *fiber.Ctx) error {
	heroes, err := h.ctrl.Heroes()
	if err != nil {
		return h.fail(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"heroes": heroes,
		"count":  len(heroes),
	})
}

// GetHero returns one hero
// GET /api/heroes/:id
func (h *PartyHandler) GetHero(c *fiber.Ctx) error {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid hero ID")
	}
	hero, err := h.ctrl.Hero(id)
	if err != nil {
		return h.fail(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"hero": hero})
}

// CreateHero adds a hero
// POST /api/heroes
func (h *PartyHandler) CreateHero(c *fiber.Ctx) error {
	var req heroRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	universe, err := req.universe()
	if err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, err.Error())
	}

	hero, err := h.ctrl.CreateHero(req.Name, req.Abilities, universe)
	if err != nil {
		return h.fail(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusCreated, fiber.Map{
		"message": "Hero created successfully",
		"hero":    hero,
	})
}

// UpdateHero replaces a hero's fields
// PUT /api/heroes/:id
func (h *PartyHandler) UpdateHero(c *fiber.Ctx) error {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid hero ID")
	}
	var req heroRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	universe, err := req.universe()
	if err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, err.Error())
	}

	hero, err := h.ctrl.UpdateHero(id, req.Name, req.Abilities, universe)
	if err != nil {
		return h.fail(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"message": "Hero updated successfully",
		"hero":    hero,
	})
}

// DeleteHero removes a hero from the store and from every roster
// DELETE /api/heroes/:id
func (h *PartyHandler) DeleteHero(c *fiber.Ctx) error {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid hero ID")
	}
	if err := h.ctrl.DeleteHero(id); err != nil {
		return h.fail(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"message": "Hero deleted successfully",
	})
}
