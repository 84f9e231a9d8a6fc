package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/entitlement"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/models"
)

// assistantTypeAirbnb backs the dedicated pricing page, which is the one
// assistant mounted on its own route instead of the generic chat route.
const assistantTypeAirbnb = "airbnb_pricing_agent"

func (s *Server) handleLanding(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"page":  "landing",
		"title": "RIOH DIGITAL A.I HUB",
	})
}

// pageChrome is the shared navigation shell rendered around every gated
// page: the assistants this user may open, plus the admin link for admins.
func pageChrome(profile *models.Profile) fiber.Map {
	assistants := []string{}
	if profile != nil {
		assistants = append(assistants, profile.AllowedAssistants...)
	}
	return fiber.Map{
		"assistants": assistants,
		"admin":      profile.IsAdmin(),
	}
}

func (s *Server) handleDashboard(c *fiber.Ctx) error {
	snap := currentSnapshot(c)
	return c.JSON(fiber.Map{
		"page":     "dashboard",
		"chrome":   pageChrome(snap.Profile.Loaded()),
		"user":     snap.User,
		"profile":  snap.Profile.Loaded(),
		"plans":    snap.Plans,
	})
}

// handleAssistantPage gates the chat page on the entitlement predicate.
// An assistant outside the user's plan bounces back to the dashboard
// rather than erroring, matching the guard's redirect style.
func (s *Server) handleAssistantPage(c *fiber.Ctx) error {
	snap := currentSnapshot(c)
	assistantType := c.Params("assistantType")

	if !entitlement.HasAccess(snap.Profile.Loaded(), assistantType) {
		return c.Redirect("/dashboard", fiber.StatusFound)
	}

	return c.JSON(fiber.Map{
		"page":      "assistant",
		"chrome":    pageChrome(snap.Profile.Loaded()),
		"assistant": assistantType,
	})
}

func (s *Server) handleAirbnbPricingPage(c *fiber.Ctx) error {
	snap := currentSnapshot(c)

	if !entitlement.HasAccess(snap.Profile.Loaded(), assistantTypeAirbnb) {
		return c.Redirect("/dashboard", fiber.StatusFound)
	}

	return c.JSON(fiber.Map{
		"page":      "airbnb_pricing",
		"chrome":    pageChrome(snap.Profile.Loaded()),
		"assistant": assistantTypeAirbnb,
	})
}

func (s *Server) handleAdminPage(c *fiber.Ctx) error {
	snap := currentSnapshot(c)
	return c.JSON(fiber.Map{
		"page":   "admin",
		"chrome": pageChrome(snap.Profile.Loaded()),
	})
}

func (s *Server) handleNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "Page not found",
	})
}
