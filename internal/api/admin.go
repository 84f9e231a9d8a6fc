package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"

	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/entitlement"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/events"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/models"
)

func (s *Server) handleListProfiles(c *fiber.Ctx) error {
	list, err := s.profiles.List(c.Context())
	if err != nil {
		s.logger.Error("Failed to list profiles", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list profiles",
		})
	}
	return c.JSON(fiber.Map{"profiles": list})
}

func (s *Server) handleGetProfile(c *fiber.Ctx) error {
	userID := c.Params("id")

	profile, err := s.profiles.FetchProfile(c.Context(), userID)
	if err != nil {
		s.logger.Error("Failed to fetch profile", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch profile",
		})
	}
	if profile == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	plans, err := s.plans.Plans(c.Context(), userID)
	if err != nil {
		s.logger.Error("Failed to fetch plans", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch plans",
		})
	}

	return c.JSON(fiber.Map{
		"profile": profile,
		"plans":   plans,
	})
}

type updateProfileRequest struct {
	FullName          *string  `json:"full_name"`
	AvatarURL         *string  `json:"avatar_url"`
	Role              *string  `json:"role"`
	AllowedAssistants []string `json:"allowed_assistants"`
	WhatsappJID       *string  `json:"whatsapp_jid"`
}

// handleUpdateProfile applies a partial update: only the fields present in
// the request change. Entitlement changes should go through the plan
// endpoints; editing allowed_assistants directly here is the manual
// override the original admin screen offered.
func (s *Server) handleUpdateProfile(c *fiber.Ctx) error {
	userID := c.Params("id")

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	profile, err := s.profiles.FetchProfile(c.Context(), userID)
	if err != nil {
		s.logger.Error("Failed to fetch profile", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch profile",
		})
	}
	if profile == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	if req.FullName != nil {
		profile.FullName = *req.FullName
	}
	if req.AvatarURL != nil {
		profile.AvatarURL = *req.AvatarURL
	}
	if req.Role != nil {
		if *req.Role != models.RoleAdmin && *req.Role != models.RoleBasicUser {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid role",
			})
		}
		profile.Role = *req.Role
	}
	if req.AllowedAssistants != nil {
		profile.AllowedAssistants = pq.StringArray(req.AllowedAssistants)
	}
	if req.WhatsappJID != nil {
		profile.WhatsappJID = *req.WhatsappJID
	}

	if err := s.profiles.Update(c.Context(), profile); err != nil {
		s.logger.Error("Failed to update profile", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update profile",
		})
	}

	s.publish(events.New(events.TypeProfileUpdated, userID, ""))

	return c.JSON(fiber.Map{"profile": profile})
}

type grantPlanRequest struct {
	PlanName  string     `json:"plan_name"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (s *Server) handleGrantPlan(c *fiber.Ctx) error {
	userID := c.Params("id")

	var req grantPlanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.PlanName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Plan name is required",
		})
	}

	if err := s.plans.Grant(c.Context(), userID, req.PlanName, req.ExpiresAt); err != nil {
		s.logger.Error("Failed to grant plan",
			"user_id", userID, "plan", req.PlanName, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to grant plan",
		})
	}

	s.publish(events.New(events.TypeProfileUpdated, userID, ""))

	plans, err := s.plans.Plans(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch plans",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"plans": plans})
}

func (s *Server) handleRevokePlan(c *fiber.Ctx) error {
	userID := c.Params("id")
	planName := c.Params("plan")

	err := s.plans.Revoke(c.Context(), userID, planName)
	if errors.Is(err, entitlement.ErrFreePlanRequired) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "The free plan cannot be revoked while other plans are active",
		})
	}
	if err != nil {
		s.logger.Error("Failed to revoke plan",
			"user_id", userID, "plan", planName, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to revoke plan",
		})
	}

	s.publish(events.New(events.TypeProfileUpdated, userID, ""))

	plans, err := s.plans.Plans(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch plans",
		})
	}
	return c.JSON(fiber.Map{"plans": plans})
}
