package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/authstate"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/events"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/models"
)

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	// Validate required fields
	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email and password are required",
		})
	}

	s.logger.Info("Authentication attempt", "email", req.Email)

	sid := uuid.NewString()
	cs := s.sessions.Create(sid)

	cs.Store.SignIn(c.Context(), req.Email, req.Password)
	cs.Store.Settle()

	navigate, notices := cs.Recorder.Drain()
	snap := cs.Store.Snapshot()

	if snap.User == nil {
		// The action already reported the failure through its notices.
		s.sessions.Delete(sid)
		return c.Status(fiber.StatusUnauthorized).JSON(models.LoginResponse{
			Notices: notices,
		})
	}

	tokenString, err := s.mintToken(sid, snap.User)
	if err != nil {
		s.sessions.Delete(sid)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     "token",
		Value:    tokenString,
		Expires:  time.Now().Add(s.cfg.JWT.Expiration),
		HTTPOnly: true,
	})

	s.publish(events.New(events.TypeSignedIn, snap.User.ID, snap.User.Email))
	s.logger.Info("User successfully authenticated", "email", req.Email)

	return c.JSON(models.LoginResponse{
		Token:     tokenString,
		TokenType: "Bearer",
		Navigate:  navigate,
		Notices:   notices,
	})
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email and password are required",
		})
	}

	s.logger.Info("Registration attempt", "email", req.Email)

	cs := s.sessions.Ephemeral()
	defer cs.Store.Close()

	cs.Store.SignUp(c.Context(), req.Email, req.Password, req.FullName)

	navigate, notices := cs.Recorder.Drain()
	if navigate == "" {
		// Account creation failed before the profile insert.
		return c.Status(fiber.StatusBadRequest).JSON(models.LoginResponse{
			Notices: notices,
		})
	}

	s.publish(events.New(events.TypeSignedUp, "", req.Email))

	return c.Status(fiber.StatusCreated).JSON(models.LoginResponse{
		Navigate: navigate,
		Notices:  notices,
	})
}

func (s *Server) handleForgotPassword(c *fiber.Ctx) error {
	var req models.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email is required",
		})
	}

	cs := s.sessions.Ephemeral()
	defer cs.Store.Close()

	cs.Store.ResetPassword(c.Context(), req.Email)
	_, notices := cs.Recorder.Drain()

	s.publish(events.New(events.TypePasswordReset, "", req.Email))

	// Both outcomes answer 200; the notices carry the user-facing text.
	return c.JSON(models.LoginResponse{Notices: notices})
}

func (s *Server) handleGoogleOAuth(c *fiber.Ctx) error {
	cs := s.sessions.Ephemeral()
	defer cs.Store.Close()

	cs.Store.SignInWithGoogle(c.Context())
	navigate, notices := cs.Recorder.Drain()

	if navigate == "" {
		return c.Status(fiber.StatusBadGateway).JSON(models.LoginResponse{
			Notices: notices,
		})
	}
	return c.Redirect(navigate, fiber.StatusFound)
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	snap := currentSnapshot(c)
	sid := currentSessionID(c)

	cs, ok := s.sessions.Get(sid)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid session",
		})
	}

	cs.Store.SignOut(c.Context())
	cs.Store.Settle()
	navigate, notices := cs.Recorder.Drain()

	if navigate == "" {
		// Sign-out failed upstream; the session stays usable.
		return c.Status(fiber.StatusBadGateway).JSON(models.LoginResponse{
			Notices: notices,
		})
	}

	s.sessions.Delete(sid)
	c.ClearCookie("token")

	if snap.User != nil {
		s.publish(events.New(events.TypeSignedOut, snap.User.ID, snap.User.Email))
	}

	return c.JSON(models.LoginResponse{
		Navigate: navigate,
		Notices:  notices,
	})
}

// handleSession is the bootstrap read: the client calls it on load to
// learn who is signed in and what they may open.
func (s *Server) handleSession(c *fiber.Ctx) error {
	snap := currentSnapshot(c)
	return c.JSON(snapshotPayload(snap))
}

func snapshotPayload(snap authstate.Snapshot) fiber.Map {
	return fiber.Map{
		"loading":       snap.Loading,
		"auth_loading":  snap.AuthLoading,
		"user":          snap.User,
		"profile":       snap.Profile.Loaded(),
		"profile_state": snap.Profile.State.String(),
		"plans":         snap.Plans,
	}
}
