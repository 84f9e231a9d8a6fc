package api

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/authstate"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/config"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/entitlement"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/events"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/guard"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/models"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/profiles"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/webhook"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/pkg/database"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	db        *database.Clients
	publisher events.Publisher
	auth      authstate.AuthAPI
	webhook   webhook.Client
	profiles  *profiles.Repo
	plans     *entitlement.Service
	sessions  *authstate.Manager
	logger    *slog.Logger
}

func NewServer(cfg *config.Config, db *database.Clients, producer sarama.SyncProducer, auth authstate.AuthAPI, hook webhook.Client) (*Server, error) {
	appLogger := slog.Default()

	repo := profiles.NewRepo(db, cfg.Redis.CacheTTL, appLogger)
	sessions := authstate.NewManager(authstate.Deps{
		Fetcher: repo,
		Writer:  repo,
		Auth:    auth,
		Logger:  appLogger,
	})

	app := fiber.New()

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status}\n",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Server.MaxRequests,
		Expiration: cfg.Server.RequestTimeout,
	}))

	server := &Server{
		app:       app,
		cfg:       cfg,
		db:        db,
		publisher: events.NewKafkaPublisher(producer, cfg.Kafka.Topic),
		auth:      auth,
		webhook:   hook,
		profiles:  repo,
		plans:     entitlement.NewService(db, appLogger),
		sessions:  sessions,
		logger:    appLogger,
	}

	// Routes
	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	api := s.app.Group("/api")

	// Public routes
	api.Post("/login", s.handleLogin)
	api.Post("/register", s.handleRegister)
	api.Post("/forgot-password", s.handleForgotPassword)
	api.Get("/oauth/google", s.handleGoogleOAuth)

	// Protected API routes
	protected := api.Use(jwtware.New(jwtware.Config{
		SigningKey:  []byte(s.cfg.JWT.Secret),
		TokenLookup: "header:Authorization,cookie:token",
	}))
	protected.Use(s.withAuthState)
	protected.Get("/session", s.handleSession)
	protected.Post("/logout", s.handleLogout)
	protected.Get("/assistants/:assistantType/messages", s.handleListMessages)
	protected.Post("/assistants/:assistantType/messages", s.handleSendMessage)

	admin := protected.Group("/admin", s.requireAdmin)
	admin.Get("/profiles", s.handleListProfiles)
	admin.Get("/profiles/:id", s.handleGetProfile)
	admin.Put("/profiles/:id", s.handleUpdateProfile)
	admin.Post("/profiles/:id/plans", s.handleGrantPlan)
	admin.Delete("/profiles/:id/plans/:plan", s.handleRevokePlan)

	// Public landing page
	s.app.Get("/", s.handleLanding)

	// Gated pages: the guard redirects instead of answering 401, so
	// these do not sit behind the strict JWT middleware.
	s.app.Get("/dashboard", s.guardPage, s.handleDashboard)
	s.app.Get("/assistants/:assistantType", s.guardPage, s.handleAssistantPage)
	s.app.Get("/airbnb-pricing-agent", s.guardPage, s.handleAirbnbPricingPage)
	s.app.Get("/admin", s.guardPage, s.handleAdminPage)

	// Catch-all 404
	s.app.Use(s.handleNotFound)
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Port)
}

// mintToken issues the API's own JWT after the auth service has accepted
// the credentials. The sid claim binds the token to its state store.
func (s *Server) mintToken(sid string, user *models.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID,
		"sid":   sid,
		"email": user.Email,
		"name":  user.FullName,
		"exp":   now.Add(s.cfg.JWT.Expiration).Unix(),
		"iat":   now.Unix(),
	})
	return token.SignedString([]byte(s.cfg.JWT.Secret))
}

type tokenClaims struct {
	UserID   string
	SID      string
	Email    string
	FullName string
}

func (s *Server) parseToken(tokenString string) (*tokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	out := &tokenClaims{}
	out.UserID, _ = claims["sub"].(string)
	out.SID, _ = claims["sid"].(string)
	out.Email, _ = claims["email"].(string)
	out.FullName, _ = claims["name"].(string)
	if out.UserID == "" || out.SID == "" {
		return nil, fmt.Errorf("token missing identity claims")
	}
	return out, nil
}

// requestToken pulls the bearer token from the Authorization header or the
// session cookie set at login.
func requestToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Cookies("token")
}

// resolveSnapshot maps the request's token to its auth state store,
// restoring the store from the verified claims when this instance has not
// seen the session before (e.g. after a restart). The returned snapshot is
// settled: the first profile-resolution cycle has completed.
func (s *Server) resolveSnapshot(c *fiber.Ctx) (authstate.Snapshot, string) {
	tokenString := requestToken(c)
	if tokenString == "" {
		return authstate.Snapshot{}, ""
	}

	claims, err := s.parseToken(tokenString)
	if err != nil {
		return authstate.Snapshot{}, ""
	}

	cs, ok := s.sessions.Get(claims.SID)
	if !ok {
		cs = s.sessions.Create(claims.SID)
		cs.Events.Emit(authstate.Event{
			Type: authstate.EventInitialSession,
			Session: &models.Session{
				User: &models.User{
					ID:       claims.UserID,
					Email:    claims.Email,
					FullName: claims.FullName,
				},
			},
		})
	}
	cs.Store.Settle()
	return cs.Store.Snapshot(), claims.SID
}

// withAuthState hangs the settled snapshot on the request for the API
// handlers. The JWT middleware already rejected unauthenticated calls.
func (s *Server) withAuthState(c *fiber.Ctx) error {
	snap, sid := s.resolveSnapshot(c)
	if snap.User == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid session",
		})
	}
	c.Locals("authSnapshot", snap)
	c.Locals("sessionID", sid)
	return c.Next()
}

// guardPage applies the route guard to the gated pages.
func (s *Server) guardPage(c *fiber.Ctx) error {
	snap, sid := s.resolveSnapshot(c)

	result := guard.Evaluate(guard.Input{
		Loading: snap.Loading,
		User:    snap.User,
		Profile: snap.Profile.Loaded(),
		Path:    c.Path(),
	})

	switch result.Decision {
	case guard.ShowLoading:
		return c.JSON(fiber.Map{"loading": true})
	case guard.RedirectLogin, guard.RedirectDashboard:
		return c.Redirect(result.Location, fiber.StatusFound)
	}

	c.Locals("authSnapshot", snap)
	c.Locals("sessionID", sid)
	return c.Next()
}

// requireAdmin gates the admin API the same way the guard gates the admin
// pages.
func (s *Server) requireAdmin(c *fiber.Ctx) error {
	snap := currentSnapshot(c)
	if !snap.Profile.Loaded().IsAdmin() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Admin access required",
		})
	}
	return c.Next()
}

func currentSnapshot(c *fiber.Ctx) authstate.Snapshot {
	snap, _ := c.Locals("authSnapshot").(authstate.Snapshot)
	return snap
}

func currentSessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals("sessionID").(string)
	return sid
}

// publish ships an auth event to the stream; delivery problems are logged,
// never surfaced to the user.
func (s *Server) publish(ev events.AuthEvent) {
	if err := s.publisher.Publish(ev); err != nil {
		s.logger.Error("Failed to publish auth event", "type", ev.Type, "error", err)
	}
}
