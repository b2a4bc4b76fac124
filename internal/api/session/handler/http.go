package sessionHandler

import (
	sessionService "RailscanGolang/internal/api/session/service"
	"RailscanGolang/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type SessionHandler struct {
	log            *logrus.Logger
	validator      *validator.Validate
	middleware     middleware.Middleware
	sessionService sessionService.ISessionService
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	sessionService sessionService.ISessionService,
) *SessionHandler {
	return &SessionHandler{
		log:            log,
		validator:      validate,
		middleware:     middleware,
		sessionService: sessionService,
	}
}

func (h *SessionHandler) Start(srv fiber.Router) {
	sessions := srv.Group("/sessions")

	sessions.Post("/", h.middleware.NewTokenMiddleware, h.CreateSession)
	sessions.Get("/", h.middleware.NewRateLimiter, h.GetSessions)
	sessions.Get("/:id", h.middleware.NewRateLimiter, h.GetSessionByID)
	sessions.Patch("/:id/complete", h.middleware.NewTokenMiddleware, h.CompleteSession)
	sessions.Delete("/:id", h.middleware.NewTokenMiddleware, h.DeleteSession)
}
