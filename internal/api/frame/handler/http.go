package frameHandler

import (
	frameService "RailscanGolang/internal/api/frame/service"
	"RailscanGolang/internal/middleware"
	"RailscanGolang/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type FrameHandler struct {
	log          *logrus.Logger
	validator    *validator.Validate
	middleware   middleware.Middleware
	frameService frameService.IFrameService
	utils        utils.IUtils
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	frameService frameService.IFrameService,
	utils utils.IUtils,
) *FrameHandler {
	return &FrameHandler{
		log:          log,
		validator:    validate,
		middleware:   middleware,
		frameService: frameService,
		utils:        utils,
	}
}

func (h *FrameHandler) Start(srv fiber.Router) {
	sessions := srv.Group("/sessions")

	sessions.Post("/:id/gps-log", h.middleware.NewTokenMiddleware, h.UploadGpsLog)
	sessions.Post("/:id/frames", h.middleware.NewTokenMiddleware, h.UploadFrames)
	sessions.Post("/:id/frames/:frameId/process", h.middleware.NewTokenMiddleware, h.ProcessFrame)
	sessions.Post("/:id/process", h.middleware.NewTokenMiddleware, h.ProcessAll)
	sessions.Get("/:id/results", h.middleware.NewRateLimiter, h.GetResults)
	sessions.Get("/:id/progress", h.middleware.NewRateLimiter, h.GetProgress)

	sessions.Use("/:id/progress/ws", upgradeWebsocket)
	sessions.Get("/:id/progress/ws", websocket.New(h.StreamProgress))
}

func upgradeWebsocket(ctx *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(ctx) {
		ctx.Locals("allowed", true)
		return ctx.Next()
	}
	return fiber.ErrUpgradeRequired
}
