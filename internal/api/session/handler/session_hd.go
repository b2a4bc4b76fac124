package sessionHandler

import (
	"RailscanGolang/internal/api/session"
	"RailscanGolang/internal/entity"
	contextPkg "RailscanGolang/pkg/context"
	"RailscanGolang/pkg/handlerUtil"
	"RailscanGolang/pkg/log"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

func (h *SessionHandler) CreateSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing create session request")

	var req session.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	created, err := h.sessionService.CreateSession(c, req.Name, req.Description)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "create_session")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, makeSessionResponse(created))
	}
}

func (h *SessionHandler) GetSessions(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	sessions, err := h.sessionService.GetSessions(c)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_sessions")
	}

	responses := make([]session.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		responses = append(responses, makeSessionResponse(s))
	}

	response := session.SessionListResponse{
		Sessions: responses,
		Total:    len(responses),
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, response)
	}
}

func (h *SessionHandler) GetSessionByID(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	id := ctx.Params("id")
	if id == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("session ID is required"), ctx.Path())
	}

	found, err := h.sessionService.GetSessionByID(c, id)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, makeSessionResponse(found))
	}
}

func (h *SessionHandler) CompleteSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	id := ctx.Params("id")
	if id == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("session ID is required"), ctx.Path())
	}

	if err := h.sessionService.CompleteSession(c, id); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "complete_session")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, fiber.Map{
			"message": "Session completed successfully",
		})
	}
}

func (h *SessionHandler) DeleteSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 30*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	id := ctx.Params("id")
	if id == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("session ID is required"), ctx.Path())
	}

	if err := h.sessionService.DeleteSession(c, id); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "delete_session")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, fiber.Map{
			"message": "Session deleted successfully",
		})
	}
}

func makeSessionResponse(s entity.ScanSession) session.SessionResponse {
	return session.SessionResponse{
		ID:              s.ID,
		Name:            s.Name,
		Description:     s.Description,
		Status:          s.Status,
		TotalFrames:     s.TotalFrames,
		ProcessedFrames: s.ProcessedFrames,
		TotalCracks:     s.TotalCracks,
		CreatedAt:       s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       s.UpdatedAt.Format(time.RFC3339),
	}
}
