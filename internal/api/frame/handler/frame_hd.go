package frameHandler

import (
	contextPkg "RailscanGolang/pkg/context"
	"RailscanGolang/pkg/handlerUtil"
	"RailscanGolang/pkg/log"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

func (h *FrameHandler) UploadGpsLog(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 30*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	sessionID := ctx.Params("id")
	if sessionID == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("session ID is required"), ctx.Path())
	}

	fileHeader, err := ctx.FormFile("gps_log")
	if err != nil {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("gps_log file is required"), ctx.Path())
	}

	if err := h.utils.ValidateCSVFile(fileHeader); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	file, err := fileHeader.Open()
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "open_gps_log")
	}
	defer file.Close()

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"session_id": sessionID,
		"filename":   fileHeader.Filename,
	}).Debug("Processing gps log upload")

	result, err := h.frameService.UploadGpsLog(c, sessionID, file)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "upload_gps_log")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

func (h *FrameHandler) UploadFrames(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 60*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	sessionID := ctx.Params("id")
	if sessionID == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("session ID is required"), ctx.Path())
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("multipart form is required"), ctx.Path())
	}

	files := form.File["frames"]
	if len(files) == 0 {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("at least one frame file is required"), ctx.Path())
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"session_id": sessionID,
		"file_count": len(files),
	}).Debug("Processing frame upload")

	result, err := h.frameService.UploadFrames(c, sessionID, files)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "upload_frames")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, result)
	}
}

func (h *FrameHandler) ProcessFrame(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 120*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	sessionID := ctx.Params("id")
	frameID := ctx.Params("frameId")
	if sessionID == "" || frameID == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("session ID and frame ID are required"), ctx.Path())
	}

	result, err := h.frameService.ProcessFrame(c, sessionID, frameID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "process_frame")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

func (h *FrameHandler) ProcessAll(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	// Batch runs are bounded by the inference endpoint, not by us.
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 30*time.Minute)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	sessionID := ctx.Params("id")
	if sessionID == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("session ID is required"), ctx.Path())
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"session_id": sessionID,
	}).Info("Starting batch processing")

	result, err := h.frameService.ProcessAll(c, sessionID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "process_all")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

func (h *FrameHandler) GetResults(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 30*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	sessionID := ctx.Params("id")
	if sessionID == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("session ID is required"), ctx.Path())
	}

	result, err := h.frameService.GetResults(c, sessionID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_results")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

func (h *FrameHandler) GetProgress(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	sessionID := ctx.Params("id")
	if sessionID == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("session ID is required"), ctx.Path())
	}

	snapshot, err := h.frameService.Progress(c, sessionID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_progress")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, snapshot)
	}
}
