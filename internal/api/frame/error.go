package frame

import (
	"RailscanGolang/pkg/response"
	"net/http"
)

var (
	ErrFrameNotFound          = response.NewError(http.StatusNotFound, "frame not found")
	ErrNoValidFrames          = response.NewError(http.StatusBadRequest, "no valid frame files in upload")
	ErrEmptyGpsLog            = response.NewError(http.StatusBadRequest, "GPS log contains no parseable fixes")
	ErrGpsLogMissing          = response.NewError(http.StatusBadRequest, "no GPS log uploaded for session")
	ErrNoGpsMatch             = response.NewError(http.StatusUnprocessableEntity, "no GPS fix within tolerance for frame")
	ErrFrameAlreadyProcessing = response.NewError(http.StatusConflict, "frame is already being processed")
	ErrBatchAlreadyRunning    = response.NewError(http.StatusConflict, "a batch run is already in progress for session")
)
