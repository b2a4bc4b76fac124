package session

import (
	"RailscanGolang/pkg/response"
	"net/http"
)

var (
	ErrSessionNotFound      = response.NewError(http.StatusNotFound, "session not found")
	ErrInvalidSessionStatus = response.NewError(http.StatusBadRequest, "invalid session status")
	ErrCreateSession        = response.NewError(http.StatusInternalServerError, "failed to create session")
	ErrDeleteSession        = response.NewError(http.StatusInternalServerError, "failed to delete session")
)
