package routes

import (
	"net/http"

	"github.com/tarifflab/hsnatlas/internal/server/middleware"
	"github.com/tarifflab/hsnatlas/pkg/logger"

	"github.com/labstack/echo/v4"
)

// CreateSessionHandler starts a new conversation session.
func CreateSessionHandler(c echo.Context) error {
	type createSessionResponse struct {
		SessionID string `json:"session_id"`
	}

	app := c.(*middleware.AppContext).App

	state, err := app.Sessions.Create()
	if err != nil {
		logger.Error("[Server] Failed to create session", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusCreated, createSessionResponse{SessionID: state.SessionID})
}
