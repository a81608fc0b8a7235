package routes

import (
	"net/http"

	"github.com/tarifflab/hsnatlas/internal/server/middleware"
	"github.com/tarifflab/hsnatlas/pkg/logger"

	"github.com/labstack/echo/v4"
)

// QuerySessionHandler runs one conversation turn. Turns for the same
// session are serialized on the session lock; a failed turn returns 502
// and leaves the session state unchanged so the user can retry.
func QuerySessionHandler(c echo.Context) error {
	type queryBody struct {
		Query string `json:"query" validate:"required"`
	}

	app := c.(*middleware.AppContext).App

	entry, ok := app.Sessions.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Session not found"})
	}

	body := new(queryBody)
	if err := c.Bind(body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	entry.Lock.Lock()
	defer entry.Lock.Unlock()

	response, err := app.Processor.ProcessQuery(c.Request().Context(), body.Query, entry.State)
	if err != nil {
		logger.Error("[Server] Turn failed", "session", entry.State.SessionID, "err", err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "Query processing failed, please retry"})
	}

	return c.JSON(http.StatusOK, response)
}
