package routes

import (
	"net/http"

	"github.com/tarifflab/hsnatlas/internal/server/middleware"
	"github.com/tarifflab/hsnatlas/pkg/query"

	"github.com/labstack/echo/v4"
)

// GetSessionHandler returns the full state of one session, including its
// turn history and any open disambiguation.
func GetSessionHandler(c echo.Context) error {
	type getSessionResponse struct {
		SessionID         string       `json:"session_id"`
		Turns             []query.Turn `json:"turns"`
		AwaitingSelection bool         `json:"awaiting_selection"`
	}

	app := c.(*middleware.AppContext).App

	entry, ok := app.Sessions.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Session not found"})
	}

	entry.Lock.Lock()
	defer entry.Lock.Unlock()

	return c.JSON(http.StatusOK, getSessionResponse{
		SessionID:         entry.State.SessionID,
		Turns:             entry.State.Turns,
		AwaitingSelection: entry.State.AwaitingSelection(),
	})
}

// DeleteSessionHandler ends a session.
func DeleteSessionHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	app.Sessions.Delete(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
