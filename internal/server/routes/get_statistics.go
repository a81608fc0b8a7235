package routes

import (
	"net/http"

	"github.com/tarifflab/hsnatlas/internal/server/middleware"
	"github.com/tarifflab/hsnatlas/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetStatisticsHandler reports graph size and live session count.
func GetStatisticsHandler(c echo.Context) error {
	type statisticsResponse struct {
		NodeCount    int64 `json:"node_count"`
		EdgeCount    int64 `json:"edge_count"`
		SessionCount int   `json:"session_count"`
	}

	app := c.(*middleware.AppContext).App

	stats, err := app.Backend.Statistics(c.Request().Context())
	if err != nil {
		logger.Error("[Server] Failed to read graph statistics", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, statisticsResponse{
		NodeCount:    stats.NodeCount,
		EdgeCount:    stats.EdgeCount,
		SessionCount: app.Sessions.Count(),
	})
}
