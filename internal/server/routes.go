package server

import (
	"github.com/tarifflab/hsnatlas/internal/server/middleware"
	"github.com/tarifflab/hsnatlas/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Session routes
	apiRoutes.POST("/sessions", routes.CreateSessionHandler)
	apiRoutes.GET("/sessions/:id", routes.GetSessionHandler)
	apiRoutes.DELETE("/sessions/:id", routes.DeleteSessionHandler)
	apiRoutes.POST("/sessions/:id/query", routes.QuerySessionHandler)

	// Graph routes
	apiRoutes.GET("/graph/statistics", routes.GetStatisticsHandler)
	apiRoutes.POST("/graph/build", routes.TriggerBuildHandler)
	apiRoutes.POST("/graph/export", routes.TriggerExportHandler)
}
