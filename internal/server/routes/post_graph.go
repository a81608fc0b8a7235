package routes

import (
	"encoding/json"
	"net/http"

	"github.com/tarifflab/hsnatlas/internal/queue"
	"github.com/tarifflab/hsnatlas/internal/server/middleware"
	"github.com/tarifflab/hsnatlas/pkg/logger"

	"github.com/labstack/echo/v4"
)

// TriggerBuildHandler enqueues a full rebuild for the worker.
func TriggerBuildHandler(c echo.Context) error {
	type buildBody struct {
		DatasetLocation     string  `json:"dataset_location" validate:"required"`
		EnrichSimilarity    bool    `json:"enrich_similarity"`
		SimilarityThreshold float64 `json:"similarity_threshold"`
	}

	app := c.(*middleware.AppContext).App

	body := new(buildBody)
	if err := c.Bind(body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	msg, err := json.Marshal(queue.BuildGraphMsg{
		DatasetLocation:     body.DatasetLocation,
		EnrichSimilarity:    body.EnrichSimilarity,
		SimilarityThreshold: body.SimilarityThreshold,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	if err := queue.PublishFIFO(app.Queue, queue.BuildQueue, msg); err != nil {
		logger.Error("[Server] Failed to enqueue build", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusAccepted, map[string]string{"message": "Build enqueued"})
}

// TriggerExportHandler enqueues a graph export upload for the worker.
func TriggerExportHandler(c echo.Context) error {
	type exportBody struct {
		Format string `json:"format" validate:"omitempty,oneof=graphml html"`
		Key    string `json:"key" validate:"required"`
	}

	app := c.(*middleware.AppContext).App

	body := new(exportBody)
	if err := c.Bind(body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	msg, err := json.Marshal(queue.ExportGraphMsg{
		Format: body.Format,
		Key:    body.Key,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	if err := queue.PublishFIFO(app.Queue, queue.ExportQueue, msg); err != nil {
		logger.Error("[Server] Failed to enqueue export", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusAccepted, map[string]string{"message": "Export enqueued"})
}
