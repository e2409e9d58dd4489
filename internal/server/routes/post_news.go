package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/storygraph/backend/internal/queue"
	"github.com/storygraph/backend/internal/server/middleware"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// CreateNewsHandler accepts a raw news payload and queues it for ingestion.
// The worker normalizes, embeds and registers the document.
func CreateNewsHandler(c echo.Context) error {
	type createNewsBody struct {
		Title       string     `json:"title" validate:"required"`
		Summary     string     `json:"summary"`
		FullText    string     `json:"full_text"`
		URL         string     `json:"url"`
		Source      string     `json:"source"`
		Author      string     `json:"author"`
		PublishedAt *time.Time `json:"published_at"`
	}

	data := new(createNewsBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App

	job, err := json.Marshal(queue.IngestJob{
		Title:       data.Title,
		Summary:     data.Summary,
		FullText:    data.FullText,
		URL:         data.URL,
		Source:      data.Source,
		Author:      data.Author,
		PublishedAt: data.PublishedAt,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if err := queue.PublishFIFO(app.Queue, queue.IngestQueue, job); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to queue ingestion"})
	}

	return c.JSON(http.StatusAccepted, map[string]string{"message": "News queued for ingestion"})
}

// ComputeSimilaritiesHandler recomputes similarity edges over all embedded
// news and boosts edges between items sharing actors.
func ComputeSimilaritiesHandler(c echo.Context) error {
	type computeBody struct {
		Threshold   float64 `json:"threshold"`
		BoostFactor float64 `json:"boost_factor"`
	}

	data := new(computeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if data.Threshold <= 0 {
		data.Threshold = 0.5
	}
	if data.BoostFactor <= 0 {
		data.BoostFactor = 0.1
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	relations, err := app.Graph.ComputeSimilarities(ctx, data.Threshold)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to compute similarities"})
	}
	if err := app.Graph.BoostSharedActors(ctx, data.BoostFactor); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to boost shared actors"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message":       "Similarities computed",
		"edges_created": len(relations),
	})
}
