package routes

import (
	"errors"
	"net/http"

	"github.com/storygraph/backend/internal/server/middleware"
	"github.com/storygraph/backend/pkg/extract"
	"github.com/storygraph/backend/pkg/graphstore"

	"github.com/labstack/echo/v4"
)

// GetExtractionStatusHandler returns the current progress snapshot.
func GetExtractionStatusHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	return c.JSON(http.StatusOK, app.Orchestrator.Status())
}

// StartExtractionAllHandler starts a background extraction run over every
// registered news item. Starting while a run is active returns the active
// run's status.
func StartExtractionAllHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	progress := app.Orchestrator.ExtractAll(c.Request().Context())
	return c.JSON(http.StatusAccepted, progress)
}

// StartInitializationHandler wipes the actor layer and rebuilds it from
// scratch with a full extraction run.
func StartInitializationHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	progress := app.Orchestrator.StartInitialization(c.Request().Context())
	return c.JSON(http.StatusAccepted, progress)
}

// ExtractStoryHandler starts a background extraction run over one story's
// member news.
func ExtractStoryHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	progress, err := app.Orchestrator.ExtractForStory(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, graphstore.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Story not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to start extraction"})
	}

	return c.JSON(http.StatusAccepted, progress)
}

// ExtractNewsHandler runs extraction for one news item synchronously.
func ExtractNewsHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	news, err := app.Graph.News(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "News not found"})
	}

	if err := app.Orchestrator.ExtractForNews(c.Request().Context(), news); err != nil {
		if errors.Is(err, extract.ErrCredentialInvalid) {
			return c.JSON(http.StatusBadGateway, map[string]string{"error": "Extraction credential rejected"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Extraction failed"})
	}

	updated, err := app.Graph.News(news.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Extraction failed"})
	}
	return c.JSON(http.StatusOK, updated)
}

// ResetExtractionHandler clears orchestrator state. Results of any in-flight
// run are discarded when they arrive.
func ResetExtractionHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	return c.JSON(http.StatusOK, app.Orchestrator.Reset())
}
