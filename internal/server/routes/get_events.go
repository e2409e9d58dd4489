package routes

import (
	"net/http"

	"github.com/storygraph/backend/internal/server/middleware"
	"github.com/storygraph/backend/pkg/common"

	"github.com/labstack/echo/v4"
)

// GetEventsHandler lists timeline events, newest first, with optional story
// and type filters.
func GetEventsHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	storyID := c.QueryParam("story_id")
	eventType := c.QueryParam("event_type")
	limit := queryInt(c, "limit", 100)

	events := app.Graph.AllEvents()
	filtered := make([]*common.Event, 0, len(events))
	for _, e := range events {
		if storyID != "" && e.StoryID != storyID {
			continue
		}
		if eventType != "" && string(e.Type) != eventType {
			continue
		}
		filtered = append(filtered, e)
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	return c.JSON(http.StatusOK, filtered)
}
