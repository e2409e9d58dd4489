package routes

import (
	"net/http"
	"strconv"

	"github.com/storygraph/backend/internal/server/middleware"
	"github.com/storygraph/backend/pkg/cluster"
	"github.com/storygraph/backend/pkg/common"

	"github.com/labstack/echo/v4"
)

// GetStoriesHandler lists stories, sorted and truncated per query params.
func GetStoriesHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	activeOnly := c.QueryParam("active_only") != "false"
	sortBy := c.QueryParam("sort_by")
	if sortBy == "" {
		sortBy = "relevance"
	}
	limit := queryInt(c, "limit", 100)

	stories := app.Graph.AllStories()
	if activeOnly {
		active := make([]*common.Story, 0, len(stories))
		for _, story := range stories {
			if story.IsActive {
				active = append(active, story)
			}
		}
		stories = active
	}

	cluster.SortStories(stories, sortBy)
	if len(stories) > limit {
		stories = stories[:limit]
	}

	return c.JSON(http.StatusOK, stories)
}

// GetStoryHandler returns one story by id.
func GetStoryHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	story, err := app.Graph.Story(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Story not found"})
	}

	return c.JSON(http.StatusOK, story)
}

// GetStoryEventsHandler returns a story's timeline, oldest event first.
func GetStoryEventsHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	events, err := app.Graph.StoryEvents(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Story not found"})
	}

	return c.JSON(http.StatusOK, events)
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func queryFloat(c echo.Context, name string, fallback float64) float64 {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 || value > 1 {
		return fallback
	}
	return value
}
