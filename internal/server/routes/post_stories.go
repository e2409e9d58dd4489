package routes

import (
	"encoding/json"
	"net/http"

	"github.com/storygraph/backend/internal/queue"
	"github.com/storygraph/backend/internal/server/middleware"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// MergeStoriesHandler merges the named story with one or more others into a
// brand-new editorial story.
func MergeStoriesHandler(c echo.Context) error {
	type mergeBody struct {
		OtherStoryIDs []string `json:"other_story_ids" validate:"required,min=1"`
	}

	data := new(mergeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	storyIDs := append([]string{c.Param("id")}, data.OtherStoryIDs...)
	merged, err := app.Cluster.MergeStories(ctx, storyIDs)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to merge stories"})
	}

	return c.JSON(http.StatusOK, merged)
}

// SplitStoryHandler splits a story into the given member groups.
func SplitStoryHandler(c echo.Context) error {
	type splitBody struct {
		NewsGroups [][]string `json:"news_groups" validate:"required,min=1"`
	}

	data := new(splitBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	stories, err := app.Cluster.SplitStory(ctx, c.Param("id"), data.NewsGroups)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to split story"})
	}

	return c.JSON(http.StatusOK, stories)
}

// ReclusterHandler queues a reclustering pass for the worker.
func ReclusterHandler(c echo.Context) error {
	type reclusterBody struct {
		Strategy string `json:"strategy,omitempty"`
	}

	data := new(reclusterBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App

	job, err := json.Marshal(queue.ClusterJob{Strategy: data.Strategy})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if err := queue.PublishFIFO(app.Queue, queue.ClusterQueue, job); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to queue reclustering"})
	}

	return c.JSON(http.StatusAccepted, map[string]string{"message": "Reclustering queued"})
}
