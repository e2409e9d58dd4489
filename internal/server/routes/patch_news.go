package routes

import (
	"net/http"

	"github.com/storygraph/backend/internal/server/middleware"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// UpdateEditorialEdgeHandler sets the weight of a similarity edge by hand,
// creating the edge when absent. Editorial edges survive similarity
// recomputation.
func UpdateEditorialEdgeHandler(c echo.Context) error {
	type editorialEdgeBody struct {
		SourceNewsID string  `json:"source_news_id" validate:"required"`
		TargetNewsID string  `json:"target_news_id" validate:"required"`
		Weight       float64 `json:"weight" validate:"gte=0,lte=1"`
	}

	data := new(editorialEdgeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	err := app.Graph.UpdateEditorialEdge(ctx, data.SourceNewsID, data.TargetNewsID, data.Weight)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to update edge"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Edge updated"})
}
