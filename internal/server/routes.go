package server

import (
	"github.com/storygraph/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Story routes
	apiRoutes.GET("/stories", routes.GetStoriesHandler)
	apiRoutes.GET("/stories/:id", routes.GetStoryHandler)
	apiRoutes.GET("/stories/:id/events", routes.GetStoryEventsHandler)
	apiRoutes.POST("/stories/:id/merge", routes.MergeStoriesHandler)
	apiRoutes.POST("/stories/:id/split", routes.SplitStoryHandler)
	apiRoutes.POST("/stories/recluster", routes.ReclusterHandler)

	// News routes
	apiRoutes.GET("/news", routes.GetNewsListHandler)
	apiRoutes.GET("/news/search", routes.SearchNewsHandler)
	apiRoutes.GET("/news/:id", routes.GetNewsItemHandler)
	apiRoutes.GET("/news/:id/related", routes.GetRelatedNewsHandler)
	apiRoutes.POST("/news", routes.CreateNewsHandler)
	apiRoutes.PATCH("/news/relations", routes.UpdateEditorialEdgeHandler)
	apiRoutes.POST("/similarities/compute", routes.ComputeSimilaritiesHandler)

	// Actor routes
	apiRoutes.GET("/actors", routes.GetActorsHandler)
	apiRoutes.GET("/actors/:id", routes.GetActorHandler)
	apiRoutes.GET("/actors/:id/mentions", routes.GetActorMentionsHandler)
	apiRoutes.GET("/actors/:id/relations", routes.GetActorRelationsHandler)

	// Event routes
	apiRoutes.GET("/events", routes.GetEventsHandler)

	// Graph views
	apiRoutes.GET("/graph/news", routes.GetNewsGraphHandler)
	apiRoutes.GET("/graph/actors", routes.GetActorsGraphHandler)
	apiRoutes.GET("/stats", routes.GetStatsHandler)

	// Extraction control
	apiRoutes.GET("/extraction/status", routes.GetExtractionStatusHandler)
	apiRoutes.POST("/extraction/all", routes.StartExtractionAllHandler)
	apiRoutes.POST("/extraction/initialize", routes.StartInitializationHandler)
	apiRoutes.POST("/extraction/stories/:id", routes.ExtractStoryHandler)
	apiRoutes.POST("/extraction/news/:id", routes.ExtractNewsHandler)
	apiRoutes.POST("/extraction/reset", routes.ResetExtractionHandler)
}
