package routes

import (
	"net/http"
	"sort"

	"github.com/storygraph/backend/internal/server/middleware"
	"github.com/storygraph/backend/pkg/common"

	"github.com/labstack/echo/v4"
)

// GetActorsHandler lists actors with an optional type filter.
func GetActorsHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	actorType := c.QueryParam("actor_type")
	limit := queryInt(c, "limit", 100)

	actors := app.Graph.AllActors()
	if actorType != "" {
		filtered := make([]*common.Actor, 0, len(actors))
		for _, a := range actors {
			if string(a.Type) == actorType {
				filtered = append(filtered, a)
			}
		}
		actors = filtered
	}
	if len(actors) > limit {
		actors = actors[:limit]
	}

	return c.JSON(http.StatusOK, actors)
}

// GetActorHandler returns one actor by id.
func GetActorHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	actor, err := app.Graph.Actor(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Actor not found"})
	}

	return c.JSON(http.StatusOK, actor)
}

// GetActorMentionsHandler returns the news mentioning an actor, newest first.
func GetActorMentionsHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	actorID := c.Param("id")
	limit := queryInt(c, "limit", 50)

	if _, err := app.Graph.Actor(actorID); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Actor not found"})
	}

	newsIDs := app.Graph.ActorNews(actorID)
	items := make([]*common.News, 0, len(newsIDs))
	for _, id := range newsIDs {
		if news, err := app.Graph.News(id); err == nil {
			items = append(items, news)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}

	return c.JSON(http.StatusOK, items)
}

// GetActorRelationsHandler returns every relation touching an actor, both
// outgoing and incoming.
func GetActorRelationsHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	relations, err := app.Graph.ActorRelations(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Actor not found"})
	}

	return c.JSON(http.StatusOK, relations)
}
