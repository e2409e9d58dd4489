package routes

import (
	"net/http"
	"slices"
	"sort"

	"github.com/storygraph/backend/internal/server/middleware"
	"github.com/storygraph/backend/pkg/common"
	"github.com/storygraph/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetNewsListHandler lists news, newest first, with optional story, actor
// and domain filters.
func GetNewsListHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	storyID := c.QueryParam("story_id")
	actorID := c.QueryParam("actor_id")
	domain := c.QueryParam("domain")
	limit := queryInt(c, "limit", 100)

	items := app.Graph.AllNews()
	filtered := make([]*common.News, 0, len(items))
	for _, n := range items {
		if storyID != "" && n.StoryID != storyID {
			continue
		}
		if actorID != "" && !slices.Contains(n.MentionedActors, actorID) {
			continue
		}
		if domain != "" && !slices.Contains(n.Domains, domain) {
			continue
		}
		filtered = append(filtered, n)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].PublishedAt.After(filtered[j].PublishedAt)
	})
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	return c.JSON(http.StatusOK, filtered)
}

// GetNewsItemHandler returns one news item by id.
func GetNewsItemHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	news, err := app.Graph.News(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "News not found"})
	}

	return c.JSON(http.StatusOK, news)
}

// GetRelatedNewsHandler returns a news item's direct neighbors in the
// similarity graph, most similar first.
func GetRelatedNewsHandler(c echo.Context) error {
	type relatedNews struct {
		NewsID     string       `json:"news_id"`
		News       *common.News `json:"news"`
		Similarity float64      `json:"similarity"`
	}

	app := c.(*middleware.AppContext).App

	newsID := c.Param("id")
	limit := queryInt(c, "limit", 10)

	neighborIDs, err := app.Graph.Neighbors(newsID, 1)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "News not found"})
	}

	edges := app.Graph.Subgraph(append(neighborIDs, newsID))
	similarity := make(map[string]float64, len(neighborIDs))
	for _, edge := range edges {
		switch newsID {
		case edge.SourceNewsID:
			similarity[edge.TargetNewsID] = edge.Similarity
		case edge.TargetNewsID:
			similarity[edge.SourceNewsID] = edge.Similarity
		}
	}

	related := make([]relatedNews, 0, len(neighborIDs))
	for _, id := range neighborIDs {
		news, err := app.Graph.News(id)
		if err != nil {
			continue
		}
		related = append(related, relatedNews{
			NewsID:     id,
			News:       news,
			Similarity: similarity[id],
		})
	}

	sort.SliceStable(related, func(i, j int) bool {
		return related[i].Similarity > related[j].Similarity
	})
	if len(related) > limit {
		related = related[:limit]
	}

	return c.JSON(http.StatusOK, related)
}

// SearchNewsHandler embeds the query text and runs a vector similarity
// search over stored news embeddings.
func SearchNewsHandler(c echo.Context) error {
	type searchHit struct {
		NewsID     string       `json:"news_id"`
		News       *common.News `json:"news"`
		Similarity float64      `json:"similarity"`
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	query := c.QueryParam("q")
	if query == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Query parameter q is required"})
	}
	threshold := queryFloat(c, "threshold", 0.6)
	limit := queryInt(c, "limit", 10)

	embedding, err := app.AI.GenerateEmbedding(ctx, []byte(query))
	if err != nil {
		logger.Error("Failed to embed search query", "err", err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "Failed to embed query"})
	}

	matches, err := app.Graph.FindSimilarNews(ctx, embedding, threshold, limit)
	if err != nil {
		logger.Error("Vector search failed", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Search failed"})
	}

	hits := make([]searchHit, 0, len(matches))
	for _, match := range matches {
		news, err := app.Graph.News(match.NewsID)
		if err != nil {
			continue
		}
		hits = append(hits, searchHit{
			NewsID:     match.NewsID,
			News:       news,
			Similarity: match.Similarity,
		})
	}

	return c.JSON(http.StatusOK, hits)
}
