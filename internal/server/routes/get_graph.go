package routes

import (
	"net/http"

	"github.com/storygraph/backend/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// GetNewsGraphHandler returns the news similarity graph in a node/link shape
// for visualization, either for one story's subgraph or the full graph.
func GetNewsGraphHandler(c echo.Context) error {
	type node struct {
		ID       string   `json:"id"`
		Type     string   `json:"type"`
		Title    string   `json:"title"`
		StoryID  string   `json:"story_id,omitempty"`
		Domains  []string `json:"domains,omitempty"`
		IsPinned bool     `json:"is_pinned"`
	}
	type link struct {
		Source string  `json:"source"`
		Target string  `json:"target"`
		Weight float64 `json:"weight"`
		Type   string  `json:"type"`
	}
	type storyView struct {
		ID        string   `json:"id"`
		Title     string   `json:"title"`
		NewsIDs   []string `json:"news_ids"`
		Domain    string   `json:"domain,omitempty"`
		Size      int      `json:"size"`
		Relevance float64  `json:"relevance"`
		Cohesion  float64  `json:"cohesion"`
	}

	app := c.(*middleware.AppContext).App

	var (
		newsIDs []string
		stories []storyView
	)
	if storyID := c.QueryParam("story_id"); storyID != "" {
		story, err := app.Graph.Story(storyID)
		if err != nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Story not found"})
		}
		newsIDs = story.NewsIDs
		stories = append(stories, storyView{
			ID:        story.ID,
			Title:     story.Title,
			NewsIDs:   story.NewsIDs,
			Domain:    story.PrimaryDomain,
			Size:      story.Size,
			Relevance: story.Relevance,
			Cohesion:  story.Cohesion,
		})
	} else {
		for _, n := range app.Graph.AllNews() {
			newsIDs = append(newsIDs, n.ID)
		}
		for _, story := range app.Graph.AllStories() {
			stories = append(stories, storyView{
				ID:        story.ID,
				Title:     story.Title,
				NewsIDs:   story.NewsIDs,
				Domain:    story.PrimaryDomain,
				Size:      story.Size,
				Relevance: story.Relevance,
				Cohesion:  story.Cohesion,
			})
		}
	}

	nodes := make([]node, 0, len(newsIDs))
	for _, id := range newsIDs {
		news, err := app.Graph.News(id)
		if err != nil {
			continue
		}
		nodes = append(nodes, node{
			ID:       news.ID,
			Type:     "news",
			Title:    news.Title,
			StoryID:  news.StoryID,
			Domains:  news.Domains,
			IsPinned: news.IsPinned,
		})
	}

	edges := app.Graph.Subgraph(newsIDs)
	links := make([]link, 0, len(edges))
	for _, edge := range edges {
		links = append(links, link{
			Source: edge.SourceNewsID,
			Target: edge.TargetNewsID,
			Weight: edge.Weight,
			Type:   "similarity",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"nodes":   nodes,
		"links":   links,
		"stories": stories,
	})
}

// GetActorsGraphHandler returns the actor relation graph plus the bipartite
// mention layer for visualization.
func GetActorsGraphHandler(c echo.Context) error {
	type node struct {
		ID    string `json:"id"`
		Label string `json:"label"`
		Type  string `json:"type"`
	}
	type edge struct {
		Source       string  `json:"source"`
		Target       string  `json:"target"`
		RelationType string  `json:"relation_type"`
		Weight       float64 `json:"weight"`
	}
	type mention struct {
		NewsID  string `json:"news_id"`
		ActorID string `json:"actor_id"`
	}

	app := c.(*middleware.AppContext).App

	actors := app.Graph.AllActors()
	nodes := make([]node, 0, len(actors))
	mentions := make([]mention, 0)
	for _, actor := range actors {
		nodes = append(nodes, node{
			ID:    actor.ID,
			Label: actor.CanonicalName,
			Type:  string(actor.Type),
		})
		for _, newsID := range app.Graph.ActorNews(actor.ID) {
			mentions = append(mentions, mention{NewsID: newsID, ActorID: actor.ID})
		}
	}

	relations := app.Graph.AllActorRelations()
	edges := make([]edge, 0, len(relations))
	for _, rel := range relations {
		edges = append(edges, edge{
			Source:       rel.SourceActorID,
			Target:       rel.TargetActorID,
			RelationType: string(rel.Type),
			Weight:       rel.Weight,
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"nodes":    nodes,
		"edges":    edges,
		"mentions": mentions,
	})
}

// GetStatsHandler returns the size of every graph layer.
func GetStatsHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	return c.JSON(http.StatusOK, app.Graph.Stats())
}
