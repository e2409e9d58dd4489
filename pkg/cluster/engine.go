package cluster

import (
	"context"
	"fmt"

	"github.com/storygraph/backend/pkg/common"
	"github.com/storygraph/backend/pkg/graphstore"
	"github.com/storygraph/backend/pkg/logger"
)

// Strategy selects how news items are grouped into story candidates.
type Strategy string

const (
	// StrategyGraph groups news by connected components of the similarity
	// graph. Default.
	StrategyGraph Strategy = "graph"
	// StrategyEmbedding runs density-based clustering over news embeddings.
	// Items in no dense region are noise and get no story.
	StrategyEmbedding Strategy = "embedding"
)

// Config tunes the clustering engine. Zero values fall back to defaults.
type Config struct {
	Strategy       Strategy
	MinClusterSize int
	// Eps is the DBSCAN neighborhood radius in cosine distance. Only used
	// by StrategyEmbedding.
	Eps           float64
	TopActorLimit int
}

const (
	defaultMinClusterSize = 2
	defaultEps            = 0.3
	defaultTopActorLimit  = 10
)

func (c Config) withDefaults() Config {
	if c.Strategy == "" {
		c.Strategy = StrategyGraph
	}
	if c.MinClusterSize <= 0 {
		c.MinClusterSize = defaultMinClusterSize
	}
	if c.Eps <= 0 {
		c.Eps = defaultEps
	}
	if c.TopActorLimit <= 0 {
		c.TopActorLimit = defaultTopActorLimit
	}
	return c
}

// Engine builds stories from the news graph and keeps their metrics current.
type Engine struct {
	graph *graphstore.Store
	cfg   Config
}

func NewEngine(graph *graphstore.Store, cfg Config) *Engine {
	return &Engine{graph: graph, cfg: cfg.withDefaults()}
}

// Cluster groups news into story candidates using the configured strategy,
// replacing all previous non-editorial stories. Editorially locked stories
// are left untouched and their members are excluded from reclustering.
func (e *Engine) Cluster(ctx context.Context) ([]*common.Story, error) {
	locked := make(map[string]struct{})
	for _, story := range e.graph.AllStories() {
		if story.IsEditorial {
			for _, id := range story.NewsIDs {
				locked[id] = struct{}{}
			}
			continue
		}
		if err := e.graph.RemoveStory(ctx, story.ID); err != nil {
			return nil, fmt.Errorf("failed to remove stale story %s: %w", story.ID, err)
		}
	}

	var groups [][]string
	switch e.cfg.Strategy {
	case StrategyEmbedding:
		groups = e.clusterByEmbeddings(locked)
	default:
		groups = e.clusterByComponents(locked)
	}

	stories := make([]*common.Story, 0, len(groups))
	for _, newsIDs := range groups {
		story, err := e.BuildStory(ctx, newsIDs, false)
		if err != nil {
			return nil, err
		}
		stories = append(stories, story)
	}

	logger.Info("[Cluster] Clustering completed", "strategy", string(e.cfg.Strategy), "stories", len(stories))
	return stories, nil
}

func (e *Engine) clusterByComponents(locked map[string]struct{}) [][]string {
	components := e.graph.ConnectedComponents(e.cfg.MinClusterSize)
	var groups [][]string
	for _, component := range components {
		free := component[:0:0]
		for _, id := range component {
			if _, held := locked[id]; held {
				continue
			}
			free = append(free, id)
		}
		if len(free) < e.cfg.MinClusterSize {
			continue
		}
		groups = append(groups, free)
	}
	return groups
}

func (e *Engine) clusterByEmbeddings(locked map[string]struct{}) [][]string {
	var ids []string
	var vectors [][]float32
	for _, news := range e.graph.AllNews() {
		if len(news.Embedding) == 0 {
			continue
		}
		if _, held := locked[news.ID]; held {
			continue
		}
		ids = append(ids, news.ID)
		vectors = append(vectors, news.Embedding)
	}
	if len(ids) < e.cfg.MinClusterSize {
		return nil
	}
	return dbscan(ids, vectors, e.cfg.Eps, e.cfg.MinClusterSize)
}
