package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/storygraph/backend/internal/ingest"
	"github.com/storygraph/backend/internal/util"
	"github.com/storygraph/backend/pkg/ai"
	"github.com/storygraph/backend/pkg/cluster"
	"github.com/storygraph/backend/pkg/extract"
	"github.com/storygraph/backend/pkg/graphstore"
	"github.com/storygraph/backend/pkg/logger"
)

const (
	defaultSimilarityThreshold = 0.5
	defaultActorBoostFactor    = 0.1
)

// ProcessIngest registers one raw news payload: normalize, embed, add to the
// graph, recompute similarity edges and queue the document for extraction.
func ProcessIngest(ctx context.Context, graph *graphstore.Store, aiClient ai.NewsAIClient, ch *amqp091.Channel, body []byte) error {
	var job IngestJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("failed to decode ingest job: %w", err)
	}

	news := ingest.Normalize(ingest.RawItem{
		Title:       job.Title,
		Summary:     job.Summary,
		FullText:    job.FullText,
		URL:         job.URL,
		Source:      job.Source,
		Author:      job.Author,
		PublishedAt: job.PublishedAt,
	}, time.Now().UTC())

	embedding, err := util.RetryWithContext(ctx, 3, func(ctx context.Context) ([]float32, error) {
		return aiClient.GenerateEmbedding(ctx, []byte(news.Text()))
	})
	if err != nil {
		logger.Warn("[Worker] Embedding failed, registering without vector", "news", news.ID, "err", err)
	} else {
		news.Embedding = embedding
	}

	if err := graph.AddNews(ctx, news); err != nil {
		return fmt.Errorf("failed to register news: %w", err)
	}

	if len(news.Embedding) > 0 {
		if _, err := graph.ComputeSimilarities(ctx, defaultSimilarityThreshold); err != nil {
			return fmt.Errorf("failed to compute similarities: %w", err)
		}
		if err := graph.BoostSharedActors(ctx, defaultActorBoostFactor); err != nil {
			return fmt.Errorf("failed to boost shared actors: %w", err)
		}
	}

	extractJob, err := json.Marshal(ExtractJob{NewsID: news.ID})
	if err != nil {
		return err
	}
	if err := util.RetryErr(3, func() error {
		return PublishFIFO(ch, ExtractQueue, extractJob)
	}); err != nil {
		return fmt.Errorf("failed to queue extraction: %w", err)
	}

	logger.Info("[Worker] Registered news", "news", news.ID, "source", news.Source)
	return nil
}

// ProcessExtract runs mention extraction for one registered news item.
func ProcessExtract(ctx context.Context, graph *graphstore.Store, orchestrator *extract.Orchestrator, body []byte) error {
	var job ExtractJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("failed to decode extract job: %w", err)
	}

	news, err := graph.News(job.NewsID)
	if err != nil {
		return fmt.Errorf("failed to load news %s: %w", job.NewsID, err)
	}

	return orchestrator.ExtractForNews(ctx, news)
}

// ProcessCluster runs one reclustering pass.
func ProcessCluster(ctx context.Context, engine *cluster.Engine, body []byte) error {
	var job ClusterJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("failed to decode cluster job: %w", err)
	}

	stories, err := engine.Cluster(ctx)
	if err != nil {
		return fmt.Errorf("failed to recluster: %w", err)
	}

	logger.Info("[Worker] Reclustered", "stories", len(stories), "strategy", job.Strategy)
	return nil
}
