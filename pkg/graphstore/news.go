package graphstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/storygraph/backend/pkg/ai"
	"github.com/storygraph/backend/pkg/common"
	"github.com/storygraph/backend/pkg/store"
)

// AddNews upserts a news node, rebuilds its mention edges from the item's
// current mention list, and persists it. Idempotent on id.
func (s *Store) AddNews(ctx context.Context, news *common.News) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if news.CreatedAt.IsZero() {
		news.CreatedAt = time.Now().UTC()
	}
	s.news[news.ID] = news
	s.resetNewsMentionsLocked(news.ID)
	for _, actorID := range news.MentionedActors {
		s.addMentionLocked(news.ID, actorID)
	}

	if err := s.storage.SaveNews(ctx, news); err != nil {
		return fmt.Errorf("failed to persist news %s: %w", news.ID, err)
	}
	return nil
}

// News returns the news item with the given id.
func (s *Store) News(id string) (*common.News, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	news, ok := s.news[id]
	if !ok {
		return nil, fmt.Errorf("news %s: %w", id, ErrNotFound)
	}
	return news, nil
}

// AllNews returns every news item, newest first.
func (s *Store) AllNews() []*common.News {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*common.News, 0, len(s.news))
	for _, id := range s.sortedNewsIDs() {
		items = append(items, s.news[id])
	}
	sortNewsByPublishedDesc(items)
	return items
}

// AddNewsRelation adds or updates the undirected similarity edge between two
// existing news items. Self-loops and edges to unknown ids are rejected.
func (s *Store) AddNewsRelation(ctx context.Context, sourceID, targetID string, similarity, weight float64, editorial bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addNewsRelationLocked(ctx, sourceID, targetID, similarity, weight, editorial)
}

func (s *Store) addNewsRelationLocked(ctx context.Context, sourceID, targetID string, similarity, weight float64, editorial bool) error {
	if sourceID == targetID {
		return fmt.Errorf("news relation %s->%s: %w", sourceID, targetID, ErrSelfLoop)
	}
	if _, ok := s.news[sourceID]; !ok {
		return fmt.Errorf("news %s: %w", sourceID, ErrNotFound)
	}
	if _, ok := s.news[targetID]; !ok {
		return fmt.Errorf("news %s: %w", targetID, ErrNotFound)
	}

	rel := s.newsEdges[sourceID][targetID]
	if rel == nil {
		rel = &common.NewsRelation{
			SourceNewsID: sourceID,
			TargetNewsID: targetID,
			CreatedAt:    time.Now().UTC(),
		}
		s.setNewsEdge(rel)
	}
	rel.Similarity = similarity
	rel.Weight = weight
	rel.IsEditorial = editorial

	if err := s.storage.SaveNewsRelation(ctx, rel); err != nil {
		return fmt.Errorf("failed to persist news relation: %w", err)
	}
	return nil
}

// UpdateEditorialEdge sets an editorial weight on the edge between two news
// items, creating the edge when absent.
func (s *Store) UpdateEditorialEdge(ctx context.Context, sourceID, targetID string, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rel := s.newsEdges[sourceID][targetID]; rel != nil {
		rel.Weight = weight
		rel.IsEditorial = true
		if err := s.storage.SaveNewsRelation(ctx, rel); err != nil {
			return fmt.Errorf("failed to persist news relation: %w", err)
		}
		return nil
	}
	return s.addNewsRelationLocked(ctx, sourceID, targetID, weight, weight, true)
}

// FindSimilarNews runs a vector similarity search against the durable store
// and returns matches at or above threshold, best first.
func (s *Store) FindSimilarNews(ctx context.Context, embedding []float32, threshold float64, limit int) ([]store.SimilarNews, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	return s.storage.FindSimilarNews(ctx, embedding, threshold, limit)
}

// ComputeSimilarities compares the embeddings of every news pair and
// creates/updates similarity edges for pairs at or above threshold. Editorial
// weights survive recomputation; only the similarity field is refreshed on
// editorially-touched edges.
func (s *Store) ComputeSimilarities(ctx context.Context, threshold float64) ([]*common.NewsRelation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.sortedNewsIDs()
	embedded := make([]*common.News, 0, len(ids))
	for _, id := range ids {
		if n := s.news[id]; len(n.Embedding) > 0 {
			embedded = append(embedded, n)
		}
	}

	var relations []*common.NewsRelation
	for i := 0; i < len(embedded); i++ {
		for j := i + 1; j < len(embedded); j++ {
			sim := ai.CosineSimilarity(embedded[i].Embedding, embedded[j].Embedding)
			if sim < threshold {
				continue
			}

			if rel := s.newsEdges[embedded[i].ID][embedded[j].ID]; rel != nil && rel.IsEditorial {
				rel.Similarity = sim
				if err := s.storage.SaveNewsRelation(ctx, rel); err != nil {
					return nil, fmt.Errorf("failed to persist news relation: %w", err)
				}
				relations = append(relations, rel)
				continue
			}

			err := s.addNewsRelationLocked(ctx, embedded[i].ID, embedded[j].ID, sim, sim, false)
			if err != nil {
				return nil, err
			}
			relations = append(relations, s.newsEdges[embedded[i].ID][embedded[j].ID])
		}
	}
	return relations, nil
}

// BoostSharedActors raises the weight of news edges whose endpoints mention
// common actors, by boostFactor per shared actor, capped at 1.0.
func (s *Store) BoostSharedActors(ctx context.Context, boostFactor float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sourceID := range s.sortedNewsIDs() {
		for targetID, rel := range s.newsEdges[sourceID] {
			if sourceID >= targetID {
				// Undirected edges live under both keys; visit each once.
				continue
			}
			shared := s.sharedActorCountLocked(sourceID, targetID)
			if shared == 0 {
				continue
			}
			boosted := rel.Weight + boostFactor*float64(shared)
			if boosted > 1.0 {
				boosted = 1.0
			}
			if boosted == rel.Weight {
				continue
			}
			rel.Weight = boosted
			if err := s.storage.SaveNewsRelation(ctx, rel); err != nil {
				return fmt.Errorf("failed to persist news relation: %w", err)
			}
		}
	}
	return nil
}

func (s *Store) sharedActorCountLocked(a, b string) int {
	count := 0
	for actorID := range s.mentionsByNews[a] {
		if _, ok := s.mentionsByNews[b][actorID]; ok {
			count++
		}
	}
	return count
}

func sortNewsByPublishedDesc(items []*common.News) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
}
