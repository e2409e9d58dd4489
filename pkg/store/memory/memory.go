// Package memory provides an in-memory Storage implementation, used by tests
// and by deployments that run fully from a mounted data snapshot.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/storygraph/backend/pkg/ai"
	"github.com/storygraph/backend/pkg/common"
	"github.com/storygraph/backend/pkg/store"
)

type Store struct {
	mu             sync.RWMutex
	news           map[string]*common.News
	actors         map[string]*common.Actor
	stories        map[string]*common.Story
	events         map[string]*common.Event
	newsRelations  map[string]*common.NewsRelation
	actorRelations map[string]*common.ActorRelation
}

func New() *Store {
	return &Store{
		news:           make(map[string]*common.News),
		actors:         make(map[string]*common.Actor),
		stories:        make(map[string]*common.Story),
		events:         make(map[string]*common.Event),
		newsRelations:  make(map[string]*common.NewsRelation),
		actorRelations: make(map[string]*common.ActorRelation),
	}
}

func (s *Store) SaveNews(_ context.Context, news *common.News) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.news[news.ID] = news
	return nil
}

func (s *Store) GetNews(_ context.Context, id string) (*common.News, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	news, ok := s.news[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return news, nil
}

func (s *Store) SaveActor(_ context.Context, actor *common.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[actor.ID] = actor
	return nil
}

func (s *Store) GetActor(_ context.Context, id string) (*common.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	actor, ok := s.actors[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return actor, nil
}

func (s *Store) DeleteActor(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.actors, id)
	return nil
}

func (s *Store) SaveStory(_ context.Context, story *common.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stories[story.ID] = story
	return nil
}

func (s *Store) GetStory(_ context.Context, id string) (*common.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	story, ok := s.stories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return story, nil
}

func (s *Store) DeleteStory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stories, id)
	return nil
}

func (s *Store) SaveEvent(_ context.Context, event *common.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = event
	return nil
}

func (s *Store) GetEvent(_ context.Context, id string) (*common.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return event, nil
}

func (s *Store) SaveNewsRelation(_ context.Context, rel *common.NewsRelation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newsRelations[relationKey(rel.SourceNewsID, rel.TargetNewsID)] = rel
	return nil
}

func (s *Store) SaveActorRelation(_ context.Context, rel *common.ActorRelation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actorRelations[rel.ID] = rel
	return nil
}

func (s *Store) DeleteActorRelation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.actorRelations, id)
	return nil
}

func (s *Store) FindSimilarNews(_ context.Context, embedding []float32, threshold float64, limit int) ([]store.SimilarNews, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []store.SimilarNews
	for _, n := range s.news {
		if len(n.Embedding) == 0 {
			continue
		}
		sim := ai.CosineSimilarity(embedding, n.Embedding)
		if sim >= threshold {
			hits = append(hits, store.SimilarNews{NewsID: n.ID, Similarity: sim})
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *Store) LoadAll(_ context.Context) (*store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &store.Snapshot{}
	for _, n := range s.news {
		snap.News = append(snap.News, n)
	}
	for _, a := range s.actors {
		snap.Actors = append(snap.Actors, a)
	}
	for _, st := range s.stories {
		snap.Stories = append(snap.Stories, st)
	}
	for _, e := range s.events {
		snap.Events = append(snap.Events, e)
	}
	for _, r := range s.newsRelations {
		snap.NewsRelations = append(snap.NewsRelations, r)
	}
	for _, r := range s.actorRelations {
		snap.ActorRelations = append(snap.ActorRelations, r)
	}
	return snap, nil
}

func (s *Store) Close() {}

// relationKey builds an order-independent key for an undirected edge.
func relationKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}
