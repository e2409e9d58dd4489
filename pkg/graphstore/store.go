// Package graphstore holds the three graph layers of the system over a
// shared key space: the news graph (undirected, weighted similarity edges),
// the actor graph (directed, typed relation edges) and the mentions graph
// (bipartite news-actor edges). All three layers plus the lookup maps are a
// derived cache over the durable store; every mutation goes through this
// package so the layers and the store never diverge.
package graphstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/storygraph/backend/pkg/common"
	"github.com/storygraph/backend/pkg/store"
)

// Store owns the in-memory graph layers and the durable store behind them.
// External code must never hold and mutate a layer directly.
type Store struct {
	mu      sync.RWMutex
	storage store.Storage

	news    map[string]*common.News
	actors  map[string]*common.Actor
	stories map[string]*common.Story
	events  map[string]*common.Event

	// newsEdges holds each undirected edge under both endpoint keys.
	newsEdges map[string]map[string]*common.NewsRelation
	// actorEdges is directed: source id -> target id -> relation.
	actorEdges map[string]map[string]*common.ActorRelation

	// Bipartite mention layer, kept in both directions for O(1) lookups.
	mentionsByNews  map[string]map[string]struct{}
	mentionsByActor map[string]map[string]struct{}
}

// New creates an empty graph store backed by the given durable storage.
func New(storage store.Storage) *Store {
	return &Store{
		storage:         storage,
		news:            make(map[string]*common.News),
		actors:          make(map[string]*common.Actor),
		stories:         make(map[string]*common.Story),
		events:          make(map[string]*common.Event),
		newsEdges:       make(map[string]map[string]*common.NewsRelation),
		actorEdges:      make(map[string]map[string]*common.ActorRelation),
		mentionsByNews:  make(map[string]map[string]struct{}),
		mentionsByActor: make(map[string]map[string]struct{}),
	}
}

// Load rebuilds every in-memory layer from the durable store.
func (s *Store) Load(ctx context.Context) error {
	snap, err := s.storage.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load durable snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.news = make(map[string]*common.News, len(snap.News))
	for _, n := range snap.News {
		s.news[n.ID] = n
	}
	s.actors = make(map[string]*common.Actor, len(snap.Actors))
	for _, a := range snap.Actors {
		s.actors[a.ID] = a
	}
	s.stories = make(map[string]*common.Story, len(snap.Stories))
	for _, st := range snap.Stories {
		s.stories[st.ID] = st
	}
	s.events = make(map[string]*common.Event, len(snap.Events))
	for _, e := range snap.Events {
		s.events[e.ID] = e
	}

	s.newsEdges = make(map[string]map[string]*common.NewsRelation)
	for _, r := range snap.NewsRelations {
		if r.SourceNewsID == r.TargetNewsID {
			continue
		}
		if _, ok := s.news[r.SourceNewsID]; !ok {
			continue
		}
		if _, ok := s.news[r.TargetNewsID]; !ok {
			continue
		}
		s.setNewsEdge(r)
	}

	s.actorEdges = make(map[string]map[string]*common.ActorRelation)
	for _, r := range snap.ActorRelations {
		if _, ok := s.actors[r.SourceActorID]; !ok {
			continue
		}
		if _, ok := s.actors[r.TargetActorID]; !ok {
			continue
		}
		s.setActorEdge(r)
	}

	s.rebuildMentionsLocked()
	return nil
}

// Stats describes the size of every layer, for the stats endpoint.
type Stats struct {
	NewsCount      int `json:"news_count"`
	ActorsCount    int `json:"actors_count"`
	StoriesCount   int `json:"stories_count"`
	EventsCount    int `json:"events_count"`
	NewsEdges      int `json:"news_edges"`
	ActorEdges     int `json:"actor_edges"`
	MentionEdges   int `json:"mention_edges"`
	NewsComponents int `json:"news_components"`
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	newsEdges := 0
	for _, peers := range s.newsEdges {
		newsEdges += len(peers)
	}
	actorEdges := 0
	for _, peers := range s.actorEdges {
		actorEdges += len(peers)
	}
	mentionEdges := 0
	for _, actors := range s.mentionsByNews {
		mentionEdges += len(actors)
	}

	return Stats{
		NewsCount:      len(s.news),
		ActorsCount:    len(s.actors),
		StoriesCount:   len(s.stories),
		EventsCount:    len(s.events),
		NewsEdges:      newsEdges / 2,
		ActorEdges:     actorEdges,
		MentionEdges:   mentionEdges,
		NewsComponents: len(s.componentsLocked(1)),
	}
}

func (s *Store) setNewsEdge(r *common.NewsRelation) {
	if s.newsEdges[r.SourceNewsID] == nil {
		s.newsEdges[r.SourceNewsID] = make(map[string]*common.NewsRelation)
	}
	if s.newsEdges[r.TargetNewsID] == nil {
		s.newsEdges[r.TargetNewsID] = make(map[string]*common.NewsRelation)
	}
	s.newsEdges[r.SourceNewsID][r.TargetNewsID] = r
	s.newsEdges[r.TargetNewsID][r.SourceNewsID] = r
}

func (s *Store) setActorEdge(r *common.ActorRelation) {
	if s.actorEdges[r.SourceActorID] == nil {
		s.actorEdges[r.SourceActorID] = make(map[string]*common.ActorRelation)
	}
	s.actorEdges[r.SourceActorID][r.TargetActorID] = r
}

// sortedNewsIDs returns all news ids in lexicographic order. Deterministic
// iteration keeps similarity computation and clustering output stable.
func (s *Store) sortedNewsIDs() []string {
	ids := make([]string, 0, len(s.news))
	for id := range s.news {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) sortedActorIDs() []string {
	ids := make([]string, 0, len(s.actors))
	for id := range s.actors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
