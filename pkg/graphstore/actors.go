package graphstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/storygraph/backend/pkg/common"
)

// AddActor upserts an actor node and persists it. Idempotent on id.
func (s *Store) AddActor(ctx context.Context, actor *common.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addActorLocked(ctx, actor)
}

func (s *Store) addActorLocked(ctx context.Context, actor *common.Actor) error {
	now := time.Now().UTC()
	if actor.CreatedAt.IsZero() {
		actor.CreatedAt = now
	}
	actor.UpdatedAt = now
	s.actors[actor.ID] = actor

	if err := s.storage.SaveActor(ctx, actor); err != nil {
		return fmt.Errorf("failed to persist actor %s: %w", actor.ID, err)
	}
	return nil
}

// Actor returns the actor with the given id.
func (s *Store) Actor(id string) (*common.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	actor, ok := s.actors[id]
	if !ok {
		return nil, fmt.Errorf("actor %s: %w", id, ErrNotFound)
	}
	return actor, nil
}

// AllActors returns every actor in stable (id) order.
func (s *Store) AllActors() []*common.Actor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	actors := make([]*common.Actor, 0, len(s.actors))
	for _, id := range s.sortedActorIDs() {
		actors = append(actors, s.actors[id])
	}
	return actors
}

// ActorCount returns the number of actors currently in the graph.
func (s *Store) ActorCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.actors)
}

// AddActorRelation adds or updates a directed typed edge between two existing
// actors. Relations referencing unknown actors are rejected.
func (s *Store) AddActorRelation(ctx context.Context, rel *common.ActorRelation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.actors[rel.SourceActorID]; !ok {
		return fmt.Errorf("actor %s: %w", rel.SourceActorID, ErrMissingEndpoint)
	}
	if _, ok := s.actors[rel.TargetActorID]; !ok {
		return fmt.Errorf("actor %s: %w", rel.TargetActorID, ErrMissingEndpoint)
	}

	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}
	if rel.IsEphemeral && rel.ExpiresAt == nil && rel.TTLDays > 0 {
		expires := rel.CreatedAt.Add(time.Duration(rel.TTLDays) * 24 * time.Hour)
		rel.ExpiresAt = &expires
	}
	s.setActorEdge(rel)

	if err := s.storage.SaveActorRelation(ctx, rel); err != nil {
		return fmt.Errorf("failed to persist actor relation %s: %w", rel.ID, err)
	}
	return nil
}

// ActorRelations returns all relations where the actor is source or target.
func (s *Store) ActorRelations(actorID string) ([]*common.ActorRelation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.actors[actorID]; !ok {
		return nil, fmt.Errorf("actor %s: %w", actorID, ErrNotFound)
	}

	var rels []*common.ActorRelation
	for _, rel := range s.actorEdges[actorID] {
		rels = append(rels, rel)
	}
	for sourceID, peers := range s.actorEdges {
		if sourceID == actorID {
			continue
		}
		if rel, ok := peers[actorID]; ok {
			rels = append(rels, rel)
		}
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })
	return rels, nil
}

// AllActorRelations returns every relation edge in the actor graph, sorted
// by relation id.
func (s *Store) AllActorRelations() []*common.ActorRelation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rels []*common.ActorRelation
	for _, peers := range s.actorEdges {
		for _, rel := range peers {
			rels = append(rels, rel)
		}
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })
	return rels
}

// SweepExpiredRelations removes ephemeral actor relations whose TTL has
// passed. Returns the number of relations removed.
func (s *Store) SweepExpiredRelations(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for sourceID, peers := range s.actorEdges {
		for targetID, rel := range peers {
			if !rel.Expired(now) {
				continue
			}
			delete(peers, targetID)
			removed++
			if err := s.storage.DeleteActorRelation(ctx, rel.ID); err != nil {
				return removed, fmt.Errorf("failed to delete actor relation %s: %w", rel.ID, err)
			}
		}
		if len(peers) == 0 {
			delete(s.actorEdges, sourceID)
		}
	}
	return removed, nil
}

// NewsActors returns the ids of all actors mentioned by a news item.
func (s *Store) NewsActors(newsID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.mentionsByNews[newsID])
}

// ActorNews returns the ids of all news mentioning an actor.
func (s *Store) ActorNews(actorID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.mentionsByActor[actorID])
}

// ActorMentionCount returns how many news items mention the actor.
func (s *Store) ActorMentionCount(actorID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mentionsByActor[actorID])
}

// RemapActors applies an entity-merge mapping to every downstream reference:
// news mention lists are rewritten through the mapping (dropping unknown ids,
// deduplicating), actor relations are repointed at surviving actors, losing
// actor nodes are removed, and the mention layer is rebuilt in full from the
// rewritten mention lists. Partial mention-edge surgery is deliberately not
// offered; a full rebuild is linear in edge count and trivially correct.
func (s *Store) RemapActors(ctx context.Context, mapping map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Rewrite news mention lists.
	for _, newsID := range s.sortedNewsIDs() {
		news := s.news[newsID]
		rewritten := make([]string, 0, len(news.MentionedActors))
		seen := make(map[string]struct{}, len(news.MentionedActors))
		changed := false
		for _, actorID := range news.MentionedActors {
			mapped, ok := mapping[actorID]
			if !ok {
				mapped = actorID
			} else if mapped != actorID {
				changed = true
			}
			if _, exists := s.actors[mapped]; !exists {
				changed = true
				continue
			}
			if _, dup := seen[mapped]; dup {
				changed = true
				continue
			}
			seen[mapped] = struct{}{}
			rewritten = append(rewritten, mapped)
		}
		if !changed {
			continue
		}
		news.MentionedActors = rewritten
		if err := s.storage.SaveNews(ctx, news); err != nil {
			return fmt.Errorf("failed to persist news %s: %w", newsID, err)
		}
	}

	// Repoint actor relations at survivors, dropping self-loops created by
	// the merge and edges to removed actors.
	remapped := make(map[string]map[string]*common.ActorRelation)
	for _, peers := range s.actorEdges {
		for _, rel := range peers {
			src := rel.SourceActorID
			if mapped, ok := mapping[src]; ok {
				src = mapped
			}
			tgt := rel.TargetActorID
			if mapped, ok := mapping[tgt]; ok {
				tgt = mapped
			}
			if src == tgt {
				if err := s.storage.DeleteActorRelation(ctx, rel.ID); err != nil {
					return fmt.Errorf("failed to delete actor relation %s: %w", rel.ID, err)
				}
				continue
			}

			changed := src != rel.SourceActorID || tgt != rel.TargetActorID
			rel.SourceActorID = src
			rel.TargetActorID = tgt

			// Two relations can collapse onto the same endpoint pair. The
			// lower relation id survives; the superseded row is deleted from
			// storage so it cannot resurface on the next load.
			if existing, ok := remapped[src][tgt]; ok {
				keep, drop := existing, rel
				if rel.ID < existing.ID {
					keep, drop = rel, existing
				}
				if err := s.storage.DeleteActorRelation(ctx, drop.ID); err != nil {
					return fmt.Errorf("failed to delete actor relation %s: %w", drop.ID, err)
				}
				if keep == rel && changed {
					if err := s.storage.SaveActorRelation(ctx, rel); err != nil {
						return fmt.Errorf("failed to persist actor relation %s: %w", rel.ID, err)
					}
				}
				remapped[src][tgt] = keep
				continue
			}

			if changed {
				if err := s.storage.SaveActorRelation(ctx, rel); err != nil {
					return fmt.Errorf("failed to persist actor relation %s: %w", rel.ID, err)
				}
			}
			if remapped[src] == nil {
				remapped[src] = make(map[string]*common.ActorRelation)
			}
			remapped[src][tgt] = rel
		}
	}
	s.actorEdges = remapped

	// Remove losing actor nodes.
	for losingID, survivorID := range mapping {
		if losingID == survivorID {
			continue
		}
		if _, ok := s.actors[losingID]; !ok {
			continue
		}
		delete(s.actors, losingID)
		if err := s.storage.DeleteActor(ctx, losingID); err != nil {
			return fmt.Errorf("failed to delete actor %s: %w", losingID, err)
		}
	}

	s.rebuildMentionsLocked()
	return nil
}

// RebuildMentions discards the mention layer and rebuilds it from each news
// item's current mention list.
func (s *Store) RebuildMentions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuildMentionsLocked()
}

func (s *Store) rebuildMentionsLocked() {
	s.mentionsByNews = make(map[string]map[string]struct{}, len(s.news))
	s.mentionsByActor = make(map[string]map[string]struct{}, len(s.actors))
	for _, news := range s.news {
		for _, actorID := range news.MentionedActors {
			s.addMentionLocked(news.ID, actorID)
		}
	}
}

func (s *Store) addMentionLocked(newsID, actorID string) {
	if s.mentionsByNews[newsID] == nil {
		s.mentionsByNews[newsID] = make(map[string]struct{})
	}
	if s.mentionsByActor[actorID] == nil {
		s.mentionsByActor[actorID] = make(map[string]struct{})
	}
	s.mentionsByNews[newsID][actorID] = struct{}{}
	s.mentionsByActor[actorID][newsID] = struct{}{}
}

func (s *Store) resetNewsMentionsLocked(newsID string) {
	for actorID := range s.mentionsByNews[newsID] {
		delete(s.mentionsByActor[actorID], newsID)
		if len(s.mentionsByActor[actorID]) == 0 {
			delete(s.mentionsByActor, actorID)
		}
	}
	delete(s.mentionsByNews, newsID)
}

// ClearActors removes every actor, actor relation and mention edge, and
// clears each news item's mention list. Used before a full re-extraction.
func (s *Store) ClearActors(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.sortedActorIDs() {
		if err := s.storage.DeleteActor(ctx, id); err != nil {
			return fmt.Errorf("failed to delete actor %s: %w", id, err)
		}
	}
	for _, peers := range s.actorEdges {
		for _, rel := range peers {
			if err := s.storage.DeleteActorRelation(ctx, rel.ID); err != nil {
				return fmt.Errorf("failed to delete actor relation %s: %w", rel.ID, err)
			}
		}
	}
	s.actors = make(map[string]*common.Actor)
	s.actorEdges = make(map[string]map[string]*common.ActorRelation)

	for _, newsID := range s.sortedNewsIDs() {
		news := s.news[newsID]
		if len(news.MentionedActors) == 0 {
			continue
		}
		news.MentionedActors = nil
		if err := s.storage.SaveNews(ctx, news); err != nil {
			return fmt.Errorf("failed to persist news %s: %w", newsID, err)
		}
	}

	s.mentionsByNews = make(map[string]map[string]struct{})
	s.mentionsByActor = make(map[string]map[string]struct{})
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
