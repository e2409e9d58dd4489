package graphstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/storygraph/backend/pkg/common"
)

// AddStory upserts a story and stamps every member news item with the story
// id. Members already assigned to a different story are reassigned.
func (s *Store) AddStory(ctx context.Context, story *common.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if story.FirstSeen.IsZero() {
		story.FirstSeen = now
	}
	story.Size = len(story.NewsIDs)
	s.stories[story.ID] = story

	for _, newsID := range story.NewsIDs {
		news, ok := s.news[newsID]
		if !ok || news.StoryID == story.ID {
			continue
		}
		news.StoryID = story.ID
		if err := s.storage.SaveNews(ctx, news); err != nil {
			return fmt.Errorf("failed to persist news %s: %w", newsID, err)
		}
	}

	if err := s.storage.SaveStory(ctx, story); err != nil {
		return fmt.Errorf("failed to persist story %s: %w", story.ID, err)
	}
	return nil
}

// Story returns the story with the given id.
func (s *Store) Story(id string) (*common.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	story, ok := s.stories[id]
	if !ok {
		return nil, fmt.Errorf("story %s: %w", id, ErrNotFound)
	}
	return story, nil
}

// AllStories returns every story sorted by relevance, most relevant first.
// Pinned member items do not affect ordering here; callers that need the
// editorial sort use SortStories.
func (s *Store) AllStories() []*common.Story {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stories := make([]*common.Story, 0, len(s.stories))
	for _, story := range s.stories {
		stories = append(stories, story)
	}
	sort.SliceStable(stories, func(i, j int) bool {
		if stories[i].Relevance != stories[j].Relevance {
			return stories[i].Relevance > stories[j].Relevance
		}
		return stories[i].ID < stories[j].ID
	})
	return stories
}

// RemoveStory deletes a story and detaches its member news items. The news
// nodes and their edges are left intact.
func (s *Store) RemoveStory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	story, ok := s.stories[id]
	if !ok {
		return fmt.Errorf("story %s: %w", id, ErrNotFound)
	}

	for _, newsID := range story.NewsIDs {
		news, ok := s.news[newsID]
		if !ok || news.StoryID != id {
			continue
		}
		news.StoryID = ""
		if err := s.storage.SaveNews(ctx, news); err != nil {
			return fmt.Errorf("failed to persist news %s: %w", newsID, err)
		}
	}

	delete(s.stories, id)
	if err := s.storage.DeleteStory(ctx, id); err != nil {
		return fmt.Errorf("failed to delete story %s: %w", id, err)
	}
	return nil
}

// AddEvent upserts a timeline event and links it to its story.
func (s *Store) AddEvent(ctx context.Context, event *common.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.StoryID != "" {
		story, ok := s.stories[event.StoryID]
		if !ok {
			return fmt.Errorf("story %s: %w", event.StoryID, ErrNotFound)
		}
		linked := false
		for _, id := range story.EventIDs {
			if id == event.ID {
				linked = true
				break
			}
		}
		if !linked {
			story.EventIDs = append(story.EventIDs, event.ID)
			if err := s.storage.SaveStory(ctx, story); err != nil {
				return fmt.Errorf("failed to persist story %s: %w", story.ID, err)
			}
		}
	}

	s.events[event.ID] = event
	if err := s.storage.SaveEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to persist event %s: %w", event.ID, err)
	}
	return nil
}

// Event returns the event with the given id.
func (s *Store) Event(id string) (*common.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return event, nil
}

// AllEvents returns every event ordered by occurrence time, newest first.
func (s *Store) AllEvents() []*common.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*common.Event, 0, len(s.events))
	for _, event := range s.events {
		events = append(events, event)
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].EventDate.Equal(events[j].EventDate) {
			return events[i].EventDate.After(events[j].EventDate)
		}
		return events[i].ID < events[j].ID
	})
	return events
}

// NewsEvents returns the events extracted from one news item, ordered by
// occurrence time, oldest first.
func (s *Store) NewsEvents(newsID string) []*common.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*common.Event
	for _, event := range s.events {
		if event.NewsID == newsID {
			events = append(events, event)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].EventDate.Equal(events[j].EventDate) {
			return events[i].EventDate.Before(events[j].EventDate)
		}
		return events[i].ID < events[j].ID
	})
	return events
}

// StoryEvents returns a story's timeline events ordered by occurrence time,
// oldest first.
func (s *Store) StoryEvents(storyID string) ([]*common.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	story, ok := s.stories[storyID]
	if !ok {
		return nil, fmt.Errorf("story %s: %w", storyID, ErrNotFound)
	}

	events := make([]*common.Event, 0, len(story.EventIDs))
	for _, id := range story.EventIDs {
		if event, ok := s.events[id]; ok {
			events = append(events, event)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].EventDate.Equal(events[j].EventDate) {
			return events[i].EventDate.Before(events[j].EventDate)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

// TopActors ranks the actors mentioned across a set of news items by mention
// count. Ties break on actor id so repeated calls over the same members
// produce identical rankings.
func (s *Store) TopActors(newsIDs []string, limit int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topActorsLocked(newsIDs, limit)
}

func (s *Store) topActorsLocked(newsIDs []string, limit int) []string {
	counts := make(map[string]int)
	for _, newsID := range newsIDs {
		for actorID := range s.mentionsByNews[newsID] {
			counts[actorID]++
		}
	}

	ranked := make([]string, 0, len(counts))
	for actorID := range counts {
		ranked = append(ranked, actorID)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// RefreshStoryActors recomputes the top-actor list of every story from the
// current mention layer. Called after entity merges change mention edges.
func (s *Store) RefreshStoryActors(ctx context.Context, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.stories))
	for id := range s.stories {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		story := s.stories[id]
		top := s.topActorsLocked(story.NewsIDs, limit)
		if equalStrings(story.TopActors, top) {
			continue
		}
		story.TopActors = top
		if err := s.storage.SaveStory(ctx, story); err != nil {
			return fmt.Errorf("failed to persist story %s: %w", id, err)
		}
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
