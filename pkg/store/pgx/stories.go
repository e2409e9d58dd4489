package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/storygraph/backend/pkg/common"
	"github.com/storygraph/backend/pkg/store"
)

func (s *Storage) SaveStory(ctx context.Context, story *common.Story) error {
	newsIDs, err := marshalJSON(story.NewsIDs)
	if err != nil {
		return err
	}
	coreIDs, err := marshalJSON(story.CoreNewsIDs)
	if err != nil {
		return err
	}
	topActors, err := marshalJSON(story.TopActors)
	if err != nil {
		return err
	}
	eventIDs, err := marshalJSON(story.EventIDs)
	if err != nil {
		return err
	}
	bullets, err := marshalJSON(story.Bullets)
	if err != nil {
		return err
	}
	domains, err := marshalJSON(story.Domains)
	if err != nil {
		return err
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO stories (
			id, title, summary, bullets, news_ids, core_news_ids, top_actors,
			event_ids, domains, primary_domain, relevance, cohesion, freshness,
			size, created_at, updated_at, first_seen, last_activity,
			is_active, is_editorial
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			bullets = EXCLUDED.bullets,
			news_ids = EXCLUDED.news_ids,
			core_news_ids = EXCLUDED.core_news_ids,
			top_actors = EXCLUDED.top_actors,
			event_ids = EXCLUDED.event_ids,
			domains = EXCLUDED.domains,
			primary_domain = EXCLUDED.primary_domain,
			relevance = EXCLUDED.relevance,
			cohesion = EXCLUDED.cohesion,
			freshness = EXCLUDED.freshness,
			size = EXCLUDED.size,
			updated_at = EXCLUDED.updated_at,
			last_activity = EXCLUDED.last_activity,
			is_active = EXCLUDED.is_active,
			is_editorial = EXCLUDED.is_editorial`,
		story.ID, story.Title, story.Summary, bullets, newsIDs, coreIDs,
		topActors, eventIDs, domains, story.PrimaryDomain,
		story.Relevance, story.Cohesion, story.Freshness, story.Size,
		story.CreatedAt, story.UpdatedAt, story.FirstSeen, story.LastActivity,
		story.IsActive, story.IsEditorial,
	)
	if err != nil {
		return fmt.Errorf("failed to save story %s: %w", story.ID, err)
	}
	return nil
}

func (s *Storage) GetStory(ctx context.Context, id string) (*common.Story, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT id, title, summary, bullets, news_ids, core_news_ids, top_actors,
			event_ids, domains, primary_domain, relevance, cohesion, freshness,
			size, created_at, updated_at, first_seen, last_activity,
			is_active, is_editorial
		FROM stories WHERE id = $1`, id)

	story, err := scanStory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("story %s: %w", id, store.ErrNotFound)
	}
	return story, err
}

func (s *Storage) DeleteStory(ctx context.Context, id string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM stories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete story %s: %w", id, err)
	}
	return nil
}

func (s *Storage) loadStories(ctx context.Context) ([]*common.Story, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, title, summary, bullets, news_ids, core_news_ids, top_actors,
			event_ids, domains, primary_domain, relevance, cohesion, freshness,
			size, created_at, updated_at, first_seen, last_activity,
			is_active, is_editorial
		FROM stories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []*common.Story
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, story)
	}
	return all, rows.Err()
}

func scanStory(row pgx.Row) (*common.Story, error) {
	var (
		story    common.Story
		bullets  []byte
		newsIDs  []byte
		coreIDs  []byte
		topAct   []byte
		eventIDs []byte
		domains  []byte
	)
	err := row.Scan(&story.ID, &story.Title, &story.Summary, &bullets,
		&newsIDs, &coreIDs, &topAct, &eventIDs, &domains, &story.PrimaryDomain,
		&story.Relevance, &story.Cohesion, &story.Freshness, &story.Size,
		&story.CreatedAt, &story.UpdatedAt, &story.FirstSeen, &story.LastActivity,
		&story.IsActive, &story.IsEditorial)
	if err != nil {
		return nil, err
	}
	for _, pair := range []struct {
		raw []byte
		dst any
	}{
		{bullets, &story.Bullets},
		{newsIDs, &story.NewsIDs},
		{coreIDs, &story.CoreNewsIDs},
		{topAct, &story.TopActors},
		{eventIDs, &story.EventIDs},
		{domains, &story.Domains},
	} {
		if err := unmarshalJSON(pair.raw, pair.dst); err != nil {
			return nil, err
		}
	}
	return &story, nil
}

func (s *Storage) SaveEvent(ctx context.Context, event *common.Event) error {
	actors, err := marshalJSON(event.Actors)
	if err != nil {
		return err
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO events (
			id, news_id, story_id, event_type, title, description,
			event_date, extracted_at, actors, source_trust, confidence
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			news_id = EXCLUDED.news_id,
			story_id = EXCLUDED.story_id,
			event_type = EXCLUDED.event_type,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			event_date = EXCLUDED.event_date,
			actors = EXCLUDED.actors,
			source_trust = EXCLUDED.source_trust,
			confidence = EXCLUDED.confidence`,
		event.ID, event.NewsID, nullable(event.StoryID), string(event.Type),
		event.Title, event.Description, event.EventDate, event.ExtractedAt,
		actors, event.SourceTrust, event.Confidence,
	)
	if err != nil {
		return fmt.Errorf("failed to save event %s: %w", event.ID, err)
	}
	return nil
}

func (s *Storage) GetEvent(ctx context.Context, id string) (*common.Event, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT id, news_id, story_id, event_type, title, description,
			event_date, extracted_at, actors, source_trust, confidence
		FROM events WHERE id = $1`, id)

	event, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, store.ErrNotFound)
	}
	return event, err
}

func (s *Storage) loadEvents(ctx context.Context) ([]*common.Event, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, news_id, story_id, event_type, title, description,
			event_date, extracted_at, actors, source_trust, confidence
		FROM events ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []*common.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, event)
	}
	return all, rows.Err()
}

func scanEvent(row pgx.Row) (*common.Event, error) {
	var (
		event     common.Event
		storyID   *string
		eventType string
		actors    []byte
	)
	err := row.Scan(&event.ID, &event.NewsID, &storyID, &eventType,
		&event.Title, &event.Description, &event.EventDate, &event.ExtractedAt,
		&actors, &event.SourceTrust, &event.Confidence)
	if err != nil {
		return nil, err
	}
	if storyID != nil {
		event.StoryID = *storyID
	}
	event.Type = common.EventType(eventType)
	if err := unmarshalJSON(actors, &event.Actors); err != nil {
		return nil, err
	}
	return &event, nil
}
