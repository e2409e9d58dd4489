// Package pgx implements the durable store on PostgreSQL with pgvector for
// news embeddings. List- and map-valued fields are stored as jsonb; the
// similarity search runs as a cosine ANN query over the embedding column.
package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storygraph/backend/pkg/store"
)

// Storage implements store.Storage over a pgx connection pool.
type Storage struct {
	conn *pgxpool.Pool
}

func New(conn *pgxpool.Pool) *Storage {
	return &Storage{conn: conn}
}

func (s *Storage) Close() {
	s.conn.Close()
}

// LoadAll reads the complete durable state for a graph rebuild.
func (s *Storage) LoadAll(ctx context.Context) (*store.Snapshot, error) {
	snapshot := &store.Snapshot{}

	news, err := s.loadNews(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load news: %w", err)
	}
	snapshot.News = news

	actors, err := s.loadActors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load actors: %w", err)
	}
	snapshot.Actors = actors

	stories, err := s.loadStories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stories: %w", err)
	}
	snapshot.Stories = stories

	events, err := s.loadEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	snapshot.Events = events

	newsRels, err := s.loadNewsRelations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load news relations: %w", err)
	}
	snapshot.NewsRelations = newsRels

	actorRels, err := s.loadActorRelations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load actor relations: %w", err)
	}
	snapshot.ActorRelations = actorRels

	return snapshot, nil
}

// marshalJSON encodes a jsonb column value, mapping nil to SQL null.
func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalJSON(data []byte, out any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

var _ store.Storage = (*Storage)(nil)
