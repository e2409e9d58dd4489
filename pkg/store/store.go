// Package store defines the durable storage contract backing the in-memory
// graph layers. The graph treats the store as authoritative: everything held
// in memory is a derived cache that can be rebuilt from the store at any
// time with LoadAll.
package store

import (
	"context"
	"errors"

	"github.com/storygraph/backend/pkg/common"
)

// ErrNotFound is returned when a keyed lookup misses.
var ErrNotFound = errors.New("store: not found")

// SimilarNews is one nearest-neighbour hit from a vector search.
type SimilarNews struct {
	NewsID     string
	Similarity float64
}

// Snapshot is the full durable state, used to rebuild the in-memory graph.
type Snapshot struct {
	News           []*common.News
	Actors         []*common.Actor
	Stories        []*common.Story
	Events         []*common.Event
	NewsRelations  []*common.NewsRelation
	ActorRelations []*common.ActorRelation
}

// Storage is a keyed upsert/get store for each entity kind. Implementations
// must make every Save an upsert keyed on the entity id.
type Storage interface {
	SaveNews(ctx context.Context, news *common.News) error
	GetNews(ctx context.Context, id string) (*common.News, error)

	SaveActor(ctx context.Context, actor *common.Actor) error
	GetActor(ctx context.Context, id string) (*common.Actor, error)
	// DeleteActor removes an actor whose identity was absorbed into another
	// during deduplication. This is the only hard delete in the system.
	DeleteActor(ctx context.Context, id string) error

	SaveStory(ctx context.Context, story *common.Story) error
	GetStory(ctx context.Context, id string) (*common.Story, error)
	DeleteStory(ctx context.Context, id string) error

	SaveEvent(ctx context.Context, event *common.Event) error
	GetEvent(ctx context.Context, id string) (*common.Event, error)

	SaveNewsRelation(ctx context.Context, rel *common.NewsRelation) error
	SaveActorRelation(ctx context.Context, rel *common.ActorRelation) error
	DeleteActorRelation(ctx context.Context, id string) error

	// FindSimilarNews returns stored news whose embedding similarity to the
	// given vector is at least threshold, best first.
	FindSimilarNews(ctx context.Context, embedding []float32, threshold float64, limit int) ([]SimilarNews, error)

	// LoadAll returns the complete durable state.
	LoadAll(ctx context.Context) (*Snapshot, error)

	Close()
}
