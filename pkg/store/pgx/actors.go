package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/storygraph/backend/pkg/common"
	"github.com/storygraph/backend/pkg/store"
)

func (s *Storage) SaveActor(ctx context.Context, actor *common.Actor) error {
	aliases, err := marshalJSON(actor.Aliases)
	if err != nil {
		return err
	}
	metadata, err := marshalJSON(actor.Metadata)
	if err != nil {
		return err
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO actors (id, canonical_name, actor_type, aliases, wikidata_qid, metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			canonical_name = EXCLUDED.canonical_name,
			actor_type = EXCLUDED.actor_type,
			aliases = EXCLUDED.aliases,
			wikidata_qid = EXCLUDED.wikidata_qid,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at`,
		actor.ID, actor.CanonicalName, string(actor.Type), aliases,
		nullable(actor.WikidataQID), metadata, actor.CreatedAt, actor.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save actor %s: %w", actor.ID, err)
	}
	return nil
}

func (s *Storage) GetActor(ctx context.Context, id string) (*common.Actor, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT id, canonical_name, actor_type, aliases, wikidata_qid, metadata, created_at, updated_at
		FROM actors WHERE id = $1`, id)

	actor, err := scanActor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("actor %s: %w", id, store.ErrNotFound)
	}
	return actor, err
}

func (s *Storage) DeleteActor(ctx context.Context, id string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM actors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete actor %s: %w", id, err)
	}
	return nil
}

func (s *Storage) loadActors(ctx context.Context) ([]*common.Actor, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, canonical_name, actor_type, aliases, wikidata_qid, metadata, created_at, updated_at
		FROM actors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []*common.Actor
	for rows.Next() {
		actor, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, actor)
	}
	return all, rows.Err()
}

func scanActor(row pgx.Row) (*common.Actor, error) {
	var (
		actor     common.Actor
		actorType string
		aliases   []byte
		qid       *string
		metadata  []byte
	)
	err := row.Scan(&actor.ID, &actor.CanonicalName, &actorType, &aliases,
		&qid, &metadata, &actor.CreatedAt, &actor.UpdatedAt)
	if err != nil {
		return nil, err
	}
	actor.Type = common.ActorType(actorType)
	if qid != nil {
		actor.WikidataQID = *qid
	}
	if err := unmarshalJSON(aliases, &actor.Aliases); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(metadata, &actor.Metadata); err != nil {
		return nil, err
	}
	return &actor, nil
}

func (s *Storage) SaveActorRelation(ctx context.Context, rel *common.ActorRelation) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO actor_relations (
			id, source_actor_id, target_actor_id, relation_type, weight,
			confidence, is_ephemeral, ttl_days, created_at, expires_at, origin
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			source_actor_id = EXCLUDED.source_actor_id,
			target_actor_id = EXCLUDED.target_actor_id,
			relation_type = EXCLUDED.relation_type,
			weight = EXCLUDED.weight,
			confidence = EXCLUDED.confidence,
			is_ephemeral = EXCLUDED.is_ephemeral,
			ttl_days = EXCLUDED.ttl_days,
			expires_at = EXCLUDED.expires_at,
			origin = EXCLUDED.origin`,
		rel.ID, rel.SourceActorID, rel.TargetActorID, string(rel.Type),
		rel.Weight, rel.Confidence, rel.IsEphemeral, rel.TTLDays,
		rel.CreatedAt, rel.ExpiresAt, rel.Origin,
	)
	if err != nil {
		return fmt.Errorf("failed to save actor relation %s: %w", rel.ID, err)
	}
	return nil
}

func (s *Storage) DeleteActorRelation(ctx context.Context, id string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM actor_relations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete actor relation %s: %w", id, err)
	}
	return nil
}

func (s *Storage) loadActorRelations(ctx context.Context) ([]*common.ActorRelation, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, source_actor_id, target_actor_id, relation_type, weight,
			confidence, is_ephemeral, ttl_days, created_at, expires_at, origin
		FROM actor_relations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []*common.ActorRelation
	for rows.Next() {
		var (
			rel     common.ActorRelation
			relType string
		)
		err := rows.Scan(&rel.ID, &rel.SourceActorID, &rel.TargetActorID,
			&relType, &rel.Weight, &rel.Confidence, &rel.IsEphemeral,
			&rel.TTLDays, &rel.CreatedAt, &rel.ExpiresAt, &rel.Origin)
		if err != nil {
			return nil, err
		}
		rel.Type = common.RelationType(relType)
		all = append(all, &rel)
	}
	return all, rows.Err()
}
