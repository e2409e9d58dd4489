package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/storygraph/backend/pkg/common"
	"github.com/storygraph/backend/pkg/store"
)

func (s *Storage) SaveNews(ctx context.Context, news *common.News) error {
	mentioned, err := marshalJSON(news.MentionedActors)
	if err != nil {
		return err
	}
	domains, err := marshalJSON(news.Domains)
	if err != nil {
		return err
	}

	var embedding any
	if len(news.Embedding) > 0 {
		embedding = pgvector.NewVector(news.Embedding)
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO news (
			id, title, summary, full_text, url, source, author,
			published_at, created_at, embedding, mentioned_actors,
			story_id, domains, is_pinned, editorial_notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			full_text = EXCLUDED.full_text,
			url = EXCLUDED.url,
			source = EXCLUDED.source,
			author = EXCLUDED.author,
			published_at = EXCLUDED.published_at,
			embedding = EXCLUDED.embedding,
			mentioned_actors = EXCLUDED.mentioned_actors,
			story_id = EXCLUDED.story_id,
			domains = EXCLUDED.domains,
			is_pinned = EXCLUDED.is_pinned,
			editorial_notes = EXCLUDED.editorial_notes`,
		news.ID, news.Title, news.Summary, news.FullText, news.URL,
		news.Source, news.Author, news.PublishedAt, news.CreatedAt,
		embedding, mentioned, nullable(news.StoryID), domains,
		news.IsPinned, news.EditorialNotes,
	)
	if err != nil {
		return fmt.Errorf("failed to save news %s: %w", news.ID, err)
	}
	return nil
}

func (s *Storage) GetNews(ctx context.Context, id string) (*common.News, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT id, title, summary, full_text, url, source, author,
			published_at, created_at, embedding, mentioned_actors,
			story_id, domains, is_pinned, editorial_notes
		FROM news WHERE id = $1`, id)

	news, err := scanNews(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("news %s: %w", id, store.ErrNotFound)
	}
	return news, err
}

func (s *Storage) loadNews(ctx context.Context) ([]*common.News, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, title, summary, full_text, url, source, author,
			published_at, created_at, embedding, mentioned_actors,
			story_id, domains, is_pinned, editorial_notes
		FROM news ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []*common.News
	for rows.Next() {
		news, err := scanNews(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, news)
	}
	return all, rows.Err()
}

func scanNews(row pgx.Row) (*common.News, error) {
	var (
		news      common.News
		embedding *pgvector.Vector
		mentioned []byte
		storyID   *string
		domains   []byte
	)
	err := row.Scan(
		&news.ID, &news.Title, &news.Summary, &news.FullText, &news.URL,
		&news.Source, &news.Author, &news.PublishedAt, &news.CreatedAt,
		&embedding, &mentioned, &storyID, &domains, &news.IsPinned,
		&news.EditorialNotes,
	)
	if err != nil {
		return nil, err
	}
	if embedding != nil {
		news.Embedding = embedding.Slice()
	}
	if storyID != nil {
		news.StoryID = *storyID
	}
	if err := unmarshalJSON(mentioned, &news.MentionedActors); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(domains, &news.Domains); err != nil {
		return nil, err
	}
	return &news, nil
}

// FindSimilarNews runs a cosine nearest-neighbour query over the embedding
// column, keeping hits at or above the threshold, best first.
func (s *Storage) FindSimilarNews(ctx context.Context, embedding []float32, threshold float64, limit int) ([]store.SimilarNews, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.conn.Query(ctx, `
		SELECT id, 1 - (embedding <=> $1) AS similarity
		FROM news
		WHERE embedding IS NOT NULL AND 1 - (embedding <=> $1) >= $2
		ORDER BY similarity DESC
		LIMIT $3`,
		pgvector.NewVector(embedding), threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar news: %w", err)
	}
	defer rows.Close()

	var hits []store.SimilarNews
	for rows.Next() {
		var hit store.SimilarNews
		if err := rows.Scan(&hit.NewsID, &hit.Similarity); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (s *Storage) SaveNewsRelation(ctx context.Context, rel *common.NewsRelation) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO news_relations (source_news_id, target_news_id, similarity, weight, is_editorial, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (source_news_id, target_news_id) DO UPDATE SET
			similarity = EXCLUDED.similarity,
			weight = EXCLUDED.weight,
			is_editorial = EXCLUDED.is_editorial`,
		rel.SourceNewsID, rel.TargetNewsID, rel.Similarity, rel.Weight,
		rel.IsEditorial, rel.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save news relation %s-%s: %w", rel.SourceNewsID, rel.TargetNewsID, err)
	}
	return nil
}

func (s *Storage) loadNewsRelations(ctx context.Context) ([]*common.NewsRelation, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT source_news_id, target_news_id, similarity, weight, is_editorial, created_at
		FROM news_relations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []*common.NewsRelation
	for rows.Next() {
		var rel common.NewsRelation
		err := rows.Scan(&rel.SourceNewsID, &rel.TargetNewsID, &rel.Similarity,
			&rel.Weight, &rel.IsEditorial, &rel.CreatedAt)
		if err != nil {
			return nil, err
		}
		all = append(all, &rel)
	}
	return all, rows.Err()
}

// nullable maps an empty string to SQL null so foreign-key-like columns do
// not hold empty strings.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
