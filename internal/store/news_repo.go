package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ziarant/StarPupil/internal/contracts"
)

// NewsRepository implements contracts.NewsRepository. News rows are
// immutable once stored; URL is the dedup key. Sentiment lives in a side
// table so a re-score overwrites without touching the article.
type NewsRepository struct {
	pool *pgxpool.Pool
}

// NewNewsRepository creates a new news repository.
func NewNewsRepository(pool *pgxpool.Pool) *NewsRepository {
	return &NewsRepository{pool: pool}
}

// GetSince returns items for an instrument published at or after since,
// newest first.
func (r *NewsRepository) GetSince(ctx context.Context, instrumentID int64, since time.Time) ([]contracts.NewsItem, error) {
	query := `
		SELECT id, instrument_id, title, body, source, url, published_at
		FROM news_items
		WHERE instrument_id = $1 AND published_at >= $2
		ORDER BY published_at DESC
	`

	rows, err := r.pool.Query(ctx, query, instrumentID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query news: %w", err)
	}
	defer rows.Close()

	var out []contracts.NewsItem
	for rows.Next() {
		var item contracts.NewsItem
		err := rows.Scan(&item.ID, &item.InstrumentID, &item.Title, &item.Body,
			&item.Source, &item.URL, &item.PublishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan news item: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating news: %w", err)
	}

	return out, nil
}

// SaveBatch inserts new items and resolves IDs for ones already stored.
// The returned slice mirrors the input with every ID populated.
func (r *NewsRepository) SaveBatch(ctx context.Context, items []contracts.NewsItem) ([]contracts.NewsItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	insert := `
		INSERT INTO news_items (instrument_id, title, body, source, url, published_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (url) DO NOTHING
		RETURNING id
	`
	lookup := `SELECT id FROM news_items WHERE url = $1`

	out := make([]contracts.NewsItem, 0, len(items))
	for _, item := range items {
		err := r.pool.QueryRow(ctx, insert,
			item.InstrumentID, item.Title, item.Body, item.Source, item.URL, item.PublishedAt,
		).Scan(&item.ID)

		if errors.Is(err, pgx.ErrNoRows) {
			// URL already stored; reuse the existing row's ID.
			if err := r.pool.QueryRow(ctx, lookup, item.URL).Scan(&item.ID); err != nil {
				return nil, fmt.Errorf("failed to resolve existing news %q: %w", item.URL, err)
			}
		} else if err != nil {
			return nil, fmt.Errorf("failed to insert news %q: %w", item.URL, err)
		}

		out = append(out, item)
	}

	return out, nil
}

// SaveSentiment stores the oracle verdict for one news item, replacing
// any earlier verdict.
func (r *NewsRepository) SaveSentiment(ctx context.Context, score contracts.SentimentScore) error {
	query := `
		INSERT INTO news_sentiment (news_id, score, confidence, scored_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (news_id) DO UPDATE SET
			score = EXCLUDED.score,
			confidence = EXCLUDED.confidence,
			scored_at = EXCLUDED.scored_at
	`

	scoredAt := score.ScoredAt
	if scoredAt.IsZero() {
		scoredAt = time.Now()
	}

	if _, err := r.pool.Exec(ctx, query, score.NewsID, score.Score, score.Confidence, scoredAt); err != nil {
		return fmt.Errorf("failed to save sentiment for news %d: %w", score.NewsID, err)
	}

	return nil
}

// GetSentimentSince returns scored sentiment for an instrument's news
// published at or after since.
func (r *NewsRepository) GetSentimentSince(ctx context.Context, instrumentID int64, since time.Time) ([]contracts.SentimentScore, error) {
	query := `
		SELECT s.news_id, s.score, s.confidence, s.scored_at
		FROM news_sentiment s
		JOIN news_items n ON n.id = s.news_id
		WHERE n.instrument_id = $1 AND n.published_at >= $2
		ORDER BY n.published_at DESC
	`

	rows, err := r.pool.Query(ctx, query, instrumentID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query sentiment: %w", err)
	}
	defer rows.Close()

	var out []contracts.SentimentScore
	for rows.Next() {
		var s contracts.SentimentScore
		if err := rows.Scan(&s.NewsID, &s.Score, &s.Confidence, &s.ScoredAt); err != nil {
			return nil, fmt.Errorf("failed to scan sentiment: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sentiment: %w", err)
	}

	return out, nil
}
