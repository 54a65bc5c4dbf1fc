package search

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
)

// Result is a post matched by similarity.
type Result struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	Status      string     `json:"status"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	Similarity  float64    `json:"similarity"`
}

// Store runs the nearest-neighbour query.
type Store interface {
	Search(ctx context.Context, userID string, embedding []float32, threshold float64, limit int) ([]Result, error)
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Search returns the caller's posts with cosine similarity above threshold,
// most similar first.
func (s *SQLStore) Search(ctx context.Context, userID string, embedding []float32, threshold float64, limit int) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, status, published_at, created_at, similarity
		FROM (
			SELECT id, content, status, published_at, created_at,
				1 - (embedding <=> $2) AS similarity
			FROM posts
			WHERE user_id = $1 AND embedding IS NOT NULL
		) ranked
		WHERE similarity > $3
		ORDER BY similarity DESC, id ASC
		LIMIT $4
	`, userID, pgvector.NewVector(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var (
			r           Result
			publishedAt sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Content, &r.Status, &publishedAt, &r.CreatedAt, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		if publishedAt.Valid {
			t := publishedAt.Time
			r.PublishedAt = &t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}
	return out, nil
}
