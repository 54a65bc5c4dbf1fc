package posts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/that-cod/reepost-ai-sub001/pkg/pagination"
)

type Store interface {
	Create(ctx context.Context, p *Post) error
	Get(ctx context.Context, userID, id string) (*Post, error)
	List(ctx context.Context, userID, status string, page pagination.Page) ([]Post, int, error)
	Update(ctx context.Context, p *Post) error
	Delete(ctx context.Context, userID, id string) error
	SetEmbedding(ctx context.Context, id string, embedding []float32) error
	MarkPublished(ctx context.Context, id, urn string, at time.Time) error
	MarkFailed(ctx context.Context, id, reason string) error
	Claim(ctx context.Context, userID, id string) (*Post, error)
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Post, error)
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const postColumns = `id, user_id, content, status, published_at, scheduled_at,
	likes, comments, shares, views,
	COALESCE(linkedin_post_urn, ''), COALESCE(failure_reason, ''), COALESCE(media_url, ''),
	created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row scanner, extra ...interface{}) (*Post, error) {
	var (
		p           Post
		publishedAt sql.NullTime
		scheduledAt sql.NullTime
	)
	dest := []interface{}{
		&p.ID, &p.UserID, &p.Content, &p.Status, &publishedAt, &scheduledAt,
		&p.Likes, &p.Comments, &p.Shares, &p.Views,
		&p.LinkedInPostURN, &p.FailureReason, &p.MediaURL,
		&p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		p.PublishedAt = &t
	}
	if scheduledAt.Valid {
		t := scheduledAt.Time
		p.ScheduledAt = &t
	}
	return &p, nil
}

func (s *SQLStore) Create(ctx context.Context, p *Post) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO posts (id, user_id, content, status, scheduled_at, media_url)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING created_at, updated_at
	`, p.ID, p.UserID, p.Content, p.Status, p.ScheduledAt, p.MediaURL).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, userID, id string) (*Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return p, nil
}

// List returns one page, newest first, and the total matching count.
func (s *SQLStore) List(ctx context.Context, userID, status string, page pagination.Page) ([]Post, int, error) {
	query := `SELECT ` + postColumns + `, COUNT(*) OVER() FROM posts WHERE user_id = $1`
	args := []interface{}{userID}
	if status != "" {
		args = append(args, status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	args = append(args, page.Limit, page.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	out := []Post{}
	total := 0
	for rows.Next() {
		p, err := scanPost(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan post: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate posts: %w", err)
	}
	return out, total, nil
}

// Update writes the editable fields and status.
func (s *SQLStore) Update(ctx context.Context, p *Post) error {
	err := s.db.QueryRowContext(ctx, `
		UPDATE posts SET
			content = $3,
			status = $4,
			scheduled_at = $5,
			media_url = NULLIF($6, ''),
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`, p.ID, p.UserID, p.Content, p.Status, p.ScheduledAt, p.MediaURL).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return requireRow(res)
}

func (s *SQLStore) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET embedding = $2 WHERE id = $1`, id, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("set embedding: %w", err)
	}
	return requireRow(res)
}

func (s *SQLStore) MarkPublished(ctx context.Context, id, urn string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE posts SET
			status = 'published',
			published_at = $2,
			linkedin_post_urn = $3,
			failure_reason = NULL,
			updated_at = NOW()
		WHERE id = $1
	`, id, at, urn)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return requireRow(res)
}

func (s *SQLStore) MarkFailed(ctx context.Context, id, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE posts SET status = 'failed', failure_reason = $2, updated_at = NOW()
		WHERE id = $1
	`, id, reason)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return requireRow(res)
}

// Claim moves one publishable post to publishing. A post that is missing,
// not owned by userID or already publishing/published reports ErrConflict.
func (s *SQLStore) Claim(ctx context.Context, userID, id string) (*Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `
		UPDATE posts SET status = 'publishing', updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status IN ('draft', 'scheduled', 'failed')
		RETURNING `+postColumns, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("claim post: %w", err)
	}
	return p, nil
}

// ClaimDue moves up to limit due scheduled posts to publishing in one
// statement and returns them. Concurrent claimers never share a row.
func (s *SQLStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE posts SET status = 'publishing', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM posts
			WHERE status = 'scheduled' AND scheduled_at <= $1
			ORDER BY scheduled_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+postColumns, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due posts: %w", err)
	}
	defer rows.Close()

	var out []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed post: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed posts: %w", err)
	}
	return out, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
