package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/that-cod/reepost-ai-sub001/internal/ranking"
)

// Store is the persistence the aggregator reads from and the sync job
// writes to.
type Store interface {
	ListSnapshots(ctx context.Context, userID string, q Query) ([]Snapshot, error)
	ListPostCounters(ctx context.Context, userID string, q Query) ([]PostCounters, error)
	UpsertSnapshot(ctx context.Context, s Snapshot) error
	ListSyncTargets(ctx context.Context, userID string) ([]SyncTarget, error)
	RaiseCounters(ctx context.Context, userID, postID string, c ranking.Counters) (ranking.Counters, error)
}

// SyncTarget is a published post that has a LinkedIn URN to poll.
type SyncTarget struct {
	PostID string
	URN    string
}

// SQLStore implements Store on PostgreSQL.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) ListSnapshots(ctx context.Context, userID string, q Query) ([]Snapshot, error) {
	query := `
		SELECT user_id, post_id, date, likes, comments, shares, views, engagement_rate
		FROM analytics
		WHERE user_id = $1 AND date >= $2 AND date <= $3`
	args := []interface{}{userID, q.Start, q.End}
	if q.PostID != "" {
		args = append(args, q.PostID)
		query += " AND post_id = $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY date ASC, post_id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(
			&snap.UserID,
			&snap.PostID,
			&snap.Date,
			&snap.Likes,
			&snap.Comments,
			&snap.Shares,
			&snap.Views,
			&snap.EngagementRate,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// ListPostCounters returns the caller's published posts whose publish
// date lies inside the range, or the single filtered post.
func (s *SQLStore) ListPostCounters(ctx context.Context, userID string, q Query) ([]PostCounters, error) {
	var (
		query strings.Builder
		args  = []interface{}{userID}
	)
	query.WriteString(`
		SELECT id, content, published_at, likes, comments, shares, views
		FROM posts
		WHERE user_id = $1 AND status = 'published'`)
	if q.PostID != "" {
		args = append(args, q.PostID)
		query.WriteString(" AND id = $2")
	} else {
		args = append(args, q.Start, q.End.AddDate(0, 0, 1))
		query.WriteString(" AND published_at >= $2 AND published_at < $3")
	}
	query.WriteString(" ORDER BY id ASC")

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list post counters: %w", err)
	}
	defer rows.Close()

	var out []PostCounters
	for rows.Next() {
		var (
			p           PostCounters
			publishedAt sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.Content, &publishedAt, &p.Likes, &p.Comments, &p.Shares, &p.Views); err != nil {
			return nil, fmt.Errorf("scan post counters: %w", err)
		}
		if publishedAt.Valid {
			t := publishedAt.Time
			p.PublishedAt = &t
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post counters: %w", err)
	}
	return out, nil
}

// UpsertSnapshot is idempotent per (user_id, post_id, date).
func (s *SQLStore) UpsertSnapshot(ctx context.Context, snap Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analytics (user_id, post_id, date, likes, comments, shares, views, engagement_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, post_id, date) DO UPDATE SET
			likes = EXCLUDED.likes,
			comments = EXCLUDED.comments,
			shares = EXCLUDED.shares,
			views = EXCLUDED.views,
			engagement_rate = EXCLUDED.engagement_rate,
			updated_at = NOW()
	`, snap.UserID, snap.PostID, snap.Date.UTC().Format(dateLayout),
		snap.Likes, snap.Comments, snap.Shares, snap.Views, snap.EngagementRate)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (s *SQLStore) ListSyncTargets(ctx context.Context, userID string) ([]SyncTarget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, linkedin_post_urn
		FROM posts
		WHERE user_id = $1 AND status = 'published' AND linkedin_post_urn IS NOT NULL
		ORDER BY published_at DESC
		LIMIT 100
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sync targets: %w", err)
	}
	defer rows.Close()

	var out []SyncTarget
	for rows.Next() {
		var t SyncTarget
		if err := rows.Scan(&t.PostID, &t.URN); err != nil {
			return nil, fmt.Errorf("scan sync target: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync targets: %w", err)
	}
	return out, nil
}

// ErrPostNotFound is returned when a counter update matches no row.
var ErrPostNotFound = errors.New("post not found")

// RaiseCounters never lowers a counter; it returns the stored values.
func (s *SQLStore) RaiseCounters(ctx context.Context, userID, postID string, c ranking.Counters) (ranking.Counters, error) {
	var out ranking.Counters
	err := s.db.QueryRowContext(ctx, `
		UPDATE posts SET
			likes = GREATEST(likes, $3),
			comments = GREATEST(comments, $4),
			shares = GREATEST(shares, $5),
			views = GREATEST(views, $6),
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING likes, comments, shares, views
	`, postID, userID, c.Likes, c.Comments, c.Shares, c.Views).Scan(&out.Likes, &out.Comments, &out.Shares, &out.Views)
	if errors.Is(err, sql.ErrNoRows) {
		return ranking.Counters{}, ErrPostNotFound
	}
	if err != nil {
		return ranking.Counters{}, fmt.Errorf("raise counters: %w", err)
	}
	return out, nil
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
