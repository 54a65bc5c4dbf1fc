package posts

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/that-cod/reepost-ai-sub001/pkg/pagination"
)

var postRowColumns = []string{
	"id", "user_id", "content", "status", "published_at", "scheduled_at",
	"likes", "comments", "shares", "views",
	"linkedin_post_urn", "failure_reason", "media_url",
	"created_at", "updated_at",
}

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db), mock
}

func TestStoreCreateAssignsID(t *testing.T) {
	store, mock := newMockStore(t)
	ts := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO posts").
		WithArgs(sqlmock.AnyArg(), "u1", "hello", StatusDraft, nil, "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(ts, ts))

	p := &Post{UserID: "u1", Content: "hello", Status: StatusDraft}
	require.NoError(t, store.Create(context.Background(), p))
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, ts, p.CreatedAt)
}

func TestStoreListWithStatusFilter(t *testing.T) {
	store, mock := newMockStore(t)
	ts := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	cols := append(append([]string{}, postRowColumns...), "total")
	mock.ExpectQuery(`AND status = \$2 ORDER BY created_at DESC, id ASC LIMIT \$3 OFFSET \$4`).
		WithArgs("u1", StatusPublished, 20, 40).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("p1", "u1", "hi", StatusPublished, ts, nil, 1, 2, 3, 4, "urn:li:share:1", "", "", ts, ts, 41))

	got, total, err := store.List(context.Background(), "u1", StatusPublished, pagination.Page{Limit: 20, Offset: 40})
	require.NoError(t, err)
	assert.Equal(t, 41, total)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].Shares)
	assert.NotNil(t, got[0].PublishedAt)
	assert.Nil(t, got[0].ScheduledAt)
}

func TestStoreListEmptyIsNotNil(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`WHERE user_id = \$1 ORDER BY`).
		WithArgs("u1", 20, 0).
		WillReturnRows(sqlmock.NewRows(append(append([]string{}, postRowColumns...), "total")))

	got, total, err := store.List(context.Background(), "u1", "", pagination.Page{Limit: 20})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Zero(t, total)
}

func TestStoreDeleteNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM posts").WithArgs("p1", "u1").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, store.Delete(context.Background(), "u1", "p1"), ErrNotFound)
}

func TestStoreSetEmbedding(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE posts SET embedding = \$2`).
		WithArgs("p1", "[0.5,1]").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SetEmbedding(context.Background(), "p1", []float32{0.5, 1}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreClaimDue(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SET status = 'publishing'.*FOR UPDATE SKIP LOCKED`).
		WithArgs(now, 25).
		WillReturnRows(sqlmock.NewRows(postRowColumns).
			AddRow("p1", "u1", "due", StatusPublishing, nil, now, 0, 0, 0, 0, "", "", "", now, now))

	got, err := store.ClaimDue(context.Background(), now, 25)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, StatusPublishing, got[0].Status)
}

func TestStoreClaim(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SET status = 'publishing'.*status IN \('draft', 'scheduled', 'failed'\)`).
		WithArgs("p1", "u1").
		WillReturnRows(sqlmock.NewRows(postRowColumns).
			AddRow("p1", "u1", "now", StatusPublishing, nil, nil, 0, 0, 0, 0, "", "", "", now, now))

	got, err := store.Claim(context.Background(), "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, StatusPublishing, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreClaimConflictWhenNoRowMatches(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SET status = 'publishing'`).
		WithArgs("p1", "u1").
		WillReturnRows(sqlmock.NewRows(postRowColumns))

	_, err := store.Claim(context.Background(), "u1", "p1")
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreMarkPublished(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(`status = 'published'`).
		WithArgs("p1", at, "urn:li:share:9").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.MarkPublished(context.Background(), "p1", "urn:li:share:9", at))
}
