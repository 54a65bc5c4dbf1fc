package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/that-cod/reepost-ai-sub001/internal/ranking"
)

type fetcherStub struct {
	counters map[string]ranking.Counters
	fail     map[string]bool
}

func (f *fetcherStub) FetchCounters(_ context.Context, token, urn string) (ranking.Counters, error) {
	if token != "tok" {
		return ranking.Counters{}, errors.New("bad token")
	}
	if f.fail[urn] {
		return ranking.Counters{}, errors.New("linkedin 500")
	}
	return f.counters[urn], nil
}

type tokenStub struct {
	token string
	err   error
}

func (t tokenStub) LinkedInToken(context.Context, string) (string, error) { return t.token, t.err }

func TestSyncCountsSuccessesAndFailures(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := &fakeStore{
		targets: []SyncTarget{
			{PostID: "p1", URN: "urn:1"},
			{PostID: "p2", URN: "urn:2"},
			{PostID: "p3", URN: "urn:3"},
		},
		raiseErrFor: "p3",
	}
	fetcher := &fetcherStub{
		counters: map[string]ranking.Counters{"urn:1": {Likes: 3, Views: 30}, "urn:3": {Likes: 1}},
		fail:     map[string]bool{"urn:2": true},
	}
	syncer := NewSyncer(NewService(store, logger), store, fetcher, tokenStub{token: "tok"}, logger)
	syncer.now = func() time.Time { return day(9, 13) }

	res, err := syncer.Sync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Synced: 1, Failed: 2}, res)

	require.Len(t, store.upserts, 1)
	assert.Equal(t, "p1", store.upserts[0].PostID)
	assert.Equal(t, day(9, 0), store.upserts[0].Date)
	assert.InDelta(t, 10, store.upserts[0].EngagementRate, 1e-9)
}

func TestSyncRequiresConnection(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := &fakeStore{}
	syncer := NewSyncer(NewService(store, logger), store, &fetcherStub{}, tokenStub{}, logger)

	_, err := syncer.Sync(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNotConnected)
}
