package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trustrank/internal/contracts"
)

func TestStore_ListCompanyIDsPaging(t *testing.T) {
	s := New()
	s.Seed(5)
	ctx := context.Background()

	page, err := s.ListCompanyIDs(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c-0001", "c-0002"}, page)

	page, err = s.ListCompanyIDs(ctx, "c-0004", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c-0005"}, page)
}

func TestStore_SaveStateVersion(t *testing.T) {
	s := New()
	ctx := context.Background()

	st := &contracts.CompanyScoreState{CompanyID: "c-1"}
	require.NoError(t, s.SaveState(ctx, st))
	assert.Equal(t, int64(1), st.Version)

	stale := &contracts.CompanyScoreState{CompanyID: "c-1"}
	assert.ErrorIs(t, s.SaveState(ctx, stale), contracts.ErrVersionConflict)

	require.NoError(t, s.SaveState(ctx, st))
	assert.Equal(t, int64(2), st.Version)
}

func TestStore_FailOn(t *testing.T) {
	s := New()
	s.Seed(1)
	boom := errors.New("boom")
	s.FailOn("GetFacts", "c-0001", boom, 2)

	ctx := context.Background()
	_, err := s.GetFacts(ctx, "c-0001")
	assert.ErrorIs(t, err, boom)
	_, err = s.GetFacts(ctx, "c-0001")
	assert.ErrorIs(t, err, boom)
	_, err = s.GetFacts(ctx, "c-0001")
	assert.NoError(t, err)
	assert.Equal(t, 3, s.Calls("GetFacts"))
}

func TestStore_Lock(t *testing.T) {
	s := New()
	ctx := context.Background()

	token, err := s.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	_, err = s.Acquire(ctx, "job", time.Minute)
	assert.ErrorIs(t, err, contracts.ErrLockHeld)
	assert.ErrorIs(t, s.Extend(ctx, "job", "other", time.Minute), contracts.ErrLockLost)

	require.NoError(t, s.Release(ctx, "job", "other"))
	assert.True(t, s.Held("job"), "foreign token must not release")
	require.NoError(t, s.Release(ctx, "job", token))
	assert.False(t, s.Held("job"))
}

func TestStore_PruneHistoryKeepsNewest(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.AppendHistory(ctx, contracts.ScoreHistoryPoint{CompanyID: "c", RecordedAt: base.AddDate(0, 0, i), Score: i}))
	}

	n, err := s.PruneHistory(ctx, base.AddDate(1, 0, 0), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	points, err := s.RecentHistory(ctx, "c", 100)
	require.NoError(t, err)
	require.Len(t, points, 7)
	assert.Equal(t, 9, points[0].Score)
	assert.Equal(t, 3, points[6].Score)
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	s := New()
	ctx := context.Background()
	day := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s.PutState(contracts.CompanyScoreState{CompanyID: "c-1", TrustScore: contracts.IntPtr(90), Version: 1})
	require.NoError(t, s.UpsertSnapshots(ctx, contracts.ScoreSnapshot{CompanyID: "c-1", AsOfDate: day, Version: "trust-v1", Score: 90}))

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context, w contracts.ScoreWriter) error {
		st := &contracts.CompanyScoreState{CompanyID: "c-1", TrustScore: contracts.IntPtr(84), Version: 1}
		require.NoError(t, w.SaveState(ctx, st))
		require.NoError(t, w.UpsertSnapshots(ctx,
			contracts.ScoreSnapshot{CompanyID: "c-1", AsOfDate: day, Version: "trust-v1", Score: 84},
			contracts.ScoreSnapshot{CompanyID: "c-1", AsOfDate: day, Version: "fundamentals-v1", Score: 40},
		))
		require.NoError(t, w.AppendHistory(ctx, contracts.ScoreHistoryPoint{CompanyID: "c-1", RecordedAt: day, Score: 84}))
		require.NoError(t, w.AppendChangeLog(ctx, contracts.ChangeLogEntry{CompanyID: "c-1", ChangeType: contracts.ChangeTrustScore}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	st, ok := s.State("c-1")
	require.True(t, ok)
	assert.Equal(t, 90, *st.TrustScore)
	assert.Equal(t, int64(1), st.Version)

	snaps, err := s.ListSnapshots(ctx, "c-1", day)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 90, snaps[0].Score)

	points, err := s.RecentHistory(ctx, "c-1", 10)
	require.NoError(t, err)
	assert.Empty(t, points)
	assert.Zero(t, s.ChangeLogCount())
}

func TestStore_WithinTxCommits(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, w contracts.ScoreWriter) error {
		if err := w.SaveState(ctx, &contracts.CompanyScoreState{CompanyID: "c-1"}); err != nil {
			return err
		}
		return w.AppendChangeLog(ctx, contracts.ChangeLogEntry{CompanyID: "c-1", ChangeType: contracts.ChangeTrustScore})
	}))

	_, ok := s.State("c-1")
	assert.True(t, ok)
	assert.Equal(t, 1, s.ChangeLogCount())
}

func TestStore_DailyHistory(t *testing.T) {
	s := New()
	ctx := context.Background()
	today := time.Date(2026, 5, 3, 10, 0, 0, 0, time.UTC)
	for _, p := range []struct {
		at    time.Time
		score int
	}{
		{today.AddDate(0, 0, -2).Add(-time.Hour), 50},
		{today.AddDate(0, 0, -2), 51},
		{today.AddDate(0, 0, -1).Add(-2 * time.Hour), 54},
		{today.AddDate(0, 0, -1), 55},
		{today.Add(-time.Hour), 58},
		{today, 58},
	} {
		require.NoError(t, s.AppendHistory(ctx, contracts.ScoreHistoryPoint{CompanyID: "c-1", RecordedAt: p.at, Score: p.score}))
	}

	points, err := s.DailyHistory(ctx, "c-1", today, 10)
	require.NoError(t, err)
	require.Len(t, points, 2, "today excluded, one point per day")
	assert.Equal(t, 55, points[0].Score)
	assert.Equal(t, 51, points[1].Score)

	points, err = s.DailyHistory(ctx, "c-1", today, 1)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 55, points[0].Score)
}
