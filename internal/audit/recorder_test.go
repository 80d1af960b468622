package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trustrank/internal/contracts"
	"github.com/wonny/trustrank/internal/flags"
	"github.com/wonny/trustrank/pkg/logger"
)

type fakeLog struct {
	calls   int
	entries []contracts.ChangeLogEntry
	err     error
}

func (f *fakeLog) AppendChangeLog(_ context.Context, entries ...contracts.ChangeLogEntry) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeLog) ListChangeLog(context.Context, string, int) ([]contracts.ChangeLogEntry, error) {
	return f.entries, nil
}

func state(trust, fundamentals *int) *contracts.CompanyScoreState {
	return &contracts.CompanyScoreState{CompanyID: "c-1", TrustScore: trust, FundamentalsScore: fundamentals}
}

func TestSignificant(t *testing.T) {
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	p := contracts.IntPtr

	tests := []struct {
		name  string
		prev  *contracts.CompanyScoreState
		next  *contracts.CompanyScoreState
		types []contracts.ChangeType
	}{
		{name: "first scoring", prev: nil, next: state(p(50), p(50)), types: nil},
		{name: "trust at threshold", prev: state(p(50), p(50)), next: state(p(55), p(50)), types: nil},
		{name: "trust above threshold", prev: state(p(50), p(50)), next: state(p(56), p(50)), types: []contracts.ChangeType{contracts.ChangeTrustScore}},
		{name: "trust drop", prev: state(p(60), p(50)), next: state(p(53), p(50)), types: []contracts.ChangeType{contracts.ChangeTrustScore}},
		{name: "fundamentals at threshold", prev: state(p(50), p(40)), next: state(p(50), p(50)), types: nil},
		{name: "fundamentals above threshold", prev: state(p(50), p(40)), next: state(p(50), p(51)), types: []contracts.ChangeType{contracts.ChangeFundamentalsScore}},
		{name: "both", prev: state(p(10), p(10)), next: state(p(20), p(30)), types: []contracts.ChangeType{contracts.ChangeTrustScore, contracts.ChangeFundamentalsScore}},
		{name: "previous trust missing", prev: state(nil, p(10)), next: state(p(90), p(10)), types: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := Significant(tt.prev, tt.next, "run-1", at)
			var got []contracts.ChangeType
			for _, e := range entries {
				got = append(got, e.ChangeType)
				assert.Equal(t, "run-1", e.Metadata.RunID)
				assert.Equal(t, at, e.CreatedAt)
				assert.Equal(t, e.Metadata.Current-e.Metadata.Previous, e.Metadata.Delta)
				assert.Greater(t, max(e.Metadata.Delta, -e.Metadata.Delta), e.Metadata.Threshold)
			}
			assert.Equal(t, tt.types, got)
		})
	}
}

func TestRecorder_Record(t *testing.T) {
	repo := &fakeLog{}
	rec := NewRecorder(logger.Nop())
	updated := time.Date(2026, 5, 2, 3, 0, 0, 0, time.UTC)

	next := state(contracts.IntPtr(20), contracts.IntPtr(30))
	next.ScoreUpdatedAt = &updated

	entries, err := rec.Record(context.Background(), repo, flags.Defaults(), "run-9",
		state(contracts.IntPtr(10), contracts.IntPtr(10)), next)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, repo.calls, "all entries written in one call")
	assert.Equal(t, updated, entries[0].CreatedAt)
	assert.Equal(t, "trust-v1", entries[0].Metadata.Version)
}

func TestRecorder_Gates(t *testing.T) {
	ctx := context.Background()
	prev := state(contracts.IntPtr(10), nil)
	next := state(contracts.IntPtr(90), nil)

	repo := &fakeLog{}
	rec := NewRecorder(logger.Nop())

	entries, err := rec.Record(ctx, repo, flags.Defaults().With(flags.ChangeLogEnabled, false), "", prev, next)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, repo.calls)

	entries, err = rec.Record(ctx, repo, flags.Defaults(), "", prev, state(contracts.IntPtr(12), nil))
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, repo.calls, "no write when nothing is significant")
}

func TestRecorder_RepoError(t *testing.T) {
	boom := errors.New("insert failed")
	rec := NewRecorder(logger.Nop())
	_, err := rec.Record(context.Background(), &fakeLog{err: boom}, flags.Defaults(), "",
		state(contracts.IntPtr(10), nil), state(contracts.IntPtr(90), nil))
	assert.ErrorIs(t, err, boom)
}
