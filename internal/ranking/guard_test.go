package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trustrank/internal/contracts"
	"github.com/wonny/trustrank/pkg/logger"
)

func eligible(id string) contracts.RankingRecord {
	return contracts.RankingRecord{
		CompanyID:      id,
		Name:           "Company " + id,
		IsPublic:       true,
		DataConfidence: 80,
		TrustScore:     contracts.IntPtr(50),
	}
}

func TestCheck_Exclusions(t *testing.T) {
	merged := "c-0"
	empty := ""

	tests := []struct {
		name       string
		mutate     func(r *contracts.RankingRecord)
		launchMode bool
		wantReason string
	}{
		{name: "eligible", mutate: func(r *contracts.RankingRecord) {}, wantReason: ""},
		{name: "not public", mutate: func(r *contracts.RankingRecord) { r.IsPublic = false }, wantReason: ReasonNotPublic},
		{name: "skeleton", mutate: func(r *contracts.RankingRecord) { r.IsSkeleton = true }, wantReason: ReasonSkeleton},
		{name: "merged", mutate: func(r *contracts.RankingRecord) { r.MergedIntoID = &merged }, wantReason: ReasonMerged},
		{name: "empty merge pointer is not merged", mutate: func(r *contracts.RankingRecord) { r.MergedIntoID = &empty }, wantReason: ""},
		{name: "confidence below threshold", mutate: func(r *contracts.RankingRecord) { r.DataConfidence = 39 }, wantReason: "low data confidence (39)"},
		{name: "confidence at threshold", mutate: func(r *contracts.RankingRecord) { r.DataConfidence = 40 }, wantReason: ""},
		{name: "suspicious activity", mutate: func(r *contracts.RankingRecord) {
			r.RiskFlags = []string{contracts.RiskSuspiciousActivity}
		}, wantReason: "risk flag (SUSPICIOUS_ACTIVITY)"},
		{name: "high volatility is not excluding", mutate: func(r *contracts.RankingRecord) {
			r.RiskFlags = []string{contracts.RiskHighVolatility}
		}, wantReason: ""},
		{name: "demo outside launch mode", mutate: func(r *contracts.RankingRecord) { r.IsDemo = true }, wantReason: ""},
		{name: "demo in launch mode", mutate: func(r *contracts.RankingRecord) { r.IsDemo = true }, launchMode: true, wantReason: ReasonDemoLaunchMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := eligible("c-1")
			tt.mutate(&rec)
			assert.Equal(t, tt.wantReason, Check(rec, tt.launchMode))
			assert.Equal(t, tt.wantReason == "", IsEligibleForRanking(rec, tt.launchMode))
		})
	}
}

func TestCompareForRanking(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Hour)

	a := eligible("a")
	b := eligible("b")
	assert.Equal(t, -1, CompareForRanking(a, b), "id asc breaks full ties")
	assert.Equal(t, 1, CompareForRanking(b, a))
	assert.Equal(t, 0, CompareForRanking(a, a))

	b.TrustScore = contracts.IntPtr(60)
	assert.Equal(t, 1, CompareForRanking(a, b), "higher trust first")

	b.TrustScore = nil
	assert.Equal(t, -1, CompareForRanking(a, b), "nil trust last")

	b = eligible("b")
	b.DataConfidence = 90
	assert.Equal(t, 1, CompareForRanking(a, b), "higher confidence first")

	b = eligible("b")
	a.LastScoredAt = &earlier
	b.LastScoredAt = &now
	assert.Equal(t, 1, CompareForRanking(a, b), "more recent first")

	b.LastScoredAt = nil
	assert.Equal(t, -1, CompareForRanking(a, b), "nil last scored last")
}

func TestSort_TotalOrderIsStable(t *testing.T) {
	// many records tie on every key except id
	build := func() []contracts.RankingRecord {
		ids := []string{"m", "c", "x", "a", "q", "b", "z", "k"}
		out := make([]contracts.RankingRecord, 0, len(ids))
		for _, id := range ids {
			rec := eligible(id)
			rec.TrustScore = contracts.IntPtr(10)
			out = append(out, rec)
		}
		out[2].TrustScore = contracts.IntPtr(90)
		out[5].TrustScore = nil
		return out
	}

	first := build()
	Sort(first, nil)
	second := build()
	// reverse input order must not change output
	for i, j := 0, len(second)-1; i < j; i, j = i+1, j-1 {
		second[i], second[j] = second[j], second[i]
	}
	Sort(second, nil)

	assert.Equal(t, first, second)

	ids := make([]string, len(first))
	for i, r := range first {
		ids[i] = r.CompanyID
	}
	assert.Equal(t, []string{"x", "a", "c", "k", "m", "q", "z", "b"}, ids)
}

func TestSort_PrimaryComparatorFirst(t *testing.T) {
	records := []contracts.RankingRecord{eligible("a"), eligible("b"), eligible("c")}
	records[0].FundamentalsScore = contracts.IntPtr(10)
	records[1].FundamentalsScore = contracts.IntPtr(90)
	records[2].FundamentalsScore = contracts.IntPtr(90)

	Sort(records, func(a, b contracts.RankingRecord) int {
		return compareIntDescNilLast(a.FundamentalsScore, b.FundamentalsScore)
	})

	assert.Equal(t, "b", records[0].CompanyID)
	assert.Equal(t, "c", records[1].CompanyID)
	assert.Equal(t, "a", records[2].CompanyID)
}

type stubRepo struct {
	records []contracts.RankingRecord
	err     error
	query   contracts.RankingQuery
}

func (s *stubRepo) ListCandidates(_ context.Context, q contracts.RankingQuery) ([]contracts.RankingRecord, error) {
	s.query = q
	return s.records, s.err
}

func TestService_List(t *testing.T) {
	skeleton := eligible("s")
	skeleton.IsSkeleton = true
	high := eligible("h")
	high.TrustScore = contracts.IntPtr(99)

	repo := &stubRepo{records: []contracts.RankingRecord{eligible("a"), skeleton, high}}
	svc := NewService(repo, logger.Nop())

	got, err := svc.List(context.Background(), true, 20, 40)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "h", got[0].CompanyID)
	assert.Equal(t, "a", got[1].CompanyID)
	assert.Equal(t, contracts.RankingQuery{LaunchMode: true, Limit: 20, Offset: 40}, repo.query)
}

func TestService_ListErrors(t *testing.T) {
	svc := NewService(&stubRepo{}, logger.Nop())
	_, err := svc.List(context.Background(), false, 0, 0)
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)

	_, err = svc.List(context.Background(), false, 501, 0)
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)

	boom := errors.New("connection reset")
	svc = NewService(&stubRepo{err: boom}, logger.Nop())
	_, err = svc.List(context.Background(), false, 10, 0)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, contracts.KindPersistence, contracts.KindOf(err))
}

func TestSort_IDTieBreakIsByteOrder(t *testing.T) {
	records := []contracts.RankingRecord{eligible("b-1"), eligible("B-2"), eligible("a-3"), eligible("_x")}
	Sort(records, nil)

	var ids []string
	for _, r := range records {
		ids = append(ids, r.CompanyID)
	}
	// 대문자 < '_' < 소문자: SQL 쪽도 COLLATE "C" 로 같은 순서
	assert.Equal(t, []string{"B-2", "_x", "a-3", "b-1"}, ids)
	assert.Contains(t, candidatesSQL, `c.id COLLATE "C" ASC`)
}
