package brain

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trustrank/internal/contracts"
	"github.com/wonny/trustrank/internal/flags"
	"github.com/wonny/trustrank/internal/memstore"
	"github.com/wonny/trustrank/pkg/logger"
)

var fixedNow = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		JobName:           "score_recompute",
		LockName:          "score:recompute",
		LockTTL:           time.Minute,
		PageSize:          200,
		Workers:           4,
		TrustCapPercent:   7,
		FundamentalsAlpha: 0.3,
		HistoryWindow:     14,
	}
}

func newTestOrchestrator(t *testing.T, store *memstore.Store, snap flags.Snapshot, opts Options) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(Dependencies{
		Facts:     store,
		States:    store,
		History:   store,
		Writes:    store,
		Forecasts: store,
		Locker:    store,
		JobState:  store,
		Flags:     flags.NewStatic(snap),
	}, opts, logger.Nop())
	require.NoError(t, err)
	o.now = func() time.Time { return fixedNow }
	return o
}

func strPtr(s string) *string { return &s }

// addVerifiedCompany seeds a company whose raw trust score is 100
func addVerifiedCompany(store *memstore.Store, id string) {
	revenue := decimal.NewFromInt(1_000_000_000)
	profit := decimal.NewFromInt(200_000_000)
	store.AddCompany(contracts.CompanyFacts{
		CompanyID:     id,
		Name:          "Verified " + id,
		Website:       strPtr("https://" + id + ".example.com"),
		FoundedYear:   contracts.IntPtr(2006),
		EmployeeCount: contracts.IntPtr(10000),
		Revenue:       &revenue,
		Profit:        &profit,
		Description:   strPtr(strings.Repeat("a", 500)),
		Country:       strPtr("US"),
		Region:        strPtr("CA"),
		Industry:      strPtr("software"),
		IsPublic:      true,
	}, &contracts.VerificationCounts{ApprovedClaims: 1, ApprovedSubmissions: 30, RegistryVerified: true})
}

func TestNewOrchestrator_InvalidOptions(t *testing.T) {
	store := memstore.New()
	deps := Dependencies{Facts: store, States: store, History: store, Writes: store}

	opts := testOptions()
	opts.Workers = 0
	_, err := NewOrchestrator(deps, opts, logger.Nop())
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)

	_, err = NewOrchestrator(Dependencies{Facts: store, States: store, History: store}, testOptions(), logger.Nop())
	assert.ErrorIs(t, err, contracts.ErrInvalidInput, "writer required")

	opts = testOptions()
	opts.FundamentalsAlpha = 0
	_, err = NewOrchestrator(deps, opts, logger.Nop())
	assert.Error(t, err)
}

func TestRecomputeOne_CappedTrust(t *testing.T) {
	store := memstore.New()
	addVerifiedCompany(store, "acme")
	lastScored := fixedNow.AddDate(0, 0, -1)
	store.PutState(contracts.CompanyScoreState{
		CompanyID:        "acme",
		TrustScore:       contracts.IntPtr(50),
		StabilityProfile: contracts.StabilityMedium,
		LastScoredAt:     &lastScored,
		Version:          1,
	})

	o := newTestOrchestrator(t, store, flags.Defaults(), testOptions())
	res, err := o.RecomputeOne(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, 99, res.RawTrustScore, "one day since last score costs one freshness point")
	assert.Equal(t, 54, res.TrustScore, "50 + round(50·7/100)")
	assert.Empty(t, res.ChangeLog, "capped move of 4 is below the trust threshold")

	st, ok := store.State("acme")
	require.True(t, ok)
	assert.Equal(t, 54, *st.TrustScore)
	assert.Equal(t, 50, *st.PreviousTrustScore)
	assert.Equal(t, 4, *st.TrustScoreDelta)
	assert.Equal(t, int64(2), st.Version)
	assert.False(t, st.TrustComponents.Capped)
	assert.NotNil(t, st.ValuationLow)
	assert.Equal(t, "USD", *st.ValuationCurrency)
	assert.NoError(t, st.Validate())

	require.Len(t, res.Forecasts, 3)
	for _, f := range res.Forecasts {
		assert.LessOrEqual(t, f.BandLow, f.ForecastScore)
		assert.GreaterOrEqual(t, f.BandHigh, f.ForecastScore)
	}

	history, err := store.RecentHistory(context.Background(), "acme", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 54, history[0].Score)
}

func TestRecomputeOne_SignificantMoveLogged(t *testing.T) {
	store := memstore.New()
	addVerifiedCompany(store, "acme")
	store.PutState(contracts.CompanyScoreState{
		CompanyID:        "acme",
		TrustScore:       contracts.IntPtr(90),
		StabilityProfile: contracts.StabilityMedium,
		Version:          1,
	})

	o := newTestOrchestrator(t, store, flags.Defaults(), testOptions())
	res, err := o.RecomputeOne(context.Background(), "acme")
	require.NoError(t, err)

	// never-scored freshness is 0 → raw 80, capped move from 90 is -6
	assert.Equal(t, 84, res.TrustScore)
	require.Len(t, res.ChangeLog, 1)
	assert.Equal(t, contracts.ChangeTrustScore, res.ChangeLog[0].ChangeType)
	assert.Equal(t, -6, res.ChangeLog[0].Metadata.Delta)

	logged, err := store.ListChangeLog(context.Background(), "acme", 10)
	require.NoError(t, err)
	assert.Len(t, logged, 1)
}

func TestRecomputeOne_SameDayCapAppliedOnce(t *testing.T) {
	store := memstore.New()
	addVerifiedCompany(store, "acme")
	yesterday := fixedNow.AddDate(0, 0, -1)
	store.PutState(contracts.CompanyScoreState{
		CompanyID:         "acme",
		TrustScore:        contracts.IntPtr(50),
		FundamentalsScore: contracts.IntPtr(40),
		StabilityProfile:  contracts.StabilityMedium,
		LastScoredAt:      &yesterday,
		Version:           1,
	})

	o := newTestOrchestrator(t, store, flags.Defaults(), testOptions())
	ctx := context.Background()

	var fundamentals []int
	firstLogged := 0
	for run := 1; run <= 12; run++ {
		res, err := o.RecomputeOne(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, 54, res.TrustScore, "run %d", run)
		fundamentals = append(fundamentals, res.FundamentalsScore)
		if run == 1 {
			firstLogged = len(res.ChangeLog)
		} else {
			assert.Empty(t, res.ChangeLog, "run %d republishes the same scores", run)
		}

		st, ok := store.State("acme")
		require.True(t, ok)
		assert.Equal(t, 50, *st.PreviousTrustScore, "run %d", run)
		assert.Equal(t, 4, *st.TrustScoreDelta, "run %d", run)
		assert.Equal(t, 40, *st.PreviousFundamentalsScore, "run %d", run)
		assert.NoError(t, st.Validate())
	}
	for _, f := range fundamentals {
		assert.Equal(t, fundamentals[0], f, "fundamentals smoothed from the same anchor")
	}

	assert.Equal(t, firstLogged, store.ChangeLogCount())

	// next day anchors on the score published today
	o.now = func() time.Time { return fixedNow.AddDate(0, 0, 1) }
	res, err := o.RecomputeOne(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 58, res.TrustScore, "54 + round(54·7/100)")

	st, _ := store.State("acme")
	assert.Equal(t, 54, *st.PreviousTrustScore)
}

func TestRecomputeOne_PartialWriteRollsBack(t *testing.T) {
	tests := []struct {
		name string
		op   string
	}{
		{"snapshots", "UpsertSnapshots"},
		{"history", "AppendHistory"},
		{"change log", "AppendChangeLog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.New()
			addVerifiedCompany(store, "acme")
			store.PutState(contracts.CompanyScoreState{
				CompanyID:        "acme",
				TrustScore:       contracts.IntPtr(90),
				StabilityProfile: contracts.StabilityMedium,
				Version:          1,
			})
			o := newTestOrchestrator(t, store, flags.Defaults(), testOptions())
			ctx := context.Background()

			store.FailOn(tt.op, "acme", errors.New("disk full"), 1)
			_, err := o.RecomputeOne(ctx, "acme")
			require.Error(t, err)
			assert.Equal(t, contracts.KindPersistence, contracts.KindOf(err))

			st, ok := store.State("acme")
			require.True(t, ok)
			assert.Equal(t, 90, *st.TrustScore, "state unchanged")
			assert.Equal(t, int64(1), st.Version)
			assert.Zero(t, store.SnapshotCount())
			history, err := store.RecentHistory(ctx, "acme", 10)
			require.NoError(t, err)
			assert.Empty(t, history)
			assert.Zero(t, store.ChangeLogCount())

			// the move is logged once the retry lands
			res, err := o.RecomputeOne(ctx, "acme")
			require.NoError(t, err)
			assert.Equal(t, 84, res.TrustScore)
			require.Len(t, res.ChangeLog, 1)
			assert.Equal(t, -6, res.ChangeLog[0].Metadata.Delta)
			assert.Equal(t, 2, store.SnapshotCount())
			assert.Equal(t, 1, store.ChangeLogCount())
		})
	}
}

func TestRecomputeOne_SnapshotIdempotent(t *testing.T) {
	store := memstore.New()
	store.Seed(1)
	o := newTestOrchestrator(t, store, flags.Defaults(), testOptions())
	ctx := context.Background()

	_, err := o.RecomputeOne(ctx, "c-0001")
	require.NoError(t, err)
	second, err := o.RecomputeOne(ctx, "c-0001")
	require.NoError(t, err)

	assert.Equal(t, 2, store.SnapshotCount(), "one row per engine version per day")
	snaps, err := store.ListSnapshots(ctx, "c-0001", fixedNow)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	for _, s := range snaps {
		if s.Version == "trust-v1" {
			assert.Equal(t, second.TrustScore, s.Score)
		}
	}
}

func TestRecomputeOne_FlagsAndErrors(t *testing.T) {
	store := memstore.New()
	store.Seed(1)
	ctx := context.Background()

	off := newTestOrchestrator(t, store, flags.Defaults().With(flags.RecomputeEnabled, false), testOptions())
	_, err := off.RecomputeOne(ctx, "c-0001")
	assert.ErrorIs(t, err, ErrRecomputeDisabled)

	noForecast := newTestOrchestrator(t, store, flags.Defaults().With(flags.ForecastEnabled, false), testOptions())
	res, err := noForecast.RecomputeOne(ctx, "c-0001")
	require.NoError(t, err)
	assert.Empty(t, res.Forecasts)
	assert.Zero(t, store.Calls("UpsertForecasts"))

	o := newTestOrchestrator(t, store, flags.Defaults(), testOptions())
	_, err = o.RecomputeOne(ctx, "")
	assert.ErrorIs(t, err, contracts.ErrMissingCompanyID)

	_, err = o.RecomputeOne(ctx, "ghost")
	assert.ErrorIs(t, err, contracts.ErrCompanyNotFound)
}

func TestRecomputeOne_VersionConflictRetry(t *testing.T) {
	store := memstore.New()
	store.Seed(1)
	o := newTestOrchestrator(t, store, flags.Defaults(), testOptions())
	ctx := context.Background()

	store.FailOn("SaveState", "c-0001", contracts.ErrVersionConflict, 2)
	_, err := o.RecomputeOne(ctx, "c-0001")
	require.NoError(t, err)
	assert.Equal(t, 3, store.Calls("GetFacts"), "re-read on every attempt")

	store.FailOn("SaveState", "c-0001", contracts.ErrVersionConflict, 3)
	_, err = o.RecomputeOne(ctx, "c-0001")
	assert.ErrorIs(t, err, contracts.ErrVersionConflict)
	assert.Equal(t, contracts.KindCoordination, contracts.KindOf(err))
}

func TestRecomputeAll_EndToEnd(t *testing.T) {
	store := memstore.New()
	store.Seed(450)
	store.FailOn("GetFacts", "c-0123",
		contracts.NewError(contracts.KindComputation, "test", "c-0123", errors.New("bad input")), 0)

	o := newTestOrchestrator(t, store, flags.Defaults(), testOptions())
	ctx := context.Background()

	res, err := o.RecomputeAll(ctx, RecomputeAllRequest{})
	require.NoError(t, err)

	assert.Equal(t, contracts.RunCompleted, res.Status)
	assert.Equal(t, 450, res.Processed)
	assert.Equal(t, 449, res.Updated)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 3, res.Pages)
	require.Len(t, res.ErrorSummary, 1)
	assert.Contains(t, res.ErrorSummary[0], "c-0123")
	assert.Contains(t, res.ErrorSummary[0], "COMPUTATION")
	assert.Empty(t, res.NextCursor)

	cursor, err := store.GetCursor(ctx, "score_recompute")
	require.NoError(t, err)
	assert.Empty(t, cursor, "cursor cleared at end of registry")
	assert.False(t, store.Held("score:recompute"))
	assert.Equal(t, 3, store.Calls("Extend"))

	last, err := store.LastRun(ctx, "score_recompute")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, res.RunID, last.RunID)
	assert.Equal(t, 450, last.Processed)
}

func TestRecomputeAll_Busy(t *testing.T) {
	store := memstore.New()
	store.Seed(3)
	ctx := context.Background()
	_, err := store.Acquire(ctx, "score:recompute", time.Minute)
	require.NoError(t, err)

	o := newTestOrchestrator(t, store, flags.Defaults(), testOptions())
	res, err := o.RecomputeAll(ctx, RecomputeAllRequest{})
	require.NoError(t, err)
	assert.Equal(t, contracts.RunSkipped, res.Status)
	assert.Equal(t, contracts.SkipReasonBusy, res.Reason)
	assert.Zero(t, store.Calls("ListCompanyIDs"))
	assert.True(t, store.Held("score:recompute"), "holder's lock untouched")
}

func TestRecomputeAll_KillSwitch(t *testing.T) {
	store := memstore.New()
	store.Seed(3)
	o := newTestOrchestrator(t, store, flags.Defaults().With(flags.RecomputeEnabled, false), testOptions())

	res, err := o.RecomputeAll(context.Background(), RecomputeAllRequest{})
	require.NoError(t, err)
	assert.Equal(t, contracts.RunSkipped, res.Status)
	assert.Equal(t, contracts.SkipReasonDisabled, res.Reason)
	assert.Zero(t, store.Calls("Acquire"))
}

func TestRecomputeAll_MajorityErrorsPartial(t *testing.T) {
	store := memstore.New()
	store.Seed(10)
	store.FailOn("GetVerification", "", errors.New("verification source down"), 0)

	o := newTestOrchestrator(t, store, flags.Defaults(), testOptions())
	res, err := o.RecomputeAll(context.Background(), RecomputeAllRequest{})
	require.NoError(t, err)

	assert.Equal(t, contracts.RunPartial, res.Status)
	assert.Equal(t, 10, res.Processed)
	assert.Equal(t, 10, res.Errors)
	assert.Zero(t, res.Updated)
}

func TestRecomputeAll_StoreFailure(t *testing.T) {
	store := memstore.New()
	store.Seed(3)
	boom := errors.New("connection refused")
	store.FailOn("ListCompanyIDs", "", boom, 0)

	o := newTestOrchestrator(t, store, flags.Defaults(), testOptions())
	res, err := o.RecomputeAll(context.Background(), RecomputeAllRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, contracts.RunFailed, res.Status)
	assert.Contains(t, res.Error, "connection refused")
	assert.False(t, store.Held("score:recompute"), "lock released on failure")

	last, lerr := store.LastRun(context.Background(), "score_recompute")
	require.NoError(t, lerr)
	require.NotNil(t, last)
	assert.Equal(t, contracts.RunFailed, last.Status)
}

func TestRecomputeAll_LockLost(t *testing.T) {
	store := memstore.New()
	store.Seed(3)
	store.FailOn("Extend", "", contracts.ErrLockLost, 0)

	o := newTestOrchestrator(t, store, flags.Defaults(), testOptions())
	res, err := o.RecomputeAll(context.Background(), RecomputeAllRequest{})
	assert.ErrorIs(t, err, contracts.ErrLockLost)
	assert.Equal(t, contracts.RunFailed, res.Status)
	assert.Equal(t, 3, res.Processed)
}

func TestRecomputeAll_TimeBudgetResumes(t *testing.T) {
	store := memstore.New()
	store.Seed(5)
	ctx := context.Background()

	opts := testOptions()
	opts.PageSize = 2
	opts.Workers = 1
	opts.TimeBudget = time.Second

	o := newTestOrchestrator(t, store, flags.Defaults(), opts)
	var ticks atomic.Int64
	o.now = func() time.Time { return fixedNow.Add(time.Duration(ticks.Add(1)) * time.Second) }

	first, err := o.RecomputeAll(ctx, RecomputeAllRequest{})
	require.NoError(t, err)
	assert.Equal(t, contracts.RunCompleted, first.Status)
	assert.Equal(t, 2, first.Processed)
	assert.Equal(t, "c-0002", first.NextCursor)

	cursor, err := store.GetCursor(ctx, "score_recompute")
	require.NoError(t, err)
	assert.Equal(t, "c-0002", cursor)

	o.opts.TimeBudget = 0
	second, err := o.RecomputeAll(ctx, RecomputeAllRequest{})
	require.NoError(t, err)
	assert.Equal(t, "c-0002", second.StartCursor)
	assert.Equal(t, 3, second.Processed)
	assert.Empty(t, second.NextCursor)

	_, ok := store.State("c-0005")
	assert.True(t, ok)
}

func TestRecomputeAll_ExplicitCursorAndPageSize(t *testing.T) {
	store := memstore.New()
	store.Seed(6)
	o := newTestOrchestrator(t, store, flags.Defaults(), testOptions())

	res, err := o.RecomputeAll(context.Background(), RecomputeAllRequest{Cursor: "c-0003", PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 2, res.Pages)
	_, ok := store.State("c-0001")
	assert.False(t, ok)

	_, err = o.RecomputeAll(context.Background(), RecomputeAllRequest{PageSize: -1})
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)
}

func TestFinalStatus(t *testing.T) {
	tests := []struct {
		processed, errs int
		want            contracts.RunStatus
	}{
		{0, 0, contracts.RunCompleted},
		{450, 1, contracts.RunCompleted},
		{10, 5, contracts.RunCompleted},
		{10, 6, contracts.RunPartial},
		{1, 1, contracts.RunPartial},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, finalStatus(tt.processed, tt.errs))
	}
}
