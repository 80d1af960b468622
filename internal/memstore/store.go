// Package memstore in-memory implementations of every repository, the lock and
// the job state store. Used by tests and by `trustrank recompute --dry-run`.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/trustrank/internal/contracts"
	"github.com/wonny/trustrank/internal/ranking"
)

type snapshotKey struct {
	companyID string
	day       time.Time
	version   string
}

type forecastKey struct {
	companyID string
	horizon   int
	model     string
}

type failure struct {
	err       error
	remaining int // 0 = always
}

type company struct {
	facts        contracts.CompanyFacts
	verification *contracts.VerificationCounts
}

// Store is safe for concurrent use
type Store struct {
	mu sync.Mutex

	companies map[string]company
	states    map[string]contracts.CompanyScoreState
	snapshots map[snapshotKey]contracts.ScoreSnapshot
	history   map[string][]contracts.ScoreHistoryPoint // oldest first
	forecasts map[forecastKey]contracts.Forecast
	changeLog []contracts.ChangeLogEntry

	locks    map[string]string
	cursors  map[string]string
	lastRuns map[string]contracts.RunResult

	failures map[string]*failure
	calls    map[string]int
	nextID   int64
}

// New creates an empty store
func New() *Store {
	return &Store{
		companies: make(map[string]company),
		states:    make(map[string]contracts.CompanyScoreState),
		snapshots: make(map[snapshotKey]contracts.ScoreSnapshot),
		history:   make(map[string][]contracts.ScoreHistoryPoint),
		forecasts: make(map[forecastKey]contracts.Forecast),
		locks:     make(map[string]string),
		cursors:   make(map[string]string),
		lastRuns:  make(map[string]contracts.RunResult),
		failures:  make(map[string]*failure),
		calls:     make(map[string]int),
	}
}

// FailOn makes op fail with err. companyID "" matches every call of op.
// times 0 = every call, n = next n calls.
func (s *Store) FailOn(op, companyID string, err error, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[failKey(op, companyID)] = &failure{err: err, remaining: times}
}

// Calls number of calls of op so far
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func failKey(op, companyID string) string {
	if companyID == "" {
		return op
	}
	return op + ":" + companyID
}

// check counts the call and returns an injected failure. Caller holds mu.
func (s *Store) check(op, companyID string) error {
	s.calls[op]++
	for _, key := range []string{failKey(op, companyID), op} {
		f, ok := s.failures[key]
		if !ok {
			continue
		}
		if f.remaining > 0 {
			f.remaining--
			if f.remaining == 0 {
				delete(s.failures, key)
			}
		}
		return f.err
	}
	return nil
}

// === seeding ===

// AddCompany registers a company; verification nil = unknown to the verification source
func (s *Store) AddCompany(facts contracts.CompanyFacts, verification *contracts.VerificationCounts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[facts.CompanyID] = company{facts: facts, verification: verification}
}

// PutState stores state as-is (version included)
func (s *Store) PutState(state contracts.CompanyScoreState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.CompanyID] = state
}

// === FactsRepository ===

// GetFacts implements contracts.FactsRepository
func (s *Store) GetFacts(_ context.Context, companyID string) (*contracts.CompanyFacts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("GetFacts", companyID); err != nil {
		return nil, err
	}
	c, ok := s.companies[companyID]
	if !ok {
		return nil, contracts.ErrCompanyNotFound
	}
	facts := c.facts
	return &facts, nil
}

// GetVerification implements contracts.FactsRepository
func (s *Store) GetVerification(_ context.Context, companyID string) (*contracts.VerificationCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("GetVerification", companyID); err != nil {
		return nil, err
	}
	c, ok := s.companies[companyID]
	if !ok || c.verification == nil {
		return &contracts.VerificationCounts{}, nil
	}
	v := *c.verification
	v.Known = true
	return &v, nil
}

// ListCompanyIDs implements contracts.FactsRepository
func (s *Store) ListCompanyIDs(_ context.Context, afterID string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListCompanyIDs", afterID); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(s.companies))
	for id := range s.companies {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// === ScoreStateRepository ===

// GetState implements contracts.ScoreStateRepository
func (s *Store) GetState(_ context.Context, companyID string) (*contracts.CompanyScoreState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("GetState", companyID); err != nil {
		return nil, err
	}
	st, ok := s.states[companyID]
	if !ok {
		return nil, nil
	}
	st.RiskFlags = slices.Clone(st.RiskFlags)
	return &st, nil
}

// SaveState implements contracts.ScoreStateRepository with the same version rule as Postgres
func (s *Store) SaveState(_ context.Context, state *contracts.CompanyScoreState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveState(state)
}

// saveState caller holds mu
func (s *Store) saveState(state *contracts.CompanyScoreState) error {
	if err := s.check("SaveState", state.CompanyID); err != nil {
		return err
	}
	current, exists := s.states[state.CompanyID]
	switch {
	case !exists && state.Version != 0,
		exists && current.Version != state.Version:
		return contracts.NewError(contracts.KindCoordination, "memstore.save", state.CompanyID, contracts.ErrVersionConflict)
	}
	state.Version++
	stored := *state
	stored.RiskFlags = slices.Clone(state.RiskFlags)
	s.states[state.CompanyID] = stored
	return nil
}

// State returns the stored state (test helper)
func (s *Store) State(companyID string) (contracts.CompanyScoreState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[companyID]
	return st, ok
}

// === SnapshotRepository ===

// UpsertSnapshots implements contracts.SnapshotRepository
func (s *Store) UpsertSnapshots(_ context.Context, snapshots ...contracts.ScoreSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertSnapshots(snapshots)
}

func (s *Store) upsertSnapshots(snapshots []contracts.ScoreSnapshot) error {
	for _, snap := range snapshots {
		if err := s.check("UpsertSnapshots", snap.CompanyID); err != nil {
			return err
		}
	}
	for _, snap := range snapshots {
		snap.AsOfDate = contracts.AsOfDate(snap.AsOfDate)
		s.snapshots[snapshotKey{snap.CompanyID, snap.AsOfDate, snap.Version}] = snap
	}
	return nil
}

// ListSnapshots implements contracts.SnapshotRepository
func (s *Store) ListSnapshots(_ context.Context, companyID string, asOf time.Time) ([]contracts.ScoreSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	day := contracts.AsOfDate(asOf)
	var out []contracts.ScoreSnapshot
	for k, snap := range s.snapshots {
		if k.companyID == companyID && k.day.Equal(day) {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// SnapshotCount total stored snapshots (test helper)
func (s *Store) SnapshotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

// PruneSnapshots implements contracts.SnapshotRepository
func (s *Store) PruneSnapshots(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("PruneSnapshots", ""); err != nil {
		return 0, err
	}
	cutoff := contracts.AsOfDate(before)
	var n int64
	for k := range s.snapshots {
		if k.day.Before(cutoff) {
			delete(s.snapshots, k)
			n++
		}
	}
	return n, nil
}

// === HistoryRepository ===

// AppendHistory implements contracts.HistoryRepository
func (s *Store) AppendHistory(_ context.Context, p contracts.ScoreHistoryPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendHistory(p)
}

func (s *Store) appendHistory(p contracts.ScoreHistoryPoint) error {
	if err := s.check("AppendHistory", p.CompanyID); err != nil {
		return err
	}
	s.history[p.CompanyID] = append(s.history[p.CompanyID], p)
	return nil
}

// RecentHistory implements contracts.HistoryRepository
func (s *Store) RecentHistory(_ context.Context, companyID string, limit int) ([]contracts.ScoreHistoryPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("RecentHistory", companyID); err != nil {
		return nil, err
	}
	points := s.history[companyID]
	out := make([]contracts.ScoreHistoryPoint, 0, min(limit, len(points)))
	for i := len(points) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, points[i])
	}
	return out, nil
}

// DailyHistory implements contracts.HistoryRepository
func (s *Store) DailyHistory(_ context.Context, companyID string, before time.Time, days int) ([]contracts.ScoreHistoryPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("DailyHistory", companyID); err != nil {
		return nil, err
	}
	cutoff := contracts.AsOfDate(before)
	points := slices.Clone(s.history[companyID])
	sort.SliceStable(points, func(i, j int) bool { return points[i].RecordedAt.After(points[j].RecordedAt) })

	out := make([]contracts.ScoreHistoryPoint, 0, days)
	var last time.Time
	for _, p := range points {
		day := contracts.AsOfDate(p.RecordedAt)
		if !day.Before(cutoff) || day.Equal(last) {
			continue
		}
		if len(out) == days {
			break
		}
		out = append(out, p)
		last = day
	}
	return out, nil
}

// PruneHistory implements contracts.HistoryRepository
func (s *Store) PruneHistory(_ context.Context, before time.Time, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("PruneHistory", ""); err != nil {
		return 0, err
	}
	var n int64
	for id, points := range s.history {
		kept := make([]contracts.ScoreHistoryPoint, 0, len(points))
		for i, p := range points {
			newest := len(points) - i
			if newest > keep && p.RecordedAt.Before(before) {
				n++
				continue
			}
			kept = append(kept, p)
		}
		s.history[id] = kept
	}
	return n, nil
}

// === ForecastRepository ===

// UpsertForecasts implements contracts.ForecastRepository
func (s *Store) UpsertForecasts(_ context.Context, forecasts []contracts.Forecast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range forecasts {
		if err := s.check("UpsertForecasts", f.CompanyID); err != nil {
			return err
		}
	}
	for _, f := range forecasts {
		s.forecasts[forecastKey{f.CompanyID, f.HorizonDays, f.ModelVersion}] = f
	}
	return nil
}

// ListForecasts implements contracts.ForecastRepository
func (s *Store) ListForecasts(_ context.Context, companyID string) ([]contracts.Forecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListForecasts", companyID); err != nil {
		return nil, err
	}
	var out []contracts.Forecast
	for k, f := range s.forecasts {
		if k.companyID == companyID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].HorizonDays != out[j].HorizonDays {
			return out[i].HorizonDays < out[j].HorizonDays
		}
		return out[i].ModelVersion < out[j].ModelVersion
	})
	return out, nil
}

// === ChangeLogRepository ===

// AppendChangeLog implements contracts.ChangeLogRepository
func (s *Store) AppendChangeLog(_ context.Context, entries ...contracts.ChangeLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendChangeLog(entries)
}

func (s *Store) appendChangeLog(entries []contracts.ChangeLogEntry) error {
	if len(entries) > 0 {
		if err := s.check("AppendChangeLog", entries[0].CompanyID); err != nil {
			return err
		}
	}
	for _, e := range entries {
		s.nextID++
		e.ID = s.nextID
		s.changeLog = append(s.changeLog, e)
	}
	return nil
}

// ListChangeLog implements contracts.ChangeLogRepository (newest first)
func (s *Store) ListChangeLog(_ context.Context, companyID string, limit int) ([]contracts.ChangeLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []contracts.ChangeLogEntry
	for i := len(s.changeLog) - 1; i >= 0 && len(out) < limit; i-- {
		if s.changeLog[i].CompanyID == companyID {
			out = append(out, s.changeLog[i])
		}
	}
	return out, nil
}

// ChangeLogCount total stored change-log entries (test helper)
func (s *Store) ChangeLogCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.changeLog)
}

// === UnitOfWork ===

// WithinTx implements contracts.UnitOfWork. Writes made through w are undone when fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, w contracts.ScoreWriter) error) error {
	tx := &memTx{s: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// memTx journals an undo step per successful write
type memTx struct {
	s    *Store
	undo []func() // run under s.mu
}

func (t *memTx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) SaveState(_ context.Context, state *contracts.CompanyScoreState) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	id := state.CompanyID
	prev, existed := s.states[id]
	if err := s.saveState(state); err != nil {
		return err
	}
	t.undo = append(t.undo, func() {
		if existed {
			s.states[id] = prev
		} else {
			delete(s.states, id)
		}
	})
	return nil
}

func (t *memTx) UpsertSnapshots(_ context.Context, snapshots ...contracts.ScoreSnapshot) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	type prior struct {
		key  snapshotKey
		snap contracts.ScoreSnapshot
		ok   bool
	}
	priors := make([]prior, 0, len(snapshots))
	for _, snap := range snapshots {
		key := snapshotKey{snap.CompanyID, contracts.AsOfDate(snap.AsOfDate), snap.Version}
		old, ok := s.snapshots[key]
		priors = append(priors, prior{key: key, snap: old, ok: ok})
	}
	if err := s.upsertSnapshots(snapshots); err != nil {
		return err
	}
	t.undo = append(t.undo, func() {
		for i := len(priors) - 1; i >= 0; i-- {
			p := priors[i]
			if p.ok {
				s.snapshots[p.key] = p.snap
			} else {
				delete(s.snapshots, p.key)
			}
		}
	})
	return nil
}

func (t *memTx) AppendHistory(_ context.Context, p contracts.ScoreHistoryPoint) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendHistory(p); err != nil {
		return err
	}
	t.undo = append(t.undo, func() {
		points := s.history[p.CompanyID]
		for i := len(points) - 1; i >= 0; i-- {
			if points[i].Score == p.Score && points[i].RecordedAt.Equal(p.RecordedAt) {
				s.history[p.CompanyID] = slices.Delete(points, i, i+1)
				return
			}
		}
	})
	return nil
}

func (t *memTx) AppendChangeLog(_ context.Context, entries ...contracts.ChangeLogEntry) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	first := s.nextID + 1
	if err := s.appendChangeLog(entries); err != nil {
		return err
	}
	last := s.nextID
	t.undo = append(t.undo, func() {
		s.changeLog = slices.DeleteFunc(s.changeLog, func(e contracts.ChangeLogEntry) bool {
			return e.ID >= first && e.ID <= last
		})
	})
	return nil
}

// === RankingRepository ===

// ListCandidates implements contracts.RankingRepository with the guard applied in memory
func (s *Store) ListCandidates(_ context.Context, q contracts.RankingQuery) ([]contracts.RankingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListCandidates", ""); err != nil {
		return nil, err
	}

	records := make([]contracts.RankingRecord, 0, len(s.companies))
	for id, c := range s.companies {
		rec := contracts.RankingRecord{
			CompanyID:        id,
			Name:             c.facts.Name,
			IsPublic:         c.facts.IsPublic,
			IsSkeleton:       c.facts.IsSkeleton,
			IsDemo:           c.facts.IsDemo,
			MergedIntoID:     c.facts.MergedIntoID,
			StabilityProfile: contracts.StabilityMedium,
		}
		if st, ok := s.states[id]; ok {
			rec.DataConfidence = st.DataConfidence
			rec.RiskFlags = slices.Clone(st.RiskFlags)
			rec.TrustScore = st.TrustScore
			rec.FundamentalsScore = st.FundamentalsScore
			rec.StabilityProfile = st.StabilityProfile
			rec.LastScoredAt = st.LastScoredAt
		}
		records = append(records, rec)
	}

	records = ranking.Filter(records, q.LaunchMode)
	ranking.Sort(records, nil)

	if q.Offset >= len(records) {
		return []contracts.RankingRecord{}, nil
	}
	end := min(len(records), q.Offset+q.Limit)
	return records[q.Offset:end], nil
}

// === Locker ===

// Acquire implements contracts.Locker (no TTL; tests release explicitly)
func (s *Store) Acquire(_ context.Context, name string, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("Acquire", name); err != nil {
		return "", err
	}
	if _, held := s.locks[name]; held {
		return "", contracts.ErrLockHeld
	}
	token := uuid.NewString()
	s.locks[name] = token
	return token, nil
}

// Extend implements contracts.Locker
func (s *Store) Extend(_ context.Context, name, token string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("Extend", name); err != nil {
		return err
	}
	if s.locks[name] != token {
		return contracts.ErrLockLost
	}
	return nil
}

// Release implements contracts.Locker
func (s *Store) Release(_ context.Context, name, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["Release"]++
	if s.locks[name] == token {
		delete(s.locks, name)
	}
	return nil
}

// Held reports whether name is locked (test helper)
func (s *Store) Held(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.locks[name]
	return ok
}

// === JobStateStore ===

// GetCursor implements contracts.JobStateStore
func (s *Store) GetCursor(_ context.Context, job string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("GetCursor", job); err != nil {
		return "", err
	}
	return s.cursors[job], nil
}

// SetCursor implements contracts.JobStateStore
func (s *Store) SetCursor(_ context.Context, job, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("SetCursor", job); err != nil {
		return err
	}
	s.cursors[job] = cursor
	return nil
}

// ClearCursor implements contracts.JobStateStore
func (s *Store) ClearCursor(_ context.Context, job string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ClearCursor", job); err != nil {
		return err
	}
	delete(s.cursors, job)
	return nil
}

// SaveLastRun implements contracts.JobStateStore
func (s *Store) SaveLastRun(_ context.Context, job string, result *contracts.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("SaveLastRun", job); err != nil {
		return err
	}
	r := *result
	r.ErrorSummary = slices.Clone(result.ErrorSummary)
	s.lastRuns[job] = r
	return nil
}

// LastRun implements contracts.JobStateStore
func (s *Store) LastRun(_ context.Context, job string) (*contracts.RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.lastRuns[job]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// Seed adds n public companies with ids c-0001.. and moderate facts (test helper)
func (s *Store) Seed(n int) []string {
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("c-%04d", i)
		website := "https://" + strings.ToLower(id) + ".example.com"
		country := "US"
		s.AddCompany(contracts.CompanyFacts{
			CompanyID: id,
			Name:      "Company " + id,
			Website:   &website,
			Country:   &country,
			IsPublic:  true,
		}, nil)
		ids = append(ids, id)
	}
	return ids
}
