package brain

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/trustrank/internal/contracts"
	"github.com/wonny/trustrank/internal/flags"
)

// RecomputeAllRequest batch entry point parameters
type RecomputeAllRequest struct {
	// Cursor overrides the persisted cursor ("" = resume from KV)
	Cursor   string
	PageSize int `validate:"min=0,max=5000"`
}

// runState counters shared by the page workers
type runState struct {
	processed atomic.Int64
	updated   atomic.Int64
	errors    atomic.Int64

	mu      sync.Mutex
	summary []string
}

func (s *runState) fail(msg string) {
	s.errors.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.summary) < maxErrorSummary {
		s.summary = append(s.summary, msg)
	}
}

// RecomputeAll recomputes the registry page by page under the job lock.
// STARTED → (COMPLETED | PARTIAL | FAILED); lock busy or kill switch → SKIPPED.
func (o *Orchestrator) RecomputeAll(ctx context.Context, req RecomputeAllRequest) (*contracts.RunResult, error) {
	if err := contracts.Validate(req); err != nil {
		return nil, err
	}

	result := &contracts.RunResult{
		RunID:     uuid.NewString(),
		JobName:   o.opts.JobName,
		Status:    contracts.RunStarted,
		StartedAt: o.now().UTC(),
	}
	log := o.logger.WithFields(map[string]interface{}{
		"run_id": result.RunID,
		"job":    o.opts.JobName,
	})

	// 플래그는 실행당 1회만 읽음
	snap := o.deps.Flags.Snapshot(ctx)
	if !snap.Enabled(flags.RecomputeEnabled) {
		log.Warn("Recompute disabled by kill switch, skipping run")
		return o.finishSkipped(result, contracts.SkipReasonDisabled), nil
	}

	token, err := o.deps.Locker.Acquire(ctx, o.opts.LockName, o.opts.LockTTL)
	if errors.Is(err, contracts.ErrLockHeld) {
		log.Info("Recompute lock busy, skipping run")
		return o.finishSkipped(result, contracts.SkipReasonBusy), nil
	}
	if err != nil {
		result.Status = contracts.RunFailed
		result.Error = err.Error()
		result.FinishedAt = o.now().UTC()
		return result, contracts.NewError(contracts.KindPersistence, "brain.lock", "", err)
	}
	defer func() {
		// 실패 경로에서도 반드시 해제 (TTL 은 프로세스 크래시 대비)
		if err := o.deps.Locker.Release(context.WithoutCancel(ctx), o.opts.LockName, token); err != nil {
			log.WithError(err).Warn("Failed to release recompute lock")
		}
	}()

	log.WithField("flags", snap.Hash()[:12]).Info("Recompute run started")

	runErr := o.runPages(ctx, snap, req, token, result)

	result.FinishedAt = o.now().UTC()
	if runErr != nil {
		result.Status = contracts.RunFailed
		result.Error = runErr.Error()
	} else {
		result.Status = finalStatus(result.Processed, result.Errors)
	}

	if err := o.deps.JobState.SaveLastRun(context.WithoutCancel(ctx), o.opts.JobName, result); err != nil {
		log.WithError(err).Warn("Failed to persist last run stats")
	}

	log.WithFields(map[string]interface{}{
		"status":      result.Status,
		"processed":   result.Processed,
		"updated":     result.Updated,
		"errors":      result.Errors,
		"pages":       result.Pages,
		"next_cursor": result.NextCursor,
		"duration_ms": result.Duration().Milliseconds(),
	}).Info("Recompute run finished")

	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

// runPages walks the registry from the start cursor. Returns only run-level errors.
func (o *Orchestrator) runPages(ctx context.Context, snap flags.Snapshot, req RecomputeAllRequest, token string, result *contracts.RunResult) error {
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = o.opts.PageSize
	}

	cursor := req.Cursor
	if cursor == "" {
		stored, err := o.deps.JobState.GetCursor(ctx, o.opts.JobName)
		if err != nil {
			return contracts.NewError(contracts.KindPersistence, "brain.get_cursor", "", err)
		}
		cursor = stored
	}
	result.StartCursor = cursor

	state := &runState{}
	defer func() {
		result.Processed = int(state.processed.Load())
		result.Updated = int(state.updated.Load())
		result.Errors = int(state.errors.Load())
		result.ErrorSummary = state.summary
	}()

	started := o.now()
	for {
		ids, err := o.deps.Facts.ListCompanyIDs(ctx, cursor, pageSize)
		if err != nil {
			result.NextCursor = cursor
			return contracts.NewError(contracts.KindPersistence, "brain.list_page", "", err)
		}
		if len(ids) == 0 {
			break
		}

		if err := o.processPage(ctx, snap, result.RunID, ids, state); err != nil {
			result.NextCursor = cursor
			return err
		}
		result.Pages++
		cursor = ids[len(ids)-1]

		if err := o.deps.JobState.SetCursor(ctx, o.opts.JobName, cursor); err != nil {
			result.NextCursor = cursor
			return contracts.NewError(contracts.KindPersistence, "brain.set_cursor", "", err)
		}
		if err := o.deps.Locker.Extend(ctx, o.opts.LockName, token, o.opts.LockTTL); err != nil {
			result.NextCursor = cursor
			return contracts.NewError(contracts.KindCoordination, "brain.extend_lock", "", err)
		}

		if len(ids) < pageSize {
			break
		}
		if o.opts.TimeBudget > 0 && o.now().Sub(started) >= o.opts.TimeBudget {
			// 다음 실행에서 이어서 처리
			result.NextCursor = cursor
			o.logger.WithFields(map[string]interface{}{
				"run_id": result.RunID,
				"cursor": cursor,
			}).Info("Time budget reached, cursor persisted")
			return nil
		}
	}

	// 레지스트리 끝까지 처리 → 다음 실행은 처음부터
	if err := o.deps.JobState.ClearCursor(ctx, o.opts.JobName); err != nil {
		return contracts.NewError(contracts.KindPersistence, "brain.clear_cursor", "", err)
	}
	result.NextCursor = ""
	return nil
}

// processPage recomputes one page with a bounded worker pool.
// Per-company errors are counted, never returned.
func (o *Orchestrator) processPage(ctx context.Context, snap flags.Snapshot, runID string, ids []string, state *runState) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			if o.limiter != nil {
				if err := o.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			if err := gctx.Err(); err != nil {
				return err
			}

			state.processed.Add(1)
			if _, err := o.recomputeCompany(gctx, snap, runID, id); err != nil {
				state.fail(describe(id, err))
				o.logger.WithError(err).WithFields(map[string]interface{}{
					"run_id":     runID,
					"company_id": id,
					"kind":       contracts.KindOf(err),
				}).Warn("Company recompute failed")
				return nil
			}
			state.updated.Add(1)
			return nil
		})
	}
	return g.Wait()
}

func (o *Orchestrator) finishSkipped(result *contracts.RunResult, reason string) *contracts.RunResult {
	result.Status = contracts.RunSkipped
	result.Reason = reason
	result.FinishedAt = o.now().UTC()
	return result
}

// finalStatus PARTIAL when errors exceed half of the processed companies
func finalStatus(processed, errs int) contracts.RunStatus {
	if errs*2 > processed {
		return contracts.RunPartial
	}
	return contracts.RunCompleted
}
