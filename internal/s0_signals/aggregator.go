package s0_signals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wonny/trustrank/internal/contracts"
	"github.com/wonny/trustrank/pkg/logger"
)

// DefaultHistoryWindow 조회할 최근 history 포인트 수 (volatility 분류에 최소 7개 필요)
const DefaultHistoryWindow = 14

// Aggregator assembles the flat engine input for one company
// ⭐ SSOT: 엔진 입력 수집은 여기서만 (누락 필드는 nil, 실패하지 않음)
type Aggregator struct {
	facts   contracts.FactsRepository
	states  contracts.ScoreStateRepository
	history contracts.HistoryRepository
	window  int
	logger  *logger.Logger
}

// NewAggregator creates a signal aggregator
func NewAggregator(
	facts contracts.FactsRepository,
	states contracts.ScoreStateRepository,
	history contracts.HistoryRepository,
	window int,
	log *logger.Logger,
) *Aggregator {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &Aggregator{
		facts:   facts,
		states:  states,
		history: history,
		window:  window,
		logger:  log.WithComponent("s0_signals.aggregator"),
	}
}

// Collect returns the signals for companyID as of asOf
func (a *Aggregator) Collect(ctx context.Context, companyID string, asOf time.Time) (*contracts.CompanySignals, error) {
	signals, _, err := a.CollectWithState(ctx, companyID, asOf)
	return signals, err
}

// CollectWithState also returns the current score state (nil before first scoring)
// so the caller can write back against its version.
func (a *Aggregator) CollectWithState(ctx context.Context, companyID string, asOf time.Time) (*contracts.CompanySignals, *contracts.CompanyScoreState, error) {
	if companyID == "" {
		return nil, nil, contracts.ErrMissingCompanyID
	}

	facts, err := a.facts.GetFacts(ctx, companyID)
	if err != nil {
		if errors.Is(err, contracts.ErrCompanyNotFound) {
			return nil, nil, contracts.NewError(contracts.KindData, "signals.facts", companyID, err)
		}
		return nil, nil, fmt.Errorf("get facts: %w", err)
	}

	verification, err := a.facts.GetVerification(ctx, companyID)
	if err != nil {
		return nil, nil, fmt.Errorf("get verification: %w", err)
	}

	state, err := a.states.GetState(ctx, companyID)
	if err != nil {
		return nil, nil, fmt.Errorf("get score state: %w", err)
	}

	// 하루 한 점, 오늘 이전만 (당일 재계산 점은 제외)
	history, err := a.history.DailyHistory(ctx, companyID, asOf, a.window)
	if err != nil {
		return nil, nil, fmt.Errorf("get history: %w", err)
	}

	signals := Build(facts, verification, state, history, asOf)

	a.logger.WithFields(map[string]interface{}{
		"company_id":   companyID,
		"completeness": signals.Completeness(),
		"history":      len(history),
	}).Debug("Signals collected")

	return signals, state, nil
}

// Build maps raw facts plus current state into engine input. Pure.
func Build(
	facts *contracts.CompanyFacts,
	verification *contracts.VerificationCounts,
	state *contracts.CompanyScoreState,
	history []contracts.ScoreHistoryPoint,
	asOf time.Time,
) *contracts.CompanySignals {
	s := &contracts.CompanySignals{
		CompanyID:     facts.CompanyID,
		AsOf:          asOf,
		Website:       nonEmpty(facts.Website),
		FoundedYear:   validFoundedYear(facts.FoundedYear, asOf),
		EmployeeCount: nonNegative(facts.EmployeeCount),
		Revenue:       facts.Revenue,
		Profit:        facts.Profit,
		Country:       nonEmpty(facts.Country),
		Region:        nonEmpty(facts.Region),
		Industry:      nonEmpty(facts.Industry),
		History:       history,
	}

	if desc := nonEmpty(facts.Description); desc != nil {
		n := utf8.RuneCountInString(*desc)
		s.DescriptionLength = &n
	}

	if verification != nil {
		s.Verification = *verification
	}

	if state != nil {
		s.PreviousTrustScore, s.PreviousFundamentalsScore = anchorScores(state, asOf)
		s.LastScoredAt = state.LastScoredAt
		s.RiskFlags = append([]string(nil), state.RiskFlags...)
	}
	return s
}

// anchorScores returns the scores last published before asOf's UTC day.
// 오늘 이미 게시됐다면 그 게시가 썼던 기준점을 그대로 이어받는다.
func anchorScores(state *contracts.CompanyScoreState, asOf time.Time) (trust, fundamentals *int) {
	if state.LastScoredAt == nil || contracts.AsOfDate(*state.LastScoredAt).Before(contracts.AsOfDate(asOf)) {
		return state.TrustScore, state.FundamentalsScore
	}
	return state.PreviousTrustScore, state.PreviousFundamentalsScore
}

func nonEmpty(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func nonNegative(v *int) *int {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}

// validFoundedYear drops years in the future or before 1800
func validFoundedYear(v *int, asOf time.Time) *int {
	if v == nil || *v < 1800 || *v > asOf.Year() {
		return nil
	}
	return v
}
