package ranking

import (
	"context"

	"github.com/wonny/trustrank/internal/contracts"
	"github.com/wonny/trustrank/pkg/logger"
)

// Service read-only ranking listing
// ⭐ SSOT: 랭킹 조회 경로는 반드시 Guard 를 통과
type Service struct {
	repo   contracts.RankingRepository
	logger *logger.Logger
}

// NewService creates a ranking service
func NewService(repo contracts.RankingRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

// List returns one page of eligible companies in deterministic order
func (s *Service) List(ctx context.Context, launchMode bool, limit, offset int) ([]contracts.RankingRecord, error) {
	q := contracts.RankingQuery{LaunchMode: launchMode, Limit: limit, Offset: offset}
	if err := contracts.Validate(q); err != nil {
		return nil, err
	}

	candidates, err := s.repo.ListCandidates(ctx, q)
	if err != nil {
		return nil, contracts.NewError(contracts.KindPersistence, "ranking.list", "", err)
	}

	eligible := Filter(candidates, launchMode)
	if dropped := len(candidates) - len(eligible); dropped > 0 {
		s.logger.WithFields(map[string]interface{}{
			"dropped": dropped,
			"offset":  offset,
		}).Warn("Ranking candidates failed guard after store filter")
	}

	Sort(eligible, nil)
	return eligible, nil
}
