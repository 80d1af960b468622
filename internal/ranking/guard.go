package ranking

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/wonny/trustrank/internal/contracts"
)

// MinConfidence 랭킹 노출 최소 data confidence
const MinConfidence = 40

// ExcludedRiskFlags 하나라도 있으면 랭킹에서 제외
var ExcludedRiskFlags = []string{
	contracts.RiskSuspiciousActivity,
	contracts.RiskCoordinatedClaims,
	contracts.RiskDuplicateSuspected,
}

// Exclusion reasons
const (
	ReasonNotPublic      = "not public"
	ReasonSkeleton       = "skeleton record"
	ReasonMerged         = "merged away"
	ReasonLowConfidence  = "low data confidence"
	ReasonRiskFlag       = "risk flag"
	ReasonDemoLaunchMode = "demo record in launch mode"
)

// IsEligibleForRanking reports whether a record may appear in public rankings
// ⭐ SSOT: 랭킹 노출 여부 판단은 여기서만
func IsEligibleForRanking(rec contracts.RankingRecord, launchMode bool) bool {
	return Check(rec, launchMode) == ""
}

// Check returns the exclusion reason, or "" when the record is eligible
func Check(rec contracts.RankingRecord, launchMode bool) string {
	if !rec.IsPublic {
		return ReasonNotPublic
	}
	if rec.IsSkeleton {
		return ReasonSkeleton
	}
	if rec.MergedIntoID != nil && *rec.MergedIntoID != "" {
		return ReasonMerged
	}
	if rec.DataConfidence < MinConfidence {
		return fmt.Sprintf("%s (%d)", ReasonLowConfidence, rec.DataConfidence)
	}
	for _, flag := range rec.RiskFlags {
		if slices.Contains(ExcludedRiskFlags, flag) {
			return fmt.Sprintf("%s (%s)", ReasonRiskFlag, flag)
		}
	}
	if launchMode && rec.IsDemo {
		return ReasonDemoLaunchMode
	}
	return ""
}

// CompareForRanking total order:
// trust desc (nil last), data confidence desc, last scored desc (nil last), id asc
func CompareForRanking(a, b contracts.RankingRecord) int {
	if c := compareIntDescNilLast(a.TrustScore, b.TrustScore); c != 0 {
		return c
	}
	if c := cmp.Compare(b.DataConfidence, a.DataConfidence); c != 0 {
		return c
	}
	if c := compareTimeDescNilLast(a.LastScoredAt, b.LastScoredAt); c != 0 {
		return c
	}
	return cmp.Compare(a.CompanyID, b.CompanyID)
}

// Sort orders records by primary (may be nil) then CompareForRanking
func Sort(records []contracts.RankingRecord, primary func(a, b contracts.RankingRecord) int) {
	slices.SortFunc(records, func(a, b contracts.RankingRecord) int {
		if primary != nil {
			if c := primary(a, b); c != 0 {
				return c
			}
		}
		return CompareForRanking(a, b)
	})
}

// Filter keeps eligible records, preserving order
func Filter(records []contracts.RankingRecord, launchMode bool) []contracts.RankingRecord {
	out := make([]contracts.RankingRecord, 0, len(records))
	for _, rec := range records {
		if IsEligibleForRanking(rec, launchMode) {
			out = append(out, rec)
		}
	}
	return out
}

func compareIntDescNilLast(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return cmp.Compare(*b, *a)
}

func compareTimeDescNilLast(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return b.Compare(*a)
}
