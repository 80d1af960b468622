package contracts

import "time"

// RankingRecord projection of company + score state used by listing paths
type RankingRecord struct {
	CompanyID         string           `json:"company_id"`
	Name              string           `json:"name"`
	IsPublic          bool             `json:"is_public"`
	IsSkeleton        bool             `json:"is_skeleton"`
	IsDemo            bool             `json:"is_demo"`
	MergedIntoID      *string          `json:"merged_into_id,omitempty"`
	DataConfidence    int              `json:"data_confidence"`
	RiskFlags         []string         `json:"risk_flags"`
	TrustScore        *int             `json:"trust_score"`
	FundamentalsScore *int             `json:"fundamentals_score"`
	StabilityProfile  StabilityProfile `json:"stability_profile"`
	LastScoredAt      *time.Time       `json:"last_scored_at"`
}

// RankingQuery paging parameters for candidate listing
type RankingQuery struct {
	LaunchMode bool
	Limit      int `validate:"min=1,max=500"`
	Offset     int `validate:"min=0"`
}
