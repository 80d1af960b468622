package s1_scoring

import "github.com/wonny/trustrank/internal/contracts"

// Data confidence weights: completeness 70, approved claim 15, registry 15
const (
	dataConfidenceCompleteness = 70.0
	dataConfidenceClaim        = 15.0
	dataConfidenceRegistry     = 15.0
)

// DataConfidence reflects completeness and verification, independent of both
// scores. Feeds the ranking guard's confidence floor.
func DataConfidence(s *contracts.CompanySignals) int {
	c := dataConfidenceCompleteness * s.Completeness()
	if s.Verification.ApprovedClaims > 0 {
		c += dataConfidenceClaim
	}
	if s.Verification.RegistryVerified {
		c += dataConfidenceRegistry
	}
	return clampScore(c)
}
