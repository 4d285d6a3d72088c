package forensics

import "casetrace/internal/casefile"

// Canonical risk weights.
const (
	RiskWeightContradiction = 10
	RiskWeightBehaviour     = 7
	RiskWeightMetadata      = 5
	MaxRisk                 = 100
)

// RiskScore is the canonical composite risk in [0, 100].
type RiskScore int

// Tier is a categorical band of the risk score.
type Tier string

const (
	TierLow      Tier = "low"
	TierModerate Tier = "moderate"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
)

// Tier maps the score to its band.
func (r RiskScore) Tier() Tier {
	switch {
	case r >= 75:
		return TierCritical
	case r >= 50:
		return TierHigh
	case r >= 25:
		return TierModerate
	default:
		return TierLow
	}
}

// AggregateRisk computes
//
//	min(100, conflicts*10 + signals*7 + findings*5)
//
// where conflicts is the number of statement_conflict records. Timeline
// records feed the overlays but not the canonical score. Malformed
// findings are not counted. The score is
// monotonically non-decreasing in each count and saturates at 100.
func AggregateRisk(contradictions []Contradiction, signals []BehaviourSignal, findings []casefile.MetadataFinding) RiskScore {
	return RiskFromCounts(CountKind(contradictions, KindStatementConflict), len(signals), casefile.CountFindings(findings))
}

// CountKind counts records of one kind.
func CountKind(contradictions []Contradiction, kind ContradictionKind) int {
	n := 0
	for _, c := range contradictions {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// RiskFromCounts applies the canonical formula to raw counts. Negative
// counts are treated as zero.
func RiskFromCounts(contradictions, signals, findings int) RiskScore {
	score := nonNeg(contradictions)*RiskWeightContradiction +
		nonNeg(signals)*RiskWeightBehaviour +
		nonNeg(findings)*RiskWeightMetadata
	// Large counts can overflow int; clamp on either side.
	if score > MaxRisk || score < 0 {
		return MaxRisk
	}
	return RiskScore(score)
}

func nonNeg(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
