package forensics

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"casetrace/internal/casefile"
)

func TestRiskExampleScenario(t *testing.T) {
	s := exampleSummary()
	contradictions := DetectContradictions(s)
	signals := ClassifyBehaviour(s.Behaviour)

	if len(signals) != 1 || signals[0].Severity != 98 {
		t.Fatalf("expected one coercion signal at 98, got %+v", signals)
	}
	if got := AggregateRisk(contradictions, signals, s.MetadataFindings); got != 22 {
		// only the statement conflict is weighted; the impossible event is not
		t.Fatalf("risk = %d, want 22", got)
	}
}

func TestRiskFromCounts(t *testing.T) {
	tests := []struct {
		c, b, m int
		want    RiskScore
		tier    Tier
	}{
		{0, 0, 0, 0, TierLow},
		{1, 1, 1, 22, TierLow},
		{2, 1, 0, 27, TierModerate},
		{5, 0, 0, 50, TierHigh},
		{5, 3, 1, 76, TierCritical},
		{20, 0, 0, 100, TierCritical},
		{-3, 0, 1, 5, TierLow},
	}
	for _, tc := range tests {
		got := RiskFromCounts(tc.c, tc.b, tc.m)
		if got != tc.want {
			t.Errorf("RiskFromCounts(%d,%d,%d) = %d, want %d", tc.c, tc.b, tc.m, got, tc.want)
		}
		if got.Tier() != tc.tier {
			t.Errorf("tier(%d) = %s, want %s", got, got.Tier(), tc.tier)
		}
	}
}

func TestRiskProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	counts := gen.IntRange(0, 50)

	properties.Property("risk is clamped to [0,100]", prop.ForAll(
		func(c, b, m int) bool {
			r := RiskFromCounts(c, b, m)
			return r >= 0 && r <= MaxRisk
		},
		counts, counts, counts,
	))

	properties.Property("risk is monotonic in every count", prop.ForAll(
		func(c, b, m int) bool {
			base := RiskFromCounts(c, b, m)
			return RiskFromCounts(c+1, b, m) >= base &&
				RiskFromCounts(c, b+1, m) >= base &&
				RiskFromCounts(c, b, m+1) >= base
		},
		counts, counts, counts,
	))

	properties.Property("adding a conflicting statement pair never lowers risk", prop.ForAll(
		func(n int) bool {
			s := &casefile.Summary{}
			for i := 0; i < n; i++ {
				s.Statements = append(s.Statements, casefile.Statement{Claim: "c", Value: "v"})
			}
			before := AggregateRisk(DetectContradictions(s), nil, nil)

			s.Statements = append(s.Statements,
				casefile.Statement{Claim: "extra", Value: "yes"},
				casefile.Statement{Claim: "extra", Value: "no"})
			after := AggregateRisk(DetectContradictions(s), nil, nil)
			return after >= before
		},
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}
