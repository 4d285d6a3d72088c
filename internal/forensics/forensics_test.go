package forensics

import (
	"reflect"
	"testing"

	"casetrace/internal/casefile"
)

func ts(s string) casefile.Timestamp { return casefile.ParseTimestamp(s) }

func exampleSummary() *casefile.Summary {
	return &casefile.Summary{
		Statements: []casefile.Statement{
			{Claim: "location", Value: "home"},
			{Claim: "location", Value: "office"},
		},
		Timeline: []casefile.Event{
			{Time: ts("2024-01-02T00:00"), Event: "A"},
			{Time: ts("2024-01-01T00:00"), Event: "B"},
		},
		Behaviour:        []casefile.Behaviour{{Type: casefile.BehaviourCoercion}},
		MetadataFindings: []casefile.MetadataFinding{{Type: "mismatched_hash"}},
	}
}

// =============================================================================
// Contradiction Detector
// =============================================================================

func TestDetectContradictionsExample(t *testing.T) {
	got := DetectContradictions(exampleSummary())
	want := []Contradiction{
		{Kind: KindStatementConflict, Refs: []int{0, 1}, Severity: 100, Message: msgDirectContradiction},
		{Kind: KindTimelineImpossible, Refs: []int{0, 1}, Severity: 90, Message: msgTimelineImpossible},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("contradictions mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestDetectContradictionsOrdering(t *testing.T) {
	s := &casefile.Summary{
		Statements: []casefile.Statement{
			{Claim: "a", Value: "1"},
			{Claim: "b", Value: "x"},
			{Claim: "a", Value: "2"},
			{Claim: "a", Value: "1"},
			{Claim: "b", Value: "y"},
		},
	}
	got := DetectContradictions(s)

	wantRefs := [][]int{{0, 2}, {1, 4}, {2, 3}}
	if len(got) != len(wantRefs) {
		t.Fatalf("expected %d records, got %d: %+v", len(wantRefs), len(got), got)
	}
	for i, r := range wantRefs {
		if !reflect.DeepEqual(got[i].Refs, r) {
			t.Errorf("record %d refs = %v, want %v", i, got[i].Refs, r)
		}
	}
}

func TestDetectContradictionsSymmetry(t *testing.T) {
	a := casefile.Statement{Claim: "location", Value: "home"}
	b := casefile.Statement{Claim: "location", Value: "office"}

	forward := DetectContradictions(&casefile.Summary{Statements: []casefile.Statement{a, b}})
	reverse := DetectContradictions(&casefile.Summary{Statements: []casefile.Statement{b, a}})

	if len(forward) != 1 || len(reverse) != 1 {
		t.Fatalf("expected exactly one record each way, got %d and %d", len(forward), len(reverse))
	}
	if !reflect.DeepEqual(forward, reverse) {
		t.Errorf("swapping statements changed the result: %+v vs %+v", forward, reverse)
	}
}

func TestDetectContradictionsInputOrderTimeline(t *testing.T) {
	tests := []struct {
		name  string
		times []string
		want  int
	}{
		{"sorted", []string{"2024-01-01", "2024-01-02", "2024-01-03"}, 0},
		{"one inversion", []string{"2024-01-02", "2024-01-01", "2024-01-03"}, 1},
		{"descending", []string{"2024-01-03", "2024-01-02", "2024-01-01"}, 2},
		{"equal times", []string{"2024-01-01", "2024-01-01"}, 0},
		{"invalid time never impossible", []string{"2024-01-02", "garbage", "2024-01-01"}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := &casefile.Summary{}
			for _, tm := range tc.times {
				s.Timeline = append(s.Timeline, casefile.Event{Time: ts(tm)})
			}
			got := DetectContradictions(s)
			if len(got) != tc.want {
				t.Errorf("got %d records, want %d", len(got), tc.want)
			}
			for _, c := range got {
				if c.Kind != KindTimelineImpossible || c.Severity != 90 {
					t.Errorf("unexpected record %+v", c)
				}
			}
		})
	}
}

func TestDetectContradictionsEmpty(t *testing.T) {
	if got := DetectContradictions(nil); got == nil || len(got) != 0 {
		t.Errorf("nil summary should give empty non-nil slice, got %#v", got)
	}
	if got := DetectContradictions(&casefile.Summary{}); len(got) != 0 {
		t.Errorf("empty summary should give no records, got %+v", got)
	}
}

func TestWitnessReliability(t *testing.T) {
	f := false
	tr := true
	statements := []casefile.Statement{
		{Actor: "alice", Consistent: &f},
		{Actor: "bob", Consistent: &tr},
		{Actor: "alice", Consistent: &f},
		{Actor: "carol", Consistent: &f},
		{Actor: ""},
		{Actor: "bob"},
	}
	got := WitnessReliability(statements)
	want := []WitnessScore{
		{Actor: "alice", Inconsistencies: 2, InconsistencyScore: 24, Reliability: ReliabilityLow},
		{Actor: "bob", Inconsistencies: 0, InconsistencyScore: 0, Reliability: ReliabilityHigh},
		{Actor: "carol", Inconsistencies: 1, InconsistencyScore: 12, Reliability: ReliabilityMedium},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v\nwant %+v", got, want)
	}
}

// =============================================================================
// Timeline Validator
// =============================================================================

func TestValidateTimelineStableSort(t *testing.T) {
	events := []casefile.Event{
		{Time: ts("2024-01-03"), Event: "c"},
		{Time: ts("2024-01-01"), Event: "a1"},
		{Time: ts("2024-01-02"), Event: "b"},
		{Time: ts("2024-01-01"), Event: "a2"},
	}
	vt := ValidateTimeline(events)

	var order []string
	for _, e := range vt.Ordered {
		order = append(order, e.Event)
	}
	want := []string{"a1", "a2", "b", "c"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("ordered = %v, want %v", order, want)
	}

	// permutation is [1, 3, 2, 0]: drops at positions 2 and 3
	wantGaps := []Gap{{Index: 2, Issue: GapOutOfOrder}, {Index: 3, Issue: GapOutOfOrder}}
	if !reflect.DeepEqual(vt.Gaps, wantGaps) {
		t.Errorf("gaps = %+v, want %+v", vt.Gaps, wantGaps)
	}
}

func TestValidateTimelineSortedInputHasNoGaps(t *testing.T) {
	events := []casefile.Event{
		{Time: ts("2024-01-01"), Event: "a", Source: "sms"},
		{Time: ts("2024-01-02"), Event: "b"},
	}
	vt := ValidateTimeline(events)
	if len(vt.Gaps) != 0 {
		t.Errorf("expected no gaps, got %+v", vt.Gaps)
	}
	if vt.Ordered[0].Source != "sms" || vt.Ordered[1].Source != UnknownSource {
		t.Errorf("unexpected sources: %q, %q", vt.Ordered[0].Source, vt.Ordered[1].Source)
	}
	if events[1].Source != "" {
		t.Error("input event was modified")
	}
}

func TestValidateTimelineImpossiblePassThrough(t *testing.T) {
	events := []casefile.Event{
		{Time: ts("2024-01-02"), Event: "x", Impossible: true},
		{Time: ts("2024-01-01"), Event: "y"},
		{Time: ts("2024-01-03"), Event: "z", Impossible: true},
	}
	vt := ValidateTimeline(events)
	if len(vt.Impossible) != 2 || vt.Impossible[0].Event != "x" || vt.Impossible[1].Event != "z" {
		t.Errorf("impossible = %+v", vt.Impossible)
	}
}

func TestValidateTimelineEmpty(t *testing.T) {
	vt := ValidateTimeline(nil)
	if vt.Ordered == nil || vt.Gaps == nil || vt.Impossible == nil {
		t.Error("empty timeline should produce non-nil empty collections")
	}
}

// =============================================================================
// Behavioural Classifier
// =============================================================================

func TestClassifyBehaviourTyped(t *testing.T) {
	tests := []struct {
		typ  casefile.BehaviourType
		want int
	}{
		{casefile.BehaviourDeception, 90},
		{casefile.BehaviourManipulation, 95},
		{casefile.BehaviourCoercion, 98},
		{casefile.BehaviourGaslighting, 99},
		{casefile.BehaviourRetaliation, 85},
		{casefile.BehaviourGreed, 20},
		{"something-else", 20},
	}
	for _, tc := range tests {
		t.Run(string(tc.typ), func(t *testing.T) {
			got := ClassifyBehaviour([]casefile.Behaviour{{Type: tc.typ}})
			if len(got) != 1 {
				t.Fatalf("expected one signal, got %d", len(got))
			}
			if got[0].Severity != tc.want || got[0].Origin != OriginTyped {
				t.Errorf("got %+v, want severity %d", got[0], tc.want)
			}
		})
	}
}

func TestClassifyBehaviourLexicon(t *testing.T) {
	entries := []casefile.Behaviour{
		{Text: "YOU MUST pay or else. You're crazy."},
		{Text: "Nothing to see"},
		{Text: "I don’t remember", Type: casefile.BehaviourDeception},
	}
	got := ClassifyBehaviour(entries)

	want := []BehaviourSignal{
		{Type: casefile.BehaviourGaslighting, Severity: 70, SourceIndex: 0, Origin: OriginLexicon, Phrase: "you're crazy"},
		{Type: casefile.BehaviourCoercion, Severity: 70, SourceIndex: 0, Origin: OriginLexicon, Phrase: "you must"},
		{Type: casefile.BehaviourCoercion, Severity: 70, SourceIndex: 0, Origin: OriginLexicon, Phrase: "or else"},
		{Type: casefile.BehaviourDeception, Severity: 70, SourceIndex: 2, Origin: OriginLexicon, Phrase: "i don’t remember"},
		{Type: casefile.BehaviourDeception, Severity: 90, SourceIndex: 2, Origin: OriginTyped},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("signals mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestClassifierCustomLexicon(t *testing.T) {
	c := NewClassifier(Lexicon{
		{Category: casefile.BehaviourThreat, Phrases: []string{"  Watch Your Back ", ""}},
	})
	got := c.Classify([]casefile.Behaviour{{Text: "better watch your back"}, {Text: "you must"}})
	if len(got) != 1 || got[0].Type != casefile.BehaviourThreat || got[0].Phrase != "watch your back" {
		t.Errorf("unexpected signals %+v", got)
	}
}

func TestDefaultLexiconIsCopy(t *testing.T) {
	lex := DefaultLexicon()
	lex[0].Phrases[0] = "mutated"
	if defaultLexicon[0].Phrases[0] == "mutated" {
		t.Error("DefaultLexicon exposed the package table")
	}
}

// =============================================================================
// Metadata and threats
// =============================================================================

func TestClassifyMetadata(t *testing.T) {
	findings := []casefile.MetadataFinding{
		{Type: FindingMismatchedHash},
		{Type: "unheard_of"},
		{Type: FindingTimezoneShift},
	}
	got := ClassifyMetadata(findings)
	want := []MetadataFlag{
		{Type: FindingMismatchedHash, Severity: 100, SourceIndex: 0},
		{Type: FindingTimezoneShift, Severity: 50, SourceIndex: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestScanThreats(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		score    int
		severity ThreatSeverity
	}{
		{"benign", "see you at lunch", 0, ThreatLow},
		{"legal intimidation", "I'll take this to court", 10, ThreatLow},
		{"stalking", "I know where you live", 30, ThreatModerate},
		{"violent plus stalking", "I will hurt you, I know where you live", 70, ThreatHigh},
		{"capped", "kill, I know where you live, come for you, take everything, police", 100, ThreatCritical},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ScanThreats(tc.text)
			if got.Score != tc.score || got.Severity != tc.severity {
				t.Errorf("got score %d severity %s (%v), want %d %s", got.Score, got.Severity, got.Indicators, tc.score, tc.severity)
			}
		})
	}
}
