package overlay

// Builtin returns the default overlay table. Cutoffs are inclusive lower
// bounds on integer-valued scores.
func Builtin() *Table {
	t, err := NewTable(BuiltinDefinitions())
	if err != nil {
		panic("overlay: invalid builtin table: " + err.Error())
	}
	return t
}

// BuiltinDefinitions returns a fresh copy of the default overlay rows.
func BuiltinDefinitions() []Definition {
	return []Definition{
		{
			Name:    "prosecutor",
			Kind:    KindTiered,
			Weights: map[string]float64{SignalContradictions: 10, SignalMetadata: 15, SignalBehaviour: 5},
			Thresholds: []Threshold{
				{141, "Very High"}, {91, "High"}, {51, "Medium"}, {0, "Low"},
			},
		},
		{
			Name:    "courtroom",
			Kind:    KindTiered,
			Weights: map[string]float64{SignalMetadata: 30, SignalContradictions: 10},
			Thresholds: []Threshold{
				{151, "Compelling"}, {91, "Moderate"}, {0, "Weak"},
			},
		},
		{
			Name:    "supreme",
			Kind:    KindTiered,
			Weights: map[string]float64{SignalMetadata: 60, SignalContradictions: 20},
			Thresholds: []Threshold{
				{201, "Extreme"}, {121, "High"}, {0, "Elevated"},
			},
		},
		{
			Name:    "omega",
			Kind:    KindTiered,
			Weights: map[string]float64{SignalContradictions: 12, SignalMetadata: 25},
			Thresholds: []Threshold{
				{201, "Severe"}, {121, "High"}, {0, "Moderate"},
			},
		},
		{
			Name:    "god",
			Kind:    KindTiered,
			Weights: map[string]float64{SignalContradictions: 12, SignalMetadata: 40},
			Thresholds: []Threshold{
				{261, "Extremely high"}, {161, "High"}, {81, "Moderate"}, {0, "Low"},
			},
		},
		{
			Name:    "founder",
			Kind:    KindTiered,
			Weights: map[string]float64{SignalBehaviour: 10, SignalMetadata: 25},
			Thresholds: []Threshold{
				{201, "Severe"}, {121, "High"}, {0, "Moderate"},
			},
		},
		{
			Name:    "origin",
			Kind:    KindTiered,
			Weights: map[string]float64{SignalContradictions: 22},
			Thresholds: []Threshold{
				{132, "Five or more origin candidates"},
				{66, "Two to four major origin clusters"},
				{0, "Single dominant origin"},
			},
		},
		{
			Name: "infinity",
			Kind: KindNarrative,
			Template: `Case structure: {{.Signals.timeline}} timeline events, ` +
				`{{.Signals.contradictions}} contradictions, ` +
				`{{.Signals.behaviour}} behavioural indicators, ` +
				`{{.Signals.metadata}} metadata anomalies.`,
		},
		{
			Name:    "case_pressure",
			Kind:    KindTiered,
			Weights: map[string]float64{SignalContradictions: 15, SignalBehaviour: 10, SignalMetadata: 20, SignalRisk: 1},
			Thresholds: []Threshold{
				{151, "Extreme"}, {101, "High"}, {61, "Medium"}, {0, "Low"},
			},
		},
		{
			Name:     "fraud_pressure",
			Kind:     KindNarrative,
			Weights:  map[string]float64{SignalContradictions: 12, SignalMetadata: 20},
			Template: `Fraud pressure index {{.Score}}.`,
		},
		{
			Name:     "truth_map",
			Kind:     KindRules,
			Weights:  map[string]float64{SignalBehaviour: 12, SignalContradictions: 30, SignalMetadata: 25},
			Rules:    []Rule{{When: `contradictions > 5`, Label: "Unstable / fragmented"}},
			Fallback: "Stable",
		},
		{
			Name:    "institution_pressure",
			Kind:    KindTiered,
			Weights: map[string]float64{SignalMetadata: 30},
			Thresholds: []Threshold{
				{201, "Extreme"}, {121, "High"}, {0, "Moderate"},
			},
		},
		{
			Name:    "fraud_gravity",
			Kind:    KindTiered,
			Weights: map[string]float64{SignalContradictions: 20, BehaviourKey("deception"): 15},
			Thresholds: []Threshold{
				{181, "Deep fraud well"}, {101, "Structured fraud"}, {0, "Shallow opportunistic behaviour"},
			},
		},
		{
			Name:    "invisible_actor",
			Kind:    KindTiered,
			Weights: map[string]float64{SignalContradictions: 18, BehaviourKey("manipulation"): 22},
			Thresholds: []Threshold{
				{221, "Highly manipulative external controller"}, {0, "Possible hidden influence"},
			},
			Rules: []Rule{{
				When:  `contradictions * 18 + signals["behaviour.manipulation"] * 22 > 160`,
				Label: "Hidden actor likely",
			}},
		},
		{
			Name:    "behaviour_probability",
			Kind:    KindTiered,
			Weights: map[string]float64{BehaviourKey("aggression"): 14},
			Thresholds: []Threshold{
				{70, "High"}, {42, "Medium"}, {0, "Low"},
			},
		},
		{
			Name:       "case_lifecycle",
			Kind:       KindRules,
			FirstMatch: true,
			Rules: []Rule{
				{When: `contradictions > 4`, Label: "Complaint → Investigation → Charge"},
				{When: `contradictions > 2`, Label: "Statement-taking → Investigation"},
			},
			Fallback: "Monitoring / Documentation only",
		},
		{
			Name:    "timeline_forks",
			Kind:    KindTiered,
			Weights: map[string]float64{SignalContradictions: 1},
			Thresholds: []Threshold{
				{5, "Multiple conflicting chains"}, {3, "Two main variant chains"}, {0, "Single dominant chain"},
			},
		},
		{
			Name:     "harmonisation",
			Kind:     KindRules,
			Weights:  map[string]float64{SignalContradictions: 10, SignalMetadata: 25},
			Rules:    []Rule{{When: `metadata == 0 && contradictions < 2`, Label: "Sources unified"}},
			Fallback: "Sources diverge",
		},
		{
			Name: "charge_sheet",
			Kind: KindRules,
			Rules: []Rule{
				{When: `metadata > 0`, Label: "Tampering with digital evidence"},
				{When: `contradictions > 2`, Label: "Providing false statements"},
				{When: `signals["behaviour.coercion"] > 0`, Label: "Coercive manipulation"},
			},
			Fallback: "No charge-sheet entries indicated.",
		},
		{
			Name:       "likely_act",
			Kind:       KindRules,
			FirstMatch: true,
			Rules: []Rule{
				{When: `signals["metadata.mismatched_hash"] > 0`, Label: "Tampering"},
				{When: `signals["behaviour.coercion"] > 0`, Label: "Coercion/Manipulation"},
				{When: `contradictions > 3`, Label: "False Declaration"},
			},
			Fallback: "Unclear",
		},
		{
			Name:       "next_best_move",
			Kind:       KindRules,
			FirstMatch: true,
			Rules: []Rule{
				{When: `risk > 80`, Label: "Immediate escalation"},
				{When: `contradictions > 3`, Label: "Request formal statement"},
			},
			Fallback: "Continue evidence logging",
		},
		{
			Name:       "defence_strategy",
			Kind:       KindRules,
			FirstMatch: true,
			Rules: []Rule{
				{When: `contradictions > 3`, Label: "Deny + deflect"},
				{When: `signals["behaviour.gaslighting"] > 0`, Label: "Gaslighting + inversion"},
			},
			Fallback: "Minimisation",
		},
		{
			Name:       "authority_bundle",
			Kind:       KindRules,
			FirstMatch: true,
			Rules: []Rule{
				{When: `risk > 80`, Label: "Police/CID"},
				{When: `metadata > 0`, Label: "Cyber Unit"},
			},
			Fallback: "Legal counsel",
		},
		{
			Name:      "legal_narrative",
			Kind:      KindNarrative,
			DependsOn: []string{"case_pressure"},
			Template: `The forensic engine reports {{.Signals.contradictions}} contradictions, ` +
				`{{.Signals.behaviour}} behavioural indicators and {{.Signals.metadata}} metadata anomalies. ` +
				`{{with index .Refs "case_pressure"}}Case pressure is {{.Label}} ({{.Score}}).{{end}}`,
		},
	}
}
