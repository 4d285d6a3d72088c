// Package jurisdiction maps jurisdiction codes to a procedural context:
// a short posture descriptor, a rights and obligations bundle, and the
// usual escalation route. Resolution never fails; unknown codes get a
// generic fallback.
package jurisdiction

import "strings"

// Canonical codes.
const (
	CodeUAE         = "UAE"
	CodeSouthAfrica = "SA"
	CodeEU          = "EU"
)

// Bundle is the rights and obligations available in a jurisdiction.
type Bundle struct {
	ConstitutionalRights  []string `json:"constitutionalRights"`
	PoliceProcedure       []string `json:"policeProcedure"`
	FraudPathway          []string `json:"fraudPathway"`
	RetaliationProtection []string `json:"retaliationProtection"`
	EvidenceRules         []string `json:"evidenceRules"`
	Disclaimers           []string `json:"disclaimers"`
	VictimProtection      []string `json:"victimProtection"`
}

// Context is the resolved procedural context.
type Context struct {
	Code       string   `json:"code"`
	Name       string   `json:"name"`
	Posture    string   `json:"posture"`
	Rights     Bundle   `json:"rights"`
	Escalation []string `json:"escalation"`
	Known      bool     `json:"known"`
}

type entry struct {
	name       string
	posture    string
	rights     []string
	police     []string
	fraud      []string
	retaliate  []string
	escalation []string
}

var (
	baseEvidence = []string{
		"User controls all evidence.",
		"Only summaries and hashes are processed.",
		"Raw files remain on the device.",
		"Authorities must accept metadata-based integrity explanations.",
	}
	baseDisclaimers = []string{
		"This is procedural guidance, not legal representation.",
		"Interpretations are based on forensic summary signals.",
	}
	baseVictimProtection = []string{
		"Do not confront alleged offenders.",
		"Do not reveal analysis results to suspects.",
		"Escalation should be done through safe channels only.",
	}
)

// FallbackPosture is used for unknown or missing codes.
const FallbackPosture = "General international standards apply."

var table = map[string]entry{
	CodeUAE: {
		name:    "United Arab Emirates",
		posture: "High liability for fraud, rapid escalation.",
		rights: []string{
			"Right to safety and non-retaliation.",
			"Right to file a criminal complaint with Dubai Police or Public Prosecution.",
			"Right to have digital evidence accepted with certification.",
			"Right to civil compensation through UAE courts.",
		},
		police: []string{
			"Fraud is a criminal offence under Federal Decree-Law 31/2021.",
			"False documents create immediate criminal liability.",
			"Authorities accept metadata-based forensic reports.",
			"Public Prosecution may request digital forensics.",
		},
		fraud: []string{
			"Forgery, use of forged documents, and misuse of signatures apply.",
			"Timeline contradictions assist intent determination.",
			"Metadata anomalies support tampering claims.",
		},
		retaliate: []string{
			"Misuse of legal procedures is punishable.",
			"Retaliatory complaints can backfire legally.",
			"Both civil and criminal actions can be run in parallel.",
		},
		escalation: []string{"CID", "Public Prosecution", "Cybercrime Dept"},
	},
	CodeSouthAfrica: {
		name:    "South Africa",
		posture: "Evidence-driven, metadata crucial.",
		rights: []string{
			"Right to equality and dignity.",
			"Right not to be unfairly discriminated against.",
			"Right to be protected from violence (direct or indirect).",
			"Right to fair policing and non-retaliation.",
			"Right to access courts and lodge charges without obstruction.",
		},
		police: []string{
			"SAPS must open a case when evidence of fraud or harm exists.",
			"A protection order can be requested under the Domestic Violence Act or Harassment Act.",
			"Metadata-backed evidence is admissible.",
			"Police may not dismiss cases simply because evidence is digital.",
		},
		fraud: []string{
			"Fraud is a criminal offence.",
			"Statements, contradictions, and metadata findings are relevant.",
			"Timeline inconsistencies can support intent.",
		},
		retaliate: []string{
			"False counter-charges are illegal.",
			"Retaliatory protection orders can be challenged.",
			"User may request investigation into misuse of legal process.",
		},
		escalation: []string{"SAPS Detective", "NPA", "Specialised Commercial Crimes Unit"},
	},
	CodeEU: {
		name:    "European Union",
		posture: "Procedural justice, cross-border safeguards.",
		rights: []string{
			"Right to safety, dignity, and data privacy (GDPR).",
			"Right to fair legal process.",
			"Right to protection from harassment or fraud.",
			"Right to access consumer and civil remedies.",
		},
		police: []string{
			"Police must register complaints involving fraud.",
			"Digital evidence and metadata must be acknowledged under EU regulations.",
			"User can escalate through national ombudsman and EU consumer agencies.",
		},
		fraud: []string{
			"Fraud triggers civil and criminal consequences.",
			"Misrepresentation and document inconsistency matter.",
			"Metadata and timeline signals support claims.",
		},
		retaliate: []string{
			"Harassment protections under EU directives apply.",
			"Retaliatory or abusive complaints can be sanctioned.",
			"User can seek fast civil injunctions.",
		},
		escalation: []string{"Police", "Cyber Unit", "Prosecutor"},
	},
}

var aliases = map[string]string{
	"UAE":                  CodeUAE,
	"AE":                   CodeUAE,
	"UNITED ARAB EMIRATES": CodeUAE,
	"SA":                   CodeSouthAfrica,
	"ZA":                   CodeSouthAfrica,
	"RSA":                  CodeSouthAfrica,
	"SOUTH AFRICA":         CodeSouthAfrica,
	"EU":                   CodeEU,
	"EUROPEAN UNION":       CodeEU,
}

// Canonical returns the canonical code for a user-supplied code or name,
// and whether it is known.
func Canonical(code string) (string, bool) {
	c, ok := aliases[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// Resolve returns the procedural context for code. Every call returns
// freshly allocated slices.
func Resolve(code string) Context {
	canon, ok := Canonical(code)
	if !ok {
		return Context{
			Code:    strings.TrimSpace(code),
			Name:    "Unknown",
			Posture: FallbackPosture,
			Rights: Bundle{
				ConstitutionalRights:  []string{},
				PoliceProcedure:       []string{},
				FraudPathway:          []string{},
				RetaliationProtection: []string{},
				EvidenceRules:         clone(baseEvidence),
				Disclaimers:           clone(baseDisclaimers),
				VictimProtection:      clone(baseVictimProtection),
			},
			Escalation: []string{"Unknown"},
		}
	}

	e := table[canon]
	return Context{
		Code:    canon,
		Name:    e.name,
		Posture: e.posture,
		Rights: Bundle{
			ConstitutionalRights:  clone(e.rights),
			PoliceProcedure:       clone(e.police),
			FraudPathway:          clone(e.fraud),
			RetaliationProtection: clone(e.retaliate),
			EvidenceRules:         clone(baseEvidence),
			Disclaimers:           clone(baseDisclaimers),
			VictimProtection:      clone(baseVictimProtection),
		},
		Escalation: clone(e.escalation),
		Known:      true,
	}
}

func clone(s []string) []string {
	return append(make([]string, 0, len(s)), s...)
}
