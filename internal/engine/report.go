package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"casetrace/internal/casefile"
	"casetrace/internal/consensus"
	"casetrace/internal/forensics"
	"casetrace/internal/jurisdiction"
	"casetrace/internal/overlay"
)

// Report is the per-case evaluation result. It carries no wall-clock
// data, so equal inputs give byte-equal canonical encodings.
type Report struct {
	CaseHash       string                      `json:"caseHash,omitempty"`
	Timeline       forensics.ValidatedTimeline `json:"timeline"`
	Contradictions []forensics.Contradiction   `json:"contradictions"`
	Witnesses      []forensics.WitnessScore    `json:"witnesses"`
	Behaviour      []forensics.BehaviourSignal `json:"behaviour"`
	Metadata       []forensics.MetadataFlag    `json:"metadata"`
	Threat         forensics.ThreatAssessment  `json:"threat"`
	Risk           forensics.RiskScore         `json:"risk"`
	Tier           forensics.Tier              `json:"tier"`
	Jurisdiction   jurisdiction.Context        `json:"jurisdiction"`
	Routes         []jurisdiction.Routing      `json:"routes"`
	Signals        overlay.Signals             `json:"signals"`
	Overlays       []overlay.View              `json:"overlays"`
	Legal          LegalMapping                `json:"legal"`
	Degraded       []string                    `json:"degraded"`
	Consensus      *consensus.Result           `json:"consensus,omitempty"`
	Safety         string                      `json:"safety"`
}

// LegalMapping is a coarse legal reading of the findings.
type LegalMapping struct {
	Criminal     string `json:"criminal"`
	Civil        string `json:"civil"`
	Fraud        string `json:"fraud"`
	Jurisdiction string `json:"jurisdiction"`
}

func mapLegal(s *casefile.Summary, contradictions []forensics.Contradiction, risk forensics.RiskScore) LegalMapping {
	m := LegalMapping{
		Criminal:     "Low",
		Civil:        "Unclear",
		Fraud:        "Unknown",
		Jurisdiction: s.Jurisdiction,
	}
	if risk > 70 {
		m.Criminal = "High"
	}
	if len(contradictions) > 0 {
		m.Civil = "Present"
	}
	for _, f := range s.MetadataFindings {
		if f.Type == forensics.FindingMismatchedHash {
			m.Fraud = "Strong"
			break
		}
	}
	if m.Jurisdiction == "" {
		m.Jurisdiction = "Not provided"
	}
	return m
}

// Canonical returns the RFC 8785 canonical JSON encoding of r.
func (r *Report) Canonical() ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize report: %w", err)
	}
	return canon, nil
}

// Digest returns the hex SHA-256 of the canonical encoding of r.
func (r *Report) Digest() (string, error) {
	canon, err := r.Canonical()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}
