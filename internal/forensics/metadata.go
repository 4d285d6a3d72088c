package forensics

import (
	"sort"

	"casetrace/internal/casefile"
)

// Metadata finding types with a known severity.
const (
	FindingEditedPDF            = "edited_pdf"
	FindingMissingMetadata      = "missing_metadata"
	FindingMismatchedHash       = "mismatched_hash"
	FindingTimezoneShift        = "timezone_shift"
	FindingSpoofSignature       = "spoof_signature"
	FindingCompressionArtifacts = "compression_artifacts"
)

var redFlags = map[string]int{
	FindingEditedPDF:            70,
	FindingMissingMetadata:      60,
	FindingMismatchedHash:       100,
	FindingTimezoneShift:        50,
	FindingSpoofSignature:       90,
	FindingCompressionArtifacts: 65,
}

// MetadataFindingTypes returns the finding types with a known severity,
// sorted by name.
func MetadataFindingTypes() []string {
	out := make([]string, 0, len(redFlags))
	for t := range redFlags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ClassifyMetadata returns a flag for every finding whose type is in the
// red-flag table. Unknown types are skipped here but still count toward
// the canonical risk score.
func ClassifyMetadata(findings []casefile.MetadataFinding) []MetadataFlag {
	out := []MetadataFlag{}
	for i, f := range findings {
		if sev, ok := redFlags[f.Type]; ok {
			out = append(out, MetadataFlag{Type: f.Type, Severity: sev, SourceIndex: i})
		}
	}
	return out
}
