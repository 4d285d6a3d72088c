package forensics

import (
	"regexp"
	"strings"
)

type threatPattern struct {
	re    *regexp.Regexp
	score int
	label string
}

var threatPatterns = []threatPattern{
	{regexp.MustCompile(`kill|hurt|stab|shoot|dead`), 40, "Direct violent threat"},
	{regexp.MustCompile(`come for you|wait for you|you'll see`), 25, "Implied physical threat"},
	{regexp.MustCompile(`i'll make you pay|ruin you|destroy your life`), 20, "Retaliation threat"},
	{regexp.MustCompile(`take your kids|take everything`), 20, "Family/security threat"},
	{regexp.MustCompile(`police|court|case.*drop it`), 10, "Legal intimidation"},
	{regexp.MustCompile(`stop talking|keep quiet|shut up`), 10, "Coercive control"},
	{regexp.MustCompile(`i know where you live|watching you`), 30, "Stalking indicators"},
	{regexp.MustCompile(`dont.*tell|never tell anyone`), 20, "Secrecy coercion"},
	{regexp.MustCompile(`angry|rage|screaming|shouting`), 10, "Aggressive behaviour"},
	{regexp.MustCompile(`lie|lying|manipulating|gaslight`), 5, "Manipulation / gaslighting"},
}

// ScanThreats scores free text against the threat pattern table. Each
// pattern contributes at most once; the score is capped at 100.
func ScanThreats(text string) ThreatAssessment {
	lower := strings.ToLower(text)
	ta := ThreatAssessment{Indicators: []string{}}

	for _, p := range threatPatterns {
		if p.re.MatchString(lower) {
			ta.Score += p.score
			ta.Indicators = append(ta.Indicators, p.label)
		}
	}
	if ta.Score > 100 {
		ta.Score = 100
	}

	switch {
	case ta.Score >= 75:
		ta.Severity = ThreatCritical
	case ta.Score >= 50:
		ta.Severity = ThreatHigh
	case ta.Score >= 25:
		ta.Severity = ThreatModerate
	default:
		ta.Severity = ThreatLow
	}
	return ta
}
