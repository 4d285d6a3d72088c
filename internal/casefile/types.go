// Package casefile defines the case summary document consumed by the forensic engine.
package casefile

import (
	"strings"
	"time"
)

// Summary is the structured case summary. The engine treats it as read-only.
type Summary struct {
	Timeline         []Event           `json:"timeline"`
	Statements       []Statement       `json:"statements"`
	Behaviour        []Behaviour       `json:"behaviour"`
	MetadataFindings []MetadataFinding `json:"metadataFindings"`
	Jurisdiction     string            `json:"jurisdiction,omitempty"`
	Hash             string            `json:"hash,omitempty"` // integrity witness, never recomputed
	Narrative        string            `json:"summary,omitempty"`

	// Degraded lists sections or entries that were dropped during decoding
	// because they had the wrong shape.
	Degraded []string `json:"-"`
}

// Event is a single timeline entry.
type Event struct {
	Time       Timestamp  `json:"time"`
	Event      string     `json:"event"`
	Source     string     `json:"source,omitempty"`
	Importance Importance `json:"importance,omitempty"`
	Agreed     *bool      `json:"agreed,omitempty"`
	Impossible bool       `json:"impossible,omitempty"`

	// Malformed marks a placeholder for an entry that could not be decoded.
	// It holds the entry's index so later indices still match the input.
	Malformed bool `json:"-"`
}

// Importance grades a timeline event.
type Importance string

const (
	ImportanceLow      Importance = "low"
	ImportanceMedium   Importance = "medium"
	ImportanceHigh     Importance = "high"
	ImportanceCritical Importance = "critical"
)

// Statement is a claim made by an actor.
type Statement struct {
	Actor      string `json:"actor,omitempty"`
	Claim      string `json:"claim"`
	Value      string `json:"value"`
	Consistent *bool  `json:"consistent,omitempty"`
	Malformed  bool   `json:"-"`
}

// Behaviour is an observed behaviour entry. Either Type, Text, or both may be set.
type Behaviour struct {
	Type      BehaviourType `json:"type,omitempty"`
	Text      string        `json:"text,omitempty"`
	Malformed bool          `json:"-"`
}

// BehaviourType names a behaviour category. Values outside the known set
// are kept verbatim.
type BehaviourType string

const (
	BehaviourDeception     BehaviourType = "deception"
	BehaviourManipulation  BehaviourType = "manipulation"
	BehaviourCoercion      BehaviourType = "coercion"
	BehaviourGaslighting   BehaviourType = "gaslighting"
	BehaviourRetaliation   BehaviourType = "retaliation"
	BehaviourAggression    BehaviourType = "aggression"
	BehaviourGreed         BehaviourType = "greed"
	BehaviourPanic         BehaviourType = "panic"
	BehaviourPremeditation BehaviourType = "premeditation"
	BehaviourThreat        BehaviourType = "threat"
)

var behaviourTypes = []BehaviourType{
	BehaviourDeception, BehaviourManipulation, BehaviourCoercion, BehaviourGaslighting,
	BehaviourRetaliation, BehaviourAggression, BehaviourGreed, BehaviourPanic,
	BehaviourPremeditation, BehaviourThreat,
}

// BehaviourTypes returns the predefined behaviour categories.
func BehaviourTypes() []BehaviourType {
	return append([]BehaviourType(nil), behaviourTypes...)
}

// Known reports whether t is one of the predefined behaviour categories.
func (t BehaviourType) Known() bool {
	for _, k := range behaviourTypes {
		if t == k {
			return true
		}
	}
	return false
}

// MetadataFinding is a metadata anomaly reported by an upstream scanner.
type MetadataFinding struct {
	Type      string `json:"type"`
	Malformed bool   `json:"-"`
}

// CountEvents returns the number of well-formed events.
func CountEvents(events []Event) int {
	n := 0
	for _, e := range events {
		if !e.Malformed {
			n++
		}
	}
	return n
}

// CountFindings returns the number of well-formed metadata findings.
func CountFindings(findings []MetadataFinding) int {
	n := 0
	for _, f := range findings {
		if !f.Malformed {
			n++
		}
	}
	return n
}

// Timestamp keeps the caller's raw time string alongside its parsed value.
// An unparseable time is not Valid and never compares as before or after
// any other time.
type Timestamp struct {
	Raw   string
	Time  time.Time
	Valid bool
}

// timeLayouts are tried in order. Layouts without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses s using the accepted layouts.
func ParseTimestamp(s string) Timestamp {
	ts := Timestamp{Raw: s}
	v := strings.TrimSpace(s)
	if v == "" {
		return ts
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			ts.Time = t
			ts.Valid = true
			return ts
		}
	}
	return ts
}

// TimestampFromUnixMilli builds a Timestamp from epoch milliseconds.
func TimestampFromUnixMilli(ms int64) Timestamp {
	t := time.UnixMilli(ms).UTC()
	return Timestamp{Raw: t.Format(time.RFC3339Nano), Time: t, Valid: true}
}

// Before reports whether ts is strictly earlier than other. It is false
// when either side is invalid.
func (ts Timestamp) Before(other Timestamp) bool {
	return ts.Valid && other.Valid && ts.Time.Before(other.Time)
}

// MarshalText returns the raw string so reports echo the caller's input.
func (ts Timestamp) MarshalText() ([]byte, error) {
	return []byte(ts.Raw), nil
}

// UnmarshalText parses a timestamp string.
func (ts *Timestamp) UnmarshalText(b []byte) error {
	*ts = ParseTimestamp(string(b))
	return nil
}

// Clone returns a deep copy of the summary.
func (s *Summary) Clone() *Summary {
	if s == nil {
		return nil
	}
	c := *s
	c.Timeline = make([]Event, len(s.Timeline))
	for i, e := range s.Timeline {
		c.Timeline[i] = e.clone()
	}
	c.Statements = make([]Statement, len(s.Statements))
	for i, st := range s.Statements {
		c.Statements[i] = st
		if st.Consistent != nil {
			v := *st.Consistent
			c.Statements[i].Consistent = &v
		}
	}
	c.Behaviour = append([]Behaviour(nil), s.Behaviour...)
	c.MetadataFindings = append([]MetadataFinding(nil), s.MetadataFindings...)
	c.Degraded = append([]string(nil), s.Degraded...)
	return &c
}

func (e Event) clone() Event {
	if e.Agreed != nil {
		v := *e.Agreed
		e.Agreed = &v
	}
	return e
}
