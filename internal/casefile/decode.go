package casefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrNotObject is returned when the document root is not a mapping.
var ErrNotObject = errors.New("casefile: document root must be an object")

// Load reads and decodes a case summary file.
func Load(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read case file: %w", err)
	}
	s, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return s, nil
}

// Decode parses a JSON or YAML case summary.
//
// Sections are decoded independently. A section or entry with the wrong
// shape is dropped and named in Summary.Degraded instead of failing the
// whole document; only an unparseable document or a non-object root is an
// error.
func Decode(data []byte) (*Summary, error) {
	root, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	obj, ok := root.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}

	s := &Summary{
		Timeline:         []Event{},
		Statements:       []Statement{},
		Behaviour:        []Behaviour{},
		MetadataFindings: []MetadataFinding{},
	}
	d := &decoder{s: s}

	d.each(obj, "timeline", func(i int, m map[string]any) bool {
		ev, ok := decodeEvent(m)
		if ok {
			s.Timeline = append(s.Timeline, ev)
		}
		return ok
	}, func() {
		s.Timeline = append(s.Timeline, Event{Malformed: true})
	})
	d.each(obj, "statements", func(i int, m map[string]any) bool {
		s.Statements = append(s.Statements, decodeStatement(m))
		return true
	}, func() {
		s.Statements = append(s.Statements, Statement{Malformed: true})
	})
	behaviourKey := "behaviour"
	if _, ok := obj[behaviourKey]; !ok {
		if _, alt := obj["behavior"]; alt {
			behaviourKey = "behavior"
		}
	}
	d.each(obj, behaviourKey, func(i int, m map[string]any) bool {
		s.Behaviour = append(s.Behaviour, decodeBehaviour(m))
		return true
	}, func() {
		s.Behaviour = append(s.Behaviour, Behaviour{Malformed: true})
	})
	d.each(obj, "metadataFindings", func(i int, m map[string]any) bool {
		t, _ := scalarString(m["type"])
		s.MetadataFindings = append(s.MetadataFindings, MetadataFinding{Type: t})
		return true
	}, func() {
		s.MetadataFindings = append(s.MetadataFindings, MetadataFinding{Malformed: true})
	})

	s.Jurisdiction = d.str(obj, "jurisdiction")
	s.Hash = d.str(obj, "hash")
	s.Narrative = d.str(obj, "summary")
	return s, nil
}

// parseDocument normalises JSON or YAML input into plain JSON values
// (map[string]any, []any, string, float64, bool, nil).
func parseDocument(data []byte) (any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("casefile: empty document")
	}

	var v any
	if trimmed[0] == '{' || trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &v); err == nil {
			return v, nil
		}
	}

	var y any
	if err := yaml.Unmarshal(trimmed, &y); err != nil {
		return nil, fmt.Errorf("casefile: parse document: %w", err)
	}
	// Round-trip through JSON so YAML scalars (ints, timestamps) take the
	// same shapes as JSON input.
	b, err := json.Marshal(y)
	if err != nil {
		return nil, fmt.Errorf("casefile: normalise document: %w", err)
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("casefile: normalise document: %w", err)
	}
	return v, nil
}

type decoder struct {
	s *Summary
}

func (d *decoder) degrade(name string) {
	d.s.Degraded = append(d.s.Degraded, name)
}

// each walks obj[key] as an array of objects. A missing key is silently
// empty; a non-array value or a non-object entry is recorded as degraded.
// A rejected entry is replaced by hole so that every later entry keeps its
// input index.
func (d *decoder) each(obj map[string]any, key string, fn func(i int, m map[string]any) bool, hole func()) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return
	}
	arr, ok := raw.([]any)
	if !ok {
		d.degrade(key)
		return
	}
	for i, item := range arr {
		m, ok := item.(map[string]any)
		if !ok || !fn(i, m) {
			hole()
			d.degrade(fmt.Sprintf("%s[%d]", key, i))
		}
	}
}

func (d *decoder) str(obj map[string]any, key string) string {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return ""
	}
	s, ok := scalarString(raw)
	if !ok {
		d.degrade(key)
	}
	return s
}

func decodeEvent(m map[string]any) (Event, bool) {
	var ev Event
	switch t := m["time"].(type) {
	case string:
		ev.Time = ParseTimestamp(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ev, false
		}
		ev.Time = TimestampFromUnixMilli(int64(t))
	case nil:
		ev.Time = Timestamp{}
	default:
		return ev, false
	}
	ev.Event, _ = scalarString(m["event"])
	ev.Source, _ = scalarString(m["source"])
	if imp, ok := scalarString(m["importance"]); ok {
		ev.Importance = Importance(imp)
	}
	if b, ok := m["agreed"].(bool); ok {
		ev.Agreed = &b
	}
	if b, ok := m["impossible"].(bool); ok {
		ev.Impossible = b
	}
	return ev, true
}

func decodeStatement(m map[string]any) Statement {
	var st Statement
	st.Actor, _ = scalarString(m["actor"])
	st.Claim, _ = scalarString(m["claim"])
	st.Value, _ = scalarString(m["value"])
	if b, ok := m["consistent"].(bool); ok {
		st.Consistent = &b
	}
	return st
}

func decodeBehaviour(m map[string]any) Behaviour {
	var b Behaviour
	t, ok := scalarString(m["type"])
	if !ok || t == "" {
		// Older summaries carry the category under "signal".
		t, _ = scalarString(m["signal"])
	}
	b.Type = BehaviourType(t)
	b.Text, _ = scalarString(m["text"])
	return b
}

// scalarString renders a JSON scalar as a string.
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}
